package raffle

import (
	"context"
	"fmt"
	"slices"

	"raffled/internal/ledger"
	"raffled/internal/logger"
	"raffled/internal/storage"
	"raffled/internal/tickets"
	"raffled/internal/waterfall"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type State string

const (
	StateCreated            State = "created"
	StateOpen               State = "open"
	StateSaleClosed         State = "sale_closed"
	StateCanceled           State = "canceled"
	StateFinalizedFailed    State = "finalized_failed"
	StateFinalizedSuccess   State = "finalized_success"
	StateRevenueDistributed State = "revenue_distributed"
)

func failed(raffle *storage.Raffle) bool {
	return raffle.Finalized && (raffle.TicketsSold == 0 || raffle.TicketsSold < raffle.MinTicketCount)
}

func succeeded(raffle *storage.Raffle) bool {
	return raffle.Finalized && !failed(raffle)
}

func stateOf(raffle *storage.Raffle, now int64) State {
	switch {
	case raffle.Canceled:
		return StateCanceled
	case raffle.RevenueDistributed:
		return StateRevenueDistributed
	case failed(raffle):
		return StateFinalizedFailed
	case raffle.Finalized:
		return StateFinalizedSuccess
	case now >= raffle.EndTime:
		return StateSaleClosed
	case now >= raffle.StartTime:
		return StateOpen
	default:
		return StateCreated
	}
}

// Config holds the owner-controlled fields of a raffle.
type Config struct {
	Currency       string                 `json:"currency"`
	StartTime      int64                  `json:"start_time"`
	EndTime        int64                  `json:"end_time"`
	MaxTicketCount uint64                 `json:"max_ticket_count"`
	MinTicketCount uint64                 `json:"min_ticket_count"`
	TicketPrice    decimal.Decimal        `json:"ticket_price"`
	TotalSlots     uint32                 `json:"total_slots"`
	Name           string                 `json:"name"`
	PaymentSplits  []storage.PaymentSplit `json:"payment_splits"`
}

func (tx *txn) validateConfig(config *Config) error {
	if config.Currency == "" {
		config.Currency = ledger.Native
	}
	if config.Currency != ledger.Native && !slices.Contains(tx.config.SupportedCurrencies, config.Currency) {
		return fmt.Errorf("%w: %s", ErrUnsupportedCurrency, config.Currency)
	}
	if config.StartTime >= config.EndTime {
		return ErrInvalidWindow
	}
	if config.TotalSlots == 0 || config.TotalSlots > tx.config.MaxNumberSlots {
		return fmt.Errorf("%w: %d not in [1, %d]", ErrInvalidSlots, config.TotalSlots, tx.config.MaxNumberSlots)
	}
	if config.MaxTicketCount == 0 || config.MaxTicketCount >= tickets.SequenceSpace {
		return fmt.Errorf("%w: max %d", ErrInvalidTicketCount, config.MaxTicketCount)
	}
	if config.MinTicketCount > config.MaxTicketCount {
		return fmt.Errorf("%w: min %d above max %d", ErrInvalidTicketCount, config.MinTicketCount, config.MaxTicketCount)
	}
	if !config.TicketPrice.IsPositive() || !config.TicketPrice.Equal(config.TicketPrice.Truncate(0)) {
		return fmt.Errorf("%w: %s", ErrInvalidPrice, config.TicketPrice)
	}
	return waterfall.ValidateSplits(config.PaymentSplits)
}

func apply(raffle *storage.Raffle, config Config) {
	raffle.Currency = config.Currency
	raffle.StartTime = config.StartTime
	raffle.EndTime = config.EndTime
	raffle.MaxTicketCount = config.MaxTicketCount
	raffle.MinTicketCount = config.MinTicketCount
	raffle.TicketPrice = config.TicketPrice
	raffle.TotalSlots = config.TotalSlots
	raffle.Name = config.Name
	raffle.PaymentSplits = slices.Clone(config.PaymentSplits)
}

// CreateRaffle registers a raffle owned by caller and returns its id.
func (e *Engine) CreateRaffle(ctx context.Context, caller string, config Config) (uint64, error) {
	logger.Debug("create raffle...", zap.String("owner", caller))

	var id uint64
	err := e.atomic(ctx, func(tx *txn) error {
		if err := requireCaller(caller); err != nil {
			return err
		}
		if err := tx.validateConfig(&config); err != nil {
			return err
		}

		tx.config.RaffleCount++
		id = tx.config.RaffleCount

		raffle := &storage.Raffle{
			ID:             id,
			Owner:          caller,
			Escrow:         decimal.Zero,
			RoyaltyReserve: decimal.Zero,
			RoyaltiesPaid:  decimal.Zero,
		}
		apply(raffle, config)

		if err := tx.storage.UpdateRaffle(raffle); err != nil {
			return err
		}
		return tx.storage.UpdateContractConfig(tx.config)
	})
	if err != nil {
		logger.Debug("create raffle: rejected", zap.Error(err))
		return 0, err
	}

	logger.Debug("create raffle... done", zap.Uint64("raffle id", id))
	return id, nil
}

// ReconfigureRaffle replaces the configuration of a raffle that has not
// opened and has sold nothing.
func (e *Engine) ReconfigureRaffle(ctx context.Context, caller string, id uint64, config Config) error {
	logger.Debug("reconfigure raffle...", zap.Uint64("raffle id", id))

	err := e.atomic(ctx, func(tx *txn) error {
		raffle, err := tx.ownedRaffle(id, caller)
		if err != nil {
			return err
		}
		if raffle.Canceled {
			return ErrRaffleCanceled
		}
		if tx.now >= raffle.StartTime || raffle.TicketsSold > 0 {
			return ErrSaleStarted
		}
		if err := tx.validateConfig(&config); err != nil {
			return err
		}
		slots, err := tx.storage.GetSlotsWithDeposits(id)
		if err != nil {
			return err
		}
		for _, slot := range slots {
			if slot.SlotIndex > config.TotalSlots {
				return fmt.Errorf("%w: slot %d", ErrDepositsOutsideSlots, slot.SlotIndex)
			}
		}

		apply(raffle, config)
		return tx.storage.UpdateRaffle(raffle)
	})
	if err != nil {
		logger.Debug("reconfigure raffle: rejected", zap.Uint64("raffle id", id), zap.Error(err))
		return err
	}

	logger.Debug("reconfigure raffle... done", zap.Uint64("raffle id", id))
	return nil
}

// CancelRaffle stops a raffle before finalization. Sold tickets and deposits
// are unwound by explicit refund and withdraw calls.
func (e *Engine) CancelRaffle(ctx context.Context, caller string, id uint64) error {
	logger.Debug("cancel raffle...", zap.Uint64("raffle id", id))

	err := e.atomic(ctx, func(tx *txn) error {
		raffle, err := tx.ownedRaffle(id, caller)
		if err != nil {
			return err
		}
		if raffle.Canceled {
			return ErrAlreadyCanceled
		}
		if raffle.Finalized {
			return ErrRaffleFinalized
		}
		raffle.Canceled = true
		return tx.storage.UpdateRaffle(raffle)
	})
	if err != nil {
		logger.Debug("cancel raffle: rejected", zap.Uint64("raffle id", id), zap.Error(err))
		return err
	}

	logger.Debug("cancel raffle... done", zap.Uint64("raffle id", id))
	return nil
}

type AllowListEntry struct {
	Address   string `json:"address" binding:"required"`
	Allowance uint64 `json:"allowance"`
}

func (tx *txn) editableRaffle(id uint64, caller string) (*storage.Raffle, error) {
	raffle, err := tx.ownedRaffle(id, caller)
	if err != nil {
		return nil, err
	}
	if raffle.Canceled {
		return nil, ErrRaffleCanceled
	}
	if raffle.Finalized {
		return nil, ErrRaffleFinalized
	}
	if tx.now >= raffle.EndTime {
		return nil, ErrSaleClosed
	}
	return raffle, nil
}

// SetAllowList overwrites the remaining allowance of every listed address.
func (e *Engine) SetAllowList(ctx context.Context, caller string, id uint64, entries []AllowListEntry) error {
	logger.Debug("set allow list...", zap.Uint64("raffle id", id), zap.Int("entries", len(entries)))

	err := e.atomic(ctx, func(tx *txn) error {
		if _, err := tx.editableRaffle(id, caller); err != nil {
			return err
		}

		records := make([]*storage.AllowListEntry, 0, len(entries))
		for _, entry := range entries {
			if entry.Address == "" {
				return ErrInvalidAddress
			}
			records = append(records, &storage.AllowListEntry{
				RaffleID:  id,
				Address:   entry.Address,
				Allowance: entry.Allowance,
			})
		}
		return tx.storage.UpdateAllowListEntries(records)
	})
	if err != nil {
		logger.Debug("set allow list: rejected", zap.Uint64("raffle id", id), zap.Error(err))
		return err
	}

	logger.Debug("set allow list... done", zap.Uint64("raffle id", id))
	return nil
}

// ToggleAllowList flips allow list enforcement and returns the new setting.
func (e *Engine) ToggleAllowList(ctx context.Context, caller string, id uint64) (bool, error) {
	logger.Debug("toggle allow list...", zap.Uint64("raffle id", id))

	var enabled bool
	err := e.atomic(ctx, func(tx *txn) error {
		raffle, err := tx.editableRaffle(id, caller)
		if err != nil {
			return err
		}
		raffle.AllowListEnabled = !raffle.AllowListEnabled
		enabled = raffle.AllowListEnabled
		return tx.storage.UpdateRaffle(raffle)
	})
	if err != nil {
		logger.Debug("toggle allow list: rejected", zap.Uint64("raffle id", id), zap.Error(err))
		return false, err
	}

	logger.Debug("toggle allow list... done", zap.Uint64("raffle id", id), zap.Bool("enabled", enabled))
	return enabled, nil
}
