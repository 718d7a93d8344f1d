package raffle

import (
	"errors"
	"fmt"
	"slices"

	"raffled/internal/storage"
	"raffled/internal/tickets"

	"github.com/shopspring/decimal"
)

type RaffleState struct {
	ID                 uint64          `json:"id"`
	State              State           `json:"state"`
	DepositedNFTCount  uint64          `json:"deposited_nft_count"`
	WithdrawnNFTCount  uint64          `json:"withdrawn_nft_count"`
	SlotsWithNFTs      uint32          `json:"slots_with_nfts"`
	AllowListEnabled   bool            `json:"allow_list_enabled"`
	Canceled           bool            `json:"canceled"`
	Finalized          bool            `json:"finalized"`
	RevenueDistributed bool            `json:"revenue_distributed"`
	TicketsSold        uint64          `json:"tickets_sold"`
	TicketsRefunded    uint64          `json:"tickets_refunded"`
	Escrow             decimal.Decimal `json:"escrow"`
	RoyaltyReserve     decimal.Decimal `json:"royalty_reserve"`
	RoyaltiesPaid      decimal.Decimal `json:"royalties_paid"`
}

type RaffleConfig struct {
	ID             uint64 `json:"id"`
	Owner          string `json:"owner"`
	PlatformFeeBps uint32 `json:"platform_fee_bps"`
	Config
}

type SlotInfo struct {
	RaffleID             uint64 `json:"raffle_id"`
	Slot                 uint32 `json:"slot"`
	Winner               string `json:"winner"`
	DepositCount         uint32 `json:"deposit_count"`
	ClaimedCount         uint32 `json:"claimed_count"`
	RoyaltiesDistributed uint32 `json:"royalties_distributed"`
}

type DepositedNFT struct {
	Depositor string `json:"depositor"`
	Contract  string `json:"contract"`
	TokenID   string `json:"token_id"`
	Withdrawn bool   `json:"withdrawn"`
	Claimed   bool   `json:"claimed"`
}

func (e *Engine) GetRaffleState(id uint64) (*RaffleState, error) {
	var state *RaffleState
	err := e.read(func(tx *txn) error {
		raffle, err := tx.raffle(id)
		if err != nil {
			return err
		}
		state = &RaffleState{
			ID:                 raffle.ID,
			State:              stateOf(raffle, tx.now),
			DepositedNFTCount:  raffle.DepositedNFTCount,
			WithdrawnNFTCount:  raffle.WithdrawnNFTCount,
			SlotsWithNFTs:      raffle.SlotsWithNFTs,
			AllowListEnabled:   raffle.AllowListEnabled,
			Canceled:           raffle.Canceled,
			Finalized:          raffle.Finalized,
			RevenueDistributed: raffle.RevenueDistributed,
			TicketsSold:        raffle.TicketsSold,
			TicketsRefunded:    raffle.TicketsRefunded,
			Escrow:             raffle.Escrow,
			RoyaltyReserve:     raffle.RoyaltyReserve,
			RoyaltiesPaid:      raffle.RoyaltiesPaid,
		}
		return nil
	})
	return state, err
}

func (e *Engine) GetRaffleConfig(id uint64) (*RaffleConfig, error) {
	var config *RaffleConfig
	err := e.read(func(tx *txn) error {
		raffle, err := tx.raffle(id)
		if err != nil {
			return err
		}
		fee := tx.config.PlatformFeeBps
		if raffle.RevenueDistributed {
			fee = raffle.PlatformFeeBps
		}
		config = &RaffleConfig{
			ID:             raffle.ID,
			Owner:          raffle.Owner,
			PlatformFeeBps: fee,
			Config: Config{
				Currency:       raffle.Currency,
				StartTime:      raffle.StartTime,
				EndTime:        raffle.EndTime,
				MaxTicketCount: raffle.MaxTicketCount,
				MinTicketCount: raffle.MinTicketCount,
				TicketPrice:    raffle.TicketPrice,
				TotalSlots:     raffle.TotalSlots,
				Name:           raffle.Name,
				PaymentSplits:  slices.Clone(raffle.PaymentSplits),
			},
		}
		return nil
	})
	return config, err
}

func (tx *txn) slot(id uint64, slotIndex uint32) (*storage.Slot, error) {
	raffle, err := tx.raffle(id)
	if err != nil {
		return nil, err
	}
	if slotIndex == 0 || slotIndex > raffle.TotalSlots {
		return nil, fmt.Errorf("%w: slot %d", ErrInvalidSlots, slotIndex)
	}
	return tx.storage.GetSlot(id, slotIndex)
}

func (e *Engine) GetSlotInfo(id uint64, slotIndex uint32) (*SlotInfo, error) {
	var info *SlotInfo
	err := e.read(func(tx *txn) error {
		slot, err := tx.slot(id, slotIndex)
		if err != nil {
			return err
		}
		info = &SlotInfo{
			RaffleID:             id,
			Slot:                 slotIndex,
			Winner:               slot.Winner,
			DepositCount:         slot.DepositCount,
			ClaimedCount:         slot.ClaimedCount,
			RoyaltiesDistributed: slot.RoyaltiesDistributed,
		}
		return nil
	})
	return info, err
}

// GetSlotWinner returns the winner of a slot, or an empty string while none
// is assigned.
func (e *Engine) GetSlotWinner(id uint64, slotIndex uint32) (string, error) {
	info, err := e.GetSlotInfo(id, slotIndex)
	if err != nil {
		return "", err
	}
	return info.Winner, nil
}

func (e *Engine) GetDepositedNftsInSlot(id uint64, slotIndex uint32) ([]DepositedNFT, error) {
	var nfts []DepositedNFT
	err := e.read(func(tx *txn) error {
		if _, err := tx.slot(id, slotIndex); err != nil {
			return err
		}
		deposits, err := tx.vault.Items(id, slotIndex)
		if err != nil {
			return err
		}
		nfts = make([]DepositedNFT, 0, len(deposits))
		for _, deposit := range deposits {
			nfts = append(nfts, DepositedNFT{
				Depositor: deposit.Depositor,
				Contract:  deposit.Contract,
				TokenID:   deposit.TokenID,
				Withdrawn: deposit.Withdrawn,
				Claimed:   deposit.Claimed,
			})
		}
		return nil
	})
	return nfts, err
}

func (e *Engine) GetAllowList(id uint64, address string) (uint64, error) {
	var allowance uint64
	err := e.read(func(tx *txn) error {
		if _, err := tx.raffle(id); err != nil {
			return err
		}
		entry, err := tx.storage.GetAllowListEntry(id, address)
		if err != nil {
			return err
		}
		allowance = entry.Allowance
		return nil
	})
	return allowance, err
}

func (e *Engine) TicketOwnerOf(ticketID uint64) (string, error) {
	var owner string
	err := e.read(func(tx *txn) error {
		var err error
		owner, err = tx.tickets.OwnerOf(ticketID)
		if errors.Is(err, tickets.ErrUnknownTicket) {
			return fmt.Errorf("ticket %d: %w", ticketID, storage.ErrNotFound)
		}
		return err
	})
	return owner, err
}

func (e *Engine) TicketBalanceOf(id uint64, owner string) (uint64, error) {
	var balance uint64
	err := e.read(func(tx *txn) error {
		var err error
		balance, err = tx.tickets.BalanceOf(id, owner)
		return err
	})
	return balance, err
}

func (e *Engine) GetRandomnessRequest(id uint64) (*storage.RandomnessRequest, error) {
	var request *storage.RandomnessRequest
	err := e.read(func(tx *txn) error {
		var err error
		request, err = tx.storage.GetRandomnessRequest(id)
		return err
	})
	return request, err
}

// PendingSettlement lists closed raffles that still need finalization or a
// revenue sweep.
func (e *Engine) PendingSettlement(limit int) ([]*storage.Raffle, error) {
	var raffles []*storage.Raffle
	err := e.read(func(tx *txn) error {
		var err error
		raffles, err = tx.storage.GetRafflesPendingSettlement(tx.now, limit)
		return err
	})
	return raffles, err
}

func (e *Engine) BalanceOf(currency string, address string) (decimal.Decimal, error) {
	var balance decimal.Decimal
	err := e.read(func(tx *txn) error {
		var err error
		balance, err = tx.ledger.BalanceOf(currency, address)
		return err
	})
	return balance, err
}

func (e *Engine) FeesAccrued(currency string) (decimal.Decimal, error) {
	var amount decimal.Decimal
	err := e.read(func(tx *txn) error {
		var err error
		amount, err = tx.storage.GetFeeAccrual(currency)
		return err
	})
	return amount, err
}

func (e *Engine) NFTOwner(contract string, tokenID string) (string, error) {
	var owner string
	err := e.read(func(tx *txn) error {
		var err error
		owner, err = tx.ledger.OwnerOfNFT(contract, tokenID)
		return err
	})
	return owner, err
}
