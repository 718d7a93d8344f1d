package raffle

import (
	"context"
	"fmt"

	"raffled/internal/ledger"
	"raffled/internal/logger"
	"raffled/internal/storage"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// BuyRaffleTickets sells count tickets to caller and returns the first ticket
// id. value is the native coin attached to the call; token raffles pull the
// cost through the caller's allowance and take no value.
func (e *Engine) BuyRaffleTickets(ctx context.Context, caller string, id uint64, count uint64, value decimal.Decimal) (uint64, error) {
	logger.Debug("buy raffle tickets...", zap.Uint64("raffle id", id), zap.String("buyer", caller), zap.Uint64("count", count))

	var first uint64
	err := e.atomic(ctx, func(tx *txn) error {
		if err := requireCaller(caller); err != nil {
			return err
		}
		raffle, err := tx.raffle(id)
		if err != nil {
			return err
		}
		if raffle.Canceled {
			return ErrRaffleCanceled
		}
		if raffle.Finalized {
			return ErrRaffleFinalized
		}
		if tx.now < raffle.StartTime || tx.now >= raffle.EndTime {
			return ErrSaleNotOpen
		}
		if count == 0 {
			return ErrInvalidCount
		}
		if count > uint64(tx.config.MaxBulkPurchase) {
			return fmt.Errorf("%w: %d above %d", ErrBulkLimit, count, tx.config.MaxBulkPurchase)
		}
		if raffle.TicketsSold+count > raffle.MaxTicketCount {
			return fmt.Errorf("%w: %d left", ErrSoldOut, raffle.MaxTicketCount-raffle.TicketsSold)
		}

		if raffle.AllowListEnabled {
			entry, err := tx.storage.GetAllowListEntry(id, caller)
			if err != nil {
				return err
			}
			if entry.Allowance < count {
				return fmt.Errorf("%w: %d remaining", ErrNotAllowListed, entry.Allowance)
			}
			entry.Allowance -= count
			if err := tx.storage.UpdateAllowListEntries([]*storage.AllowListEntry{entry}); err != nil {
				return err
			}
		}

		cost := raffle.TicketPrice.Mul(decimal.NewFromInt(int64(count)))
		if raffle.Currency == ledger.Native {
			if !value.Equal(cost) {
				return fmt.Errorf("%w: sent %s, cost %s", ErrIncorrectPayment, value, cost)
			}
		} else if !value.IsZero() {
			return ErrUnexpectedValue
		}
		if err := tx.ledger.TransferIn(raffle.Currency, caller, cost); err != nil {
			return err
		}

		first, err = tx.tickets.Issue(raffle, caller, count, cost, tx.now)
		if err != nil {
			return err
		}
		raffle.Escrow = raffle.Escrow.Add(cost)
		return tx.storage.UpdateRaffle(raffle)
	})
	if err != nil {
		logger.Debug("buy raffle tickets: rejected", zap.Uint64("raffle id", id), zap.Error(err))
		return 0, err
	}

	logger.Debug("buy raffle tickets... done", zap.Uint64("raffle id", id), zap.Uint64("first ticket", first))
	return first, nil
}

// RefundRaffleTickets burns the given tickets of a canceled or failed raffle
// and pays their price back to caller. One invalid ticket fails the call.
func (e *Engine) RefundRaffleTickets(ctx context.Context, caller string, id uint64, ticketIDs []uint64) (decimal.Decimal, error) {
	logger.Debug("refund raffle tickets...", zap.Uint64("raffle id", id), zap.String("owner", caller), zap.Int("count", len(ticketIDs)))

	refund := decimal.Zero
	err := e.atomic(ctx, func(tx *txn) error {
		raffle, err := tx.raffle(id)
		if err != nil {
			return err
		}
		if !raffle.Canceled && !failed(raffle) {
			return ErrRefundUnavailable
		}
		if len(ticketIDs) == 0 {
			return ErrInvalidCount
		}

		if err := tx.tickets.Burn(id, caller, ticketIDs); err != nil {
			return err
		}

		refund = raffle.TicketPrice.Mul(decimal.NewFromInt(int64(len(ticketIDs))))
		if raffle.Escrow.LessThan(refund) {
			return fmt.Errorf("%w: escrow %s, refund %s", ErrInsufficientEscrow, raffle.Escrow, refund)
		}
		raffle.Escrow = raffle.Escrow.Sub(refund)
		raffle.TicketsRefunded += uint64(len(ticketIDs))

		if err := tx.ledger.TransferOut(raffle.Currency, caller, refund); err != nil {
			return err
		}
		return tx.storage.UpdateRaffle(raffle)
	})
	if err != nil {
		logger.Debug("refund raffle tickets: rejected", zap.Uint64("raffle id", id), zap.Error(err))
		return decimal.Zero, err
	}

	logger.Debug("refund raffle tickets... done", zap.Uint64("raffle id", id), zap.String("amount", refund.String()))
	return refund, nil
}
