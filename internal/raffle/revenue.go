package raffle

import (
	"context"
	"fmt"

	"raffled/internal/logger"
	"raffled/internal/royalty"
	"raffled/internal/storage"
	"raffled/internal/waterfall"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// DistributeCapturedRaffleRevenue runs the revenue waterfall of a successful
// raffle exactly once. The royalty reserve stays in custody for
// DistributeSecondarySaleFees and the platform fee accrues for
// DistributeRoyalties.
func (e *Engine) DistributeCapturedRaffleRevenue(ctx context.Context, caller string, id uint64) (*waterfall.Breakdown, error) {
	logger.Debug("distribute captured revenue...", zap.Uint64("raffle id", id))

	var breakdown *waterfall.Breakdown
	err := e.atomic(ctx, func(tx *txn) error {
		raffle, err := tx.raffle(id)
		if err != nil {
			return err
		}
		if raffle.Canceled {
			return ErrRaffleCanceled
		}
		if !raffle.Finalized {
			return ErrNotFinalized
		}
		if failed(raffle) {
			return ErrRaffleFailed
		}
		if raffle.RevenueDistributed {
			return ErrAlreadyDistributed
		}

		// the fee in force at distribution applies and is then frozen on the raffle
		raffle.PlatformFeeBps = tx.config.PlatformFeeBps
		breakdown, err = waterfall.Compute(raffle.TicketPrice, raffle.TicketsSold, raffle.PlatformFeeBps, raffle.PaymentSplits)
		if err != nil {
			return err
		}
		if raffle.Escrow.LessThan(breakdown.Revenue) {
			return fmt.Errorf("%w: escrow %s, revenue %s", ErrInsufficientEscrow, raffle.Escrow, breakdown.Revenue)
		}

		raffle.RevenueDistributed = true
		raffle.Escrow = raffle.Escrow.Sub(breakdown.Revenue)
		raffle.RoyaltyReserve = breakdown.RoyaltyReserve

		accrued, err := tx.storage.GetFeeAccrual(raffle.Currency)
		if err != nil {
			return err
		}
		err = tx.storage.UpdateFeeAccrual(&storage.FeeAccrual{
			Currency: raffle.Currency,
			Amount:   accrued.Add(breakdown.PlatformFee),
		})
		if err != nil {
			return err
		}

		for _, payout := range breakdown.Splits {
			if err := tx.ledger.TransferOut(raffle.Currency, payout.Recipient, payout.Amount); err != nil {
				return err
			}
		}
		if err := tx.ledger.TransferOut(raffle.Currency, raffle.Owner, breakdown.RafflerRemainder); err != nil {
			return err
		}
		return tx.storage.UpdateRaffle(raffle)
	})
	if err != nil {
		logger.Debug("distribute captured revenue: rejected", zap.Uint64("raffle id", id), zap.Error(err))
		return nil, err
	}

	logger.Debug("distribute captured revenue... done",
		zap.Uint64("raffle id", id),
		zap.String("revenue", breakdown.Revenue.String()),
		zap.String("raffler", breakdown.RafflerRemainder.String()),
	)
	return breakdown, nil
}

// DistributeRoyalties sweeps the platform fees accrued in currency to the
// dao owner.
func (e *Engine) DistributeRoyalties(ctx context.Context, caller string, currency string) (decimal.Decimal, error) {
	logger.Debug("distribute royalties...", zap.String("currency", currency))

	amount := decimal.Zero
	err := e.atomic(ctx, func(tx *txn) error {
		accrued, err := tx.storage.GetFeeAccrual(currency)
		if err != nil {
			return err
		}
		if !accrued.IsPositive() {
			return fmt.Errorf("%w: no %s fees accrued", ErrNothingToDistribute, currency)
		}
		amount = accrued

		err = tx.storage.UpdateFeeAccrual(&storage.FeeAccrual{
			Currency: currency,
			Amount:   decimal.Zero,
		})
		if err != nil {
			return err
		}
		return tx.ledger.TransferOut(currency, tx.config.DAOAddress, accrued)
	})
	if err != nil {
		logger.Debug("distribute royalties: rejected", zap.String("currency", currency), zap.Error(err))
		return decimal.Zero, err
	}

	logger.Debug("distribute royalties... done", zap.String("currency", currency), zap.String("amount", amount.String()))
	return amount, nil
}

// DistributeSecondarySaleFees pays creator royalties for up to count not yet
// settled NFTs of a slot out of the raffle's royalty reserve. Each NFT owns an
// equal share of the reserve; a creator registered at bps receives
// share*bps/RoyaltyReserveBps. Unregistered shares stay in the reserve.
func (e *Engine) DistributeSecondarySaleFees(ctx context.Context, caller string, id uint64, slotIndex uint32, count uint32) (decimal.Decimal, error) {
	logger.Debug("distribute secondary sale fees...", zap.Uint64("raffle id", id), zap.Uint32("slot", slotIndex))

	paid := decimal.Zero
	err := e.atomic(ctx, func(tx *txn) error {
		raffle, err := tx.raffle(id)
		if err != nil {
			return err
		}
		if !raffle.RevenueDistributed {
			return ErrRevenueNotCaptured
		}
		if slotIndex == 0 || slotIndex > raffle.TotalSlots {
			return fmt.Errorf("%w: slot %d", ErrInvalidSlots, slotIndex)
		}
		if count == 0 {
			return ErrInvalidCount
		}

		slot, err := tx.storage.GetSlot(id, slotIndex)
		if err != nil {
			return err
		}
		deposits, err := tx.storage.GetDeposits(id, slotIndex)
		if err != nil {
			return err
		}

		share := waterfall.NFTShare(raffle.RoyaltyReserve, raffle.DepositedNFTCount)
		var settled []*storage.Deposit
		for _, deposit := range deposits {
			if uint32(len(settled)) == count {
				break
			}
			if deposit.RoyaltyPaid {
				continue
			}

			splits, err := e.registry.RoyaltySplitFor(ctx, deposit.Contract, deposit.TokenID)
			if err != nil {
				return err
			}
			if !payable(splits) {
				// the share stays in the reserve, as for unregistered items
				logger.Warn("secondary sale fees: unpayable royalty splits, skipping",
					zap.Uint64("raffle id", id), zap.String("contract", deposit.Contract), zap.String("token id", deposit.TokenID))
				splits = nil
			}

			for _, split := range splits {
				amount := waterfall.RoyaltyPayout(share, split.Bps)
				if raffle.RoyaltiesPaid.Add(amount).GreaterThan(raffle.RoyaltyReserve) {
					return fmt.Errorf("%w: royalty reserve exhausted", ErrInsufficientEscrow)
				}
				if err := tx.ledger.TransferOut(raffle.Currency, split.Recipient, amount); err != nil {
					return err
				}
				raffle.RoyaltiesPaid = raffle.RoyaltiesPaid.Add(amount)
				paid = paid.Add(amount)
			}

			deposit.RoyaltyPaid = true
			settled = append(settled, deposit)
		}
		if len(settled) == 0 {
			return fmt.Errorf("%w: slot %d", ErrRoyaltiesSettled, slotIndex)
		}

		if err := tx.storage.UpdateDeposits(settled); err != nil {
			return err
		}
		slot.RoyaltiesDistributed += uint32(len(settled))
		if err := tx.storage.UpdateSlot(slot); err != nil {
			return err
		}
		return tx.storage.UpdateRaffle(raffle)
	})
	if err != nil {
		logger.Debug("distribute secondary sale fees: rejected", zap.Uint64("raffle id", id), zap.Error(err))
		return decimal.Zero, err
	}

	logger.Debug("distribute secondary sale fees... done", zap.Uint64("raffle id", id), zap.String("paid", paid.String()))
	return paid, nil
}

// payable reports whether splits fit within the reserve rate and name a
// recipient each.
func payable(splits []royalty.Split) bool {
	var total uint32
	for _, split := range splits {
		if split.Recipient == "" {
			return false
		}
		total += split.Bps
	}
	return total <= waterfall.RoyaltyReserveBps
}
