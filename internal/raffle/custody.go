package raffle

import (
	"context"

	"raffled/internal/logger"
	"raffled/internal/vault"

	"go.uber.org/zap"
)

type SlotDeposit struct {
	Slot  uint32       `json:"slot" binding:"required"`
	Items []vault.Item `json:"items" binding:"required,min=1,dive"`
}

type RaffleDeposit struct {
	RaffleID uint64        `json:"raffle_id" binding:"required"`
	Slots    []SlotDeposit `json:"slots" binding:"required,min=1,dive"`
}

func (tx *txn) deposit(caller string, id uint64, deposits []SlotDeposit) error {
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
	if len(deposits) == 0 {
		return ErrInvalidCount
	}

	for _, deposit := range deposits {
		if err := tx.vault.Deposit(raffle, deposit.Slot, caller, deposit.Items, tx.config.NFTSlotLimit); err != nil {
			return err
		}
	}
	return tx.storage.UpdateRaffle(raffle)
}

// DepositERC721 deposits items into a single slot.
func (e *Engine) DepositERC721(ctx context.Context, caller string, id uint64, slot uint32, items []vault.Item) error {
	return e.DepositNFTsToRaffle(ctx, caller, id, []SlotDeposit{{Slot: slot, Items: items}})
}

// DepositNFTsToRaffle deposits into several slots of one raffle at once.
func (e *Engine) DepositNFTsToRaffle(ctx context.Context, caller string, id uint64, deposits []SlotDeposit) error {
	logger.Debug("deposit nfts...", zap.Uint64("raffle id", id), zap.String("depositor", caller), zap.Int("slots", len(deposits)))

	err := e.atomic(ctx, func(tx *txn) error {
		return tx.deposit(caller, id, deposits)
	})
	if err != nil {
		logger.Debug("deposit nfts: rejected", zap.Uint64("raffle id", id), zap.Error(err))
		return err
	}

	logger.Debug("deposit nfts... done", zap.Uint64("raffle id", id))
	return nil
}

// BatchDepositToRaffle deposits into several raffles; all or nothing.
func (e *Engine) BatchDepositToRaffle(ctx context.Context, caller string, deposits []RaffleDeposit) error {
	logger.Debug("batch deposit nfts...", zap.String("depositor", caller), zap.Int("raffles", len(deposits)))

	err := e.atomic(ctx, func(tx *txn) error {
		if len(deposits) == 0 {
			return ErrInvalidCount
		}
		for _, deposit := range deposits {
			if err := tx.deposit(caller, deposit.RaffleID, deposit.Slots); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		logger.Debug("batch deposit nfts: rejected", zap.Error(err))
		return err
	}

	logger.Debug("batch deposit nfts... done")
	return nil
}

// WithdrawDepositedERC721 returns up to count of caller's own items from a
// slot of a canceled or failed raffle, and reports how many were returned.
func (e *Engine) WithdrawDepositedERC721(ctx context.Context, caller string, id uint64, slot uint32, count uint32) (uint32, error) {
	logger.Debug("withdraw nfts...", zap.Uint64("raffle id", id), zap.Uint32("slot", slot), zap.String("depositor", caller))

	var withdrawn uint32
	err := e.atomic(ctx, func(tx *txn) error {
		raffle, err := tx.raffle(id)
		if err != nil {
			return err
		}
		if !raffle.Canceled && !failed(raffle) {
			return ErrWithdrawUnavailable
		}
		withdrawn, err = tx.vault.Withdraw(raffle, slot, caller, count)
		if err != nil {
			return err
		}
		return tx.storage.UpdateRaffle(raffle)
	})
	if err != nil {
		logger.Debug("withdraw nfts: rejected", zap.Uint64("raffle id", id), zap.Error(err))
		return 0, err
	}

	logger.Debug("withdraw nfts... done", zap.Uint64("raffle id", id), zap.Uint32("count", withdrawn))
	return withdrawn, nil
}

// ClaimERC721Rewards hands count unclaimed items of a slot to its winner.
func (e *Engine) ClaimERC721Rewards(ctx context.Context, caller string, id uint64, slot uint32, count uint32) error {
	logger.Debug("claim nfts...", zap.Uint64("raffle id", id), zap.Uint32("slot", slot), zap.String("winner", caller))

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
		if err := tx.vault.Claim(raffle, slot, caller, count); err != nil {
			return err
		}
		return tx.storage.UpdateRaffle(raffle)
	})
	if err != nil {
		logger.Debug("claim nfts: rejected", zap.Uint64("raffle id", id), zap.Error(err))
		return err
	}

	logger.Debug("claim nfts... done", zap.Uint64("raffle id", id), zap.Uint32("slot", slot))
	return nil
}
