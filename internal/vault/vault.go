package vault

import (
	"errors"
	"fmt"

	"raffled/internal/ledger"
	"raffled/internal/logger"
	"raffled/internal/storage"

	"go.uber.org/zap"
)

var (
	ErrSlotRange         = errors.New("vault: slot index out of range")
	ErrNoItems           = errors.New("vault: no items given")
	ErrSlotFull          = errors.New("vault: slot nft limit reached")
	ErrRaffleFull        = errors.New("vault: raffle nft limit reached")
	ErrNothingToWithdraw = errors.New("vault: nothing deposited by caller")
	ErrNoWinner          = errors.New("vault: slot has no winner")
	ErrNotWinner         = errors.New("vault: caller is not the slot winner")
	ErrExceedsRemaining  = errors.New("vault: claim exceeds remaining items")
)

type Item struct {
	Contract string `json:"contract" binding:"required"`
	TokenID  string `json:"token_id" binding:"required"`
}

// Vault keeps the ordered deposit list of every slot. Each entry remembers its
// depositor so withdrawals return only what the caller put in.
type Vault struct {
	storage storage.Storage
	ledger  *ledger.Ledger
}

func New(s storage.Storage, l *ledger.Ledger) *Vault {
	return &Vault{
		storage: s,
		ledger:  l,
	}
}

func checkSlot(raffle *storage.Raffle, slotIndex uint32) error {
	if slotIndex == 0 || slotIndex > raffle.TotalSlots {
		return fmt.Errorf("%w: %d not in [1, %d]", ErrSlotRange, slotIndex, raffle.TotalSlots)
	}
	return nil
}

// Deposit appends items to the slot and takes custody of them. Counters on
// raffle are advanced; the caller persists it.
func (v *Vault) Deposit(raffle *storage.Raffle, slotIndex uint32, depositor string, items []Item, nftSlotLimit uint32) error {
	if err := checkSlot(raffle, slotIndex); err != nil {
		return err
	}
	if len(items) == 0 {
		return ErrNoItems
	}

	slot, err := v.storage.GetSlot(raffle.ID, slotIndex)
	if err != nil {
		return err
	}

	n := uint32(len(items))
	if uint64(slot.DepositCount)+uint64(n) > uint64(nftSlotLimit) {
		return fmt.Errorf("%w: slot %d holds %d, limit %d", ErrSlotFull, slotIndex, slot.DepositCount, nftSlotLimit)
	}
	if raffle.DepositedNFTCount+uint64(n) > uint64(raffle.TotalSlots)*uint64(nftSlotLimit) {
		return fmt.Errorf("%w: raffle holds %d", ErrRaffleFull, raffle.DepositedNFTCount)
	}

	deposits := make([]*storage.Deposit, 0, n)
	for i, item := range items {
		if err := v.ledger.TransferNFT(item.Contract, item.TokenID, depositor, v.ledger.Custody()); err != nil {
			return err
		}
		deposits = append(deposits, &storage.Deposit{
			RaffleID:  raffle.ID,
			SlotIndex: slotIndex,
			Position:  slot.DepositCount + uint32(i),
			Depositor: depositor,
			Contract:  item.Contract,
			TokenID:   item.TokenID,
		})
	}
	if err := v.storage.CreateDeposits(deposits); err != nil {
		return err
	}

	if slot.DepositCount == 0 {
		raffle.SlotsWithNFTs++
	}
	slot.DepositCount += n
	raffle.DepositedNFTCount += uint64(n)

	logger.Debug("vault: deposited", zap.Uint64("raffle id", raffle.ID), zap.Uint32("slot", slotIndex), zap.String("depositor", depositor), zap.Uint32("count", n))
	return v.storage.UpdateSlot(slot)
}

// Withdraw returns up to count of the depositor's own items from the slot.
func (v *Vault) Withdraw(raffle *storage.Raffle, slotIndex uint32, depositor string, count uint32) (uint32, error) {
	if err := checkSlot(raffle, slotIndex); err != nil {
		return 0, err
	}
	if count == 0 {
		return 0, ErrNoItems
	}

	deposits, err := v.storage.GetDeposits(raffle.ID, slotIndex)
	if err != nil {
		return 0, err
	}

	var returned []*storage.Deposit
	for _, deposit := range deposits {
		if uint32(len(returned)) == count {
			break
		}
		if deposit.Depositor != depositor || deposit.Withdrawn || deposit.Claimed {
			continue
		}
		if err := v.ledger.TransferNFT(deposit.Contract, deposit.TokenID, v.ledger.Custody(), depositor); err != nil {
			return 0, err
		}
		deposit.Withdrawn = true
		returned = append(returned, deposit)
	}
	if len(returned) == 0 {
		return 0, fmt.Errorf("%w: slot %d", ErrNothingToWithdraw, slotIndex)
	}

	if err := v.storage.UpdateDeposits(returned); err != nil {
		return 0, err
	}
	raffle.WithdrawnNFTCount += uint64(len(returned))

	logger.Debug("vault: withdrawn", zap.Uint64("raffle id", raffle.ID), zap.Uint32("slot", slotIndex), zap.String("depositor", depositor), zap.Int("count", len(returned)))
	return uint32(len(returned)), nil
}

// Claim transfers the next count unclaimed items of the slot to its winner.
func (v *Vault) Claim(raffle *storage.Raffle, slotIndex uint32, claimer string, count uint32) error {
	if err := checkSlot(raffle, slotIndex); err != nil {
		return err
	}

	slot, err := v.storage.GetSlot(raffle.ID, slotIndex)
	if err != nil {
		return err
	}
	if slot.Winner == "" {
		return fmt.Errorf("%w: slot %d", ErrNoWinner, slotIndex)
	}
	if slot.Winner != claimer {
		return fmt.Errorf("%w: slot %d", ErrNotWinner, slotIndex)
	}

	remaining := slot.DepositCount - slot.ClaimedCount
	if count == 0 || count > remaining {
		return fmt.Errorf("%w: %d requested, %d remaining", ErrExceedsRemaining, count, remaining)
	}

	deposits, err := v.storage.GetDeposits(raffle.ID, slotIndex)
	if err != nil {
		return err
	}

	var claimed []*storage.Deposit
	for _, deposit := range deposits {
		if uint32(len(claimed)) == count {
			break
		}
		if deposit.Claimed || deposit.Withdrawn {
			continue
		}
		if err := v.ledger.TransferNFT(deposit.Contract, deposit.TokenID, v.ledger.Custody(), claimer); err != nil {
			return err
		}
		deposit.Claimed = true
		claimed = append(claimed, deposit)
	}
	if uint32(len(claimed)) != count {
		return fmt.Errorf("%w: %d requested, %d available", ErrExceedsRemaining, count, len(claimed))
	}

	if err := v.storage.UpdateDeposits(claimed); err != nil {
		return err
	}
	slot.ClaimedCount += count
	raffle.WithdrawnNFTCount += uint64(count)

	logger.Debug("vault: claimed", zap.Uint64("raffle id", raffle.ID), zap.Uint32("slot", slotIndex), zap.String("winner", claimer), zap.Uint32("count", count))
	return v.storage.UpdateSlot(slot)
}

func (v *Vault) Items(raffleID uint64, slotIndex uint32) ([]*storage.Deposit, error) {
	return v.storage.GetDeposits(raffleID, slotIndex)
}
