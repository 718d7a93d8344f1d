package storage

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

var ErrNotFound = errors.New("storage: record not found")

type Storage interface {
	// Atomic runs fn against a view of the storage whose writes are discarded
	// when fn returns an error.
	Atomic(ctx context.Context, fn func(Storage) error) error

	// contract config
	GetContractConfig() (*ContractConfig, error)
	UpdateContractConfig(config *ContractConfig) error

	// raffle
	GetRaffle(id uint64) (*Raffle, error)
	GetRafflesPendingSettlement(now int64, limit int) ([]*Raffle, error)
	UpdateRaffle(raffle *Raffle) error

	// slot
	GetSlot(raffleID uint64, slotIndex uint32) (*Slot, error)
	GetSlotsWithDeposits(raffleID uint64) ([]*Slot, error)
	UpdateSlot(slot *Slot) error
	GetDeposits(raffleID uint64, slotIndex uint32) ([]*Deposit, error)
	CreateDeposits(deposits []*Deposit) error
	UpdateDeposits(deposits []*Deposit) error

	// ticket
	GetTicket(id uint64) (*Ticket, error)
	CountTicketsByOwner(raffleID uint64, owner string) (uint64, error)
	CreateTickets(tickets []*Ticket) error
	UpdateTickets(tickets []*Ticket) error
	GetPurchases(raffleID uint64) ([]*Purchase, error)
	CreatePurchase(purchase *Purchase) error

	// allow list
	GetAllowListEntry(raffleID uint64, address string) (*AllowListEntry, error)
	UpdateAllowListEntries(entries []*AllowListEntry) error

	// randomness
	GetRandomnessRequest(raffleID uint64) (*RandomnessRequest, error)
	GetRandomnessRequestByID(requestID string) (*RandomnessRequest, error)
	UpdateRandomnessRequest(request *RandomnessRequest) error

	// ledger
	GetBalance(currency string, address string) (decimal.Decimal, error)
	UpdateBalance(balance *Balance) error
	GetTokenAllowance(currency string, owner string, spender string) (decimal.Decimal, error)
	UpdateTokenAllowance(allowance *TokenAllowance) error
	GetNFTOwner(contract string, tokenID string) (string, error)
	UpdateNFTOwner(owner *NFTOwner) error
	GetFeeAccrual(currency string) (decimal.Decimal, error)
	UpdateFeeAccrual(accrual *FeeAccrual) error
}

// settlementPending reports whether a raffle still needs finalization or a
// revenue sweep once its sale window has closed.
func settlementPending(raffle *Raffle, now int64) bool {
	if raffle.Canceled || raffle.RevenueDistributed || raffle.EndTime > now {
		return false
	}
	if !raffle.Finalized {
		return true
	}
	return raffle.TicketsSold > 0 && raffle.TicketsSold >= raffle.MinTicketCount
}
