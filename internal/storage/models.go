package storage

import "github.com/shopspring/decimal"

type PaymentSplit struct {
	Recipient string `json:"recipient"`
	Bps       uint32 `json:"bps"`
}

type ContractConfig struct {
	ID                  uint8    `gorm:"primaryKey;autoIncrement:false"`
	DAOAddress          string   `gorm:"not null"`
	DAOInitialized      bool     `gorm:"not null"`
	RaffleCount         uint64   `gorm:"not null"`
	MaxNumberSlots      uint32   `gorm:"not null"`
	MaxBulkPurchase     uint32   `gorm:"not null"`
	NFTSlotLimit        uint32   `gorm:"not null"`
	PlatformFeeBps      uint32   `gorm:"not null"`
	UnsafeRandomness    bool     `gorm:"not null"`
	SupportedCurrencies []string `gorm:"serializer:json"`
}

type Raffle struct {
	ID                 uint64          `gorm:"primaryKey;autoIncrement:false"`
	Owner              string          `gorm:"index;not null"`
	Currency           string          `gorm:"not null"`
	StartTime          int64           `gorm:"not null"`
	EndTime            int64           `gorm:"index;not null"`
	MaxTicketCount     uint64          `gorm:"not null"`
	MinTicketCount     uint64          `gorm:"not null"`
	TicketPrice        decimal.Decimal `gorm:"type:text;not null"`
	TotalSlots         uint32          `gorm:"not null"`
	Name               string
	PaymentSplits      []PaymentSplit  `gorm:"serializer:json"`
	PlatformFeeBps     uint32
	Canceled           bool            `gorm:"index"`
	Finalized          bool            `gorm:"index"`
	RevenueDistributed bool
	AllowListEnabled   bool
	TicketsSold        uint64
	TicketsRefunded    uint64
	DepositedNFTCount  uint64
	WithdrawnNFTCount  uint64
	SlotsWithNFTs      uint32
	Escrow             decimal.Decimal `gorm:"type:text"`
	RoyaltyReserve     decimal.Decimal `gorm:"type:text"`
	RoyaltiesPaid      decimal.Decimal `gorm:"type:text"`
}

type Slot struct {
	RaffleID             uint64 `gorm:"primaryKey;autoIncrement:false"`
	SlotIndex            uint32 `gorm:"primaryKey;autoIncrement:false"`
	Winner               string
	DepositCount         uint32
	ClaimedCount         uint32
	RoyaltiesDistributed uint32
}

type Deposit struct {
	ID          uint64 `gorm:"primaryKey"`
	RaffleID    uint64 `gorm:"index:idx_deposit_slot;not null"`
	SlotIndex   uint32 `gorm:"index:idx_deposit_slot;not null"`
	Position    uint32 `gorm:"index:idx_deposit_slot;not null"`
	Depositor   string `gorm:"index;not null"`
	Contract    string `gorm:"not null"`
	TokenID     string `gorm:"not null"`
	Withdrawn   bool
	Claimed     bool
	RoyaltyPaid bool
}

type Ticket struct {
	ID       uint64 `gorm:"primaryKey;autoIncrement:false"`
	RaffleID uint64 `gorm:"index:idx_ticket_owner;not null"`
	Sequence uint64 `gorm:"not null"`
	Owner    string `gorm:"index:idx_ticket_owner;not null"`
	Burned   bool
}

type Purchase struct {
	ID            uint64          `gorm:"primaryKey"`
	RaffleID      uint64          `gorm:"index;not null"`
	Buyer         string          `gorm:"not null"`
	FirstSequence uint64          `gorm:"not null"`
	Count         uint64          `gorm:"not null"`
	Paid          decimal.Decimal `gorm:"type:text"`
	PurchasedAt   int64
}

type AllowListEntry struct {
	RaffleID  uint64 `gorm:"primaryKey;autoIncrement:false"`
	Address   string `gorm:"primaryKey"`
	Allowance uint64
}

type RandomnessRequest struct {
	RaffleID    uint64 `gorm:"primaryKey;autoIncrement:false"`
	RequestID   string `gorm:"uniqueIndex;not null"`
	Seed        string
	Fulfilled   bool
	RequestedAt int64
	FulfilledAt int64
}

type Balance struct {
	Currency string          `gorm:"primaryKey"`
	Address  string          `gorm:"primaryKey"`
	Amount   decimal.Decimal `gorm:"type:text"`
}

type TokenAllowance struct {
	Currency string          `gorm:"primaryKey"`
	Owner    string          `gorm:"primaryKey"`
	Spender  string          `gorm:"primaryKey"`
	Amount   decimal.Decimal `gorm:"type:text"`
}

type NFTOwner struct {
	Contract string `gorm:"primaryKey"`
	TokenID  string `gorm:"primaryKey"`
	Owner    string `gorm:"index;not null"`
}

type FeeAccrual struct {
	Currency string          `gorm:"primaryKey"`
	Amount   decimal.Decimal `gorm:"type:text"`
}
