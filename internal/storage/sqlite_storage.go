package storage

import (
	"context"

	"raffled/internal/logger"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
)

const MemoryPath = ":memory:"

type SqliteStorage struct {
	db *gorm.DB
}

func NewSqliteStorage(path string) (*SqliteStorage, error) {

	logger.Debug("initializing database...", zap.String("path", path))
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, err
	}

	if path == MemoryPath {
		// every pooled connection would otherwise open its own empty database
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}

	err = db.AutoMigrate(
		&ContractConfig{},
		&Raffle{},
		&Slot{},
		&Deposit{},
		&Ticket{},
		&Purchase{},
		&AllowListEntry{},
		&RandomnessRequest{},
		&Balance{},
		&TokenAllowance{},
		&NFTOwner{},
		&FeeAccrual{},
	)
	if err != nil {
		return nil, err
	}

	logger.Debug("initializing database... done")
	return &SqliteStorage{
		db: db,
	}, nil
}

func (s *SqliteStorage) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *SqliteStorage) Atomic(ctx context.Context, fn func(Storage) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&SqliteStorage{db: tx})
	})
}

func (s *SqliteStorage) upsert(value any) error {
	return s.db.Clauses(clause.OnConflict{UpdateAll: true}).Create(value).Error
}

func (s *SqliteStorage) GetContractConfig() (*ContractConfig, error) {
	var config ContractConfig
	tx := s.db.Where("id = ?", 1).Limit(1).Find(&config)
	if tx.Error != nil {
		return nil, tx.Error
	}
	if tx.RowsAffected == 0 {
		return nil, ErrNotFound
	}
	return &config, nil
}

func (s *SqliteStorage) UpdateContractConfig(config *ContractConfig) error {
	config.ID = 1
	return s.upsert(config)
}

func (s *SqliteStorage) GetRaffle(id uint64) (*Raffle, error) {
	var raffle Raffle
	tx := s.db.Where("id = ?", id).Limit(1).Find(&raffle)
	if tx.Error != nil {
		return nil, tx.Error
	}
	if tx.RowsAffected == 0 {
		return nil, ErrNotFound
	}
	return &raffle, nil
}

func (s *SqliteStorage) GetRafflesPendingSettlement(now int64, limit int) ([]*Raffle, error) {
	logger.Debug("getting raffles pending settlement...")

	// sqlite reads a negative limit as no limit
	if limit <= 0 {
		limit = -1
	}

	var raffles []*Raffle
	err := s.db.Raw(`
		select r.*
		from raffles r
		where r.canceled = false
		  and r.revenue_distributed = false
		  and r.end_time <= ?
		  and (r.finalized = false or (r.tickets_sold > 0 and r.tickets_sold >= r.min_ticket_count))
		order by r.id
		limit ?
	`, now, limit).Scan(&raffles).Error
	if err != nil {
		return nil, err
	}

	logger.Debug("getting raffles pending settlement... done", zap.Int("count", len(raffles)))
	return raffles, nil
}

func (s *SqliteStorage) UpdateRaffle(raffle *Raffle) error {
	return s.upsert(raffle)
}

func (s *SqliteStorage) GetSlot(raffleID uint64, slotIndex uint32) (*Slot, error) {
	var slot Slot
	tx := s.db.Where("raffle_id = ? and slot_index = ?", raffleID, slotIndex).Limit(1).Find(&slot)
	if tx.Error != nil {
		return nil, tx.Error
	}
	if tx.RowsAffected == 0 {
		return &Slot{RaffleID: raffleID, SlotIndex: slotIndex}, nil
	}
	return &slot, nil
}

func (s *SqliteStorage) GetSlotsWithDeposits(raffleID uint64) ([]*Slot, error) {
	var slots []*Slot
	err := s.db.Where("raffle_id = ? and deposit_count > 0", raffleID).Order("slot_index").Find(&slots).Error
	if err != nil {
		return nil, err
	}
	return slots, nil
}

func (s *SqliteStorage) UpdateSlot(slot *Slot) error {
	return s.upsert(slot)
}

func (s *SqliteStorage) GetDeposits(raffleID uint64, slotIndex uint32) ([]*Deposit, error) {
	var deposits []*Deposit
	err := s.db.Where("raffle_id = ? and slot_index = ?", raffleID, slotIndex).Order("position").Find(&deposits).Error
	if err != nil {
		return nil, err
	}
	return deposits, nil
}

func (s *SqliteStorage) CreateDeposits(deposits []*Deposit) error {
	if len(deposits) == 0 {
		return nil
	}
	return s.db.CreateInBatches(deposits, 100).Error
}

func (s *SqliteStorage) UpdateDeposits(deposits []*Deposit) error {
	if len(deposits) == 0 {
		return nil
	}
	return s.db.Clauses(clause.OnConflict{UpdateAll: true}).CreateInBatches(deposits, 100).Error
}

func (s *SqliteStorage) GetTicket(id uint64) (*Ticket, error) {
	var ticket Ticket
	tx := s.db.Where("id = ?", id).Limit(1).Find(&ticket)
	if tx.Error != nil {
		return nil, tx.Error
	}
	if tx.RowsAffected == 0 {
		return nil, ErrNotFound
	}
	return &ticket, nil
}

func (s *SqliteStorage) CountTicketsByOwner(raffleID uint64, owner string) (uint64, error) {
	var count int64
	err := s.db.Model(&Ticket{}).
		Where("raffle_id = ? and owner = ? and burned = false", raffleID, owner).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return uint64(count), nil
}

func (s *SqliteStorage) CreateTickets(tickets []*Ticket) error {
	logger.Debug("creating tickets...", zap.Int("count", len(tickets)))

	if len(tickets) == 0 {
		return nil
	}

	if err := s.db.CreateInBatches(tickets, 100).Error; err != nil {
		return err
	}

	logger.Debug("creating tickets... done")
	return nil
}

func (s *SqliteStorage) UpdateTickets(tickets []*Ticket) error {
	if len(tickets) == 0 {
		return nil
	}
	return s.db.Clauses(clause.OnConflict{UpdateAll: true}).CreateInBatches(tickets, 100).Error
}

func (s *SqliteStorage) GetPurchases(raffleID uint64) ([]*Purchase, error) {
	var purchases []*Purchase
	err := s.db.Where("raffle_id = ?", raffleID).Order("first_sequence").Find(&purchases).Error
	if err != nil {
		return nil, err
	}
	return purchases, nil
}

func (s *SqliteStorage) CreatePurchase(purchase *Purchase) error {
	return s.db.Create(purchase).Error
}

func (s *SqliteStorage) GetAllowListEntry(raffleID uint64, address string) (*AllowListEntry, error) {
	var entry AllowListEntry
	tx := s.db.Where("raffle_id = ? and address = ?", raffleID, address).Limit(1).Find(&entry)
	if tx.Error != nil {
		return nil, tx.Error
	}
	if tx.RowsAffected == 0 {
		return &AllowListEntry{RaffleID: raffleID, Address: address}, nil
	}
	return &entry, nil
}

func (s *SqliteStorage) UpdateAllowListEntries(entries []*AllowListEntry) error {
	logger.Debug("update allow list entries...")

	if len(entries) == 0 {
		logger.Debug("no allow list entries to persist")
		return nil
	}

	err := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "raffle_id"}, {Name: "address"}},
		DoUpdates: clause.AssignmentColumns([]string{"allowance"}),
	}).CreateInBatches(entries, 100).Error
	if err != nil {
		return err
	}

	logger.Debug("update allow list entries... done")
	return nil
}

func (s *SqliteStorage) GetRandomnessRequest(raffleID uint64) (*RandomnessRequest, error) {
	var request RandomnessRequest
	tx := s.db.Where("raffle_id = ?", raffleID).Limit(1).Find(&request)
	if tx.Error != nil {
		return nil, tx.Error
	}
	if tx.RowsAffected == 0 {
		return nil, ErrNotFound
	}
	return &request, nil
}

func (s *SqliteStorage) GetRandomnessRequestByID(requestID string) (*RandomnessRequest, error) {
	var request RandomnessRequest
	tx := s.db.Where("request_id = ?", requestID).Limit(1).Find(&request)
	if tx.Error != nil {
		return nil, tx.Error
	}
	if tx.RowsAffected == 0 {
		return nil, ErrNotFound
	}
	return &request, nil
}

func (s *SqliteStorage) UpdateRandomnessRequest(request *RandomnessRequest) error {
	return s.upsert(request)
}

func (s *SqliteStorage) GetBalance(currency string, address string) (decimal.Decimal, error) {
	var balance Balance
	tx := s.db.Where("currency = ? and address = ?", currency, address).Limit(1).Find(&balance)
	if tx.Error != nil {
		return decimal.Zero, tx.Error
	}
	if tx.RowsAffected == 0 {
		return decimal.Zero, nil
	}
	return balance.Amount, nil
}

func (s *SqliteStorage) UpdateBalance(balance *Balance) error {
	return s.upsert(balance)
}

func (s *SqliteStorage) GetTokenAllowance(currency string, owner string, spender string) (decimal.Decimal, error) {
	var allowance TokenAllowance
	tx := s.db.Where("currency = ? and owner = ? and spender = ?", currency, owner, spender).Limit(1).Find(&allowance)
	if tx.Error != nil {
		return decimal.Zero, tx.Error
	}
	if tx.RowsAffected == 0 {
		return decimal.Zero, nil
	}
	return allowance.Amount, nil
}

func (s *SqliteStorage) UpdateTokenAllowance(allowance *TokenAllowance) error {
	return s.upsert(allowance)
}

func (s *SqliteStorage) GetNFTOwner(contract string, tokenID string) (string, error) {
	var owner NFTOwner
	tx := s.db.Where("contract = ? and token_id = ?", contract, tokenID).Limit(1).Find(&owner)
	if tx.Error != nil {
		return "", tx.Error
	}
	if tx.RowsAffected == 0 {
		return "", ErrNotFound
	}
	return owner.Owner, nil
}

func (s *SqliteStorage) UpdateNFTOwner(owner *NFTOwner) error {
	return s.upsert(owner)
}

func (s *SqliteStorage) GetFeeAccrual(currency string) (decimal.Decimal, error) {
	var accrual FeeAccrual
	tx := s.db.Where("currency = ?", currency).Limit(1).Find(&accrual)
	if tx.Error != nil {
		return decimal.Zero, tx.Error
	}
	if tx.RowsAffected == 0 {
		return decimal.Zero, nil
	}
	return accrual.Amount, nil
}

func (s *SqliteStorage) UpdateFeeAccrual(accrual *FeeAccrual) error {
	return s.upsert(accrual)
}
