package raffle

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"raffled/internal/ledger"
	"raffled/internal/logger"
	"raffled/internal/royalty"
	"raffled/internal/storage"
	"raffled/internal/tickets"
	"raffled/internal/vault"

	"go.uber.org/zap"
)

// DefaultCustody is the account holding escrowed funds and deposited NFTs
// when no custody address is configured.
const DefaultCustody = "0:0000000000000000000000000000000000000000000000000000000000000000"

const (
	DefaultMaxNumberSlots  uint32 = 2000
	DefaultMaxBulkPurchase uint32 = 50
	DefaultNFTSlotLimit    uint32 = 100
)

// Engine serializes every operation: one runs to completion, inside one
// storage transaction, before the next one starts.
type Engine struct {
	mu       sync.Mutex
	storage  storage.Storage
	registry royalty.Registry
	custody  string
	now      func() time.Time
}

type Option func(*Engine)

func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

func WithCustody(address string) Option {
	return func(e *Engine) {
		e.custody = address
	}
}

// New binds an engine to storage. defaults seed the contract configuration
// the first time the storage is used; a persisted configuration wins.
func New(ctx context.Context, s storage.Storage, registry royalty.Registry, defaults storage.ContractConfig, options ...Option) (*Engine, error) {
	logger.Debug("engine initialization...")

	e := &Engine{
		storage:  s,
		registry: registry,
		custody:  DefaultCustody,
		now:      time.Now,
	}
	for _, option := range options {
		option(e)
	}
	if e.registry == nil {
		e.registry = royalty.NewStaticRegistry()
	}

	err := s.Atomic(ctx, func(tx storage.Storage) error {
		_, err := tx.GetContractConfig()
		if err == nil {
			logger.Debug("engine initialization: persisted contract config found")
			return nil
		}
		if !errors.Is(err, storage.ErrNotFound) {
			return err
		}

		if defaults.DAOAddress == "" {
			return fmt.Errorf("%w: dao address", ErrInvalidAddress)
		}
		if defaults.MaxNumberSlots == 0 {
			defaults.MaxNumberSlots = DefaultMaxNumberSlots
		}
		if defaults.MaxBulkPurchase == 0 {
			defaults.MaxBulkPurchase = DefaultMaxBulkPurchase
		}
		if defaults.NFTSlotLimit == 0 {
			defaults.NFTSlotLimit = DefaultNFTSlotLimit
		}
		if defaults.PlatformFeeBps > 10_000 {
			return fmt.Errorf("%w: platform fee %d bps", ErrInvalidConfigValue, defaults.PlatformFeeBps)
		}
		defaults.RaffleCount = 0
		defaults.DAOInitialized = false

		logger.Debug("engine initialization: storing default contract config", zap.String("dao", defaults.DAOAddress))
		return tx.UpdateContractConfig(&defaults)
	})
	if err != nil {
		return nil, err
	}

	logger.Debug("engine initialization... done")
	return e, nil
}

func (e *Engine) Custody() string {
	return e.custody
}

func (e *Engine) timestamp() int64 {
	return e.now().Unix()
}

// txn bundles the components bound to one storage transaction.
type txn struct {
	storage storage.Storage
	config  *storage.ContractConfig
	ledger  *ledger.Ledger
	tickets *tickets.Ledger
	vault   *vault.Vault
	now     int64
}

func (e *Engine) bind(s storage.Storage) (*txn, error) {
	config, err := s.GetContractConfig()
	if err != nil {
		return nil, fmt.Errorf("contract config: %w", err)
	}
	l := ledger.New(s, e.custody)
	return &txn{
		storage: s,
		config:  config,
		ledger:  l,
		tickets: tickets.New(s),
		vault:   vault.New(s, l),
		now:     e.timestamp(),
	}, nil
}

// atomic runs fn in one storage transaction; any error discards every write.
func (e *Engine) atomic(ctx context.Context, fn func(tx *txn) error) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	err := e.storage.Atomic(ctx, func(s storage.Storage) error {
		tx, err := e.bind(s)
		if err != nil {
			return err
		}
		return fn(tx)
	})
	return classify(err)
}

func (e *Engine) read(fn func(tx *txn) error) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	tx, err := e.bind(e.storage)
	if err != nil {
		return err
	}
	return classify(fn(tx))
}

func (tx *txn) raffle(id uint64) (*storage.Raffle, error) {
	raffle, err := tx.storage.GetRaffle(id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("raffle %d: %w", id, storage.ErrNotFound)
	}
	return raffle, err
}

func (tx *txn) ownedRaffle(id uint64, caller string) (*storage.Raffle, error) {
	raffle, err := tx.raffle(id)
	if err != nil {
		return nil, err
	}
	if raffle.Owner != caller {
		return nil, ErrNotRaffleOwner
	}
	return raffle, nil
}

func (tx *txn) requireDAO(caller string) error {
	if caller == "" || caller != tx.config.DAOAddress {
		return ErrNotDAO
	}
	return nil
}

func requireCaller(caller string) error {
	if caller == "" {
		return ErrMissingCaller
	}
	return nil
}
