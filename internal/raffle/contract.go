package raffle

import (
	"context"
	"fmt"
	"slices"

	"raffled/internal/ledger"
	"raffled/internal/logger"
	"raffled/internal/storage"
	"raffled/internal/waterfall"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Indices accepted by SetRaffleConfigValue.
const (
	ConfigMaxNumberSlots uint8 = iota
	ConfigMaxBulkPurchase
	ConfigNFTSlotLimit
	ConfigPlatformFeeBps
)

// SetRaffleConfigValue updates one global tunable. Changes apply to later
// operations only; a raffle whose revenue was distributed keeps the fee it paid.
func (e *Engine) SetRaffleConfigValue(ctx context.Context, caller string, index uint8, value uint32) error {
	logger.Debug("set raffle config value...", zap.Uint8("index", index), zap.Uint32("value", value))

	err := e.atomic(ctx, func(tx *txn) error {
		if err := tx.requireDAO(caller); err != nil {
			return err
		}

		switch index {
		case ConfigMaxNumberSlots:
			if value == 0 {
				return ErrInvalidConfigValue
			}
			tx.config.MaxNumberSlots = value
		case ConfigMaxBulkPurchase:
			if value == 0 {
				return ErrInvalidConfigValue
			}
			tx.config.MaxBulkPurchase = value
		case ConfigNFTSlotLimit:
			if value == 0 {
				return ErrInvalidConfigValue
			}
			tx.config.NFTSlotLimit = value
		case ConfigPlatformFeeBps:
			if value > waterfall.BasisPoints {
				return fmt.Errorf("%w: %d bps", ErrInvalidConfigValue, value)
			}
			tx.config.PlatformFeeBps = value
		default:
			return fmt.Errorf("%w: %d", ErrInvalidConfigIndex, index)
		}
		return tx.storage.UpdateContractConfig(tx.config)
	})
	if err != nil {
		logger.Debug("set raffle config value: rejected", zap.Error(err))
		return err
	}

	logger.Debug("set raffle config value... done")
	return nil
}

func (e *Engine) TransferDAOOwnership(ctx context.Context, caller string, newOwner string) error {
	logger.Debug("transfer dao ownership...", zap.String("new owner", newOwner))

	err := e.atomic(ctx, func(tx *txn) error {
		if err := tx.requireDAO(caller); err != nil {
			return err
		}
		if newOwner == "" {
			return ErrInvalidAddress
		}
		tx.config.DAOAddress = newOwner
		tx.config.DAOInitialized = true
		return tx.storage.UpdateContractConfig(tx.config)
	})
	if err != nil {
		logger.Debug("transfer dao ownership: rejected", zap.Error(err))
		return err
	}

	logger.Debug("transfer dao ownership... done")
	return nil
}

func (e *Engine) SetSupportedCurrency(ctx context.Context, caller string, currency string, supported bool) error {
	logger.Debug("set supported currency...", zap.String("currency", currency), zap.Bool("supported", supported))

	err := e.atomic(ctx, func(tx *txn) error {
		if err := tx.requireDAO(caller); err != nil {
			return err
		}
		if currency == "" || currency == ledger.Native {
			return fmt.Errorf("%w: %q", ErrUnsupportedCurrency, currency)
		}

		index := slices.Index(tx.config.SupportedCurrencies, currency)
		switch {
		case supported && index < 0:
			tx.config.SupportedCurrencies = append(tx.config.SupportedCurrencies, currency)
		case !supported && index >= 0:
			tx.config.SupportedCurrencies = slices.Delete(tx.config.SupportedCurrencies, index, index+1)
		default:
			return nil
		}
		return tx.storage.UpdateContractConfig(tx.config)
	})
	if err != nil {
		logger.Debug("set supported currency: rejected", zap.Error(err))
		return err
	}

	logger.Debug("set supported currency... done")
	return nil
}

func (e *Engine) SetUnsafeRandomness(ctx context.Context, caller string, enabled bool) error {
	return e.atomic(ctx, func(tx *txn) error {
		if err := tx.requireDAO(caller); err != nil {
			return err
		}
		tx.config.UnsafeRandomness = enabled
		return tx.storage.UpdateContractConfig(tx.config)
	})
}

func (e *Engine) GetContractConfig() (*storage.ContractConfig, error) {
	var config *storage.ContractConfig
	err := e.read(func(tx *txn) error {
		config = tx.config
		return nil
	})
	return config, err
}

// Fund mints currency to an account of the custody ledger. Only the dao
// owner may mint.
func (e *Engine) Fund(ctx context.Context, caller string, currency string, to string, amount decimal.Decimal) error {
	return e.atomic(ctx, func(tx *txn) error {
		if err := tx.requireDAO(caller); err != nil {
			return err
		}
		if to == "" {
			return ErrInvalidAddress
		}
		return tx.ledger.Mint(currency, to, amount)
	})
}

func (e *Engine) MintNFT(ctx context.Context, caller string, contract string, tokenID string, to string) error {
	return e.atomic(ctx, func(tx *txn) error {
		if err := tx.requireDAO(caller); err != nil {
			return err
		}
		if to == "" || contract == "" || tokenID == "" {
			return ErrInvalidAddress
		}
		if err := tx.ledger.MintNFT(contract, tokenID, to); err != nil {
			return fmt.Errorf("%w: %w", ErrValidation, err)
		}
		return nil
	})
}

// Approve lets custody pull up to amount of a token from caller.
func (e *Engine) Approve(ctx context.Context, caller string, currency string, amount decimal.Decimal) error {
	return e.atomic(ctx, func(tx *txn) error {
		if err := requireCaller(caller); err != nil {
			return err
		}
		if currency == ledger.Native {
			return fmt.Errorf("%w: native coin needs no approval", ErrUnsupportedCurrency)
		}
		return tx.ledger.Approve(currency, caller, amount)
	})
}
