package ledger

import (
	"errors"
	"fmt"

	"raffled/internal/logger"
	"raffled/internal/storage"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Native identifies the chain coin. Any other currency is a token identifier.
const Native = "native"

var (
	ErrInsufficientBalance   = errors.New("ledger: insufficient balance")
	ErrInsufficientAllowance = errors.New("ledger: insufficient allowance")
	ErrNotOwner              = errors.New("ledger: item not owned by sender")
	ErrNegativeAmount        = errors.New("ledger: negative amount")
)

// Ledger moves fungible balances and NFTs between accounts. Every call goes
// through the storage it was built on, so a ledger bound to a transaction
// rolls back with it.
type Ledger struct {
	storage storage.Storage
	custody string
}

func New(s storage.Storage, custody string) *Ledger {
	return &Ledger{
		storage: s,
		custody: custody,
	}
}

func (l *Ledger) Custody() string {
	return l.custody
}

func (l *Ledger) BalanceOf(currency string, address string) (decimal.Decimal, error) {
	return l.storage.GetBalance(currency, address)
}

func (l *Ledger) Mint(currency string, to string, amount decimal.Decimal) error {
	if amount.IsNegative() {
		return ErrNegativeAmount
	}
	return l.credit(currency, to, amount)
}

// Approve lets the custody account pull up to amount of a token from owner.
func (l *Ledger) Approve(currency string, owner string, amount decimal.Decimal) error {
	if amount.IsNegative() {
		return ErrNegativeAmount
	}
	return l.storage.UpdateTokenAllowance(&storage.TokenAllowance{
		Currency: currency,
		Owner:    owner,
		Spender:  l.custody,
		Amount:   amount,
	})
}

func (l *Ledger) Allowance(currency string, owner string) (decimal.Decimal, error) {
	return l.storage.GetTokenAllowance(currency, owner, l.custody)
}

// TransferIn moves amount from the payer into custody. Native payments are the
// value attached to the call; token payments consume the custody allowance.
func (l *Ledger) TransferIn(currency string, from string, amount decimal.Decimal) error {
	if amount.IsNegative() {
		return ErrNegativeAmount
	}
	if amount.IsZero() {
		return nil
	}

	if currency != Native {
		allowance, err := l.storage.GetTokenAllowance(currency, from, l.custody)
		if err != nil {
			return err
		}
		if allowance.LessThan(amount) {
			return fmt.Errorf("%w: %s approved, %s required", ErrInsufficientAllowance, allowance, amount)
		}
		err = l.storage.UpdateTokenAllowance(&storage.TokenAllowance{
			Currency: currency,
			Owner:    from,
			Spender:  l.custody,
			Amount:   allowance.Sub(amount),
		})
		if err != nil {
			return err
		}
	}

	if err := l.debit(currency, from, amount); err != nil {
		return err
	}
	return l.credit(currency, l.custody, amount)
}

// TransferOut pays amount from custody to the recipient.
func (l *Ledger) TransferOut(currency string, to string, amount decimal.Decimal) error {
	if amount.IsNegative() {
		return ErrNegativeAmount
	}
	if amount.IsZero() {
		return nil
	}

	if err := l.debit(currency, l.custody, amount); err != nil {
		return err
	}

	logger.Debug("ledger: transfer out", zap.String("currency", currency), zap.String("to", to), zap.String("amount", amount.String()))
	return l.credit(currency, to, amount)
}

func (l *Ledger) debit(currency string, address string, amount decimal.Decimal) error {
	balance, err := l.storage.GetBalance(currency, address)
	if err != nil {
		return err
	}
	if balance.LessThan(amount) {
		return fmt.Errorf("%w: %s holds %s %s, %s required", ErrInsufficientBalance, address, balance, currency, amount)
	}
	return l.storage.UpdateBalance(&storage.Balance{
		Currency: currency,
		Address:  address,
		Amount:   balance.Sub(amount),
	})
}

func (l *Ledger) credit(currency string, address string, amount decimal.Decimal) error {
	balance, err := l.storage.GetBalance(currency, address)
	if err != nil {
		return err
	}
	return l.storage.UpdateBalance(&storage.Balance{
		Currency: currency,
		Address:  address,
		Amount:   balance.Add(amount),
	})
}

func (l *Ledger) MintNFT(contract string, tokenID string, to string) error {
	_, err := l.storage.GetNFTOwner(contract, tokenID)
	if err == nil {
		return fmt.Errorf("ledger: %s/%s already minted", contract, tokenID)
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return err
	}
	return l.storage.UpdateNFTOwner(&storage.NFTOwner{
		Contract: contract,
		TokenID:  tokenID,
		Owner:    to,
	})
}

func (l *Ledger) OwnerOfNFT(contract string, tokenID string) (string, error) {
	return l.storage.GetNFTOwner(contract, tokenID)
}

func (l *Ledger) TransferNFT(contract string, tokenID string, from string, to string) error {
	owner, err := l.storage.GetNFTOwner(contract, tokenID)
	if errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("%w: %s/%s does not exist", ErrNotOwner, contract, tokenID)
	}
	if err != nil {
		return err
	}
	if owner != from {
		return fmt.Errorf("%w: %s/%s", ErrNotOwner, contract, tokenID)
	}
	return l.storage.UpdateNFTOwner(&storage.NFTOwner{
		Contract: contract,
		TokenID:  tokenID,
		Owner:    to,
	})
}
