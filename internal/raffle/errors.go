package raffle

import (
	"errors"
	"fmt"

	"raffled/internal/ledger"
	"raffled/internal/selector"
	"raffled/internal/tickets"
	"raffled/internal/vault"
	"raffled/internal/waterfall"
)

// Error kinds. Every error returned by the engine wraps exactly one of them.
var (
	ErrValidation   = errors.New("validation failed")
	ErrUnauthorized = errors.New("unauthorized")
	ErrEconomic     = errors.New("insufficient funds")
	ErrDoubleAction = errors.New("already done")
)

var (
	ErrInvalidWindow        = fmt.Errorf("%w: start time must precede end time", ErrValidation)
	ErrInvalidSlots         = fmt.Errorf("%w: invalid slot count", ErrValidation)
	ErrInvalidTicketCount   = fmt.Errorf("%w: invalid ticket counts", ErrValidation)
	ErrInvalidPrice         = fmt.Errorf("%w: ticket price must be a positive integer", ErrValidation)
	ErrUnsupportedCurrency  = fmt.Errorf("%w: unsupported currency", ErrValidation)
	ErrInvalidAddress       = fmt.Errorf("%w: invalid address", ErrValidation)
	ErrInvalidConfigIndex   = fmt.Errorf("%w: invalid config index", ErrValidation)
	ErrInvalidConfigValue   = fmt.Errorf("%w: invalid config value", ErrValidation)
	ErrSaleStarted          = fmt.Errorf("%w: sale already started", ErrValidation)
	ErrSaleNotOpen          = fmt.Errorf("%w: sale is not open", ErrValidation)
	ErrSaleNotClosed        = fmt.Errorf("%w: sale has not closed", ErrValidation)
	ErrSaleClosed           = fmt.Errorf("%w: sale already closed", ErrValidation)
	ErrInvalidCount         = fmt.Errorf("%w: invalid count", ErrValidation)
	ErrBulkLimit            = fmt.Errorf("%w: bulk purchase limit exceeded", ErrValidation)
	ErrSoldOut              = fmt.Errorf("%w: not enough tickets left", ErrValidation)
	ErrRaffleCanceled       = fmt.Errorf("%w: raffle canceled", ErrValidation)
	ErrRaffleFinalized      = fmt.Errorf("%w: raffle finalized", ErrValidation)
	ErrNotFinalized         = fmt.Errorf("%w: raffle not finalized", ErrValidation)
	ErrRaffleFailed         = fmt.Errorf("%w: raffle did not reach its ticket threshold", ErrValidation)
	ErrRefundUnavailable    = fmt.Errorf("%w: refunds require a canceled or failed raffle", ErrValidation)
	ErrWithdrawUnavailable  = fmt.Errorf("%w: withdrawals require a canceled or failed raffle", ErrValidation)
	ErrRevenueNotCaptured   = fmt.Errorf("%w: revenue not distributed yet", ErrValidation)
	ErrSeedUnavailable      = fmt.Errorf("%w: no fulfilled randomness for raffle", ErrValidation)
	ErrUnknownRequest       = fmt.Errorf("%w: unknown randomness request", ErrValidation)
	ErrUnexpectedValue      = fmt.Errorf("%w: token raffles take no native value", ErrValidation)
	ErrDepositsOutsideSlots = fmt.Errorf("%w: deposits exist beyond new slot count", ErrValidation)

	ErrNotRaffleOwner = fmt.Errorf("%w: caller is not the raffle owner", ErrUnauthorized)
	ErrNotDAO         = fmt.Errorf("%w: caller is not the dao owner", ErrUnauthorized)
	ErrNotAllowListed = fmt.Errorf("%w: allow list allowance exceeded", ErrUnauthorized)
	ErrUnsafeSeed     = fmt.Errorf("%w: explicit seeds are disabled", ErrUnauthorized)
	ErrMissingCaller  = fmt.Errorf("%w: caller address required", ErrUnauthorized)

	ErrIncorrectPayment    = fmt.Errorf("%w: payment does not match ticket cost", ErrEconomic)
	ErrInsufficientEscrow  = fmt.Errorf("%w: escrow cannot cover payout", ErrEconomic)
	ErrNothingToDistribute = fmt.Errorf("%w: nothing to distribute", ErrEconomic)

	ErrAlreadyCanceled    = fmt.Errorf("%w: raffle already canceled", ErrDoubleAction)
	ErrAlreadyFinalized   = fmt.Errorf("%w: raffle already finalized", ErrDoubleAction)
	ErrAlreadyDistributed = fmt.Errorf("%w: revenue already distributed", ErrDoubleAction)
	ErrAlreadyRequested   = fmt.Errorf("%w: randomness already requested", ErrDoubleAction)
	ErrAlreadyFulfilled   = fmt.Errorf("%w: randomness already fulfilled", ErrDoubleAction)
	ErrRoyaltiesSettled   = fmt.Errorf("%w: slot royalties already distributed", ErrDoubleAction)
)

// classify attaches a kind to errors coming from the component packages.
func classify(err error) error {
	if err == nil {
		return nil
	}
	for _, kind := range []error{ErrValidation, ErrUnauthorized, ErrEconomic, ErrDoubleAction} {
		if errors.Is(err, kind) {
			return err
		}
	}

	var kind error
	switch {
	case errors.Is(err, ledger.ErrInsufficientBalance),
		errors.Is(err, ledger.ErrInsufficientAllowance):
		kind = ErrEconomic
	case errors.Is(err, ledger.ErrNotOwner),
		errors.Is(err, tickets.ErrNotOwner),
		errors.Is(err, vault.ErrNotWinner):
		kind = ErrUnauthorized
	case errors.Is(err, tickets.ErrBurned),
		errors.Is(err, tickets.ErrDuplicate),
		errors.Is(err, vault.ErrExceedsRemaining):
		kind = ErrDoubleAction
	case errors.Is(err, tickets.ErrCapacity),
		errors.Is(err, tickets.ErrUnknownTicket),
		errors.Is(err, tickets.ErrWrongRaffle),
		errors.Is(err, vault.ErrSlotRange),
		errors.Is(err, vault.ErrNoItems),
		errors.Is(err, vault.ErrSlotFull),
		errors.Is(err, vault.ErrRaffleFull),
		errors.Is(err, vault.ErrNothingToWithdraw),
		errors.Is(err, vault.ErrNoWinner),
		errors.Is(err, waterfall.ErrInvalidSplits),
		errors.Is(err, waterfall.ErrInvalidFee),
		errors.Is(err, selector.ErrNoTickets),
		errors.Is(err, selector.ErrGap),
		errors.Is(err, ledger.ErrNegativeAmount):
		kind = ErrValidation
	default:
		return err
	}
	return fmt.Errorf("%w: %w", kind, err)
}
