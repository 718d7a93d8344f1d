package tickets

import (
	"errors"
	"fmt"

	"raffled/internal/logger"
	"raffled/internal/storage"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// SequenceSpace bounds the per-raffle sequence so that a ticket id encodes
// its raffle: id = raffleID*SequenceSpace + sequence.
const SequenceSpace uint64 = 10_000_000

var (
	ErrCapacity      = errors.New("tickets: raffle sold out")
	ErrUnknownTicket = errors.New("tickets: unknown ticket")
	ErrWrongRaffle   = errors.New("tickets: ticket belongs to another raffle")
	ErrNotOwner      = errors.New("tickets: ticket not owned by caller")
	ErrBurned        = errors.New("tickets: ticket already burned")
	ErrDuplicate     = errors.New("tickets: ticket listed twice")
)

func ID(raffleID uint64, sequence uint64) uint64 {
	return raffleID*SequenceSpace + sequence
}

func Decode(id uint64) (raffleID uint64, sequence uint64) {
	return id / SequenceSpace, id % SequenceSpace
}

type Ledger struct {
	storage storage.Storage
}

func New(s storage.Storage) *Ledger {
	return &Ledger{storage: s}
}

// Issue mints count sequential tickets to buyer, records the purchase and
// advances raffle.TicketsSold. The caller persists the raffle.
func (l *Ledger) Issue(raffle *storage.Raffle, buyer string, count uint64, paid decimal.Decimal, now int64) (uint64, error) {
	if count == 0 {
		return 0, fmt.Errorf("tickets: zero ticket count")
	}
	if raffle.TicketsSold+count > raffle.MaxTicketCount {
		return 0, fmt.Errorf("%w: %d of %d sold, %d requested", ErrCapacity, raffle.TicketsSold, raffle.MaxTicketCount, count)
	}
	if raffle.TicketsSold+count >= SequenceSpace {
		return 0, fmt.Errorf("%w: sequence space exhausted", ErrCapacity)
	}

	first := raffle.TicketsSold + 1
	issued := make([]*storage.Ticket, 0, count)
	for sequence := first; sequence < first+count; sequence++ {
		issued = append(issued, &storage.Ticket{
			ID:       ID(raffle.ID, sequence),
			RaffleID: raffle.ID,
			Sequence: sequence,
			Owner:    buyer,
		})
	}

	if err := l.storage.CreateTickets(issued); err != nil {
		return 0, err
	}

	err := l.storage.CreatePurchase(&storage.Purchase{
		RaffleID:      raffle.ID,
		Buyer:         buyer,
		FirstSequence: first,
		Count:         count,
		Paid:          paid,
		PurchasedAt:   now,
	})
	if err != nil {
		return 0, err
	}

	raffle.TicketsSold += count
	logger.Debug("tickets: issued", zap.Uint64("raffle id", raffle.ID), zap.String("buyer", buyer), zap.Uint64("first sequence", first), zap.Uint64("count", count))
	return ID(raffle.ID, first), nil
}

func (l *Ledger) OwnerOf(id uint64) (string, error) {
	ticket, err := l.storage.GetTicket(id)
	if errors.Is(err, storage.ErrNotFound) {
		return "", fmt.Errorf("%w: %d", ErrUnknownTicket, id)
	}
	if err != nil {
		return "", err
	}
	if ticket.Burned {
		return "", fmt.Errorf("%w: %d", ErrBurned, id)
	}
	return ticket.Owner, nil
}

func (l *Ledger) BalanceOf(raffleID uint64, owner string) (uint64, error) {
	return l.storage.CountTicketsByOwner(raffleID, owner)
}

// Burn validates every id before burning any of them; one invalid id fails
// the whole batch.
func (l *Ledger) Burn(raffleID uint64, owner string, ids []uint64) error {
	seen := make(map[uint64]struct{}, len(ids))
	burned := make([]*storage.Ticket, 0, len(ids))

	for _, id := range ids {
		if _, ok := seen[id]; ok {
			return fmt.Errorf("%w: %d", ErrDuplicate, id)
		}
		seen[id] = struct{}{}

		if owningRaffle, _ := Decode(id); owningRaffle != raffleID {
			return fmt.Errorf("%w: %d", ErrWrongRaffle, id)
		}

		ticket, err := l.storage.GetTicket(id)
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("%w: %d", ErrUnknownTicket, id)
		}
		if err != nil {
			return err
		}
		if ticket.Burned {
			return fmt.Errorf("%w: %d", ErrBurned, id)
		}
		if ticket.Owner != owner {
			return fmt.Errorf("%w: %d", ErrNotOwner, id)
		}

		ticket.Burned = true
		burned = append(burned, ticket)
	}

	return l.storage.UpdateTickets(burned)
}
