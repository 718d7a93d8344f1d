package raffle

import (
	"context"
	"errors"
	"fmt"

	"raffled/internal/logger"
	"raffled/internal/selector"
	"raffled/internal/storage"
	"raffled/internal/tickets"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type SlotWinner struct {
	Slot     uint32 `json:"slot"`
	Winner   string `json:"winner"`
	TicketID uint64 `json:"ticket_id"`
}

type Finalization struct {
	RaffleID uint64       `json:"raffle_id"`
	Failed   bool         `json:"failed"`
	Seed     string       `json:"seed,omitempty"`
	Winners  []SlotWinner `json:"winners"`
}

func (tx *txn) closedRaffle(id uint64) (*storage.Raffle, error) {
	raffle, err := tx.raffle(id)
	if err != nil {
		return nil, err
	}
	if raffle.Canceled {
		return nil, ErrRaffleCanceled
	}
	if raffle.Finalized {
		return nil, ErrAlreadyFinalized
	}
	if tx.now < raffle.EndTime {
		return nil, ErrSaleNotClosed
	}
	return raffle, nil
}

// RequestRandomness opens the single randomness request of a closed raffle
// and returns its id.
func (e *Engine) RequestRandomness(ctx context.Context, caller string, id uint64) (string, error) {
	logger.Debug("request randomness...", zap.Uint64("raffle id", id))

	var requestID string
	err := e.atomic(ctx, func(tx *txn) error {
		if err := requireCaller(caller); err != nil {
			return err
		}
		if _, err := tx.closedRaffle(id); err != nil {
			return err
		}

		_, err := tx.storage.GetRandomnessRequest(id)
		if err == nil {
			return ErrAlreadyRequested
		}
		if !errors.Is(err, storage.ErrNotFound) {
			return err
		}

		requestID = uuid.NewString()
		return tx.storage.UpdateRandomnessRequest(&storage.RandomnessRequest{
			RaffleID:    id,
			RequestID:   requestID,
			RequestedAt: tx.now,
		})
	})
	if err != nil {
		logger.Debug("request randomness: rejected", zap.Uint64("raffle id", id), zap.Error(err))
		return "", err
	}

	logger.Debug("request randomness... done", zap.Uint64("raffle id", id), zap.String("request id", requestID))
	return requestID, nil
}

// FulfillRandomness stores the seed of an outstanding request. Only the dao
// owner acts as the randomness oracle.
func (e *Engine) FulfillRandomness(ctx context.Context, caller string, requestID string, seed selector.Seed) error {
	logger.Debug("fulfill randomness...", zap.String("request id", requestID))

	err := e.atomic(ctx, func(tx *txn) error {
		if err := tx.requireDAO(caller); err != nil {
			return err
		}
		request, err := tx.storage.GetRandomnessRequestByID(requestID)
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrUnknownRequest, requestID)
		}
		if err != nil {
			return err
		}
		if request.Fulfilled {
			return ErrAlreadyFulfilled
		}

		request.Fulfilled = true
		request.Seed = seed.String()
		request.FulfilledAt = tx.now
		return tx.storage.UpdateRandomnessRequest(request)
	})
	if err != nil {
		logger.Debug("fulfill randomness: rejected", zap.String("request id", requestID), zap.Error(err))
		return err
	}

	logger.Debug("fulfill randomness... done", zap.String("request id", requestID))
	return nil
}

// resolveSeed returns the fulfilled seed of the raffle. An explicit seed is
// only accepted from the dao owner while unsafe randomness is enabled, and is
// recorded as a fulfilled request.
func (tx *txn) resolveSeed(caller string, id uint64, explicit *selector.Seed) (selector.Seed, error) {
	request, err := tx.storage.GetRandomnessRequest(id)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return selector.Seed{}, err
	}
	found := err == nil

	if explicit == nil {
		if !found || !request.Fulfilled {
			return selector.Seed{}, ErrSeedUnavailable
		}
		return selector.ParseSeed(request.Seed)
	}

	if !tx.config.UnsafeRandomness {
		return selector.Seed{}, ErrUnsafeSeed
	}
	if err := tx.requireDAO(caller); err != nil {
		return selector.Seed{}, err
	}
	if found && request.Fulfilled {
		return selector.Seed{}, ErrAlreadyFulfilled
	}
	if !found {
		request = &storage.RandomnessRequest{
			RaffleID:    id,
			RequestID:   uuid.NewString(),
			RequestedAt: tx.now,
		}
	}
	request.Fulfilled = true
	request.Seed = explicit.String()
	request.FulfilledAt = tx.now
	if err := tx.storage.UpdateRandomnessRequest(request); err != nil {
		return selector.Seed{}, err
	}
	return *explicit, nil
}

// FinalizeRaffle closes a raffle once its sale window has passed. Raffles
// below their ticket threshold finalize as failed; otherwise every slot with
// deposits gets its winner from the raffle seed.
func (e *Engine) FinalizeRaffle(ctx context.Context, caller string, id uint64, seed *selector.Seed) (*Finalization, error) {
	logger.Debug("finalize raffle...", zap.Uint64("raffle id", id))

	result := &Finalization{RaffleID: id, Winners: make([]SlotWinner, 0)}
	err := e.atomic(ctx, func(tx *txn) error {
		raffle, err := tx.closedRaffle(id)
		if err != nil {
			return err
		}

		raffle.Finalized = true
		if failed(raffle) {
			result.Failed = true
			return tx.storage.UpdateRaffle(raffle)
		}

		value, err := tx.resolveSeed(caller, id, seed)
		if err != nil {
			return err
		}
		result.Seed = value.String()

		purchases, err := tx.storage.GetPurchases(id)
		if err != nil {
			return err
		}
		index, err := selector.NewIndex(purchases)
		if err != nil {
			return err
		}

		slots, err := tx.storage.GetSlotsWithDeposits(id)
		if err != nil {
			return err
		}
		for _, slot := range slots {
			winner, sequence, err := index.Winner(value, slot.SlotIndex)
			if err != nil {
				return err
			}
			slot.Winner = winner
			if err := tx.storage.UpdateSlot(slot); err != nil {
				return err
			}
			result.Winners = append(result.Winners, SlotWinner{
				Slot:     slot.SlotIndex,
				Winner:   winner,
				TicketID: tickets.ID(id, sequence),
			})
		}
		return tx.storage.UpdateRaffle(raffle)
	})
	if err != nil {
		logger.Debug("finalize raffle: rejected", zap.Uint64("raffle id", id), zap.Error(err))
		return nil, err
	}

	logger.Debug("finalize raffle... done", zap.Uint64("raffle id", id), zap.Bool("failed", result.Failed), zap.Int("winners", len(result.Winners)))
	return result, nil
}
