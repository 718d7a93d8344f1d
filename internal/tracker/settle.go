package tracker

import (
	"errors"

	"raffled/internal/logger"
	"raffled/internal/storage"

	"go.uber.org/zap"
)

func (t *Tracker) settle(r *storage.Raffle) (bool, error) {
	id := r.ID
	if r.Finalized {
		if !t.autoDistribute {
			return false, nil
		}
		return true, t.distribute(id)
	}

	if r.TicketsSold > 0 && r.TicketsSold >= r.MinTicketCount {
		if err := t.fulfill(id); err != nil {
			return false, err
		}
	}

	result, err := t.engine.FinalizeRaffle(t.ctx, t.dao, id, nil)
	if err != nil {
		return false, err
	}
	logger.Info("tracker: raffle finalized",
		zap.Uint64("raffle id", id),
		zap.Bool("failed", result.Failed),
		zap.Int("winners", len(result.Winners)),
	)

	if result.Failed || !t.autoDistribute {
		return true, nil
	}
	return true, t.distribute(id)
}

// fulfill makes sure the raffle has a fulfilled randomness request, opening
// one first when needed.
func (t *Tracker) fulfill(id uint64) error {
	var requestID string

	request, err := t.engine.GetRandomnessRequest(id)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		requestID, err = t.engine.RequestRandomness(t.ctx, t.dao, id)
		if err != nil {
			return err
		}
	case err != nil:
		return err
	case request.Fulfilled:
		return nil
	default:
		requestID = request.RequestID
	}

	seed, err := t.source.Seed(t.ctx, requestID)
	if err != nil {
		return err
	}

	logger.Debug("tracker: fulfilling randomness", zap.Uint64("raffle id", id), zap.String("request id", requestID))
	return t.engine.FulfillRandomness(t.ctx, t.dao, requestID, seed)
}

func (t *Tracker) distribute(id uint64) error {
	breakdown, err := t.engine.DistributeCapturedRaffleRevenue(t.ctx, t.dao, id)
	if err != nil {
		return err
	}
	logger.Info("tracker: revenue distributed",
		zap.Uint64("raffle id", id),
		zap.String("revenue", breakdown.Revenue.String()),
		zap.String("platform fee", breakdown.PlatformFee.String()),
	)
	return nil
}
