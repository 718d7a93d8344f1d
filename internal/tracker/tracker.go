package tracker

import (
	"context"
	"time"

	"raffled/internal/logger"
	"raffled/internal/raffle"
	"raffled/internal/randomness"

	"go.uber.org/zap"
)

// Tracker drives closed raffles to settlement: it finalizes them, acting as
// the randomness oracle for the dao, and optionally sweeps their revenue.
type Tracker struct {
	ctx            context.Context
	engine         *raffle.Engine
	source         randomness.Source
	dao            string
	autoDistribute bool
}

func NewTracker(ctx context.Context, engine *raffle.Engine, source randomness.Source, dao string, autoDistribute bool) *Tracker {
	logger.Debug("tracker initialization...", zap.String("dao", dao), zap.Bool("auto distribute", autoDistribute))

	if source == nil {
		source = randomness.CryptoSource{}
	}

	logger.Debug("tracker initialization... done")
	return &Tracker{
		ctx:            ctx,
		engine:         engine,
		source:         source,
		dao:            dao,
		autoDistribute: autoDistribute,
	}
}

// Run makes one pass over the raffles pending settlement and returns how many
// of them advanced. Failures of a single raffle are logged and left for the
// next pass.
func (t *Tracker) Run() (int, error) {
	logger.Debug("tracker: settlement pass...")

	pending, err := t.engine.PendingSettlement(0)
	if err != nil {
		logger.Error("tracker: cannot list raffles pending settlement", zap.Error(err))
		return 0, err
	}

	advanced := 0
	for _, r := range pending {
		if err := t.ctx.Err(); err != nil {
			return advanced, err
		}

		ok, err := t.settle(r)
		if err != nil {
			logger.Warn("tracker: raffle settlement failed", zap.Uint64("raffle id", r.ID), zap.Error(err))
			continue
		}
		if ok {
			advanced++
		}
	}

	logger.Debug("tracker: settlement pass... done", zap.Int("pending", len(pending)), zap.Int("advanced", advanced))
	return advanced, nil
}

// Loop runs settlement passes every interval until the context is canceled.
func (t *Tracker) Loop(interval time.Duration) {
	if interval < MinInterval {
		interval = MinInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := t.Run(); err != nil && t.ctx.Err() == nil {
			logger.Error("tracker: settlement pass failed", zap.Error(err))
		}

		select {
		case <-t.ctx.Done():
			t.Finalize()
			return
		case <-ticker.C:
		}
	}
}

func (t *Tracker) Finalize() {
	logger.Info("tracker stopped")
}
