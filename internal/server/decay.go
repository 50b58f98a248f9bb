package server

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/comprl/comprl/internal/config"
	"github.com/comprl/comprl/internal/database"
)

// DecayWorker periodically widens every user's rating uncertainty so
// accounts that stop playing drift down the leaderboard until they prove
// their skill again. Runs on its own goroutine; the settings can be swapped
// at runtime via ApplySettings.
type DecayWorker struct {
	users *database.UserStore
	log   *zap.Logger

	settings atomic.Value // config.ScoreDecay
}

func NewDecayWorker(users *database.UserStore, settings config.ScoreDecay, log *zap.Logger) *DecayWorker {
	w := &DecayWorker{users: users, log: log}
	w.settings.Store(settings)
	return w
}

// ApplySettings swaps the decay parameters, e.g. after a SIGHUP config
// reload. Safe to call from any goroutine.
func (w *DecayWorker) ApplySettings(settings config.ScoreDecay) {
	w.settings.Store(settings)
}

// Run applies the decay until ctx is cancelled. An interval of zero leaves
// ratings untouched but keeps the worker alive so a config reload can turn
// decay on later.
func (w *DecayWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	lastApplied := time.Now()
	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			s := w.settings.Load().(config.ScoreDecay)
			if s.IntervalMinutes <= 0 {
				continue
			}
			if now.Sub(lastApplied) < time.Duration(s.IntervalMinutes)*time.Minute {
				continue
			}
			lastApplied = now
			if err := w.users.AddSigmaAll(s.Delta); err != nil {
				w.log.Error("score decay failed", zap.Error(err))
				continue
			}
			w.log.Info("score decay applied", zap.Float64("delta", s.Delta))
		}
	}
}
