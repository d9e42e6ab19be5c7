// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SiteDesk Contributors

package auth

import (
	"context"
	"log/slog"
	"time"

	"github.com/samber/oops"
)

// DefaultSweepInterval is how often the sweeper prunes dead records.
const DefaultSweepInterval = 15 * time.Minute

// Sweeper periodically deletes expired sessions and expired unconsumed reset
// tokens. Expiry is still enforced lazily at resolve time; the sweeper only
// keeps the tables from accumulating dead rows.
type Sweeper struct {
	sessions SessionRepository
	resets   ResetTokenRepository
	logger   *slog.Logger
	interval time.Duration
	observer func(sessions, resets int64)
}

// NewSweeper creates a new Sweeper.
// Returns an error if any required dependency is nil.
func NewSweeper(sessions SessionRepository, resets ResetTokenRepository, logger *slog.Logger, interval time.Duration) (*Sweeper, error) {
	if sessions == nil {
		return nil, oops.Errorf("sessions repository is required")
	}
	if resets == nil {
		return nil, oops.Errorf("resets repository is required")
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	return &Sweeper{
		sessions: sessions,
		resets:   resets,
		logger:   logger,
		interval: interval,
	}, nil
}

// SetObserver registers a callback invoked after every sweep pass with the
// deleted counts. Used to feed metrics without coupling this package to the
// metrics registry. Must be called before Run.
func (w *Sweeper) SetObserver(fn func(sessions, resets int64)) {
	w.observer = fn
}

// Run sweeps on a ticker until the context is cancelled.
func (w *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.logger.Info("expiry sweeper started", "interval", w.interval.String())

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("expiry sweeper stopped")
			return
		case <-ticker.C:
			w.Sweep(ctx)
		}
	}
}

// Sweep runs a single pruning pass. Failures are logged, not fatal; the next
// tick retries.
func (w *Sweeper) Sweep(ctx context.Context) (sessions, resets int64) {
	var err error

	sessions, err = w.sessions.DeleteExpired(ctx)
	if err != nil {
		w.logger.Error("failed to sweep expired sessions", "error", err)
	}

	resets, err = w.resets.DeleteExpired(ctx)
	if err != nil {
		w.logger.Error("failed to sweep expired reset tokens", "error", err)
	}

	if sessions > 0 || resets > 0 {
		w.logger.Info("swept expired records",
			"sessions", sessions,
			"reset_tokens", resets,
		)
	}

	if w.observer != nil {
		w.observer(sessions, resets)
	}

	return sessions, resets
}
