package feed

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Target binds a source to the function that installs its rows.
type Target struct {
	Name   string
	Source string
	Apply  func(rows []Row) error
}

// RefreshWorker reloads roster and question sources on an interval.
type RefreshWorker struct {
	fetcher  Fetcher
	targets  []Target
	interval time.Duration
	timeout  time.Duration
	logger   zerolog.Logger
}

func NewRefreshWorker(fetcher Fetcher, targets []Target, interval, timeout time.Duration, logger zerolog.Logger) *RefreshWorker {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &RefreshWorker{
		fetcher:  fetcher,
		targets:  targets,
		interval: interval,
		timeout:  timeout,
		logger:   logger.With().Str("component", "feed_refresh").Logger(),
	}
}

// LoadAll loads every target once and returns the first failure.
func (w *RefreshWorker) LoadAll(ctx context.Context) error {
	var firstErr error
	for _, t := range w.targets {
		if err := w.load(ctx, t); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Run blocks until the context is cancelled. A non-positive interval disables refreshes.
func (w *RefreshWorker) Run(ctx context.Context) error {
	if w.interval <= 0 {
		<-ctx.Done()
		return ctx.Err()
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			for _, t := range w.targets {
				if err := w.load(ctx, t); err != nil {
					w.logger.Warn().Err(err).Str("target", t.Name).Msg("refresh failed")
				}
			}
		}
	}
}

func (w *RefreshWorker) load(ctx context.Context, t Target) error {
	if t.Source == "" {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	rows, err := w.fetcher.Fetch(ctx, t.Source)
	if err != nil {
		return fmt.Errorf("load %s: %w", t.Name, err)
	}
	if err := t.Apply(rows); err != nil {
		return fmt.Errorf("apply %s: %w", t.Name, err)
	}
	w.logger.Info().Str("target", t.Name).Int("rows", len(rows)).Msg("source loaded")
	return nil
}
