package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/communitygate/gatekeeper/internal/gatekeeper/store"
)

// RecordPruner periodically deletes invalidated admission records older
// than a configurable retention period.  It runs as a background
// goroutine and is safe to stop via its context or the Stop method.
//
// A retention of 0 disables pruning entirely — the default, since
// invalidated records are the audit trail.
type RecordPruner struct {
	store     store.RecordStore
	retention time.Duration
	interval  time.Duration
	logger    *slog.Logger
	cancel    context.CancelFunc
	done      chan struct{}
}

// PrunerConfig holds the parameters for NewRecordPruner.
type PrunerConfig struct {
	// RetentionDays is how many days of invalidated history to keep.
	// 0 means keep everything (pruner will not start).
	RetentionDays int

	// IntervalHours is how often the pruner runs.  Defaults to 6.
	IntervalHours int
}

// NewRecordPruner creates a pruner but does not start it.
// Call Start to begin the background loop.
func NewRecordPruner(s store.RecordStore, cfg PrunerConfig, logger *slog.Logger) *RecordPruner {
	interval := time.Duration(cfg.IntervalHours) * time.Hour
	if interval <= 0 {
		interval = 6 * time.Hour
	}

	return &RecordPruner{
		store:     s,
		retention: time.Duration(cfg.RetentionDays) * 24 * time.Hour,
		interval:  interval,
		logger:    logger,
		done:      make(chan struct{}),
	}
}

// Start begins the background pruning loop.  It runs an immediate prune
// on startup, then repeats on the configured interval.  The loop exits
// when ctx is cancelled or Stop is called.
func (p *RecordPruner) Start(ctx context.Context) {
	if p.retention <= 0 {
		p.logger.Info("record pruner disabled, keeping full audit history")
		close(p.done)
		return
	}

	ctx, p.cancel = context.WithCancel(ctx)

	go p.loop(ctx)

	p.logger.Info("record pruner started",
		slog.Int("retention_days", int(p.retention.Hours()/24)),
		slog.Int("interval_hours", int(p.interval.Hours())),
	)
}

// Stop signals the pruner to exit and waits for it to finish.
func (p *RecordPruner) Stop() {
	if p.cancel != nil {
		p.cancel()
	}
	<-p.done
}

func (p *RecordPruner) loop(ctx context.Context) {
	defer close(p.done)

	// Run immediately on startup to clean up any backlog.
	p.prune(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.prune(ctx)
		}
	}
}

func (p *RecordPruner) prune(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-p.retention)
	deleted, err := p.store.PruneInvalidatedBefore(ctx, cutoff)
	if err != nil {
		p.logger.Error("record prune failed", slog.Any("error", err))
		return
	}
	if deleted > 0 {
		p.logger.Info("pruned invalidated records",
			slog.Int64("deleted", deleted),
			slog.Time("cutoff", cutoff),
		)
	}
}
