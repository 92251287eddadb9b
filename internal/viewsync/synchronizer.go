// Package viewsync keeps one view's rendered list consistent with the
// audio store. Writes do not have to be perfectly delivered: an
// explicit refresh, a focus regain or the poll timer all lead to the
// same re-query, and rendering the same data twice is harmless.
package viewsync

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/voxkeep/voxkeep/domain/entities"
)

const (
	// DefaultInterval is the poll period covering notification gaps.
	DefaultInterval = 5 * time.Second

	// minSyncGap rate-limits overlapping triggers so a timer fire and
	// an explicit refresh do not double-query within a short window.
	minSyncGap = 1 * time.Second

	// emptyRetryDelay absorbs the race between a write's commit and a
	// near-simultaneous read from another context.
	emptyRetryDelay = 500 * time.Millisecond
)

// Store is the read surface a view needs: list records matching an
// optional source-text filter.
type Store interface {
	List(ctx context.Context, query string) ([]*entities.AudioRecord, error)
}

// RenderFunc receives the records to display, newest first. It must be
// idempotent: re-running it with the same data produces the same
// visible state.
type RenderFunc func(records []*entities.AudioRecord)

// Synchronizer re-queries the store and re-renders on refresh
// notifications, focus regains and a fixed-interval timer.
type Synchronizer struct {
	repo     Store
	render   RenderFunc
	logger   *zap.Logger
	interval time.Duration

	trigger chan bool // true forces past the rate limit

	mu       sync.Mutex
	query    string
	lastSync time.Time
}

// New creates a synchronizer polling at interval; zero means
// DefaultInterval.
func New(repo Store, render RenderFunc, interval time.Duration, logger *zap.Logger) *Synchronizer {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Synchronizer{
		repo:     repo,
		render:   render,
		logger:   logger,
		interval: interval,
		trigger:  make(chan bool, 1),
	}
}

// SetQuery filters future syncs by source-text substring.
func (s *Synchronizer) SetQuery(query string) {
	s.mu.Lock()
	s.query = query
	s.mu.Unlock()
}

// OnRefresh reacts to an explicit refresh notification from the relay.
func (s *Synchronizer) OnRefresh(force bool) {
	s.fire(force)
}

// OnFocus reacts to the view regaining foreground/focus.
func (s *Synchronizer) OnFocus() {
	s.fire(false)
}

func (s *Synchronizer) fire(force bool) {
	select {
	case s.trigger <- force:
	default:
	}
}

// Run drives the sync loop until the context is canceled.
func (s *Synchronizer) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	// Initial load.
	s.Sync(ctx, true)

	for {
		select {
		case <-ctx.Done():
			return
		case force := <-s.trigger:
			s.Sync(ctx, force)
		case <-ticker.C:
			s.Sync(ctx, false)
		}
	}
}

// Sync re-queries the store and re-renders. Without force, syncs inside
// the rate-limit window are skipped. An empty result is retried once
// after a short delay before rendering "no data".
func (s *Synchronizer) Sync(ctx context.Context, force bool) {
	s.mu.Lock()
	if !force && time.Since(s.lastSync) < minSyncGap {
		s.mu.Unlock()
		return
	}
	s.lastSync = time.Now()
	query := s.query
	s.mu.Unlock()

	records, err := s.repo.List(ctx, query)
	if err != nil {
		s.logger.Warn("View sync query failed", zap.Error(err))
		return
	}

	if len(records) == 0 {
		select {
		case <-time.After(emptyRetryDelay):
		case <-ctx.Done():
			return
		}
		records, err = s.repo.List(ctx, query)
		if err != nil {
			s.logger.Warn("View sync retry failed", zap.Error(err))
			return
		}
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})
	s.render(records)
}
