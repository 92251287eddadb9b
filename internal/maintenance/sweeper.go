// Package maintenance runs the scheduled store health sweep.
package maintenance

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/voxkeep/voxkeep/domain/repositories"
)

// Invalidator discards a cached database handle so the next caller
// reopens it, re-running schema checks on the way.
type Invalidator interface {
	Invalidate()
}

// Sweeper periodically inspects the store and forces a reopen when the
// diagnostic snapshot looks wrong.
type Sweeper struct {
	repo   repositories.AudioRepository
	conn   Invalidator
	logger *zap.Logger
}

// NewSweeper creates a new store health sweeper.
func NewSweeper(repo repositories.AudioRepository, conn Invalidator, logger *zap.Logger) *Sweeper {
	return &Sweeper{repo: repo, conn: conn, logger: logger}
}

// Start schedules the sweep with the given cron expression and returns
// the running scheduler.
func (s *Sweeper) Start(spec string) (*cron.Cron, error) {
	c := cron.New()
	if _, err := c.AddFunc(spec, s.Sweep); err != nil {
		return nil, err
	}
	c.Start()
	s.logger.Info("Maintenance sweep scheduled", zap.String("cron", spec))
	return c, nil
}

// Sweep runs one health check immediately.
func (s *Sweeper) Sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	info, err := s.repo.Describe(ctx)
	if err != nil {
		s.logger.Error("Store health check failed, invalidating connection", zap.Error(err))
		s.conn.Invalidate()
		return
	}
	if !info.IsHealthy {
		s.logger.Warn("Store schema out of date, invalidating connection",
			zap.Int("schemaVersion", info.SchemaVersion))
		s.conn.Invalidate()
		return
	}
	s.logger.Info("Store healthy",
		zap.Int64("recordCount", info.RecordCount),
		zap.Int("schemaVersion", info.SchemaVersion))
}
