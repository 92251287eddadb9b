package maintenance

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/voxkeep/voxkeep/domain/entities"
	"github.com/voxkeep/voxkeep/domain/repositories"
)

type stubRepo struct {
	info repositories.StoreInfo
	err  error
}

func (s *stubRepo) Create(ctx context.Context, record *entities.AudioRecord) (int64, error) {
	return 0, nil
}

func (s *stubRepo) Get(ctx context.Context, id int64) (*entities.AudioRecord, error) {
	return nil, entities.ErrNotFound
}

func (s *stubRepo) List(ctx context.Context, query string) ([]*entities.AudioRecord, error) {
	return nil, nil
}

func (s *stubRepo) UpdateTranslation(ctx context.Context, id int64, translation string) error {
	return nil
}

func (s *stubRepo) Delete(ctx context.Context, id int64) error { return nil }

func (s *stubRepo) Describe(ctx context.Context) (repositories.StoreInfo, error) {
	return s.info, s.err
}

type stubInvalidator struct {
	calls int32
}

func (s *stubInvalidator) Invalidate() {
	atomic.AddInt32(&s.calls, 1)
}

func TestSweepHealthyStoreLeavesConnectionAlone(t *testing.T) {
	conn := &stubInvalidator{}
	sweeper := NewSweeper(&stubRepo{
		info: repositories.StoreInfo{RecordCount: 3, SchemaVersion: 2, IsHealthy: true},
	}, conn, zap.NewNop())

	sweeper.Sweep()

	assert.Zero(t, atomic.LoadInt32(&conn.calls))
}

func TestSweepInvalidatesOnDescribeError(t *testing.T) {
	conn := &stubInvalidator{}
	sweeper := NewSweeper(&stubRepo{err: errors.New("disk gone")}, conn, zap.NewNop())

	sweeper.Sweep()

	assert.Equal(t, int32(1), atomic.LoadInt32(&conn.calls))
}

func TestSweepInvalidatesOnStaleSchema(t *testing.T) {
	conn := &stubInvalidator{}
	sweeper := NewSweeper(&stubRepo{
		info: repositories.StoreInfo{SchemaVersion: 1, IsHealthy: false},
	}, conn, zap.NewNop())

	sweeper.Sweep()

	assert.Equal(t, int32(1), atomic.LoadInt32(&conn.calls))
}

func TestStartRejectsBadCronSpec(t *testing.T) {
	sweeper := NewSweeper(&stubRepo{}, &stubInvalidator{}, zap.NewNop())

	_, err := sweeper.Start("not a cron spec")
	assert.Error(t, err)

	c, err := sweeper.Start("0 3 * * *")
	require.NoError(t, err)
	c.Stop()
}
