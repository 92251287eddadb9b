package usecase

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/voxkeep/voxkeep/adapters/kokoro"
	"github.com/voxkeep/voxkeep/adapters/sqlite"
	"github.com/voxkeep/voxkeep/domain/entities"
	"github.com/voxkeep/voxkeep/internal/websocket"
)

func setupArchiveService(t *testing.T) (*ArchiveService, *sqlite.AudioRepository, chan websocket.DeliveryReport) {
	t.Helper()
	logger := zap.NewNop()

	client, err := sqlite.NewClient(filepath.Join(t.TempDir(), "archive.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	repo := sqlite.NewAudioRepository(client, logger)

	hub := websocket.NewHub(websocket.NewLogNotifier(logger), logger)
	reports := make(chan websocket.DeliveryReport, 8)
	hub.SetReportHook(func(report websocket.DeliveryReport) {
		reports <- report
	})
	go hub.Run()

	service := NewArchiveService(kokoro.NewMockTTS(logger), repo, hub, logger)
	return service, repo, reports
}

func TestSynthesizePersistsAndNotifies(t *testing.T) {
	service, repo, reports := setupArchiveService(t)
	ctx := context.Background()

	record, err := service.Synthesize(ctx, "Hello world", "")
	require.NoError(t, err)
	assert.NotZero(t, record.ID)
	assert.Equal(t, "Hello world", record.SourceText)
	assert.Equal(t, "af_heart", record.VoiceProfile)
	assert.NotEmpty(t, record.AudioData)

	// The clip is durably stored.
	stored, err := repo.Get(ctx, record.ID)
	require.NoError(t, err)
	assert.Equal(t, record.AudioData, stored.AudioData)

	// A refresh was requested; with no views open it falls back.
	select {
	case report := <-reports:
		assert.Equal(t, websocket.OutcomeNoReceiver, report.Outcome)
	case <-time.After(2 * time.Second):
		t.Fatal("no fan-out report after save")
	}
}

func TestSynthesizeRejectsEmptyText(t *testing.T) {
	service, _, _ := setupArchiveService(t)

	_, err := service.Synthesize(context.Background(), "", "af_heart")
	assert.True(t, errors.Is(err, entities.ErrInvalidInput))
}

func TestSynthesizeKeepsExplicitVoice(t *testing.T) {
	service, _, _ := setupArchiveService(t)

	record, err := service.Synthesize(context.Background(), "Bonjour tout le monde", "ff_siwis")
	require.NoError(t, err)
	assert.Equal(t, "ff_siwis", record.VoiceProfile)
}

func TestSaveStoresPreSynthesizedClip(t *testing.T) {
	service, repo, _ := setupArchiveService(t)
	ctx := context.Background()

	record, err := service.Save(ctx, []byte("opus-bytes"), "external clip", "am_adam")
	require.NoError(t, err)
	require.NotZero(t, record.ID)

	stored, err := repo.Get(ctx, record.ID)
	require.NoError(t, err)
	assert.Equal(t, []byte("opus-bytes"), stored.AudioData)
	assert.Equal(t, "am_adam", stored.VoiceProfile)
}

func TestDeleteRemovesClipAndNotifies(t *testing.T) {
	service, repo, reports := setupArchiveService(t)
	ctx := context.Background()

	record, err := service.Synthesize(ctx, "to be deleted", "af_heart")
	require.NoError(t, err)
	drainReports(reports)

	require.NoError(t, service.Delete(ctx, record.ID))

	_, err = repo.Get(ctx, record.ID)
	assert.True(t, errors.Is(err, entities.ErrNotFound))

	select {
	case <-reports:
	case <-time.After(2 * time.Second):
		t.Fatal("no fan-out report after delete")
	}
}

func drainReports(reports chan websocket.DeliveryReport) {
	for {
		select {
		case <-reports:
		case <-time.After(100 * time.Millisecond):
			return
		}
	}
}
