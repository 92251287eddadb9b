package usecase

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/voxkeep/voxkeep/adapters/sqlite"
	"github.com/voxkeep/voxkeep/adapters/translate"
	"github.com/voxkeep/voxkeep/domain/entities"
	"github.com/voxkeep/voxkeep/internal/websocket"
)

func setupTranslationService(t *testing.T) (*TranslationService, *sqlite.AudioRepository) {
	t.Helper()
	logger := zap.NewNop()

	client, err := sqlite.NewClient(filepath.Join(t.TempDir(), "translation.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	repo := sqlite.NewAudioRepository(client, logger)

	hub := websocket.NewHub(websocket.NewLogNotifier(logger), logger)
	go hub.Run()

	service := NewTranslationService(translate.NewMockTranslator(), repo, hub, "Japanese", logger)
	return service, repo
}

func seedRecord(t *testing.T, repo *sqlite.AudioRepository, text string) int64 {
	t.Helper()
	record := entities.NewAudioRecord([]byte{0x01}, text, "af_heart")
	id, err := repo.Create(context.Background(), record)
	require.NoError(t, err)
	return id
}

func TestSetTranslation(t *testing.T) {
	service, repo := setupTranslationService(t)
	ctx := context.Background()
	id := seedRecord(t, repo, "good morning")

	require.NoError(t, service.SetTranslation(ctx, id, "おはよう"))

	stored, err := repo.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "おはよう", stored.Translation)
}

func TestSetTranslationUnknownRecord(t *testing.T) {
	service, _ := setupTranslationService(t)

	err := service.SetTranslation(context.Background(), 9999, "missing")
	assert.True(t, errors.Is(err, entities.ErrNotFound))
}

func TestTranslateGeneratesAndStores(t *testing.T) {
	service, repo := setupTranslationService(t)
	ctx := context.Background()
	id := seedRecord(t, repo, "good morning")

	record, err := service.Translate(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "[Japanese] good morning", record.Translation)

	stored, err := repo.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "[Japanese] good morning", stored.Translation)
}

func TestTranslateUnknownRecord(t *testing.T) {
	service, _ := setupTranslationService(t)

	_, err := service.Translate(context.Background(), 404)
	assert.True(t, errors.Is(err, entities.ErrNotFound))
}
