package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/voxkeep/voxkeep/adapters/kokoro"
	"github.com/voxkeep/voxkeep/adapters/sqlite"
	"github.com/voxkeep/voxkeep/adapters/translate"
	"github.com/voxkeep/voxkeep/domain/entities"
	"github.com/voxkeep/voxkeep/internal/auth"
	"github.com/voxkeep/voxkeep/internal/websocket"
	"github.com/voxkeep/voxkeep/usecase"
)

type testServer struct {
	echo *echo.Echo
	repo *sqlite.AudioRepository
}

func setupTestServer(t *testing.T) *testServer {
	t.Helper()
	logger := zap.NewNop()

	client, err := sqlite.NewClient(filepath.Join(t.TempDir(), "api.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	repo := sqlite.NewAudioRepository(client, logger)

	hub := websocket.NewHub(websocket.NewLogNotifier(logger), logger)
	go hub.Run()

	archive := usecase.NewArchiveService(kokoro.NewMockTTS(logger), repo, hub, logger)
	translation := usecase.NewTranslationService(translate.NewMockTranslator(), repo, hub, "Japanese", logger)
	issuer := auth.NewTokenIssuer("test-secret", time.Hour)

	e := echo.New()
	InitRoutes(e, archive, translation, repo, hub, issuer, logger)
	return &testServer{echo: e, repo: repo}
}

func (ts *testServer) do(method, target string, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	ts.echo.ServeHTTP(rec, req)
	return rec
}

func (ts *testServer) seed(t *testing.T, text, translation string) int64 {
	t.Helper()
	record := entities.NewAudioRecord([]byte("wav-bytes"), text, "af_heart")
	record.Translation = translation
	id, err := ts.repo.Create(context.Background(), record)
	require.NoError(t, err)
	return id
}

func TestHealthEndpoint(t *testing.T) {
	ts := setupTestServer(t)

	rec := ts.do(http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "voxkeep")
}

func TestSynthesizeEndpoint(t *testing.T) {
	ts := setupTestServer(t)

	rec := ts.do(http.MethodPost, "/api/v1/synthesize", `{"text":"Hello world"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	var record entities.AudioRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &record))
	assert.NotZero(t, record.ID)
	assert.Equal(t, "Hello world", record.SourceText)
	assert.Equal(t, "af_heart", record.VoiceProfile)
}

func TestSynthesizeRejectsEmptyText(t *testing.T) {
	ts := setupTestServer(t)

	rec := ts.do(http.MethodPost, "/api/v1/synthesize", `{"text":"  "}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListAudiosNewestFirst(t *testing.T) {
	ts := setupTestServer(t)
	ts.seed(t, "first", "")
	ts.seed(t, "second", "")

	rec := ts.do(http.MethodGet, "/api/v1/audios", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var records []entities.AudioRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &records))
	require.Len(t, records, 2)
	assert.True(t, !records[0].CreatedAt.Before(records[1].CreatedAt))
	// The payload stays out of list responses.
	assert.NotContains(t, rec.Body.String(), "audio_data")
}

func TestListAudiosWithQueryFilter(t *testing.T) {
	ts := setupTestServer(t)
	ts.seed(t, "the quick brown fox", "")
	ts.seed(t, "lorem ipsum", "")

	rec := ts.do(http.MethodGet, "/api/v1/audios?q=fox", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var records []entities.AudioRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &records))
	require.Len(t, records, 1)
	assert.Equal(t, "the quick brown fox", records[0].SourceText)
}

func TestGetAudioAndPayload(t *testing.T) {
	ts := setupTestServer(t)
	id := ts.seed(t, "hello", "こんにちは")

	rec := ts.do(http.MethodGet, fmt.Sprintf("/api/v1/audios/%d", id), "")
	require.Equal(t, http.StatusOK, rec.Code)
	var record entities.AudioRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &record))
	assert.Equal(t, "hello", record.SourceText)
	assert.Equal(t, "こんにちは", record.Translation)

	rec = ts.do(http.MethodGet, fmt.Sprintf("/api/v1/audios/%d/audio", id), "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "audio/wav", rec.Header().Get(echo.HeaderContentType))
	assert.Equal(t, "wav-bytes", rec.Body.String())
}

func TestGetAudioNotFound(t *testing.T) {
	ts := setupTestServer(t)

	rec := ts.do(http.MethodGet, "/api/v1/audios/9999", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.do(http.MethodGet, "/api/v1/audios/not-a-number", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSetTranslationEndpoint(t *testing.T) {
	ts := setupTestServer(t)
	id := ts.seed(t, "good evening", "")

	rec := ts.do(http.MethodPut, fmt.Sprintf("/api/v1/audios/%d/translation", id),
		`{"translation":"こんばんは"}`)
	require.Equal(t, http.StatusNoContent, rec.Code)

	stored, err := ts.repo.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "こんばんは", stored.Translation)
}

func TestTranslateEndpoint(t *testing.T) {
	ts := setupTestServer(t)
	id := ts.seed(t, "good evening", "")

	rec := ts.do(http.MethodPost, fmt.Sprintf("/api/v1/audios/%d/translate", id), "")
	require.Equal(t, http.StatusOK, rec.Code)

	var record entities.AudioRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &record))
	assert.Equal(t, "[Japanese] good evening", record.Translation)
}

func TestDeleteAudioEndpoint(t *testing.T) {
	ts := setupTestServer(t)
	id := ts.seed(t, "short lived", "")

	rec := ts.do(http.MethodDelete, fmt.Sprintf("/api/v1/audios/%d", id), "")
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = ts.do(http.MethodGet, fmt.Sprintf("/api/v1/audios/%d", id), "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestExportEndpoint(t *testing.T) {
	ts := setupTestServer(t)
	id := ts.seed(t, "hello", "こんにちは")

	rec := ts.do(http.MethodGet, "/api/v1/audios/export", "")
	require.Equal(t, http.StatusOK, rec.Code)

	line := fmt.Sprintf("hello\tこんにちは\t[sound:audio_%d.wav]\n", id)
	assert.Equal(t, line, rec.Body.String())
}

func TestDescribeStoreEndpoint(t *testing.T) {
	ts := setupTestServer(t)
	ts.seed(t, "one", "")

	rec := ts.do(http.MethodGet, "/api/v1/store", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var info struct {
		RecordCount   int64 `json:"record_count"`
		SchemaVersion int   `json:"schema_version"`
		IsHealthy     bool  `json:"is_healthy"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &info))
	assert.Equal(t, int64(1), info.RecordCount)
	assert.True(t, info.IsHealthy)
}

func TestViewerAuthAndWebSocketToken(t *testing.T) {
	ts := setupTestServer(t)

	rec := ts.do(http.MethodPost, "/api/v1/views/auth", `{"view":"history"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp ViewerAuthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.ViewerID)
	assert.NotEmpty(t, resp.Token)

	// A bogus token is rejected before the upgrade.
	rec = ts.do(http.MethodGet, "/ws?token=bogus", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
