package api

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/voxkeep/voxkeep/domain/entities"
	"github.com/voxkeep/voxkeep/domain/repositories"
	"github.com/voxkeep/voxkeep/internal/auth"
	"github.com/voxkeep/voxkeep/internal/websocket"
	"github.com/voxkeep/voxkeep/usecase"
)

// Handler bundles the dependencies the routes need.
type Handler struct {
	archive     *usecase.ArchiveService
	translation *usecase.TranslationService
	audioRepo   repositories.AudioRepository
	hub         *websocket.Hub
	issuer      *auth.TokenIssuer
	logger      *zap.Logger
}

// InitRoutes initializes all API routes
func InitRoutes(
	e *echo.Echo,
	archive *usecase.ArchiveService,
	translation *usecase.TranslationService,
	audioRepo repositories.AudioRepository,
	hub *websocket.Hub,
	issuer *auth.TokenIssuer,
	logger *zap.Logger,
) {
	h := &Handler{
		archive:     archive,
		translation: translation,
		audioRepo:   audioRepo,
		hub:         hub,
		issuer:      issuer,
		logger:      logger,
	}

	// Health check
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"service": "voxkeep",
		})
	})

	// API v1 routes
	v1 := e.Group("/api/v1")

	v1.POST("/synthesize", h.synthesize)
	v1.GET("/audios", h.listAudios)
	v1.GET("/audios/export", h.exportAudios)
	v1.GET("/audios/:id", h.getAudio)
	v1.GET("/audios/:id/audio", h.getAudioPayload)
	v1.PUT("/audios/:id/translation", h.setTranslation)
	v1.POST("/audios/:id/translate", h.translateAudio)
	v1.DELETE("/audios/:id", h.deleteAudio)
	v1.GET("/store", h.describeStore)
	v1.POST("/views/auth", h.viewerAuth)

	// WebSocket endpoint with token validation
	e.GET("/ws", h.websocketConnect)
}

func (h *Handler) synthesize(c echo.Context) error {
	var req SynthesizeRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request format",
		})
	}
	if strings.TrimSpace(req.Text) == "" {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_input",
			Message: "Text is required",
		})
	}

	record, err := h.archive.Synthesize(c.Request().Context(), req.Text, req.VoiceProfile)
	if err != nil {
		return h.renderError(c, err)
	}
	return c.JSON(http.StatusCreated, record)
}

func (h *Handler) listAudios(c echo.Context) error {
	records, err := h.audioRepo.List(c.Request().Context(), c.QueryParam("q"))
	if err != nil {
		return h.renderError(c, err)
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})
	return c.JSON(http.StatusOK, records)
}

func (h *Handler) getAudio(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return h.renderError(c, err)
	}
	record, err := h.audioRepo.Get(c.Request().Context(), id)
	if err != nil {
		return h.renderError(c, err)
	}
	return c.JSON(http.StatusOK, record)
}

func (h *Handler) getAudioPayload(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return h.renderError(c, err)
	}
	record, err := h.audioRepo.Get(c.Request().Context(), id)
	if err != nil {
		return h.renderError(c, err)
	}
	return c.Blob(http.StatusOK, "audio/wav", record.AudioData)
}

func (h *Handler) setTranslation(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return h.renderError(c, err)
	}
	var req TranslationRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request format",
		})
	}
	if err := h.translation.SetTranslation(c.Request().Context(), id, req.Translation); err != nil {
		return h.renderError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) translateAudio(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return h.renderError(c, err)
	}
	record, err := h.translation.Translate(c.Request().Context(), id)
	if err != nil {
		return h.renderError(c, err)
	}
	return c.JSON(http.StatusOK, record)
}

func (h *Handler) deleteAudio(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return h.renderError(c, err)
	}
	if err := h.archive.Delete(c.Request().Context(), id); err != nil {
		return h.renderError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// exportAudios renders tab-separated source text and translation
// pairs, the format flashcard tools import.
func (h *Handler) exportAudios(c echo.Context) error {
	records, err := h.audioRepo.List(c.Request().Context(), "")
	if err != nil {
		return h.renderError(c, err)
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})

	var b strings.Builder
	for _, record := range records {
		b.WriteString(record.SourceText)
		b.WriteByte('\t')
		b.WriteString(record.Translation)
		b.WriteByte('\t')
		fmt.Fprintf(&b, "[sound:audio_%d.wav]\n", record.ID)
	}
	return c.Blob(http.StatusOK, "text/tab-separated-values; charset=utf-8", []byte(b.String()))
}

func (h *Handler) describeStore(c echo.Context) error {
	info, err := h.audioRepo.Describe(c.Request().Context())
	if err != nil {
		return h.renderError(c, err)
	}
	return c.JSON(http.StatusOK, info)
}

func (h *Handler) viewerAuth(c echo.Context) error {
	var req ViewerAuthRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request format",
		})
	}
	if req.View == "" {
		req.View = "history"
	}

	viewerID := uuid.NewString()
	token, err := h.issuer.GenerateViewerToken(viewerID, req.View)
	if err != nil {
		h.logger.Error("Failed to generate viewer token", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "token_error",
			Message: "Failed to generate token",
		})
	}
	return c.JSON(http.StatusOK, ViewerAuthResponse{ViewerID: viewerID, Token: token})
}

func (h *Handler) websocketConnect(c echo.Context) error {
	token := c.QueryParam("token")
	claims, err := h.issuer.ValidateToken(token)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{
			Error:   "unauthorized",
			Message: "Invalid or expired token",
		})
	}
	return websocket.HandleWebSocket(h.hub, c, claims.ViewerID, h.logger)
}

func (h *Handler) renderError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, entities.ErrNotFound):
		return c.JSON(http.StatusNotFound, ErrorResponse{
			Error:   "not_found",
			Message: "Audio record not found",
		})
	case errors.Is(err, entities.ErrInvalidInput):
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_input",
			Message: "Audio payload and source text are required",
		})
	default:
		h.logger.Error("Request failed", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "internal_error",
			Message: err.Error(),
		})
	}
}

func parseID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return 0, entities.ErrInvalidInput
	}
	return id, nil
}
