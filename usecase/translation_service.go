package usecase

import (
	"context"

	"go.uber.org/zap"

	"github.com/voxkeep/voxkeep/domain/entities"
	"github.com/voxkeep/voxkeep/domain/repositories"
	"github.com/voxkeep/voxkeep/internal/websocket"
)

// TranslationService attaches translations to stored clips. The
// translation field is the only field mutable after creation.
type TranslationService struct {
	translator repositories.Translator
	audioRepo  repositories.AudioRepository
	hub        *websocket.Hub
	targetLang string
	logger     *zap.Logger
}

// NewTranslationService creates a new translation service
func NewTranslationService(
	translator repositories.Translator,
	audioRepo repositories.AudioRepository,
	hub *websocket.Hub,
	targetLang string,
	logger *zap.Logger,
) *TranslationService {
	if targetLang == "" {
		targetLang = "Japanese"
	}
	return &TranslationService{
		translator: translator,
		audioRepo:  audioRepo,
		hub:        hub,
		targetLang: targetLang,
		logger:     logger,
	}
}

// SetTranslation stores a caller-provided translation on a record.
func (s *TranslationService) SetTranslation(ctx context.Context, id int64, translation string) error {
	if err := s.audioRepo.UpdateTranslation(ctx, id, translation); err != nil {
		return err
	}
	s.hub.RequestRefresh(websocket.NewRefreshRequest(false))
	return nil
}

// Translate generates a translation for a record's source text and
// stores it.
func (s *TranslationService) Translate(ctx context.Context, id int64) (*entities.AudioRecord, error) {
	record, err := s.audioRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	translation, err := s.translator.Translate(ctx, record.SourceText, s.targetLang)
	if err != nil {
		return nil, err
	}

	if err := s.audioRepo.UpdateTranslation(ctx, id, translation); err != nil {
		return nil, err
	}
	record.Translation = translation

	s.hub.RequestRefresh(websocket.NewRefreshRequest(false))
	s.logger.Info("Translation attached",
		zap.Int64("id", id),
		zap.String("targetLanguage", s.targetLang))
	return record, nil
}
