package usecase

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/voxkeep/voxkeep/adapters/kokoro"
	"github.com/voxkeep/voxkeep/domain/entities"
	"github.com/voxkeep/voxkeep/domain/repositories"
	"github.com/voxkeep/voxkeep/internal/websocket"
)

// ArchiveService orchestrates the producer flow: synthesize the
// selected text, persist the clip, then ask the relay to refresh every
// open view.
type ArchiveService struct {
	textToSpeech repositories.TextToSpeech
	audioRepo    repositories.AudioRepository
	hub          *websocket.Hub
	logger       *zap.Logger
}

// NewArchiveService creates a new archive service
func NewArchiveService(
	tts repositories.TextToSpeech,
	audioRepo repositories.AudioRepository,
	hub *websocket.Hub,
	logger *zap.Logger,
) *ArchiveService {
	return &ArchiveService{
		textToSpeech: tts,
		audioRepo:    audioRepo,
		hub:          hub,
		logger:       logger,
	}
}

// Synthesize converts text to speech, saves the result and notifies
// the views. The refresh is fire-and-forget: saving the clip never
// waits on notification delivery.
func (s *ArchiveService) Synthesize(ctx context.Context, text string, voiceProfile string) (*entities.AudioRecord, error) {
	if text == "" {
		return nil, entities.ErrInvalidInput
	}
	if voiceProfile == "" {
		voiceProfile = kokoro.VoiceForText(text)
	}

	result, err := s.textToSpeech.Synthesize(ctx, text, voiceProfile)
	if err != nil {
		return nil, fmt.Errorf("synthesis failed: %w", err)
	}

	record := entities.NewAudioRecord(result.AudioData, text, voiceProfile)
	record.DurationSeconds = result.DurationSeconds

	if _, err := s.audioRepo.Create(ctx, record); err != nil {
		return nil, err
	}

	ack := s.hub.RequestRefresh(websocket.NewRefreshRequest(false))
	s.logger.Info("Refresh requested after save",
		zap.Int64("id", record.ID),
		zap.Bool("accepted", ack.Accepted))

	return record, nil
}

// Save persists an already-synthesized payload, then notifies views.
// Used when the synthesis happened in another context.
func (s *ArchiveService) Save(ctx context.Context, audioData []byte, text string, voiceProfile string) (*entities.AudioRecord, error) {
	record := entities.NewAudioRecord(audioData, text, voiceProfile)
	if _, err := s.audioRepo.Create(ctx, record); err != nil {
		return nil, err
	}
	s.hub.RequestRefresh(websocket.NewRefreshRequest(false))
	return record, nil
}

// Delete removes a clip and notifies views so stale rows disappear.
func (s *ArchiveService) Delete(ctx context.Context, id int64) error {
	if err := s.audioRepo.Delete(ctx, id); err != nil {
		return err
	}
	s.hub.RequestRefresh(websocket.NewRefreshRequest(false))
	return nil
}
