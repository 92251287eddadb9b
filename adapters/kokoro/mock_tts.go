package kokoro

import (
	"context"

	"go.uber.org/zap"

	"github.com/voxkeep/voxkeep/domain/repositories"
)

// MockTTS is a placeholder synthesizer used when no fal.ai API key is
// configured.
type MockTTS struct {
	logger *zap.Logger
}

// NewMockTTS creates a new mock text-to-speech service
func NewMockTTS(logger *zap.Logger) repositories.TextToSpeech {
	return &MockTTS{logger: logger}
}

// Synthesize implements repositories.TextToSpeech
func (m *MockTTS) Synthesize(ctx context.Context, text string, voiceProfile string) (*repositories.SynthesisResult, error) {
	m.logger.Info("Mock synthesis",
		zap.String("voiceProfile", voiceProfile),
		zap.Int("textLength", len(text)))

	// A minimal silent WAV header plus a little payload so byte sizes
	// are nonzero downstream.
	payload := []byte("RIFF$\x00\x00\x00WAVEfmt \x10\x00\x00\x00\x01\x00\x01\x00")
	duration := 0.0
	return &repositories.SynthesisResult{
		AudioData:       payload,
		ContentType:     "audio/wav",
		DurationSeconds: &duration,
	}, nil
}
