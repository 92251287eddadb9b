package repositories

import "context"

// SynthesisResult carries the downloaded clip and what little metadata
// the synthesis API reports about it.
type SynthesisResult struct {
	AudioData       []byte
	ContentType     string
	DurationSeconds *float64
}

// TextToSpeech converts text into an audio payload using a remote
// synthesis service.
type TextToSpeech interface {
	Synthesize(ctx context.Context, text string, voiceProfile string) (*SynthesisResult, error)
}
