package entities

import (
	"time"
	"unicode/utf16"
)

// DefaultVoiceProfile is used when a caller does not name a voice.
const DefaultVoiceProfile = "af_heart"

// MaxSourceTextLen bounds the stored source text, measured in UTF-16
// code units so the limit matches what the history views display.
const MaxSourceTextLen = 1000

// AudioRecord represents one persisted speech clip.
type AudioRecord struct {
	ID              int64     `json:"id" db:"id"`
	AudioData       []byte    `json:"-" db:"audio_data"`
	SourceText      string    `json:"source_text" db:"source_text"`
	Translation     string    `json:"translation,omitempty" db:"translation"`
	VoiceProfile    string    `json:"voice_profile" db:"voice_profile"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
	ByteSize        int64     `json:"byte_size" db:"byte_size"`
	DurationSeconds *float64  `json:"duration_seconds,omitempty" db:"duration_seconds"`
}

// NewAudioRecord builds an unsaved record from a synthesized payload.
// The ID and CreatedAt fields are assigned by the store on create.
func NewAudioRecord(audioData []byte, sourceText string, voiceProfile string) *AudioRecord {
	if voiceProfile == "" {
		voiceProfile = DefaultVoiceProfile
	}
	return &AudioRecord{
		AudioData:    audioData,
		SourceText:   TruncateSourceText(sourceText),
		VoiceProfile: voiceProfile,
		ByteSize:     int64(len(audioData)),
	}
}

// Validate checks the fields a caller must supply before a create.
func (r *AudioRecord) Validate() error {
	if len(r.AudioData) == 0 {
		return ErrInvalidInput
	}
	if r.SourceText == "" {
		return ErrInvalidInput
	}
	return nil
}

// TruncateSourceText cuts text down to MaxSourceTextLen UTF-16 code
// units, keeping whole runes.
func TruncateSourceText(text string) string {
	units := 0
	for i, r := range text {
		units += utf16.RuneLen(r)
		if units > MaxSourceTextLen {
			return text[:i]
		}
	}
	return text
}
