package entities

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAudioRecordDefaults(t *testing.T) {
	record := NewAudioRecord([]byte("audio"), "Hello world", "")

	assert.Equal(t, DefaultVoiceProfile, record.VoiceProfile)
	assert.Equal(t, "Hello world", record.SourceText)
	assert.Equal(t, int64(5), record.ByteSize)
	assert.Zero(t, record.ID)
	assert.True(t, record.CreatedAt.IsZero())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		record  *AudioRecord
		wantErr error
	}{
		{
			name:   "valid",
			record: NewAudioRecord([]byte("audio"), "text", "af_heart"),
		},
		{
			name:    "empty payload",
			record:  NewAudioRecord(nil, "text", ""),
			wantErr: ErrInvalidInput,
		},
		{
			name:    "empty text",
			record:  NewAudioRecord([]byte("audio"), "", ""),
			wantErr: ErrInvalidInput,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.record.Validate()
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestTruncateSourceText(t *testing.T) {
	short := "Hello world"
	assert.Equal(t, short, TruncateSourceText(short))

	long := strings.Repeat("a", 1500)
	truncated := TruncateSourceText(long)
	assert.Len(t, truncated, MaxSourceTextLen)

	// Multibyte runes count by UTF-16 units, not bytes.
	kana := strings.Repeat("あ", 1200)
	truncated = TruncateSourceText(kana)
	require.Equal(t, MaxSourceTextLen, len([]rune(truncated)))

	// Surrogate-pair runes take two units each.
	emoji := strings.Repeat("😀", 700)
	truncated = TruncateSourceText(emoji)
	assert.Equal(t, MaxSourceTextLen/2, len([]rune(truncated)))
}
