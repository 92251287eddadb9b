package translate

import (
	"context"
	"fmt"

	"github.com/voxkeep/voxkeep/domain/repositories"
)

// MockTranslator is a placeholder implementation used when no Gemini
// API key is configured.
type MockTranslator struct{}

// NewMockTranslator creates a new mock translator
func NewMockTranslator() repositories.Translator {
	return &MockTranslator{}
}

// Translate implements repositories.Translator
func (t *MockTranslator) Translate(ctx context.Context, text string, targetLanguage string) (string, error) {
	return fmt.Sprintf("[%s] %s", targetLanguage, text), nil
}
