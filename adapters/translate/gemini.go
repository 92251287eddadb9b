// Package translate produces translations of stored source text, used
// to fill a record's translation field on demand.
package translate

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/voxkeep/voxkeep/domain/repositories"
)

const (
	defaultModel   = "gemini-2.0-flash"
	requestTimeout = 30 * time.Second
)

// GeminiTranslator implements the Translator interface using Google's
// Gemini API.
type GeminiTranslator struct {
	client *genai.Client
	logger *zap.Logger
	model  string
}

var _ repositories.Translator = (*GeminiTranslator)(nil)

// NewGeminiTranslator creates a new Gemini-backed translator.
func NewGeminiTranslator(apiKey string, logger *zap.Logger) (*GeminiTranslator, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}

	ctx := context.Background()
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &GeminiTranslator{
		client: client,
		logger: logger,
		model:  defaultModel,
	}, nil
}

// Translate returns targetLanguage text for the given source text.
func (t *GeminiTranslator) Translate(ctx context.Context, text string, targetLanguage string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("text to translate is empty")
	}
	if targetLanguage == "" {
		targetLanguage = "Japanese"
	}

	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	prompt := fmt.Sprintf(
		"Translate the following text into %s. Reply with the translation only, no explanations.\n\n%s",
		targetLanguage, text)
	contents := []*genai.Content{
		genai.NewContentFromText(prompt, genai.RoleUser),
	}
	config := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(0.2)),
	}

	response, err := t.client.Models.GenerateContent(ctx, t.model, contents, config)
	if err != nil {
		t.logger.Error("Failed to generate translation", zap.Error(err))
		return "", fmt.Errorf("generate translation: %w", err)
	}

	if len(response.Candidates) == 0 || response.Candidates[0].Content == nil ||
		len(response.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("no translation generated")
	}

	var translation string
	for _, part := range response.Candidates[0].Content.Parts {
		if part.Text != "" {
			translation += part.Text
		}
	}
	translation = strings.TrimSpace(translation)
	if translation == "" {
		return "", fmt.Errorf("empty translation generated")
	}
	return translation, nil
}
