package repositories

import "context"

// Translator produces a translation of a stored clip's source text.
type Translator interface {
	Translate(ctx context.Context, text string, targetLanguage string) (string, error)
}
