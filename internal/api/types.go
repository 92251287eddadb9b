package api

// SynthesizeRequest asks the server to synthesize and archive text.
type SynthesizeRequest struct {
	Text         string `json:"text"`
	VoiceProfile string `json:"voice_profile,omitempty"`
}

// TranslationRequest sets a record's translation explicitly.
type TranslationRequest struct {
	Translation string `json:"translation"`
}

// ViewerAuthRequest asks for a relay token for a view.
type ViewerAuthRequest struct {
	View string `json:"view"` // "history" or "options"
}

// ViewerAuthResponse carries the token a view presents on /ws.
type ViewerAuthResponse struct {
	ViewerID string `json:"viewer_id"`
	Token    string `json:"token"`
}

// ErrorResponse is the common error envelope.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}
