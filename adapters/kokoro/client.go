// Package kokoro implements the TextToSpeech interface against the
// fal.run Kokoro queue API: submit a job, poll its status URL, then
// download the resulting audio.
package kokoro

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/voxkeep/voxkeep/domain/repositories"
)

const (
	defaultAPIBaseURL   = "https://queue.fal.run/fal-ai/kokoro/american-english"
	defaultPollAttempts = 30
	defaultPollDelay    = 1 * time.Second
	maxAudioBytes       = 32 << 20 // 32MB cap on a downloaded clip
)

// Config holds configuration for the Kokoro TTS adapter.
// Required fields:
// - APIKey: your fal.ai API key
// Optional fields with defaults:
// - APIBaseURL: queue endpoint (default: the american-english pipeline)
// - PollAttempts: status poll budget (default: 30)
// - PollDelay: delay between polls (default: 1s)
type Config struct {
	APIKey       string
	APIBaseURL   string
	PollAttempts int
	PollDelay    time.Duration
}

// Client implements TextToSpeech using the Kokoro queue API.
type Client struct {
	apiKey       string
	apiBaseURL   string
	pollAttempts int
	pollDelay    time.Duration
	httpClient   *http.Client
	logger       *zap.Logger
}

// Ensure Client implements the TextToSpeech interface
var _ repositories.TextToSpeech = (*Client)(nil)

type queueResponse struct {
	StatusURL   string `json:"status_url"`
	ResponseURL string `json:"response_url"`
}

type statusResponse struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// resultResponse covers the shapes the API has been observed to
// return; exactly one of the URL fields is populated.
type resultResponse struct {
	AudioURL string `json:"audio_url,omitempty"`
	Audio    *struct {
		URL      string   `json:"url"`
		Duration *float64 `json:"duration,omitempty"`
	} `json:"audio,omitempty"`
	Output json.RawMessage `json:"output,omitempty"`
}

// ValidateConfig validates the Kokoro configuration.
func ValidateConfig(config Config) error {
	if config.APIKey == "" {
		return fmt.Errorf("kokoro API key is required")
	}
	if config.PollAttempts < 0 {
		return fmt.Errorf("poll attempts must be positive, got %d", config.PollAttempts)
	}
	return nil
}

// NewClient creates a new Kokoro TTS client.
func NewClient(config Config, logger *zap.Logger) (*Client, error) {
	if err := ValidateConfig(config); err != nil {
		return nil, err
	}

	apiBaseURL := config.APIBaseURL
	if apiBaseURL == "" {
		apiBaseURL = defaultAPIBaseURL
	}
	pollAttempts := config.PollAttempts
	if pollAttempts == 0 {
		pollAttempts = defaultPollAttempts
	}
	pollDelay := config.PollDelay
	if pollDelay == 0 {
		pollDelay = defaultPollDelay
	}

	return &Client{
		apiKey:       config.APIKey,
		apiBaseURL:   apiBaseURL,
		pollAttempts: pollAttempts,
		pollDelay:    pollDelay,
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		logger:       logger,
	}, nil
}

// Synthesize queues a synthesis job, polls it to completion and
// downloads the audio payload.
func (c *Client) Synthesize(ctx context.Context, text string, voiceProfile string) (*repositories.SynthesisResult, error) {
	queued, err := c.submit(ctx, text, voiceProfile)
	if err != nil {
		return nil, err
	}
	if queued.StatusURL == "" || queued.ResponseURL == "" {
		return nil, fmt.Errorf("queue response missing status or response URL")
	}

	result, err := c.pollStatus(ctx, queued)
	if err != nil {
		return nil, err
	}

	audioURL, duration := extractAudio(result)
	if audioURL == "" {
		return nil, fmt.Errorf("synthesis result contains no audio URL")
	}

	audioData, contentType, err := c.download(ctx, audioURL)
	if err != nil {
		return nil, err
	}

	c.logger.Info("Synthesis completed",
		zap.String("voiceProfile", voiceProfile),
		zap.Int("byteSize", len(audioData)))

	return &repositories.SynthesisResult{
		AudioData:       audioData,
		ContentType:     contentType,
		DurationSeconds: duration,
	}, nil
}

func (c *Client) submit(ctx context.Context, text string, voiceProfile string) (*queueResponse, error) {
	body, err := json.Marshal(map[string]string{
		"prompt": text,
		"voice":  voiceProfile,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiBaseURL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Key "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("submit synthesis job: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		errText, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("synthesis request failed: %d - %s", resp.StatusCode, errText)
	}

	var queued queueResponse
	if err := json.NewDecoder(resp.Body).Decode(&queued); err != nil {
		return nil, fmt.Errorf("decode queue response: %w", err)
	}
	return &queued, nil
}

// pollStatus checks the job status with a bounded attempt count and a
// fixed per-attempt delay, then fetches the final result.
func (c *Client) pollStatus(ctx context.Context, queued *queueResponse) (*resultResponse, error) {
	for attempt := 0; attempt < c.pollAttempts; attempt++ {
		status, err := c.getStatus(ctx, queued.StatusURL)
		if err != nil {
			return nil, err
		}

		switch status.Status {
		case "COMPLETED":
			return c.getResult(ctx, queued.ResponseURL)
		case "FAILED":
			if status.Error != "" {
				return nil, fmt.Errorf("synthesis failed: %s", status.Error)
			}
			return nil, fmt.Errorf("synthesis failed")
		default:
			c.logger.Debug("Synthesis still in progress",
				zap.String("status", status.Status),
				zap.Int("attempt", attempt+1))
		}

		select {
		case <-time.After(c.pollDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return nil, fmt.Errorf("synthesis timed out after %d attempts", c.pollAttempts)
}

func (c *Client) getStatus(ctx context.Context, statusURL string) (*statusResponse, error) {
	var status statusResponse
	if err := c.getJSON(ctx, statusURL, &status); err != nil {
		return nil, fmt.Errorf("status check: %w", err)
	}
	return &status, nil
}

func (c *Client) getResult(ctx context.Context, responseURL string) (*resultResponse, error) {
	var result resultResponse
	if err := c.getJSON(ctx, responseURL, &result); err != nil {
		return nil, fmt.Errorf("fetch result: %w", err)
	}
	return &result, nil
}

func (c *Client) getJSON(ctx context.Context, url string, v interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Key "+c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errText, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("%d - %s", resp.StatusCode, errText)
	}
	return json.NewDecoder(resp.Body).Decode(v)
}

func (c *Client) download(ctx context.Context, url string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("download audio: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("download audio: %d", resp.StatusCode)
	}

	audioData, err := io.ReadAll(io.LimitReader(resp.Body, maxAudioBytes))
	if err != nil {
		return nil, "", fmt.Errorf("read audio body: %w", err)
	}
	return audioData, resp.Header.Get("Content-Type"), nil
}

// extractAudio pulls the audio URL and optional duration out of the
// result, whichever shape it arrived in.
func extractAudio(result *resultResponse) (string, *float64) {
	if result.Audio != nil && result.Audio.URL != "" {
		return result.Audio.URL, result.Audio.Duration
	}
	if result.AudioURL != "" {
		return result.AudioURL, nil
	}
	if len(result.Output) > 0 {
		var direct string
		if err := json.Unmarshal(result.Output, &direct); err == nil && direct != "" {
			return direct, nil
		}
		var nested struct {
			URL string `json:"url"`
		}
		if err := json.Unmarshal(result.Output, &nested); err == nil && nested.URL != "" {
			return nested.URL, nil
		}
	}
	return "", nil
}
