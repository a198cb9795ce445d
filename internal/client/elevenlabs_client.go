package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"golang.org/x/time/rate"

	"github.com/estudioia/videos-api/internal/config"
)

const defaultElevenLabsVoice = "21m00Tcm4TlvDq8ikWAM"

// ElevenLabsClient handles communication with the ElevenLabs TTS API
type ElevenLabsClient struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	model      string
	limiter    *rate.Limiter
}

type elevenLabsRequest struct {
	Text          string                  `json:"text"`
	ModelID       string                  `json:"model_id"`
	VoiceSettings elevenLabsVoiceSettings `json:"voice_settings"`
}

type elevenLabsVoiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
	Speed           float64 `json:"speed,omitempty"`
}

// NewElevenLabsClient creates a new ElevenLabs client
func NewElevenLabsClient(cfg *config.TTSConfig) *ElevenLabsClient {
	return &ElevenLabsClient{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		baseURL:    strings.TrimRight(cfg.ElevenLabsURL, "/"),
		apiKey:     cfg.ElevenLabsKey,
		model:      cfg.ElevenLabsModel,
		limiter:    newLimiter(cfg.RequestsPerSec),
	}
}

func (c *ElevenLabsClient) Name() string { return "elevenlabs" }

// IsConfigured returns true if the client has valid configuration
func (c *ElevenLabsClient) IsConfigured() bool {
	return c.apiKey != ""
}

// Synthesize converts text to MP3 audio
func (c *ElevenLabsClient) Synthesize(ctx context.Context, text, voiceID string, opts SpeechOptions) (*Speech, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("text is required")
	}
	// Azure-style voice names are meaningless here
	if voiceID == "" || strings.Contains(voiceID, "Neural") {
		voiceID = defaultElevenLabsVoice
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	body, err := json.Marshal(elevenLabsRequest{
		Text:    text,
		ModelID: c.model,
		VoiceSettings: elevenLabsVoiceSettings{
			Stability:       0.5,
			SimilarityBoost: 0.75,
			Speed:           opts.Speed,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v1/text-to-speech/%s", c.baseURL, voiceID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/mpeg")
	req.Header.Set("xi-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("elevenlabs API error (status %d): %s", resp.StatusCode, truncate(string(audio), 200))
	}

	return &Speech{
		Audio:       audio,
		ContentType: "audio/mpeg",
		Duration:    EstimateSpeechDuration(text, opts.Speed),
		Provider:    c.Name(),
	}, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
