package client

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"

	"golang.org/x/time/rate"

	"github.com/estudioia/videos-api/internal/config"
)

// AzureTTSClient handles communication with Azure Cognitive Services speech
type AzureTTSClient struct {
	httpClient   *http.Client
	endpoint     string
	apiKey       string
	defaultVoice string
	limiter      *rate.Limiter
}

// NewAzureTTSClient creates a new Azure speech client
func NewAzureTTSClient(cfg *config.TTSConfig) *AzureTTSClient {
	return &AzureTTSClient{
		httpClient:   &http.Client{Timeout: cfg.Timeout},
		endpoint:     fmt.Sprintf("https://%s.tts.speech.microsoft.com/cognitiveservices/v1", cfg.AzureRegion),
		apiKey:       cfg.AzureKey,
		defaultVoice: cfg.DefaultVoice,
		limiter:      newLimiter(cfg.RequestsPerSec),
	}
}

func (c *AzureTTSClient) Name() string { return "azure" }

// IsConfigured returns true if the client has valid configuration
func (c *AzureTTSClient) IsConfigured() bool {
	return c.apiKey != ""
}

// Synthesize converts text to MP3 audio through SSML
func (c *AzureTTSClient) Synthesize(ctx context.Context, text, voiceID string, opts SpeechOptions) (*Speech, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("text is required")
	}
	if voiceID == "" || !strings.Contains(voiceID, "Neural") {
		voiceID = c.defaultVoice
	}
	language := opts.Language
	if language == "" {
		language = localeOf(voiceID)
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	ssml, err := buildSSML(text, language, voiceID, opts.Speed)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(ssml))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Ocp-Apim-Subscription-Key", c.apiKey)
	req.Header.Set("Content-Type", "application/ssml+xml")
	req.Header.Set("X-Microsoft-OutputFormat", "audio-24khz-160kbitrate-mono-mp3")

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
		return nil, fmt.Errorf("azure TTS error (status %d): %s", resp.StatusCode, truncate(string(audio), 200))
	}

	return &Speech{
		Audio:       audio,
		ContentType: "audio/mpeg",
		Duration:    EstimateSpeechDuration(text, opts.Speed),
		Provider:    c.Name(),
	}, nil
}

type ssmlSpeak struct {
	XMLName xml.Name  `xml:"speak"`
	Version string    `xml:"version,attr"`
	Lang    string    `xml:"xml:lang,attr"`
	Voice   ssmlVoice `xml:"voice"`
}

type ssmlVoice struct {
	Name    string      `xml:"name,attr"`
	Prosody ssmlProsody `xml:"prosody"`
}

type ssmlProsody struct {
	Rate string `xml:"rate,attr"`
	Text string `xml:",chardata"`
}

func buildSSML(text, language, voice string, speed float64) ([]byte, error) {
	rate := "0%"
	if speed > 0 && speed != 1 {
		rate = fmt.Sprintf("%+d%%", int(math.Round((speed-1)*100)))
	}
	doc := ssmlSpeak{
		Version: "1.0",
		Lang:    language,
		Voice: ssmlVoice{
			Name:    voice,
			Prosody: ssmlProsody{Rate: rate, Text: text},
		},
	}
	out, err := xml.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to build SSML: %w", err)
	}
	return out, nil
}

// localeOf extracts "pt-BR" from "pt-BR-FranciscaNeural".
func localeOf(voice string) string {
	parts := strings.SplitN(voice, "-", 3)
	if len(parts) < 3 {
		return "pt-BR"
	}
	return parts[0] + "-" + parts[1]
}
