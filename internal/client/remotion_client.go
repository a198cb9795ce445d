package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/estudioia/videos-api/internal/config"
)

// Renderer drives a video composition engine
type Renderer interface {
	Bundle(ctx context.Context) (string, error)
	SelectComposition(ctx context.Context, bundle, compositionID string, props any) (*Composition, error)
	RenderMedia(ctx context.Context, req *RenderRequest, onProgress func(float64)) error
}

// Composition is the resolved video composition metadata
type Composition struct {
	ID               string `json:"id"`
	ServeURL         string `json:"serveUrl"`
	Width            int    `json:"width"`
	Height           int    `json:"height"`
	FPS              int    `json:"fps"`
	DurationInFrames int    `json:"durationInFrames"`
}

// RenderRequest describes one render
type RenderRequest struct {
	Composition *Composition `json:"composition"`
	Props       any          `json:"inputProps"`
	Codec       string       `json:"codec"`
	CRF         int          `json:"crf"`
	Bitrate     string       `json:"videoBitrate,omitempty"`
	Format      string       `json:"format"`
	OutputPath  string       `json:"-"`
}

type renderStarted struct {
	RenderID string `json:"renderId"`
}

type renderStatus struct {
	Status   string  `json:"status"`
	Progress float64 `json:"progress"`
	Error    string  `json:"error,omitempty"`
}

// RemotionClient talks to a Remotion render service over HTTP
type RemotionClient struct {
	httpClient   *http.Client
	baseURL      string
	pollInterval time.Duration
	log          logrus.FieldLogger
}

// NewRemotionClient creates a new render service client
func NewRemotionClient(cfg *config.RendererConfig, log logrus.FieldLogger) *RemotionClient {
	return &RemotionClient{
		httpClient:   &http.Client{Timeout: cfg.Timeout},
		baseURL:      strings.TrimRight(cfg.ServiceURL, "/"),
		pollInterval: cfg.PollInterval,
		log:          log.WithField("component", "remotion"),
	}
}

// IsConfigured returns true if the client has valid configuration
func (c *RemotionClient) IsConfigured() bool {
	return c.baseURL != ""
}

// Bundle prepares the composition bundle and returns its serve URL
func (c *RemotionClient) Bundle(ctx context.Context) (string, error) {
	var result struct {
		ServeURL string `json:"serveUrl"`
	}
	if err := c.post(ctx, "/bundles", map[string]string{}, &result); err != nil {
		return "", err
	}
	if result.ServeURL == "" {
		return "", fmt.Errorf("render service returned an empty bundle")
	}
	return result.ServeURL, nil
}

// SelectComposition resolves the composition with the given input props
func (c *RemotionClient) SelectComposition(ctx context.Context, bundle, compositionID string, props any) (*Composition, error) {
	body := map[string]any{
		"serveUrl":   bundle,
		"id":         compositionID,
		"inputProps": props,
	}
	var result Composition
	if err := c.post(ctx, "/compositions", body, &result); err != nil {
		return nil, err
	}
	if result.ServeURL == "" {
		result.ServeURL = bundle
	}
	return &result, nil
}

// RenderMedia starts a render, polls until it finishes and downloads the output
func (c *RemotionClient) RenderMedia(ctx context.Context, req *RenderRequest, onProgress func(float64)) error {
	var started renderStarted
	if err := c.post(ctx, "/renders", req, &started); err != nil {
		return err
	}
	c.log.WithField("render_id", started.RenderID).Debug("render started")

	for {
		var status renderStatus
		if err := c.get(ctx, "/renders/"+started.RenderID, &status); err != nil {
			return err
		}
		if onProgress != nil {
			onProgress(status.Progress)
		}

		switch status.Status {
		case "done", "completed":
			return c.download(ctx, "/renders/"+started.RenderID+"/output", req.OutputPath)
		case "error", "failed":
			if status.Error == "" {
				status.Error = status.Status
			}
			return fmt.Errorf("render failed: %s", status.Error)
		}

		select {
		case <-ctx.Done():
			c.cancelRender(started.RenderID)
			return ctx.Err()
		case <-time.After(c.pollInterval):
		}
	}
}

// cancelRender is best effort; the caller's context is already gone
func (c *RemotionClient) cancelRender(renderID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+"/renders/"+renderID, nil)
	if err != nil {
		return
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.WithError(err).WithField("render_id", renderID).Warn("failed to cancel remote render")
		return
	}
	resp.Body.Close()
}

func (c *RemotionClient) download(ctx context.Context, endpoint, outputPath string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	// downloads can outlast the API timeout
	client := &http.Client{Transport: c.httpClient.Transport}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to download render: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("render service error (status %d): %s", resp.StatusCode, string(body))
	}

	f, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		return fmt.Errorf("failed to write output file: %w", err)
	}
	return f.Close()
}

// post sends a POST request with JSON body
func (c *RemotionClient) post(ctx context.Context, endpoint string, body any, result any) error {
	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	return c.doRequest(req, result)
}

// get sends a GET request and parses JSON response
func (c *RemotionClient) get(ctx context.Context, endpoint string, result any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	return c.doRequest(req, result)
}

func (c *RemotionClient) doRequest(req *http.Request, result any) error {
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	c.log.WithFields(logrus.Fields{
		"method": req.Method,
		"url":    req.URL.Path,
		"status": resp.StatusCode,
	}).Debug("render service call")

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("render service error (status %d): %s", resp.StatusCode, truncate(string(respBody), 200))
	}
	if err := json.Unmarshal(respBody, result); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return nil
}

// MockRenderer simulates a render locally. Used when no render service is
// configured and in tests.
type MockRenderer struct {
	Steps     int
	StepDelay time.Duration
	// FailAt makes RenderMedia fail once this step is reached; 0 disables it.
	FailAt int
}

// NewMockRenderer returns a renderer that completes in a few short steps
func NewMockRenderer() *MockRenderer {
	return &MockRenderer{Steps: 5, StepDelay: 200 * time.Millisecond}
}

func (m *MockRenderer) Bundle(ctx context.Context) (string, error) {
	return "mock://bundle", ctx.Err()
}

func (m *MockRenderer) SelectComposition(ctx context.Context, bundle, compositionID string, _ any) (*Composition, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &Composition{ID: compositionID, ServeURL: bundle, Width: 1920, Height: 1080, FPS: 30}, nil
}

func (m *MockRenderer) RenderMedia(ctx context.Context, req *RenderRequest, onProgress func(float64)) error {
	steps := m.Steps
	if steps <= 0 {
		steps = 1
	}
	for i := 1; i <= steps; i++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(m.StepDelay):
		}
		if m.FailAt > 0 && i >= m.FailAt {
			return fmt.Errorf("mock render failed at step %d", i)
		}
		if onProgress != nil {
			onProgress(float64(i) / float64(steps))
		}
	}
	if req.OutputPath == "" {
		return nil
	}
	return os.WriteFile(req.OutputPath, []byte("mock video"), 0o644)
}
