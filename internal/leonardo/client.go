package leonardo

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"static-ads-backend/internal/imagegen"
	"static-ads-backend/internal/settings"
)

const (
	statusComplete = "COMPLETE"
	statusFailed   = "FAILED"

	maxErrorBody = 200
)

type Options struct {
	BaseURL      string
	HTTPClient   *http.Client
	PollInterval time.Duration
	Timeout      time.Duration
	Logger       *slog.Logger
}

// Client submits a generation job to Leonardo and polls until it finishes.
type Client struct {
	baseURL      string
	httpClient   *http.Client
	pollInterval time.Duration
	timeout      time.Duration
	logger       *slog.Logger
}

var _ imagegen.Provider = (*Client)(nil)

func New(opts Options) *Client {
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://cloud.leonardo.ai/api/rest/v1"
	}

	pollInterval := opts.PollInterval
	if pollInterval <= 0 {
		pollInterval = 3 * time.Second
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Client{
		baseURL:      baseURL,
		httpClient:   opts.HTTPClient,
		pollInterval: pollInterval,
		timeout:      timeout,
		logger:       logger,
	}
}

func (c *Client) Name() string          { return "leonardo" }
func (c *Client) CredentialKey() string { return settings.LeonardoAPIKey }

func (c *Client) Generate(ctx context.Context, snap settings.Snapshot, req imagegen.Request) ([]string, error) {
	apiKey := snap.Get(settings.LeonardoAPIKey)
	if apiKey == "" {
		return nil, errors.New("LEONARDO_API_KEY is not configured")
	}
	if c.httpClient == nil {
		return nil, errors.New("http client is nil")
	}
	if req.Base != nil {
		c.logger.Info("leonardo runs text-to-image only, base image ignored", "base", req.Base.URL)
	}

	width, height := req.Width, req.Height
	if width <= 0 {
		width = 1024
	}
	if height <= 0 {
		height = 1024
	}

	create := createRequest{
		Prompt:            req.Prompt,
		ModelID:           snap.Get(settings.LeonardoModelID),
		Width:             width,
		Height:            height,
		NumImages:         imagegen.ClampCount(req.Count),
		GuidanceScale:     7,
		NumInferenceSteps: 30,
		Public:            false,
	}

	var created createResponse
	if err := c.do(ctx, http.MethodPost, "/generations", apiKey, create, &created); err != nil {
		return nil, err
	}
	generationID := created.SDGenerationJob.GenerationID
	if generationID == "" {
		return nil, errors.New("leonardo did not return a generation id")
	}
	c.logger.Debug("leonardo generation started", "generation_id", generationID)

	return c.poll(ctx, apiKey, generationID)
}

func (c *Client) poll(ctx context.Context, apiKey, generationID string) ([]string, error) {
	deadline := time.NewTimer(c.timeout)
	defer deadline.Stop()

	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-deadline.C:
			return nil, fmt.Errorf("leonardo generation timed out after %s", c.timeout)
		case <-ticker.C:
		}

		var polled pollResponse
		if err := c.do(ctx, http.MethodGet, "/generations/"+generationID, apiKey, nil, &polled); err != nil {
			return nil, err
		}
		gen := polled.Generation
		if gen == nil {
			return nil, errors.New("leonardo polling returned an empty response")
		}

		c.logger.Debug("leonardo status", "generation_id", generationID, "status", gen.Status)
		switch gen.Status {
		case statusComplete:
			urls := make([]string, 0, len(gen.GeneratedImages))
			for _, img := range gen.GeneratedImages {
				if img.URL != "" {
					urls = append(urls, img.URL)
				}
			}
			if len(urls) == 0 {
				return nil, errors.New("leonardo completed but returned no images")
			}
			return urls, nil
		case statusFailed:
			return nil, errors.New("leonardo generation failed")
		}
	}
}

func (c *Client) do(ctx context.Context, method, path, apiKey string, payload any, out any) error {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if payload != nil {
		httpReq.Header.Set("content-type", "application/json")
	}
	httpReq.Header.Set("authorization", "Bearer "+apiKey)

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("leonardo request: %w", err)
	}
	defer httpResp.Body.Close()

	rawBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if httpResp.StatusCode >= 400 {
		return fmt.Errorf("leonardo API %s: %s", httpResp.Status, snippet(rawBody))
	}
	if err := json.Unmarshal(rawBody, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

type createRequest struct {
	Prompt            string `json:"prompt"`
	ModelID           string `json:"modelId"`
	Width             int    `json:"width"`
	Height            int    `json:"height"`
	NumImages         int    `json:"num_images"`
	GuidanceScale     int    `json:"guidance_scale"`
	NumInferenceSteps int    `json:"num_inference_steps"`
	Public            bool   `json:"public"`
}

type createResponse struct {
	SDGenerationJob struct {
		GenerationID string `json:"generationId"`
	} `json:"sdGenerationJob"`
}

type pollResponse struct {
	Generation *struct {
		Status          string `json:"status"`
		GeneratedImages []struct {
			URL string `json:"url"`
		} `json:"generated_images"`
	} `json:"generations_by_pk"`
}

func snippet(body []byte) string {
	s := strings.TrimSpace(string(body))
	r := []rune(s)
	if len(r) <= maxErrorBody {
		return s
	}
	return string(r[:maxErrorBody]) + "..."
}
