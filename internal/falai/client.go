package falai

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
	modelTextToImage  = "fal-ai/flux/schnell"
	modelImageToImage = "fal-ai/flux/dev/image-to-image"

	maxErrorBody = 200
)

type Options struct {
	BaseURL    string
	HTTPClient *http.Client
	Timeout    time.Duration
	Logger     *slog.Logger
}

// Client calls FAL's synchronous run endpoint.
type Client struct {
	baseURL    string
	httpClient *http.Client
	timeout    time.Duration
	logger     *slog.Logger
}

var _ imagegen.Provider = (*Client)(nil)

func New(opts Options) *Client {
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://fal.run"
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
		baseURL:    baseURL,
		httpClient: opts.HTTPClient,
		timeout:    timeout,
		logger:     logger,
	}
}

func (c *Client) Name() string          { return "fal" }
func (c *Client) CredentialKey() string { return settings.FalKey }

func (c *Client) Generate(ctx context.Context, snap settings.Snapshot, req imagegen.Request) ([]string, error) {
	apiKey := snap.Get(settings.FalKey)
	if apiKey == "" {
		return nil, errors.New("FAL_KEY is not configured")
	}
	if c.httpClient == nil {
		return nil, errors.New("http client is nil")
	}

	model, payload := buildInput(req)
	c.logger.Debug("fal request", "model", model, "images", payload.NumImages, "img2img", payload.ImageURL != "")

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	url := fmt.Sprintf("%s/%s", c.baseURL, model)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("content-type", "application/json")
	httpReq.Header.Set("authorization", "Key "+apiKey)

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("fal request: %w", err)
	}
	defer httpResp.Body.Close()

	rawBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if httpResp.StatusCode >= 400 {
		return nil, fmt.Errorf("fal API %s: %s", httpResp.Status, snippet(rawBody))
	}

	var decoded runResponse
	if err := json.Unmarshal(rawBody, &decoded); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	urls := make([]string, 0, len(decoded.Images))
	for _, img := range decoded.Images {
		if img.URL != "" {
			urls = append(urls, img.URL)
		}
	}
	if len(urls) == 0 {
		return nil, errors.New("fal returned no images")
	}
	return urls, nil
}

func buildInput(req imagegen.Request) (string, runInput) {
	width, height := req.Width, req.Height
	if width <= 0 {
		width = 1024
	}
	if height <= 0 {
		height = 1024
	}

	in := runInput{
		Prompt:              req.Prompt,
		ImageSize:           imageSize{Width: width, Height: height},
		NumImages:           imagegen.ClampCount(req.Count),
		EnableSafetyChecker: true,
		Seed:                req.Seed,
	}

	model := modelTextToImage
	if req.Base != nil && req.Base.URL != "" {
		model = modelImageToImage
		strength := req.Base.Strength
		in.ImageURL = req.Base.URL
		in.Strength = &strength
	}
	return model, in
}

type runInput struct {
	Prompt              string    `json:"prompt"`
	ImageSize           imageSize `json:"image_size"`
	NumImages           int       `json:"num_images"`
	EnableSafetyChecker bool      `json:"enable_safety_checker"`
	Seed                *int64    `json:"seed,omitempty"`
	ImageURL            string    `json:"image_url,omitempty"`
	Strength            *float64  `json:"strength,omitempty"`
}

type imageSize struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

type runResponse struct {
	Images []struct {
		URL string `json:"url"`
	} `json:"images"`
}

func snippet(body []byte) string {
	s := strings.TrimSpace(string(body))
	r := []rune(s)
	if len(r) <= maxErrorBody {
		return s
	}
	return string(r[:maxErrorBody]) + "..."
}
