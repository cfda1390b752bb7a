package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strings"

	"static-ads-backend/internal/apperr"
	"static-ads-backend/internal/fallback"
	"static-ads-backend/internal/settings"
)

const jsonInstruction = "\n\nRespond ONLY with valid JSON. No markdown, no explanation, no code fences."

var ErrNoProvider = errors.New("no text generation provider available")

// TextProvider is one text-generation backend. jsonMode asks the backend for
// a JSON-only response where it supports that.
type TextProvider interface {
	Name() string
	CredentialKey() string
	GenerateText(ctx context.Context, snap settings.Snapshot, prompt string, jsonMode bool) (string, error)
}

type SettingsSource interface {
	Current(ctx context.Context) settings.Snapshot
}

type Options struct {
	Providers []TextProvider
	Settings  SettingsSource
	Logger    *slog.Logger
}

// Client runs text prompts against the first configured provider that
// answers, in priority order.
type Client struct {
	providers []TextProvider
	settings  SettingsSource
	logger    *slog.Logger
}

func New(opts Options) *Client {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Client{
		providers: append([]TextProvider(nil), opts.Providers...),
		settings:  opts.Settings,
		logger:    logger,
	}
}

func (c *Client) GenerateText(ctx context.Context, prompt string) (string, error) {
	return c.run(ctx, func(ctx context.Context, snap settings.Snapshot, p TextProvider) (string, error) {
		text, err := p.GenerateText(ctx, snap, prompt, false)
		if err != nil {
			return "", err
		}
		text = strings.TrimSpace(text)
		if text == "" {
			return "", fmt.Errorf("%s returned an empty response", p.Name())
		}
		return text, nil
	})
}

// GenerateJSON asks for a JSON-only answer and decodes it into out. A
// response that does not parse counts as a provider failure.
func (c *Client) GenerateJSON(ctx context.Context, prompt string, out any) error {
	raw, err := c.run(ctx, func(ctx context.Context, snap settings.Snapshot, p TextProvider) (string, error) {
		text, err := p.GenerateText(ctx, snap, prompt+jsonInstruction, true)
		if err != nil {
			return "", err
		}
		cleaned := StripFences(text)
		if !json.Valid([]byte(cleaned)) {
			return "", fmt.Errorf("%s returned invalid JSON: %s", p.Name(), truncate(cleaned, 200))
		}
		return cleaned, nil
	})
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return apperr.Provider("invalid_json", fmt.Errorf("decode JSON response: %w", err))
	}
	return nil
}

func (c *Client) run(ctx context.Context, fn func(context.Context, settings.Snapshot, TextProvider) (string, error)) (string, error) {
	var snap settings.Snapshot
	if c.settings != nil {
		snap = c.settings.Current(ctx)
	}

	var configured []TextProvider
	for _, p := range c.providers {
		if snap.Has(p.CredentialKey()) {
			configured = append(configured, p)
		}
	}
	if len(configured) == 0 {
		return "", apperr.Config("no_text_provider", fmt.Errorf("%w: set %s in settings", ErrNoProvider, c.keyList()))
	}

	out, idx, err := fallback.TryInOrder(ctx, configured,
		func(ctx context.Context, p TextProvider) (string, error) {
			return fn(ctx, snap, p)
		},
		func(i int, err error) {
			c.logger.Warn("text provider failed", "provider", configured[i].Name(), "err", err)
		},
	)
	if err != nil {
		return "", apperr.Provider("text_provider_failed", err)
	}
	c.logger.Debug("text provider served request", "provider", configured[idx].Name())
	return out, nil
}

func (c *Client) keyList() string {
	keys := make([]string, 0, len(c.providers))
	for _, p := range c.providers {
		keys = append(keys, p.CredentialKey())
	}
	return strings.Join(keys, " or ")
}

var (
	leadingFence  = regexp.MustCompile("(?i)^```(?:json)?\\s*")
	trailingFence = regexp.MustCompile("```\\s*$")
)

// StripFences removes a Markdown code fence wrapped around a response.
func StripFences(s string) string {
	s = strings.TrimSpace(s)
	s = leadingFence.ReplaceAllString(s, "")
	s = trailingFence.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
