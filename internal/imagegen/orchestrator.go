package imagegen

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"static-ads-backend/internal/apperr"
	"static-ads-backend/internal/fallback"
	"static-ads-backend/internal/settings"
)

var ErrNoProvider = errors.New("no image generation provider available")

// Provider is one image-generation backend.
type Provider interface {
	Name() string
	CredentialKey() string
	Generate(ctx context.Context, snap settings.Snapshot, req Request) ([]string, error)
}

type Result struct {
	Provider string
	URLs     []string
}

type Options struct {
	Providers []Provider
	Logger    *slog.Logger
}

// Orchestrator tries providers in priority order and returns the first
// non-empty result.
type Orchestrator struct {
	providers []Provider
	logger    *slog.Logger
}

func NewOrchestrator(opts Options) *Orchestrator {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Orchestrator{
		providers: append([]Provider(nil), opts.Providers...),
		logger:    logger,
	}
}

func (o *Orchestrator) Generate(ctx context.Context, snap settings.Snapshot, req Request) (Result, error) {
	req.Count = ClampCount(req.Count)

	var configured []Provider
	for _, p := range o.providers {
		if snap.Has(p.CredentialKey()) {
			configured = append(configured, p)
			continue
		}
		o.logger.Debug("image provider not configured", "provider", p.Name(), "key", p.CredentialKey())
	}

	if len(configured) == 0 {
		return Result{}, apperr.Config("no_provider", fmt.Errorf("%w: set %s in settings", ErrNoProvider, o.keyList()))
	}

	res, idx, err := fallback.TryInOrder(ctx, configured,
		func(ctx context.Context, p Provider) (Result, error) {
			urls, err := p.Generate(ctx, snap, req)
			if err != nil {
				return Result{}, err
			}
			urls = nonEmpty(urls)
			if len(urls) == 0 {
				return Result{}, fmt.Errorf("%s returned no images", p.Name())
			}
			return Result{Provider: p.Name(), URLs: urls}, nil
		},
		func(i int, err error) {
			o.logger.Warn("image provider failed", "provider", configured[i].Name(), "err", err)
		},
	)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Result{}, apperr.Provider("provider_failed", fmt.Errorf("image generation canceled: %w", ctxErr))
		}
		return Result{}, apperr.Provider("provider_failed", fmt.Errorf("%w (set %s): %v", ErrNoProvider, o.keyList(), err))
	}

	o.logger.Info("image provider served request", "provider", configured[idx].Name(), "images", len(res.URLs))
	return res, nil
}

func (o *Orchestrator) keyList() string {
	keys := make([]string, 0, len(o.providers))
	for _, p := range o.providers {
		keys = append(keys, p.CredentialKey())
	}
	return strings.Join(keys, " or ")
}

func nonEmpty(urls []string) []string {
	out := make([]string, 0, len(urls))
	for _, u := range urls {
		if u = strings.TrimSpace(u); u != "" {
			out = append(out, u)
		}
	}
	return out
}
