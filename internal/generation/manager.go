package generation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"static-ads-backend/internal/apperr"
	"static-ads-backend/internal/imagegen"
	"static-ads-backend/internal/prompt"
	"static-ads-backend/internal/settings"
	"static-ads-backend/internal/store"
)

// StaleMessage is stored on pending rows the reconciler gives up on.
const StaleMessage = "generation interrupted before completion"

type Store interface {
	GetClient(ctx context.Context, id uint) (store.Client, error)
	DefaultClient(ctx context.Context) (store.Client, error)
	BrandKit(ctx context.Context, clientID uint) (store.BrandKit, error)
	CreateGeneration(ctx context.Context, g *store.Generation) error
	GetGeneration(ctx context.Context, id uint) (store.Generation, error)
	CompleteGeneration(ctx context.Context, id uint, provider string, images []store.Image) error
	FailGeneration(ctx context.Context, id uint, message string) error
	DeleteGeneration(ctx context.Context, id uint) error
	ListGenerations(ctx context.Context, filter store.GenerationFilter) ([]store.Generation, int64, error)
	AppendTags(ctx context.Context, id uint, tags []store.CampaignTag) (store.Generation, error)
	FailStalePending(ctx context.Context, before time.Time, message string) (int64, error)
}

type ImageGenerator interface {
	Generate(ctx context.Context, snap settings.Snapshot, req imagegen.Request) (imagegen.Result, error)
}

type SettingsSource interface {
	Current(ctx context.Context) settings.Snapshot
}

type Options struct {
	Store    Store
	Images   ImageGenerator
	Settings SettingsSource
	Logger   *slog.Logger
	Now      func() time.Time
}

// Manager owns the pending -> completed|failed lifecycle of generations.
type Manager struct {
	store    Store
	images   ImageGenerator
	settings SettingsSource
	logger   *slog.Logger
	now      func() time.Time
}

type CreateParams struct {
	ClientID       uint
	Prompt         string
	Concept        string
	Avatar         string
	ReferenceImage string
	ProductImage   string
	Size           string
	AspectRatio    string
	UseBrandKit    bool
	NumImages      int
	Seed           *int64
	Tags           []store.CampaignTag
}

type ListResult struct {
	Generations []store.Generation `json:"generations"`
	Total       int64              `json:"total"`
	Limit       int                `json:"limit"`
	Offset      int                `json:"offset"`
}

func NewManager(opts Options) *Manager {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	now := opts.Now
	if now == nil {
		now = time.Now
	}

	return &Manager{
		store:    opts.Store,
		images:   opts.Images,
		settings: opts.Settings,
		logger:   logger,
		now:      now,
	}
}

// Create records a pending generation, then composes the prompt and calls the
// image providers. Once the row exists every failure is written to it, and
// the failed row is returned together with the error. Cancelling ctx does not
// stop a generation.
func (m *Manager) Create(ctx context.Context, p CreateParams) (store.Generation, error) {
	ctx = context.WithoutCancel(ctx)

	basePrompt := strings.TrimSpace(p.Prompt)
	if basePrompt == "" {
		return store.Generation{}, apperr.Validation("prompt_required", "prompt is required")
	}
	size, err := imagegen.ResolveSize(p.Size)
	if err != nil {
		return store.Generation{}, apperr.Validation("invalid_size", "%v", err)
	}
	client, err := m.resolveClient(ctx, p.ClientID)
	if err != nil {
		return store.Generation{}, err
	}

	aspect := strings.TrimSpace(p.AspectRatio)
	if aspect == "" {
		aspect = imagegen.AspectRatio(size)
	}

	g := store.Generation{
		ClientID:       client.ID,
		Prompt:         basePrompt,
		Concept:        strings.TrimSpace(p.Concept),
		Avatar:         strings.TrimSpace(p.Avatar),
		ReferenceImage: strings.TrimSpace(p.ReferenceImage),
		ProductImage:   strings.TrimSpace(p.ProductImage),
		Size:           size,
		AspectRatio:    aspect,
		UseBrandKit:    p.UseBrandKit,
		CampaignTags:   p.Tags,
	}
	if err := m.store.CreateGeneration(ctx, &g); err != nil {
		return store.Generation{}, apperr.Internal("store_error", fmt.Errorf("create generation: %w", err))
	}

	in := prompt.Input{
		BasePrompt:     g.Prompt,
		ReferenceImage: g.ReferenceImage,
		ProductImage:   g.ProductImage,
	}
	return m.run(ctx, g, in, p.NumImages, p.Seed)
}

// CreateEdit derives a new generation from a parent: the prompt gains a
// variation suffix, the parent's reference image (or its first output when it
// had none) becomes the base, and the product image carries over.
func (m *Manager) CreateEdit(ctx context.Context, parentID uint, instruction string, numImages int) (store.Generation, error) {
	ctx = context.WithoutCancel(ctx)

	if parentID == 0 {
		return store.Generation{}, apperr.Validation("parent_required", "parentId is required")
	}
	instruction = strings.TrimSpace(instruction)
	if instruction == "" {
		return store.Generation{}, apperr.Validation("instruction_required", "editInstruction is required")
	}

	parent, err := m.store.GetGeneration(ctx, parentID)
	if errors.Is(err, store.ErrNotFound) {
		return store.Generation{}, apperr.NotFound("generation_not_found", "parent generation %d not found", parentID)
	}
	if err != nil {
		return store.Generation{}, apperr.Internal("store_error", fmt.Errorf("load parent: %w", err))
	}

	pid := parent.ID
	g := store.Generation{
		ClientID:        parent.ClientID,
		Prompt:          prompt.EditPrompt(parent.Prompt, instruction),
		ReferenceImage:  parent.ReferenceImage,
		ProductImage:    parent.ProductImage,
		Size:            parent.Size,
		AspectRatio:     parent.AspectRatio,
		UseBrandKit:     parent.UseBrandKit,
		ParentID:        &pid,
		EditInstruction: instruction,
	}
	if g.Size == "" {
		g.Size = imagegen.DefaultSize
	}
	if err := m.store.CreateGeneration(ctx, &g); err != nil {
		return store.Generation{}, apperr.Internal("store_error", fmt.Errorf("create generation: %w", err))
	}

	base := parent.ReferenceImage
	if base == "" && len(parent.Images) > 0 {
		base = parent.Images[0].URL
	}
	in := prompt.Input{
		BasePrompt:     g.Prompt,
		ReferenceImage: base,
		ProductImage:   parent.ProductImage,
		Edit:           true,
	}
	return m.run(ctx, g, in, numImages, nil)
}

func (m *Manager) run(ctx context.Context, g store.Generation, in prompt.Input, count int, seed *int64) (store.Generation, error) {
	logger := m.logger.With("generation_id", g.ID)

	if g.UseBrandKit {
		kit, err := m.store.BrandKit(ctx, g.ClientID)
		switch {
		case errors.Is(err, store.ErrNotFound):
			logger.Debug("brand kit requested but not set", "client_id", g.ClientID)
		case err != nil:
			return m.fail(ctx, g, apperr.Internal("store_error", fmt.Errorf("load brand kit: %w", err)))
		default:
			in.BrandKit = &kit
		}
	}

	width, height, err := imagegen.ParseSize(g.Size)
	if err != nil {
		return m.fail(ctx, g, apperr.Validation("invalid_size", "%v", err))
	}

	composed := prompt.Compose(in)
	var snap settings.Snapshot
	if m.settings != nil {
		snap = m.settings.Current(ctx)
	}

	res, err := m.images.Generate(ctx, snap, imagegen.Request{
		Prompt: composed.Prompt,
		Width:  width,
		Height: height,
		Count:  count,
		Base:   composed.Base,
		Seed:   seed,
	})
	if err != nil {
		return m.fail(ctx, g, err)
	}

	images := make([]store.Image, 0, len(res.URLs))
	for i, url := range res.URLs {
		images = append(images, store.Image{URL: url, Index: i, Status: store.ImageStatusOK, Provider: res.Provider})
	}
	if len(images) == 0 {
		return m.fail(ctx, g, apperr.Provider("provider_failed", errors.New("provider returned no images")))
	}

	if err := m.store.CompleteGeneration(ctx, g.ID, res.Provider, images); err != nil {
		return m.fail(ctx, g, apperr.Internal("store_error", fmt.Errorf("complete generation: %w", err)))
	}
	logger.Info("generation completed", "provider", res.Provider, "images", len(images))

	out, err := m.store.GetGeneration(ctx, g.ID)
	if err != nil {
		g.Status = store.StatusCompleted
		g.Provider = res.Provider
		g.Images = images
		return g, nil
	}
	return out, nil
}

// fail writes the terminal failed state. If that write fails too the row
// stays pending for the reconciler.
func (m *Manager) fail(ctx context.Context, g store.Generation, cause error) (store.Generation, error) {
	msg := cause.Error()

	if err := m.store.FailGeneration(ctx, g.ID, msg); err != nil {
		m.logger.Error("mark generation failed", "generation_id", g.ID, "err", err, "cause", msg)
	} else {
		m.logger.Warn("generation failed", "generation_id", g.ID, "err", msg)
	}

	if out, err := m.store.GetGeneration(ctx, g.ID); err == nil {
		g = out
	} else {
		g.Status = store.StatusFailed
		g.ErrorMessage = msg
	}

	var ae *apperr.Error
	if !errors.As(cause, &ae) {
		cause = apperr.Internal("generation_failed", cause)
	}
	return g, cause
}

func (m *Manager) Get(ctx context.Context, id uint) (store.Generation, error) {
	g, err := m.store.GetGeneration(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return store.Generation{}, apperr.NotFound("generation_not_found", "generation %d not found", id)
	}
	if err != nil {
		return store.Generation{}, apperr.Internal("store_error", err)
	}
	return g, nil
}

func (m *Manager) Delete(ctx context.Context, id uint) error {
	err := m.store.DeleteGeneration(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return apperr.NotFound("generation_not_found", "generation %d not found", id)
	}
	if err != nil {
		return apperr.Internal("store_error", err)
	}
	return nil
}

func (m *Manager) List(ctx context.Context, clientID uint, limit, offset int) (ListResult, error) {
	client, err := m.resolveClient(ctx, clientID)
	if err != nil {
		return ListResult{}, err
	}

	filter := store.GenerationFilter{ClientID: client.ID, Limit: limit, Offset: offset}
	rows, total, err := m.store.ListGenerations(ctx, filter)
	if err != nil {
		return ListResult{}, apperr.Internal("store_error", err)
	}
	if rows == nil {
		rows = []store.Generation{}
	}

	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	return ListResult{Generations: rows, Total: total, Limit: limit, Offset: offset}, nil
}

// Tag appends campaign tags. Existing tags are never rewritten.
func (m *Manager) Tag(ctx context.Context, id uint, tags []store.CampaignTag) (store.Generation, error) {
	if len(tags) == 0 {
		return store.Generation{}, apperr.Validation("tags_required", "at least one tag is required")
	}
	g, err := m.store.AppendTags(ctx, id, tags)
	if errors.Is(err, store.ErrNotFound) {
		return store.Generation{}, apperr.NotFound("generation_not_found", "generation %d not found", id)
	}
	if err != nil {
		return store.Generation{}, apperr.Internal("store_error", err)
	}
	return g, nil
}

// ReconcileStale fails rows that have been pending longer than olderThan.
func (m *Manager) ReconcileStale(ctx context.Context, olderThan time.Duration) (int64, error) {
	before := m.now().Add(-olderThan)
	n, err := m.store.FailStalePending(ctx, before, StaleMessage)
	if err != nil {
		return 0, fmt.Errorf("reconcile stale generations: %w", err)
	}
	if n > 0 {
		m.logger.Warn("stale pending generations failed", "count", n, "older_than", olderThan.String())
	}
	return n, nil
}

func (m *Manager) RunReconciler(ctx context.Context, interval, olderThan time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := m.ReconcileStale(ctx, olderThan); err != nil {
			m.logger.Error("reconcile failed", "err", err)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (m *Manager) resolveClient(ctx context.Context, id uint) (store.Client, error) {
	if id == 0 {
		c, err := m.store.DefaultClient(ctx)
		if errors.Is(err, store.ErrNotFound) {
			return store.Client{}, apperr.NotFound("client_not_found", "no default client configured")
		}
		if err != nil {
			return store.Client{}, apperr.Internal("store_error", err)
		}
		return c, nil
	}

	c, err := m.store.GetClient(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return store.Client{}, apperr.NotFound("client_not_found", "client %d not found", id)
	}
	if err != nil {
		return store.Client{}, apperr.Internal("store_error", err)
	}
	return c, nil
}
