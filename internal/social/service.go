package social

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"

	"github.com/google/uuid"

	"static-ads-backend/internal/apperr"
	"static-ads-backend/internal/imagegen"
	"static-ads-backend/internal/settings"
	"static-ads-backend/internal/store"
)

const DefaultTone = "Professional"

var (
	VideoPlatforms = []string{"instagram", "tiktok", "youtube"}
	ImagePlatforms = []string{"linkedin", "facebook", "pinterest"}
)

type Store interface {
	GetClient(ctx context.Context, id uint) (store.Client, error)
	DefaultClient(ctx context.Context) (store.Client, error)
	BrandKit(ctx context.Context, clientID uint) (store.BrandKit, error)
	CreateSocialPosts(ctx context.Context, posts []store.SocialPost) ([]store.SocialPost, error)
	ListSocialPosts(ctx context.Context, filter store.SocialPostFilter) ([]store.SocialPost, int64, error)
}

type JSONGenerator interface {
	GenerateJSON(ctx context.Context, prompt string, out any) error
}

type ImageGenerator interface {
	Generate(ctx context.Context, snap settings.Snapshot, req imagegen.Request) (imagegen.Result, error)
}

type SettingsSource interface {
	Current(ctx context.Context) settings.Snapshot
}

type Options struct {
	Store      Store
	Text       JSONGenerator
	Images     ImageGenerator
	Settings   SettingsSource
	Logger     *slog.Logger
	NewBatchID func() string
}

// Service drafts one social post per platform from a single post idea.
type Service struct {
	store      Store
	text       JSONGenerator
	images     ImageGenerator
	settings   SettingsSource
	logger     *slog.Logger
	newBatchID func() string
}

type CreateParams struct {
	ClientID    uint
	Description string
	Tone        string
	Platforms   []string
	UseBrandKit bool
}

// PostMeta is the per-platform copy returned by the text providers.
type PostMeta struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
	ImagePrompt string   `json:"image_prompt"`
}

type Batch struct {
	Posts   []store.SocialPost `json:"posts"`
	BatchID string             `json:"batchId"`
}

type ListResult struct {
	Posts  []store.SocialPost `json:"posts"`
	Total  int64              `json:"total"`
	Limit  int                `json:"limit"`
	Offset int                `json:"offset"`
}

func New(opts Options) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	newBatchID := opts.NewBatchID
	if newBatchID == nil {
		newBatchID = uuid.NewString
	}

	return &Service{
		store:      opts.Store,
		text:       opts.Text,
		images:     opts.Images,
		settings:   opts.Settings,
		logger:     logger,
		newBatchID: newBatchID,
	}
}

// CreatePosts writes copy for every requested platform and renders one image
// per platform at its native size. Image platforms get the image as media,
// video platforms get it as a thumbnail. A platform whose image fails is
// still saved as a draft, with the failure in error_message. Cancelling ctx
// does not stop the batch.
func (s *Service) CreatePosts(ctx context.Context, p CreateParams) (Batch, error) {
	ctx = context.WithoutCancel(ctx)

	idea := strings.TrimSpace(p.Description)
	if idea == "" {
		return Batch{}, apperr.Validation("description_required", "description is required")
	}
	selected, err := selectPlatforms(p.Platforms)
	if err != nil {
		return Batch{}, err
	}
	tone := strings.TrimSpace(p.Tone)
	if tone == "" {
		tone = DefaultTone
	}

	client, err := s.resolveClient(ctx, p.ClientID)
	if err != nil {
		return Batch{}, err
	}

	var kit *store.BrandKit
	if p.UseBrandKit {
		k, err := s.store.BrandKit(ctx, client.ID)
		switch {
		case err == nil:
			kit = &k
		case !errors.Is(err, store.ErrNotFound):
			s.logger.Warn("load brand kit for posts", "client_id", client.ID, "err", err)
		}
	}

	batchID := s.newBatchID()
	logger := s.logger.With("batch_id", batchID, "client_id", client.ID)

	meta := s.metadata(ctx, logger, MetaPrompt(idea, tone, kit, selected), idea, selected)

	var snap settings.Snapshot
	if s.settings != nil {
		snap = s.settings.Current(ctx)
	}

	posts := make([]store.SocialPost, 0, len(selected))
	for _, key := range selected {
		platform, _ := imagegen.LookupPlatform(key)
		m := meta[key]
		video := slices.Contains(VideoPlatforms, key)

		post := store.SocialPost{
			ClientID:      client.ID,
			BatchID:       batchID,
			Platform:      key,
			PostType:      store.PostTypeImage,
			Title:         m.Title,
			Description:   m.Description,
			Tags:          m.Tags,
			ContentWidth:  platform.Width,
			ContentHeight: platform.Height,
			Source:        store.PostSourceAICreate,
			Status:        store.PostStatusDraft,
		}
		if video {
			post.PostType = store.PostTypeVideo
		}

		res, err := s.images.Generate(ctx, snap, imagegen.Request{
			Prompt: ImagePrompt(m.ImagePrompt, idea, kit, video),
			Width:  platform.Width,
			Height: platform.Height,
			Count:  1,
		})
		switch {
		case err != nil:
			logger.Warn("post image failed", "platform", key, "err", err)
			post.ErrorMessage = err.Error()
		case len(res.URLs) == 0:
			post.ErrorMessage = "provider returned no images"
		case video:
			post.ThumbnailURL = res.URLs[0]
		default:
			post.MediaURL = res.URLs[0]
		}
		posts = append(posts, post)
	}

	saved, err := s.store.CreateSocialPosts(ctx, posts)
	if err != nil {
		return Batch{}, apperr.Internal("store_error", fmt.Errorf("save posts: %w", err))
	}
	logger.Info("social posts drafted", "platforms", len(saved))
	return Batch{Posts: saved, BatchID: batchID}, nil
}

func (s *Service) metadata(ctx context.Context, logger *slog.Logger, prompt, idea string, selected []string) map[string]PostMeta {
	if s.text != nil {
		var out map[string]PostMeta
		err := s.text.GenerateJSON(ctx, prompt, &out)
		if err == nil && out != nil {
			return out
		}
		logger.Warn("post metadata fell back to template", "err", err)
	}
	return FallbackMeta(idea, selected)
}

func (s *Service) ListPosts(ctx context.Context, clientID uint, status string, limit, offset int) (ListResult, error) {
	client, err := s.resolveClient(ctx, clientID)
	if err != nil {
		return ListResult{}, err
	}

	filter := store.SocialPostFilter{ClientID: client.ID, Status: strings.TrimSpace(status), Limit: limit, Offset: offset}
	rows, total, err := s.store.ListSocialPosts(ctx, filter)
	if err != nil {
		return ListResult{}, apperr.Internal("store_error", err)
	}
	if rows == nil {
		rows = []store.SocialPost{}
	}

	if limit <= 0 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}
	if offset < 0 {
		offset = 0
	}
	return ListResult{Posts: rows, Total: total, Limit: limit, Offset: offset}, nil
}

func MetaPrompt(idea, tone string, kit *store.BrandKit, platforms []string) string {
	var b strings.Builder
	b.WriteString("You are a social media expert. Generate post metadata for each platform.\n")
	fmt.Fprintf(&b, "Tone: %s.\n", tone)
	if kit != nil {
		desc := kit.BrandDescription
		if desc == "" {
			desc = "professional"
		}
		fmt.Fprintf(&b, "Brand: %s. Colors: %s, %s. Tone: %s.\n", kit.BrandName, kit.PrimaryColor, kit.AccentColor, desc)
	}
	fmt.Fprintf(&b, "Post idea: %s\n\n", idea)
	fmt.Fprintf(&b, "Return a JSON object with keys for each of these platforms: %s.\n", strings.Join(platforms, ", "))
	b.WriteString(`Each platform value should be: { "title": "...", "description": "...", "tags": ["tag1","tag2",...], "image_prompt": "a detailed image generation prompt suitable for this platform's dimensions and audience" }` + "\n\n")
	b.WriteString("Rules:\n")
	b.WriteString("- Tailor content to each platform's audience and best practices\n")
	b.WriteString("- image_prompt should describe a professional social media visual matching the platform\n")
	b.WriteString("- All text MUST be in English\n")
	b.WriteString("- Tags as simple lowercase words, no # symbol")
	return b.String()
}

// FallbackMeta gives every platform the same generic copy built from the idea.
func FallbackMeta(idea string, platforms []string) map[string]PostMeta {
	title := idea
	if r := []rune(title); len(r) > 60 {
		title = string(r[:60])
	}
	out := make(map[string]PostMeta, len(platforms))
	for _, p := range platforms {
		out[p] = PostMeta{
			Title:       title,
			Description: idea,
			Tags:        []string{"social", "post"},
			ImagePrompt: "Professional social media post: " + idea,
		}
	}
	return out
}

func ImagePrompt(imagePrompt, idea string, kit *store.BrandKit, video bool) string {
	base := strings.TrimSpace(imagePrompt)
	if base == "" {
		base = idea
	}
	parts := []string{strings.TrimRight(base, ". ") + "."}
	if video {
		parts = append(parts, "Vertical format, eye-catching thumbnail.")
	}
	if kit != nil {
		if video {
			parts = append(parts, "Brand: "+kit.BrandName+".")
		} else {
			parts = append(parts, "Brand: "+kit.BrandName+". Primary color: "+kit.PrimaryColor+".")
		}
	}
	parts = append(parts, "All text in English.")
	return strings.Join(parts, " ")
}

// selectPlatforms normalizes the requested platforms, keeping first-seen
// order. An empty list selects every platform.
func selectPlatforms(in []string) ([]string, error) {
	if len(in) == 0 {
		out := append([]string(nil), VideoPlatforms...)
		return append(out, ImagePlatforms...), nil
	}

	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, raw := range in {
		key := strings.ToLower(strings.TrimSpace(raw))
		if _, ok := imagegen.LookupPlatform(key); !ok {
			return nil, apperr.Validation("unknown_platform", "unknown platform %q", raw)
		}
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, key)
	}
	return out, nil
}

func (s *Service) resolveClient(ctx context.Context, id uint) (store.Client, error) {
	var (
		c   store.Client
		err error
	)
	if id == 0 {
		c, err = s.store.DefaultClient(ctx)
	} else {
		c, err = s.store.GetClient(ctx, id)
	}
	if errors.Is(err, store.ErrNotFound) {
		return store.Client{}, apperr.NotFound("client_not_found", "client %d not found", id)
	}
	if err != nil {
		return store.Client{}, apperr.Internal("store_error", err)
	}
	return c, nil
}
