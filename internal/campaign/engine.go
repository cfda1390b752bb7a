package campaign

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"static-ads-backend/internal/apperr"
	"static-ads-backend/internal/generation"
	"static-ads-backend/internal/imagegen"
	"static-ads-backend/internal/store"
)

const (
	MaxVariants = 4

	StatusPlanned = "planned"
	ResultSuccess = "success"
	ResultFailed  = "failed"
)

type Store interface {
	DefaultClient(ctx context.Context) (store.Client, error)
	BrandKit(ctx context.Context, clientID uint) (store.BrandKit, error)
	ProfilesByIDs(ctx context.Context, ids []uint) ([]store.BrandProfile, error)
}

type Generator interface {
	Create(ctx context.Context, p generation.CreateParams) (store.Generation, error)
}

type TextGenerator interface {
	GenerateText(ctx context.Context, prompt string) (string, error)
}

type Notifier interface {
	NotifyCampaign(ctx context.Context, r Report) error
}

type Options struct {
	Store      Store
	Generator  Generator
	Text       TextGenerator
	Notifier   Notifier
	Logger     *slog.Logger
	NewBatchID func() string
}

// Engine plans profile x variant matrices and executes them one item at a
// time.
type Engine struct {
	store      Store
	generator  Generator
	text       TextGenerator
	notifier   Notifier
	logger     *slog.Logger
	newBatchID func() string
}

type PlanParams struct {
	ProfileIDs     []uint
	Goal           string
	ReferenceImage string
	ProductImage   string
	AdsPerProfile  int
	Size           string
}

type PlanItem struct {
	ProfileID       uint   `json:"profile_id"`
	Persona         string `json:"persona"`
	Angle           string `json:"angle"`
	VisualDirection string `json:"visual_direction"`
	Emotion         string `json:"emotion"`
	CopyHook        string `json:"copy_hook"`
	Goal            string `json:"campaign_goal"`
	ReferenceImage  string `json:"reference_image_url,omitempty"`
	ProductImage    string `json:"product_image_url,omitempty"`
	Size            string `json:"size"`
	Variant         int    `json:"variant_index"`
	Status          string `json:"status"`
}

type Plan struct {
	Items    []PlanItem `json:"plan"`
	TotalAds int        `json:"total_ads"`
	Profiles int        `json:"profiles"`
}

type ExecuteParams struct {
	ClientID uint
	Items    []PlanItem
	Size     string
}

type Result struct {
	Status     string            `json:"status"`
	Persona    string            `json:"persona"`
	Error      string            `json:"error,omitempty"`
	Generation *store.Generation `json:"generation"`
}

type Summary struct {
	Total     int `json:"total"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

type Report struct {
	BatchID  string   `json:"batch_id"`
	ClientID uint     `json:"client_id"`
	Results  []Result `json:"results"`
	Summary  Summary  `json:"summary"`
}

func New(opts Options) *Engine {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	newBatchID := opts.NewBatchID
	if newBatchID == nil {
		newBatchID = uuid.NewString
	}

	return &Engine{
		store:      opts.Store,
		generator:  opts.Generator,
		text:       opts.Text,
		notifier:   opts.Notifier,
		logger:     logger,
		newBatchID: newBatchID,
	}
}

// Plan builds the profile x variant matrix in input order. It makes no
// provider calls.
func (e *Engine) Plan(ctx context.Context, p PlanParams) (Plan, error) {
	if len(p.ProfileIDs) == 0 {
		return Plan{}, apperr.Validation("profiles_required", "select at least one intelligence profile")
	}
	size, err := imagegen.ResolveSize(p.Size)
	if err != nil {
		return Plan{}, apperr.Validation("invalid_size", "%v", err)
	}

	profiles, err := e.store.ProfilesByIDs(ctx, p.ProfileIDs)
	if err != nil {
		return Plan{}, apperr.Internal("store_error", fmt.Errorf("load profiles: %w", err))
	}
	if len(profiles) == 0 {
		return Plan{}, apperr.NotFound("profiles_not_found", "none of the selected profiles exist")
	}

	variants := clampVariants(p.AdsPerProfile)
	items := make([]PlanItem, 0, len(profiles)*variants)
	for _, prof := range profiles {
		for v := 1; v <= variants; v++ {
			items = append(items, PlanItem{
				ProfileID:       prof.ID,
				Persona:         prof.Persona,
				Angle:           prof.Angle,
				VisualDirection: prof.VisualDirection,
				Emotion:         prof.Emotion,
				CopyHook:        prof.CopyHook,
				Goal:            strings.TrimSpace(p.Goal),
				ReferenceImage:  strings.TrimSpace(p.ReferenceImage),
				ProductImage:    strings.TrimSpace(p.ProductImage),
				Size:            size,
				Variant:         v,
				Status:          StatusPlanned,
			})
		}
	}

	return Plan{Items: items, TotalAds: len(items), Profiles: len(profiles)}, nil
}

// Execute runs plan items strictly in order. A failing item is recorded in
// the report and the batch moves on. The batch runs to the end even if ctx is
// cancelled.
func (e *Engine) Execute(ctx context.Context, p ExecuteParams) (Report, error) {
	ctx = context.WithoutCancel(ctx)

	if len(p.Items) == 0 {
		return Report{}, apperr.Validation("plan_empty", "plan is empty")
	}
	size, err := imagegen.ResolveSize(p.Size)
	if err != nil {
		return Report{}, apperr.Validation("invalid_size", "%v", err)
	}

	clientID := p.ClientID
	if clientID == 0 {
		c, err := e.store.DefaultClient(ctx)
		if err != nil {
			return Report{}, apperr.NotFound("client_not_found", "no default client configured")
		}
		clientID = c.ID
	}

	var kit *store.BrandKit
	if k, err := e.store.BrandKit(ctx, clientID); err == nil {
		kit = &k
	} else if !errors.Is(err, store.ErrNotFound) {
		e.logger.Warn("load brand kit for campaign", "client_id", clientID, "err", err)
	}

	report := Report{
		BatchID:  e.newBatchID(),
		ClientID: clientID,
		Results:  make([]Result, 0, len(p.Items)),
	}
	logger := e.logger.With("batch_id", report.BatchID, "client_id", clientID)
	logger.Info("campaign started", "items", len(p.Items))

	for i, item := range p.Items {
		res := e.executeItem(ctx, clientID, kit, item, size, report.BatchID)
		if res.Status == ResultSuccess {
			report.Summary.Succeeded++
		} else {
			report.Summary.Failed++
			logger.Warn("campaign item failed", "item", i+1, "persona", item.Persona, "err", res.Error)
		}
		report.Results = append(report.Results, res)
	}
	report.Summary.Total = len(p.Items)

	logger.Info("campaign finished",
		"succeeded", report.Summary.Succeeded,
		"failed", report.Summary.Failed,
	)

	if e.notifier != nil {
		if err := e.notifier.NotifyCampaign(ctx, report); err != nil {
			logger.Warn("campaign notification failed", "err", err)
		}
	}
	return report, nil
}

func (e *Engine) executeItem(ctx context.Context, clientID uint, kit *store.BrandKit, item PlanItem, size, batchID string) Result {
	res := Result{Status: ResultFailed, Persona: item.Persona}

	itemSize := size
	if item.Size != "" {
		itemSize = item.Size
	}
	variant := item.Variant
	if variant < 1 {
		variant = 1
	}

	g, err := e.generator.Create(ctx, generation.CreateParams{
		ClientID:       clientID,
		Prompt:         e.brief(ctx, item, kit),
		Concept:        "Profile: " + item.Persona,
		Avatar:         fmt.Sprintf("Variant %d", variant),
		ReferenceImage: item.ReferenceImage,
		ProductImage:   item.ProductImage,
		Size:           itemSize,
		UseBrandKit:    true,
		NumImages:      1,
		Tags:           []store.CampaignTag{{Persona: item.Persona, Angle: item.Angle, BatchID: batchID}},
	})
	if g.ID != 0 {
		res.Generation = &g
	}
	if err != nil {
		res.Error = err.Error()
		return res
	}
	res.Status = ResultSuccess
	return res
}

// brief asks the text providers for an image prompt and falls back to the
// templated prompt when none answers.
func (e *Engine) brief(ctx context.Context, item PlanItem, kit *store.BrandKit) string {
	if e.text != nil {
		text, err := e.text.GenerateText(ctx, BriefPrompt(item, kit))
		if err == nil && strings.TrimSpace(text) != "" {
			return strings.TrimSpace(text)
		}
		if err != nil {
			e.logger.Debug("campaign brief fell back to template", "persona", item.Persona, "err", err)
		}
	}
	return TemplatePrompt(item, kit)
}

func BriefPrompt(item PlanItem, kit *store.BrandKit) string {
	var b strings.Builder
	b.WriteString("Write a single precise image generation prompt for a static ad.\n")
	if kit != nil {
		tone := kit.BrandDescription
		if tone == "" {
			tone = "professional"
		}
		fmt.Fprintf(&b, "Brand: %s. Colors: %s, %s. Tone: %s.\n", kit.BrandName, kit.PrimaryColor, kit.AccentColor, tone)
	}
	fmt.Fprintf(&b, "Target persona: %s.\n", item.Persona)
	fmt.Fprintf(&b, "Marketing angle: %s.\n", item.Angle)
	fmt.Fprintf(&b, "Visual direction: %s.\n", item.VisualDirection)
	fmt.Fprintf(&b, "Emotion: %s.\n", item.Emotion)
	fmt.Fprintf(&b, "Copy hook: %q.\n", item.CopyHook)
	fmt.Fprintf(&b, "Campaign goal: %s.\n", item.Goal)
	b.WriteString("Output ONLY the image generation prompt. No markdown, no explanation. Max 150 words.")
	return b.String()
}

// TemplatePrompt is the deterministic prompt used when text generation is
// unavailable.
func TemplatePrompt(item PlanItem, kit *store.BrandKit) string {
	var parts []string
	if kit != nil && kit.BrandName != "" {
		parts = append(parts, kit.BrandName+" ad.")
	}
	if item.Persona != "" {
		parts = append(parts, "Audience: "+item.Persona+".")
	}
	if item.Angle != "" {
		parts = append(parts, "Angle: "+item.Angle+".")
	}
	if item.Goal != "" {
		parts = append(parts, "Goal: "+item.Goal+".")
	}
	if kit != nil && kit.PrimaryColor != "" {
		parts = append(parts, "Primary color: "+kit.PrimaryColor+".")
	}
	parts = append(parts, "High-quality static social media advertisement, clean design, professional.")
	return strings.Join(parts, " ")
}

func clampVariants(n int) int {
	if n < 1 {
		return 1
	}
	if n > MaxVariants {
		return MaxVariants
	}
	return n
}
