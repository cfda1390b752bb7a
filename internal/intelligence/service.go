package intelligence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"static-ads-backend/internal/apperr"
	"static-ads-backend/internal/store"
)

const (
	DefaultProfileCount = 3
	MaxProfileCount     = 10
)

// Brand kit defaults applied on upsert when a field is left empty.
const (
	DefaultPrimaryColor   = "#000000"
	DefaultSecondaryColor = "#ffffff"
	DefaultAccentColor    = "#ff6600"
	DefaultFontPrimary    = "Inter"
	DefaultFontSecondary  = "Georgia"
)

type Store interface {
	CreateClient(ctx context.Context, name string) (store.Client, error)
	GetClient(ctx context.Context, id uint) (store.Client, error)
	ListClients(ctx context.Context) ([]store.Client, error)
	DefaultClient(ctx context.Context) (store.Client, error)
	BrandKit(ctx context.Context, clientID uint) (store.BrandKit, error)
	UpsertBrandKit(ctx context.Context, kit store.BrandKit) (store.BrandKit, error)
	CreateProfiles(ctx context.Context, profiles []store.BrandProfile) ([]store.BrandProfile, error)
	ListProfiles(ctx context.Context, clientID uint) ([]store.BrandProfile, error)
}

type JSONGenerator interface {
	GenerateJSON(ctx context.Context, prompt string, out any) error
}

type Options struct {
	Store  Store
	Text   JSONGenerator
	Logger *slog.Logger
}

// Service manages clients, their brand kits and the audience profiles that
// feed campaign planning.
type Service struct {
	store  Store
	text   JSONGenerator
	logger *slog.Logger
}

func New(opts Options) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Service{
		store:  opts.Store,
		text:   opts.Text,
		logger: logger,
	}
}

type ProfileInput struct {
	Persona         string `json:"persona"`
	PainPoint       string `json:"pain_point"`
	Angle           string `json:"angle"`
	VisualDirection string `json:"visual_direction"`
	Emotion         string `json:"emotion"`
	CopyHook        string `json:"copy_hook"`
}

// GenerateProfiles asks the text providers for n audience profiles and
// stores them with source "ai".
func (s *Service) GenerateProfiles(ctx context.Context, clientID uint, researchText string, n int) ([]store.BrandProfile, error) {
	client, err := s.resolveClient(ctx, clientID)
	if err != nil {
		return nil, err
	}
	if n <= 0 {
		n = DefaultProfileCount
	}
	if n > MaxProfileCount {
		n = MaxProfileCount
	}

	var kit *store.BrandKit
	if k, err := s.store.BrandKit(ctx, client.ID); err == nil {
		kit = &k
	}

	var raw json.RawMessage
	if err := s.text.GenerateJSON(ctx, profilesPrompt(kit, researchText, n), &raw); err != nil {
		return nil, err
	}
	inputs, err := decodeProfiles(raw)
	if err != nil {
		return nil, apperr.Provider("invalid_profiles", err)
	}

	rows := make([]store.BrandProfile, 0, len(inputs))
	for _, in := range inputs {
		row := in.profile(client.ID, store.ProfileSourceAI)
		if row.Persona == "" {
			s.logger.Debug("skipping generated profile without persona", "client_id", client.ID)
			continue
		}
		rows = append(rows, row)
		if len(rows) == n {
			break
		}
	}
	if len(rows) == 0 {
		return []store.BrandProfile{}, nil
	}

	saved, err := s.store.CreateProfiles(ctx, rows)
	if err != nil {
		return nil, apperr.Internal("store_error", fmt.Errorf("save profiles: %w", err))
	}
	s.logger.Info("profiles generated", "client_id", client.ID, "count", len(saved))
	return saved, nil
}

// decodeProfiles accepts a bare array or an object with a "profiles" array.
func decodeProfiles(raw json.RawMessage) ([]ProfileInput, error) {
	trimmed := strings.TrimSpace(string(raw))
	if strings.HasPrefix(trimmed, "[") {
		var list []ProfileInput
		if err := json.Unmarshal(raw, &list); err != nil {
			return nil, fmt.Errorf("decode profiles: %w", err)
		}
		return list, nil
	}

	var wrapped struct {
		Profiles []ProfileInput `json:"profiles"`
	}
	if err := json.Unmarshal(raw, &wrapped); err != nil {
		return nil, fmt.Errorf("decode profiles: %w", err)
	}
	return wrapped.Profiles, nil
}

func profilesPrompt(kit *store.BrandKit, researchText string, n int) string {
	brand := "No brand kit available."
	if kit != nil {
		name, desc := kit.BrandName, kit.BrandDescription
		if name == "" {
			name = "Unknown"
		}
		if desc == "" {
			desc = "N/A"
		}
		brand = fmt.Sprintf("Brand: %s. Description: %s.", name, desc)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "You are a strategic marketing expert. Generate %d distinct audience profiles for the following brand.\n\n", n)
	b.WriteString(brand + "\n")
	if r := strings.TrimSpace(researchText); r != "" {
		b.WriteString("Additional research context:\n" + r + "\n")
	}
	b.WriteString(`
For each profile return an object with these exact fields:
- persona: (string) Target audience description, e.g. "Health-conscious millennial moms"
- pain_point: (string) Core frustration or problem this audience faces
- angle: (string) Marketing angle that resonates with them
- visual_direction: (string) Visual style that appeals to them (colors, imagery, mood)
- emotion: (string) Primary emotion to evoke
- copy_hook: (string) Powerful opening line or hook for ads targeting them

`)
	fmt.Fprintf(&b, "Return a JSON array of %d profile objects.", n)
	return b.String()
}

func (s *Service) CreateProfile(ctx context.Context, clientID uint, in ProfileInput) (store.BrandProfile, error) {
	if strings.TrimSpace(in.Persona) == "" {
		return store.BrandProfile{}, apperr.Validation("persona_required", "persona is required")
	}
	client, err := s.resolveClient(ctx, clientID)
	if err != nil {
		return store.BrandProfile{}, err
	}

	saved, err := s.store.CreateProfiles(ctx, []store.BrandProfile{in.profile(client.ID, store.ProfileSourceManual)})
	if err != nil {
		return store.BrandProfile{}, apperr.Internal("store_error", err)
	}
	return saved[0], nil
}

func (s *Service) ListProfiles(ctx context.Context, clientID uint) ([]store.BrandProfile, error) {
	client, err := s.resolveClient(ctx, clientID)
	if err != nil {
		return nil, err
	}
	rows, err := s.store.ListProfiles(ctx, client.ID)
	if err != nil {
		return nil, apperr.Internal("store_error", err)
	}
	if rows == nil {
		rows = []store.BrandProfile{}
	}
	return rows, nil
}

// GetBrandKit returns the client's kit, or nil when none is set.
func (s *Service) GetBrandKit(ctx context.Context, clientID uint) (*store.BrandKit, uint, error) {
	client, err := s.resolveClient(ctx, clientID)
	if err != nil {
		return nil, 0, err
	}
	kit, err := s.store.BrandKit(ctx, client.ID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, client.ID, nil
	}
	if err != nil {
		return nil, 0, apperr.Internal("store_error", err)
	}
	return &kit, client.ID, nil
}

func (s *Service) UpsertBrandKit(ctx context.Context, clientID uint, kit store.BrandKit) (store.BrandKit, error) {
	client, err := s.resolveClient(ctx, clientID)
	if err != nil {
		return store.BrandKit{}, err
	}

	kit.ClientID = client.ID
	kit.PrimaryColor = orDefault(kit.PrimaryColor, DefaultPrimaryColor)
	kit.SecondaryColor = orDefault(kit.SecondaryColor, DefaultSecondaryColor)
	kit.AccentColor = orDefault(kit.AccentColor, DefaultAccentColor)
	kit.FontPrimary = orDefault(kit.FontPrimary, DefaultFontPrimary)
	kit.FontSecondary = orDefault(kit.FontSecondary, DefaultFontSecondary)

	saved, err := s.store.UpsertBrandKit(ctx, kit)
	if err != nil {
		return store.BrandKit{}, apperr.Internal("store_error", err)
	}
	return saved, nil
}

func (s *Service) CreateClient(ctx context.Context, name string) (store.Client, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return store.Client{}, apperr.Validation("name_required", "client name is required")
	}
	c, err := s.store.CreateClient(ctx, name)
	if errors.Is(err, store.ErrConflict) {
		return store.Client{}, apperr.Conflict("client_exists", fmt.Errorf("client %q already exists", name))
	}
	if err != nil {
		return store.Client{}, apperr.Internal("store_error", err)
	}
	return c, nil
}

func (s *Service) ListClients(ctx context.Context) ([]store.Client, error) {
	rows, err := s.store.ListClients(ctx)
	if err != nil {
		return nil, apperr.Internal("store_error", err)
	}
	if rows == nil {
		rows = []store.Client{}
	}
	return rows, nil
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

func (in ProfileInput) profile(clientID uint, source string) store.BrandProfile {
	return store.BrandProfile{
		ClientID:        clientID,
		Persona:         strings.TrimSpace(in.Persona),
		PainPoint:       in.PainPoint,
		Angle:           in.Angle,
		VisualDirection: in.VisualDirection,
		Emotion:         in.Emotion,
		CopyHook:        in.CopyHook,
		Source:          source,
	}
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}
