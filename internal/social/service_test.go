package social

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"static-ads-backend/internal/apperr"
	"static-ads-backend/internal/imagegen"
	"static-ads-backend/internal/settings"
	"static-ads-backend/internal/store"
)

type staticSettings map[string]string

func (s staticSettings) Current(context.Context) settings.Snapshot {
	return settings.NewSnapshot(s)
}

type fakeJSON struct {
	payload string
	err     error
	prompts []string
}

func (f *fakeJSON) GenerateJSON(_ context.Context, prompt string, out any) error {
	f.prompts = append(f.prompts, prompt)
	if f.err != nil {
		return f.err
	}
	return json.Unmarshal([]byte(f.payload), out)
}

// sizedProvider fails for the widths listed in failWidth.
type sizedProvider struct {
	failWidth map[int]bool
	reqs      []imagegen.Request
}

func (p *sizedProvider) Name() string          { return "fal" }
func (p *sizedProvider) CredentialKey() string { return settings.FalKey }

func (p *sizedProvider) Generate(_ context.Context, _ settings.Snapshot, req imagegen.Request) ([]string, error) {
	p.reqs = append(p.reqs, req)
	if p.failWidth[req.Width] {
		return nil, errors.New("induced provider failure")
	}
	return []string{"https://img/post.png"}, nil
}

func newService(st *store.Memory, text JSONGenerator, provider imagegen.Provider) *Service {
	return New(Options{
		Store:      st,
		Text:       text,
		Images:     imagegen.NewOrchestrator(imagegen.Options{Providers: []imagegen.Provider{provider}}),
		Settings:   staticSettings{settings.FalKey: "f"},
		NewBatchID: func() string { return "batch-7" },
	})
}

func TestCreatePostsIsolatesPlatformFailures(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory(store.MemoryOptions{})
	provider := &sizedProvider{failWidth: map[int]bool{1200: true}}
	text := &fakeJSON{payload: `{
		"linkedin": {"title":"Lead","description":"Thought piece","tags":["b2b"],"image_prompt":"Office desk at dawn"},
		"tiktok": {"title":"Quick","description":"Fast cut","tags":["fyp"],"image_prompt":"Neon street"},
		"pinterest": {"title":"Pin","description":"Moodboard","tags":["ideas"],"image_prompt":"Flat lay"}
	}`}
	svc := newService(st, text, provider)

	batch, err := svc.CreatePosts(ctx, CreateParams{
		Description: "Launch of our eco bottle",
		Platforms:   []string{"LinkedIn", "tiktok", "pinterest", "tiktok"},
	})
	if err != nil {
		t.Fatalf("create posts: %v", err)
	}
	if batch.BatchID != "batch-7" || len(batch.Posts) != 3 {
		t.Fatalf("batch = %+v", batch)
	}

	linkedin, tiktok, pinterest := batch.Posts[0], batch.Posts[1], batch.Posts[2]
	if linkedin.Platform != "linkedin" || tiktok.Platform != "tiktok" || pinterest.Platform != "pinterest" {
		t.Fatalf("platform order = %s, %s, %s", linkedin.Platform, tiktok.Platform, pinterest.Platform)
	}

	if linkedin.MediaURL != "" || !strings.Contains(linkedin.ErrorMessage, "induced provider failure") {
		t.Fatalf("linkedin = %+v", linkedin)
	}
	if linkedin.Status != store.PostStatusDraft || linkedin.Title != "Lead" || linkedin.ContentWidth != 1200 || linkedin.ContentHeight != 627 {
		t.Fatalf("linkedin = %+v", linkedin)
	}

	if tiktok.PostType != store.PostTypeVideo || tiktok.ThumbnailURL != "https://img/post.png" || tiktok.MediaURL != "" {
		t.Fatalf("tiktok = %+v", tiktok)
	}
	if pinterest.PostType != store.PostTypeImage || pinterest.MediaURL != "https://img/post.png" || pinterest.ErrorMessage != "" {
		t.Fatalf("pinterest = %+v", pinterest)
	}

	if len(provider.reqs) != 3 {
		t.Fatalf("image calls = %d", len(provider.reqs))
	}
	if r := provider.reqs[1]; r.Width != 1080 || r.Height != 1920 || r.Count != 1 {
		t.Fatalf("tiktok request = %+v", r)
	}
	if got := provider.reqs[1].Prompt; got != "Neon street. Vertical format, eye-catching thumbnail. All text in English." {
		t.Fatalf("tiktok prompt = %q", got)
	}
	if !strings.Contains(text.prompts[0], "keys for each of these platforms: linkedin, tiktok, pinterest.") {
		t.Fatalf("meta prompt = %q", text.prompts[0])
	}

	stored, err := svc.ListPosts(ctx, 0, store.PostStatusDraft, 0, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if stored.Total != 3 || stored.Limit != 50 {
		t.Fatalf("list = %+v", stored)
	}
}

func TestCreatePostsFallsBackToTemplate(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory(store.MemoryOptions{})
	if _, err := st.UpsertBrandKit(ctx, store.BrandKit{ClientID: 1, BrandName: "Acme", PrimaryColor: "#123456"}); err != nil {
		t.Fatalf("upsert kit: %v", err)
	}
	provider := &sizedProvider{}
	svc := newService(st, &fakeJSON{err: errors.New("no text provider")}, provider)

	idea := strings.Repeat("a", 70)
	batch, err := svc.CreatePosts(ctx, CreateParams{Description: idea, Platforms: []string{"facebook"}, UseBrandKit: true})
	if err != nil {
		t.Fatalf("create posts: %v", err)
	}
	post := batch.Posts[0]
	if post.Title != strings.Repeat("a", 60) || post.Description != idea {
		t.Fatalf("post = %+v", post)
	}
	if len(post.Tags) != 2 || post.Tags[0] != "social" {
		t.Fatalf("tags = %v", post.Tags)
	}
	want := "Professional social media post: " + idea + ". Brand: Acme. Primary color: #123456. All text in English."
	if got := provider.reqs[0].Prompt; got != want {
		t.Fatalf("prompt = %q, want %q", got, want)
	}
}

func TestCreatePostsDefaultsToEveryPlatform(t *testing.T) {
	svc := newService(store.NewMemory(store.MemoryOptions{}), nil, &sizedProvider{})

	batch, err := svc.CreatePosts(context.Background(), CreateParams{Description: "Summer drop"})
	if err != nil {
		t.Fatalf("create posts: %v", err)
	}
	want := append(append([]string{}, VideoPlatforms...), ImagePlatforms...)
	if len(batch.Posts) != len(want) {
		t.Fatalf("posts = %d, want %d", len(batch.Posts), len(want))
	}
	for i, p := range batch.Posts {
		if p.Platform != want[i] || p.Source != store.PostSourceAICreate {
			t.Fatalf("post %d = %s/%s, want %s", i, p.Platform, p.Source, want[i])
		}
	}
}

func TestCreatePostsOutlivesCallerCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	provider := &sizedProvider{}
	svc := newService(store.NewMemory(store.MemoryOptions{}), nil, provider)

	batch, err := svc.CreatePosts(ctx, CreateParams{Description: "Flash sale", Platforms: []string{"facebook", "linkedin"}})
	if err != nil {
		t.Fatalf("create posts: %v", err)
	}
	for _, p := range batch.Posts {
		if p.MediaURL == "" || p.ErrorMessage != "" {
			t.Fatalf("post = %+v", p)
		}
	}
}

func TestCreatePostsValidation(t *testing.T) {
	svc := newService(store.NewMemory(store.MemoryOptions{}), nil, &sizedProvider{})

	cases := []struct {
		name string
		in   CreateParams
		kind apperr.Kind
	}{
		{"no description", CreateParams{Description: "  "}, apperr.KindValidation},
		{"unknown platform", CreateParams{Description: "x", Platforms: []string{"myspace"}}, apperr.KindValidation},
		{"unknown client", CreateParams{ClientID: 99, Description: "x"}, apperr.KindNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.CreatePosts(context.Background(), tc.in)
			if got := apperr.KindOf(err); got != tc.kind {
				t.Fatalf("kind = %q, want %q (err %v)", got, tc.kind, err)
			}
		})
	}
}
