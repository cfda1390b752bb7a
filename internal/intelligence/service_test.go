package intelligence

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"static-ads-backend/internal/apperr"
	"static-ads-backend/internal/store"
)

type fakeJSON struct {
	payload string
	prompts []string
}

func (f *fakeJSON) GenerateJSON(_ context.Context, prompt string, out any) error {
	f.prompts = append(f.prompts, prompt)
	return json.Unmarshal([]byte(f.payload), out)
}

func TestGenerateProfilesAcceptsBothShapes(t *testing.T) {
	cases := []struct {
		name    string
		payload string
	}{
		{name: "array", payload: `[{"persona":"Busy parents","angle":"time"},{"persona":"Students","copy_hook":"Study smarter"}]`},
		{name: "wrapped", payload: `{"profiles":[{"persona":"Busy parents","angle":"time"},{"persona":"Students","copy_hook":"Study smarter"}]}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			st := store.NewMemory(store.MemoryOptions{})
			svc := New(Options{Store: st, Text: &fakeJSON{payload: tc.payload}})

			got, err := svc.GenerateProfiles(context.Background(), 0, "", 2)
			if err != nil {
				t.Fatalf("generate: %v", err)
			}
			if len(got) != 2 || got[0].Persona != "Busy parents" || got[1].CopyHook != "Study smarter" {
				t.Fatalf("profiles = %+v", got)
			}
			for _, p := range got {
				if p.Source != store.ProfileSourceAI || p.ClientID != 1 || p.ID == 0 {
					t.Fatalf("profile = %+v", p)
				}
			}
		})
	}
}

func TestGenerateProfilesPromptCarriesBrand(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory(store.MemoryOptions{})
	if _, err := st.UpsertBrandKit(ctx, store.BrandKit{ClientID: 1, BrandName: "Acme"}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	text := &fakeJSON{payload: `[]`}
	svc := New(Options{Store: st, Text: text})

	got, err := svc.GenerateProfiles(ctx, 0, "Survey says: price matters", 0)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("profiles = %+v", got)
	}
	prompt := text.prompts[0]
	for _, want := range []string{"Generate 3 distinct", "Brand: Acme. Description: N/A.", "Survey says: price matters", "Return a JSON array of 3 profile objects."} {
		if !strings.Contains(prompt, want) {
			t.Fatalf("prompt missing %q:\n%s", want, prompt)
		}
	}
}

func TestCreateProfileRequiresPersona(t *testing.T) {
	svc := New(Options{Store: store.NewMemory(store.MemoryOptions{})})
	if _, err := svc.CreateProfile(context.Background(), 0, ProfileInput{Persona: "  "}); apperr.KindOf(err) != apperr.KindValidation {
		t.Fatalf("kind = %q", apperr.KindOf(err))
	}

	p, err := svc.CreateProfile(context.Background(), 0, ProfileInput{Persona: " Gamers "})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if p.Persona != "Gamers" || p.Source != store.ProfileSourceManual {
		t.Fatalf("profile = %+v", p)
	}

	list, err := svc.ListProfiles(context.Background(), 0)
	if err != nil || len(list) != 1 {
		t.Fatalf("list = %+v err = %v", list, err)
	}
}

func TestUpsertBrandKitDefaults(t *testing.T) {
	ctx := context.Background()
	svc := New(Options{Store: store.NewMemory(store.MemoryOptions{})})

	kit, clientID, err := svc.GetBrandKit(ctx, 0)
	if err != nil || kit != nil || clientID != 1 {
		t.Fatalf("kit = %+v client = %d err = %v", kit, clientID, err)
	}

	saved, err := svc.UpsertBrandKit(ctx, 0, store.BrandKit{BrandName: "Acme", AccentColor: "#abcdef"})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	want := store.BrandKit{
		ClientID:       1,
		BrandName:      "Acme",
		PrimaryColor:   DefaultPrimaryColor,
		SecondaryColor: DefaultSecondaryColor,
		AccentColor:    "#abcdef",
		FontPrimary:    DefaultFontPrimary,
		FontSecondary:  DefaultFontSecondary,
	}
	saved.ID, saved.UpdatedAt = 0, want.UpdatedAt
	if saved != want {
		t.Fatalf("saved = %+v\nwant  %+v", saved, want)
	}
}

func TestCreateClientConflict(t *testing.T) {
	ctx := context.Background()
	svc := New(Options{Store: store.NewMemory(store.MemoryOptions{})})

	if _, err := svc.CreateClient(ctx, "Acme"); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := svc.CreateClient(ctx, "Acme"); apperr.KindOf(err) != apperr.KindConflict {
		t.Fatalf("kind = %q", apperr.KindOf(err))
	}
	if _, err := svc.CreateClient(ctx, ""); apperr.KindOf(err) != apperr.KindValidation {
		t.Fatalf("kind = %q", apperr.KindOf(err))
	}
	if _, err := svc.ListProfiles(ctx, 77); apperr.KindOf(err) != apperr.KindNotFound {
		t.Fatalf("kind = %q", apperr.KindOf(err))
	}

	clients, err := svc.ListClients(ctx)
	if err != nil || len(clients) != 2 {
		t.Fatalf("clients = %+v err = %v", clients, err)
	}
}

func TestGenerateProfilesDropsBlankPersonasAndCaps(t *testing.T) {
	st := store.NewMemory(store.MemoryOptions{})
	payload := `[{"persona":"  ","angle":"none"},{"persona":"A"},{"angle":"missing"},{"persona":"B"},{"persona":"C"}]`
	svc := New(Options{Store: st, Text: &fakeJSON{payload: payload}})

	got, err := svc.GenerateProfiles(context.Background(), 0, "", 2)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(got) != 2 || got[0].Persona != "A" || got[1].Persona != "B" {
		t.Fatalf("profiles = %+v", got)
	}

	stored, err := st.ListProfiles(context.Background(), 1)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(stored) != 2 {
		t.Fatalf("stored %d profiles, want 2", len(stored))
	}
}
