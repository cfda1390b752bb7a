package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func openSQLite(t *testing.T) *Gorm {
	t.Helper()
	s, err := OpenSQLite(filepath.Join(t.TempDir(), "test.db"), Options{Silent: true})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := s.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func backends(t *testing.T) map[string]Store {
	return map[string]Store{
		"memory": NewMemory(MemoryOptions{}),
		"sqlite": openSQLite(t),
	}
}

func TestGenerationTerminalTransitions(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			g := &Generation{ClientID: 1, Prompt: "Sale 20% off", Size: "1024x1024"}
			if err := s.CreateGeneration(ctx, g); err != nil {
				t.Fatalf("create: %v", err)
			}
			if g.ID == 0 || g.Status != StatusPending {
				t.Fatalf("got id=%d status=%q, want pending row with id", g.ID, g.Status)
			}

			images := []Image{{URL: "https://img/1.png", Index: 0, Status: ImageStatusOK, Provider: "fal"}}
			if err := s.CompleteGeneration(ctx, g.ID, "fal", images); err != nil {
				t.Fatalf("complete: %v", err)
			}
			if err := s.FailGeneration(ctx, g.ID, "late failure"); !errors.Is(err, ErrNotPending) {
				t.Fatalf("fail after complete: got %v, want ErrNotPending", err)
			}
			if err := s.CompleteGeneration(ctx, g.ID, "leonardo", images); !errors.Is(err, ErrNotPending) {
				t.Fatalf("second complete: got %v, want ErrNotPending", err)
			}

			got, err := s.GetGeneration(ctx, g.ID)
			if err != nil {
				t.Fatalf("get: %v", err)
			}
			if got.Status != StatusCompleted || got.Provider != "fal" || len(got.Images) != 1 {
				t.Fatalf("got %+v, want completed by fal with one image", got)
			}
			if got.Images[0].URL != "https://img/1.png" {
				t.Fatalf("image url = %q", got.Images[0].URL)
			}

			if err := s.FailGeneration(ctx, 9999, "x"); !errors.Is(err, ErrNotFound) {
				t.Fatalf("fail missing: got %v, want ErrNotFound", err)
			}
		})
	}
}

func TestDeleteGenerationReparentsChildren(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			root := &Generation{ClientID: 1, Prompt: "root"}
			if err := s.CreateGeneration(ctx, root); err != nil {
				t.Fatalf("create root: %v", err)
			}
			mid := &Generation{ClientID: 1, Prompt: "mid", ParentID: &root.ID}
			if err := s.CreateGeneration(ctx, mid); err != nil {
				t.Fatalf("create mid: %v", err)
			}
			leaf := &Generation{ClientID: 1, Prompt: "leaf", ParentID: &mid.ID}
			if err := s.CreateGeneration(ctx, leaf); err != nil {
				t.Fatalf("create leaf: %v", err)
			}

			if err := s.DeleteGeneration(ctx, mid.ID); err != nil {
				t.Fatalf("delete mid: %v", err)
			}
			got, err := s.GetGeneration(ctx, leaf.ID)
			if err != nil {
				t.Fatalf("get leaf: %v", err)
			}
			if got.ParentID == nil || *got.ParentID != root.ID {
				t.Fatalf("leaf parent = %v, want %d", got.ParentID, root.ID)
			}

			if err := s.DeleteGeneration(ctx, root.ID); err != nil {
				t.Fatalf("delete root: %v", err)
			}
			got, _ = s.GetGeneration(ctx, leaf.ID)
			if got.ParentID != nil {
				t.Fatalf("leaf parent = %d, want nil", *got.ParentID)
			}

			if err := s.DeleteGeneration(ctx, root.ID); !errors.Is(err, ErrNotFound) {
				t.Fatalf("delete twice: got %v, want ErrNotFound", err)
			}
		})
	}
}

func TestAppendTagsKeepsExisting(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			g := &Generation{ClientID: 1, Prompt: "p"}
			if err := s.CreateGeneration(ctx, g); err != nil {
				t.Fatalf("create: %v", err)
			}
			if _, err := s.AppendTags(ctx, g.ID, []CampaignTag{{Persona: "Runner"}}); err != nil {
				t.Fatalf("append: %v", err)
			}
			got, err := s.AppendTags(ctx, g.ID, []CampaignTag{{Label: "q3"}})
			if err != nil {
				t.Fatalf("append: %v", err)
			}
			if len(got.CampaignTags) != 2 || got.CampaignTags[0].Persona != "Runner" || got.CampaignTags[1].Label != "q3" {
				t.Fatalf("tags = %+v", got.CampaignTags)
			}
		})
	}
}

func TestListGenerationsNewestFirst(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			for i := 0; i < 3; i++ {
				if err := s.CreateGeneration(ctx, &Generation{ClientID: 1, Prompt: "p"}); err != nil {
					t.Fatalf("create: %v", err)
				}
			}
			if err := s.CreateGeneration(ctx, &Generation{ClientID: 2, Prompt: "other"}); err != nil {
				t.Fatalf("create: %v", err)
			}

			rows, total, err := s.ListGenerations(ctx, GenerationFilter{ClientID: 1, Limit: 2})
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			if total != 3 || len(rows) != 2 {
				t.Fatalf("got total=%d len=%d, want 3 and 2", total, len(rows))
			}
			if rows[0].ID <= rows[1].ID {
				t.Fatalf("ids %d, %d not newest first", rows[0].ID, rows[1].ID)
			}
		})
	}
}

func TestClientsAndSettings(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			def, err := s.DefaultClient(ctx)
			if err != nil {
				t.Fatalf("default client: %v", err)
			}
			if def.Name != DefaultClientName {
				t.Fatalf("default name = %q", def.Name)
			}
			if _, err := s.CreateClient(ctx, "Acme"); err != nil {
				t.Fatalf("create: %v", err)
			}
			if _, err := s.CreateClient(ctx, "Acme"); !errors.Is(err, ErrConflict) {
				t.Fatalf("duplicate: got %v, want ErrConflict", err)
			}

			if err := s.PutSetting(ctx, "fal_key", "a"); err != nil {
				t.Fatalf("put: %v", err)
			}
			if err := s.PutSetting(ctx, "fal_key", "b"); err != nil {
				t.Fatalf("put again: %v", err)
			}
			got, err := s.Settings(ctx)
			if err != nil {
				t.Fatalf("settings: %v", err)
			}
			if got["fal_key"] != "b" {
				t.Fatalf("fal_key = %q, want b", got["fal_key"])
			}
			if err := s.DeleteSetting(ctx, "fal_key"); err != nil {
				t.Fatalf("delete: %v", err)
			}
			got, _ = s.Settings(ctx)
			if _, ok := got["fal_key"]; ok {
				t.Fatalf("fal_key still present")
			}
		})
	}
}

func TestProfilesByIDsKeepsInputOrder(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			created, err := s.CreateProfiles(ctx, []BrandProfile{
				{ClientID: 1, Persona: "A", Source: ProfileSourceManual},
				{ClientID: 1, Persona: "B", Source: ProfileSourceManual},
			})
			if err != nil {
				t.Fatalf("create: %v", err)
			}
			got, err := s.ProfilesByIDs(ctx, []uint{created[1].ID, 4242, created[0].ID})
			if err != nil {
				t.Fatalf("by ids: %v", err)
			}
			if len(got) != 2 || got[0].Persona != "B" || got[1].Persona != "A" {
				t.Fatalf("got %+v, want B then A", got)
			}
		})
	}
}

func TestMemoryFailStalePending(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	m := NewMemory(MemoryOptions{Now: func() time.Time { return now }})
	ctx := context.Background()

	old := &Generation{ClientID: 1, Prompt: "old"}
	_ = m.CreateGeneration(ctx, old)
	done := &Generation{ClientID: 1, Prompt: "done"}
	_ = m.CreateGeneration(ctx, done)
	_ = m.CompleteGeneration(ctx, done.ID, "fal", []Image{{URL: "u", Status: ImageStatusOK}})

	now = now.Add(time.Hour)
	fresh := &Generation{ClientID: 1, Prompt: "fresh"}
	_ = m.CreateGeneration(ctx, fresh)

	n, err := m.FailStalePending(ctx, now.Add(-15*time.Minute), "generation interrupted before completion")
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if n != 1 {
		t.Fatalf("swept %d, want 1", n)
	}
	got, _ := m.GetGeneration(ctx, old.ID)
	if got.Status != StatusFailed || got.ErrorMessage == "" {
		t.Fatalf("old = %+v, want failed with message", got)
	}
	got, _ = m.GetGeneration(ctx, done.ID)
	if got.Status != StatusCompleted {
		t.Fatalf("completed row changed to %q", got.Status)
	}
	got, _ = m.GetGeneration(ctx, fresh.ID)
	if got.Status != StatusPending {
		t.Fatalf("fresh row changed to %q", got.Status)
	}
}

func TestSocialPostsRoundTrip(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			saved, err := s.CreateSocialPosts(ctx, []SocialPost{
				{ClientID: 1, BatchID: "b1", Platform: "linkedin", PostType: PostTypeImage, Tags: []string{"b2b"}, Source: PostSourceAICreate, Status: PostStatusDraft},
				{ClientID: 1, BatchID: "b1", Platform: "tiktok", PostType: PostTypeVideo, Source: PostSourceAICreate, Status: PostStatusDraft},
				{ClientID: 2, BatchID: "b2", Platform: "facebook", PostType: PostTypeImage, Source: PostSourceAICreate, Status: "posted"},
			})
			if err != nil {
				t.Fatalf("create: %v", err)
			}
			if len(saved) != 3 || saved[0].ID == 0 || saved[0].ID == saved[1].ID {
				t.Fatalf("saved = %+v", saved)
			}

			rows, total, err := s.ListSocialPosts(ctx, SocialPostFilter{ClientID: 1, Status: PostStatusDraft})
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			if total != 2 || len(rows) != 2 {
				t.Fatalf("total = %d len = %d", total, len(rows))
			}
			if rows[0].Platform != "tiktok" || rows[1].Platform != "linkedin" {
				t.Fatalf("order = %s, %s", rows[0].Platform, rows[1].Platform)
			}
			if len(rows[1].Tags) != 1 || rows[1].Tags[0] != "b2b" {
				t.Fatalf("tags = %v", rows[1].Tags)
			}
		})
	}
}
