package telegram

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"static-ads-backend/internal/campaign"
)

type fakeTelegram struct {
	mu    sync.Mutex
	sent  []string
	chats []string
}

func (f *fakeTelegram) handler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("content-type", "application/json")
	switch {
	case strings.HasSuffix(r.URL.Path, "/getMe"):
		_, _ = io.WriteString(w, `{"ok":true,"result":{"id":1,"is_bot":true,"first_name":"Ads","username":"ads_bot"}}`)
	case strings.HasSuffix(r.URL.Path, "/sendMessage"):
		_ = r.ParseForm()
		f.mu.Lock()
		f.sent = append(f.sent, r.PostForm.Get("text"))
		f.chats = append(f.chats, r.PostForm.Get("chat_id"))
		f.mu.Unlock()
		_, _ = io.WriteString(w, `{"ok":true,"result":{"message_id":1,"date":0,"chat":{"id":77,"type":"private"}}}`)
	default:
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"ok":false,"error_code":404,"description":"Not Found"}`)
	}
}

func TestNotifyCampaignSendsSummary(t *testing.T) {
	fake := &fakeTelegram{}
	srv := httptest.NewServer(http.HandlerFunc(fake.handler))
	defer srv.Close()

	n, err := New(Options{
		Token:       "T",
		ChatID:      77,
		HTTPClient:  srv.Client(),
		APIEndpoint: srv.URL + "/bot%s/%s",
	})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if n.Username() != "ads_bot" {
		t.Fatalf("username = %q", n.Username())
	}

	report := campaign.Report{
		BatchID:  "b-1",
		ClientID: 3,
		Summary:  campaign.Summary{Total: 2, Succeeded: 1, Failed: 1},
		Results: []campaign.Result{
			{Status: campaign.ResultSuccess, Persona: "Moms"},
			{Status: campaign.ResultFailed, Persona: "Gamers", Error: "no provider"},
		},
	}
	if err := n.NotifyCampaign(context.Background(), report); err != nil {
		t.Fatalf("notify: %v", err)
	}

	fake.mu.Lock()
	defer fake.mu.Unlock()
	if len(fake.sent) != 1 || fake.chats[0] != "77" {
		t.Fatalf("sent = %v chats = %v", fake.sent, fake.chats)
	}
	want := "Campaign b-1 finished (client 3)\nTotal: 2, succeeded: 1, failed: 1\n#2 Gamers: no provider"
	if fake.sent[0] != want {
		t.Fatalf("text = %q", fake.sent[0])
	}
}

func TestNewValidatesOptions(t *testing.T) {
	if _, err := New(Options{ChatID: 1, HTTPClient: http.DefaultClient}); err == nil {
		t.Fatalf("expected error for empty token")
	}
	if _, err := New(Options{Token: "T", HTTPClient: http.DefaultClient}); err == nil {
		t.Fatalf("expected error for empty chat id")
	}
}

func TestSplitByBytes(t *testing.T) {
	text := strings.Repeat("é", 5)
	parts := splitByBytes(text, 4)
	if len(parts) != 3 || parts[0] != "éé" || parts[2] != "é" {
		t.Fatalf("parts = %q", parts)
	}
	if got := splitByBytes("short", 4096); len(got) != 1 {
		t.Fatalf("parts = %q", got)
	}
}
