package telegram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"static-ads-backend/internal/campaign"
)

const maxMessageBytes = 4096

type Options struct {
	Token      string
	ChatID     int64
	HTTPClient *http.Client
	Logger     *slog.Logger
	Debug      bool

	// APIEndpoint defaults to tgbotapi.APIEndpoint.
	APIEndpoint string
}

// Notifier posts campaign summaries to one operator chat.
type Notifier struct {
	bot    *tgbotapi.BotAPI
	chatID int64
	logger *slog.Logger
}

var _ campaign.Notifier = (*Notifier)(nil)

func New(opts Options) (*Notifier, error) {
	if strings.TrimSpace(opts.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	if opts.ChatID == 0 {
		return nil, errors.New("telegram chat id is empty")
	}
	if opts.HTTPClient == nil {
		return nil, errors.New("http client is nil")
	}

	endpoint := opts.APIEndpoint
	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}
	bot, err := tgbotapi.NewBotAPIWithClient(opts.Token, endpoint, opts.HTTPClient)
	if err != nil {
		return nil, err
	}
	bot.Debug = opts.Debug

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Notifier{
		bot:    bot,
		chatID: opts.ChatID,
		logger: logger,
	}, nil
}

func (n *Notifier) Username() string {
	return n.bot.Self.UserName
}

func (n *Notifier) NotifyCampaign(ctx context.Context, r campaign.Report) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := n.SendText(FormatReport(r)); err != nil {
		return fmt.Errorf("send campaign summary: %w", err)
	}
	n.logger.Debug("campaign summary sent", "batch_id", r.BatchID, "chat_id", n.chatID)
	return nil
}

func (n *Notifier) SendText(text string) error {
	for _, p := range splitByBytes(text, maxMessageBytes) {
		msg := tgbotapi.NewMessage(n.chatID, p)
		if _, err := n.bot.Send(msg); err != nil {
			return err
		}
	}
	return nil
}

// FormatReport renders the summary line followed by one line per failed item.
func FormatReport(r campaign.Report) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Campaign %s finished (client %d)\n", r.BatchID, r.ClientID)
	fmt.Fprintf(&b, "Total: %d, succeeded: %d, failed: %d", r.Summary.Total, r.Summary.Succeeded, r.Summary.Failed)

	for i, res := range r.Results {
		if res.Status != campaign.ResultFailed {
			continue
		}
		fmt.Fprintf(&b, "\n#%d %s: %s", i+1, res.Persona, res.Error)
	}
	return b.String()
}

func splitByBytes(text string, maxBytes int) []string {
	if len(text) <= maxBytes || maxBytes <= 0 {
		return []string{text}
	}

	var out []string
	var buf strings.Builder
	buf.Grow(maxBytes)

	for _, r := range text {
		runeBytes := utf8.RuneLen(r)
		if runeBytes < 0 {
			runeBytes = len(string(r))
		}

		if buf.Len() > 0 && buf.Len()+runeBytes > maxBytes {
			out = append(out, buf.String())
			buf.Reset()
		}
		buf.WriteRune(r)
	}

	if buf.Len() > 0 {
		out = append(out, buf.String())
	}

	return out
}
