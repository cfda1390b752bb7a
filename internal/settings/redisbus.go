package settings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

type RedisBusOptions struct {
	Addr    string
	Channel string
	Logger  *slog.Logger
}

// RedisBus publishes settings invalidations over a Redis channel.
type RedisBus struct {
	rdb     *goredis.Client
	channel string
	origin  string
	logger  *slog.Logger
}

type invalidation struct {
	Origin string    `json:"origin"`
	At     time.Time `json:"at"`
}

func NewRedisBus(ctx context.Context, opts RedisBusOptions) (*RedisBus, error) {
	addr := strings.TrimSpace(opts.Addr)
	if addr == "" {
		return nil, errors.New("redis address is empty")
	}
	channel := strings.TrimSpace(opts.Channel)
	if channel == "" {
		channel = "settings:invalidate"
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &RedisBus{
		rdb:     rdb,
		channel: channel,
		origin:  uuid.NewString(),
		logger:  logger,
	}, nil
}

func (b *RedisBus) Publish(ctx context.Context) error {
	raw, err := json.Marshal(invalidation{Origin: b.origin, At: time.Now().UTC()})
	if err != nil {
		return err
	}
	return b.rdb.Publish(ctx, b.channel, raw).Err()
}

// Listen blocks until ctx is done, calling onInvalidate for every message
// published by another process.
func (b *RedisBus) Listen(ctx context.Context, onInvalidate func()) error {
	if onInvalidate == nil {
		return errors.New("onInvalidate callback required")
	}

	sub := b.rdb.Subscribe(ctx, b.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("redis subscribe: %w", err)
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case m, ok := <-ch:
			if !ok || m == nil {
				return errors.New("redis subscription closed")
			}
			var msg invalidation
			if err := json.Unmarshal([]byte(m.Payload), &msg); err != nil {
				b.logger.Warn("bad settings invalidation payload", "err", err)
				continue
			}
			if msg.Origin == b.origin {
				continue
			}
			b.logger.Debug("settings invalidated by peer", "origin", msg.Origin)
			onInvalidate()
		}
	}
}

func (b *RedisBus) Close() error {
	return b.rdb.Close()
}
