package settings

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"

	"static-ads-backend/internal/apperr"
)

const snapshotCacheKey = "snapshot"

type Repository interface {
	Settings(ctx context.Context) (map[string]string, error)
	PutSetting(ctx context.Context, key, value string) error
	DeleteSetting(ctx context.Context, key string) error
}

// Bus fans settings invalidations out to other processes.
type Bus interface {
	Publish(ctx context.Context) error
	Listen(ctx context.Context, onInvalidate func()) error
}

type Options struct {
	Repo      Repository
	TTL       time.Duration
	LookupEnv func(string) (string, bool)
	Bus       Bus
	Logger    *slog.Logger
}

type Service struct {
	repo      Repository
	cache     *cache.Cache
	lookupEnv func(string) (string, bool)
	bus       Bus
	logger    *slog.Logger
}

type KeyStatus struct {
	Set    bool   `json:"set"`
	Source string `json:"source"`
	Masked string `json:"masked"`
}

func New(opts Options) *Service {
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = 30 * time.Second
	}

	lookupEnv := opts.LookupEnv
	if lookupEnv == nil {
		lookupEnv = os.LookupEnv
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Service{
		repo:      opts.Repo,
		cache:     cache.New(ttl, 2*ttl),
		lookupEnv: lookupEnv,
		bus:       opts.Bus,
		logger:    logger,
	}
}

// Current returns the resolved settings: stored override, then environment,
// then built-in default. Results are cached until the TTL elapses or a write
// invalidates them. An unreachable store degrades to environment values.
func (s *Service) Current(ctx context.Context) Snapshot {
	if cached, ok := s.cache.Get(snapshotCacheKey); ok {
		return cached.(Snapshot)
	}

	stored := map[string]string{}
	if s.repo != nil {
		rows, err := s.repo.Settings(ctx)
		if err != nil {
			s.logger.Warn("settings store unavailable, using environment", "err", err)
		} else {
			stored = rows
		}
	}

	values := make(map[string]string, len(Keys))
	for _, k := range Keys {
		if v := strings.TrimSpace(stored[k.Stored]); v != "" {
			values[k.Env] = v
			continue
		}
		if v, ok := s.lookupEnv(k.Env); ok && strings.TrimSpace(v) != "" {
			values[k.Env] = strings.TrimSpace(v)
		}
	}

	snap := NewSnapshot(values)
	s.cache.Set(snapshotCacheKey, snap, cache.DefaultExpiration)
	return snap
}

func (s *Service) Invalidate() {
	s.cache.Delete(snapshotCacheKey)
}

// Status reports which keys are set and where each value comes from, with
// secrets masked.
func (s *Service) Status(ctx context.Context) (map[string]KeyStatus, error) {
	stored := map[string]string{}
	if s.repo != nil {
		rows, err := s.repo.Settings(ctx)
		if err != nil {
			return nil, fmt.Errorf("load settings: %w", err)
		}
		stored = rows
	}

	out := make(map[string]KeyStatus, len(Keys))
	for _, k := range Keys {
		envVal, _ := s.lookupEnv(k.Env)
		envVal = strings.TrimSpace(envVal)
		dbVal := strings.TrimSpace(stored[k.Stored])

		st := KeyStatus{Source: "not set"}
		val := ""
		switch {
		case dbVal != "":
			st.Source = "database"
			val = dbVal
		case envVal != "":
			st.Source = "env"
			val = envVal
		}
		st.Set = val != ""
		st.Masked = maskValue(val)
		out[k.Stored] = st
	}
	return out, nil
}

// Update stores the given overrides keyed by stored name. An empty value
// removes the override so the environment value applies again. Unknown keys
// are ignored. It returns the keys that were written.
func (s *Service) Update(ctx context.Context, values map[string]string) ([]string, error) {
	if s.repo == nil {
		return nil, fmt.Errorf("settings store not configured")
	}

	var saved []string
	for _, k := range Keys {
		raw, ok := values[k.Stored]
		if !ok {
			continue
		}
		value := strings.TrimSpace(raw)
		var err error
		if value == "" {
			err = s.repo.DeleteSetting(ctx, k.Stored)
		} else {
			err = s.repo.PutSetting(ctx, k.Stored, value)
		}
		if err != nil {
			s.afterWrite(ctx)
			return saved, fmt.Errorf("save %s: %w", k.Stored, err)
		}
		saved = append(saved, k.Stored)
	}

	s.afterWrite(ctx)
	return saved, nil
}

func (s *Service) Delete(ctx context.Context, storedKey string) error {
	if s.repo == nil {
		return fmt.Errorf("settings store not configured")
	}
	k, ok := lookupStored(storedKey)
	if !ok {
		return apperr.Validation("unknown_setting", "unknown setting %q", storedKey)
	}
	if err := s.repo.DeleteSetting(ctx, k.Stored); err != nil {
		return fmt.Errorf("delete %s: %w", k.Stored, err)
	}
	s.afterWrite(ctx)
	return nil
}

// Listen applies invalidations published by other processes until ctx ends.
func (s *Service) Listen(ctx context.Context) error {
	if s.bus == nil {
		<-ctx.Done()
		return nil
	}
	return s.bus.Listen(ctx, s.Invalidate)
}

func (s *Service) afterWrite(ctx context.Context) {
	s.Invalidate()
	if s.bus == nil {
		return
	}
	if err := s.bus.Publish(ctx); err != nil {
		s.logger.Warn("settings invalidation publish failed", "err", err)
	}
}
