package store

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound   = errors.New("record not found")
	ErrConflict   = errors.New("record already exists")
	ErrNotPending = errors.New("generation is not pending")
)

// Store is the persistence contract shared by the GORM and in-memory
// implementations.
type Store interface {
	CreateClient(ctx context.Context, name string) (Client, error)
	GetClient(ctx context.Context, id uint) (Client, error)
	ListClients(ctx context.Context) ([]Client, error)
	DefaultClient(ctx context.Context) (Client, error)

	BrandKit(ctx context.Context, clientID uint) (BrandKit, error)
	UpsertBrandKit(ctx context.Context, kit BrandKit) (BrandKit, error)

	CreateProfiles(ctx context.Context, profiles []BrandProfile) ([]BrandProfile, error)
	ListProfiles(ctx context.Context, clientID uint) ([]BrandProfile, error)
	ProfilesByIDs(ctx context.Context, ids []uint) ([]BrandProfile, error)

	CreateGeneration(ctx context.Context, g *Generation) error
	GetGeneration(ctx context.Context, id uint) (Generation, error)
	CompleteGeneration(ctx context.Context, id uint, provider string, images []Image) error
	FailGeneration(ctx context.Context, id uint, message string) error
	DeleteGeneration(ctx context.Context, id uint) error
	ListGenerations(ctx context.Context, filter GenerationFilter) ([]Generation, int64, error)
	AppendTags(ctx context.Context, id uint, tags []CampaignTag) (Generation, error)
	FailStalePending(ctx context.Context, before time.Time, message string) (int64, error)

	CreateSocialPosts(ctx context.Context, posts []SocialPost) ([]SocialPost, error)
	ListSocialPosts(ctx context.Context, filter SocialPostFilter) ([]SocialPost, int64, error)

	Settings(ctx context.Context) (map[string]string, error)
	PutSetting(ctx context.Context, key, value string) error
	DeleteSetting(ctx context.Context, key string) error
}

var (
	_ Store = (*Gorm)(nil)
	_ Store = (*Memory)(nil)
)
