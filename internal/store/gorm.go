package store

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormLogger "gorm.io/gorm/logger"
)

type Options struct {
	Silent bool
}

type Gorm struct {
	db *gorm.DB
}

func OpenPostgres(dsn string, opts Options) (*Gorm, error) {
	db, err := gorm.Open(postgres.Open(dsn), gormConfig(opts))
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return NewGorm(db), nil
}

func OpenSQLite(path string, opts Options) (*Gorm, error) {
	db, err := gorm.Open(sqlite.Open(path), gormConfig(opts))
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	return NewGorm(db), nil
}

func NewGorm(db *gorm.DB) *Gorm {
	return &Gorm{db: db}
}

func gormConfig(opts Options) *gorm.Config {
	level := gormLogger.Warn
	if opts.Silent {
		level = gormLogger.Silent
	}
	return &gorm.Config{
		TranslateError: true,
		Logger: gormLogger.New(
			log.New(os.Stdout, "\r\n", log.LstdFlags),
			gormLogger.Config{
				SlowThreshold:             time.Second,
				LogLevel:                  level,
				IgnoreRecordNotFoundError: true,
				Colorful:                  false,
			},
		),
	}
}

// Migrate creates the schema and seeds the default client.
func (s *Gorm) Migrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(
		&Client{},
		&BrandKit{},
		&BrandProfile{},
		&Generation{},
		&SocialPost{},
		&Setting{},
	); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	var count int64
	if err := s.db.WithContext(ctx).Model(&Client{}).Where("is_default = ?", true).Count(&count).Error; err != nil {
		return fmt.Errorf("count default client: %w", err)
	}
	if count > 0 {
		return nil
	}
	def := Client{Name: DefaultClientName, IsDefault: true}
	if err := s.db.WithContext(ctx).Create(&def).Error; err != nil {
		return fmt.Errorf("seed default client: %w", translate(err))
	}
	return nil
}

func (s *Gorm) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return ErrConflict
	case strings.Contains(strings.ToLower(err.Error()), "unique constraint"):
		return ErrConflict
	}
	return err
}

func (s *Gorm) CreateClient(ctx context.Context, name string) (Client, error) {
	c := Client{Name: name}
	if err := s.db.WithContext(ctx).Create(&c).Error; err != nil {
		return Client{}, translate(err)
	}
	return c, nil
}

func (s *Gorm) GetClient(ctx context.Context, id uint) (Client, error) {
	var c Client
	if err := s.db.WithContext(ctx).First(&c, id).Error; err != nil {
		return Client{}, translate(err)
	}
	return c, nil
}

func (s *Gorm) ListClients(ctx context.Context) ([]Client, error) {
	var out []Client
	if err := s.db.WithContext(ctx).Order("id ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Gorm) DefaultClient(ctx context.Context) (Client, error) {
	var c Client
	if err := s.db.WithContext(ctx).Where("is_default = ?", true).Order("id ASC").First(&c).Error; err != nil {
		return Client{}, translate(err)
	}
	return c, nil
}

func (s *Gorm) BrandKit(ctx context.Context, clientID uint) (BrandKit, error) {
	var kit BrandKit
	if err := s.db.WithContext(ctx).Where("client_id = ?", clientID).First(&kit).Error; err != nil {
		return BrandKit{}, translate(err)
	}
	return kit, nil
}

func (s *Gorm) UpsertBrandKit(ctx context.Context, kit BrandKit) (BrandKit, error) {
	var out BrandKit
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing BrandKit
		err := tx.Where("client_id = ?", kit.ClientID).First(&existing).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			kit.ID = 0
			kit.UpdatedAt = time.Now()
			if err := tx.Create(&kit).Error; err != nil {
				return err
			}
			out = kit
			return nil
		case err != nil:
			return err
		}

		kit.ID = existing.ID
		kit.UpdatedAt = time.Now()
		if err := tx.Save(&kit).Error; err != nil {
			return err
		}
		out = kit
		return nil
	})
	if err != nil {
		return BrandKit{}, translate(err)
	}
	return out, nil
}

func (s *Gorm) CreateProfiles(ctx context.Context, profiles []BrandProfile) ([]BrandProfile, error) {
	if len(profiles) == 0 {
		return nil, nil
	}
	out := make([]BrandProfile, len(profiles))
	copy(out, profiles)
	if err := s.db.WithContext(ctx).Create(&out).Error; err != nil {
		return nil, translate(err)
	}
	return out, nil
}

func (s *Gorm) ListProfiles(ctx context.Context, clientID uint) ([]BrandProfile, error) {
	var out []BrandProfile
	if err := s.db.WithContext(ctx).Where("client_id = ?", clientID).Order("id DESC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// ProfilesByIDs returns the profiles in the order of ids. Unknown ids are skipped.
func (s *Gorm) ProfilesByIDs(ctx context.Context, ids []uint) ([]BrandProfile, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var rows []BrandProfile
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	byID := make(map[uint]BrandProfile, len(rows))
	for _, p := range rows {
		byID[p.ID] = p
	}
	out := make([]BrandProfile, 0, len(ids))
	for _, id := range ids {
		if p, ok := byID[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *Gorm) CreateGeneration(ctx context.Context, g *Generation) error {
	g.ID = 0
	g.Status = StatusPending
	if g.Images == nil {
		g.Images = datatypes.JSONSlice[Image]{}
	}
	if g.CampaignTags == nil {
		g.CampaignTags = datatypes.JSONSlice[CampaignTag]{}
	}
	if err := s.db.WithContext(ctx).Create(g).Error; err != nil {
		return translate(err)
	}
	return nil
}

func (s *Gorm) GetGeneration(ctx context.Context, id uint) (Generation, error) {
	var g Generation
	if err := s.db.WithContext(ctx).First(&g, id).Error; err != nil {
		return Generation{}, translate(err)
	}
	return g, nil
}

func (s *Gorm) CompleteGeneration(ctx context.Context, id uint, provider string, images []Image) error {
	return s.finish(ctx, id, map[string]interface{}{
		"status":     StatusCompleted,
		"provider":   provider,
		"images":     datatypes.JSONSlice[Image](images),
		"updated_at": time.Now(),
	})
}

func (s *Gorm) FailGeneration(ctx context.Context, id uint, message string) error {
	return s.finish(ctx, id, map[string]interface{}{
		"status":        StatusFailed,
		"error_message": message,
		"updated_at":    time.Now(),
	})
}

// finish applies a terminal update only while the row is still pending.
func (s *Gorm) finish(ctx context.Context, id uint, updates map[string]interface{}) error {
	res := s.db.WithContext(ctx).
		Model(&Generation{}).
		Where("id = ? AND status = ?", id, StatusPending).
		Updates(updates)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected > 0 {
		return nil
	}
	if _, err := s.GetGeneration(ctx, id); err != nil {
		return err
	}
	return ErrNotPending
}

// DeleteGeneration removes one row and re-parents its direct children to the
// removed row's parent.
func (s *Gorm) DeleteGeneration(ctx context.Context, id uint) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var g Generation
		if err := tx.First(&g, id).Error; err != nil {
			return err
		}
		if err := tx.Model(&Generation{}).
			Where("parent_id = ?", id).
			Update("parent_id", g.ParentID).Error; err != nil {
			return err
		}
		return tx.Delete(&Generation{}, id).Error
	})
	return translate(err)
}

func (s *Gorm) ListGenerations(ctx context.Context, filter GenerationFilter) ([]Generation, int64, error) {
	filter = filter.normalized()

	base := func() *gorm.DB {
		q := s.db.WithContext(ctx).Model(&Generation{})
		if filter.ClientID != 0 {
			q = q.Where("client_id = ?", filter.ClientID)
		}
		return q
	}

	var total int64
	if err := base().Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var out []Generation
	if err := base().Order("id DESC").Limit(filter.Limit).Offset(filter.Offset).Find(&out).Error; err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func (s *Gorm) AppendTags(ctx context.Context, id uint, tags []CampaignTag) (Generation, error) {
	var out Generation
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&out, id).Error; err != nil {
			return err
		}
		merged := make(datatypes.JSONSlice[CampaignTag], 0, len(out.CampaignTags)+len(tags))
		merged = append(merged, out.CampaignTags...)
		merged = append(merged, tags...)
		if err := tx.Model(&Generation{}).Where("id = ?", id).Updates(map[string]interface{}{
			"campaign_tags": merged,
			"updated_at":    time.Now(),
		}).Error; err != nil {
			return err
		}
		out.CampaignTags = merged
		return nil
	})
	if err != nil {
		return Generation{}, translate(err)
	}
	return out, nil
}

func (s *Gorm) FailStalePending(ctx context.Context, before time.Time, message string) (int64, error) {
	res := s.db.WithContext(ctx).
		Model(&Generation{}).
		Where("status = ? AND created_at < ?", StatusPending, before).
		Updates(map[string]interface{}{
			"status":        StatusFailed,
			"error_message": message,
			"updated_at":    time.Now(),
		})
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

func (s *Gorm) CreateSocialPosts(ctx context.Context, posts []SocialPost) ([]SocialPost, error) {
	if len(posts) == 0 {
		return nil, nil
	}
	out := make([]SocialPost, len(posts))
	copy(out, posts)
	for i := range out {
		out[i].ID = 0
		if out[i].Tags == nil {
			out[i].Tags = datatypes.JSONSlice[string]{}
		}
	}
	if err := s.db.WithContext(ctx).Create(&out).Error; err != nil {
		return nil, translate(err)
	}
	return out, nil
}

func (s *Gorm) ListSocialPosts(ctx context.Context, filter SocialPostFilter) ([]SocialPost, int64, error) {
	filter = filter.normalized()

	base := func() *gorm.DB {
		q := s.db.WithContext(ctx).Model(&SocialPost{})
		if filter.ClientID != 0 {
			q = q.Where("client_id = ?", filter.ClientID)
		}
		if filter.Status != "" {
			q = q.Where("status = ?", filter.Status)
		}
		return q
	}

	var total int64
	if err := base().Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var out []SocialPost
	if err := base().Order("id DESC").Limit(filter.Limit).Offset(filter.Offset).Find(&out).Error; err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func (s *Gorm) Settings(ctx context.Context) (map[string]string, error) {
	var rows []Setting
	if err := s.db.WithContext(ctx).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[string]string, len(rows))
	for _, r := range rows {
		out[r.Key] = r.Value
	}
	return out, nil
}

func (s *Gorm) PutSetting(ctx context.Context, key, value string) error {
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
		}).
		Create(&Setting{Key: key, Value: value, UpdatedAt: time.Now()}).Error
}

func (s *Gorm) DeleteSetting(ctx context.Context, key string) error {
	return s.db.WithContext(ctx).Where("key = ?", key).Delete(&Setting{}).Error
}
