package httpapi

import (
	"context"
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"static-ads-backend/internal/campaign"
	"static-ads-backend/internal/generation"
	"static-ads-backend/internal/intelligence"
	"static-ads-backend/internal/settings"
	"static-ads-backend/internal/social"
	"static-ads-backend/internal/store"
)

type Generations interface {
	Create(ctx context.Context, p generation.CreateParams) (store.Generation, error)
	CreateEdit(ctx context.Context, parentID uint, instruction string, numImages int) (store.Generation, error)
	Get(ctx context.Context, id uint) (store.Generation, error)
	Delete(ctx context.Context, id uint) error
	List(ctx context.Context, clientID uint, limit, offset int) (generation.ListResult, error)
	Tag(ctx context.Context, id uint, tags []store.CampaignTag) (store.Generation, error)
}

type Campaigns interface {
	Plan(ctx context.Context, p campaign.PlanParams) (campaign.Plan, error)
	Execute(ctx context.Context, p campaign.ExecuteParams) (campaign.Report, error)
}

type Brands interface {
	GenerateProfiles(ctx context.Context, clientID uint, researchText string, n int) ([]store.BrandProfile, error)
	CreateProfile(ctx context.Context, clientID uint, in intelligence.ProfileInput) (store.BrandProfile, error)
	ListProfiles(ctx context.Context, clientID uint) ([]store.BrandProfile, error)
	GetBrandKit(ctx context.Context, clientID uint) (*store.BrandKit, uint, error)
	UpsertBrandKit(ctx context.Context, clientID uint, kit store.BrandKit) (store.BrandKit, error)
	CreateClient(ctx context.Context, name string) (store.Client, error)
	ListClients(ctx context.Context) ([]store.Client, error)
}

type Settings interface {
	Status(ctx context.Context) (map[string]settings.KeyStatus, error)
	Update(ctx context.Context, values map[string]string) ([]string, error)
	Delete(ctx context.Context, storedKey string) error
}

type Social interface {
	CreatePosts(ctx context.Context, p social.CreateParams) (social.Batch, error)
	ListPosts(ctx context.Context, clientID uint, status string, limit, offset int) (social.ListResult, error)
}

type Options struct {
	Generations Generations
	Campaigns   Campaigns
	Brands      Brands
	Settings    Settings
	Social      Social
	Logger      *slog.Logger
}

type server struct {
	generations Generations
	campaigns   Campaigns
	brands      Brands
	settings    Settings
	social      Social
	logger      *slog.Logger
}

func NewRouter(opts Options) *gin.Engine {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	s := &server{
		generations: opts.Generations,
		campaigns:   opts.Campaigns,
		brands:      opts.Brands,
		settings:    opts.Settings,
		social:      opts.Social,
		logger:      logger,
	}

	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(logger))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api")

	gen := api.Group("/generate")
	gen.POST("", s.createGeneration)
	gen.POST("/edit", s.createEdit)
	gen.GET("/history", s.listGenerations)
	gen.GET("/:id", s.getGeneration)
	gen.DELETE("/:id", s.deleteGeneration)
	gen.POST("/:id/tags", s.tagGeneration)

	camp := api.Group("/campaign")
	camp.POST("/plan", s.planCampaign)
	camp.POST("/generate", s.executeCampaign)

	intel := api.Group("/intelligence")
	intel.GET("", s.listProfiles)
	intel.POST("", s.createProfile)
	intel.POST("/generate", s.generateProfiles)

	posts := api.Group("/autoposter")
	posts.POST("/ai-create", s.createSocialPosts)
	posts.GET("/posts", s.listSocialPosts)

	api.GET("/brand-kit", s.getBrandKit)
	api.PUT("/brand-kit", s.upsertBrandKit)

	api.GET("/clients", s.listClients)
	api.POST("/clients", s.createClient)

	api.GET("/settings", s.settingsStatus)
	api.PUT("/settings", s.updateSettings)
	api.DELETE("/settings/:key", s.deleteSetting)

	return r
}
