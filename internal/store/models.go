package store

import (
	"time"

	"gorm.io/datatypes"
)

const (
	StatusPending   = "pending"
	StatusCompleted = "completed"
	StatusFailed    = "failed"

	ImageStatusOK = "ok"

	ProfileSourceAI     = "ai"
	ProfileSourceManual = "manual"

	DefaultClientName = "Default Client"

	PostTypeImage = "image"
	PostTypeVideo = "video"

	PostStatusDraft    = "draft"
	PostSourceAICreate = "ai_create"
)

type Client struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"column:name;not null;uniqueIndex" json:"name"`
	IsDefault bool      `gorm:"column:is_default;not null;default:false" json:"is_default"`
	CreatedAt time.Time `json:"created_at"`
}

func (Client) TableName() string { return "clients" }

type BrandKit struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	ClientID         uint      `gorm:"column:client_id;not null;uniqueIndex" json:"client_id"`
	BrandName        string    `gorm:"column:brand_name" json:"brand_name"`
	BrandDescription string    `gorm:"column:brand_description;type:text" json:"brand_description"`
	PrimaryColor     string    `gorm:"column:primary_color" json:"primary_color"`
	SecondaryColor   string    `gorm:"column:secondary_color" json:"secondary_color"`
	AccentColor      string    `gorm:"column:accent_color" json:"accent_color"`
	FontPrimary      string    `gorm:"column:font_primary" json:"font_primary"`
	FontSecondary    string    `gorm:"column:font_secondary" json:"font_secondary"`
	UpdatedAt        time.Time `json:"updated_at"`
}

func (BrandKit) TableName() string { return "brand_kits" }

type BrandProfile struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	ClientID        uint      `gorm:"column:client_id;not null;index" json:"client_id"`
	Persona         string    `gorm:"column:persona;not null" json:"persona"`
	PainPoint       string    `gorm:"column:pain_point;type:text" json:"pain_point"`
	Angle           string    `gorm:"column:angle;type:text" json:"angle"`
	VisualDirection string    `gorm:"column:visual_direction;type:text" json:"visual_direction"`
	Emotion         string    `gorm:"column:emotion" json:"emotion"`
	CopyHook        string    `gorm:"column:copy_hook;type:text" json:"copy_hook"`
	Source          string    `gorm:"column:source;not null;default:'manual'" json:"source"`
	CreatedAt       time.Time `json:"created_at"`
}

func (BrandProfile) TableName() string { return "brand_profiles" }

type Image struct {
	URL      string `json:"url"`
	Index    int    `json:"index"`
	Status   string `json:"status"`
	Provider string `json:"provider"`
}

type CampaignTag struct {
	Persona string `json:"persona,omitempty"`
	Angle   string `json:"angle,omitempty"`
	BatchID string `json:"batch_id,omitempty"`
	Label   string `json:"label,omitempty"`
}

type Generation struct {
	ID              uint                             `gorm:"primaryKey" json:"id"`
	ClientID        uint                             `gorm:"column:client_id;not null;index" json:"client_id"`
	Prompt          string                           `gorm:"column:prompt;type:text;not null" json:"prompt"`
	Concept         string                           `gorm:"column:concept" json:"concept,omitempty"`
	Avatar          string                           `gorm:"column:avatar" json:"avatar,omitempty"`
	ReferenceImage  string                           `gorm:"column:reference_image" json:"reference_image,omitempty"`
	ProductImage    string                           `gorm:"column:product_image" json:"product_image,omitempty"`
	Size            string                           `gorm:"column:size" json:"size"`
	AspectRatio     string                           `gorm:"column:aspect_ratio" json:"aspect_ratio"`
	UseBrandKit     bool                             `gorm:"column:use_brand_kit;not null;default:false" json:"use_brand_kit"`
	Images          datatypes.JSONSlice[Image]       `gorm:"column:images" json:"images"`
	Status          string                           `gorm:"column:status;not null;index" json:"status"`
	ErrorMessage    string                           `gorm:"column:error_message;type:text" json:"error_message,omitempty"`
	Provider        string                           `gorm:"column:provider" json:"provider,omitempty"`
	ParentID        *uint                            `gorm:"column:parent_id;index" json:"parent_id,omitempty"`
	EditInstruction string                           `gorm:"column:edit_instruction;type:text" json:"edit_instruction,omitempty"`
	CampaignTags    datatypes.JSONSlice[CampaignTag] `gorm:"column:campaign_tags" json:"campaign_tags"`
	CreatedAt       time.Time                        `gorm:"index" json:"created_at"`
	UpdatedAt       time.Time                        `json:"updated_at"`
}

func (Generation) TableName() string { return "generations" }

// SocialPost is a draft post for one platform. Posts created together share
// a batch id.
type SocialPost struct {
	ID            uint                        `gorm:"primaryKey" json:"id"`
	ClientID      uint                        `gorm:"column:client_id;not null;index" json:"client_id"`
	BatchID       string                      `gorm:"column:batch_id;index" json:"batch_id"`
	Platform      string                      `gorm:"column:platform;not null" json:"platform"`
	PostType      string                      `gorm:"column:post_type;not null" json:"post_type"`
	Title         string                      `gorm:"column:title" json:"title"`
	Description   string                      `gorm:"column:description;type:text" json:"description"`
	Tags          datatypes.JSONSlice[string] `gorm:"column:tags" json:"tags"`
	MediaURL      string                      `gorm:"column:media_url" json:"media_url,omitempty"`
	ThumbnailURL  string                      `gorm:"column:thumbnail_url" json:"thumbnail_url,omitempty"`
	ContentWidth  int                         `gorm:"column:content_width" json:"content_width"`
	ContentHeight int                         `gorm:"column:content_height" json:"content_height"`
	Source        string                      `gorm:"column:source;not null" json:"source"`
	Status        string                      `gorm:"column:status;not null;index" json:"status"`
	ErrorMessage  string                      `gorm:"column:error_message;type:text" json:"error_message,omitempty"`
	CreatedAt     time.Time                   `gorm:"index" json:"created_at"`
	UpdatedAt     time.Time                   `json:"updated_at"`
}

func (SocialPost) TableName() string { return "social_posts" }

type Setting struct {
	Key       string    `gorm:"column:key;primaryKey"`
	Value     string    `gorm:"column:value;type:text;not null"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

func (Setting) TableName() string { return "settings" }

type GenerationFilter struct {
	ClientID uint
	Limit    int
	Offset   int
}

func (f GenerationFilter) normalized() GenerationFilter {
	if f.Limit <= 0 {
		f.Limit = 20
	}
	if f.Limit > 100 {
		f.Limit = 100
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return f
}

type SocialPostFilter struct {
	ClientID uint
	Status   string
	Limit    int
	Offset   int
}

func (f SocialPostFilter) normalized() SocialPostFilter {
	if f.Limit <= 0 {
		f.Limit = 50
	}
	if f.Limit > 200 {
		f.Limit = 200
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return f
}
