package httpapi

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"static-ads-backend/internal/campaign"
	"static-ads-backend/internal/generation"
	"static-ads-backend/internal/intelligence"
	"static-ads-backend/internal/social"
	"static-ads-backend/internal/store"
)

type createGenerationRequest struct {
	ClientID       uint   `json:"clientId"`
	Prompt         string `json:"prompt"`
	Concept        string `json:"concept"`
	Avatar         string `json:"avatar"`
	ReferenceImage string `json:"reference_image"`
	ProductImage   string `json:"product_image"`
	Size           string `json:"size"`
	AspectRatio    string `json:"aspect_ratio"`
	UseBrandKit    bool   `json:"use_brand_kit"`
	NumImages      imageCount `json:"num_images"`
	Seed           *int64     `json:"seed"`
}

type editRequest struct {
	ParentID        uint       `json:"parentId"`
	EditInstruction string     `json:"editInstruction"`
	NumImages       imageCount `json:"num_images"`
}

// blankImageCount is used when num_images is present but zero, null or not a number.
const blankImageCount = 4

// imageCount is num_images as sent by clients: a number or a numeric string.
// A missing field keeps the value set before decoding.
type imageCount int

func (n *imageCount) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch v := v.(type) {
	case float64:
		if int(v) != 0 {
			*n = imageCount(v)
			return nil
		}
	case string:
		if i, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && i != 0 {
			*n = imageCount(i)
			return nil
		}
	}
	*n = blankImageCount
	return nil
}

type generationResponse struct {
	Generation store.Generation `json:"generation"`
	Provider   string           `json:"provider"`
}

func (s *server) createGeneration(c *gin.Context) {
	req := createGenerationRequest{NumImages: 1}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid_body", "invalid request body")
		return
	}

	g, err := s.generations.Create(c.Request.Context(), generation.CreateParams{
		ClientID:       req.ClientID,
		Prompt:         req.Prompt,
		Concept:        req.Concept,
		Avatar:         req.Avatar,
		ReferenceImage: req.ReferenceImage,
		ProductImage:   req.ProductImage,
		Size:           req.Size,
		AspectRatio:    req.AspectRatio,
		UseBrandKit:    req.UseBrandKit,
		NumImages:      int(req.NumImages),
		Seed:           req.Seed,
	})
	s.writeGeneration(c, g, err)
}

func (s *server) createEdit(c *gin.Context) {
	req := editRequest{NumImages: 1}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid_body", "invalid request body")
		return
	}

	g, err := s.generations.CreateEdit(c.Request.Context(), req.ParentID, req.EditInstruction, int(req.NumImages))
	s.writeGeneration(c, g, err)
}

func (s *server) writeGeneration(c *gin.Context, g store.Generation, err error) {
	if err != nil {
		var failed *store.Generation
		if g.ID != 0 {
			failed = &g
		}
		respondErrorWith(c, err, failed)
		return
	}
	respondOK(c, generationResponse{Generation: g, Provider: g.Provider})
}

func (s *server) listGenerations(c *gin.Context) {
	res, err := s.generations.List(c.Request.Context(),
		queryClientID(c),
		queryInt(c, "limit", 20),
		queryInt(c, "offset", 0),
	)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, res)
}

func (s *server) getGeneration(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	g, err := s.generations.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{"generation": g})
}

func (s *server) deleteGeneration(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := s.generations.Delete(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{"ok": true})
}

func (s *server) tagGeneration(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req struct {
		Tags []store.CampaignTag `json:"tags"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid_body", "invalid request body")
		return
	}
	g, err := s.generations.Tag(c.Request.Context(), id, req.Tags)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{"generation": g})
}

type planRequest struct {
	ProfileIDs        []uint `json:"profileIds"`
	CampaignGoal      string `json:"campaignGoal"`
	ReferenceImageURL string `json:"referenceImageUrl"`
	ProductImageURL   string `json:"productImageUrl"`
	AdsPerProfile     int    `json:"adsPerProfile"`
	Size              string `json:"size"`
}

func (s *server) planCampaign(c *gin.Context) {
	var req planRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid_body", "invalid request body")
		return
	}
	plan, err := s.campaigns.Plan(c.Request.Context(), campaign.PlanParams{
		ProfileIDs:     req.ProfileIDs,
		Goal:           req.CampaignGoal,
		ReferenceImage: req.ReferenceImageURL,
		ProductImage:   req.ProductImageURL,
		AdsPerProfile:  req.AdsPerProfile,
		Size:           req.Size,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, plan)
}

func (s *server) executeCampaign(c *gin.Context) {
	var req struct {
		ClientID uint                `json:"clientId"`
		Plan     []campaign.PlanItem `json:"plan"`
		Size     string              `json:"size"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid_body", "invalid request body")
		return
	}
	report, err := s.campaigns.Execute(c.Request.Context(), campaign.ExecuteParams{
		ClientID: req.ClientID,
		Items:    req.Plan,
		Size:     req.Size,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, report)
}

func (s *server) createSocialPosts(c *gin.Context) {
	var req struct {
		ClientID    uint     `json:"clientId"`
		Description string   `json:"description"`
		Tone        string   `json:"tone"`
		Platforms   []string `json:"platforms"`
		UseBrandKit bool     `json:"useBrandKit"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid_body", "invalid request body")
		return
	}
	batch, err := s.social.CreatePosts(c.Request.Context(), social.CreateParams{
		ClientID:    req.ClientID,
		Description: req.Description,
		Tone:        req.Tone,
		Platforms:   req.Platforms,
		UseBrandKit: req.UseBrandKit,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respondCreated(c, batch)
}

func (s *server) listSocialPosts(c *gin.Context) {
	res, err := s.social.ListPosts(c.Request.Context(),
		queryClientID(c),
		c.Query("status"),
		queryInt(c, "limit", 50),
		queryInt(c, "offset", 0),
	)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, res)
}

func (s *server) listProfiles(c *gin.Context) {
	rows, err := s.brands.ListProfiles(c.Request.Context(), queryClientID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{"profiles": rows})
}

func (s *server) createProfile(c *gin.Context) {
	var req struct {
		ClientID uint `json:"clientId"`
		intelligence.ProfileInput
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid_body", "invalid request body")
		return
	}
	p, err := s.brands.CreateProfile(c.Request.Context(), req.ClientID, req.ProfileInput)
	if err != nil {
		respondError(c, err)
		return
	}
	respondCreated(c, gin.H{"profile": p})
}

func (s *server) generateProfiles(c *gin.Context) {
	var req struct {
		ClientID     uint   `json:"clientId"`
		ResearchText string `json:"researchText"`
		NumProfiles  int    `json:"numProfiles"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid_body", "invalid request body")
		return
	}
	rows, err := s.brands.GenerateProfiles(c.Request.Context(), req.ClientID, req.ResearchText, req.NumProfiles)
	if err != nil {
		respondError(c, err)
		return
	}
	respondCreated(c, gin.H{"profiles": rows})
}

func (s *server) getBrandKit(c *gin.Context) {
	kit, clientID, err := s.brands.GetBrandKit(c.Request.Context(), queryClientID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{"brandKit": kit, "clientId": clientID})
}

func (s *server) upsertBrandKit(c *gin.Context) {
	var req struct {
		ClientID uint `json:"clientId"`
		store.BrandKit
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid_body", "invalid request body")
		return
	}
	kit, err := s.brands.UpsertBrandKit(c.Request.Context(), req.ClientID, req.BrandKit)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{"brandKit": kit})
}

func (s *server) listClients(c *gin.Context) {
	rows, err := s.brands.ListClients(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{"clients": rows})
}

func (s *server) createClient(c *gin.Context) {
	var req struct {
		Name string `json:"name"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid_body", "invalid request body")
		return
	}
	client, err := s.brands.CreateClient(c.Request.Context(), req.Name)
	if err != nil {
		respondError(c, err)
		return
	}
	respondCreated(c, gin.H{"client": client})
}

func (s *server) settingsStatus(c *gin.Context) {
	status, err := s.settings.Status(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{"settings": status})
}

func (s *server) updateSettings(c *gin.Context) {
	var body map[string]any
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "invalid_body", "invalid request body")
		return
	}

	values := make(map[string]string, len(body))
	for k, v := range body {
		switch v := v.(type) {
		case nil:
			values[k] = ""
		case string:
			values[k] = v
		default:
			values[k] = fmt.Sprint(v)
		}
	}

	saved, err := s.settings.Update(c.Request.Context(), values)
	if err != nil {
		respondError(c, err)
		return
	}
	if saved == nil {
		saved = []string{}
	}
	respondOK(c, gin.H{"ok": true, "saved": saved})
}

func (s *server) deleteSetting(c *gin.Context) {
	if err := s.settings.Delete(c.Request.Context(), c.Param("key")); err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{"ok": true})
}

func pathID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		badRequest(c, "invalid_id", "invalid id")
		return 0, false
	}
	return uint(id), true
}

// queryClientID treats a missing or malformed clientId as the default client.
func queryClientID(c *gin.Context) uint {
	raw := strings.TrimSpace(c.Query("clientId"))
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0
	}
	return uint(id)
}

func queryInt(c *gin.Context, key string, fallback int) int {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}
