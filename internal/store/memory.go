package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"gorm.io/datatypes"
)

type MemoryOptions struct {
	Now func() time.Time
}

// Memory is a mutex-guarded Store for local runs and tests.
type Memory struct {
	mu sync.Mutex

	clients     map[uint]*Client
	brandKits   map[uint]*BrandKit
	profiles    map[uint]*BrandProfile
	generations map[uint]*Generation
	posts       map[uint]*SocialPost
	settings    map[string]string

	nextClient     uint
	nextKit        uint
	nextProfile    uint
	nextGeneration uint
	nextPost       uint

	now func() time.Time
}

// NewMemory returns an empty store seeded with the default client.
func NewMemory(opts MemoryOptions) *Memory {
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	m := &Memory{
		clients:     make(map[uint]*Client),
		brandKits:   make(map[uint]*BrandKit),
		profiles:    make(map[uint]*BrandProfile),
		generations: make(map[uint]*Generation),
		posts:       make(map[uint]*SocialPost),
		settings:    make(map[string]string),
		now:         now,
	}
	m.nextClient++
	m.clients[m.nextClient] = &Client{ID: m.nextClient, Name: DefaultClientName, IsDefault: true, CreatedAt: now()}
	return m
}

func (m *Memory) CreateClient(_ context.Context, name string) (Client, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, c := range m.clients {
		if c.Name == name {
			return Client{}, ErrConflict
		}
	}
	m.nextClient++
	c := &Client{ID: m.nextClient, Name: name, CreatedAt: m.now()}
	m.clients[c.ID] = c
	return *c, nil
}

func (m *Memory) GetClient(_ context.Context, id uint) (Client, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.clients[id]
	if !ok {
		return Client{}, ErrNotFound
	}
	return *c, nil
}

func (m *Memory) ListClients(_ context.Context) ([]Client, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Client, 0, len(m.clients))
	for _, c := range m.clients {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) DefaultClient(_ context.Context) (Client, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var found *Client
	for _, c := range m.clients {
		if c.IsDefault && (found == nil || c.ID < found.ID) {
			found = c
		}
	}
	if found == nil {
		return Client{}, ErrNotFound
	}
	return *found, nil
}

func (m *Memory) BrandKit(_ context.Context, clientID uint) (BrandKit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	kit, ok := m.brandKits[clientID]
	if !ok {
		return BrandKit{}, ErrNotFound
	}
	return *kit, nil
}

func (m *Memory) UpsertBrandKit(_ context.Context, kit BrandKit) (BrandKit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.brandKits[kit.ClientID]; ok {
		kit.ID = existing.ID
	} else {
		m.nextKit++
		kit.ID = m.nextKit
	}
	kit.UpdatedAt = m.now()
	stored := kit
	m.brandKits[kit.ClientID] = &stored
	return kit, nil
}

func (m *Memory) CreateProfiles(_ context.Context, profiles []BrandProfile) ([]BrandProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]BrandProfile, 0, len(profiles))
	for _, p := range profiles {
		m.nextProfile++
		p.ID = m.nextProfile
		p.CreatedAt = m.now()
		stored := p
		m.profiles[p.ID] = &stored
		out = append(out, p)
	}
	return out, nil
}

func (m *Memory) ListProfiles(_ context.Context, clientID uint) ([]BrandProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []BrandProfile
	for _, p := range m.profiles {
		if p.ClientID == clientID {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (m *Memory) ProfilesByIDs(_ context.Context, ids []uint) ([]BrandProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]BrandProfile, 0, len(ids))
	for _, id := range ids {
		if p, ok := m.profiles[id]; ok {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (m *Memory) CreateGeneration(_ context.Context, g *Generation) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextGeneration++
	now := m.now()
	g.ID = m.nextGeneration
	g.Status = StatusPending
	g.CreatedAt = now
	g.UpdatedAt = now
	if g.Images == nil {
		g.Images = datatypes.JSONSlice[Image]{}
	}
	if g.CampaignTags == nil {
		g.CampaignTags = datatypes.JSONSlice[CampaignTag]{}
	}
	m.generations[g.ID] = cloneGeneration(g)
	return nil
}

func (m *Memory) GetGeneration(_ context.Context, id uint) (Generation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	g, ok := m.generations[id]
	if !ok {
		return Generation{}, ErrNotFound
	}
	return *cloneGeneration(g), nil
}

func (m *Memory) CompleteGeneration(_ context.Context, id uint, provider string, images []Image) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	g, err := m.pendingLocked(id)
	if err != nil {
		return err
	}
	g.Status = StatusCompleted
	g.Provider = provider
	g.Images = append(datatypes.JSONSlice[Image]{}, images...)
	g.UpdatedAt = m.now()
	return nil
}

func (m *Memory) FailGeneration(_ context.Context, id uint, message string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	g, err := m.pendingLocked(id)
	if err != nil {
		return err
	}
	g.Status = StatusFailed
	g.ErrorMessage = message
	g.UpdatedAt = m.now()
	return nil
}

func (m *Memory) pendingLocked(id uint) (*Generation, error) {
	g, ok := m.generations[id]
	if !ok {
		return nil, ErrNotFound
	}
	if g.Status != StatusPending {
		return nil, ErrNotPending
	}
	return g, nil
}

func (m *Memory) DeleteGeneration(_ context.Context, id uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	g, ok := m.generations[id]
	if !ok {
		return ErrNotFound
	}
	for _, child := range m.generations {
		if child.ParentID != nil && *child.ParentID == id {
			child.ParentID = cloneID(g.ParentID)
		}
	}
	delete(m.generations, id)
	return nil
}

func (m *Memory) ListGenerations(_ context.Context, filter GenerationFilter) ([]Generation, int64, error) {
	filter = filter.normalized()

	m.mu.Lock()
	defer m.mu.Unlock()

	var all []Generation
	for _, g := range m.generations {
		if filter.ClientID != 0 && g.ClientID != filter.ClientID {
			continue
		}
		all = append(all, *cloneGeneration(g))
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID > all[j].ID })

	total := int64(len(all))
	if filter.Offset >= len(all) {
		return []Generation{}, total, nil
	}
	end := filter.Offset + filter.Limit
	if end > len(all) {
		end = len(all)
	}
	return all[filter.Offset:end], total, nil
}

func (m *Memory) AppendTags(_ context.Context, id uint, tags []CampaignTag) (Generation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	g, ok := m.generations[id]
	if !ok {
		return Generation{}, ErrNotFound
	}
	g.CampaignTags = append(g.CampaignTags, tags...)
	g.UpdatedAt = m.now()
	return *cloneGeneration(g), nil
}

func (m *Memory) FailStalePending(_ context.Context, before time.Time, message string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	for _, g := range m.generations {
		if g.Status == StatusPending && g.CreatedAt.Before(before) {
			g.Status = StatusFailed
			g.ErrorMessage = message
			g.UpdatedAt = m.now()
			n++
		}
	}
	return n, nil
}

func (m *Memory) CreateSocialPosts(_ context.Context, posts []SocialPost) ([]SocialPost, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]SocialPost, 0, len(posts))
	for _, p := range posts {
		m.nextPost++
		p.ID = m.nextPost
		p.Tags = append(datatypes.JSONSlice[string]{}, p.Tags...)
		p.CreatedAt = m.now()
		p.UpdatedAt = p.CreatedAt
		stored := p
		m.posts[p.ID] = &stored
		out = append(out, p)
	}
	return out, nil
}

func (m *Memory) ListSocialPosts(_ context.Context, filter SocialPostFilter) ([]SocialPost, int64, error) {
	filter = filter.normalized()

	m.mu.Lock()
	defer m.mu.Unlock()

	var all []SocialPost
	for _, p := range m.posts {
		if filter.ClientID != 0 && p.ClientID != filter.ClientID {
			continue
		}
		if filter.Status != "" && p.Status != filter.Status {
			continue
		}
		cp := *p
		cp.Tags = append(datatypes.JSONSlice[string]{}, p.Tags...)
		all = append(all, cp)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID > all[j].ID })

	total := int64(len(all))
	if filter.Offset >= len(all) {
		return []SocialPost{}, total, nil
	}
	end := filter.Offset + filter.Limit
	if end > len(all) {
		end = len(all)
	}
	return all[filter.Offset:end], total, nil
}

func (m *Memory) Settings(_ context.Context) (map[string]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[string]string, len(m.settings))
	for k, v := range m.settings {
		out[k] = v
	}
	return out, nil
}

func (m *Memory) PutSetting(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.settings[key] = value
	return nil
}

func (m *Memory) DeleteSetting(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.settings, key)
	return nil
}

func cloneGeneration(g *Generation) *Generation {
	out := *g
	out.Images = append(datatypes.JSONSlice[Image]{}, g.Images...)
	out.CampaignTags = append(datatypes.JSONSlice[CampaignTag]{}, g.CampaignTags...)
	out.ParentID = cloneID(g.ParentID)
	return &out
}

func cloneID(id *uint) *uint {
	if id == nil {
		return nil
	}
	v := *id
	return &v
}
