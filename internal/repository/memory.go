package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jack/golang-campaign-redirect-service/internal/model"
)

// MemoryRepository keeps all state in process memory. It is used for local
// development (STORE_DRIVER=memory) and as the store in unit tests.
// Every read returns a copy so callers cannot bypass AddClicks and friends.
type MemoryRepository struct {
	mu        sync.RWMutex
	now       func() time.Time
	nextID    int64
	campaigns map[int64]*model.Campaign
	urls      map[int64]*model.URL
	originals map[int64]*model.OriginalURLRecord
	blacklist map[int64]*model.BlacklistedURL
	clicks    []*model.ClickEvent
	flushes   map[string]*int64
}

var _ Store = (*MemoryRepository)(nil)

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		now:       time.Now,
		campaigns: make(map[int64]*model.Campaign),
		urls:      make(map[int64]*model.URL),
		originals: make(map[int64]*model.OriginalURLRecord),
		blacklist: make(map[int64]*model.BlacklistedURL),
		flushes:   make(map[string]*int64),
	}
}

func (m *MemoryRepository) id() int64 {
	m.nextID++
	return m.nextID
}

func (m *MemoryRepository) pathTaken(path *string, exceptID int64) bool {
	if path == nil {
		return false
	}
	for _, c := range m.campaigns {
		if c.ID != exceptID && c.CustomPath != nil && *c.CustomPath == *path {
			return true
		}
	}
	return false
}

func (m *MemoryRepository) CreateCampaign(ctx context.Context, c *model.Campaign) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.pathTaken(c.CustomPath, 0) {
		return ErrCustomPathTaken
	}

	c.ID = m.id()
	c.CreatedAt = m.now()
	c.UpdatedAt = c.CreatedAt
	m.campaigns[c.ID] = c.Clone()
	return nil
}

func (m *MemoryRepository) GetCampaign(ctx context.Context, id int64) (*model.Campaign, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.campaigns[id]
	if !ok {
		return nil, ErrCampaignNotFound
	}
	return c.Clone(), nil
}

func (m *MemoryRepository) GetCampaignByPath(ctx context.Context, path string) (*model.Campaign, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, c := range m.campaigns {
		if c.CustomPath != nil && *c.CustomPath == path {
			return c.Clone(), nil
		}
	}
	return nil, ErrCampaignNotFound
}

func (m *MemoryRepository) ListCampaigns(ctx context.Context) ([]*model.Campaign, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*model.Campaign, 0, len(m.campaigns))
	for _, c := range m.campaigns {
		out = append(out, c.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryRepository) UpdateCampaign(ctx context.Context, c *model.Campaign) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.campaigns[c.ID]
	if !ok {
		return ErrCampaignNotFound
	}
	if m.pathTaken(c.CustomPath, c.ID) {
		return ErrCustomPathTaken
	}

	c.CreatedAt = existing.CreatedAt
	c.UpdatedAt = m.now()
	m.campaigns[c.ID] = c.Clone()
	return nil
}

func (m *MemoryRepository) DeleteCampaign(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.campaigns[id]; !ok {
		return ErrCampaignNotFound
	}

	now := m.now()
	for _, u := range m.urls {
		if u.InCampaign(id) {
			u.Status = model.StatusDeleted
			u.CampaignID = nil
			u.UpdatedAt = now
		}
	}
	delete(m.campaigns, id)
	return nil
}

func (m *MemoryRepository) CreateURL(ctx context.Context, u *model.URL) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	u.ID = m.id()
	u.CreatedAt = m.now()
	u.UpdatedAt = u.CreatedAt
	m.urls[u.ID] = u.Clone()
	return nil
}

func (m *MemoryRepository) GetURL(ctx context.Context, id int64) (*model.URL, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	u, ok := m.urls[id]
	if !ok {
		return nil, ErrURLNotFound
	}
	return u.Clone(), nil
}

func (m *MemoryRepository) filterURLs(keep func(*model.URL) bool) []*model.URL {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*model.URL
	for _, u := range m.urls {
		if keep(u) {
			out = append(out, u.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *MemoryRepository) ListURLsByCampaign(ctx context.Context, campaignID int64) ([]*model.URL, error) {
	return m.filterURLs(func(u *model.URL) bool { return u.InCampaign(campaignID) }), nil
}

func (m *MemoryRepository) ListURLsByName(ctx context.Context, name string) ([]*model.URL, error) {
	return m.filterURLs(func(u *model.URL) bool { return u.Name == name }), nil
}

func (m *MemoryRepository) URLNameUsage(ctx context.Context, name string) (NameUsage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var usage NameUsage
	for _, u := range m.urls {
		switch {
		case u.Name == name:
			usage.Total++
			if u.Status != model.StatusRejected {
				usage.NonRejected++
			}
		case strings.HasPrefix(u.Name, name+" #"):
			usage.Total++
		}
	}
	return usage, nil
}

func (m *MemoryRepository) UpdateURL(ctx context.Context, u *model.URL) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.urls[u.ID]
	if !ok {
		return ErrURLNotFound
	}

	stored := existing.Clone()
	stored.CampaignID = u.Clone().CampaignID
	stored.Name = u.Name
	stored.TargetURL = u.TargetURL
	stored.ClickLimit = u.ClickLimit
	stored.Status = u.Status
	stored.UpdatedAt = m.now()
	m.urls[u.ID] = stored

	*u = *stored.Clone()
	return nil
}

func (m *MemoryRepository) SetURLStatus(ctx context.Context, ids []int64, status model.URLStatus) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	n := 0
	for _, id := range ids {
		if u, ok := m.urls[id]; ok {
			u.Status = status
			u.UpdatedAt = now
			n++
		}
	}
	return n, nil
}

func (m *MemoryRepository) DeleteURLPermanently(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.urls[id]; !ok {
		return ErrURLNotFound
	}
	delete(m.urls, id)
	return nil
}

func (m *MemoryRepository) AddClicks(ctx context.Context, id int64, n int64, flushToken string) (*model.URL, *int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.urls[id]
	if !ok {
		return nil, nil, ErrURLNotFound
	}

	if prev, applied := m.flushes[flushToken]; applied {
		return u.Clone(), prev, nil
	}

	prev := u.Clone().CampaignID
	if flushToken != "" {
		m.flushes[flushToken] = prev
	}
	u.Clicks += n
	if u.Clicks >= u.ClickLimit && u.Status != model.StatusRejected && u.Status != model.StatusDeleted {
		u.Status = model.StatusCompleted
		u.CampaignID = nil
	}
	u.UpdatedAt = m.now()
	return u.Clone(), prev, nil
}

func (m *MemoryRepository) ApplyOriginalSync(ctx context.Context, id int64, clickLimit, originalClickLimit int64, status model.URLStatus) (*model.URL, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.urls[id]
	if !ok {
		return nil, ErrURLNotFound
	}

	u.ClickLimit = clickLimit
	u.OriginalClickLimit = originalClickLimit
	u.Status = status
	u.UpdatedAt = m.now()
	return u.Clone(), nil
}

func cloneOriginal(o *model.OriginalURLRecord) *model.OriginalURLRecord {
	c := *o
	return &c
}

func (m *MemoryRepository) CreateOriginal(ctx context.Context, o *model.OriginalURLRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	o.ID = m.id()
	o.CreatedAt = m.now()
	o.UpdatedAt = o.CreatedAt
	m.originals[o.ID] = cloneOriginal(o)
	return nil
}

func (m *MemoryRepository) GetOriginal(ctx context.Context, id int64) (*model.OriginalURLRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	o, ok := m.originals[id]
	if !ok {
		return nil, ErrOriginalNotFound
	}
	return cloneOriginal(o), nil
}

func (m *MemoryRepository) GetOriginalByName(ctx context.Context, name string) (*model.OriginalURLRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, o := range m.originals {
		if o.Name == name {
			return cloneOriginal(o), nil
		}
	}
	return nil, ErrOriginalNotFound
}

func (m *MemoryRepository) ListOriginals(ctx context.Context) ([]*model.OriginalURLRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*model.OriginalURLRecord, 0, len(m.originals))
	for _, o := range m.originals {
		out = append(out, cloneOriginal(o))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryRepository) UpdateOriginal(ctx context.Context, o *model.OriginalURLRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.originals[o.ID]
	if !ok {
		return ErrOriginalNotFound
	}

	stored := cloneOriginal(existing)
	stored.TargetURL = o.TargetURL
	stored.OriginalClickLimit = o.OriginalClickLimit
	stored.Status = o.Status
	stored.UpdatedAt = m.now()
	m.originals[o.ID] = stored
	o.UpdatedAt = stored.UpdatedAt
	return nil
}

func (m *MemoryRepository) ListBlacklist(ctx context.Context) ([]*model.BlacklistedURL, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*model.BlacklistedURL, 0, len(m.blacklist))
	for _, b := range m.blacklist {
		c := *b
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryRepository) CreateBlacklist(ctx context.Context, b *model.BlacklistedURL) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	b.ID = m.id()
	b.TargetURL = strings.TrimSpace(b.TargetURL)
	b.CreatedAt = m.now()
	c := *b
	m.blacklist[b.ID] = &c
	return nil
}

func (m *MemoryRepository) DeleteBlacklist(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.blacklist[id]; !ok {
		return ErrBlacklistNotFound
	}
	delete(m.blacklist, id)
	return nil
}

func (m *MemoryRepository) IsBlacklisted(ctx context.Context, targetURL string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	target := strings.TrimSpace(targetURL)
	for _, b := range m.blacklist {
		if strings.TrimSpace(b.TargetURL) == target {
			return true, nil
		}
	}
	return false, nil
}

func (m *MemoryRepository) LogClick(ctx context.Context, e *model.ClickEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c := *e
	if c.CreatedAt.IsZero() {
		c.CreatedAt = m.now()
	}
	m.clicks = append(m.clicks, &c)
	return nil
}

// ClickEvents returns the recorded analytics events.
func (m *MemoryRepository) ClickEvents() []*model.ClickEvent {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*model.ClickEvent, len(m.clicks))
	for i, e := range m.clicks {
		c := *e
		out[i] = &c
	}
	return out
}

func (m *MemoryRepository) Health(ctx context.Context) error {
	return nil
}
