// Package cache holds the process-local read caches and the pending click
// accumulator used by the redirect path.
//
// Entries are stamped with the injected clock. With a zero TTL every lookup
// misses, so reads always hit the store while writes are still recorded and
// click increments keep being batched.
package cache

import (
	"sync"
	"time"

	"github.com/jack/golang-campaign-redirect-service/internal/distribution"
	"github.com/jack/golang-campaign-redirect-service/internal/model"
)

// Clock returns the current time.
type Clock func() time.Time

type urlEntry struct {
	url *model.URL
	at  time.Time
}

type campaignEntry struct {
	campaign *model.Campaign
	at       time.Time
}

type distributionEntry struct {
	dist *distribution.Distribution
	at   time.Time
}

type pathEntry struct {
	campaignID int64
	at         time.Time
}

// Cache is safe for concurrent use. All getters return copies.
type Cache struct {
	ttl time.Duration
	now Clock

	mu            sync.RWMutex
	urls          map[int64]urlEntry
	campaigns     map[int64]campaignEntry
	distributions map[int64]distributionEntry
	paths         map[string]pathEntry
}

func New(ttl time.Duration, now Clock) *Cache {
	if now == nil {
		now = time.Now
	}
	return &Cache{
		ttl:           ttl,
		now:           now,
		urls:          make(map[int64]urlEntry),
		campaigns:     make(map[int64]campaignEntry),
		distributions: make(map[int64]distributionEntry),
		paths:         make(map[string]pathEntry),
	}
}

// TTL returns the configured staleness window.
func (c *Cache) TTL() time.Duration {
	return c.ttl
}

func (c *Cache) fresh(at time.Time) bool {
	return c.ttl > 0 && c.now().Sub(at) < c.ttl
}

func (c *Cache) GetURL(id int64) (*model.URL, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.urls[id]
	if !ok || !c.fresh(e.at) {
		return nil, false
	}
	return e.url.Clone(), true
}

func (c *Cache) SetURL(u *model.URL) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.urls[u.ID] = urlEntry{url: u.Clone(), at: c.now()}
}

func (c *Cache) InvalidateURL(id int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.urls, id)
}

func (c *Cache) GetCampaign(id int64) (*model.Campaign, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.campaigns[id]
	if !ok || !c.fresh(e.at) {
		return nil, false
	}
	return e.campaign.Clone(), true
}

func (c *Cache) SetCampaign(campaign *model.Campaign) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	c.campaigns[campaign.ID] = campaignEntry{campaign: campaign.Clone(), at: now}
	if campaign.CustomPath != nil {
		c.paths[*campaign.CustomPath] = pathEntry{campaignID: campaign.ID, at: now}
	}
}

// InvalidateCampaign drops the campaign, its distribution and any path pointing to it.
func (c *Cache) InvalidateCampaign(id int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.campaigns, id)
	delete(c.distributions, id)
	for path, e := range c.paths {
		if e.campaignID == id {
			delete(c.paths, path)
		}
	}
}

func (c *Cache) GetDistribution(campaignID int64) (*distribution.Distribution, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.distributions[campaignID]
	if !ok || !c.fresh(e.at) {
		return nil, false
	}
	return e.dist.Clone(), true
}

func (c *Cache) SetDistribution(d *distribution.Distribution) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.distributions[d.CampaignID] = distributionEntry{dist: d.Clone(), at: c.now()}
}

func (c *Cache) InvalidateDistribution(campaignID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.distributions, campaignID)
}

func (c *Cache) GetPath(path string) (int64, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.paths[path]
	if !ok || !c.fresh(e.at) {
		return 0, false
	}
	return e.campaignID, true
}

func (c *Cache) InvalidatePath(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.paths, path)
}
