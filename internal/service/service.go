// Package service implements campaign redirects: weighted URL selection,
// batched click accounting, master-record status synchronisation and the
// blacklist / duplicate-name rules applied when URLs are created.
package service

import (
	"context"
	"errors"
	"log"
	"math/rand"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/jack/golang-campaign-redirect-service/internal/cache"
	"github.com/jack/golang-campaign-redirect-service/internal/model"
	"github.com/jack/golang-campaign-redirect-service/internal/repository"
)

const DefaultBatchThreshold = 10

type Options struct {
	// BatchThreshold is the pending count at which one URL is flushed early.
	BatchThreshold int64
	// Rand returns a uniform value in [0,1). Defaults to math/rand.
	Rand  func() float64
	Tasks *Tasks
}

type Service struct {
	store    repository.Store
	cache    *cache.Cache
	pending  cache.PendingClicks
	guard    *BlacklistGuard
	tasks    *Tasks
	validate *validator.Validate

	batchThreshold int64
	rand           func() float64

	// flushMu serialises flushes so a pending amount is never committed twice.
	flushMu sync.Mutex
	// createMu serialises the duplicate-name check with the insert that follows it.
	createMu sync.Mutex
}

func New(store repository.Store, c *cache.Cache, pending cache.PendingClicks, opts Options) *Service {
	if opts.BatchThreshold <= 0 {
		opts.BatchThreshold = DefaultBatchThreshold
	}
	if opts.Rand == nil {
		opts.Rand = rand.Float64
	}
	if opts.Tasks == nil {
		opts.Tasks = NewTasks(0)
	}

	return &Service{
		store:          store,
		cache:          c,
		pending:        pending,
		guard:          NewBlacklistGuard(store),
		tasks:          opts.Tasks,
		validate:       model.NewValidator(),
		batchThreshold: opts.BatchThreshold,
		rand:           opts.Rand,
	}
}

// Tasks exposes the background runner so callers can wait for side effects on shutdown.
func (s *Service) Tasks() *Tasks {
	return s.tasks
}

func (s *Service) Health(ctx context.Context) error {
	return s.store.Health(ctx)
}

func (s *Service) loadCampaign(ctx context.Context, id int64) (*model.Campaign, error) {
	if c, ok := s.cache.GetCampaign(id); ok {
		return c, nil
	}

	c, err := s.store.GetCampaign(ctx, id)
	if err != nil {
		return nil, err
	}
	s.cache.SetCampaign(c)
	return c, nil
}

func (s *Service) loadCampaignByPath(ctx context.Context, path string) (*model.Campaign, error) {
	if id, ok := s.cache.GetPath(path); ok {
		if c, err := s.loadCampaign(ctx, id); err == nil && c.CustomPath != nil && *c.CustomPath == path {
			return c, nil
		}
		s.cache.InvalidatePath(path)
	}

	c, err := s.store.GetCampaignByPath(ctx, path)
	if err != nil {
		return nil, err
	}
	s.cache.SetCampaign(c)
	return c, nil
}

// loadCommittedURL returns the URL as last written to the store, without pending clicks.
func (s *Service) loadCommittedURL(ctx context.Context, id int64) (*model.URL, error) {
	if u, ok := s.cache.GetURL(id); ok {
		return u, nil
	}

	u, err := s.store.GetURL(ctx, id)
	if err != nil {
		return nil, err
	}
	s.cache.SetURL(u)
	return u, nil
}

func (s *Service) multiplierFor(ctx context.Context, campaignID *int64) float64 {
	if campaignID == nil {
		return 1
	}
	c, err := s.loadCampaign(ctx, *campaignID)
	if err != nil {
		if !errors.Is(err, repository.ErrCampaignNotFound) {
			log.Printf("load campaign for multiplier failed: campaignID=%d err=%v", *campaignID, err)
		}
		return 1
	}
	return model.MultiplierFor(c)
}

// withPending folds uncommitted clicks into u and applies the completion rule
// lazily, so a URL that reached its limit is reported completed before the flush.
func (s *Service) withPending(ctx context.Context, u *model.URL) *model.URL {
	pending, err := s.pending.Get(ctx, u.ID)
	if err != nil {
		log.Printf("read pending clicks failed: urlID=%d err=%v", u.ID, err)
	}

	out := u.Clone()
	out.Clicks += pending
	if out.IsExhausted() && completable(out.Status) {
		out.Status = model.StatusCompleted
	}
	return out
}

func completable(status model.URLStatus) bool {
	return status == model.StatusActive || status == model.StatusPaused
}

// GetURL returns a URL with pending clicks included.
func (s *Service) GetURL(ctx context.Context, id int64) (*model.URL, error) {
	u, err := s.store.GetURL(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.withPending(ctx, u), nil
}

// GetURLs returns a campaign's URLs with pending clicks included.
func (s *Service) GetURLs(ctx context.Context, campaignID int64) ([]*model.URL, error) {
	urls, err := s.store.ListURLsByCampaign(ctx, campaignID)
	if err != nil {
		return nil, err
	}

	out := make([]*model.URL, 0, len(urls))
	for _, u := range urls {
		out = append(out, s.withPending(ctx, u))
	}
	return out, nil
}

// GetActiveURLs returns the URLs of a campaign that can currently be served.
func (s *Service) GetActiveURLs(ctx context.Context, campaignID int64) ([]*model.URL, error) {
	d, err := s.ComputeDistribution(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	return d.ActiveURLs, nil
}
