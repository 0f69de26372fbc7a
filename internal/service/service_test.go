package service

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/jack/golang-campaign-redirect-service/internal/cache"
	"github.com/jack/golang-campaign-redirect-service/internal/model"
	"github.com/jack/golang-campaign-redirect-service/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	svc     *Service
	store   *repository.MemoryRepository
	pending *cache.MemoryPending
}

func setupService(t *testing.T, opts Options) *testEnv {
	t.Helper()
	store := repository.NewMemoryRepository()
	return setupServiceWithStore(t, store, store, opts)
}

func setupServiceWithStore(t *testing.T, mem *repository.MemoryRepository, store repository.Store, opts Options) *testEnv {
	t.Helper()
	pending := cache.NewMemoryPending()
	svc := New(store, cache.New(0, nil), pending, opts)
	t.Cleanup(svc.Tasks().Wait)
	return &testEnv{svc: svc, store: mem, pending: pending}
}

func ptr[T any](v T) *T {
	return &v
}

func (e *testEnv) campaign(t *testing.T, req model.CreateCampaignRequest) *model.Campaign {
	t.Helper()
	if req.Name == "" {
		req.Name = "campaign"
	}
	c, err := e.svc.CreateCampaign(context.Background(), &req)
	require.NoError(t, err)
	return c
}

func (e *testEnv) url(t *testing.T, campaignID int64, name string, limit int64) *model.URL {
	t.Helper()
	u, err := e.svc.CreateURL(context.Background(), &model.CreateURLRequest{
		Name:       name,
		TargetURL:  "https://example.com/" + name,
		ClickLimit: limit,
		CampaignID: ptr(campaignID),
	})
	require.NoError(t, err)
	return u
}

func (e *testEnv) addCommittedClicks(t *testing.T, urlID, n int64) {
	t.Helper()
	_, _, err := e.store.AddClicks(context.Background(), urlID, n, "")
	require.NoError(t, err)
}

func fixedRand(v float64) func() float64 {
	return func() float64 { return v }
}

func TestPickWeightedSingleActiveURL(t *testing.T) {
	for _, r := range []float64{0, 0.25, 0.5, 0.999999} {
		env := setupService(t, Options{Rand: fixedRand(r)})
		c := env.campaign(t, model.CreateCampaignRequest{})
		only := env.url(t, c.ID, "only", 10)
		paused := env.url(t, c.ID, "paused", 10)
		_, err := env.svc.UpdateURL(context.Background(), paused.ID, &model.UpdateURLRequest{Status: ptr(model.StatusPaused)})
		require.NoError(t, err)

		got, err := env.svc.PickWeighted(context.Background(), c.ID)
		require.NoError(t, err)
		assert.Equal(t, only.ID, got.ID)
	}
}

func TestPickWeightedExhaustedCampaign(t *testing.T) {
	env := setupService(t, Options{})
	ctx := context.Background()
	c := env.campaign(t, model.CreateCampaignRequest{})
	u := env.url(t, c.ID, "spent", 5)
	env.addCommittedClicks(t, u.ID, 5)

	_, err := env.svc.PickWeighted(ctx, c.ID)
	assert.ErrorIs(t, err, ErrCampaignExhausted)

	_, err = env.svc.PickWeighted(ctx, 9999)
	assert.ErrorIs(t, err, repository.ErrCampaignNotFound)
}

func TestPickWeightedFavoursRemainingQuota(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	env := setupService(t, Options{Rand: rng.Float64})
	ctx := context.Background()
	c := env.campaign(t, model.CreateCampaignRequest{})
	a := env.url(t, c.ID, "a", 10)
	b := env.url(t, c.ID, "b", 10)
	env.addCommittedClicks(t, b.ID, 8)

	counts := map[int64]int{}
	for i := 0; i < 1000; i++ {
		u, err := env.svc.PickWeighted(ctx, c.ID)
		require.NoError(t, err)
		counts[u.ID]++
	}

	assert.InDelta(t, 2.0/12.0, float64(counts[b.ID])/1000, 0.05)
	assert.InDelta(t, 10.0/12.0, float64(counts[a.ID])/1000, 0.05)
}

func TestIncrementClicksCompletesURL(t *testing.T) {
	env := setupService(t, Options{})
	ctx := context.Background()
	c := env.campaign(t, model.CreateCampaignRequest{})
	u := env.url(t, c.ID, "promo", 10)
	other := env.url(t, c.ID, "other", 10)
	env.addCommittedClicks(t, u.ID, 9)

	got, err := env.svc.IncrementClicks(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(10), got.Clicks)
	assert.Equal(t, model.StatusCompleted, got.Status)

	// visible before any flush
	active, err := env.svc.GetActiveURLs(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, other.ID, active[0].ID)

	res, err := env.svc.FlushPendingClickUpdates(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.URLs)
	assert.Equal(t, 1, res.Completed)

	stored, err := env.store.GetURL(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(10), stored.Clicks)
	assert.Equal(t, model.StatusCompleted, stored.Status)
	assert.Nil(t, stored.CampaignID)

	urls, err := env.svc.GetURLs(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, urls, 1)
	assert.Equal(t, other.ID, urls[0].ID)

	env.svc.Tasks().Wait()
	o, err := env.store.GetOriginalByName(ctx, "promo")
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, o.Status)
}

func TestIncrementClicksReflectsPending(t *testing.T) {
	env := setupService(t, Options{BatchThreshold: 100})
	ctx := context.Background()
	c := env.campaign(t, model.CreateCampaignRequest{})
	u := env.url(t, c.ID, "promo", 50)

	for i := 1; i <= 3; i++ {
		got, err := env.svc.IncrementClicks(ctx, u.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(i), got.Clicks)
		assert.Equal(t, model.StatusActive, got.Status)
	}

	stored, err := env.store.GetURL(ctx, u.ID)
	require.NoError(t, err)
	assert.Zero(t, stored.Clicks)

	live, err := env.svc.GetURL(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), live.Clicks)
}

func TestIncrementClicksUnknownURL(t *testing.T) {
	env := setupService(t, Options{})
	_, err := env.svc.IncrementClicks(context.Background(), 404)
	assert.ErrorIs(t, err, repository.ErrURLNotFound)
}

func TestBatchThresholdFlushesEarly(t *testing.T) {
	env := setupService(t, Options{BatchThreshold: 5})
	ctx := context.Background()
	c := env.campaign(t, model.CreateCampaignRequest{})
	u := env.url(t, c.ID, "promo", 100)

	for i := 0; i < 5; i++ {
		_, err := env.svc.IncrementClicks(ctx, u.ID)
		require.NoError(t, err)
	}
	env.svc.Tasks().Wait()

	stored, err := env.store.GetURL(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(5), stored.Clicks)

	pending, err := env.pending.Get(ctx, u.ID)
	require.NoError(t, err)
	assert.Zero(t, pending)
}

func TestConcurrentIncrementsAreNotLost(t *testing.T) {
	env := setupService(t, Options{BatchThreshold: 7})
	ctx := context.Background()
	c := env.campaign(t, model.CreateCampaignRequest{})
	u := env.url(t, c.ID, "promo", 100000)

	const workers, perWorker = 20, 50

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				_, err := env.svc.IncrementClicks(ctx, u.ID)
				assert.NoError(t, err)
			}
		}()
	}

	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-done:
				return
			default:
				_, _ = env.svc.FlushPendingClickUpdates(ctx)
			}
		}
	}()

	wg.Wait()
	close(done)
	env.svc.Tasks().Wait()
	_, err := env.svc.FlushPendingClickUpdates(ctx)
	require.NoError(t, err)

	stored, err := env.store.GetURL(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(workers*perWorker), stored.Clicks)
}

type flakyStore struct {
	*repository.MemoryRepository
	failAdds  atomic.Bool
	failSyncs atomic.Bool
}

func (s *flakyStore) AddClicks(ctx context.Context, id int64, n int64, flushToken string) (*model.URL, *int64, error) {
	if s.failAdds.Load() {
		return nil, nil, errors.New("connection reset")
	}
	return s.MemoryRepository.AddClicks(ctx, id, n, flushToken)
}

func (s *flakyStore) ApplyOriginalSync(ctx context.Context, id int64, clickLimit, originalClickLimit int64, status model.URLStatus) (*model.URL, error) {
	if s.failSyncs.Load() {
		return nil, errors.New("statement timeout")
	}
	return s.MemoryRepository.ApplyOriginalSync(ctx, id, clickLimit, originalClickLimit, status)
}

// flakyPending fails commits the way a Redis timeout does.
type flakyPending struct {
	*cache.MemoryPending
	failCommits atomic.Int32
}

func (p *flakyPending) Commit(ctx context.Context, batch cache.FlushBatch) error {
	if p.failCommits.Load() > 0 {
		p.failCommits.Add(-1)
		return errors.New("i/o timeout")
	}
	return p.MemoryPending.Commit(ctx, batch)
}

func TestFlushRetryAfterFailedCommitCountsOnce(t *testing.T) {
	store := repository.NewMemoryRepository()
	pending := &flakyPending{MemoryPending: cache.NewMemoryPending()}
	svc := New(store, cache.New(0, nil), pending, Options{BatchThreshold: 100})
	t.Cleanup(svc.Tasks().Wait)
	env := &testEnv{svc: svc, store: store, pending: pending.MemoryPending}
	ctx := context.Background()
	c := env.campaign(t, model.CreateCampaignRequest{})
	u := env.url(t, c.ID, "promo", 100)

	for i := 0; i < 5; i++ {
		_, err := svc.IncrementClicks(ctx, u.ID)
		require.NoError(t, err)
	}

	pending.failCommits.Store(1)
	res, err := svc.FlushPendingClickUpdates(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Failed)

	// two more clicks arrive while the first batch is still uncommitted
	for i := 0; i < 2; i++ {
		_, err := svc.IncrementClicks(ctx, u.ID)
		require.NoError(t, err)
	}

	res, err = svc.FlushPendingClickUpdates(ctx)
	require.NoError(t, err)
	assert.Zero(t, res.Failed)
	assert.Equal(t, int64(5), res.Clicks)

	stored, err := store.GetURL(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(5), stored.Clicks)

	require.NoError(t, svc.FlushURL(ctx, u.ID))
	stored, err = store.GetURL(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(7), stored.Clicks)

	left, err := pending.Get(ctx, u.ID)
	require.NoError(t, err)
	assert.Zero(t, left)
}

func TestFlushKeepsPendingOnStoreFailure(t *testing.T) {
	mem := repository.NewMemoryRepository()
	store := &flakyStore{MemoryRepository: mem}
	env := setupServiceWithStore(t, mem, store, Options{BatchThreshold: 100})
	ctx := context.Background()
	c := env.campaign(t, model.CreateCampaignRequest{})
	u := env.url(t, c.ID, "promo", 100)

	for i := 0; i < 3; i++ {
		_, err := env.svc.IncrementClicks(ctx, u.ID)
		require.NoError(t, err)
	}

	store.failAdds.Store(true)
	res, err := env.svc.FlushPendingClickUpdates(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Failed)

	pending, err := env.pending.Get(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), pending)

	store.failAdds.Store(false)
	res, err = env.svc.FlushPendingClickUpdates(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), res.Clicks)

	stored, err := env.store.GetURL(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), stored.Clicks)
}

func TestFlushDropsClicksOfRemovedURL(t *testing.T) {
	env := setupService(t, Options{BatchThreshold: 100})
	ctx := context.Background()
	c := env.campaign(t, model.CreateCampaignRequest{})
	u := env.url(t, c.ID, "promo", 100)

	_, err := env.svc.IncrementClicks(ctx, u.ID)
	require.NoError(t, err)
	require.NoError(t, env.store.DeleteURLPermanently(ctx, u.ID))

	res, err := env.svc.FlushPendingClickUpdates(ctx)
	require.NoError(t, err)
	assert.Zero(t, res.Failed)

	snapshot, err := env.pending.Snapshot(ctx)
	require.NoError(t, err)
	assert.Empty(t, snapshot)
}

func TestResolvePath(t *testing.T) {
	env := setupService(t, Options{Rand: fixedRand(0.5)})
	ctx := context.Background()
	c := env.campaign(t, model.CreateCampaignRequest{CustomPath: "summer-sale"})
	u := env.url(t, c.ID, "promo", 10)

	target, err := env.svc.ResolvePath(ctx, "summer-sale")
	require.NoError(t, err)
	assert.Equal(t, c.ID, target.Campaign.ID)
	assert.Equal(t, u.ID, target.URL.ID)

	_, err = env.svc.ResolvePath(ctx, "missing")
	assert.ErrorIs(t, err, repository.ErrCampaignNotFound)
}

func TestResolveIDsPrefersRequestedURL(t *testing.T) {
	env := setupService(t, Options{Rand: fixedRand(0)})
	ctx := context.Background()
	c := env.campaign(t, model.CreateCampaignRequest{})
	first := env.url(t, c.ID, "first", 10)
	second := env.url(t, c.ID, "second", 10)

	target, err := env.svc.ResolveIDs(ctx, c.ID, second.ID)
	require.NoError(t, err)
	assert.Equal(t, second.ID, target.URL.ID)

	env.addCommittedClicks(t, second.ID, 10)
	target, err = env.svc.ResolveIDs(ctx, c.ID, second.ID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, target.URL.ID)

	target, err = env.svc.ResolveIDs(ctx, c.ID, 9999)
	require.NoError(t, err)
	assert.Equal(t, first.ID, target.URL.ID)

	env.addCommittedClicks(t, first.ID, 10)
	_, err = env.svc.ResolveIDs(ctx, c.ID, first.ID)
	assert.ErrorIs(t, err, ErrCampaignExhausted)
}

func TestRecordClickRunsInBackground(t *testing.T) {
	env := setupService(t, Options{})
	ctx := context.Background()
	c := env.campaign(t, model.CreateCampaignRequest{})
	u := env.url(t, c.ID, "promo", 10)

	env.svc.RecordClick(&Target{Campaign: c, URL: u}, Visit{IPAddress: "10.0.0.1", UserAgent: "curl/8"})
	env.svc.Tasks().Wait()

	pending, err := env.pending.Get(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), pending)

	events := env.store.ClickEvents()
	require.Len(t, events, 1)
	assert.Equal(t, u.ID, events[0].URLID)
	assert.Equal(t, c.ID, events[0].CampaignID)
	assert.Equal(t, "10.0.0.1", events[0].IPAddress)
	assert.NotEmpty(t, events[0].ID)
}
