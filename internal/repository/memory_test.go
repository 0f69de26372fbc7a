package repository

import (
	"context"
	"testing"

	"github.com/jack/golang-campaign-redirect-service/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T { return &v }

func TestMemoryCustomPathUnique(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()

	require.NoError(t, repo.CreateCampaign(ctx, &model.Campaign{Name: "a", CustomPath: ptr("promo")}))
	err := repo.CreateCampaign(ctx, &model.Campaign{Name: "b", CustomPath: ptr("promo")})
	assert.ErrorIs(t, err, ErrCustomPathTaken)

	c, err := repo.GetCampaignByPath(ctx, "promo")
	require.NoError(t, err)
	assert.Equal(t, "a", c.Name)

	_, err = repo.GetCampaignByPath(ctx, "missing")
	assert.ErrorIs(t, err, ErrCampaignNotFound)
}

func TestMemoryAddClicksCompletesAndDetaches(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()

	c := &model.Campaign{Name: "c", Multiplier: 1}
	require.NoError(t, repo.CreateCampaign(ctx, c))
	u := &model.URL{CampaignID: &c.ID, Name: "x", TargetURL: "https://a.example", Clicks: 8, ClickLimit: 10, OriginalClickLimit: 10, Status: model.StatusActive}
	require.NoError(t, repo.CreateURL(ctx, u))

	got, prev, err := repo.AddClicks(ctx, u.ID, 1, "")
	require.NoError(t, err)
	assert.Equal(t, model.StatusActive, got.Status)
	assert.True(t, got.InCampaign(c.ID))
	require.NotNil(t, prev)
	assert.Equal(t, c.ID, *prev)

	got, prev, err = repo.AddClicks(ctx, u.ID, 1, "")
	require.NoError(t, err)
	require.NotNil(t, prev)
	assert.Equal(t, c.ID, *prev)
	assert.Equal(t, int64(10), got.Clicks)
	assert.Equal(t, model.StatusCompleted, got.Status)
	assert.Nil(t, got.CampaignID)

	urls, err := repo.ListURLsByCampaign(ctx, c.ID)
	require.NoError(t, err)
	assert.Empty(t, urls)
}

func TestMemoryAddClicksAppliesFlushTokenOnce(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()

	c := &model.Campaign{Name: "c", Multiplier: 1}
	require.NoError(t, repo.CreateCampaign(ctx, c))
	u := &model.URL{CampaignID: &c.ID, Name: "x", TargetURL: "https://a.example", ClickLimit: 5, OriginalClickLimit: 5, Status: model.StatusActive}
	require.NoError(t, repo.CreateURL(ctx, u))

	got, prev, err := repo.AddClicks(ctx, u.ID, 5, "flush-1")
	require.NoError(t, err)
	assert.Equal(t, int64(5), got.Clicks)
	assert.Nil(t, got.CampaignID)
	require.NotNil(t, prev)

	// the replay reports the campaign the first write detached from
	got, prev, err = repo.AddClicks(ctx, u.ID, 5, "flush-1")
	require.NoError(t, err)
	assert.Equal(t, int64(5), got.Clicks)
	assert.Equal(t, model.StatusCompleted, got.Status)
	require.NotNil(t, prev)
	assert.Equal(t, c.ID, *prev)

	got, _, err = repo.AddClicks(ctx, u.ID, 2, "flush-2")
	require.NoError(t, err)
	assert.Equal(t, int64(7), got.Clicks)
}

func TestMemoryUpdateURLProtectsCounters(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()

	u := &model.URL{Name: "x", TargetURL: "https://a.example", Clicks: 4, ClickLimit: 10, OriginalClickLimit: 10, Status: model.StatusActive}
	require.NoError(t, repo.CreateURL(ctx, u))

	edit := u.Clone()
	edit.Clicks = 0
	edit.OriginalClickLimit = 99
	edit.ClickLimit = 20
	require.NoError(t, repo.UpdateURL(ctx, edit))

	got, err := repo.GetURL(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(4), got.Clicks)
	assert.Equal(t, int64(10), got.OriginalClickLimit)
	assert.Equal(t, int64(20), got.ClickLimit)

	got, err = repo.ApplyOriginalSync(ctx, u.ID, 30, 15, model.StatusPaused)
	require.NoError(t, err)
	assert.Equal(t, int64(15), got.OriginalClickLimit)
	assert.Equal(t, int64(30), got.ClickLimit)
	assert.Equal(t, model.StatusPaused, got.Status)
}

func TestMemoryURLNameUsage(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()

	for _, u := range []*model.URL{
		{Name: "X", Status: model.StatusActive},
		{Name: "X", Status: model.StatusRejected},
		{Name: "X #2", Status: model.StatusRejected},
		{Name: "XY", Status: model.StatusActive},
	} {
		require.NoError(t, repo.CreateURL(ctx, u))
	}

	usage, err := repo.URLNameUsage(ctx, "X")
	require.NoError(t, err)
	assert.Equal(t, NameUsage{Total: 3, NonRejected: 1}, usage)
}

func TestMemoryDeleteCampaignSoftDeletesURLs(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()

	c := &model.Campaign{Name: "c"}
	require.NoError(t, repo.CreateCampaign(ctx, c))
	u := &model.URL{CampaignID: &c.ID, Name: "x", ClickLimit: 5, Status: model.StatusActive}
	require.NoError(t, repo.CreateURL(ctx, u))

	require.NoError(t, repo.DeleteCampaign(ctx, c.ID))

	got, err := repo.GetURL(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusDeleted, got.Status)
	assert.Nil(t, got.CampaignID)

	_, err = repo.GetCampaign(ctx, c.ID)
	assert.ErrorIs(t, err, ErrCampaignNotFound)
}

func TestMemoryBlacklistTrimsWhitespace(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()

	require.NoError(t, repo.CreateBlacklist(ctx, &model.BlacklistedURL{Name: "bad", TargetURL: "  https://bad.example/x \n"}))

	ok, err := repo.IsBlacklisted(ctx, "https://bad.example/x")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.IsBlacklisted(ctx, " https://bad.example/x/ ")
	require.NoError(t, err)
	assert.False(t, ok)
}
