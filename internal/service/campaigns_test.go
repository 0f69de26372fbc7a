package service

import (
	"context"
	"testing"

	"github.com/jack/golang-campaign-redirect-service/internal/model"
	"github.com/jack/golang-campaign-redirect-service/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateCampaignDefaults(t *testing.T) {
	env := setupService(t, Options{})
	c := env.campaign(t, model.CreateCampaignRequest{Name: "  spring  "})

	assert.Equal(t, "spring", c.Name)
	assert.Equal(t, model.RedirectDirect, c.RedirectMethod)
	assert.Equal(t, 1.0, c.Multiplier)
	assert.Nil(t, c.CustomPath)
}

func TestCreateCampaignRejectsBadInput(t *testing.T) {
	env := setupService(t, Options{})
	ctx := context.Background()

	_, err := env.svc.CreateCampaign(ctx, &model.CreateCampaignRequest{Name: "a", CustomPath: "Bad Path"})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "CustomPath", verr.Field)

	_, err = env.svc.CreateCampaign(ctx, &model.CreateCampaignRequest{Name: "a", RedirectMethod: "teleport"})
	require.ErrorAs(t, err, &verr)

	env.campaign(t, model.CreateCampaignRequest{CustomPath: "taken"})
	_, err = env.svc.CreateCampaign(ctx, &model.CreateCampaignRequest{Name: "b", CustomPath: "taken"})
	assert.ErrorIs(t, err, repository.ErrCustomPathTaken)
}

func TestUpdateCampaignRescalesLimits(t *testing.T) {
	env := setupService(t, Options{})
	ctx := context.Background()
	c := env.campaign(t, model.CreateCampaignRequest{})
	u := env.url(t, c.ID, "promo", 10)
	spent := env.url(t, c.ID, "spent", 10)
	env.addCommittedClicks(t, spent.ID, 6)

	updated, err := env.svc.UpdateCampaign(ctx, c.ID, &model.UpdateCampaignRequest{Multiplier: ptr(0.5)})
	require.NoError(t, err)
	assert.Equal(t, 0.5, updated.Multiplier)

	got, err := env.store.GetURL(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(5), got.ClickLimit)
	assert.Equal(t, int64(10), got.OriginalClickLimit)
	assert.Equal(t, model.StatusActive, got.Status)

	got, err = env.store.GetURL(ctx, spent.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, got.Status)
}

func TestUpdateCampaignPath(t *testing.T) {
	env := setupService(t, Options{})
	ctx := context.Background()
	c := env.campaign(t, model.CreateCampaignRequest{CustomPath: "old-path"})
	env.url(t, c.ID, "promo", 10)

	_, err := env.svc.UpdateCampaign(ctx, c.ID, &model.UpdateCampaignRequest{CustomPath: ptr("new-path")})
	require.NoError(t, err)

	_, err = env.svc.ResolvePath(ctx, "old-path")
	assert.ErrorIs(t, err, repository.ErrCampaignNotFound)
	_, err = env.svc.ResolvePath(ctx, "new-path")
	assert.NoError(t, err)

	_, err = env.svc.UpdateCampaign(ctx, c.ID, &model.UpdateCampaignRequest{CustomPath: ptr("NOPE!")})
	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)

	updated, err := env.svc.UpdateCampaign(ctx, c.ID, &model.UpdateCampaignRequest{CustomPath: ptr("")})
	require.NoError(t, err)
	assert.Nil(t, updated.CustomPath)
}

func TestDeleteCampaignSoftDeletesURLs(t *testing.T) {
	env := setupService(t, Options{})
	ctx := context.Background()
	c := env.campaign(t, model.CreateCampaignRequest{})
	u := env.url(t, c.ID, "promo", 10)

	require.NoError(t, env.svc.DeleteCampaign(ctx, c.ID))
	env.svc.Tasks().Wait()

	got, err := env.store.GetURL(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusDeleted, got.Status)

	_, err = env.svc.GetCampaign(ctx, c.ID)
	assert.ErrorIs(t, err, repository.ErrCampaignNotFound)

	o, err := env.store.GetOriginalByName(ctx, "promo")
	require.NoError(t, err)
	assert.Equal(t, model.StatusDeleted, o.Status)

	assert.ErrorIs(t, env.svc.DeleteCampaign(ctx, c.ID), repository.ErrCampaignNotFound)
}

func TestCampaignStats(t *testing.T) {
	env := setupService(t, Options{BatchThreshold: 1000})
	ctx := context.Background()
	c := env.campaign(t, model.CreateCampaignRequest{PricePerThousand: ptr(4.0)})
	a := env.url(t, c.ID, "a", 1000)
	b := env.url(t, c.ID, "b", 1000)
	env.addCommittedClicks(t, a.ID, 400)
	for i := 0; i < 100; i++ {
		_, err := env.svc.IncrementClicks(ctx, b.ID)
		require.NoError(t, err)
	}

	stats, err := env.svc.CampaignStats(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(500), stats.TotalClicks)
	assert.Equal(t, int64(100), stats.PendingClicks)
	assert.Equal(t, 2, stats.ActiveURLs)
	assert.Equal(t, 2, stats.TotalURLs)
	assert.Equal(t, int64(1500), stats.RemainingClick)
	assert.InDelta(t, 2.0, stats.EstimatedCost, 1e-9)
}

func TestGetCampaignIncludesPendingClicks(t *testing.T) {
	env := setupService(t, Options{})
	ctx := context.Background()
	c := env.campaign(t, model.CreateCampaignRequest{})
	u := env.url(t, c.ID, "promo", 10)

	_, err := env.svc.IncrementClicks(ctx, u.ID)
	require.NoError(t, err)

	detail, err := env.svc.GetCampaign(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, detail.URLs, 1)
	assert.Equal(t, int64(1), detail.URLs[0].Clicks)
}
