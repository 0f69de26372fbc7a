package main

import (
	"context"
	"testing"

	"github.com/jack/golang-campaign-redirect-service/internal/cache"
	"github.com/jack/golang-campaign-redirect-service/internal/model"
	"github.com/jack/golang-campaign-redirect-service/internal/repository"
	"github.com/jack/golang-campaign-redirect-service/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDrainFinishesStatusSyncOfFinalFlush(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryRepository()
	pending := cache.NewMemoryPending()
	svc := service.New(store, cache.New(0, nil), pending, service.Options{BatchThreshold: 100})

	c, err := svc.CreateCampaign(ctx, &model.CreateCampaignRequest{Name: "spring"})
	require.NoError(t, err)
	u, err := svc.CreateURL(ctx, &model.CreateURLRequest{
		Name:       "promo",
		TargetURL:  "https://example.com/promo",
		ClickLimit: 2,
		CampaignID: &c.ID,
	})
	require.NoError(t, err)

	// buffered directly, so only the final flush sees the limit being reached
	_, err = pending.Add(ctx, u.ID, 2)
	require.NoError(t, err)

	stopped := false
	drain(ctx, func() { stopped = true }, svc)
	assert.True(t, stopped)

	stored, err := store.GetURL(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, stored.Status)

	o, err := store.GetOriginalByName(ctx, "promo")
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, o.Status)
}
