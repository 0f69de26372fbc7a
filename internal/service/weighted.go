package service

import (
	"context"
	"fmt"

	"github.com/jack/golang-campaign-redirect-service/internal/distribution"
	"github.com/jack/golang-campaign-redirect-service/internal/model"
)

// ComputeDistribution returns the weighted partition of a campaign's active URLs.
// A fresh cached partition is reused; otherwise it is rebuilt from the store with
// pending clicks applied and written back to the cache.
func (s *Service) ComputeDistribution(ctx context.Context, campaignID int64) (*distribution.Distribution, error) {
	if _, err := s.loadCampaign(ctx, campaignID); err != nil {
		return nil, err
	}

	if d, ok := s.cache.GetDistribution(campaignID); ok {
		return d, nil
	}

	urls, err := s.GetURLs(ctx, campaignID)
	if err != nil {
		return nil, fmt.Errorf("failed to load campaign urls: %w", err)
	}

	d := distribution.Compute(campaignID, urls)
	s.cache.SetDistribution(d)
	return d, nil
}

// PickWeighted draws one URL for the campaign. ErrCampaignExhausted is returned when
// nothing is active; callers must not retry.
func (s *Service) PickWeighted(ctx context.Context, campaignID int64) (*model.URL, error) {
	d, err := s.ComputeDistribution(ctx, campaignID)
	if err != nil {
		return nil, err
	}

	u := d.Pick(s.rand())
	if u == nil {
		return nil, ErrCampaignExhausted
	}
	return u, nil
}
