package service

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/jack/golang-campaign-redirect-service/internal/model"
)

func (s *Service) CreateCampaign(ctx context.Context, req *model.CreateCampaignRequest) (*model.Campaign, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, validationError(err)
	}

	c := &model.Campaign{
		Name:                  strings.TrimSpace(req.Name),
		RedirectMethod:        model.RedirectDirect,
		Multiplier:            1,
		TrafficstarCampaignID: req.TrafficstarCampaignID,
	}
	if req.RedirectMethod != "" {
		c.RedirectMethod = req.RedirectMethod
	}
	if req.CustomPath != "" {
		path := req.CustomPath
		c.CustomPath = &path
	}
	if req.Multiplier != nil {
		c.Multiplier = *req.Multiplier
	}
	if req.PricePerThousand != nil {
		c.PricePerThousand = *req.PricePerThousand
	}

	if err := s.store.CreateCampaign(ctx, c); err != nil {
		return nil, err
	}

	log.Printf("campaign created: campaignID=%d name=%q method=%s", c.ID, c.Name, c.RedirectMethod)
	return c, nil
}

func (s *Service) ListCampaigns(ctx context.Context) ([]*model.Campaign, error) {
	return s.store.ListCampaigns(ctx)
}

// GetCampaign returns the campaign with its URLs, pending clicks included.
func (s *Service) GetCampaign(ctx context.Context, id int64) (*model.CampaignDetailResponse, error) {
	c, err := s.store.GetCampaign(ctx, id)
	if err != nil {
		return nil, err
	}

	urls, err := s.GetURLs(ctx, id)
	if err != nil {
		return nil, err
	}
	return &model.CampaignDetailResponse{Campaign: c, URLs: urls}, nil
}

// UpdateCampaign edits a campaign. A multiplier change rescales the click limit of
// every live URL in it from its original limit.
func (s *Service) UpdateCampaign(ctx context.Context, id int64, req *model.UpdateCampaignRequest) (*model.Campaign, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, validationError(err)
	}

	c, err := s.store.GetCampaign(ctx, id)
	if err != nil {
		return nil, err
	}
	prevMultiplier := c.Multiplier
	var prevPath string
	if c.CustomPath != nil {
		prevPath = *c.CustomPath
	}

	if req.Name != nil {
		c.Name = strings.TrimSpace(*req.Name)
	}
	if req.RedirectMethod != nil {
		c.RedirectMethod = *req.RedirectMethod
	}
	if req.CustomPath != nil {
		switch path := *req.CustomPath; {
		case path == "":
			c.CustomPath = nil
		case !model.ValidCustomPath(path):
			return nil, invalid("customPath", "must be 1-50 lowercase letters, digits or hyphens")
		default:
			c.CustomPath = &path
		}
	}
	if req.Multiplier != nil {
		c.Multiplier = *req.Multiplier
	}
	if req.PricePerThousand != nil {
		c.PricePerThousand = *req.PricePerThousand
	}
	if req.TrafficstarCampaignID != nil {
		c.TrafficstarCampaignID = req.TrafficstarCampaignID
	}

	if err := s.store.UpdateCampaign(ctx, c); err != nil {
		return nil, err
	}

	s.cache.InvalidateCampaign(id)
	if prevPath != "" {
		s.cache.InvalidatePath(prevPath)
	}

	if c.Multiplier != prevMultiplier {
		if err := s.rescaleCampaignURLs(ctx, c); err != nil {
			return c, err
		}
	}

	return c, nil
}

func (s *Service) rescaleCampaignURLs(ctx context.Context, c *model.Campaign) error {
	urls, err := s.store.ListURLsByCampaign(ctx, c.ID)
	if err != nil {
		return fmt.Errorf("failed to list campaign urls: %w", err)
	}

	updated := 0
	for _, u := range urls {
		if u.Status == model.StatusRejected || u.Status == model.StatusDeleted {
			continue
		}

		limit := model.ScaledClickLimit(u.OriginalClickLimit, c.Multiplier)
		if limit == u.ClickLimit {
			continue
		}

		status := u.Status
		scaled := u.Clone()
		scaled.ClickLimit = limit
		if completable(status) && s.withPending(ctx, scaled).IsExhausted() {
			status = model.StatusCompleted
		}

		if _, err := s.store.ApplyOriginalSync(ctx, u.ID, limit, u.OriginalClickLimit, status); err != nil {
			return fmt.Errorf("failed to rescale url %d: %w", u.ID, err)
		}
		s.cache.InvalidateURL(u.ID)
		s.syncURLStatusAsync(u.Name, u.Status, status)
		updated++
	}

	s.cache.InvalidateDistribution(c.ID)
	log.Printf("campaign multiplier applied: campaignID=%d multiplier=%g updated=%d", c.ID, c.Multiplier, updated)
	return nil
}

// DeleteCampaign soft-deletes the campaign's URLs and removes the campaign.
func (s *Service) DeleteCampaign(ctx context.Context, id int64) error {
	c, err := s.store.GetCampaign(ctx, id)
	if err != nil {
		return err
	}

	urls, err := s.store.ListURLsByCampaign(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to list campaign urls: %w", err)
	}

	if err := s.store.DeleteCampaign(ctx, id); err != nil {
		return err
	}

	s.cache.InvalidateCampaign(id)
	if c.CustomPath != nil {
		s.cache.InvalidatePath(*c.CustomPath)
	}
	for _, u := range urls {
		s.cache.InvalidateURL(u.ID)
		s.syncURLStatusAsync(u.Name, u.Status, model.StatusDeleted)
	}

	log.Printf("campaign deleted: campaignID=%d urls=%d", id, len(urls))
	return nil
}

// CampaignStats reports clicks, remaining quota and the billing estimate of the URLs
// currently attached to a campaign.
func (s *Service) CampaignStats(ctx context.Context, id int64) (*model.CampaignStatsResponse, error) {
	c, err := s.loadCampaign(ctx, id)
	if err != nil {
		return nil, err
	}

	committed, err := s.store.ListURLsByCampaign(ctx, id)
	if err != nil {
		return nil, err
	}

	stats := &model.CampaignStatsResponse{CampaignID: id, TotalURLs: len(committed)}
	for _, u := range committed {
		live := s.withPending(ctx, u)
		stats.PendingClicks += live.Clicks - u.Clicks
		stats.TotalClicks += live.Clicks
		if live.IsActive() {
			stats.ActiveURLs++
			stats.RemainingClick += live.Remaining()
		}
	}
	stats.EstimatedCost = float64(stats.TotalClicks) / 1000 * c.PricePerThousand

	return stats, nil
}
