package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/jack/golang-campaign-redirect-service/internal/model"
	"github.com/jack/golang-campaign-redirect-service/internal/repository"
)

// Target is the campaign and URL chosen for one redirect.
type Target struct {
	Campaign *model.Campaign
	URL      *model.URL
}

// Visit describes the request being redirected, for click analytics.
type Visit struct {
	IPAddress string
	UserAgent string
	Referer   string
}

// ResolvePath selects a URL for the campaign published under path.
func (s *Service) ResolvePath(ctx context.Context, path string) (*Target, error) {
	c, err := s.loadCampaignByPath(ctx, path)
	if err != nil {
		return nil, err
	}

	u, err := s.PickWeighted(ctx, c.ID)
	if err != nil {
		return nil, err
	}
	return &Target{Campaign: c, URL: u}, nil
}

// ResolveIDs serves a specific URL of a campaign while it is active there and falls
// back to a weighted pick otherwise.
func (s *Service) ResolveIDs(ctx context.Context, campaignID, urlID int64) (*Target, error) {
	c, err := s.loadCampaign(ctx, campaignID)
	if err != nil {
		return nil, err
	}

	u, err := s.loadCommittedURL(ctx, urlID)
	switch {
	case err == nil:
		if live := s.withPending(ctx, u); live.InCampaign(campaignID) && live.IsActive() {
			return &Target{Campaign: c, URL: live}, nil
		}
	case !errors.Is(err, repository.ErrURLNotFound):
		return nil, err
	}

	u, err = s.PickWeighted(ctx, c.ID)
	if err != nil {
		return nil, err
	}
	return &Target{Campaign: c, URL: u}, nil
}

// RecordClick counts the click and stores a click event in the background. It returns
// immediately; failures are logged only.
func (s *Service) RecordClick(t *Target, v Visit) {
	campaignID := t.Campaign.ID
	urlID := t.URL.ID

	s.tasks.Go("record-click", func(ctx context.Context) error {
		if _, err := s.IncrementClicks(ctx, urlID); err != nil {
			return fmt.Errorf("failed to increment clicks: %w", err)
		}

		e := &model.ClickEvent{
			ID:         uuid.NewString(),
			CampaignID: campaignID,
			URLID:      urlID,
			IPAddress:  v.IPAddress,
			UserAgent:  v.UserAgent,
			Referer:    v.Referer,
			CreatedAt:  time.Now(),
		}
		if err := s.store.LogClick(ctx, e); err != nil {
			log.Printf("log click event failed: urlID=%d err=%v", urlID, err)
		}
		return nil
	})
}
