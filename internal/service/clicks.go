package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"

	"github.com/google/uuid"
	"github.com/jack/golang-campaign-redirect-service/internal/model"
	"github.com/jack/golang-campaign-redirect-service/internal/repository"
)

// FlushResult summarises one flush cycle.
type FlushResult struct {
	URLs      int
	Clicks    int64
	Completed int
	Failed    int
}

// IncrementClicks records one click for a URL without touching the store. The
// returned snapshot already includes every pending click.
func (s *Service) IncrementClicks(ctx context.Context, urlID int64) (*model.URL, error) {
	u, err := s.loadCommittedURL(ctx, urlID)
	if err != nil {
		return nil, err
	}

	pending, err := s.pending.Add(ctx, urlID, 1)
	if err != nil {
		return nil, err
	}
	clicksRecorded.Inc()

	out := u.Clone()
	out.Clicks = u.Clicks + pending
	if out.IsExhausted() && completable(out.Status) {
		out.Status = model.StatusCompleted
		if out.Clicks-1 < out.ClickLimit {
			urlsCompleted.Inc()
			log.Printf("url reached click limit: urlID=%d clicks=%d limit=%d", out.ID, out.Clicks, out.ClickLimit)
		}
		name := out.Name
		s.tasks.Go("sync-completed-status", func(ctx context.Context) error {
			_, err := s.syncURLStatus(ctx, name, u.Status, model.StatusCompleted)
			return err
		})
	}

	if out.CampaignID != nil {
		s.cache.InvalidateDistribution(*out.CampaignID)
	}

	if pending >= s.batchThreshold {
		s.tasks.Go("flush-url", func(ctx context.Context) error {
			return s.FlushURL(ctx, urlID)
		})
	}

	return out, nil
}

// FlushURL writes the pending clicks of a single URL.
func (s *Service) FlushURL(ctx context.Context, urlID int64) error {
	s.flushMu.Lock()
	defer s.flushMu.Unlock()

	n, err := s.pending.Get(ctx, urlID)
	if err != nil {
		return err
	}
	if n <= 0 {
		return nil
	}

	_, _, err = s.flushOne(ctx, urlID)
	return err
}

// FlushPendingClickUpdates writes every pending counter to the store. A URL whose
// write fails keeps its pending clicks for the next cycle.
func (s *Service) FlushPendingClickUpdates(ctx context.Context) (FlushResult, error) {
	s.flushMu.Lock()
	defer s.flushMu.Unlock()

	var res FlushResult

	snapshot, err := s.pending.Snapshot(ctx)
	if err != nil {
		return res, err
	}

	ids := make([]int64, 0, len(snapshot))
	for id := range snapshot {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, id := range ids {
		n, completed, err := s.flushOne(ctx, id)
		if err != nil {
			res.Failed++
			log.Printf("flush clicks failed: urlID=%d pending=%d err=%v", id, snapshot[id], err)
			continue
		}
		if n == 0 {
			continue
		}
		res.URLs++
		res.Clicks += n
		if completed {
			res.Completed++
		}
	}

	return res, nil
}

// flushOne writes one in-flight batch and only then removes it from the accumulator.
// A batch whose commit failed is handed out again with the same token, and the store
// skips tokens it has already applied, so no click is counted twice. It returns the
// number of clicks written and whether the write completed and detached the URL.
func (s *Service) flushOne(ctx context.Context, urlID int64) (int64, bool, error) {
	batch, err := s.pending.Begin(ctx, urlID, uuid.NewString())
	if err != nil {
		flushFailures.Inc()
		return 0, false, err
	}
	if batch.Clicks <= 0 {
		return 0, false, nil
	}

	updated, prevCampaignID, err := s.store.AddClicks(ctx, urlID, batch.Clicks, batch.Token)
	if err != nil {
		if errors.Is(err, repository.ErrURLNotFound) {
			log.Printf("dropping pending clicks of removed url: urlID=%d pending=%d", urlID, batch.Clicks)
			return 0, false, s.pending.Discard(ctx, urlID)
		}
		flushFailures.Inc()
		return 0, false, fmt.Errorf("failed to add clicks: %w", err)
	}

	if err := s.pending.Commit(ctx, batch); err != nil {
		flushFailures.Inc()
		return 0, false, fmt.Errorf("failed to commit pending clicks: %w", err)
	}
	clicksFlushed.Add(float64(batch.Clicks))

	s.cache.SetURL(updated)

	detached := prevCampaignID != nil && updated.CampaignID == nil
	if prevCampaignID != nil {
		if detached {
			s.cache.InvalidateCampaign(*prevCampaignID)
		} else {
			s.cache.InvalidateDistribution(*prevCampaignID)
		}
	}

	if detached && updated.Status == model.StatusCompleted {
		log.Printf("url completed and detached: urlID=%d campaignID=%d clicks=%d", updated.ID, *prevCampaignID, updated.Clicks)
		name := updated.Name
		s.tasks.Go("sync-completed-status", func(ctx context.Context) error {
			_, err := s.syncURLStatus(ctx, name, model.StatusActive, model.StatusCompleted)
			return err
		})
	}

	return batch.Clicks, detached, nil
}
