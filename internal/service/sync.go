package service

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/jack/golang-campaign-redirect-service/internal/model"
	"github.com/jack/golang-campaign-redirect-service/internal/repository"
)

// SyncResult is the outcome of SyncURLStatusToOriginal.
type SyncResult int

const (
	SyncNotFound SyncResult = iota
	SyncUnchanged
	SyncUpdated
)

func (r SyncResult) String() string {
	switch r {
	case SyncNotFound:
		return "not_found"
	case SyncUnchanged:
		return "unchanged"
	case SyncUpdated:
		return "updated"
	}
	return "unknown"
}

// SyncURLStatusToOriginal copies a URL status onto the original record with the same
// name. A missing original is reported as SyncNotFound, not as an error.
func (s *Service) SyncURLStatusToOriginal(ctx context.Context, name string, status model.URLStatus) (SyncResult, error) {
	o, err := s.store.GetOriginalByName(ctx, name)
	if err != nil {
		if errors.Is(err, repository.ErrOriginalNotFound) {
			return SyncNotFound, nil
		}
		return SyncNotFound, fmt.Errorf("failed to load original record: %w", err)
	}

	if o.Status == status {
		return SyncUnchanged, nil
	}

	o.Status = status
	if err := s.store.UpdateOriginal(ctx, o); err != nil {
		return SyncNotFound, fmt.Errorf("failed to update original record: %w", err)
	}
	statusSyncs.WithLabelValues("url_to_original").Inc()
	return SyncUpdated, nil
}

// syncURLStatus forwards a URL status change to its original record. Rejected URLs
// carry a name they do not own (duplicates keep the original name), so a transition
// into or out of rejected never reaches the master.
func (s *Service) syncURLStatus(ctx context.Context, name string, from, to model.URLStatus) (SyncResult, error) {
	if from == to || from == model.StatusRejected || to == model.StatusRejected {
		return SyncUnchanged, nil
	}
	return s.SyncURLStatusToOriginal(ctx, name, to)
}

// syncURLStatusAsync submits syncURLStatus to the background runner.
func (s *Service) syncURLStatusAsync(name string, from, to model.URLStatus) {
	if from == to {
		return
	}
	s.tasks.Go("sync-url-status", func(ctx context.Context) error {
		_, err := s.syncURLStatus(ctx, name, from, to)
		return err
	})
}

// SyncOriginalToURLs pushes the original record's limit and status to every URL with
// the same name, rejected duplicates and deleted URLs included. URLs whose state
// already matches are skipped, so a second call without changes writes nothing.
func (s *Service) SyncOriginalToURLs(ctx context.Context, originalID int64) (*model.SyncResponse, error) {
	o, err := s.store.GetOriginal(ctx, originalID)
	if err != nil {
		return nil, err
	}

	urls, err := s.store.ListURLsByName(ctx, o.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to list urls by name: %w", err)
	}

	resp := &model.SyncResponse{OriginalID: o.ID}
	touched := make(map[int64]struct{})

	for _, u := range urls {
		limit := model.ScaledClickLimit(o.OriginalClickLimit, s.multiplierFor(ctx, u.CampaignID))
		status, err := s.propagatedStatus(ctx, u, o.Status, limit)
		if err != nil {
			return resp, err
		}

		if u.ClickLimit == limit && u.OriginalClickLimit == o.OriginalClickLimit && u.Status == status {
			continue
		}

		if _, err := s.store.ApplyOriginalSync(ctx, u.ID, limit, o.OriginalClickLimit, status); err != nil {
			return resp, fmt.Errorf("failed to apply original sync to url %d: %w", u.ID, err)
		}
		statusSyncs.WithLabelValues("original_to_url").Inc()
		resp.UpdatedURLs++

		s.cache.InvalidateURL(u.ID)
		if u.CampaignID != nil {
			touched[*u.CampaignID] = struct{}{}
		}
	}

	for campaignID := range touched {
		s.cache.InvalidateCampaign(campaignID)
		if _, err := s.ComputeDistribution(ctx, campaignID); err != nil && !IsNotFound(err) {
			log.Printf("reload campaign after sync failed: campaignID=%d err=%v", campaignID, err)
		}
	}

	log.Printf("original record synced: originalID=%d name=%q updated=%d", o.ID, o.Name, resp.UpdatedURLs)
	return resp, nil
}

// propagatedStatus is the master status as it may be stored on u: an exhausted URL
// stays completed and a blacklisted target is never made active.
func (s *Service) propagatedStatus(ctx context.Context, u *model.URL, status model.URLStatus, limit int64) (model.URLStatus, error) {
	if !completable(status) {
		return status, nil
	}

	pending, err := s.pending.Get(ctx, u.ID)
	if err != nil {
		log.Printf("read pending clicks failed: urlID=%d err=%v", u.ID, err)
	}
	if u.Clicks+pending >= limit {
		return model.StatusCompleted, nil
	}

	if status == model.StatusActive {
		blacklisted, err := s.guard.Matches(ctx, u.TargetURL)
		if err != nil {
			return status, err
		}
		if blacklisted {
			return model.StatusRejected, nil
		}
	}
	return status, nil
}

func (s *Service) ListOriginals(ctx context.Context) ([]*model.OriginalURLRecord, error) {
	return s.store.ListOriginals(ctx)
}

func (s *Service) GetOriginal(ctx context.Context, id int64) (*model.OriginalURLRecord, error) {
	return s.store.GetOriginal(ctx, id)
}

// UpdateOriginal edits a master record and propagates it. Writing OriginalClickLimit,
// even with the current value, pauses the record before the fan-out. Propagation is
// best-effort: once the record is saved, a fan-out failure is reported in the
// returned SyncResponse rather than as an error.
func (s *Service) UpdateOriginal(ctx context.Context, id int64, req *model.UpdateOriginalRequest) (*model.OriginalURLRecord, *model.SyncResponse, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, nil, validationError(err)
	}

	o, err := s.store.GetOriginal(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	if req.TargetURL != nil {
		o.TargetURL = *req.TargetURL
	}
	if req.Status != nil {
		o.Status = *req.Status
	}
	if req.OriginalClickLimit != nil {
		o.OriginalClickLimit = *req.OriginalClickLimit
		o.Status = model.StatusPaused
	}

	if err := s.store.UpdateOriginal(ctx, o); err != nil {
		return nil, nil, err
	}

	// 主檔已寫入，fan-out 失敗不回 500；呼叫端可再打 POST .../sync 補做。
	resp, err := s.SyncOriginalToURLs(ctx, o.ID)
	if err != nil {
		log.Printf("propagate original record failed: originalID=%d err=%v", o.ID, err)
		if resp == nil {
			resp = &model.SyncResponse{OriginalID: o.ID}
		}
		resp.Error = err.Error()
	}
	return o, resp, nil
}
