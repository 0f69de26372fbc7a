package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/jack/golang-campaign-redirect-service/internal/model"
	"github.com/jack/golang-campaign-redirect-service/internal/repository"
)

// createStep inspects or rewrites a URL before it is inserted. Returning true stops
// the remaining steps; the record is still persisted.
type createStep func(ctx context.Context, u *model.URL) (bool, error)

func (s *Service) createPipeline() []createStep {
	return []createStep{
		s.validateNewURL,
		s.applyDuplicateRule,
		s.applyBlacklistRule,
	}
}

func (s *Service) validateNewURL(_ context.Context, u *model.URL) (bool, error) {
	if u.Name == "" {
		return false, invalid("name", "must not be blank")
	}
	if err := s.validate.Var(u.TargetURL, "required,url"); err != nil {
		return false, invalid("targetUrl", "must be an absolute url")
	}
	if u.OriginalClickLimit < 1 {
		return false, invalid("clickLimit", "must be at least 1")
	}
	if u.Status != model.StatusActive && u.Status != model.StatusPaused {
		return false, invalid("status", "must be active or paused")
	}
	return false, nil
}

// applyDuplicateRule rejects a URL whose name is already held by a non-rejected URL.
// From the third use of a name on, a " #N" suffix is added.
func (s *Service) applyDuplicateRule(ctx context.Context, u *model.URL) (bool, error) {
	usage, err := s.store.URLNameUsage(ctx, u.Name)
	if err != nil {
		return false, fmt.Errorf("failed to check url name: %w", err)
	}
	if usage.NonRejected == 0 {
		return false, nil
	}

	u.Status = model.StatusRejected
	if usage.Total >= 2 {
		u.Name = fmt.Sprintf("%s #%d", u.Name, usage.Total)
	}
	return false, nil
}

func (s *Service) applyBlacklistRule(ctx context.Context, u *model.URL) (bool, error) {
	return s.guard.GuardCreate(ctx, u)
}

// CreateURL runs a new URL through validation, the duplicate-name rule and the
// blacklist, then inserts it. Duplicates and blacklisted targets are stored as
// rejected rather than reported as errors.
func (s *Service) CreateURL(ctx context.Context, req *model.CreateURLRequest) (*model.URL, error) {
	var campaign *model.Campaign
	if req.CampaignID != nil {
		c, err := s.loadCampaign(ctx, *req.CampaignID)
		if err != nil {
			return nil, err
		}
		campaign = c
	}

	status := model.StatusActive
	if req.Status != nil {
		status = *req.Status
	}

	u := &model.URL{
		Name:               strings.TrimSpace(req.Name),
		TargetURL:          strings.TrimSpace(req.TargetURL),
		OriginalClickLimit: req.ClickLimit,
		ClickLimit:         model.ScaledClickLimit(req.ClickLimit, model.MultiplierFor(campaign)),
		Status:             status,
	}
	if campaign != nil {
		id := campaign.ID
		u.CampaignID = &id
	}

	// 同名檢查與寫入之間不能插入另一筆同名建立
	s.createMu.Lock()
	defer s.createMu.Unlock()

	for _, step := range s.createPipeline() {
		stop, err := step(ctx, u)
		if err != nil {
			return nil, err
		}
		if stop {
			break
		}
	}

	// Checked again right before the insert; earlier steps may have rewritten the record.
	if _, err := s.guard.GuardCreate(ctx, u); err != nil {
		return nil, err
	}

	if err := s.store.CreateURL(ctx, u); err != nil {
		return nil, fmt.Errorf("failed to create url: %w", err)
	}

	if u.CampaignID != nil {
		s.cache.InvalidateDistribution(*u.CampaignID)
	}
	if u.Status != model.StatusRejected {
		s.ensureOriginal(ctx, u)
	}

	log.Printf("url created: urlID=%d name=%q status=%s clickLimit=%d", u.ID, u.Name, u.Status, u.ClickLimit)
	return u, nil
}

// ensureOriginal creates the master record the first time a name is used.
func (s *Service) ensureOriginal(ctx context.Context, u *model.URL) {
	_, err := s.store.GetOriginalByName(ctx, u.Name)
	if err == nil {
		return
	}
	if !errors.Is(err, repository.ErrOriginalNotFound) {
		log.Printf("load original record failed: name=%q err=%v", u.Name, err)
		return
	}

	o := &model.OriginalURLRecord{
		Name:               u.Name,
		TargetURL:          u.TargetURL,
		OriginalClickLimit: u.OriginalClickLimit,
		Status:             u.Status,
	}
	if err := s.store.CreateOriginal(ctx, o); err != nil {
		log.Printf("create original record failed: name=%q err=%v", u.Name, err)
	}
}

// UpdateURL applies an operator edit. ClickLimit is written as the effective limit.
func (s *Service) UpdateURL(ctx context.Context, id int64, req *model.UpdateURLRequest) (*model.URL, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, validationError(err)
	}

	u, err := s.store.GetURL(ctx, id)
	if err != nil {
		return nil, err
	}
	prevStatus := u.Status

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, invalid("name", "must not be blank")
		}
		u.Name = name
	}
	if req.TargetURL != nil {
		u.TargetURL = strings.TrimSpace(*req.TargetURL)
	}
	if req.ClickLimit != nil {
		u.ClickLimit = *req.ClickLimit
	}
	if req.Status != nil {
		u.Status = *req.Status
	}

	if u.Status, err = s.guard.EnforceStatus(ctx, u.TargetURL, u.Status); err != nil {
		return nil, err
	}
	if completable(u.Status) && s.withPending(ctx, u).IsExhausted() {
		u.Status = model.StatusCompleted
	}

	if err := s.store.UpdateURL(ctx, u); err != nil {
		return nil, err
	}

	s.invalidateURL(u)
	s.syncURLStatusAsync(u.Name, prevStatus, u.Status)
	return s.withPending(ctx, u), nil
}

// DeleteURL soft-deletes a URL.
func (s *Service) DeleteURL(ctx context.Context, id int64) error {
	u, err := s.store.GetURL(ctx, id)
	if err != nil {
		return err
	}

	if _, err := s.store.SetURLStatus(ctx, []int64{id}, model.StatusDeleted); err != nil {
		return err
	}

	s.invalidateURL(u)
	s.syncURLStatusAsync(u.Name, u.Status, model.StatusDeleted)
	return nil
}

// PermanentDeleteURL removes the row. Recorded click events are kept and unflushed
// clicks are dropped.
func (s *Service) PermanentDeleteURL(ctx context.Context, id int64) error {
	u, err := s.store.GetURL(ctx, id)
	if err != nil {
		return err
	}

	if err := s.store.DeleteURLPermanently(ctx, id); err != nil {
		return err
	}
	if err := s.pending.Discard(ctx, id); err != nil {
		log.Printf("discard pending clicks failed: urlID=%d err=%v", id, err)
	}

	s.invalidateURL(u)
	s.syncURLStatusAsync(u.Name, u.Status, model.StatusDeleted)
	return nil
}

// BulkURLs applies one action to many URLs. Unknown ids are skipped. Activation drops
// blacklisted and exhausted URLs; when nothing is left it does nothing.
func (s *Service) BulkURLs(ctx context.Context, req *model.BulkURLRequest) (*model.BulkURLResponse, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, validationError(err)
	}

	ids := req.TargetIDs()
	if len(ids) == 0 {
		return nil, invalid("ids", "at least one url id is required")
	}

	resp := &model.BulkURLResponse{Action: req.Action}

	urls := make([]*model.URL, 0, len(ids))
	for _, id := range ids {
		u, err := s.store.GetURL(ctx, id)
		if err != nil {
			if errors.Is(err, repository.ErrURLNotFound) {
				resp.Skipped = append(resp.Skipped, id)
				continue
			}
			return nil, err
		}
		urls = append(urls, u)
	}

	if req.Action == model.BulkPermanentDelete {
		for _, u := range urls {
			if err := s.PermanentDeleteURL(ctx, u.ID); err != nil {
				if errors.Is(err, repository.ErrURLNotFound) {
					resp.Skipped = append(resp.Skipped, u.ID)
					continue
				}
				return resp, err
			}
			resp.Affected++
		}
		return resp, nil
	}

	var status model.URLStatus
	switch req.Action {
	case model.BulkActivate:
		status = model.StatusActive
		keep, dropped, err := s.guard.FilterActivatable(ctx, urls)
		if err != nil {
			return nil, err
		}
		for _, u := range dropped {
			resp.Skipped = append(resp.Skipped, u.ID)
		}
		urls = urls[:0]
		for _, u := range keep {
			if s.withPending(ctx, u).IsExhausted() {
				resp.Skipped = append(resp.Skipped, u.ID)
				continue
			}
			urls = append(urls, u)
		}
	case model.BulkPause:
		status = model.StatusPaused
	case model.BulkDelete:
		status = model.StatusDeleted
	}

	if len(urls) == 0 {
		return resp, nil
	}

	targets := make([]int64, 0, len(urls))
	for _, u := range urls {
		targets = append(targets, u.ID)
	}

	n, err := s.store.SetURLStatus(ctx, targets, status)
	if err != nil {
		return nil, err
	}
	resp.Affected = n

	for _, u := range urls {
		s.invalidateURL(u)
		s.syncURLStatusAsync(u.Name, u.Status, status)
	}

	log.Printf("bulk url action applied: action=%s affected=%d skipped=%d", req.Action, resp.Affected, len(resp.Skipped))
	return resp, nil
}

func (s *Service) invalidateURL(u *model.URL) {
	s.cache.InvalidateURL(u.ID)
	if u.CampaignID != nil {
		s.cache.InvalidateDistribution(*u.CampaignID)
	}
}
