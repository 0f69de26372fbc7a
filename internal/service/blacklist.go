package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/jack/golang-campaign-redirect-service/internal/model"
	"github.com/jack/golang-campaign-redirect-service/internal/repository"
)

// BlacklistedNamePrefix marks URLs that were rejected because of their target.
const BlacklistedNamePrefix = "[BLACKLISTED] "

// BlacklistGuard keeps URLs with a blacklisted target out of the active state.
type BlacklistGuard struct {
	store repository.BlacklistStore
}

func NewBlacklistGuard(store repository.BlacklistStore) *BlacklistGuard {
	return &BlacklistGuard{store: store}
}

// Matches reports whether target equals a blacklist entry after trimming whitespace.
func (g *BlacklistGuard) Matches(ctx context.Context, target string) (bool, error) {
	ok, err := g.store.IsBlacklisted(ctx, strings.TrimSpace(target))
	if err != nil {
		return false, fmt.Errorf("failed to check blacklist: %w", err)
	}
	return ok, nil
}

// GuardCreate rejects u and marks its name when its target is blacklisted.
func (g *BlacklistGuard) GuardCreate(ctx context.Context, u *model.URL) (bool, error) {
	blacklisted, err := g.Matches(ctx, u.TargetURL)
	if err != nil || !blacklisted {
		return false, err
	}

	u.Status = model.StatusRejected
	if !strings.HasPrefix(u.Name, BlacklistedNamePrefix) {
		u.Name = BlacklistedNamePrefix + u.Name
	}
	return true, nil
}

// EnforceStatus downgrades a requested active status to rejected for a blacklisted target.
func (g *BlacklistGuard) EnforceStatus(ctx context.Context, target string, requested model.URLStatus) (model.URLStatus, error) {
	if requested != model.StatusActive {
		return requested, nil
	}

	blacklisted, err := g.Matches(ctx, target)
	if err != nil {
		return requested, err
	}
	if blacklisted {
		return model.StatusRejected, nil
	}
	return requested, nil
}

// FilterActivatable returns the URLs whose target is not blacklisted.
func (g *BlacklistGuard) FilterActivatable(ctx context.Context, urls []*model.URL) ([]*model.URL, []*model.URL, error) {
	var keep, dropped []*model.URL
	for _, u := range urls {
		blacklisted, err := g.Matches(ctx, u.TargetURL)
		if err != nil {
			return nil, nil, err
		}
		if blacklisted {
			dropped = append(dropped, u)
			continue
		}
		keep = append(keep, u)
	}
	return keep, dropped, nil
}

func (s *Service) ListBlacklist(ctx context.Context) ([]*model.BlacklistedURL, error) {
	return s.store.ListBlacklist(ctx)
}

func (s *Service) CreateBlacklist(ctx context.Context, req *model.CreateBlacklistRequest) (*model.BlacklistedURL, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, validationError(err)
	}

	target := strings.TrimSpace(req.TargetURL)
	if target == "" {
		return nil, invalid("targetUrl", "must not be blank")
	}

	b := &model.BlacklistedURL{
		Name:      strings.TrimSpace(req.Name),
		TargetURL: target,
	}
	if err := s.store.CreateBlacklist(ctx, b); err != nil {
		return nil, err
	}
	return b, nil
}

func (s *Service) DeleteBlacklist(ctx context.Context, id int64) error {
	return s.store.DeleteBlacklist(ctx, id)
}
