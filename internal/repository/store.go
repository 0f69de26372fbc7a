package repository

import (
	"context"
	"errors"

	"github.com/jack/golang-campaign-redirect-service/internal/model"
)

var (
	ErrCampaignNotFound  = errors.New("campaign not found")
	ErrURLNotFound       = errors.New("url not found")
	ErrOriginalNotFound  = errors.New("original url record not found")
	ErrBlacklistNotFound = errors.New("blacklist entry not found")
	ErrCustomPathTaken   = errors.New("custom path already in use")
)

// NameUsage describes how a URL name is already used.
// Total counts URLs named exactly Name or "Name #N"; NonRejected counts exact-name URLs
// whose status is not rejected.
type NameUsage struct {
	Total       int
	NonRejected int
}

type CampaignStore interface {
	CreateCampaign(ctx context.Context, c *model.Campaign) error
	GetCampaign(ctx context.Context, id int64) (*model.Campaign, error)
	GetCampaignByPath(ctx context.Context, path string) (*model.Campaign, error)
	ListCampaigns(ctx context.Context) ([]*model.Campaign, error)
	UpdateCampaign(ctx context.Context, c *model.Campaign) error
	// DeleteCampaign soft-deletes the campaign's URLs and removes the campaign row.
	DeleteCampaign(ctx context.Context, id int64) error
}

type URLStore interface {
	CreateURL(ctx context.Context, u *model.URL) error
	GetURL(ctx context.Context, id int64) (*model.URL, error)
	ListURLsByCampaign(ctx context.Context, campaignID int64) ([]*model.URL, error)
	ListURLsByName(ctx context.Context, name string) ([]*model.URL, error)
	URLNameUsage(ctx context.Context, name string) (NameUsage, error)

	// UpdateURL writes operator-editable columns only. Clicks and OriginalClickLimit are
	// protected and left untouched; see AddClicks and ApplyOriginalSync.
	UpdateURL(ctx context.Context, u *model.URL) error
	SetURLStatus(ctx context.Context, ids []int64, status model.URLStatus) (int, error)
	DeleteURLPermanently(ctx context.Context, id int64) error

	// AddClicks atomically adds n to the committed counter. When the quota is reached the
	// same write marks the URL completed and detaches it from its campaign. The campaign
	// the URL belonged to before the write is returned alongside the updated row.
	//
	// A non-empty flushToken is recorded with the write. Calling again with a token that
	// was already applied changes nothing and returns the current row with the campaign
	// recorded the first time.
	AddClicks(ctx context.Context, id int64, n int64, flushToken string) (*model.URL, *int64, error)

	// ApplyOriginalSync is the privileged write used by master-record propagation. It may
	// change the protected OriginalClickLimit.
	ApplyOriginalSync(ctx context.Context, id int64, clickLimit, originalClickLimit int64, status model.URLStatus) (*model.URL, error)
}

type OriginalStore interface {
	CreateOriginal(ctx context.Context, o *model.OriginalURLRecord) error
	GetOriginal(ctx context.Context, id int64) (*model.OriginalURLRecord, error)
	GetOriginalByName(ctx context.Context, name string) (*model.OriginalURLRecord, error)
	ListOriginals(ctx context.Context) ([]*model.OriginalURLRecord, error)
	UpdateOriginal(ctx context.Context, o *model.OriginalURLRecord) error
}

type BlacklistStore interface {
	ListBlacklist(ctx context.Context) ([]*model.BlacklistedURL, error)
	CreateBlacklist(ctx context.Context, b *model.BlacklistedURL) error
	DeleteBlacklist(ctx context.Context, id int64) error
	// IsBlacklisted matches exactly after trimming surrounding whitespace.
	IsBlacklisted(ctx context.Context, targetURL string) (bool, error)
}

type ClickLogStore interface {
	LogClick(ctx context.Context, e *model.ClickEvent) error
}

// Store is the persistent state of the service.
type Store interface {
	CampaignStore
	URLStore
	OriginalStore
	BlacklistStore
	ClickLogStore
	Health(ctx context.Context) error
}
