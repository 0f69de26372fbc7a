package model

import (
	"math"
	"time"
)

// URLStatus is the lifecycle state of a URL record or its original record.
type URLStatus string

const (
	StatusActive    URLStatus = "active"
	StatusPaused    URLStatus = "paused"
	StatusCompleted URLStatus = "completed"
	StatusRejected  URLStatus = "rejected"
	StatusDeleted   URLStatus = "deleted"
)

// Valid reports whether s is one of the known statuses.
func (s URLStatus) Valid() bool {
	switch s {
	case StatusActive, StatusPaused, StatusCompleted, StatusRejected, StatusDeleted:
		return true
	}
	return false
}

// URL is one redirect target of a campaign with its own click quota.
type URL struct {
	ID                 int64     `json:"id"`
	CampaignID         *int64    `json:"campaignId"`
	Name               string    `json:"name"`
	TargetURL          string    `json:"targetUrl"`
	Clicks             int64     `json:"clicks"`
	ClickLimit         int64     `json:"clickLimit"`
	OriginalClickLimit int64     `json:"originalClickLimit"`
	Status             URLStatus `json:"status"`
	CreatedAt          time.Time `json:"createdAt"`
	UpdatedAt          time.Time `json:"updatedAt"`
}

// IsActive checks if the URL can still receive redirects
func (u *URL) IsActive() bool {
	return u.Status == StatusActive && u.Clicks < u.ClickLimit
}

// IsExhausted reports whether the click quota has been used up.
func (u *URL) IsExhausted() bool {
	return u.Clicks >= u.ClickLimit
}

// Remaining returns the unused part of the quota, never negative.
func (u *URL) Remaining() int64 {
	if u.Clicks >= u.ClickLimit {
		return 0
	}
	return u.ClickLimit - u.Clicks
}

// InCampaign reports whether the URL is attached to the given campaign.
func (u *URL) InCampaign(campaignID int64) bool {
	return u.CampaignID != nil && *u.CampaignID == campaignID
}

// Clone returns a deep copy so cached snapshots are never shared with callers.
func (u *URL) Clone() *URL {
	if u == nil {
		return nil
	}
	c := *u
	if u.CampaignID != nil {
		id := *u.CampaignID
		c.CampaignID = &id
	}
	return &c
}

// ScaledClickLimit applies a campaign multiplier to an un-multiplied quota.
// The result is rounded half away from zero and never drops below 1.
func ScaledClickLimit(originalClickLimit int64, multiplier float64) int64 {
	limit := int64(math.Round(float64(originalClickLimit) * multiplier))
	if limit < 1 {
		return 1
	}
	return limit
}
