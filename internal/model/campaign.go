package model

import (
	"regexp"
	"time"
)

// RedirectMethod selects how the redirect response is emitted.
type RedirectMethod string

const (
	RedirectDirect            RedirectMethod = "direct"
	RedirectMetaRefresh       RedirectMethod = "meta_refresh"
	RedirectDoubleMetaRefresh RedirectMethod = "double_meta_refresh"
	RedirectHTTP307           RedirectMethod = "http_307"
	RedirectHTTP2Temporary307 RedirectMethod = "http2_307_temporary"
	RedirectHTTP2Forced307    RedirectMethod = "http2_forced_307"
)

// Valid reports whether m is a supported redirect method.
func (m RedirectMethod) Valid() bool {
	switch m {
	case RedirectDirect, RedirectMetaRefresh, RedirectDoubleMetaRefresh,
		RedirectHTTP307, RedirectHTTP2Temporary307, RedirectHTTP2Forced307:
		return true
	}
	return false
}

const MaxCustomPathLength = 50

var customPathPattern = regexp.MustCompile(`^[a-z0-9-]+$`)

// ValidCustomPath checks the public path format: lowercase letters, digits and hyphens.
func ValidCustomPath(path string) bool {
	return len(path) > 0 && len(path) <= MaxCustomPathLength && customPathPattern.MatchString(path)
}

// Campaign groups redirect targets behind one public path.
type Campaign struct {
	ID                    int64          `json:"id"`
	Name                  string         `json:"name"`
	RedirectMethod        RedirectMethod `json:"redirectMethod"`
	CustomPath            *string        `json:"customPath"`
	Multiplier            float64        `json:"multiplier"`
	PricePerThousand      float64        `json:"pricePerThousand"`
	TrafficstarCampaignID *string        `json:"trafficstarCampaignId"`
	CreatedAt             time.Time      `json:"createdAt"`
	UpdatedAt             time.Time      `json:"updatedAt"`
}

// Clone returns a deep copy of the campaign.
func (c *Campaign) Clone() *Campaign {
	if c == nil {
		return nil
	}
	cp := *c
	if c.CustomPath != nil {
		p := *c.CustomPath
		cp.CustomPath = &p
	}
	if c.TrafficstarCampaignID != nil {
		t := *c.TrafficstarCampaignID
		cp.TrafficstarCampaignID = &t
	}
	return &cp
}

// MultiplierFor returns the multiplier to apply to URLs of c; URLs without a campaign use 1.
func MultiplierFor(c *Campaign) float64 {
	if c == nil {
		return 1
	}
	return c.Multiplier
}
