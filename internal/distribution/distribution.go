// Package distribution picks a redirect target among a campaign's active URLs,
// weighting each URL by its remaining click quota.
package distribution

import (
	"sort"

	"github.com/jack/golang-campaign-redirect-service/internal/model"
)

// WeightedRange is the half-open slice [Start, End) of the unit interval owned by a URL.
type WeightedRange struct {
	URL    *model.URL `json:"url"`
	Weight float64    `json:"weight"`
	Start  float64    `json:"startRange"`
	End    float64    `json:"endRange"`
}

// Distribution is the partition of [0,1) among a campaign's active URLs.
type Distribution struct {
	CampaignID int64           `json:"campaignId"`
	ActiveURLs []*model.URL    `json:"activeUrls"`
	Ranges     []WeightedRange `json:"weightedDistribution"`
}

// Compute filters urls to the active ones and assigns each a range proportional to
// clickLimit - clicks. URLs are ordered by id so the partition is stable.
func Compute(campaignID int64, urls []*model.URL) *Distribution {
	d := &Distribution{CampaignID: campaignID}

	for _, u := range urls {
		if u.IsActive() {
			d.ActiveURLs = append(d.ActiveURLs, u)
		}
	}
	if len(d.ActiveURLs) == 0 {
		return d
	}

	sort.SliceStable(d.ActiveURLs, func(i, j int) bool { return d.ActiveURLs[i].ID < d.ActiveURLs[j].ID })

	var total int64
	for _, u := range d.ActiveURLs {
		total += u.Remaining()
	}

	d.Ranges = make([]WeightedRange, 0, len(d.ActiveURLs))
	cumulative := 0.0
	for _, u := range d.ActiveURLs {
		weight := float64(u.Remaining()) / float64(total)
		d.Ranges = append(d.Ranges, WeightedRange{
			URL:    u,
			Weight: weight,
			Start:  cumulative,
			End:    cumulative + weight,
		})
		cumulative += weight
	}

	return d
}

// Empty reports whether no URL can be served.
func (d *Distribution) Empty() bool {
	return d == nil || len(d.ActiveURLs) == 0
}

// Pick returns the URL whose range contains r, r in [0,1). It returns nil when the
// distribution is empty. A single active URL is returned without looking at r.
// If rounding leaves r outside every range the first active URL is returned.
func (d *Distribution) Pick(r float64) *model.URL {
	if d.Empty() {
		return nil
	}
	if len(d.ActiveURLs) == 1 {
		return d.ActiveURLs[0]
	}

	for _, wr := range d.Ranges {
		if r >= wr.Start && r < wr.End {
			return wr.URL
		}
	}
	return d.ActiveURLs[0]
}

// Clone copies the distribution and its URL snapshots.
func (d *Distribution) Clone() *Distribution {
	if d == nil {
		return nil
	}
	out := &Distribution{CampaignID: d.CampaignID}
	clones := make(map[*model.URL]*model.URL, len(d.ActiveURLs))
	for _, u := range d.ActiveURLs {
		c := u.Clone()
		clones[u] = c
		out.ActiveURLs = append(out.ActiveURLs, c)
	}
	for _, wr := range d.Ranges {
		wr.URL = clones[wr.URL]
		out.Ranges = append(out.Ranges, wr)
	}
	return out
}
