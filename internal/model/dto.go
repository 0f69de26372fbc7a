package model

// CreateCampaignRequest represents the request body for creating a campaign
type CreateCampaignRequest struct {
	Name                  string         `json:"name" binding:"required,max=255"`
	RedirectMethod        RedirectMethod `json:"redirectMethod" binding:"omitempty,redirectmethod"`
	CustomPath            string         `json:"customPath" binding:"omitempty,custompath"`
	Multiplier            *float64       `json:"multiplier" binding:"omitempty,gte=0"`
	PricePerThousand      *float64       `json:"pricePerThousand" binding:"omitempty,gte=0"`
	TrafficstarCampaignID *string        `json:"trafficstarCampaignId"`
}

// UpdateCampaignRequest carries the fields an operator may change; nil means unchanged.
// An empty CustomPath clears it.
type UpdateCampaignRequest struct {
	Name                  *string         `json:"name" binding:"omitempty,max=255"`
	RedirectMethod        *RedirectMethod `json:"redirectMethod" binding:"omitempty,redirectmethod"`
	CustomPath            *string         `json:"customPath"`
	Multiplier            *float64        `json:"multiplier" binding:"omitempty,gte=0"`
	PricePerThousand      *float64        `json:"pricePerThousand" binding:"omitempty,gte=0"`
	TrafficstarCampaignID *string         `json:"trafficstarCampaignId"`
}

// CreateURLRequest represents the request body for adding a URL to a campaign.
// ClickLimit is the un-multiplied quota.
type CreateURLRequest struct {
	Name       string     `json:"name" binding:"required,max=255"`
	TargetURL  string     `json:"targetUrl" binding:"required,url"`
	ClickLimit int64      `json:"clickLimit" binding:"required,gte=1"`
	Status     *URLStatus `json:"status" binding:"omitempty,oneof=active paused"`
	CampaignID *int64     `json:"-"`
}

// UpdateURLRequest carries the URL fields an operator may change.
type UpdateURLRequest struct {
	Name       *string    `json:"name" binding:"omitempty,max=255"`
	TargetURL  *string    `json:"targetUrl" binding:"omitempty,url"`
	ClickLimit *int64     `json:"clickLimit" binding:"omitempty,gte=1"`
	Status     *URLStatus `json:"status" binding:"omitempty,oneof=active paused completed rejected deleted"`
}

// BulkAction is one of the operations accepted by the bulk URL endpoint.
type BulkAction string

const (
	BulkActivate        BulkAction = "activate"
	BulkPause           BulkAction = "pause"
	BulkDelete          BulkAction = "delete"
	BulkPermanentDelete BulkAction = "permanent_delete"
)

// BulkURLRequest accepts ids under either "ids" or "urlIds".
type BulkURLRequest struct {
	IDs    []int64    `json:"ids"`
	URLIDs []int64    `json:"urlIds"`
	Action BulkAction `json:"action" binding:"required,oneof=activate pause delete permanent_delete"`
}

// TargetIDs merges both id lists, dropping duplicates while keeping order.
func (r *BulkURLRequest) TargetIDs() []int64 {
	seen := make(map[int64]struct{}, len(r.IDs)+len(r.URLIDs))
	out := make([]int64, 0, len(r.IDs)+len(r.URLIDs))
	for _, list := range [][]int64{r.IDs, r.URLIDs} {
		for _, id := range list {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	return out
}

// BulkURLResponse reports how many URLs a bulk action touched.
type BulkURLResponse struct {
	Action   BulkAction `json:"action"`
	Affected int        `json:"affected"`
	Skipped  []int64    `json:"skipped,omitempty"`
}

// UpdateOriginalRequest edits a master record. Writing OriginalClickLimit pauses the record.
type UpdateOriginalRequest struct {
	TargetURL          *string    `json:"targetUrl" binding:"omitempty,url"`
	OriginalClickLimit *int64     `json:"originalClickLimit" binding:"omitempty,gte=1"`
	Status             *URLStatus `json:"status" binding:"omitempty,oneof=active paused completed rejected deleted"`
}

// SyncResponse reports the outcome of a master-to-URL propagation. Error is set when
// the master was saved but the propagation stopped part way; POST .../sync resumes it.
type SyncResponse struct {
	OriginalID  int64  `json:"originalId"`
	UpdatedURLs int    `json:"updatedUrls"`
	Error       string `json:"error,omitempty"`
}

// CreateBlacklistRequest represents the request body for blacklisting a target URL
type CreateBlacklistRequest struct {
	Name      string `json:"name" binding:"required,max=255"`
	TargetURL string `json:"targetUrl" binding:"required"`
}

// CampaignDetailResponse is a campaign with its URLs.
type CampaignDetailResponse struct {
	*Campaign
	URLs []*URL `json:"urls"`
}

// CampaignStatsResponse summarises clicks and billing for a campaign
type CampaignStatsResponse struct {
	CampaignID     int64   `json:"campaignId"`
	TotalClicks    int64   `json:"totalClicks"`
	PendingClicks  int64   `json:"pendingClicks"`
	ActiveURLs     int     `json:"activeUrls"`
	TotalURLs      int     `json:"totalUrls"`
	RemainingClick int64   `json:"remainingClicks"`
	EstimatedCost  float64 `json:"estimatedCost"`
}
