package model

import "time"

// OriginalURLRecord is the master record that URL records with the same name mirror.
type OriginalURLRecord struct {
	ID                 int64     `json:"id"`
	Name               string    `json:"name"`
	TargetURL          string    `json:"targetUrl"`
	OriginalClickLimit int64     `json:"originalClickLimit"`
	Status             URLStatus `json:"status"`
	CreatedAt          time.Time `json:"createdAt"`
	UpdatedAt          time.Time `json:"updatedAt"`
}

// BlacklistedURL is a target URL that may never be served as active.
type BlacklistedURL struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	TargetURL string    `json:"targetUrl"`
	CreatedAt time.Time `json:"createdAt"`
}

// ClickEvent represents one recorded redirect, kept after the URL is removed.
type ClickEvent struct {
	ID         string    `json:"id"`
	CampaignID int64     `json:"campaignId"`
	URLID      int64     `json:"urlId"`
	IPAddress  string    `json:"ipAddress"`
	UserAgent  string    `json:"userAgent"`
	Referer    string    `json:"referer"`
	CreatedAt  time.Time `json:"createdAt"`
}
