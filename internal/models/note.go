package models

// Note is a free-text annotation for one affiliate and business week.
type Note struct {
	AffiliateID string    `json:"affiliateId"`
	WeekStart   string    `json:"weekStart"` // YYYY-MM-DD, a Monday
	Content     string    `json:"content"`
	Sync        SyncState `json:"sync,omitempty"`
}
