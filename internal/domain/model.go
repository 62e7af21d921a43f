package domain

import "time"

// RawReview is a review card as extracted from a storefront page.
// Fields the storefront did not render are left at their zero value.
type RawReview struct {
	Ref          string    `json:"ref"`
	StoreCode    string    `json:"store_code"`
	Author       string    `json:"author"`
	Rating       int       `json:"rating"` // 0 when unknown
	Text         string    `json:"text"`
	OrderID      string    `json:"order_id,omitempty"`
	OrderMenu    string    `json:"order_menu,omitempty"`
	DeliveryNote string    `json:"delivery_note,omitempty"`
	Date         time.Time `json:"date,omitempty"`
	// Partial is set when the listing did not carry every field and the
	// card must be completed through ExtractFields.
	Partial bool `json:"partial,omitempty"`
}

// HasText reports whether the review carries any written text.
func (r RawReview) HasText() bool {
	for _, c := range r.Text {
		if c != ' ' && c != '\n' && c != '\t' && c != '\r' {
			return true
		}
	}
	return false
}

// ReviewRecord is the durable per-review state, keyed by identity.
type ReviewRecord struct {
	Identity     string
	StoreCode    string
	PlatformCode string
	StoreName    string
	Author       string
	Rating       int
	ReviewText   string
	OrderMenu    string
	DeliveryNote string
	// ReviewDate is the first-observed date and never changes afterwards.
	ReviewDate time.Time
	Status     Status
	AIReply    string
	RetryCount int
	Category   string
	Reason     string
	UpdatedAt  time.Time
	AnsweredAt *time.Time
}

// Clone returns a copy that can be mutated without touching the original.
func (r *ReviewRecord) Clone() *ReviewRecord {
	if r == nil {
		return nil
	}
	c := *r
	if r.AnsweredAt != nil {
		t := *r.AnsweredAt
		c.AnsweredAt = &t
	}
	return &c
}
