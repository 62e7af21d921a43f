package domain

import "strings"

// Store types
const (
	StoreTypeDeliveryOnly    = "delivery_only"
	StoreTypeHallAndDelivery = "hall_and_delivery"
)

// DefaultMaxLength is the reply length limit in runes when a store sets none.
const DefaultMaxLength = 300

// DefaultRetryCeiling bounds automatic attempts per review.
const DefaultRetryCeiling = 10

// DefaultHonorific replaces a customer name the platform refuses to show.
const DefaultHonorific = "고객"

// StorePolicy is the per-store reply configuration.
type StorePolicy struct {
	OpeningPhrase  string       `yaml:"opening_phrase"`
	ClosingPhrase  string       `yaml:"closing_phrase"`
	Tone           string       `yaml:"tone"`
	StoreType      string       `yaml:"store_type"`
	MaxLength      int          `yaml:"max_length"`
	ForbiddenWords []string     `yaml:"forbidden_words"`
	RatingReplies  map[int]bool `yaml:"rating_replies"` // missing stars default to enabled
	RetryCeiling   int          `yaml:"retry_ceiling"`
	Honorific      string       `yaml:"honorific"`
}

// KnownRating reports whether rating is a star count. Zero means the listing
// carried no usable rating.
func KnownRating(rating int) bool {
	return rating >= 1 && rating <= 5
}

// RepliesToRating reports whether auto-reply is enabled for the star rating.
// Ratings outside 1..5 are never auto-replied.
func (p StorePolicy) RepliesToRating(rating int) bool {
	if !KnownRating(rating) {
		return false
	}
	enabled, ok := p.RatingReplies[rating]
	return !ok || enabled
}

// EffectiveMaxLength returns MaxLength or the default.
func (p StorePolicy) EffectiveMaxLength() int {
	if p.MaxLength <= 0 {
		return DefaultMaxLength
	}
	return p.MaxLength
}

// EffectiveRetryCeiling returns RetryCeiling or the default.
func (p StorePolicy) EffectiveRetryCeiling() int {
	if p.RetryCeiling <= 0 {
		return DefaultRetryCeiling
	}
	return p.RetryCeiling
}

// EffectiveHonorific returns Honorific or the default.
func (p StorePolicy) EffectiveHonorific() string {
	if strings.TrimSpace(p.Honorific) == "" {
		return DefaultHonorific
	}
	return p.Honorific
}

// StoreTypeLabel describes the store type for prompts.
func (p StorePolicy) StoreTypeLabel() string {
	if p.StoreType == StoreTypeHallAndDelivery {
		return "dine-in and delivery restaurant"
	}
	return "delivery-only restaurant"
}
