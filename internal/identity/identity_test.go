package identity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"review-reply-automation/internal/domain"
)

func sampleReview() domain.RawReview {
	return domain.RawReview{
		StoreCode: "S1",
		Author:    "kim",
		Rating:    5,
		Text:      "tasty  food\n",
		OrderID:   "ORD-1",
		Date:      time.Date(2024, 5, 1, 13, 0, 0, 0, time.UTC),
	}
}

func TestFingerprint_Stable(t *testing.T) {
	r := NewResolver(Fields{OrderID: true, Date: true, Rating: true})
	a := r.Fingerprint(sampleReview())
	b := r.Fingerprint(sampleReview())

	assert.Equal(t, a, b)
	assert.Len(t, a, 64)
}

func TestFingerprint_WhitespaceNormalized(t *testing.T) {
	r := NewResolver(Fields{})
	a := sampleReview()
	b := sampleReview()
	b.Text = "  tasty food"

	assert.Equal(t, r.Fingerprint(a), r.Fingerprint(b))
}

func TestFingerprint_NFCNormalized(t *testing.T) {
	r := NewResolver(Fields{})
	a := sampleReview()
	a.Text = "café"
	b := sampleReview()
	b.Text = "café"

	assert.Equal(t, r.Fingerprint(a), r.Fingerprint(b))
}

func TestFingerprint_DifferentFieldsDiffer(t *testing.T) {
	r := NewResolver(Fields{OrderID: true, Date: true, Rating: true})
	base := r.Fingerprint(sampleReview())

	mutations := map[string]func(*domain.RawReview){
		"store":  func(v *domain.RawReview) { v.StoreCode = "S2" },
		"author": func(v *domain.RawReview) { v.Author = "lee" },
		"text":   func(v *domain.RawReview) { v.Text = "cold food" },
		"order":  func(v *domain.RawReview) { v.OrderID = "ORD-2" },
		"date":   func(v *domain.RawReview) { v.Date = v.Date.AddDate(0, 0, 1) },
		"rating": func(v *domain.RawReview) { v.Rating = 4 },
	}
	for name, mutate := range mutations {
		t.Run(name, func(t *testing.T) {
			v := sampleReview()
			mutate(&v)
			assert.NotEqual(t, base, r.Fingerprint(v))
		})
	}
}

func TestFingerprint_DisabledFieldsIgnored(t *testing.T) {
	r := NewResolver(Fields{})
	a := sampleReview()
	b := sampleReview()
	b.OrderID = "other"
	b.Rating = 1
	b.Date = time.Time{}

	assert.Equal(t, r.Fingerprint(a), r.Fingerprint(b))
}

func TestFingerprint_NoConcatenationAmbiguity(t *testing.T) {
	r := NewResolver(Fields{})
	a := domain.RawReview{StoreCode: "S1", Author: "ab", Text: "c"}
	b := domain.RawReview{StoreCode: "S1", Author: "a", Text: "bc"}

	require.NotEqual(t, r.Fingerprint(a), r.Fingerprint(b))
}

func TestShort(t *testing.T) {
	assert.Equal(t, "abc", Short("abc"))
	assert.Equal(t, "0123456789ab", Short("0123456789abcdef"))
}
