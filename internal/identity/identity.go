// Package identity derives the stable fingerprint that keys review records.
package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"

	"review-reply-automation/internal/domain"
)

const separator = "\x1f"

// Fields selects the optional identifying fields a platform exposes.
// A platform must keep the same field set for its lifetime; changing it
// changes every fingerprint.
type Fields struct {
	OrderID bool `yaml:"order_id"`
	Date    bool `yaml:"date"`
	Rating  bool `yaml:"rating"`
}

// Resolver computes fingerprints for one platform.
type Resolver struct {
	fields Fields
}

// NewResolver creates a Resolver for the platform field set.
func NewResolver(fields Fields) *Resolver {
	return &Resolver{fields: fields}
}

// Fingerprint returns the lowercase hex SHA-256 of the canonical field
// concatenation. It is a pure function of its input.
func (r *Resolver) Fingerprint(raw domain.RawReview) string {
	parts := []string{
		strings.TrimSpace(raw.StoreCode),
		strings.TrimSpace(raw.Author),
		NormalizeText(raw.Text),
	}
	if r.fields.OrderID {
		parts = append(parts, strings.TrimSpace(raw.OrderID))
	}
	if r.fields.Date {
		d := ""
		if !raw.Date.IsZero() {
			d = raw.Date.Format("2006-01-02")
		}
		parts = append(parts, d)
	}
	if r.fields.Rating {
		parts = append(parts, strconv.Itoa(raw.Rating))
	}

	sum := sha256.Sum256([]byte(strings.Join(parts, separator)))
	return hex.EncodeToString(sum[:])
}

// NormalizeText applies NFC, trims, and collapses whitespace runs to one space.
func NormalizeText(s string) string {
	return strings.Join(strings.Fields(norm.NFC.String(s)), " ")
}

// Short returns a log-friendly prefix of a fingerprint.
func Short(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
