package domain

// Severity grades how risky a review is to answer automatically.
type Severity string

const (
	SeverityLow    Severity = "LOW"
	SeverityMedium Severity = "MEDIUM"
	SeverityHigh   Severity = "HIGH"
)

// ParseSeverity normalizes a model-provided severity, falling back to MEDIUM.
func ParseSeverity(s string) Severity {
	switch Severity(s) {
	case SeverityLow, SeverityMedium, SeverityHigh:
		return Severity(s)
	}
	switch s {
	case "low", "Low":
		return SeverityLow
	case "high", "High":
		return SeverityHigh
	}
	return SeverityMedium
}

// Analysis is the Content Analyzer verdict for one review.
type Analysis struct {
	AutoReply   bool     `json:"ai_reply"`
	Sentiment   float64  `json:"sentiment_score"`
	Category    string   `json:"category"`
	SubCategory string   `json:"sub_category"`
	Keywords    []string `json:"keywords"`
	Severity    Severity `json:"severity"`
	Reason      string   `json:"reason"`
	Actions     []string `json:"actions"`
}
