package domain

import "strings"

// DefaultBoostKeywords are the high-risk signals scanned for in recall reason
// text, in match-priority order. Any hit escalates the base severity by
// exactly one tier. Bare "injury" is deliberately absent: substring matching
// would trip on negations like "no injury reported".
var DefaultBoostKeywords = []string{
	"death",
	"serious injury",
	"life-threatening",
	"contamination",
	"contaminated",
	"sterility",
	"undeclared",
}

// Classifier derives severity labels from classification tiers and recall
// reason text. It holds the keyword list as explicit configuration rather
// than package state so deployments can tune the boost signals.
type Classifier struct {
	keywords []string // stored lowercased
}

// NewClassifier creates a Classifier with the given boost keywords.
// A nil or empty list falls back to DefaultBoostKeywords.
func NewClassifier(keywords []string) *Classifier {
	if len(keywords) == 0 {
		keywords = DefaultBoostKeywords
	}
	lowered := make([]string, len(keywords))
	for i, k := range keywords {
		lowered[i] = strings.ToLower(strings.TrimSpace(k))
	}
	return &Classifier{keywords: lowered}
}

// Classify maps a classification tier and reason text to a severity label.
//
// Base mapping: Class I -> high, Class II -> medium, Class III -> low.
// Unrecognized tiers are treated as Class II. If the reason text contains any
// boost keyword (case-insensitive substring match), a medium or low base
// escalates exactly one tier; multiple matches still escalate one tier total,
// and a high base stays high.
//
// The function is pure: no randomness, no external state, identical output
// for identical input across runs.
func (c *Classifier) Classify(code Classification, reason string) Severity {
	base := baseSeverity(code)
	if base == SeverityHigh {
		return base
	}
	if c.containsBoostKeyword(reason) {
		return base.Escalate()
	}
	return base
}

func (c *Classifier) containsBoostKeyword(reason string) bool {
	if reason == "" {
		return false
	}
	reason = strings.ToLower(reason)
	for _, k := range c.keywords {
		if k != "" && strings.Contains(reason, k) {
			return true
		}
	}
	return false
}

func baseSeverity(code Classification) Severity {
	switch code {
	case ClassI:
		return SeverityHigh
	case ClassIII:
		return SeverityLow
	default:
		// ClassII and anything unrecognized.
		return SeverityMedium
	}
}
