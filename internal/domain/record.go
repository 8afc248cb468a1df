package domain

import "time"

// RawRecord is one JSON object from the openFDA drug enforcement endpoint.
// All fields arrive as strings; several are frequently absent. It exists only
// between fetch and normalization.
type RawRecord struct {
	RecallNumber       string `json:"recall_number"`
	ReportDate         string `json:"report_date"` // YYYYMMDD
	Classification     string `json:"classification"`
	ProductType        string `json:"product_type"`
	ProductDescription string `json:"product_description"`
	ProductQuantity    string `json:"product_quantity"` // free text, e.g. "4,800 bottles"
	ReasonForRecall    string `json:"reason_for_recall"`
	RecallingFirm      string `json:"recalling_firm"`
	State              string `json:"state"`
	Status             string `json:"status"`
}

// Classification is the FDA-assigned recall tier. Class I is the most severe.
type Classification string

const (
	ClassI   Classification = "I"
	ClassII  Classification = "II"
	ClassIII Classification = "III"
)

// Severity is the derived three-level risk label used for analytics. It is
// distinct from the raw FDA classification: keyword signals in the recall
// reason can escalate it one tier above the base mapping.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Rank orders severities for comparison. Higher is more severe.
func (s Severity) Rank() int {
	switch s {
	case SeverityHigh:
		return 2
	case SeverityMedium:
		return 1
	default:
		return 0
	}
}

// Escalate returns the severity one tier above s, capped at high.
func (s Severity) Escalate() Severity {
	switch s {
	case SeverityLow:
		return SeverityMedium
	case SeverityMedium:
		return SeverityHigh
	default:
		return s
	}
}

// CleanRecord is the normalized, invariant-bearing form of a RawRecord.
// ReportDate is always a valid calendar date (records that cannot be dated
// are dropped during normalization), Quantity is never negative, and
// Severity is set exactly once by the classifier.
type CleanRecord struct {
	RecallNumber   string         `json:"recall_number"`
	ReportDate     time.Time      `json:"report_date"`
	Classification Classification `json:"classification"`
	Severity       Severity       `json:"severity"`
	Quantity       float64        `json:"quantity"`
	ReasonText     string         `json:"reason_text"`
	ProductType    string         `json:"product_type"`
	RecallingFirm  string         `json:"recalling_firm,omitempty"`
	State          string         `json:"state,omitempty"`
	Status         string         `json:"status,omitempty"`
	ProcessedAt    time.Time      `json:"processed_at"`
}
