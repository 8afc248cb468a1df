package domain

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClassifier() *Classifier {
	return NewClassifier(nil)
}

func TestNormalize_HappyPath(t *testing.T) {
	frozen := time.Date(2024, time.April, 27, 6, 0, 0, 0, time.UTC)
	SetClock(clockwork.NewFakeClockAt(frozen))
	defer SetClock(nil)

	raws := []RawRecord{
		{
			RecallNumber:    "D-0001-2024",
			ReportDate:      "20240115",
			Classification:  "Class I",
			ProductQuantity: "4,800 bottles",
			ReasonForRecall: "Contamination with foreign material",
			ProductType:     "Drugs",
			RecallingFirm:   "Acme Pharma",
			State:           "TX",
			Status:          "Ongoing",
		},
	}

	records, dropped := Normalize(raws, testClassifier())
	require.Len(t, records, 1)
	assert.Equal(t, 0, dropped)

	rec := records[0]
	assert.Equal(t, "D-0001-2024", rec.RecallNumber)
	assert.Equal(t, time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), rec.ReportDate)
	assert.Equal(t, ClassI, rec.Classification)
	assert.Equal(t, SeverityHigh, rec.Severity)
	assert.Equal(t, 4800.0, rec.Quantity)
	assert.Equal(t, "Contamination with foreign material", rec.ReasonText)
	assert.Equal(t, "Drugs", rec.ProductType)
	assert.Equal(t, frozen, rec.ProcessedAt)
}

func TestNormalize_DropsUnparseableDates(t *testing.T) {
	raws := []RawRecord{
		{ReportDate: "20240115", Classification: "Class II"},
		{ReportDate: "", Classification: "Class II"},
		{ReportDate: "not-a-date", Classification: "Class I"},
		{ReportDate: "2024-02-20", Classification: "Class III"},
	}

	records, dropped := Normalize(raws, testClassifier())
	assert.Len(t, records, 2)
	assert.Equal(t, 2, dropped)
	assert.Equal(t, time.Date(2024, 2, 20, 0, 0, 0, 0, time.UTC), records[1].ReportDate)
}

func TestNormalize_ImputesMedianQuantityPerTier(t *testing.T) {
	raws := []RawRecord{
		{ReportDate: "20240101", Classification: "Class II", ProductQuantity: "100 units"},
		{ReportDate: "20240102", Classification: "Class II", ProductQuantity: "300 units"},
		{ReportDate: "20240103", Classification: "Class II", ProductQuantity: ""}, // imputed
		{ReportDate: "20240104", Classification: "Class I", ProductQuantity: ""},  // no tier peers
	}

	records, dropped := Normalize(raws, testClassifier())
	require.Len(t, records, 4)
	assert.Equal(t, 0, dropped)

	// Median of {100, 300} within Class II.
	assert.Equal(t, 200.0, records[2].Quantity)
	// No Class I quantities observed: documented fallback constant.
	assert.Equal(t, float64(FallbackQuantity), records[3].Quantity)
}

func TestNormalize_QuantityNeverNegative(t *testing.T) {
	raws := []RawRecord{
		{ReportDate: "20240101", Classification: "Class III", ProductQuantity: "0 cases"},
		{ReportDate: "20240102", Classification: "Class III", ProductQuantity: "no count available"},
	}

	records, _ := Normalize(raws, testClassifier())
	require.Len(t, records, 2)
	for _, rec := range records {
		assert.GreaterOrEqual(t, rec.Quantity, 0.0)
	}
}

func TestNormalize_SpecExample(t *testing.T) {
	// Class II with a negated injury mention and no quantity: medium severity,
	// quantity imputed from the batch (fallback constant here).
	raws := []RawRecord{
		{
			ReportDate:      "20240110",
			Classification:  "Class II",
			ReasonForRecall: "Labeling error, no injury reported",
		},
	}

	records, dropped := Normalize(raws, testClassifier())
	require.Len(t, records, 1)
	assert.Equal(t, 0, dropped)
	assert.Equal(t, SeverityMedium, records[0].Severity)
	assert.Equal(t, float64(FallbackQuantity), records[0].Quantity)
}

func TestNormalize_EmptyInput(t *testing.T) {
	records, dropped := Normalize(nil, testClassifier())
	assert.Empty(t, records)
	assert.Equal(t, 0, dropped)
}

func TestParseReportDate(t *testing.T) {
	tests := []struct {
		name  string
		input string
		ok    bool
	}{
		{"compact format", "20240115", true},
		{"dashed format", "2024-01-15", true},
		{"whitespace trimmed", " 20240115 ", true},
		{"empty", "", false},
		{"garbage", "January 15", false},
		{"partial", "202401", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok := parseReportDate(tt.input)
			assert.Equal(t, tt.ok, ok)
		})
	}
}

func TestParseClassification(t *testing.T) {
	tests := []struct {
		input    string
		expected Classification
	}{
		{"Class I", ClassI},
		{"Class II", ClassII},
		{"Class III", ClassIII},
		{"class iii", ClassIII},
		{"II", ClassII},
		{"3", ClassIII},
		{"", ClassII},
		{"Class IV", ClassII},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, parseClassification(tt.input))
		})
	}
}

func TestParseQuantity(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected float64
		ok       bool
	}{
		{"plain number", "500", 500, true},
		{"thousands separator", "4,800 bottles", 4800, true},
		{"decimal", "12.5 kg", 12.5, true},
		{"number mid-string", "approximately 120 cases", 120, true},
		{"no number", "unknown", 0, false},
		{"empty", "", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, ok := parseQuantity(tt.input)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.expected, v)
			}
		})
	}
}
