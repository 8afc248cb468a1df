package domain

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

// FallbackQuantity is imputed when a record has no usable quantity and no
// other record of the same classification tier in the batch has one either.
const FallbackQuantity = 1

// leadingNumberRe extracts the leading numeric token from a free-text
// quantity, e.g. "4,800 bottles" -> "4,800" or "approx. 120 cases" -> "120".
var leadingNumberRe = regexp.MustCompile(`(\d+(?:,\d{3})*(?:\.\d+)?)`)

// Normalize flattens a batch of raw API records into CleanRecords.
// Records whose report date cannot be parsed are dropped and counted; an
// undated recall cannot be time-bucketed meaningfully. Missing quantities
// are imputed from the median of same-tier quantities observed in the batch.
// The returned count is the number of dropped records.
func Normalize(raws []RawRecord, classifier *Classifier) ([]CleanRecord, int) {
	records := make([]CleanRecord, 0, len(raws))
	dropped := 0

	// First pass: parse everything that has a usable date, remembering which
	// records still need a quantity.
	needQuantity := make([]int, 0)
	tierQuantities := make(map[Classification][]float64)

	for _, raw := range raws {
		date, ok := parseReportDate(raw.ReportDate)
		if !ok {
			dropped++
			continue
		}

		code := parseClassification(raw.Classification)
		rec := CleanRecord{
			RecallNumber:   raw.RecallNumber,
			ReportDate:     date,
			Classification: code,
			Quantity:       0,
			ReasonText:     strings.TrimSpace(raw.ReasonForRecall),
			ProductType:    defaultIfEmpty(raw.ProductType, "Unknown"),
			RecallingFirm:  strings.TrimSpace(raw.RecallingFirm),
			State:          strings.TrimSpace(raw.State),
			Status:         strings.TrimSpace(raw.Status),
			ProcessedAt:    clock.Now().UTC(),
		}
		rec.Severity = classifier.Classify(code, rec.ReasonText)

		if qty, ok := parseQuantity(raw.ProductQuantity); ok {
			rec.Quantity = qty
			tierQuantities[code] = append(tierQuantities[code], qty)
		} else {
			needQuantity = append(needQuantity, len(records))
		}
		records = append(records, rec)
	}

	// Second pass: impute missing quantities from the same-tier median.
	for _, i := range needQuantity {
		records[i].Quantity = imputeQuantity(tierQuantities[records[i].Classification])
	}

	return records, dropped
}

// parseReportDate accepts the openFDA compact date format (YYYYMMDD) and the
// dashed form (YYYY-MM-DD). Returns false for anything else.
func parseReportDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{"20060102", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// parseClassification maps the openFDA classification string ("Class I",
// "Class II", "Class III", or a bare numeral) to a tier. Missing or
// unrecognized values default to Class II so the base severity lands on
// medium rather than propagating an empty tier.
func parseClassification(s string) Classification {
	s = strings.ToUpper(strings.TrimSpace(s))
	s = strings.TrimPrefix(s, "CLASS")
	switch strings.TrimSpace(s) {
	case "I", "1":
		return ClassI
	case "II", "2":
		return ClassII
	case "III", "3":
		return ClassIII
	default:
		return ClassII
	}
}

// parseQuantity extracts a non-negative count from the free-text
// product_quantity field. openFDA reports quantities as prose, e.g.
// "4,800 bottles" or "approximately 120 cases"; the leading numeric token is
// taken as the count. Returns false when no number is present.
func parseQuantity(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	m := leadingNumberRe.FindString(s)
	if m == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(m, ",", ""), 64)
	if err != nil {
		return 0, false
	}
	if v < 0 {
		return 0, true
	}
	return v, true
}

// imputeQuantity returns the median of the observed same-tier quantities, or
// FallbackQuantity when the tier has none. Never negative.
func imputeQuantity(observed []float64) float64 {
	if len(observed) == 0 {
		return FallbackQuantity
	}
	sorted := make([]float64, len(observed))
	copy(sorted, observed)
	sort.Float64s(sorted)

	mid := len(sorted) / 2
	var median float64
	if len(sorted)%2 == 1 {
		median = sorted[mid]
	} else {
		median = (sorted[mid-1] + sorted[mid]) / 2
	}
	if median < 0 {
		return 0
	}
	return median
}

func defaultIfEmpty(s, fallback string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return fallback
	}
	return s
}
