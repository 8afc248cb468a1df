// Package analytics computes the descriptive statistics consumed by the
// dashboard and report surfaces: time-bucketed severity trends, severity
// cross-tabulations with a chi-square independence test, headline summary
// statistics, and a simple trend forecast.
//
// All functions are pure over the immutable dataset. Empty input always
// yields defined zero-valued aggregates, never an error; dashboards render a
// "no data" state instead of crashing.
package analytics

import (
	"math"
	"sort"
	"strings"
	"time"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/couchcryptid/recall-analytics/internal/domain"
)

// Bucket selects the time-bucketing granularity for trend series.
type Bucket string

const (
	Daily   Bucket = "daily"
	Monthly Bucket = "monthly"
)

// severityOrder fixes row ordering for trend points and cross-tabs.
var severityOrder = []domain.Severity{domain.SeverityHigh, domain.SeverityMedium, domain.SeverityLow}

// TrendPoint is one time bucket of the severity trend series.
type TrendPoint struct {
	Date     time.Time               `json:"date"`
	Counts   map[domain.Severity]int `json:"counts"`
	Total    int                     `json:"total"`
	Quantity float64                 `json:"quantity"` // summed quantity in the bucket
}

// BucketCounts groups records into daily or monthly buckets with per-severity
// counts, ordered by date ascending. Buckets with no records are omitted,
// matching group-by semantics; consumers needing gap-free series fill them.
func BucketCounts(records []domain.CleanRecord, bucket Bucket) []TrendPoint {
	byDate := make(map[time.Time]*TrendPoint)
	for _, rec := range records {
		d := bucketDate(rec.ReportDate, bucket)
		tp, ok := byDate[d]
		if !ok {
			tp = &TrendPoint{Date: d, Counts: make(map[domain.Severity]int)}
			byDate[d] = tp
		}
		tp.Counts[rec.Severity]++
		tp.Total++
		tp.Quantity += rec.Quantity
	}

	points := make([]TrendPoint, 0, len(byDate))
	for _, tp := range byDate {
		points = append(points, *tp)
	}
	sort.Slice(points, func(i, j int) bool { return points[i].Date.Before(points[j].Date) })
	return points
}

func bucketDate(t time.Time, bucket Bucket) time.Time {
	t = t.UTC()
	if bucket == Monthly {
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// CrossTab is a severity x category contingency table. Rows follow
// severityOrder; columns are sorted category labels.
type CrossTab struct {
	Rows   []domain.Severity `json:"rows"`
	Cols   []string          `json:"cols"`
	Counts [][]int           `json:"counts"` // Counts[row][col]
}

// CrossTabBySeverity tabulates records by severity against a categorical
// field. Pass ReasonCategory or a product-type accessor as the category
// function.
func CrossTabBySeverity(records []domain.CleanRecord, category func(domain.CleanRecord) string) *CrossTab {
	colSet := make(map[string]int)
	var cols []string
	for _, rec := range records {
		c := category(rec)
		if _, ok := colSet[c]; !ok {
			colSet[c] = 0
			cols = append(cols, c)
		}
	}
	sort.Strings(cols)
	for i, c := range cols {
		colSet[c] = i
	}

	rowIdx := make(map[domain.Severity]int, len(severityOrder))
	for i, s := range severityOrder {
		rowIdx[s] = i
	}

	counts := make([][]int, len(severityOrder))
	for i := range counts {
		counts[i] = make([]int, len(cols))
	}
	for _, rec := range records {
		counts[rowIdx[rec.Severity]][colSet[category(rec)]]++
	}

	return &CrossTab{
		Rows:   append([]domain.Severity(nil), severityOrder...),
		Cols:   cols,
		Counts: counts,
	}
}

// ReasonCategory buckets free-text recall reasons into coarse categories so
// the cross-tab has repeatable levels; raw reason strings are nearly unique
// per record and would degenerate the chi-square test.
func ReasonCategory(rec domain.CleanRecord) string {
	reason := strings.ToLower(rec.ReasonText)
	switch {
	case reason == "":
		return "unspecified"
	case containsAny(reason, "contaminat", "sterility", "microbial", "fungal"):
		return "contamination"
	case containsAny(reason, "impurity", "nitros", "azido", "ndma"):
		return "impurity"
	case containsAny(reason, "potent", "dissolution", "stability"):
		return "potency"
	case containsAny(reason, "cgmp", "deviation"):
		return "cgmp"
	case containsAny(reason, "label", "carton", "imprint"):
		return "labeling"
	case containsAny(reason, "packag", "container", "defect", "leak"):
		return "packaging"
	default:
		return "other"
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// ChiSquareResult holds a chi-square independence test over a cross-tab.
// Valid is false for degenerate tables (empty, or fewer than two
// non-degenerate rows/columns); Statistic and PValue are NaN in that case
// rather than a numeric error.
type ChiSquareResult struct {
	Statistic        float64 `json:"statistic"`
	DegreesOfFreedom int     `json:"degrees_of_freedom"`
	PValue           float64 `json:"p_value"`
	Valid            bool    `json:"valid"`
}

// ChiSquare runs Pearson's chi-square test of independence on the table.
// All-zero rows and columns are excluded before computing expected counts.
func ChiSquare(table *CrossTab) ChiSquareResult {
	invalid := ChiSquareResult{Statistic: math.NaN(), PValue: math.NaN()}
	if table == nil || len(table.Counts) == 0 {
		return invalid
	}

	rowTotals := make([]float64, len(table.Counts))
	colTotals := make([]float64, len(table.Cols))
	var total float64
	for i, row := range table.Counts {
		for j, n := range row {
			rowTotals[i] += float64(n)
			colTotals[j] += float64(n)
			total += float64(n)
		}
	}
	if total == 0 {
		return invalid
	}

	liveRows := nonZeroIndices(rowTotals)
	liveCols := nonZeroIndices(colTotals)
	if len(liveRows) < 2 || len(liveCols) < 2 {
		return invalid
	}

	var statistic float64
	for _, i := range liveRows {
		for _, j := range liveCols {
			expected := rowTotals[i] * colTotals[j] / total
			observed := float64(table.Counts[i][j])
			diff := observed - expected
			statistic += diff * diff / expected
		}
	}

	dof := (len(liveRows) - 1) * (len(liveCols) - 1)
	dist := distuv.ChiSquared{K: float64(dof)}
	return ChiSquareResult{
		Statistic:        statistic,
		DegreesOfFreedom: dof,
		PValue:           dist.Survival(statistic),
		Valid:            true,
	}
}

func nonZeroIndices(totals []float64) []int {
	var idx []int
	for i, t := range totals {
		if t > 0 {
			idx = append(idx, i)
		}
	}
	return idx
}

// Summary holds the headline KPI figures.
type Summary struct {
	Count             int                     `json:"count"`
	SeverityCounts    map[domain.Severity]int `json:"severity_counts"`
	HighSeverityShare float64                 `json:"high_severity_share"`
	MeanQuantity      float64                 `json:"mean_quantity"`
	MinQuantity       float64                 `json:"min_quantity"`
	MaxQuantity       float64                 `json:"max_quantity"`
	QuantityQuantiles map[string]float64      `json:"quantity_quantiles"` // p25, p50, p75, p90
	TopReasonCategory string                  `json:"top_reason_category"`
}

// Summarize computes headline KPIs over the dataset. Empty input returns a
// zero-valued summary with empty maps, never an error.
func Summarize(records []domain.CleanRecord) Summary {
	s := Summary{
		SeverityCounts:    make(map[domain.Severity]int),
		QuantityQuantiles: make(map[string]float64),
	}
	if len(records) == 0 {
		return s
	}

	quantities := make([]float64, 0, len(records))
	reasonCounts := make(map[string]int)
	for _, rec := range records {
		s.SeverityCounts[rec.Severity]++
		quantities = append(quantities, rec.Quantity)
		reasonCounts[ReasonCategory(rec)]++
	}

	s.Count = len(records)
	s.HighSeverityShare = float64(s.SeverityCounts[domain.SeverityHigh]) / float64(s.Count)
	s.MeanQuantity = stat.Mean(quantities, nil)

	sort.Float64s(quantities)
	s.MinQuantity = quantities[0]
	s.MaxQuantity = quantities[len(quantities)-1]
	for name, p := range map[string]float64{"p25": 0.25, "p50": 0.5, "p75": 0.75, "p90": 0.9} {
		s.QuantityQuantiles[name] = stat.Quantile(p, stat.Empirical, quantities, nil)
	}

	s.TopReasonCategory = topKey(reasonCounts)
	return s
}

// topKey returns the most frequent key, breaking ties lexicographically so
// the result is deterministic.
func topKey(counts map[string]int) string {
	var best string
	bestN := -1
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if counts[k] > bestN {
			best, bestN = k, counts[k]
		}
	}
	return best
}

// QuantitySeverityCorrelation returns the Pearson correlation between record
// quantity and severity rank. The second return is false when the
// correlation is undefined (fewer than two records, or zero variance in
// either variable).
func QuantitySeverityCorrelation(records []domain.CleanRecord) (float64, bool) {
	if len(records) < 2 {
		return 0, false
	}
	xs := make([]float64, len(records))
	ys := make([]float64, len(records))
	for i, rec := range records {
		xs[i] = rec.Quantity
		ys[i] = float64(rec.Severity.Rank())
	}
	r := stat.Correlation(xs, ys, nil)
	if math.IsNaN(r) {
		return 0, false
	}
	return r, true
}
