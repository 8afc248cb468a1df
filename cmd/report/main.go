// Command report runs the pipeline once and prints summary KPIs for a date
// window to stdout. Useful for spot checks without starting the server.
//
// Usage:
//
//	go run ./cmd/report -start 2023-01-01 -end 2024-01-01 -limit 500
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/couchcryptid/recall-analytics/internal/adapter/openfda"
	"github.com/couchcryptid/recall-analytics/internal/adapter/sample"
	"github.com/couchcryptid/recall-analytics/internal/analytics"
	"github.com/couchcryptid/recall-analytics/internal/config"
	"github.com/couchcryptid/recall-analytics/internal/domain"
	"github.com/couchcryptid/recall-analytics/internal/observability"
	"github.com/couchcryptid/recall-analytics/internal/pipeline"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	startFlag := flag.String("start", "", "window start date (YYYY-MM-DD; default: lookback from end)")
	endFlag := flag.String("end", "", "window end date (YYYY-MM-DD; default: today)")
	limit := flag.Int("limit", 0, "maximum records to fetch (default: configured DEFAULT_LIMIT)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	end := time.Now().UTC().Truncate(24 * time.Hour)
	if *endFlag != "" {
		if end, err = time.Parse("2006-01-02", *endFlag); err != nil {
			return fmt.Errorf("invalid -end: %w", err)
		}
	}
	start := end.AddDate(-cfg.LookbackYears, 0, 0)
	if *startFlag != "" {
		if start, err = time.Parse("2006-01-02", *startFlag); err != nil {
			return fmt.Errorf("invalid -start: %w", err)
		}
	}
	if *limit <= 0 {
		*limit = cfg.DefaultLimit
	}

	// Keep pipeline logs off stdout so the report stays readable.
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	metrics := observability.NewMetrics()

	client := openfda.NewClient(cfg.OpenFDABaseURL, cfg.FetchTimeout, cfg.FetchLimitMax, metrics, logger)
	builder, err := pipeline.New(client, sample.NewSource(), domain.NewClassifier(cfg.BoostKeywords), logger, metrics, pipeline.Options{
		MaxRetries:      cfg.FetchMaxRetries,
		RetryBackoff:    cfg.FetchRetryBackoff,
		RetryBackoffMax: cfg.FetchRetryBackoffMax,
	})
	if err != nil {
		return fmt.Errorf("create pipeline: %w", err)
	}

	ds, err := builder.BuildDataset(context.Background(), start, end, *limit)
	if err != nil {
		return fmt.Errorf("build dataset: %w", err)
	}

	printReport(ds, start, end)
	return nil
}

func printReport(ds *pipeline.Dataset, start, end time.Time) {
	fmt.Println("=== Drug Recall Report ===")
	fmt.Printf("Window:  %s to %s\n", start.Format("2006-01-02"), end.Format("2006-01-02"))
	if ds.UsedFallback {
		fmt.Println("Source:  bundled sample (live fetch unavailable)")
	} else {
		fmt.Println("Source:  live openFDA")
	}
	fmt.Printf("Records: %d (%d dropped during normalization)\n", len(ds.Records), ds.DroppedCount)
	fmt.Println()

	s := analytics.Summarize(ds.Records)
	fmt.Printf("Severity: high=%d medium=%d low=%d (high share %.1f%%)\n",
		s.SeverityCounts[domain.SeverityHigh],
		s.SeverityCounts[domain.SeverityMedium],
		s.SeverityCounts[domain.SeverityLow],
		s.HighSeverityShare*100)
	fmt.Printf("Quantity: mean=%.1f min=%.0f max=%.0f median=%.0f\n",
		s.MeanQuantity, s.MinQuantity, s.MaxQuantity, s.QuantityQuantiles["p50"])
	fmt.Printf("Top reason category: %s\n", s.TopReasonCategory)

	if corr, ok := analytics.QuantitySeverityCorrelation(ds.Records); ok {
		fmt.Printf("Quantity/severity correlation: %.3f\n", corr)
	}

	table := analytics.CrossTabBySeverity(ds.Records, analytics.ReasonCategory)
	if chi := analytics.ChiSquare(table); chi.Valid {
		fmt.Printf("Chi-square (severity x reason): stat=%.3f dof=%d p=%.4f\n",
			chi.Statistic, chi.DegreesOfFreedom, chi.PValue)
	}

	printMonthlyTrend(ds)
}

func printMonthlyTrend(ds *pipeline.Dataset) {
	points := analytics.BucketCounts(ds.Records, analytics.Monthly)
	if len(points) == 0 {
		return
	}

	fmt.Println("\nMonthly trend:")
	maxTotal := 0
	for _, p := range points {
		if p.Total > maxTotal {
			maxTotal = p.Total
		}
	}
	for _, p := range points {
		bar := ""
		if maxTotal > 0 {
			width := p.Total * 40 / maxTotal
			for i := 0; i < width; i++ {
				bar += "#"
			}
		}
		fmt.Printf("  %s %4d %s\n", p.Date.Format("2006-01"), p.Total, bar)
	}

	if fc, err := analytics.NewTrendForecaster().Forecast(points, analytics.Monthly, 3); err == nil {
		fmt.Println("\nForecast (next 3 months):")
		for _, p := range fc {
			fmt.Printf("  %s est=%.1f [%.1f, %.1f]\n", p.Date.Format("2006-01"), p.Estimate, p.Lower, p.Upper)
		}
	}
}
