// Command gensample regenerates the embedded fallback fixture from the live
// openFDA enforcement endpoint. It fetches recent records, keeps only those
// that survive normalization, and writes them as a raw-record JSON array.
//
// Usage:
//
//	go run ./cmd/gensample -out internal/adapter/sample/data/enforcement_sample.json -limit 50 -years 2
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/couchcryptid/recall-analytics/internal/adapter/openfda"
	"github.com/couchcryptid/recall-analytics/internal/config"
	"github.com/couchcryptid/recall-analytics/internal/domain"
	"github.com/couchcryptid/recall-analytics/internal/observability"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	out := flag.String("out", "internal/adapter/sample/data/enforcement_sample.json", "output path for the fixture")
	limit := flag.Int("limit", 50, "maximum records to fetch")
	years := flag.Int("years", 2, "lookback window in years")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	end := time.Now().UTC().Truncate(24 * time.Hour)
	start := end.AddDate(-*years, 0, 0)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	client := openfda.NewClient(cfg.OpenFDABaseURL, cfg.FetchTimeout, cfg.FetchLimitMax, observability.NewMetrics(), logger)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	raws, err := client.Fetch(ctx, start, end, *limit)
	if err != nil {
		return fmt.Errorf("fetch: %w", err)
	}
	if len(raws) == 0 {
		return fmt.Errorf("no records returned for %s to %s", start.Format("2006-01-02"), end.Format("2006-01-02"))
	}

	// The fixture must be fully usable offline, so discard any record the
	// normalizer would drop.
	kept := filterNormalizable(raws)
	if len(kept) == 0 {
		return fmt.Errorf("all %d fetched records failed normalization", len(raws))
	}
	log.Printf("fetched %d records, kept %d", len(raws), len(kept))

	if err := writeJSON(*out, kept); err != nil {
		return fmt.Errorf("write fixture: %w", err)
	}
	log.Printf("wrote fixture: %s", *out)
	return nil
}

// filterNormalizable keeps only raw records that survive normalization
// individually, so the embedded fixture never contributes to DroppedCount.
func filterNormalizable(raws []domain.RawRecord) []domain.RawRecord {
	classifier := domain.NewClassifier(nil)
	var kept []domain.RawRecord
	for _, r := range raws {
		if _, dropped := domain.Normalize([]domain.RawRecord{r}, classifier); dropped == 0 {
			kept = append(kept, r)
		}
	}
	return kept
}

func writeJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o600)
}
