// Package sample provides the bundled static recall dataset used when the
// live openFDA fetch fails. The fixture is embedded at build time and is
// read-only; regenerate it with cmd/gensample.
package sample

import (
	_ "embed"
	"encoding/json"
	"fmt"

	"github.com/couchcryptid/recall-analytics/internal/domain"
)

//go:embed data/enforcement_sample.json
var enforcementSample []byte

// Source loads the embedded fallback dataset.
// It implements pipeline.SampleSource.
type Source struct{}

// NewSource returns a loader for the bundled sample dataset.
func NewSource() *Source {
	return &Source{}
}

// Load parses the embedded fixture into raw records. A decode failure here
// means a broken build artifact and is the pipeline's only fatal condition
// (combined with a live-fetch failure).
func (s *Source) Load() ([]domain.RawRecord, error) {
	var records []domain.RawRecord
	if err := json.Unmarshal(enforcementSample, &records); err != nil {
		return nil, fmt.Errorf("load embedded sample: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("embedded sample is empty")
	}
	return records, nil
}
