package pipeline_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/recall-analytics/internal/adapter/openfda"
	"github.com/couchcryptid/recall-analytics/internal/domain"
	"github.com/couchcryptid/recall-analytics/internal/observability"
	"github.com/couchcryptid/recall-analytics/internal/pipeline"
)

var (
	testStart = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	testEnd   = time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC)
)

// --- mocks ---

type mockFetcher struct {
	records []domain.RawRecord
	errs    []error // consumed per call; nil entry means success
	calls   int
}

func (m *mockFetcher) Fetch(_ context.Context, _, _ time.Time, _ int) ([]domain.RawRecord, error) {
	m.calls++
	if len(m.errs) > 0 {
		err := m.errs[0]
		m.errs = m.errs[1:]
		if err != nil {
			return nil, err
		}
	}
	return m.records, nil
}

type mockSample struct {
	records []domain.RawRecord
	err     error
	calls   int
}

func (m *mockSample) Load() ([]domain.RawRecord, error) {
	m.calls++
	return m.records, m.err
}

func rawRecord(reportDate, class string) domain.RawRecord {
	return domain.RawRecord{
		ReportDate:      reportDate,
		Classification:  class,
		ReasonForRecall: "labeling issue",
		ProductType:     "Drugs",
		ProductQuantity: "100 bottles",
	}
}

func newBuilder(t *testing.T, fetcher pipeline.Fetcher, sample pipeline.SampleSource) *pipeline.Builder {
	t.Helper()
	b, err := pipeline.New(
		fetcher,
		sample,
		domain.NewClassifier(nil),
		slog.New(slog.NewTextHandler(io.Discard, nil)),
		observability.NewMetricsForTesting(),
		pipeline.Options{
			MaxRetries:      2,
			RetryBackoff:    time.Millisecond,
			RetryBackoffMax: 4 * time.Millisecond,
		},
	)
	require.NoError(t, err)
	return b
}

// --- tests ---

func TestBuildDataset_HappyPath(t *testing.T) {
	fetcher := &mockFetcher{records: []domain.RawRecord{
		rawRecord("20240220", "Class II"),
		rawRecord("20240110", "Class I"),
	}}
	b := newBuilder(t, fetcher, &mockSample{})

	ds, err := b.BuildDataset(context.Background(), testStart, testEnd, 100)
	require.NoError(t, err)

	assert.False(t, ds.UsedFallback)
	assert.Equal(t, 0, ds.DroppedCount)
	require.Len(t, ds.Records, 2)
	// Ordered by report date.
	assert.True(t, ds.Records[0].ReportDate.Before(ds.Records[1].ReportDate))
	assert.Equal(t, domain.SeverityHigh, ds.Records[0].Severity)
}

func TestBuildDataset_CountsDroppedRecords(t *testing.T) {
	fetcher := &mockFetcher{records: []domain.RawRecord{
		rawRecord("20240110", "Class II"),
		rawRecord("", "Class II"),
		rawRecord("bogus", "Class III"),
	}}
	b := newBuilder(t, fetcher, &mockSample{})

	ds, err := b.BuildDataset(context.Background(), testStart, testEnd, 100)
	require.NoError(t, err)
	assert.Len(t, ds.Records, 1)
	assert.Equal(t, 2, ds.DroppedCount)
}

func TestBuildDataset_EmptyFetchIsNotAnError(t *testing.T) {
	b := newBuilder(t, &mockFetcher{}, &mockSample{})

	ds, err := b.BuildDataset(context.Background(), testStart, testEnd, 100)
	require.NoError(t, err)
	assert.Empty(t, ds.Records)
	assert.Equal(t, 0, ds.DroppedCount)
	assert.False(t, ds.UsedFallback)
}

func TestBuildDataset_RetriesTransientThenSucceeds(t *testing.T) {
	fetcher := &mockFetcher{
		records: []domain.RawRecord{rawRecord("20240110", "Class II")},
		errs: []error{
			&openfda.TransientError{Status: 502},
			&openfda.TransientError{Status: 503},
			nil,
		},
	}
	b := newBuilder(t, fetcher, &mockSample{})

	ds, err := b.BuildDataset(context.Background(), testStart, testEnd, 100)
	require.NoError(t, err)
	assert.False(t, ds.UsedFallback)
	assert.Equal(t, 3, fetcher.calls)
}

func TestBuildDataset_ExhaustedRetriesFallBack(t *testing.T) {
	fetcher := &mockFetcher{errs: []error{
		&openfda.TransientError{Status: 500},
		&openfda.TransientError{Status: 500},
		&openfda.TransientError{Status: 500},
	}}
	samp := &mockSample{records: []domain.RawRecord{
		rawRecord("20230701", "Class I"),
		rawRecord("20230815", "Class III"),
	}}
	b := newBuilder(t, fetcher, samp)

	ds, err := b.BuildDataset(context.Background(), testStart, testEnd, 100)
	require.NoError(t, err)

	assert.True(t, ds.UsedFallback)
	assert.NotEmpty(t, ds.Records)
	assert.Equal(t, 3, fetcher.calls) // 1 attempt + MaxRetries
	assert.Equal(t, 1, samp.calls)
}

func TestBuildDataset_MalformedResponseFallsBackImmediately(t *testing.T) {
	fetcher := &mockFetcher{errs: []error{
		&openfda.MalformedError{Err: errors.New("bad json")},
	}}
	samp := &mockSample{records: []domain.RawRecord{rawRecord("20230701", "Class II")}}
	b := newBuilder(t, fetcher, samp)

	ds, err := b.BuildDataset(context.Background(), testStart, testEnd, 100)
	require.NoError(t, err)

	assert.True(t, ds.UsedFallback)
	assert.Equal(t, 1, fetcher.calls) // no retries for malformed responses
}

func TestBuildDataset_BothSourcesFailingIsFatal(t *testing.T) {
	fetcher := &mockFetcher{errs: []error{
		&openfda.TransientError{Status: 500},
		&openfda.TransientError{Status: 500},
		&openfda.TransientError{Status: 500},
	}}
	samp := &mockSample{err: errors.New("fixture corrupted")}
	b := newBuilder(t, fetcher, samp)

	_, err := b.BuildDataset(context.Background(), testStart, testEnd, 100)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fallback load failed")
}

func TestBuildDataset_ValidationErrorsPropagate(t *testing.T) {
	fetcher := &mockFetcher{errs: []error{errors.New("limit must be positive, got 0")}}
	samp := &mockSample{records: []domain.RawRecord{rawRecord("20230701", "Class II")}}
	b := newBuilder(t, fetcher, samp)

	_, err := b.BuildDataset(context.Background(), testStart, testEnd, 0)
	require.Error(t, err)
	assert.Equal(t, 0, samp.calls) // caller mistakes never mask as degraded data
}

func TestBuildDataset_CachesLiveDatasets(t *testing.T) {
	fetcher := &mockFetcher{records: []domain.RawRecord{rawRecord("20240110", "Class II")}}
	b := newBuilder(t, fetcher, &mockSample{})

	first, err := b.BuildDataset(context.Background(), testStart, testEnd, 100)
	require.NoError(t, err)
	second, err := b.BuildDataset(context.Background(), testStart, testEnd, 100)
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, 1, fetcher.calls)

	// A different window misses the cache.
	_, err = b.BuildDataset(context.Background(), testStart, testEnd, 50)
	require.NoError(t, err)
	assert.Equal(t, 2, fetcher.calls)
}

func TestBuildDataset_FallbackDatasetsAreNotCached(t *testing.T) {
	fetcher := &mockFetcher{
		records: []domain.RawRecord{rawRecord("20240110", "Class II")},
		errs: []error{
			&openfda.MalformedError{Err: errors.New("bad json")},
			nil,
		},
	}
	samp := &mockSample{records: []domain.RawRecord{rawRecord("20230701", "Class I")}}
	b := newBuilder(t, fetcher, samp)

	first, err := b.BuildDataset(context.Background(), testStart, testEnd, 100)
	require.NoError(t, err)
	assert.True(t, first.UsedFallback)

	// Live source recovered: the next build must retry it, not serve the
	// degraded dataset from cache.
	second, err := b.BuildDataset(context.Background(), testStart, testEnd, 100)
	require.NoError(t, err)
	assert.False(t, second.UsedFallback)
	assert.Equal(t, 2, fetcher.calls)
}

func TestCheckReadiness(t *testing.T) {
	fetcher := &mockFetcher{records: []domain.RawRecord{rawRecord("20240110", "Class II")}}
	b := newBuilder(t, fetcher, &mockSample{})

	require.Error(t, b.CheckReadiness(context.Background()))

	_, err := b.BuildDataset(context.Background(), testStart, testEnd, 100)
	require.NoError(t, err)
	assert.NoError(t, b.CheckReadiness(context.Background()))
}
