package boundary

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/nickswetUCSD/feeding-sd-exploration/internal/domain"
	"github.com/nickswetUCSD/feeding-sd-exploration/internal/observability"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- mock for cache tests ---

type countingSource struct {
	calls int
	err   error
}

func (s *countingSource) FetchBoundaries(_ context.Context, _ string) (*geojson.FeatureCollection, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	f := geojson.NewFeature(orb.Polygon{{{-117.2, 32.7}, {-117.1, 32.7}, {-117.1, 32.8}, {-117.2, 32.7}}})
	f.Properties["ZCTA5CE10"] = "92101"
	return geojson.NewFeatureCollection().Append(f), nil
}

func cacheHits(m *observability.Metrics, result string) float64 {
	return testutil.ToFloat64(m.BoundaryCache.WithLabelValues(result))
}

// --- CachedSource tests ---

func TestCachedSource_MemoryHit(t *testing.T) {
	inner := &countingSource{}
	m := observability.NewMetrics()
	cached := NewCachedSource(inner, "", time.Hour, testLogger(), m)

	fc1, err := cached.FetchBoundaries(context.Background(), "a")
	require.NoError(t, err)
	fc2, err := cached.FetchBoundaries(context.Background(), "a")
	require.NoError(t, err)

	assert.Same(t, fc1, fc2)
	assert.Equal(t, 1, inner.calls, "should only call inner once")
	assert.InDelta(t, 1, cacheHits(m, "miss"), 0)
	assert.InDelta(t, 1, cacheHits(m, "memory"), 0)
}

func TestCachedSource_KeyedByURL(t *testing.T) {
	inner := &countingSource{}
	cached := NewCachedSource(inner, "", time.Hour, testLogger(), observability.NewMetrics())

	_, err := cached.FetchBoundaries(context.Background(), "a")
	require.NoError(t, err)
	_, err = cached.FetchBoundaries(context.Background(), "b")
	require.NoError(t, err)

	assert.Equal(t, 2, inner.calls)
}

func TestCachedSource_ErrorNotCached(t *testing.T) {
	inner := &countingSource{err: errors.New("timeout")}
	dir := t.TempDir()
	cached := NewCachedSource(inner, dir, time.Hour, testLogger(), observability.NewMetrics())

	_, err := cached.FetchBoundaries(context.Background(), "a")
	require.Error(t, err)
	_, err = cached.FetchBoundaries(context.Background(), "a")
	require.Error(t, err)

	assert.Equal(t, 2, inner.calls)
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestCachedSource_DiskSurvivesProcess(t *testing.T) {
	dir := t.TempDir()
	inner := &countingSource{}

	first := NewCachedSource(inner, dir, time.Hour, testLogger(), observability.NewMetrics())
	_, err := first.FetchBoundaries(context.Background(), "a")
	require.NoError(t, err)

	m := observability.NewMetrics()
	second := NewCachedSource(inner, dir, time.Hour, testLogger(), m)
	fc, err := second.FetchBoundaries(context.Background(), "a")
	require.NoError(t, err)

	assert.Equal(t, 1, inner.calls)
	require.Len(t, fc.Features, 1)
	assert.Equal(t, "92101", fc.Features[0].Properties["ZCTA5CE10"])
	assert.InDelta(t, 1, cacheHits(m, "disk"), 0)
}

func TestCachedSource_DiskExpires(t *testing.T) {
	t.Cleanup(func() { domain.SetClock(nil) })
	dir := t.TempDir()
	inner := &countingSource{}

	first := NewCachedSource(inner, dir, time.Hour, testLogger(), observability.NewMetrics())
	_, err := first.FetchBoundaries(context.Background(), "a")
	require.NoError(t, err)

	domain.SetClock(clockwork.NewFakeClockAt(time.Now().Add(2 * time.Hour)))

	second := NewCachedSource(inner, dir, time.Hour, testLogger(), observability.NewMetrics())
	_, err = second.FetchBoundaries(context.Background(), "a")
	require.NoError(t, err)

	assert.Equal(t, 2, inner.calls)
}

func TestCachedSource_CorruptEntryRefetched(t *testing.T) {
	dir := t.TempDir()
	inner := &countingSource{}
	cached := NewCachedSource(inner, dir, time.Hour, testLogger(), observability.NewMetrics())
	require.NoError(t, os.WriteFile(cached.path("a"), []byte("{truncated"), 0o644))

	fc, err := cached.FetchBoundaries(context.Background(), "a")
	require.NoError(t, err)

	assert.Equal(t, 1, inner.calls)
	assert.Len(t, fc.Features, 1)
}
