package chart_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/nickswetUCSD/feeding-sd-exploration/internal/chart"
	"github.com/nickswetUCSD/feeding-sd-exploration/internal/domain"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSource struct {
	collections map[string]*geojson.FeatureCollection
	err         error
	calls       []string
}

func (s *stubSource) FetchBoundaries(_ context.Context, url string) (*geojson.FeatureCollection, error) {
	s.calls = append(s.calls, url)
	if s.err != nil {
		return nil, s.err
	}
	fc, ok := s.collections[url]
	if !ok {
		return nil, errors.New("not found")
	}
	return fc, nil
}

func square(x, y float64) orb.Polygon {
	return orb.Polygon{{{x, y}, {x + 0.1, y}, {x + 0.1, y + 0.1}, {x, y + 0.1}, {x, y}}}
}

func feature(g orb.Geometry, zip any) *geojson.Feature {
	f := geojson.NewFeature(g)
	f.Properties["ZCTA5CE10"] = zip
	return f
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestZipCounts(t *testing.T) {
	got := chart.ZipCounts(sampleRecords())

	require.Len(t, got, 3)
	assert.Equal(t, "92101", got[0].Zip)
	assert.Equal(t, 2, got[0].Count)
	assert.InDelta(t, math.Ln2, got[0].LogCount, 1e-9)
	assert.Equal(t, "92102", got[1].Zip)
	assert.Zero(t, got[1].LogCount)
	assert.Equal(t, "92103", got[2].Zip)
}

func TestLocationPopularity_Build(t *testing.T) {
	domain.SetClock(clockwork.NewFakeClockAt(time.Date(2024, time.May, 1, 12, 0, 0, 0, time.UTC)))
	t.Cleanup(func() { domain.SetClock(nil) })

	fc := geojson.NewFeatureCollection()
	fc.Append(feature(square(-117.2, 32.7), "92101"))
	fc.Append(feature(orb.MultiPolygon{square(-117.1, 32.7), square(-117.0, 32.8)}, float64(92102)))
	fc.Append(feature(square(-116.9, 32.9), "92199"))
	source := &stubSource{collections: map[string]*geojson.FeatureCollection{"https://example.test/ca.json": fc}}

	records := []domain.CleanedRecord{
		visit(at(time.January, 2, 9), "92101", nil, nil),
		visit(at(time.January, 3, 9), "92101", nil, nil),
		visit(at(time.January, 3, 9), "92102-0001", nil, nil),
		visit(at(time.January, 4, 9), "99999", nil, nil),
	}

	b := chart.NewLocationPopularity(source, chart.LocationOptions{URLs: []string{"https://example.test/ca.json"}}, discardLogger())
	assert.Equal(t, chart.NameLocationPopularity, b.Name())

	var buf bytes.Buffer
	require.NoError(t, b.Build(context.Background(), records, &buf))
	out := buf.String()

	assert.Equal(t, []string{"https://example.test/ca.json"}, source.calls)
	assert.Contains(t, out, `id="zip-92101"`)
	assert.Contains(t, out, `id="zip-92102"`)
	assert.NotContains(t, out, `id="zip-92199"`)
	assert.Contains(t, out, "92101: 2 visits (ln 0.69)")
	assert.Contains(t, out, "Postal codes without boundaries: 99999")
	assert.Contains(t, out, "Generated 2024-05-01 12:00 UTC")
	// Highest count takes the top of the ramp.
	assert.Contains(t, out, `fill="#db2b39"`)
}

func TestLocationPopularity_MergesSourcesFirstWins(t *testing.T) {
	first := geojson.NewFeatureCollection()
	first.Append(feature(square(-117.2, 32.7), "92101"))
	second := geojson.NewFeatureCollection()
	second.Append(feature(square(-100, 40), "92101"))
	second.Append(feature(square(-117.1, 32.7), "92102"))
	source := &stubSource{collections: map[string]*geojson.FeatureCollection{"a": first, "b": second}}

	records := []domain.CleanedRecord{
		visit(at(time.January, 2, 9), "92101", nil, nil),
		visit(at(time.January, 2, 9), "92102", nil, nil),
	}

	var buf bytes.Buffer
	b := chart.NewLocationPopularity(source, chart.LocationOptions{URLs: []string{"a", "b"}}, discardLogger())
	require.NoError(t, b.Build(context.Background(), records, &buf))

	assert.Contains(t, buf.String(), `id="zip-92101"`)
	assert.Contains(t, buf.String(), `id="zip-92102"`)
	assert.NotContains(t, buf.String(), "Postal codes without boundaries")
}

func TestLocationPopularity_NoMatches(t *testing.T) {
	source := &stubSource{collections: map[string]*geojson.FeatureCollection{"a": geojson.NewFeatureCollection()}}

	var buf bytes.Buffer
	b := chart.NewLocationPopularity(source, chart.LocationOptions{URLs: []string{"a"}}, discardLogger())
	require.NoError(t, b.Build(context.Background(), sampleRecords(), &buf))

	assert.Contains(t, buf.String(), "No postal codes matched the boundary data.")
	assert.Contains(t, buf.String(), "92101, 92102, 92103")
}

func TestLocationPopularity_Errors(t *testing.T) {
	t.Run("fetch failure", func(t *testing.T) {
		errDown := errors.New("connection refused")
		b := chart.NewLocationPopularity(&stubSource{err: errDown}, chart.LocationOptions{URLs: []string{"a"}}, discardLogger())

		var buf bytes.Buffer
		err := b.Build(context.Background(), sampleRecords(), &buf)
		require.ErrorIs(t, err, errDown)
		assert.Contains(t, err.Error(), "fetch boundaries")
		assert.Zero(t, buf.Len())
	})

	t.Run("no source configured", func(t *testing.T) {
		b := chart.NewLocationPopularity(&stubSource{}, chart.LocationOptions{}, discardLogger())
		require.Error(t, b.Build(context.Background(), sampleRecords(), io.Discard))
	})
}
