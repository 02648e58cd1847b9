package chart

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"html/template"
	"io"
	"log/slog"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
	"github.com/nickswetUCSD/feeding-sd-exploration/internal/domain"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

//go:embed location.html.tmpl
var locationTemplateText string

var locationTemplate = template.Must(template.New("location").Parse(locationTemplateText))

const mapWidth = 900.0

// ZipCount is the visit count for one five-digit postal code.
type ZipCount struct {
	Zip      string
	Count    int
	LogCount float64 // natural log of Count
}

// ZipCounts groups records by normalized OpportunityZip, sorted by zip.
// Only zips with at least one visit appear, so LogCount is always defined.
func ZipCounts(records []domain.CleanedRecord) []ZipCount {
	counts := make(map[string]int)
	for _, r := range records {
		counts[domain.NormalizeZip(r.Zip)]++
	}
	out := make([]ZipCount, 0, len(counts))
	for zip, n := range counts {
		if n <= 0 {
			continue
		}
		out = append(out, ZipCount{Zip: zip, Count: n, LogCount: math.Log(float64(n))})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Zip < out[j].Zip })
	return out
}

// LocationOptions points the choropleth at its boundary documents.
type LocationOptions struct {
	URLs []string
	Key  string // feature property holding the postal code
}

// LocationPopularity renders an SVG choropleth of ln(visits) per postal
// code. Boundary polygons come from the source at build time; a fetch
// failure fails only this artifact.
type LocationPopularity struct {
	source domain.BoundarySource
	opts   LocationOptions
	logger *slog.Logger
}

// NewLocationPopularity creates the builder.
func NewLocationPopularity(source domain.BoundarySource, o LocationOptions, logger *slog.Logger) *LocationPopularity {
	if o.Key == "" {
		o.Key = "ZCTA5CE10"
	}
	return &LocationPopularity{source: source, opts: o, logger: logger}
}

func (l *LocationPopularity) Name() string { return NameLocationPopularity }

func (l *LocationPopularity) Build(ctx context.Context, records []domain.CleanedRecord, w io.Writer) error {
	if len(l.opts.URLs) == 0 {
		return errors.New("no boundary source configured")
	}

	shapes := make(map[string]orb.Geometry)
	for _, url := range l.opts.URLs {
		fc, err := l.source.FetchBoundaries(ctx, url)
		if err != nil {
			return fmt.Errorf("fetch boundaries: %w", err)
		}
		for _, f := range fc.Features {
			zip, ok := featureZip(f, l.opts.Key)
			if !ok || f.Geometry == nil {
				continue
			}
			if _, seen := shapes[zip]; !seen {
				shapes[zip] = f.Geometry
			}
		}
	}

	counts := ZipCounts(records)
	var matched []ZipCount
	var unmatched []string
	for _, c := range counts {
		if _, ok := shapes[c.Zip]; ok {
			matched = append(matched, c)
		} else {
			unmatched = append(unmatched, c.Zip)
		}
	}
	if len(unmatched) > 0 {
		l.logger.Warn("postal codes without boundary", "count", len(unmatched), "zips", unmatched)
	}

	page, err := buildLocationPage(matched, shapes)
	if err != nil {
		return err
	}
	page.Unmatched = unmatched

	if err := locationTemplate.Execute(w, page); err != nil {
		return fmt.Errorf("render %s: %w", NameLocationPopularity, err)
	}
	return nil
}

func featureZip(f *geojson.Feature, key string) (string, bool) {
	switch v := f.Properties[key].(type) {
	case string:
		return domain.NormalizeZip(v), v != ""
	case float64:
		return domain.NormalizeZip(strconv.FormatFloat(v, 'f', -1, 64)), true
	default:
		return "", false
	}
}

type region struct {
	Zip   string
	Count int
	Log   string
	Path  string
	Fill  string
}

type gradientStop struct {
	Offset string
	Color  string
}

type locationPage struct {
	Title     string
	Subtitle  string
	Width     int
	Height    int
	Regions   []region
	Stops     []gradientStop
	MinLabel  string
	MaxLabel  string
	Unmatched []string
}

func buildLocationPage(matched []ZipCount, shapes map[string]orb.Geometry) (locationPage, error) {
	page := locationPage{
		Title:    "Participation by Postal Code (Log of Total Daily Volunteers)",
		Subtitle: generatedSubtitle(),
		Width:    int(mapWidth),
		Height:   int(mapWidth / 2),
		Stops:    gradientStops(scale),
	}
	if len(matched) == 0 {
		return page, nil
	}

	bound := shapes[matched[0].Zip].Bound()
	lo, hi := matched[0].LogCount, matched[0].LogCount
	for _, c := range matched[1:] {
		bound = bound.Union(shapes[c.Zip].Bound())
		lo = math.Min(lo, c.LogCount)
		hi = math.Max(hi, c.LogCount)
	}
	proj := newProjection(bound)
	page.Height = int(math.Ceil(proj.height))
	page.MinLabel = strconv.FormatFloat(lo, 'f', 2, 64)
	page.MaxLabel = strconv.FormatFloat(hi, 'f', 2, 64)

	ramp, err := newRamp(scale)
	if err != nil {
		return page, err
	}

	for _, c := range matched {
		t := 1.0
		if hi > lo {
			t = (c.LogCount - lo) / (hi - lo)
		}
		page.Regions = append(page.Regions, region{
			Zip:   c.Zip,
			Count: c.Count,
			Log:   strconv.FormatFloat(c.LogCount, 'f', 2, 64),
			Path:  proj.path(shapes[c.Zip]),
			Fill:  ramp.at(t),
		})
	}
	return page, nil
}

func gradientStops(colors []string) []gradientStop {
	stops := make([]gradientStop, len(colors))
	for i, c := range colors {
		offset := 0.0
		if len(colors) > 1 {
			offset = float64(i) / float64(len(colors)-1)
		}
		stops[i] = gradientStop{Offset: strconv.FormatFloat(offset, 'f', 2, 64), Color: c}
	}
	return stops
}

// projection is an equirectangular projection scaled to mapWidth, with
// longitude compressed by the cosine of the middle latitude.
type projection struct {
	bound  orb.Bound
	kx, ky float64
	height float64
}

func newProjection(b orb.Bound) projection {
	midLat := (b.Min.Y() + b.Max.Y()) / 2
	spanX := (b.Max.X() - b.Min.X()) * math.Cos(midLat*math.Pi/180)
	spanY := b.Max.Y() - b.Min.Y()
	if spanX <= 0 {
		spanX = 1
	}
	k := mapWidth / spanX
	return projection{
		bound:  b,
		kx:     k * math.Cos(midLat*math.Pi/180),
		ky:     k,
		height: math.Max(spanY*k, 1),
	}
}

func (p projection) point(pt orb.Point) (float64, float64) {
	return (pt.X() - p.bound.Min.X()) * p.kx, (p.bound.Max.Y() - pt.Y()) * p.ky
}

func (p projection) path(g orb.Geometry) string {
	var sb strings.Builder
	var polys []orb.Polygon
	switch v := g.(type) {
	case orb.Polygon:
		polys = []orb.Polygon{v}
	case orb.MultiPolygon:
		polys = v
	case orb.Ring:
		polys = []orb.Polygon{{v}}
	}
	for _, poly := range polys {
		for _, ring := range poly {
			for i, pt := range ring {
				x, y := p.point(pt)
				cmd := 'L'
				if i == 0 {
					cmd = 'M'
				}
				fmt.Fprintf(&sb, "%c%.1f,%.1f", cmd, x, y)
			}
			if len(ring) > 0 {
				sb.WriteByte('Z')
			}
		}
	}
	return sb.String()
}

// ramp interpolates in Lab space across evenly spaced color stops.
type ramp []colorful.Color

func newRamp(hexes []string) (ramp, error) {
	r := make(ramp, len(hexes))
	for i, h := range hexes {
		c, err := colorful.Hex(h)
		if err != nil {
			return nil, fmt.Errorf("parse color %q: %w", h, err)
		}
		r[i] = c
	}
	return r, nil
}

func (r ramp) at(t float64) string {
	if len(r) == 1 {
		return r[0].Hex()
	}
	t = math.Max(0, math.Min(1, t))
	seg := t * float64(len(r)-1)
	i := int(seg)
	if i >= len(r)-1 {
		return r[len(r)-1].Hex()
	}
	return r[i].BlendLab(r[i+1], seg-float64(i)).Clamped().Hex()
}
