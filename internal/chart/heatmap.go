package chart

import (
	"context"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/nickswetUCSD/feeding-sd-exploration/internal/domain"
)

// HeatmapOptions controls the week-view heatmap.
type HeatmapOptions struct {
	BucketHours  int     // must divide 24
	WeeksPerYear float64 // counts are divided by this to give a weekly average
	WeekdayNames [7]string
}

// DefaultHeatmapOptions returns 4-hour buckets over a 52-week year.
func DefaultHeatmapOptions() HeatmapOptions {
	return HeatmapOptions{
		BucketHours:  4,
		WeeksPerYear: 52,
		WeekdayNames: domain.DefaultWeekdayNames(),
	}
}

// withDefaults replaces invalid bucket sizes, week counts and empty names
// with the defaults.
func (o HeatmapOptions) withDefaults() HeatmapOptions {
	def := DefaultHeatmapOptions()
	if o.BucketHours <= 0 || 24%o.BucketHours != 0 {
		o.BucketHours = def.BucketHours
	}
	if o.WeeksPerYear <= 0 {
		o.WeeksPerYear = def.WeeksPerYear
	}
	if o.WeekdayNames == ([7]string{}) {
		o.WeekdayNames = def.WeekdayNames
	}
	return o
}

// WeekGrid holds average arrivals per weekday and time-of-day bucket.
// Days run Sunday through Saturday; Values is indexed [day][bucket].
type WeekGrid struct {
	Days    []string
	Buckets []string
	Values  [][]float64
}

// Max returns the largest cell value.
func (g WeekGrid) Max() float64 {
	m := 0.0
	for _, row := range g.Values {
		for _, v := range row {
			m = math.Max(m, v)
		}
	}
	return m
}

// WeekHeatmap floors each start to its hour, then to the bucket, counts rows
// per (weekday, bucket) and divides by the weeks per year.
func WeekHeatmap(records []domain.CleanedRecord, o HeatmapOptions) WeekGrid {
	o = o.withDefaults()
	buckets := 24 / o.BucketHours
	g := WeekGrid{
		Days:    make([]string, 7),
		Buckets: make([]string, buckets),
		Values:  make([][]float64, 7),
	}
	for d := range g.Days {
		// time.Weekday counts from Sunday; names are indexed from Monday.
		g.Days[d] = o.WeekdayNames[(d+6)%7]
		g.Values[d] = make([]float64, buckets)
	}
	for b := range g.Buckets {
		g.Buckets[b] = hourLabel(b * o.BucketHours)
	}

	for _, r := range records {
		day := int(r.StartDateTime.Weekday())
		bucket := r.StartDateTime.Hour() / o.BucketHours
		g.Values[day][bucket]++
	}
	for d := range g.Values {
		for b := range g.Values[d] {
			g.Values[d][b] /= o.WeeksPerYear
		}
	}
	return g
}

// hourLabel renders an hour of day as "12 AM", "4 PM" and so on.
func hourLabel(hour int) string {
	return time.Date(2000, 1, 1, hour, 0, 0, 0, time.UTC).Format("3 PM")
}

// WeektimeHeatmap renders average arrivals by weekday and time of day.
type WeektimeHeatmap struct {
	opts HeatmapOptions
}

// NewWeektimeHeatmap creates the builder.
func NewWeektimeHeatmap(o HeatmapOptions) *WeektimeHeatmap {
	return &WeektimeHeatmap{opts: o.withDefaults()}
}

func (h *WeektimeHeatmap) Name() string { return NameWeektimeHeatmap }

func (h *WeektimeHeatmap) Build(_ context.Context, records []domain.CleanedRecord, w io.Writer) error {
	g := WeekHeatmap(records, h.opts)

	data := make([]opts.HeatMapData, 0, len(g.Days)*len(g.Buckets))
	for d := range g.Days {
		for b := range g.Buckets {
			data = append(data, opts.HeatMapData{Value: [3]any{d, b, math.Round(g.Values[d][b]*100) / 100}})
		}
	}

	peak := g.Max()
	if peak == 0 {
		peak = 1
	}

	hm := charts.NewHeatMap()
	hm.SetGlobalOptions(
		charts.WithInitializationOpts(initOpts("weektime_heatmap", "Volunteer Participation (Week View)")),
		charts.WithTitleOpts(opts.Title{
			Title:    "Average Distribution of Volunteer Participation (Week View)",
			Subtitle: generatedSubtitle(),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{
			Name:      "Day of Week",
			Type:      "category",
			Data:      g.Days,
			SplitArea: &opts.SplitArea{Show: opts.Bool(true)},
		}),
		charts.WithYAxisOpts(opts.YAxis{
			Name:      "Time of Day",
			Type:      "category",
			Data:      g.Buckets,
			Inverse:   opts.Bool(true),
			SplitArea: &opts.SplitArea{Show: opts.Bool(true)},
		}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Calculable: opts.Bool(true),
			Min:        0,
			Max:        float32(peak),
			Text:       []string{"Average Volunteer Arrivals"},
			InRange:    &opts.VisualMapInRange{Color: scale},
		}),
	)
	hm.SetXAxis(g.Days).AddSeries("arrivals", data)

	if err := hm.Render(w); err != nil {
		return fmt.Errorf("render %s: %w", NameWeektimeHeatmap, err)
	}
	return nil
}
