package chart

import (
	"context"
	"fmt"
	"io"
	"math"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/nickswetUCSD/feeding-sd-exploration/internal/domain"
)

// HoursOptions controls the session-length histogram.
type HoursOptions struct {
	Bins            int
	MaxSessionHours float64
	// Raw plots the recorded Hours as-is, skipping the cap and the
	// zero-hour substitution.
	Raw bool
}

// DefaultHoursOptions returns 24 bins capped at 24 hours.
func DefaultHoursOptions() HoursOptions {
	return HoursOptions{Bins: 24, MaxSessionHours: 24}
}

// SessionLengths picks the value each record contributes to the histogram.
// Records above the cap are left out. A recorded zero is replaced with the
// calculated duration, and dropped when that is unknown.
func SessionLengths(records []domain.CleanedRecord, o HoursOptions) []float64 {
	out := make([]float64, 0, len(records))
	for _, r := range records {
		if r.Hours == nil {
			continue
		}
		h := *r.Hours
		if !finite(h) {
			continue
		}
		if o.Raw {
			out = append(out, h)
			continue
		}
		if h > o.MaxSessionHours {
			continue
		}
		if h == 0 {
			if r.CalculatedHours == nil {
				continue
			}
			h = *r.CalculatedHours
			if !finite(h) {
				continue
			}
		}
		out = append(out, h)
	}
	return out
}

// Bin is one histogram bucket covering [Lower, Upper).
type Bin struct {
	Lower float64
	Upper float64
	Count int
}

// Histogram splits [min, max] of values into n equal-width bins. The maximum
// lands in the last bin. When every value is equal the range is widened by
// half a unit on each side. NaN and infinite values are not counted.
func Histogram(values []float64, n int) []Bin {
	if n <= 0 {
		return nil
	}
	lo, hi := math.Inf(1), math.Inf(-1)
	counted := 0
	for _, v := range values {
		if !finite(v) {
			continue
		}
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
		counted++
	}
	if counted == 0 {
		return nil
	}
	if lo == hi {
		lo -= 0.5
		hi += 0.5
	}
	bins := make([]Bin, n)
	if width := (hi - lo) / float64(n); finite(width) {
		for i := range bins {
			bins[i].Lower = lo + float64(i)*width
			bins[i].Upper = lo + float64(i+1)*width
		}
		for _, v := range values {
			if finite(v) {
				bins[binIndex((v-lo)/width, n)].Count++
			}
		}
	} else {
		// The span overflows float64; halved endpoints keep it finite.
		half := hi/2 - lo/2
		for i := range bins {
			bins[i].Lower = 2 * (lo/2 + half*float64(i)/float64(n))
			bins[i].Upper = 2 * (lo/2 + half*float64(i+1)/float64(n))
		}
		for _, v := range values {
			if finite(v) {
				bins[binIndex((v/2-lo/2)/half*float64(n), n)].Count++
			}
		}
	}
	bins[0].Lower = lo
	bins[n-1].Upper = hi
	return bins
}

// HoursDistribution renders the session-length histogram.
type HoursDistribution struct {
	opts HoursOptions
}

// NewHoursDistribution creates the builder. Zero-valued options fall back to
// DefaultHoursOptions.
func NewHoursDistribution(o HoursOptions) *HoursDistribution {
	def := DefaultHoursOptions()
	if o.Bins <= 0 {
		o.Bins = def.Bins
	}
	if o.MaxSessionHours <= 0 {
		o.MaxSessionHours = def.MaxSessionHours
	}
	return &HoursDistribution{opts: o}
}

func (h *HoursDistribution) Name() string { return NameHoursDistribution }

func (h *HoursDistribution) Build(_ context.Context, records []domain.CleanedRecord, w io.Writer) error {
	bins := Histogram(SessionLengths(records, h.opts), h.opts.Bins)

	labels := make([]string, len(bins))
	data := make([]opts.BarData, len(bins))
	for i, b := range bins {
		labels[i] = fmt.Sprintf("%.1f-%.1f", b.Lower, b.Upper)
		data[i] = opts.BarData{Value: b.Count}
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(initOpts("hours_distribution", "Volunteer Session Lengths")),
		charts.WithTitleOpts(opts.Title{
			Title:    "Distribution of Volunteer Session Lengths (Hours)",
			Subtitle: generatedSubtitle(),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(false)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Volunteer Session Length (Hours)", NameLocation: "middle", NameGap: 30}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Count of Sessions"}),
	)
	bar.SetXAxis(labels).AddSeries("sessions", data,
		charts.WithBarChartOpts(opts.BarChart{BarCategoryGap: "2%"}),
		charts.WithItemStyleOpts(opts.ItemStyle{Color: barColor}),
	)

	if err := bar.Render(w); err != nil {
		return fmt.Errorf("render %s: %w", NameHoursDistribution, err)
	}
	return nil
}

// binIndex clamps a fractional bin position into [0, n).
func binIndex(pos float64, n int) int {
	switch {
	case pos < 0 || math.IsNaN(pos):
		return 0
	case pos >= float64(n):
		return n - 1
	}
	return int(pos)
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
