package chart

import (
	"context"
	"fmt"
	"io"
	"math"
	"sort"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/nickswetUCSD/feeding-sd-exploration/internal/domain"
)

// DayCount is the number of visits on one calendar day.
type DayCount struct {
	Month time.Month
	Day   int
	Count int
}

// Trend is the daily participation series for one year.
type Trend struct {
	Days []DayCount // sorted by month, then day
	// YearAverage is total rows divided by the number of distinct StartDate
	// values.
	YearAverage float64
}

// Months returns the months present in the series, in calendar order.
func (t Trend) Months() []time.Month {
	var out []time.Month
	for _, d := range t.Days {
		if len(out) == 0 || out[len(out)-1] != d.Month {
			out = append(out, d.Month)
		}
	}
	return out
}

// AnnualTrend counts visits per StartDate and orders them by month and day.
// Different spellings of the same day are merged.
func AnnualTrend(records []domain.CleanedRecord) Trend {
	type key struct {
		month time.Month
		day   int
	}
	counts := make(map[key]int)
	distinct := make(map[string]bool)
	total := 0
	for _, r := range records {
		counts[key{r.StartDateTime.Month(), r.StartDateTime.Day()}]++
		distinct[r.StartDate] = true
		total++
	}

	t := Trend{Days: make([]DayCount, 0, len(counts))}
	for k, n := range counts {
		t.Days = append(t.Days, DayCount{Month: k.month, Day: k.day, Count: n})
	}
	sort.Slice(t.Days, func(i, j int) bool {
		if t.Days[i].Month != t.Days[j].Month {
			return t.Days[i].Month < t.Days[j].Month
		}
		return t.Days[i].Day < t.Days[j].Day
	})
	if len(distinct) > 0 {
		t.YearAverage = float64(total) / float64(len(distinct))
	}
	return t
}

// ParticipationByYear renders one daily line chart per month with the year
// average drawn across each.
type ParticipationByYear struct{}

// NewParticipationByYear creates the builder.
func NewParticipationByYear() *ParticipationByYear {
	return &ParticipationByYear{}
}

func (p *ParticipationByYear) Name() string { return NameParticipationByYear }

func (p *ParticipationByYear) Build(_ context.Context, records []domain.CleanedRecord, w io.Writer) error {
	t := AnnualTrend(records)
	average := math.Round(t.YearAverage*100) / 100

	page := components.NewPage()
	page.SetPageTitle("Daily Volunteers Across The Year")
	page.SetLayout(components.PageFlexLayout)

	for _, m := range t.Months() {
		var (
			days   []int
			points []opts.LineData
		)
		for _, d := range t.Days {
			if d.Month != m {
				continue
			}
			days = append(days, d.Day)
			points = append(points, opts.LineData{Value: d.Count})
		}

		line := charts.NewLine()
		line.SetGlobalOptions(
			charts.WithInitializationOpts(opts.Initialization{
				ChartID: fmt.Sprintf("participation_%02d", int(m)),
				Width:   "520px",
				Height:  "300px",
			}),
			charts.WithTitleOpts(opts.Title{Title: m.String()}),
			charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
			charts.WithXAxisOpts(opts.XAxis{Name: "Day", Type: "category"}),
			charts.WithYAxisOpts(opts.YAxis{Name: "Volunteers"}),
		)
		line.SetXAxis(days).AddSeries("Volunteers", points,
			charts.WithLineStyleOpts(opts.LineStyle{Color: trendLineColor, Width: 2}),
			charts.WithItemStyleOpts(opts.ItemStyle{Color: trendLineColor}),
			charts.WithMarkLineNameYAxisItemOpts(opts.MarkLineNameYAxisItem{Name: "Year average", YAxis: average}),
			charts.WithMarkLineStyleOpts(opts.MarkLineStyle{
				Symbol:    []string{"none", "none"},
				LineStyle: &opts.LineStyle{Color: averageColor, Type: "dotted"},
			}),
		)
		page.AddCharts(line)
	}

	if err := page.Render(w); err != nil {
		return fmt.Errorf("render %s: %w", NameParticipationByYear, err)
	}
	return nil
}
