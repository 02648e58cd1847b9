// Package chart aggregates cleaned attendance records into the four
// exploration artifacts and renders them as self-contained HTML.
package chart

import (
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/nickswetUCSD/feeding-sd-exploration/internal/domain"
)

// Artifact names, also used as output file stems.
const (
	NameHoursDistribution   = "hours-distribution"
	NameWeektimeHeatmap     = "weektime-heatmap"
	NameParticipationByYear = "participation-by-year"
	NameLocationPopularity  = "location-popularity"
)

// Names returns the artifact names in the order they are reported.
func Names() []string {
	return []string{
		NameHoursDistribution,
		NameWeektimeHeatmap,
		NameParticipationByYear,
		NameLocationPopularity,
	}
}

// scale is the low-mid-high color ramp shared by the heatmap and choropleth.
var scale = []string{"#F7F4EA", "#DD757E", "#db2b39"}

const (
	barColor       = "#db2b39"
	trendLineColor = "#064789"
	averageColor   = "red"
)

func initOpts(id, pageTitle string) opts.Initialization {
	return opts.Initialization{
		PageTitle: pageTitle,
		ChartID:   id,
		Width:     "1100px",
		Height:    "600px",
	}
}

func generatedSubtitle() string {
	return "Generated " + domain.Now().Format("2006-01-02 15:04 MST")
}
