package pipeline

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/nickswetUCSD/feeding-sd-exploration/internal/domain"
)

// naValue is how gota spells a missing cell when building series from strings.
const naValue = "NaN"

// DropReason labels why a row was removed during cleaning.
type DropReason string

const (
	DropBulkDate         DropReason = "bulk_date"
	DropMissingStartDate DropReason = "missing_start_date"
	DropMissingStartTime DropReason = "missing_start_time"
	DropMissingZip       DropReason = "missing_zip"
	DropUnparseableStart DropReason = "unparseable_start"
)

// DropReasons lists every reason in the order the stages apply them.
func DropReasons() []DropReason {
	return []DropReason{
		DropBulkDate,
		DropMissingStartDate,
		DropMissingStartTime,
		DropMissingZip,
		DropUnparseableStart,
	}
}

// CleanerConfig carries the tunables of the cleaning stages.
type CleanerConfig struct {
	WeekdayNames       [7]string
	BulkErrorThreshold int
	ParseFailurePolicy domain.ParseFailurePolicy
}

// DefaultCleanerConfig returns English weekday names, a bulk threshold of
// 5000 rows per date and the drop policy.
func DefaultCleanerConfig() CleanerConfig {
	return CleanerConfig{
		WeekdayNames:       domain.DefaultWeekdayNames(),
		BulkErrorThreshold: 5000,
		ParseFailurePolicy: domain.PolicyDrop,
	}
}

// BulkDate is a StartDate excluded because too many rows carried it.
type BulkDate struct {
	Date string
	Rows int
}

// CleanReport summarizes one Clean call.
type CleanReport struct {
	RowsIn          int
	RowsOut         int
	Dropped         map[DropReason]int
	BulkDates       []BulkDate
	NullWeekdays    int // rows whose StartDate did not parse at the weekday stage
	UnparseableEnds int // end timestamps nulled under the drop policy
}

// TotalDropped sums drops across all reasons.
func (r CleanReport) TotalDropped() int {
	n := 0
	for _, v := range r.Dropped {
		n += v
	}
	return n
}

func (r *CleanReport) drop(reason DropReason, n int) {
	if n == 0 {
		return
	}
	r.Dropped[reason] += n
}

// Stage is one step of the cleaning pipeline. Apply returns a new table and
// leaves its input untouched.
type Stage struct {
	Name  string
	Apply func(df dataframe.DataFrame, report *CleanReport) (dataframe.DataFrame, error)
}

// Cleaner turns a loaded export into the cleaned attendance table. It does no
// I/O and is deterministic for a given input and config.
type Cleaner struct {
	cfg    CleanerConfig
	stages []Stage
}

// NewCleaner builds a Cleaner. Zero-valued config fields fall back to
// DefaultCleanerConfig.
func NewCleaner(cfg CleanerConfig) *Cleaner {
	def := DefaultCleanerConfig()
	if cfg.BulkErrorThreshold <= 0 {
		cfg.BulkErrorThreshold = def.BulkErrorThreshold
	}
	if cfg.ParseFailurePolicy == "" {
		cfg.ParseFailurePolicy = def.ParseFailurePolicy
	}
	if cfg.WeekdayNames == ([7]string{}) {
		cfg.WeekdayNames = def.WeekdayNames
	}

	c := &Cleaner{cfg: cfg}
	c.stages = []Stage{
		{Name: "project", Apply: project},
		{Name: "alias", Apply: alias},
		{Name: "weekday", Apply: c.weekday},
		{Name: "bulk_dates", Apply: c.bulkDates},
		{Name: "required", Apply: required},
		{Name: "timestamps", Apply: c.timestamps},
		{Name: "calculated_hours", Apply: calculatedHours},
	}
	return c
}

// Stages returns the ordered stages. Later stages depend on columns derived
// by earlier ones.
func (c *Cleaner) Stages() []Stage {
	return append([]Stage(nil), c.stages...)
}

// Clean runs every stage in order.
func (c *Cleaner) Clean(df dataframe.DataFrame) (dataframe.DataFrame, CleanReport, error) {
	return c.CleanObserved(df, nil)
}

// CleanObserved is Clean with a callback invoked after each stage with its
// elapsed time.
func (c *Cleaner) CleanObserved(df dataframe.DataFrame, observe func(stage string, elapsed time.Duration)) (dataframe.DataFrame, CleanReport, error) {
	report := CleanReport{
		RowsIn:  df.Nrow(),
		Dropped: make(map[DropReason]int),
	}
	if df.Err != nil {
		return dataframe.DataFrame{}, report, fmt.Errorf("clean: %w", df.Err)
	}

	for _, s := range c.stages {
		start := time.Now()
		out, err := s.Apply(df, &report)
		if err != nil {
			return dataframe.DataFrame{}, report, fmt.Errorf("clean %s: %w", s.Name, err)
		}
		if out.Err != nil {
			return dataframe.DataFrame{}, report, fmt.Errorf("clean %s: %w", s.Name, out.Err)
		}
		if observe != nil {
			observe(s.Name, time.Since(start))
		}
		df = out
	}

	report.RowsOut = df.Nrow()
	return df, report, nil
}

// project keeps the twelve input columns, forces their types and numbers the
// rows so later defects can point back at the source.
func project(df dataframe.DataFrame, _ *CleanReport) (dataframe.DataFrame, error) {
	names := make(map[string]bool, df.Ncol())
	for _, n := range df.Names() {
		names[n] = true
	}
	var missing []string
	for _, c := range domain.InputColumns() {
		if !names[c] {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return dataframe.DataFrame{}, &domain.SchemaError{Missing: missing}
	}

	out := df.Select(domain.InputColumns())
	for _, c := range domain.InputColumns() {
		col := out.Col(c)
		want := series.String
		if c == domain.ColHours {
			want = series.Float
		}
		if col.Type() != want {
			out = out.Mutate(series.New(col.Records(), want, c))
		}
	}

	rows := make([]int, out.Nrow())
	for i := range rows {
		rows[i] = i + 1
	}
	return out.Mutate(series.New(rows, series.Int, domain.ColSourceRow)), nil
}

func alias(df dataframe.DataFrame, _ *CleanReport) (dataframe.DataFrame, error) {
	return df.
		Rename(domain.ColStartDate, domain.ColDate).
		Rename(domain.ColStartTime, domain.ColTime), nil
}

func (c *Cleaner) weekday(df dataframe.DataFrame, report *CleanReport) (dataframe.DataFrame, error) {
	dates, null := stringColumn(df, domain.ColStartDate)
	names := make([]string, len(dates))
	for i, d := range dates {
		names[i] = naValue
		if null[i] {
			report.NullWeekdays++
			continue
		}
		t, err := domain.ParseDate(d)
		if err != nil {
			report.NullWeekdays++
			continue
		}
		names[i] = domain.WeekdayName(t, c.cfg.WeekdayNames)
	}
	return df.Mutate(series.New(names, series.String, domain.ColWeekday)), nil
}

// bulkDates removes every row of a StartDate whose row count exceeds the
// threshold. Counting happens on the raw value before any other filter.
func (c *Cleaner) bulkDates(df dataframe.DataFrame, report *CleanReport) (dataframe.DataFrame, error) {
	dates, null := stringColumn(df, domain.ColStartDate)
	counts := make(map[string]int)
	for i, d := range dates {
		if !null[i] {
			counts[d]++
		}
	}

	excluded := make(map[string]bool)
	for d, n := range counts {
		if n > c.cfg.BulkErrorThreshold {
			excluded[d] = true
			report.BulkDates = append(report.BulkDates, BulkDate{Date: d, Rows: n})
		}
	}
	if len(excluded) == 0 {
		return df, nil
	}
	sort.Slice(report.BulkDates, func(i, j int) bool {
		return report.BulkDates[i].Date < report.BulkDates[j].Date
	})

	keep := make([]int, 0, len(dates))
	for i, d := range dates {
		if null[i] || !excluded[d] {
			keep = append(keep, i)
		}
	}
	report.drop(DropBulkDate, len(dates)-len(keep))
	return df.Subset(keep), nil
}

// required drops rows missing a StartDate, StartTime or OpportunityZip. A
// whitespace-only cell counts as missing.
func required(df dataframe.DataFrame, report *CleanReport) (dataframe.DataFrame, error) {
	dates, nullDate := stringColumn(df, domain.ColStartDate)
	times, nullTime := stringColumn(df, domain.ColStartTime)
	zips, nullZip := stringColumn(df, domain.ColZip)

	keep := make([]int, 0, len(dates))
	for i := range dates {
		switch {
		case nullDate[i] || domain.IsBlank(dates[i]):
			report.drop(DropMissingStartDate, 1)
		case nullTime[i] || domain.IsBlank(times[i]):
			report.drop(DropMissingStartTime, 1)
		case nullZip[i] || domain.IsBlank(zips[i]):
			report.drop(DropMissingZip, 1)
		default:
			keep = append(keep, i)
		}
	}
	if len(keep) == len(dates) {
		return df, nil
	}
	return df.Subset(keep), nil
}

// timestamps builds StartDateTime and EndDateTime. A missing EndDate with an
// EndTime present takes the StartDate.
func (c *Cleaner) timestamps(df dataframe.DataFrame, report *CleanReport) (dataframe.DataFrame, error) {
	dates, _ := stringColumn(df, domain.ColStartDate)
	times, _ := stringColumn(df, domain.ColStartTime)
	endDates, nullEndDate := stringColumn(df, domain.ColEndDate)
	endTimes, nullEndTime := stringColumn(df, domain.ColEndTime)
	sourceRows, err := df.Col(domain.ColSourceRow).Int()
	if err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("read source rows: %w", err)
	}

	keep := make([]int, 0, len(dates))
	starts := make([]string, 0, len(dates))
	ends := make([]string, 0, len(dates))
	for i := range dates {
		start, err := domain.ParseDateTime(dates[i], times[i])
		if err != nil {
			if c.cfg.ParseFailurePolicy == domain.PolicyFail {
				return dataframe.DataFrame{}, startRowError(sourceRows[i], dates[i], times[i], err)
			}
			report.drop(DropUnparseableStart, 1)
			continue
		}

		end := naValue
		if !nullEndTime[i] && !domain.IsBlank(endTimes[i]) {
			endDate := endDates[i]
			if nullEndDate[i] || domain.IsBlank(endDate) {
				endDate = dates[i]
			}
			t, err := domain.ParseDateTime(endDate, endTimes[i])
			switch {
			case err == nil:
				end = t.Format(domain.TimestampLayout)
			case c.cfg.ParseFailurePolicy == domain.PolicyFail:
				return dataframe.DataFrame{}, endRowError(sourceRows[i], endDate, endTimes[i], err)
			default:
				report.UnparseableEnds++
			}
		}

		keep = append(keep, i)
		starts = append(starts, start.Format(domain.TimestampLayout))
		ends = append(ends, end)
	}

	out := df
	if len(keep) != len(dates) {
		out = df.Subset(keep)
	}
	return out.
		Mutate(series.New(starts, series.String, domain.ColStartDateTime)).
		Mutate(series.New(ends, series.String, domain.ColEndDateTime)), nil
}

func startRowError(row int, date, clock string, err error) error {
	if _, derr := domain.ParseDate(date); derr != nil {
		return &domain.RowError{Row: row, Field: domain.ColDate, Value: date, Err: derr}
	}
	return &domain.RowError{Row: row, Field: domain.ColTime, Value: clock, Err: err}
}

func endRowError(row int, date, clock string, err error) error {
	if _, derr := domain.ParseDate(date); derr != nil {
		return &domain.RowError{Row: row, Field: domain.ColEndDate, Value: date, Err: derr}
	}
	return &domain.RowError{Row: row, Field: domain.ColEndTime, Value: clock, Err: err}
}

// calculatedHours keeps only the sub-day part of EndDateTime - StartDateTime.
// Rows without an end get a null.
func calculatedHours(df dataframe.DataFrame, _ *CleanReport) (dataframe.DataFrame, error) {
	starts, _ := stringColumn(df, domain.ColStartDateTime)
	ends, nullEnd := stringColumn(df, domain.ColEndDateTime)

	hours := make([]float64, len(starts))
	for i := range starts {
		hours[i] = math.NaN()
		if nullEnd[i] {
			continue
		}
		start, err := time.Parse(domain.TimestampLayout, starts[i])
		if err != nil {
			return dataframe.DataFrame{}, fmt.Errorf("parse start timestamp %q: %w", starts[i], err)
		}
		end, err := time.Parse(domain.TimestampLayout, ends[i])
		if err != nil {
			return dataframe.DataFrame{}, fmt.Errorf("parse end timestamp %q: %w", ends[i], err)
		}
		hours[i] = domain.CalculatedHours(start, end)
	}
	return df.Mutate(series.New(hours, series.Float, domain.ColCalculatedHours)), nil
}

// RawView projects a cleaned table back onto the export schema so it can be
// cleaned again.
func RawView(df dataframe.DataFrame) dataframe.DataFrame {
	cols := make([]string, 0, len(domain.InputColumns()))
	for _, c := range domain.InputColumns() {
		switch c {
		case domain.ColDate:
			c = domain.ColStartDate
		case domain.ColTime:
			c = domain.ColStartTime
		}
		cols = append(cols, c)
	}
	return df.Select(cols).
		Rename(domain.ColDate, domain.ColStartDate).
		Rename(domain.ColTime, domain.ColStartTime)
}

// stringColumn returns the cells of a column with nulls as empty strings,
// alongside the null mask.
func stringColumn(df dataframe.DataFrame, name string) ([]string, []bool) {
	col := df.Col(name)
	vals := col.Records()
	null := col.IsNaN()
	for i := range vals {
		if null[i] {
			vals[i] = ""
		}
	}
	return vals, null
}
