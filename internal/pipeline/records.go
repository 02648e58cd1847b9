package pipeline

import (
	"fmt"
	"math"
	"time"

	"github.com/go-gota/gota/dataframe"
	"github.com/nickswetUCSD/feeding-sd-exploration/internal/domain"
)

// Records converts a cleaned table into typed records, in table order. Every
// record in one call shares the same ProcessedAt.
func Records(df dataframe.DataFrame) ([]domain.CleanedRecord, error) {
	if df.Err != nil {
		return nil, fmt.Errorf("read cleaned table: %w", df.Err)
	}
	for _, c := range []string{domain.ColSourceRow, domain.ColStartDateTime, domain.ColEndDateTime, domain.ColCalculatedHours, domain.ColWeekday} {
		if df.Col(c).Err != nil {
			return nil, fmt.Errorf("read cleaned table: column %s not found", c)
		}
	}

	userIDs, _ := stringColumn(df, domain.ColUserID)
	cities, _ := stringColumn(df, domain.ColCity)
	states, _ := stringColumn(df, domain.ColState)
	zips, _ := stringColumn(df, domain.ColZip)
	dobs, _ := stringColumn(df, domain.ColDateOfBirth)
	startDates, _ := stringColumn(df, domain.ColStartDate)
	startTimes, _ := stringColumn(df, domain.ColStartTime)
	endDates, _ := stringColumn(df, domain.ColEndDate)
	endTimes, _ := stringColumn(df, domain.ColEndTime)
	weekdays, _ := stringColumn(df, domain.ColWeekday)
	starts, _ := stringColumn(df, domain.ColStartDateTime)
	ends, nullEnd := stringColumn(df, domain.ColEndDateTime)
	languages, _ := stringColumn(df, domain.ColLanguagesSpoken)
	genders, _ := stringColumn(df, domain.ColPublicGender)
	hours := df.Col(domain.ColHours).Float()
	calculated := df.Col(domain.ColCalculatedHours).Float()
	sourceRows, err := df.Col(domain.ColSourceRow).Int()
	if err != nil {
		return nil, fmt.Errorf("read source rows: %w", err)
	}

	processedAt := domain.Now()
	records := make([]domain.CleanedRecord, df.Nrow())
	for i := range records {
		start, err := time.Parse(domain.TimestampLayout, starts[i])
		if err != nil {
			return nil, fmt.Errorf("row %d: parse start timestamp: %w", sourceRows[i], err)
		}
		rec := domain.CleanedRecord{
			ID:              domain.RecordID(userIDs[i], start, zips[i]),
			SourceRow:       sourceRows[i],
			UserID:          userIDs[i],
			City:            cities[i],
			State:           states[i],
			Zip:             zips[i],
			DateOfBirth:     dobs[i],
			StartDate:       startDates[i],
			StartTime:       startTimes[i],
			EndDate:         endDates[i],
			EndTime:         endTimes[i],
			Weekday:         weekdays[i],
			StartDateTime:   start,
			Hours:           optionalFloat(hours[i]),
			CalculatedHours: optionalFloat(calculated[i]),
			LanguagesSpoken: languages[i],
			PublicGender:    genders[i],
			ProcessedAt:     processedAt,
		}
		if !nullEnd[i] {
			end, err := time.Parse(domain.TimestampLayout, ends[i])
			if err != nil {
				return nil, fmt.Errorf("row %d: parse end timestamp: %w", sourceRows[i], err)
			}
			rec.EndDateTime = &end
		}
		records[i] = rec
	}
	return records, nil
}

// optionalFloat maps NaN and ±Inf to null.
func optionalFloat(f float64) *float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}
