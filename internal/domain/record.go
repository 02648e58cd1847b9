package domain

import (
	"time"
)

// Input columns as they appear (after header compaction) in the export.
const (
	ColUserID          = "UserID"
	ColCity            = "OpportunityCity"
	ColState           = "OpportunityState"
	ColZip             = "OpportunityZip"
	ColDateOfBirth     = "DateOfBirth"
	ColDate            = "Date"
	ColTime            = "Time"
	ColEndDate         = "EndDate"
	ColEndTime         = "EndTime"
	ColHours           = "Hours"
	ColLanguagesSpoken = "LanguagesSpoken"
	ColPublicGender    = "PublicGender"
)

// Columns derived during cleaning.
const (
	ColStartDate       = "StartDate"
	ColStartTime       = "StartTime"
	ColWeekday         = "Weekday"
	ColStartDateTime   = "StartDateTime"
	ColEndDateTime     = "EndDateTime"
	ColCalculatedHours = "CalculatedHours"
	ColSourceRow       = "SourceRow"
)

// TimestampLayout is how derived timestamps are stored in the cleaned table.
const TimestampLayout = "2006-01-02 15:04:05"

// InputColumns returns the twelve export columns the pipeline keeps, in order.
func InputColumns() []string {
	return []string{
		ColUserID,
		ColCity,
		ColState,
		ColZip,
		ColDateOfBirth,
		ColDate,
		ColTime,
		ColEndDate,
		ColEndTime,
		ColHours,
		ColLanguagesSpoken,
		ColPublicGender,
	}
}

// DefaultWeekdayNames returns English weekday names indexed Monday=0..Sunday=6.
func DefaultWeekdayNames() [7]string {
	return [7]string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"}
}

// ParseFailurePolicy decides what happens to a row whose timestamp fields
// cannot be parsed.
type ParseFailurePolicy string

const (
	// PolicyDrop removes rows with an unparseable start and nulls an
	// unparseable end.
	PolicyDrop ParseFailurePolicy = "drop"
	// PolicyFail aborts the run on the first unparseable timestamp.
	PolicyFail ParseFailurePolicy = "fail"
)

// CleanedRecord is the typed view of one row that survived cleaning.
type CleanedRecord struct {
	ID              string     `json:"id"`
	SourceRow       int        `json:"source_row"`
	UserID          string     `json:"user_id,omitempty"`
	City            string     `json:"city,omitempty"`
	State           string     `json:"state,omitempty"`
	Zip             string     `json:"zip"`
	DateOfBirth     string     `json:"-"`
	StartDate       string     `json:"start_date"`
	StartTime       string     `json:"start_time"`
	EndDate         string     `json:"end_date,omitempty"`
	EndTime         string     `json:"end_time,omitempty"`
	Weekday         string     `json:"weekday"`
	StartDateTime   time.Time  `json:"start"`
	EndDateTime     *time.Time `json:"end,omitempty"`
	Hours           *float64   `json:"hours,omitempty"`
	CalculatedHours *float64   `json:"calculated_hours,omitempty"`
	LanguagesSpoken string     `json:"languages_spoken,omitempty"`
	PublicGender    string     `json:"public_gender,omitempty"`
	ProcessedAt     time.Time  `json:"processed_at"`
}
