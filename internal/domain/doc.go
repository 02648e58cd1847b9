// Package domain models volunteer attendance records exported from the
// volunteer management system, one row per check-in.
//
// # Data Source
//
// The export is a yearly CSV (or XLSX) download with one row per volunteer
// visit. Header names in the raw export contain spaces ("User ID",
// "Opportunity Zip", "Date of Birth"); the loader compacts them to the
// canonical names listed in [InputColumns].
//
// # Export Conventions
//
// Date format:
//
//	"M/D/YYYY" in most exports, e.g. "7/1/2022"; ISO "2022-07-01" in newer ones.
//	Both are accepted, see [ParseDate].
//
// Time format:
//
//	12-hour clock with meridiem, e.g. "09:00 AM" or "5:30 PM".
//	24-hour "HH:MM" values also appear after spreadsheet round trips.
//	See [ParseClock].
//
// Hours:
//
//	Self-reported session length. A value of 0 usually means the volunteer
//	never checked out; the chart layer substitutes the calculated duration.
//
// # Cleaning Heuristics
//
// Bulk-entry errors:
//
//	A backfill occasionally stamps thousands of visits with a single date
//	(in the 2023 export, roughly 14000 rows on July 1st, 2022). Any date with
//	more rows than the configured threshold is removed wholesale.
//
// Calculated hours:
//
//	End minus start, keeping only the sub-day component. Sessions are assumed
//	to be shorter than 24 hours, so a session crossing midnight wraps to the
//	wall-clock difference. See [CalculatedHours].
//
// Weekday:
//
//	Monday=0 through Sunday=6, mapped onto a configurable name table.
//	See [WeekdayName].
//
// # ID Generation
//
// Record IDs are deterministic SHA-256 hashes of user|start|zip so that
// downstream consumers can upsert idempotently when a run is replayed.
// See [RecordID].
package domain
