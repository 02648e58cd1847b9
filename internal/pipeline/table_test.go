package pipeline_test

import (
	"testing"

	"github.com/go-gota/gota/dataframe"
	"github.com/nickswetUCSD/feeding-sd-exploration/internal/adapter/tabular"
	"github.com/nickswetUCSD/feeding-sd-exploration/internal/domain"
	"github.com/stretchr/testify/require"
)

// row is one export line keyed by column name. Absent columns load as null.
type row map[string]string

// visit returns a complete row for a session on date from start to end.
func visit(date, start, end, zip string) row {
	return row{
		domain.ColUserID:          "u-" + zip,
		domain.ColCity:            "San Diego",
		domain.ColState:           "CA",
		domain.ColZip:             zip,
		domain.ColDateOfBirth:     "1990-05-05",
		domain.ColDate:            date,
		domain.ColTime:            start,
		domain.ColEndDate:         date,
		domain.ColEndTime:         end,
		domain.ColHours:           "2",
		domain.ColLanguagesSpoken: "English",
		domain.ColPublicGender:    "Female",
	}
}

func (r row) with(col, value string) row {
	out := make(row, len(r)+1)
	for k, v := range r {
		out[k] = v
	}
	out[col] = value
	return out
}

func (r row) without(col string) row {
	return r.with(col, "")
}

// table loads rows through the same path as a real export, plus any extra
// header columns.
func table(t *testing.T, rows []row, extra ...string) dataframe.DataFrame {
	t.Helper()
	header := append(domain.InputColumns(), extra...)
	records := make([][]string, 0, len(rows)+1)
	records = append(records, header)
	for _, r := range rows {
		rec := make([]string, len(header))
		for i, c := range header {
			rec[i] = r[c]
		}
		records = append(records, rec)
	}
	df, err := tabular.FromRecords(records)
	require.NoError(t, err)
	return df
}

func repeat(r row, n int) []row {
	out := make([]row, n)
	for i := range out {
		out[i] = r
	}
	return out
}
