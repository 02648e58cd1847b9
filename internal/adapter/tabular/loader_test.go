package tabular_test

import (
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/nickswetUCSD/feeding-sd-exploration/internal/adapter/tabular"
	"github.com/nickswetUCSD/feeding-sd-exploration/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

const exportHeader = "User ID,Opportunity City,Opportunity State,Opportunity Zip,Date of Birth,Date,Time,End Date,End Time,Hours,Languages Spoken,Public Gender,Notes\n"

func newLoader() *tabular.Loader {
	return tabular.NewLoader(',', slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_CSVWithBOMAndSpacedHeaders(t *testing.T) {
	path := writeFile(t, "export.csv", "\ufeff"+exportHeader+
		"u1,San Diego,CA,92101,1990-01-01,2023-01-02,9:00 AM,2023-01-02,5:00 PM,8,English,Female,first\n"+
		"u2,\"La Jolla, North\",CA,,,2023-01-03,10:00 AM,,,abc,,,\n")

	df, err := newLoader().Load(path)
	require.NoError(t, err)

	assert.Equal(t, 2, df.Nrow())
	for _, c := range domain.InputColumns() {
		assert.Contains(t, df.Names(), c)
	}
	assert.Contains(t, df.Names(), "Notes")

	assert.Equal(t, []string{"San Diego", "La Jolla, North"}, df.Col(domain.ColCity).Records())
	assert.Equal(t, []bool{false, true}, df.Col(domain.ColZip).IsNaN())

	hours := df.Col(domain.ColHours).Float()
	assert.InDelta(t, 8.0, hours[0], 1e-9)
	assert.True(t, math.IsNaN(hours[1]), "unparseable hours load as null")
}

func TestLoad_PreservesRowOrder(t *testing.T) {
	path := writeFile(t, "export.csv", exportHeader+
		"c,,,92103,,2023-01-03,9:00 AM,,,1,,,\n"+
		"a,,,92101,,2023-01-01,9:00 AM,,,1,,,\n"+
		"b,,,92102,,2023-01-02,9:00 AM,,,1,,,\n")

	df, err := newLoader().Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "a", "b"}, df.Col(domain.ColUserID).Records())
}

func TestLoad_TSVByExtension(t *testing.T) {
	path := writeFile(t, "export.tsv",
		"UserID\tOpportunityZip\tDate\tTime\tHours\n"+
			"u1\t92101\t2023-01-02\t9:00 AM\t2.5\n")

	df, err := newLoader().Load(path)
	require.NoError(t, err)
	assert.Equal(t, 1, df.Nrow())
	assert.Equal(t, []string{"92101"}, df.Col(domain.ColZip).Records())
	assert.InDelta(t, 2.5, df.Col(domain.ColHours).Float()[0], 1e-9)
}

func TestLoad_ConfiguredDelimiter(t *testing.T) {
	path := writeFile(t, "export.txt", "UserID;OpportunityZip;Date\nu1;92101;2023-01-02\n")

	l := tabular.NewLoader(';', slog.New(slog.NewTextHandler(io.Discard, nil)))
	df, err := l.Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"2023-01-02"}, df.Col(domain.ColDate).Records())
}

func TestLoad_PadsShortRows(t *testing.T) {
	path := writeFile(t, "export.csv", "UserID,OpportunityZip,Date,Time\nu1,92101\n")

	df, err := newLoader().Load(path)
	require.NoError(t, err)
	assert.Equal(t, 1, df.Nrow())
	assert.Equal(t, []bool{true}, df.Col(domain.ColTime).IsNaN())
}

func TestLoad_HeaderOnly(t *testing.T) {
	path := writeFile(t, "export.csv", exportHeader)

	df, err := newLoader().Load(path)
	require.NoError(t, err)
	assert.Equal(t, 0, df.Nrow())
	assert.Contains(t, df.Names(), domain.ColDate)
}

func TestLoad_XLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "export.xlsx")
	f := excelize.NewFile()
	require.NoError(t, f.SetSheetRow("Sheet1", "A1", &[]any{"User ID", "Opportunity Zip", "Date", "Time", "Hours"}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A2", &[]any{"u1", "92101", "2023-01-02", "9:00 AM", 3}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A3", &[]any{"u2", "92102"}))
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())

	df, err := newLoader().Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2, df.Nrow())
	assert.Equal(t, []string{"u1", "u2"}, df.Col(domain.ColUserID).Records())
	assert.InDelta(t, 3.0, df.Col(domain.ColHours).Float()[0], 1e-9)
	assert.Equal(t, []bool{false, true}, df.Col(domain.ColDate).IsNaN())
}

func TestLoad_Failures(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name string
		path string
	}{
		{"missing file", filepath.Join(dir, "nope.csv")},
		{"empty file", writeFile(t, "empty.csv", "")},
		{"extra fields", writeFile(t, "wide.csv", "UserID,Date\nu1,2023-01-02,surprise\n")},
		{"not a workbook", writeFile(t, "fake.xlsx", "UserID,Date\n")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newLoader().Load(tt.path)
			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrInput)
		})
	}
}

func TestCanonicalHeader(t *testing.T) {
	cases := []struct {
		name   string
		header []string
		want   []string
	}{
		{
			name:   "compacts and matches known columns",
			header: []string{" user id ", "Date of Birth", "HOURS", "Extra Column"},
			want:   []string{"UserID", "DateOfBirth", "Hours", "Extra Column"},
		},
		{
			name:   "repeated known column",
			header: []string{"date", "Date", "DATE"},
			want:   []string{"Date", "Date (2)", "Date (3)"},
		},
		{
			name:   "repeated unknown column",
			header: []string{"Notes", "Notes"},
			want:   []string{"Notes", "Notes (2)"},
		},
		{
			name:   "suffix already taken",
			header: []string{"Date", "Date (2)", "Date"},
			want:   []string{"Date", "Date (2)", "Date (3)"},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tabular.CanonicalHeader(tc.header))
		})
	}
}

func TestFromRecords_RepeatedColumnKeepsFirst(t *testing.T) {
	header := append(domain.InputColumns(), "Date")
	row := []string{"u-1", "San Diego", "CA", "92101", "", "2023-01-02", "9:00 AM", "", "5:00 PM", "8", "", "", "1/1/1999"}

	df, err := tabular.FromRecords([][]string{header, row})
	require.NoError(t, err)

	assert.Contains(t, df.Names(), domain.ColDate)
	assert.Contains(t, df.Names(), "Date (2)")
	assert.Equal(t, []string{"2023-01-02"}, df.Col(domain.ColDate).Records())
}
