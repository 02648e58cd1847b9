// Package tabular reads attendance exports (CSV, TSV or XLSX) into a
// gota DataFrame.
package tabular

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/nickswetUCSD/feeding-sd-exploration/internal/domain"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// naValues are the cell contents treated as missing.
var naValues = []string{"", "NA", "NaN", "<nil>", "null"}

// Loader reads a delimited or spreadsheet export. It performs no semantic
// validation beyond requiring a header row.
type Loader struct {
	delimiter rune
	logger    *slog.Logger
}

// NewLoader creates a Loader. delimiter applies to every non-.tsv, non-.xlsx
// file.
func NewLoader(delimiter rune, logger *slog.Logger) *Loader {
	if delimiter == 0 {
		delimiter = ','
	}
	return &Loader{delimiter: delimiter, logger: logger}
}

// Extract satisfies the pipeline extractor contract.
func (l *Loader) Extract(_ context.Context, path string) (dataframe.DataFrame, error) {
	return l.Load(path)
}

// Load reads path into a table, preserving row order. Any failure is
// reported as domain.ErrInput.
func (l *Loader) Load(path string) (dataframe.DataFrame, error) {
	var (
		records [][]string
		err     error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		records, err = readWorkbook(path)
	case ".tsv", ".tab":
		records, err = readDelimited(path, '\t')
	default:
		records, err = readDelimited(path, l.delimiter)
	}
	if err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("%w: %s: %w", domain.ErrInput, path, err)
	}

	df, err := FromRecords(records)
	if err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("%w: %s: %w", domain.ErrInput, path, err)
	}

	l.logger.Info("input loaded",
		"path", path,
		"rows", df.Nrow(),
		"columns", df.Ncol(),
	)
	return df, nil
}

// FromRecords builds a table from a header row followed by data rows. Short
// rows are padded with empty cells. Hours is typed as float (unparseable
// values become null), the other known columns as strings.
func FromRecords(records [][]string) (dataframe.DataFrame, error) {
	if len(records) == 0 || len(records[0]) == 0 {
		return dataframe.DataFrame{}, errors.New("no header row")
	}
	header := CanonicalHeader(records[0])
	width := len(header)
	rows := make([][]string, 0, len(records))
	rows = append(rows, header)
	for i, rec := range records[1:] {
		if len(rec) > width {
			if !allBlank(rec[width:]) {
				return dataframe.DataFrame{}, fmt.Errorf("row %d has %d fields, header has %d", i+1, len(rec), width)
			}
			rec = rec[:width]
		}
		if len(rec) < width {
			padded := make([]string, width)
			copy(padded, rec)
			rec = padded
		}
		rows = append(rows, rec)
	}

	if len(rows) == 1 {
		return emptyFrame(header), nil
	}

	df := dataframe.LoadRecords(rows,
		dataframe.HasHeader(true),
		dataframe.DetectTypes(true),
		dataframe.DefaultType(series.String),
		dataframe.NaNValues(naValues),
		dataframe.WithTypes(columnTypes()),
	)
	if df.Err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("build table: %w", df.Err)
	}
	return df, nil
}

// CanonicalHeader strips whitespace from header names and maps them
// case-insensitively onto the known export columns, so "Date of Birth"
// becomes DateOfBirth. Names are made unique: a repeated column keeps the
// first occurrence and later ones become "Date (2)", "Date (3)" and so on.
func CanonicalHeader(header []string) []string {
	known := domain.InputColumns()
	out := make([]string, len(header))
	seen := make(map[string]int, len(header))
	for i, h := range header {
		compact := strings.Join(strings.Fields(h), "")
		name := strings.TrimSpace(h)
		for _, k := range known {
			if strings.EqualFold(compact, k) {
				name = k
				break
			}
		}
		out[i] = uniqueName(name, seen)
	}
	return out
}

func uniqueName(name string, seen map[string]int) string {
	seen[name]++
	if seen[name] == 1 {
		return name
	}
	for n := seen[name]; ; n++ {
		candidate := fmt.Sprintf("%s (%d)", name, n)
		if seen[candidate] == 0 {
			seen[candidate] = 1
			return candidate
		}
	}
}

func columnTypes() map[string]series.Type {
	types := make(map[string]series.Type, len(domain.InputColumns()))
	for _, c := range domain.InputColumns() {
		types[c] = series.String
	}
	types[domain.ColHours] = series.Float
	return types
}

func emptyFrame(header []string) dataframe.DataFrame {
	types := columnTypes()
	cols := make([]series.Series, len(header))
	for i, name := range header {
		t, ok := types[name]
		if !ok {
			t = series.String
		}
		cols[i] = series.New([]string{}, t, name)
	}
	return dataframe.New(cols...)
}

func readDelimited(path string, delimiter rune) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(transform.NewReader(f, unicode.BOMOverride(unicode.UTF8.NewDecoder())))
	r.Comma = delimiter
	r.LazyQuotes = true
	r.FieldsPerRecord = -1
	r.ReuseRecord = false

	var records [][]string
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse delimited: %w", err)
		}
		records = append(records, rec)
	}
	if len(records) == 0 {
		return nil, errors.New("file is empty")
	}
	return records, nil
}

func readWorkbook(path string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.New("workbook has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("sheet %q is empty", sheets[0])
	}
	return rows, nil
}

func allBlank(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
