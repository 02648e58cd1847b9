// Command genmock writes a synthetic one-year attendance export for local
// runs and demos. Besides ordinary visits it plants rows for every cleaning
// rule: a bulk-entry date, missing zips, unparseable start times, zero-hour
// sessions, blank end dates, sessions crossing midnight and ZIP+4 codes.
//
// Usage:
//
//	go run ./cmd/genmock --out data/mock/export.csv --rows 2000 --seed 7 --year 2023
package main

import (
	"fmt"
	"log"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/spf13/cobra"
	"github.com/xuri/excelize/v2"
)

// header mirrors the column titles of the real export.
var header = []string{
	"User ID", "Opportunity City", "Opportunity State", "Opportunity Zip",
	"Date Of Birth", "Date", "Time", "End Date", "End Time", "Hours",
	"Languages Spoken", "Public Gender",
}

var sites = []struct {
	city string
	zip  string
}{
	{"San Diego", "92101"}, {"San Diego", "92102"}, {"San Diego", "92105"},
	{"San Diego", "92113"}, {"San Diego", "92114"}, {"San Diego", "92123"},
	{"Chula Vista", "91910"}, {"El Cajon", "92020"}, {"Escondido", "92025"},
	{"Oceanside", "92054"}, {"La Mesa", "91941"}, {"National City", "91950"},
}

var (
	shiftStarts = []int{7, 8, 9, 10, 13, 14, 17}
	languages   = []string{"English", "Spanish", "English, Spanish", "Tagalog", "Vietnamese", ""}
	genders     = []string{"Female", "Male", "Non-binary", ""}
)

type options struct {
	out      string
	rows     int
	seed     uint64
	year     int
	bulkRows int
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		log.Fatal(err)
	}
}

func newRootCommand() *cobra.Command {
	var o options
	cmd := &cobra.Command{
		Use:   "genmock",
		Short: "Generate a synthetic attendance export",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if o.out == "" {
				return fmt.Errorf("missing required flag: --out")
			}
			if o.rows <= 0 {
				return fmt.Errorf("--rows must be positive")
			}
			records := generate(o)
			if err := write(o.out, records); err != nil {
				return fmt.Errorf("write %s: %w", o.out, err)
			}
			log.Printf("wrote %d rows (%d on the bulk date) to %s", len(records)-1, o.bulkRows, o.out)
			return nil
		},
	}
	cmd.Flags().StringVar(&o.out, "out", "", "output path (.csv or .xlsx)")
	cmd.Flags().IntVar(&o.rows, "rows", 2000, "ordinary visits to generate")
	cmd.Flags().Uint64Var(&o.seed, "seed", 1, "random seed")
	cmd.Flags().IntVar(&o.year, "year", 2023, "calendar year covered")
	cmd.Flags().IntVar(&o.bulkRows, "bulk-rows", 5001, "rows planted on July 1 to trip the bulk-date filter")
	return cmd
}

// generate returns the export as records, header first.
func generate(o options) [][]string {
	rng := rand.New(rand.NewPCG(o.seed, o.seed^0x9e3779b97f4a7c15))
	start := time.Date(o.year, time.January, 1, 0, 0, 0, 0, time.UTC)
	days := start.AddDate(1, 0, 0).Sub(start).Hours() / 24

	records := make([][]string, 0, o.rows+o.bulkRows+1)
	records = append(records, header)

	for i := 0; i < o.rows; i++ {
		day := start.AddDate(0, 0, rng.IntN(int(days)))
		records = append(records, visit(rng, i, day))
	}

	bulk := time.Date(o.year, time.July, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < o.bulkRows; i++ {
		row := visit(rng, -1, bulk)
		// Bulk uploads carry the date with a midnight time component.
		row[5] = bulk.Format("1/2/2006") + " 0:00"
		records = append(records, row)
	}
	return records
}

// visit builds one row. Every few rows are made irregular based on i; a
// negative i always yields an ordinary row.
func visit(rng *rand.Rand, i int, day time.Time) []string {
	site := sites[rng.IntN(len(sites))]
	begin := day.Add(time.Duration(shiftStarts[rng.IntN(len(shiftStarts))]) * time.Hour).
		Add(time.Duration(rng.IntN(4)*15) * time.Minute)
	length := time.Duration(1+rng.IntN(16)) * 15 * time.Minute
	end := begin.Add(length)
	hours := strconv.FormatFloat(length.Hours(), 'f', -1, 64)
	birth := time.Date(1950+rng.IntN(55), time.Month(1+rng.IntN(12)), 1+rng.IntN(28), 0, 0, 0, 0, time.UTC)

	row := []string{
		fmt.Sprintf("%06d", 100000+rng.IntN(900000)),
		site.city,
		"CA",
		site.zip,
		birth.Format("1/2/2006"),
		begin.Format("1/2/2006"),
		begin.Format("3:04 PM"),
		end.Format("1/2/2006"),
		end.Format("3:04 PM"),
		hours,
		languages[rng.IntN(len(languages))],
		genders[rng.IntN(len(genders))],
	}
	if i < 0 {
		return row
	}

	switch {
	case i%50 == 49:
		row[3] = ""
	case i%97 == 96:
		row[6] = "25:99"
	case i%43 == 42:
		row[6] = "11:00 PM"
		row[7] = begin.AddDate(0, 0, 1).Format("1/2/2006")
		row[8] = "1:00 AM"
		row[9] = "2"
	case i%31 == 30:
		row[9] = "0"
	case i%20 == 19:
		row[7] = ""
	case i%37 == 36:
		row[3] = site.zip + "-" + fmt.Sprintf("%04d", rng.IntN(10000))
	}
	return row
}

func write(path string, records [][]string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		return writeWorkbook(path, records)
	default:
		return writeCSV(path, records)
	}
}

func writeCSV(path string, records [][]string) error {
	df := dataframe.LoadRecords(records,
		dataframe.HasHeader(true),
		dataframe.DetectTypes(false),
		dataframe.DefaultType(series.String),
	)
	if df.Err != nil {
		return df.Err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := df.WriteCSV(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func writeWorkbook(path string, records [][]string) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	for i, rec := range records {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		row := make([]any, len(rec))
		for j, v := range rec {
			row[j] = v
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return err
		}
	}
	return f.SaveAs(path)
}
