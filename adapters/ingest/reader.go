// Package ingest reads raw per-sensor observation files. A sensor's data
// lives under <directory>/<sourceID>/ as one or more CSV or XLSX files,
// each with a `time` column (event data) or `time` and `value` columns
// (measurement data).
package ingest

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"trafficsense/domain/core"
	"trafficsense/internal/logging"
)

// Record is one raw observation row before discretization. HasValue is
// false for pure event rows, which carry only a timestamp.
type Record struct {
	Time     time.Time
	Value    float64
	HasValue bool
}

// Reader loads every observation file for one sensor.
type Reader struct {
	directory string
	log       *logging.Logger
}

// NewReader creates a reader rooted at the configured data directory.
func NewReader(directory string, log *logging.Logger) *Reader {
	if log == nil {
		log = logging.DefaultLogger
	}
	return &Reader{directory: directory, log: log}
}

// timeLayouts are the accepted timestamp formats, most specific first.
var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
}

// ReadSensor reads and concatenates every file under the sensor's
// directory. It fails when no files match or when all files parsed to
// zero rows.
func (r *Reader) ReadSensor(sourceID core.SensorID) ([]Record, error) {
	dir := filepath.Join(r.directory, sourceID.String())

	var filenames []string
	for _, pattern := range []string{"*.csv", "*.xlsx"} {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return nil, fmt.Errorf("failed to list %s files: %w", pattern, err)
		}
		filenames = append(filenames, matches...)
	}
	sort.Strings(filenames)

	if len(filenames) == 0 {
		return nil, core.NewNoInputFilesError(dir)
	}

	var records []Record
	for _, filename := range filenames {
		r.log.Info("reading %s", filename)
		rows, err := readRows(filename)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", filename, err)
		}
		parsed, err := parseRecords(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", filename, err)
		}
		records = append(records, parsed...)
	}

	if len(records) == 0 {
		return nil, core.ErrEmptyFiles
	}
	return records, nil
}

// readRows returns the raw string grid of one file, header row included.
func readRows(filename string) ([][]string, error) {
	if strings.EqualFold(filepath.Ext(filename), ".xlsx") {
		return readExcelRows(filename)
	}
	return readCSVRows(filename)
}

func readCSVRows(filename string) ([][]string, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV file: %w", err)
	}
	return rows, nil
}

func readExcelRows(filename string) ([][]string, error) {
	f, err := excelize.OpenFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("Excel file has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", sheets[0], err)
	}
	return rows, nil
}

// parseRecords converts a header + data grid into records. Rows with an
// unparseable timestamp or value are rejected, not skipped, so corrupt
// files surface immediately.
func parseRecords(rows [][]string) ([]Record, error) {
	if len(rows) < 2 {
		// Header only or completely empty: no observations.
		return nil, nil
	}

	timeCol, valueCol := -1, -1
	for i, header := range rows[0] {
		switch strings.ToLower(strings.TrimSpace(header)) {
		case "time":
			timeCol = i
		case "value":
			valueCol = i
		}
	}
	if timeCol < 0 {
		return nil, fmt.Errorf("no `time` column in header %v", rows[0])
	}

	var records []Record
	for i := 1; i < len(rows); i++ {
		row := rows[i]
		if timeCol >= len(row) || strings.TrimSpace(row[timeCol]) == "" {
			continue
		}
		ts, err := parseTime(strings.TrimSpace(row[timeCol]))
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}
		rec := Record{Time: ts}
		if valueCol >= 0 && valueCol < len(row) && strings.TrimSpace(row[valueCol]) != "" {
			v, err := strconv.ParseFloat(strings.TrimSpace(row[valueCol]), 64)
			if err != nil {
				return nil, fmt.Errorf("row %d: invalid value %q", i+1, row[valueCol])
			}
			rec.Value = v
			rec.HasValue = true
		}
		records = append(records, rec)
	}
	return records, nil
}

func parseTime(raw string) (time.Time, error) {
	for _, layout := range timeLayouts {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid timestamp %q", raw)
}
