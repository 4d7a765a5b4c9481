package excel

import (
	"encoding/csv"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"

	"leadscope/internal/errors"
)

// ReaderOptions tunes how a spreadsheet is turned into series
type ReaderOptions struct {
	Sheet          string // xlsx sheet, defaults to the first one
	KeyColumn      string // column kept as row keys (e.g. Date), never parsed as a series
	FillForward    bool   // blank cells take the previous value in the column
	DropIncomplete bool   // rows still holding a blank after filling are dropped
}

// SeriesReader reads CSV and XLSX files into a SeriesTable
type SeriesReader struct {
	filePath string
	fileType string // "xlsx" or "csv"
	opts     ReaderOptions
	logger   zerolog.Logger
}

// NewSeriesReader creates a reader for path. The file type follows the extension.
func NewSeriesReader(path string, opts ReaderOptions, logger zerolog.Logger) *SeriesReader {
	fileType := "xlsx"
	if strings.ToLower(filepath.Ext(path)) == ".csv" {
		fileType = "csv"
	}
	return &SeriesReader{filePath: path, fileType: fileType, opts: opts, logger: logger}
}

// Read loads the file and converts every numeric column
func (r *SeriesReader) Read() (*SeriesTable, error) {
	if _, err := os.Stat(r.filePath); os.IsNotExist(err) {
		return nil, errors.NotFound("file " + r.filePath)
	}

	start := time.Now()
	var rows [][]string
	var err error
	switch r.fileType {
	case "csv":
		rows, err = r.readCSVRows()
	default:
		rows, err = r.readExcelRows()
	}
	if err != nil {
		return nil, err
	}
	if len(rows) < 2 {
		return nil, errors.InvalidInput(strings.ToUpper(r.fileType) + " file must have a header row and at least one data row")
	}

	table, err := r.processRows(rows)
	if err != nil {
		return nil, err
	}
	r.logger.Debug().
		Str("file", r.filePath).
		Int("series", len(table.Names)).
		Int("rows", table.Len()).
		Strs("skipped", table.Skipped).
		Dur("elapsed", time.Since(start)).
		Msg("series table loaded")
	return table, nil
}

func (r *SeriesReader) readExcelRows() ([][]string, error) {
	f, err := excelize.OpenFile(r.filePath)
	if err != nil {
		return nil, errors.Wrap(errors.InvalidInput(err.Error()), "failed to open Excel file")
	}
	defer f.Close()

	sheet := r.opts.Sheet
	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, errors.InvalidInput("workbook has no sheets")
		}
		sheet = sheets[0]
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, errors.Wrapf(errors.InvalidInput(err.Error()), "failed to read sheet %s", sheet)
	}
	return rows, nil
}

func (r *SeriesReader) readCSVRows() ([][]string, error) {
	file, err := os.Open(r.filePath)
	if err != nil {
		return nil, errors.Wrap(errors.InvalidInput(err.Error()), "failed to open CSV file")
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, errors.Wrap(errors.InvalidInput(err.Error()), "failed to read CSV file")
	}
	return rows, nil
}

// processRows turns raw string rows into numeric columns. A column is numeric
// when every non-blank cell parses as a float and at least one cell is set.
func (r *SeriesReader) processRows(rows [][]string) (*SeriesTable, error) {
	headers := make([]string, len(rows[0]))
	for i, header := range rows[0] {
		headers[i] = strings.TrimSpace(header)
	}
	data := rows[1:]

	table := newSeriesTable()
	keyFound := r.opts.KeyColumn == ""
	seen := make(map[string]bool, len(headers))

	for col, header := range headers {
		if header == "" || seen[header] {
			continue
		}
		seen[header] = true

		if header == r.opts.KeyColumn {
			keyFound = true
			table.Keys = make([]string, len(data))
			for row := range data {
				table.Keys[row] = cell(data[row], col)
			}
			continue
		}

		values, ok := parseColumn(data, col)
		if !ok {
			table.Skipped = append(table.Skipped, header)
			continue
		}
		if r.opts.FillForward {
			fillForward(values)
		}
		table.add(header, values)
	}

	if !keyFound {
		return nil, errors.InvalidInput("key column not found: " + r.opts.KeyColumn)
	}
	if len(table.Names) == 0 {
		return nil, errors.InvalidInput("no numeric columns found")
	}
	if r.opts.DropIncomplete {
		table.keepRows(table.completeRows())
	}
	return table, nil
}

func cell(row []string, col int) string {
	if col >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[col])
}

func parseColumn(data [][]string, col int) ([]float64, bool) {
	values := make([]float64, len(data))
	set := 0
	for row := range data {
		raw := strings.ReplaceAll(cell(data[row], col), ",", "")
		if raw == "" {
			values[row] = math.NaN()
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, false
		}
		values[row] = v
		set++
	}
	return values, set > 0
}

// fillForward replaces NaN with the last seen value. Leading gaps stay NaN.
func fillForward(values []float64) {
	last := math.NaN()
	for i, v := range values {
		if math.IsNaN(v) {
			values[i] = last
			continue
		}
		last = v
	}
}

// Join inner-joins two keyed tables on their row keys, keeping the order of
// left. Series names present in both tables keep the left column.
func Join(left, right *SeriesTable) (*SeriesTable, error) {
	if left.Keys == nil || right.Keys == nil {
		return nil, errors.InvalidInput("join requires both tables to be read with a key column")
	}

	rightRow := make(map[string]int, len(right.Keys))
	for i, key := range right.Keys {
		if _, dup := rightRow[key]; !dup {
			rightRow[key] = i
		}
	}

	var leftRows, rightRows []int
	for i, key := range left.Keys {
		if j, ok := rightRow[key]; ok {
			leftRows = append(leftRows, i)
			rightRows = append(rightRows, j)
		}
	}

	out := newSeriesTable()
	out.Keys = make([]string, len(leftRows))
	for i, row := range leftRows {
		out.Keys[i] = left.Keys[row]
	}
	pick := func(values []float64, rows []int) []float64 {
		picked := make([]float64, len(rows))
		for i, row := range rows {
			picked[i] = values[row]
		}
		return picked
	}
	for _, name := range left.Names {
		out.add(name, pick(left.columns[name], leftRows))
	}
	for _, name := range right.Names {
		if _, exists := out.columns[name]; exists {
			continue
		}
		out.add(name, pick(right.columns[name], rightRows))
	}
	out.Skipped = append(append([]string{}, left.Skipped...), right.Skipped...)
	return out, nil
}
