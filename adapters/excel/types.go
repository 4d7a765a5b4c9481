package excel

import (
	"math"

	"leadscope/internal/errors"
)

// SeriesTable holds the numeric columns of a spreadsheet, one series per
// header, all of the same length.
type SeriesTable struct {
	Names   []string             // numeric column headers in file order
	Keys    []string             // row keys when a key column was requested
	Skipped []string             // non-numeric columns that were dropped
	columns map[string][]float64 // name -> values
}

func newSeriesTable() *SeriesTable {
	return &SeriesTable{columns: make(map[string][]float64)}
}

// Len returns the number of rows
func (t *SeriesTable) Len() int {
	if len(t.Names) == 0 {
		return len(t.Keys)
	}
	return len(t.columns[t.Names[0]])
}

// Column returns a copy of the named series
func (t *SeriesTable) Column(name string) ([]float64, bool) {
	values, ok := t.columns[name]
	if !ok {
		return nil, false
	}
	out := make([]float64, len(values))
	copy(out, values)
	return out, true
}

// Columns returns copies of every series except the excluded names
func (t *SeriesTable) Columns(exclude ...string) map[string][]float64 {
	skip := make(map[string]bool, len(exclude))
	for _, name := range exclude {
		skip[name] = true
	}
	out := make(map[string][]float64, len(t.Names))
	for _, name := range t.Names {
		if skip[name] {
			continue
		}
		out[name], _ = t.Column(name)
	}
	return out
}

// NewKeyedTable creates an empty table whose rows are identified by keys.
// Series are attached with AddSeries.
func NewKeyedTable(keys []string) *SeriesTable {
	t := newSeriesTable()
	t.Keys = append([]string{}, keys...)
	return t
}

// AddSeries attaches a series with one value per row key
func (t *SeriesTable) AddSeries(name string, values []float64) error {
	if _, exists := t.columns[name]; exists {
		return errors.InvalidInput("duplicate series: " + name)
	}
	if len(values) != len(t.Keys) {
		return errors.Newf(errors.CodeInvalidInput,
			"series %s has %d values for %d rows", name, len(values), len(t.Keys))
	}
	t.add(name, append([]float64{}, values...))
	return nil
}

func (t *SeriesTable) add(name string, values []float64) {
	t.Names = append(t.Names, name)
	t.columns[name] = values
}

// keepRows retains only the rows whose index is in keep (ascending)
func (t *SeriesTable) keepRows(keep []int) {
	for _, name := range t.Names {
		values := t.columns[name]
		out := make([]float64, len(keep))
		for i, row := range keep {
			out[i] = values[row]
		}
		t.columns[name] = out
	}
	if t.Keys != nil {
		keys := make([]string, len(keep))
		for i, row := range keep {
			keys[i] = t.Keys[row]
		}
		t.Keys = keys
	}
}

func (t *SeriesTable) completeRows() []int {
	var keep []int
	for row := 0; row < t.Len(); row++ {
		complete := true
		for _, name := range t.Names {
			if math.IsNaN(t.columns[name][row]) {
				complete = false
				break
			}
		}
		if complete {
			keep = append(keep, row)
		}
	}
	return keep
}
