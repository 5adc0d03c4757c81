package series

import "time"

// DayType partitions calendar days for separate seasonal and outlier
// modeling. The string values double as persisted-model filename keys.
type DayType string

const (
	Workdays DayType = "workdays"
	Weekends DayType = "weekends"
)

// TumbledMatrix is one row per calendar day, every row exactly StepsPerDay
// columns wide regardless of DST short/long days. Rows are keyed by their
// calendar date (midnight, analysis zone) and kept in chronological order.
type TumbledMatrix struct {
	Type  DayType
	Dates []time.Time
	Rows  [][]Sample
}

// Len returns the number of day rows.
func (m *TumbledMatrix) Len() int {
	return len(m.Rows)
}

// CompleteRows returns the indices of rows with no missing column.
func (m *TumbledMatrix) CompleteRows() []int {
	var idx []int
	for i, row := range m.Rows {
		if rowComplete(row) {
			idx = append(idx, i)
		}
	}
	return idx
}

// RowHasGap reports whether row i has any missing column.
func (m *TumbledMatrix) RowHasGap(i int) bool {
	return !rowComplete(m.Rows[i])
}

func rowComplete(row []Sample) bool {
	for _, s := range row {
		if !s.Valid {
			return false
		}
	}
	return true
}

// Values returns row i as a float slice. Callers must only use it on
// complete rows.
func (m *TumbledMatrix) Values(i int) []float64 {
	out := make([]float64, len(m.Rows[i]))
	for j, s := range m.Rows[i] {
		out[j] = s.Value
	}
	return out
}
