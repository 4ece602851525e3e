package models

import "fmt"

// BaselineFrame is one sheet's table of previously accepted ledger rows.
// Columns are positional: the merge builder must reproduce the baseline
// column order exactly, so rows are stored as string slices aligned to
// Columns rather than as maps.
type BaselineFrame struct {
	Sheet   Sheet
	Columns []string
	Rows    [][]string

	colIndex map[string]int
}

// NewBaselineFrame creates an empty frame with the canonical column set
func NewBaselineFrame(sheet Sheet) *BaselineFrame {
	return NewBaselineFrameWithColumns(sheet, SheetColumns[sheet])
}

// NewBaselineFrameWithColumns creates an empty frame preserving the column
// order observed in a loaded baseline sheet.
func NewBaselineFrameWithColumns(sheet Sheet, columns []string) *BaselineFrame {
	cols := make([]string, len(columns))
	copy(cols, columns)
	f := &BaselineFrame{
		Sheet:   sheet,
		Columns: cols,
	}
	f.colIndex = make(map[string]int, len(cols))
	for i, c := range cols {
		f.colIndex[c] = i
	}
	return f
}

// Len returns the number of rows in the frame
func (f *BaselineFrame) Len() int {
	return len(f.Rows)
}

// HasColumn reports whether the frame carries the named column
func (f *BaselineFrame) HasColumn(name string) bool {
	_, ok := f.colIndex[name]
	return ok
}

// Value returns the value of the named column in row i, or "" when the
// column is absent.
func (f *BaselineFrame) Value(i int, column string) string {
	idx, ok := f.colIndex[column]
	if !ok || i < 0 || i >= len(f.Rows) || idx >= len(f.Rows[i]) {
		return ""
	}
	return f.Rows[i][idx]
}

// AppendRow appends a raw row, padding or truncating to the column count
func (f *BaselineFrame) AppendRow(row []string) {
	aligned := make([]string, len(f.Columns))
	copy(aligned, row)
	f.Rows = append(f.Rows, aligned)
}

// AppendRowMap appends a row given as a column->value map
func (f *BaselineFrame) AppendRowMap(values map[string]string) {
	row := make([]string, len(f.Columns))
	for i, column := range f.Columns {
		row[i] = values[column]
	}
	f.Rows = append(f.Rows, row)
}

// AppendRecord renders the record through the sheet schema and appends it
func (f *BaselineFrame) AppendRecord(r *StandardRecord) error {
	if r.Sheet != f.Sheet {
		return fmt.Errorf("cannot append %s record to %s frame", r.Sheet, f.Sheet)
	}
	f.AppendRowMap(r.ToRow())
	return nil
}

// Clone returns a deep copy of the frame
func (f *BaselineFrame) Clone() *BaselineFrame {
	clone := NewBaselineFrameWithColumns(f.Sheet, f.Columns)
	clone.Rows = make([][]string, len(f.Rows))
	for i, row := range f.Rows {
		r := make([]string, len(row))
		copy(r, row)
		clone.Rows[i] = r
	}
	return clone
}

// BaselineSet holds one frame per ledger sheet. All five sheets are always
// present; a missing sheet materializes as an empty frame with the canonical
// column set.
type BaselineSet map[Sheet]*BaselineFrame

// NewBaselineSet creates a set with empty frames for all five sheets
func NewBaselineSet() BaselineSet {
	set := make(BaselineSet, len(AllSheets))
	for _, sheet := range AllSheets {
		set[sheet] = NewBaselineFrame(sheet)
	}
	return set
}

// Ensure fills in empty frames for any sheet still missing
func (s BaselineSet) Ensure() {
	for _, sheet := range AllSheets {
		if _, ok := s[sheet]; !ok {
			s[sheet] = NewBaselineFrame(sheet)
		}
	}
}

// Clone returns a deep copy of the set
func (s BaselineSet) Clone() BaselineSet {
	clone := make(BaselineSet, len(s))
	for sheet, frame := range s {
		clone[sheet] = frame.Clone()
	}
	return clone
}

// TotalRows returns the row count across all sheets
func (s BaselineSet) TotalRows() int {
	total := 0
	for _, frame := range s {
		total += frame.Len()
	}
	return total
}
