package outcome

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Special header values in a result table.
const (
	IsCorrectColumn = "iscorrect"
	IsHiddenColumn  = "ishidden"
)

// ColumnSpec describes one column of a result table: a header, the result
// fields feeding it and the format that combines them.
type ColumnSpec struct {
	Header string
	Fields []string
	Format string
}

// DefaultResultColumns are used when a question does not configure any.
var DefaultResultColumns = []ColumnSpec{
	{Header: "Test", Fields: []string{FieldTestCode}, Format: "%s"},
	{Header: "Input", Fields: []string{FieldStdin}, Format: "%s"},
	{Header: "Expected", Fields: []string{FieldExpected}, Format: "%s"},
	{Header: "Got", Fields: []string{FieldGot}, Format: "%s"},
}

// ParseResultColumns decodes a question's result column configuration, a
// JSON list of [header, field, ..., format] lists. With a single field the
// format may be omitted and defaults to "%s". An empty string selects
// DefaultResultColumns.
func ParseResultColumns(raw string) ([]ColumnSpec, error) {
	if strings.TrimSpace(raw) == "" {
		return DefaultResultColumns, nil
	}
	var lists [][]string
	if err := json.Unmarshal([]byte(raw), &lists); err != nil {
		return nil, fmt.Errorf("result columns: %w", err)
	}
	specs := make([]ColumnSpec, 0, len(lists))
	for i, l := range lists {
		switch {
		case len(l) < 2:
			return nil, fmt.Errorf("result columns: column %d needs a header and a field", i)
		case len(l) == 2:
			specs = append(specs, ColumnSpec{Header: l[0], Fields: []string{l[1]}, Format: "%s"})
		default:
			specs = append(specs, ColumnSpec{Header: l[0], Fields: l[1 : len(l)-1], Format: l[len(l)-1]})
		}
	}
	return specs, nil
}

func (c ColumnSpec) format() string {
	if c.Format == "" {
		return "%s"
	}
	return c.Format
}

// CellKind identifies how a table cell is to be presented.
type CellKind int

const (
	CellText CellKind = iota
	CellHTML
	CellCorrectness // Fraction rendered as a tick or cross
	CellHidden      // Hidden flag, never rendered
)

// Cell is one entry of a result table row.
type Cell struct {
	Kind     CellKind
	Text     string
	Fraction float64
	Hidden   bool
}

// Table is a header row plus one row per displayed test result. The first
// header is IsCorrectColumn and the last is IsHiddenColumn.
type Table struct {
	Header []string `json:"header"`
	Rows   [][]Cell `json:"rows"`
}

// RowHidden reports the hidden flag carried in the last cell of row i.
func (t Table) RowHidden(i int) bool {
	row := t.Rows[i]
	return row[len(row)-1].Hidden
}

func (c Cell) MarshalJSON() ([]byte, error) {
	switch c.Kind {
	case CellCorrectness:
		return json.Marshal(c.Fraction)
	case CellHidden:
		return json.Marshal(c.Hidden)
	case CellHTML:
		return json.Marshal(map[string]string{"html": c.Text})
	default:
		return json.Marshal(c.Text)
	}
}

// UnmarshalJSON reverses MarshalJSON. A number is read as a correctness
// indicator and a boolean as the hidden flag.
func (c *Cell) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch t := v.(type) {
	case float64:
		*c = Cell{Kind: CellCorrectness, Fraction: t}
	case bool:
		*c = Cell{Kind: CellHidden, Hidden: t}
	case string:
		*c = Cell{Kind: CellText, Text: t}
	case map[string]any:
		html, _ := t["html"].(string)
		*c = Cell{Kind: CellHTML, Text: html}
	default:
		return fmt.Errorf("unexpected table cell %s", b)
	}
	return nil
}

// ResultsTable builds the result table for display. It fails only for an
// outcome that could not be restored.
func (o *Outcome) ResultsTable(cols []ColumnSpec, canViewHidden bool) (Table, error) {
	if err := o.CheckValid(); err != nil {
		return Table{}, err
	}
	return BuildResultsTable(o.TestResults, cols, canViewHidden), nil
}

// BuildResultsTable projects results through cols. Columns that are blank
// for every result are dropped. Rows students may not see are left out
// unless canViewHidden, in which case they are kept and flagged hidden.
func BuildResultsTable(results []TestResult, cols []ColumnSpec, canViewHidden bool) Table {
	header := []string{IsCorrectColumn}
	shownCols := make([]bool, len(cols))
	formatters := make([]*Formatter, len(cols))
	formatErrs := make([]error, len(cols))
	numVisible := 0
	for i, col := range cols {
		if len(col.Fields) == 0 || countNonBlanks(col.Fields[0], results) == 0 {
			continue
		}
		shownCols[i] = true
		header = append(header, col.Header)
		numVisible++
		formatters[i], formatErrs[i] = ParseFormat(col.format())
	}
	if numVisible > 1 {
		header = append(header, IsCorrectColumn)
	}
	header = append(header, IsHiddenColumn)

	table := Table{Header: header, Rows: [][]Cell{}}
	visible := Visibility(results)
	for r := range results {
		if !canViewHidden && !visible[r] {
			continue
		}
		tr := &results[r]
		fraction := tr.Fraction()
		row := []Cell{{Kind: CellCorrectness, Fraction: fraction}}
		for i, col := range cols {
			if !shownCols[i] {
				continue
			}
			row = append(row, renderCell(tr, col, formatters[i], formatErrs[i]))
		}
		if numVisible > 1 {
			row = append(row, Cell{Kind: CellCorrectness, Fraction: fraction})
		}
		row = append(row, Cell{Kind: CellHidden, Hidden: !visible[r]})
		table.Rows = append(table.Rows, row)
	}
	return table
}

func renderCell(tr *TestResult, col ColumnSpec, f *Formatter, ferr error) Cell {
	if ferr != nil {
		return Cell{Kind: CellText, Text: "[format error: " + ferr.Error() + "]"}
	}
	if f.IsHTML() {
		return Cell{Kind: CellHTML, Text: toText(tr.TrimmedValue(col.Fields[0]))}
	}
	args := make([]any, len(col.Fields))
	for j, field := range col.Fields {
		args[j] = tr.TrimmedValue(field)
	}
	text, err := f.Format(args)
	if err != nil {
		return Cell{Kind: CellText, Text: "[format error: " + err.Error() + "]"}
	}
	return Cell{Kind: CellText, Text: text}
}

// countNonBlanks counts results whose field is non-blank. A field missing
// from the schema counts as non-blank so the column surfaces the problem.
func countNonBlanks(field string, results []TestResult) int {
	n := 0
	for i := range results {
		v, ok := results[i].Field(field)
		if !isBlank(v, ok) {
			n++
		}
	}
	return n
}
