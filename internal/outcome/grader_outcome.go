package outcome

// GraderOutcome is the outcome of a combinator template grader, which
// grades the whole submission at once and supplies its own result table,
// feedback and state to carry into the next attempt step.
type GraderOutcome struct {
	Outcome

	GraderState  string
	PrologueHTML string
	EpilogueHTML string
	OutputOnly   bool

	// Table is the grader's result table; row 0 holds the headers.
	Table         [][]any
	ColumnFormats []string
}

// NewGraderOutcome starts a grader outcome. The mark is a fraction of 1.
func NewGraderOutcome(isPrecheck bool) *GraderOutcome {
	return &GraderOutcome{Outcome: *New(1, 0, isPrecheck)}
}

func (g *GraderOutcome) IsCombinatorGrader() bool { return true }

func (g *GraderOutcome) IsOutputOnly() bool { return g.OutputOnly }

func (g *GraderOutcome) Prologue() string { return g.PrologueHTML }

func (g *GraderOutcome) Epilogue() string { return g.EpilogueHTML }

// SetMarkAndFeedback records the grader's verdict.
func (g *GraderOutcome) SetMarkAndFeedback(fraction float64, table [][]any, prologue, epilogue string) {
	g.ActualMark = fraction
	g.Table = table
	g.PrologueHTML = prologue
	g.EpilogueHTML = epilogue
}

// ValidationErrorMessage never builds a failures table: the grader's own
// table is the only record of individual tests.
func (g *GraderOutcome) ValidationErrorMessage(strs Strings) string {
	if msg, done := g.statusMessage(strs); done {
		return msg
	}
	return strs.Get("failedtesting", nil) + "<br>" + strs.Get("howtogetmore", nil)
}

// ResultsTable converts the grader-supplied table. Rows whose ishidden
// column is truthy are left out unless canViewHidden.
func (g *GraderOutcome) ResultsTable(canViewHidden bool) (Table, error) {
	if err := g.CheckValid(); err != nil {
		return Table{}, err
	}
	table := Table{Rows: [][]Cell{}}
	if len(g.Table) == 0 {
		return table, nil
	}
	for _, h := range g.Table[0] {
		table.Header = append(table.Header, toText(h))
	}
	for _, raw := range g.Table[1:] {
		row := make([]Cell, 0, len(raw))
		hidden := false
		icol := 0
		for j, v := range raw {
			hdr := ""
			if j < len(table.Header) {
				hdr = table.Header[j]
			}
			switch hdr {
			case IsCorrectColumn:
				row = append(row, Cell{Kind: CellCorrectness, Fraction: toNumber(v)})
			case IsHiddenColumn:
				hidden = truthy(v)
				row = append(row, Cell{Kind: CellHidden, Hidden: hidden})
			default:
				kind := CellText
				if icol < len(g.ColumnFormats) && g.ColumnFormats[icol] == HTMLFormat {
					kind = CellHTML
				}
				row = append(row, Cell{Kind: kind, Text: Snip(toText(v), MaxStringLength)})
				icol++
			}
		}
		if hidden && !canViewHidden {
			continue
		}
		table.Rows = append(table.Rows, row)
	}
	return table, nil
}
