package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/mind-engage/mindengage-coderunner/internal/grading"
	"github.com/mind-engage/mindengage-coderunner/internal/outcome"
)

func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	return os.ReadFile(path)
}

// readOutcome decodes the payload in path, or stdin for "-".
func readOutcome(cmd *cobra.Command, path string) (outcome.Decoded, error) {
	data, err := readInput(cmd, path)
	if err != nil {
		return outcome.Decoded{}, err
	}
	d := outcome.Decode(data)
	if d.Base().Invalid() {
		return d, fmt.Errorf("%s: %w", path, d.Base().CheckValid())
	}
	return d, nil
}

func newRenderCmd() *cobra.Command {
	var viewHidden bool
	var columns string
	cmd := &cobra.Command{
		Use:   "render <file|->",
		Short: "print the result table of a stored outcome",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := readOutcome(cmd, args[0])
			if err != nil {
				return err
			}
			cols, err := outcome.ParseResultColumns(columns)
			if err != nil {
				return err
			}
			return printTable(cmd.OutOrStdout(), d, cols, viewHidden)
		},
	}
	cmd.Flags().BoolVar(&viewHidden, "view-hidden", false, "include rows hidden from students")
	cmd.Flags().StringVar(&columns, "columns", "", "result column spec as JSON")
	return cmd
}

func newCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check <file|->",
		Short: "summarise the status and mark of a stored outcome",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := readOutcome(cmd, args[0])
			if err != nil {
				return err
			}
			return printSummary(cmd.OutOrStdout(), d, d.Base().MarkAsFraction())
		},
	}
}

// questionFile is the on-disk form of a question. YAML is a superset of
// JSON, so either works.
type questionFile struct {
	Grader        string               `yaml:"grader"`
	AllOrNothing  bool                 `yaml:"all_or_nothing"`
	PrecheckMode  grading.PrecheckMode `yaml:"precheck_mode"`
	ResultColumns string               `yaml:"result_columns"`
	TestCases     []grading.TestCase   `yaml:"testcases"`
}

func newGradeCmd() *cobra.Command {
	var questionPath, runsPath, outPath string
	var precheck bool
	cmd := &cobra.Command{
		Use:   "grade",
		Short: "grade recorded sandbox runs against a question file",
		Long: `Grade reads a question (YAML or JSON) and a JSON list of sandbox runs,
one per selected test, and prints the summary and full result table.
With --out the serialised outcome is also written to a file.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(questionPath)
			if err != nil {
				return err
			}
			var qf questionFile
			if err := yaml.Unmarshal(raw, &qf); err != nil {
				return fmt.Errorf("%s: %w", questionPath, err)
			}
			if qf.Grader == "" {
				qf.Grader = grading.Equality
			}
			if qf.PrecheckMode == "" {
				qf.PrecheckMode = grading.PrecheckDisabled
			}
			g := grading.NewDefaultGrader()
			if qf.Grader != grading.Combinator && !g.Known(qf.Grader) {
				return fmt.Errorf("%w %q", grading.ErrUnknownGrader, qf.Grader)
			}
			if err := grading.NormalizeMarks(qf.TestCases); err != nil {
				return fmt.Errorf("%s: %w", questionPath, err)
			}
			cols, err := outcome.ParseResultColumns(qf.ResultColumns)
			if err != nil {
				return err
			}

			data, err := readInput(cmd, runsPath)
			if err != nil {
				return err
			}
			var runs []grading.Run
			if err := json.Unmarshal(data, &runs); err != nil {
				return fmt.Errorf("%s: %w", runsPath, err)
			}

			q := grading.Q{Grader: qf.Grader, AllOrNothing: qf.AllOrNothing, PrecheckMode: qf.PrecheckMode, TestCases: qf.TestCases}
			d, err := grading.Evaluate(context.Background(), g, q, runs, precheck)
			if err != nil {
				return err
			}
			if outPath != "" {
				payload, err := d.Encode()
				if err != nil {
					return err
				}
				if err := os.WriteFile(outPath, payload, 0o644); err != nil {
					return err
				}
			}
			out := cmd.OutOrStdout()
			if err := printSummary(out, d, q.Fraction(d.Base())); err != nil {
				return err
			}
			if d.Base().Status != outcome.StatusValid {
				return nil
			}
			fmt.Fprintln(out)
			return printTable(out, d, cols, true)
		},
	}
	cmd.Flags().StringVarP(&questionPath, "question", "q", "", "question file")
	cmd.Flags().StringVarP(&runsPath, "runs", "r", "-", "sandbox runs as JSON, - for stdin")
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "write the serialised outcome here")
	cmd.Flags().BoolVar(&precheck, "precheck", false, "grade as a precheck")
	_ = cmd.MarkFlagRequired("question")
	return cmd
}

func printSummary(out io.Writer, d outcome.Decoded, fraction float64) error {
	o := d.Base()
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "status\t%s\n", o.Status)
	fmt.Fprintf(w, "fraction\t%.4f\n", fraction)
	fmt.Fprintf(w, "combinator\t%v\n", d.Kind == outcome.KindGraderState)
	if d.Kind == outcome.KindBase {
		fmt.Fprintf(w, "aborted\t%v\n", o.Status == outcome.StatusValid && o.WasAborted())
		fmt.Fprintf(w, "errors\t%d\n", o.ErrorCount)
		fmt.Fprintf(w, "hidden errors\t%d\n", o.CountHiddenErrors())
	}
	if err := w.Flush(); err != nil {
		return err
	}
	var msg string
	switch {
	case d.Kind == outcome.KindGraderState && !d.Grader.AllCorrect():
		msg = d.Grader.ValidationErrorMessage(outcome.English)
	case d.Kind == outcome.KindBase && !o.AllCorrect():
		msg = o.ValidationErrorMessage(outcome.English)
	}
	if msg != "" {
		fmt.Fprintln(out, msg)
	}
	return nil
}

func printTable(out io.Writer, d outcome.Decoded, cols []outcome.ColumnSpec, viewHidden bool) error {
	var t outcome.Table
	var err error
	if d.Kind == outcome.KindGraderState {
		t, err = d.Grader.ResultsTable(viewHidden)
	} else {
		t, err = d.Outcome.ResultsTable(cols, viewHidden)
	}
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, strings.Join(t.Header, "\t"))
	for _, row := range t.Rows {
		cells := make([]string, len(row))
		for i, c := range row {
			cells[i] = cellText(c)
		}
		fmt.Fprintln(w, strings.Join(cells, "\t"))
	}
	return w.Flush()
}

func cellText(c outcome.Cell) string {
	switch c.Kind {
	case outcome.CellCorrectness:
		if c.Fraction == 1 {
			return "pass"
		}
		return "FAIL"
	case outcome.CellHidden:
		if c.Hidden {
			return "hidden"
		}
		return ""
	default:
		return strings.ReplaceAll(c.Text, "\n", `\n`)
	}
}
