package outcome

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Kind tags the variant produced by Decode.
type Kind int

const (
	KindBase Kind = iota
	KindGraderState
)

// Decoded is a restored outcome: exactly one of Outcome (KindBase) or
// Grader (KindGraderState) is set.
type Decoded struct {
	Kind    Kind
	Outcome *Outcome
	Grader  *GraderOutcome
}

// Base returns the common outcome part of either variant.
func (d Decoded) Base() *Outcome {
	if d.Kind == KindGraderState {
		return &d.Grader.Outcome
	}
	return d.Outcome
}

// Encode serialises the variant held by d.
func (d Decoded) Encode() ([]byte, error) {
	if d.Kind == KindGraderState {
		return EncodeGrader(d.Grader)
	}
	return Encode(d.Outcome)
}

type wireTestResult struct {
	TestCode       string    `json:"testcode"`
	Stdin          string    `json:"stdin"`
	Expected       string    `json:"expected"`
	Got            string    `json:"got"`
	Extra          string    `json:"extra"`
	Stderr         string    `json:"stderr"`
	Mark           flexFloat `json:"mark"`
	Awarded        flexFloat `json:"awarded"`
	IsCorrect      flexBool  `json:"iscorrect"`
	Display        string    `json:"display,omitempty"`
	HideRestIfFail flexBool  `json:"hiderestiffail"`
	RowNum         *flexInt  `json:"rownum,omitempty"`
}

type wireOutcome struct {
	Status           flexInt         `json:"status"`
	IsPrecheck       *flexBool       `json:"isprecheck,omitempty"`
	ErrorCount       flexInt         `json:"errorcount"`
	ErrorMessage     string          `json:"errormessage"`
	MaxPossMark      flexFloat       `json:"maxpossmark"`
	ActualMark       flexFloat       `json:"actualmark"`
	NumErrors        flexInt         `json:"numerrors"`
	NumTestsExpected flexInt         `json:"numtestsexpected"`
	SandboxInfo      flexStringMap   `json:"sandboxinfo"`
	SourceCodeList   []string        `json:"sourcecodelist"`
	GraderState      string          `json:"graderstate"`
	TestResults      json.RawMessage `json:"testresults,omitempty"`

	// Present only in the grader-state variant.
	PrologueHTML  *string  `json:"prologuehtml,omitempty"`
	EpilogueHTML  *string  `json:"epiloguehtml,omitempty"`
	OutputOnly    *bool    `json:"outputonly,omitempty"`
	ColumnFormats []string `json:"columnformats,omitempty"`
}

// Encode serialises a base outcome to its stored JSON form.
func Encode(o *Outcome) ([]byte, error) {
	w := baseWire(o)
	trs := make([]wireTestResult, len(o.TestResults))
	for i, tr := range o.TestResults {
		trs[i] = wireTestResult{
			TestCode:       tr.TestCode,
			Stdin:          tr.Stdin,
			Expected:       tr.Expected,
			Got:            tr.Got,
			Extra:          tr.Extra,
			Stderr:         tr.Stderr,
			Mark:           flexFloat(tr.Mark),
			Awarded:        flexFloat(tr.Awarded),
			IsCorrect:      flexBool(tr.IsCorrect),
			Display:        string(tr.Display),
			HideRestIfFail: flexBool(tr.HideRestIfFail),
		}
		if tr.HasRowNum {
			n := flexInt(tr.RowNum)
			trs[i].RowNum = &n
		}
	}
	raw, err := json.Marshal(trs)
	if err != nil {
		return nil, err
	}
	w.TestResults = raw
	return json.Marshal(w)
}

// EncodeGrader serialises a grader outcome. The outputonly and epiloguehtml
// keys are always written so Decode recognises the variant.
func EncodeGrader(g *GraderOutcome) ([]byte, error) {
	w := baseWire(&g.Outcome)
	w.GraderState = g.GraderState
	w.PrologueHTML = &g.PrologueHTML
	w.EpilogueHTML = &g.EpilogueHTML
	w.OutputOnly = &g.OutputOnly
	w.ColumnFormats = g.ColumnFormats
	table := g.Table
	if table == nil {
		table = [][]any{}
	}
	raw, err := json.Marshal(table)
	if err != nil {
		return nil, err
	}
	w.TestResults = raw
	return json.Marshal(w)
}

func baseWire(o *Outcome) wireOutcome {
	w := wireOutcome{
		Status:           flexInt(o.Status),
		ErrorCount:       flexInt(o.ErrorCount),
		ErrorMessage:     o.ErrorMessage,
		MaxPossMark:      flexFloat(o.MaxPossMark),
		ActualMark:       flexFloat(o.ActualMark),
		NumErrors:        flexInt(o.NumErrors),
		NumTestsExpected: flexInt(o.NumTestsExpected),
		SandboxInfo:      flexStringMap(o.SandboxInfo),
		SourceCodeList:   o.SourceCodeList,
	}
	if o.PrecheckKnown {
		b := flexBool(o.Precheck)
		w.IsPrecheck = &b
	}
	return w
}

// Decode restores an outcome from its stored JSON form. A payload carrying
// epiloguehtml or outputonly decodes to the grader-state variant. If the
// payload cannot be decoded the result is a base outcome whose Invalid()
// is true; nothing else about it may be relied on.
func Decode(data []byte) Decoded {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil || probe == nil {
		return failed(fmt.Errorf("not a JSON object: %v", err))
	}
	var w wireOutcome
	if err := json.Unmarshal(data, &w); err != nil {
		return failed(err)
	}
	status := Status(w.Status)
	if _, has := probe["status"]; !has {
		status = StatusValid
	}
	if !status.Known() {
		return failed(fmt.Errorf("unknown status %d", int(w.Status)))
	}
	base := Outcome{
		Status:           status,
		ErrorMessage:     w.ErrorMessage,
		MaxPossMark:      float64(w.MaxPossMark),
		ActualMark:       float64(w.ActualMark),
		NumTestsExpected: int(w.NumTestsExpected),
		ErrorCount:       int(w.ErrorCount),
		NumErrors:        int(w.NumErrors),
		TestResults:      []TestResult{},
		SandboxInfo:      map[string]string(w.SandboxInfo),
		SourceCodeList:   w.SourceCodeList,
	}
	if base.SandboxInfo == nil {
		base.SandboxInfo = map[string]string{}
	}
	if w.IsPrecheck != nil {
		base.Precheck, base.PrecheckKnown = bool(*w.IsPrecheck), true
	}

	_, hasEpilogue := probe["epiloguehtml"]
	_, hasOutputOnly := probe["outputonly"]
	if hasEpilogue || hasOutputOnly {
		g := &GraderOutcome{Outcome: base, GraderState: w.GraderState, ColumnFormats: w.ColumnFormats}
		if g.MaxPossMark == 0 {
			g.MaxPossMark = 1
		}
		if w.PrologueHTML != nil {
			g.PrologueHTML = *w.PrologueHTML
		}
		if w.EpilogueHTML != nil {
			g.EpilogueHTML = *w.EpilogueHTML
		}
		if w.OutputOnly != nil {
			g.OutputOnly = *w.OutputOnly
		}
		if len(w.TestResults) > 0 && !isNull(w.TestResults) {
			if err := json.Unmarshal(w.TestResults, &g.Table); err != nil {
				return failed(fmt.Errorf("grader testresults: %w", err))
			}
		}
		return Decoded{Kind: KindGraderState, Grader: g}
	}

	if len(w.TestResults) > 0 && !isNull(w.TestResults) {
		var trs []wireTestResult
		if err := json.Unmarshal(w.TestResults, &trs); err != nil {
			return failed(fmt.Errorf("testresults: %w", err))
		}
		for _, t := range trs {
			tr := TestResult{
				TestCode:       t.TestCode,
				Stdin:          t.Stdin,
				Expected:       t.Expected,
				Got:            t.Got,
				Extra:          t.Extra,
				Stderr:         t.Stderr,
				Mark:           float64(t.Mark),
				Awarded:        float64(t.Awarded),
				IsCorrect:      bool(t.IsCorrect),
				Display:        DisplayPolicy(t.Display),
				HideRestIfFail: bool(t.HideRestIfFail),
			}
			if t.RowNum != nil {
				tr.RowNum, tr.HasRowNum = int(*t.RowNum), true
			}
			base.TestResults = append(base.TestResults, tr)
		}
	}
	return Decoded{Kind: KindBase, Outcome: &base}
}

func failed(err error) Decoded {
	o := New(0, 0, false)
	o.PrecheckKnown = false
	o.SetStatus(StatusDeserializeFailed, "failed to restore outcome: "+err.Error())
	return Decoded{Kind: KindBase, Outcome: o}
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

// The stored form was historically written by PHP, which is loose about
// scalar types: numbers may arrive as strings and booleans as 0/1.

type flexFloat float64

func (f *flexFloat) UnmarshalJSON(b []byte) error {
	v, err := scalar(b)
	if err != nil {
		return err
	}
	*f = flexFloat(toNumber(v))
	return nil
}

type flexInt int

func (n *flexInt) UnmarshalJSON(b []byte) error {
	v, err := scalar(b)
	if err != nil {
		return err
	}
	*n = flexInt(int(toNumber(v)))
	return nil
}

type flexBool bool

func (f *flexBool) UnmarshalJSON(b []byte) error {
	v, err := scalar(b)
	if err != nil {
		return err
	}
	*f = flexBool(truthy(v))
	return nil
}

// flexStringMap accepts an object of scalars or an empty list, which is how
// PHP encodes an empty associative array.
type flexStringMap map[string]string

func (m *flexStringMap) UnmarshalJSON(b []byte) error {
	trimmed := bytes.TrimSpace(b)
	if isNull(trimmed) || bytes.Equal(trimmed, []byte("[]")) {
		*m = flexStringMap{}
		return nil
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		return err
	}
	out := make(flexStringMap, len(raw))
	for k, rv := range raw {
		v, err := scalar(rv)
		if err != nil {
			out[k] = string(rv)
			continue
		}
		out[k] = toText(v)
	}
	*m = out
	return nil
}

// scalar decodes a JSON null, bool, number or string.
func scalar(b []byte) (any, error) {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return nil, err
	}
	switch t := v.(type) {
	case nil, bool, string:
		return t, nil
	case float64:
		if t == float64(int(t)) {
			return int(t), nil
		}
		return t, nil
	default:
		return nil, fmt.Errorf("expected a scalar, got %s", strconv.Quote(string(b)))
	}
}
