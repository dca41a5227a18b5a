package outcome

// Status classifies the overall health of a testing run. Values match the
// integers stored in serialised outcomes.
type Status int

const (
	StatusValid             Status = 1 // a full set of test results is present
	StatusSyntaxError       Status = 2 // the code (on any one test) didn't compile
	StatusBadCombinator     Status = 3 // a combinator template yielded an invalid result
	StatusSandboxError      Status = 4 // the run failed altogether
	StatusMissingPrototype  Status = 5 // can't even start, no prototype
	StatusDeserializeFailed Status = 6 // a stored outcome couldn't be restored
)

var statusNames = map[Status]string{
	StatusValid:             "VALID",
	StatusSyntaxError:       "SYNTAX_ERROR",
	StatusBadCombinator:     "BAD_COMBINATOR",
	StatusSandboxError:      "SANDBOX_ERROR",
	StatusMissingPrototype:  "MISSING_PROTOTYPE",
	StatusDeserializeFailed: "DESERIALIZE_FAILED",
}

func (s Status) String() string {
	if n, ok := statusNames[s]; ok {
		return n
	}
	return "UNKNOWN"
}

// Known reports whether s is one of the defined statuses.
func (s Status) Known() bool {
	_, ok := statusNames[s]
	return ok
}

// SetStatus is the only way to move an outcome out of StatusValid.
func (o *Outcome) SetStatus(status Status, message string) {
	o.Status = status
	o.ErrorMessage = message
}

func (o *Outcome) RunFailed() bool {
	return o.Status == StatusSandboxError || o.Status == StatusMissingPrototype
}

func (o *Outcome) HasSyntaxError() bool { return o.Status == StatusSyntaxError }

func (o *Outcome) CombinatorError() bool { return o.Status == StatusBadCombinator }

func (o *Outcome) Invalid() bool { return o.Status == StatusDeserializeFailed }

func (o *Outcome) IsUngradable() bool { return o.RunFailed() || o.CombinatorError() }
