package result

import "github.com/google/uuid"

// RunAccumulator collects the outcome of every server tested in one run. It
// is owned by the caller and passed to each Process call.
type RunAccumulator struct {
	RunID     string
	Results   []TestResult
	Succeeded []string
	Failed    []string
}

// NewRunAccumulator returns an accumulator for runID, generating one when
// runID is empty.
func NewRunAccumulator(runID string) *RunAccumulator {
	if runID == "" {
		runID = uuid.NewString()
	}
	return &RunAccumulator{RunID: runID}
}

func (a *RunAccumulator) add(r TestResult) {
	r.RunID = a.RunID
	a.Results = append(a.Results, r)
}

func (a *RunAccumulator) succeed(server string) {
	a.Succeeded = append(a.Succeeded, server)
}

func (a *RunAccumulator) fail(server string) {
	a.Failed = append(a.Failed, server)
}

// Success reports whether at least one server was processed and none failed.
func (a *RunAccumulator) Success() bool {
	return len(a.Succeeded) > 0 && len(a.Failed) == 0
}

// Maps returns every result in map form.
func (a *RunAccumulator) Maps() []map[string]any {
	out := make([]map[string]any, 0, len(a.Results))
	for _, r := range a.Results {
		out = append(out, r.Map())
	}
	return out
}
