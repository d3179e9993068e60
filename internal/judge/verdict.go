package judge

// Verdict is the graded outcome of a submission.
type Verdict string

const (
	VerdictPending           Verdict = "PENDING"
	VerdictRunning           Verdict = "RUNNING"
	VerdictAccepted          Verdict = "ACCEPTED"
	VerdictWrongAnswer       Verdict = "WRONG_ANSWER"
	VerdictRuntimeError      Verdict = "RUNTIME_ERROR"
	VerdictTimeLimitExceeded Verdict = "TIME_LIMIT_EXCEEDED"

	// VerdictSystemError marks an infrastructure failure unrelated to the
	// submitted code. The UI contract keeps it distinct from RUNTIME_ERROR so
	// students are never penalized for platform faults.
	VerdictSystemError Verdict = "SYSTEM_ERROR"
)

// IsTerminal reports whether the verdict is a sink state of the submission
// state machine.
func (v Verdict) IsTerminal() bool {
	switch v {
	case VerdictAccepted, VerdictWrongAnswer, VerdictRuntimeError,
		VerdictTimeLimitExceeded, VerdictSystemError:
		return true
	}
	return false
}

// TestCase is read-only to the judging path; Hidden cases are graded on
// submit but never returned to run_code callers.
type TestCase struct {
	Input          string `json:"input"`
	ExpectedOutput string `json:"expectedOutput"`
	Hidden         bool   `json:"hidden"`
}

// TestCaseResult is written exactly once per test case, in test-case order.
type TestCaseResult struct {
	TestCaseIndex int     `json:"testCaseIndex"`
	Passed        bool    `json:"passed"`
	Verdict       Verdict `json:"verdict"`
	ActualOutput  string  `json:"actualOutput"`
	TimeMillis    int64   `json:"executionTimeMs"`
	MemoryKB      int64   `json:"memoryKb"`
	Error         string  `json:"error,omitempty"`
}
