package model

// JudgeStatus represents the lifecycle state of a submission.
type JudgeStatus string

const (
	StatusPending  JudgeStatus = "Pending"
	StatusRunning  JudgeStatus = "Running"
	StatusFinished JudgeStatus = "Finished"
	StatusFailed   JudgeStatus = "Failed"
)

// Verdict represents the final outcome of a submission.
type Verdict string

const (
	VerdictAC  Verdict = "AC"
	VerdictWA  Verdict = "WA"
	VerdictTLE Verdict = "TLE"
	VerdictRE  Verdict = "RE"
	VerdictCE  Verdict = "CE"
	VerdictSE  Verdict = "SE"
)

// TestCase is one stdin blob with its expected output.
type TestCase struct {
	Input  string `json:"input"`
	Output string `json:"output"`
	Hidden bool   `json:"hidden"`
}

// SubmissionRequest runs one program against a batch of test cases.
type SubmissionRequest struct {
	Language         Language
	SourceCode       string
	FunctionNameHint string
	TimeLimitMillis  int
	MemoryLimitKB    int
	TestCases        []TestCase
}

// ExecutionRequest returns the single-run request for one test case.
func (r SubmissionRequest) ExecutionRequest(tc TestCase) ExecutionRequest {
	return ExecutionRequest{
		Language:         r.Language,
		SourceCode:       r.SourceCode,
		Stdin:            tc.Input,
		FunctionNameHint: r.FunctionNameHint,
		TimeLimitMillis:  r.TimeLimitMillis,
		MemoryLimitKB:    r.MemoryLimitKB,
	}
}

// TestCaseResult is the outcome of one test case. Input, Expected and
// Actual stay empty for hidden tests.
type TestCaseResult struct {
	Index         int     `json:"index"`
	Hidden        bool    `json:"hidden"`
	Passed        bool    `json:"passed"`
	Verdict       Verdict `json:"verdict"`
	StatusKind    string  `json:"status_kind"`
	Input         string  `json:"input,omitempty"`
	Expected      string  `json:"expected,omitempty"`
	Actual        string  `json:"actual,omitempty"`
	Stderr        string  `json:"stderr,omitempty"`
	CompileOutput string  `json:"compile_output,omitempty"`
	TimeMs        int64   `json:"time_ms"`
	MemoryKB      int64   `json:"memory_kb"`
	Backend       string  `json:"backend,omitempty"`
}

// Summary aggregates test case results. FirstFailed is -1 when every
// test passed.
type Summary struct {
	Passed      int   `json:"passed"`
	Total       int   `json:"total"`
	TotalTimeMs int64 `json:"total_time_ms"`
	MaxMemoryKB int64 `json:"max_memory_kb"`
	FirstFailed int   `json:"first_failed"`
}

// Timestamps captures submission lifecycle timestamps.
type Timestamps struct {
	ReceivedAt int64 `json:"received_at"`
	FinishedAt int64 `json:"finished_at,omitempty"`
}

// Progress reports how many test cases have completed.
type Progress struct {
	TotalTests int `json:"total_tests"`
	DoneTests  int `json:"done_tests"`
}

// SubmissionStatus is the stored view of a submission.
type SubmissionStatus struct {
	SubmissionID string           `json:"submission_id"`
	Status       JudgeStatus      `json:"status"`
	Verdict      Verdict          `json:"verdict,omitempty"`
	Language     Language         `json:"language"`
	FunctionName string           `json:"function_name,omitempty"`
	Tests        []TestCaseResult `json:"tests,omitempty"`
	Summary      Summary          `json:"summary"`
	ErrorCode    int              `json:"error_code,omitempty"`
	ErrorMessage string           `json:"error_message,omitempty"`
	Timestamps   Timestamps       `json:"timestamps"`
	Progress     Progress         `json:"progress"`
}

// StatusEventType distinguishes status events.
type StatusEventType string

const StatusEventFinal StatusEventType = "final"

// StatusEvent is published when a submission reaches a terminal state.
type StatusEvent struct {
	Type      StatusEventType  `json:"type"`
	Status    SubmissionStatus `json:"status"`
	CreatedAt int64            `json:"created_at"`
}
