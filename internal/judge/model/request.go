package model

import "time"

const (
	DefaultTimeLimit     = 5 * time.Second
	MaxTimeLimit         = 15 * time.Second
	MinTimeLimit         = 100 * time.Millisecond
	DefaultMemoryLimitKB = 256000
	MaxMemoryLimitKB     = 512000
	MinMemoryLimitKB     = 16000
)

// ExecutionRequest is one run of user code against one stdin blob.
type ExecutionRequest struct {
	Language         Language
	SourceCode       string
	Stdin            string
	FunctionNameHint string
	TimeLimitMillis  int
	MemoryLimitKB    int
}

// Limits are the resolved resource ceilings for one run.
type Limits struct {
	Time     time.Duration
	MemoryKB int
}

// ResolveLimits applies defaults and clamps caller supplied limits.
func (r ExecutionRequest) ResolveLimits() Limits {
	limit := DefaultTimeLimit
	if r.TimeLimitMillis > 0 {
		limit = time.Duration(r.TimeLimitMillis) * time.Millisecond
	}
	limit = min(max(limit, MinTimeLimit), MaxTimeLimit)

	memory := DefaultMemoryLimitKB
	if r.MemoryLimitKB > 0 {
		memory = r.MemoryLimitKB
	}
	memory = min(max(memory, MinMemoryLimitKB), MaxMemoryLimitKB)

	return Limits{Time: limit, MemoryKB: memory}
}
