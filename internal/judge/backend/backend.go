// Package backend runs synthesized programs, remotely on Judge0 or in-process
// when the remote service is unavailable.
package backend

import (
	"context"

	"tutorjudge/internal/judge/driver"
	"tutorjudge/internal/judge/model"
)

// Result sources.
const (
	SourceRemote = "remote"
	SourceLocal  = "local"
)

// RawResult is what a backend observed, before normalization. StatusCode uses
// the Judge0 numbering.
type RawResult struct {
	Stdout            string
	Stderr            string
	CompileOutput     string
	StatusCode        int
	StatusDescription string
	TimeSeconds       float64
	MemoryKB          int64
	// TimedOut is set when the backend itself gave up waiting.
	TimedOut bool
	Source   string
}

// Backend executes one program.
type Backend interface {
	Execute(ctx context.Context, prog driver.Program, limits model.Limits) (RawResult, error)
}

// SystemErrorResult builds an internal-error result carrying message on stderr.
func SystemErrorResult(source, message string) RawResult {
	return RawResult{
		Stderr:            message,
		StatusCode:        model.StatusInternalError,
		StatusDescription: model.StatusDescription(model.StatusInternalError),
		Source:            source,
	}
}

// TimeoutResult builds a time-limit result for a run the backend abandoned.
func TimeoutResult(source string, seconds float64) RawResult {
	return RawResult{
		Stderr:            model.TimeoutMarker,
		StatusCode:        model.StatusTimeLimitExceeded,
		StatusDescription: model.StatusDescription(model.StatusTimeLimitExceeded),
		TimeSeconds:       seconds,
		TimedOut:          true,
		Source:            source,
	}
}
