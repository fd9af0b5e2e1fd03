// Package result maps raw backend observations onto the six-value status
// taxonomy exposed to callers.
package result

import (
	"fmt"
	"strings"

	"tutorjudge/internal/judge/backend"
	"tutorjudge/internal/judge/input"
	"tutorjudge/internal/judge/model"
)

// StatusKind classifies one run independently of backend status codes.
type StatusKind string

const (
	Accepted          StatusKind = "Accepted"
	WrongOutputFormat StatusKind = "WrongOutputFormat"
	RuntimeError      StatusKind = "RuntimeError"
	CompileError      StatusKind = "CompileError"
	Timeout           StatusKind = "Timeout"
	SystemError       StatusKind = "SystemError"
)

var kindByStatus = map[int]StatusKind{
	model.StatusInQueue:             SystemError,
	model.StatusProcessing:          SystemError,
	model.StatusAccepted:            Accepted,
	model.StatusWrongAnswer:         WrongOutputFormat,
	model.StatusTimeLimitExceeded:   Timeout,
	model.StatusCompilationError:    CompileError,
	model.StatusRuntimeErrorSIGSEGV: RuntimeError,
	model.StatusRuntimeErrorSIGXFSZ: RuntimeError,
	model.StatusRuntimeErrorSIGFPE:  RuntimeError,
	model.StatusRuntimeErrorSIGABRT: RuntimeError,
	model.StatusRuntimeErrorNZEC:    RuntimeError,
	model.StatusRuntimeErrorOther:   RuntimeError,
	model.StatusInternalError:       SystemError,
	model.StatusExecFormatError:     SystemError,
}

// KindForStatus looks up the kind for a Judge0 status id.
func KindForStatus(id int) (StatusKind, bool) {
	k, ok := kindByStatus[id]
	return k, ok
}

// Normalized is the uniform result of one run.
type Normalized struct {
	Kind StatusKind
	// Stdout is canonical and empty whenever error output was produced.
	Stdout        string
	Stderr        string
	CompileOutput string
	// StatusID keeps the Judge0 numbering; a timeout is always 5.
	StatusID          int
	StatusDescription string
	TimeSeconds       float64
	MemoryKB          int64
	Source            string
}

// Normalize classifies raw.
func Normalize(raw backend.RawResult) Normalized {
	out := Normalized{
		Stderr:            raw.Stderr,
		CompileOutput:     raw.CompileOutput,
		StatusID:          raw.StatusCode,
		StatusDescription: raw.StatusDescription,
		TimeSeconds:       raw.TimeSeconds,
		MemoryKB:          raw.MemoryKB,
		Source:            raw.Source,
	}

	kind, known := kindByStatus[raw.StatusCode]
	if !known {
		kind = SystemError
		if out.StatusDescription == "" {
			out.StatusDescription = fmt.Sprintf("Unknown status %d", raw.StatusCode)
		}
	} else if out.StatusDescription == "" {
		out.StatusDescription = model.StatusDescription(raw.StatusCode)
	}

	if kind != CompileError && timedOut(raw) {
		kind = Timeout
		out.StatusID = model.StatusTimeLimitExceeded
		out.StatusDescription = model.StatusDescription(model.StatusTimeLimitExceeded)
	}

	if strings.TrimSpace(raw.Stderr) == "" && strings.TrimSpace(raw.CompileOutput) == "" {
		out.Stdout, _ = input.Canonical(raw.Stdout)
	}

	if kind == Accepted && out.Stdout == "" {
		kind = WrongOutputFormat
	}
	out.Kind = kind
	return out
}

func timedOut(raw backend.RawResult) bool {
	return raw.TimedOut ||
		raw.StatusCode == model.StatusTimeLimitExceeded ||
		lastLine(raw.Stderr) == model.TimeoutMarker
}

// lastLine returns the final non-blank line of s, trimmed. Drivers write the
// timeout marker as their last line before exiting.
func lastLine(s string) string {
	s = strings.TrimRight(s, " \t\r\n")
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	return strings.TrimSpace(s)
}

// Canonical exposes the stdout canonicalization for expected outputs.
func Canonical(text string) string {
	s, _ := input.Canonical(text)
	return s
}

// Equivalent reports whether actual matches expected: canonical forms are
// equal, or both texts agree once runs of whitespace are collapsed.
func Equivalent(actual, expected string) bool {
	a, aStructured := input.Canonical(actual)
	e, eStructured := input.Canonical(expected)
	if a == e {
		return true
	}
	if aStructured && eStructured {
		return false
	}
	return strings.Join(strings.Fields(actual), " ") == strings.Join(strings.Fields(expected), " ")
}
