package backend

import (
	"context"
	"fmt"
	"time"

	"tutorjudge/internal/judge/driver"
	"tutorjudge/internal/judge/model"
	"tutorjudge/pkg/utils/logger"

	"go.uber.org/zap"
)

// Interpreter runs a program in-process for one language.
type Interpreter interface {
	Run(ctx context.Context, prog driver.Program, limits model.Limits) (RawResult, error)
}

// Local dispatches programs to in-process interpreters.
type Local struct {
	interpreters map[model.Language]Interpreter
}

// NewLocal builds a local backend with a goja interpreter for JavaScript
// plus any extra interpreters given.
func NewLocal(extra map[model.Language]Interpreter) *Local {
	l := &Local{interpreters: map[model.Language]Interpreter{
		model.JavaScript: NewGojaInterpreter(0),
	}}
	for lang, interp := range extra {
		if interp != nil {
			l.interpreters[lang] = interp
		}
	}
	return l
}

// Supports reports whether lang can run locally.
func (l *Local) Supports(lang model.Language) bool {
	_, ok := l.interpreters[lang]
	return ok
}

// Execute runs prog locally. Languages without an interpreter yield a
// system error result rather than an error.
func (l *Local) Execute(ctx context.Context, prog driver.Program, limits model.Limits) (RawResult, error) {
	interp, ok := l.interpreters[prog.Language]
	if !ok {
		logger.Warn(ctx, "local fallback unavailable",
			zap.String("backend", SourceLocal),
			zap.String("language", prog.Language.String()),
		)
		return SystemErrorResult(SourceLocal, fmt.Sprintf("Local fallback unavailable for %s", prog.Language)), nil
	}

	start := time.Now()
	res, err := interp.Run(ctx, prog, limits)
	if err != nil {
		return RawResult{}, err
	}
	res.Source = SourceLocal
	if res.TimeSeconds == 0 {
		res.TimeSeconds = time.Since(start).Seconds()
	}
	if res.StatusDescription == "" {
		res.StatusDescription = model.StatusDescription(res.StatusCode)
	}
	logger.Info(ctx, "local execution finished",
		zap.String("backend", SourceLocal),
		zap.String("language", prog.Language.String()),
		zap.Int("status_id", res.StatusCode),
		zap.Bool("timed_out", res.TimedOut),
		zap.Float64("time_seconds", res.TimeSeconds),
	)
	return res, nil
}

// exitStatus maps a driver exit code to an execution status id.
func exitStatus(code int) int {
	switch code {
	case 0:
		return model.StatusAccepted
	case model.ExitTimeout:
		return model.StatusTimeLimitExceeded
	default:
		return model.StatusRuntimeErrorNZEC
	}
}
