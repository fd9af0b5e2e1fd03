package backend

import (
	"context"

	"tutorjudge/internal/judge/driver"
	"tutorjudge/internal/judge/model"
	"tutorjudge/pkg/errors"
	"tutorjudge/pkg/utils/logger"

	"go.uber.org/zap"
)

// Remote is a backend that may lack credentials.
type Remote interface {
	Backend
	Configured() bool
}

// Fallback prefers the remote backend and runs locally when the remote has
// no credentials or stays unavailable after its retries.
type Fallback struct {
	remote Remote
	local  *Local
}

// NewFallback composes remote and local; remote may be nil.
func NewFallback(remote Remote, local *Local) *Fallback {
	if local == nil {
		local = NewLocal(nil)
	}
	return &Fallback{remote: remote, local: local}
}

func (f *Fallback) Execute(ctx context.Context, prog driver.Program, limits model.Limits) (RawResult, error) {
	if f.remote == nil || !f.remote.Configured() {
		logger.Debug(ctx, "remote backend not configured, running locally",
			zap.String("language", prog.Language.String()))
		return f.local.Execute(ctx, prog, limits)
	}

	res, err := f.remote.Execute(ctx, prog, limits)
	if err == nil {
		return res, nil
	}
	if !errors.Is(err, errors.BackendUnavailable) || ctx.Err() != nil {
		return res, err
	}
	logger.Warn(ctx, "remote backend unavailable, falling back to local execution",
		zap.String("backend", SourceLocal),
		zap.String("language", prog.Language.String()),
		zap.Error(err),
	)
	return f.local.Execute(ctx, prog, limits)
}
