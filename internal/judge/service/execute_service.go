package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"time"

	"tutorjudge/internal/common/cache"
	"tutorjudge/internal/judge/backend"
	"tutorjudge/internal/judge/detect"
	"tutorjudge/internal/judge/driver"
	"tutorjudge/internal/judge/input"
	"tutorjudge/internal/judge/model"
	"tutorjudge/internal/judge/result"
	appErr "tutorjudge/pkg/errors"
	"tutorjudge/pkg/utils/logger"

	"go.uber.org/zap"
)

const (
	DefaultMaxCodeBytes  = 64 << 10
	DefaultMaxStdinBytes = 1 << 20
	DefaultResultTTL     = 10 * time.Minute

	resultKeyPrefix = "judge:result:"
)

// Execution is one normalized run plus how it was produced.
type Execution struct {
	result.Normalized
	FunctionName string
	Cached       bool
}

// ExecuteConfig holds ExecuteService dependencies and settings.
type ExecuteConfig struct {
	Registry      *driver.Registry
	Backend       backend.Backend
	ResultCache   cache.BasicOps
	ResultTTL     time.Duration
	MaxCodeBytes  int
	MaxStdinBytes int
}

// ExecuteService runs one program against one stdin blob.
type ExecuteService struct {
	registry      *driver.Registry
	backend       backend.Backend
	resultCache   cache.BasicOps
	resultTTL     time.Duration
	maxCodeBytes  int
	maxStdinBytes int
}

// NewExecuteService creates an execute service.
func NewExecuteService(cfg ExecuteConfig) (*ExecuteService, error) {
	if cfg.Backend == nil {
		return nil, appErr.New(appErr.InternalServerError).WithMessage("execution backend is required")
	}
	if cfg.Registry == nil {
		cfg.Registry = driver.DefaultRegistry()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = DefaultResultTTL
	}
	if cfg.MaxCodeBytes <= 0 {
		cfg.MaxCodeBytes = DefaultMaxCodeBytes
	}
	if cfg.MaxStdinBytes <= 0 {
		cfg.MaxStdinBytes = DefaultMaxStdinBytes
	}
	return &ExecuteService{
		registry:      cfg.Registry,
		backend:       cfg.Backend,
		resultCache:   cfg.ResultCache,
		resultTTL:     cfg.ResultTTL,
		maxCodeBytes:  cfg.MaxCodeBytes,
		maxStdinBytes: cfg.MaxStdinBytes,
	}, nil
}

// Validate rejects requests that can never run.
func (s *ExecuteService) Validate(req model.ExecutionRequest) error {
	if !s.registry.Supports(req.Language) {
		return appErr.Newf(appErr.LanguageNotSupported, "language %q is not supported", req.Language)
	}
	if strings.TrimSpace(req.SourceCode) == "" {
		return appErr.ValidationError("source_code", "required")
	}
	if len(req.SourceCode) > s.maxCodeBytes {
		return appErr.Newf(appErr.CodeTooLarge, "source code exceeds %d bytes", s.maxCodeBytes)
	}
	if len(req.Stdin) > s.maxStdinBytes {
		return appErr.Newf(appErr.InputTooLarge, "stdin exceeds %d bytes", s.maxStdinBytes)
	}
	return nil
}

// Execute validates, synthesizes and runs req. Only rejected requests
// return an error; backend failures come back as SystemError results.
func (s *ExecuteService) Execute(ctx context.Context, req model.ExecutionRequest) (Execution, error) {
	if err := s.Validate(req); err != nil {
		return Execution{}, err
	}
	limits := req.ResolveLimits()
	name := detect.Resolve(req.SourceCode, req.Language, req.FunctionNameHint).Name

	key := resultKey(req, name, limits)
	if cached, ok := s.lookup(ctx, key); ok {
		return Execution{Normalized: cached, FunctionName: name, Cached: true}, nil
	}

	prog, err := s.registry.Synthesize(ctx, driver.Request{
		Language:     req.Language,
		Source:       req.SourceCode,
		FunctionName: name,
		Args:         input.Parse(req.Stdin),
		TimeLimit:    limits.Time,
	})
	if err != nil {
		return Execution{}, err
	}

	raw, err := s.backend.Execute(ctx, prog, limits)
	if err != nil {
		logger.Error(ctx, "execution backend failed",
			zap.String("language", req.Language.String()),
			zap.String("function", name),
			zap.Error(err),
		)
		source := raw.Source
		if source == "" {
			source = backend.SourceRemote
		}
		raw = backend.SystemErrorResult(source, err.Error())
	}

	res := result.Normalize(raw)
	logger.Info(ctx, "execution finished",
		zap.String("language", req.Language.String()),
		zap.String("function", name),
		zap.String("status_kind", string(res.Kind)),
		zap.String("backend", res.Source),
		zap.Float64("time", res.TimeSeconds),
	)
	if cacheable(res) {
		s.store(ctx, key, res)
	}
	return Execution{Normalized: res, FunctionName: name}, nil
}

func (s *ExecuteService) lookup(ctx context.Context, key string) (result.Normalized, bool) {
	if s.resultCache == nil {
		return result.Normalized{}, false
	}
	var res result.Normalized
	found, err := cache.GetJSON(ctx, s.resultCache, key, &res)
	if err != nil {
		logger.Warn(ctx, "load cached result failed", zap.Error(err))
		return result.Normalized{}, false
	}
	return res, found
}

func (s *ExecuteService) store(ctx context.Context, key string, res result.Normalized) {
	if s.resultCache == nil {
		return
	}
	if err := cache.SetJSON(ctx, s.resultCache, key, res, cache.JitterTTL(s.resultTTL)); err != nil {
		logger.Warn(ctx, "store cached result failed", zap.Error(err))
	}
}

// Only deterministic outcomes from the remote judge are memoized. Local
// fallback results stay uncached so a recovered remote judges the next run.
func cacheable(res result.Normalized) bool {
	if res.Source != backend.SourceRemote {
		return false
	}
	return res.Kind == result.Accepted || res.Kind == result.CompileError
}

func resultKey(req model.ExecutionRequest, name string, limits model.Limits) string {
	h := sha256.New()
	for _, part := range []string{
		req.Language.String(),
		name,
		strconv.FormatInt(limits.Time.Milliseconds(), 10),
		strconv.Itoa(limits.MemoryKB),
		req.SourceCode,
		req.Stdin,
	} {
		h.Write([]byte(strconv.Itoa(len(part))))
		h.Write([]byte{':'})
		h.Write([]byte(part))
	}
	return resultKeyPrefix + hex.EncodeToString(h.Sum(nil))
}
