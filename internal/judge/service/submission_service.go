package service

import (
	"context"
	"math"
	"sync"
	"time"

	"tutorjudge/internal/judge/model"
	"tutorjudge/internal/judge/repository"
	"tutorjudge/internal/judge/result"
	appErr "tutorjudge/pkg/errors"
	"tutorjudge/pkg/utils/contextkey"
	"tutorjudge/pkg/utils/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultWorkerPoolSize  = 4
	DefaultTestParallelism = 4
	DefaultMaxTestCases    = 50
	DefaultQueueWait       = 2 * time.Second
	DefaultJobTimeout      = 2 * time.Minute
)

// Executor runs one test case.
type Executor interface {
	Validate(req model.ExecutionRequest) error
	Execute(ctx context.Context, req model.ExecutionRequest) (Execution, error)
}

// StatusStore persists submission status.
type StatusStore interface {
	Get(ctx context.Context, submissionID string) (model.SubmissionStatus, error)
	Save(ctx context.Context, status model.SubmissionStatus) error
}

// SubmissionConfig holds SubmissionService dependencies and settings.
type SubmissionConfig struct {
	Executor        Executor
	StatusRepo      StatusStore
	Publisher       repository.StatusEventPublisher
	WorkerPoolSize  int
	TestParallelism int
	MaxTestCases    int
	QueueWait       time.Duration
	JobTimeout      time.Duration
	StatusTimeout   time.Duration
}

// SubmissionService judges programs against batches of test cases.
type SubmissionService struct {
	executor        Executor
	statusRepo      StatusStore
	publisher       repository.StatusEventPublisher
	testParallelism int
	maxTestCases    int
	queueWait       time.Duration
	jobTimeout      time.Duration
	statusTimeout   time.Duration
	sem             chan struct{}
	jobs            sync.WaitGroup
	newID           func() string
	now             func() time.Time
}

// NewSubmissionService creates a submission service.
func NewSubmissionService(cfg SubmissionConfig) (*SubmissionService, error) {
	if cfg.Executor == nil {
		return nil, appErr.New(appErr.InternalServerError).WithMessage("executor is required")
	}
	if cfg.StatusRepo == nil {
		return nil, appErr.New(appErr.InternalServerError).WithMessage("status repository is required")
	}
	poolSize := cfg.WorkerPoolSize
	if poolSize <= 0 {
		poolSize = DefaultWorkerPoolSize
	}
	if cfg.TestParallelism <= 0 {
		cfg.TestParallelism = DefaultTestParallelism
	}
	if cfg.MaxTestCases <= 0 {
		cfg.MaxTestCases = DefaultMaxTestCases
	}
	if cfg.QueueWait <= 0 {
		cfg.QueueWait = DefaultQueueWait
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = DefaultJobTimeout
	}
	return &SubmissionService{
		executor:        cfg.Executor,
		statusRepo:      cfg.StatusRepo,
		publisher:       cfg.Publisher,
		testParallelism: cfg.TestParallelism,
		maxTestCases:    cfg.MaxTestCases,
		queueWait:       cfg.QueueWait,
		jobTimeout:      cfg.JobTimeout,
		statusTimeout:   cfg.StatusTimeout,
		sem:             make(chan struct{}, poolSize),
		newID:           uuid.NewString,
		now:             time.Now,
	}, nil
}

// Submit validates req, stores a pending status and judges it in the
// background. It returns the submission id.
func (s *SubmissionService) Submit(ctx context.Context, req model.SubmissionRequest) (string, error) {
	if err := s.validate(req); err != nil {
		return "", err
	}
	if err := s.acquireSlot(ctx); err != nil {
		return "", err
	}

	id := s.newID()
	pending := model.SubmissionStatus{
		SubmissionID: id,
		Status:       model.StatusPending,
		Language:     req.Language,
		Summary:      model.Summary{Total: len(req.TestCases), FirstFailed: -1},
		Timestamps:   model.Timestamps{ReceivedAt: s.now().Unix()},
		Progress:     model.Progress{TotalTests: len(req.TestCases)},
	}
	if err := s.saveStatus(ctx, pending); err != nil {
		s.releaseSlot()
		return "", err
	}

	s.jobs.Add(1)
	go func() {
		defer s.jobs.Done()
		defer s.releaseSlot()
		jobCtx, cancel := context.WithTimeout(contextkey.WithSubmissionID(context.WithoutCancel(ctx), id), s.jobTimeout)
		defer cancel()
		s.Judge(jobCtx, pending, req)
	}()
	return id, nil
}

// Status returns the stored status of a submission.
func (s *SubmissionService) Status(ctx context.Context, submissionID string) (model.SubmissionStatus, error) {
	return s.statusRepo.Get(ctx, submissionID)
}

// Wait blocks until every background job has finished.
func (s *SubmissionService) Wait() {
	s.jobs.Wait()
}

// Judge runs every test case of req and stores the final status.
func (s *SubmissionService) Judge(ctx context.Context, status model.SubmissionStatus, req model.SubmissionRequest) model.SubmissionStatus {
	status.Status = model.StatusRunning
	if err := s.saveStatus(ctx, status); err != nil {
		logger.Warn(ctx, "update running status failed", zap.String("submission_id", status.SubmissionID), zap.Error(err))
	}

	tests := make([]model.TestCaseResult, len(req.TestCases))
	var (
		mu       sync.Mutex
		done     int
		firstErr error
		function string
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.testParallelism)
	for i, tc := range req.TestCases {
		i, tc := i, tc
		g.Go(func() error {
			exec, err := s.executor.Execute(gctx, req.ExecutionRequest(tc))
			tr := testCaseResult(i, tc, exec, err)

			mu.Lock()
			defer mu.Unlock()
			tests[i] = tr
			if err != nil && firstErr == nil {
				firstErr = err
			}
			if function == "" {
				function = exec.FunctionName
			}
			done++
			progress := status
			progress.Progress.DoneTests = done
			if saveErr := s.saveStatus(ctx, progress); saveErr != nil {
				logger.Warn(ctx, "update progress failed", zap.String("submission_id", status.SubmissionID), zap.Error(saveErr))
			}
			return nil
		})
	}
	_ = g.Wait()

	status.Status = model.StatusFinished
	status.FunctionName = function
	status.Tests = tests
	status.Verdict = FinalVerdict(tests)
	status.Summary = Summarize(tests)
	status.Progress.DoneTests = len(tests)
	status.Timestamps.FinishedAt = s.now().Unix()
	if firstErr != nil {
		status.Status = model.StatusFailed
		status.ErrorCode = int(appErr.GetCode(firstErr))
		status.ErrorMessage = firstErr.Error()
	}

	storeCtx := context.WithoutCancel(ctx)
	if err := s.saveStatus(storeCtx, status); err != nil {
		logger.Error(ctx, "store final status failed", zap.String("submission_id", status.SubmissionID), zap.Error(err))
	}
	if s.publisher != nil {
		if err := s.publisher.PublishFinalStatus(storeCtx, status); err != nil {
			logger.Warn(ctx, "publish final status failed", zap.String("submission_id", status.SubmissionID), zap.Error(err))
		}
	}
	logger.Info(ctx, "submission judged",
		zap.String("submission_id", status.SubmissionID),
		zap.String("verdict", string(status.Verdict)),
		zap.Int("passed", status.Summary.Passed),
		zap.Int("total", status.Summary.Total),
	)
	return status
}

func (s *SubmissionService) validate(req model.SubmissionRequest) error {
	if len(req.TestCases) == 0 {
		return appErr.ValidationError("test_cases", "required")
	}
	if len(req.TestCases) > s.maxTestCases {
		return appErr.Newf(appErr.TooManyTestCases, "at most %d test cases are allowed", s.maxTestCases)
	}
	for _, tc := range req.TestCases {
		if err := s.executor.Validate(req.ExecutionRequest(tc)); err != nil {
			return err
		}
	}
	return nil
}

func (s *SubmissionService) acquireSlot(ctx context.Context) error {
	timer := time.NewTimer(s.queueWait)
	defer timer.Stop()
	select {
	case s.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return appErr.New(appErr.JudgeQueueFull).WithMessage("worker pool is full")
	}
}

func (s *SubmissionService) releaseSlot() {
	select {
	case <-s.sem:
	default:
	}
}

func (s *SubmissionService) saveStatus(ctx context.Context, status model.SubmissionStatus) error {
	ctxStatus := ctx
	if s.statusTimeout > 0 {
		var cancel context.CancelFunc
		ctxStatus, cancel = context.WithTimeout(ctx, s.statusTimeout)
		defer cancel()
	}
	return s.statusRepo.Save(ctxStatus, status)
}

func testCaseResult(index int, tc model.TestCase, exec Execution, err error) model.TestCaseResult {
	tr := model.TestCaseResult{Index: index, Hidden: tc.Hidden}
	if err != nil {
		tr.Verdict = model.VerdictSE
		tr.StatusKind = string(result.SystemError)
		tr.Stderr = err.Error()
	} else {
		tr.StatusKind = string(exec.Kind)
		tr.Verdict = verdictFor(exec.Normalized, tc.Output)
		tr.Passed = tr.Verdict == model.VerdictAC
		tr.Actual = exec.Stdout
		tr.Stderr = exec.Stderr
		tr.CompileOutput = exec.CompileOutput
		tr.TimeMs = int64(math.Round(exec.TimeSeconds * 1000))
		tr.MemoryKB = exec.MemoryKB
		tr.Backend = exec.Source
	}
	if tc.Hidden {
		tr.Stderr = ""
		tr.Actual = ""
		return tr
	}
	tr.Input = tc.Input
	tr.Expected = tc.Output
	return tr
}

func verdictFor(res result.Normalized, expected string) model.Verdict {
	switch res.Kind {
	case result.Accepted:
		if result.Equivalent(res.Stdout, expected) {
			return model.VerdictAC
		}
		return model.VerdictWA
	case result.WrongOutputFormat:
		return model.VerdictWA
	case result.Timeout:
		return model.VerdictTLE
	case result.RuntimeError:
		return model.VerdictRE
	case result.CompileError:
		return model.VerdictCE
	default:
		return model.VerdictSE
	}
}

// FinalVerdict is CE when any test failed to compile, otherwise the
// verdict of the first failing test, otherwise AC.
func FinalVerdict(tests []model.TestCaseResult) model.Verdict {
	for _, tr := range tests {
		if tr.Verdict == model.VerdictCE {
			return model.VerdictCE
		}
	}
	for _, tr := range tests {
		if !tr.Passed {
			return tr.Verdict
		}
	}
	return model.VerdictAC
}

// Summarize aggregates test results.
func Summarize(tests []model.TestCaseResult) model.Summary {
	sum := model.Summary{Total: len(tests), FirstFailed: -1}
	for _, tr := range tests {
		if tr.Passed {
			sum.Passed++
		} else if sum.FirstFailed < 0 {
			sum.FirstFailed = tr.Index
		}
		sum.TotalTimeMs += tr.TimeMs
		sum.MaxMemoryKB = max(sum.MaxMemoryKB, tr.MemoryKB)
	}
	return sum
}
