package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"tutorjudge/internal/common/cache"
	"tutorjudge/internal/judge/model"
	"tutorjudge/internal/judge/repository"
	"tutorjudge/internal/judge/result"
	appErr "tutorjudge/pkg/errors"
)

// fakeExecutor answers by stdin.
type fakeExecutor struct {
	results map[string]Execution
	errs    map[string]error
	block   chan struct{}
}

func (e *fakeExecutor) Validate(req model.ExecutionRequest) error {
	if req.Language != model.Python {
		return appErr.New(appErr.LanguageNotSupported)
	}
	return nil
}

func (e *fakeExecutor) Execute(ctx context.Context, req model.ExecutionRequest) (Execution, error) {
	if e.block != nil {
		<-e.block
	}
	if err := e.errs[req.Stdin]; err != nil {
		return Execution{}, err
	}
	return e.results[req.Stdin], nil
}

func accepted(stdout string) Execution {
	return Execution{
		Normalized:   result.Normalized{Kind: result.Accepted, Stdout: stdout, TimeSeconds: 0.01, MemoryKB: 100},
		FunctionName: "solve",
	}
}

func failed(kind result.StatusKind) Execution {
	return Execution{Normalized: result.Normalized{Kind: kind, Stderr: "trace", TimeSeconds: 0.02, MemoryKB: 300}}
}

type recordingPublisher struct {
	mu       sync.Mutex
	statuses []model.SubmissionStatus
}

func (p *recordingPublisher) PublishFinalStatus(ctx context.Context, status model.SubmissionStatus) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.statuses = append(p.statuses, status)
	return nil
}

func newSubmissionService(t *testing.T, exec Executor, cfg SubmissionConfig) (*SubmissionService, *repository.StatusRepository, *recordingPublisher) {
	t.Helper()
	repo := repository.NewStatusRepository(cache.NewMemoryCache(64), time.Minute)
	pub := &recordingPublisher{}
	cfg.Executor = exec
	cfg.StatusRepo = repo
	cfg.Publisher = pub
	svc, err := NewSubmissionService(cfg)
	if err != nil {
		t.Fatalf("NewSubmissionService() error = %v", err)
	}
	return svc, repo, pub
}

func TestJudgeVerdicts(t *testing.T) {
	exec := &fakeExecutor{
		results: map[string]Execution{
			"ok1":     accepted("[0,1]"),
			"ok2":     accepted("true"),
			"wrong":   accepted("[1,0]"),
			"timeout": failed(result.Timeout),
			"crash":   failed(result.RuntimeError),
			"compile": failed(result.CompileError),
			"format":  failed(result.WrongOutputFormat),
		},
		errs: map[string]error{"broken": appErr.New(appErr.SynthesisFailed)},
	}

	tests := []struct {
		name        string
		inputs      []string
		want        model.Verdict
		passed      int
		firstFailed int
	}{
		{"all pass", []string{"ok1", "ok2"}, model.VerdictAC, 2, -1},
		{"wrong answer", []string{"ok1", "wrong", "timeout"}, model.VerdictWA, 1, 1},
		{"first failure decides", []string{"timeout", "crash"}, model.VerdictTLE, 0, 0},
		{"runtime error", []string{"ok1", "crash"}, model.VerdictRE, 1, 1},
		{"compile error wins", []string{"wrong", "compile"}, model.VerdictCE, 0, 0},
		{"empty output", []string{"format"}, model.VerdictWA, 0, 0},
		{"synthesis failure", []string{"broken"}, model.VerdictSE, 0, 0},
	}

	expected := map[string]string{"ok1": "[0, 1]", "ok2": "true\n", "wrong": "[0,1]"}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, repo, pub := newSubmissionService(t, exec, SubmissionConfig{TestParallelism: 2})
			req := model.SubmissionRequest{Language: model.Python, SourceCode: "def solve(): pass"}
			for _, in := range tt.inputs {
				req.TestCases = append(req.TestCases, model.TestCase{Input: in, Output: expected[in]})
			}
			status := model.SubmissionStatus{SubmissionID: "sub-" + tt.name, Language: model.Python}

			got := svc.Judge(context.Background(), status, req)
			if got.Verdict != tt.want {
				t.Fatalf("verdict = %s, want %s", got.Verdict, tt.want)
			}
			if got.Summary.Passed != tt.passed || got.Summary.Total != len(tt.inputs) || got.Summary.FirstFailed != tt.firstFailed {
				t.Fatalf("unexpected summary: %+v", got.Summary)
			}
			stored, err := repo.Get(context.Background(), status.SubmissionID)
			if err != nil || stored.Verdict != tt.want || stored.Progress.DoneTests != len(tt.inputs) {
				t.Fatalf("stored status: %+v, %v", stored, err)
			}
			if len(pub.statuses) != 1 || pub.statuses[0].Verdict != tt.want {
				t.Fatalf("expected one final event, got %+v", pub.statuses)
			}
		})
	}
}

func TestJudgeSummaryAndFailure(t *testing.T) {
	exec := &fakeExecutor{
		results: map[string]Execution{"a": accepted("1"), "b": failed(result.RuntimeError)},
		errs:    map[string]error{"c": appErr.New(appErr.SynthesisFailed).WithMessage("bad name")},
	}
	svc, _, _ := newSubmissionService(t, exec, SubmissionConfig{})
	req := model.SubmissionRequest{
		Language:   model.Python,
		SourceCode: "x",
		TestCases:  []model.TestCase{{Input: "a", Output: "1"}, {Input: "b", Output: "2"}, {Input: "c", Output: "3"}},
	}

	got := svc.Judge(context.Background(), model.SubmissionStatus{SubmissionID: "s"}, req)
	if got.Summary.TotalTimeMs != 30 || got.Summary.MaxMemoryKB != 300 {
		t.Fatalf("unexpected summary: %+v", got.Summary)
	}
	if got.Status != model.StatusFailed || got.ErrorCode != int(appErr.SynthesisFailed) || got.ErrorMessage != "bad name" {
		t.Fatalf("expected failed status, got %+v", got)
	}
	if got.FunctionName != "solve" {
		t.Fatalf("function name = %q", got.FunctionName)
	}
	if got.Tests[2].Verdict != model.VerdictSE || got.Tests[2].Stderr != "bad name" {
		t.Fatalf("unexpected third test: %+v", got.Tests[2])
	}
}

func TestJudgeRedactsHiddenTests(t *testing.T) {
	exec := &fakeExecutor{results: map[string]Execution{"secret": accepted("42"), "public": accepted("1")}}
	svc, _, _ := newSubmissionService(t, exec, SubmissionConfig{})
	req := model.SubmissionRequest{
		Language:   model.Python,
		SourceCode: "x",
		TestCases: []model.TestCase{
			{Input: "public", Output: "1"},
			{Input: "secret", Output: "41", Hidden: true},
		},
	}

	got := svc.Judge(context.Background(), model.SubmissionStatus{SubmissionID: "h"}, req)
	public, hidden := got.Tests[0], got.Tests[1]
	if public.Input != "public" || public.Expected != "1" || public.Actual != "1" {
		t.Fatalf("public test lost data: %+v", public)
	}
	if !hidden.Hidden || hidden.Input != "" || hidden.Expected != "" || hidden.Actual != "" || hidden.Stderr != "" {
		t.Fatalf("hidden test leaked data: %+v", hidden)
	}
	if hidden.Verdict != model.VerdictWA || got.Verdict != model.VerdictWA {
		t.Fatalf("unexpected verdicts: %s %s", hidden.Verdict, got.Verdict)
	}
}

func TestSubmitRunsInBackground(t *testing.T) {
	exec := &fakeExecutor{results: map[string]Execution{"in": accepted("[0,1]")}}
	svc, _, pub := newSubmissionService(t, exec, SubmissionConfig{})
	svc.newID = func() string { return "fixed-id" }

	id, err := svc.Submit(context.Background(), model.SubmissionRequest{
		Language:   model.Python,
		SourceCode: "x",
		TestCases:  []model.TestCase{{Input: "in", Output: "[0, 1]"}},
	})
	if err != nil || id != "fixed-id" {
		t.Fatalf("Submit() = %q, %v", id, err)
	}
	svc.Wait()

	status, err := svc.Status(context.Background(), id)
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	if status.Status != model.StatusFinished || status.Verdict != model.VerdictAC || status.Timestamps.ReceivedAt == 0 {
		t.Fatalf("unexpected status: %+v", status)
	}
	if len(pub.statuses) != 1 {
		t.Fatalf("expected final event")
	}
}

func TestSubmitValidation(t *testing.T) {
	svc, _, _ := newSubmissionService(t, &fakeExecutor{}, SubmissionConfig{MaxTestCases: 1})
	ctx := context.Background()

	if _, err := svc.Submit(ctx, model.SubmissionRequest{Language: model.Python, SourceCode: "x"}); !appErr.Is(err, appErr.ValidationFailed) {
		t.Fatalf("expected validation error, got %v", err)
	}
	two := []model.TestCase{{Input: "1"}, {Input: "2"}}
	if _, err := svc.Submit(ctx, model.SubmissionRequest{Language: model.Python, SourceCode: "x", TestCases: two}); !appErr.Is(err, appErr.TooManyTestCases) {
		t.Fatalf("expected too many test cases, got %v", err)
	}
	one := []model.TestCase{{Input: "1"}}
	if _, err := svc.Submit(ctx, model.SubmissionRequest{Language: model.Java, SourceCode: "x", TestCases: one}); !appErr.Is(err, appErr.LanguageNotSupported) {
		t.Fatalf("expected unsupported language, got %v", err)
	}
	if _, err := svc.Status(ctx, "missing"); !appErr.Is(err, appErr.SubmissionNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestSubmitQueueFull(t *testing.T) {
	block := make(chan struct{})
	exec := &fakeExecutor{results: map[string]Execution{"1": accepted("1")}, block: block}
	svc, _, _ := newSubmissionService(t, exec, SubmissionConfig{WorkerPoolSize: 1, QueueWait: 20 * time.Millisecond})
	req := model.SubmissionRequest{Language: model.Python, SourceCode: "x", TestCases: []model.TestCase{{Input: "1", Output: "1"}}}

	if _, err := svc.Submit(context.Background(), req); err != nil {
		t.Fatalf("first Submit() error = %v", err)
	}
	if _, err := svc.Submit(context.Background(), req); !appErr.Is(err, appErr.JudgeQueueFull) {
		t.Fatalf("expected queue full, got %v", err)
	}
	close(block)
	svc.Wait()

	if _, err := svc.Submit(context.Background(), req); err != nil {
		t.Fatalf("slot not released: %v", err)
	}
	svc.Wait()
}
