package service

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"tutorjudge/internal/common/cache"
	"tutorjudge/internal/judge/backend"
	"tutorjudge/internal/judge/driver"
	"tutorjudge/internal/judge/model"
	"tutorjudge/internal/judge/result"
	appErr "tutorjudge/pkg/errors"
)

type fakeBackend struct {
	mu       sync.Mutex
	programs []driver.Program
	limits   []model.Limits
	result   backend.RawResult
	err      error
}

func (b *fakeBackend) Execute(ctx context.Context, prog driver.Program, limits model.Limits) (backend.RawResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.programs = append(b.programs, prog)
	b.limits = append(b.limits, limits)
	return b.result, b.err
}

func (b *fakeBackend) calls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.programs)
}

const pythonTwoSum = `def twoSum(nums, target):
    seen = {}
    for i, n in enumerate(nums):
        if target - n in seen:
            return [seen[target - n], i]
        seen[n] = i
`

func newExecuteService(t *testing.T, b backend.Backend, c cache.BasicOps) *ExecuteService {
	t.Helper()
	svc, err := NewExecuteService(ExecuteConfig{Backend: b, ResultCache: c})
	if err != nil {
		t.Fatalf("NewExecuteService() error = %v", err)
	}
	return svc
}

func TestExecuteServiceRunsPipeline(t *testing.T) {
	fb := &fakeBackend{result: backend.RawResult{
		StatusCode:  model.StatusAccepted,
		Stdout:      "[0, 1]\n",
		TimeSeconds: 0.021,
		MemoryKB:    3100,
		Source:      backend.SourceRemote,
	}}
	svc := newExecuteService(t, fb, nil)

	got, err := svc.Execute(context.Background(), model.ExecutionRequest{
		Language:        model.Python,
		SourceCode:      pythonTwoSum,
		Stdin:           "[2,7,11,15]\n9",
		TimeLimitMillis: 1000,
	})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if got.Kind != result.Accepted || got.Stdout != "[0,1]" || got.FunctionName != "twoSum" {
		t.Fatalf("unexpected execution: %+v", got)
	}
	if fb.calls() != 1 {
		t.Fatalf("backend calls = %d, want 1", fb.calls())
	}
	prog := fb.programs[0]
	if prog.FunctionName != "twoSum" || len(prog.Args) != 2 || !strings.Contains(prog.Source, "def twoSum") {
		t.Fatalf("unexpected program: %+v", prog)
	}
	if fb.limits[0].Time != time.Second || fb.limits[0].MemoryKB != model.DefaultMemoryLimitKB {
		t.Fatalf("unexpected limits: %+v", fb.limits[0])
	}
}

func TestExecuteServiceUsesHintWhenNothingDetected(t *testing.T) {
	fb := &fakeBackend{result: backend.RawResult{StatusCode: model.StatusAccepted, Stdout: "1"}}
	svc := newExecuteService(t, fb, nil)

	got, err := svc.Execute(context.Background(), model.ExecutionRequest{
		Language:         model.Python,
		SourceCode:       "print(1)",
		FunctionNameHint: "answer",
	})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if got.FunctionName != "answer" || fb.programs[0].FunctionName != "answer" {
		t.Fatalf("hint not used: %+v", got)
	}
}

func TestExecuteServiceCachesDeterministicResults(t *testing.T) {
	fb := &fakeBackend{result: backend.RawResult{StatusCode: model.StatusAccepted, Stdout: "[0,1]", Source: backend.SourceRemote}}
	svc := newExecuteService(t, fb, cache.NewMemoryCache(16))
	req := model.ExecutionRequest{Language: model.Python, SourceCode: pythonTwoSum, Stdin: "[2,7,11,15]\n9"}

	first, err := svc.Execute(context.Background(), req)
	if err != nil || first.Cached {
		t.Fatalf("first run: %+v, %v", first, err)
	}
	second, err := svc.Execute(context.Background(), req)
	if err != nil || !second.Cached || second.Stdout != "[0,1]" || second.Kind != result.Accepted {
		t.Fatalf("second run: %+v, %v", second, err)
	}
	if fb.calls() != 1 {
		t.Fatalf("backend calls = %d, want 1", fb.calls())
	}

	fb.result = backend.RawResult{StatusCode: model.StatusRuntimeErrorNZEC, Stderr: "Runtime Error: boom", Source: backend.SourceRemote}
	req.Stdin = "[1]\n1"
	for i := 0; i < 2; i++ {
		got, err := svc.Execute(context.Background(), req)
		if err != nil || got.Cached || got.Kind != result.RuntimeError {
			t.Fatalf("runtime error run %d: %+v, %v", i, got, err)
		}
	}
	if fb.calls() != 3 {
		t.Fatalf("runtime errors must not be cached, backend calls = %d", fb.calls())
	}
}

func TestExecuteServiceSkipsCachingLocalResults(t *testing.T) {
	fb := &fakeBackend{result: backend.RawResult{StatusCode: model.StatusAccepted, Stdout: "[0,1]", Source: backend.SourceLocal}}
	svc := newExecuteService(t, fb, cache.NewMemoryCache(16))
	req := model.ExecutionRequest{Language: model.Python, SourceCode: pythonTwoSum, Stdin: "[2,7,11,15]\n9"}

	local, err := svc.Execute(context.Background(), req)
	if err != nil || local.Cached || local.Source != backend.SourceLocal {
		t.Fatalf("local run: %+v, %v", local, err)
	}

	fb.result = backend.RawResult{StatusCode: model.StatusAccepted, Stdout: "[0,1]", Source: backend.SourceRemote}
	remote, err := svc.Execute(context.Background(), req)
	if err != nil || remote.Cached || remote.Source != backend.SourceRemote {
		t.Fatalf("remote run after local: %+v, %v", remote, err)
	}
	again, err := svc.Execute(context.Background(), req)
	if err != nil || !again.Cached || again.Source != backend.SourceRemote {
		t.Fatalf("cached remote run: %+v, %v", again, err)
	}
	if fb.calls() != 2 {
		t.Fatalf("backend calls = %d, want 2", fb.calls())
	}
}

func TestExecuteServiceValidation(t *testing.T) {
	fb := &fakeBackend{}
	svc, err := NewExecuteService(ExecuteConfig{Backend: fb, MaxCodeBytes: 32, MaxStdinBytes: 8})
	if err != nil {
		t.Fatalf("NewExecuteService() error = %v", err)
	}

	tests := []struct {
		name string
		req  model.ExecutionRequest
		want appErr.ErrorCode
	}{
		{"unsupported language", model.ExecutionRequest{Language: "cobol", SourceCode: "x"}, appErr.LanguageNotSupported},
		{"empty code", model.ExecutionRequest{Language: model.Python, SourceCode: "  \n"}, appErr.ValidationFailed},
		{"code too large", model.ExecutionRequest{Language: model.Python, SourceCode: strings.Repeat("x", 33)}, appErr.CodeTooLarge},
		{"stdin too large", model.ExecutionRequest{Language: model.Python, SourceCode: "x", Stdin: "123456789"}, appErr.InputTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Execute(context.Background(), tt.req)
			if !appErr.Is(err, tt.want) {
				t.Fatalf("error = %v, want code %d", err, tt.want)
			}
		})
	}
	if fb.calls() != 0 {
		t.Fatalf("rejected requests reached the backend")
	}
}

func TestExecuteServiceBackendErrorBecomesSystemError(t *testing.T) {
	fb := &fakeBackend{err: appErr.New(appErr.BackendRejected).WithMessage("judge0 returned 401")}
	svc := newExecuteService(t, fb, nil)

	got, err := svc.Execute(context.Background(), model.ExecutionRequest{Language: model.Java, SourceCode: "int f() { return 1; }"})
	if err != nil {
		t.Fatalf("backend failures must be data, got %v", err)
	}
	if got.Kind != result.SystemError || !strings.Contains(got.Stderr, "401") || got.Source != backend.SourceRemote {
		t.Fatalf("unexpected result: %+v", got)
	}
}

func TestExecuteServiceLocalJavaScript(t *testing.T) {
	svc := newExecuteService(t, backend.NewFallback(nil, backend.NewLocal(nil)), nil)
	ctx := context.Background()

	twoSum := `function twoSum(nums, target) {
  for (let i = 0; i < nums.length; i++)
    for (let j = i + 1; j < nums.length; j++)
      if (nums[i] + nums[j] === target) return [i, j];
}`
	got, err := svc.Execute(ctx, model.ExecutionRequest{Language: model.JavaScript, SourceCode: twoSum, Stdin: "[2,7,11,15]\n9"})
	if err != nil || got.Kind != result.Accepted || got.Stdout != "[0,1]" || got.Source != backend.SourceLocal {
		t.Fatalf("two sum: %+v, %v", got, err)
	}

	classTwoSum := `class Solution {
  twoSum(nums, target) {
    const seen = new Map();
    const look = (x) => seen.get(x);
    for (let i = 0; i < nums.length; i++) {
      if (look(target - nums[i]) !== undefined) return [look(target - nums[i]), i];
      seen.set(nums[i], i);
    }
  }
}`
	got, err = svc.Execute(ctx, model.ExecutionRequest{Language: model.JavaScript, SourceCode: classTwoSum, Stdin: "[2,7,11,15]\n9"})
	if err != nil || got.FunctionName != "twoSum" || got.Kind != result.Accepted || got.Stdout != "[0,1]" {
		t.Fatalf("class two sum: %+v, %v", got, err)
	}

	got, err = svc.Execute(ctx, model.ExecutionRequest{Language: model.JavaScript, SourceCode: "function isReady() { return false; }"})
	if err != nil || got.Stdout != "false" {
		t.Fatalf("zero args: %+v, %v", got, err)
	}

	got, err = svc.Execute(ctx, model.ExecutionRequest{Language: model.JavaScript, SourceCode: "function f() { return notDefined; }"})
	if err != nil || got.Kind != result.RuntimeError || got.Stderr == "" {
		t.Fatalf("undefined variable: %+v, %v", got, err)
	}

	start := time.Now()
	got, err = svc.Execute(ctx, model.ExecutionRequest{
		Language:        model.JavaScript,
		SourceCode:      "function spin() { while (true) {} }",
		TimeLimitMillis: 1000,
	})
	if err != nil || got.Kind != result.Timeout || got.StatusID != model.StatusTimeLimitExceeded {
		t.Fatalf("infinite loop: %+v, %v", got, err)
	}
	if elapsed := time.Since(start); elapsed > 1500*time.Millisecond {
		t.Fatalf("timeout took %v", elapsed)
	}

	got, err = svc.Execute(ctx, model.ExecutionRequest{Language: model.TypeScript, SourceCode: "function f(): number { return 1; }"})
	if err != nil || got.Kind != result.SystemError || !strings.Contains(got.Stderr, "Local fallback unavailable") {
		t.Fatalf("typescript without remote: %+v, %v", got, err)
	}
}
