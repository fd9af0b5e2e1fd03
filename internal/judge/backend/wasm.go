package backend

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"tutorjudge/internal/judge/driver"
	"tutorjudge/internal/judge/model"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
	"github.com/tetratelabs/wazero/sys"
)

// SourcePlaceholder in WasmModule.Args is replaced by the program source.
const SourcePlaceholder = "{source}"

// WasmModule describes a WASI interpreter binary such as python.wasm.
type WasmModule struct {
	Language model.Language `yaml:"language"`
	Path     string         `yaml:"path"`
	// Args is argv; one element should be SourcePlaceholder, e.g.
	// ["python", "-c", "{source}"] or ["qjs", "--std", "-e", "{source}"].
	Args []string `yaml:"args"`
}

// WasmRuntime hosts WASI interpreters with a shared compiled-module cache.
type WasmRuntime struct {
	runtime  wazero.Runtime
	modules  map[model.Language]WasmModule
	compiled map[model.Language]wazero.CompiledModule
	mu       sync.RWMutex
	closed   bool
}

// NewWasmRuntime creates a runtime whose guests are limited to
// memoryLimitPages 64KiB pages; zero keeps the wazero default.
func NewWasmRuntime(ctx context.Context, memoryLimitPages uint32, modules ...WasmModule) (*WasmRuntime, error) {
	cfg := wazero.NewRuntimeConfig().WithCloseOnContextDone(true)
	if memoryLimitPages > 0 {
		cfg = cfg.WithMemoryLimitPages(memoryLimitPages)
	}
	rt := wazero.NewRuntimeWithConfig(ctx, cfg)
	if _, err := wasi_snapshot_preview1.Instantiate(ctx, rt); err != nil {
		_ = rt.Close(ctx)
		return nil, fmt.Errorf("instantiate WASI: %w", err)
	}

	w := &WasmRuntime{
		runtime:  rt,
		modules:  make(map[model.Language]WasmModule, len(modules)),
		compiled: make(map[model.Language]wazero.CompiledModule),
	}
	for _, m := range modules {
		if !argsHavePlaceholder(m.Args) {
			_ = rt.Close(ctx)
			return nil, fmt.Errorf("wasm module for %s: args must contain %s", m.Language, SourcePlaceholder)
		}
		w.modules[m.Language] = m
	}
	return w, nil
}

func argsHavePlaceholder(args []string) bool {
	for _, a := range args {
		if strings.Contains(a, SourcePlaceholder) {
			return true
		}
	}
	return false
}

// Interpreters returns one Interpreter per configured language.
func (w *WasmRuntime) Interpreters() map[model.Language]Interpreter {
	out := make(map[model.Language]Interpreter, len(w.modules))
	for lang := range w.modules {
		out[lang] = &wasmInterpreter{runtime: w, language: lang}
	}
	return out
}

func (w *WasmRuntime) getCompiled(ctx context.Context, lang model.Language) (wazero.CompiledModule, error) {
	w.mu.RLock()
	if compiled, ok := w.compiled[lang]; ok {
		w.mu.RUnlock()
		return compiled, nil
	}
	w.mu.RUnlock()

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil, fmt.Errorf("wasm runtime closed")
	}
	if compiled, ok := w.compiled[lang]; ok {
		return compiled, nil
	}
	m, ok := w.modules[lang]
	if !ok {
		return nil, fmt.Errorf("no wasm module for %s", lang)
	}
	binary, err := os.ReadFile(m.Path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", m.Path, err)
	}
	compiled, err := w.runtime.CompileModule(ctx, binary)
	if err != nil {
		return nil, fmt.Errorf("compile %s: %w", m.Path, err)
	}
	w.compiled[lang] = compiled
	return compiled, nil
}

// Close releases the runtime and every compiled module.
func (w *WasmRuntime) Close(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	return w.runtime.Close(ctx)
}

type wasmInterpreter struct {
	runtime  *WasmRuntime
	language model.Language
}

func (i *wasmInterpreter) Run(ctx context.Context, prog driver.Program, limits model.Limits) (RawResult, error) {
	compiled, err := i.runtime.getCompiled(ctx, i.language)
	if err != nil {
		return SystemErrorResult(SourceLocal, err.Error()), nil
	}

	m := i.runtime.modules[i.language]
	args := make([]string, len(m.Args))
	for n, a := range m.Args {
		args[n] = strings.ReplaceAll(a, SourcePlaceholder, prog.Source)
	}

	runCtx, cancel := context.WithTimeout(ctx, limits.Time)
	defer cancel()

	var stdout, stderr bytes.Buffer
	cfg := wazero.NewModuleConfig().
		WithStdout(&stdout).
		WithStderr(&stderr).
		WithArgs(args...).
		WithName("")

	start := time.Now()
	mod, runErr := i.runtime.runtime.InstantiateModule(runCtx, compiled, cfg)
	elapsed := time.Since(start).Seconds()
	if mod != nil {
		_ = mod.Close(ctx)
	}

	if runCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
		timeout := TimeoutResult(SourceLocal, elapsed)
		timeout.Stdout = stdout.String()
		return timeout, nil
	}
	if err := ctx.Err(); err != nil {
		return RawResult{}, err
	}

	res := RawResult{
		Stdout:      stdout.String(),
		Stderr:      stderr.String(),
		TimeSeconds: elapsed,
	}
	exitCode := 0
	if runErr != nil {
		var exitErr *sys.ExitError
		if !stderrors.As(runErr, &exitErr) {
			res.Stderr += runErr.Error()
			res.StatusCode = model.StatusRuntimeErrorOther
			return res, nil
		}
		exitCode = int(exitErr.ExitCode())
	}
	res.StatusCode = exitStatus(exitCode)
	res.TimedOut = exitCode == model.ExitTimeout
	return res, nil
}
