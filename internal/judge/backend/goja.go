package backend

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"tutorjudge/internal/judge/driver"
	"tutorjudge/internal/judge/model"

	"github.com/dop251/goja"
)

const defaultMaxCallStack = 10000

type interruptReason int

const (
	interruptTimeLimit interruptReason = iota + 1
	interruptCanceled
)

type exitRequest struct {
	code int
}

// GojaInterpreter runs JavaScript drivers on an embedded goja runtime. The
// runtime has no Node globals, so the driver takes its embedded path and the
// host enforces the time limit through Interrupt.
type GojaInterpreter struct {
	maxCallStack int
}

// NewGojaInterpreter caps recursion depth at maxCallStack frames; zero uses
// the default.
func NewGojaInterpreter(maxCallStack int) *GojaInterpreter {
	if maxCallStack <= 0 {
		maxCallStack = defaultMaxCallStack
	}
	return &GojaInterpreter{maxCallStack: maxCallStack}
}

func (g *GojaInterpreter) Run(ctx context.Context, prog driver.Program, limits model.Limits) (RawResult, error) {
	vm := goja.New()
	vm.SetMaxCallStackSize(g.maxCallStack)

	var stdout, stderr strings.Builder
	exitCode := 0
	if err := installHostObjects(vm, &stdout, &stderr, &exitCode); err != nil {
		return RawResult{}, err
	}

	done := make(chan struct{})
	defer close(done)
	timer := time.AfterFunc(limits.Time, func() { vm.Interrupt(interruptTimeLimit) })
	defer timer.Stop()
	go func() {
		select {
		case <-ctx.Done():
			vm.Interrupt(interruptCanceled)
		case <-done:
		}
	}()

	start := time.Now()
	_, runErr := vm.RunString(prog.Source)
	elapsed := time.Since(start).Seconds()

	res := RawResult{TimeSeconds: elapsed}
	if runErr == nil {
		if v := vm.Get("process"); v != nil {
			if code := v.ToObject(vm).Get("exitCode"); code != nil && !goja.IsUndefined(code) && !goja.IsNull(code) {
				exitCode = int(code.ToInteger())
			}
		}
		res.Stdout = stdout.String()
		res.Stderr = stderr.String()
		res.StatusCode = exitStatus(exitCode)
		res.TimedOut = exitCode == model.ExitTimeout
		return res, nil
	}

	var (
		interrupted *goja.InterruptedError
		overflow    *goja.StackOverflowError
		syntax      *goja.CompilerSyntaxError
		exception   *goja.Exception
	)
	switch {
	case stderrors.As(runErr, &interrupted):
		switch reason := interrupted.Value().(type) {
		case interruptReason:
			if reason == interruptCanceled {
				return RawResult{}, ctx.Err()
			}
			timeout := TimeoutResult("", elapsed)
			timeout.Stdout = stdout.String()
			return timeout, nil
		case exitRequest:
			res.Stdout = stdout.String()
			res.Stderr = stderr.String()
			res.StatusCode = exitStatus(reason.code)
			res.TimedOut = reason.code == model.ExitTimeout
			return res, nil
		}
		res.Stderr = stderr.String() + interrupted.Error()
		res.StatusCode = model.StatusRuntimeErrorOther
	case stderrors.As(runErr, &overflow):
		res.Stdout = stdout.String()
		res.Stderr = stderr.String() + fmt.Sprintf("%s%s: maximum call stack size exceeded\n",
			model.RuntimeErrorPrefix, model.FaultStackOverflow)
		res.StatusCode = model.StatusRuntimeErrorNZEC
	case stderrors.As(runErr, &syntax):
		res.CompileOutput = syntax.Error()
		res.StatusCode = model.StatusCompilationError
	case stderrors.As(runErr, &exception) && isSyntaxError(exception):
		res.CompileOutput = exception.Error()
		res.StatusCode = model.StatusCompilationError
	case stderrors.As(runErr, &exception):
		res.Stdout = stdout.String()
		res.Stderr = stderr.String() + model.RuntimeErrorPrefix + exception.Value().String() + "\n"
		res.StatusCode = model.StatusRuntimeErrorNZEC
	default:
		res.Stderr = stderr.String() + runErr.Error()
		res.StatusCode = model.StatusInternalError
	}
	return res, nil
}

// isSyntaxError reports whether ex wraps a SyntaxError, which is how the
// runtime reports parse failures of the script itself.
func isSyntaxError(ex *goja.Exception) bool {
	v := ex.Value()
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return false
	}
	obj, ok := v.(*goja.Object)
	if !ok {
		return false
	}
	name := obj.Get("name")
	return name != nil && name.String() == "SyntaxError"
}

// installHostObjects provides console and a minimal process object.
func installHostObjects(vm *goja.Runtime, stdout, stderr *strings.Builder, exitCode *int) error {
	line := func(w *strings.Builder) func(goja.FunctionCall) goja.Value {
		return func(call goja.FunctionCall) goja.Value {
			parts := make([]string, len(call.Arguments))
			for i, a := range call.Arguments {
				parts[i] = a.String()
			}
			w.WriteString(strings.Join(parts, " "))
			w.WriteString("\n")
			return goja.Undefined()
		}
	}
	write := func(w *strings.Builder) func(goja.FunctionCall) goja.Value {
		return func(call goja.FunctionCall) goja.Value {
			w.WriteString(call.Argument(0).String())
			return vm.ToValue(true)
		}
	}

	console := vm.NewObject()
	for name, fn := range map[string]func(goja.FunctionCall) goja.Value{
		"log":   line(stdout),
		"info":  line(stdout),
		"warn":  line(stderr),
		"error": line(stderr),
	} {
		if err := console.Set(name, fn); err != nil {
			return err
		}
	}

	out := vm.NewObject()
	if err := out.Set("write", write(stdout)); err != nil {
		return err
	}
	errOut := vm.NewObject()
	if err := errOut.Set("write", write(stderr)); err != nil {
		return err
	}

	process := vm.NewObject()
	if err := process.Set("stdout", out); err != nil {
		return err
	}
	if err := process.Set("stderr", errOut); err != nil {
		return err
	}
	if err := process.Set("exit", func(call goja.FunctionCall) goja.Value {
		code := 0
		if arg := call.Argument(0); !goja.IsUndefined(arg) {
			code = int(arg.ToInteger())
		}
		*exitCode = code
		vm.Interrupt(exitRequest{code: code})
		return goja.Undefined()
	}); err != nil {
		return err
	}

	if err := vm.Set("console", console); err != nil {
		return err
	}
	return vm.Set("process", process)
}
