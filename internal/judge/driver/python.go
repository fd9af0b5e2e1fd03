package driver

import (
	"fmt"
	"math"
	"strings"

	"tutorjudge/internal/judge/input"
	"tutorjudge/internal/judge/model"
)

// PythonBuilder renders Python 3 drivers.
type PythonBuilder struct{}

func (PythonBuilder) Language() model.Language { return model.Python }
func (PythonBuilder) ArgumentIdent() string    { return "__tutor_args" }

const pythonPrelude = `import sys, os, json, signal
import collections, heapq, math, itertools, functools, bisect, re
import re as __tutor_re
from typing import *

__TUTOR_TIME_LIMIT = {{time_limit}}
__TUTOR_ARITY_PATTERN = r"positional arguments? but|takes \d+ positional|missing \d+ required|unexpected keyword argument"


def __tutor_on_timeout(signum, frame):
    try:
        sys.stdout.flush()
    finally:
        os.write(2, b"{{timeout_marker}}\n")
        os._exit({{exit_timeout}})


if hasattr(signal, "SIGALRM") and hasattr(signal, "setitimer"):
    signal.signal(signal.SIGALRM, __tutor_on_timeout)
    signal.setitimer(signal.ITIMER_REAL, __TUTOR_TIME_LIMIT)

`

const pythonDriver = `

__TUTOR_FUNCTION = {{function}}


def __tutor_fail(category, detail):
    sys.stdout.flush()
    sys.stderr.write("{{runtime_prefix}}%s: %s\n" % (category, detail))
    sys.stderr.flush()
    sys.exit({{exit_runtime}})


def __tutor_resolve():
    fn = globals().get(__TUTOR_FUNCTION)
    if callable(fn) and not isinstance(fn, type):
        return fn
    cls = globals().get("Solution")
    if isinstance(cls, type) and callable(getattr(cls, __TUTOR_FUNCTION, None)):
        return getattr(cls(), __TUTOR_FUNCTION)
    return None


def __tutor_default(o):
    if isinstance(o, (set, frozenset)):
        return sorted(o, key=repr)
    if hasattr(o, "__dict__"):
        return vars(o)
    return str(o)


def __tutor_main():
    fn = __tutor_resolve()
    if fn is None:
        __tutor_fail("{{fault_missing}}", "no callable named %s" % __TUTOR_FUNCTION)
    sys.setrecursionlimit(max(sys.getrecursionlimit(), 10000))
    try:
        result = {{call}}
    except RecursionError as e:
        __tutor_fail("{{fault_stack}}", e)
    except MemoryError as e:
        __tutor_fail("{{fault_memory}}", e)
    except TypeError as e:
        if __tutor_re.search(__TUTOR_ARITY_PATTERN, str(e)):
            __tutor_fail("{{fault_args}}", e)
        __tutor_fail("TypeError", e)
    except NameError as e:
        __tutor_fail("{{fault_undefined}}", e)
    except Exception as e:
        __tutor_fail(type(e).__name__, e)
    if hasattr(signal, "setitimer"):
        signal.setitimer(signal.ITIMER_REAL, 0)
    try:
        text = json.dumps(result, separators=(",", ":"), sort_keys=True, ensure_ascii=False, default=__tutor_default)
    except (TypeError, ValueError):
        text = json.dumps(result, separators=(",", ":"), ensure_ascii=False, default=__tutor_default)
    sys.stdout.write(text + "\n")
    sys.stdout.flush()


__tutor_main()
`

func (p PythonBuilder) Build(req Request) (string, error) {
	var b strings.Builder

	call := "fn()"
	if len(req.Args) > 0 {
		call = "fn(*" + p.ArgumentIdent() + ")"
	}
	r := strings.NewReplacer(
		"{{time_limit}}", fmt.Sprintf("%.3f", req.TimeLimit.Seconds()),
		"{{timeout_marker}}", model.TimeoutMarker,
		"{{exit_timeout}}", fmt.Sprint(model.ExitTimeout),
		"{{exit_runtime}}", fmt.Sprint(model.ExitRuntimeError),
		"{{runtime_prefix}}", model.RuntimeErrorPrefix,
		"{{function}}", input.Quote(req.FunctionName),
		"{{fault_missing}}", model.FaultFunctionMissing,
		"{{fault_stack}}", model.FaultStackOverflow,
		"{{fault_memory}}", model.FaultOutOfMemory,
		"{{fault_args}}", model.FaultArgumentCount,
		"{{fault_undefined}}", model.FaultUndefinedName,
		"{{call}}", call,
	)

	b.WriteString(r.Replace(pythonPrelude))
	b.WriteString(req.Source)
	if !strings.HasSuffix(req.Source, "\n") {
		b.WriteString("\n")
	}
	if len(req.Args) > 0 {
		b.WriteString("\n\n")
		b.WriteString(p.ArgumentIdent())
		b.WriteString(" = [")
		joinLiterals(&b, req.Args, ", ", writePythonLiteral)
		b.WriteString("]\n")
	}
	b.WriteString(r.Replace(pythonDriver))
	return b.String(), nil
}

func writePythonLiteral(b *strings.Builder, v input.Value) {
	switch v.Kind() {
	case input.KindNull:
		b.WriteString("None")
	case input.KindBool:
		if v.AsBool() {
			b.WriteString("True")
		} else {
			b.WriteString("False")
		}
	case input.KindInt:
		fmt.Fprint(b, v.AsInt())
	case input.KindFloat:
		f := v.AsFloat()
		switch {
		case math.IsNaN(f):
			b.WriteString(`float("nan")`)
		case math.IsInf(f, 1):
			b.WriteString(`float("inf")`)
		case math.IsInf(f, -1):
			b.WriteString(`float("-inf")`)
		default:
			s := input.FormatFloat(f)
			if !strings.ContainsAny(s, ".e") {
				s += ".0"
			}
			b.WriteString(s)
		}
	case input.KindString:
		input.WriteQuoted(b, v.AsString())
	case input.KindList:
		b.WriteString("[")
		joinLiterals(b, v.Items(), ", ", writePythonLiteral)
		b.WriteString("]")
	case input.KindObject:
		b.WriteString("{")
		for i, f := range v.Fields() {
			if i > 0 {
				b.WriteString(", ")
			}
			input.WriteQuoted(b, f.Key)
			b.WriteString(": ")
			writePythonLiteral(b, f.Value)
		}
		b.WriteString("}")
	}
}
