package driver

import (
	"fmt"
	"math"
	"strings"

	"tutorjudge/internal/judge/input"
	"tutorjudge/internal/judge/model"
)

// JavaScriptBuilder renders drivers that run under Node.js or an embedded
// engine without Node globals.
type JavaScriptBuilder struct{}

func (JavaScriptBuilder) Language() model.Language { return model.JavaScript }
func (JavaScriptBuilder) ArgumentIdent() string    { return "__tutor_args" }

func (j JavaScriptBuilder) Build(req Request) (string, error) {
	return buildScript(req, j.ArgumentIdent(), ""), nil
}

// TypeScriptBuilder renders the JavaScript driver with the annotations tsc
// needs to accept it.
type TypeScriptBuilder struct{}

func (TypeScriptBuilder) Language() model.Language { return model.TypeScript }
func (TypeScriptBuilder) ArgumentIdent() string    { return "__tutor_args" }

func (t TypeScriptBuilder) Build(req Request) (string, error) {
	return buildScript(req, t.ArgumentIdent(), ": any"), nil
}

// scriptDriver avoids ES2015 library calls so tsc accepts it with the default lib.
const scriptDriver = `

const __TUTOR_FUNCTION = {{function}};
const __TUTOR_TIME_LIMIT_MS = {{time_limit_ms}};
const __tutor_global{{any}} = (0, eval)("this");
const __tutor_require{{any}} = (function () {
  try {
    return eval("require");
  } catch (e{{any}}) {
    return undefined;
  }
})();

function __tutor_write(stream{{any}}, text{{any}}) {
  const p = __tutor_global.process;
  if (p && p[stream] && typeof p[stream].write === "function") {
    p[stream].write(text);
    return;
  }
  const s = __tutor_global.std;
  if (s && (stream === "stdout" ? s.out : s.err)) {
    (stream === "stdout" ? s.out : s.err).puts(text);
    return;
  }
  const line = text.replace(/\n$/, "");
  if (stream === "stdout") {
    console.log(line);
  } else {
    console.error(line);
  }
}

function __tutor_exit(code{{any}}) {
  const p = __tutor_global.process;
  if (p) {
    p.exitCode = code;
    if (code === {{exit_timeout}} && typeof p.exit === "function") {
      p.exit(code);
    }
    return;
  }
  const s = __tutor_global.std;
  if (s && typeof s.exit === "function") {
    s.exit(code);
  }
}

function __tutor_fail(category{{any}}, detail{{any}}) {
  __tutor_write("stderr", "{{runtime_prefix}}" + category + ": " + detail + "\n");
  __tutor_exit({{exit_runtime}});
}

function __tutor_timeout() {
  __tutor_write("stderr", "{{timeout_marker}}\n");
  __tutor_exit({{exit_timeout}});
}

function __tutor_serialize(value{{any}}){{string}} {
  if (value === undefined || value === null) {
    return "null";
  }
  const kind = typeof value;
  if (kind === "number") {
    return isFinite(value) ? JSON.stringify(value) : "null";
  }
  if (kind === "bigint") {
    return value.toString();
  }
  if (kind === "boolean") {
    return value ? "true" : "false";
  }
  if (kind === "string") {
    return JSON.stringify(value);
  }
  if (kind === "function" || kind === "symbol") {
    return "null";
  }
  const g = __tutor_global;
  if (g.Set && value instanceof g.Set) {
    const items{{any}} = [];
    value.forEach(function (x{{any}}) { items.push(x); });
    return __tutor_serialize(items);
  }
  if (g.Map && value instanceof g.Map) {
    const obj{{any}} = {};
    value.forEach(function (v{{any}}, k{{any}}) { obj[String(k)] = v; });
    return __tutor_serialize(obj);
  }
  if (Array.isArray(value) || (g.ArrayBuffer && g.ArrayBuffer.isView(value) && !(value instanceof g.DataView))) {
    const parts{{any}} = [];
    for (let i = 0; i < value.length; i++) {
      parts.push(__tutor_serialize(value[i]));
    }
    return "[" + parts.join(",") + "]";
  }
  if (typeof value.toJSON === "function") {
    return __tutor_serialize(value.toJSON());
  }
  const keys = Object.keys(value).sort();
  const fields{{any}} = [];
  for (let i = 0; i < keys.length; i++) {
    const v = value[keys[i]];
    if (v === undefined || typeof v === "function") {
      continue;
    }
    fields.push(JSON.stringify(keys[i]) + ":" + __tutor_serialize(v));
  }
  return "{" + fields.join(",") + "}";
}

function __tutor_classify(err{{any}}) {
  if (err === null || err === undefined || typeof err !== "object") {
    return ["Error", String(err)];
  }
  const name = err.name ? String(err.name) : "Error";
  const message = err.message !== undefined ? String(err.message) : String(err);
  if (name === "RangeError" && /call stack|too much recursion|stack overflow/i.test(message)) {
    return ["{{fault_stack}}", message];
  }
  if (/out of memory|allocation failed|heap limit/i.test(message)) {
    return ["{{fault_memory}}", message];
  }
  if (name === "ReferenceError") {
    return ["{{fault_undefined}}", message];
  }
  return [name, message];
}

function __tutor_report(err{{any}}) {
  const c = __tutor_classify(err);
  __tutor_fail(c[0], c[1]);
}

function __tutor_resolve(){{any}} {
  let fn{{any}};
  try {
    fn = eval(__TUTOR_FUNCTION);
  } catch (e{{any}}) {
    fn = undefined;
  }
  if (typeof fn === "function" && !/^class\b/.test(Function.prototype.toString.call(fn))) {
    return fn;
  }
  let cls{{any}};
  try {
    cls = eval("Solution");
  } catch (e{{any}}) {
    cls = undefined;
  }
  if (typeof cls === "function") {
    const instance = new cls();
    if (typeof instance[__TUTOR_FUNCTION] === "function") {
      return instance[__TUTOR_FUNCTION].bind(instance);
    }
  }
  return undefined;
}

function __tutor_main(){{any}} {
  const fn = __tutor_resolve();
  if (typeof fn !== "function") {
    throw { __tutor_missing: true };
  }
  if ({{argc}} < fn.length) {
    throw { __tutor_arity: fn.length };
  }
  return {{call}};
}

function __tutor_emit(result{{any}}) {
  __tutor_write("stdout", __tutor_serialize(result) + "\n");
}

function __tutor_handle(err{{any}}) {
  if (err && err.__tutor_missing) {
    __tutor_fail("{{fault_missing}}", "no function named " + __TUTOR_FUNCTION);
  } else if (err && err.__tutor_arity !== undefined) {
    __tutor_fail("{{fault_args}}", "expected " + err.__tutor_arity + " arguments, got {{argc}}");
  } else if (err && err.code === "ERR_SCRIPT_EXECUTION_TIMEOUT") {
    __tutor_timeout();
  } else {
    __tutor_report(err);
  }
}

function __tutor_run() {
  let result{{any}};
  try {
    if (typeof __tutor_require === "function") {
      __tutor_global.__tutor_main = __tutor_main;
      result = __tutor_require("vm").runInThisContext("__tutor_main()", { timeout: __TUTOR_TIME_LIMIT_MS });
    } else {
      result = __tutor_main();
    }
  } catch (err{{any}}) {
    __tutor_handle(err);
    return;
  }
  if (result && typeof result.then === "function") {
    const g = __tutor_global;
    let timer{{any}};
    let settled = false;
    if (typeof g.setTimeout === "function") {
      timer = g.setTimeout(function () {
        if (!settled) {
          __tutor_timeout();
        }
      }, __TUTOR_TIME_LIMIT_MS);
    }
    result.then(function (value{{any}}) {
      settled = true;
      if (timer !== undefined) {
        g.clearTimeout(timer);
      }
      __tutor_emit(value);
    }, function (err{{any}}) {
      settled = true;
      if (timer !== undefined) {
        g.clearTimeout(timer);
      }
      __tutor_handle(err);
    });
    return;
  }
  __tutor_emit(result);
}

__tutor_run();
`

func buildScript(req Request, argIdent, anyType string) string {
	var b strings.Builder
	b.WriteString(req.Source)
	if !strings.HasSuffix(req.Source, "\n") {
		b.WriteString("\n")
	}

	call := "fn()"
	if len(req.Args) > 0 {
		b.WriteString("\nconst ")
		b.WriteString(argIdent)
		b.WriteString(anyType)
		b.WriteString(" = [")
		joinLiterals(&b, req.Args, ", ", writeScriptLiteral)
		b.WriteString("];\n")
		call = "fn.apply(undefined, " + argIdent + ")"
	}

	stringType := ""
	if anyType != "" {
		stringType = ": string"
	}
	r := strings.NewReplacer(
		"{{any}}", anyType,
		"{{string}}", stringType,
		"{{function}}", input.Quote(req.FunctionName),
		"{{time_limit_ms}}", fmt.Sprint(millis(req.TimeLimit)),
		"{{timeout_marker}}", model.TimeoutMarker,
		"{{exit_timeout}}", fmt.Sprint(model.ExitTimeout),
		"{{exit_runtime}}", fmt.Sprint(model.ExitRuntimeError),
		"{{runtime_prefix}}", model.RuntimeErrorPrefix,
		"{{fault_missing}}", model.FaultFunctionMissing,
		"{{fault_stack}}", model.FaultStackOverflow,
		"{{fault_memory}}", model.FaultOutOfMemory,
		"{{fault_args}}", model.FaultArgumentCount,
		"{{fault_undefined}}", model.FaultUndefinedName,
		"{{argc}}", fmt.Sprint(len(req.Args)),
		"{{call}}", call,
	)
	b.WriteString(r.Replace(scriptDriver))
	return b.String()
}

func writeScriptLiteral(b *strings.Builder, v input.Value) {
	switch v.Kind() {
	case input.KindNull:
		b.WriteString("null")
	case input.KindBool:
		if v.AsBool() {
			b.WriteString("true")
		} else {
			b.WriteString("false")
		}
	case input.KindInt:
		fmt.Fprint(b, v.AsInt())
	case input.KindFloat:
		f := v.AsFloat()
		switch {
		case math.IsNaN(f):
			b.WriteString("NaN")
		case math.IsInf(f, 1):
			b.WriteString("Infinity")
		case math.IsInf(f, -1):
			b.WriteString("-Infinity")
		default:
			b.WriteString(input.FormatFloat(f))
		}
	case input.KindString:
		input.WriteQuoted(b, v.AsString())
	case input.KindList:
		b.WriteString("[")
		joinLiterals(b, v.Items(), ", ", writeScriptLiteral)
		b.WriteString("]")
	case input.KindObject:
		b.WriteString("{")
		for i, f := range v.Fields() {
			if i > 0 {
				b.WriteString(", ")
			}
			input.WriteQuoted(b, f.Key)
			b.WriteString(": ")
			writeScriptLiteral(b, f.Value)
		}
		b.WriteString("}")
	}
}
