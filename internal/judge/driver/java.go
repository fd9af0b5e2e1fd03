package driver

import (
	"fmt"
	"math"
	"regexp"
	"strings"
	"unicode/utf16"

	"tutorjudge/internal/judge/input"
	"tutorjudge/internal/judge/model"
)

// JavaBuilder renders a Main class that locates the user method by
// reflection and coerces arguments into its declared parameter types.
type JavaBuilder struct{}

func (JavaBuilder) Language() model.Language { return model.Java }
func (JavaBuilder) ArgumentIdent() string    { return "DRIVER_ARGS" }

var (
	javaImportLine  = regexp.MustCompile(`(?m)^[ \t]*import\s+(?:static\s+)?[\w.]+(?:\.\*)?\s*;[ \t]*\r?$`)
	javaPackageLine = regexp.MustCompile(`(?m)^[ \t]*package\s+[\w.]+\s*;[ \t]*\r?$`)
	javaPublicType  = regexp.MustCompile(`(?m)^([ \t]*)public\s+((?:(?:final|abstract|static)\s+)*(?:class|interface|enum|record)\s)`)
	javaTypeDecl    = regexp.MustCompile(`(?m)^[ \t]*(?:(?:public|final|abstract|static)\s+)*(?:class|interface|enum|record)\s+([A-Za-z_]\w*)`)
)

const javaImports = `import java.util.*;
import java.util.concurrent.*;
import java.util.function.*;
import java.util.stream.*;
import java.lang.reflect.*;
`

const javaDriver = `

public class Main {
    static final String FUNCTION_NAME = {{function}};
    static final long TIME_LIMIT_MS = {{time_limit_ms}}L;
    static final String[] CANDIDATE_CLASSES = {{classes}};
{{args}}
    static List<Object> list(Object... xs) {
        return new ArrayList<>(Arrays.asList(xs));
    }

    static Map<String, Object> map(Object... kv) {
        Map<String, Object> m = new LinkedHashMap<>();
        for (int i = 0; i + 1 < kv.length; i += 2) {
            m.put((String) kv[i], kv[i + 1]);
        }
        return m;
    }

    static void fail(String category, String detail) {
        System.out.flush();
        System.err.println("{{runtime_prefix}}" + category + ": " + detail);
        System.err.flush();
        System.exit({{exit_runtime}});
    }

    static Method findMethod(int argc) throws Exception {
        Method byName = null;
        for (String className : CANDIDATE_CLASSES) {
            Class<?> cls;
            try {
                cls = Class.forName(className);
            } catch (ClassNotFoundException e) {
                continue;
            }
            for (Method m : cls.getDeclaredMethods()) {
                if (!m.getName().equals(FUNCTION_NAME)) {
                    continue;
                }
                if (m.getParameterCount() == argc) {
                    return m;
                }
                byName = m;
            }
        }
        if (byName != null) {
            fail("{{fault_args}}", FUNCTION_NAME + " expects " + byName.getParameterCount() + " arguments, got " + argc);
        }
        fail("{{fault_missing}}", "no method named " + FUNCTION_NAME);
        return null;
    }

    static Object coerce(Object value, Type type) {
        if (type instanceof WildcardType) {
            Type[] upper = ((WildcardType) type).getUpperBounds();
            return coerce(value, upper.length > 0 ? upper[0] : Object.class);
        }
        if (type instanceof TypeVariable) {
            return value;
        }
        if (type instanceof GenericArrayType) {
            Type component = ((GenericArrayType) type).getGenericComponentType();
            Class<?> raw = component instanceof ParameterizedType
                ? (Class<?>) ((ParameterizedType) component).getRawType() : Object.class;
            List<?> items = (List<?>) value;
            Object arr = Array.newInstance(raw, items.size());
            for (int i = 0; i < items.size(); i++) {
                Array.set(arr, i, coerce(items.get(i), component));
            }
            return arr;
        }
        if (type instanceof ParameterizedType) {
            ParameterizedType pt = (ParameterizedType) type;
            Class<?> raw = (Class<?>) pt.getRawType();
            Type[] params = pt.getActualTypeArguments();
            if (value == null) {
                return null;
            }
            if (Map.class.isAssignableFrom(raw)) {
                Map<Object, Object> out = raw.isAssignableFrom(TreeMap.class) && !raw.isAssignableFrom(LinkedHashMap.class)
                    ? new TreeMap<>() : new LinkedHashMap<>();
                for (Map.Entry<?, ?> e : ((Map<?, ?>) value).entrySet()) {
                    out.put(coerce(e.getKey(), params[0]), coerce(e.getValue(), params[1]));
                }
                return out;
            }
            if (Collection.class.isAssignableFrom(raw) || Iterable.class.equals(raw)) {
                Collection<Object> out = newCollection(raw);
                for (Object item : (List<?>) value) {
                    out.add(coerce(item, params[0]));
                }
                return out;
            }
            return coerce(value, raw);
        }

        Class<?> cls = (Class<?>) type;
        if (value == null) {
            if (cls == int.class || cls == long.class || cls == short.class || cls == byte.class) {
                return coerce(0L, cls);
            }
            if (cls == double.class || cls == float.class) {
                return coerce(0.0d, cls);
            }
            if (cls == boolean.class) {
                return false;
            }
            if (cls == char.class) {
                return '\0';
            }
            return null;
        }
        if (cls == int.class || cls == Integer.class) {
            return number(value).intValue();
        }
        if (cls == long.class || cls == Long.class) {
            return number(value).longValue();
        }
        if (cls == double.class || cls == Double.class) {
            return number(value).doubleValue();
        }
        if (cls == float.class || cls == Float.class) {
            return number(value).floatValue();
        }
        if (cls == short.class || cls == Short.class) {
            return number(value).shortValue();
        }
        if (cls == byte.class || cls == Byte.class) {
            return number(value).byteValue();
        }
        if (cls == boolean.class || cls == Boolean.class) {
            if (value instanceof Boolean) {
                return value;
            }
            if (value instanceof Number) {
                return ((Number) value).doubleValue() != 0;
            }
            return Boolean.parseBoolean(String.valueOf(value));
        }
        if (cls == char.class || cls == Character.class) {
            if (value instanceof Number) {
                return (char) ((Number) value).intValue();
            }
            String s = String.valueOf(value);
            return s.isEmpty() ? '\0' : s.charAt(0);
        }
        if (cls == String.class) {
            return value instanceof String ? value : toJson(value);
        }
        if (cls.isArray()) {
            Class<?> component = cls.getComponentType();
            List<?> items = value instanceof List ? (List<?>) value : Collections.singletonList(value);
            Object arr = Array.newInstance(component, items.size());
            for (int i = 0; i < items.size(); i++) {
                Array.set(arr, i, coerce(items.get(i), component));
            }
            return arr;
        }
        if (Set.class.isAssignableFrom(cls) && value instanceof List) {
            return new LinkedHashSet<Object>((List<?>) value);
        }
        return value;
    }

    @SuppressWarnings("unchecked")
    static Collection<Object> newCollection(Class<?> raw) {
        if (!raw.isInterface() && !Modifier.isAbstract(raw.getModifiers())) {
            try {
                return (Collection<Object>) raw.getDeclaredConstructor().newInstance();
            } catch (ReflectiveOperationException e) {
                // fall through to the interface defaults
            }
        }
        if (SortedSet.class.isAssignableFrom(raw)) {
            return new TreeSet<>();
        }
        if (Set.class.isAssignableFrom(raw)) {
            return new LinkedHashSet<>();
        }
        if (Deque.class.isAssignableFrom(raw) || Queue.class.isAssignableFrom(raw)) {
            return raw == PriorityQueue.class ? new PriorityQueue<>() : new ArrayDeque<>();
        }
        return new ArrayList<>();
    }

    static Number number(Object value) {
        if (value instanceof Number) {
            return (Number) value;
        }
        if (value instanceof Boolean) {
            return ((Boolean) value) ? 1L : 0L;
        }
        if (value instanceof Character) {
            return (long) (Character) value;
        }
        String s = String.valueOf(value).trim();
        if (s.matches("[+-]?\\d+")) {
            return Long.parseLong(s);
        }
        return Double.parseDouble(s);
    }

    static String quote(String s) {
        StringBuilder sb = new StringBuilder("\"");
        for (int i = 0; i < s.length(); i++) {
            char c = s.charAt(i);
            switch (c) {
                case '"': sb.append("\\\""); break;
                case '\\': sb.append("\\\\"); break;
                case '\n': sb.append("\\n"); break;
                case '\r': sb.append("\\r"); break;
                case '\t': sb.append("\\t"); break;
                case '\b': sb.append("\\b"); break;
                case '\f': sb.append("\\f"); break;
                default:
                    if (c < 0x20 || c == 0x7f || c == 0x2028 || c == 0x2029) {
                        sb.append(String.format("\\u%04x", (int) c));
                    } else {
                        sb.append(c);
                    }
            }
        }
        return sb.append('"').toString();
    }

    static String toJson(Object value) {
        if (value == null) {
            return "null";
        }
        if (value instanceof String) {
            return quote((String) value);
        }
        if (value instanceof Character) {
            return quote(String.valueOf(value));
        }
        if (value instanceof Boolean) {
            return value.toString();
        }
        if (value instanceof Double || value instanceof Float) {
            double d = ((Number) value).doubleValue();
            if (Double.isNaN(d) || Double.isInfinite(d)) {
                return "null";
            }
            if (d == Math.rint(d) && Math.abs(d) < 1e15) {
                return Long.toString((long) d);
            }
            return value instanceof Float ? Float.toString((Float) value) : Double.toString(d);
        }
        if (value instanceof Number) {
            return value.toString();
        }
        if (value.getClass().isArray()) {
            StringBuilder sb = new StringBuilder("[");
            int n = Array.getLength(value);
            for (int i = 0; i < n; i++) {
                if (i > 0) {
                    sb.append(',');
                }
                sb.append(toJson(Array.get(value, i)));
            }
            return sb.append(']').toString();
        }
        if (value instanceof Map) {
            TreeMap<String, Object> sorted = new TreeMap<>();
            for (Map.Entry<?, ?> e : ((Map<?, ?>) value).entrySet()) {
                sorted.put(String.valueOf(e.getKey()), e.getValue());
            }
            StringBuilder sb = new StringBuilder("{");
            boolean first = true;
            for (Map.Entry<String, Object> e : sorted.entrySet()) {
                if (!first) {
                    sb.append(',');
                }
                first = false;
                sb.append(quote(e.getKey())).append(':').append(toJson(e.getValue()));
            }
            return sb.append('}').toString();
        }
        if (value instanceof Iterable) {
            StringBuilder sb = new StringBuilder("[");
            boolean first = true;
            for (Object item : (Iterable<?>) value) {
                if (!first) {
                    sb.append(',');
                }
                first = false;
                sb.append(toJson(item));
            }
            return sb.append(']').toString();
        }
        if (value instanceof Optional) {
            return toJson(((Optional<?>) value).orElse(null));
        }
        return quote(String.valueOf(value));
    }

    static void report(Throwable t) {
        if (t instanceof InvocationTargetException && t.getCause() != null) {
            t = t.getCause();
        }
        if (t instanceof StackOverflowError) {
            fail("{{fault_stack}}", "java.lang.StackOverflowError");
        } else if (t instanceof OutOfMemoryError) {
            fail("{{fault_memory}}", String.valueOf(t.getMessage()));
        } else {
            fail(t.getClass().getSimpleName(), String.valueOf(t.getMessage()));
        }
    }

    public static void main(String[] args) throws Exception {
        final Object[] callArgs = {{call_args}};
        final Method method = findMethod(callArgs.length);
        method.setAccessible(true);
        final Type[] types = method.getGenericParameterTypes();

        FutureTask<Object> task = new FutureTask<>(() -> {
            Object target = null;
            if (!Modifier.isStatic(method.getModifiers())) {
                Constructor<?> ctor = method.getDeclaringClass().getDeclaredConstructor();
                ctor.setAccessible(true);
                target = ctor.newInstance();
            }
            Object[] coerced = new Object[callArgs.length];
            for (int i = 0; i < callArgs.length; i++) {
                coerced[i] = coerce(callArgs[i], types[i]);
            }
            return method.invoke(target, coerced);
        });
        Thread worker = new Thread(null, task, "solution", 512L << 20);
        worker.setDaemon(true);
        worker.start();

        Object result;
        try {
            result = task.get(TIME_LIMIT_MS, TimeUnit.MILLISECONDS);
        } catch (TimeoutException e) {
            System.out.flush();
            System.err.println("{{timeout_marker}}");
            System.err.flush();
            Runtime.getRuntime().halt({{exit_timeout}});
            return;
        } catch (ExecutionException e) {
            report(e.getCause());
            return;
        }
        System.out.println(method.getReturnType() == void.class ? "null" : toJson(result));
        System.out.flush();
        System.exit(0);
    }
}
`

func (j JavaBuilder) Build(req Request) (string, error) {
	var imports []string
	body := javaImportLine.ReplaceAllStringFunc(req.Source, func(line string) string {
		imports = append(imports, strings.TrimSpace(line))
		return ""
	})
	body = javaPackageLine.ReplaceAllString(body, "")
	body = javaPublicType.ReplaceAllString(body, "$1$2")

	classes := []string{"Solution"}
	if m := javaTypeDecl.FindAllStringSubmatch(body, -1); len(m) == 0 {
		body = "class Solution {\n" + body + "\n}\n"
	} else {
		for _, sm := range m {
			if sm[1] != "Solution" && sm[1] != "Main" {
				classes = append(classes, sm[1])
			}
		}
	}

	var b strings.Builder
	b.WriteString(javaImports)
	for _, line := range imports {
		b.WriteString(line)
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(body)
	if !strings.HasSuffix(body, "\n") {
		b.WriteString("\n")
	}

	var classList strings.Builder
	classList.WriteString("{")
	for i, c := range classes {
		if i > 0 {
			classList.WriteString(", ")
		}
		writeJavaString(&classList, c)
	}
	classList.WriteString("}")

	var fnName strings.Builder
	writeJavaString(&fnName, req.FunctionName)

	argsDecl := ""
	callArgs := "new Object[0]"
	if len(req.Args) > 0 {
		var a strings.Builder
		a.WriteString("    static final Object[] ")
		a.WriteString(j.ArgumentIdent())
		a.WriteString(" = new Object[]{")
		joinLiterals(&a, req.Args, ", ", writeJavaLiteral)
		a.WriteString("};\n")
		argsDecl = a.String()
		callArgs = j.ArgumentIdent()
	}

	r := strings.NewReplacer(
		"{{function}}", fnName.String(),
		"{{time_limit_ms}}", fmt.Sprint(millis(req.TimeLimit)),
		"{{classes}}", classList.String(),
		"{{args}}", argsDecl,
		"{{call_args}}", callArgs,
		"{{timeout_marker}}", model.TimeoutMarker,
		"{{exit_timeout}}", fmt.Sprint(model.ExitTimeout),
		"{{exit_runtime}}", fmt.Sprint(model.ExitRuntimeError),
		"{{runtime_prefix}}", model.RuntimeErrorPrefix,
		"{{fault_missing}}", model.FaultFunctionMissing,
		"{{fault_stack}}", model.FaultStackOverflow,
		"{{fault_memory}}", model.FaultOutOfMemory,
		"{{fault_args}}", model.FaultArgumentCount,
	)
	b.WriteString(r.Replace(javaDriver))
	return b.String(), nil
}

func writeJavaLiteral(b *strings.Builder, v input.Value) {
	switch v.Kind() {
	case input.KindNull:
		b.WriteString("(Object) null")
	case input.KindBool:
		if v.AsBool() {
			b.WriteString("Boolean.TRUE")
		} else {
			b.WriteString("Boolean.FALSE")
		}
	case input.KindInt:
		fmt.Fprintf(b, "%dL", v.AsInt())
	case input.KindFloat:
		f := v.AsFloat()
		switch {
		case math.IsNaN(f):
			b.WriteString("Double.NaN")
		case math.IsInf(f, 1):
			b.WriteString("Double.POSITIVE_INFINITY")
		case math.IsInf(f, -1):
			b.WriteString("Double.NEGATIVE_INFINITY")
		default:
			b.WriteString(input.FormatFloat(f))
			b.WriteString("d")
		}
	case input.KindString:
		writeJavaString(b, v.AsString())
	case input.KindList:
		b.WriteString("list(")
		joinLiterals(b, v.Items(), ", ", writeJavaLiteral)
		b.WriteString(")")
	case input.KindObject:
		b.WriteString("map(")
		for i, f := range v.Fields() {
			if i > 0 {
				b.WriteString(", ")
			}
			writeJavaString(b, f.Key)
			b.WriteString(", ")
			writeJavaLiteral(b, f.Value)
		}
		b.WriteString(")")
	}
}

// writeJavaString emits a Java string literal. Control characters use octal
// escapes because unicode escapes are translated before lexing.
func writeJavaString(b *strings.Builder, s string) {
	b.WriteByte('"')
	for _, r := range strings.ToValidUTF8(s, "\uFFFD") {
		switch {
		case r == '"':
			b.WriteString(`\"`)
		case r == '\\':
			b.WriteString(`\\`)
		case r == '\n':
			b.WriteString(`\n`)
		case r == '\r':
			b.WriteString(`\r`)
		case r == '\t':
			b.WriteString(`\t`)
		case r < 0x20 || r == 0x7f:
			fmt.Fprintf(b, `\%03o`, r)
		case r < 0x80:
			b.WriteRune(r)
		case r > 0xFFFF:
			r1, r2 := utf16.EncodeRune(r)
			fmt.Fprintf(b, `\u%04x\u%04x`, r1, r2)
		default:
			fmt.Fprintf(b, `\u%04x`, r)
		}
	}
	b.WriteByte('"')
}
