package driver

import (
	"fmt"
	"math"
	"regexp"
	"strings"

	"tutorjudge/internal/judge/input"
	"tutorjudge/internal/judge/model"
)

// CppBuilder renders C++17 drivers. Arguments are held in a small variant
// type and converted into the parameter types deduced from the function
// pointer.
type CppBuilder struct{}

func (CppBuilder) Language() model.Language { return model.Cpp }
func (CppBuilder) ArgumentIdent() string    { return "DRIVER_ARGS" }

// CppCompilerOptions are the flags remote backends should pass to the compiler.
const CppCompilerOptions = "-std=c++17 -O2"

const cppPrelude = `#include <bits/stdc++.h>
#include <csignal>
#include <unistd.h>
#include <sys/time.h>
using namespace std;

#define main tutor_user_main
`

const cppDriver = `
#undef main

namespace tutor_driver {

struct Val {
    enum Kind { Null, Bool, Int, Float, Str, List, Obj };
    Kind kind = Null;
    bool b = false;
    long long i = 0;
    double f = 0;
    std::string s;
    std::vector<Val> items;
    std::vector<std::string> keys;
};

inline Val vnull() { return Val(); }
inline Val vbool(bool b) { Val v; v.kind = Val::Bool; v.b = b; return v; }
inline Val vint(long long i) { Val v; v.kind = Val::Int; v.i = i; return v; }
inline Val vfloat(double f) { Val v; v.kind = Val::Float; v.f = f; return v; }
inline Val vstr(std::string s) { Val v; v.kind = Val::Str; v.s = std::move(s); return v; }
inline Val vlist(std::initializer_list<Val> xs) { Val v; v.kind = Val::List; v.items.assign(xs.begin(), xs.end()); return v; }
inline Val vobj(std::initializer_list<std::pair<std::string, Val>> kv) {
    Val v;
    v.kind = Val::Obj;
    for (const auto& p : kv) {
        v.keys.push_back(p.first);
        v.items.push_back(p.second);
    }
    return v;
}

[[noreturn]] inline void fail(const std::string& category, const std::string& detail) {
    std::cout.flush();
    std::cerr << "{{runtime_prefix}}" << category << ": " << detail << std::endl;
    std::exit({{exit_runtime}});
}

inline long long as_int(const Val& v) {
    switch (v.kind) {
    case Val::Int: return v.i;
    case Val::Float: return static_cast<long long>(v.f);
    case Val::Bool: return v.b ? 1 : 0;
    case Val::Str:
        try { return std::stoll(v.s); } catch (...) { return v.s.empty() ? 0 : static_cast<unsigned char>(v.s[0]); }
    default: return 0;
    }
}

inline double as_float(const Val& v) {
    switch (v.kind) {
    case Val::Int: return static_cast<double>(v.i);
    case Val::Float: return v.f;
    case Val::Bool: return v.b ? 1.0 : 0.0;
    case Val::Str:
        try { return std::stod(v.s); } catch (...) { return 0.0; }
    default: return 0.0;
    }
}

inline std::string to_json(const Val& v);

template <typename T, typename Enable = void>
struct conv {
    static T from(const Val&) {
        fail("Unsupported parameter type", typeid(T).name());
    }
};

template <typename T>
struct conv<T, std::enable_if_t<std::is_integral_v<T> && !std::is_same_v<T, bool> && !std::is_same_v<T, char>>> {
    static T from(const Val& v) { return static_cast<T>(as_int(v)); }
};

template <typename T>
struct conv<T, std::enable_if_t<std::is_floating_point_v<T>>> {
    static T from(const Val& v) { return static_cast<T>(as_float(v)); }
};

template <>
struct conv<bool> {
    static bool from(const Val& v) {
        if (v.kind == Val::Str) return v.s == "true" || v.s == "True" || v.s == "1";
        return as_int(v) != 0 || (v.kind == Val::Bool && v.b);
    }
};

template <>
struct conv<char> {
    static char from(const Val& v) {
        if (v.kind == Val::Str) return v.s.empty() ? '\0' : v.s[0];
        return static_cast<char>(as_int(v));
    }
};

template <>
struct conv<std::string> {
    static std::string from(const Val& v) {
        if (v.kind == Val::Str) return v.s;
        if (v.kind == Val::Null) return std::string();
        return to_json(v);
    }
};

template <typename T, typename A>
struct conv<std::vector<T, A>> {
    static std::vector<T, A> from(const Val& v) {
        std::vector<T, A> out;
        out.reserve(v.items.size());
        for (const auto& item : v.items) out.push_back(conv<T>::from(item));
        return out;
    }
};

template <typename T>
struct conv<std::set<T>> {
    static std::set<T> from(const Val& v) {
        std::set<T> out;
        for (const auto& item : v.items) out.insert(conv<T>::from(item));
        return out;
    }
};

template <typename T>
struct conv<std::unordered_set<T>> {
    static std::unordered_set<T> from(const Val& v) {
        std::unordered_set<T> out;
        for (const auto& item : v.items) out.insert(conv<T>::from(item));
        return out;
    }
};

template <typename K, typename V>
struct conv<std::map<K, V>> {
    static std::map<K, V> from(const Val& v) {
        std::map<K, V> out;
        for (size_t i = 0; i < v.keys.size(); ++i) out[conv<K>::from(vstr(v.keys[i]))] = conv<V>::from(v.items[i]);
        return out;
    }
};

template <typename K, typename V>
struct conv<std::unordered_map<K, V>> {
    static std::unordered_map<K, V> from(const Val& v) {
        std::unordered_map<K, V> out;
        for (size_t i = 0; i < v.keys.size(); ++i) out[conv<K>::from(vstr(v.keys[i]))] = conv<V>::from(v.items[i]);
        return out;
    }
};

template <typename A, typename B>
struct conv<std::pair<A, B>> {
    static std::pair<A, B> from(const Val& v) {
        Val none;
        return {conv<A>::from(v.items.size() > 0 ? v.items[0] : none), conv<B>::from(v.items.size() > 1 ? v.items[1] : none)};
    }
};

inline void quote(std::string& out, const std::string& s) {
    out += '"';
    for (unsigned char c : s) {
        switch (c) {
        case '"': out += "\\\""; break;
        case '\\': out += "\\\\"; break;
        case '\n': out += "\\n"; break;
        case '\r': out += "\\r"; break;
        case '\t': out += "\\t"; break;
        case '\b': out += "\\b"; break;
        case '\f': out += "\\f"; break;
        default:
            if (c < 0x20 || c == 0x7f) {
                char buf[8];
                std::snprintf(buf, sizeof(buf), "\\u%04x", c);
                out += buf;
            } else {
                out += static_cast<char>(c);
            }
        }
    }
    out += '"';
}

inline std::string format_double(double d) {
    if (std::isnan(d) || std::isinf(d)) return "null";
    char buf[32];
    for (int precision = 1; precision <= 17; ++precision) {
        std::snprintf(buf, sizeof(buf), "%.*g", precision, d);
        if (std::strtod(buf, nullptr) == d) break;
    }
    return buf;
}

inline std::string to_json(const Val& v) {
    std::string out;
    switch (v.kind) {
    case Val::Null: return "null";
    case Val::Bool: return v.b ? "true" : "false";
    case Val::Int: return std::to_string(v.i);
    case Val::Float: return format_double(v.f);
    case Val::Str: quote(out, v.s); return out;
    case Val::List:
        out += '[';
        for (size_t i = 0; i < v.items.size(); ++i) {
            if (i) out += ',';
            out += to_json(v.items[i]);
        }
        return out + ']';
    case Val::Obj:
        out += '{';
        for (size_t i = 0; i < v.keys.size(); ++i) {
            if (i) out += ',';
            quote(out, v.keys[i]);
            out += ':';
            out += to_json(v.items[i]);
        }
        return out + '}';
    }
    return "null";
}

inline void emit(std::string& out, bool b);
inline void emit(std::string& out, char c);
inline void emit(std::string& out, const std::string& s);
inline void emit(std::string& out, const char* s);
inline void emit(std::string& out, const Val& v);
template <typename T> std::enable_if_t<std::is_integral_v<T>> emit(std::string& out, T v);
template <typename T> std::enable_if_t<std::is_floating_point_v<T>> emit(std::string& out, T v);
template <typename T, typename A> void emit(std::string& out, const std::vector<T, A>& xs);
template <typename T> void emit(std::string& out, const std::deque<T>& xs);
template <typename T> void emit(std::string& out, const std::list<T>& xs);
template <typename T, size_t N> void emit(std::string& out, const std::array<T, N>& xs);
template <typename T> void emit(std::string& out, const std::set<T>& xs);
template <typename T> void emit(std::string& out, const std::unordered_set<T>& xs);
template <typename K, typename V> void emit(std::string& out, const std::map<K, V>& m);
template <typename K, typename V> void emit(std::string& out, const std::unordered_map<K, V>& m);
template <typename A, typename B> void emit(std::string& out, const std::pair<A, B>& p);
template <typename T> void emit(std::string& out, T* p);

inline void emit(std::string& out, bool b) { out += b ? "true" : "false"; }
inline void emit(std::string& out, char c) { quote(out, std::string(1, c)); }
inline void emit(std::string& out, const std::string& s) { quote(out, s); }
inline void emit(std::string& out, const char* s) { if (s) quote(out, s); else out += "null"; }
inline void emit(std::string& out, const Val& v) { out += to_json(v); }

template <typename T>
std::enable_if_t<std::is_integral_v<T>> emit(std::string& out, T v) { out += std::to_string(v); }

template <typename T>
std::enable_if_t<std::is_floating_point_v<T>> emit(std::string& out, T v) { out += format_double(static_cast<double>(v)); }

template <typename It>
void emit_range(std::string& out, It first, It last) {
    out += '[';
    for (It it = first; it != last; ++it) {
        if (it != first) out += ',';
        emit(out, *it);
    }
    out += ']';
}

template <typename T, typename A> void emit(std::string& out, const std::vector<T, A>& xs) {
    out += '[';
    for (size_t i = 0; i < xs.size(); ++i) {
        if (i) out += ',';
        emit(out, static_cast<T>(xs[i]));
    }
    out += ']';
}
template <typename T> void emit(std::string& out, const std::deque<T>& xs) { emit_range(out, xs.begin(), xs.end()); }
template <typename T> void emit(std::string& out, const std::list<T>& xs) { emit_range(out, xs.begin(), xs.end()); }
template <typename T, size_t N> void emit(std::string& out, const std::array<T, N>& xs) { emit_range(out, xs.begin(), xs.end()); }
template <typename T> void emit(std::string& out, const std::set<T>& xs) { emit_range(out, xs.begin(), xs.end()); }
template <typename T> void emit(std::string& out, const std::unordered_set<T>& xs) { emit_range(out, xs.begin(), xs.end()); }

template <typename M>
void emit_map(std::string& out, const M& m) {
    std::vector<std::pair<std::string, std::string>> fields;
    for (const auto& kv : m) {
        std::string key;
        emit(key, kv.first);
        if (key.size() >= 2 && key.front() == '"') key = key.substr(1, key.size() - 2);
        std::string value;
        emit(value, kv.second);
        fields.emplace_back(key, value);
    }
    std::sort(fields.begin(), fields.end());
    out += '{';
    for (size_t i = 0; i < fields.size(); ++i) {
        if (i) out += ',';
        quote(out, fields[i].first);
        out += ':';
        out += fields[i].second;
    }
    out += '}';
}
template <typename K, typename V> void emit(std::string& out, const std::map<K, V>& m) { emit_map(out, m); }
template <typename K, typename V> void emit(std::string& out, const std::unordered_map<K, V>& m) { emit_map(out, m); }

template <typename A, typename B> void emit(std::string& out, const std::pair<A, B>& p) {
    out += '[';
    emit(out, p.first);
    out += ',';
    emit(out, p.second);
    out += ']';
}

template <typename T> void emit(std::string& out, T* p) {
    if (!p) {
        out += "null";
        return;
    }
    emit(out, *p);
}

template <typename F> struct fn_traits;

template <typename R, typename... A>
struct fn_traits<R (*)(A...)> {
    using ret = R;
    using args = std::tuple<std::decay_t<A>...>;
    static constexpr size_t arity = sizeof...(A);
    static constexpr bool member = false;
};

template <typename R, typename... A>
struct fn_traits<R (*)(A...) noexcept> : fn_traits<R (*)(A...)> {};

template <typename R, typename C, typename... A>
struct fn_traits<R (C::*)(A...)> {
    using ret = R;
    using cls = C;
    using args = std::tuple<std::decay_t<A>...>;
    static constexpr size_t arity = sizeof...(A);
    static constexpr bool member = true;
};

template <typename R, typename C, typename... A>
struct fn_traits<R (C::*)(A...) const> : fn_traits<R (C::*)(A...)> {};

template <typename R, typename C, typename... A>
struct fn_traits<R (C::*)(A...) noexcept> : fn_traits<R (C::*)(A...)> {};

template <typename R, typename C, typename... A>
struct fn_traits<R (C::*)(A...) const noexcept> : fn_traits<R (C::*)(A...)> {};

template <typename Tuple, size_t... I>
Tuple convert_args(const std::vector<Val>& args, std::index_sequence<I...>) {
    return Tuple{conv<std::tuple_element_t<I, Tuple>>::from(args[I])...};
}

template <typename F>
std::string call(F fn, const std::vector<Val>& args) {
    using traits = fn_traits<F>;
    if (args.size() != traits::arity) {
        fail("{{fault_args}}", "expected " + std::to_string(traits::arity) + " arguments, got " + std::to_string(args.size()));
    }
    using tuple_t = typename traits::args;
    tuple_t converted = convert_args<tuple_t>(args, std::make_index_sequence<traits::arity>{});
    auto invoke = [&]() -> decltype(auto) {
        if constexpr (traits::member) {
            static typename traits::cls instance;
            return std::apply([&](auto&... xs) -> decltype(auto) { return (instance.*fn)(xs...); }, converted);
        } else {
            return std::apply([&](auto&... xs) -> decltype(auto) { return fn(xs...); }, converted);
        }
    };
    std::string out;
    if constexpr (std::is_void_v<typename traits::ret>) {
        invoke();
        out = "null";
    } else {
        emit(out, invoke());
    }
    return out;
}

extern "C" void on_alarm(int) {
    static const char msg[] = "{{timeout_marker}}\n";
    ssize_t written = write(2, msg, sizeof(msg) - 1);
    (void) written;
    _exit({{exit_timeout}});
}

extern "C" void on_segv(int sig) {
    static const char msg[] = "{{runtime_prefix}}{{fault_stack}}: segmentation fault (deep recursion or invalid memory access)\n";
    ssize_t written = write(2, msg, sizeof(msg) - 1);
    (void) written;
    std::signal(sig, SIG_DFL);
    std::raise(sig);
}

inline void install_guards(long long limit_ms) {
    static std::vector<char> alt_stack(1 << 16);
    stack_t ss{};
    ss.ss_sp = alt_stack.data();
    ss.ss_size = alt_stack.size();
    ss.ss_flags = 0;
    sigaltstack(&ss, nullptr);

    struct sigaction sa{};
    sa.sa_handler = on_segv;
    sa.sa_flags = SA_ONSTACK;
    sigemptyset(&sa.sa_mask);
    sigaction(SIGSEGV, &sa, nullptr);

    struct sigaction alarm_action{};
    alarm_action.sa_handler = on_alarm;
    sigemptyset(&alarm_action.sa_mask);
    sigaction(SIGALRM, &alarm_action, nullptr);

    struct itimerval timer{};
    timer.it_value.tv_sec = static_cast<time_t>(limit_ms / 1000);
    timer.it_value.tv_usec = static_cast<suseconds_t>((limit_ms % 1000) * 1000);
    setitimer(ITIMER_REAL, &timer, nullptr);
}

} // namespace tutor_driver
{{args}}
int main() {
    std::ios::sync_with_stdio(false);
    tutor_driver::install_guards({{time_limit_ms}});
    std::string out;
    try {
        out = tutor_driver::call({{target}}, {{call_args}});
    } catch (const std::bad_alloc& e) {
        tutor_driver::fail("{{fault_memory}}", e.what());
    } catch (const std::exception& e) {
        tutor_driver::fail("exception", e.what());
    } catch (...) {
        tutor_driver::fail("exception", "unknown exception");
    }
    std::cout << out << std::endl;
    return 0;
}
`

var cppSolutionClass = regexp.MustCompile(`\b(?:class|struct)\s+Solution\b[^;{]*\{`)

func (c CppBuilder) Build(req Request) (string, error) {
	var b strings.Builder
	b.WriteString(cppPrelude)
	b.WriteString(req.Source)
	if !strings.HasSuffix(req.Source, "\n") {
		b.WriteString("\n")
	}

	target := "&" + req.FunctionName
	if cppIsMember(req.Source, req.FunctionName) {
		target = "&Solution::" + req.FunctionName
	}

	argsDecl := ""
	callArgs := "std::vector<tutor_driver::Val>{}"
	if len(req.Args) > 0 {
		var a strings.Builder
		a.WriteString("\nstatic const std::vector<tutor_driver::Val> ")
		a.WriteString(c.ArgumentIdent())
		a.WriteString(" = {")
		joinLiterals(&a, req.Args, ", ", writeCppLiteral)
		a.WriteString("};\n")
		argsDecl = a.String()
		callArgs = c.ArgumentIdent()
	}

	r := strings.NewReplacer(
		"{{args}}", argsDecl,
		"{{call_args}}", callArgs,
		"{{target}}", target,
		"{{time_limit_ms}}", fmt.Sprintf("%dLL", millis(req.TimeLimit)),
		"{{timeout_marker}}", model.TimeoutMarker,
		"{{exit_timeout}}", fmt.Sprint(model.ExitTimeout),
		"{{exit_runtime}}", fmt.Sprint(model.ExitRuntimeError),
		"{{runtime_prefix}}", model.RuntimeErrorPrefix,
		"{{fault_stack}}", model.FaultStackOverflow,
		"{{fault_memory}}", model.FaultOutOfMemory,
		"{{fault_args}}", model.FaultArgumentCount,
	)
	b.WriteString(r.Replace(cppDriver))
	return b.String(), nil
}

// cppIsMember reports whether name is declared inside the body of a
// Solution class.
func cppIsMember(source, name string) bool {
	loc := cppSolutionClass.FindStringIndex(source)
	if loc == nil {
		return false
	}
	body := source[loc[1]:]
	depth := 1
	end := len(body)
	for i := 0; i < len(body); i++ {
		switch body[i] {
		case '{':
			depth++
		case '}':
			depth--
		}
		if depth == 0 {
			end = i
			break
		}
	}
	return regexp.MustCompile(`\b` + regexp.QuoteMeta(name) + `\s*\(`).MatchString(body[:end])
}

func writeCppLiteral(b *strings.Builder, v input.Value) {
	switch v.Kind() {
	case input.KindNull:
		b.WriteString("tutor_driver::vnull()")
	case input.KindBool:
		fmt.Fprintf(b, "tutor_driver::vbool(%t)", v.AsBool())
	case input.KindInt:
		i := v.AsInt()
		if i == math.MinInt64 {
			b.WriteString("tutor_driver::vint(-9223372036854775807LL - 1)")
		} else {
			fmt.Fprintf(b, "tutor_driver::vint(%dLL)", i)
		}
	case input.KindFloat:
		f := v.AsFloat()
		b.WriteString("tutor_driver::vfloat(")
		switch {
		case math.IsNaN(f):
			b.WriteString("std::numeric_limits<double>::quiet_NaN()")
		case math.IsInf(f, 1):
			b.WriteString("std::numeric_limits<double>::infinity()")
		case math.IsInf(f, -1):
			b.WriteString("-std::numeric_limits<double>::infinity()")
		default:
			s := input.FormatFloat(f)
			if !strings.ContainsAny(s, ".e") {
				s += ".0"
			}
			b.WriteString(s)
		}
		b.WriteString(")")
	case input.KindString:
		s := v.AsString()
		fmt.Fprintf(b, "tutor_driver::vstr(std::string(%s, %d))", cppQuote(s), len(s))
	case input.KindList:
		b.WriteString("tutor_driver::vlist({")
		joinLiterals(b, v.Items(), ", ", writeCppLiteral)
		b.WriteString("})")
	case input.KindObject:
		b.WriteString("tutor_driver::vobj({")
		for i, f := range v.Fields() {
			if i > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(b, "{std::string(%s, %d), ", cppQuote(f.Key), len(f.Key))
			writeCppLiteral(b, f.Value)
			b.WriteString("}")
		}
		b.WriteString("})")
	}
}

// cppQuote renders s as a C++ narrow string literal. Bytes outside printable
// ASCII are written as three digit octal escapes and '?' is escaped so no
// trigraph can form.
func cppQuote(s string) string {
	var b strings.Builder
	b.WriteByte('"')
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '"':
			b.WriteString(`\"`)
		case c == '\\':
			b.WriteString(`\\`)
		case c == '?':
			b.WriteString(`\?`)
		case c < 0x20 || c >= 0x7f:
			fmt.Fprintf(&b, `\%03o`, c)
		default:
			b.WriteByte(c)
		}
	}
	b.WriteByte('"')
	return b.String()
}
