package driver

import (
	"context"
	"regexp"
	"strings"
	"testing"
	"time"

	"tutorjudge/internal/judge/input"
	"tutorjudge/internal/judge/model"
	"tutorjudge/pkg/errors"
)

var twoSumArgs = []input.Value{
	input.List(input.Int(2), input.Int(7), input.Int(11), input.Int(15)),
	input.Int(9),
}

var sources = map[model.Language]string{
	model.Python:     "def twoSum(nums, target):\n    return [0, 1]\n",
	model.JavaScript: "function twoSum(nums, target) {\n  return [0, 1];\n}\n",
	model.TypeScript: "function twoSum(nums: number[], target: number): number[] {\n  return [0, 1];\n}\n",
	model.Java:       "class Solution {\n    public int[] twoSum(int[] nums, int target) {\n        return new int[]{0, 1};\n    }\n}\n",
	model.Cpp:        "class Solution {\npublic:\n    vector<int> twoSum(vector<int>& nums, int target) {\n        return {0, 1};\n    }\n};\n",
}

func TestSynthesizeEmbedsSourceAndArgs(t *testing.T) {
	wantArgs := map[model.Language]string{
		model.Python:     "__tutor_args = [[2, 7, 11, 15], 9]",
		model.JavaScript: "const __tutor_args = [[2, 7, 11, 15], 9];",
		model.TypeScript: "const __tutor_args: any = [[2, 7, 11, 15], 9];",
		model.Java:       "static final Object[] DRIVER_ARGS = new Object[]{list(2L, 7L, 11L, 15L), 9L};",
		model.Cpp: "static const std::vector<tutor_driver::Val> DRIVER_ARGS = {tutor_driver::vlist({tutor_driver::vint(2LL), " +
			"tutor_driver::vint(7LL), tutor_driver::vint(11LL), tutor_driver::vint(15LL)}), tutor_driver::vint(9LL)};",
	}

	for _, lang := range model.Languages() {
		t.Run(string(lang), func(t *testing.T) {
			prog, err := Synthesize(context.Background(), Request{
				Language:     lang,
				Source:       sources[lang],
				FunctionName: "twoSum",
				Args:         twoSumArgs,
				TimeLimit:    2 * time.Second,
			})
			if err != nil {
				t.Fatalf("Synthesize() error = %v", err)
			}
			if prog.Language != lang || prog.FunctionName != "twoSum" || prog.TimeLimit != 2*time.Second {
				t.Errorf("unexpected program metadata: %+v", prog)
			}
			if !strings.Contains(prog.Source, strings.TrimRight(sources[lang], "\n")) {
				t.Errorf("user source not embedded verbatim:\n%s", prog.Source)
			}
			if !strings.Contains(prog.Source, wantArgs[lang]) {
				t.Errorf("argument literal %q not found in:\n%s", wantArgs[lang], prog.Source)
			}
			if !strings.Contains(prog.Source, model.TimeoutMarker) {
				t.Error("driver does not print the timeout marker")
			}
			if !strings.Contains(prog.Source, model.RuntimeErrorPrefix) {
				t.Error("driver does not print the runtime error prefix")
			}
		})
	}
}

func TestSynthesizeZeroArgsNeverReferencesArgumentIdent(t *testing.T) {
	zeroArg := map[model.Language]string{
		model.Python:     "def answer():\n    return False\n",
		model.JavaScript: "function answer() { return false; }\n",
		model.TypeScript: "function answer(): boolean { return false; }\n",
		model.Java:       "public boolean answer() { return false; }\n",
		model.Cpp:        "bool answer() { return false; }\n",
	}
	registry := DefaultRegistry()

	for _, lang := range model.Languages() {
		t.Run(string(lang), func(t *testing.T) {
			b, ok := registry.Builder(lang)
			if !ok {
				t.Fatalf("no builder for %s", lang)
			}
			prog, err := registry.Synthesize(context.Background(), Request{
				Language:     lang,
				Source:       zeroArg[lang],
				FunctionName: "answer",
			})
			if err != nil {
				t.Fatalf("Synthesize() error = %v", err)
			}
			if strings.Contains(prog.Source, b.ArgumentIdent()) {
				t.Errorf("zero-argument program mentions %s:\n%s", b.ArgumentIdent(), prog.Source)
			}
			if prog.TimeLimit != model.DefaultTimeLimit {
				t.Errorf("TimeLimit = %v, want default %v", prog.TimeLimit, model.DefaultTimeLimit)
			}
		})
	}
}

func TestSynthesizeRejects(t *testing.T) {
	t.Run("unsupported language", func(t *testing.T) {
		_, err := Synthesize(context.Background(), Request{Language: "cobol", Source: "x", FunctionName: "f"})
		if !errors.Is(err, errors.LanguageNotSupported) {
			t.Errorf("error = %v, want LanguageNotSupported", err)
		}
	})

	t.Run("unsafe function name", func(t *testing.T) {
		_, err := Synthesize(context.Background(), Request{Language: model.Python, Source: "x", FunctionName: "f(); evil"})
		if !errors.Is(err, errors.SynthesisFailed) {
			t.Errorf("error = %v, want SynthesisFailed", err)
		}
	})

	t.Run("dollar outside javascript", func(t *testing.T) {
		_, err := Synthesize(context.Background(), Request{Language: model.Java, Source: "x", FunctionName: "$f"})
		if !errors.Is(err, errors.SynthesisFailed) {
			t.Errorf("error = %v, want SynthesisFailed", err)
		}
	})

	t.Run("cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		if _, err := Synthesize(ctx, Request{Language: model.Python, Source: "x", FunctionName: "f"}); err == nil {
			t.Error("expected context error")
		}
	})
}

func TestJavaSourcePreparation(t *testing.T) {
	src := "import java.math.BigInteger;\n\npublic class Solution {\n    public int add(int a, int b) { return a + b; }\n}\n"
	out, err := JavaBuilder{}.Build(Request{Language: model.Java, Source: src, FunctionName: "add", TimeLimit: time.Second})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if strings.Contains(out, "public class Solution") {
		t.Error("public modifier should be removed from user classes")
	}
	if !strings.Contains(out, "import java.math.BigInteger;") {
		t.Error("user import was dropped")
	}
	if strings.Index(out, "import java.math.BigInteger;") > strings.Index(out, "class Solution") {
		t.Error("user import must precede class declarations")
	}
	if !strings.Contains(out, "public class Main") {
		t.Error("driver class Main missing")
	}

	bare := "public int add(int a, int b) { return a + b; }"
	out, err = JavaBuilder{}.Build(Request{Language: model.Java, Source: bare, FunctionName: "add", TimeLimit: time.Second})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if !strings.Contains(out, "class Solution {\n"+bare) {
		t.Errorf("method without a class should be wrapped in Solution:\n%s", out)
	}
}

func TestLiteralRendering(t *testing.T) {
	value := input.List(
		input.Null(),
		input.Bool(true),
		input.Float(2),
		input.String("a\"b\n"),
		input.Object(input.Field{Key: "k", Value: input.Int(-1)}),
	)

	tests := []struct {
		name  string
		write literalWriter
		want  string
	}{
		{"python", writePythonLiteral, `[None, True, 2.0, "a\"b\n", {"k": -1}]`},
		{"script", writeScriptLiteral, `[null, true, 2, "a\"b\n", {"k": -1}]`},
		{"java", writeJavaLiteral, `list((Object) null, Boolean.TRUE, 2d, "a\"b\n", map("k", -1L))`},
		{"cpp", writeCppLiteral, `tutor_driver::vlist({tutor_driver::vnull(), tutor_driver::vbool(true), tutor_driver::vfloat(2.0), ` +
			`tutor_driver::vstr(std::string("a\"b\012", 4)), tutor_driver::vobj({{std::string("k", 1), tutor_driver::vint(-1LL)}})})`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var b strings.Builder
			tt.write(&b, value)
			if got := b.String(); got != tt.want {
				t.Errorf("literal = %s\nwant      %s", got, tt.want)
			}
		})
	}
}

func TestStringEscaping(t *testing.T) {
	if got, want := cppQuote("é??=\x00"), `"\303\251\?\?=\000"`; got != want {
		t.Errorf("cppQuote() = %s, want %s", got, want)
	}

	var b strings.Builder
	writeJavaString(&b, "\x01é😀")
	if got, want := b.String(), `"\001\u00e9\ud83d\ude00"`; got != want {
		t.Errorf("writeJavaString() = %s, want %s", got, want)
	}
}

func TestCppMemberDetection(t *testing.T) {
	member := "class Solution {\npublic:\n    int f(int x) { return x; }\n};\n"
	free := "int f(int x) { return x; }\nclass Solution {\npublic:\n    int g() { return 1; }\n};\n"

	if !cppIsMember(member, "f") {
		t.Error("f should be a Solution member")
	}
	if cppIsMember(free, "f") {
		t.Error("f is a free function")
	}
	if cppIsMember("int f() { return 1; }", "f") {
		t.Error("no Solution class declared")
	}

	out, err := CppBuilder{}.Build(Request{Language: model.Cpp, Source: member, FunctionName: "f", TimeLimit: time.Second})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if !strings.Contains(out, "tutor_driver::call(&Solution::f, std::vector<tutor_driver::Val>{})") {
		t.Errorf("member call target missing:\n%s", out)
	}
}

func TestPythonArityClassification(t *testing.T) {
	out, err := PythonBuilder{}.Build(Request{Language: model.Python, Source: sources[model.Python], FunctionName: "twoSum", Args: twoSumArgs, TimeLimit: time.Second})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	m := regexp.MustCompile(`(?m)^__TUTOR_ARITY_PATTERN = r"([^"]+)"$`).FindStringSubmatch(out)
	if m == nil {
		t.Fatalf("arity pattern missing from driver:\n%s", out)
	}
	arity := regexp.MustCompile(m[1])

	tests := []struct {
		msg  string
		want bool
	}{
		{"twoSum() missing 1 required positional argument: 'target'", true},
		{"twoSum() takes 2 positional arguments but 3 were given", true},
		{"f() takes 0 positional arguments but 1 was given", true},
		{"a bytes-like object is required, not 'str'", false},
		{"an integer is required (got type str)", false},
		{"unsupported operand type(s) for +: 'int' and 'str'", false},
	}
	for _, tt := range tests {
		if got := arity.MatchString(tt.msg); got != tt.want {
			t.Errorf("arity match %q = %v, want %v", tt.msg, got, tt.want)
		}
	}
	if strings.Contains(out, `"required" in str(e)`) {
		t.Error("driver still treats any 'required' TypeError as an arity mismatch")
	}
}
