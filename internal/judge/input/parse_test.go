package input

import (
	"math"
	"testing"
)

func TestParseTwoSumInput(t *testing.T) {
	args := Parse("[2,7,11,15]\n9")
	if len(args) != 2 {
		t.Fatalf("expected 2 args, got %d", len(args))
	}
	if args[0].Kind() != KindList || args[0].Len() != 4 {
		t.Fatalf("unexpected first arg: %s", Serialize(args[0]))
	}
	if args[0].Index(3).Kind() != KindInt || args[0].Index(3).AsInt() != 15 {
		t.Fatalf("unexpected element: %s", Serialize(args[0].Index(3)))
	}
	if args[1].Kind() != KindInt || args[1].AsInt() != 9 {
		t.Fatalf("unexpected second arg: %s", Serialize(args[1]))
	}
	if got := SerializeAll(args); got != "[[2,7,11,15],9]" {
		t.Fatalf("unexpected serialization: %s", got)
	}
}

func TestParseEmptyStdin(t *testing.T) {
	for _, stdin := range []string{"", "\n", "  \r\n\t\n"} {
		if args := Parse(stdin); len(args) != 0 {
			t.Fatalf("expected no args for %q, got %d", stdin, len(args))
		}
	}
}

func TestParseTokenRules(t *testing.T) {
	cases := []struct {
		in   string
		kind Kind
		want string
	}{
		{"true", KindBool, "true"},
		{"FALSE", KindBool, "false"},
		{"Null", KindNull, "null"},
		{"-42", KindInt, "-42"},
		{"+7", KindInt, "7"},
		{"3.5", KindFloat, "3.5"},
		{"1e3", KindFloat, "1000"},
		{".25", KindFloat, "0.25"},
		{"99999999999999999999", KindFloat, "100000000000000000000"},
		{`"hello world"`, KindString, `"hello world"`},
		{`'single'`, KindString, `"single"`},
		{`"esc\"aped"`, KindString, `"esc\"aped"`},
		{"plain text", KindString, `"plain text"`},
		{`{"b":1,"a":[true,null]}`, KindObject, `{"a":[true,null],"b":1}`},
		{"[1,[2,[3]],\"x,y\",'z']", KindList, `[1,[2,[3]],"x,y","z"]`},
		{"[ ]", KindList, "[]"},
		{"[1,2,]", KindList, "[1,2]"},
		{"[a, b]", KindList, `["a","b"]`},
		{"[1,2", KindString, `"[1,2"`},
		{"[1]]", KindString, `"[1]]"`},
		{"[1],[2]", KindString, `"[1],[2]"`},
		{`["unterminated]`, KindString, `"[\"unterminated]"`},
		{"1e999", KindString, `"1e999"`},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			v := ParseToken(tc.in)
			if v.Kind() != tc.kind {
				t.Fatalf("kind = %s, want %s", v.Kind(), tc.kind)
			}
			if got := Serialize(v); got != tc.want {
				t.Fatalf("Serialize = %s, want %s", got, tc.want)
			}
		})
	}
}

func TestParseIsIdempotentOverSerialization(t *testing.T) {
	lines := []string{
		"[2,7,11,15]",
		"[]",
		"[[1,2],[3,4],[]]",
		"[1.5, 2.0, -0.25, 1e-7, 3E+21]",
		`["a", 'b', c, "d\"e", 'f\'g', "h,i", "[j]"]`,
		"[true, FALSE, null, NULL]",
		`[{"k":[1,2]}, {"b":2,"a":1}]`,
		"[1,,2]",
		"[\"\\u00e9\", \"tab\\there\"]",
		"[9223372036854775807, -9223372036854775808, 9223372036854775808]",
	}
	for _, line := range lines {
		first := Serialize(ParseToken(line))
		second := Serialize(ParseToken(first))
		if first != second {
			t.Fatalf("not idempotent for %q: %s != %s", line, first, second)
		}
	}
}

func TestFormatFloat(t *testing.T) {
	cases := map[float64]string{
		0:            "0",
		2:            "2",
		0.1:          "0.1",
		1e21:         "1e+21",
		1e-7:         "1e-7",
		-1234.5:      "-1234.5",
		math.Inf(1):  "null",
		math.NaN():   "null",
		123456789.25: "123456789.25",
	}
	for in, want := range cases {
		if got := FormatFloat(in); got != want {
			t.Fatalf("FormatFloat(%v) = %s, want %s", in, got, want)
		}
	}
}

func TestQuoteEscapes(t *testing.T) {
	got := Quote("a\"b\\c\n\x01<>&\u2028\xff")
	want := `"a\"b\\c\n\u0001<>&\u2028\ufffd"`
	if got != want {
		t.Fatalf("Quote = %s, want %s", got, want)
	}
}

func TestCanonical(t *testing.T) {
	a, okA := Canonical(" {\"b\": [1, 2], \"a\": 1.0}\n")
	b, okB := Canonical(`{"a":1,"b":[1,2]}`)
	if !okA || !okB || a != b {
		t.Fatalf("expected equal canonical forms: %s (%v) vs %s (%v)", a, okA, b, okB)
	}
	if got, ok := Canonical("  not json  "); ok || got != "not json" {
		t.Fatalf("unexpected canonical result: %q %v", got, ok)
	}
	if got, ok := Canonical("false"); !ok || got != "false" {
		t.Fatalf("unexpected canonical result: %q %v", got, ok)
	}
	if got, ok := Canonical("[0, 1]\n[2]"); ok || got != "[0, 1]\n[2]" {
		t.Fatalf("multi-document output must stay verbatim: %q %v", got, ok)
	}
}

func TestObjectKeepsLastDuplicate(t *testing.T) {
	v := Object(Field{Key: "a", Value: Int(1)}, Field{Key: "a", Value: Int(2)})
	if Serialize(v) != `{"a":2}` {
		t.Fatalf("unexpected object: %s", Serialize(v))
	}
}
