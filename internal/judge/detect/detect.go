// Package detect guesses which function in user source is the entry point.
//
// Detection is a best-effort heuristic over a prioritized list of regular
// expressions per language; it is not a parser and can be fooled by code in
// comments or string literals.
package detect

import (
	"regexp"

	"tutorjudge/internal/judge/model"
)

// DefaultName is used when neither detection nor a hint yields a name.
const DefaultName = "solution"

// RuleKind tags the shape of declaration a rule recognises.
type RuleKind string

const (
	DeclaredFunction RuleKind = "declared_function"
	AssignedLambda   RuleKind = "assigned_lambda"
	AnnotatedMethod  RuleKind = "annotated_method"
	ClassMethod      RuleKind = "class_method"
	TypedFunction    RuleKind = "typed_function"
)

// Rule is one pattern; capture group 1 is the identifier.
type Rule struct {
	Kind    RuleKind
	Pattern *regexp.Regexp
}

// Candidate is an identifier found by a rule.
type Candidate struct {
	Name string
	Kind RuleKind
}

// Detection is the outcome of Resolve.
type Detection struct {
	Name string
	// Kind is empty when the name came from the hint or the default.
	Kind     RuleKind
	Detected bool
}

const cppTypes = `(?:unsigned\s+|signed\s+|const\s+|static\s+|inline\s+)*` +
	`(?:std::)?(?:vector<.+?>|string|int|long\s+long|long|short|bool|double|float|char|auto|void|size_t|int64_t|int32_t|uint64_t|pair<.+?>|map<.+?>|unordered_map<.+?>|set<.+?>|unordered_set<.+?>|[A-Z]\w*\s*\*?)` +
	`\s*[&*]?`

var rules = map[model.Language][]Rule{
	model.Python: {
		{DeclaredFunction, regexp.MustCompile(`(?m)^def\s+([A-Za-z_]\w*)\s*\(`)},
		{ClassMethod, regexp.MustCompile(`(?m)^[ \t]+def\s+([A-Za-z_]\w*)\s*\(\s*self\b`)},
		{DeclaredFunction, regexp.MustCompile(`(?m)^[ \t]*(?:async\s+)?def\s+([A-Za-z_]\w*)\s*\(`)},
		{AssignedLambda, regexp.MustCompile(`(?m)^([A-Za-z_]\w*)\s*=\s*lambda\b`)},
	},
	model.JavaScript: jsRules,
	model.TypeScript: jsRules,
	model.Java: {
		{AnnotatedMethod, regexp.MustCompile(`public\s+(?:static\s+)?(?:final\s+)?(?:<[^>]+>\s+)?[\w.]+(?:<[^>]*(?:<[^>]*>)*[^>]*>)?(?:\[\])*\s+(\w+)\s*\([^)]*\)\s*(?:throws\s+[\w.,\s]+)?\{`)},
		{ClassMethod, regexp.MustCompile(`(?m)^[ \t]*(?:(?:private|protected|static|final|synchronized)\s+)*[\w.]+(?:<[^>]*(?:<[^>]*>)*[^>]*>)?(?:\[\])*\s+(\w+)\s*\([^)]*\)\s*(?:throws\s+[\w.,\s]+)?\{`)},
	},
	model.Cpp: {
		{ClassMethod, regexp.MustCompile(`(?s)(?:class|struct)\s+Solution\b.*?public\s*:\s*(?:virtual\s+)?` + cppTypes + `\s+(\w+)\s*\(`)},
		{TypedFunction, regexp.MustCompile(`(?m)^[ \t]*(?:template\s*<[^>]*>\s*)?` + cppTypes + `\s+(\w+)\s*\([^;]*?\)\s*(?:const\s*)?\{`)},
	},
}

// Declarations count only at top level so helpers nested inside a class
// method never shadow the method itself.
var jsRules = []Rule{
	{DeclaredFunction, regexp.MustCompile(`(?m)^(?:export\s+(?:default\s+)?)?(?:async\s+)?function\s*\*?\s*([A-Za-z_$][\w$]*)\s*(?:<[^>]*>)?\s*\(`)},
	{AssignedLambda, regexp.MustCompile(`(?m)^(?:export\s+)?(?:const|let|var)\s+([A-Za-z_$][\w$]*)\s*(?::[^=]+)?=\s*(?:async\s+)?(?:function\b|\([^)]*\)\s*(?::[^=]+)?=>|[A-Za-z_$][\w$]*\s*=>)`)},
	{ClassMethod, regexp.MustCompile(`(?m)^[ \t]+(?:public\s+|static\s+|async\s+)*([A-Za-z_$][\w$]*)\s*\([^)]*\)\s*(?::\s*[^{]+)?\{`)},
	{AssignedLambda, regexp.MustCompile(`(?m)^(?:export\s+)?(?:const|let|var)\s+([A-Za-z_$][\w$]*)\s*=`)},
}

var reserved = map[model.Language]map[string]bool{
	model.Python:     set("__init__", "__new__", "__repr__", "__str__", "__eq__", "__hash__", "__lt__", "main"),
	model.JavaScript: set("constructor", "if", "for", "while", "switch", "catch", "function", "return", "require", "module", "exports"),
	model.TypeScript: set("constructor", "if", "for", "while", "switch", "catch", "function", "return", "require", "module", "exports"),
	model.Java:       set("main", "toString", "equals", "hashCode", "compareTo", "if", "for", "while", "switch", "catch", "return", "new"),
	model.Cpp:        set("main", "if", "for", "while", "switch", "catch", "return", "operator", "sizeof"),
}

func set(names ...string) map[string]bool {
	out := make(map[string]bool, len(names))
	for _, n := range names {
		out[n] = true
	}
	return out
}

// Candidates returns every identifier the rules find, ordered by rule
// priority and then position. Reserved names and constructors are dropped.
func Candidates(source string, lang model.Language) []Candidate {
	langRules, ok := rules[lang]
	if !ok {
		return nil
	}
	ctors := constructorNames(source, lang)
	seen := make(map[string]bool)
	var out []Candidate
	for _, rule := range langRules {
		for _, m := range rule.Pattern.FindAllStringSubmatch(source, -1) {
			name := m[1]
			if name == "" || seen[name] || reserved[lang][name] || ctors[name] {
				continue
			}
			seen[name] = true
			out = append(out, Candidate{Name: name, Kind: rule.Kind})
		}
	}
	return out
}

var classNamePattern = regexp.MustCompile(`\b(?:class|struct)\s+([A-Za-z_]\w*)`)

// constructorNames collects class names, which double as constructor names
// in Java and C++.
func constructorNames(source string, lang model.Language) map[string]bool {
	if lang != model.Java && lang != model.Cpp {
		return nil
	}
	out := make(map[string]bool)
	for _, m := range classNamePattern.FindAllStringSubmatch(source, -1) {
		out[m[1]] = true
	}
	return out
}

// Detect returns the most specific identifier the source defines, or DefaultName.
func Detect(source string, lang model.Language) string {
	return Resolve(source, lang, "").Name
}

// Resolve picks the entry point. A detected identifier always wins over the
// hint; when the hint names one of the detected identifiers it is chosen over
// the first match. The hint alone is used only when nothing is detected.
func Resolve(source string, lang model.Language, hint string) Detection {
	candidates := Candidates(source, lang)
	for _, c := range candidates {
		if hint != "" && c.Name == hint {
			return Detection{Name: c.Name, Kind: c.Kind, Detected: true}
		}
	}
	if len(candidates) > 0 {
		return Detection{Name: candidates[0].Name, Kind: candidates[0].Kind, Detected: true}
	}
	if hint != "" && identPattern.MatchString(hint) {
		return Detection{Name: hint}
	}
	return Detection{Name: DefaultName}
}

var identPattern = regexp.MustCompile(`^[A-Za-z_$][\w$]*$`)
