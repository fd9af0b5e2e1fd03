package model

import "strings"

// Language identifies a supported source language.
type Language string

const (
	Python     Language = "python"
	JavaScript Language = "javascript"
	TypeScript Language = "typescript"
	Java       Language = "java"
	Cpp        Language = "cpp"
)

var languageAliases = map[string]Language{
	"python":     Python,
	"python3":    Python,
	"py":         Python,
	"javascript": JavaScript,
	"js":         JavaScript,
	"node":       JavaScript,
	"typescript": TypeScript,
	"ts":         TypeScript,
	"java":       Java,
	"cpp":        Cpp,
	"c++":        Cpp,
	"cxx":        Cpp,
}

// ParseLanguage resolves a request language name, accepting common aliases.
func ParseLanguage(name string) (Language, bool) {
	lang, ok := languageAliases[strings.ToLower(strings.TrimSpace(name))]
	return lang, ok
}

// Languages lists every supported language in a stable order.
func Languages() []Language {
	return []Language{Python, JavaScript, TypeScript, Java, Cpp}
}

func (l Language) String() string {
	return string(l)
}
