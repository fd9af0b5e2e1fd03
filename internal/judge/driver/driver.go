// Package driver synthesizes self-contained programs that call a user
// function with parsed arguments and print its canonical result.
package driver

import (
	"context"
	"regexp"
	"strings"
	"time"

	"tutorjudge/internal/judge/input"
	"tutorjudge/internal/judge/model"
	"tutorjudge/pkg/errors"
)

// Request is everything a builder needs to produce one program.
type Request struct {
	Language     model.Language
	Source       string
	FunctionName string
	Args         []input.Value
	TimeLimit    time.Duration
}

// Program is a complete program ready for a backend.
type Program struct {
	Language     model.Language
	Source       string
	FunctionName string
	Args         []input.Value
	TimeLimit    time.Duration
}

// LanguageDriverBuilder renders driver source for one language.
type LanguageDriverBuilder interface {
	Language() model.Language
	// ArgumentIdent is the identifier holding the argument literal. It never
	// appears in programs built for zero arguments.
	ArgumentIdent() string
	Build(req Request) (string, error)
}

// Registry maps languages to builders.
type Registry struct {
	builders map[model.Language]LanguageDriverBuilder
}

// NewRegistry builds a registry; a later builder for the same language wins.
func NewRegistry(builders ...LanguageDriverBuilder) *Registry {
	r := &Registry{builders: make(map[model.Language]LanguageDriverBuilder, len(builders))}
	for _, b := range builders {
		r.builders[b.Language()] = b
	}
	return r
}

// DefaultRegistry holds a builder for every supported language.
func DefaultRegistry() *Registry {
	return NewRegistry(
		PythonBuilder{},
		JavaScriptBuilder{},
		TypeScriptBuilder{},
		JavaBuilder{},
		CppBuilder{},
	)
}

// Builder returns the builder registered for lang.
func (r *Registry) Builder(lang model.Language) (LanguageDriverBuilder, bool) {
	b, ok := r.builders[lang]
	return b, ok
}

// Supports reports whether lang has a builder.
func (r *Registry) Supports(lang model.Language) bool {
	_, ok := r.builders[lang]
	return ok
}

var identPattern = regexp.MustCompile(`^[A-Za-z_$][\w$]*$`)

// Synthesize renders the driver program for req.
func (r *Registry) Synthesize(ctx context.Context, req Request) (Program, error) {
	if err := ctx.Err(); err != nil {
		return Program{}, err
	}
	b, ok := r.builders[req.Language]
	if !ok {
		return Program{}, errors.Newf(errors.LanguageNotSupported, "language %q is not supported", req.Language)
	}
	if !identPattern.MatchString(req.FunctionName) {
		return Program{}, errors.Newf(errors.SynthesisFailed, "invalid function name %q", req.FunctionName)
	}
	if strings.Contains(req.FunctionName, "$") && (req.Language != model.JavaScript && req.Language != model.TypeScript) {
		return Program{}, errors.Newf(errors.SynthesisFailed, "invalid function name %q", req.FunctionName)
	}
	if req.TimeLimit <= 0 {
		req.TimeLimit = model.DefaultTimeLimit
	}

	src, err := b.Build(req)
	if err != nil {
		return Program{}, errors.Wrap(err, errors.SynthesisFailed)
	}
	return Program{
		Language:     req.Language,
		Source:       src,
		FunctionName: req.FunctionName,
		Args:         req.Args,
		TimeLimit:    req.TimeLimit,
	}, nil
}

// Synthesize renders req with the default registry.
func Synthesize(ctx context.Context, req Request) (Program, error) {
	return defaultRegistry.Synthesize(ctx, req)
}

var defaultRegistry = DefaultRegistry()

// literalWriter renders one value in a target language syntax.
type literalWriter func(b *strings.Builder, v input.Value)

func joinLiterals(b *strings.Builder, values []input.Value, sep string, write literalWriter) {
	for i, v := range values {
		if i > 0 {
			b.WriteString(sep)
		}
		write(b, v)
	}
}

func millis(d time.Duration) int64 {
	return d.Milliseconds()
}
