package command

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// FieldType describes input type.
type FieldType int

const (
	FieldString FieldType = iota
	FieldInt
	FieldJSON
	FieldFile
)

// Field defines a CLI input field. FileField names the field whose file
// may supply this value instead.
type Field struct {
	Name      string
	Aliases   []string
	Prompt    string
	Type      FieldType
	Required  bool
	FileField string
}

// Command defines a CLI command binding.
type Command struct {
	Service      string
	Action       string
	Method       string
	PathTemplate string
	Usage        string
	Fields       []Field
}

// Key is the registry key of the command.
func (c Command) Key() string {
	return c.Service + " " + c.Action
}

// HTTPRequest is the built HTTP request.
type HTTPRequest struct {
	Method  string
	Path    string
	Headers map[string]string
	Body    []byte
}

// Params holds parsed input params.
type Params map[string]string

func (p Params) Get(key string) string {
	return p[strings.ToLower(key)]
}

func (p Params) Set(key, value string) {
	p[strings.ToLower(key)] = value
}

func (p Params) Has(key string) bool {
	_, ok := p[strings.ToLower(key)]
	return ok
}

func (p Params) Canonicalize(fields []Field) {
	for _, field := range fields {
		for _, alias := range field.Aliases {
			aliasKey := strings.ToLower(alias)
			if value, ok := p[aliasKey]; ok {
				p[strings.ToLower(field.Name)] = value
				delete(p, aliasKey)
			}
		}
	}
}

// Missing lists required fields that have neither a value nor a file.
func (p Params) Missing(fields []Field) []Field {
	var out []Field
	for _, field := range fields {
		if !field.Required || p.Get(field.Name) != "" {
			continue
		}
		if field.FileField != "" && p.Get(field.FileField) != "" {
			continue
		}
		out = append(out, field)
	}
	return out
}

func ParseInt(value string) (int, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(value), 10, 32)
	return int(n), err
}

func ReadFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read file failed: %w", err)
	}
	return string(data), nil
}

func ParseJSON(value string) (json.RawMessage, error) {
	raw := strings.TrimSpace(value)
	if !json.Valid([]byte(raw)) {
		return nil, fmt.Errorf("invalid json content")
	}
	return json.RawMessage(raw), nil
}

// valueOrFile returns params[key], or the contents of params[fileKey].
func valueOrFile(params Params, key, fileKey string) (string, error) {
	value := params.Get(key)
	if value == "" && fileKey != "" && params.Get(fileKey) != "" {
		return ReadFile(params.Get(fileKey))
	}
	return value, nil
}
