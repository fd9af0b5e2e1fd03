package command

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// Registry returns all CLI commands keyed by "service action".
func Registry() map[string]Command {
	commands := []Command{
		{
			Service:      "code",
			Action:       "run",
			Method:       http.MethodPost,
			PathTemplate: "/api/execute",
			Usage:        `code run language=python code_file=./two_sum.py stdin='[2,7,11,15]\n9'`,
			Fields: []Field{
				{Name: "language", Aliases: []string{"lang"}, Prompt: "language", Type: FieldString, Required: true},
				{Name: "code", Prompt: "code", Type: FieldString, Required: true, FileField: "code_file"},
				{Name: "code_file", Aliases: []string{"file"}, Prompt: "code_file", Type: FieldFile},
				{Name: "stdin", Prompt: "stdin", Type: FieldString, FileField: "stdin_file"},
				{Name: "stdin_file", Prompt: "stdin_file", Type: FieldFile},
				{Name: "function_name", Aliases: []string{"fn"}, Prompt: "function_name", Type: FieldString},
				{Name: "time_limit", Prompt: "time_limit (ms)", Type: FieldInt},
				{Name: "memory_limit", Prompt: "memory_limit (KB)", Type: FieldInt},
			},
		},
		{
			Service:      "judge",
			Action:       "submit",
			Method:       http.MethodPost,
			PathTemplate: "/api/v1/judge/submissions",
			Usage:        `judge submit language=js code_file=./sum.js tests_file=./tests.json`,
			Fields: []Field{
				{Name: "language", Aliases: []string{"lang"}, Prompt: "language", Type: FieldString, Required: true},
				{Name: "code", Prompt: "code", Type: FieldString, Required: true, FileField: "code_file"},
				{Name: "code_file", Aliases: []string{"file"}, Prompt: "code_file", Type: FieldFile},
				{Name: "tests_json", Aliases: []string{"tests"}, Prompt: "tests_json (JSON array)", Type: FieldJSON, Required: true, FileField: "tests_file"},
				{Name: "tests_file", Prompt: "tests_file", Type: FieldFile},
				{Name: "function_name", Aliases: []string{"fn"}, Prompt: "function_name", Type: FieldString},
				{Name: "time_limit", Prompt: "time_limit (ms)", Type: FieldInt},
				{Name: "memory_limit", Prompt: "memory_limit (KB)", Type: FieldInt},
			},
		},
		{
			Service:      "judge",
			Action:       "status",
			Method:       http.MethodGet,
			PathTemplate: "/api/v1/judge/submissions/:id",
			Usage:        "judge status id=<submission_id>",
			Fields: []Field{
				{Name: "id", Prompt: "submission_id", Type: FieldString, Required: true},
			},
		},
		{
			Service:      "system",
			Action:       "health",
			Method:       http.MethodGet,
			PathTemplate: "/healthz",
			Usage:        "system health",
		},
	}

	result := make(map[string]Command, len(commands))
	for _, cmd := range commands {
		result[cmd.Key()] = cmd
	}
	return result
}

// BuildRequest builds the HTTP request for a command.
func BuildRequest(cmd Command, params Params) (HTTPRequest, error) {
	params.Canonicalize(cmd.Fields)
	path, err := buildPath(cmd.PathTemplate, params)
	if err != nil {
		return HTTPRequest{}, err
	}

	var body []byte
	if cmd.Method != http.MethodGet && cmd.Method != http.MethodDelete {
		payload, err := buildPayload(cmd, params)
		if err != nil {
			return HTTPRequest{}, err
		}
		if payload != nil {
			body, err = json.Marshal(payload)
			if err != nil {
				return HTTPRequest{}, fmt.Errorf("marshal request body failed: %w", err)
			}
		}
	}

	return HTTPRequest{
		Method:  cmd.Method,
		Path:    path,
		Headers: map[string]string{},
		Body:    body,
	}, nil
}

func buildPath(template string, params Params) (string, error) {
	path := template
	for _, key := range []string{"id"} {
		placeholder := ":" + key
		if strings.Contains(path, placeholder) {
			value := params.Get(key)
			if value == "" {
				return "", fmt.Errorf("missing path parameter: %s", key)
			}
			path = strings.ReplaceAll(path, placeholder, value)
		}
	}
	return path, nil
}

func buildPayload(cmd Command, params Params) (interface{}, error) {
	switch cmd.Key() {
	case "code run":
		return buildExecutePayload(params)
	case "judge submit":
		return buildSubmitPayload(params)
	}
	return nil, nil
}

func buildExecutePayload(params Params) (interface{}, error) {
	code, err := valueOrFile(params, "code", "code_file")
	if err != nil {
		return nil, err
	}
	if code == "" {
		return nil, fmt.Errorf("code is required")
	}
	stdin, err := valueOrFile(params, "stdin", "stdin_file")
	if err != nil {
		return nil, err
	}
	if params.Get("stdin_file") == "" {
		stdin = unescapeNewlines(stdin)
	}

	payload := map[string]interface{}{
		"language": params.Get("language"),
		"code":     code,
		"stdin":    stdin,
	}
	if fn := params.Get("function_name"); fn != "" {
		payload["functionName"] = fn
	}
	if err := putInt(payload, params, "time_limit", "timeLimit"); err != nil {
		return nil, err
	}
	if err := putInt(payload, params, "memory_limit", "memoryLimit"); err != nil {
		return nil, err
	}
	return payload, nil
}

func buildSubmitPayload(params Params) (interface{}, error) {
	code, err := valueOrFile(params, "code", "code_file")
	if err != nil {
		return nil, err
	}
	if code == "" {
		return nil, fmt.Errorf("code is required")
	}
	testsRaw, err := valueOrFile(params, "tests_json", "tests_file")
	if err != nil {
		return nil, err
	}
	if testsRaw == "" {
		return nil, fmt.Errorf("tests_json is required")
	}
	tests, err := ParseJSON(testsRaw)
	if err != nil {
		return nil, fmt.Errorf("invalid tests_json: %w", err)
	}

	payload := map[string]interface{}{
		"language":   params.Get("language"),
		"code":       code,
		"test_cases": tests,
	}
	if fn := params.Get("function_name"); fn != "" {
		payload["function_name"] = fn
	}
	if err := putInt(payload, params, "time_limit", "time_limit"); err != nil {
		return nil, err
	}
	if err := putInt(payload, params, "memory_limit", "memory_limit"); err != nil {
		return nil, err
	}
	return payload, nil
}

func putInt(payload map[string]interface{}, params Params, key, jsonKey string) error {
	raw := params.Get(key)
	if raw == "" {
		return nil
	}
	n, err := ParseInt(raw)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	payload[jsonKey] = n
	return nil
}

// Inline stdin is typed on one line; a literal \n separates arguments.
func unescapeNewlines(s string) string {
	return strings.ReplaceAll(s, `\n`, "\n")
}
