package repl

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"tutorjudge/internal/cli/command"
	httpclient "tutorjudge/internal/cli/http"
	"tutorjudge/internal/cli/state"
	pkgerrors "tutorjudge/pkg/errors"

	"github.com/chzyer/readline"
	"github.com/google/shlex"
)

const prompt = "tutorjudge> "

// Prompter asks the user for one missing value.
type Prompter func(prompt string) (string, error)

// Session holds REPL state.
type Session struct {
	client       *httpclient.Client
	commands     map[string]command.Command
	sessionState *state.SessionState
	statePath    string
	prettyJSON   bool
	out          io.Writer
	prompter     Prompter
}

func New(client *httpclient.Client, commands map[string]command.Command, sessionState *state.SessionState, statePath string, prettyJSON bool, out io.Writer) *Session {
	return &Session{
		client:       client,
		commands:     commands,
		sessionState: sessionState,
		statePath:    statePath,
		prettyJSON:   prettyJSON,
		out:          out,
	}
}

// Run reads commands until exit or EOF.
func (s *Session) Run(ctx context.Context, historyFile string) error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          prompt,
		HistoryFile:     historyFile,
		AutoComplete:    s.completer(),
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
		Stdout:          s.out,
	})
	if err != nil {
		return fmt.Errorf("init readline failed: %w", err)
	}
	defer func() { _ = rl.Close() }()

	s.prompter = func(p string) (string, error) {
		rl.SetPrompt(p + ": ")
		defer rl.SetPrompt(prompt)
		line, err := rl.Readline()
		return strings.TrimSpace(line), err
	}
	defer func() { s.prompter = nil }()

	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			if line == "" {
				return nil
			}
			continue
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read input failed: %w", err)
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			s.printLine("bye")
			return nil
		}
		if err := s.Exec(ctx, line); err != nil {
			s.printLine("error: %v", err)
		}
	}
}

// Exec runs one command line.
func (s *Session) Exec(ctx context.Context, line string) error {
	if s.handleSystemCommand(line) {
		return nil
	}
	tokens, err := shlex.Split(line)
	if err != nil {
		return fmt.Errorf("parse command failed: %w", err)
	}
	if len(tokens) < 2 {
		return fmt.Errorf("invalid command, use: <service> <action> key=value ...")
	}
	key := fmt.Sprintf("%s %s", tokens[0], tokens[1])
	cmd, ok := s.commands[key]
	if !ok {
		return fmt.Errorf("unknown command: %s", key)
	}
	params := command.Params{}
	for _, token := range tokens[2:] {
		parts := strings.SplitN(token, "=", 2)
		if len(parts) != 2 {
			return fmt.Errorf("invalid param: %s", token)
		}
		params.Set(parts[0], parts[1])
	}
	params.Canonicalize(cmd.Fields)

	if cmd.Key() == "judge status" && params.Get("id") == "" && s.sessionState.LastSubmissionID != "" {
		params.Set("id", s.sessionState.LastSubmissionID)
	}
	if err := s.promptMissing(cmd, params); err != nil {
		return err
	}
	req, err := command.BuildRequest(cmd, params)
	if err != nil {
		return err
	}
	resp, err := s.client.Do(ctx, req.Method, req.Path, req.Headers, req.Body)
	if err != nil {
		return err
	}
	s.renderResponse(resp)
	s.rememberSubmission(cmd, resp.Body)
	return nil
}

func (s *Session) handleSystemCommand(line string) bool {
	if line == "help" {
		s.printHelp()
		return true
	}
	if strings.HasPrefix(line, "set ") {
		s.handleSet(strings.TrimSpace(strings.TrimPrefix(line, "set ")))
		return true
	}
	if strings.HasPrefix(line, "show ") {
		s.handleShow(strings.TrimSpace(strings.TrimPrefix(line, "show ")))
		return true
	}
	if line == "clear last" {
		if err := state.Clear(s.statePath); err != nil {
			s.printLine("clear session state failed: %v", err)
			return true
		}
		*s.sessionState = state.SessionState{}
		s.printLine("last submission cleared")
		return true
	}
	return false
}

func (s *Session) handleSet(args string) {
	parts := strings.Fields(args)
	if len(parts) == 0 {
		s.printLine("usage: set base|timeout")
		return
	}
	switch parts[0] {
	case "base":
		if len(parts) < 2 {
			s.printLine("usage: set base http://127.0.0.1:8085")
			return
		}
		s.client.SetBaseURL(parts[1])
		s.printLine("base set to %s", parts[1])
	case "timeout":
		if len(parts) < 2 {
			s.printLine("usage: set timeout 10s")
			return
		}
		dur, err := time.ParseDuration(parts[1])
		if err != nil {
			s.printLine("invalid duration: %v", err)
			return
		}
		s.client.SetTimeout(dur)
		s.printLine("timeout set to %s", dur)
	default:
		s.printLine("unknown set command")
	}
}

func (s *Session) handleShow(args string) {
	switch args {
	case "last":
		if s.sessionState.LastSubmissionID == "" {
			s.printLine("last submission: <none>")
			return
		}
		s.printLine("last submission: %s (%s)", s.sessionState.LastSubmissionID, s.sessionState.SubmittedAt.Format(time.RFC3339))
	case "config":
		s.printLine("base: %s", s.client.BaseURL())
		s.printLine("statePath: %s", s.statePath)
	default:
		s.printLine("usage: show last|config")
	}
}

func (s *Session) promptMissing(cmd command.Command, params command.Params) error {
	for _, field := range params.Missing(cmd.Fields) {
		if s.prompter == nil {
			return fmt.Errorf("missing required field: %s", field.Name)
		}
		value, err := s.prompter(field.Prompt)
		if err != nil {
			return fmt.Errorf("read input failed: %w", err)
		}
		params.Set(field.Name, value)
	}
	return nil
}

func (s *Session) renderResponse(resp httpclient.ResponseInfo) {
	s.printLine("HTTP %d (%s)", resp.StatusCode, resp.Duration)
	if len(resp.Body) == 0 {
		return
	}
	if s.prettyJSON {
		var raw interface{}
		if err := json.Unmarshal(resp.Body, &raw); err == nil {
			formatted, _ := json.MarshalIndent(raw, "", "  ")
			s.printLine("%s", string(formatted))
			return
		}
	}
	s.printLine("%s", string(resp.Body))
}

func (s *Session) rememberSubmission(cmd command.Command, body []byte) {
	if cmd.Key() != "judge submit" {
		return
	}
	var resp struct {
		Code int `json:"code"`
		Data struct {
			SubmissionID string `json:"submission_id"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return
	}
	if resp.Code != int(pkgerrors.Success) || resp.Data.SubmissionID == "" {
		return
	}
	s.sessionState.LastSubmissionID = resp.Data.SubmissionID
	s.sessionState.SubmittedAt = time.Now()
	if err := state.Save(s.statePath, *s.sessionState); err != nil {
		s.printLine("save session state failed: %v", err)
	}
}

func (s *Session) completer() *readline.PrefixCompleter {
	services := map[string][]readline.PrefixCompleterInterface{}
	for _, cmd := range s.commands {
		services[cmd.Service] = append(services[cmd.Service], readline.PcItem(cmd.Action))
	}
	items := []readline.PrefixCompleterInterface{
		readline.PcItem("help"),
		readline.PcItem("exit"),
		readline.PcItem("set", readline.PcItem("base"), readline.PcItem("timeout")),
		readline.PcItem("show", readline.PcItem("last"), readline.PcItem("config")),
		readline.PcItem("clear", readline.PcItem("last")),
	}
	for service, actions := range services {
		items = append(items, readline.PcItem(service, actions...))
	}
	return readline.NewPrefixCompleter(items...)
}

func (s *Session) printHelp() {
	s.printLine("usage: <service> <action> key=value ...")
	s.printLine("system: help | exit | set base|timeout | show last|config | clear last")
	s.printLine("commands:")
	keys := make([]string, 0, len(s.commands))
	for key := range s.commands {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		s.printLine("  %s", s.commands[key].Usage)
	}
}

func (s *Session) printLine(format string, args ...interface{}) {
	_, _ = fmt.Fprintf(s.out, format+"\n", args...)
}
