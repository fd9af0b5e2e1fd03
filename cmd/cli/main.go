package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"tutorjudge/internal/cli/command"
	"tutorjudge/internal/cli/config"
	httpclient "tutorjudge/internal/cli/http"
	"tutorjudge/internal/cli/repl"
	"tutorjudge/internal/cli/state"

	"github.com/google/shlex"
)

const defaultConfigPath = "configs/cli.yaml"

func main() {
	configPath := flag.String("config", defaultConfigPath, "Path to config file")
	baseURL := flag.String("base", "", "Override base URL")
	timeout := flag.Duration("timeout", 0, "Override HTTP timeout (e.g. 10s)")
	statePath := flag.String("state", "", "Override session state path")
	pretty := flag.Bool("pretty", false, "Pretty print JSON response")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(1)
	}
	if *baseURL != "" {
		cfg.BaseURL = *baseURL
	}
	if *timeout > 0 {
		cfg.Timeout = *timeout
	}
	if *statePath != "" {
		cfg.StatePath = *statePath
	}
	if *pretty {
		trueValue := true
		cfg.PrettyJSON = &trueValue
	}

	sessionState, err := state.Load(cfg.StatePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load session state failed: %v\n", err)
		os.Exit(1)
	}

	client := httpclient.New(cfg.BaseURL, cfg.Timeout)
	session := repl.New(client, command.Registry(), &sessionState, cfg.StatePath, cfg.PrettyJSON != nil && *cfg.PrettyJSON, os.Stdout)

	ctx := context.Background()
	if flag.NArg() > 0 {
		if err := session.Exec(ctx, joinArgs(flag.Args())); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return
	}
	if err := session.Run(ctx, cfg.HistoryFile); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}

// joinArgs re-quotes shell arguments so the session can split them again.
func joinArgs(args []string) string {
	quoted := make([]string, len(args))
	for i, arg := range args {
		if parts, err := shlex.Split(arg); err == nil && len(parts) == 1 && parts[0] == arg {
			quoted[i] = arg
			continue
		}
		quoted[i] = "'" + strings.ReplaceAll(arg, "'", `'"'"'`) + "'"
	}
	return strings.Join(quoted, " ")
}
