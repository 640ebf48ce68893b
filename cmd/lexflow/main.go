// Command lexflow validates and simulates workflow instance snapshots from
// the command line. Snapshots are plain JSON exports of a workflow instance;
// no database or network access is involved.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	cli "github.com/urfave/cli/v3"

	"github.com/casekit/lexflow/internal/engine"
	"github.com/casekit/lexflow/internal/logging"
	"github.com/casekit/lexflow/pkg/schema"
)

// scenario is the input format for the simulate command: an instance, an
// execution-context projection, and the transition requests to replay.
type scenario struct {
	Instance *schema.WorkflowInstance   `json:"instance"`
	Context  map[string]any             `json:"context,omitempty"`
	Requests []schema.TransitionRequest `json:"requests,omitempty"`
}

func main() {
	cmd := &cli.Command{
		Name:                  "lexflow",
		Usage:                 "Validate and simulate legal workflow instances",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "warn",
				Sources: cli.EnvVars("LEXFLOW_LOG_LEVEL"),
			},
		},
		Commands: []*cli.Command{
			newValidateCommand(),
			newSimulateCommand(),
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newValidateCommand() *cli.Command {
	return &cli.Command{
		Name:      "validate",
		Usage:     "Validate a workflow instance snapshot",
		ArgsUsage: "<snapshot.json>",
		Action: func(ctx context.Context, command *cli.Command) error {
			eng, err := newEngine(command)
			if err != nil {
				return err
			}

			var inst schema.WorkflowInstance
			if err := readJSONFile(command.Args().First(), &inst); err != nil {
				return err
			}

			result := eng.Validate(&inst)
			if err := printJSON(result); err != nil {
				return err
			}
			if !result.Valid() {
				return cli.Exit(fmt.Sprintf("%d validation errors", len(result.Errors)), 1)
			}
			return nil
		},
	}
}

func newSimulateCommand() *cli.Command {
	return &cli.Command{
		Name:      "simulate",
		Usage:     "Dry-run a sequence of transitions against a scenario file",
		ArgsUsage: "<scenario.json>",
		Action: func(ctx context.Context, command *cli.Command) error {
			eng, err := newEngine(command)
			if err != nil {
				return err
			}

			var sc scenario
			if err := readJSONFile(command.Args().First(), &sc); err != nil {
				return err
			}
			if sc.Instance == nil {
				return fmt.Errorf("scenario has no instance")
			}

			report, err := eng.Simulate(ctx, sc.Instance, sc.Requests, sc.Context)
			if err != nil {
				return err
			}
			return printJSON(report)
		},
	}
}

func newEngine(command *cli.Command) (*engine.Engine, error) {
	return engine.New(engine.Options{Logger: setupLogger(command.String("log-level"))})
}

func setupLogger(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelWarn
	}
	inner := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})
	return slog.New(logging.NewCorrelationHandler(inner))
}

func readJSONFile(path string, v any) error {
	if path == "" {
		return fmt.Errorf("missing snapshot file argument")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
