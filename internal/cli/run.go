package cli

import (
	"context"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/roach88/tandem/internal/harness"
	"github.com/roach88/tandem/internal/store"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Database string
	Session  string

	// SessionIDs allows overriding the session id generator (for testing).
	// If nil, --session is used when set, otherwise UUIDv7Generator.
	SessionIDs store.SessionIDGenerator
}

// RunResult is the outcome of one scenario run.
type RunResult struct {
	Name      string               `json:"name"`
	Pass      bool                 `json:"pass"`
	SessionID string               `json:"session_id,omitempty"`
	Texts     map[string]string    `json:"texts"`
	Steps     []harness.StepResult `json:"steps"`
	Errors    []string             `json:"errors,omitempty"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <scenario.yaml>",
		Short: "Run one scenario",
		Long: `Run a single scenario file and report the final documents.

With --db (or trace.db in the config file) every replica event is
recorded to the SQLite trace database under a fresh UUIDv7 session id,
or under --session when given.

Exit codes:
  0 - Scenario passed
  1 - An assertion failed or a step failed unexpectedly
  2 - Command error (unreadable scenario, database error, etc.)

Examples:
  tandem run scenarios/concurrent_inserts.yaml
  tandem run --db ./trace.db scenarios/concurrent_inserts.yaml
  tandem run --format json scenarios/insert_delete.yaml`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenarioFile(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite trace database (default: trace.db from config)")
	cmd.Flags().StringVar(&opts.Session, "session", "", "session id for the recorded trace")

	return cmd
}

func runScenarioFile(opts *RunOptions, path string, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	logger := opts.logger()
	formatter := opts.formatter(cmd)

	scenario, err := harness.LoadScenario(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load scenario", err)
	}

	runOpts := harness.Options{Logger: logger}
	db := opts.Database
	if db == "" {
		db = opts.config().Trace.DB
	}
	if db != "" {
		st, err := store.Open(db)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open database", err)
		}
		defer func() {
			if closeErr := st.Close(); closeErr != nil {
				logger.Error("error closing database", "error", closeErr)
			}
		}()
		runOpts.Store = st
		runOpts.SessionIDs = opts.sessionIDs()
		logger.Debug("recording trace", "db", db)
	}

	result, err := harness.RunWithOptions(ctx, scenario, runOpts)
	if err != nil {
		return WrapExitError(ExitCommandError, "scenario execution failed", err)
	}

	out := RunResult{
		Name:   scenario.Name,
		Pass:   result.Pass,
		Texts:  result.Texts,
		Steps:  result.Steps,
		Errors: result.Errors,
	}
	if db != "" {
		out.SessionID = result.SessionID
	}

	if formatter.JSON() {
		if !out.Pass {
			if err := formatter.Failure(ErrCodeScenarioFailed, "scenario failed", out); err != nil {
				return err
			}
			return NewExitError(ExitFailure, fmt.Sprintf("scenario %s failed", scenario.Name))
		}
		return formatter.Success(out)
	}

	w := cmd.OutOrStdout()
	mark := "✓"
	if !out.Pass {
		mark = "✗"
	}
	fmt.Fprintf(w, "%s %s\n", mark, out.Name)
	labels := make([]string, 0, len(out.Texts))
	for label := range out.Texts {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	for _, label := range labels {
		fmt.Fprintf(w, "  %s: %q\n", label, out.Texts[label])
	}
	if out.SessionID != "" {
		fmt.Fprintf(w, "  session: %s\n", out.SessionID)
	}
	for _, e := range out.Errors {
		fmt.Fprintf(w, "  %s\n", e)
	}
	if !out.Pass {
		return NewExitError(ExitFailure, fmt.Sprintf("scenario %s failed", scenario.Name))
	}
	return nil
}

func (o *RunOptions) sessionIDs() store.SessionIDGenerator {
	switch {
	case o.SessionIDs != nil:
		return o.SessionIDs
	case o.Session != "":
		return store.NewSequenceGenerator(o.Session)
	default:
		return store.UUIDv7Generator{}
	}
}
