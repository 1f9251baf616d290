package cli

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/roach88/tandem/internal/store"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Database string
	Session  string // optional - specific session only
}

// ReplaySessionResult holds the replay result for a single session.
type ReplaySessionResult struct {
	SessionID     string           `json:"session_id"`
	Name          string           `json:"name"`
	Applied       int              `json:"applied"`
	Texts         map[int]string   `json:"texts"`
	Converged     bool             `json:"converged"`
	Deterministic bool             `json:"deterministic"`
	Mismatches    []store.Mismatch `json:"mismatches,omitempty"`
}

// ReplayResult holds the overall replay result.
type ReplayResult struct {
	Sessions         []ReplaySessionResult `json:"sessions"`
	TotalSessions    int                   `json:"total_sessions"`
	AllDeterministic bool                  `json:"all_deterministic"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Replay recorded sessions and verify determinism",
		Long: `Rebuild every replica's document from the recorded local and apply
events of each session, and check that every recorded text is reproduced.

Exit codes:
  0 - Every session replays to its recorded texts
  1 - A replayed text differs from the recorded one
  2 - Command error (database not found, etc.)

Examples:
  tandem replay --db ./trace.db
  tandem replay --db ./trace.db --session 0192...
  tandem replay --db ./trace.db --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite trace database (default: trace.db from config)")
	cmd.Flags().StringVar(&opts.Session, "session", "", "replay specific session only")

	return cmd
}

func runReplay(opts *ReplayOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	formatter := opts.formatter(cmd)

	st, err := openTraceDB(opts.RootOptions, opts.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	var sessions []store.Session
	if opts.Session != "" {
		sess, err := st.ReadSession(ctx, opts.Session)
		if errors.Is(err, sql.ErrNoRows) {
			return NewExitError(ExitCommandError, fmt.Sprintf("session not found: %s", opts.Session))
		}
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read session", err)
		}
		sessions = []store.Session{sess}
	} else {
		sessions, err = st.ListSessions(ctx)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to list sessions", err)
		}
	}

	result := ReplayResult{
		Sessions:         make([]ReplaySessionResult, 0, len(sessions)),
		TotalSessions:    len(sessions),
		AllDeterministic: true,
	}
	for _, sess := range sessions {
		formatter.VerboseLog("Replaying session %s", sess.ID)
		rr, err := st.Replay(ctx, sess.ID)
		if err != nil {
			return WrapExitError(ExitCommandError, fmt.Sprintf("failed to replay session %s", sess.ID), err)
		}
		sr := ReplaySessionResult{
			SessionID:     sess.ID,
			Name:          sess.Name,
			Applied:       rr.Applied,
			Texts:         rr.Texts,
			Converged:     rr.Converged(),
			Deterministic: len(rr.Mismatches) == 0,
			Mismatches:    rr.Mismatches,
		}
		if !sr.Deterministic {
			result.AllDeterministic = false
		}
		result.Sessions = append(result.Sessions, sr)
	}

	if formatter.JSON() {
		if !result.AllDeterministic {
			if err := formatter.Failure(ErrCodeReplayMismatch, "replay differs from recorded trace", result); err != nil {
				return err
			}
			return NewExitError(ExitFailure, "determinism verification failed")
		}
		return formatter.Success(result)
	}

	w := cmd.OutOrStdout()
	if len(result.Sessions) == 0 {
		fmt.Fprintln(w, "No sessions found in database.")
		return nil
	}
	for _, sr := range result.Sessions {
		mark := "✓"
		if !sr.Deterministic {
			mark = "✗"
		}
		fmt.Fprintf(w, "%s %s (%s): %d instructions replayed", mark, sr.SessionID, sr.Name, sr.Applied)
		if sr.Converged {
			fmt.Fprint(w, ", converged")
		}
		fmt.Fprintln(w)

		actors := make([]int, 0, len(sr.Texts))
		for id := range sr.Texts {
			actors = append(actors, id)
		}
		sort.Ints(actors)
		for _, id := range actors {
			fmt.Fprintf(w, "  actor %d: %q\n", id, sr.Texts[id])
		}
		for _, m := range sr.Mismatches {
			fmt.Fprintf(w, "  seq %d actor %d: recorded %q, replayed %q\n", m.Seq, m.ActorID, m.Want, m.Got)
		}
	}

	if !result.AllDeterministic {
		return NewExitError(ExitFailure, "determinism verification failed")
	}
	fmt.Fprintf(w, "✓ %d session(s) deterministic\n", result.TotalSessions)
	return nil
}
