package cli

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/tandem/internal/store"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database string
	Session  string
	Replica  string // optional - filter to one replica label
	Kind     string // optional - filter to one event kind
}

// TraceEvent represents a single event in the trace timeline.
type TraceEvent struct {
	Seq       int64    `json:"seq"`
	Replica   string   `json:"replica"`
	ActorID   int      `json:"actor_id"`
	Kind      string   `json:"kind"`
	MessageID string   `json:"message_id,omitempty"`
	Message   string   `json:"message,omitempty"`
	Ops       []string `json:"ops,omitempty"`
	Rewritten []string `json:"rewritten,omitempty"`
	Acked     int      `json:"acked,omitempty"`
	Text      string   `json:"text,omitempty"`
	Error     string   `json:"error,omitempty"`
}

// TraceResult holds the complete trace output.
type TraceResult struct {
	Session  store.Session `json:"session"`
	Timeline []TraceEvent  `json:"timeline"`
	Stats    TraceStats    `json:"stats"`
}

// TraceStats holds summary statistics for the trace.
type TraceStats struct {
	TotalEvents int            `json:"total_events"`
	ByKind      map[string]int `json:"by_kind"`
	Failures    int            `json:"failures"`
}

// SessionList is the trace output when no session is selected.
type SessionList struct {
	Sessions []store.Session `json:"sessions"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Show the recorded timeline of a session",
		Long: `Print the recorded replica events of a session in sequence order:
local edits, receives, acknowledgements, transforms, applies and failures.

Without --session, lists the sessions in the database.

Examples:
  tandem trace --db ./trace.db
  tandem trace --db ./trace.db --session 0192...
  tandem trace --db ./trace.db --session 0192... --replica B --kind transform`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite trace database (default: trace.db from config)")
	cmd.Flags().StringVar(&opts.Session, "session", "", "session to trace")
	cmd.Flags().StringVar(&opts.Replica, "replica", "", "filter to one replica label")
	cmd.Flags().StringVar(&opts.Kind, "kind", "", "filter to one event kind")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
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

	if opts.Session == "" {
		sessions, err := st.ListSessions(ctx)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to list sessions", err)
		}
		if formatter.JSON() {
			return formatter.Success(SessionList{Sessions: sessions})
		}
		w := cmd.OutOrStdout()
		if len(sessions) == 0 {
			fmt.Fprintln(w, "No sessions found in database.")
			return nil
		}
		for _, s := range sessions {
			fmt.Fprintf(w, "%s  %s  initial=%q\n", s.ID, s.Name, s.InitialText)
		}
		return nil
	}

	session, err := st.ReadSession(ctx, opts.Session)
	if errors.Is(err, sql.ErrNoRows) {
		if formatter.JSON() {
			if err := formatter.Error(ErrCodeNotFound, "session not found", map[string]string{"session": opts.Session}); err != nil {
				return err
			}
		}
		return NewExitError(ExitCommandError, fmt.Sprintf("session not found: %s", opts.Session))
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read session", err)
	}

	events, err := st.ReadEvents(ctx, opts.Session)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read events", err)
	}

	result := TraceResult{
		Session:  session,
		Timeline: buildTimeline(events, opts.Replica, opts.Kind),
		Stats:    TraceStats{ByKind: map[string]int{}},
	}
	for _, ev := range result.Timeline {
		result.Stats.TotalEvents++
		result.Stats.ByKind[ev.Kind]++
		if ev.Error != "" {
			result.Stats.Failures++
		}
	}

	if formatter.JSON() {
		return formatter.Success(result)
	}
	outputTraceText(cmd, result)
	return nil
}

// openTraceDB opens --db, falling back to trace.db from config.
func openTraceDB(opts *RootOptions, path string) (*store.Store, error) {
	if path == "" {
		path = opts.config().Trace.DB
	}
	if path == "" {
		return nil, NewExitError(ExitCommandError, "no trace database: pass --db or set trace.db")
	}
	st, err := store.Open(path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	return st, nil
}

// buildTimeline converts store events to timeline events, keeping those
// that match the optional replica and kind filters.
func buildTimeline(events []store.Event, replica, kind string) []TraceEvent {
	timeline := []TraceEvent{}
	for _, ev := range events {
		if replica != "" && ev.Label != replica {
			continue
		}
		if kind != "" && ev.Kind != kind {
			continue
		}
		te := TraceEvent{
			Seq:       ev.Seq,
			Replica:   ev.Label,
			ActorID:   ev.ActorID,
			Kind:      ev.Kind,
			MessageID: ev.MessageID,
			Ops:       ev.Ops,
			Rewritten: ev.Rewritten,
			Acked:     ev.Acked,
			Text:      ev.Text,
			Error:     ev.Error,
		}
		if ev.Message != nil {
			te.Message = ev.Message.String()
		}
		timeline = append(timeline, te)
	}
	return timeline
}

func outputTraceText(cmd *cobra.Command, result TraceResult) {
	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Session: %s (%s)\n", result.Session.ID, result.Session.Name)
	fmt.Fprintf(w, "Initial: %q\n\n", result.Session.InitialText)

	if len(result.Timeline) == 0 {
		fmt.Fprintln(w, "No events.")
		return
	}
	for _, ev := range result.Timeline {
		var detail []string
		if ev.Message != "" {
			detail = append(detail, ev.Message)
		}
		if len(ev.Rewritten) > 0 {
			detail = append(detail, fmt.Sprintf("outgoing -> [%s]", strings.Join(ev.Rewritten, " ")))
		}
		if len(ev.Ops) > 0 {
			detail = append(detail, fmt.Sprintf("ops [%s]", strings.Join(ev.Ops, " ")))
		}
		if ev.Kind == "ack" {
			detail = append(detail, fmt.Sprintf("acked %d", ev.Acked))
		}
		if ev.Text != "" {
			detail = append(detail, fmt.Sprintf("text %q", ev.Text))
		}
		if ev.Error != "" {
			detail = append(detail, "error: "+ev.Error)
		}
		fmt.Fprintf(w, "[%d] %-2s %-9s %s\n", ev.Seq, ev.Replica, ev.Kind, strings.Join(detail, "  "))
	}

	fmt.Fprintf(w, "\n%d events", result.Stats.TotalEvents)
	if result.Stats.Failures > 0 {
		fmt.Fprintf(w, ", %d failures", result.Stats.Failures)
	}
	fmt.Fprintln(w)
}
