package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/roach88/tandem/internal/buffer"
	"github.com/roach88/tandem/internal/replica"
	"github.com/roach88/tandem/internal/store"
	"github.com/roach88/tandem/internal/transport"
)

// PeerOptions holds flags for the peer command.
type PeerOptions struct {
	*RootOptions
	Session    string
	Actor      int
	Peer       int
	Initial    string
	RedisAddr  string
	Database   string
	PieceTable bool
}

// NewPeerCommand creates the peer command.
func NewPeerCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PeerOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "peer",
		Short: "Edit a shared document with one peer over Redis",
		Long: `Run one replica of a two-party session connected through Redis pub/sub.

Each line read from stdin replaces the whole local document; the derived
instructions are published to the peer. Remote edits are printed as they
are applied. Both sides must start with the same --initial text and be
subscribed before either edits.

The replica publishes on <prefix>:<session>:<actor> and listens on
<prefix>:<session>:<peer>, where <prefix> is redis.channel_prefix.

Examples:
  tandem peer --session notes --actor 1 --peer 2 --initial "hello"
  tandem peer --session notes --actor 2 --peer 1 --initial "hello" --db ./trace.db`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPeer(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Session, "session", "", "shared session name (required)")
	_ = cmd.MarkFlagRequired("session")
	cmd.Flags().IntVar(&opts.Actor, "actor", 0, "this replica's actor id (required)")
	_ = cmd.MarkFlagRequired("actor")
	cmd.Flags().IntVar(&opts.Peer, "peer", 0, "the peer's actor id (required)")
	_ = cmd.MarkFlagRequired("peer")
	cmd.Flags().StringVar(&opts.Initial, "initial", "", "initial document")
	cmd.Flags().StringVar(&opts.RedisAddr, "redis", "", "Redis address (default: redis.addr from config)")
	cmd.Flags().StringVar(&opts.Database, "db", "", "record this replica's trace to a SQLite database")
	cmd.Flags().BoolVar(&opts.PieceTable, "piece-table", false, "use the piece-table buffer")

	return cmd
}

// lockedWriter serializes writes from the loop goroutine and the input
// reader.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) printf(format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.w, format, args...)
}

func runPeer(opts *PeerOptions, cmd *cobra.Command) error {
	if opts.Actor == opts.Peer {
		return NewExitError(ExitCommandError, "--actor and --peer must differ")
	}
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := opts.config()
	logger := opts.logger().With("session", opts.Session, "actor", opts.Actor)
	out := &lockedWriter{w: cmd.OutOrStdout()}

	addr := opts.RedisAddr
	if addr == "" {
		addr = cfg.Redis.Addr
	}
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer client.Close()

	pingCtx, cancelPing := context.WithTimeout(ctx, 3*time.Second)
	err := client.Ping(pingCtx).Err()
	cancelPing()
	if err != nil {
		return WrapExitError(ExitCommandError, fmt.Sprintf("cannot reach redis at %s", addr), err)
	}

	// The loop and the recorder number from one sequence, so seq values in
	// debug logs and in the recorded trace line up.
	clock := replica.NewClock()
	observers := replica.Observers{
		replica.LogObserver{Logger: logger},
		replica.ObserverFunc(func(ev replica.Event) {
			if ev.Kind == replica.EventApply {
				out.printf("< %q\n", ev.Text)
			}
		}),
	}

	if opts.Database != "" {
		st, err := store.Open(opts.Database)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open database", err)
		}
		defer st.Close()

		// Each run of each replica records its own trace session.
		sessionID := fmt.Sprintf("%s/%d/%s", opts.Session, opts.Actor, store.UUIDv7Generator{}.Generate())
		if err := st.WriteSession(ctx, store.Session{ID: sessionID, Name: opts.Session, InitialText: opts.Initial}); err != nil {
			return WrapExitError(ExitCommandError, "failed to write session", err)
		}
		recorder := store.NewRecorder(ctx, st, sessionID, clock)
		observers = append(observers, recorder)
		logger.Info("recording trace", "db", opts.Database, "trace_session", sessionID)
		defer func() {
			if err := recorder.Err(); err != nil {
				logger.Error("trace recording failed", "error", err)
			}
		}()
	}

	prefix := cfg.Redis.ChannelPrefix
	outbound := transport.NewRedis(client, transport.ChannelName(prefix, opts.Session, opts.Actor), transport.WithRedisLogger(logger))
	inbound := transport.NewRedis(client, transport.ChannelName(prefix, opts.Session, opts.Peer), transport.WithRedisLogger(logger))

	factory := buffer.NewRunes
	if opts.PieceTable {
		factory = buffer.NewPieceTableBuffer
	}
	state := replica.New(opts.Actor, fmt.Sprintf("%d", opts.Actor), outbound,
		replica.WithText(opts.Initial),
		replica.WithBuffer(factory),
		replica.WithPeer(opts.Peer),
		replica.WithObserver(observers),
		replica.WithLogger(logger),
	)
	loop := replica.NewLoop(state, replica.WithLoopLogger(logger), replica.WithClock(clock))

	runErr := make(chan error, 1)
	go func() { runErr <- loop.Run(ctx) }()

	sub, err := replica.ConnectWire(inbound, loop)
	if err != nil {
		loop.Close()
		<-runErr
		return WrapExitError(ExitCommandError, "failed to subscribe", err)
	}

	logger.Info("peer ready", "publish", outbound.Name(), "subscribe", inbound.Name())
	out.printf("= %q\n", opts.Initial)

	inputDone := make(chan error, 1)
	go func() { inputDone <- readEdits(ctx, cmd.InOrStdin(), loop, out) }()

	var inputErr, loopErr error
	select {
	case inputErr = <-inputDone:
		sub.Unsubscribe()
		loop.Close()
		loopErr = <-runErr
	case loopErr = <-runErr:
		// The replica stopped on its own, e.g. on a malformed peer payload.
		sub.Unsubscribe()
	}

	switch {
	case inputErr != nil && !errors.Is(inputErr, context.Canceled):
		return WrapExitError(ExitFailure, "local edit failed", inputErr)
	case loopErr != nil && !errors.Is(loopErr, context.Canceled):
		return WrapExitError(ExitFailure, "replica failed", loopErr)
	}
	return nil
}

// readEdits submits every input line as the new document until EOF or
// cancellation.
func readEdits(ctx context.Context, r io.Reader, loop *replica.Loop, out *lockedWriter) error {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if _, err := loop.LocalUpdate(ctx, scanner.Text()); err != nil {
			return err
		}
		snap, err := loop.Snapshot(ctx)
		if err != nil {
			return err
		}
		out.printf("> %q\n", snap.Text)
	}
	return scanner.Err()
}
