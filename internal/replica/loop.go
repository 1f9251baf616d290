package replica

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/roach88/tandem/internal/ir"
)

// ErrLoopClosed is returned for commands submitted to a stopped Loop.
var ErrLoopClosed = errors.New("replica: loop closed")

// Loop serializes every operation on a State through a single goroutine.
//
// Thread-safety model:
//   - Receive, ReceiveWire, LocalUpdate, Process, Snapshot, Close: safe from
//     any goroutine
//   - Run: must be called from exactly one goroutine
//
// Any replica error is fatal: Run returns it and pending callers receive it.
type Loop struct {
	state       *State
	queue       *commandQueue
	clock       *Clock
	logger      *slog.Logger
	autoProcess bool
	done        chan struct{}
}

// LoopOption configures a Loop.
type LoopOption func(*Loop)

// WithLoopLogger sets the logger for loop diagnostics.
func WithLoopLogger(logger *slog.Logger) LoopOption {
	return func(l *Loop) { l.logger = logger }
}

// WithClock sets the clock used to stamp commands. Pass the clock given to a
// trace recorder to number commands and recorded events from one sequence.
func WithClock(c *Clock) LoopOption {
	return func(l *Loop) { l.clock = c }
}

// WithManualProcessing stops Receive from scheduling a ProcessReceived after
// every delivery; the caller batches with Process instead.
func WithManualProcessing() LoopOption {
	return func(l *Loop) { l.autoProcess = false }
}

// NewLoop wraps s. The caller must not touch s directly afterwards.
func NewLoop(s *State, opts ...LoopOption) *Loop {
	l := &Loop{
		state:       s,
		queue:       newCommandQueue(),
		clock:       NewClock(),
		logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		autoProcess: true,
		done:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Run executes commands until ctx is cancelled, Close is called and the
// queue drains, or a command fails.
func (l *Loop) Run(ctx context.Context) (err error) {
	l.logger.Info("replica loop started", "actor", l.state.ActorID(), "label", l.state.Label())
	defer func() {
		l.queue.Close()
		l.failPending(err)
		close(l.done)
		l.logger.Info("replica loop stopped", "actor", l.state.ActorID(), "seq", l.clock.Current(), "error", err)
	}()

	for {
		if c, ok := l.queue.TryDequeue(); ok {
			if err := l.execute(ctx, c); err != nil {
				return err
			}
			continue
		}
		if l.queue.isClosed() {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.queue.Wait():
		}
	}
}

func (l *Loop) execute(ctx context.Context, c command) error {
	seq := l.clock.Next()
	s := l.state

	switch c.typ {
	case commandLocalUpdate:
		l.logger.Debug("local update", "seq", seq, "actor", s.ActorID())
		ops, err := s.LocalUpdate(ctx, c.text)
		c.reply <- commandResult{ops: ops, err: err}
		return err

	case commandReceive:
		l.logger.Debug("receive", "seq", seq, "actor", s.ActorID(), "message", c.message.String())
		s.Receive(c.message)
		return nil

	case commandReceiveWire:
		l.logger.Debug("receive wire", "seq", seq, "actor", s.ActorID(), "bytes", len(c.payload))
		return s.ReceiveWire(c.payload)

	case commandProcess:
		l.logger.Debug("process received", "seq", seq, "actor", s.ActorID())
		err := s.ProcessReceived()
		if c.reply != nil {
			c.reply <- commandResult{err: err}
		}
		return err

	case commandInspect:
		c.inspect(s)
		c.reply <- commandResult{}
		return nil
	}
	return nil
}

func (l *Loop) failPending(cause error) {
	if cause == nil {
		cause = ErrLoopClosed
	}
	for _, c := range l.queue.drain() {
		if c.reply != nil {
			c.reply <- commandResult{err: cause}
		}
	}
}

// Receive schedules delivery of a peer message. Messages arriving after the
// loop stopped are dropped and logged.
func (l *Loop) Receive(msg ir.Message) {
	if !l.deliver(command{typ: commandReceive, message: msg}) {
		l.logger.Warn("dropping message for stopped loop", "actor", l.state.ActorID(), "message", msg.String())
	}
}

// ReceiveWire schedules delivery of an undecoded peer payload. A payload
// that fails to decode stops the loop with a MalformedMessage error.
func (l *Loop) ReceiveWire(data []byte) {
	payload := append([]byte(nil), data...)
	if !l.deliver(command{typ: commandReceiveWire, payload: payload}) {
		l.logger.Warn("dropping payload for stopped loop", "actor", l.state.ActorID(), "bytes", len(payload))
	}
}

func (l *Loop) deliver(c command) bool {
	if !l.queue.Enqueue(c) {
		return false
	}
	if l.autoProcess {
		l.queue.Enqueue(command{typ: commandProcess})
	}
	return true
}

// LocalUpdate runs State.LocalUpdate on the loop goroutine.
func (l *Loop) LocalUpdate(ctx context.Context, newText string) ([]ir.Instruction, error) {
	res, err := l.submit(ctx, command{typ: commandLocalUpdate, text: newText})
	if err != nil {
		return nil, err
	}
	return res.ops, res.err
}

// Process runs State.ProcessReceived on the loop goroutine.
func (l *Loop) Process(ctx context.Context) error {
	res, err := l.submit(ctx, command{typ: commandProcess})
	if err != nil {
		return err
	}
	return res.err
}

// Snapshot returns State.Snapshot taken on the loop goroutine, after every
// command enqueued before it.
func (l *Loop) Snapshot(ctx context.Context) (Snapshot, error) {
	var snap Snapshot
	res, err := l.submit(ctx, command{typ: commandInspect, inspect: func(s *State) { snap = s.Snapshot() }})
	if err != nil {
		return Snapshot{}, err
	}
	return snap, res.err
}

// Close stops accepting commands. Run finishes the queued ones and returns.
func (l *Loop) Close() {
	l.queue.Close()
}

// Done is closed when Run has returned.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

func (l *Loop) submit(ctx context.Context, c command) (commandResult, error) {
	c.reply = make(chan commandResult, 1)
	if !l.queue.Enqueue(c) {
		return commandResult{}, ErrLoopClosed
	}
	select {
	case res := <-c.reply:
		return res, nil
	case <-ctx.Done():
		return commandResult{}, ctx.Err()
	}
}
