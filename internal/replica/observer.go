package replica

import (
	"context"
	"log/slog"

	"github.com/roach88/tandem/internal/ir"
)

// EventKind names a replica transition.
type EventKind string

const (
	// EventLocal: a local instruction was applied and published.
	EventLocal EventKind = "local"
	// EventReceive: a peer message was buffered.
	EventReceive EventKind = "receive"
	// EventAck: acknowledged outgoing entries were trimmed.
	EventAck EventKind = "ack"
	// EventTransform: a received instruction was transformed against one
	// outgoing entry.
	EventTransform EventKind = "transform"
	// EventApply: a fully transformed peer instruction was applied.
	EventApply EventKind = "apply"
	// EventFailure: an operation failed; Err is set.
	EventFailure EventKind = "failure"
)

// Event describes one replica transition. Fields not relevant to Kind are
// zero.
type Event struct {
	Kind    EventKind
	ActorID int
	Label   string

	// Message is the published message for EventLocal and the peer message
	// being handled for every other kind.
	Message ir.Message

	// Ops is the received instruction after the step: transformed for
	// EventTransform, applied for EventApply.
	Ops ir.Ops

	// Outgoing and Rewritten are the outgoing entry's instructions before and
	// after an EventTransform.
	Outgoing  ir.Ops
	Rewritten ir.Ops

	// Acked is the number of outgoing entries trimmed by an EventAck.
	Acked int

	// Text is the buffer content after EventLocal and EventApply.
	Text string

	Err error
}

// Observer receives replica transitions. Implementations must not call back
// into the State that emitted the event.
type Observer interface {
	Observe(ev Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ev Event)

func (f ObserverFunc) Observe(ev Event) { f(ev) }

// Observers fans an event out to each observer in order.
type Observers []Observer

func (obs Observers) Observe(ev Event) {
	for _, o := range obs {
		o.Observe(ev)
	}
}

type nopObserver struct{}

func (nopObserver) Observe(Event) {}

// LogObserver writes replica transitions to a structured logger. Routine
// transitions log at Debug, failures at Error.
type LogObserver struct {
	Logger *slog.Logger
}

func (o LogObserver) Observe(ev Event) {
	attrs := []slog.Attr{
		slog.String("event", string(ev.Kind)),
		slog.Int("actor", ev.ActorID),
		slog.String("label", ev.Label),
	}
	if ev.Message.Operation != nil {
		attrs = append(attrs,
			slog.Int("creator", ev.Message.CreatorID),
			slog.Int("my", ev.Message.MyMessagesCount),
			slog.Int("other", ev.Message.OtherMessagesCount),
			slog.String("op", ev.Message.Operation.String()),
		)
	}

	switch ev.Kind {
	case EventAck:
		attrs = append(attrs, slog.Int("acked", ev.Acked))
	case EventTransform:
		attrs = append(attrs,
			slog.String("received", ev.Ops.String()),
			slog.String("outgoing", ev.Outgoing.String()),
			slog.String("rewritten", ev.Rewritten.String()),
		)
	case EventApply:
		attrs = append(attrs, slog.String("applied", ev.Ops.String()), slog.Int("len", len([]rune(ev.Text))))
	case EventLocal:
		attrs = append(attrs, slog.Int("len", len([]rune(ev.Text))))
	case EventFailure:
		attrs = append(attrs, slog.String("error", ev.Err.Error()))
		o.Logger.LogAttrs(context.Background(), slog.LevelError, "replica failure", attrs...)
		return
	}
	o.Logger.LogAttrs(context.Background(), slog.LevelDebug, "replica event", attrs...)
}
