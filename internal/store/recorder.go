package store

import (
	"context"
	"sync"

	"github.com/roach88/tandem/internal/ir"
	"github.com/roach88/tandem/internal/replica"
)

// Clock assigns event sequence numbers.
type Clock interface {
	Next() int64
}

// Recorder is a replica.Observer that appends every event to a session.
//
// Observe cannot return an error, so the first write failure is retained and
// later events are dropped; check Err once the session is over.
//
// Thread-safety: Recorder is safe for concurrent use, so one Recorder can
// observe both replicas of a session even when they run on separate loops.
type Recorder struct {
	ctx       context.Context
	store     *Store
	sessionID string
	clock     Clock

	mu  sync.Mutex
	err error
}

// NewRecorder records into an existing session. Events are numbered by
// clock; pass replica.NewClockAt(lastSeq) to resume a session.
func NewRecorder(ctx context.Context, st *Store, sessionID string, clock Clock) *Recorder {
	if clock == nil {
		clock = replica.NewClock()
	}
	return &Recorder{ctx: ctx, store: st, sessionID: sessionID, clock: clock}
}

// Observe implements replica.Observer.
func (r *Recorder) Observe(ev replica.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return
	}

	rec := Event{
		SessionID: r.sessionID,
		Seq:       r.clock.Next(),
		ActorID:   ev.ActorID,
		Label:     ev.Label,
		Kind:      string(ev.Kind),
		Ops:       ev.Ops.Strings(),
		Rewritten: ev.Rewritten.Strings(),
		Acked:     ev.Acked,
		Text:      ev.Text,
	}
	if ev.Message.Operation != nil {
		msg := ev.Message.Clone()
		id, err := ir.MessageID(msg)
		if err != nil {
			r.err = err
			return
		}
		rec.Message, rec.MessageID = &msg, id
	}
	if ev.Err != nil {
		rec.Error = ev.Err.Error()
	}

	if err := r.store.WriteEvent(r.ctx, rec); err != nil {
		r.err = err
	}
}

// Err returns the first write failure, if any.
func (r *Recorder) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// SessionID returns the session being recorded.
func (r *Recorder) SessionID() string {
	return r.sessionID
}
