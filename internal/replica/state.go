package replica

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/roach88/tandem/internal/buffer"
	"github.com/roach88/tandem/internal/diff"
	"github.com/roach88/tandem/internal/ir"
	"github.com/roach88/tandem/internal/xform"
)

// Deriver turns an old/new snapshot pair into instructions whose sequential
// application rewrites oldText into newText.
type Deriver func(oldText, newText string) []ir.Instruction

// Pending is an outgoing message the peer has not acknowledged yet. Ops is
// the message's instruction rewritten against every peer edit processed
// since it was sent.
type Pending struct {
	Message ir.Message
	Ops     ir.Ops
}

// MarshalJSON renders the message in wire form and Ops in compact form.
func (p Pending) MarshalJSON() ([]byte, error) {
	ops := make([]string, len(p.Ops))
	for i, op := range p.Ops {
		ops[i] = op.String()
	}
	return json.Marshal(struct {
		Message ir.Message `json:"message"`
		Ops     []string   `json:"ops"`
	}{p.Message, ops})
}

// State is one replica of a two-party editing session.
//
// State is not safe for concurrent use; see Loop.
type State struct {
	actorID  int
	label    string
	buf      buffer.Buffer
	channel  Channel
	derive   Deriver
	observer Observer

	outgoing []Pending
	incoming []ir.Message

	myMessagesCount    int
	otherMessagesCount int

	peerID  int
	hasPeer bool
}

type config struct {
	initial  string
	factory  buffer.Factory
	derive   Deriver
	observer Observer
	peerID   *int
}

// Option configures a State.
type Option func(*config)

// WithText seeds the buffer. Both replicas of a session must start from the
// same text.
func WithText(text string) Option {
	return func(c *config) { c.initial = text }
}

// WithBuffer selects the buffer implementation. Default: buffer.NewRunes.
func WithBuffer(factory buffer.Factory) Option {
	return func(c *config) { c.factory = factory }
}

// WithDeriver replaces the edit deriver. Default: diff.Derive.
func WithDeriver(d Deriver) Option {
	return func(c *config) { c.derive = d }
}

// WithObserver adds an observer. May be given more than once.
func WithObserver(o Observer) Option {
	return func(c *config) {
		if c.observer == nil {
			c.observer = o
			return
		}
		if obs, ok := c.observer.(Observers); ok {
			c.observer = append(obs, o)
			return
		}
		c.observer = Observers{c.observer, o}
	}
}

// WithLogger reports transitions to logger through a LogObserver.
func WithLogger(logger *slog.Logger) Option {
	return WithObserver(LogObserver{Logger: logger})
}

// WithPeer pins the peer's actor id up front. Without it the peer is the
// creator of the first received message.
func WithPeer(peerID int) Option {
	return func(c *config) { c.peerID = &peerID }
}

// New creates a replica. ch may be nil for a replica that never publishes,
// such as a single local editor.
func New(actorID int, label string, ch Channel, opts ...Option) *State {
	cfg := config{
		factory: buffer.NewRunes,
		derive:  diff.Derive,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.observer == nil {
		cfg.observer = nopObserver{}
	}

	s := &State{
		actorID:  actorID,
		label:    label,
		buf:      cfg.factory(cfg.initial),
		channel:  ch,
		derive:   cfg.derive,
		observer: cfg.observer,
		outgoing: []Pending{},
		incoming: []ir.Message{},
	}
	if cfg.peerID != nil {
		s.peerID, s.hasPeer = *cfg.peerID, true
	}
	return s
}

// ActorID returns the replica's actor id.
func (s *State) ActorID() int { return s.actorID }

// Label returns the replica's human-readable label.
func (s *State) Label() string { return s.label }

// Text returns the current buffer content.
func (s *State) Text() string { return s.buf.Text() }

// LocalUpdate rewrites the document to newText. The derived instructions are
// applied and published one by one and returned for inspection.
func (s *State) LocalUpdate(ctx context.Context, newText string) ([]ir.Instruction, error) {
	ops := s.derive(s.buf.Text(), newText)
	if err := s.ApplyLocal(ctx, ops); err != nil {
		return nil, err
	}
	return ops, nil
}

// ApplyLocal applies locally authored instructions in order. Each is
// published as its own message and kept as outgoing until acknowledged.
func (s *State) ApplyLocal(ctx context.Context, ops []ir.Instruction) error {
	for _, op := range ops {
		if err := op.ApplyTo(s.buf); err != nil {
			return s.fail(ir.Message{}, wrapError(ErrCodeApplyFailed, s.actorID, "apply local instruction", err))
		}

		msg := ir.Message{
			Operation:          op,
			MyMessagesCount:    s.myMessagesCount,
			OtherMessagesCount: s.otherMessagesCount,
			CreatorID:          s.actorID,
		}
		if s.channel != nil {
			if err := s.channel.Publish(ctx, msg); err != nil {
				return s.fail(msg, wrapError(ErrCodePublishFailed, s.actorID,
					fmt.Sprintf("publish message %d", msg.MyMessagesCount), err))
			}
		}
		s.outgoing = append(s.outgoing, Pending{Message: msg, Ops: ir.Ops{op}})
		s.myMessagesCount++

		s.observer.Observe(Event{
			Kind: EventLocal, ActorID: s.actorID, Label: s.label,
			Message: msg, Text: s.buf.Text(),
		})
	}
	return nil
}

// Receive buffers a clone of a peer message for the next ProcessReceived.
func (s *State) Receive(msg ir.Message) {
	clone := msg.Clone()
	s.incoming = append(s.incoming, clone)
	s.observer.Observe(Event{Kind: EventReceive, ActorID: s.actorID, Label: s.label, Message: clone})
}

// ReceiveWire decodes a wire payload and buffers it.
func (s *State) ReceiveWire(data []byte) error {
	msg, err := ir.DecodeMessage(data)
	if err != nil {
		return s.fail(ir.Message{}, wrapError(ErrCodeMalformedMessage, s.actorID, "decode peer message", err))
	}
	s.Receive(msg)
	return nil
}

// ProcessReceived reconciles and applies every buffered peer message in
// arrival order. It stops at the first error, leaving the failing message
// at the head of the incoming queue.
func (s *State) ProcessReceived() error {
	for len(s.incoming) > 0 {
		if err := s.process(s.incoming[0]); err != nil {
			return err
		}
		s.incoming[0] = ir.Message{}
		s.incoming = s.incoming[1:]
	}
	s.incoming = []ir.Message{}
	return nil
}

func (s *State) process(msg ir.Message) error {
	if msg.Operation == nil {
		return s.fail(msg, wrapError(ErrCodeMalformedMessage, s.actorID, "peer message has no operation", nil))
	}
	if err := s.checkPeer(msg); err != nil {
		return s.fail(msg, err)
	}
	if msg.OtherMessagesCount > s.myMessagesCount {
		return s.fail(msg, NewAckError(s.actorID, s.myMessagesCount, msg.OtherMessagesCount))
	}
	if msg.MyMessagesCount != s.otherMessagesCount {
		return s.fail(msg, NewCausalityError(s.actorID, s.otherMessagesCount, msg.MyMessagesCount))
	}

	if acked := s.trimAcknowledged(msg.OtherMessagesCount); acked > 0 {
		s.observer.Observe(Event{Kind: EventAck, ActorID: s.actorID, Label: s.label, Message: msg, Acked: acked})
	}

	received := ir.Ops{msg.Operation}
	for i := range s.outgoing {
		out := &s.outgoing[i]
		next, rewritten, err := xform.TransformOps(received, out.Ops, isPrimary(msg.CreatorID, out.Message.CreatorID))
		if err != nil {
			return s.fail(msg, wrapError(ErrCodeUnsupportedTransform, s.actorID,
				fmt.Sprintf("transform against outgoing message %d", out.Message.MyMessagesCount), err))
		}
		next, rewritten = xform.Compact(next), xform.Compact(rewritten)
		s.observer.Observe(Event{
			Kind: EventTransform, ActorID: s.actorID, Label: s.label, Message: msg,
			Ops: next, Outgoing: out.Ops, Rewritten: rewritten,
		})
		received, out.Ops = next, rewritten
	}

	if err := received.ApplyTo(s.buf); err != nil {
		return s.fail(msg, wrapError(ErrCodeApplyFailed, s.actorID, "apply peer instruction", err))
	}
	s.otherMessagesCount++

	s.observer.Observe(Event{
		Kind: EventApply, ActorID: s.actorID, Label: s.label, Message: msg,
		Ops: received, Text: s.buf.Text(),
	})
	return nil
}

// trimAcknowledged drops outgoing entries the peer had already incorporated
// when it produced a message, i.e. those with a sequence number below acked.
func (s *State) trimAcknowledged(acked int) int {
	n := 0
	for n < len(s.outgoing) && s.outgoing[n].Message.MyMessagesCount < acked {
		n++
	}
	if n == 0 {
		return 0
	}
	s.outgoing = append([]Pending{}, s.outgoing[n:]...)
	return n
}

func (s *State) checkPeer(msg ir.Message) error {
	if msg.CreatorID == s.actorID {
		return NewPeerMismatchError(s.actorID, s.peerID, msg.CreatorID)
	}
	if !s.hasPeer {
		s.peerID, s.hasPeer = msg.CreatorID, true
		return nil
	}
	if msg.CreatorID != s.peerID {
		return NewPeerMismatchError(s.actorID, s.peerID, msg.CreatorID)
	}
	return nil
}

func (s *State) fail(msg ir.Message, err error) error {
	s.observer.Observe(Event{Kind: EventFailure, ActorID: s.actorID, Label: s.label, Message: msg, Err: err})
	return err
}

// isPrimary decides the tie-break for a received instruction against an
// outgoing one: the lower creator id wins the left position. The peer
// evaluates the same rule with the arguments swapped.
func isPrimary(receivedCreator, outgoingCreator int) bool {
	return receivedCreator < outgoingCreator
}

// Snapshot is a point-in-time dump of a replica.
type Snapshot struct {
	ActorID            int          `json:"actor_id"`
	Label              string       `json:"label"`
	Text               string       `json:"text"`
	MyMessagesCount    int          `json:"my_messages_count"`
	OtherMessagesCount int          `json:"other_messages_count"`
	Outgoing           []Pending    `json:"outgoing"`
	Incoming           []ir.Message `json:"incoming"`
}

// Snapshot returns a copy of the replica's counters, queues and text.
func (s *State) Snapshot() Snapshot {
	out := make([]Pending, len(s.outgoing))
	for i, p := range s.outgoing {
		out[i] = Pending{Message: p.Message.Clone(), Ops: p.Ops.Clone()}
	}
	in := make([]ir.Message, len(s.incoming))
	for i, m := range s.incoming {
		in[i] = m.Clone()
	}
	return Snapshot{
		ActorID:            s.actorID,
		Label:              s.label,
		Text:               s.buf.Text(),
		MyMessagesCount:    s.myMessagesCount,
		OtherMessagesCount: s.otherMessagesCount,
		Outgoing:           out,
		Incoming:           in,
	}
}
