package store

import (
	"context"
	"fmt"

	"github.com/roach88/tandem/internal/buffer"
	"github.com/roach88/tandem/internal/ir"
)

// Mismatch is a recorded text that replay could not reproduce.
type Mismatch struct {
	Seq     int64  `json:"seq"`
	ActorID int    `json:"actor_id"`
	Want    string `json:"want"`
	Got     string `json:"got"`
}

// ReplayResult is the outcome of re-applying a session's recorded edits.
type ReplayResult struct {
	SessionID  string
	Texts      map[int]string
	Applied    int
	Mismatches []Mismatch
}

// Converged reports whether every replica ended with the same text.
func (r ReplayResult) Converged() bool {
	var first *string
	for _, text := range r.Texts {
		if first == nil {
			t := text
			first = &t
			continue
		}
		if text != *first {
			return false
		}
	}
	return true
}

// Replay rebuilds every replica's document from a session's recorded local
// and apply events, starting from the session's initial text. Each recorded
// text is compared with the rebuilt one; differences are reported as
// mismatches rather than errors.
//
// Returns an error if the session does not exist or a recorded instruction
// cannot be applied.
func (s *Store) Replay(ctx context.Context, sessionID string) (ReplayResult, error) {
	sess, err := s.ReadSession(ctx, sessionID)
	if err != nil {
		return ReplayResult{}, fmt.Errorf("replay %s: %w", sessionID, err)
	}
	events, err := s.ReadEvents(ctx, sessionID)
	if err != nil {
		return ReplayResult{}, fmt.Errorf("replay %s: %w", sessionID, err)
	}

	result := ReplayResult{
		SessionID:  sessionID,
		Texts:      map[int]string{},
		Mismatches: []Mismatch{},
	}
	buffers := map[int]buffer.Buffer{}
	bufferFor := func(actorID int) buffer.Buffer {
		b, ok := buffers[actorID]
		if !ok {
			b = buffer.NewRunes(sess.InitialText)
			buffers[actorID] = b
		}
		return b
	}

	for _, ev := range events {
		var ops ir.Ops
		switch ev.Kind {
		case "local":
			if ev.Message == nil {
				return result, fmt.Errorf("replay %s: event %d: local event without message", sessionID, ev.Seq)
			}
			ops = ir.Ops{ev.Message.Operation}
		case "apply":
			if ops, err = ir.ParseOps(ev.Ops); err != nil {
				return result, fmt.Errorf("replay %s: event %d: %w", sessionID, ev.Seq, err)
			}
		default:
			continue
		}

		buf := bufferFor(ev.ActorID)
		if err := ops.ApplyTo(buf); err != nil {
			return result, fmt.Errorf("replay %s: event %d: %w", sessionID, ev.Seq, err)
		}
		result.Applied++
		if got := buf.Text(); got != ev.Text {
			result.Mismatches = append(result.Mismatches, Mismatch{
				Seq: ev.Seq, ActorID: ev.ActorID, Want: ev.Text, Got: got,
			})
		}
	}

	for id, b := range buffers {
		result.Texts[id] = b.Text()
	}
	return result, nil
}
