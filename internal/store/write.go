package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/roach88/tandem/internal/ir"
)

// WriteSession inserts a session record.
// Uses ON CONFLICT(id) DO NOTHING for idempotency: rewriting the same
// session is silently ignored.
func (s *Store) WriteSession(ctx context.Context, sess Session) error {
	if sess.EngineVersion == "" {
		sess.EngineVersion = ir.EngineVersion
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, name, initial_text, engine_version, created_seq)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, sess.ID, sess.Name, sess.InitialText, sess.EngineVersion, sess.CreatedSeq)
	if err != nil {
		return fmt.Errorf("write session: %w", err)
	}
	return nil
}

// WriteEvent appends an event to its session.
// Uses ON CONFLICT DO NOTHING for idempotency: an event with an existing
// (session_id, seq) is silently ignored.
//
// The session must exist (foreign key constraint).
func (s *Store) WriteEvent(ctx context.Context, ev Event) error {
	var message string
	if ev.Message != nil {
		data, err := ir.EncodeMessage(*ev.Message)
		if err != nil {
			return fmt.Errorf("write event: %w", err)
		}
		message = string(data)
	}

	ops, err := marshalOps(ev.Ops)
	if err != nil {
		return fmt.Errorf("write event: %w", err)
	}
	rewritten, err := marshalOps(ev.Rewritten)
	if err != nil {
		return fmt.Errorf("write event: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO events
		(session_id, seq, actor_id, label, kind, message_id, message, ops, rewritten, acked, text, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING
	`,
		ev.SessionID,
		ev.Seq,
		ev.ActorID,
		ev.Label,
		ev.Kind,
		ev.MessageID,
		message,
		ops,
		rewritten,
		ev.Acked,
		ev.Text,
		ev.Error,
	)
	if err != nil {
		return fmt.Errorf("write event: %w", err)
	}
	return nil
}

// marshalOps stores compact instructions as a JSON array. Canonical JSON is
// not used here since NFC normalization would rewrite inserted text.
func marshalOps(ops []string) (string, error) {
	if ops == nil {
		ops = []string{}
	}
	data, err := json.Marshal(ops)
	if err != nil {
		return "", fmt.Errorf("marshal ops: %w", err)
	}
	return string(data), nil
}
