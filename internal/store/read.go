package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/roach88/tandem/internal/ir"
)

// ReadSession retrieves a session by id.
// Returns sql.ErrNoRows if not found.
func (s *Store) ReadSession(ctx context.Context, id string) (Session, error) {
	var sess Session
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, initial_text, engine_version, created_seq
		FROM sessions
		WHERE id = ?
	`, id).Scan(&sess.ID, &sess.Name, &sess.InitialText, &sess.EngineVersion, &sess.CreatedSeq)
	if err != nil {
		return Session{}, err
	}
	return sess, nil
}

// ListSessions returns every session ordered by id.
//
// Returns an empty slice (not nil) if the store holds no sessions.
func (s *Store) ListSessions(ctx context.Context) ([]Session, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, initial_text, engine_version, created_seq
		FROM sessions
		ORDER BY id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	sessions := []Session{}
	for rows.Next() {
		var sess Session
		if err := rows.Scan(&sess.ID, &sess.Name, &sess.InitialText, &sess.EngineVersion, &sess.CreatedSeq); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return sessions, nil
}

const eventColumns = `session_id, seq, actor_id, label, kind, message_id, message, ops, rewritten, acked, text, error`

// ReadEvents returns a session's events ordered by seq.
//
// Returns an empty slice (not nil) if the session has no events.
func (s *Store) ReadEvents(ctx context.Context, sessionID string) ([]Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+eventColumns+`
		FROM events
		WHERE session_id = ?
		ORDER BY seq ASC
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	return scanEvents(rows)
}

// ReadActorEvents returns the events one replica emitted, ordered by seq.
func (s *Store) ReadActorEvents(ctx context.Context, sessionID string, actorID int) ([]Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+eventColumns+`
		FROM events
		WHERE session_id = ? AND actor_id = ?
		ORDER BY seq ASC
	`, sessionID, actorID)
	if err != nil {
		return nil, fmt.Errorf("query actor events: %w", err)
	}
	return scanEvents(rows)
}

// LastSeq returns the highest seq recorded for a session, or 0.
func (s *Store) LastSeq(ctx context.Context, sessionID string) (int64, error) {
	var seq sql.NullInt64
	err := s.db.QueryRowContext(ctx, `SELECT MAX(seq) FROM events WHERE session_id = ?`, sessionID).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("query last seq: %w", err)
	}
	return seq.Int64, nil
}

func scanEvents(rows *sql.Rows) ([]Event, error) {
	defer rows.Close()

	events := []Event{}
	for rows.Next() {
		var (
			ev                      Event
			message, ops, rewritten string
		)
		if err := rows.Scan(
			&ev.SessionID, &ev.Seq, &ev.ActorID, &ev.Label, &ev.Kind,
			&ev.MessageID, &message, &ops, &rewritten, &ev.Acked, &ev.Text, &ev.Error,
		); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}

		if message != "" {
			msg, err := ir.DecodeMessage([]byte(message))
			if err != nil {
				return nil, fmt.Errorf("event %d: %w", ev.Seq, err)
			}
			ev.Message = &msg
		}
		if err := json.Unmarshal([]byte(ops), &ev.Ops); err != nil {
			return nil, fmt.Errorf("event %d: unmarshal ops: %w", ev.Seq, err)
		}
		if err := json.Unmarshal([]byte(rewritten), &ev.Rewritten); err != nil {
			return nil, fmt.Errorf("event %d: unmarshal rewritten: %w", ev.Seq, err)
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}
