package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/roach88/tandem/internal/ir"
)

// createTestStore creates a new store in a temp directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestSession writes a session with the given id and initial text.
func createTestSession(t *testing.T, s *Store, id, initial string) Session {
	t.Helper()
	sess := Session{ID: id, Name: "test", InitialText: initial}
	if err := s.WriteSession(context.Background(), sess); err != nil {
		t.Fatalf("WriteSession() failed: %v", err)
	}
	sess.EngineVersion = ir.EngineVersion
	return sess
}

// createTestEvent builds a local event carrying op.
func createTestEvent(sessionID string, seq int64, actorID int, op ir.Instruction, text string) Event {
	msg := ir.Message{Operation: op, MyMessagesCount: int(seq) - 1, CreatorID: actorID}
	return Event{
		SessionID: sessionID,
		Seq:       seq,
		ActorID:   actorID,
		Label:     "A",
		Kind:      "local",
		MessageID: ir.MustMessageID(msg),
		Message:   &msg,
		Ops:       []string{},
		Rewritten: []string{},
		Text:      text,
	}
}
