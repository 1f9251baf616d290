package store

import "github.com/roach88/tandem/internal/ir"

// Session is one recorded editing session.
type Session struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	InitialText   string `json:"initial_text"`
	EngineVersion string `json:"engine_version"`
	CreatedSeq    int64  `json:"created_seq"`
}

// Event is one recorded replica transition.
type Event struct {
	SessionID string
	Seq       int64
	ActorID   int
	Label     string
	Kind      string

	// MessageID is the content hash of Message, empty when the event has no
	// message.
	MessageID string
	Message   *ir.Message

	// Ops and Rewritten hold instructions in compact form ("i,1,b").
	Ops       []string
	Rewritten []string

	Acked int
	Text  string
	Error string
}
