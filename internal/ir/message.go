package ir

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Message carries one locally authored instruction from a replica to its
// peer.
//
// MyMessagesCount is the sender's own 0-based sequence number for this
// message. OtherMessagesCount is how many of the peer's messages the sender
// had incorporated when it produced the message; it doubles as an
// acknowledgment cursor. CreatorID identifies the sender and only breaks
// symmetric ties.
type Message struct {
	Operation          Instruction
	MyMessagesCount    int
	OtherMessagesCount int
	CreatorID          int
}

// Clone returns a structural copy of the message. Instruction variants are
// plain values, so the copy shares nothing mutable with m.
func (m Message) Clone() Message {
	return m
}

func (m Message) String() string {
	op := "<nil>"
	if m.Operation != nil {
		op = m.Operation.String()
	}
	return fmt.Sprintf("msg{creator=%d my=%d other=%d op=%s}",
		m.CreatorID, m.MyMessagesCount, m.OtherMessagesCount, op)
}

// MalformedMessageError reports a wire payload that does not decode to a
// known instruction kind or is missing required fields.
type MalformedMessageError struct {
	Reason string
	Err    error
}

func (e *MalformedMessageError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed message: %s: %v", e.Reason, e.Err)
	}
	return "malformed message: " + e.Reason
}

func (e *MalformedMessageError) Unwrap() error {
	return e.Err
}

// IsMalformed returns true if err is or wraps a MalformedMessageError.
func IsMalformed(err error) bool {
	var me *MalformedMessageError
	return errors.As(err, &me)
}

func malformed(format string, args ...any) *MalformedMessageError {
	return &MalformedMessageError{Reason: fmt.Sprintf(format, args...)}
}

// wireOperation mirrors the JSON operation object. Pointers distinguish an
// absent field from a zero value.
type wireOperation struct {
	Kind   Kind    `json:"kind"`
	Index  *int    `json:"index,omitempty"`
	Length *int    `json:"length,omitempty"`
	Text   *string `json:"text,omitempty"`
}

type wireMessage struct {
	Operation          *wireOperation `json:"operation"`
	MyMessagesCount    *int           `json:"myMessagesCount"`
	OtherMessagesCount *int           `json:"otherMessagesCount"`
	CreatorID          *int           `json:"creatorId"`
}

// EncodeMessage serializes m to its wire JSON shape:
//
//	{"operation":{"kind":"insert","index":1,"text":"b"},
//	 "myMessagesCount":0,"otherMessagesCount":0,"creatorId":123}
func EncodeMessage(m Message) ([]byte, error) {
	op, err := encodeOperation(m.Operation)
	if err != nil {
		return nil, err
	}
	my, other, creator := m.MyMessagesCount, m.OtherMessagesCount, m.CreatorID
	wire := wireMessage{
		Operation:          op,
		MyMessagesCount:    &my,
		OtherMessagesCount: &other,
		CreatorID:          &creator,
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(wire); err != nil {
		return nil, fmt.Errorf("encode message: %w", err)
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

func encodeOperation(op Instruction) (*wireOperation, error) {
	switch v := op.(type) {
	case Insert:
		index, text := v.Index, v.Text
		return &wireOperation{Kind: KindInsert, Index: &index, Text: &text}, nil
	case Delete:
		index, length := v.Index, v.Length
		return &wireOperation{Kind: KindDelete, Index: &index, Length: &length}, nil
	case NoOp:
		return &wireOperation{Kind: KindNoOp}, nil
	default:
		return nil, fmt.Errorf("encode message: unsupported instruction %T", op)
	}
}

// DecodeMessage parses the wire JSON shape produced by EncodeMessage.
// Any structural problem yields a *MalformedMessageError.
func DecodeMessage(data []byte) (Message, error) {
	var wire wireMessage
	if err := json.Unmarshal(data, &wire); err != nil {
		return Message{}, &MalformedMessageError{Reason: "invalid JSON", Err: err}
	}

	if wire.Operation == nil {
		return Message{}, malformed("operation is required")
	}
	if wire.MyMessagesCount == nil || *wire.MyMessagesCount < 0 {
		return Message{}, malformed("myMessagesCount must be a non-negative integer")
	}
	if wire.OtherMessagesCount == nil || *wire.OtherMessagesCount < 0 {
		return Message{}, malformed("otherMessagesCount must be a non-negative integer")
	}
	if wire.CreatorID == nil {
		return Message{}, malformed("creatorId is required")
	}

	op, err := decodeOperation(wire.Operation)
	if err != nil {
		return Message{}, err
	}

	return Message{
		Operation:          op,
		MyMessagesCount:    *wire.MyMessagesCount,
		OtherMessagesCount: *wire.OtherMessagesCount,
		CreatorID:          *wire.CreatorID,
	}, nil
}

func decodeOperation(w *wireOperation) (Instruction, error) {
	switch w.Kind {
	case KindInsert:
		if w.Index == nil || *w.Index < 0 {
			return nil, malformed("insert: index must be a non-negative integer")
		}
		if w.Text == nil {
			return nil, malformed("insert: text is required")
		}
		return Insert{Index: *w.Index, Text: *w.Text}, nil
	case KindDelete:
		if w.Index == nil || *w.Index < 0 {
			return nil, malformed("delete: index must be a non-negative integer")
		}
		if w.Length == nil || *w.Length < 0 {
			return nil, malformed("delete: length must be a non-negative integer")
		}
		return Delete{Index: *w.Index, Length: *w.Length}, nil
	case KindNoOp:
		return NoOp{}, nil
	case "":
		return nil, malformed("operation kind is required")
	default:
		return nil, malformed("unknown operation kind %q", w.Kind)
	}
}

// MarshalJSON encodes the message in its wire shape.
func (m Message) MarshalJSON() ([]byte, error) {
	return EncodeMessage(m)
}

// UnmarshalJSON decodes the wire shape into m.
func (m *Message) UnmarshalJSON(data []byte) error {
	decoded, err := DecodeMessage(data)
	if err != nil {
		return err
	}
	*m = decoded
	return nil
}
