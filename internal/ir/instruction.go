package ir

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Buffer is the mutable text an Instruction applies itself to.
// Indices count runes.
type Buffer interface {
	Insert(index int, text string) error
	Delete(index, count int) error
}

// Kind names an instruction variant on the wire.
type Kind string

const (
	KindInsert Kind = "insert"
	KindDelete Kind = "delete"
	KindNoOp   Kind = "noop"
)

// Instruction is a single edit to a flat text buffer.
//
// The set of variants is closed: Insert, Delete and NoOp. Code that switches
// over instructions treats any other value as a programming defect.
type Instruction interface {
	// Kind returns the wire tag of the variant.
	Kind() Kind

	// ApplyTo mutates buf according to the instruction.
	ApplyTo(buf Buffer) error

	// String renders the compact form used in traces.
	String() string

	instruction()
}

// Insert inserts Text at Index.
type Insert struct {
	Index int
	Text  string
}

// Delete removes Length runes starting at Index.
type Delete struct {
	Index  int
	Length int
}

// NoOp is the identity edit. Transforms produce it when one side has been
// fully absorbed by the other; it is never authored directly.
type NoOp struct{}

func (Insert) instruction() {}
func (Delete) instruction() {}
func (NoOp) instruction()   {}

func (Insert) Kind() Kind { return KindInsert }
func (Delete) Kind() Kind { return KindDelete }
func (NoOp) Kind() Kind   { return KindNoOp }

// Len returns the number of runes the insert adds.
func (op Insert) Len() int {
	return utf8.RuneCountInString(op.Text)
}

// End returns the index one past the last deleted rune.
func (op Delete) End() int {
	return op.Index + op.Length
}

func (op Insert) ApplyTo(buf Buffer) error {
	if err := buf.Insert(op.Index, op.Text); err != nil {
		return fmt.Errorf("apply %s: %w", op, err)
	}
	return nil
}

func (op Delete) ApplyTo(buf Buffer) error {
	if err := buf.Delete(op.Index, op.Length); err != nil {
		return fmt.Errorf("apply %s: %w", op, err)
	}
	return nil
}

func (NoOp) ApplyTo(Buffer) error { return nil }

func (op Insert) String() string { return fmt.Sprintf("i,%d,%s", op.Index, op.Text) }
func (op Delete) String() string { return fmt.Sprintf("d,%d,%d", op.Index, op.Length) }
func (NoOp) String() string      { return "n" }

// Ops is an ordered sequence of instructions applied left to right. Each
// element is expressed against the buffer produced by its predecessors.
type Ops []Instruction

// ApplyTo applies every instruction in order, stopping at the first error.
func (ops Ops) ApplyTo(buf Buffer) error {
	for i, op := range ops {
		if err := op.ApplyTo(buf); err != nil {
			return fmt.Errorf("ops[%d]: %w", i, err)
		}
	}
	return nil
}

// Clone returns a copy that shares no backing array with ops.
func (ops Ops) Clone() Ops {
	if ops == nil {
		return nil
	}
	out := make(Ops, len(ops))
	copy(out, ops)
	return out
}

// IsNoOp reports whether applying ops leaves every buffer unchanged.
func (ops Ops) IsNoOp() bool {
	for _, op := range ops {
		if _, ok := op.(NoOp); !ok {
			return false
		}
	}
	return true
}

func (ops Ops) String() string {
	return "[" + strings.Join(ops.Strings(), " ") + "]"
}

// Strings returns the compact form of every instruction.
func (ops Ops) Strings() []string {
	out := make([]string, len(ops))
	for i, op := range ops {
		out[i] = op.String()
	}
	return out
}

// ParseInstruction parses the compact form produced by String. Insert text
// is everything after the second comma and may itself contain commas.
func ParseInstruction(s string) (Instruction, error) {
	if s == "n" {
		return NoOp{}, nil
	}
	parts := strings.SplitN(s, ",", 3)
	if len(parts) != 3 {
		return nil, fmt.Errorf("parse instruction %q: want 3 fields", s)
	}
	index, err := strconv.Atoi(parts[1])
	if err != nil || index < 0 {
		return nil, fmt.Errorf("parse instruction %q: invalid index", s)
	}
	switch parts[0] {
	case "i":
		return Insert{Index: index, Text: parts[2]}, nil
	case "d":
		length, err := strconv.Atoi(parts[2])
		if err != nil || length < 0 {
			return nil, fmt.Errorf("parse instruction %q: invalid length", s)
		}
		return Delete{Index: index, Length: length}, nil
	default:
		return nil, fmt.Errorf("parse instruction %q: unknown kind %q", s, parts[0])
	}
}

// ParseOps parses a list of compact instructions.
func ParseOps(items []string) (Ops, error) {
	ops := make(Ops, len(items))
	for i, s := range items {
		op, err := ParseInstruction(s)
		if err != nil {
			return nil, err
		}
		ops[i] = op
	}
	return ops, nil
}
