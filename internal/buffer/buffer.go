// Package buffer implements the flat text storage a replica edits.
//
// Positions and counts are rune offsets. Out-of-range addressing is a caller
// contract violation; implementations report it as ErrOutOfRange and leave
// the content unchanged.
package buffer

import (
	"errors"
	"fmt"
)

// ErrOutOfRange is returned when an insert or delete addresses runes outside
// the current content.
var ErrOutOfRange = errors.New("buffer: position out of range")

// Buffer is mutable flat text with position-addressed insert and delete.
// It satisfies ir.Buffer.
type Buffer interface {
	Insert(index int, text string) error
	Delete(index, count int) error
	Text() string
	Len() int
}

// Factory builds a buffer holding initial text.
type Factory func(initial string) Buffer

// NewRunes is the default Factory.
func NewRunes(initial string) Buffer {
	return &Runes{runes: []rune(initial)}
}

// NewPieceTableBuffer is a Factory for piece-table backed buffers.
func NewPieceTableBuffer(initial string) Buffer {
	return NewPieceTable(initial)
}

func checkInsert(index, length int) error {
	if index < 0 || index > length {
		return fmt.Errorf("%w: insert at %d, length %d", ErrOutOfRange, index, length)
	}
	return nil
}

func checkDelete(index, count, length int) error {
	if index < 0 || count < 0 || index+count > length {
		return fmt.Errorf("%w: delete %d at %d, length %d", ErrOutOfRange, count, index, length)
	}
	return nil
}
