package buffer

import "strings"

type source int

const (
	sourceOriginal source = iota
	sourceAdd
)

type piece struct {
	src    source
	offset int
	length int
}

// PieceTable keeps the original text immutable and appends inserted text to
// an add buffer; the document is the concatenation of the pieces. Deletes
// only reshape the piece list.
type PieceTable struct {
	original []rune
	add      []rune
	pieces   []piece
	length   int
}

// NewPieceTable creates a piece table holding initial.
func NewPieceTable(initial string) *PieceTable {
	r := []rune(initial)
	pt := &PieceTable{original: r, length: len(r)}
	if len(r) > 0 {
		pt.pieces = []piece{{src: sourceOriginal, offset: 0, length: len(r)}}
	}
	return pt
}

func (pt *PieceTable) Insert(index int, text string) error {
	if err := checkInsert(index, pt.length); err != nil {
		return err
	}
	ins := []rune(text)
	if len(ins) == 0 {
		return nil
	}
	p := piece{src: sourceAdd, offset: len(pt.add), length: len(ins)}
	pt.add = append(pt.add, ins...)

	at := pt.split(index)
	pt.pieces = append(pt.pieces, piece{})
	copy(pt.pieces[at+1:], pt.pieces[at:])
	pt.pieces[at] = p
	pt.length += len(ins)
	return nil
}

func (pt *PieceTable) Delete(index, count int) error {
	if err := checkDelete(index, count, pt.length); err != nil {
		return err
	}
	if count == 0 {
		return nil
	}
	from := pt.split(index)
	to := pt.split(index + count)
	pt.pieces = append(pt.pieces[:from], pt.pieces[to:]...)
	pt.length -= count
	return nil
}

// split ensures a piece boundary at pos and returns the index of the first
// piece starting at or after pos.
func (pt *PieceTable) split(pos int) int {
	cur := 0
	for i, p := range pt.pieces {
		if pos == cur {
			return i
		}
		if pos < cur+p.length {
			off := pos - cur
			left := piece{src: p.src, offset: p.offset, length: off}
			right := piece{src: p.src, offset: p.offset + off, length: p.length - off}
			pt.pieces = append(pt.pieces, piece{})
			copy(pt.pieces[i+2:], pt.pieces[i+1:])
			pt.pieces[i] = left
			pt.pieces[i+1] = right
			return i + 1
		}
		cur += p.length
	}
	return len(pt.pieces)
}

func (pt *PieceTable) Text() string {
	var sb strings.Builder
	for _, p := range pt.pieces {
		sb.WriteString(string(pt.runesOf(p)))
	}
	return sb.String()
}

func (pt *PieceTable) Len() int {
	return pt.length
}

// Pieces returns the number of pieces, mostly useful to observe
// fragmentation.
func (pt *PieceTable) Pieces() int {
	return len(pt.pieces)
}

func (pt *PieceTable) runesOf(p piece) []rune {
	if p.src == sourceOriginal {
		return pt.original[p.offset : p.offset+p.length]
	}
	return pt.add[p.offset : p.offset+p.length]
}
