package buffer

// Runes stores text as a single rune slice. Edits are O(n) copies, which is
// fine for editor-sized documents.
type Runes struct {
	runes []rune
}

func (b *Runes) Insert(index int, text string) error {
	if err := checkInsert(index, len(b.runes)); err != nil {
		return err
	}
	ins := []rune(text)
	if len(ins) == 0 {
		return nil
	}
	b.runes = append(b.runes, ins...)
	copy(b.runes[index+len(ins):], b.runes[index:len(b.runes)-len(ins)])
	copy(b.runes[index:], ins)
	return nil
}

func (b *Runes) Delete(index, count int) error {
	if err := checkDelete(index, count, len(b.runes)); err != nil {
		return err
	}
	b.runes = append(b.runes[:index], b.runes[index+count:]...)
	return nil
}

func (b *Runes) Text() string {
	return string(b.runes)
}

func (b *Runes) Len() int {
	return len(b.runes)
}
