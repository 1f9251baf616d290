package transport

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tandem/internal/ir"
)

func testMessage(my int) ir.Message {
	return ir.Message{
		Operation:          ir.Insert{Index: my, Text: "<&>"},
		MyMessagesCount:    my,
		OtherMessagesCount: 0,
		CreatorID:          1,
	}
}

func TestMemory_DeliversInOrder(t *testing.T) {
	m := NewMemory()
	var first, second []int
	_, err := m.Subscribe(func(msg ir.Message) { first = append(first, msg.MyMessagesCount) })
	require.NoError(t, err)
	_, err = m.Subscribe(func(msg ir.Message) { second = append(second, msg.MyMessagesCount) })
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		require.NoError(t, m.Publish(context.Background(), testMessage(i)))
	}

	assert.Equal(t, []int{0, 1, 2}, first)
	assert.Equal(t, []int{0, 1, 2}, second)
	assert.Equal(t, 3, m.Published())
}

func TestMemory_Unsubscribe(t *testing.T) {
	m := NewMemory()
	count := 0
	sub, err := m.Subscribe(func(ir.Message) { count++ })
	require.NoError(t, err)

	require.NoError(t, m.Publish(context.Background(), testMessage(0)))
	sub.Unsubscribe()
	sub.Unsubscribe()
	require.NoError(t, m.Publish(context.Background(), testMessage(1)))

	assert.Equal(t, 1, count)
}

func TestMemory_WireEncoding(t *testing.T) {
	m := NewMemory(WithWireEncoding())
	var got ir.Message
	_, err := m.Subscribe(func(msg ir.Message) { got = msg })
	require.NoError(t, err)

	want := testMessage(4)
	require.NoError(t, m.Publish(context.Background(), want))
	assert.Equal(t, want, got)
}

func TestMemory_WireEncodingRejectsNilOperation(t *testing.T) {
	m := NewMemory(WithWireEncoding())
	err := m.Publish(context.Background(), ir.Message{CreatorID: 1})
	require.Error(t, err)
	assert.Equal(t, 0, m.Published())
}

func TestMemory_CancelledContext(t *testing.T) {
	m := NewMemory()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, m.Publish(ctx, testMessage(0)), context.Canceled)
}

func TestMemory_NilHandler(t *testing.T) {
	_, err := NewMemory().Subscribe(nil)
	assert.Error(t, err)
}
