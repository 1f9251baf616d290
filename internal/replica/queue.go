package replica

import (
	"sync"

	"github.com/roach88/tandem/internal/ir"
)

// commandType distinguishes loop commands.
type commandType int

const (
	commandLocalUpdate commandType = iota + 1
	commandReceive
	commandReceiveWire
	commandProcess
	commandInspect
)

// command is one unit of work for the Loop. Commands that report back carry
// a buffered reply channel.
type command struct {
	typ     commandType
	text    string
	message ir.Message
	payload []byte
	inspect func(*State)
	reply   chan commandResult
}

type commandResult struct {
	ops []ir.Instruction
	err error
}

// commandQueue is an unbounded, thread-safe FIFO of commands.
//
// The queue is unbounded so transports never block on delivery. A buffered
// signal channel of size 1 lets the Loop wait with select and still observe
// context cancellation.
type commandQueue struct {
	mu       sync.Mutex
	commands []command
	closed   bool
	signal   chan struct{}
}

func newCommandQueue() *commandQueue {
	return &commandQueue{
		commands: make([]command, 0, 16),
		signal:   make(chan struct{}, 1),
	}
}

// Enqueue adds a command to the back of the queue.
// Returns false if the queue is closed.
func (q *commandQueue) Enqueue(c command) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}
	q.commands = append(q.commands, c)

	select {
	case q.signal <- struct{}{}:
	default:
	}
	return true
}

// TryDequeue removes the front command without blocking.
func (q *commandQueue) TryDequeue() (command, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.commands) == 0 {
		return command{}, false
	}
	c := q.commands[0]
	// Clear the slot so the backing array does not pin the message.
	q.commands[0] = command{}
	if len(q.commands) == 1 {
		q.commands = q.commands[:0]
	} else {
		q.commands = q.commands[1:]
	}
	return c, true
}

// Wait returns a channel that signals when commands may be available. It is
// closed by Close.
func (q *commandQueue) Wait() <-chan struct{} {
	return q.signal
}

// Len returns the current queue length.
func (q *commandQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.commands)
}

// Close stops further enqueues and wakes any waiter.
func (q *commandQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	close(q.signal)
}

// drain removes every pending command. Used on shutdown to fail waiters.
func (q *commandQueue) drain() []command {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.commands
	q.commands = nil
	return out
}

func (q *commandQueue) isClosed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}
