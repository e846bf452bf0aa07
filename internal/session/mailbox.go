package session

import "sync"

// mailbox is an unbounded FIFO of actor tasks. post never blocks; after close
// it rejects new tasks.
type mailbox struct {
	mu     sync.Mutex
	tasks  []func()
	signal chan struct{}
	closed bool
}

func newMailbox() *mailbox {
	return &mailbox{signal: make(chan struct{}, 1)}
}

// post enqueues fn and returns the backlog length, or false if the mailbox is closed.
func (m *mailbox) post(fn func()) (int, bool) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return 0, false
	}
	m.tasks = append(m.tasks, fn)
	depth := len(m.tasks)
	m.mu.Unlock()

	select {
	case m.signal <- struct{}{}:
	default:
	}
	return depth, true
}

// take removes and returns every queued task.
func (m *mailbox) take() []func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	tasks := m.tasks
	m.tasks = nil
	return tasks
}

func (m *mailbox) close() {
	m.mu.Lock()
	m.closed = true
	m.tasks = nil
	m.mu.Unlock()
}
