package dispatch

// defaultQueueCapacity bounds the action backlog. A full queue drops
// new actions rather than blocking detection producers.
const defaultQueueCapacity = 256

// Queue is a bounded FIFO of pending actions.
//
// Enqueue never blocks: when the queue is full the action is rejected
// with ErrQueueFull and the caller decides whether to log or retry.
//
// Thread Safety: safe for concurrent use.
type Queue struct {
	items chan Action
}

// NewQueue creates a queue with the given capacity.
// Capacity <= 0 falls back to the default.
func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = defaultQueueCapacity
	}
	return &Queue{items: make(chan Action, capacity)}
}

// Enqueue appends an action. Returns ErrQueueFull when at capacity.
func (q *Queue) Enqueue(action Action) error {
	select {
	case q.items <- action:
		return nil
	default:
		return ErrQueueFull
	}
}

// Wait returns the channel the dispatcher selects on for new actions.
func (q *Queue) Wait() <-chan Action {
	return q.items
}

// Len returns the number of pending actions.
func (q *Queue) Len() int {
	return len(q.items)
}
