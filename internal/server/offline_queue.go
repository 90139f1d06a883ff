package server

import (
	"sync"
	"time"
)

const (
	// Per-user queue bound; the oldest entry is dropped first.
	defaultQueueCap = 100
	// Entries for users who never reconnect are discarded after this long.
	defaultQueueTTL = time.Hour
)

// QueuedMessage is one undelivered event held for an offline user.
type QueuedMessage struct {
	UserID     string
	Payload    ServerMessage
	EnqueuedAt time.Time
	Attempts   int
}

// OfflineMessageQueue buffers broadcasts for users with no writable socket.
// Bounded FIFO per user: exceeding the cap evicts the oldest entry, and a
// periodic sweep (run by the coordinator) discards entries past the TTL.
type OfflineMessageQueue struct {
	mu     sync.Mutex
	queues map[string][]QueuedMessage
	cap    int
	ttl    time.Duration
}

func NewOfflineMessageQueue() *OfflineMessageQueue {
	return &OfflineMessageQueue{
		queues: make(map[string][]QueuedMessage),
		cap:    defaultQueueCap,
		ttl:    defaultQueueTTL,
	}
}

func (q *OfflineMessageQueue) Enqueue(userID string, msg ServerMessage) {
	q.mu.Lock()
	defer q.mu.Unlock()

	queue := append(q.queues[userID], QueuedMessage{
		UserID:     userID,
		Payload:    msg,
		EnqueuedAt: time.Now(),
	})
	if len(queue) > q.cap {
		queue = queue[len(queue)-q.cap:]
	}
	q.queues[userID] = queue
}

// Drain removes and returns every queued message for a user, oldest first.
func (q *OfflineMessageQueue) Drain(userID string) []QueuedMessage {
	q.mu.Lock()
	defer q.mu.Unlock()

	msgs := q.queues[userID]
	delete(q.queues, userID)
	return msgs
}

// Requeue puts undelivered messages back at the front of a user's queue,
// bumping their attempt count. Used when a drain's writes fail midway.
func (q *OfflineMessageQueue) Requeue(userID string, msgs []QueuedMessage) {
	if len(msgs) == 0 {
		return
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	for i := range msgs {
		msgs[i].Attempts++
	}
	queue := append(msgs, q.queues[userID]...)
	if len(queue) > q.cap {
		queue = queue[len(queue)-q.cap:]
	}
	q.queues[userID] = queue
}

// Users lists every user with a non-empty queue.
func (q *OfflineMessageQueue) Users() []string {
	q.mu.Lock()
	defer q.mu.Unlock()

	users := make([]string, 0, len(q.queues))
	for userID := range q.queues {
		users = append(users, userID)
	}
	return users
}

func (q *OfflineMessageQueue) Len(userID string) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.queues[userID])
}

// Expire drops entries older than the TTL for one user. Returns the number
// discarded.
func (q *OfflineMessageQueue) Expire(userID string, now time.Time) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	queue := q.queues[userID]
	cutoff := now.Add(-q.ttl)

	kept := queue[:0]
	for _, m := range queue {
		if m.EnqueuedAt.After(cutoff) {
			kept = append(kept, m)
		}
	}
	dropped := len(queue) - len(kept)
	if len(kept) == 0 {
		delete(q.queues, userID)
	} else {
		q.queues[userID] = kept
	}
	return dropped
}
