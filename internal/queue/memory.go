package queue

import (
	"context"
	"sync"

	"github.com/estudioia/videos-api/internal/model"
)

// MemoryQueue is an in-process Dispatcher with the same ordering and
// idempotency rules as AsynqQueue. Tests and local runs use it.
type MemoryQueue struct {
	mu      sync.Mutex
	seq     uint64
	pending map[string]memoryItem
	active  map[string]bool
	// Err, when set, is returned by every Enqueue call.
	Err error
}

type memoryItem struct {
	entry model.QueueEntry
	seq   uint64
}

// NewMemoryQueue creates an empty queue
func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{
		pending: make(map[string]memoryItem),
		active:  make(map[string]bool),
	}
}

func (q *MemoryQueue) Enqueue(_ context.Context, entry model.QueueEntry) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.Err != nil {
		return &model.DispatchError{JobID: entry.JobID, Attempts: 1, Err: q.Err}
	}
	if q.active[entry.JobID] {
		return nil
	}
	item, ok := q.pending[entry.JobID]
	if !ok {
		q.seq++
		item.seq = q.seq
	}
	item.entry = entry
	q.pending[entry.JobID] = item
	return nil
}

func (q *MemoryQueue) Remove(_ context.Context, jobID string) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, ok := q.pending[jobID]; !ok {
		return false, nil
	}
	delete(q.pending, jobID)
	return true, nil
}

// Claim pops the next entry: highest priority first, FIFO within a tier.
func (q *MemoryQueue) Claim() (model.QueueEntry, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var best *memoryItem
	for id := range q.pending {
		item := q.pending[id]
		if best == nil || rank(item.entry.Priority) > rank(best.entry.Priority) ||
			(rank(item.entry.Priority) == rank(best.entry.Priority) && item.seq < best.seq) {
			best = &item
		}
	}
	if best == nil {
		return model.QueueEntry{}, false
	}
	delete(q.pending, best.entry.JobID)
	q.active[best.entry.JobID] = true
	return best.entry, true
}

// Ack releases a claimed entry.
func (q *MemoryQueue) Ack(jobID string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.active, jobID)
}

// Len returns the number of pending entries.
func (q *MemoryQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

func (q *MemoryQueue) Stats(_ context.Context) (*model.QueueStats, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	tiers := map[string]*model.QueueTierStats{}
	stats := &model.QueueStats{Totals: model.QueueTierStats{Queue: "total"}}
	for _, name := range RenderQueues {
		stats.Queues = append(stats.Queues, model.QueueTierStats{Queue: name})
	}
	for i := range stats.Queues {
		tiers[stats.Queues[i].Queue] = &stats.Queues[i]
	}
	for _, item := range q.pending {
		tiers[QueueName(item.entry.Priority)].Pending++
		stats.Totals.Pending++
	}
	stats.Totals.Active = len(q.active)
	return stats, nil
}

func rank(p model.Priority) int {
	switch p {
	case model.PriorityHigh:
		return 2
	case model.PriorityLow:
		return 0
	default:
		return 1
	}
}
