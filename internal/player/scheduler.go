// ABOUTME: Timestamp-based playback scheduler
// ABOUTME: Orders decoded packets by local play time and drops the ones that arrive too late
package player

import (
	"container/heap"
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mariotaku/Sunshine/internal/logging"
	internalsync "github.com/mariotaku/Sunshine/internal/sync"
)

const (
	tickInterval = 5 * time.Millisecond

	// Window is how far from its play time a buffer may still be released
	Window = 50 * time.Millisecond
)

// Buffer is one decoded packet
type Buffer struct {
	Sequence  uint32
	Timestamp int64     // server clock, microseconds
	PlayAt    time.Time // local play time
	Samples   []int16   // interleaved PCM owned by the buffer
}

// Stats tracks scheduler metrics
type Stats struct {
	Received int64
	Played   int64
	Dropped  int64 // late or received before the clock was synced
}

// Scheduler releases buffers at their local play time plus a fixed delay
type Scheduler struct {
	clock  *internalsync.ClockSync
	delay  time.Duration
	output chan Buffer
	now    func() time.Time

	mu    sync.Mutex
	queue *BufferQueue

	received atomic.Int64
	played   atomic.Int64
	dropped  atomic.Int64

	log *slog.Logger
}

// NewScheduler creates a playback scheduler with delay of buffering
func NewScheduler(clock *internalsync.ClockSync, delay time.Duration) *Scheduler {
	return &Scheduler{
		clock:  clock,
		delay:  delay,
		output: make(chan Buffer, 16),
		now:    time.Now,
		queue:  NewBufferQueue(),
		log:    logging.L("scheduler"),
	}
}

// Schedule queues buf for playback. Buffers arriving before the first
// clock sync have no play time and are dropped.
func (s *Scheduler) Schedule(buf Buffer) {
	n := s.received.Add(1)
	if !s.clock.Synced() {
		s.dropped.Add(1)
		return
	}

	buf.PlayAt = s.clock.ServerToLocalTime(buf.Timestamp).Add(s.delay)
	if n <= 5 {
		offset, rtt, _ := s.clock.GetStats()
		s.log.Debug("scheduled buffer",
			"seq", buf.Sequence,
			"delay", buf.PlayAt.Sub(s.now()),
			"offset_us", offset,
			"rtt_us", rtt)
	}

	s.mu.Lock()
	heap.Push(s.queue, buf)
	s.mu.Unlock()
}

// Run releases due buffers to Output until ctx ends
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, buf := range s.due(s.now()) {
				select {
				case s.output <- buf:
					s.played.Add(1)
				case <-ctx.Done():
					return
				}
			}
		}
	}
}

// due pops every buffer within Window of now and drops the late ones
func (s *Scheduler) due(now time.Time) []Buffer {
	s.mu.Lock()
	defer s.mu.Unlock()

	var ready []Buffer
	for s.queue.Len() > 0 {
		wait := s.queue.Peek().PlayAt.Sub(now)
		if wait > Window {
			break
		}
		buf := heap.Pop(s.queue).(Buffer)
		if wait < -Window {
			s.dropped.Add(1)
			s.log.Debug("dropped late buffer", "seq", buf.Sequence, "late", -wait)
			continue
		}
		ready = append(ready, buf)
	}
	return ready
}

// Output returns the channel of buffers ready to play
func (s *Scheduler) Output() <-chan Buffer {
	return s.output
}

// Pending returns the number of queued buffers
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queue.Len()
}

// Stats returns scheduler statistics
func (s *Scheduler) Stats() Stats {
	return Stats{
		Received: s.received.Load(),
		Played:   s.played.Load(),
		Dropped:  s.dropped.Load(),
	}
}

// BufferQueue is a priority queue of buffers ordered by PlayAt
type BufferQueue struct {
	items []Buffer
}

func NewBufferQueue() *BufferQueue {
	q := &BufferQueue{}
	heap.Init(q)
	return q
}

// Implement heap.Interface
func (q *BufferQueue) Len() int { return len(q.items) }

func (q *BufferQueue) Less(i, j int) bool {
	return q.items[i].PlayAt.Before(q.items[j].PlayAt)
}

func (q *BufferQueue) Swap(i, j int) {
	q.items[i], q.items[j] = q.items[j], q.items[i]
}

func (q *BufferQueue) Push(x interface{}) {
	q.items = append(q.items, x.(Buffer))
}

func (q *BufferQueue) Pop() interface{} {
	n := len(q.items)
	item := q.items[n-1]
	q.items = q.items[:n-1]
	return item
}

func (q *BufferQueue) Peek() Buffer {
	return q.items[0]
}
