package game

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

const (
	EventBufferSize         = 1024                   // Ring size
	MaxEventsPerSec         = 2000                   // Global rate limit
	MaxEventsPerParticipant = 50                     // Per-participant rate limit per second
	BatchFlushSize          = 64                     // Events per batch write
	BatchFlushInterval      = 100 * time.Millisecond // How often to flush
)

// EventLog is a bounded, rate-limited JSONL audit trail of the match.
// Emitting never blocks the game; when the ring is full the oldest
// unwritten event is dropped.
type EventLog struct {
	mu       sync.Mutex
	buffer   [EventBufferSize]Event
	head     uint64 // next write position
	tail     uint64 // next read position
	sequence uint64

	globalLimiter       *rate.Limiter
	participantLimiters sync.Map // map[string]*rate.Limiter

	writerWg sync.WaitGroup
	stopChan chan struct{}
	stopOnce sync.Once
	running  atomic.Bool

	out    io.Writer
	closer io.Closer

	droppedCount atomic.Uint64
	totalCount   atomic.Uint64
}

// NewEventLog creates a stopped event log; Emit is a no-op until Start
func NewEventLog() *EventLog {
	return &EventLog{
		globalLimiter: rate.NewLimiter(MaxEventsPerSec, MaxEventsPerSec/10),
		stopChan:      make(chan struct{}),
	}
}

// Start opens filePath for append and begins the writer goroutine.
// An empty path keeps events in memory only.
func (el *EventLog) Start(filePath string) error {
	if filePath == "" {
		return el.StartWriter(io.Discard)
	}
	file, err := os.OpenFile(filePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("open event log: %w", err)
	}
	el.closer = file
	return el.StartWriter(file)
}

// StartWriter begins writing batches to w
func (el *EventLog) StartWriter(w io.Writer) error {
	if el.running.Swap(true) {
		return nil
	}
	el.out = w
	el.writerWg.Add(1)
	go el.writerLoop()
	return nil
}

// Stop flushes pending events and closes the file
func (el *EventLog) Stop() {
	el.stopOnce.Do(func() {
		if !el.running.Load() {
			return
		}
		close(el.stopChan)
		el.writerWg.Wait()
		el.running.Store(false)
		if el.closer != nil {
			el.closer.Close()
		}
	})
}

// Emit records an event. Returns false if rate limited or not running.
// A nil log accepts and discards everything.
func (el *EventLog) Emit(event Event) bool {
	if el == nil || !el.running.Load() {
		return false
	}

	// Score and outcome records carry the result and are never rate limited
	if !event.Type.result() && !el.globalLimiter.Allow() {
		el.droppedCount.Add(1)
		return false
	}
	if event.Participant != "" && !el.participantLimiter(event.Team, event.Participant).Allow() {
		el.droppedCount.Add(1)
		return false
	}

	el.mu.Lock()
	if el.head-el.tail >= EventBufferSize {
		el.tail++
		el.droppedCount.Add(1)
	}
	el.sequence++
	event.Sequence = el.sequence
	el.buffer[el.head%EventBufferSize] = event
	el.head++
	el.mu.Unlock()

	el.totalCount.Add(1)
	return true
}

// Record is a convenience wrapper around NewEvent and Emit
func (el *EventLog) Record(eventType EventType, tick uint64, team int, participant string, payload any) bool {
	if el == nil {
		return false
	}
	return el.Emit(NewEvent(eventType, tick, team, participant, payload))
}

func (el *EventLog) participantLimiter(team int, participant string) *rate.Limiter {
	key := fmt.Sprintf("%d/%s", team, participant)
	if l, ok := el.participantLimiters.Load(key); ok {
		return l.(*rate.Limiter)
	}
	l, _ := el.participantLimiters.LoadOrStore(key, rate.NewLimiter(MaxEventsPerParticipant, MaxEventsPerParticipant/5))
	return l.(*rate.Limiter)
}

func (el *EventLog) writerLoop() {
	defer el.writerWg.Done()

	ticker := time.NewTicker(BatchFlushInterval)
	defer ticker.Stop()

	batch := make([]Event, 0, BatchFlushSize)
	for {
		select {
		case <-el.stopChan:
			for {
				batch = el.collectBatch(batch[:0])
				if len(batch) == 0 {
					return
				}
				el.flushBatch(batch)
			}
		case <-ticker.C:
			batch = el.collectBatch(batch[:0])
			if len(batch) > 0 {
				el.flushBatch(batch)
			}
		}
	}
}

func (el *EventLog) collectBatch(batch []Event) []Event {
	el.mu.Lock()
	defer el.mu.Unlock()
	for el.tail < el.head && len(batch) < BatchFlushSize {
		batch = append(batch, el.buffer[el.tail%EventBufferSize])
		el.tail++
	}
	return batch
}

// flushBatch writes newline-delimited JSON
func (el *EventLog) flushBatch(batch []Event) {
	enc := json.NewEncoder(el.out)
	for _, event := range batch {
		if err := enc.Encode(event); err != nil {
			el.droppedCount.Add(1)
		}
	}
}

// Stats returns counters for the status API
func (el *EventLog) Stats() map[string]any {
	el.mu.Lock()
	pending := el.head - el.tail
	el.mu.Unlock()
	return map[string]any{
		"total":   el.totalCount.Load(),
		"dropped": el.droppedCount.Load(),
		"pending": pending,
		"running": el.running.Load(),
	}
}

// DroppedCount returns the number of events dropped by limits or overflow
func (el *EventLog) DroppedCount() uint64 {
	return el.droppedCount.Load()
}

// TotalCount returns the number of accepted events
func (el *EventLog) TotalCount() uint64 {
	return el.totalCount.Load()
}
