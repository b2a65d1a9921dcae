package checkpoint

import (
	"context"
	"sync"
	"time"

	"ai-assistant-be/internal/entity"
	"ai-assistant-be/internal/pkg/logger"
)

// Store persists checkpoints. Implementations must make the upsert
// monotonic per turn.
type Store interface {
	UpsertCheckpoint(ctx context.Context, cp entity.ConversationCheckpoint) error
}

// maxPending bounds the backlog while the store is slow. Past it the
// oldest queued snapshot is dropped, since a later one supersedes it.
const maxPending = 8

// Writer persists snapshots off the streaming path in submission order.
type Writer struct {
	store   Store
	logger  logger.ILogger
	timeout time.Duration

	mu      sync.Mutex
	pending []entity.ConversationCheckpoint
	dropped int
	closed  bool

	wake chan struct{}
	quit chan struct{}
	done chan struct{}
}

func NewWriter(store Store, log logger.ILogger, timeout time.Duration) *Writer {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	w := &Writer{
		store:   store,
		logger:  log,
		timeout: timeout,
		wake:    make(chan struct{}, 1),
		quit:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	go w.run()
	return w
}

// Submit never blocks. Calls after Close are ignored.
func (w *Writer) Submit(cp entity.ConversationCheckpoint) {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	if len(w.pending) == maxPending {
		w.pending = w.pending[1:]
		w.dropped++
	}
	w.pending = append(w.pending, cp)
	w.mu.Unlock()

	select {
	case w.wake <- struct{}{}:
	default:
	}
}

// Close flushes the pending snapshots and waits for the worker to exit.
func (w *Writer) Close() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		<-w.done
		return
	}
	w.closed = true
	w.mu.Unlock()

	close(w.quit)
	<-w.done
}

func (w *Writer) run() {
	defer close(w.done)
	for {
		select {
		case <-w.wake:
			w.flush()
		case <-w.quit:
			w.flush()
			return
		}
	}
}

func (w *Writer) take() []entity.ConversationCheckpoint {
	w.mu.Lock()
	defer w.mu.Unlock()
	batch := w.pending
	w.pending = nil
	return batch
}

// Dropped reports how many snapshots were superseded before being written.
func (w *Writer) Dropped() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.dropped
}

func (w *Writer) flush() {
	for {
		batch := w.take()
		if len(batch) == 0 {
			return
		}
		for _, cp := range batch {
			w.write(cp)
		}
	}
}

func (w *Writer) write(cp entity.ConversationCheckpoint) {
	ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
	defer cancel()
	if err := w.store.UpsertCheckpoint(ctx, cp); err != nil {
		w.logger.Error("Checkpoint", "checkpoint upsert failed", map[string]interface{}{
			"conversation_id": cp.ConversationId.String(),
			"turn_id":         cp.TurnId.String(),
			"length":          cp.LastCheckpointLength,
			"error":           err.Error(),
		})
	}
}
