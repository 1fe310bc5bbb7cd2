// Package audit is the append-only trail of every saga step that can
// fail. Writes are best-effort by contract: a caller never blocks on the
// sink and never fails because an audit row could not be written.
package audit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"ms-orderflow/internal/logger"
	"ms-orderflow/internal/models"
)

// Sink is what the sagas see. Record must not block and must not fail.
type Sink interface {
	Record(ev models.AuditEvent)
}

// Store persists events; implemented by the order db layer.
type Store interface {
	InsertAuditEvent(ctx context.Context, ev *models.AuditEvent) error
}

// Recorder buffers events on a channel and writes them from a single
// worker goroutine. When the buffer is full the event is dropped and
// logged rather than blocking the saga.
type Recorder struct {
	store  Store
	log    logger.Log
	ch     chan models.AuditEvent
	wg     sync.WaitGroup
	closed chan struct{}
	once   sync.Once
}

func NewRecorder(store Store, log logger.Log, buffer int) *Recorder {
	if buffer <= 0 {
		buffer = 256
	}
	r := &Recorder{
		store:  store,
		log:    log,
		ch:     make(chan models.AuditEvent, buffer),
		closed: make(chan struct{}),
	}
	r.wg.Add(1)
	go r.worker()
	return r
}

func (r *Recorder) Record(ev models.AuditEvent) {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now().UTC()
	}

	// The channel is never closed, so a Record racing Close cannot
	// panic; at worst the event lands in the buffer and is drained.
	select {
	case <-r.closed:
		r.log.Warn("AUDIT", "recorder closed, dropping event "+ev.Action)
		return
	default:
	}

	select {
	case r.ch <- ev:
	default:
		r.log.Warn("AUDIT", "buffer full, dropping event "+ev.Action)
	}
}

func (r *Recorder) worker() {
	defer r.wg.Done()
	for {
		select {
		case ev := <-r.ch:
			r.persist(ev)
		case <-r.closed:
			for {
				select {
				case ev := <-r.ch:
					r.persist(ev)
				default:
					return
				}
			}
		}
	}
}

func (r *Recorder) persist(ev models.AuditEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.store.InsertAuditEvent(ctx, &ev); err != nil {
		// Swallowed by contract; the trail is best-effort.
		r.log.Error("AUDIT", fmt.Sprintf("failed to persist event %s/%s: %v", ev.Action, ev.EntityID, err))
	}
}

// Close drains buffered events and stops the worker. Record stays safe
// to call afterwards; late events are dropped, not crashed on.
func (r *Recorder) Close() {
	r.once.Do(func() { close(r.closed) })
	r.wg.Wait()
}
