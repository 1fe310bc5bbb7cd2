package audit_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"ms-orderflow/internal/audit"
	"ms-orderflow/internal/logger"
	"ms-orderflow/internal/models"
)

type memStore struct {
	mu     sync.Mutex
	events []models.AuditEvent
	err    error
}

func (m *memStore) InsertAuditEvent(_ context.Context, ev *models.AuditEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.events = append(m.events, *ev)
	return nil
}

func (m *memStore) all() []models.AuditEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.AuditEvent(nil), m.events...)
}

func TestRecorderPersistsEvents(t *testing.T) {
	store := &memStore{}
	rec := audit.NewRecorder(store, logger.Nop(), 16)

	rec.Record(models.AuditEvent{
		ActorID:    "admin-1",
		Action:     "SHIP_ORDER",
		EntityType: "order",
		EntityID:   "ord-1",
		Result:     models.AuditSuccess,
	})
	rec.Close()

	events := store.all()
	assert.Len(t, events, 1)
	assert.Equal(t, "SHIP_ORDER", events[0].Action)
	assert.NotEmpty(t, events[0].ID)
	assert.False(t, events[0].CreatedAt.IsZero())
}

func TestRecorderSwallowsStoreFailures(t *testing.T) {
	store := &memStore{err: errors.New("db down")}
	rec := audit.NewRecorder(store, logger.Nop(), 16)

	assert.NotPanics(t, func() {
		rec.Record(models.AuditEvent{Action: "CREATE_ORDER", Result: models.AuditFail})
		rec.Close()
	})
}

func TestRecordAfterCloseIsDropped(t *testing.T) {
	store := &memStore{}
	rec := audit.NewRecorder(store, logger.Nop(), 16)
	rec.Close()

	assert.NotPanics(t, func() {
		rec.Record(models.AuditEvent{Action: "SHIP_ORDER", Result: models.AuditError})
		rec.Close()
	})
	assert.Empty(t, store.all())
}

func TestCloseDrainsBufferedEvents(t *testing.T) {
	store := &memStore{}
	rec := audit.NewRecorder(store, logger.Nop(), 32)

	for i := 0; i < 10; i++ {
		rec.Record(models.AuditEvent{Action: "CREATE_ORDER", Result: models.AuditSuccess})
	}
	rec.Close()

	assert.Len(t, store.all(), 10)
}

func TestRecordNeverBlocks(t *testing.T) {
	store := &memStore{}
	rec := audit.NewRecorder(store, logger.Nop(), 1)
	defer rec.Close()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			rec.Record(models.AuditEvent{Action: "CREATE_ORDER", Result: models.AuditSuccess})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Record blocked the caller")
	}
}
