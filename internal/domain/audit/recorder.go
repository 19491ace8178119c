package audit

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Recorder decouples audit writes from the financial path. Record never
// blocks the caller: events go through a buffered channel to a worker
// goroutine, and on a full buffer the event is dropped with a warning.
// Insert failures are logged and swallowed.
type Recorder struct {
	store   Store
	entries chan Entry
	wg      sync.WaitGroup
	once    sync.Once
}

func NewRecorder(store Store, bufferSize int) *Recorder {
	if bufferSize <= 0 {
		bufferSize = 256
	}
	r := &Recorder{
		store:   store,
		entries: make(chan Entry, bufferSize),
	}
	r.wg.Add(1)
	go r.worker()
	return r
}

// Record enqueues an audit event. userID may be uuid.Nil for system events.
func (r *Recorder) Record(userID uuid.UUID, action, entityType, entityID string, metadata map[string]interface{}) {
	entry := Entry{
		ID:         uuid.New(),
		Action:     action,
		EntityType: entityType,
		Metadata:   metadata,
	}
	if userID != uuid.Nil {
		entry.UserID = &userID
	}
	if entityID != "" {
		entry.EntityID = &entityID
	}

	select {
	case r.entries <- entry:
	default:
		log.Warn().Str("action", action).Msg("audit buffer full, dropping entry")
	}
}

// Close stops accepting events and drains the buffer.
func (r *Recorder) Close() {
	r.once.Do(func() {
		close(r.entries)
	})
	r.wg.Wait()
}

func (r *Recorder) worker() {
	defer r.wg.Done()

	for entry := range r.entries {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := r.store.Insert(ctx, entry); err != nil {
			log.Error().Err(err).Str("action", entry.Action).Msg("audit write failed")
		}
		cancel()
	}
}
