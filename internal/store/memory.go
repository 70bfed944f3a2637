package store

import (
	"context"
	"sync"
	"time"

	"candidate-notifier/internal/common/contact"
	"candidate-notifier/internal/models"
)

type memoryRecord struct {
	view  models.ApplicationView
	marks models.NotificationMarks
}

// MemoryStore is an in-process Store with the same filter and idempotency
// rules as PostgresStore.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]*memoryRecord
	byPair  map[string]string
	now     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]*memoryRecord),
		byPair:  make(map[string]string),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func pairKey(candidateID, requirementID string) string {
	return candidateID + "\x00" + requirementID
}

// Put inserts or replaces an application. Sent flags on view seed the marks.
func (m *MemoryStore) Put(view models.ApplicationView) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if view.Candidate.FirstName == "" {
		view.Candidate.FirstName = contact.FirstName(view.Candidate.Name)
	}

	rec := &memoryRecord{view: view}
	now := m.now()
	if view.EmailSent {
		rec.marks.EmailSentAt = &now
	}
	if view.SMSSent {
		rec.marks.SMSSentAt = &now
	}
	m.records[view.ApplicationID] = rec
	m.byPair[pairKey(view.Candidate.ID, view.Requirement.ID)] = view.ApplicationID
}

func (m *MemoryStore) FindNotifiableApplication(ctx context.Context, candidateID, requirementID string) (*models.ApplicationView, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	appID, ok := m.byPair[pairKey(candidateID, requirementID)]
	if !ok {
		return nil, ErrNotFound
	}
	rec := m.records[appID]

	view := rec.view
	view.EmailSent = rec.marks.EmailSentAt != nil
	view.SMSSent = rec.marks.SMSSentAt != nil
	if view.FullyNotified() {
		return nil, ErrNotFound
	}
	return &view, nil
}

func (m *MemoryStore) MarkEmailSent(ctx context.Context, applicationID string) error {
	return m.mark(ctx, applicationID, func(marks *models.NotificationMarks) **time.Time { return &marks.EmailSentAt })
}

func (m *MemoryStore) MarkSMSSent(ctx context.Context, applicationID string) error {
	return m.mark(ctx, applicationID, func(marks *models.NotificationMarks) **time.Time { return &marks.SMSSentAt })
}

func (m *MemoryStore) mark(ctx context.Context, applicationID string, field func(*models.NotificationMarks) **time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.records[applicationID]
	if !ok {
		return nil
	}
	ts := field(&rec.marks)
	if *ts == nil {
		now := m.now()
		*ts = &now
	}
	return nil
}

// Marks returns a copy of the persisted marks for applicationID.
func (m *MemoryStore) Marks(applicationID string) (models.NotificationMarks, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.records[applicationID]
	if !ok {
		return models.NotificationMarks{}, false
	}
	return rec.marks, true
}

func (m *MemoryStore) Ping(ctx context.Context) error {
	return ctx.Err()
}
