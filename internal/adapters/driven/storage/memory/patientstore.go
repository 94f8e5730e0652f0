package memory

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/nuvie/nuvie-ingestor/internal/core/domain"
	"github.com/nuvie/nuvie-ingestor/internal/core/ports/driven"
)

// Ensure PatientStore implements the interface.
var _ driven.PatientStore = (*PatientStore)(nil)

// ErrClosed is returned by sessions and stores used after Close.
var ErrClosed = errors.New("memory store closed")

// PatientStore is an in-memory implementation of driven.PatientStore.
// Useful for dry runs and tests.
type PatientStore struct {
	mu       sync.RWMutex
	patients map[string]domain.Patient // keyed by SSN
	closed   bool
}

// NewPatientStore creates a new in-memory patient store.
func NewPatientStore() *PatientStore {
	return &PatientStore{
		patients: make(map[string]domain.Patient),
	}
}

// Session opens a unit of work. Sessions share the store's lock.
func (s *PatientStore) Session(_ context.Context) (driven.PatientSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}
	return &patientSession{store: s}, nil
}

// Count returns the number of stored patients.
func (s *PatientStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.patients), nil
}

// List returns patients ordered by SSN.
func (s *PatientStore) List(_ context.Context, offset, limit int) ([]domain.Patient, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ssns := make([]string, 0, len(s.patients))
	for ssn := range s.patients {
		ssns = append(ssns, ssn)
	}
	sort.Strings(ssns)

	if offset < 0 {
		offset = 0
	}
	if offset >= len(ssns) {
		return nil, nil
	}
	end := len(ssns)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}

	result := make([]domain.Patient, 0, end-offset)
	for _, ssn := range ssns[offset:end] {
		result = append(result, s.patients[ssn])
	}
	return result, nil
}

// Close marks the store closed.
func (s *PatientStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

type patientSession struct {
	store  *PatientStore
	closed bool
}

// FindBySSN returns a copy of the stored patient.
func (t *patientSession) FindBySSN(_ context.Context, ssn string) (*domain.Patient, error) {
	if t.closed {
		return nil, ErrClosed
	}
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()
	p, ok := t.store.patients[ssn]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &p, nil
}

// Insert stores p, enforcing SSN uniqueness like a unique index would.
func (t *patientSession) Insert(_ context.Context, p *domain.Patient) error {
	if t.closed {
		return ErrClosed
	}
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	if t.store.closed {
		return ErrClosed
	}
	if _, exists := t.store.patients[p.SSN]; exists {
		return domain.ErrAlreadyExists
	}
	p.EnsureID()
	t.store.patients[p.SSN] = *p
	return nil
}

func (t *patientSession) Close() error {
	t.closed = true
	return nil
}
