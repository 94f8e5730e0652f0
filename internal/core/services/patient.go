package services

import (
	"context"

	"github.com/nuvie/nuvie-ingestor/internal/core/domain"
	"github.com/nuvie/nuvie-ingestor/internal/core/ports/driven"
	"github.com/nuvie/nuvie-ingestor/internal/core/ports/driving"
)

// Ensure PatientService implements the interface.
var _ driving.PatientService = (*PatientService)(nil)

// DefaultPageSize is the page size used by Each.
const DefaultPageSize = 500

// PatientService reads stored patients.
type PatientService struct {
	store    driven.PatientStore
	pageSize int
}

// NewPatientService creates a patient read service.
func NewPatientService(store driven.PatientStore) *PatientService {
	return &PatientService{store: store, pageSize: DefaultPageSize}
}

// Count returns the number of stored patients.
func (s *PatientService) Count(ctx context.Context) (int, error) {
	return s.store.Count(ctx)
}

// List returns up to limit patients starting at offset.
func (s *PatientService) List(ctx context.Context, offset, limit int) ([]domain.Patient, error) {
	if offset < 0 {
		offset = 0
	}
	return s.store.List(ctx, offset, limit)
}

// GetBySSN looks up one patient. Returns domain.ErrNotFound when absent.
func (s *PatientService) GetBySSN(ctx context.Context, ssn string) (*domain.Patient, error) {
	session, err := s.store.Session(ctx)
	if err != nil {
		return nil, err
	}
	defer session.Close()

	return session.FindBySSN(ctx, ssn)
}

// Each pages through the store and calls fn for every patient.
func (s *PatientService) Each(ctx context.Context, fn func(domain.Patient) error) error {
	for offset := 0; ; offset += s.pageSize {
		if err := ctx.Err(); err != nil {
			return err
		}
		page, err := s.store.List(ctx, offset, s.pageSize)
		if err != nil {
			return err
		}
		for _, p := range page {
			if err := fn(p); err != nil {
				return err
			}
		}
		if len(page) < s.pageSize {
			return nil
		}
	}
}
