package driving

import (
	"context"

	"github.com/nuvie/nuvie-ingestor/internal/core/domain"
)

// PatientService provides read access to stored patients.
type PatientService interface {
	// Count returns the number of stored patients.
	Count(ctx context.Context) (int, error)

	// List returns up to limit patients starting at offset.
	List(ctx context.Context, offset, limit int) ([]domain.Patient, error)

	// GetBySSN returns the patient with the given SSN.
	// Returns domain.ErrNotFound when no such patient is stored.
	GetBySSN(ctx context.Context, ssn string) (*domain.Patient, error)

	// Each calls fn for every stored patient, paging through the store.
	// Iteration stops at the first error returned by fn.
	Each(ctx context.Context, fn func(domain.Patient) error) error
}
