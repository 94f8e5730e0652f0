package driven

import (
	"context"

	"github.com/nuvie/nuvie-ingestor/internal/core/domain"
)

// PatientStore is the Persistence Gateway for patient records.
// Implementations must enforce SSN uniqueness at the storage layer;
// the caller's existence check is advisory only.
type PatientStore interface {
	// Session opens a unit of work bound to one connection.
	// A session must not be shared between goroutines.
	Session(ctx context.Context) (PatientSession, error)

	// Count returns the number of stored patients.
	Count(ctx context.Context) (int, error)

	// List returns patients ordered by SSN with offset/limit pagination.
	List(ctx context.Context, offset, limit int) ([]domain.Patient, error)

	// Close releases the underlying connection pool.
	Close() error
}

// PatientSession performs existence checks and inserts on a single
// connection for the lifetime of one batch.
type PatientSession interface {
	// FindBySSN returns the patient with the given SSN.
	// Returns domain.ErrNotFound when absent.
	FindBySSN(ctx context.Context, ssn string) (*domain.Patient, error)

	// Insert persists a new patient, assigning an ID if it has none.
	// Returns domain.ErrAlreadyExists on a unique constraint violation.
	Insert(ctx context.Context, p *domain.Patient) error

	// Close returns the connection to the pool.
	Close() error
}
