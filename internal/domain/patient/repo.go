package patient

import (
	"context"

	"github.com/google/uuid"
)

// Criteria narrows a patient search. Zero values are ignored; Active is only
// applied when non-nil.
type Criteria struct {
	MRN       string
	PatientID string
	Name      string
	Active    *bool
	Limit     int
	Offset    int
}

// Lookup is the search collaborator used by the uniqueness invariants.
type Lookup interface {
	// FindByMRN returns the record holding mrn, or nil when none does.
	FindByMRN(ctx context.Context, mrn string, includeInactive bool) (*Patient, error)
	Search(ctx context.Context, c Criteria) ([]*Patient, error)
}

type Repository interface {
	Lookup
	Create(ctx context.Context, p *Patient) error
	Update(ctx context.Context, p *Patient) error
	GetByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, c Criteria) ([]*Patient, int, error)
}

// EmailChecker validates the syntax of an email address.
type EmailChecker interface {
	IsValid(address string) bool
}
