package patient

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
)

// readOnlyFields may appear in a submitted payload but are never assigned.
var readOnlyFields = map[string]bool{
	"id":         true,
	"active":     true,
	"version_id": true,
	"created_at": true,
	"updated_at": true,
}

// TxRunner runs fn inside a storage transaction carried by the context.
type TxRunner func(ctx context.Context, fn func(context.Context) error) error

func runDirect(ctx context.Context, fn func(context.Context) error) error { return fn(ctx) }

type Service struct {
	repo      Repository
	validator *Validator
	inTx      TxRunner
}

func NewService(repo Repository, emails EmailChecker) *Service {
	return &Service{repo: repo, validator: NewValidator(repo, emails), inTx: runDirect}
}

// WithTx makes every write run its uniqueness checks and the write itself in
// one transaction.
func (s *Service) WithTx(run TxRunner) *Service {
	if run == nil {
		run = runDirect
	}
	s.inTx = run
	return s
}

// Validator returns the invariant checker bound to the service's repository.
func (s *Service) Validator() *Validator { return s.validator }

// Record wraps p with the service's accessors and mutators.
func (s *Service) Record(p *Patient) *Record {
	return NewRecord(p, s.validator)
}

// CreatePatient builds a new active record from submitted form values.
func (s *Service) CreatePatient(ctx context.Context, form map[string]interface{}) (*Patient, error) {
	draft := &Patient{Active: true}
	err := s.inTx(ctx, func(ctx context.Context) error {
		if err := s.apply(ctx, form, draft, nil); err != nil {
			return err
		}
		return s.repo.Create(ctx, draft)
	})
	if err != nil {
		return nil, err
	}
	return draft, nil
}

// UpdatePatient applies the submitted fields to the stored record. Fields
// absent from form are left unchanged.
func (s *Service) UpdatePatient(ctx context.Context, id uuid.UUID, form map[string]interface{}) (*Patient, error) {
	var draft *Patient
	err := s.inTx(ctx, func(ctx context.Context) error {
		current, err := s.repo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		draft = current.Clone()
		if err := s.apply(ctx, form, draft, current); err != nil {
			return err
		}
		return s.repo.Update(ctx, draft)
	})
	if err != nil {
		return nil, err
	}
	return draft, nil
}

// apply assigns the submitted values to draft through the typed mutators and
// then checks the invariants on what was assigned. Nothing is persisted when
// either step fails.
func (s *Service) apply(ctx context.Context, form map[string]interface{}, draft, current *Patient) error {
	vc := NewValidationContext(form)
	rec := s.Record(draft)

	unknown := make([]string, 0)
	for name := range form {
		if _, ok := fieldByName[name]; !ok && !readOnlyFields[name] {
			unknown = append(unknown, name)
		}
	}
	sort.Strings(unknown)
	for _, name := range unknown {
		vc.Report(&ValidationError{Field: name, Message: "Unknown field"})
	}

	for _, f := range fields {
		value, ok := form[f.Name]
		if !ok {
			continue
		}
		if err := f.set(rec, ctx, value); err != nil {
			fe := fieldErrorOf(err)
			if fe == nil {
				return err
			}
			vc.Report(fe)
			vc.markRejected(f.Name)
		}
	}
	return s.validator.Check(ctx, vc, draft, current)
}

// fieldErrorOf returns the most specific field error carried by err.
func fieldErrorOf(err error) FieldError {
	var ve *ValueError
	if errors.As(err, &ve) {
		var inner FieldError
		if errors.As(ve.Err, &inner) {
			return inner
		}
		return ve
	}
	var fe FieldError
	if errors.As(err, &fe) {
		return fe
	}
	return nil
}

func (s *Service) GetPatient(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return s.repo.GetByID(ctx, id)
}

// GetPatientByMRN looks the record up among active and inactive patients.
func (s *Service) GetPatientByMRN(ctx context.Context, mrn string) (*Patient, error) {
	p, err := s.repo.FindByMRN(ctx, mrn, true)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, ErrNotFound
	}
	return p, nil
}

func (s *Service) ListPatients(ctx context.Context, c Criteria) ([]*Patient, int, error) {
	return s.repo.List(ctx, c)
}

func (s *Service) SearchPatients(ctx context.Context, c Criteria) ([]*Patient, error) {
	return s.repo.Search(ctx, c)
}

// DeactivatePatient removes the record from the active set. Its MRN stays
// reserved; its patient ID becomes available to other records.
func (s *Service) DeactivatePatient(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return s.setActive(ctx, id, false)
}

// ActivatePatient returns the record to the active set, provided no other
// active record took its patient ID in the meantime.
func (s *Service) ActivatePatient(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return s.setActive(ctx, id, true)
}

func (s *Service) setActive(ctx context.Context, id uuid.UUID, active bool) (*Patient, error) {
	var p *Patient
	err := s.inTx(ctx, func(ctx context.Context) error {
		var err error
		if p, err = s.repo.GetByID(ctx, id); err != nil {
			return err
		}
		if p.Active == active {
			return nil
		}
		if active {
			if err := s.validator.validatePatientID(ctx, p.PatientID, "", p.ID); err != nil {
				return err
			}
		}
		p.Active = active
		return s.repo.Update(ctx, p)
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) DeletePatient(ctx context.Context, id uuid.UUID) error {
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		return fmt.Errorf("delete patient: %w", err)
	}
	return s.repo.Delete(ctx, id)
}
