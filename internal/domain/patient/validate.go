package patient

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// Validator enforces the patient invariants at the point a submission is
// about to be saved.
type Validator struct {
	lookup Lookup
	emails EmailChecker
	rows   *validator.Validate
	now    func() time.Time
}

func NewValidator(lookup Lookup, emails EmailChecker) *Validator {
	if emails == nil {
		emails = NewEmailChecker()
	}
	return &Validator{
		lookup: lookup,
		emails: emails,
		rows:   validator.New(),
		now:    time.Now,
	}
}

// ValidateMRN checks that the medical record number is set and not held by
// any other record, active or inactive.
func (v *Validator) ValidateMRN(ctx context.Context, candidate, previous string) error {
	return v.validateMRN(ctx, candidate, previous, uuid.Nil)
}

// validateMRN ignores a match on self, the record being edited.
func (v *Validator) validateMRN(ctx context.Context, candidate, previous string, self uuid.UUID) error {
	candidate = strings.TrimSpace(candidate)
	if candidate == "" {
		return &UniquenessError{Field: "mrn", Message: "Patient Medical Record is missing or empty"}
	}
	if candidate == previous {
		return nil
	}
	existing, err := v.lookup.FindByMRN(ctx, candidate, true)
	if err != nil {
		return fmt.Errorf("lookup mrn: %w", err)
	}
	if existing != nil && (self == uuid.Nil || existing.ID != self) {
		return &UniquenessError{Field: "mrn", Value: candidate, Message: "Patient Medical Record # must be unique"}
	}
	return nil
}

// ValidatePatientID checks that a non-empty patient ID is not held by another
// active record.
func (v *Validator) ValidatePatientID(ctx context.Context, candidate, previous string) error {
	return v.validatePatientID(ctx, candidate, previous, uuid.Nil)
}

func (v *Validator) validatePatientID(ctx context.Context, candidate, previous string, self uuid.UUID) error {
	candidate = strings.TrimSpace(candidate)
	if candidate == "" || candidate == previous {
		return nil
	}
	active := true
	found, err := v.lookup.Search(ctx, Criteria{PatientID: candidate, Active: &active, Limit: 2})
	if err != nil {
		return fmt.Errorf("lookup patient id: %w", err)
	}
	for _, p := range found {
		if self != uuid.Nil && p.ID == self {
			continue
		}
		return &UniquenessError{Field: "patient_id", Value: candidate, Message: "Patient ID must be unique"}
	}
	return nil
}

func (v *Validator) ValidateEmail(value string) error {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	if !v.emails.IsValid(value) {
		return &FormatError{Field: "email", Value: value, Message: "Patient email is invalid"}
	}
	return nil
}

// ValidateAdditionalEmails stops at the first invalid address.
func (v *Validator) ValidateAdditionalEmails(list []AdditionalEmail) error {
	for _, rec := range list {
		email := strings.TrimSpace(rec.Email)
		if email != "" && !v.emails.IsValid(email) {
			return &FormatError{
				Field:   "additional_emails",
				Value:   email,
				Message: fmt.Sprintf("Email address %s is invalid", email),
			}
		}
	}
	return nil
}

// ValidateEmailReport requires a usable address when reports are to be
// emailed. The failure is reported once per validation context.
func (v *Validator) ValidateEmailReport(vc *ValidationContext, flag bool, resolvable string) error {
	if !flag {
		return nil
	}
	if resolvable != "" && v.emails.IsValid(resolvable) {
		return nil
	}
	if !vc.once("email_report") {
		return nil
	}
	return &MissingDataError{Field: "email_report", Message: "Please set a valid email address first"}
}

func (v *Validator) ValidateBirthdate(value *time.Time) error {
	if value == nil {
		return nil
	}
	if value.After(v.now()) {
		return &ValidationError{Field: "birthdate", Message: "Birthdate cannot be in the future"}
	}
	return nil
}

// ValidateRows checks the required columns and vocabulary codes of the grid
// and address fields.
func (v *Validator) ValidateRows(p *Patient) Errors {
	var errs Errors
	for _, row := range p.Identifiers {
		if err := v.rows.Struct(row); err != nil {
			errs = append(errs, &ValidationError{Field: "identifiers", Message: "Identifier type and ID are required"})
			break
		}
		if !IdentifierTypes.Contains(row.Key) {
			errs = append(errs, &ValidationError{Field: "identifiers", Message: fmt.Sprintf("Unknown identifier type %q", row.Key)})
			break
		}
	}
	for _, row := range p.AdditionalEmails {
		if err := v.rows.Struct(row); err != nil {
			errs = append(errs, &ValidationError{Field: "additional_emails", Message: "Name and email are required"})
			break
		}
	}
	for _, row := range p.Races {
		if row.Race != "" && !Races.Contains(row.Race) {
			errs = append(errs, &ValidationError{Field: "races", Message: fmt.Sprintf("Unknown race %q", row.Race)})
			break
		}
	}
	for _, row := range p.Ethnicities {
		if row.Ethnicity != "" && !Ethnicities.Contains(row.Ethnicity) {
			errs = append(errs, &ValidationError{Field: "ethnicities", Message: fmt.Sprintf("Unknown ethnicity %q", row.Ethnicity)})
			break
		}
	}
	for _, entry := range p.Address {
		if err := v.rows.Struct(entry); err != nil {
			errs = append(errs, &ValidationError{Field: "address", Message: fmt.Sprintf("Unsupported address type %q", entry.Type)})
			break
		}
	}
	return errs
}

// resolveEmail picks the address the email report would be sent to: the
// submitted value first, then the draft's primary email.
func (v *Validator) resolveEmail(vc *ValidationContext, draft *Patient) string {
	if pending := vc.Pending("email"); pending != "" && v.emails.IsValid(pending) {
		return pending
	}
	return strings.TrimSpace(draft.Email)
}

// Check runs every invariant against draft. current is the persisted record
// being edited, or nil for a new one. Fields whose submitted value was
// rejected by their mutator are skipped. Failures are accumulated in vc; the
// returned error is either vc.Err() or a lookup failure.
func (v *Validator) Check(ctx context.Context, vc *ValidationContext, draft, current *Patient) error {
	var prevMRN, prevPID string
	if current != nil {
		prevMRN, prevPID = current.MRN, current.PatientID
	}
	self := draft.ID

	report := func(err error) error {
		if err == nil {
			return nil
		}
		var fe FieldError
		if errors.As(err, &fe) {
			vc.Report(fe)
			return nil
		}
		return err
	}

	checked := func(field string) bool { return !vc.Rejected(field) }

	if checked("mrn") {
		if err := report(v.validateMRN(ctx, draft.MRN, prevMRN, self)); err != nil {
			return err
		}
	}
	if checked("patient_id") {
		if err := report(v.validatePatientID(ctx, draft.PatientID, prevPID, self)); err != nil {
			return err
		}
	}
	if draft.Sex == "" && checked("sex") {
		vc.Report(&ValidationError{Field: "sex", Message: "Required input is missing"})
	}
	if draft.Gender == "" && checked("gender") {
		vc.Report(&ValidationError{Field: "gender", Message: "Required input is missing"})
	}
	if checked("email") {
		report(v.ValidateEmail(draft.Email))
	}
	if checked("additional_emails") {
		report(v.ValidateAdditionalEmails(draft.AdditionalEmails))
	}
	if checked("email_report") {
		report(v.ValidateEmailReport(vc, draft.EmailReport, v.resolveEmail(vc, draft)))
	}
	if checked("birthdate") {
		report(v.ValidateBirthdate(draft.Birthdate))
	}
	for _, fe := range v.ValidateRows(draft) {
		vc.Report(fe)
	}
	return vc.Err()
}
