package patient

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	repo, err := NewMemRepo()
	if err != nil {
		t.Fatalf("mem repo: %v", err)
	}
	return NewService(repo, nil)
}

func validForm(mrn string) map[string]interface{} {
	return map[string]interface{}{
		"mrn":       mrn,
		"firstname": "John",
		"lastname":  "Smith",
		"sex":       "M",
		"gender":    "male",
	}
}

func mustCreate(t *testing.T, svc *Service, form map[string]interface{}) *Patient {
	t.Helper()
	p, err := svc.CreatePatient(context.Background(), form)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	return p
}

func asErrors(t *testing.T, err error) Errors {
	t.Helper()
	var errs Errors
	if !errors.As(err, &errs) {
		t.Fatalf("expected Errors, got %T (%v)", err, err)
	}
	return errs
}

func TestService_CreatePatient(t *testing.T) {
	svc := newTestService(t)
	form := validForm(" MRN-1 ")
	form["email"] = "john@example.com"
	form["email_report"] = "on"
	form["birthdate"] = "1970-06-01"
	form["id"] = "ignored"

	p := mustCreate(t, svc, form)
	if p.ID == uuid.Nil || !p.Active || p.VersionID != 1 {
		t.Errorf("unexpected record header %+v", p)
	}
	if p.MRN != "MRN-1" || p.Email != "john@example.com" || !p.EmailReport {
		t.Errorf("unexpected values %+v", p)
	}

	got, err := svc.GetPatient(context.Background(), p.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if Fullname(got) != "John Smith" {
		t.Errorf("expected John Smith, got %q", Fullname(got))
	}
}

func TestService_CreatePatient_NoPartialSave(t *testing.T) {
	svc := newTestService(t)
	form := validForm("")
	form["email"] = "nope"

	_, err := svc.CreatePatient(context.Background(), form)
	errs := asErrors(t, err)
	if len(errs.ForField("mrn")) != 1 || len(errs.ForField("email")) != 1 {
		t.Errorf("unexpected errors %v", errs)
	}
	_, total, _ := svc.ListPatients(context.Background(), Criteria{})
	if total != 0 {
		t.Errorf("expected nothing persisted, found %d", total)
	}
}

func TestService_CreatePatient_DuplicateMRN(t *testing.T) {
	svc := newTestService(t)
	first := mustCreate(t, svc, validForm("MRN-1"))
	if _, err := svc.DeactivatePatient(context.Background(), first.ID); err != nil {
		t.Fatalf("deactivate: %v", err)
	}

	_, err := svc.CreatePatient(context.Background(), validForm("MRN-1"))
	errs := asErrors(t, err)
	if msgs := errs.ForField("mrn"); len(msgs) != 1 || msgs[0] != "Patient Medical Record # must be unique" {
		t.Errorf("unexpected mrn errors %v", msgs)
	}
	if !errors.Is(err, ErrNotUnique) {
		t.Error("expected ErrNotUnique to match")
	}
}

func TestService_CreatePatient_RequiredChoices(t *testing.T) {
	svc := newTestService(t)
	_, err := svc.CreatePatient(context.Background(), map[string]interface{}{"mrn": "MRN-1"})
	errs := asErrors(t, err)
	if len(errs.ForField("sex")) != 1 || len(errs.ForField("gender")) != 1 {
		t.Errorf("expected sex and gender to be required, got %v", errs)
	}
}

func TestService_EmailReportReportedOnce(t *testing.T) {
	svc := newTestService(t)
	form := validForm("MRN-1")
	form["email_report"] = true

	_, err := svc.CreatePatient(context.Background(), form)
	errs := asErrors(t, err)
	if msgs := errs.ForField("email_report"); len(msgs) != 1 || msgs[0] != "Please set a valid email address first" {
		t.Errorf("expected a single email_report error, got %v", msgs)
	}
}

func TestService_UnknownField(t *testing.T) {
	svc := newTestService(t)
	form := validForm("MRN-1")
	form["shoe_size"] = 42
	_, err := svc.CreatePatient(context.Background(), form)
	errs := asErrors(t, err)
	if len(errs.ForField("shoe_size")) != 1 {
		t.Errorf("expected unknown field error, got %v", errs)
	}
}

func TestService_RejectedValuesSkipTheirInvariants(t *testing.T) {
	svc := newTestService(t)
	form := validForm("MRN-1")
	form["sex"] = "Martian"
	form["birthdate"] = "yesterday"

	_, err := svc.CreatePatient(context.Background(), form)
	errs := asErrors(t, err)
	if len(errs) != 2 || len(errs.ForField("sex")) != 1 || len(errs.ForField("birthdate")) != 1 {
		t.Errorf("unexpected errors %v", errs)
	}
}

func TestService_RejectedValueAndInvariantReportedTogether(t *testing.T) {
	svc := newTestService(t)

	form := validForm("MRN-1")
	form["additional_emails"] = []interface{}{map[string]interface{}{"name": "Work", "email": "not-an-address"}}
	form["email_report"] = true
	_, err := svc.CreatePatient(context.Background(), form)
	errs := asErrors(t, err)
	if len(errs) != 2 || len(errs.ForField("additional_emails")) != 1 || len(errs.ForField("email_report")) != 1 {
		t.Errorf("expected additional_emails and email_report errors, got %v", errs)
	}

	form = validForm("MRN-2")
	form["email"] = "broken@"
	form["email_report"] = "on"
	_, err = svc.CreatePatient(context.Background(), form)
	errs = asErrors(t, err)
	if len(errs.ForField("email")) != 1 || len(errs.ForField("email_report")) != 1 {
		t.Errorf("expected email and email_report errors, got %v", errs)
	}
}

func TestService_UnknownFieldsInNameOrder(t *testing.T) {
	svc := newTestService(t)
	form := validForm("MRN-1")
	for _, name := range []string{"zeta", "alpha", "mu", "beta", "omega"} {
		form[name] = "x"
	}
	for i := 0; i < 10; i++ {
		_, err := svc.CreatePatient(context.Background(), form)
		errs := asErrors(t, err)
		got := make([]string, len(errs))
		for j, fe := range errs {
			got[j] = fe.FieldName()
		}
		if strings.Join(got, ",") != "alpha,beta,mu,omega,zeta" {
			t.Fatalf("run %d: unexpected order %v", i, got)
		}
	}
}

func TestService_UpdatePatient(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	p := mustCreate(t, svc, validForm("MRN-1"))
	mustCreate(t, svc, validForm("MRN-2"))

	updated, err := svc.UpdatePatient(ctx, p.ID, map[string]interface{}{"middlename": "Q", "mrn": "MRN-1"})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Firstname != "John" || updated.Middlename != "Q" || updated.VersionID != 2 {
		t.Errorf("unexpected record %+v", updated)
	}

	_, err = svc.UpdatePatient(ctx, p.ID, map[string]interface{}{"mrn": "MRN-2", "lastname": "Changed"})
	errs := asErrors(t, err)
	if len(errs.ForField("mrn")) != 1 {
		t.Errorf("expected mrn conflict, got %v", errs)
	}
	stored, _ := svc.GetPatient(ctx, p.ID)
	if stored.MRN != "MRN-1" || stored.Lastname != "Smith" {
		t.Errorf("failed update must not persist anything, got %+v", stored)
	}

	if _, err := svc.UpdatePatient(ctx, uuid.New(), map[string]interface{}{}); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestService_PatientIDFreedByDeactivation(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	formA := validForm("MRN-A")
	formA["patient_id"] = "P-1"
	a := mustCreate(t, svc, formA)

	formB := validForm("MRN-B")
	formB["patient_id"] = "P-1"
	_, err := svc.CreatePatient(ctx, formB)
	if errs := asErrors(t, err); len(errs.ForField("patient_id")) != 1 {
		t.Fatalf("expected patient_id conflict, got %v", errs)
	}

	if _, err := svc.DeactivatePatient(ctx, a.ID); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	mustCreate(t, svc, formB)

	_, err = svc.ActivatePatient(ctx, a.ID)
	var ue *UniquenessError
	if !errors.As(err, &ue) || ue.Field != "patient_id" {
		t.Fatalf("expected activation to conflict on patient_id, got %v", err)
	}
}

func TestService_ActivateDeactivateIdempotent(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	p := mustCreate(t, svc, validForm("MRN-1"))

	if got, err := svc.ActivatePatient(ctx, p.ID); err != nil || !got.Active || got.VersionID != 1 {
		t.Errorf("activating an active record must be a no-op, got %+v / %v", got, err)
	}
	got, err := svc.DeactivatePatient(ctx, p.ID)
	if err != nil || got.Active {
		t.Fatalf("deactivate: %+v / %v", got, err)
	}
	again, _ := svc.DeactivatePatient(ctx, p.ID)
	if again.VersionID != got.VersionID {
		t.Error("deactivating twice must not bump the version")
	}
	if got, err := svc.ActivatePatient(ctx, p.ID); err != nil || !got.Active {
		t.Errorf("activate: %+v / %v", got, err)
	}
}

func TestService_GetPatientByMRN(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	p := mustCreate(t, svc, validForm("MRN-1"))
	_, _ = svc.DeactivatePatient(ctx, p.ID)

	got, err := svc.GetPatientByMRN(ctx, "MRN-1")
	if err != nil || got.ID != p.ID {
		t.Errorf("expected inactive record to be found, got %v / %v", got, err)
	}
	if _, err := svc.GetPatientByMRN(ctx, "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestService_DeletePatient(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	p := mustCreate(t, svc, validForm("MRN-1"))

	if err := svc.DeletePatient(ctx, p.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := svc.GetPatient(ctx, p.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if err := svc.DeletePatient(ctx, p.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestService_SearchPatients(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	a := validForm("MRN-1")
	a["lastname"] = "Zeta"
	mustCreate(t, svc, a)
	b := validForm("MRN-2")
	b["lastname"] = "Alpha"
	mustCreate(t, svc, b)

	found, err := svc.SearchPatients(ctx, Criteria{Name: "alp"})
	if err != nil || len(found) != 1 || found[0].MRN != "MRN-2" {
		t.Errorf("unexpected search result %v / %v", found, err)
	}
	all, total, _ := svc.ListPatients(ctx, Criteria{})
	if total != 2 || all[0].Lastname != "Alpha" {
		t.Errorf("expected list ordered by lastname, got %v", all)
	}
}

type brokenRepo struct {
	Repository
	err error
}

func (b *brokenRepo) FindByMRN(context.Context, string, bool) (*Patient, error) { return nil, b.err }

func TestService_LookupFailurePassesThrough(t *testing.T) {
	repo, _ := NewMemRepo()
	boom := errors.New("catalog offline")
	svc := NewService(&brokenRepo{Repository: repo, err: boom}, nil)

	_, err := svc.CreatePatient(context.Background(), validForm("MRN-1"))
	if !errors.Is(err, boom) {
		t.Fatalf("expected lookup error, got %v", err)
	}
	var errs Errors
	if errors.As(err, &errs) {
		t.Error("lookup failure must not be reported as a field error")
	}
}

func TestFieldErrorOf(t *testing.T) {
	inner := &UniquenessError{Field: "mrn", Message: "taken"}
	if fieldErrorOf(&ValueError{Field: "mrn", Err: inner}) != inner {
		t.Error("expected the wrapped field error")
	}
	ve := valueErrorf("sex", "unknown value")
	if fieldErrorOf(ve) != ve {
		t.Error("expected the ValueError itself")
	}
	if fieldErrorOf(errors.New("plain")) != nil {
		t.Error("expected nil for plain errors")
	}
}

func TestService_WritesRunInTx(t *testing.T) {
	svc := newTestService(t)
	calls := 0
	svc.WithTx(func(ctx context.Context, fn func(context.Context) error) error {
		calls++
		return fn(ctx)
	})
	ctx := context.Background()

	p := mustCreate(t, svc, validForm("MRN-1"))
	if _, err := svc.UpdatePatient(ctx, p.ID, map[string]interface{}{"phone": "1"}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if _, err := svc.DeactivatePatient(ctx, p.ID); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 transactional writes, got %d", calls)
	}

	boom := errors.New("tx aborted")
	svc.WithTx(func(context.Context, func(context.Context) error) error { return boom })
	if _, err := svc.CreatePatient(ctx, validForm("MRN-2")); !errors.Is(err, boom) {
		t.Errorf("expected runner error, got %v", err)
	}
}
