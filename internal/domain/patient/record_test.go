package patient

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

func newRecord(others ...*Patient) *Record {
	return NewRecord(&Patient{Active: true}, NewValidator(&stubLookup{patients: others}, nil))
}

func TestSetMRN_TrimsAndStores(t *testing.T) {
	r := newRecord()
	if err := r.SetMRN(context.Background(), "  MRN-100 "); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.MRN() != "MRN-100" {
		t.Errorf("expected MRN-100, got %q", r.MRN())
	}
}

func TestSetMRN_FailureLeavesValueUnchanged(t *testing.T) {
	r := newRecord(held("TAKEN", "", false))
	r.Patient().MRN = "MRN-1"

	for _, v := range []interface{}{"", "   ", nil, "TAKEN", 42} {
		err := r.SetMRN(context.Background(), v)
		var ve *ValueError
		if !errors.As(err, &ve) || ve.Field != "mrn" {
			t.Errorf("%#v: expected ValueError on mrn, got %v", v, err)
		}
		if r.MRN() != "MRN-1" {
			t.Errorf("%#v: stored value changed to %q", v, r.MRN())
		}
	}

	err := r.SetMRN(context.Background(), "TAKEN")
	if !errors.Is(err, ErrNotUnique) {
		t.Errorf("expected uniqueness failure to be visible through the ValueError, got %v", err)
	}
}

func TestSetMRN_AcceptsJSONNumber(t *testing.T) {
	r := newRecord()
	if err := r.SetMRN(context.Background(), json.Number("12345")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.MRN() != "12345" {
		t.Errorf("expected 12345, got %q", r.MRN())
	}
}

func TestSetPatientID_EmptyAlwaysSucceeds(t *testing.T) {
	r := newRecord(held("A", "", true), held("B", "", true))
	r.Patient().PatientID = "P-1"
	if err := r.SetPatientID(context.Background(), ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.PatientID() != "" {
		t.Errorf("expected empty patient id, got %q", r.PatientID())
	}
}

func TestSetPatientID_ActiveConflict(t *testing.T) {
	other := held("A", "P-1", true)
	lookup := &stubLookup{patients: []*Patient{other}}
	r := NewRecord(&Patient{Active: true}, NewValidator(lookup, nil))
	ctx := context.Background()

	if err := r.SetPatientID(ctx, "P-1"); err == nil {
		t.Fatal("expected conflict with active record")
	}
	if r.PatientID() != "" {
		t.Errorf("stored value changed to %q", r.PatientID())
	}

	other.Active = false
	if err := r.SetPatientID(ctx, "P-1"); err != nil {
		t.Fatalf("expected success once the holder is inactive, got %v", err)
	}

	other.Active = true
	other.PatientID = "P-1-renamed"
	r.Patient().PatientID = ""
	if err := r.SetPatientID(ctx, " P-1 "); err != nil {
		t.Fatalf("expected success once the holder changed its id, got %v", err)
	}
	if r.PatientID() != "P-1" {
		t.Errorf("expected trimmed P-1, got %q", r.PatientID())
	}
}

func TestFullname(t *testing.T) {
	tests := []struct {
		first, middle, last string
		want                string
	}{
		{"John", "", "Smith", "John Smith"},
		{"John", "Q", "Smith", "John Q Smith"},
		{"", "", "Smith", "Smith"},
		{"", "", "", ""},
	}
	for _, tt := range tests {
		r := newRecord()
		ctx := context.Background()
		_ = r.SetFirstname(ctx, tt.first)
		_ = r.SetMiddlename(ctx, tt.middle)
		_ = r.SetLastname(ctx, tt.last)
		if got := r.Fullname(); got != tt.want {
			t.Errorf("Fullname(%q,%q,%q) = %q, want %q", tt.first, tt.middle, tt.last, got, tt.want)
		}
		if r.Title() != tt.want {
			t.Errorf("Title() = %q, want %q", r.Title(), tt.want)
		}
	}
}

func TestSetEmail(t *testing.T) {
	r := newRecord()
	ctx := context.Background()
	if err := r.SetEmail(ctx, "not-an-address"); err == nil {
		t.Fatal("expected invalid email to fail")
	}
	if r.Email() != "" {
		t.Errorf("stored value changed to %q", r.Email())
	}
	if err := r.SetEmail(ctx, "a@b.com"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Email() != "a@b.com" {
		t.Errorf("expected a@b.com, got %q", r.Email())
	}
	if err := r.SetEmail(ctx, ""); err != nil || r.Email() != "" {
		t.Errorf("clearing the email must succeed, got %v / %q", err, r.Email())
	}
}

func TestSetAdditionalEmails(t *testing.T) {
	r := newRecord()
	ctx := context.Background()

	err := r.SetAdditionalEmails(ctx, []interface{}{
		map[string]interface{}{"name": "work", "email": "bad"},
	})
	if err == nil || !strings.Contains(err.Error(), "bad") {
		t.Fatalf("expected error naming 'bad', got %v", err)
	}
	if len(r.AdditionalEmails()) != 0 {
		t.Error("stored value changed after failure")
	}

	err = r.SetAdditionalEmails(ctx, []interface{}{
		map[string]interface{}{"name": " work ", "email": " w@example.com "},
		map[string]interface{}{"name": "", "email": ""},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := r.AdditionalEmails()
	if len(got) != 1 || got[0] != (AdditionalEmail{Name: "work", Email: "w@example.com"}) {
		t.Errorf("unexpected rows %+v", got)
	}

	if err := r.SetAdditionalEmails(ctx, "not a list"); err == nil {
		t.Error("expected type error")
	}
}

func TestSetSex_CodeOrLabel(t *testing.T) {
	ctx := context.Background()
	for _, in := range []string{"M", "Male", " Male "} {
		r := newRecord()
		if err := r.SetSex(ctx, in); err != nil {
			t.Fatalf("%q: unexpected error %v", in, err)
		}
		if r.Sex() != "M" {
			t.Errorf("%q: expected M, got %q", in, r.Sex())
		}
		if r.SexText() != "Male" {
			t.Errorf("%q: expected Male, got %q", in, r.SexText())
		}
	}

	r := newRecord()
	r.Patient().Sex = "F"
	if err := r.SetSex(ctx, "Martian"); err == nil {
		t.Error("expected unknown value to fail")
	}
	if r.Sex() != "F" {
		t.Errorf("stored value changed to %q", r.Sex())
	}
}

func TestSexText_UnknownCodeFallsBackToEmpty(t *testing.T) {
	r := newRecord()
	r.Patient().Sex = "X"
	r.Patient().Gender = "zz"
	if r.SexText() != "" || r.GenderText() != "" {
		t.Errorf("expected empty labels, got %q / %q", r.SexText(), r.GenderText())
	}
}

func TestSetGender(t *testing.T) {
	r := newRecord()
	if err := r.SetGender(context.Background(), "Non-binary"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Gender() != "nonbinary" || r.GenderText() != "Non-binary" {
		t.Errorf("unexpected gender %q / %q", r.Gender(), r.GenderText())
	}
	if err := r.SetGender(context.Background(), true); err == nil {
		t.Error("expected type error for bool input")
	}
}

func TestSetRacesAndEthnicities(t *testing.T) {
	r := newRecord()
	ctx := context.Background()
	err := r.SetRaces(ctx, []interface{}{
		map[string]interface{}{"race": "Asian"},
		map[string]interface{}{"race": ""},
		map[string]interface{}{"race": "2106-3"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	races := r.Races()
	if len(races) != 2 || races[0].Race != "2028-9" || races[1].Race != "2106-3" {
		t.Errorf("unexpected races %+v", races)
	}

	if err := r.SetEthnicities(ctx, []EthnicityRow{{Ethnicity: "Hispanic or Latino"}}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if e := r.Ethnicities(); len(e) != 1 || e[0].Ethnicity != "2135-2" {
		t.Errorf("unexpected ethnicities %+v", e)
	}
}

func TestSetIdentifiers(t *testing.T) {
	r := newRecord()
	err := r.SetIdentifiers(context.Background(), []interface{}{
		map[string]interface{}{"key": "Passport", "value": " X123 "},
		map[string]interface{}{"key": "", "value": ""},
		map[string]interface{}{"key": "insurance", "value": "INS-9"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	items := r.IdentifierItems()
	if len(items) != 2 || items[0] != [2]string{"passport", "X123"} || items[1] != [2]string{"insurance", "INS-9"} {
		t.Errorf("unexpected items %v", items)
	}
	ids := r.IdentifierIDs()
	if len(ids) != 2 || ids[0] != "X123" || ids[1] != "INS-9" {
		t.Errorf("unexpected ids %v", ids)
	}
}

func TestBirthdate_StripsTime(t *testing.T) {
	r := newRecord()
	if err := r.SetBirthdate(context.Background(), "1985-03-04T17:45:00Z"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := r.Birthdate()
	want := time.Date(1985, 3, 4, 0, 0, 0, 0, time.UTC)
	if got == nil || !got.Equal(want) {
		t.Errorf("expected %v, got %v", want, got)
	}
	if r.BirthdateTime().Hour() != 17 {
		t.Errorf("raw value must keep the time, got %v", r.BirthdateTime())
	}

	if err := r.SetBirthdate(context.Background(), "04/03/1985"); err == nil {
		t.Error("expected unparseable date to fail")
	}
	if err := r.SetBirthdate(context.Background(), ""); err != nil || r.Birthdate() != nil {
		t.Errorf("clearing the birthdate must succeed, got %v / %v", err, r.Birthdate())
	}
}

func TestBirthdate_OffsetInputIsZoneIndependent(t *testing.T) {
	r := newRecord()
	if err := r.SetBirthdate(context.Background(), "1990-05-10T23:30:00-05:00"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if loc := r.BirthdateTime().Location(); loc != time.UTC {
		t.Errorf("expected the stored value in UTC, got %v", loc)
	}
	want := time.Date(1990, 5, 11, 0, 0, 0, 0, time.UTC)
	if got := r.Birthdate(); got == nil || !got.Equal(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}

	// A storage round trip may hand the instant back in another zone.
	for _, zone := range []*time.Location{time.FixedZone("UTC-8", -8*3600), time.FixedZone("UTC+10", 10*3600)} {
		scanned := r.BirthdateTime().In(zone)
		other := NewRecord(&Patient{Birthdate: &scanned}, nil)
		if got := other.Birthdate(); got == nil || !got.Equal(want) {
			t.Errorf("%s: expected %v, got %v", zone, want, got)
		}
	}
}

func TestSetEmailReport(t *testing.T) {
	r := newRecord()
	ctx := context.Background()
	for in, want := range map[interface{}]bool{true: true, "on": true, "selected": true, "false": false, "": false} {
		if err := r.SetEmailReport(ctx, in); err != nil {
			t.Fatalf("%#v: unexpected error %v", in, err)
		}
		if r.EmailReport() != want {
			t.Errorf("%#v: expected %v", in, want)
		}
	}
	if err := r.SetEmailReport(ctx, "maybe"); err == nil {
		t.Error("expected conversion error")
	}
}

func TestSetAddress(t *testing.T) {
	r := newRecord()
	ctx := context.Background()
	err := r.SetAddress(ctx, []interface{}{
		map[string]interface{}{"address": " 1 Main St ", "city": "Springfield"},
		map[string]interface{}{"type": "postal", "address": "PO Box 9"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	phys, ok := r.AddressOf(PhysicalAddress)
	if !ok || phys.Address != "1 Main St" || phys.City != "Springfield" {
		t.Errorf("unexpected physical address %+v", phys)
	}
	if _, ok := r.AddressOf(OtherAddress); ok {
		t.Error("unexpected other address")
	}

	err = r.SetAddress(ctx, []interface{}{map[string]interface{}{"type": "holiday"}})
	if err == nil {
		t.Fatal("expected unsupported address type to fail")
	}
	if len(r.Address()) != 2 {
		t.Error("stored value changed after failure")
	}
}

func TestGetters_DefaultToEmptyLists(t *testing.T) {
	r := newRecord()
	if r.Identifiers() == nil || r.Races() == nil || r.Ethnicities() == nil ||
		r.AdditionalEmails() == nil || r.Address() == nil {
		t.Error("list getters must never return nil")
	}
	if r.Birthdate() != nil {
		t.Error("expected nil birthdate")
	}
}

func TestGetSet_ByName(t *testing.T) {
	r := newRecord()
	ctx := context.Background()
	if err := r.Set(ctx, "lastname", " Doe "); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	v, err := r.Get("lastname")
	if err != nil || v != "Doe" {
		t.Errorf("expected Doe, got %v (%v)", v, err)
	}
	if err := r.Set(ctx, "shoe_size", 42); !errors.Is(err, errUnknownField) {
		t.Errorf("expected unknown field error, got %v", err)
	}
	if _, err := r.Get("shoe_size"); err == nil {
		t.Error("expected unknown field error")
	}
}
