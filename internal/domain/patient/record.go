package patient

import (
	"context"
	"errors"
	"strings"
	"time"
)

// Record exposes typed accessors and mutators over a Patient. Mutators coerce
// their input, apply the field's constraint and leave the stored value
// untouched on failure.
type Record struct {
	p *Patient
	v *Validator
}

func NewRecord(p *Patient, v *Validator) *Record {
	return &Record{p: p, v: v}
}

// Patient returns the underlying record.
func (r *Record) Patient() *Patient { return r.p }

// -- Identification --

func (r *Record) MRN() string { return r.p.MRN }

func (r *Record) SetMRN(ctx context.Context, value interface{}) error {
	s, ok := asString(value)
	if !ok {
		if value == nil {
			return valueErrorf("mrn", "value is missing or empty")
		}
		return valueErrorf("mrn", "type is not supported: %#v", value)
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return valueErrorf("mrn", "value is missing or empty")
	}
	if s == r.p.MRN {
		return nil
	}
	if err := r.v.validateMRN(ctx, s, r.p.MRN, r.p.ID); err != nil {
		return asValueError("mrn", err)
	}
	r.p.MRN = s
	return nil
}

func (r *Record) PatientID() string { return r.p.PatientID }

func (r *Record) SetPatientID(ctx context.Context, value interface{}) error {
	s := textOrEmpty(value)
	if s != "" && s != r.p.PatientID {
		if err := r.v.validatePatientID(ctx, s, r.p.PatientID, r.p.ID); err != nil {
			return asValueError("patient_id", err)
		}
	}
	r.p.PatientID = s
	return nil
}

func (r *Record) Identifiers() []Identifier {
	if r.p.Identifiers == nil {
		return []Identifier{}
	}
	return r.p.Identifiers
}

// IdentifierItems returns (type, id) pairs.
func (r *Record) IdentifierItems() [][2]string {
	items := make([][2]string, 0, len(r.p.Identifiers))
	for _, i := range r.p.Identifiers {
		items = append(items, [2]string{i.Key, i.Value})
	}
	return items
}

// IdentifierIDs returns the identifier values only.
func (r *Record) IdentifierIDs() []string {
	ids := make([]string, 0, len(r.p.Identifiers))
	for _, i := range r.p.Identifiers {
		ids = append(ids, i.Value)
	}
	return ids
}

func (r *Record) SetIdentifiers(_ context.Context, value interface{}) error {
	var rows []Identifier
	if err := decodeRows(value, &rows); err != nil {
		return &ValueError{Field: "identifiers", Err: err}
	}
	out := make([]Identifier, 0, len(rows))
	for _, row := range rows {
		row.Key = strings.TrimSpace(row.Key)
		row.Value = strings.TrimSpace(row.Value)
		if row.Key == "" && row.Value == "" {
			continue
		}
		if code, ok := IdentifierTypes.Normalize(row.Key); ok {
			row.Key = code
		}
		out = append(out, row)
	}
	r.p.Identifiers = out
	return nil
}

// -- Name --

func (r *Record) Firstname() string  { return r.p.Firstname }
func (r *Record) Middlename() string { return r.p.Middlename }
func (r *Record) Lastname() string   { return r.p.Lastname }

func (r *Record) SetFirstname(_ context.Context, value interface{}) error {
	r.p.Firstname = textOrEmpty(value)
	return nil
}

func (r *Record) SetMiddlename(_ context.Context, value interface{}) error {
	r.p.Middlename = textOrEmpty(value)
	return nil
}

func (r *Record) SetLastname(_ context.Context, value interface{}) error {
	r.p.Lastname = textOrEmpty(value)
	return nil
}

// Fullname joins the non-empty name parts with a single space.
func (r *Record) Fullname() string {
	return Fullname(r.p)
}

// Title is the display title of the record.
func (r *Record) Title() string { return r.Fullname() }

// Fullname joins the non-empty name parts of p with a single space.
func Fullname(p *Patient) string {
	parts := make([]string, 0, 3)
	for _, part := range []string{p.Firstname, p.Middlename, p.Lastname} {
		if part != "" {
			parts = append(parts, part)
		}
	}
	return strings.Join(parts, " ")
}

// -- Demographics --

func (r *Record) Sex() string { return r.p.Sex }

// SexText returns the display label of the stored sex, or "" when the code is
// not part of the vocabulary.
func (r *Record) SexText() string {
	label, _ := Sexes.Label(r.p.Sex)
	return label
}

func (r *Record) SetSex(_ context.Context, value interface{}) error {
	code, err := choice("sex", Sexes, value)
	if err != nil {
		return err
	}
	r.p.Sex = code
	return nil
}

func (r *Record) Gender() string { return r.p.Gender }

func (r *Record) GenderText() string {
	label, _ := Genders.Label(r.p.Gender)
	return label
}

func (r *Record) SetGender(_ context.Context, value interface{}) error {
	code, err := choice("gender", Genders, value)
	if err != nil {
		return err
	}
	r.p.Gender = code
	return nil
}

// choice accepts a code or its display label and returns the code.
func choice(field string, vocab Vocabulary, value interface{}) (string, error) {
	s, ok := asString(value)
	if !ok && value != nil {
		return "", valueErrorf(field, "type is not supported: %#v", value)
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return "", nil
	}
	code, ok := vocab.Normalize(s)
	if !ok {
		return "", valueErrorf(field, "unknown value %q", s)
	}
	return code, nil
}

func (r *Record) Races() []RaceRow {
	if r.p.Races == nil {
		return []RaceRow{}
	}
	return r.p.Races
}

func (r *Record) SetRaces(_ context.Context, value interface{}) error {
	var rows []RaceRow
	if err := decodeRows(value, &rows); err != nil {
		return &ValueError{Field: "races", Err: err}
	}
	out := make([]RaceRow, 0, len(rows))
	for _, row := range rows {
		row.Race = strings.TrimSpace(row.Race)
		if row.Race == "" {
			continue
		}
		if code, ok := Races.Normalize(row.Race); ok {
			row.Race = code
		}
		out = append(out, row)
	}
	r.p.Races = out
	return nil
}

func (r *Record) Ethnicities() []EthnicityRow {
	if r.p.Ethnicities == nil {
		return []EthnicityRow{}
	}
	return r.p.Ethnicities
}

func (r *Record) SetEthnicities(_ context.Context, value interface{}) error {
	var rows []EthnicityRow
	if err := decodeRows(value, &rows); err != nil {
		return &ValueError{Field: "ethnicities", Err: err}
	}
	out := make([]EthnicityRow, 0, len(rows))
	for _, row := range rows {
		row.Ethnicity = strings.TrimSpace(row.Ethnicity)
		if row.Ethnicity == "" {
			continue
		}
		if code, ok := Ethnicities.Normalize(row.Ethnicity); ok {
			row.Ethnicity = code
		}
		out = append(out, row)
	}
	r.p.Ethnicities = out
	return nil
}

// Birthdate returns the birthdate as a UTC date with the time of day stripped.
func (r *Record) Birthdate() *time.Time {
	if r.p.Birthdate == nil {
		return nil
	}
	d := dateOnly(*r.p.Birthdate)
	return &d
}

// BirthdateTime returns the stored value unmodified.
func (r *Record) BirthdateTime() *time.Time { return r.p.Birthdate }

func (r *Record) SetBirthdate(_ context.Context, value interface{}) error {
	t, err := asTime(value)
	if err != nil {
		return &ValueError{Field: "birthdate", Err: err}
	}
	if t != nil {
		u := t.UTC()
		t = &u
	}
	r.p.Birthdate = t
	return nil
}

// -- Contact --

func (r *Record) Email() string { return r.p.Email }

func (r *Record) SetEmail(_ context.Context, value interface{}) error {
	s := textOrEmpty(value)
	if err := r.v.ValidateEmail(s); err != nil {
		return asValueError("email", err)
	}
	r.p.Email = s
	return nil
}

func (r *Record) AdditionalEmails() []AdditionalEmail {
	if r.p.AdditionalEmails == nil {
		return []AdditionalEmail{}
	}
	return r.p.AdditionalEmails
}

func (r *Record) SetAdditionalEmails(_ context.Context, value interface{}) error {
	var rows []AdditionalEmail
	if err := decodeRows(value, &rows); err != nil {
		return &ValueError{Field: "additional_emails", Err: err}
	}
	out := make([]AdditionalEmail, 0, len(rows))
	for _, row := range rows {
		row.Name = strings.TrimSpace(row.Name)
		row.Email = strings.TrimSpace(row.Email)
		if row.Name == "" && row.Email == "" {
			continue
		}
		out = append(out, row)
	}
	if err := r.v.ValidateAdditionalEmails(out); err != nil {
		return asValueError("additional_emails", err)
	}
	r.p.AdditionalEmails = out
	return nil
}

func (r *Record) EmailReport() bool { return r.p.EmailReport }

func (r *Record) SetEmailReport(_ context.Context, value interface{}) error {
	b, err := asBool(value)
	if err != nil {
		return &ValueError{Field: "email_report", Err: err}
	}
	r.p.EmailReport = b
	return nil
}

func (r *Record) Phone() string  { return r.p.Phone }
func (r *Record) Mobile() string { return r.p.Mobile }

func (r *Record) SetPhone(_ context.Context, value interface{}) error {
	r.p.Phone = textOrEmpty(value)
	return nil
}

func (r *Record) SetMobile(_ context.Context, value interface{}) error {
	r.p.Mobile = textOrEmpty(value)
	return nil
}

func (r *Record) Address() []AddressEntry {
	if r.p.Address == nil {
		return []AddressEntry{}
	}
	return r.p.Address
}

// AddressOf returns the sub-address of the given type.
func (r *Record) AddressOf(addrType string) (AddressEntry, bool) {
	for _, a := range r.p.Address {
		if a.Type == addrType {
			return a, true
		}
	}
	return AddressEntry{}, false
}

func (r *Record) SetAddress(_ context.Context, value interface{}) error {
	var entries []AddressEntry
	if err := decodeRows(value, &entries); err != nil {
		return &ValueError{Field: "address", Err: err}
	}
	out := make([]AddressEntry, 0, len(entries))
	for _, e := range entries {
		e.Type = strings.TrimSpace(e.Type)
		if e.Type == "" {
			e.Type = PhysicalAddress
		}
		if !isAddressType(e.Type) {
			return valueErrorf("address", "unsupported address type %q", e.Type)
		}
		e.Address = strings.TrimSpace(e.Address)
		e.Zip = strings.TrimSpace(e.Zip)
		e.City = strings.TrimSpace(e.City)
		e.Subdivision1 = strings.TrimSpace(e.Subdivision1)
		e.Subdivision2 = strings.TrimSpace(e.Subdivision2)
		e.Country = strings.TrimSpace(e.Country)
		out = append(out, e)
	}
	r.p.Address = out
	return nil
}

func isAddressType(t string) bool {
	for _, at := range addressTypes {
		if at == t {
			return true
		}
	}
	return false
}

// -- Generic access through the schema --

// Get returns the value of the named field.
func (r *Record) Get(name string) (interface{}, error) {
	f, ok := fieldByName[name]
	if !ok {
		return nil, &ValueError{Field: name, Err: errUnknownField}
	}
	return f.get(r), nil
}

// Set assigns the named field through its typed mutator.
func (r *Record) Set(ctx context.Context, name string, value interface{}) error {
	f, ok := fieldByName[name]
	if !ok || f.set == nil {
		return &ValueError{Field: name, Err: errUnknownField}
	}
	return f.set(r, ctx, value)
}

var errUnknownField = errors.New("unknown field")

// asValueError wraps validation failures; lookup failures pass through.
func asValueError(field string, err error) error {
	var fe FieldError
	if errors.As(err, &fe) {
		return &ValueError{Field: field, Err: err}
	}
	return err
}
