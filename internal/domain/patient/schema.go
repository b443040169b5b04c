package patient

import "context"

// FieldKind is the declared type of a schema field.
type FieldKind string

const (
	KindText     FieldKind = "text"
	KindBool     FieldKind = "bool"
	KindChoice   FieldKind = "choice"
	KindDataGrid FieldKind = "datagrid"
	KindAddress  FieldKind = "address"
	KindDatetime FieldKind = "datetime"
)

// Column describes one column of a datagrid row.
type Column struct {
	Name       string    `json:"name"`
	Title      string    `json:"title"`
	Kind       FieldKind `json:"kind"`
	Required   bool      `json:"required"`
	Vocabulary string    `json:"vocabulary,omitempty"`
}

// Field describes one schema field for the form layer and carries the typed
// hooks used by Record.Get and Record.Set.
type Field struct {
	Name        string                 `json:"name"`
	Title       string                 `json:"title"`
	Description string                 `json:"description"`
	Kind        FieldKind              `json:"kind"`
	Required    bool                   `json:"required"`
	Default     interface{}            `json:"default"`
	Fieldset    string                 `json:"fieldset"`
	Vocabulary  string                 `json:"vocabulary,omitempty"`
	Columns     []Column               `json:"columns,omitempty"`
	Widget      map[string]interface{} `json:"widget,omitempty"`

	get func(*Record) interface{}
	set func(*Record, context.Context, interface{}) error
}

// Fieldset groups fields on the form.
type Fieldset struct {
	Name   string   `json:"name"`
	Label  string   `json:"label"`
	Fields []string `json:"fields"`
}

// SchemaDescription is the serialisable schema handed to form clients.
type SchemaDescription struct {
	Fields       []Field               `json:"fields"`
	Fieldsets    []Fieldset            `json:"fieldsets"`
	Vocabularies map[string]Vocabulary `json:"vocabularies"`
}

var gridWidget = map[string]interface{}{"allow_reorder": true, "auto_append": true}

var fields = []Field{
	{
		Name: "mrn", Title: "Medical Record #", Description: "Patient Medical Record Number",
		Kind: KindText, Required: true, Fieldset: "default",
		get: func(r *Record) interface{} { return r.MRN() },
		set: (*Record).SetMRN,
	},
	{
		Name: "patient_id", Title: "ID", Description: "Unique Patient ID",
		Kind: KindText, Fieldset: "default",
		get: func(r *Record) interface{} { return r.PatientID() },
		set: (*Record).SetPatientID,
	},
	{
		Name: "identifiers", Title: "Patient Identifiers", Description: "Define one or more identifers for this patient",
		Kind: KindDataGrid, Default: []Identifier{}, Fieldset: "default",
		Columns: []Column{
			{Name: "key", Title: "Type", Kind: KindChoice, Required: true, Vocabulary: "identifiers"},
			{Name: "value", Title: "ID", Kind: KindText, Required: true},
		},
		Widget: map[string]interface{}{"auto_append": true},
		get:    func(r *Record) interface{} { return r.Identifiers() },
		set:    (*Record).SetIdentifiers,
	},
	{
		Name: "email_report", Title: "Email results report", Description: "Add the patient email as CC recipient to new samples",
		Kind: KindBool, Default: false, Fieldset: "default",
		get: func(r *Record) interface{} { return r.EmailReport() },
		set: (*Record).SetEmailReport,
	},
	{
		Name: "firstname", Title: "Firstname", Description: "Patient firstname",
		Kind: KindText, Fieldset: "default",
		get: func(r *Record) interface{} { return r.Firstname() },
		set: (*Record).SetFirstname,
	},
	{
		Name: "middlename", Title: "Middlename", Description: "Patient middlename",
		Kind: KindText, Fieldset: "default",
		get: func(r *Record) interface{} { return r.Middlename() },
		set: (*Record).SetMiddlename,
	},
	{
		Name: "lastname", Title: "Lastname", Description: "Patient lastname",
		Kind: KindText, Fieldset: "default",
		get: func(r *Record) interface{} { return r.Lastname() },
		set: (*Record).SetLastname,
	},
	{
		Name: "sex", Title: "Sex", Description: "Patient sex at birth",
		Kind: KindChoice, Required: true, Default: "", Fieldset: "default", Vocabulary: "sex",
		get: func(r *Record) interface{} { return r.Sex() },
		set: (*Record).SetSex,
	},
	{
		Name: "gender", Title: "Gender Identity", Description: "Patient gender identity",
		Kind: KindChoice, Required: true, Default: "", Fieldset: "default", Vocabulary: "gender",
		get: func(r *Record) interface{} { return r.Gender() },
		set: (*Record).SetGender,
	},
	{
		Name: "races", Title: "Races",
		Description: "General race category reported by the patient - subject may have more than one",
		Kind:        KindDataGrid, Default: []RaceRow{}, Fieldset: "race_and_ethnicity",
		Columns: []Column{{Name: "race", Title: "Race", Kind: KindChoice, Vocabulary: "races"}},
		Widget:  gridWidget,
		get:     func(r *Record) interface{} { return r.Races() },
		set:     (*Record).SetRaces,
	},
	{
		Name: "ethnicities", Title: "Ethnicities",
		Description: "General ethnicity category reported by the patient - subject may have more than one",
		Kind:        KindDataGrid, Default: []EthnicityRow{}, Fieldset: "race_and_ethnicity",
		Columns: []Column{{Name: "ethnicity", Title: "Ethnicity", Kind: KindChoice, Vocabulary: "ethnicities"}},
		Widget:  gridWidget,
		get:     func(r *Record) interface{} { return r.Ethnicities() },
		set:     (*Record).SetEthnicities,
	},
	{
		Name: "email", Title: "Primary Email", Description: "Primary email address for this patient",
		Kind: KindText, Fieldset: "contact",
		get: func(r *Record) interface{} { return r.Email() },
		set: (*Record).SetEmail,
	},
	{
		Name: "additional_emails", Title: "Additional Emails", Description: "Additional email addresses for this patient",
		Kind: KindDataGrid, Default: []AdditionalEmail{}, Fieldset: "contact",
		Columns: []Column{
			{Name: "name", Title: "Name", Kind: KindText, Required: true},
			{Name: "email", Title: "Email", Kind: KindText, Required: true},
		},
		Widget: gridWidget,
		get:    func(r *Record) interface{} { return r.AdditionalEmails() },
		set:    (*Record).SetAdditionalEmails,
	},
	{
		Name: "phone", Title: "Phone", Description: "Patient phone number",
		Kind: KindText, Fieldset: "contact",
		get: func(r *Record) interface{} { return r.Phone() },
		set: (*Record).SetPhone,
	},
	{
		Name: "mobile", Title: "Mobile", Description: "Patient mobile phone number",
		Kind: KindText, Fieldset: "contact",
		get: func(r *Record) interface{} { return r.Mobile() },
		set: (*Record).SetMobile,
	},
	{
		Name: "address", Title: "Address",
		Kind: KindAddress, Default: []AddressEntry{}, Fieldset: "address",
		Widget: map[string]interface{}{"address_types": addressTypes},
		get:    func(r *Record) interface{} { return r.Address() },
		set:    (*Record).SetAddress,
	},
	{
		Name: "birthdate", Title: "Birthdate", Description: "Patient birthdate",
		Kind: KindDatetime, Fieldset: "default",
		Widget: map[string]interface{}{"datepicker_nofuture": true, "show_time": false},
		get:    func(r *Record) interface{} { return r.Birthdate() },
		set:    (*Record).SetBirthdate,
	},
}

var fieldsets = []Fieldset{
	{Name: "default", Label: "Default"},
	{Name: "race_and_ethnicity", Label: "Race and Ethnicity", Fields: []string{"races", "ethnicities"}},
	{Name: "contact", Label: "Contact", Fields: []string{"email", "additional_emails", "phone", "mobile"}},
	{Name: "address", Label: "Address", Fields: []string{"address"}},
}

var fieldByName = func() map[string]*Field {
	m := make(map[string]*Field, len(fields))
	for i := range fields {
		m[fields[i].Name] = &fields[i]
	}
	return m
}()

// Schema returns the declared fields in form order.
func Schema() []Field {
	out := make([]Field, len(fields))
	copy(out, fields)
	return out
}

// Describe returns the schema together with fieldsets and vocabularies.
func Describe() SchemaDescription {
	sets := make([]Fieldset, len(fieldsets))
	copy(sets, fieldsets)
	for i := range sets {
		if sets[i].Name != "default" {
			continue
		}
		for _, f := range fields {
			if f.Fieldset == "default" {
				sets[i].Fields = append(sets[i].Fields, f.Name)
			}
		}
	}
	return SchemaDescription{
		Fields:       Schema(),
		Fieldsets:    sets,
		Vocabularies: Vocabularies,
	}
}

// LookupField returns the descriptor of the named field.
func LookupField(name string) (Field, bool) {
	f, ok := fieldByName[name]
	if !ok {
		return Field{}, false
	}
	return *f, true
}
