package patient

import (
	"context"
	"encoding/json"
	"testing"
)

func TestSchema_FieldOrder(t *testing.T) {
	want := []string{
		"mrn", "patient_id", "identifiers", "email_report", "firstname", "middlename", "lastname",
		"sex", "gender", "races", "ethnicities", "email", "additional_emails", "phone", "mobile",
		"address", "birthdate",
	}
	got := Schema()
	if len(got) != len(want) {
		t.Fatalf("expected %d fields, got %d", len(want), len(got))
	}
	for i, f := range got {
		if f.Name != want[i] {
			t.Errorf("field %d: expected %s, got %s", i, want[i], f.Name)
		}
		if f.get == nil || f.set == nil {
			t.Errorf("field %s has no accessor or mutator", f.Name)
		}
	}
}

func TestSchema_Required(t *testing.T) {
	for _, name := range []string{"mrn", "sex", "gender"} {
		f, ok := LookupField(name)
		if !ok || !f.Required {
			t.Errorf("expected %s to be required", name)
		}
	}
	if f, _ := LookupField("patient_id"); f.Required {
		t.Error("patient_id must be optional")
	}
	if _, ok := LookupField("nope"); ok {
		t.Error("expected unknown field lookup to fail")
	}
}

func TestDescribe(t *testing.T) {
	d := Describe()
	if len(d.Fieldsets) != 4 || d.Fieldsets[0].Name != "default" {
		t.Fatalf("unexpected fieldsets %+v", d.Fieldsets)
	}
	def := d.Fieldsets[0].Fields
	if def[0] != "mrn" || def[len(def)-1] != "birthdate" {
		t.Errorf("unexpected default fieldset %v", def)
	}
	if _, ok := d.Vocabularies["races"]; !ok {
		t.Error("expected races vocabulary")
	}
	if Describe().Fieldsets[0].Fields[0] != "mrn" || len(Describe().Fieldsets[0].Fields) != len(def) {
		t.Error("Describe must not accumulate state between calls")
	}

	raw, err := json.Marshal(d)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded map[string]interface{}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(decoded["fields"].([]interface{})) != len(Schema()) {
		t.Error("expected every field in the serialised schema")
	}
}

func TestSchema_SetThroughTable(t *testing.T) {
	r := newRecord()
	for _, f := range Schema() {
		if f.Kind != KindText || f.Name == "mrn" {
			continue
		}
		if err := f.set(r, context.Background(), " value "); err != nil && f.Name != "email" {
			t.Errorf("set %s: %v", f.Name, err)
		}
	}
	if r.Firstname() != "value" || r.Mobile() != "value" {
		t.Errorf("expected text fields to be trimmed and stored, got %q %q", r.Firstname(), r.Mobile())
	}
}
