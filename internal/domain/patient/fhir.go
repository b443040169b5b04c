package patient

import (
	"strconv"
	"strings"

	"github.com/lims/lims/internal/platform/fhir"
)

const (
	systemOMB       = "urn:oid:2.16.840.1.113883.6.238"
	systemV2Type    = "http://terminology.hl7.org/CodeSystem/v2-0203"
	systemLocalType = "urn:lims:identifier-type"
	extRace         = "http://hl7.org/fhir/us/core/StructureDefinition/us-core-race"
	extEthnicity    = "http://hl7.org/fhir/us/core/StructureDefinition/us-core-ethnicity"
	extBirthSex     = "http://hl7.org/fhir/us/core/StructureDefinition/us-core-birthsex"
	extEmailReport  = "urn:lims:patient:email-report"
)

// fhirGender maps the gender identity, falling back to the sex at birth, onto
// the FHIR administrative gender value set.
func fhirGender(p *Patient) string {
	switch p.Gender {
	case "female", "male":
		return p.Gender
	case "nonbinary", "other":
		return "other"
	case "undisclosed":
		return "unknown"
	}
	switch p.Sex {
	case "F":
		return "female"
	case "M":
		return "male"
	}
	return "unknown"
}

// ToFHIR renders the record as a read-only FHIR R4 Patient.
func (p *Patient) ToFHIR() map[string]interface{} {
	result := map[string]interface{}{
		"resourceType": "Patient",
		"id":           p.ID.String(),
		"active":       p.Active,
		"meta":         fhir.Meta{VersionID: strconv.Itoa(p.VersionID), LastUpdated: p.UpdatedAt},
		"gender":       fhirGender(p),
	}

	identifiers := []fhir.Identifier{{
		Use:   "usual",
		Type:  &fhir.CodeableConcept{Coding: []fhir.Coding{{System: systemV2Type, Code: "MR"}}},
		Value: p.MRN,
	}}
	if p.PatientID != "" {
		identifiers = append(identifiers, fhir.Identifier{
			Use:   "secondary",
			Type:  &fhir.CodeableConcept{Coding: []fhir.Coding{{System: systemV2Type, Code: "PI"}}},
			Value: p.PatientID,
		})
	}
	for _, id := range p.Identifiers {
		label, _ := IdentifierTypes.Label(id.Key)
		identifiers = append(identifiers, fhir.Identifier{
			Type:  &fhir.CodeableConcept{Coding: []fhir.Coding{{System: systemLocalType, Code: id.Key, Display: label}}},
			Value: id.Value,
		})
	}
	result["identifier"] = identifiers

	if full := Fullname(p); full != "" {
		name := fhir.HumanName{Use: "official", Text: full, Family: p.Lastname}
		for _, g := range []string{p.Firstname, p.Middlename} {
			if g != "" {
				name.Given = append(name.Given, g)
			}
		}
		result["name"] = []fhir.HumanName{name}
	}

	if p.Birthdate != nil {
		result["birthDate"] = dateOnly(*p.Birthdate).Format("2006-01-02")
	}

	var telecom []fhir.ContactPoint
	if p.Email != "" {
		telecom = append(telecom, fhir.ContactPoint{System: "email", Value: p.Email, Rank: 1})
	}
	for _, e := range p.AdditionalEmails {
		telecom = append(telecom, fhir.ContactPoint{System: "email", Value: e.Email})
	}
	if p.Phone != "" {
		telecom = append(telecom, fhir.ContactPoint{System: "phone", Value: p.Phone, Use: "home"})
	}
	if p.Mobile != "" {
		telecom = append(telecom, fhir.ContactPoint{System: "phone", Value: p.Mobile, Use: "mobile"})
	}
	if len(telecom) > 0 {
		result["telecom"] = telecom
	}

	var addresses []fhir.Address
	for _, a := range p.Address {
		fa := fhir.Address{
			City:       a.City,
			District:   a.Subdivision2,
			State:      a.Subdivision1,
			PostalCode: a.Zip,
			Country:    a.Country,
		}
		if a.Address != "" {
			fa.Line = []string{a.Address}
		}
		switch a.Type {
		case PostalAddress:
			fa.Type = "postal"
		case PhysicalAddress:
			fa.Type = "physical"
		default:
			fa.Use = "temp"
		}
		addresses = append(addresses, fa)
	}
	if len(addresses) > 0 {
		result["address"] = addresses
	}

	var ext []fhir.Extension
	if Sexes.Contains(p.Sex) {
		ext = append(ext, fhir.Extension{URL: extBirthSex, ValueCode: p.Sex})
	}
	if e := ombExtension(extRace, raceCodes(p)); e != nil {
		ext = append(ext, *e)
	}
	if e := ombExtension(extEthnicity, ethnicityCodes(p)); e != nil {
		ext = append(ext, *e)
	}
	reportFlag := p.EmailReport
	ext = append(ext, fhir.Extension{URL: extEmailReport, ValueBoolean: &reportFlag})
	result["extension"] = ext

	return result
}

func raceCodes(p *Patient) []Term {
	var out []Term
	for _, r := range p.Races {
		if label, ok := Races.Label(r.Race); ok {
			out = append(out, Term{Code: r.Race, Label: label})
		}
	}
	return out
}

func ethnicityCodes(p *Patient) []Term {
	var out []Term
	for _, e := range p.Ethnicities {
		if label, ok := Ethnicities.Label(e.Ethnicity); ok {
			out = append(out, Term{Code: e.Ethnicity, Label: label})
		}
	}
	return out
}

// ombExtension builds a US Core race or ethnicity extension, or nil when no
// category was reported.
func ombExtension(url string, terms []Term) *fhir.Extension {
	if len(terms) == 0 {
		return nil
	}
	e := &fhir.Extension{URL: url}
	labels := make([]string, 0, len(terms))
	for _, t := range terms {
		e.Extension = append(e.Extension, fhir.Extension{
			URL:         "ombCategory",
			ValueCoding: &fhir.Coding{System: systemOMB, Code: t.Code, Display: t.Label},
		})
		labels = append(labels, t.Label)
	}
	e.Extension = append(e.Extension, fhir.Extension{URL: "text", ValueString: strings.Join(labels, ", ")})
	return e
}

// Capability describes the Patient endpoints for the CapabilityStatement.
func Capability() fhir.ResourceCapability {
	return fhir.ResourceCapability{
		Type:         "Patient",
		Profile:      "http://hl7.org/fhir/StructureDefinition/Patient",
		Interactions: []string{"read", "search-type"},
		SearchParams: []fhir.SearchParam{
			{Name: "identifier", Type: "token", Documentation: "Medical record number"},
			{Name: "name", Type: "string", Documentation: "Any part of the patient name"},
			{Name: "active", Type: "token"},
		},
	}
}
