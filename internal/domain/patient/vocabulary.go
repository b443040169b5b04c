package patient

// Term is a single entry of a static vocabulary.
type Term struct {
	Code  string `json:"code"`
	Label string `json:"label"`
}

// Vocabulary is an ordered code→label table.
type Vocabulary []Term

// Label returns the display label for code and whether it was found.
func (v Vocabulary) Label(code string) (string, bool) {
	for _, t := range v {
		if t.Code == code {
			return t.Label, true
		}
	}
	return "", false
}

// Normalize maps a code or a display label back to its code.
func (v Vocabulary) Normalize(value string) (string, bool) {
	for _, t := range v {
		if t.Code == value || t.Label == value {
			return t.Code, true
		}
	}
	return "", false
}

// Contains reports whether code is part of the vocabulary.
func (v Vocabulary) Contains(code string) bool {
	_, ok := v.Label(code)
	return ok
}

// Sex at birth.
var Sexes = Vocabulary{
	{Code: "F", Label: "Female"},
	{Code: "M", Label: "Male"},
	{Code: "U", Label: "Unknown"},
}

// Gender identity.
var Genders = Vocabulary{
	{Code: "female", Label: "Female"},
	{Code: "male", Label: "Male"},
	{Code: "nonbinary", Label: "Non-binary"},
	{Code: "other", Label: "Other"},
	{Code: "undisclosed", Label: "Prefer not to disclose"},
}

// Races follow the OMB minimum race categories.
var Races = Vocabulary{
	{Code: "1002-5", Label: "American Indian or Alaska Native"},
	{Code: "2028-9", Label: "Asian"},
	{Code: "2054-5", Label: "Black or African American"},
	{Code: "2076-8", Label: "Native Hawaiian or Other Pacific Islander"},
	{Code: "2106-3", Label: "White"},
	{Code: "2131-1", Label: "Other Race"},
	{Code: "ASKU", Label: "Asked but unknown"},
}

var Ethnicities = Vocabulary{
	{Code: "2135-2", Label: "Hispanic or Latino"},
	{Code: "2186-5", Label: "Not Hispanic or Latino"},
	{Code: "ASKU", Label: "Asked but unknown"},
}

// IdentifierTypes are the kinds of secondary identifiers a patient can carry.
var IdentifierTypes = Vocabulary{
	{Code: "national_id", Label: "National ID"},
	{Code: "passport", Label: "Passport"},
	{Code: "driver_license", Label: "Driver License"},
	{Code: "insurance", Label: "Insurance Number"},
	{Code: "hospital", Label: "Hospital ID"},
}

// Vocabularies indexes the static tables by the name used in the schema.
var Vocabularies = map[string]Vocabulary{
	"sex":         Sexes,
	"gender":      Genders,
	"races":       Races,
	"ethnicities": Ethnicities,
	"identifiers": IdentifierTypes,
}
