package hipaa

// PatientPHIFields are the patient columns encrypted at rest. Names stay in
// clear text so the registry can be searched by name; identifying numbers
// (MRN, patient ID) must stay unique-indexable.
var PatientPHIFields = []string{"email", "phone", "mobile"}

// IsPHIField reports whether column is encrypted at rest.
func IsPHIField(column string) bool {
	for _, f := range PatientPHIFields {
		if f == column {
			return true
		}
	}
	return false
}
