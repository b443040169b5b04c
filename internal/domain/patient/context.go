package patient

import "strings"

// ValidationContext carries the state of a single submission: the raw form
// values as submitted and the errors already reported for it. A new context
// must be created per submission.
type ValidationContext struct {
	form     map[string]interface{}
	checked  map[string]bool
	reported map[string]bool
	rejected map[string]bool
	errs     Errors
}

func NewValidationContext(form map[string]interface{}) *ValidationContext {
	if form == nil {
		form = map[string]interface{}{}
	}
	return &ValidationContext{
		form:     form,
		checked:  make(map[string]bool),
		reported: make(map[string]bool),
		rejected: make(map[string]bool),
	}
}

// Pending returns the submitted string value of field, trimmed. Non-string
// values yield "".
func (vc *ValidationContext) Pending(field string) string {
	if vc == nil {
		return ""
	}
	s, _ := vc.form[field].(string)
	return strings.TrimSpace(s)
}

// Submitted reports whether field was part of the submission.
func (vc *ValidationContext) Submitted(field string) bool {
	if vc == nil {
		return false
	}
	_, ok := vc.form[field]
	return ok
}

// markRejected records that the submitted value of field could not be
// assigned. Its invariants are not checked again.
func (vc *ValidationContext) markRejected(field string) {
	vc.rejected[field] = true
}

// Rejected reports whether the mutator of field refused the submitted value.
func (vc *ValidationContext) Rejected(field string) bool {
	if vc == nil {
		return false
	}
	return vc.rejected[field]
}

// once returns true the first time it is called for key.
func (vc *ValidationContext) once(key string) bool {
	if vc == nil {
		return true
	}
	if vc.checked[key] {
		return false
	}
	vc.checked[key] = true
	return true
}

// Report records err unless an identical error was already reported for the
// same field. It returns whether err was new.
func (vc *ValidationContext) Report(err FieldError) bool {
	key := err.FieldName() + "\x00" + err.Error()
	if vc.reported[key] {
		return false
	}
	vc.reported[key] = true
	vc.errs = append(vc.errs, err)
	return true
}

// Err returns the accumulated errors, or nil when the submission is valid.
func (vc *ValidationContext) Err() error {
	if len(vc.errs) == 0 {
		return nil
	}
	return vc.errs
}
