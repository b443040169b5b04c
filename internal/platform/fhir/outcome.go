package fhir

import "fmt"

const (
	IssueSeverityFatal   = "fatal"
	IssueSeverityError   = "error"
	IssueSeverityWarning = "warning"
)

const (
	IssueTypeInvalid      = "invalid"
	IssueTypeRequired     = "required"
	IssueTypeValue        = "value"
	IssueTypeNotFound     = "not-found"
	IssueTypeConflict     = "conflict"
	IssueTypeProcessing   = "processing"
	IssueTypeSecurity     = "security"
	IssueTypeDuplicate    = "duplicate"
	IssueTypeBusinessRule = "business-rule"
	IssueTypeException    = "exception"
)

// OperationOutcome is returned by the /fhir endpoints on failure.
type OperationOutcome struct {
	ResourceType string                  `json:"resourceType"`
	Issue        []OperationOutcomeIssue `json:"issue"`
}

type OperationOutcomeIssue struct {
	Severity    string           `json:"severity"`
	Code        string           `json:"code"`
	Details     *CodeableConcept `json:"details,omitempty"`
	Diagnostics string           `json:"diagnostics,omitempty"`
	Expression  []string         `json:"expression,omitempty"`
}

func NewOperationOutcome(severity, code, diagnostics string) *OperationOutcome {
	return &OperationOutcome{
		ResourceType: "OperationOutcome",
		Issue:        []OperationOutcomeIssue{{Severity: severity, Code: code, Diagnostics: diagnostics}},
	}
}

func ErrorOutcome(diagnostics string) *OperationOutcome {
	return NewOperationOutcome(IssueSeverityError, IssueTypeProcessing, diagnostics)
}

func NotFoundOutcome(resourceType, id string) *OperationOutcome {
	return NewOperationOutcome(IssueSeverityError, IssueTypeNotFound, resourceType+"/"+id+" not found")
}

// ValidationOutcome reports an invalid element at field.
func ValidationOutcome(field, message string) *OperationOutcome {
	o := NewOperationOutcome(IssueSeverityError, IssueTypeInvalid, fmt.Sprintf("%s: %s", field, message))
	o.Issue[0].Expression = []string{field}
	return o
}

func ConflictOutcome(diagnostics string) *OperationOutcome {
	return NewOperationOutcome(IssueSeverityError, IssueTypeConflict, diagnostics)
}

func InternalErrorOutcome(diagnostics string) *OperationOutcome {
	return NewOperationOutcome(IssueSeverityFatal, IssueTypeException, diagnostics)
}

// OutcomeBuilder accumulates issues for a multi-error response.
type OutcomeBuilder struct {
	issues []OperationOutcomeIssue
}

func NewOutcomeBuilder() *OutcomeBuilder {
	return &OutcomeBuilder{}
}

func (b *OutcomeBuilder) AddIssue(severity, code, diagnostics string) *OutcomeBuilder {
	b.issues = append(b.issues, OperationOutcomeIssue{Severity: severity, Code: code, Diagnostics: diagnostics})
	return b
}

func (b *OutcomeBuilder) AddIssueWithLocation(severity, code, diagnostics, location string) *OutcomeBuilder {
	b.issues = append(b.issues, OperationOutcomeIssue{
		Severity:    severity,
		Code:        code,
		Diagnostics: diagnostics,
		Expression:  []string{location},
	})
	return b
}

func (b *OutcomeBuilder) Build() *OperationOutcome {
	issues := b.issues
	if issues == nil {
		issues = []OperationOutcomeIssue{}
	}
	return &OperationOutcome{ResourceType: "OperationOutcome", Issue: issues}
}

// HasErrors reports whether any issue is an error or fatal.
func (o *OperationOutcome) HasErrors() bool {
	for _, issue := range o.Issue {
		if issue.Severity == IssueSeverityError || issue.Severity == IssueSeverityFatal {
			return true
		}
	}
	return false
}
