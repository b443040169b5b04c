package patient

import (
	"strings"

	"github.com/go-playground/validator/v10"
)

// TagEmailChecker validates addresses with the validator "email" rule.
type TagEmailChecker struct {
	validate *validator.Validate
}

func NewEmailChecker() *TagEmailChecker {
	return &TagEmailChecker{validate: validator.New()}
}

func (c *TagEmailChecker) IsValid(address string) bool {
	address = strings.TrimSpace(address)
	if address == "" {
		return false
	}
	return c.validate.Var(address, "required,email") == nil
}
