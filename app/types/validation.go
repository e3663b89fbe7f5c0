package types

import (
	"errors"

	validation "github.com/go-ozzo/ozzo-validation"
)

var errValuesMustMatch = errors.New("passwords do not match")

// ValidateStringEquals checks a confirmation field against its original.
func ValidateStringEquals(str string) validation.RuleFunc {
	return func(value interface{}) error {
		s, _ := value.(string)
		if s != str {
			return errValuesMustMatch
		}
		return nil
	}
}

// FieldErrors flattens ozzo field errors into a field => message map.
// The boolean is false when err is not a field validation error.
func FieldErrors(err error) (map[string]string, bool) {
	var fieldErrs validation.Errors
	if !errors.As(err, &fieldErrs) {
		return nil, false
	}

	out := make(map[string]string, len(fieldErrs))
	for field, fieldErr := range fieldErrs {
		if fieldErr != nil {
			out[field] = fieldErr.Error()
		}
	}
	return out, true
}
