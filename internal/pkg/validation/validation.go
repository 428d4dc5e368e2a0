package validation

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/veli/attendix/internal/pkg/apperrors"
)

// validate is the shared validator instance. Struct tags on the model types
// carry the rules; this package only owns the instance and error translation.
var validate = validator.New()

func init() {
	// Use JSON tag names in error messages instead of Go field names.
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
}

// Struct validates a struct against its validate tags, returning an
// apperrors validation error naming the first offending field.
func Struct(s interface{}) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return apperrors.NewValidationError(formatFieldError(verrs[0]))
	}
	return apperrors.NewValidationError(err.Error())
}

func formatFieldError(e validator.FieldError) string {
	field := e.Field()
	switch e.Tag() {
	case "required":
		return field + " is required"
	case "oneof":
		return field + " must be one of: " + e.Param()
	case "min":
		return field + " must be at least " + e.Param()
	case "max":
		return field + " must be at most " + e.Param()
	case "gt":
		return field + " must be greater than " + e.Param()
	default:
		return field + " failed '" + e.Tag() + "' validation"
	}
}
