// Package validate checks typed form input and reports friendly per-field messages.
package validate

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/splax/gameportal/internal/domain"
)

var amountPattern = regexp.MustCompile(`^\d+(\.\d{1,2})?$`)

var messages = map[string]string{
	"required": "%s is required.",
	"email":    "%s must be a valid email address.",
	"min":      "%s must be at least %s characters long.",
	"max":      "%s must be no longer than %s characters.",
	"datetime": "%s must be a date in the form YYYY-MM-DD.",
	"amount":   "%s must be a positive amount with at most two decimals.",
	"numeric":  "%s must contain digits only.",
	"len":      "%s must be exactly %s characters long.",
}

var instance = sync.OnceValue(func() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("form"), ",", 2)[0]
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	_ = v.RegisterValidation("amount", func(fl validator.FieldLevel) bool {
		value := fl.Field().String()
		return amountPattern.MatchString(value) && strings.Trim(value, "0.") != ""
	})
	return v
})

// Struct validates s and returns a *domain.ValidationError keyed by form field name,
// or nil when s is valid.
func Struct(s any) error {
	err := instance().Struct(s)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}
	out := &domain.ValidationError{Fields: make(map[string]string, len(fieldErrs))}
	for _, fe := range fieldErrs {
		if _, seen := out.Fields[fe.Field()]; seen {
			continue
		}
		out.Fields[fe.Field()] = message(fe)
	}
	return out
}

func message(fe validator.FieldError) string {
	label := fe.Field()
	tmpl, ok := messages[fe.Tag()]
	if !ok {
		return fmt.Sprintf("%s is invalid.", label)
	}
	if strings.Count(tmpl, "%s") == 2 {
		return fmt.Sprintf(tmpl, label, fe.Param())
	}
	return fmt.Sprintf(tmpl, label)
}
