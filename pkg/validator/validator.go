package validator

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	playground "github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"
)

// Validator provides validation functionality
type Validator interface {
	Validate(interface{}) error
}

// FieldError is one field-level complaint
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Errors is returned when one or more fields fail validation
type Errors []FieldError

func (e Errors) Error() string {
	return strings.Join(e.Messages(), "; ")
}

// Messages returns the complaints in field order.
func (e Errors) Messages() []string {
	out := make([]string, len(e))
	for i, fe := range e {
		out[i] = fe.Message
	}
	return out
}

type validator struct {
	v *playground.Validate
}

// New returns a validator reading `validate` tags and naming fields by their json name.
func New() Validator {
	v := playground.New()
	UseJSONNames(v)
	RegisterRules(v)
	return &validator{v: v}
}

// RegisterRules adds the tags the models use beyond the built-in set.
// notblank rejects strings that are empty after trimming whitespace.
func RegisterRules(v *playground.Validate) {
	_ = v.RegisterValidation("notblank", validators.NotBlank)
}

// UseJSONNames makes v report fields by their json name.
func UseJSONNames(v *playground.Validate) {
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
}

func (v *validator) Validate(obj interface{}) error {
	return Translate(v.v.Struct(obj))
}

// Translate converts playground validation errors into Errors and passes
// anything else through unchanged.
func Translate(err error) error {
	if err == nil {
		return nil
	}

	var verrs playground.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	out := make(Errors, 0, len(verrs))
	for _, fe := range verrs {
		field := fe.Namespace()
		if i := strings.IndexByte(field, '.'); i >= 0 {
			field = field[i+1:]
		}
		out = append(out, FieldError{Field: field, Message: message(field, fe)})
	}
	return out
}

func message(field string, fe playground.FieldError) string {
	switch fe.Tag() {
	case "required", "notblank":
		return fmt.Sprintf("%s is required", field)
	case "email":
		return fmt.Sprintf("%s must be a valid email", field)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, strings.ReplaceAll(fe.Param(), " ", ", "))
	case "min":
		switch fe.Kind() {
		case reflect.Slice:
			return fmt.Sprintf("%s must contain at least %s item(s)", field, fe.Param())
		case reflect.String:
			return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
		}
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "len":
		return fmt.Sprintf("%s must be %s characters long", field, fe.Param())
	case "numeric":
		return fmt.Sprintf("%s must be numeric", field)
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}
