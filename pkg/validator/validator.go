package validator

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// BVNLength is the number of digits in a Bank Verification Number.
const BVNLength = 11

var (
	once     sync.Once
	validate *validator.Validate
)

// FieldError is one failed rule on one request field, named by its JSON key.
type FieldError struct {
	Field string `json:"field"`
	Tag   string `json:"tag"`
	Param string `json:"param,omitempty"`
}

// Message renders the failure the way clients see it.
func (f FieldError) Message() string {
	field := humanise(f.Field)
	switch f.Tag {
	case "required":
		return "Please add " + article(field) + " " + field
	case "email":
		return "Please add a valid email"
	case "bvn":
		return fmt.Sprintf("%s must be %d digits", field, BVNLength)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, strings.ReplaceAll(f.Param, " ", ", "))
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", field, f.Param)
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, f.Param)
	}
	if f.Param != "" {
		return fmt.Sprintf("%s is invalid (%s=%s)", field, f.Tag, f.Param)
	}
	return fmt.Sprintf("%s is invalid (%s)", field, f.Tag)
}

// FieldErrors is returned by Validate when at least one rule fails.
type FieldErrors []FieldError

func (fe FieldErrors) Error() string {
	if len(fe) == 0 {
		return "validation failed"
	}
	return strings.Join(fe.Messages(), "; ")
}

// Messages returns one client message per failure, in field order.
func (fe FieldErrors) Messages() []string {
	out := make([]string, len(fe))
	for i, f := range fe {
		out[i] = f.Message()
	}
	return out
}

// Validate runs the struct tags of v. Rule failures come back as FieldErrors; anything else
// (a nil or non-struct argument) is returned untouched.
func Validate(v any) error {
	err := instance().Struct(v)
	if err == nil {
		return nil
	}

	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return err
	}
	out := make(FieldErrors, 0, len(ve))
	for _, fe := range ve {
		out = append(out, FieldError{Field: fe.Field(), Tag: fe.Tag(), Param: fe.Param()})
	}
	return out
}

// IsBVN reports whether value has the shape of a Bank Verification Number.
func IsBVN(value string) bool {
	if len(value) != BVNLength {
		return false
	}
	return strings.Trim(value, "0123456789") == ""
}

func instance() *validator.Validate {
	once.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(jsonName)
		_ = validate.RegisterValidation("bvn", func(fl validator.FieldLevel) bool {
			return IsBVN(fl.Field().String())
		})
	})
	return validate
}

func jsonName(fld reflect.StructField) string {
	name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
	if name == "" || name == "-" {
		return fld.Name
	}
	return name
}

func humanise(field string) string {
	if field == "" {
		return "field"
	}
	return strings.ToLower(strings.ReplaceAll(field, "_", " "))
}

func article(noun string) string {
	if noun != "" && strings.ContainsRune("aeiou", rune(noun[0])) {
		return "an"
	}
	return "a"
}
