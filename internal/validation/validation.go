// Package validation holds the pure input checks shared by the storefront handlers:
// text sanitising, contact-field formats and struct rule checks.
package validation

import (
	"errors"
	"fmt"
	"html"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
)

const maxEmailLen = 255

var (
	strict = bluemonday.StrictPolicy()

	emailRe   = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	phoneRe   = regexp.MustCompile(`^[6-9][0-9]{9}$`)
	pincodeRe = regexp.MustCompile(`^[1-9][0-9]{5}$`)

	validate = newValidator()

	markup = strings.NewReplacer("<", "", ">", "")
)

// Error is a user-facing validation failure.
type Error struct {
	Field   string
	Message string
}

func (e *Error) Error() string { return e.Message }

func Errorf(field, format string, args ...any) *Error {
	return &Error{Field: field, Message: fmt.Sprintf(format, args...)}
}

// SanitizeText strips every HTML element (script/style content included) and trims whitespace.
func SanitizeText(s string) string {
	clean := html.UnescapeString(strict.Sanitize(s))
	if strings.ContainsAny(clean, "<>") {
		clean = markup.Replace(clean)
	}
	return strings.TrimSpace(clean)
}

// ValidateEmail sanitises and lowercases the address before checking its shape.
func ValidateEmail(email string) (string, error) {
	clean := strings.ToLower(SanitizeText(email))
	switch {
	case clean == "":
		return "", Errorf("customerEmail", "Email is required")
	case !emailRe.MatchString(clean):
		return clean, Errorf("customerEmail", "Invalid email format")
	case len(clean) > maxEmailLen:
		return clean, Errorf("customerEmail", "Email too long")
	}
	return clean, nil
}

// ValidatePhone accepts 10-digit mobile numbers starting with 6-9.
func ValidatePhone(phone string) (string, error) {
	clean := SanitizeText(phone)
	if !phoneRe.MatchString(clean) {
		return clean, Errorf("customerPhone", "Invalid phone number. Must be 10 digits starting with 6-9")
	}
	return clean, nil
}

// ValidatePincode accepts 6-digit postal codes not starting with 0.
func ValidatePincode(pincode string) (string, error) {
	clean := SanitizeText(pincode)
	if !pincodeRe.MatchString(clean) {
		return clean, Errorf("pincode", "Invalid pincode. Must be 6 digits not starting with 0")
	}
	return clean, nil
}

// Struct runs the `validate` tag rules and reports the first failure using JSON field names.
func Struct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var fes validator.ValidationErrors
	if !errors.As(err, &fes) || len(fes) == 0 {
		return err
	}
	return fieldError(fes[0])
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	return v
}

func fieldError(fe validator.FieldError) *Error {
	field := fe.Namespace()
	if i := strings.IndexByte(field, '.'); i >= 0 {
		field = field[i+1:]
	}

	isString := fe.Kind() == reflect.String
	switch fe.Tag() {
	case "required":
		return Errorf(field, "%s is required", field)
	case "min":
		if isString {
			return Errorf(field, "%s must be at least %s characters", field, fe.Param())
		}
		if fe.Kind() == reflect.Slice {
			return Errorf(field, "%s must contain at least %s entries", field, fe.Param())
		}
		return Errorf(field, "%s must be at least %s", field, fe.Param())
	case "max":
		if isString {
			return Errorf(field, "%s must be at most %s characters", field, fe.Param())
		}
		if fe.Kind() == reflect.Slice {
			return Errorf(field, "%s must contain at most %s entries", field, fe.Param())
		}
		return Errorf(field, "%s must be at most %s", field, fe.Param())
	case "gt":
		return Errorf(field, "%s must be greater than %s", field, fe.Param())
	case "gte":
		return Errorf(field, "%s must be at least %s", field, fe.Param())
	case "lte":
		return Errorf(field, "%s must be at most %s", field, fe.Param())
	case "oneof":
		return Errorf(field, "%s must be one of: %s", field, strings.ReplaceAll(fe.Param(), " ", ", "))
	case "url", "http_url":
		return Errorf(field, "%s must be a valid URL", field)
	default:
		return Errorf(field, "%s is invalid", field)
	}
}
