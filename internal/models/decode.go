package models

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	jsoniter "github.com/json-iterator/go"
)

var codec = jsoniter.ConfigCompatibleWithStandardLibrary

// recordIDPattern matches Record Source identifiers.
var recordIDPattern = regexp.MustCompile(`^[a-zA-Z0-9]{15}$`)

// IsValidRecordID reports whether id is a well-formed record identifier.
func IsValidRecordID(id string) bool {
	return recordIDPattern.MatchString(id)
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report json field names rather than Go field names.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	mustRegister(v, "state", func(fl validator.FieldLevel) bool {
		return IsValidState(fl.Field().String())
	})
	mustRegister(v, "recordid", func(fl validator.FieldLevel) bool {
		return IsValidRecordID(fl.Field().String())
	})
	mustRegister(v, "datetime_any", func(fl validator.FieldLevel) bool {
		_, err := ParseDateTime(fl.Field().String())
		return err == nil
	})
	return v
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("register %s validation: %v", tag, err))
	}
}

// DecodeError reports a Record Source payload that does not match the expected
// shape of a collection's records.
type DecodeError struct {
	Collection string
	Field      string
	Err        error
}

func (e *DecodeError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("decode %s record: field %q: %v", e.Collection, e.Field, e.Err)
	}
	return fmt.Sprintf("decode %s record: %v", e.Collection, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Decode parses one raw record into T and validates it. Any mismatch is
// returned as a *DecodeError.
func Decode[T any](collection string, raw []byte) (T, error) {
	var out T
	if err := codec.Unmarshal(raw, &out); err != nil {
		return out, &DecodeError{Collection: collection, Err: err}
	}
	if err := validate.Struct(&out); err != nil {
		return out, decodeValidationError(collection, err)
	}
	return out, nil
}

// DecodeAll decodes every raw record, failing on the first invalid one.
func DecodeAll[T any, R ~[]byte](collection string, raws []R) ([]T, error) {
	out := make([]T, 0, len(raws))
	for _, raw := range raws {
		item, err := Decode[T](collection, []byte(raw))
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, nil
}

func decodeValidationError(collection string, err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return &DecodeError{
			Collection: collection,
			Field:      fe.Namespace(),
			Err:        fmt.Errorf("failed %q validation", fe.Tag()),
		}
	}
	return &DecodeError{Collection: collection, Err: err}
}

// ValidationError is returned by Validate for bad client input.
type ValidationError struct {
	Field string
	Tag   string
}

func (e *ValidationError) Error() string {
	switch e.Tag {
	case "required":
		return fmt.Sprintf("%s is required", e.Field)
	case "state":
		return "Invalid state"
	case "recordid":
		return fmt.Sprintf("Invalid %s format", e.Field)
	case "eqfield":
		return "Passwords do not match"
	default:
		return fmt.Sprintf("%s is invalid", e.Field)
	}
}

// Validate checks client input against its validate tags. The first failing
// field is returned as a *ValidationError.
func Validate(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return &ValidationError{Field: verrs[0].Field(), Tag: verrs[0].Tag()}
	}
	return err
}
