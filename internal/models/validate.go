package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Kinds of field errors
const (
	KindMissing     = "missing"
	KindType        = "type"
	KindNull        = "null"
	KindRange       = "range"
	KindInvalidJSON = "invalid_json"
)

// FieldError describes one offending field of a payload
type FieldError struct {
	Field   string
	Kind    string
	Message string
}

// ValidationError lists every offending field of a rejected payload
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		if f.Field == "" {
			parts[i] = f.Message
			continue
		}
		parts[i] = f.Field + ": " + f.Message
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) has(field string) bool {
	for _, f := range e.Fields {
		if f.Field == field {
			return true
		}
	}
	return false
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(jsonName)
	return v
}

// Decode parses a JSON object into T, applies declared defaults and
// validates it. Every field is decoded on its own so that all offending
// fields are reported, not just the first.
func Decode[T any](body []byte) (T, error) {
	var rec T

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil || raw == nil {
		return rec, &ValidationError{Fields: []FieldError{{
			Kind:    KindInvalidJSON,
			Message: "body must be a JSON object",
		}}}
	}

	v := reflect.ValueOf(&rec).Elem()
	t := v.Type()
	order := make(map[string]int, t.NumField())
	verr := &ValidationError{}

	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		name := jsonName(sf)
		if name == "" {
			continue
		}
		order[name] = i
		fv := v.Field(i)

		data, present := raw[name]
		switch {
		case !present && isRequired(sf):
			verr.Fields = append(verr.Fields, missingField(name))
		case !present:
			if def, ok := sf.Tag.Lookup("default"); ok {
				if err := setDefault(fv, def); err != nil {
					panic(fmt.Sprintf("models: bad default for %s.%s: %v", t.Name(), sf.Name, err))
				}
			}
		case bytes.Equal(bytes.TrimSpace(data), []byte("null")):
			if isRequired(sf) {
				verr.Fields = append(verr.Fields, missingField(name))
			} else if sf.Type.Kind() != reflect.Ptr {
				verr.Fields = append(verr.Fields, FieldError{
					Field:   name,
					Kind:    KindNull,
					Message: "must not be null",
				})
			}
		default:
			if err := decodeField(fv, data); err != nil {
				verr.Fields = append(verr.Fields, FieldError{
					Field:   name,
					Kind:    KindType,
					Message: typeMessage(sf.Type, err),
				})
			}
		}
	}

	if err := validate.Struct(rec); err != nil {
		var ves validator.ValidationErrors
		if !errors.As(err, &ves) {
			return rec, fmt.Errorf("validating %s: %w", t.Name(), err)
		}
		for _, fe := range ves {
			if verr.has(fe.Field()) {
				continue
			}
			verr.Fields = append(verr.Fields, fieldError(fe))
		}
	}

	if len(verr.Fields) > 0 {
		sort.SliceStable(verr.Fields, func(i, j int) bool {
			return order[verr.Fields[i].Field] < order[verr.Fields[j].Field]
		})
		return rec, verr
	}
	return rec, nil
}

// Validate checks a record built in code against its declared constraints.
// Defaults are not applied.
func Validate(rec any) error {
	err := validate.Struct(rec)
	if err == nil {
		return nil
	}

	var ves validator.ValidationErrors
	if !errors.As(err, &ves) {
		return err
	}
	verr := &ValidationError{}
	for _, fe := range ves {
		verr.Fields = append(verr.Fields, fieldError(fe))
	}
	return verr
}

func fieldError(fe validator.FieldError) FieldError {
	switch fe.Tag() {
	case "gte":
		return FieldError{Field: fe.Field(), Kind: KindRange, Message: "must be greater than or equal to " + fe.Param()}
	case "lte":
		return FieldError{Field: fe.Field(), Kind: KindRange, Message: "must be less than or equal to " + fe.Param()}
	default:
		return FieldError{Field: fe.Field(), Kind: KindRange, Message: "failed " + fe.Tag() + " constraint"}
	}
}

func jsonName(sf reflect.StructField) string {
	name, _, _ := strings.Cut(sf.Tag.Get("json"), ",")
	if name == "-" {
		return ""
	}
	if name == "" {
		return sf.Name
	}
	return name
}

// isRequired reports whether the field carries required:"true". A required
// field must be present and non-null; an empty string is a valid value.
func isRequired(sf reflect.StructField) bool {
	return sf.Tag.Get("required") == "true"
}

func missingField(name string) FieldError {
	return FieldError{Field: name, Kind: KindMissing, Message: "field required"}
}

// decodeField unmarshals data into fv. Integer fields also take integral
// numbers written with a fraction, such as 5.0.
func decodeField(fv reflect.Value, data json.RawMessage) error {
	err := json.Unmarshal(data, fv.Addr().Interface())
	if err == nil {
		return nil
	}
	switch fv.Kind() {
	case reflect.Int, reflect.Int32, reflect.Int64:
	default:
		return err
	}

	var f float64
	if json.Unmarshal(data, &f) != nil || f != math.Trunc(f) || math.Abs(f) >= 1<<63 {
		return err
	}
	n := int64(f)
	if fv.OverflowInt(n) {
		return err
	}
	fv.SetInt(n)
	return nil
}

func setDefault(fv reflect.Value, def string) error {
	switch fv.Kind() {
	case reflect.String:
		fv.SetString(def)
	case reflect.Int, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(def, 10, 64)
		if err != nil {
			return err
		}
		fv.SetInt(n)
	case reflect.Float64:
		f, err := strconv.ParseFloat(def, 64)
		if err != nil {
			return err
		}
		fv.SetFloat(f)
	case reflect.Bool:
		b, err := strconv.ParseBool(def)
		if err != nil {
			return err
		}
		fv.SetBool(b)
	default:
		return fmt.Errorf("unsupported kind %s", fv.Kind())
	}
	return nil
}

func typeMessage(t reflect.Type, err error) string {
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	switch t.Kind() {
	case reflect.String:
		return "must be a string"
	case reflect.Int, reflect.Int32, reflect.Int64:
		return "must be an integer"
	case reflect.Float32, reflect.Float64:
		return "must be a number"
	case reflect.Bool:
		return "must be a boolean"
	}
	if t == reflect.TypeOf(Date{}) {
		return "must be a date in YYYY-MM-DD form"
	}
	return err.Error()
}
