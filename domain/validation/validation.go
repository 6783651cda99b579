// Package validation evaluates declarative rule sets against domain records.
//
// A rule set maps a Go struct field name to a validator/v10 rule expression.
// Each Schema owns its own validator instance, so two schemas may register
// different rules for the same record type (the create and update variants
// of a record share a base and differ only in a handful of fields).
package validation

import (
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Rules maps struct field names to rule expressions
type Rules map[string]string

// TypeRules binds a rule set to the record type it applies to
type TypeRules struct {
	Type  interface{}
	Rules Rules
}

// StructRule is a cross-field rule run once per value of its types
type StructRule struct {
	Fn    validator.StructLevelFunc
	Types []interface{}
}

// Violation describes a single failed rule
type Violation struct {
	Field   string `json:"field"`
	Rule    string `json:"rule"`
	Param   string `json:"param,omitempty"`
	Message string `json:"message"`
}

func (v Violation) String() string {
	return v.Message
}

// Schema is a named, immutable set of rules
type Schema struct {
	name     string
	validate *validator.Validate
}

var (
	clockPattern    = regexp.MustCompile(`^([01][0-9]|2[0-3]):[0-5][0-9]$`)
	userNamePattern = regexp.MustCompile(`^[a-zA-Z0-9_.-]+$`)
)

// NewSchema builds a schema from per-type rule sets and cross-field rules
func NewSchema(name string, rules []TypeRules, structRules ...StructRule) *Schema {
	v := validator.New()

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return fld.Name
		}
		return name
	})

	// Registration only fails on an empty tag or nil function.
	_ = v.RegisterValidation("clock", func(fl validator.FieldLevel) bool {
		return clockPattern.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("username", func(fl validator.FieldLevel) bool {
		return userNamePattern.MatchString(fl.Field().String())
	})

	for _, tr := range rules {
		v.RegisterStructValidationMapRules(tr.Rules, tr.Type)
	}
	for _, sr := range structRules {
		v.RegisterStructValidation(sr.Fn, sr.Types...)
	}

	return &Schema{name: name, validate: v}
}

// Name returns the schema name
func (s *Schema) Name() string {
	return s.name
}

// Validate checks record against the schema and returns every violation.
// A nil result means the record is valid.
func (s *Schema) Validate(record interface{}) []Violation {
	err := s.validate.Struct(record)
	if err == nil {
		return nil
	}

	fieldErrors, ok := err.(validator.ValidationErrors)
	if !ok {
		return []Violation{{Field: "", Rule: "invalid", Message: err.Error()}}
	}

	violations := make([]Violation, 0, len(fieldErrors))
	for _, fe := range fieldErrors {
		violations = append(violations, toViolation(fe))
	}
	return violations
}

// Extend returns a copy of base with overrides applied
func Extend(base Rules, overrides Rules) Rules {
	merged := make(Rules, len(base)+len(overrides))
	for field, rule := range base {
		merged[field] = rule
	}
	for field, rule := range overrides {
		merged[field] = rule
	}
	return merged
}

// fieldPath strips the root struct name from a validator namespace
func fieldPath(namespace string) string {
	if idx := strings.Index(namespace, "."); idx >= 0 {
		return namespace[idx+1:]
	}
	return namespace
}

func toViolation(fe validator.FieldError) Violation {
	field := fieldPath(fe.Namespace())
	return Violation{
		Field:   field,
		Rule:    fe.Tag(),
		Param:   fe.Param(),
		Message: message(field, fe),
	}
}

func message(field string, fe validator.FieldError) string {
	numeric := false
	switch fe.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		numeric = true
	}

	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "isdefault":
		return fmt.Sprintf("%s must not be supplied", field)
	case "min", "gte":
		if numeric {
			return fmt.Sprintf("%s must be at least %s", field, fe.Param())
		}
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("%s must contain at least %s items", field, fe.Param())
		}
		return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
	case "max", "lte":
		if numeric {
			return fmt.Sprintf("%s must be at most %s", field, fe.Param())
		}
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("%s must contain at most %s items", field, fe.Param())
		}
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", field, fe.Param())
	case "len":
		return fmt.Sprintf("%s must be exactly %s characters", field, fe.Param())
	case "email":
		return fmt.Sprintf("%s must be a valid email", field)
	case "uuid", "uuid4":
		return fmt.Sprintf("%s must be a valid UUID", field)
	case "url":
		return fmt.Sprintf("%s must be a valid URL", field)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, fe.Param())
	case "alphanum":
		return fmt.Sprintf("%s must contain only letters and digits", field)
	case "clock":
		return fmt.Sprintf("%s must be a time of day formatted HH:MM", field)
	case "username":
		return fmt.Sprintf("%s may contain only letters, digits, '.', '_' and '-'", field)
	case "ltefield":
		return fmt.Sprintf("%s must not exceed %s", field, fe.Param())
	case "maxsum":
		return fmt.Sprintf("%s brings the total above %s", field, fe.Param())
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}
