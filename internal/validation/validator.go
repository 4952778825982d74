// Tablescope - Interactive Tabular Dataset Explorer
// Copyright 2026 Tablescope Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tablescope/tablescope

// Package validation wraps go-playground/validator v10 behind a
// thread-safe singleton and translates failures into the API's
// VALIDATION_ERROR shape.
package validation

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// FieldError is a single failed field with the tag that rejected it.
type FieldError struct {
	Field   string
	Tag     string
	Param   string
	Value   interface{}
	Message string
}

func (e FieldError) Error() string {
	return e.Message
}

// RequestValidationError aggregates every failed field of one request.
type RequestValidationError struct {
	fields []FieldError
}

// Fields returns the individual field failures.
func (ve *RequestValidationError) Fields() []FieldError {
	return ve.fields
}

func (ve *RequestValidationError) Error() string {
	if len(ve.fields) == 0 {
		return "validation failed"
	}
	messages := make([]string, len(ve.fields))
	for i, fe := range ve.fields {
		messages[i] = fe.Message
	}
	return strings.Join(messages, "; ")
}

// Details renders the failures as a response details map.
func (ve *RequestValidationError) Details() map[string]interface{} {
	if len(ve.fields) == 1 {
		fe := ve.fields[0]
		return map[string]interface{}{
			"field": fe.Field,
			"tag":   fe.Tag,
			"value": fe.Value,
		}
	}

	fields := make([]map[string]interface{}, len(ve.fields))
	for i, fe := range ve.fields {
		fields[i] = map[string]interface{}{
			"field":   fe.Field,
			"tag":     fe.Tag,
			"message": fe.Message,
		}
	}
	return map[string]interface{}{"fields": fields}
}

// GetValidator returns the singleton validator. The instance caches
// struct metadata, so sharing one is both safe and faster.
func GetValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// ValidateStruct validates s against its validate tags. Returns nil on
// success or a *RequestValidationError describing every failed field.
func ValidateStruct(s interface{}) *RequestValidationError {
	err := GetValidator().Struct(s)
	if err == nil {
		return nil
	}

	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return &RequestValidationError{fields: []FieldError{{
			Field:   "unknown",
			Tag:     "unknown",
			Message: err.Error(),
		}}}
	}

	fields := make([]FieldError, len(validationErrs))
	for i, fe := range validationErrs {
		fields[i] = FieldError{
			Field:   fe.Field(),
			Tag:     fe.Tag(),
			Param:   fe.Param(),
			Value:   fe.Value(),
			Message: translateError(fe),
		}
	}
	return &RequestValidationError{fields: fields}
}

// translateError converts a validator failure to a message in the API's
// register.
func translateError(fe validator.FieldError) string {
	field := fe.Field()
	param := fe.Param()

	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, param)
	case "gte":
		return fmt.Sprintf("%s must be greater than or equal to %s", field, param)
	case "lte":
		return fmt.Sprintf("%s must be less than or equal to %s", field, param)
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", field, param)
	case "lt":
		return fmt.Sprintf("%s must be less than %s", field, param)
	case "min":
		if fe.Kind().String() == "string" {
			return fmt.Sprintf("%s must be at least %s characters", field, param)
		}
		return fmt.Sprintf("%s must be at least %s", field, param)
	case "max":
		if fe.Kind().String() == "string" {
			return fmt.Sprintf("%s must be at most %s characters", field, param)
		}
		return fmt.Sprintf("%s must be at most %s", field, param)
	default:
		return fmt.Sprintf("%s failed %s validation", field, fe.Tag())
	}
}
