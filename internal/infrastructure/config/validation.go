package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Validator checks a loaded Config against the validate tags on its
// mediator, database, daemon, logging, metrics and demo sections
type Validator struct {
	validate *validator.Validate
}

// NewValidator returns a validator that also understands pow2, the rule
// mediator.buffer_size carries
func NewValidator() *Validator {
	v := validator.New()
	_ = v.RegisterValidation("pow2", isPowerOfTwo)
	return &Validator{validate: v}
}

// Validate reports every failing field of i in one error
func (v *Validator) Validate(i interface{}) error {
	err := v.validate.Struct(i)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	return describeFieldErrors(fieldErrs)
}

// describeFieldErrors names each field by its section path, e.g.
// Mediator.BufferSize, along with the rule and the rejected value
func describeFieldErrors(fieldErrs validator.ValidationErrors) error {
	lines := make([]string, 0, len(fieldErrs))
	for _, e := range fieldErrs {
		path := strings.TrimPrefix(e.Namespace(), "Config.")
		rule := e.Tag()
		if e.Param() != "" {
			rule += "=" + e.Param()
		}
		lines = append(lines, fmt.Sprintf("%s violates %s (got %v)", path, rule, e.Value()))
	}
	return fmt.Errorf("invalid configuration:\n  %s", strings.Join(lines, "\n  "))
}

// isPowerOfTwo lets the ring index slots with a mask instead of a modulo
func isPowerOfTwo(fl validator.FieldLevel) bool {
	n := fl.Field().Int()
	return n > 0 && n&(n-1) == 0
}

// ValidateConfig validates every section of cfg
func ValidateConfig(cfg *Config) error {
	return NewValidator().Validate(cfg)
}
