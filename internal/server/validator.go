package server

import (
	"errors"
	"fmt"

	"island-tracker/internal/domain"

	"github.com/go-playground/validator/v10"
)

type Validator struct {
	validate *validator.Validate
}

func NewValidator() *Validator {
	v := validator.New()
	mustRegister(v, "mapcode", validateMapCode)
	return &Validator{validate: v}
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("failed to register %s validation: %v", tag, err))
	}
}

func validateMapCode(fl validator.FieldLevel) bool {
	code := fl.Field().String()
	if code == "" {
		return true
	}
	_, err := domain.ParseMapCode(code)
	return err == nil
}

// Struct validates s and reports failures as domain input errors.
func (v *Validator) Struct(s any) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return errors.Join(domain.ErrInvalidInput, err)
	}
	for _, e := range validationErrors {
		if e.Field() == "Code" {
			if e.Tag() == "required" {
				return domain.ErrMapCodeRequired
			}
			return domain.ErrInvalidMapCode
		}
	}
	return domain.ErrInvalidInput
}
