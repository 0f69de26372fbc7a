package model

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// RegisterValidations adds the custompath and redirectmethod tags to v.
func RegisterValidations(v *validator.Validate) error {
	if err := v.RegisterValidation("custompath", func(fl validator.FieldLevel) bool {
		return ValidCustomPath(fl.Field().String())
	}); err != nil {
		return fmt.Errorf("failed to register custompath validation: %w", err)
	}

	if err := v.RegisterValidation("redirectmethod", func(fl validator.FieldLevel) bool {
		return RedirectMethod(fl.Field().String()).Valid()
	}); err != nil {
		return fmt.Errorf("failed to register redirectmethod validation: %w", err)
	}

	return nil
}

// NewValidator returns a validator reading the same `binding` tags gin uses.
func NewValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.SetTagName("binding")
	if err := RegisterValidations(v); err != nil {
		panic(err)
	}
	return v
}
