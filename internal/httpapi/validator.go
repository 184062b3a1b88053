package httpapi

import (
	"github.com/go-playground/validator/v10"
)

// requestValidator 基于 go-playground/validator 实现 echo.Validator
type requestValidator struct {
	v *validator.Validate
}

func newRequestValidator() *requestValidator {
	return &requestValidator{v: validator.New()}
}

func (rv *requestValidator) Validate(i any) error {
	return rv.v.Struct(i)
}
