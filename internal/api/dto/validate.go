package dto

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/radieske/matka-settlement/internal/domain"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// nomes de campo como aparecem no JSON
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate aplica as tags e devolve a primeira falha como ValidationError.
func Validate(req any) error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}
	var ves validator.ValidationErrors
	if errors.As(err, &ves) && len(ves) > 0 {
		fe := ves[0]
		field := strings.TrimPrefix(fe.Namespace(), reflect.Indirect(reflect.ValueOf(req)).Type().Name()+".")
		if fe.Param() != "" {
			return domain.Invalid(field, "failed %s=%s", fe.Tag(), fe.Param())
		}
		return domain.Invalid(field, "failed %s", fe.Tag())
	}
	return domain.Invalid("body", "%v", err)
}
