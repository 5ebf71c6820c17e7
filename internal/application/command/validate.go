package command

import (
	"errors"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"

	"github.com/agepath/placement-engine/internal/domain/shared"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
	translator   ut.Translator

	requiredTag  = "required"
	requiredText = "this field is required"
)

// inputValidator returns the shared validator, building it on first use.
func inputValidator() (*validator.Validate, ut.Translator) {
	validateOnce.Do(func() {
		validate = validator.New()

		_en := en.New()
		uni := ut.New(_en, _en)
		translator, _ = uni.GetTranslator("en")
		_ = en_translations.RegisterDefaultTranslations(validate, translator)

		// Use JSON tag names for errors instead of Go struct names.
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})

		_ = validate.RegisterTranslation(
			requiredTag, translator,
			func(t ut.Translator) error { return t.Add(requiredTag, requiredText, true) },
			func(t ut.Translator, fe validator.FieldError) string {
				s, _ := t.T(requiredTag, fe.Field())
				return s
			},
		)
	})
	return validate, translator
}

// validateInput runs struct tag validation and converts failures into a
// validation DomainError with one FieldError per failing field.
func validateInput(domain, op string, input interface{}) error {
	v, trans := inputValidator()
	err := v.Struct(input)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return shared.Internal(domain, op, "input validation failed", err)
	}

	fields := make([]shared.FieldError, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, shared.FieldError{
			Field:   fe.Field(),
			Message: fe.Translate(trans),
		})
	}
	return shared.Invalid(domain, op, "invalid input", fields...)
}
