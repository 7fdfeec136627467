package handler

import (
	"reflect"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
)

// Validator adapts go-playground/validator to echo.Validator.  Field names
// in messages are the JSON names clients send.
type Validator struct {
	validate   *validator.Validate
	translator ut.Translator
}

// NewValidator builds a validator with English translations.
func NewValidator() *Validator {
	locale := en.New()
	translator, _ := ut.New(locale, locale).GetTranslator("en")

	validate := validator.New()
	_ = en_translations.RegisterDefaultTranslations(validate, translator)

	// Use JSON tag names for errors instead of Go struct names.
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	registerTranslation(validate, translator, "required", "{0} is required")
	registerTranslation(validate, translator, "oneof", "{0} must be one of: {1}")

	return &Validator{validate: validate, translator: translator}
}

// Validate implements echo.Validator.
func (v *Validator) Validate(i interface{}) error {
	return v.validate.Struct(i)
}

// Translate renders validation errors as field -> message plus a single
// summary line.
func (v *Validator) Translate(errs validator.ValidationErrors) (string, map[string]string) {
	fields := make(map[string]string, len(errs))
	lines := make([]string, 0, len(errs))
	for _, fe := range errs {
		msg := fe.Translate(v.translator)
		fields[fe.Field()] = msg
		lines = append(lines, msg)
	}
	return strings.Join(lines, "; "), fields
}

// registerTranslation overrides the text of tag.
func registerTranslation(validate *validator.Validate, translator ut.Translator, tag, text string) {
	_ = validate.RegisterTranslation(
		tag, translator,
		func(t ut.Translator) error { return t.Add(tag, text, true) },
		func(t ut.Translator, fe validator.FieldError) string {
			s, _ := t.T(tag, fe.Field(), fe.Param())
			return s
		},
	)
}
