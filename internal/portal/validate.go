package portal

import (
	"reflect"
	"strings"
	"time"
	"unicode"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
	"github.com/pkg/errors"

	"schoolportal/internal/mapping"
)

var (
	validate   *validator.Validate
	translator ut.Translator

	// custom validation tags & texts
	validTag   = "valid"
	validText  = "{0} has an unsupported value"
	dateTag    = "datestr"
	dateText   = "{0} must be a date (YYYY-MM-DD)"
	clockTag   = "clock"
	clockText  = "{0} must be a 24-hour time (HH:MM)"
	required   = "required"
	requiredTx = "{0} is required"
)

// enum is implemented by the closed value sets of the model.
type enum interface {
	Valid() bool
}

func init() {
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

	_ = validate.RegisterValidation(validTag, func(fl validator.FieldLevel) bool {
		v, ok := fl.Field().Interface().(enum)
		return ok && v.Valid()
	})
	_ = validate.RegisterValidation(dateTag, func(fl validator.FieldLevel) bool {
		_, err := time.Parse(mapping.DateLayout, fl.Field().String())
		return err == nil
	})
	_ = validate.RegisterValidation(clockTag, func(fl validator.FieldLevel) bool {
		_, err := time.Parse(mapping.TimeLayout, fl.Field().String())
		return err == nil
	})

	registerTranslation(validTag, validText)
	registerTranslation(dateTag, dateText)
	registerTranslation(clockTag, clockText)
	registerTranslation(required, requiredTx)
}

func registerTranslation(tag, text string) {
	_ = validate.RegisterTranslation(
		tag, translator,
		func(t ut.Translator) error { return t.Add(tag, text, true) },
		func(t ut.Translator, fe validator.FieldError) string {
			s, _ := t.T(tag, fe.Field())
			return s
		},
	)
}

// check validates v and returns a ValidationError listing every failing
// field plus any extra field errors supplied by the caller.
func check(v any, extra ...FieldError) error {
	fields := append([]FieldError(nil), extra...)
	if err := validate.Struct(v); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return err
		}
		for _, fe := range verrs {
			fields = append(fields, FieldError{Field: fieldPath(fe), Error: fe.Translate(translator)})
		}
	}
	if len(fields) == 0 {
		return nil
	}
	return NewValidationError(errors.Errorf("invalid %s", fields[0].Field), fields...)
}

// fieldPath drops the struct names from the namespace:
// "StudentInput.Student.fullName" becomes "fullName" and
// "TransportRoute.stops[0].name" becomes "stops[0].name".
func fieldPath(fe validator.FieldError) string {
	parts := strings.Split(fe.Namespace(), ".")
	if len(parts) > 1 {
		parts = parts[1:]
	}
	for len(parts) > 1 && parts[0] != "" && unicode.IsUpper([]rune(parts[0])[0]) {
		parts = parts[1:]
	}
	return strings.Join(parts, ".")
}
