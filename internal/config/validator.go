package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	enTranslations "github.com/go-playground/validator/v10/translations/en"
)

func newValidator() (*validator.Validate, ut.Translator, error) {
	validate := validator.New()

	enLocale := en.New()
	uni := ut.New(enLocale, enLocale)
	trans, _ := uni.GetTranslator("en")
	if err := enTranslations.RegisterDefaultTranslations(validate, trans); err != nil {
		return nil, nil, fmt.Errorf("failed to register default translations: %w", err)
	}

	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("mapstructure"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	validate.RegisterStructValidation(validateDicts, Config{})
	if err := validate.RegisterTranslation("langref", trans, func(ut ut.Translator) error {
		return ut.Add("langref", "{0} refers to unknown language {1}", true)
	}, func(ut ut.Translator, fe validator.FieldError) string {
		t, _ := ut.T("langref", strings.TrimPrefix(fe.Namespace(), "Config."), fe.Param())
		return t
	}); err != nil {
		return nil, nil, fmt.Errorf("failed to register langref translation: %w", err)
	}

	return validate, trans, nil
}

// validateDicts reports dictionary pairs naming languages that are not configured
func validateDicts(sl validator.StructLevel) {
	cfg := sl.Current().Interface().(Config)
	for i, pair := range cfg.Dicts {
		for _, lang := range pair {
			if _, ok := cfg.Langs[lang]; !ok && lang != "" {
				sl.ReportError(pair, fmt.Sprintf("dicts[%d]", i), fmt.Sprintf("Dicts[%d]", i), "langref", lang)
			}
		}
	}
}

// validationError joins the translated messages of validator errors
func validationError(err error, trans ut.Translator) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fe.Translate(trans))
	}
	return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
}
