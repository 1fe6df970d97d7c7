package core

import (
	"reflect"
	"regexp"
	"strings"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
)

const DateLayout = "2006-01-02"

var (
	// custom validation tags & texts
	protocolTag   = "protocol"
	protocolText  = "{0} must look like \"Prot. n. 123\""
	protocolRegex = regexp.MustCompile(`^Prot\. n\. [0-9]+$`)

	personNameTag   = "personname"
	personNameText  = "{0} may only contain letters, spaces and apostrophes"
	personNameRegex = regexp.MustCompile(`^[A-Za-z ']+$`)

	unisaEmailTag   = "unisaemail"
	unisaEmailText  = "{0} must be an institutional address"
	unisaEmailRegex = regexp.MustCompile(`^[a-z0-9.]+@(studenti\.)?unisa\.it$`)

	isoDateTag  = "isodate"
	isoDateText = "{0} must be a date formatted as YYYY-MM-DD"

	requiredTag     = "required"
	requiredWithTag = "required_with"
	requiredText    = "this field is required"

	uniqueKeyTag  = "uniquekey"
	uniqueKeyText = "{0} contains duplicated entries"

	countTag  = "count"
	countText = "{0} has an invalid number of entries"
)

// InitValidators instantiates the validator for use.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = en_translations.RegisterDefaultTranslations(validate, translator)

	// Use JSON tag names for errors instead of Go struct names.
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	// register custom validators
	_ = validate.RegisterValidation(protocolTag, regexValidation(protocolRegex))
	RegisterCustomTranslation(validate, translator, protocolTag, protocolText)

	_ = validate.RegisterValidation(personNameTag, regexValidation(personNameRegex))
	RegisterCustomTranslation(validate, translator, personNameTag, personNameText)

	_ = validate.RegisterValidation(unisaEmailTag, regexValidation(unisaEmailRegex))
	RegisterCustomTranslation(validate, translator, unisaEmailTag, unisaEmailText)

	_ = validate.RegisterValidation(isoDateTag, isoDateValidation)
	RegisterCustomTranslation(validate, translator, isoDateTag, isoDateText)

	RegisterCustomTranslation(validate, translator, requiredTag, requiredText, true)
	RegisterCustomTranslation(validate, translator, requiredWithTag, requiredText, true)
	RegisterCustomTranslation(validate, translator, uniqueKeyTag, uniqueKeyText)
	RegisterCustomTranslation(validate, translator, countTag, countText)
}

// RegisterCustomTranslation registers a custom translation for the specified validation tag.
// "{0}" in text is replaced by the field name.
func RegisterCustomTranslation(validate *validator.Validate, translator ut.Translator, tag, text string, override ...bool) {
	var ovrd bool
	if len(override) > 0 {
		ovrd = override[0]
	}
	_ = validate.RegisterTranslation(
		tag, translator,
		func(t ut.Translator) error { return t.Add(tag, text, ovrd) },
		func(t ut.Translator, fe validator.FieldError) string {
			s, _ := t.T(tag, fe.Field())
			return s
		},
	)
}

// ReportUniqueKeys reports a uniquekey error on field when keys holds a duplicate.
func ReportUniqueKeys(sl validator.StructLevel, field interface{}, name string, keys []string) {
	seen := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		if _, ok := seen[k]; ok {
			sl.ReportError(field, name, name, uniqueKeyTag, "")
			return
		}
		seen[k] = struct{}{}
	}
}

// ReportCount reports a count error on field when n is outside [min, max].
func ReportCount(sl validator.StructLevel, field interface{}, name string, n, min, max int) {
	if n < min || n > max {
		sl.ReportError(field, name, name, countTag, "")
	}
}

// Custom Global Validators

func regexValidation(re *regexp.Regexp) validator.Func {
	return func(fl validator.FieldLevel) bool {
		return re.MatchString(fl.Field().String())
	}
}

// isoDateValidation only allows YYYY-MM-DD dates.
func isoDateValidation(fl validator.FieldLevel) bool {
	_, err := time.Parse(DateLayout, fl.Field().String())
	return err == nil
}
