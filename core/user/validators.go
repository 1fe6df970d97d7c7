package user

import (
	"regexp"
	"strings"
	"unicode"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pmezard/go-difflib/difflib"

	"github.com/foureyes/bando/core"
)

var (
	userRoleTag  = "userrole"
	userRoleText = "invalid role"

	studentEmailTag   = "studentemail"
	studentEmailText  = "students must use an address like n.surname1@studenti.unisa.it"
	studentEmailRegex = regexp.MustCompile(`^[a-z]\.[a-z]+[0-9]*@(studenti\.)?unisa\.it$`)

	staffEmailTag   = "staffemail"
	staffEmailText  = "staff must use an address like name.surname@unisa.it"
	staffEmailRegex = regexp.MustCompile(`^[a-z]*(\.[a-z]*)?@unisa\.it$`)

	// password policy
	pwdMinLen = 8
	pwdMaxLen = 20

	pwdLenTag  = "pwdlen"
	pwdLenText = "password must contain between 8 and 20 characters"

	pwdCharsetTag   = "pwdcharset"
	pwdCharsetText  = "password may only contain letters, digits and !@#$%"
	pwdCharsetRegex = regexp.MustCompile(`^[A-Za-z0-9!@#$%]+$`)

	pwdComplexityTag  = "pwdcplx"
	pwdComplexityText = "password must contain at least 1 uppercase character, 1 lowercase character and 1 digit"

	pwdMaxSim      = .7
	pwdAttrSimTag  = "pwdtoosim"
	pwdAttrSimText = "password cannot be similar to user attributes"
)

// InitValidators registers the user validators on validate.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(userRoleTag, func(fl validator.FieldLevel) bool {
		return IsValidRole(fl.Field().String())
	})
	core.RegisterCustomTranslation(validate, translator, userRoleTag, userRoleText)

	validate.RegisterStructValidation(userStructValidation, NewUser{}, UpdateUser{})
	core.RegisterCustomTranslation(validate, translator, studentEmailTag, studentEmailText)
	core.RegisterCustomTranslation(validate, translator, staffEmailTag, staffEmailText)
	core.RegisterCustomTranslation(validate, translator, pwdLenTag, pwdLenText)
	core.RegisterCustomTranslation(validate, translator, pwdCharsetTag, pwdCharsetText)
	core.RegisterCustomTranslation(validate, translator, pwdComplexityTag, pwdComplexityText)
	core.RegisterCustomTranslation(validate, translator, pwdAttrSimTag, pwdAttrSimText)
}

// userStructValidation does struct level validation on NewUser and UpdateUser structs.
func userStructValidation(sl validator.StructLevel) {
	switch usr := sl.Current().Interface().(type) {
	case NewUser:
		validateInstitutionalEmail(usr, sl)
		validatePassword(usr.Password, sl, usr.Name, usr.Surname, usr.Email)
	case UpdateUser:
		if usr.Password != "" {
			validatePassword(usr.Password, sl, usr.Name, usr.Surname, usr.email)
		}
	}
}

// validateInstitutionalEmail checks the email domain against the role.
func validateInstitutionalEmail(nu NewUser, sl validator.StructLevel) {
	if nu.Email == "" {
		return
	}
	if nu.Role == RoleStudent {
		if !studentEmailRegex.MatchString(nu.Email) {
			sl.ReportError(nu.Email, "email", "Email", studentEmailTag, "")
		}
	} else if !staffEmailRegex.MatchString(nu.Email) {
		sl.ReportError(nu.Email, "email", "Email", staffEmailTag, "")
	}
}

// validatePassword applies the password policy to provided password:
// - length: 8 to 20
// - charset: letters, digits and !@#$%
// - complexity: 1 upper, 1 lower, 1 digit
// - no user attrs similarity
func validatePassword(pwd string, sl validator.StructLevel, usrAttrs ...string) {
	reportErr := func(tag string) {
		sl.ReportError(pwd, "password", "Password", tag, "")
	}

	if n := len(pwd); n < pwdMinLen || n > pwdMaxLen {
		reportErr(pwdLenTag)
		return
	}
	if !pwdCharsetRegex.MatchString(pwd) {
		reportErr(pwdCharsetTag)
		return
	}

	var hasUpper, hasLower, hasDig bool
	for _, char := range pwd {
		switch {
		case unicode.IsUpper(char):
			hasUpper = true
		case unicode.IsLower(char):
			hasLower = true
		case unicode.IsDigit(char):
			hasDig = true
		}
	}
	if !(hasUpper && hasLower && hasDig) {
		reportErr(pwdComplexityTag)
		return
	}

	lpwd := strings.ToLower(pwd)
	for _, attr := range usrAttrs {
		if attr == "" {
			continue
		}
		// compare with the local part only
		if i := strings.Index(attr, "@"); i > 0 {
			attr = attr[:i]
		}
		ratio := difflib.NewMatcher(strings.Split(lpwd, ""), strings.Split(strings.ToLower(attr), "")).QuickRatio()
		if ratio >= pwdMaxSim {
			reportErr(pwdAttrSimTag)
			return
		}
	}
}
