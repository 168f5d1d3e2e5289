package user

import (
	"fmt"
	"strings"
	"unicode"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pmezard/go-difflib/difflib"

	"github.com/enrollgsrp/gsrp-enroll/core"
)

var (
	// password policy
	pwdMinLen     = 8
	pwdMinLenTag  = "pwdminlen"
	pwdMinLenText = fmt.Sprintf("password must contain at least %d characters", pwdMinLen)

	pwdNoSpaceTag  = "pwdnospace"
	pwdNoSpaceText = "password must not contain whitespace"

	pwdNotAllNumTag  = "pwdnotallnum"
	pwdNotAllNumText = "password cannot be entirely numeric"

	pwdMaxSim      = .7
	pwdAttrSimTag  = "pwdtoosim"
	pwdAttrSimText = "password cannot be similar to your name or email"
)

// InitValidators registers the user validators.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	validate.RegisterStructValidation(userStructValidation, NewUser{}, NewPassword{})
	core.RegisterCustomTranslation(validate, translator, pwdMinLenTag, pwdMinLenText)
	core.RegisterCustomTranslation(validate, translator, pwdNoSpaceTag, pwdNoSpaceText)
	core.RegisterCustomTranslation(validate, translator, pwdNotAllNumTag, pwdNotAllNumText)
	core.RegisterCustomTranslation(validate, translator, pwdAttrSimTag, pwdAttrSimText)
}

// userStructValidation does struct level validation on NewUser and NewPassword structs.
func userStructValidation(sl validator.StructLevel) {
	switch v := sl.Current().Interface().(type) {
	case NewUser:
		if v.Password != "" {
			validatePassword(v.Password, v.Name, v.Email, sl)
		}
	case NewPassword:
		if v.Password != "" {
			validatePassword(v.Password, v.usr.Name, v.usr.Email, sl)
		}
	}
}

// validatePassword applies the password policy to provided password:
// - minLen: 8
// - no whitespace
// - no all numeric
// - no user attrs similarity
func validatePassword(pwd, name, email string, sl validator.StructLevel) {
	reportErr := func(tag string) {
		sl.ReportError(pwd, "password", "Password", tag, "")
	}

	var digitCount int

	pwdLen := len([]rune(pwd))
	if pwdLen < pwdMinLen {
		reportErr(pwdMinLenTag)
		return
	}
	for _, char := range pwd {
		if unicode.IsSpace(char) {
			reportErr(pwdNoSpaceTag)
			return
		}
		if unicode.IsDigit(char) {
			digitCount++
		}
	}

	if digitCount == pwdLen {
		reportErr(pwdNotAllNumTag)
		return
	}

	getRatio := func(pass, usrAttr string) float64 {
		if usrAttr == "" {
			return 0
		}
		return difflib.NewMatcher(strings.Split(pass, ""), strings.Split(usrAttr, "")).QuickRatio()
	}
	lpwd := strings.ToLower(pwd)
	localPart := strings.SplitN(email, "@", 2)[0]
	if getRatio(lpwd, strings.ToLower(name)) >= pwdMaxSim ||
		getRatio(lpwd, email) >= pwdMaxSim ||
		getRatio(lpwd, localPart) >= pwdMaxSim {
		reportErr(pwdAttrSimTag)
		return
	}
}
