package application

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/enrollgsrp/gsrp-enroll/core"
)

var (
	pg1CompleteTag  = "pg1complete"
	pg1CompleteText = "Primary parent/guardian (pg1) must include firstName, lastName, phone, and email"

	requiredTag = "required"
)

// InitValidators registers the application validators.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	validate.RegisterStructValidation(applicationStructValidation, NewApplication{})
	core.RegisterCustomTranslation(validate, translator, pg1CompleteTag, pg1CompleteText)
}

// applicationStructValidation reports every missing primary guardian field,
// plus one summary error under "pg1".
func applicationStructValidation(sl validator.StructLevel) {
	na, ok := sl.Current().Interface().(NewApplication)
	if !ok || na.PG1 == nil {
		return // "required" already reported
	}
	pg1 := *na.PG1
	if pg1.IsComplete() {
		return
	}
	for _, f := range []struct{ value, name, structName string }{
		{pg1.FirstName, "pg1.firstName", "PG1.FirstName"},
		{pg1.LastName, "pg1.lastName", "PG1.LastName"},
		{pg1.Phone, "pg1.phone", "PG1.Phone"},
		{pg1.Email, "pg1.email", "PG1.Email"},
	} {
		if f.value == "" {
			sl.ReportError(f.value, f.name, f.structName, requiredTag, "")
		}
	}
	sl.ReportError(pg1, "pg1", "PG1", pg1CompleteTag, "")
}
