package enrollform

import (
	"regexp"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/enrollgsrp/gsrp-enroll/core/application"
)

// DateLayout is the US numeric date printed on the form (M/D/YYYY).
const DateLayout = "1/2/2006"

const titlePrefix = "GSRP PreK Interest Form - "

var (
	ErrIncompleteRecord = errors.New("application is missing a field required by the form")
	ErrFieldNotFound    = errors.New("field not found in form template")

	unsafeFilenameChars = regexp.MustCompile(`[/\\?%*:|"<>]`)
)

// Options are the values printed on every form regardless of the application.
type Options struct {
	Grade      string
	SchoolYear string
}

func DefaultOptions() Options {
	return Options{Grade: "PreK", SchoolYear: "2025-26"}
}

// Fields maps app onto the text fields of the first page of the enrollment form.
// The mailing address is the physical address.
func Fields(app application.Application, opts Options, now time.Time) (map[string]string, error) {
	required := []struct{ path, value string }{
		{"school.firstChoice", app.School.FirstChoice},
		{"child.firstName", app.Child.FirstName},
		{"child.lastName", app.Child.LastName},
		{"child.dob", app.Child.DOB},
		{"pg1.phone", app.PG1.Phone},
		{"pg1.email", app.PG1.Email},
		{"address.street", app.Address.Street},
		{"address.city", app.Address.City},
		{"address.state", app.Address.State},
		{"address.zip", app.Address.Zip},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return nil, errors.Wrap(ErrIncompleteRecord, r.path)
		}
	}

	return map[string]string{
		"School_1":               app.School.FirstChoice,
		"Date_1":                 now.Format(DateLayout),
		"Student First Name_1":   app.Child.FirstName,
		"Student Middle Name_1":  app.Child.MiddleName,
		"Student Last Name_1":    app.Child.LastName,
		"Student DOB_1":          app.Child.DOB,
		"Primary Parent Phone_1": app.PG1.Phone,
		"Primary Parent Email_1": app.PG1.Email,
		"Grade_1":                opts.Grade,
		"School Year_1":          opts.SchoolYear,
		"Physical Street_1":      app.Address.Street,
		"Physical City_1":        app.Address.City,
		"Physical State_1":       app.Address.State,
		"Physical Zip_1":         app.Address.Zip,
		"Mailing Street_1":       app.Address.Street,
		"Mailing City_1":         app.Address.City,
		"Mailing State_1":        app.Address.State,
		"Mailing Zip_1":          app.Address.Zip,
	}, nil
}

func Title(app application.Application) string {
	return titlePrefix + app.Child.FullName()
}

// Filename is the title without the characters file systems reject, plus ".pdf".
func Filename(app application.Application) string {
	return unsafeFilenameChars.ReplaceAllString(Title(app), "") + ".pdf"
}
