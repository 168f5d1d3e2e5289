package enrollform

import (
	"encoding/json"
	"strings"

	"github.com/pkg/errors"
)

// FillerMock reads templates listing one "Kind:Name" field per line and fills
// them into a JSON encoded MockDocument.
type FillerMock struct{}

type MockDocument struct {
	Title  string            `json:"title"`
	Fields map[string]string `json:"fields"`
}

var _ Filler = FillerMock{}

// MockTemplate lists every field of the enrollment form, plus the non-text
// fields found on the real template.
func MockTemplate() []byte {
	lines := []string{
		"CheckBox:Lives With Both Parents_1",
		"Signature:Parent Signature_1",
	}
	for _, name := range []string{
		"School_1", "Date_1", "Grade_1", "School Year_1",
		"Student First Name_1", "Student Middle Name_1", "Student Last Name_1", "Student DOB_1",
		"Primary Parent Phone_1", "Primary Parent Email_1",
		"Physical Street_1", "Physical City_1", "Physical State_1", "Physical Zip_1",
		"Mailing Street_1", "Mailing City_1", "Mailing State_1", "Mailing Zip_1",
	} {
		lines = append(lines, "Text:"+name)
	}
	return []byte(strings.Join(lines, "\n"))
}

func (FillerMock) Inspect(template []byte) ([]TemplateField, error) {
	var fields []TemplateField
	for _, line := range strings.Split(string(template), "\n") {
		kind, name, ok := strings.Cut(line, ":")
		if !ok {
			return nil, errors.Errorf("malformed template line %q", line)
		}
		fields = append(fields, TemplateField{Name: name, Kind: kind})
	}
	return fields, nil
}

func (FillerMock) Fill(_ []byte, values map[string]string, title string) ([]byte, error) {
	return json.Marshal(MockDocument{Title: title, Fields: values})
}
