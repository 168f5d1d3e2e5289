package enrollform

import (
	"regexp"
	"sort"
)

// TemplateField is an interactive field of a form template. Kind is the
// field type as reported by the PDF library ("Textfield", "Checkbox", ...).
type TemplateField struct {
	Name string
	Kind string
}

// Inventory groups the field names of a template by kind, each sorted.
type Inventory struct {
	TextField []string `json:"TextField"`
	CheckBox  []string `json:"CheckBox"`
	Signature []string `json:"Signature"`
}

var (
	textKind      = regexp.MustCompile(`(?i)text`)
	checkBoxKind  = regexp.MustCompile(`(?i)check`)
	signatureKind = regexp.MustCompile(`(?i)sign`)
)

// Classify buckets fields by kind. Unknown kinds are counted as text fields.
func Classify(fields []TemplateField) Inventory {
	inv := Inventory{TextField: []string{}, CheckBox: []string{}, Signature: []string{}}
	for _, f := range fields {
		switch {
		case textKind.MatchString(f.Kind):
			inv.TextField = append(inv.TextField, f.Name)
		case checkBoxKind.MatchString(f.Kind):
			inv.CheckBox = append(inv.CheckBox, f.Name)
		case signatureKind.MatchString(f.Kind):
			inv.Signature = append(inv.Signature, f.Name)
		default:
			inv.TextField = append(inv.TextField, f.Name)
		}
	}
	sort.Strings(inv.TextField)
	sort.Strings(inv.CheckBox)
	sort.Strings(inv.Signature)
	return inv
}

// Kinds lists the bucket names of an Inventory.
func (inv Inventory) Kinds() []string {
	return []string{"TextField", "CheckBox", "Signature"}
}
