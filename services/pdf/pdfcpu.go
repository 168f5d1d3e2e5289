// Package pdfsvc fills AcroForm PDF templates with pdfcpu.
package pdfsvc

import (
	"bytes"
	"encoding/json"
	"sync"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/form"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pkg/errors"

	"github.com/enrollgsrp/gsrp-enroll/core/enrollform"
)

var configDirOnce sync.Once

// Filler is safe for concurrent use: pdfcpu records the running command on
// its configuration, so every call gets its own.
type Filler struct{}

var _ enrollform.Filler = (*Filler)(nil)

func NewFiller() *Filler {
	configDirOnce.Do(api.DisableConfigDir)
	return &Filler{}
}

func (f *Filler) conf() *model.Configuration {
	return model.NewDefaultConfiguration()
}

// kindName names pdfcpu field types the way form libraries usually do.
// pdfcpu only lists text, button and choice fields, so signature fields
// never show up and the Signature bucket of the inventory stays empty.
func kindName(t form.FieldType) string {
	switch t {
	case form.FTText:
		return "TextField"
	case form.FTDate:
		return "DateField"
	case form.FTCheckBox:
		return "CheckBox"
	case form.FTComboBox:
		return "ComboBox"
	case form.FTListBox:
		return "ListBox"
	case form.FTRadioButtonGroup:
		return "RadioButtonGroup"
	default:
		return "Unknown"
	}
}

func (f *Filler) fields(template []byte) ([]form.Field, error) {
	fields, err := api.FormFields(bytes.NewReader(template), f.conf())
	if err != nil {
		return nil, errors.Wrap(err, "reading form fields")
	}
	return fields, nil
}

func (f *Filler) Inspect(template []byte) ([]enrollform.TemplateField, error) {
	fields, err := f.fields(template)
	if err != nil {
		return nil, err
	}
	out := make([]enrollform.TemplateField, 0, len(fields))
	for _, fld := range fields {
		out = append(out, enrollform.TemplateField{Name: fld.Name, Kind: kindName(fld.Typ)})
	}
	return out, nil
}

type (
	// fillField is a text or date field of pdfcpu's JSON form data.
	fillField struct {
		Pages  []int  `json:"pages"`
		ID     string `json:"id"`
		Name   string `json:"name"`
		Value  string `json:"value"`
		Locked bool   `json:"locked"`
	}

	fillForm struct {
		TextFields []fillField `json:"textfield,omitempty"`
		DateFields []fillField `json:"datefield,omitempty"`
	}

	fillGroup struct {
		Forms []fillForm `json:"forms"`
	}
)

// formData builds the JSON form data setting values on the matching template fields.
func formData(fields []form.Field, values map[string]string) ([]byte, error) {
	var frm fillForm
	seen := make(map[string]bool, len(values))
	for _, fld := range fields {
		v, ok := values[fld.Name]
		if !ok || seen[fld.Name] {
			continue
		}
		ff := fillField{Pages: fld.Pages, ID: fld.ID, Name: fld.Name, Value: v}
		switch fld.Typ {
		case form.FTText:
			frm.TextFields = append(frm.TextFields, ff)
		case form.FTDate:
			frm.DateFields = append(frm.DateFields, ff)
		default:
			return nil, errors.Errorf("field %q is not a text field", fld.Name)
		}
		seen[fld.Name] = true
	}
	for name := range values {
		if !seen[name] {
			return nil, errors.Wrap(enrollform.ErrFieldNotFound, name)
		}
	}
	return json.Marshal(fillGroup{Forms: []fillForm{frm}})
}

func (f *Filler) Fill(template []byte, values map[string]string, title string) ([]byte, error) {
	fields, err := f.fields(template)
	if err != nil {
		return nil, err
	}
	data, err := formData(fields, values)
	if err != nil {
		return nil, err
	}

	var filled bytes.Buffer
	if err = api.FillForm(bytes.NewReader(template), bytes.NewReader(data), &filled, f.conf()); err != nil {
		return nil, errors.Wrap(err, "filling form")
	}
	if title == "" {
		return filled.Bytes(), nil
	}

	// Title is a standard entry of the document info dictionary.
	var out bytes.Buffer
	props := map[string]string{"Title": title}
	if err = api.AddProperties(bytes.NewReader(filled.Bytes()), &out, props, f.conf()); err != nil {
		return nil, errors.Wrap(err, "setting document title")
	}
	return out.Bytes(), nil
}
