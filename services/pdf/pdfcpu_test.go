package pdfsvc

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/form"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/enrollgsrp/gsrp-enroll/core/application"
	"github.com/enrollgsrp/gsrp-enroll/core/enrollform"
	logsvc "github.com/enrollgsrp/gsrp-enroll/services/logger"
	testutil "github.com/enrollgsrp/gsrp-enroll/tests"
)

func Test_kindName(t *testing.T) {
	tests := []struct {
		typ  form.FieldType
		want string
	}{
		{form.FTText, "TextField"},
		{form.FTDate, "DateField"},
		{form.FTCheckBox, "CheckBox"},
		{form.FTComboBox, "ComboBox"},
		{form.FTListBox, "ListBox"},
		{form.FTRadioButtonGroup, "RadioButtonGroup"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, kindName(tt.typ))
		})
	}
}

func Test_formData(t *testing.T) {
	fields := []form.Field{
		{Pages: []int{1}, Typ: form.FTText, ID: "10", Name: "School_1"},
		{Pages: []int{1}, Typ: form.FTDate, ID: "11", Name: "Date_1"},
		{Pages: []int{1}, Typ: form.FTCheckBox, ID: "12", Name: "Consent_1"},
		{Pages: []int{2}, Typ: form.FTText, ID: "20", Name: "Other_2"},
	}

	t.Run("text and date fields", func(t *testing.T) {
		data, err := formData(fields, map[string]string{"School_1": "Bunche", "Date_1": "3/4/2025"})
		require.NoError(t, err)

		var got fillGroup
		require.NoError(t, json.Unmarshal(data, &got))
		require.Len(t, got.Forms, 1)
		assert.Equal(t, []fillField{{Pages: []int{1}, ID: "10", Name: "School_1", Value: "Bunche"}}, got.Forms[0].TextFields)
		assert.Equal(t, []fillField{{Pages: []int{1}, ID: "11", Name: "Date_1", Value: "3/4/2025"}}, got.Forms[0].DateFields)
	})

	t.Run("unknown field", func(t *testing.T) {
		_, err := formData(fields, map[string]string{"Nope_1": "x"})
		assert.Equal(t, enrollform.ErrFieldNotFound, errors.Cause(err))
	})

	t.Run("not a text field", func(t *testing.T) {
		_, err := formData(fields, map[string]string{"Consent_1": "x"})
		assert.EqualError(t, err, `field "Consent_1" is not a text field`)
	})
}

func TestFiller_invalidTemplate(t *testing.T) {
	f := NewFiller()

	_, err := f.Inspect([]byte("not a pdf"))
	assert.Error(t, err)

	_, err = f.Fill([]byte("not a pdf"), map[string]string{"School_1": "x"}, "title")
	assert.Error(t, err)
}

// formFieldNames are the text fields of the enrollment form.
var formFieldNames = []string{
	"School_1", "Date_1", "Grade_1", "School Year_1",
	"Student First Name_1", "Student Middle Name_1", "Student Last Name_1", "Student DOB_1",
	"Primary Parent Phone_1", "Primary Parent Email_1",
	"Physical Street_1", "Physical City_1", "Physical State_1", "Physical Zip_1",
	"Mailing Street_1", "Mailing City_1", "Mailing State_1", "Mailing Zip_1",
}

// newTemplate creates a one page PDF holding an empty text field per name.
func newTemplate(t *testing.T, names []string) []byte {
	t.Helper()
	type textField struct {
		ID    string     `json:"id"`
		Pos   [2]float64 `json:"pos"`
		Width float64    `json:"width"`
	}
	fields := make([]textField, 0, len(names))
	for i, name := range names {
		fields = append(fields, textField{ID: name, Pos: [2]float64{50, 800 - 30*float64(i)}, Width: 250})
	}
	layout := map[string]interface{}{
		"paper":  "A4P",
		"origin": "LowerLeft",
		"fonts":  map[string]interface{}{"input": map[string]interface{}{"name": "Helvetica", "size": 10}},
		"pages": map[string]interface{}{
			"1": map[string]interface{}{"content": map[string]interface{}{"textfield": fields}},
		},
	}
	js, err := json.Marshal(layout)
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, api.Create(nil, bytes.NewReader(js), &out, model.NewDefaultConfiguration()))
	return out.Bytes()
}

func TestFiller_render(t *testing.T) {
	filler := NewFiller()
	tmpl := newTemplate(t, formFieldNames)

	inspected, err := filler.Inspect(tmpl)
	require.NoError(t, err)
	require.Len(t, inspected, len(formFieldNames))
	for _, fld := range inspected {
		assert.Equal(t, "TextField", fld.Kind, fld.Name)
	}

	na := testutil.NewApplication("Ava", "Johnson", "Bennett Elementary")
	na.Child.MiddleName = "Grace"
	app := application.Application{
		ID: "app-1", Child: *na.Child, Address: *na.Address, Household: *na.Household,
		PG1: *na.PG1, School: *na.School, Siblings: *na.Siblings,
	}

	svc := enrollform.NewServiceFromBytes(filler, tmpl, enrollform.DefaultOptions(), logsvc.NewNopLogger())
	doc, err := svc.Render(context.Background(), app)
	require.NoError(t, err)
	assert.Equal(t, "GSRP PreK Interest Form - Ava Grace Johnson", doc.Title)

	inv, err := svc.Inventory(context.Background())
	require.NoError(t, err)
	assert.Len(t, inv.TextField, len(formFieldNames))
	assert.Empty(t, inv.Signature)

	fields, err := api.FormFields(bytes.NewReader(doc.Bytes), model.NewDefaultConfiguration())
	require.NoError(t, err)
	got := make(map[string]string, len(fields))
	for _, fld := range fields {
		got[fld.Name] = fld.V
	}
	want, err := enrollform.Fields(app, enrollform.DefaultOptions(), time.Now())
	require.NoError(t, err)
	assert.NotEmpty(t, got["Date_1"])
	delete(want, "Date_1")
	delete(got, "Date_1")
	assert.Equal(t, want, got)
	assert.Equal(t, "Ava", got["Student First Name_1"])
	assert.Equal(t, "Grace", got["Student Middle Name_1"])
	assert.Equal(t, "maya@test.com", got["Primary Parent Email_1"])
	assert.Equal(t, "48202", got["Mailing Zip_1"])

	ctx, err := api.ReadAndValidate(bytes.NewReader(doc.Bytes), model.NewDefaultConfiguration())
	require.NoError(t, err)
	assert.Equal(t, doc.Title, ctx.Title)
}

func TestFiller_concurrentFill(t *testing.T) {
	filler := NewFiller()
	tmpl := newTemplate(t, []string{"School_1"})

	errs := make(chan error, 8)
	for i := 0; i < cap(errs); i++ {
		go func() {
			_, err := filler.Fill(tmpl, map[string]string{"School_1": "Carver"}, "Form")
			errs <- err
		}()
	}
	for i := 0; i < cap(errs); i++ {
		assert.NoError(t, <-errs)
	}
}
