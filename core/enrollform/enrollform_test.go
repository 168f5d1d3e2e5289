package enrollform_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/enrollgsrp/gsrp-enroll/core/application"
	"github.com/enrollgsrp/gsrp-enroll/core/enrollform"
	logsvc "github.com/enrollgsrp/gsrp-enroll/services/logger"
	testutil "github.com/enrollgsrp/gsrp-enroll/tests"
)

func completeApplication() application.Application {
	na := testutil.NewApplication("Ava", "Johnson", "Bennett Elementary")
	na.Child.MiddleName = "Grace"
	return application.Application{
		ID:        "app-1",
		Child:     *na.Child,
		Address:   *na.Address,
		Household: *na.Household,
		PG1:       *na.PG1,
		School:    *na.School,
		Siblings:  *na.Siblings,
	}
}

func TestFields(t *testing.T) {
	app := completeApplication()
	now := time.Date(2025, 9, 4, 15, 0, 0, 0, time.UTC)

	fields, err := enrollform.Fields(app, enrollform.DefaultOptions(), now)
	require.NoError(t, err)
	assert.Len(t, fields, 18)

	want := map[string]string{
		"School_1":               "Bennett Elementary",
		"Date_1":                 "9/4/2025",
		"Student First Name_1":   "Ava",
		"Student Middle Name_1":  "Grace",
		"Student Last Name_1":    "Johnson",
		"Student DOB_1":          "2021-03-14",
		"Primary Parent Phone_1": "313-555-0100",
		"Primary Parent Email_1": "maya@test.com",
		"Grade_1":                "PreK",
		"School Year_1":          "2025-26",
		"Physical Street_1":      "3011 W Grand Blvd",
		"Physical City_1":        "Detroit",
		"Physical State_1":       "MI",
		"Physical Zip_1":         "48202",
		"Mailing Street_1":       "3011 W Grand Blvd",
		"Mailing City_1":         "Detroit",
		"Mailing State_1":        "MI",
		"Mailing Zip_1":          "48202",
	}
	assert.Equal(t, want, fields)
}

func TestFieldsMiddleNameOptional(t *testing.T) {
	app := completeApplication()
	app.Child.MiddleName = ""

	fields, err := enrollform.Fields(app, enrollform.DefaultOptions(), time.Now())
	require.NoError(t, err)
	assert.Equal(t, "", fields["Student Middle Name_1"])
}

func TestFieldsIncompleteRecord(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(app *application.Application)
		wantErr string
	}{
		{name: "school", mutate: func(app *application.Application) { app.School.FirstChoice = "" }, wantErr: "school.firstChoice"},
		{name: "dob", mutate: func(app *application.Application) { app.Child.DOB = " " }, wantErr: "child.dob"},
		{name: "pg1 email", mutate: func(app *application.Application) { app.PG1.Email = "" }, wantErr: "pg1.email"},
		{name: "zip", mutate: func(app *application.Application) { app.Address.Zip = "" }, wantErr: "address.zip"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := completeApplication()
			tt.mutate(&app)

			fields, err := enrollform.Fields(app, enrollform.DefaultOptions(), time.Now())
			assert.Nil(t, fields)
			assert.Equal(t, enrollform.ErrIncompleteRecord, errors.Cause(err))
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestTitleAndFilename(t *testing.T) {
	app := completeApplication()
	assert.Equal(t, "GSRP PreK Interest Form - Ava Grace Johnson", enrollform.Title(app))

	app.Child.MiddleName = ""
	app.Child.LastName = `O"Brien/Smith?`
	assert.Equal(t, `GSRP PreK Interest Form - Ava O"Brien/Smith?`, enrollform.Title(app))
	assert.Equal(t, "GSRP PreK Interest Form - Ava OBrienSmith.pdf", enrollform.Filename(app))
}

func TestClassify(t *testing.T) {
	inv := enrollform.Classify([]enrollform.TemplateField{
		{Name: "Zip", Kind: "Textfield"},
		{Name: "Agree", Kind: "CheckBox"},
		{Name: "Date", Kind: "Datefield"},
		{Name: "Parent", Kind: "Signature"},
		{Name: "Choice", Kind: "ComboBox"},
		{Name: "Accept", Kind: "checkbox"},
	})

	assert.Equal(t, []string{"Choice", "Date", "Zip"}, inv.TextField)
	assert.Equal(t, []string{"Accept", "Agree"}, inv.CheckBox)
	assert.Equal(t, []string{"Parent"}, inv.Signature)
	assert.Equal(t, []string{"TextField", "CheckBox", "Signature"}, inv.Kinds())

	empty := enrollform.Classify(nil)
	assert.NotNil(t, empty.TextField)
	assert.Empty(t, empty.TextField)
}

func TestServiceRender(t *testing.T) {
	svc := enrollform.NewServiceFromBytes(enrollform.FillerMock{}, enrollform.MockTemplate(), enrollform.DefaultOptions(), logsvc.NewNopLogger())
	app := completeApplication()

	doc, err := svc.Render(context.Background(), app)
	require.NoError(t, err)
	assert.Equal(t, "GSRP PreK Interest Form - Ava Grace Johnson.pdf", doc.Filename)
	assert.Equal(t, "GSRP PreK Interest Form - Ava Grace Johnson", doc.Title)
	assert.Equal(t, enrollform.ContentTypePDF, doc.ContentType)

	var filled enrollform.MockDocument
	require.NoError(t, json.Unmarshal(doc.Bytes, &filled))
	assert.Equal(t, doc.Title, filled.Title)
	assert.Equal(t, "Ava", filled.Fields["Student First Name_1"])
	assert.Equal(t, "maya@test.com", filled.Fields["Primary Parent Email_1"])
	assert.Equal(t, "48202", filled.Fields["Mailing Zip_1"])

	inv, err := svc.Inventory(context.Background())
	require.NoError(t, err)
	assert.Len(t, inv.TextField, 18)
	assert.Equal(t, []string{"Lives With Both Parents_1"}, inv.CheckBox)
	assert.Equal(t, []string{"Parent Signature_1"}, inv.Signature)

	filename, content, err := svc.RenderForm(context.Background(), app)
	require.NoError(t, err)
	assert.Equal(t, doc.Filename, filename)
	assert.Equal(t, doc.Bytes, content)
}

func TestServiceRenderMissingField(t *testing.T) {
	tmpl := []byte("Text:School_1\nText:Date_1")
	svc := enrollform.NewServiceFromBytes(enrollform.FillerMock{}, tmpl, enrollform.DefaultOptions(), logsvc.NewNopLogger())

	_, err := svc.Render(context.Background(), completeApplication())
	assert.Equal(t, enrollform.ErrFieldNotFound, errors.Cause(err))
}

func TestServiceNoTemplate(t *testing.T) {
	svc := enrollform.NewService(enrollform.FillerMock{}, "", enrollform.DefaultOptions(), logsvc.NewNopLogger())

	_, err := svc.Render(context.Background(), completeApplication())
	assert.Equal(t, enrollform.ErrNoTemplate, errors.Cause(err))

	_, err = svc.Inventory(context.Background())
	assert.Equal(t, enrollform.ErrNoTemplate, errors.Cause(err))
}

func TestServiceBadTemplate(t *testing.T) {
	svc := enrollform.NewServiceFromBytes(enrollform.FillerMock{}, []byte("garbage"), enrollform.DefaultOptions(), logsvc.NewNopLogger())

	_, err := svc.Render(context.Background(), completeApplication())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "inspecting form template")
}
