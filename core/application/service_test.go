package application_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	pkgerrors "github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/enrollgsrp/gsrp-enroll/core"
	"github.com/enrollgsrp/gsrp-enroll/core/application"
	emailsvc "github.com/enrollgsrp/gsrp-enroll/services/email"
	logsvc "github.com/enrollgsrp/gsrp-enroll/services/logger"
	inmemdb "github.com/enrollgsrp/gsrp-enroll/storage/database/inmem"
	testutil "github.com/enrollgsrp/gsrp-enroll/tests"
)

type rendererMock struct {
	err error
}

func (r rendererMock) RenderForm(_ context.Context, app application.Application) (string, []byte, error) {
	if r.err != nil {
		return "", nil, r.err
	}
	return "form - " + app.Child.FullName() + ".pdf", []byte("%PDF-1.7\n%mock\n"), nil
}

type sheetMock struct {
	mu   sync.Mutex
	err  error
	apps []application.Application
}

func (s *sheetMock) WriteApplications(_ context.Context, apps []application.Application) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.apps = apps
	return nil
}

type fixture struct {
	repo    application.Repository
	mailSvc *emailsvc.ConsoleServiceMock
	deps    application.Deps
}

func setup(t *testing.T) *fixture {
	t.Helper()
	conf := testutil.NewConfig()
	logger := logsvc.NewNopLogger()
	core.ParseEmailTemplates(logger)

	validate, _ := testutil.NewValidator()
	repo := inmemdb.NewApplicationRepository(inmemdb.Open())
	mailSvc := emailsvc.NewConsoleServiceMock(conf, logger)
	return &fixture{
		repo:    repo,
		mailSvc: mailSvc,
		deps: application.Deps{
			Repo:     repo,
			MailSvc:  mailSvc,
			Validate: validate,
			Logger:   logger,
		},
	}
}

// fieldTags maps each failing field key to its validation tag.
func fieldTags(t *testing.T, err error) map[string]string {
	t.Helper()
	var verrs validator.ValidationErrors
	require.True(t, errors.As(err, &verrs), "want validator.ValidationErrors, got %v", err)
	tags := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		tags[core.FieldKey(fe)] = fe.Tag()
	}
	return tags
}

func TestNewApplicationValidation(t *testing.T) {
	validate, _ := testutil.NewValidator()

	tests := []struct {
		name     string
		na       func() application.NewApplication
		wantTags map[string]string
	}{
		{
			name: "empty",
			na:   func() application.NewApplication { return application.NewApplication{} },
			wantTags: map[string]string{
				"child":     "required",
				"address":   "required",
				"household": "required",
				"pg1":       "required",
				"school":    "required",
				"siblings":  "required",
			},
		},
		{
			name: "incomplete pg1",
			na: func() application.NewApplication {
				na := testutil.NewApplication("Ava", "Johnson", "Carver")
				na.PG1.Phone = "  "
				na.PG1.Email = ""
				return na
			},
			wantTags: map[string]string{
				"pg1.phone": "required",
				"pg1.email": "required",
				"pg1":       "pg1complete",
			},
		},
		{
			name: "bad contact details",
			na: func() application.NewApplication {
				na := testutil.NewApplication("Ava", "Johnson", "Carver")
				na.PG1.Phone = "not a phone"
				na.PG2 = &application.Guardian{FirstName: "Leo", Email: "leo@"}
				return na
			},
			wantTags: map[string]string{
				"pg1.phone": "phone",
				"pg2.email": "email",
			},
		},
		{
			name: "household bounds",
			na: func() application.NewApplication {
				na := testutil.NewApplication("Ava", "Johnson", "Carver")
				zero, negative := 0, -1.0
				na.Household.ResponsibleCount = &zero
				na.Household.IncomeAmount = &negative
				return na
			},
			wantTags: map[string]string{
				"household.responsibleCount": "min",
				"household.incomeAmount":     "min",
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			na := tt.na()
			err := na.Validate(validate)
			require.Error(t, err)
			assert.Equal(t, tt.wantTags, fieldTags(t, err))
		})
	}

	t.Run("cleaned", func(t *testing.T) {
		na := testutil.NewApplication(" Ava ", "Johnson", "Carver")
		na.PG1.Email = " Maya@Test.COM "
		na.PG2 = &application.Guardian{FirstName: "  "}
		na.Referral = &application.Referral{Selected: []string{" Flyer ", "", "  "}}

		require.NoError(t, na.Validate(validate))
		assert.Equal(t, "Ava", na.Child.FirstName)
		assert.Equal(t, "maya@test.com", na.PG1.Email)
		assert.Nil(t, na.PG2)
		assert.Equal(t, []string{"Flyer"}, na.Referral.Selected)
	})
}

func TestServiceCreate(t *testing.T) {
	f := setup(t)
	f.deps.Renderer = rendererMock{}
	svc := application.NewService(f.deps)
	ctx := context.Background()

	_, err := svc.Create(ctx, application.NewApplication{})
	require.Error(t, err)

	app, err := svc.Create(ctx, testutil.NewApplication("Ava", "Johnson", "Carver"))
	require.NoError(t, err)
	assert.NotEmpty(t, app.ID)
	assert.False(t, app.CreatedAt.IsZero())
	assert.Equal(t, app.CreatedAt, app.UpdatedAt)

	stored, err := svc.GetByID(ctx, " "+app.ID+" ")
	require.NoError(t, err)
	assert.Equal(t, app.Child, stored.Child)

	// the guardian is notified in the background
	assert.Eventually(t, func() bool { return len(f.mailSvc.SentMessages()) == 1 }, time.Second, 10*time.Millisecond)
	msg := f.mailSvc.SentMessages()[0]
	assert.Equal(t, "maya@test.com", msg.To[0].Address)
	require.Len(t, msg.Attachments, 1)
	assert.Equal(t, "form - Ava Johnson.pdf", msg.Attachments[0].Filename)
	assert.Equal(t, "application/pdf", msg.Attachments[0].ContentType)
}

func TestServiceMockCreate(t *testing.T) {
	ctx := context.Background()

	t.Run("without form", func(t *testing.T) {
		f := setup(t)
		svc := application.NewServiceMock(f.deps)
		_, err := svc.Create(ctx, testutil.NewApplication("Ava", "Johnson", "Carver"))
		require.NoError(t, err)

		sent := f.mailSvc.SentMessages()
		require.Len(t, sent, 1)
		assert.Empty(t, sent[0].Attachments)
		assert.Contains(t, sent[0].TextContent, "Ava Johnson")
	})

	t.Run("render failure", func(t *testing.T) {
		f := setup(t)
		f.deps.Renderer = rendererMock{err: errors.New("boom")}
		svc := application.NewServiceMock(f.deps)
		_, err := svc.Create(ctx, testutil.NewApplication("Ava", "Johnson", "Carver"))
		require.NoError(t, err)

		sent := f.mailSvc.SentMessages()
		require.Len(t, sent, 1)
		assert.Empty(t, sent[0].Attachments)
	})
}

func TestServiceQuery(t *testing.T) {
	f := setup(t)
	svc := application.NewService(f.deps)
	ctx := context.Background()

	t0 := time.Date(2025, 9, 1, 12, 0, 0, 0, time.UTC)
	ava := testutil.CreateApplication(t, f.repo, "Ava", "Johnson", "Carver", t0)
	ben := testutil.CreateApplication(t, f.repo, "Ben", "Adams", "Bennett Elementary", t0.Add(24*time.Hour))
	cal := testutil.CreateApplication(t, f.repo, "Cal", "Zane", "carver", t0.Add(48*time.Hour))

	ids := func(apps []application.Application) []string {
		res := make([]string, 0, len(apps))
		for _, a := range apps {
			res = append(res, a.ID)
		}
		return res
	}

	tests := []struct {
		name     string
		filter   *application.QueryFilter
		ordering []core.DBOrdering
		want     []string
	}{
		{name: "all, latest first", want: []string{cal.ID, ben.ID, ava.ID}},
		{name: "search child", filter: &application.QueryFilter{Search: " zan "}, want: []string{cal.ID}},
		{name: "search guardian", filter: &application.QueryFilter{Search: "MAYA"}, want: []string{cal.ID, ben.ID, ava.ID}},
		{name: "school", filter: &application.QueryFilter{School: "CARVER"}, want: []string{cal.ID, ava.ID}},
		{
			name:   "created range",
			filter: &application.QueryFilter{CreatedFrom: t0.Add(time.Hour), CreatedTo: t0.Add(47 * time.Hour)},
			want:   []string{ben.ID},
		},
		{name: "last name", ordering: core.ParseOrdering("child.last_name"), want: []string{ben.ID, ava.ID, cal.ID}},
		{
			name:     "school then oldest",
			ordering: core.ParseOrdering("-school.first_choice,created_at"),
			want:     []string{ava.ID, cal.ID, ben.ID},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			apps, err := svc.Query(ctx, tt.filter, tt.ordering)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ids(apps))
		})
	}

	t.Run("invalid range", func(t *testing.T) {
		_, err := svc.Query(ctx, &application.QueryFilter{CreatedFrom: t0, CreatedTo: t0.Add(-time.Hour)}, nil)
		var verr *core.ValidationError
		require.True(t, errors.As(err, &verr))
		require.Len(t, verr.Fields, 1)
		assert.Equal(t, "created_to", verr.Fields[0].Field)
	})

	t.Run("invalid ordering", func(t *testing.T) {
		_, err := svc.Query(ctx, nil, core.ParseOrdering("lol"))
		var verr *core.ValidationError
		require.True(t, errors.As(err, &verr))
		assert.Equal(t, "invalid ordering field: lol", verr.Fields[0].Error)
	})

	t.Run("count", func(t *testing.T) {
		n, err := svc.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 3, n)
	})

	t.Run("not found", func(t *testing.T) {
		for _, id := range []string{"", "  ", "unknown"} {
			_, err := svc.GetByID(ctx, id)
			assert.Equal(t, application.ErrNotFound, pkgerrors.Cause(err))
		}
	})
}

func TestServiceSyncSpreadsheet(t *testing.T) {
	ctx := context.Background()

	t.Run("disabled", func(t *testing.T) {
		f := setup(t)
		_, err := application.NewService(f.deps).SyncSpreadsheet(ctx)
		assert.Equal(t, application.ErrSpreadsheetDisabled, err)
	})

	t.Run("synced", func(t *testing.T) {
		f := setup(t)
		sheet := new(sheetMock)
		f.deps.Sheet = sheet
		t0 := time.Date(2025, 9, 1, 12, 0, 0, 0, time.UTC)
		late := testutil.CreateApplication(t, f.repo, "Ben", "Adams", "Carver", t0.Add(time.Hour))
		early := testutil.CreateApplication(t, f.repo, "Ava", "Johnson", "Carver", t0)

		n, err := application.NewService(f.deps).SyncSpreadsheet(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, n)
		require.Len(t, sheet.apps, 2)
		assert.Equal(t, early.ID, sheet.apps[0].ID)
		assert.Equal(t, late.ID, sheet.apps[1].ID)
	})

	t.Run("write failure", func(t *testing.T) {
		f := setup(t)
		boom := errors.New("boom")
		f.deps.Sheet = &sheetMock{err: boom}
		_, err := application.NewService(f.deps).SyncSpreadsheet(ctx)
		assert.Equal(t, boom, pkgerrors.Cause(err))
	})
}
