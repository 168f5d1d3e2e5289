package application

import (
	"bytes"
	"context"
	"fmt"
	"net/mail"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/enrollgsrp/gsrp-enroll/core"
)

var (
	// errors
	ErrNotFound            = errors.New("application not found")
	ErrSpreadsheetDisabled = errors.New("spreadsheet export is not configured")
	errInvalidDateRange    = errors.New("created_from must be before created_to")
)

const (
	receivedTemplate = "application_received"
	notifyTimeout    = time.Minute
)

type (
	Repository interface {
		CreateApplication(ctx context.Context, app Application) (Application, error)
		// GetApplication returns ErrNotFound for unknown or malformed ids.
		GetApplication(ctx context.Context, id string) (Application, error)
		// QueryApplications applies AND operation on available QueryFilter fields.
		// QueryFilter.Search does a case-insensitive match on the child's and the guardians' names.
		QueryApplications(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Application, error)
		CountApplications(ctx context.Context) (int, error)
	}

	// FormRenderer fills the enrollment form of an application.
	FormRenderer interface {
		RenderForm(ctx context.Context, app Application) (filename string, content []byte, err error)
	}

	// SpreadsheetWriter replaces the rows of a remote spreadsheet.
	SpreadsheetWriter interface {
		WriteApplications(ctx context.Context, apps []Application) error
	}

	Service interface {
		Create(ctx context.Context, na NewApplication) (Application, error)
		Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Application, error)
		GetByID(ctx context.Context, id string) (Application, error)
		Count(ctx context.Context) (int, error)
		// SyncSpreadsheet pushes every application to the configured spreadsheet.
		SyncSpreadsheet(ctx context.Context) (int, error)
	}

	Deps struct {
		Repo     Repository
		MailSvc  core.EmailService
		Validate *validator.Validate
		Logger   core.Logger
		Renderer FormRenderer      // optional
		Sheet    SpreadsheetWriter // optional
	}

	service struct {
		Deps
		nowFunc func() time.Time
	}
)

var _ Service = (*service)(nil)

func NewService(deps Deps) Service {
	return &service{Deps: deps, nowFunc: time.Now}
}

func (svc *service) Create(ctx context.Context, na NewApplication) (Application, error) {
	if err := na.Validate(svc.Validate); err != nil {
		return Application{}, err
	}
	app, err := svc.create(ctx, na)
	if err != nil {
		return Application{}, err
	}
	go svc.notifyReceived(app)
	return app, nil
}

// create persists an already validated NewApplication.
func (svc *service) create(ctx context.Context, na NewApplication) (Application, error) {
	now := svc.nowFunc().UTC()
	app := Application{
		Child:     *na.Child,
		Address:   *na.Address,
		Household: *na.Household,
		PG1:       *na.PG1,
		PG2:       na.PG2,
		School:    *na.School,
		Siblings:  *na.Siblings,
		Referral:  na.Referral,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if app.Referral != nil && app.Referral.Selected == nil {
		app.Referral.Selected = []string{}
	}

	app, err := svc.Repo.CreateApplication(ctx, app)
	if err != nil {
		return Application{}, errors.Wrap(err, "creating application")
	}
	return app, nil
}

// notifyReceived mails the primary guardian, with the filled form attached when available.
func (svc *service) notifyReceived(app Application) {
	ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
	defer cancel()

	data := receivedData{
		GuardianName: app.PG1.FullName(),
		ChildName:    app.Child.FullName(),
		FirstChoice:  app.School.FirstChoice,
		SecondChoice: app.School.SecondChoice,
		Phone:        app.PG1.Phone,
	}
	msg := &core.EmailMessage{
		To:           []mail.Address{{Name: data.GuardianName, Address: app.PG1.Email}},
		Subject:      "We received your GSRP PreK interest form",
		TemplateName: receivedTemplate,
	}

	if svc.Renderer != nil {
		filename, content, err := svc.Renderer.RenderForm(ctx, app)
		if err != nil {
			svc.Logger.Warn(fmt.Sprintf("rendering enrollment form of application %s", app.ID), err)
		} else if err = msg.Attach(bytes.NewReader(content), filename, "application/pdf"); err != nil {
			svc.Logger.Warn("attaching enrollment form", err)
		} else {
			data.HasForm = true
		}
	}
	msg.TemplateData = data
	svc.MailSvc.SendMessages(msg)
}

type receivedData struct {
	GuardianName string
	ChildName    string
	FirstChoice  string
	SecondChoice string
	Phone        string
	HasForm      bool
}

func (svc *service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Application, error) {
	if filter == nil {
		filter = new(QueryFilter)
	}
	filter.Clean()
	if !filter.CreatedFrom.IsZero() && !filter.CreatedTo.IsZero() && filter.CreatedTo.Before(filter.CreatedFrom) {
		return nil, core.NewValidationError(nil, core.FieldError{Field: "created_to", Error: errInvalidDateRange.Error()})
	}
	if len(ordering) == 0 {
		ordering = DefaultOrdering
	}
	if err := core.CheckOrdering(ordering, OrderingFields); err != nil {
		return nil, err
	}
	return svc.Repo.QueryApplications(ctx, filter, ordering)
}

func (svc *service) GetByID(ctx context.Context, id string) (Application, error) {
	id = core.CleanString(id)
	if id == "" {
		return Application{}, ErrNotFound
	}
	return svc.Repo.GetApplication(ctx, id)
}

func (svc *service) Count(ctx context.Context) (int, error) {
	return svc.Repo.CountApplications(ctx)
}

func (svc *service) SyncSpreadsheet(ctx context.Context) (int, error) {
	if svc.Sheet == nil {
		return 0, ErrSpreadsheetDisabled
	}
	apps, err := svc.Repo.QueryApplications(ctx, new(QueryFilter), []core.DBOrdering{{Field: "created_at", Ascending: true}})
	if err != nil {
		return 0, errors.Wrap(err, "querying applications")
	}
	if err = svc.Sheet.WriteApplications(ctx, apps); err != nil {
		return 0, errors.Wrap(err, "writing spreadsheet")
	}
	return len(apps), nil
}
