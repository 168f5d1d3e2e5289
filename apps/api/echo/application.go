package echoapi

import (
	"bytes"
	"fmt"
	"mime"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/enrollgsrp/gsrp-enroll/core"
	"github.com/enrollgsrp/gsrp-enroll/core/application"
	"github.com/enrollgsrp/gsrp-enroll/core/enrollform"
	"github.com/enrollgsrp/gsrp-enroll/core/user"
	exportsvc "github.com/enrollgsrp/gsrp-enroll/services/export"
	metricsvc "github.com/enrollgsrp/gsrp-enroll/services/metrics"
)

const contextApplicationKey = "object"

var errAppNotFoundInCtx = errors.New("application object not found in echo.Context")

type applicationApi struct {
	svc      application.Service
	formSvc  FormService
	metrics  *metricsvc.Metrics
	validate *validator.Validate
}

func registerApplicationAPI(
	g *echo.Group,
	usrSvc user.Service,
	svc application.Service,
	formSvc FormService,
	metrics *metricsvc.Metrics,
	validate *validator.Validate,
) {
	api := applicationApi{
		svc:      svc,
		formSvc:  formSvc,
		metrics:  metrics,
		validate: validate,
	}

	ag := g.Group("/applications")

	// un-authed endpoints
	ag.POST("/add", api.create)

	// admin endpoints
	admin := ag.Group("", sessionRequired, adminMiddleware(usrSvc))
	admin.GET("", api.query)
	admin.GET("/export.xlsx", api.exportXLSX)
	admin.POST("/export/sheets", api.exportSheets)

	// detail endpoints
	dg := admin.Group("/:id", api.objectMiddleware)
	dg.GET("", api.retrieve)
	dg.GET("/form", api.form)
}

func (api *applicationApi) create(ctx echo.Context) error {
	var data application.NewApplication
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewApplication")
	}
	if _, err := api.svc.Create(ctx.Request().Context(), data); err != nil {
		return err
	}
	api.metrics.ApplicationSubmitted()
	return ctx.JSON(http.StatusCreated, MessageResponse{Message: "New Intake Form Successfully Added"})
}

// bindQuery reads the list filters and ordering shared by the list and export endpoints.
// invalidQueryError reports query parameters that do not bind to the filter.
func invalidQueryError() error {
	return core.NewValidationError(nil, core.FieldError{Field: "query", Error: "invalid query parameters"})
}

func bindQuery(ctx echo.Context) (*application.QueryFilter, []core.DBOrdering, error) {
	filter := new(application.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return nil, nil, invalidQueryError()
	}
	ordering := new(Ordering)
	ordering.Bind(ctx)
	return filter, ordering.Orderings, nil
}

func (api *applicationApi) query(ctx echo.Context) error {
	filter, ordering, err := bindQuery(ctx)
	if err != nil {
		return err
	}
	apps, err := api.svc.Query(ctx.Request().Context(), filter, ordering)
	if err != nil {
		return errors.Wrap(err, "querying applications")
	}
	if apps == nil {
		apps = []application.Application{}
	}
	return ctx.JSON(http.StatusOK, apps)
}

func (api *applicationApi) retrieve(ctx echo.Context) error {
	app, ok := ctx.Get(contextApplicationKey).(application.Application)
	if !ok {
		return errors.Wrap(errAppNotFoundInCtx, "retrieving object from context")
	}
	return ctx.JSON(http.StatusOK, app)
}

func (api *applicationApi) form(ctx echo.Context) error {
	app, ok := ctx.Get(contextApplicationKey).(application.Application)
	if !ok {
		return errors.Wrap(errAppNotFoundInCtx, "retrieving object from context")
	}
	if api.formSvc == nil {
		return errFormUnavailable
	}

	doc, err := api.formSvc.Render(ctx.Request().Context(), app)
	if err != nil {
		switch errors.Cause(err) {
		case enrollform.ErrNoTemplate:
			return errFormUnavailable
		case enrollform.ErrIncompleteRecord:
			return core.NewValidationError(err)
		}
		return errors.Wrap(err, "rendering enrollment form")
	}
	return attachment(ctx, doc.ContentType, doc.Filename, doc.Bytes)
}

func (api *applicationApi) exportXLSX(ctx echo.Context) error {
	filter, ordering, err := bindQuery(ctx)
	if err != nil {
		return err
	}
	apps, err := api.svc.Query(ctx.Request().Context(), filter, ordering)
	if err != nil {
		return errors.Wrap(err, "querying applications")
	}

	var buf bytes.Buffer
	if err = exportsvc.WriteXLSX(&buf, apps); err != nil {
		return errors.Wrap(err, "writing workbook")
	}
	filename := fmt.Sprintf("applications-%s.xlsx", time.Now().UTC().Format("20060102"))
	return attachment(ctx, exportsvc.XLSXContentType, filename, buf.Bytes())
}

func (api *applicationApi) exportSheets(ctx echo.Context) error {
	n, err := api.svc.SyncSpreadsheet(ctx.Request().Context())
	if err != nil {
		if errors.Cause(err) == application.ErrSpreadsheetDisabled {
			return errSheetUnavailable
		}
		api.metrics.SheetSync(false)
		return errors.Wrap(err, "syncing spreadsheet")
	}
	api.metrics.SheetSync(true)
	return ctx.JSON(http.StatusOK, SyncResponse{Message: "Spreadsheet updated", Count: n})
}

func (api *applicationApi) objectMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		app, err := api.svc.GetByID(ctx.Request().Context(), ctx.Param("id"))
		if err != nil {
			if errors.Cause(err) == application.ErrNotFound {
				return errHttpNotFound
			}
			return errors.Wrap(err, "finding application by ID")
		}
		ctx.Set(contextApplicationKey, app)
		return next(ctx)
	}
}

func attachment(ctx echo.Context, contentType, filename string, content []byte) error {
	ctx.Response().Header().Set(echo.HeaderContentDisposition, mime.FormatMediaType("attachment", map[string]string{"filename": filename}))
	return ctx.Blob(http.StatusOK, contentType, content)
}

type SyncResponse struct {
	Message string `json:"message"`
	Count   int    `json:"count"`
}
