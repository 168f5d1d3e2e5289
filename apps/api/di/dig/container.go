package dig_container

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"go.uber.org/dig"

	echoapi "github.com/enrollgsrp/gsrp-enroll/apps/api/echo"
	"github.com/enrollgsrp/gsrp-enroll/core"
	"github.com/enrollgsrp/gsrp-enroll/core/application"
	"github.com/enrollgsrp/gsrp-enroll/core/enrollform"
	"github.com/enrollgsrp/gsrp-enroll/core/user"
	emailsvc "github.com/enrollgsrp/gsrp-enroll/services/email"
	exportsvc "github.com/enrollgsrp/gsrp-enroll/services/export"
	logsvc "github.com/enrollgsrp/gsrp-enroll/services/logger"
	metricsvc "github.com/enrollgsrp/gsrp-enroll/services/metrics"
	pdfsvc "github.com/enrollgsrp/gsrp-enroll/services/pdf"
	sessionsvc "github.com/enrollgsrp/gsrp-enroll/services/session"
	"github.com/enrollgsrp/gsrp-enroll/storage/database"
)

type DBLoggerParam struct {
	dig.In
	Logger core.Logger `name:"dbLogger"`
}

func NewLogger(conf *core.Config) core.Logger {
	logger := logsvc.NewRollbarLogger(logsvc.NewStdoutLogger("API", conf.Debug), conf)
	logger.Enable(!conf.Debug && conf.RollbarToken != "")
	return logger
}

func NewDBLogger(conf *core.Config) core.Logger {
	logger := logsvc.NewRollbarLogger(logsvc.NewStdoutLogger("DB", conf.Debug), conf)
	logger.Enable(!conf.Debug && conf.RollbarToken != "")
	return logger
}

// NewStore opens the configured database and applies its migrations.
func NewStore(conf *core.Config, loggerParam DBLoggerParam) *database.Store {
	setUp := func() (*database.Store, error) {
		ctx, cancel := context.WithTimeout(context.Background(), conf.Database.ConnectTimeout)
		defer cancel()

		store, err := database.Open(ctx, conf.Database)
		if err != nil {
			return nil, err
		}
		if err = store.Migrate(ctx); err != nil {
			return nil, errors.Wrap(err, "migrating")
		}
		return store, nil
	}

	store, err := setUp()
	if err != nil {
		loggerParam.Logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	loggerParam.Logger.Info(fmt.Sprintf("database ready: %s", store.Engine))
	return store
}

func NewUserRepository(store *database.Store) user.Repository { return store.Users }

func NewApplicationRepository(store *database.Store) application.Repository {
	return store.Applications
}

// NewValidator returns a validator with every custom validator registered.
func NewValidator() (*validator.Validate, ut.Translator) {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")

	validate := validator.New()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	application.InitValidators(validate, translator)
	return validate, translator
}

// NewEmailService returns the configured provider, counted by metrics.
func NewEmailService(conf *core.Config, logger core.Logger, metrics *metricsvc.Metrics) core.EmailService {
	svc, err := emailsvc.New(conf, logger)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up email service: %v", err), err)
	}
	return metrics.EmailService(svc)
}

// NewSessionRegistry keeps sessions in Redis when configured, in memory otherwise.
func NewSessionRegistry(conf *core.Config, logger core.Logger) echoapi.SessionRegistry {
	if conf.Redis.URL == "" {
		logger.Warn("no redis configured: sessions are lost on restart")
		return sessionsvc.NewMemoryRegistry()
	}
	ctx, cancel := context.WithTimeout(context.Background(), conf.Database.ConnectTimeout)
	defer cancel()

	client, err := sessionsvc.OpenRedis(ctx, conf.Redis.URL)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up session registry: %v", err), err)
	}
	return sessionsvc.NewRedisRegistry(client)
}

func NewFormService(conf *core.Config, logger core.Logger) *enrollform.Service {
	opts := enrollform.Options{Grade: conf.Form.Grade, SchoolYear: conf.Form.SchoolYear}
	return enrollform.NewService(pdfsvc.NewFiller(), conf.Form.TemplatePath, opts, logger)
}

// NewSheetWriter returns nil when no spreadsheet is configured.
func NewSheetWriter(conf *core.Config, logger core.Logger) application.SpreadsheetWriter {
	if conf.Sheets.SpreadsheetID == "" {
		return nil
	}
	w, err := exportsvc.NewSheetsWriter(context.Background(), conf.Sheets, logger)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up spreadsheet export: %v", err), err)
	}
	return w
}

type AppServiceParam struct {
	dig.In
	Conf     *core.Config
	Logger   core.Logger
	Repo     application.Repository
	MailSvc  core.EmailService
	Validate *validator.Validate
	FormSvc  *enrollform.Service
	Sheet    application.SpreadsheetWriter
}

func NewApplicationService(p AppServiceParam) application.Service {
	deps := application.Deps{
		Repo:     p.Repo,
		MailSvc:  p.MailSvc,
		Validate: p.Validate,
		Logger:   p.Logger,
		Sheet:    p.Sheet,
	}
	if p.Conf.Form.TemplatePath != "" {
		deps.Renderer = p.FormSvc
	}
	return application.NewService(deps)
}

type ServerParam struct {
	dig.In
	Conf       *core.Config
	Logger     core.Logger
	UserSvc    user.Service
	AppSvc     application.Service
	FormSvc    *enrollform.Service
	Sessions   echoapi.SessionRegistry
	Metrics    *metricsvc.Metrics
	Validate   *validator.Validate
	Translator ut.Translator
}

func NewServer(p ServerParam) *echoapi.Server {
	return echoapi.NewServer(echoapi.ServerDeps{
		Conf:       p.Conf,
		Logger:     p.Logger,
		UserSvc:    p.UserSvc,
		AppSvc:     p.AppSvc,
		FormSvc:    p.FormSvc,
		Sessions:   p.Sessions,
		Metrics:    p.Metrics,
		Validate:   p.Validate,
		Translator: p.Translator,
	})
}

// New returns a new dependency injection dig.Container
func New() *dig.Container {
	c := dig.New()

	must(c.Provide(core.NewConfig))
	must(c.Provide(NewLogger))
	must(c.Provide(NewDBLogger, dig.Name("dbLogger")))
	must(c.Provide(NewStore))
	must(c.Provide(NewUserRepository))
	must(c.Provide(NewApplicationRepository))
	must(c.Provide(NewValidator))
	must(c.Provide(metricsvc.New))
	must(c.Provide(NewEmailService))
	must(c.Provide(NewSessionRegistry))
	must(c.Provide(NewFormService))
	must(c.Provide(NewSheetWriter))
	must(c.Provide(user.NewService))
	must(c.Provide(NewApplicationService))
	must(c.Provide(NewServer))

	if os.Getenv("DIG_VISUALIZE") != "" {
		_ = dig.Visualize(c, os.Stdout)
	}

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
