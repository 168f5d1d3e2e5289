package main

import (
	"log"

	dig_container "github.com/enrollgsrp/gsrp-enroll/apps/api/di/dig"
	echoapi "github.com/enrollgsrp/gsrp-enroll/apps/api/echo"
	"github.com/enrollgsrp/gsrp-enroll/core"
	"github.com/enrollgsrp/gsrp-enroll/core/user"
	metricsvc "github.com/enrollgsrp/gsrp-enroll/services/metrics"
)

func startManual() {
	// =========================================================================
	// Set up Dependencies

	conf := core.NewConfig()

	// set up loggers
	logger := dig_container.NewLogger(conf)
	dbLogger := dig_container.NewDBLogger(conf)

	// set up DB
	store := dig_container.NewStore(conf, dig_container.DBLoggerParam{Logger: dbLogger})

	// set up services
	validate, translator := dig_container.NewValidator()
	metrics := metricsvc.New()
	mailSvc := dig_container.NewEmailService(conf, logger, metrics)
	formSvc := dig_container.NewFormService(conf, logger)

	usrSvc := user.NewService(store.Users, mailSvc, validate, conf)
	appSvc := dig_container.NewApplicationService(dig_container.AppServiceParam{
		Conf:     conf,
		Logger:   logger,
		Repo:     store.Applications,
		MailSvc:  mailSvc,
		Validate: validate,
		FormSvc:  formSvc,
		Sheet:    dig_container.NewSheetWriter(conf, logger),
	})

	core.ParseEmailTemplates(logger)

	// =========================================================================
	// Start

	server := echoapi.NewServer(
		echoapi.ServerDeps{
			Conf:       conf,
			Logger:     logger,
			UserSvc:    usrSvc,
			AppSvc:     appSvc,
			FormSvc:    formSvc,
			Sessions:   dig_container.NewSessionRegistry(conf, logger),
			Metrics:    metrics,
			Validate:   validate,
			Translator: translator,
		},
	)

	a := &app{
		conf:     conf,
		logger:   logger,
		dbLogger: dbLogger,
		store:    store,
		appSvc:   appSvc,
		metrics:  metrics,
		server:   server,
	}
	a.run()
}

func must(err error) {
	if err != nil {
		log.Fatal(err)
	}
}
