package main

import (
	"context"
	"fmt"
	"os"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/enrollgsrp/gsrp-enroll/core"
	"github.com/enrollgsrp/gsrp-enroll/core/enrollform"
	"github.com/enrollgsrp/gsrp-enroll/core/user"
	emailsvc "github.com/enrollgsrp/gsrp-enroll/services/email"
	logsvc "github.com/enrollgsrp/gsrp-enroll/services/logger"
	pdfsvc "github.com/enrollgsrp/gsrp-enroll/services/pdf"
	"github.com/enrollgsrp/gsrp-enroll/storage/database"
)

func main() {
	conf := core.NewConfig()
	logger := logsvc.NewStdoutLogger("ADMIN", conf.Debug)

	// set up DB
	ctx, cancel := context.WithTimeout(context.Background(), conf.Database.ConnectTimeout)
	store, err := database.Open(ctx, conf.Database)
	cancel()
	if err != nil {
		logger.Fatal(fmt.Sprintf("opening database: %v", err), err)
	}

	// set up services
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	validate := validator.New()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)

	// the CLI sends no email
	mailSvc := emailsvc.NewConsoleService(conf, logger)
	opts := enrollform.Options{Grade: conf.Form.Grade, SchoolYear: conf.Form.SchoolYear}

	// start CLI
	cli := commandLine{
		store:   store,
		usrSvc:  user.NewService(store.Users, mailSvc, validate, conf),
		formSvc: enrollform.NewService(pdfsvc.NewFiller(), conf.Form.TemplatePath, opts, logger),
		out:     os.Stdout,
	}
	err = cli.run(os.Args)

	if cErr := store.Close(context.Background()); cErr != nil {
		logger.Error("closing database", cErr)
	}
	if err != nil {
		if err != errHelp {
			logger.Error(fmt.Sprintf("error: %s", err), err)
		}
		os.Exit(1)
	}
}
