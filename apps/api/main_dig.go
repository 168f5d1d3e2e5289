package main

import (
	dig_container "github.com/enrollgsrp/gsrp-enroll/apps/api/di/dig"
	echoapi "github.com/enrollgsrp/gsrp-enroll/apps/api/echo"
	"github.com/enrollgsrp/gsrp-enroll/core"
	"github.com/enrollgsrp/gsrp-enroll/core/application"
	metricsvc "github.com/enrollgsrp/gsrp-enroll/services/metrics"
	"github.com/enrollgsrp/gsrp-enroll/storage/database"
)

func startWithDig() {
	c := dig_container.New()

	err := c.Invoke(func(
		conf *core.Config,
		apiLogger core.Logger,
		dbLoggerParam dig_container.DBLoggerParam,
		store *database.Store,
		appSvc application.Service,
		metrics *metricsvc.Metrics,
		server *echoapi.Server,
	) {
		core.ParseEmailTemplates(apiLogger)

		a := &app{
			conf:     conf,
			logger:   apiLogger,
			dbLogger: dbLoggerParam.Logger,
			store:    store,
			appSvc:   appSvc,
			metrics:  metrics,
			server:   server,
		}
		a.run()
	})
	must(err)
}
