package main

import (
	"context"
	"expvar"
	"fmt"
	"net/http"
	_ "net/http/pprof" // register the /debug/pprof handlers
	"os"

	"github.com/robfig/cron/v3"

	echoapi "github.com/enrollgsrp/gsrp-enroll/apps/api/echo"
	"github.com/enrollgsrp/gsrp-enroll/core"
	"github.com/enrollgsrp/gsrp-enroll/core/application"
	metricsvc "github.com/enrollgsrp/gsrp-enroll/services/metrics"
	"github.com/enrollgsrp/gsrp-enroll/storage/database"
)

// API_CONTAINER=manual wires the dependencies by hand instead of through dig.
func main() {
	if os.Getenv("API_CONTAINER") == "manual" {
		startManual()
		return
	}
	startWithDig()
}

// app holds what run needs once every dependency is built.
type app struct {
	conf     *core.Config
	logger   core.Logger
	dbLogger core.Logger
	store    *database.Store
	appSvc   application.Service
	metrics  *metricsvc.Metrics
	server   *echoapi.Server
}

func (a *app) run() {
	conf, logger := a.conf, a.logger

	logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
	defer logger.Info("Application stopped")

	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
		defer cancel()
		if err := a.store.Close(ctx); err != nil {
			a.dbLogger.Error("Failed to close", err)
		}
	}()

	// =========================================================================
	// Start Debug Service
	//
	// /debug/pprof - Added to the default mux by importing the net/http/pprof package.
	// /debug/vars - Added to the default mux by importing the expvar package.
	// /metrics - Prometheus collectors.

	// Expose important info under /debug/vars.
	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)
	expvar.NewString("database").Set(a.store.Engine)
	http.Handle("/metrics", a.metrics.Handler())

	go func() {
		if err := http.ListenAndServe(conf.Server.DebugAddress, http.DefaultServeMux); err != nil {
			logger.Error(fmt.Sprintf("debug server closed: %v", err), err)
		}
	}()

	// =========================================================================
	// Start Scheduled Jobs

	scheduler, err := newScheduler(conf.Sheets.Schedule, a.appSvc, a.metrics, logger)
	if err != nil {
		logger.Fatal(fmt.Sprintf("scheduling spreadsheet sync: %v", err), err)
	}
	scheduler.Start()
	defer func() { <-scheduler.Stop().Done() }()

	// =========================================================================
	// Start API Service

	go func() {
		a.server.Start()
	}()

	// =========================================================================
	// Shutdown

	select {
	case err = <-a.server.Errors():
		logger.Error(fmt.Sprintf("server error: %v", err), err)

	case sig := <-a.server.ShutdownSignal():
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

		// give outstanding requests a deadline for completion
		ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
		defer cancel()

		// asking listener to shut down and shed load
		if err = a.server.Shutdown(ctx); err != nil {
			logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)

			if err = a.server.Close(); err != nil {
				logger.Error(fmt.Sprintf("could not force stop server: %v", err), err)
			}
		}
	}
}

// newScheduler runs the spreadsheet sync on schedule. An empty schedule
// returns a scheduler without jobs.
func newScheduler(schedule string, appSvc application.Service, metrics *metricsvc.Metrics, logger core.Logger) (*cron.Cron, error) {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if schedule == "" {
		return c, nil
	}
	if _, err := c.AddFunc(schedule, func() { syncSpreadsheet(context.Background(), appSvc, metrics, logger) }); err != nil {
		return nil, err
	}
	logger.Info(fmt.Sprintf("spreadsheet sync scheduled: %q", schedule))
	return c, nil
}

func syncSpreadsheet(ctx context.Context, appSvc application.Service, metrics *metricsvc.Metrics, logger core.Logger) {
	n, err := appSvc.SyncSpreadsheet(ctx)
	if err != nil {
		metrics.SheetSync(false)
		logger.Error("scheduled spreadsheet sync", err)
		return
	}
	metrics.SheetSync(true)
	logger.Info(fmt.Sprintf("spreadsheet synced: %d applications", n))
}
