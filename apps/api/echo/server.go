package echoapi

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"golang.org/x/time/rate"

	"github.com/enrollgsrp/gsrp-enroll/core"
	"github.com/enrollgsrp/gsrp-enroll/core/application"
	"github.com/enrollgsrp/gsrp-enroll/core/enrollform"
	"github.com/enrollgsrp/gsrp-enroll/core/user"
	metricsvc "github.com/enrollgsrp/gsrp-enroll/services/metrics"
)

type (
	// FormService renders the filled enrollment form of an application.
	FormService interface {
		Render(ctx context.Context, app application.Application) (enrollform.Document, error)
	}

	ServerDeps struct {
		Conf           *core.Config
		Logger         core.Logger
		UserSvc        user.Service
		AppSvc         application.Service
		FormSvc        FormService // optional
		Sessions       SessionRegistry
		Metrics        *metricsvc.Metrics
		Validate       *validator.Validate
		Translator     ut.Translator
		DisableReqLogs bool
	}

	Server struct {
		ServerDeps
		app      *echo.Echo
		server   *http.Server
		sessions *sessionManager
		errors   chan error
		shutdown chan os.Signal
	}
)

func NewServer(deps ServerDeps) *Server {
	s := &Server{
		ServerDeps: deps,
		app:        echo.New(),
		errors:     make(chan error, 1),
		shutdown:   make(chan os.Signal, 1),
	}
	s.sessions = newSessionManager(deps.Conf, deps.Sessions)
	s.server = &http.Server{
		Addr:         deps.Conf.Server.Address,
		Handler:      s.app,
		ReadTimeout:  deps.Conf.Server.ReadTimeout,
		WriteTimeout: deps.Conf.Server.WriteTimeout,
	}
	signal.Notify(s.shutdown, os.Interrupt, syscall.SIGTERM)
	s.setup()
	return s
}

func (s *Server) setup() {
	conf := s.Conf

	s.app.Pre(middleware.RemoveTrailingSlash())
	if !s.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}
	s.app.Use(s.Metrics.Middleware())
	s.app.Use(sessionMiddleware(s.sessions))

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.Logger, s.Translator, s.signalShutdown)
	s.app.Debug = conf.Debug
	s.app.HideBanner = true

	s.app.GET("/", home)

	api := s.app.Group("/api")
	authLimit := rateLimiter(conf.Server)

	registerAuthAPI(api, authLimit, s.sessions, s.UserSvc, s.Metrics, s.Validate)
	registerUserAPI(api, authLimit, s.UserSvc, s.Validate)
	registerApplicationAPI(api, s.UserSvc, s.AppSvc, s.FormSvc, s.Metrics, s.Validate)
}

// Start listens on the configured address. Errors other than a shutdown are sent to Errors().
func (s *Server) Start() {
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		s.errors <- err
	}
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// Close stops the server immediately.
func (s *Server) Close() error {
	return s.server.Close()
}

func (s *Server) Errors() <-chan error {
	return s.errors
}

func (s *Server) ShutdownSignal() <-chan os.Signal {
	return s.shutdown
}

func (s *Server) signalShutdown() {
	select {
	case s.shutdown <- syscall.SIGTERM:
	default: // already shutting down
	}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

// SessionCookie starts a session for usr outside of a request (for tests).
func (s *Server) SessionCookie(ctx context.Context, usr user.User) (*http.Cookie, error) {
	_, cookie, err := s.sessions.issue(ctx, usr)
	return cookie, err
}

func rateLimiter(conf core.ServerConfig) echo.MiddlewareFunc {
	store := middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
		Rate:      rate.Limit(conf.AuthRateLimit),
		Burst:     conf.AuthRateBurst,
		ExpiresIn: 3 * time.Minute,
	})
	return middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Store: store,
		DenyHandler: func(ctx echo.Context, identifier string, err error) error {
			return errTooManyRequests
		},
	})
}

func home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to Enroll GSRP API!")
}
