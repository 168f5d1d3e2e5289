package echoapi

import (
	"net/http"
	"net/mail"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/enrollgsrp/gsrp-enroll/core"
	"github.com/enrollgsrp/gsrp-enroll/core/user"
	metricsvc "github.com/enrollgsrp/gsrp-enroll/services/metrics"
)

const emailSentMessage = "Completed sending email"

type authApi struct {
	sessions *sessionManager
	svc      user.Service
	metrics  *metricsvc.Metrics
	validate *validator.Validate
}

func registerAuthAPI(
	g *echo.Group,
	rateLimit echo.MiddlewareFunc,
	sessions *sessionManager,
	svc user.Service,
	metrics *metricsvc.Metrics,
	validate *validator.Validate,
) {
	api := authApi{
		sessions: sessions,
		svc:      svc,
		metrics:  metrics,
		validate: validate,
	}

	ag := g.Group("/auth")
	ag.POST("/register", api.register, rateLimit)
	ag.POST("/login", api.login, rateLimit)
	ag.POST("/logout", api.logout, sessionRequired)
	ag.GET("/session", api.session, sessionRequired)
}

func (api *authApi) register(ctx echo.Context) error {
	if err := api.sessions.end(ctx); err != nil {
		return errors.Wrap(err, "clearing session")
	}

	var data user.NewUser
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewUser")
	}
	usr, err := api.svc.Register(ctx.Request().Context(), data)
	if err != nil {
		return err
	}
	api.metrics.UserRegistered()

	if _, err = api.sessions.start(ctx, usr); err != nil {
		return errors.Wrap(err, "starting session")
	}
	return ctx.JSON(http.StatusOK, RegisterResponse{Email: usr.Email, Name: usr.Name})
}

func (api *authApi) login(ctx echo.Context) error {
	var data user.LoginRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to LoginRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		api.metrics.Login(false)
		return core.NewValidationError(user.ErrInvalidCredentials)
	}

	usr, err := api.svc.Authenticate(ctx.Request().Context(), data.Email, data.Password)
	if err != nil {
		api.metrics.Login(false)
		return err
	}
	api.metrics.Login(true)

	sess, err := api.sessions.start(ctx, usr)
	if err != nil {
		return errors.Wrap(err, "starting session")
	}
	return ctx.JSON(http.StatusOK, sess)
}

func (api *authApi) logout(ctx echo.Context) error {
	if err := api.sessions.end(ctx); err != nil {
		return errors.Wrap(err, "ending session")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *authApi) session(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	usr, err := getContextUser(ctx, api.svc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	return ctx.JSON(http.StatusOK, Session{User: usr, LoggedInAt: unixUTC(claims.LoggedInAt)})
}

type userApi struct {
	svc      user.Service
	validate *validator.Validate
}

func registerUserAPI(g *echo.Group, rateLimit echo.MiddlewareFunc, svc user.Service, validate *validator.Validate) {
	api := userApi{
		svc:      svc,
		validate: validate,
	}
	admin := adminMiddleware(svc)

	ug := g.Group("/user")

	// un-authed endpoints
	ug.POST("/confirm", api.confirm)
	ug.POST("/sendConfirmation", api.sendConfirmation, rateLimit)

	// admin endpoints
	ug.GET("", api.query, sessionRequired, admin)
	ug.GET("/test", api.sendTestMessage, sessionRequired, admin)
}

func (api *userApi) confirm(ctx echo.Context) error {
	var data ConfirmRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ConfirmRequest")
	}
	if _, err := api.svc.Confirm(ctx.Request().Context(), data.ConfirmationToken); err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, MessageResponse{Message: "User successfully confirmed."})
}

func (api *userApi) sendConfirmation(ctx echo.Context) error {
	var data SendConfirmationRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to SendConfirmationRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	if err := api.svc.SendConfirmation(ctx.Request().Context(), data.Email); err != nil {
		return errors.Wrap(err, "sending confirmation")
	}
	return ctx.JSON(http.StatusOK, emailSentMessage)
}

func (api *userApi) sendTestMessage(ctx echo.Context) error {
	var to mail.Address
	if raw := ctx.QueryParam("to"); raw != "" {
		addr, err := mail.ParseAddress(raw)
		if err != nil {
			return core.NewValidationError(nil, core.FieldError{Field: "to", Error: "must be a valid email address"})
		}
		to = *addr
	}
	if err := api.svc.SendTestMessage(ctx.Request().Context(), to); err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, emailSentMessage)
}

func (api *userApi) query(ctx echo.Context) error {
	filter := new(user.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return invalidQueryError()
	}

	users, err := api.svc.Query(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying users")
	}
	if users == nil {
		users = []user.User{}
	}
	return ctx.JSON(http.StatusOK, users)
}

type (
	RegisterResponse struct {
		Email string `json:"email"`
		Name  string `json:"name"`
	}

	MessageResponse struct {
		Message string `json:"message"`
	}

	ConfirmRequest struct {
		ConfirmationToken string `json:"confirmationToken"`
	}

	SendConfirmationRequest struct {
		Email string `json:"email" validate:"required,email"`
	}
)

func (sr *SendConfirmationRequest) Validate(validate *validator.Validate) error {
	sr.Email = core.CleanString(sr.Email, true /* lower */)
	return validate.Struct(sr)
}
