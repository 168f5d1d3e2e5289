package echoapi

import (
	"context"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/enrollgsrp/gsrp-enroll/core"
	"github.com/enrollgsrp/gsrp-enroll/core/user"
)

const (
	contextClaimsKey = "sessionClaims"
	contextUserKey   = "user"
)

type (
	// SessionRegistry tracks the live sessions, so that a signed cookie is only
	// honoured until logout.
	SessionRegistry interface {
		Register(ctx context.Context, id, userID string, ttl time.Duration) error
		Active(ctx context.Context, id string) (bool, error)
		Revoke(ctx context.Context, id string) error
	}

	// Claims represents the session claims carried by the session cookie.
	Claims struct {
		jwt.RegisteredClaims
		Email       string `json:"email,omitempty"`
		Name        string `json:"name,omitempty"`
		IsConfirmed bool   `json:"confirmed,omitempty"`
		IsAdmin     bool   `json:"admin,omitempty"`
		LoggedInAt  int64  `json:"lat"`
	}

	Session struct {
		User       user.User `json:"user"`
		LoggedInAt time.Time `json:"loggedInAt"`
	}

	sessionManager struct {
		secret     []byte
		issuer     string
		cookieName string
		ttl        time.Duration
		secure     bool
		registry   SessionRegistry
		nowFunc    func() time.Time
	}
)

func newSessionManager(conf *core.Config, registry SessionRegistry) *sessionManager {
	return &sessionManager{
		secret:     []byte(conf.SecretKey),
		issuer:     conf.AppName,
		cookieName: conf.Server.SessionCookie,
		ttl:        conf.Server.SessionTTL,
		secure:     conf.Server.SecureCookies,
		registry:   registry,
		nowFunc:    time.Now,
	}
}

func (sm *sessionManager) newClaims(usr user.User, now time.Time) *Claims {
	return &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    sm.issuer,
			Subject:   usr.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(sm.ttl)),
		},
		Email:       usr.Email,
		Name:        usr.Name,
		IsConfirmed: usr.IsConfirmed,
		IsAdmin:     usr.IsAdmin,
		LoggedInAt:  now.Unix(),
	}
}

func (sm *sessionManager) cookie(value string, expires time.Time) *http.Cookie {
	return &http.Cookie{
		Name:     sm.cookieName,
		Value:    value,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   sm.secure,
		SameSite: http.SameSiteLaxMode,
	}
}

// issue signs a new session for usr and registers it.
func (sm *sessionManager) issue(ctx context.Context, usr user.User) (*Claims, *http.Cookie, error) {
	now := sm.nowFunc().UTC()
	claims := sm.newClaims(usr, now)

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(sm.secret)
	if err != nil {
		return nil, nil, errors.Wrap(err, "signing session token")
	}
	if err = sm.registry.Register(ctx, claims.ID, usr.ID, sm.ttl); err != nil {
		return nil, nil, err
	}
	return claims, sm.cookie(token, now.Add(sm.ttl)), nil
}

// start replaces the session of the request with a new one for usr.
func (sm *sessionManager) start(ctx echo.Context, usr user.User) (Session, error) {
	if err := sm.end(ctx); err != nil {
		return Session{}, err
	}
	claims, cookie, err := sm.issue(ctx.Request().Context(), usr)
	if err != nil {
		return Session{}, err
	}
	ctx.SetCookie(cookie)
	ctx.Set(contextClaimsKey, *claims)
	ctx.Set(contextUserKey, usr)
	return Session{User: usr, LoggedInAt: unixUTC(claims.LoggedInAt)}, nil
}

// end revokes the session of the request, if any, and expires the cookie.
func (sm *sessionManager) end(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return nil
	}
	if err = sm.registry.Revoke(ctx.Request().Context(), claims.ID); err != nil {
		return err
	}
	ctx.SetCookie(sm.cookie("", time.Unix(0, 0)))
	ctx.Set(contextClaimsKey, nil)
	ctx.Set(contextUserKey, nil)
	return nil
}

// parse verifies the signature, expiry and liveness of a session token.
func (sm *sessionManager) parse(ctx context.Context, raw string) (Claims, error) {
	claims := new(Claims)
	_, err := jwt.ParseWithClaims(raw, claims,
		func(*jwt.Token) (interface{}, error) { return sm.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(sm.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(sm.nowFunc),
	)
	if err != nil {
		return Claims{}, errUnauthorized
	}

	active, err := sm.registry.Active(ctx, claims.ID)
	if err != nil {
		return Claims{}, err
	}
	if !active {
		return Claims{}, errUnauthorized
	}
	return *claims, nil
}

func getContextClaims(ctx echo.Context) (Claims, error) {
	if claims, ok := ctx.Get(contextClaimsKey).(Claims); ok {
		return claims, nil
	}
	return Claims{}, errUnauthorized
}

// getContextUser loads the user of the session, once per request.
func getContextUser(ctx echo.Context, svc user.Service) (user.User, error) {
	if usr, ok := ctx.Get(contextUserKey).(user.User); ok {
		return usr, nil
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return user.User{}, err
	}
	usr, err := svc.GetByID(ctx.Request().Context(), claims.Subject)
	if err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			return user.User{}, errUnauthorized
		}
		return user.User{}, errors.Wrap(err, "finding user by ID")
	}
	ctx.Set(contextUserKey, usr)
	return usr, nil
}

func unixUTC(sec int64) time.Time {
	return time.Unix(sec, 0).UTC()
}
