package echoapi

import (
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/enrollgsrp/gsrp-enroll/core/user"
)

// sessionMiddleware attaches the claims of a live session cookie to the context.
// Requests without a valid session go through anonymously.
func sessionMiddleware(sm *sessionManager) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			cookie, err := ctx.Cookie(sm.cookieName)
			if err != nil || cookie.Value == "" {
				return next(ctx)
			}
			claims, err := sm.parse(ctx.Request().Context(), cookie.Value)
			if err != nil {
				if errors.Cause(err) == errUnauthorized {
					return next(ctx)
				}
				return errors.Wrap(err, "checking session")
			}
			ctx.Set(contextClaimsKey, claims)
			return next(ctx)
		}
	}
}

func sessionRequired(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		if _, err := getContextClaims(ctx); err != nil {
			return err
		}
		return next(ctx)
	}
}

// adminMiddleware checks the stored user, so that revoked admins lose access before their session expires.
func adminMiddleware(svc user.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			usr, err := getContextUser(ctx, svc)
			if err != nil {
				return errors.Wrap(err, "getting context user")
			}
			if !usr.IsAdmin {
				return errHttpForbidden
			}
			return next(ctx)
		}
	}
}
