package echoapi

import (
	"github.com/labstack/echo/v4"

	"github.com/foureyes/bando/core/user"
)

// roleMiddleware lets the request through only when the token carries one of roles.
func roleMiddleware(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return err
			}
			if claims.HasRole(roles...) {
				return next(ctx)
			}
			return errAccessDenied
		}
	}
}

func staffMiddleware() echo.MiddlewareFunc {
	return roleMiddleware(user.StaffRoles...)
}
