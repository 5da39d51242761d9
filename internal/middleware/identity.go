package middleware

// identity.go reads the caller identity stored by JWTAuth.

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/area-reservation/internal/model"
)

// UserID returns the authenticated subject, or "" for anonymous requests.
func UserID(c echo.Context) string {
	if v, ok := c.Get(ctxUserID).(string); ok {
		return v
	}
	return ""
}

// Role returns the upper-cased role claim, or "".
func Role(c echo.Context) string {
	if v, ok := c.Get(ctxRole).(string); ok {
		return v
	}
	return ""
}

// Actor is the caller as seen by the service layer.
func Actor(c echo.Context) model.Actor {
	return model.Actor{UserID: UserID(c), Admin: Role(c) == RoleAdmin}
}

// rateKeyUser is UserID with a placeholder for anonymous callers.
func rateKeyUser(c echo.Context) string {
	if id := UserID(c); id != "" {
		return id
	}
	return "anon"
}
