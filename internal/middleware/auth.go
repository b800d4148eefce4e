package middleware

import (
	"errors"

	"todo_auth/internal/apperror"
	"todo_auth/internal/auth"
	"todo_auth/internal/observability"
	"todo_auth/internal/response"
	"todo_auth/internal/user"

	"github.com/gin-gonic/gin"
)

// Authenticate runs strategy before the handler. A rejected request is
// answered here and never reaches the handler.
func Authenticate(strategy Strategy) gin.HandlerFunc {
	return func(c *gin.Context) {
		u, claims, err := strategy.Authenticate(c)
		if err != nil {
			observability.GlobalMetrics.AuthRejectionsTotal.WithLabelValues(strategy.Name(), rejectionReason(err)).Inc()
			response.Abort(c, err)
			return
		}

		c.Set(user.ContextKey, u)
		if claims != nil {
			c.Set(user.ClaimsKey, claims)
		}
		c.Next()
	}
}

func rejectionReason(err error) string {
	switch {
	case errors.Is(err, auth.ErrExpiredToken):
		return "expired"
	case errors.Is(err, auth.ErrInvalidToken):
		return "invalid_token"
	case errors.Is(err, apperror.ErrValidation):
		return "bad_request"
	case errors.Is(err, apperror.ErrAuthentication):
		return "unauthorized"
	default:
		return "error"
	}
}
