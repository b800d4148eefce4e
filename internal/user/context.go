package user

import (
	"errors"

	"todo_auth/internal/auth"

	"github.com/gin-gonic/gin"
)

const (
	ContextKey = "user"
	ClaimsKey  = "tokenClaims"
)

// FromContext returns the user stored by the authentication middleware.
func FromContext(c *gin.Context) (*User, error) {
	v, exists := c.Get(ContextKey)
	if !exists {
		return nil, errors.New("user not found in context")
	}

	u, ok := v.(*User)
	if !ok || u == nil {
		return nil, errors.New("invalid user type in context")
	}

	return u, nil
}

// ClaimsFromContext returns the verified token claims, set only by the bearer
// strategy.
func ClaimsFromContext(c *gin.Context) (*auth.Claims, bool) {
	v, exists := c.Get(ClaimsKey)
	if !exists {
		return nil, false
	}
	claims, ok := v.(*auth.Claims)
	return claims, ok && claims != nil
}
