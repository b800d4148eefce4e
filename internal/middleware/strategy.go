package middleware

import (
	"context"
	"errors"

	"todo_auth/internal/apperror"
	"todo_auth/internal/auth"
	"todo_auth/internal/cache"
	"todo_auth/internal/observability"
	"todo_auth/internal/user"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// Strategy resolves a request to a user or rejects it. Bearer strategies
// also return the verified token claims.
type Strategy interface {
	Name() string
	Authenticate(c *gin.Context) (*user.User, *auth.Claims, error)
}

type CredentialVerifier interface {
	Authenticate(ctx context.Context, username, password string) (*user.User, error)
}

type UserLoader interface {
	GetUserByID(ctx context.Context, id string) (*user.User, error)
}

// LocalStrategy checks a username and password from the JSON body.
type LocalStrategy struct {
	verifier CredentialVerifier
}

func NewLocalStrategy(verifier CredentialVerifier) *LocalStrategy {
	return &LocalStrategy{verifier: verifier}
}

func (s *LocalStrategy) Name() string { return "local" }

func (s *LocalStrategy) Authenticate(c *gin.Context) (*user.User, *auth.Claims, error) {
	var req struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		observability.GlobalMetrics.LoginAttemptsTotal.WithLabelValues("bad_request").Inc()
		return nil, nil, apperror.Validation("Missing credentials")
	}

	u, err := s.verifier.Authenticate(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, apperror.ErrAuthentication) {
			observability.GlobalMetrics.LoginAttemptsTotal.WithLabelValues("invalid_credentials").Inc()
		} else {
			observability.GlobalMetrics.LoginAttemptsTotal.WithLabelValues("error").Inc()
		}
		return nil, nil, err
	}

	return u, nil, nil
}

// BearerStrategy checks the session cookie: signature, expiry, revocation
// and that the user still exists.
type BearerStrategy struct {
	issuer     *auth.TokenIssuer
	users      UserLoader
	denylist   cache.TokenDenylist
	cookieName string
}

func NewBearerStrategy(issuer *auth.TokenIssuer, users UserLoader, denylist cache.TokenDenylist, cookieName string) *BearerStrategy {
	return &BearerStrategy{
		issuer:     issuer,
		users:      users,
		denylist:   denylist,
		cookieName: cookieName,
	}
}

func (s *BearerStrategy) Name() string { return "bearer" }

func (s *BearerStrategy) Authenticate(c *gin.Context) (*user.User, *auth.Claims, error) {
	token, err := c.Cookie(s.cookieName)
	if err != nil || token == "" {
		return nil, nil, apperror.Authentication("Unauthorized")
	}

	claims, err := s.issuer.Verify(token)
	if err != nil {
		return nil, nil, &apperror.Error{Kind: apperror.ErrAuthentication, Message: "Unauthorized", Err: err}
	}

	ctx := c.Request.Context()

	revoked, err := s.denylist.IsRevoked(ctx, claims.ID)
	if err != nil {
		// Fail open: a Redis outage must not log every user out.
		logrus.WithError(err).Warn("Failed to check token denylist")
	}
	if revoked {
		return nil, nil, apperror.Authentication("Unauthorized")
	}

	u, err := s.users.GetUserByID(ctx, claims.UserID())
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, nil, apperror.Authentication("Unauthorized")
		}
		return nil, nil, err
	}

	return u, claims, nil
}
