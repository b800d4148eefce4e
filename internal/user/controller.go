package user

import (
	"errors"
	"net/http"

	"todo_auth/internal/activity"
	"todo_auth/internal/apperror"
	"todo_auth/internal/auth"
	"todo_auth/internal/cache"
	"todo_auth/internal/observability"
	"todo_auth/internal/response"
	"todo_auth/internal/todo"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// CookieOptions controls the session cookie written on login.
type CookieOptions struct {
	Name   string
	Secure bool
}

type UserController struct {
	userService UserServiceInterface
	issuer      *auth.TokenIssuer
	denylist    cache.TokenDenylist
	events      activity.EmitterInterface
	cookie      CookieOptions
}

func NewUserController(
	userService UserServiceInterface,
	issuer *auth.TokenIssuer,
	denylist cache.TokenDenylist,
	events activity.EmitterInterface,
	cookie CookieOptions,
) *UserController {
	return &UserController{
		userService: userService,
		issuer:      issuer,
		denylist:    denylist,
		events:      events,
		cookie:      cookie,
	}
}

type registerRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

type authResponse struct {
	IsAuthenticated bool    `json:"isAuthenticated"`
	User            Profile `json:"user"`
}

// Register handles user registration
func (a *UserController) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Message(c, http.StatusBadRequest, "Invalid request body!", true)
		return
	}

	if _, err := a.userService.Register(c.Request.Context(), req.Username, req.Password, req.Role); err != nil {
		response.Error(c, err)
		return
	}

	response.Message(c, http.StatusCreated, "Account successfully created!", false)
}

// Login runs after the local strategy has resolved the user. It issues a
// token and sets it as an HttpOnly cookie.
func (a *UserController) Login(c *gin.Context) {
	u, err := FromContext(c)
	if err != nil {
		response.Error(c, apperror.Authentication("Unauthorized"))
		return
	}

	token, _, err := a.issuer.Issue(u.ID)
	if err != nil {
		observability.GlobalMetrics.LoginAttemptsTotal.WithLabelValues("error").Inc()
		response.Error(c, apperror.Storage("issue token", err))
		return
	}

	a.setTokenCookie(c, token, int(a.issuer.TTL().Seconds()))
	observability.GlobalMetrics.TokensIssuedTotal.Inc()
	observability.GlobalMetrics.LoginAttemptsTotal.WithLabelValues("success").Inc()
	a.events.Emit(c.Request.Context(), activity.NewEvent(activity.UserLoggedIn, u.ID, ""))

	c.JSON(http.StatusOK, authResponse{IsAuthenticated: true, User: u.Profile()})
}

// Logout clears the cookie and revokes the presented token.
func (a *UserController) Logout(c *gin.Context) {
	u, err := FromContext(c)
	if err != nil {
		response.Error(c, apperror.Authentication("Unauthorized"))
		return
	}

	if claims, ok := ClaimsFromContext(c); ok && claims.ID != "" && claims.ExpiresAt != nil {
		if err := a.denylist.Revoke(c.Request.Context(), claims.ID, claims.ExpiresAt.Time); err != nil {
			logrus.WithError(err).WithField("user_id", u.ID).Warn("Failed to revoke token on logout")
		} else {
			observability.GlobalMetrics.TokensRevokedTotal.Inc()
		}
	}

	a.setTokenCookie(c, "", -1)
	a.events.Emit(c.Request.Context(), activity.NewEvent(activity.UserLoggedOut, u.ID, ""))

	c.JSON(http.StatusOK, gin.H{
		"user":    Profile{Username: "", Role: ""},
		"success": true,
	})
}

// CreateTodo stores the request body as a new todo owned by the caller.
func (a *UserController) CreateTodo(c *gin.Context) {
	u, err := FromContext(c)
	if err != nil {
		response.Error(c, apperror.Authentication("Unauthorized"))
		return
	}

	fields, err := todo.DecodeFields(c.Request.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.Message(c, http.StatusRequestEntityTooLarge, "Todo is too large!", true)
			return
		}
		response.Message(c, http.StatusBadRequest, "Todo must be a JSON object!", true)
		return
	}

	if _, err := a.userService.AddTodo(c.Request.Context(), u.ID, fields); err != nil {
		response.Error(c, err)
		return
	}

	response.Message(c, http.StatusOK, "Successfully created!", false)
}

// GetTodos lists the caller's todos in creation order.
func (a *UserController) GetTodos(c *gin.Context) {
	u, err := FromContext(c)
	if err != nil {
		response.Error(c, apperror.Authentication("Unauthorized"))
		return
	}

	todos, err := a.userService.ListTodos(c.Request.Context(), u.ID)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"todos":         todos,
		"authenticated": true,
	})
}

// Admin answers 200 only for users with the admin role.
func (a *UserController) Admin(c *gin.Context) {
	u, err := FromContext(c)
	if err != nil {
		response.Error(c, apperror.Authentication("Unauthorized"))
		return
	}

	if !u.IsAdmin() {
		response.Error(c, apperror.Authorization("You are not an admin! Go Away!"))
		return
	}

	response.Message(c, http.StatusOK, "You are an admin!", false)
}

// Authenticated echoes the identity behind the session cookie.
func (a *UserController) Authenticated(c *gin.Context) {
	u, err := FromContext(c)
	if err != nil {
		response.Error(c, apperror.Authentication("Unauthorized"))
		return
	}

	c.JSON(http.StatusOK, authResponse{IsAuthenticated: true, User: u.Profile()})
}

func (a *UserController) setTokenCookie(c *gin.Context, value string, maxAge int) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(a.cookie.Name, value, maxAge, "/", "", a.cookie.Secure, true)
}
