package api

import (
	"net/http"
	"time"

	"github.com/example/ec-storefront/internal/api/middleware"
	"github.com/example/ec-storefront/internal/auth"
	"github.com/example/ec-storefront/internal/command"
	"github.com/example/ec-storefront/internal/query"
	"github.com/example/ec-storefront/internal/readmodel"
	"github.com/gin-gonic/gin"
)

// AuthHandlers handles authentication-related HTTP requests
type AuthHandlers struct {
	cmdHandler   *command.Handler
	queryHandler *query.Handler
	jwtService   *auth.JWTService
}

// NewAuthHandlers creates a new AuthHandlers instance
func NewAuthHandlers(cmdHandler *command.Handler, queryHandler *query.Handler, jwtService *auth.JWTService) *AuthHandlers {
	return &AuthHandlers{
		cmdHandler:   cmdHandler,
		queryHandler: queryHandler,
		jwtService:   jwtService,
	}
}

// LoginRequest represents the login request body
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse represents the authentication response
type LoginResponse struct {
	Token     string                      `json:"token"`
	ExpiresAt time.Time                   `json:"expires_at"`
	Account   *readmodel.AccountReadModel `json:"account"`
}

// Register handles account registration
func (h *AuthHandlers) Register(c *gin.Context) {
	var cmd command.Register
	if !bindJSON(c, &cmd, false) {
		return
	}

	acct, err := h.cmdHandler.Register(c.Request.Context(), cmd)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, readmodel.NewAccountReadModel(acct))
}

// Login verifies credentials and issues an access token, both in the body
// and as an HttpOnly cookie.
func (h *AuthHandlers) Login(c *gin.Context) {
	var req LoginRequest
	if !bindJSON(c, &req, false) {
		return
	}

	acct, err := h.cmdHandler.Authenticate(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		respondError(c, err)
		return
	}

	token, expiresAt, err := h.jwtService.GenerateAccessToken(acct.ID, acct.Email, acct.Role)
	if err != nil {
		respondError(c, err)
		return
	}
	h.setAuthCookie(c, token, expiresAt)

	c.JSON(http.StatusOK, LoginResponse{
		Token:     token,
		ExpiresAt: expiresAt,
		Account:   readmodel.NewAccountReadModel(acct),
	})
}

// Logout clears the access token cookie
func (h *AuthHandlers) Logout(c *gin.Context) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     middleware.AccessTokenCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
	c.Status(http.StatusNoContent)
}

// Me returns the current account profile
func (h *AuthHandlers) Me(c *gin.Context) {
	profile, err := h.queryHandler.GetAccount(c.Request.Context(), middleware.GetAccountID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

func (h *AuthHandlers) setAuthCookie(c *gin.Context, token string, expiresAt time.Time) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     middleware.AccessTokenCookie,
		Value:    token,
		Path:     "/",
		Expires:  expiresAt,
		HttpOnly: true,
		Secure:   c.Request.TLS != nil,
		SameSite: http.SameSiteStrictMode,
	})
}
