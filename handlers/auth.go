package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/LovationAdmin/horizon-api/config"
	"github.com/LovationAdmin/horizon-api/middleware"
	"github.com/LovationAdmin/horizon-api/models"

	"github.com/gin-gonic/gin"
)

type AuthService interface {
	SignUp(ctx context.Context, req models.SignUpRequest) (*models.AuthResult, error)
	SignIn(ctx context.Context, email, password string) (*models.AuthResult, error)
	SignOut(ctx context.Context, sessionSecret string) error
}

type AuthHandler struct {
	Users   AuthService
	Session config.SessionConfig
}

func (h *AuthHandler) SignUp(c *gin.Context) {
	var req models.SignUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	result, err := h.Users.SignUp(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}

	h.setSessionCookie(c, result.Session)
	c.JSON(http.StatusCreated, gin.H{"user": result.User})
}

func (h *AuthHandler) SignIn(c *gin.Context) {
	var req models.SignInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	result, err := h.Users.SignIn(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		respondError(c, err)
		return
	}

	h.setSessionCookie(c, result.Session)
	c.JSON(http.StatusOK, gin.H{"user": result.User})
}

// SignOut deletes the session upstream. The cookie is cleared either way.
func (h *AuthHandler) SignOut(c *gin.Context) {
	err := h.Users.SignOut(c.Request.Context(), middleware.GetSessionSecret(c))
	h.clearSessionCookie(c)
	if err != nil {
		respondSessionError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Signed out"})
}

func (h *AuthHandler) Me(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"user": middleware.GetUser(c)})
}

// setSessionCookie lets the cookie live exactly as long as the backend keeps
// the session. Without a usable expiry it becomes a browser-session cookie.
func (h *AuthHandler) setSessionCookie(c *gin.Context, session *models.Session) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(h.Session.CookieName, session.Secret, cookieMaxAge(session.Expire), "/", "", h.Session.CookieSecure, true)
}

func cookieMaxAge(expire string) int {
	expiresAt, err := time.Parse(time.RFC3339, expire)
	if err != nil {
		return 0
	}
	seconds := int(time.Until(expiresAt).Seconds())
	if seconds <= 0 {
		return -1
	}
	return seconds
}

func (h *AuthHandler) clearSessionCookie(c *gin.Context) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(h.Session.CookieName, "", -1, "/", "", h.Session.CookieSecure, true)
}
