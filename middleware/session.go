package middleware

import (
	"context"
	"net/http"

	"github.com/LovationAdmin/horizon-api/apperr"
	"github.com/LovationAdmin/horizon-api/models"
	"github.com/LovationAdmin/horizon-api/utils"

	"github.com/gin-gonic/gin"
)

const (
	userKey    = "user"
	sessionKey = "session_secret"
)

// UserResolver turns a session secret into the signed-in user.
type UserResolver interface {
	GetLoggedInUser(ctx context.Context, sessionSecret string) (*models.User, error)
}

// Session reads the session cookie once, resolves the user and stores both
// on the context. Handlers behind it read them with GetUser and
// GetSessionSecret instead of touching the cookie again.
func Session(resolver UserResolver, cookieName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		secret, err := c.Cookie(cookieName)
		if err != nil || secret == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Not signed in",
				"kind":  apperr.NotFound.String(),
			})
			return
		}

		user, err := resolver.GetLoggedInUser(c.Request.Context(), secret)
		if err != nil {
			status := apperr.HTTPStatus(err)
			if apperr.Is(err, apperr.NotFound) {
				status = http.StatusUnauthorized
			} else {
				utils.SafeError("❌ Session lookup failed: %v", err)
			}
			c.AbortWithStatusJSON(status, gin.H{
				"error": "Session is invalid or expired",
				"kind":  apperr.KindOf(err).String(),
			})
			return
		}

		c.Set(userKey, user)
		c.Set(sessionKey, secret)
		c.Next()
	}
}

// GetUser returns the user set by Session, or nil outside a session route.
func GetUser(c *gin.Context) *models.User {
	v, ok := c.Get(userKey)
	if !ok {
		return nil
	}
	user, _ := v.(*models.User)
	return user
}

func GetSessionSecret(c *gin.Context) string {
	return c.GetString(sessionKey)
}
