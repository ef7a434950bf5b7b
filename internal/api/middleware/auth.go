package middleware

import (
	"errors"
	"net/http"
	"time"

	"amc-booking/internal/api/response"
	"amc-booking/internal/config"
	"amc-booking/internal/logging"
	"amc-booking/internal/models"
	"amc-booking/internal/services"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	sessionKey  = "session"
	identityKey = "identity"
)

// LoadSession resolves the session cookie. A missing, forged or expired
// cookie leaves the request anonymous.
func LoadSession(sessions *services.SessionManager, cfg config.SessionConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := c.Cookie(cfg.CookieName)
		if err != nil || token == "" {
			c.Next()
			return
		}

		sess, err := sessions.Load(c.Request.Context(), token)
		switch {
		case err == nil:
			c.Set(sessionKey, sess)
			if id, ok := services.IdentityOf(sess); ok {
				c.Set(identityKey, id)
			}
		case errors.Is(err, services.ErrSessionNotFound):
			ClearSessionCookie(c, cfg)
		default:
			logging.FromContext(c.Request.Context(), nil).Error("session lookup failed", zap.Error(err))
			response.Error(c, err)
			return
		}
		c.Next()
	}
}

// RequireAuth rejects anonymous requests.
func RequireAuth(auth *services.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, err := auth.RequireAuthenticated(CurrentSession(c)); err != nil {
			response.Error(c, err)
			return
		}
		c.Next()
	}
}

// RequireRole rejects sessions whose role is not in roles. Denials are
// audited by the auth service.
func RequireRole(auth *services.AuthService, roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, err := auth.RequireRole(c.Request.Context(), CurrentSession(c), roles...); err != nil {
			response.Error(c, err)
			return
		}
		c.Next()
	}
}

// CurrentSession returns the session attached by LoadSession, or nil.
func CurrentSession(c *gin.Context) *models.Session {
	if v, ok := c.Get(sessionKey); ok {
		if sess, ok := v.(*models.Session); ok {
			return sess
		}
	}
	return nil
}

func CurrentIdentity(c *gin.Context) (services.Identity, bool) {
	if v, ok := c.Get(identityKey); ok {
		id, ok := v.(services.Identity)
		return id, ok
	}
	return services.Identity{}, false
}

// SetSession attaches sess to the request and writes its cookie.
func SetSession(c *gin.Context, cfg config.SessionConfig, sess *models.Session, token string, ttl time.Duration) {
	c.Set(sessionKey, sess)
	if id, ok := services.IdentityOf(sess); ok {
		c.Set(identityKey, id)
	} else {
		c.Set(identityKey, nil)
	}
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(cfg.CookieName, token, int(ttl.Seconds()), "/", "", cfg.CookieSecure, true)
}

func ClearSessionCookie(c *gin.Context, cfg config.SessionConfig) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(cfg.CookieName, "", -1, "/", "", cfg.CookieSecure, true)
}
