package handlers

import (
	"net/http"

	"amc-booking/internal/api/middleware"
	"amc-booking/internal/api/response"
	"amc-booking/internal/config"
	"amc-booking/internal/services"

	"github.com/gin-gonic/gin"
)

type AuthHandler struct {
	auth     *services.AuthService
	sessions *services.SessionManager
	cfg      config.SessionConfig
}

func NewAuthHandler(auth *services.AuthService, sessions *services.SessionManager, cfg config.SessionConfig) *AuthHandler {
	return &AuthHandler{auth: auth, sessions: sessions, cfg: cfg}
}

type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// CSRF returns the CSRF token of the current session, starting an anonymous
// session when the client has none.
func (h *AuthHandler) CSRF(c *gin.Context) {
	sess := middleware.CurrentSession(c)
	if sess == nil {
		created, token, err := h.sessions.Start(c.Request.Context())
		if err != nil {
			response.Error(c, err)
			return
		}
		middleware.SetSession(c, h.cfg, created, token, h.sessions.TTL())
		sess = created
	}
	c.Header(middleware.CSRFHeader, sess.CSRFToken)
	response.OK(c, http.StatusOK, "", gin.H{"csrf_token": sess.CSRFToken})
}

// Register creates a student account. Privileged roles are only seeded.
func (h *AuthHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, services.ErrValidation)
		return
	}

	id, err := h.auth.Register(c.Request.Context(), req.Username, req.Email, req.Password, "")
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, http.StatusCreated, "Registration successful", gin.H{"user_id": id})
}

// Login handles user login
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, services.ErrValidation)
		return
	}

	res, err := h.auth.Login(c.Request.Context(), middleware.CurrentSession(c), req.Username, req.Password)
	if err != nil {
		response.Error(c, err)
		return
	}

	middleware.SetSession(c, h.cfg, res.Session, res.Token, h.sessions.TTL())
	c.Header(middleware.CSRFHeader, res.Session.CSRFToken)
	response.OK(c, http.StatusOK, "Login successful", gin.H{
		"user_id":    res.UserID,
		"role":       res.Role,
		"csrf_token": res.Session.CSRFToken,
	})
}

// Logout handles user logout
func (h *AuthHandler) Logout(c *gin.Context) {
	if err := h.auth.Logout(c.Request.Context(), middleware.CurrentSession(c)); err != nil {
		response.Error(c, err)
		return
	}
	middleware.ClearSessionCookie(c, h.cfg)
	response.OK(c, http.StatusOK, "Logged out successfully", nil)
}

// Me returns the identity held by the session
func (h *AuthHandler) Me(c *gin.Context) {
	id, ok := h.auth.CurrentIdentity(middleware.CurrentSession(c))
	if !ok {
		response.Error(c, services.ErrUnauthenticated)
		return
	}
	response.OK(c, http.StatusOK, "", id)
}
