package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"amc-booking/internal/config"
	"amc-booking/internal/logging"
	"amc-booking/internal/metrics"
	"amc-booking/internal/models"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const loginAction = "login"

// PasswordHasher is the one-way hash capability used for credentials.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(hash, password string) bool
}

type BcryptHasher struct {
	Cost int
}

// Hash hashes a password using bcrypt
func (h BcryptHasher) Hash(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), h.Cost)
	return string(bytes), err
}

// Verify verifies a password against a hash
func (h BcryptHasher) Verify(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

type LoginResult struct {
	UserID  uint            `json:"user_id"`
	Role    string          `json:"role"`
	Session *models.Session `json:"-"`
	Token   string          `json:"-"`
}

// AuthService is the credential store plus the session-facing login,
// logout and role checks.
type AuthService struct {
	db       *gorm.DB
	sessions *SessionManager
	audit    *AuditService
	limiter  *RateLimiter
	hasher   PasswordHasher
	lockout  config.LockoutConfig
	log      *zap.Logger
	now      Clock
}

func NewAuthService(
	db *gorm.DB,
	sessions *SessionManager,
	audit *AuditService,
	limiter *RateLimiter,
	hasher PasswordHasher,
	lockout config.LockoutConfig,
	log *zap.Logger,
) *AuthService {
	return &AuthService{
		db:       db,
		sessions: sessions,
		audit:    audit,
		limiter:  limiter,
		hasher:   hasher,
		lockout:  lockout,
		log:      log,
		now:      time.Now,
	}
}

// Register creates a user. An empty role means student.
func (s *AuthService) Register(ctx context.Context, username, email, password, role string) (uint, error) {
	username = cleanInput(username)
	email = cleanInput(email)
	if role == "" {
		role = models.RoleStudent
	}

	if !isValidEmail(email) {
		return 0, validationError("Invalid email format")
	}
	if msg := validatePassword(password); msg != "" {
		return 0, validationError(msg)
	}
	if !isValidUsername(username) {
		return 0, validationError("Username must be 3-50 alphanumeric characters")
	}
	if !models.ValidRole(role) {
		return 0, validationError("Invalid role")
	}

	db := s.db.WithContext(ctx)

	var count int64
	if err := db.Model(&models.User{}).
		Where("username = ? OR email = ?", username, email).
		Count(&count).Error; err != nil {
		return 0, s.infraError(ctx, "Registration failed", err)
	}
	if count > 0 {
		return 0, ErrDuplicateIdentity
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return 0, s.infraError(ctx, "Registration failed", err)
	}

	user := &models.User{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		IsActive:     true,
	}
	if err := db.Create(user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return 0, ErrDuplicateIdentity
		}
		return 0, s.infraError(ctx, "Registration failed", err)
	}

	s.audit.Record(ctx, AuditEntry{
		UserID:   &user.ID,
		Action:   models.ActionRegister,
		Table:    models.TableUsers,
		RecordID: &user.ID,
		NewValues: models.JSONMap{
			"username": username,
			"email":    email,
			"role":     role,
		},
	})

	return user.ID, nil
}

// Login verifies credentials and, on success, replaces current with a new
// authenticated session.
func (s *AuthService) Login(ctx context.Context, current *models.Session, username, password string) (*LoginResult, error) {
	username = cleanInput(username)
	if username == "" {
		return nil, validationError("Please enter username and password")
	}

	l := logging.FromContext(ctx, s.log).With(zap.String("svc", "auth.login"), zap.String("username", username))
	now := s.now()
	ip := RequestInfoFrom(ctx).IP

	allowed, err := s.limiter.Allow(ctx, loginAction, ip, now)
	if err != nil {
		// The lockout counter still protects each account; fail open.
		l.Error("rate limit store failed", zap.Error(err))
	} else if !allowed {
		metrics.LoginAttemptsTotal.WithLabelValues("rate_limited").Inc()
		s.audit.Record(ctx, AuditEntry{
			Action:    models.ActionLoginRateLimited,
			Table:     models.TableUsers,
			NewValues: models.JSONMap{"username": username, "reason": "rate_limited"},
		})
		return nil, ErrRateLimited
	}

	db := s.db.WithContext(ctx)

	var user models.User
	if err := db.Where("username = ?", username).First(&user).Error; err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			metrics.LoginAttemptsTotal.WithLabelValues("error").Inc()
			return nil, s.infraError(ctx, "Login failed", err)
		}
		metrics.LoginAttemptsTotal.WithLabelValues("invalid_credentials").Inc()
		s.audit.Record(ctx, AuditEntry{
			Action:    models.ActionLoginFailed,
			Table:     models.TableUsers,
			NewValues: models.JSONMap{"username": username, "reason": "user_not_found"},
		})
		return nil, ErrInvalidCredentials
	}

	// Locked accounts are refused quietly, without an audit record.
	if user.LockoutUntil != nil && user.LockoutUntil.After(now) {
		metrics.LoginAttemptsTotal.WithLabelValues("locked").Inc()
		retry := user.LockoutUntil.Sub(now)
		e := withMessage(ErrAccountLocked, fmt.Sprintf("Account locked. Try again in %d minutes.", int(math.Ceil(retry.Minutes()))))
		e.RetryAfter = retry
		return nil, e
	}

	if !user.IsActive {
		metrics.LoginAttemptsTotal.WithLabelValues("inactive").Inc()
		s.audit.Record(ctx, AuditEntry{
			UserID:    &user.ID,
			Action:    models.ActionLoginFailed,
			Table:     models.TableUsers,
			RecordID:  &user.ID,
			NewValues: models.JSONMap{"reason": "account_inactive"},
		})
		return nil, ErrAccountInactive
	}

	if !s.hasher.Verify(user.PasswordHash, password) {
		return nil, s.recordFailedPassword(ctx, l, &user, now)
	}

	if err := db.Model(&models.User{}).Where("id = ?", user.ID).Updates(map[string]interface{}{
		"last_login":            now,
		"failed_login_attempts": 0,
		"lockout_until":         nil,
	}).Error; err != nil {
		metrics.LoginAttemptsTotal.WithLabelValues("error").Inc()
		return nil, s.infraError(ctx, "Login failed", err)
	}

	sess, token, err := s.sessions.Rotate(ctx, current, &user)
	if err != nil {
		metrics.LoginAttemptsTotal.WithLabelValues("error").Inc()
		return nil, s.infraError(ctx, "Login failed", err)
	}

	metrics.LoginAttemptsTotal.WithLabelValues("success").Inc()
	s.audit.Record(ctx, AuditEntry{
		UserID:   &user.ID,
		Action:   models.ActionLogin,
		Table:    models.TableUsers,
		RecordID: &user.ID,
	})
	l.Info("login succeeded", zap.Uint("user_id", user.ID))

	return &LoginResult{UserID: user.ID, Role: user.Role, Session: sess, Token: token}, nil
}

func (s *AuthService) recordFailedPassword(ctx context.Context, l *zap.Logger, user *models.User, now time.Time) error {
	attempts := user.FailedLoginAttempts + 1
	var lockoutUntil *time.Time
	if attempts >= s.lockout.MaxFailed {
		t := now.Add(s.lockout.Duration)
		lockoutUntil = &t
	}

	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", user.ID).Updates(map[string]interface{}{
		"failed_login_attempts": attempts,
		"lockout_until":         lockoutUntil,
	}).Error; err != nil {
		metrics.LoginAttemptsTotal.WithLabelValues("error").Inc()
		return s.infraError(ctx, "Login failed", err)
	}

	if lockoutUntil != nil {
		l.Warn("account locked after failed attempts", zap.Uint("user_id", user.ID), zap.Int("attempts", attempts))
	}

	metrics.LoginAttemptsTotal.WithLabelValues("invalid_credentials").Inc()
	s.audit.Record(ctx, AuditEntry{
		UserID:    &user.ID,
		Action:    models.ActionLoginFailed,
		Table:     models.TableUsers,
		RecordID:  &user.ID,
		NewValues: models.JSONMap{"reason": "wrong_password", "attempts": attempts},
	})
	return ErrInvalidCredentials
}

// Logout audits the logout of an authenticated session and destroys it.
func (s *AuthService) Logout(ctx context.Context, sess *models.Session) error {
	if id, ok := IdentityOf(sess); ok {
		s.audit.Record(ctx, AuditEntry{
			UserID:   &id.UserID,
			Action:   models.ActionLogout,
			Table:    models.TableUsers,
			RecordID: &id.UserID,
		})
	}
	if err := s.sessions.Destroy(ctx, sess); err != nil {
		return s.infraError(ctx, "Logout failed", err)
	}
	return nil
}

// CurrentIdentity reads the identity from session state only.
func (s *AuthService) CurrentIdentity(sess *models.Session) (Identity, bool) {
	return IdentityOf(sess)
}

func (s *AuthService) RequireAuthenticated(sess *models.Session) (Identity, error) {
	id, ok := IdentityOf(sess)
	if !ok {
		return Identity{}, ErrUnauthenticated
	}
	return id, nil
}

// RequireRole requires an authenticated session whose role is in allowed.
// A role mismatch is audited as UNAUTHORIZED_ACCESS.
func (s *AuthService) RequireRole(ctx context.Context, sess *models.Session, allowed ...string) (Identity, error) {
	id, err := s.RequireAuthenticated(sess)
	if err != nil {
		return Identity{}, err
	}
	if !id.HasRole(allowed...) {
		s.audit.RecordUnauthorizedAccess(ctx, id, allowed, "")
		return Identity{}, ErrUnauthorizedAccess
	}
	return id, nil
}

// CreateDefaultUsers seeds accounts when the users table is empty
func (s *AuthService) CreateDefaultUsers(ctx context.Context, seeds []config.DefaultUserConfig) error {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	for _, u := range seeds {
		if _, err := s.Register(ctx, u.Username, u.Email, u.Password, u.Role); err != nil {
			return fmt.Errorf("seed user %s: %w", u.Username, err)
		}
	}
	return nil
}

func (s *AuthService) infraError(ctx context.Context, msg string, err error) error {
	logging.FromContext(ctx, s.log).Error(msg, zap.Error(err))
	return internalError(msg, err)
}
