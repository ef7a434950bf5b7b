package services

import (
	"fmt"

	"amc-booking/internal/config"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

const memoryAttemptStoreSize = 10000

// Services is the wired core shared by the HTTP layer and the server command.
type Services struct {
	Sessions   *SessionManager
	Audit      *AuditService
	Auth       *AuthService
	Bookings   *BookingService
	Facilities *FacilityService
	Users      *UserService
}

func New(cfg *config.Config, db *gorm.DB, log *zap.Logger) (*Services, error) {
	var store AttemptStore
	switch cfg.Security.LoginRateLimit.Store {
	case "database":
		store = NewDBAttemptStore(db)
	case "memory", "":
		store = NewMemoryAttemptStore(memoryAttemptStoreSize, cfg.Security.LoginRateLimit.Window)
	default:
		return nil, fmt.Errorf("unsupported rate limit store: %s", cfg.Security.LoginRateLimit.Store)
	}

	sessions := NewSessionManager(db, cfg.Session)
	audit := NewAuditService(db, log)
	limiter := NewRateLimiter(store, cfg.Security.LoginRateLimit.MaxAttempts, cfg.Security.LoginRateLimit.Window)
	hasher := BcryptHasher{Cost: cfg.Security.BcryptCost}

	return &Services{
		Sessions:   sessions,
		Audit:      audit,
		Auth:       NewAuthService(db, sessions, audit, limiter, hasher, cfg.Security.Lockout, log),
		Bookings:   NewBookingService(db, audit, log),
		Facilities: NewFacilityService(db),
		Users:      NewUserService(db, audit),
	}, nil
}
