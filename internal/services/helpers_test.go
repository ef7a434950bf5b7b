package services

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"amc-booking/internal/config"
	"amc-booking/internal/models"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const testPassword = "Passw0rd!"

type testEnv struct {
	db  *gorm.DB
	svc *Services
	now time.Time
}

// newTestEnv builds the full service graph on a throwaway SQLite database
// with a controllable clock.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	cfg := &config.Config{
		Database: config.DatabaseConfig{
			Type:   "sqlite",
			SQLite: config.SQLiteConfig{Path: filepath.Join(t.TempDir(), "booking_test.db")},
		},
		Session: config.SessionConfig{
			Secret: "test-secret-key-for-testing-only",
		},
		Security: config.SecurityConfig{
			BcryptCost: bcrypt.MinCost,
		},
	}
	cfg.ApplyDefaults()

	db, err := models.InitDB(cfg)
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	svc, err := New(cfg, db, zap.NewNop())
	require.NoError(t, err)

	env := &testEnv{
		db:  db,
		svc: svc,
		now: time.Date(2030, time.March, 10, 9, 0, 0, 0, time.Local),
	}
	clock := func() time.Time { return env.now }
	svc.Sessions.now = clock
	svc.Audit.now = clock
	svc.Auth.now = clock
	svc.Bookings.now = clock
	return env
}

func (e *testEnv) advance(d time.Duration) {
	e.now = e.now.Add(d)
}

func (e *testEnv) register(t *testing.T, username, role string) Identity {
	t.Helper()
	id, err := e.svc.Auth.Register(context.Background(), username, username+"@example.com", testPassword, role)
	require.NoError(t, err)
	return Identity{UserID: id, Username: username, Role: role}
}

func (e *testEnv) facility(t *testing.T, name string, available bool) uint {
	t.Helper()
	f := &models.Facility{Name: name, Location: "Block A", IsAvailable: true}
	require.NoError(t, e.db.Create(f).Error)
	if !available {
		require.NoError(t, e.db.Model(f).Update("is_available", false).Error)
	}
	return f.ID
}

func (e *testEnv) auditLogs(t *testing.T, action string) []models.AuditLog {
	t.Helper()
	var logs []models.AuditLog
	require.NoError(t, e.db.Where("action = ?", action).Order("id ASC").Find(&logs).Error)
	return logs
}

func (e *testEnv) user(t *testing.T, id uint) models.User {
	t.Helper()
	var u models.User
	require.NoError(t, e.db.First(&u, id).Error)
	return u
}

// fromIP returns a context whose audit provenance is ip.
func fromIP(ip string) context.Context {
	return WithRequestInfo(context.Background(), RequestInfo{IP: ip, UserAgent: "go-test"})
}
