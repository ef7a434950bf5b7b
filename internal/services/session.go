package services

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"amc-booking/internal/config"
	"amc-booking/internal/models"

	"github.com/golang-jwt/jwt/v5"
	"gorm.io/gorm"
)

var ErrSessionNotFound = errors.New("session not found")

// SessionManager owns server-side session state. The client only ever holds
// a signed token naming the session; identity and role live in the database.
type SessionManager struct {
	db     *gorm.DB
	secret []byte
	issuer string
	ttl    time.Duration
	now    Clock
}

func NewSessionManager(db *gorm.DB, cfg config.SessionConfig) *SessionManager {
	return &SessionManager{
		db:     db,
		secret: []byte(cfg.Secret),
		issuer: cfg.Issuer,
		ttl:    cfg.TTL,
		now:    time.Now,
	}
}

func (m *SessionManager) TTL() time.Duration {
	return m.ttl
}

// Start creates an anonymous session carrying a fresh CSRF secret.
func (m *SessionManager) Start(ctx context.Context) (*models.Session, string, error) {
	return m.create(ctx, m.db, nil)
}

// Load resolves a client token to its live session.
func (m *SessionManager) Load(ctx context.Context, token string) (*models.Session, error) {
	sid, err := m.parseToken(token)
	if err != nil {
		return nil, ErrSessionNotFound
	}

	var sess models.Session
	err = m.db.WithContext(ctx).
		Where("id = ? AND expires_at > ?", hashSessionID(sid), m.now()).
		First(&sess).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	return &sess, nil
}

// Rotate destroys old (if any) and issues a new authenticated session for
// user, so an identifier planted before login is useless afterwards.
func (m *SessionManager) Rotate(ctx context.Context, old *models.Session, user *models.User) (*models.Session, string, error) {
	var (
		sess  *models.Session
		token string
	)
	err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if old != nil && old.ID != "" {
			if err := tx.Delete(&models.Session{}, "id = ?", old.ID).Error; err != nil {
				return err
			}
		}
		var err error
		sess, token, err = m.create(ctx, tx, user)
		return err
	})
	if err != nil {
		return nil, "", err
	}
	return sess, token, nil
}

// Destroy removes the session; its token stops resolving immediately.
func (m *SessionManager) Destroy(ctx context.Context, sess *models.Session) error {
	if sess == nil || sess.ID == "" {
		return nil
	}
	return m.db.WithContext(ctx).Delete(&models.Session{}, "id = ?", sess.ID).Error
}

// PurgeExpired deletes sessions past their expiry.
func (m *SessionManager) PurgeExpired(ctx context.Context) (int64, error) {
	res := m.db.WithContext(ctx).Where("expires_at <= ?", m.now()).Delete(&models.Session{})
	return res.RowsAffected, res.Error
}

func (m *SessionManager) create(ctx context.Context, db *gorm.DB, user *models.User) (*models.Session, string, error) {
	sid, err := randomToken(32)
	if err != nil {
		return nil, "", err
	}
	csrf, err := randomToken(32)
	if err != nil {
		return nil, "", err
	}

	now := m.now()
	sess := &models.Session{
		ID:        hashSessionID(sid),
		CSRFToken: csrf,
		ExpiresAt: now.Add(m.ttl),
		CreatedAt: now,
	}
	if user != nil {
		uid := user.ID
		sess.UserID = &uid
		sess.Username = user.Username
		sess.Role = user.Role
		sess.LoginTime = &now
	}

	if err := db.WithContext(ctx).Create(sess).Error; err != nil {
		return nil, "", fmt.Errorf("failed to create session: %w", err)
	}

	token, err := m.signToken(sid, now, sess.ExpiresAt)
	if err != nil {
		return nil, "", err
	}
	return sess, token, nil
}

// signToken wraps the session id in an HS256 JWT. No identity or role claims
// are issued; they are always read back from the session row.
func (m *SessionManager) signToken(sid string, now, exp time.Time) (string, error) {
	claims := jwt.RegisteredClaims{
		ID:        sid,
		Issuer:    m.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign session token: %w", err)
	}
	return signed, nil
}

func (m *SessionManager) parseToken(token string) (string, error) {
	if token == "" {
		return "", ErrSessionNotFound
	}
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(token, claims,
		func(t *jwt.Token) (interface{}, error) { return m.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(m.issuer),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return "", err
	}
	if claims.ID == "" {
		return "", ErrSessionNotFound
	}
	return claims.ID, nil
}

func randomToken(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func hashSessionID(sid string) string {
	sum := sha256.Sum256([]byte(sid))
	return hex.EncodeToString(sum[:])
}
