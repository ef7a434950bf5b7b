package services

import (
	"context"
	"errors"

	"amc-booking/internal/models"

	"gorm.io/gorm"
)

// UserService is the admin view of accounts. Accounts are never deleted so
// that audit records keep resolving to a username.
type UserService struct {
	db    *gorm.DB
	audit *AuditService
}

func NewUserService(db *gorm.DB, audit *AuditService) *UserService {
	return &UserService{db: db, audit: audit}
}

// GetUsers returns all users
func (s *UserService) GetUsers(ctx context.Context) ([]models.User, error) {
	var users []models.User
	if err := s.db.WithContext(ctx).Order("username ASC").Find(&users).Error; err != nil {
		return nil, internalError("Failed to load users", err)
	}
	return users, nil
}

// GetUser returns a specific user by ID
func (s *UserService) GetUser(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, withMessage(ErrNotFound, "User not found")
		}
		return nil, internalError("Failed to load user", err)
	}
	return &user, nil
}

// SetActive activates or deactivates an account. Admins cannot deactivate
// themselves.
func (s *UserService) SetActive(ctx context.Context, actor Identity, id uint, active bool) (*models.User, error) {
	if !active && actor.UserID == id {
		return nil, validationError("You cannot deactivate your own account")
	}
	user, err := s.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	if user.IsActive == active {
		return user, nil
	}

	if err := s.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", id).
		Update("is_active", active).Error; err != nil {
		return nil, internalError("Failed to update user", err)
	}

	s.audit.Record(ctx, AuditEntry{
		UserID:    &actor.UserID,
		Action:    models.ActionUpdate,
		Table:     models.TableUsers,
		RecordID:  &user.ID,
		OldValues: models.JSONMap{"is_active": user.IsActive},
		NewValues: models.JSONMap{"is_active": active},
	})

	user.IsActive = active
	return user, nil
}

// Unlock clears the failed-login counter and any lockout.
func (s *UserService) Unlock(ctx context.Context, actor Identity, id uint) (*models.User, error) {
	user, err := s.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := s.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"failed_login_attempts": 0,
			"lockout_until":         nil,
		}).Error; err != nil {
		return nil, internalError("Failed to update user", err)
	}

	old := models.JSONMap{"failed_login_attempts": user.FailedLoginAttempts}
	if user.LockoutUntil != nil {
		old["lockout_until"] = user.LockoutUntil
	}
	s.audit.Record(ctx, AuditEntry{
		UserID:    &actor.UserID,
		Action:    models.ActionUpdate,
		Table:     models.TableUsers,
		RecordID:  &user.ID,
		OldValues: old,
		NewValues: models.JSONMap{"failed_login_attempts": 0, "lockout_until": nil},
	})

	user.FailedLoginAttempts = 0
	user.LockoutUntil = nil
	return user, nil
}
