package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

const (
	ActionLogin              = "LOGIN"
	ActionLoginFailed        = "LOGIN_FAILED"
	ActionLogout             = "LOGOUT"
	ActionRegister           = "REGISTER"
	ActionCreate             = "CREATE"
	ActionUpdate             = "UPDATE"
	ActionDelete             = "DELETE"
	ActionCancel             = "CANCEL"
	ActionApprove            = "APPROVE"
	ActionReject             = "REJECT"
	ActionUnauthorizedAccess = "UNAUTHORIZED_ACCESS"
	ActionUnauthorizedUpdate = "UNAUTHORIZED_UPDATE"
	ActionUnauthorizedDelete = "UNAUTHORIZED_DELETE"
	ActionLoginRateLimited   = "LOGIN_RATE_LIMITED"
)

const (
	TableUsers    = "users"
	TableBookings = "bookings"
	TableSystem   = "system"
)

// ErrAuditImmutable is returned by the gorm hooks guarding audit rows.
var ErrAuditImmutable = errors.New("audit records are append-only")

// AuditLog is one immutable audit trail entry. A nil UserID means the actor
// was unauthenticated or the system itself.
type AuditLog struct {
	ID        uint      `json:"log_id" gorm:"primaryKey"`
	UserID    *uint     `json:"user_id" gorm:"index"`
	Username  *string   `json:"username,omitempty" gorm:"->;-:migration"`
	Action    string    `json:"action" gorm:"type:varchar(50);not null;index"`
	Table     *string   `json:"table_name" gorm:"column:table_name;type:varchar(50);index:idx_audit_record,priority:1"`
	RecordID  *uint     `json:"record_id" gorm:"index:idx_audit_record,priority:2"`
	OldValues JSONMap   `json:"old_values" gorm:"type:text"`
	NewValues JSONMap   `json:"new_values" gorm:"type:text"`
	IPAddress string    `json:"ip_address" gorm:"type:varchar(45)"`
	UserAgent string    `json:"user_agent" gorm:"type:varchar(500)"`
	CreatedAt time.Time `json:"created_at" gorm:"not null;index"`
}

func (a *AuditLog) BeforeUpdate(tx *gorm.DB) error {
	return ErrAuditImmutable
}

func (a *AuditLog) BeforeDelete(tx *gorm.DB) error {
	return ErrAuditImmutable
}

// JSONMap is a structured payload stored as a JSON document.
type JSONMap map[string]any

// Value implements the driver.Valuer interface
func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements the sql.Scanner interface
func (m *JSONMap) Scan(value interface{}) error {
	if value == nil {
		*m = nil
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return fmt.Errorf("unsupported JSONMap source %T", value)
	}

	if len(bytes) == 0 {
		*m = nil
		return nil
	}
	return json.Unmarshal(bytes, m)
}
