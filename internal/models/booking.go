package models

import "time"

const (
	StatusPending   = "pending"
	StatusApproved  = "approved"
	StatusRejected  = "rejected"
	StatusCancelled = "cancelled"
)

// ActiveStatuses are the statuses that occupy a time slot.
var ActiveStatuses = []string{StatusPending, StatusApproved}

// ValidStatus reports whether status is a known booking status.
func ValidStatus(status string) bool {
	switch status {
	case StatusPending, StatusApproved, StatusRejected, StatusCancelled:
		return true
	}
	return false
}

// Facility is managed outside the booking core and only read here.
type Facility struct {
	ID          uint      `json:"facility_id" gorm:"primaryKey"`
	Name        string    `json:"name" gorm:"type:varchar(100);not null"`
	Location    string    `json:"location" gorm:"type:varchar(255)"`
	Description string    `json:"description" gorm:"type:text"`
	IsAvailable bool      `json:"is_available" gorm:"not null;default:true"`
	CreatedAt   time.Time `json:"created_at"`
}

// Booking dates are stored as YYYY-MM-DD and times as HH:MM so that
// lexical order matches chronological order in every supported database.
type Booking struct {
	ID          uint      `json:"booking_id" gorm:"primaryKey"`
	UserID      uint      `json:"user_id" gorm:"not null;index"`
	FacilityID  uint      `json:"facility_id" gorm:"not null;index:idx_booking_slot,priority:1"`
	BookingDate string    `json:"booking_date" gorm:"type:varchar(10);not null;index:idx_booking_slot,priority:2"`
	StartTime   string    `json:"start_time" gorm:"type:varchar(5);not null"`
	EndTime     string    `json:"end_time" gorm:"type:varchar(5);not null"`
	Purpose     string    `json:"purpose" gorm:"type:text"`
	Status      string    `json:"status" gorm:"type:varchar(20);not null;default:'pending';index"`
	ApprovedBy  *uint     `json:"approved_by"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// BookingDetail is a booking joined with owner, facility and approver names.
type BookingDetail struct {
	Booking
	BookedBy         string  `json:"booked_by"`
	FacilityName     string  `json:"facility_name"`
	FacilityLocation string  `json:"facility_location"`
	ApprovedByName   *string `json:"approved_by_name"`
}

// Snapshot flattens the row into an audit payload.
func (b *BookingDetail) Snapshot() JSONMap {
	m := JSONMap{
		"booking_id":    b.ID,
		"user_id":       b.UserID,
		"facility_id":   b.FacilityID,
		"booking_date":  b.BookingDate,
		"start_time":    b.StartTime,
		"end_time":      b.EndTime,
		"purpose":       b.Purpose,
		"status":        b.Status,
		"booked_by":     b.BookedBy,
		"facility_name": b.FacilityName,
	}
	if b.ApprovedBy != nil {
		m["approved_by"] = *b.ApprovedBy
	}
	return m
}
