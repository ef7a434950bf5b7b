package services

import (
	"testing"

	"amc-booking/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestOverlaps(t *testing.T) {
	tests := []struct {
		name         string
		aStart, aEnd string
		bStart, bEnd string
		want         bool
	}{
		{"partial overlap", "09:00", "10:00", "09:30", "10:30", true},
		{"touching end is free", "09:00", "10:00", "10:00", "11:00", false},
		{"touching start is free", "10:00", "11:00", "09:00", "10:00", false},
		{"contained", "09:00", "12:00", "10:00", "11:00", true},
		{"identical", "09:00", "10:00", "09:00", "10:00", true},
		{"disjoint", "08:00", "09:00", "13:00", "14:00", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Overlaps(tt.aStart, tt.aEnd, tt.bStart, tt.bEnd))
			assert.Equal(t, tt.want, Overlaps(tt.bStart, tt.bEnd, tt.aStart, tt.aEnd), "overlap must be symmetric")
		})
	}
}

func TestHasConflict(t *testing.T) {
	existing := []models.Booking{
		{FacilityID: 1, BookingDate: "2030-03-11", StartTime: "09:00", EndTime: "10:00", Status: models.StatusApproved},
		{FacilityID: 1, BookingDate: "2030-03-11", StartTime: "13:00", EndTime: "14:00", Status: models.StatusCancelled},
		{FacilityID: 1, BookingDate: "2030-03-11", StartTime: "15:00", EndTime: "16:00", Status: models.StatusRejected},
		{FacilityID: 2, BookingDate: "2030-03-11", StartTime: "11:00", EndTime: "12:00", Status: models.StatusPending},
	}

	assert.True(t, HasConflict(1, "2030-03-11", "09:30", "10:30", existing))
	assert.False(t, HasConflict(1, "2030-03-11", "10:00", "11:00", existing))
	assert.False(t, HasConflict(1, "2030-03-12", "09:30", "10:30", existing), "other dates never conflict")
	assert.False(t, HasConflict(1, "2030-03-11", "13:00", "14:00", existing), "cancelled bookings free the slot")
	assert.False(t, HasConflict(1, "2030-03-11", "15:30", "16:30", existing), "rejected bookings free the slot")
	assert.False(t, HasConflict(1, "2030-03-11", "11:00", "12:00", existing), "other facilities never conflict")
	assert.True(t, HasConflict(2, "2030-03-11", "11:30", "12:30", existing))
}
