package services

import "amc-booking/internal/models"

// Overlaps reports whether the half-open intervals [aStart,aEnd) and
// [bStart,bEnd) intersect. Times are normalized HH:MM strings, whose lexical
// order is chronological. Touching endpoints do not overlap.
func Overlaps(aStart, aEnd, bStart, bEnd string) bool {
	return aStart < bEnd && aEnd > bStart
}

// HasConflict reports whether [start,end) on facilityID/date overlaps any
// existing booking that still occupies its slot. Bookings for other
// facilities or dates, and inactive bookings, are ignored.
func HasConflict(facilityID uint, date, start, end string, existing []models.Booking) bool {
	for _, b := range existing {
		if b.FacilityID != facilityID || b.BookingDate != date {
			continue
		}
		if b.Status != models.StatusPending && b.Status != models.StatusApproved {
			continue
		}
		if Overlaps(b.StartTime, b.EndTime, start, end) {
			return true
		}
	}
	return false
}
