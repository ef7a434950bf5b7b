package services

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"strings"
	"sync"
	"time"

	"amc-booking/internal/logging"
	"amc-booking/internal/metrics"
	"amc-booking/internal/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type CreateBookingInput struct {
	FacilityID uint   `json:"facility_id" binding:"required"`
	Date       string `json:"booking_date" binding:"required"`
	StartTime  string `json:"start_time" binding:"required"`
	EndTime    string `json:"end_time" binding:"required"`
	Purpose    string `json:"purpose"`
}

// BookingFilter narrows List after role scoping. Zero values mean "any".
type BookingFilter struct {
	Status     string `form:"status"`
	FacilityID uint   `form:"facility_id"`
	DateFrom   string `form:"date_from"`
	DateTo     string `form:"date_to"`
}

// BookingPatch holds the mutable booking fields. Nil means unchanged.
type BookingPatch struct {
	Purpose *string `json:"purpose"`
	Status  *string `json:"status"`
}

// slotLocks serializes conflict-check-then-insert per (facility, date)
// inside this process. Distinct slots may share a stripe.
type slotLocks struct {
	stripes [64]sync.Mutex
}

func (l *slotLocks) lock(facilityID uint, date string) func() {
	h := fnv.New32a()
	fmt.Fprintf(h, "%d|%s", facilityID, date)
	m := &l.stripes[h.Sum32()%uint32(len(l.stripes))]
	m.Lock()
	return m.Unlock
}

type BookingService struct {
	db    *gorm.DB
	audit *AuditService
	log   *zap.Logger
	now   Clock
	locks slotLocks
}

func NewBookingService(db *gorm.DB, audit *AuditService, log *zap.Logger) *BookingService {
	return &BookingService{db: db, audit: audit, log: log, now: time.Now}
}

// Create books a facility slot as pending. The conflict check and the insert
// run as one unit: under the slot lock, inside a transaction, and on
// server databases with the facility row locked.
func (s *BookingService) Create(ctx context.Context, owner Identity, in CreateBookingInput) (*models.Booking, error) {
	start, err := normalizeClock(in.StartTime)
	if err != nil {
		return nil, s.fail(ctx, "create", validationError("Start time must be HH:MM"), "")
	}
	end, err := normalizeClock(in.EndTime)
	if err != nil {
		return nil, s.fail(ctx, "create", validationError("End time must be HH:MM"), "")
	}
	if start >= end {
		return nil, s.fail(ctx, "create", ErrInvalidTimeRange, "")
	}

	day, err := parseDate(in.Date)
	if err != nil {
		return nil, s.fail(ctx, "create", validationError("Booking date must be YYYY-MM-DD"), "")
	}
	now := s.now().In(time.Local)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.Local)
	if day.Before(today) {
		return nil, s.fail(ctx, "create", withMessage(ErrInvalidTimeRange, "Cannot book past dates"), "")
	}
	date := day.Format(dateLayout)
	purpose := cleanInput(in.Purpose)

	unlock := s.locks.lock(in.FacilityID, date)
	defer unlock()

	var (
		booking  models.Booking
		facility models.Facility
	)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		fq := tx
		if tx.Dialector.Name() != "sqlite" {
			fq = fq.Clauses(clause.Locking{Strength: "UPDATE"})
		}
		if err := fq.Where("id = ? AND is_available = ?", in.FacilityID, true).First(&facility).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrFacilityUnavailable
			}
			return err
		}

		var existing []models.Booking
		if err := tx.Where("facility_id = ? AND booking_date = ? AND status IN ?",
			in.FacilityID, date, models.ActiveStatuses).
			Find(&existing).Error; err != nil {
			return err
		}
		if HasConflict(in.FacilityID, date, start, end, existing) {
			return ErrSlotConflict
		}

		booking = models.Booking{
			UserID:      owner.UserID,
			FacilityID:  in.FacilityID,
			BookingDate: date,
			StartTime:   start,
			EndTime:     end,
			Purpose:     purpose,
			Status:      models.StatusPending,
		}
		return tx.Create(&booking).Error
	})
	if err != nil {
		return nil, s.fail(ctx, "create", err, "Failed to create booking")
	}

	s.audit.Record(ctx, AuditEntry{
		UserID:   &owner.UserID,
		Action:   models.ActionCreate,
		Table:    models.TableBookings,
		RecordID: &booking.ID,
		NewValues: models.JSONMap{
			"facility_id":   facility.ID,
			"facility_name": facility.Name,
			"date":          date,
			"time":          start + " - " + end,
			"purpose":       purpose,
		},
	})
	metrics.BookingOperationsTotal.WithLabelValues("create", "success").Inc()

	return &booking, nil
}

// List returns the bookings visible to requester: students see their own,
// staff see their own plus every pending booking, admins see everything.
// Rows are ordered by date then start time, newest first.
func (s *BookingService) List(ctx context.Context, requester Identity, f BookingFilter) ([]models.BookingDetail, error) {
	q := detailQuery(s.db.WithContext(ctx))

	switch requester.Role {
	case models.RoleAdmin:
	case models.RoleStaff:
		q = q.Where("(b.user_id = ? OR b.status = ?)", requester.UserID, models.StatusPending)
	default:
		q = q.Where("b.user_id = ?", requester.UserID)
	}

	if f.Status != "" {
		if !models.ValidStatus(f.Status) {
			return nil, validationError("Unknown booking status")
		}
		q = q.Where("b.status = ?", f.Status)
	}
	if f.FacilityID != 0 {
		q = q.Where("b.facility_id = ?", f.FacilityID)
	}
	if f.DateFrom != "" {
		from, err := parseDate(f.DateFrom)
		if err != nil {
			return nil, validationError("date_from must be YYYY-MM-DD")
		}
		q = q.Where("b.booking_date >= ?", from.Format(dateLayout))
	}
	if f.DateTo != "" {
		to, err := parseDate(f.DateTo)
		if err != nil {
			return nil, validationError("date_to must be YYYY-MM-DD")
		}
		q = q.Where("b.booking_date <= ?", to.Format(dateLayout))
	}

	var rows []models.BookingDetail
	if err := q.Order("b.booking_date DESC, b.start_time DESC, b.id DESC").Scan(&rows).Error; err != nil {
		return nil, s.fail(ctx, "list", err, "Failed to load bookings")
	}
	return rows, nil
}

// Get returns one booking if requester may see it. Invisible bookings are
// reported as not found.
func (s *BookingService) Get(ctx context.Context, requester Identity, id uint) (*models.BookingDetail, error) {
	b, err := s.findDetail(ctx, id)
	if err != nil {
		return nil, s.fail(ctx, "get", err, "Failed to load booking")
	}
	if !canView(requester, b) {
		return nil, withMessage(ErrNotFound, "Booking not found")
	}
	return b, nil
}

// Update applies patch. Students may only change the purpose of their own
// pending bookings; staff and admins may also approve or reject pending
// bookings, which stamps them as approver.
func (s *BookingService) Update(ctx context.Context, requester Identity, id uint, patch BookingPatch) (*models.BookingDetail, error) {
	old, err := s.findDetail(ctx, id)
	if err != nil {
		return nil, s.fail(ctx, "update", err, "Failed to update booking")
	}

	privileged := requester.HasRole(models.RoleStaff, models.RoleAdmin)
	if !privileged {
		if old.UserID != requester.UserID {
			s.audit.Record(ctx, AuditEntry{
				UserID:    &requester.UserID,
				Action:    models.ActionUnauthorizedUpdate,
				Table:     models.TableBookings,
				RecordID:  &old.ID,
				NewValues: models.JSONMap{"reason": "not_owner"},
			})
			return nil, s.fail(ctx, "update", withMessage(ErrForbidden, "You can only update your own bookings"), "")
		}
		if old.Status != models.StatusPending {
			return nil, s.fail(ctx, "update", withMessage(ErrInvalidState, "Cannot update - booking already "+old.Status), "")
		}
	}

	updates := map[string]interface{}{}
	applied := models.JSONMap{}
	if patch.Purpose != nil {
		purpose := cleanInput(*patch.Purpose)
		updates["purpose"] = purpose
		applied["purpose"] = purpose
	}
	statusChange := false
	if patch.Status != nil && privileged {
		status := strings.TrimSpace(*patch.Status)
		if status != models.StatusApproved && status != models.StatusRejected {
			return nil, s.fail(ctx, "update", validationError("Status can only be set to approved or rejected"), "")
		}
		if old.Status != models.StatusPending {
			return nil, s.fail(ctx, "update", withMessage(ErrInvalidState, "Cannot update - booking already "+old.Status), "")
		}
		updates["status"] = status
		updates["approved_by"] = requester.UserID
		applied["status"] = status
		applied["approved_by"] = requester.UserID
		statusChange = true
	}
	if len(updates) == 0 {
		return nil, s.fail(ctx, "update", ErrNoOp, "")
	}

	q := s.db.WithContext(ctx).Model(&models.Booking{}).Where("id = ?", id)
	if statusChange || !privileged {
		// Guards against a concurrent approve/cancel between load and write.
		q = q.Where("status = ?", models.StatusPending)
	}
	res := q.Updates(updates)
	if res.Error != nil {
		return nil, s.fail(ctx, "update", res.Error, "Failed to update booking")
	}
	if res.RowsAffected == 0 {
		return nil, s.fail(ctx, "update", withMessage(ErrInvalidState, "Booking was changed by another request"), "")
	}

	s.audit.Record(ctx, AuditEntry{
		UserID:    &requester.UserID,
		Action:    models.ActionUpdate,
		Table:     models.TableBookings,
		RecordID:  &old.ID,
		OldValues: old.Snapshot(),
		NewValues: applied,
	})
	metrics.BookingOperationsTotal.WithLabelValues("update", "success").Inc()

	updated, err := s.findDetail(ctx, id)
	if err != nil {
		return nil, s.fail(ctx, "update", err, "Failed to load booking")
	}
	return updated, nil
}

// Delete hard-deletes for admins and otherwise cancels the requester's own
// pending booking. It reports whether the row was removed.
func (s *BookingService) Delete(ctx context.Context, requester Identity, id uint) (bool, error) {
	b, err := s.findDetail(ctx, id)
	if err != nil {
		return false, s.fail(ctx, "delete", err, "Failed to process request")
	}

	if requester.Role == models.RoleAdmin {
		if err := s.db.WithContext(ctx).Delete(&models.Booking{}, id).Error; err != nil {
			return false, s.fail(ctx, "delete", err, "Failed to process request")
		}
		s.audit.Record(ctx, AuditEntry{
			UserID:    &requester.UserID,
			Action:    models.ActionDelete,
			Table:     models.TableBookings,
			RecordID:  &b.ID,
			OldValues: b.Snapshot(),
		})
		metrics.BookingOperationsTotal.WithLabelValues("delete", "success").Inc()
		return true, nil
	}

	if b.UserID != requester.UserID {
		s.audit.Record(ctx, AuditEntry{
			UserID:    &requester.UserID,
			Action:    models.ActionUnauthorizedDelete,
			Table:     models.TableBookings,
			RecordID:  &b.ID,
			NewValues: models.JSONMap{"reason": "not_owner"},
		})
		return false, s.fail(ctx, "cancel", withMessage(ErrForbidden, "You can only cancel your own bookings"), "")
	}

	notPending := withMessage(ErrInvalidState, "Can only cancel pending bookings")
	if b.Status != models.StatusPending {
		return false, s.fail(ctx, "cancel", notPending, "")
	}

	res := s.db.WithContext(ctx).Model(&models.Booking{}).
		Where("id = ? AND status = ?", id, models.StatusPending).
		Update("status", models.StatusCancelled)
	if res.Error != nil {
		return false, s.fail(ctx, "cancel", res.Error, "Failed to process request")
	}
	if res.RowsAffected == 0 {
		return false, s.fail(ctx, "cancel", notPending, "")
	}

	s.audit.Record(ctx, AuditEntry{
		UserID:    &requester.UserID,
		Action:    models.ActionCancel,
		Table:     models.TableBookings,
		RecordID:  &b.ID,
		OldValues: b.Snapshot(),
		NewValues: models.JSONMap{"status": models.StatusCancelled},
	})
	metrics.BookingOperationsTotal.WithLabelValues("cancel", "success").Inc()
	return false, nil
}

// Approve marks a pending booking approved. Two audit records result: the
// generic UPDATE and the APPROVE decision.
func (s *BookingService) Approve(ctx context.Context, approver Identity, id uint) (*models.BookingDetail, error) {
	return s.decide(ctx, approver, id, models.StatusApproved, models.ActionApprove, "")
}

// Reject marks a pending booking rejected, recording UPDATE and REJECT.
func (s *BookingService) Reject(ctx context.Context, approver Identity, id uint, reason string) (*models.BookingDetail, error) {
	return s.decide(ctx, approver, id, models.StatusRejected, models.ActionReject, cleanInput(reason))
}

func (s *BookingService) decide(ctx context.Context, approver Identity, id uint, status, action, reason string) (*models.BookingDetail, error) {
	if !approver.HasRole(models.RoleStaff, models.RoleAdmin) {
		s.audit.RecordUnauthorizedAccess(ctx, approver, []string{models.RoleStaff, models.RoleAdmin}, "")
		return nil, s.fail(ctx, strings.ToLower(action), ErrUnauthorizedAccess, "")
	}

	detail, err := s.Update(ctx, approver, id, BookingPatch{Status: &status})
	if err != nil {
		return nil, err
	}

	newValues := models.JSONMap{"status": status}
	if action == models.ActionReject {
		newValues["reason"] = reason
	}
	s.audit.Record(ctx, AuditEntry{
		UserID:    &approver.UserID,
		Action:    action,
		Table:     models.TableBookings,
		RecordID:  &detail.ID,
		NewValues: newValues,
	})
	metrics.BookingOperationsTotal.WithLabelValues(strings.ToLower(action), "success").Inc()
	return detail, nil
}

func (s *BookingService) findDetail(ctx context.Context, id uint) (*models.BookingDetail, error) {
	var rows []models.BookingDetail
	if err := detailQuery(s.db.WithContext(ctx)).Where("b.id = ?", id).Limit(1).Scan(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, withMessage(ErrNotFound, "Booking not found")
	}
	return &rows[0], nil
}

func detailQuery(db *gorm.DB) *gorm.DB {
	return db.Table("bookings AS b").
		Select("b.*, u.username AS booked_by, f.name AS facility_name, " +
			"f.location AS facility_location, a.username AS approved_by_name").
		Joins("JOIN users u ON b.user_id = u.id").
		Joins("JOIN facilities f ON b.facility_id = f.id").
		Joins("LEFT JOIN users a ON b.approved_by = a.id")
}

func canView(requester Identity, b *models.BookingDetail) bool {
	switch requester.Role {
	case models.RoleAdmin:
		return true
	case models.RoleStaff:
		return b.UserID == requester.UserID || b.Status == models.StatusPending
	default:
		return b.UserID == requester.UserID
	}
}

// fail counts the outcome and converts unknown errors into a logged,
// generic infrastructure error.
func (s *BookingService) fail(ctx context.Context, action string, err error, msg string) error {
	var e *Error
	if errors.As(err, &e) {
		metrics.BookingOperationsTotal.WithLabelValues(action, string(e.Code)).Inc()
		return e
	}
	metrics.BookingOperationsTotal.WithLabelValues(action, string(CodeInternal)).Inc()
	logging.FromContext(ctx, s.log).Error(msg, zap.String("action", action), zap.Error(err))
	return internalError(msg, err)
}
