package services

import (
	"context"
	"sync"
	"testing"

	"amc-booking/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tomorrow = "2030-03-11"

type bookingFixture struct {
	env      *testEnv
	student  Identity
	other    Identity
	staff    Identity
	admin    Identity
	facility uint
}

func newBookingFixture(t *testing.T) *bookingFixture {
	env := newTestEnv(t)
	return &bookingFixture{
		env:      env,
		student:  env.register(t, "student1", models.RoleStudent),
		other:    env.register(t, "student2", models.RoleStudent),
		staff:    env.register(t, "staff1", models.RoleStaff),
		admin:    env.register(t, "admin1", models.RoleAdmin),
		facility: env.facility(t, "Main Hall", true),
	}
}

func (f *bookingFixture) book(t *testing.T, owner Identity, start, end string) *models.Booking {
	t.Helper()
	b, err := f.env.svc.Bookings.Create(context.Background(), owner, CreateBookingInput{
		FacilityID: f.facility,
		Date:       tomorrow,
		StartTime:  start,
		EndTime:    end,
		Purpose:    "Club meeting",
	})
	require.NoError(t, err)
	return b
}

func (f *bookingFixture) stored(t *testing.T, id uint) models.Booking {
	t.Helper()
	var b models.Booking
	require.NoError(t, f.env.db.First(&b, id).Error)
	return b
}

func recordLogs(t *testing.T, env *testEnv, recordID uint) []models.AuditLog {
	t.Helper()
	logs, err := env.svc.Audit.GetRecordHistory(context.Background(), models.TableBookings, recordID)
	require.NoError(t, err)
	return logs
}

func TestCreateBooking(t *testing.T) {
	f := newBookingFixture(t)
	ctx := context.Background()

	b := f.book(t, f.student, "09:00", "10:00")
	assert.Equal(t, models.StatusPending, b.Status)
	assert.Equal(t, f.student.UserID, b.UserID)
	assert.Equal(t, tomorrow, b.BookingDate)

	logs := f.env.auditLogs(t, models.ActionCreate)
	require.Len(t, logs, 1)
	assert.Equal(t, "Main Hall", logs[0].NewValues["facility_name"])
	assert.Equal(t, "09:00 - 10:00", logs[0].NewValues["time"])
	assert.Equal(t, b.ID, *logs[0].RecordID)

	t.Run("accepts seconds in times", func(t *testing.T) {
		b, err := f.env.svc.Bookings.Create(ctx, f.student, CreateBookingInput{
			FacilityID: f.facility, Date: tomorrow, StartTime: "14:00:00", EndTime: "15:00:00",
		})
		require.NoError(t, err)
		assert.Equal(t, "14:00", b.StartTime)
		assert.Equal(t, "15:00", b.EndTime)
	})

	t.Run("invalid time range", func(t *testing.T) {
		for _, tc := range [][2]string{{"11:00", "10:00"}, {"10:00", "10:00"}} {
			_, err := f.env.svc.Bookings.Create(ctx, f.student, CreateBookingInput{
				FacilityID: f.facility, Date: tomorrow, StartTime: tc[0], EndTime: tc[1],
			})
			assert.ErrorIs(t, err, ErrInvalidTimeRange)
		}
	})

	t.Run("past date", func(t *testing.T) {
		_, err := f.env.svc.Bookings.Create(ctx, f.student, CreateBookingInput{
			FacilityID: f.facility, Date: "2030-03-09", StartTime: "09:00", EndTime: "10:00",
		})
		require.ErrorIs(t, err, ErrInvalidTimeRange)
		assert.Equal(t, "Cannot book past dates", AsError(err).Message)
	})

	t.Run("today is bookable", func(t *testing.T) {
		_, err := f.env.svc.Bookings.Create(ctx, f.student, CreateBookingInput{
			FacilityID: f.facility, Date: "2030-03-10", StartTime: "16:00", EndTime: "17:00",
		})
		assert.NoError(t, err)
	})

	t.Run("malformed input", func(t *testing.T) {
		_, err := f.env.svc.Bookings.Create(ctx, f.student, CreateBookingInput{
			FacilityID: f.facility, Date: "11/03/2030", StartTime: "09:00", EndTime: "10:00",
		})
		assert.ErrorIs(t, err, ErrValidation)

		_, err = f.env.svc.Bookings.Create(ctx, f.student, CreateBookingInput{
			FacilityID: f.facility, Date: tomorrow, StartTime: "nine", EndTime: "10:00",
		})
		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("unavailable or missing facility", func(t *testing.T) {
		closed := f.env.facility(t, "Closed Lab", false)
		_, err := f.env.svc.Bookings.Create(ctx, f.student, CreateBookingInput{
			FacilityID: closed, Date: tomorrow, StartTime: "09:00", EndTime: "10:00",
		})
		assert.ErrorIs(t, err, ErrFacilityUnavailable)

		_, err = f.env.svc.Bookings.Create(ctx, f.student, CreateBookingInput{
			FacilityID: 9999, Date: tomorrow, StartTime: "09:00", EndTime: "10:00",
		})
		assert.ErrorIs(t, err, ErrFacilityUnavailable)
	})

	assert.Len(t, f.env.auditLogs(t, models.ActionCreate), 3, "only successful creates are audited")
}

func TestCreateBookingConflicts(t *testing.T) {
	f := newBookingFixture(t)
	ctx := context.Background()

	first := f.book(t, f.student, "09:00", "10:00")
	_, err := f.env.svc.Bookings.Approve(ctx, f.staff, first.ID)
	require.NoError(t, err)

	_, err = f.env.svc.Bookings.Create(ctx, f.other, CreateBookingInput{
		FacilityID: f.facility, Date: tomorrow, StartTime: "09:30", EndTime: "10:30",
	})
	require.ErrorIs(t, err, ErrSlotConflict)
	assert.Equal(t, "Time slot already booked", AsError(err).Message)

	adjacent := f.book(t, f.other, "10:00", "11:00")
	assert.Equal(t, models.StatusPending, adjacent.Status)

	// pending bookings hold their slot too
	_, err = f.env.svc.Bookings.Create(ctx, f.student, CreateBookingInput{
		FacilityID: f.facility, Date: tomorrow, StartTime: "10:30", EndTime: "11:30",
	})
	assert.ErrorIs(t, err, ErrSlotConflict)

	// cancelling frees the slot
	_, err = f.env.svc.Bookings.Delete(ctx, f.other, adjacent.ID)
	require.NoError(t, err)
	f.book(t, f.student, "10:30", "11:30")
}

func TestCreateBookingConcurrent(t *testing.T) {
	f := newBookingFixture(t)

	const workers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		conflicts int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.env.svc.Bookings.Create(context.Background(), f.student, CreateBookingInput{
				FacilityID: f.facility, Date: tomorrow, StartTime: "12:00", EndTime: "13:00",
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case AsError(err).Code == CodeSlotConflict:
				conflicts++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, workers-1, conflicts)

	var count int64
	require.NoError(t, f.env.db.Model(&models.Booking{}).Where("start_time = ?", "12:00").Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestListBookingsScoping(t *testing.T) {
	f := newBookingFixture(t)
	ctx := context.Background()

	mine := f.book(t, f.student, "08:00", "09:00")
	theirs := f.book(t, f.other, "09:00", "10:00")
	approved := f.book(t, f.other, "10:00", "11:00")
	_, err := f.env.svc.Bookings.Approve(ctx, f.admin, approved.ID)
	require.NoError(t, err)
	staffOwn := f.book(t, f.staff, "11:00", "12:00")
	_, err = f.env.svc.Bookings.Approve(ctx, f.admin, staffOwn.ID)
	require.NoError(t, err)

	ids := func(rows []models.BookingDetail) []uint {
		out := make([]uint, 0, len(rows))
		for _, r := range rows {
			out = append(out, r.ID)
		}
		return out
	}

	rows, err := f.env.svc.Bookings.List(ctx, f.student, BookingFilter{})
	require.NoError(t, err)
	assert.Equal(t, []uint{mine.ID}, ids(rows))
	assert.Equal(t, "student1", rows[0].BookedBy)
	assert.Equal(t, "Main Hall", rows[0].FacilityName)

	rows, err = f.env.svc.Bookings.List(ctx, f.staff, BookingFilter{})
	require.NoError(t, err)
	assert.Equal(t, []uint{staffOwn.ID, theirs.ID, mine.ID}, ids(rows), "staff see own and all pending, latest start first")

	rows, err = f.env.svc.Bookings.List(ctx, f.admin, BookingFilter{})
	require.NoError(t, err)
	assert.Equal(t, []uint{staffOwn.ID, approved.ID, theirs.ID, mine.ID}, ids(rows))

	rows, err = f.env.svc.Bookings.List(ctx, f.admin, BookingFilter{Status: models.StatusApproved})
	require.NoError(t, err)
	assert.Equal(t, []uint{staffOwn.ID, approved.ID}, ids(rows))
	require.NotNil(t, rows[0].ApprovedByName)
	assert.Equal(t, "admin1", *rows[0].ApprovedByName)

	rows, err = f.env.svc.Bookings.List(ctx, f.admin, BookingFilter{DateFrom: "2030-03-12"})
	require.NoError(t, err)
	assert.Empty(t, rows)

	rows, err = f.env.svc.Bookings.List(ctx, f.admin, BookingFilter{DateFrom: tomorrow, DateTo: tomorrow, FacilityID: f.facility})
	require.NoError(t, err)
	assert.Len(t, rows, 4)

	_, err = f.env.svc.Bookings.List(ctx, f.admin, BookingFilter{Status: "archived"})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestGetBookingVisibility(t *testing.T) {
	f := newBookingFixture(t)
	ctx := context.Background()
	b := f.book(t, f.other, "09:00", "10:00")

	_, err := f.env.svc.Bookings.Get(ctx, f.student, b.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	got, err := f.env.svc.Bookings.Get(ctx, f.other, b.ID)
	require.NoError(t, err)
	assert.Equal(t, "student2", got.BookedBy)

	_, err = f.env.svc.Bookings.Get(ctx, f.staff, b.ID)
	assert.NoError(t, err)

	_, err = f.env.svc.Bookings.Get(ctx, f.admin, 4242)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateBooking(t *testing.T) {
	f := newBookingFixture(t)
	ctx := context.Background()
	b := f.book(t, f.student, "09:00", "10:00")
	purpose := "Hijacked"

	t.Run("non-owner student is refused and audited", func(t *testing.T) {
		_, err := f.env.svc.Bookings.Update(ctx, f.other, b.ID, BookingPatch{Purpose: &purpose})
		require.ErrorIs(t, err, ErrForbidden)
		assert.Equal(t, "You can only update your own bookings", AsError(err).Message)

		assert.Equal(t, "Club meeting", f.stored(t, b.ID).Purpose)

		logs := f.env.auditLogs(t, models.ActionUnauthorizedUpdate)
		require.Len(t, logs, 1)
		assert.Equal(t, f.other.UserID, *logs[0].UserID)
		assert.Equal(t, "not_owner", logs[0].NewValues["reason"])
	})

	t.Run("student status changes are dropped", func(t *testing.T) {
		status := models.StatusApproved
		_, err := f.env.svc.Bookings.Update(ctx, f.student, b.ID, BookingPatch{Status: &status})
		assert.ErrorIs(t, err, ErrNoOp)
		assert.Equal(t, models.StatusPending, f.stored(t, b.ID).Status)
	})

	t.Run("owner updates purpose", func(t *testing.T) {
		p := "  Study group  "
		got, err := f.env.svc.Bookings.Update(ctx, f.student, b.ID, BookingPatch{Purpose: &p})
		require.NoError(t, err)
		assert.Equal(t, "Study group", got.Purpose)

		logs := f.env.auditLogs(t, models.ActionUpdate)
		require.Len(t, logs, 1)
		assert.Equal(t, "Club meeting", logs[0].OldValues["purpose"])
		assert.Equal(t, map[string]any{"purpose": "Study group"}, map[string]any(logs[0].NewValues))
	})

	t.Run("staff may only approve or reject", func(t *testing.T) {
		status := models.StatusCancelled
		_, err := f.env.svc.Bookings.Update(ctx, f.staff, b.ID, BookingPatch{Status: &status})
		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("empty patch", func(t *testing.T) {
		_, err := f.env.svc.Bookings.Update(ctx, f.admin, b.ID, BookingPatch{})
		assert.ErrorIs(t, err, ErrNoOp)
	})

	t.Run("student cannot edit once decided", func(t *testing.T) {
		_, err := f.env.svc.Bookings.Reject(ctx, f.staff, b.ID, "double booked")
		require.NoError(t, err)

		p := "Again"
		_, err = f.env.svc.Bookings.Update(ctx, f.student, b.ID, BookingPatch{Purpose: &p})
		require.ErrorIs(t, err, ErrInvalidState)
		assert.Equal(t, "Cannot update - booking already rejected", AsError(err).Message)
	})

	t.Run("missing booking", func(t *testing.T) {
		_, err := f.env.svc.Bookings.Update(ctx, f.admin, 4242, BookingPatch{Purpose: &purpose})
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestApproveAndReject(t *testing.T) {
	f := newBookingFixture(t)
	ctx := context.Background()

	b := f.book(t, f.student, "09:00", "10:00")
	got, err := f.env.svc.Bookings.Approve(ctx, f.staff, b.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, got.Status)
	require.NotNil(t, got.ApprovedBy)
	assert.Equal(t, f.staff.UserID, *got.ApprovedBy)
	require.NotNil(t, got.ApprovedByName)
	assert.Equal(t, "staff1", *got.ApprovedByName)

	history := recordLogs(t, f.env, b.ID)
	require.Len(t, history, 3)
	assert.Equal(t, models.ActionApprove, history[0].Action)
	assert.Equal(t, models.ActionUpdate, history[1].Action)
	assert.Equal(t, models.ActionCreate, history[2].Action)
	assert.Equal(t, models.StatusPending, history[1].OldValues["status"])

	_, err = f.env.svc.Bookings.Approve(ctx, f.admin, b.ID)
	assert.ErrorIs(t, err, ErrInvalidState, "decisions are final")
	assert.Len(t, recordLogs(t, f.env, b.ID), 3)

	r := f.book(t, f.other, "11:00", "12:00")
	_, err = f.env.svc.Bookings.Reject(ctx, f.admin, r.ID, "Maintenance")
	require.NoError(t, err)
	history = recordLogs(t, f.env, r.ID)
	require.Len(t, history, 3)
	assert.Equal(t, models.ActionReject, history[0].Action)
	assert.Equal(t, "Maintenance", history[0].NewValues["reason"])
	assert.Equal(t, models.StatusRejected, f.stored(t, r.ID).Status)

	t.Run("students cannot decide", func(t *testing.T) {
		p := f.book(t, f.other, "13:00", "14:00")
		_, err := f.env.svc.Bookings.Approve(ctx, f.student, p.ID)
		require.ErrorIs(t, err, ErrUnauthorizedAccess)
		assert.Equal(t, models.StatusPending, f.stored(t, p.ID).Status)
		assert.Len(t, f.env.auditLogs(t, models.ActionUnauthorizedAccess), 1)
	})
}

func TestDeleteBooking(t *testing.T) {
	f := newBookingFixture(t)
	ctx := context.Background()

	t.Run("owner cancels pending", func(t *testing.T) {
		b := f.book(t, f.student, "09:00", "10:00")
		deleted, err := f.env.svc.Bookings.Delete(ctx, f.student, b.ID)
		require.NoError(t, err)
		assert.False(t, deleted)
		assert.Equal(t, models.StatusCancelled, f.stored(t, b.ID).Status)

		logs := f.env.auditLogs(t, models.ActionCancel)
		require.Len(t, logs, 1)
		assert.Equal(t, models.StatusPending, logs[0].OldValues["status"])
		assert.Equal(t, models.StatusCancelled, logs[0].NewValues["status"])
	})

	t.Run("owner cannot cancel approved", func(t *testing.T) {
		b := f.book(t, f.student, "10:00", "11:00")
		_, err := f.env.svc.Bookings.Approve(ctx, f.staff, b.ID)
		require.NoError(t, err)

		_, err = f.env.svc.Bookings.Delete(ctx, f.student, b.ID)
		require.ErrorIs(t, err, ErrInvalidState)
		assert.Equal(t, "Can only cancel pending bookings", AsError(err).Message)
		assert.Equal(t, models.StatusApproved, f.stored(t, b.ID).Status)
	})

	t.Run("non-owner is refused and audited", func(t *testing.T) {
		b := f.book(t, f.student, "11:00", "12:00")
		_, err := f.env.svc.Bookings.Delete(ctx, f.other, b.ID)
		require.ErrorIs(t, err, ErrForbidden)
		assert.Equal(t, "You can only cancel your own bookings", AsError(err).Message)
		assert.Len(t, f.env.auditLogs(t, models.ActionUnauthorizedDelete), 1)

		_, err = f.env.svc.Bookings.Delete(ctx, f.staff, b.ID)
		assert.ErrorIs(t, err, ErrForbidden, "staff cannot cancel for others")
	})

	t.Run("admin hard deletes any state", func(t *testing.T) {
		b := f.book(t, f.other, "13:00", "14:00")
		_, err := f.env.svc.Bookings.Approve(ctx, f.staff, b.ID)
		require.NoError(t, err)

		deleted, err := f.env.svc.Bookings.Delete(ctx, f.admin, b.ID)
		require.NoError(t, err)
		assert.True(t, deleted)

		var count int64
		require.NoError(t, f.env.db.Model(&models.Booking{}).Where("id = ?", b.ID).Count(&count).Error)
		assert.Zero(t, count)

		logs := f.env.auditLogs(t, models.ActionDelete)
		require.Len(t, logs, 1)
		assert.Equal(t, models.StatusApproved, logs[0].OldValues["status"])
		assert.Nil(t, logs[0].NewValues)
	})

	t.Run("missing booking", func(t *testing.T) {
		_, err := f.env.svc.Bookings.Delete(ctx, f.admin, 4242)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}
