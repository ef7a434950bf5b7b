package services

import (
	"context"
	"strconv"
	"sync"
	"time"

	"amc-booking/internal/logging"
	"amc-booking/internal/metrics"
	"amc-booking/internal/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	defaultAuditLimit    = 50
	maxAuditLimit        = 500
	defaultActivityLimit = 20
)

// AuditEntry describes one tracked action. Empty Table and nil RecordID are
// stored as NULL.
type AuditEntry struct {
	UserID    *uint
	Action    string
	Table     string
	RecordID  *uint
	OldValues models.JSONMap
	NewValues models.JSONMap
}

// AuditPublisher receives a copy of every persisted audit record.
type AuditPublisher interface {
	Publish(ctx context.Context, key string, event any) error
}

// AuditFilter narrows GetLogs. Zero values mean "no constraint". Dates are
// YYYY-MM-DD and match whole calendar days.
type AuditFilter struct {
	UserID   *uint
	Action   string
	Table    string
	DateFrom string
	DateTo   string
}

type ActionCount struct {
	Action string `json:"action"`
	Count  int64  `json:"count"`
}

type AuditStats struct {
	TotalLogs        int64         `json:"total_logs"`
	LogsToday        int64         `json:"logs_today"`
	FailedLogins24h  int64         `json:"failed_logins_24h"`
	ActionsBreakdown []ActionCount `json:"actions_breakdown"`
}

// AuditService is the append-only audit sink and its read-only query API.
type AuditService struct {
	db        *gorm.DB
	log       *zap.Logger
	publisher AuditPublisher
	now       Clock
	wg        sync.WaitGroup
}

func NewAuditService(db *gorm.DB, log *zap.Logger) *AuditService {
	return &AuditService{db: db, log: log, now: time.Now}
}

// SetPublisher mirrors every record to p after it is persisted.
func (s *AuditService) SetPublisher(p AuditPublisher) {
	s.publisher = p
}

// Record appends an audit entry. It never fails the caller: a write error is
// logged and counted, and the triggering operation stands.
func (s *AuditService) Record(ctx context.Context, e AuditEntry) {
	info := RequestInfoFrom(ctx)

	row := &models.AuditLog{
		UserID:    e.UserID,
		Action:    e.Action,
		RecordID:  e.RecordID,
		OldValues: e.OldValues,
		NewValues: e.NewValues,
		IPAddress: truncateRunes(info.IP, 45),
		UserAgent: truncateRunes(info.UserAgent, maxUserAgentLength),
		CreatedAt: s.now(),
	}
	if e.Table != "" {
		table := e.Table
		row.Table = &table
	}

	if err := s.db.WithContext(ctx).Create(row).Error; err != nil {
		metrics.AuditWriteFailuresTotal.WithLabelValues("database").Inc()
		logging.FromContext(ctx, s.log).Error("audit write failed",
			zap.String("action", e.Action),
			zap.String("table", e.Table),
			zap.Error(err),
		)
		return
	}
	metrics.AuditRecordsTotal.WithLabelValues(e.Action).Inc()

	if s.publisher != nil {
		s.publish(ctx, row)
	}
}

func (s *AuditService) publish(ctx context.Context, row *models.AuditLog) {
	ctx = context.WithoutCancel(ctx)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.publisher.Publish(ctx, strconv.FormatUint(uint64(row.ID), 10), row); err != nil {
			metrics.AuditWriteFailuresTotal.WithLabelValues("publisher").Inc()
			logging.FromContext(ctx, s.log).Error("audit publish failed",
				zap.Uint("log_id", row.ID),
				zap.Error(err),
			)
		}
	}()
}

// Wait blocks until in-flight publishes finish.
func (s *AuditService) Wait() {
	s.wg.Wait()
}

// RecordUnauthorizedAccess logs a role check failure for id.
func (s *AuditService) RecordUnauthorizedAccess(ctx context.Context, id Identity, required []string, resource string) {
	var actor *uint
	if id.UserID != 0 {
		uid := id.UserID
		actor = &uid
	}
	if resource == "" {
		resource = RequestInfoFrom(ctx).Resource
	}
	s.Record(ctx, AuditEntry{
		UserID: actor,
		Action: models.ActionUnauthorizedAccess,
		Table:  models.TableSystem,
		NewValues: models.JSONMap{
			"required_roles": required,
			"user_role":      id.Role,
			"resource":       resource,
		},
	})
}

func (s *AuditService) logsQuery(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx).
		Model(&models.AuditLog{}).
		Select("audit_logs.*, users.username AS username").
		Joins("LEFT JOIN users ON users.id = audit_logs.user_id")
}

// GetLogs returns audit records newest first.
func (s *AuditService) GetLogs(ctx context.Context, f AuditFilter, limit, offset int) ([]models.AuditLog, error) {
	if limit <= 0 {
		limit = defaultAuditLimit
	}
	if limit > maxAuditLimit {
		limit = maxAuditLimit
	}
	if offset < 0 {
		offset = 0
	}

	q := s.logsQuery(ctx)
	if f.UserID != nil {
		q = q.Where("audit_logs.user_id = ?", *f.UserID)
	}
	if f.Action != "" {
		q = q.Where("audit_logs.action = ?", f.Action)
	}
	if f.Table != "" {
		q = q.Where("audit_logs.table_name = ?", f.Table)
	}
	if f.DateFrom != "" {
		from, err := parseDate(f.DateFrom)
		if err != nil {
			return nil, validationError("date_from must be YYYY-MM-DD")
		}
		q = q.Where("audit_logs.created_at >= ?", from)
	}
	if f.DateTo != "" {
		to, err := parseDate(f.DateTo)
		if err != nil {
			return nil, validationError("date_to must be YYYY-MM-DD")
		}
		q = q.Where("audit_logs.created_at < ?", to.AddDate(0, 0, 1))
	}

	var logs []models.AuditLog
	if err := q.Order("audit_logs.created_at DESC, audit_logs.id DESC").
		Limit(limit).Offset(offset).
		Find(&logs).Error; err != nil {
		return nil, internalError("Failed to load audit logs", err)
	}
	return logs, nil
}

// GetStats summarises the audit trail for the admin dashboard.
func (s *AuditService) GetStats(ctx context.Context) (*AuditStats, error) {
	now := s.now()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	db := s.db.WithContext(ctx)

	var stats AuditStats
	if err := db.Model(&models.AuditLog{}).Count(&stats.TotalLogs).Error; err != nil {
		return nil, internalError("Failed to load audit statistics", err)
	}
	if err := db.Model(&models.AuditLog{}).
		Where("created_at >= ?", midnight).
		Count(&stats.LogsToday).Error; err != nil {
		return nil, internalError("Failed to load audit statistics", err)
	}
	if err := db.Model(&models.AuditLog{}).
		Where("action = ? AND created_at >= ?", models.ActionLoginFailed, now.Add(-24*time.Hour)).
		Count(&stats.FailedLogins24h).Error; err != nil {
		return nil, internalError("Failed to load audit statistics", err)
	}
	if err := db.Model(&models.AuditLog{}).
		Select("action, COUNT(*) AS count").
		Group("action").
		Order("count DESC, action ASC").
		Scan(&stats.ActionsBreakdown).Error; err != nil {
		return nil, internalError("Failed to load audit statistics", err)
	}
	return &stats, nil
}

// GetRecordHistory returns every record touching table/recordID, newest first.
func (s *AuditService) GetRecordHistory(ctx context.Context, table string, recordID uint) ([]models.AuditLog, error) {
	var logs []models.AuditLog
	if err := s.logsQuery(ctx).
		Where("audit_logs.table_name = ? AND audit_logs.record_id = ?", table, recordID).
		Order("audit_logs.created_at DESC, audit_logs.id DESC").
		Find(&logs).Error; err != nil {
		return nil, internalError("Failed to load record history", err)
	}
	return logs, nil
}

// GetUserActivity returns the latest actions performed by userID.
func (s *AuditService) GetUserActivity(ctx context.Context, userID uint, limit int) ([]models.AuditLog, error) {
	if limit <= 0 {
		limit = defaultActivityLimit
	}
	if limit > maxAuditLimit {
		limit = maxAuditLimit
	}

	var logs []models.AuditLog
	if err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&logs).Error; err != nil {
		return nil, internalError("Failed to load user activity", err)
	}
	return logs, nil
}
