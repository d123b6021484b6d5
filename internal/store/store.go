package store

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"vehicle-inspection-backend/internal/apperr"
	"vehicle-inspection-backend/internal/db"
	"vehicle-inspection-backend/internal/model"
	"vehicle-inspection-backend/internal/parse"
	"vehicle-inspection-backend/internal/query"
)

const defaultTrendWindowDays = 30

// Store defines the interface for all record database operations.
// Every filtered method derives its WHERE clause from query.Build.
type Store interface {
	Count(ctx context.Context, f query.Filter) (int64, error)
	Page(ctx context.Context, f query.Filter) ([]model.Record, int64, error)
	TopMachines(ctx context.Context, f query.Filter, limit int) ([]MachineCount, error)
	Trend(ctx context.Context, f query.Filter) ([]DateCount, error)
	DamageTexts(ctx context.Context, f query.Filter) ([]string, error)
	Summary(ctx context.Context, todayISO string) (Summary, error)

	Get(ctx context.Context, id int64) (model.Record, error)
	Create(ctx context.Context, rec *model.Record) error
	Update(ctx context.Context, rec *model.Record) error
	UpdateWithAttachments(ctx context.Context, rec *model.Record, mutate AttachmentMutator) (model.Record, error)
	Delete(ctx context.Context, id int64) error
	UpdateAttachments(ctx context.Context, id int64, mutate AttachmentMutator) (model.Record, error)

	Snapshot(ctx context.Context, dstPath string) error
	Restore(ctx context.Context, srcPath, keepPath string) error
}

// Option configures a gormStore.
type Option func(*gormStore)

// WithClock overrides the clock used for the implicit trend window.
func WithClock(now func() time.Time) Option {
	return func(s *gormStore) { s.now = now }
}

// WithTrendWindow sets how many days back the trend reaches when the filter
// has no start date.
func WithTrendWindow(days int) Option {
	return func(s *gormStore) {
		if days > 0 {
			s.trendWindowDays = days
		}
	}
}

// gormStore implements the Store interface using GORM.
type gormStore struct {
	db              *gorm.DB
	now             func() time.Time
	trendWindowDays int
}

// NewGormStore creates a new GORM-backed store.
func NewGormStore(db *gorm.DB, opts ...Option) Store {
	s := &gormStore{db: db, now: time.Now, trendWindowDays: defaultTrendWindowDays}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *gormStore) records(ctx context.Context, p query.Predicate) *gorm.DB {
	return p.Apply(s.db.WithContext(ctx).Model(&model.Record{}))
}

// Count returns the number of records matching f.
func (s *gormStore) Count(ctx context.Context, f query.Filter) (int64, error) {
	var total int64
	if err := s.records(ctx, query.Build(f)).Count(&total).Error; err != nil {
		return 0, apperr.Storage("count records", err)
	}
	return total, nil
}

// Page returns one ordered page of matching records plus the total match count.
// A page past the end is empty, not an error.
func (s *gormStore) Page(ctx context.Context, f query.Filter) ([]model.Record, int64, error) {
	p := query.Build(f)

	var total int64
	if err := s.records(ctx, p).Count(&total).Error; err != nil {
		return nil, 0, apperr.Storage("count records", err)
	}

	records := make([]model.Record, 0, f.PageSize)
	if total == 0 || int64(f.Offset()) >= total {
		return records, total, nil
	}

	err := s.records(ctx, p).
		Order(query.OrderClause(f.SortBy)).
		Limit(f.PageSize).
		Offset(f.Offset()).
		Find(&records).Error
	if err != nil {
		return nil, 0, apperr.Storage("list records", err)
	}
	return records, total, nil
}

// TopMachines groups matching records by machine, most frequent first.
// Ties are broken by machine number. A limit <= 0 returns every group.
func (s *gormStore) TopMachines(ctx context.Context, f query.Filter, limit int) ([]MachineCount, error) {
	tx := s.records(ctx, query.Build(f)).
		Select("machine_no, COUNT(*) AS total").
		Group("machine_no").
		Order("total DESC, machine_no ASC")
	if limit > 0 {
		tx = tx.Limit(limit)
	}

	out := []MachineCount{}
	if err := tx.Scan(&out).Error; err != nil {
		return nil, apperr.Storage("aggregate machines", err)
	}
	return out, nil
}

// Trend returns per-day counts in ascending date order. Without a start date
// the series is bounded to the configured window ending today.
func (s *gormStore) Trend(ctx context.Context, f query.Filter) ([]DateCount, error) {
	p := query.Build(f)
	if f.StartDate == "" {
		since := s.now().AddDate(0, 0, -s.trendWindowDays).Format(parse.ISOLayout)
		p = p.And("date_iso >= ?", since)
	}

	out := []DateCount{}
	err := s.records(ctx, p).
		Select("date_iso, COUNT(*) AS total").
		Group("date_iso").
		Order("date_iso ASC").
		Scan(&out).Error
	if err != nil {
		return nil, apperr.Storage("aggregate trend", err)
	}
	return out, nil
}

// DamageTexts returns the non-empty damage notes of matching records in id order.
func (s *gormStore) DamageTexts(ctx context.Context, f query.Filter) ([]string, error) {
	p := query.Build(f).And("damage IS NOT NULL AND damage <> ''")

	texts := []string{}
	if err := s.records(ctx, p).Order("id ASC").Pluck("damage", &texts).Error; err != nil {
		return nil, apperr.Storage("load damage notes", err)
	}
	return texts, nil
}

// Summary computes the dashboard counters over the whole table.
func (s *gormStore) Summary(ctx context.Context, todayISO string) (Summary, error) {
	var sum Summary
	base := s.db.WithContext(ctx).Model(&model.Record{})

	if err := base.Session(&gorm.Session{}).Count(&sum.Total).Error; err != nil {
		return Summary{}, apperr.Storage("count records", err)
	}
	if err := base.Session(&gorm.Session{}).Where("date_iso = ?", todayISO).Count(&sum.Today).Error; err != nil {
		return Summary{}, apperr.Storage("count today", err)
	}
	if err := base.Session(&gorm.Session{}).Where("damage IS NOT NULL AND damage <> ''").Count(&sum.Damaged).Error; err != nil {
		return Summary{}, apperr.Storage("count damaged", err)
	}
	if sum.Total > 0 {
		sum.DamagePercent = math.Round(float64(sum.Damaged)/float64(sum.Total)*1000) / 10
	}
	return sum, nil
}

// Get loads a record by id.
func (s *gormStore) Get(ctx context.Context, id int64) (model.Record, error) {
	var rec model.Record
	err := s.db.WithContext(ctx).First(&rec, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Record{}, apperr.NotFound("record", id)
	}
	if err != nil {
		return model.Record{}, apperr.Storage("get record", err)
	}
	return rec, nil
}

// Create inserts rec and fills in its id.
func (s *gormStore) Create(ctx context.Context, rec *model.Record) error {
	if err := s.db.WithContext(ctx).Create(rec).Error; err != nil {
		return apperr.Storage("create record", err)
	}
	return nil
}

// Update writes the editable fields of rec. The id, creator and creation
// timestamp are never overwritten; attachments change only through a mutator.
func (s *gormStore) Update(ctx context.Context, rec *model.Record) error {
	_, err := s.UpdateWithAttachments(ctx, rec, nil)
	return err
}

// UpdateWithAttachments writes the editable fields of rec and applies mutate
// to its attachment list in one transaction. If mutate fails nothing is
// written. A nil mutate leaves the attachments alone.
func (s *gormStore) UpdateWithAttachments(ctx context.Context, rec *model.Record, mutate AttachmentMutator) (model.Record, error) {
	return s.write(ctx, rec.ID, editableFields(rec), mutate, "update record")
}

// Delete removes a record row.
func (s *gormStore) Delete(ctx context.Context, id int64) error {
	res := s.db.WithContext(ctx).Delete(&model.Record{}, id)
	if res.Error != nil {
		return apperr.Storage("delete record", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("record", id)
	}
	return nil
}

// UpdateAttachments reads the attachment ledger under a row lock, applies
// mutate and writes the result back in the same transaction.
func (s *gormStore) UpdateAttachments(ctx context.Context, id int64, mutate AttachmentMutator) (model.Record, error) {
	return s.write(ctx, id, map[string]any{}, mutate, "update attachments")
}

func (s *gormStore) write(ctx context.Context, id int64, fields map[string]any, mutate AttachmentMutator, op string) (model.Record, error) {
	var rec model.Record
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q := tx
		if tx.Dialector.Name() != "sqlite" {
			q = tx.Clauses(clause.Locking{Strength: "UPDATE"})
		}
		if err := q.First(&rec, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound("record", id)
			}
			return fmt.Errorf("failed to load record %d: %w", id, err)
		}

		if mutate != nil {
			names, err := mutate(rec.AttachmentList())
			if err != nil {
				return err
			}
			rec.SetAttachmentList(names)
			fields["attachments"] = rec.Attachments
		}
		if len(fields) == 0 {
			return nil
		}

		if err := tx.Model(&model.Record{ID: id}).Updates(fields).Error; err != nil {
			return fmt.Errorf("failed to update record %d: %w", id, err)
		}
		return tx.First(&rec, id).Error
	})
	if err != nil {
		if apperr.IsNotFound(err) || apperr.IsValidation(err) {
			return model.Record{}, err
		}
		if _, ok := apperr.AsPartial(err); ok {
			return model.Record{}, err
		}
		return model.Record{}, apperr.Storage(op, err)
	}
	return rec, nil
}

func editableFields(rec *model.Record) map[string]any {
	return map[string]any{
		"machine_no":     rec.MachineNo,
		"inspector_name": rec.InspectorName,
		"date_text":      rec.DateText,
		"date_iso":       rec.DateISO,
		"comments":       rec.Comments,
		"damage":         rec.Damage,
	}
}

// Snapshot writes a consistent copy of the database to dstPath.
func (s *gormStore) Snapshot(ctx context.Context, dstPath string) error {
	if err := db.SnapshotTo(ctx, s.db, dstPath); err != nil {
		return apperr.Storage("snapshot database", err)
	}
	return nil
}

// Restore replaces the database contents with the snapshot at srcPath. The
// current contents are written to keepPath first.
func (s *gormStore) Restore(ctx context.Context, srcPath, keepPath string) error {
	err := db.RestoreFrom(ctx, s.db, srcPath, keepPath)
	if errors.Is(err, db.ErrInvalidSnapshot) {
		return apperr.Validation("dbfile", "%v", err)
	}
	if err != nil {
		return apperr.Storage("restore database", err)
	}
	return nil
}
