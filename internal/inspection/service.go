// Package inspection exposes the record query, aggregation, export and
// attachment operations to the transport layer.
package inspection

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"vehicle-inspection-backend/config"
	"vehicle-inspection-backend/internal/apperr"
	"vehicle-inspection-backend/internal/issues"
	"vehicle-inspection-backend/internal/ledger"
	"vehicle-inspection-backend/internal/model"
	"vehicle-inspection-backend/internal/parse"
	"vehicle-inspection-backend/internal/query"
	"vehicle-inspection-backend/internal/report"
	"vehicle-inspection-backend/internal/store"
)

// Service is the request-scoped entry point to the inspection core. It keeps
// no per-request state and is safe for concurrent use.
type Service struct {
	store    store.Store
	ledger   *ledger.Ledger
	exporter *report.Exporter
	cfg      config.QueryConfig
	backups  string
	validate *validator.Validate
	now      func() time.Time
	log      logrus.FieldLogger
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the clock used for timestamps and "today".
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithBackupDir sets where database snapshots are written.
func WithBackupDir(dir string) Option {
	return func(s *Service) { s.backups = dir }
}

// NewService wires the core components together.
func NewService(st store.Store, l *ledger.Ledger, e *report.Exporter, cfg config.QueryConfig, log logrus.FieldLogger, opts ...Option) *Service {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("form"), ",", 2)[0]
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})

	s := &Service{
		store:    st,
		ledger:   l,
		exporter: e,
		cfg:      cfg,
		backups:  "data/backups",
		validate: v,
		now:      time.Now,
		log:      log.WithField("component", "inspection"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// FilterOptions are the pagination bounds applied to incoming parameters.
func (s *Service) FilterOptions() query.Options {
	return query.Options{AllowedPageSizes: s.cfg.AllowedPageSizes, DefaultPageSize: s.cfg.DefaultPageSize}
}

// ListRecords returns one page of matching records and the match total.
func (s *Service) ListRecords(ctx context.Context, f query.Filter) (ListResult, error) {
	records, total, err := s.store.Page(ctx, f)
	if err != nil {
		return ListResult{}, err
	}
	views := make([]RecordView, 0, len(records))
	for _, r := range records {
		views = append(views, s.view(r))
	}
	return ListResult{
		Records:    views,
		Total:      total,
		Page:       f.Page,
		PageSize:   f.PageSize,
		TotalPages: query.TotalPages(total, f.PageSize),
	}, nil
}

// TopMachines returns the machines with the most matching records.
func (s *Service) TopMachines(ctx context.Context, f query.Filter) ([]store.MachineCount, error) {
	return s.store.TopMachines(ctx, f, s.cfg.TopMachinesLimit)
}

// Trend returns daily counts for the filter.
func (s *Service) Trend(ctx context.Context, f query.Filter) ([]store.DateCount, error) {
	return s.store.Trend(ctx, f)
}

// TopIssues ranks the words of the damage notes matching f.
func (s *Service) TopIssues(ctx context.Context, f query.Filter) ([]issues.TermCount, error) {
	texts, err := s.store.DamageTexts(ctx, f)
	if err != nil {
		return nil, err
	}
	return issues.Top(texts, s.cfg.TopIssuesK), nil
}

// Summary returns the unfiltered dashboard counters for today.
func (s *Service) Summary(ctx context.Context) (store.Summary, error) {
	return s.store.Summary(ctx, s.now().Format(parse.ISOLayout))
}

// Dashboard runs every view of f concurrently.
func (s *Service) Dashboard(ctx context.Context, f query.Filter) (Dashboard, error) {
	var d Dashboard
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		var err error
		d.List, err = s.ListRecords(ctx, f)
		return err
	})
	g.Go(func() error {
		var err error
		d.TopMachines, err = s.TopMachines(ctx, f)
		return err
	})
	g.Go(func() error {
		var err error
		d.Trend, err = s.Trend(ctx, f)
		return err
	})
	g.Go(func() error {
		var err error
		d.TopIssues, err = s.TopIssues(ctx, f)
		return err
	})
	g.Go(func() error {
		var err error
		d.Summary, err = s.Summary(ctx)
		return err
	})

	if err := g.Wait(); err != nil {
		return Dashboard{}, err
	}
	return d, nil
}

// Export renders every record matching f in the given format.
func (s *Service) Export(ctx context.Context, format report.Format, f query.Filter, id Identity) (report.Result, error) {
	return s.exporter.Export(ctx, format, f, id.User)
}

// GetRecord loads a record with its reconciled attachment list.
func (s *Service) GetRecord(ctx context.Context, id int64) (RecordView, error) {
	rec, err := s.store.Get(ctx, id)
	if err != nil {
		return RecordView{}, err
	}
	return s.view(rec), nil
}

// CreateRecord validates in, stores the acceptable uploads and inserts the
// row. Files written for a row that fails to insert are removed again. When
// some uploads were refused the record is still created and a
// PartialAttachmentFailure is returned with it.
func (s *Service) CreateRecord(ctx context.Context, id Identity, in RecordInput, uploads []ledger.Upload) (RecordView, error) {
	rec, err := s.recordFromInput(in)
	if err != nil {
		return RecordView{}, err
	}
	rec.CreatedBy = id.User
	rec.CreatedAtISO = parse.Timestamp(s.now())

	saved, rejected, err := s.ledger.Save(ctx, uploads)
	if err != nil {
		return RecordView{}, err
	}
	rec.SetAttachmentList(saved)

	if err := s.store.Create(ctx, &rec); err != nil {
		s.ledger.Discard(saved)
		return RecordView{}, err
	}

	s.log.WithFields(logrus.Fields{"record": rec.ID, "user": id.User, "files": len(saved)}).Info("Record created")
	return s.view(rec), partial(rejected)
}

// UpdateRecord replaces the editable fields of a record and appends any
// uploads to its attachment list. Both land in one transaction; on failure
// the stored record is unchanged and the new files are removed.
func (s *Service) UpdateRecord(ctx context.Context, recordID int64, in RecordInput, uploads []ledger.Upload) (RecordView, error) {
	current, err := s.store.Get(ctx, recordID)
	if err != nil {
		return RecordView{}, err
	}
	edit, err := s.recordFromInput(in)
	if err != nil {
		return RecordView{}, err
	}
	edit.ID = current.ID

	saved, rejected, err := s.ledger.Save(ctx, uploads)
	if err != nil {
		return RecordView{}, err
	}
	var appendSaved store.AttachmentMutator
	if len(saved) > 0 {
		appendSaved = func(names []string) ([]string, error) {
			return append(names, saved...), nil
		}
	}
	rec, err := s.store.UpdateWithAttachments(ctx, &edit, appendSaved)
	if err != nil {
		s.ledger.Discard(saved)
		return RecordView{}, err
	}

	return s.view(rec), partial(rejected)
}

// DeleteRecord removes the record's files and then its row.
func (s *Service) DeleteRecord(ctx context.Context, recordID int64) error {
	rec, err := s.store.Get(ctx, recordID)
	if err != nil {
		return err
	}
	if err := s.ledger.Purge(rec); err != nil {
		return err
	}
	if err := s.store.Delete(ctx, recordID); err != nil {
		return err
	}
	s.log.WithField("record", recordID).Info("Record deleted")
	return nil
}

// AddAttachments appends uploads to an existing record.
func (s *Service) AddAttachments(ctx context.Context, recordID int64, uploads []ledger.Upload) (RecordView, error) {
	rec, err := s.ledger.Append(ctx, recordID, uploads)
	if err != nil {
		if _, ok := apperr.AsPartial(err); !ok {
			return RecordView{}, err
		}
	}
	return s.view(rec), err
}

// RemoveAttachment deletes one attachment. Removing a name that is not
// listed is a no-op.
func (s *Service) RemoveAttachment(ctx context.Context, recordID int64, name string) (RecordView, error) {
	rec, err := s.ledger.Remove(ctx, recordID, name)
	if err != nil {
		return RecordView{}, err
	}
	return s.view(rec), nil
}

// Backup writes a snapshot of the database and returns its path. Only
// admins may take one.
func (s *Service) Backup(ctx context.Context, id Identity) (string, error) {
	if !id.IsAdmin() {
		return "", apperr.Forbidden("database backup")
	}
	path := filepath.Join(s.backups, fmt.Sprintf("records-%s.db", s.now().Format("20060102-150405")))
	if err := s.store.Snapshot(ctx, path); err != nil {
		return "", err
	}
	s.log.WithFields(logrus.Fields{"user": id.User, "file": path}).Info("Database snapshot written")
	return path, nil
}

// Restore replaces the database with an uploaded snapshot and returns the
// path where the previous contents were kept. Only admins may restore.
func (s *Service) Restore(ctx context.Context, id Identity, upload ledger.Upload) (string, error) {
	if !id.IsAdmin() {
		return "", apperr.Forbidden("database restore")
	}
	if !strings.EqualFold(filepath.Ext(upload.Name), ".db") {
		return "", apperr.Validation("dbfile", "expected a .db file, got %q", upload.Name)
	}

	src, err := s.stageUpload(upload)
	if err != nil {
		return "", err
	}
	defer os.Remove(src)

	keep := filepath.Join(s.backups, fmt.Sprintf("records-%s-pre-restore.db", s.now().Format("20060102-150405")))
	if err := s.store.Restore(ctx, src, keep); err != nil {
		return "", err
	}
	s.log.WithFields(logrus.Fields{"user": id.User, "upload": upload.Name, "kept": keep}).Warn("Database restored")
	return keep, nil
}

// stageUpload copies an uploaded snapshot into the backup directory.
func (s *Service) stageUpload(upload ledger.Upload) (string, error) {
	if err := os.MkdirAll(s.backups, 0o755); err != nil {
		return "", apperr.Storage("stage restore", err)
	}
	tmp, err := os.CreateTemp(s.backups, ".restore-*.db")
	if err != nil {
		return "", apperr.Storage("stage restore", err)
	}
	r, err := upload.Open()
	if err == nil {
		_, err = io.Copy(tmp, r)
		r.Close()
	}
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmp.Name())
		return "", apperr.Storage("stage restore", err)
	}
	return tmp.Name(), nil
}

func (s *Service) view(rec model.Record) RecordView {
	return RecordView{Record: rec, Attachments: s.ledger.Reconcile(rec)}
}

func (s *Service) recordFromInput(in RecordInput) (model.Record, error) {
	in.MachineNo = strings.TrimSpace(in.MachineNo)
	in.InspectorName = strings.TrimSpace(in.InspectorName)
	in.Comments = strings.TrimSpace(in.Comments)
	in.Damage = strings.TrimSpace(in.Damage)

	if err := s.validate.Struct(in); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return model.Record{}, apperr.Validation(fe.Field(), "failed %q check", fe.Tag())
		}
		return model.Record{}, apperr.Validation("", "%v", err)
	}

	iso, err := parse.BoundaryDate(in.Date)
	if err != nil {
		return model.Record{}, apperr.Validation("date", "%v", err)
	}
	display, err := parse.DisplayDate(iso)
	if err != nil {
		return model.Record{}, apperr.Validation("date", "%v", err)
	}

	return model.Record{
		MachineNo:     in.MachineNo,
		InspectorName: in.InspectorName,
		DateISO:       iso,
		DateText:      display,
		Comments:      in.Comments,
		Damage:        in.Damage,
	}, nil
}

func partial(rejected []apperr.RejectedFile) error {
	if len(rejected) == 0 {
		return nil
	}
	return &apperr.PartialAttachmentFailure{Rejected: rejected}
}
