package inspection

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"vehicle-inspection-backend/config"
	"vehicle-inspection-backend/internal/apperr"
	"vehicle-inspection-backend/internal/db"
	"vehicle-inspection-backend/internal/files"
	"vehicle-inspection-backend/internal/ledger"
	lg "vehicle-inspection-backend/internal/logger"
	"vehicle-inspection-backend/internal/model"
	"vehicle-inspection-backend/internal/query"
	"vehicle-inspection-backend/internal/report"
	"vehicle-inspection-backend/internal/store"
)

var testNow = time.Date(2024, 3, 7, 14, 30, 0, 0, time.UTC)

type harness struct {
	svc   *Service
	store store.Store
	disk  *files.Disk
	dir   string
}

func newHarness(t *testing.T, wrap func(store.Store) store.Store) *harness {
	t.Helper()
	dir := t.TempDir()
	gormDB, err := gorm.Open(db.SQLite(filepath.Join(dir, "records.db")), &gorm.Config{Logger: logger.Discard})
	require.NoError(t, err)
	sqlDB, _ := gormDB.DB()
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, db.Migrate(gormDB))

	cfg := config.Default()
	cfg.Report.ExportDir = filepath.Join(dir, "exports")
	clock := func() time.Time { return testNow }

	var st store.Store = store.NewGormStore(gormDB, store.WithClock(clock), store.WithTrendWindow(cfg.Query.TrendWindowDays))
	if wrap != nil {
		st = wrap(st)
	}
	disk, err := files.NewDisk(filepath.Join(dir, "uploads"))
	require.NoError(t, err)
	policy := files.NewPolicy(cfg.Storage.AllowedExtensions, cfg.Storage.MaxFileSizeBytes())
	l := ledger.New(st, disk, policy, lg.Discard(), ledger.WithClock(clock))
	exp, err := report.NewExporter(st, cfg.Report, lg.Discard(), report.WithClock(clock))
	require.NoError(t, err)

	svc := NewService(st, l, exp, cfg.Query, lg.Discard(), WithClock(clock), WithBackupDir(filepath.Join(dir, "backups")))
	return &harness{svc: svc, store: st, disk: disk, dir: dir}
}

func upload(name, body string) ledger.Upload {
	return ledger.Upload{
		Name: name,
		Size: int64(len(body)),
		Open: func() (io.ReadCloser, error) { return io.NopCloser(strings.NewReader(body)), nil },
	}
}

var admin = Identity{User: "admin", Role: RoleAdmin}

func validInput() RecordInput {
	return RecordInput{MachineNo: " T-01 ", InspectorName: "Somchai", Date: "07/03/2024", Comments: "ok", Damage: "mirror cracked"}
}

func TestService_CreateRecord(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	view, err := h.svc.CreateRecord(ctx, admin, validInput(), []ledger.Upload{upload("photo.jpg", "x"), upload("run.exe", "y")})
	partial, ok := apperr.AsPartial(err)
	require.True(t, ok)
	require.Len(t, partial.Rejected, 1)
	assert.Equal(t, "run.exe", partial.Rejected[0].Name)

	assert.NotZero(t, view.ID)
	assert.Equal(t, "T-01", view.MachineNo)
	assert.Equal(t, "2024-03-07", view.DateISO)
	assert.Equal(t, "24/03/07", view.DateText)
	assert.Equal(t, "admin", view.CreatedBy)
	assert.Equal(t, "2024-03-07 14:30:00", view.CreatedAtISO)
	assert.Equal(t, []string{"photo.jpg"}, view.Attachments)

	got, err := h.svc.GetRecord(ctx, view.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"photo.jpg"}, got.Attachments)
}

func TestService_CreateRecordValidation(t *testing.T) {
	h := newHarness(t, nil)

	testCases := []struct {
		name  string
		edit  func(*RecordInput)
		field string
	}{
		{"Missing machine", func(in *RecordInput) { in.MachineNo = "  " }, "machine_no"},
		{"Missing inspector", func(in *RecordInput) { in.InspectorName = "" }, "inspector_name"},
		{"Missing date", func(in *RecordInput) { in.Date = "" }, "date"},
		{"Malformed date", func(in *RecordInput) { in.Date = "2024-03-07" }, "date"},
		{"Impossible date", func(in *RecordInput) { in.Date = "31/02/2024" }, "date"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			in := validInput()
			tc.edit(&in)
			_, err := h.svc.CreateRecord(context.Background(), admin, in, nil)
			var verr *apperr.ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Equal(t, tc.field, verr.Field)
		})
	}

	total, err := h.store.Count(context.Background(), query.Filter{})
	require.NoError(t, err)
	assert.Zero(t, total)
}

type failingCreateStore struct {
	store.Store
}

func (failingCreateStore) Create(context.Context, *model.Record) error {
	return apperr.Storage("create record", errors.New("database is locked"))
}

func TestService_CreateRecordRemovesFilesOnFailure(t *testing.T) {
	h := newHarness(t, func(s store.Store) store.Store { return failingCreateStore{s} })

	_, err := h.svc.CreateRecord(context.Background(), admin, validInput(), []ledger.Upload{upload("photo.jpg", "x")})
	assert.True(t, apperr.IsStorage(err))

	ok, err := h.disk.Exists("photo.jpg")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestService_UpdateRecord(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	created, err := h.svc.CreateRecord(ctx, Identity{User: "somchai"}, validInput(), []ledger.Upload{upload("a.pdf", "x")})
	require.NoError(t, err)

	in := validInput()
	in.MachineNo = "T-02"
	in.Date = "08/03/2024"
	updated, err := h.svc.UpdateRecord(ctx, created.ID, in, []ledger.Upload{upload("b.pdf", "y")})
	require.NoError(t, err)
	assert.Equal(t, "T-02", updated.MachineNo)
	assert.Equal(t, "24/03/08", updated.DateText)
	assert.Equal(t, "somchai", updated.CreatedBy)
	assert.Equal(t, []string{"a.pdf", "b.pdf"}, updated.Attachments)

	_, err = h.svc.UpdateRecord(ctx, 999, in, nil)
	assert.True(t, apperr.IsNotFound(err))
}

type failingAttachStore struct {
	store.Store
}

func (s failingAttachStore) UpdateWithAttachments(ctx context.Context, rec *model.Record, _ store.AttachmentMutator) (model.Record, error) {
	return s.Store.UpdateWithAttachments(ctx, rec, func([]string) ([]string, error) {
		return nil, errors.New("disk full")
	})
}

func TestService_UpdateRecordIsAtomic(t *testing.T) {
	h := newHarness(t, func(s store.Store) store.Store { return failingAttachStore{s} })
	ctx := context.Background()
	created, err := h.svc.CreateRecord(ctx, admin, validInput(), []ledger.Upload{upload("a.pdf", "x")})
	require.NoError(t, err)

	in := validInput()
	in.MachineNo = "CHANGED"
	_, err = h.svc.UpdateRecord(ctx, created.ID, in, []ledger.Upload{upload("b.pdf", "y")})
	assert.True(t, apperr.IsStorage(err))
	assert.ErrorContains(t, err, "disk full")

	got, err := h.store.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "T-01", got.MachineNo)
	assert.Equal(t, []string{"a.pdf"}, got.AttachmentList())

	ok, err := h.disk.Exists("b.pdf")
	require.NoError(t, err)
	assert.False(t, ok)
	ok, err = h.disk.Exists("a.pdf")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestService_DeleteRecord(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	created, err := h.svc.CreateRecord(ctx, admin, validInput(), []ledger.Upload{upload("a.pdf", "x")})
	require.NoError(t, err)

	require.NoError(t, h.svc.DeleteRecord(ctx, created.ID))

	ok, err := h.disk.Exists("a.pdf")
	require.NoError(t, err)
	assert.False(t, ok)
	_, err = h.svc.GetRecord(ctx, created.ID)
	assert.True(t, apperr.IsNotFound(err))
	assert.True(t, apperr.IsNotFound(h.svc.DeleteRecord(ctx, created.ID)))
}

func TestService_Attachments(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	created, err := h.svc.CreateRecord(ctx, admin, validInput(), nil)
	require.NoError(t, err)
	assert.Empty(t, created.Attachments)

	view, err := h.svc.AddAttachments(ctx, created.ID, []ledger.Upload{upload("a.pdf", "x"), upload("b.bat", "y")})
	_, ok := apperr.AsPartial(err)
	assert.True(t, ok)
	assert.Equal(t, []string{"a.pdf"}, view.Attachments)

	view, err = h.svc.RemoveAttachment(ctx, created.ID, "a.pdf")
	require.NoError(t, err)
	assert.Empty(t, view.Attachments)

	view, err = h.svc.RemoveAttachment(ctx, created.ID, "a.pdf")
	require.NoError(t, err)
	assert.Empty(t, view.Attachments)
}

func seedRecords(t *testing.T, h *harness) {
	t.Helper()
	inputs := []RecordInput{
		{MachineNo: "A", InspectorName: "Somchai", Date: "01/03/2024", Damage: "oil leak"},
		{MachineNo: "A", InspectorName: "Somchai", Date: "02/03/2024", Damage: "leak"},
		{MachineNo: "B", InspectorName: "Anan", Date: "02/03/2024"},
		{MachineNo: "C", InspectorName: "Anan", Date: "07/03/2024", Damage: "tyre"},
		{MachineNo: "C", InspectorName: "Anan", Date: "01/01/2024", Damage: "old leak"},
	}
	for _, in := range inputs {
		_, err := h.svc.CreateRecord(context.Background(), admin, in, nil)
		require.NoError(t, err)
	}
}

func TestService_Dashboard(t *testing.T) {
	h := newHarness(t, nil)
	seedRecords(t, h)

	f := query.Filter{DamageOnly: true, Page: 1, PageSize: 2}
	d, err := h.svc.Dashboard(context.Background(), f)
	require.NoError(t, err)

	assert.Equal(t, int64(4), d.List.Total)
	assert.Len(t, d.List.Records, 2)
	assert.Equal(t, 2, d.List.TotalPages)

	var sum int64
	for _, m := range d.TopMachines {
		sum += m.Count
	}
	assert.Equal(t, d.List.Total, sum)

	// The trend drops the January record, which is outside the 30-day window.
	var trendSum int64
	for _, p := range d.Trend {
		trendSum += p.Count
	}
	assert.Equal(t, int64(3), trendSum)

	require.NotEmpty(t, d.TopIssues)
	assert.Equal(t, "leak", d.TopIssues[0].Term)
	assert.Equal(t, 3, d.TopIssues[0].Count)

	assert.Equal(t, int64(1), d.Summary.Today)
	assert.Equal(t, int64(5), d.Summary.Total)
	assert.Equal(t, 80.0, d.Summary.DamagePercent)
}

func TestService_TopIssuesFollowFilter(t *testing.T) {
	h := newHarness(t, nil)
	seedRecords(t, h)

	terms, err := h.svc.TopIssues(context.Background(), query.Filter{ExactDate: "2024-03-07"})
	require.NoError(t, err)
	require.Len(t, terms, 1)
	assert.Equal(t, "tyre", terms[0].Term)
}

func TestService_Export(t *testing.T) {
	h := newHarness(t, nil)
	seedRecords(t, h)

	res, err := h.svc.Export(context.Background(), report.FormatDelimited, query.Filter{Search: "anan", Page: 2, PageSize: 10}, admin)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Rows)

	body, err := os.ReadFile(res.Path)
	require.NoError(t, err)
	assert.Equal(t, 4, strings.Count(string(body), "\n"))
}

func TestService_Backup(t *testing.T) {
	h := newHarness(t, nil)
	seedRecords(t, h)

	_, err := h.svc.Backup(context.Background(), Identity{User: "somchai", Role: "staff"})
	assert.True(t, apperr.IsForbidden(err))

	path, err := h.svc.Backup(context.Background(), admin)
	require.NoError(t, err)
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
}

func fileUpload(name, path string) ledger.Upload {
	return ledger.Upload{
		Name: name,
		Open: func() (io.ReadCloser, error) { return os.Open(path) },
	}
}

func TestService_Restore(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	seedRecords(t, h)
	before, err := h.store.Count(ctx, query.Filter{})
	require.NoError(t, err)

	snap, err := h.svc.Backup(ctx, admin)
	require.NoError(t, err)
	_, err = h.svc.CreateRecord(ctx, admin, validInput(), nil)
	require.NoError(t, err)

	_, err = h.svc.Restore(ctx, Identity{User: "somchai", Role: "staff"}, fileUpload("snap.db", snap))
	assert.True(t, apperr.IsForbidden(err))
	_, err = h.svc.Restore(ctx, admin, fileUpload("snap.txt", snap))
	assert.True(t, apperr.IsValidation(err))
	_, err = h.svc.Restore(ctx, admin, upload("junk.db", "not sqlite"))
	assert.True(t, apperr.IsValidation(err))

	kept, err := h.svc.Restore(ctx, admin, fileUpload("snap.db", snap))
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(kept, "-pre-restore.db"))

	after, err := h.store.Count(ctx, query.Filter{})
	require.NoError(t, err)
	assert.Equal(t, before, after)

	entries, err := os.ReadDir(filepath.Dir(snap))
	require.NoError(t, err)
	for _, e := range entries {
		assert.False(t, strings.HasPrefix(e.Name(), ".restore-"), "staged upload %s is removed", e.Name())
	}
}
