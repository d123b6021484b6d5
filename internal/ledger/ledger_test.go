package ledger

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

	"vehicle-inspection-backend/internal/apperr"
	"vehicle-inspection-backend/internal/db"
	"vehicle-inspection-backend/internal/files"
	lg "vehicle-inspection-backend/internal/logger"
	"vehicle-inspection-backend/internal/model"
	"vehicle-inspection-backend/internal/store"
)

const epoch = 1700000000

type fixture struct {
	store  store.Store
	disk   *files.Disk
	ledger *Ledger
	record model.Record
}

func newFixture(t *testing.T, maxBytes int64) *fixture {
	t.Helper()
	gormDB, err := gorm.Open(db.SQLite(":memory:"), &gorm.Config{Logger: logger.Discard})
	require.NoError(t, err)
	sqlDB, _ := gormDB.DB()
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, db.Migrate(gormDB))

	s := store.NewGormStore(gormDB)
	disk, err := files.NewDisk(filepath.Join(t.TempDir(), "uploads"))
	require.NoError(t, err)

	rec := model.Record{MachineNo: "T-01", InspectorName: "Somchai", DateISO: "2024-03-07", DateText: "24/03/07", CreatedBy: "admin", CreatedAtISO: "2024-03-07 08:00:00"}
	require.NoError(t, s.Create(context.Background(), &rec))

	policy := files.NewPolicy([]string{"pdf", "jpg", "png"}, maxBytes)
	l := New(s, disk, policy, lg.Discard(), WithClock(func() time.Time { return time.Unix(epoch, 0) }))
	return &fixture{store: s, disk: disk, ledger: l, record: rec}
}

func upload(name, body string) Upload {
	return Upload{
		Name: name,
		Size: int64(len(body)),
		Open: func() (io.ReadCloser, error) { return io.NopCloser(strings.NewReader(body)), nil },
	}
}

func (f *fixture) exists(t *testing.T, name string) bool {
	ok, err := f.disk.Exists(name)
	require.NoError(t, err)
	return ok
}

func TestLedger_AppendCollision(t *testing.T) {
	f := newFixture(t, 1024)
	ctx := context.Background()
	require.NoError(t, f.disk.Save("a.pdf", strings.NewReader("old")))

	rec, err := f.ledger.Append(ctx, f.record.ID, []Upload{upload("a.pdf", "new")})
	require.NoError(t, err)
	assert.Equal(t, []string{"a_1700000000.pdf"}, rec.AttachmentList())

	rec, err = f.ledger.Append(ctx, f.record.ID, []Upload{upload("a.pdf", "newer")})
	require.NoError(t, err)
	names := rec.AttachmentList()
	require.Len(t, names, 2)
	assert.Equal(t, "a_1700000000.pdf", names[0])
	assert.Regexp(t, `^a_1700000000_[0-9a-f]{8}\.pdf$`, names[1])

	body, err := os.ReadFile(filepath.Join(f.disk.Root(), "a.pdf"))
	require.NoError(t, err)
	assert.Equal(t, "old", string(body), "existing file is never overwritten")
}

func TestLedger_AppendPartialFailure(t *testing.T) {
	f := newFixture(t, 8)
	ctx := context.Background()

	lying := upload("big.png", "0123456789abcdef")
	lying.Size = 1

	rec, err := f.ledger.Append(ctx, f.record.ID, []Upload{
		upload("virus.exe", "x"),
		upload("photo.jpg", "jpeg"),
		upload("huge.pdf", "0123456789"),
		lying,
	})
	partial, ok := apperr.AsPartial(err)
	require.True(t, ok)
	require.Len(t, partial.Rejected, 3)
	assert.Equal(t, "virus.exe", partial.Rejected[0].Name)
	assert.Equal(t, "huge.pdf", partial.Rejected[1].Name)
	assert.Equal(t, "big.png", partial.Rejected[2].Name)

	assert.Equal(t, []string{"photo.jpg"}, rec.AttachmentList())
	assert.True(t, f.exists(t, "photo.jpg"))
	assert.False(t, f.exists(t, "big.png"))

	stored, err := f.store.Get(ctx, f.record.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"photo.jpg"}, stored.AttachmentList())
}

func TestLedger_AppendMissingRecord(t *testing.T) {
	f := newFixture(t, 1024)

	_, err := f.ledger.Append(context.Background(), 999, []Upload{upload("a.pdf", "x")})
	assert.True(t, apperr.IsNotFound(err))
	assert.False(t, f.exists(t, "a.pdf"))
}

type failingStore struct {
	store.Store
}

func (failingStore) UpdateAttachments(context.Context, int64, store.AttachmentMutator) (model.Record, error) {
	return model.Record{}, apperr.Storage("update attachments", errors.New("database is locked"))
}

func TestLedger_AppendRollsBackFiles(t *testing.T) {
	f := newFixture(t, 1024)
	l := New(failingStore{f.store}, f.disk, files.NewPolicy([]string{"pdf"}, 1024), lg.Discard())

	_, err := l.Append(context.Background(), f.record.ID, []Upload{upload("a.pdf", "x"), upload("b.pdf", "y")})
	assert.True(t, apperr.IsStorage(err))
	assert.False(t, f.exists(t, "a.pdf"))
	assert.False(t, f.exists(t, "b.pdf"))
}

func TestLedger_Remove(t *testing.T) {
	f := newFixture(t, 1024)
	ctx := context.Background()

	_, err := f.ledger.Append(ctx, f.record.ID, []Upload{upload("a.pdf", "x"), upload("b.jpg", "y")})
	require.NoError(t, err)
	require.NoError(t, f.disk.Save("unrelated.pdf", strings.NewReader("z")))

	rec, err := f.ledger.Remove(ctx, f.record.ID, "a.pdf")
	require.NoError(t, err)
	assert.Equal(t, []string{"b.jpg"}, rec.AttachmentList())
	assert.False(t, f.exists(t, "a.pdf"))

	rec, err = f.ledger.Remove(ctx, f.record.ID, "a.pdf")
	require.NoError(t, err)
	assert.Equal(t, []string{"b.jpg"}, rec.AttachmentList())

	_, err = f.ledger.Remove(ctx, f.record.ID, "unrelated.pdf")
	require.NoError(t, err)
	assert.True(t, f.exists(t, "unrelated.pdf"), "files not listed on the record are left alone")

	rec, err = f.ledger.Remove(ctx, f.record.ID, "b.jpg")
	require.NoError(t, err)
	assert.Nil(t, rec.Attachments)

	_, err = f.ledger.Remove(ctx, 999, "b.jpg")
	assert.True(t, apperr.IsNotFound(err))
}

func TestLedger_ReconcileAndPurge(t *testing.T) {
	f := newFixture(t, 1024)
	ctx := context.Background()

	rec, err := f.ledger.Append(ctx, f.record.ID, []Upload{upload("a.pdf", "x"), upload("b.jpg", "y")})
	require.NoError(t, err)
	require.NoError(t, f.disk.Delete("a.pdf"))

	assert.Equal(t, []string{"b.jpg"}, f.ledger.Reconcile(rec))
	assert.Equal(t, []string{"a.pdf", "b.jpg"}, rec.AttachmentList(), "reconcile does not rewrite the ledger")

	require.NoError(t, f.ledger.Purge(rec))
	assert.False(t, f.exists(t, "b.jpg"))
	assert.Empty(t, f.ledger.Reconcile(rec))
}
