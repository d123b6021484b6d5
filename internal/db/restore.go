package db

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-sqlite3"
	"gorm.io/gorm"

	"vehicle-inspection-backend/internal/model"
)

// ErrInvalidSnapshot is returned when a restore source is not a usable
// records database.
var ErrInvalidSnapshot = errors.New("db: not a valid records database")

const sqliteHeader = "SQLite format 3\x00"

// ValidateSnapshot checks that path is a sqlite file that passes an
// integrity check and carries the records table.
func ValidateSnapshot(ctx context.Context, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open snapshot: %w", err)
	}
	header := make([]byte, len(sqliteHeader))
	_, err = io.ReadFull(f, header)
	f.Close()
	if err != nil || !bytes.Equal(header, []byte(sqliteHeader)) {
		return fmt.Errorf("%w: missing sqlite header", ErrInvalidSnapshot)
	}

	src, err := openReadOnly(path)
	if err != nil {
		return err
	}
	defer src.Close()

	var check string
	if err := src.QueryRowContext(ctx, "PRAGMA integrity_check").Scan(&check); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSnapshot, err)
	}
	if check != "ok" {
		return fmt.Errorf("%w: integrity check: %s", ErrInvalidSnapshot, check)
	}

	var tables int
	err = src.QueryRowContext(ctx, "SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?", model.Record{}.TableName()).Scan(&tables)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSnapshot, err)
	}
	if tables == 0 {
		return fmt.Errorf("%w: no records table", ErrInvalidSnapshot)
	}
	return nil
}

// RestoreFrom replaces the contents of the live sqlite database with the
// database at srcPath. The current contents are first written to keepPath.
// Pages are copied with the sqlite online backup API so open connections
// stay valid.
func RestoreFrom(ctx context.Context, db *gorm.DB, srcPath, keepPath string) error {
	if db.Dialector.Name() != "sqlite" {
		return ErrSnapshotUnsupported
	}
	if err := ValidateSnapshot(ctx, srcPath); err != nil {
		return err
	}
	if err := SnapshotTo(ctx, db, keepPath); err != nil {
		return fmt.Errorf("keep current database: %w", err)
	}

	src, err := openReadOnly(srcPath)
	if err != nil {
		return err
	}
	defer src.Close()
	srcConn, err := src.Conn(ctx)
	if err != nil {
		return fmt.Errorf("connect restore source: %w", err)
	}
	defer srcConn.Close()

	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	dstConn, err := sqlDB.Conn(ctx)
	if err != nil {
		return fmt.Errorf("connect live database: %w", err)
	}
	defer dstConn.Close()

	err = dstConn.Raw(func(d any) error {
		dst, ok := d.(*sqlite3.SQLiteConn)
		if !ok {
			return fmt.Errorf("unexpected driver connection %T", d)
		}
		return srcConn.Raw(func(s any) error {
			from, ok := s.(*sqlite3.SQLiteConn)
			if !ok {
				return fmt.Errorf("unexpected driver connection %T", s)
			}
			return copyPages(dst, from)
		})
	})
	if err != nil {
		return fmt.Errorf("restore database: %w", err)
	}
	dstConn.Close()

	return Migrate(db)
}

func copyPages(dst, src *sqlite3.SQLiteConn) error {
	bk, err := dst.Backup("main", src, "main")
	if err != nil {
		return err
	}
	if _, err := bk.Step(-1); err != nil {
		_ = bk.Finish()
		return err
	}
	return bk.Finish()
}

func openReadOnly(path string) (*sql.DB, error) {
	registerDriver()
	src, err := sql.Open(SQLiteDriverName, "file:"+path+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("open snapshot: %w", err)
	}
	return src, nil
}
