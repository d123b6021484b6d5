package db

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gorm.io/gorm"
)

// ErrSnapshotUnsupported is returned when the active driver cannot produce a
// file snapshot.
var ErrSnapshotUnsupported = errors.New("db: snapshot is only supported for on-disk sqlite")

// SnapshotTo writes a consistent copy of the sqlite database to dstPath.
// The copy is produced next to dstPath and renamed into place on success.
func SnapshotTo(ctx context.Context, db *gorm.DB, dstPath string) error {
	if db.Dialector.Name() != "sqlite" {
		return ErrSnapshotUnsupported
	}
	if err := os.MkdirAll(filepath.Dir(dstPath), 0o755); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}

	tmp := dstPath + ".tmp"
	_ = os.Remove(tmp)
	if err := db.WithContext(ctx).Exec("VACUUM INTO ?", tmp).Error; err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("vacuum into snapshot: %w", err)
	}
	if err := os.Rename(tmp, dstPath); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("publish snapshot: %w", err)
	}
	return nil
}
