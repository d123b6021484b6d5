package db

import (
	"database/sql"
	"strings"
	"sync"

	"github.com/mattn/go-sqlite3"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// SQLiteDriverName is the database/sql driver used for sqlite connections.
// It is go-sqlite3 with a Unicode lower() in place of the ASCII-only builtin.
const SQLiteDriverName = "sqlite3_unicode"

var registerSQLite sync.Once

// SQLite returns a gorm dialector for dsn on the Unicode-aware driver.
func SQLite(dsn string) gorm.Dialector {
	registerDriver()
	return sqlite.New(sqlite.Config{DriverName: SQLiteDriverName, DSN: dsn})
}

func registerDriver() {
	registerSQLite.Do(func() {
		sql.Register(SQLiteDriverName, &sqlite3.SQLiteDriver{
			ConnectHook: func(conn *sqlite3.SQLiteConn) error {
				return conn.RegisterFunc("lower", lowerUnicode, true)
			},
		})
	})
}

// lowerUnicode folds TEXT and BLOB values; other values pass through
// unchanged, NULL included.
func lowerUnicode(v any) any {
	switch s := v.(type) {
	case string:
		return strings.ToLower(s)
	case []byte:
		if s == nil {
			return nil
		}
		return strings.ToLower(string(s))
	default:
		return v
	}
}
