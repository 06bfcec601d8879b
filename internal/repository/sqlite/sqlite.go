package sqlite

import (
	"log/slog"
	"time"

	"github.com/garnizeh/simplymeet/internal/db"
	"github.com/garnizeh/simplymeet/pkg/repository"
)

// SQLiteRepo implements repository interfaces using the internal DB wrapper.
type SQLiteRepo struct {
	conn   *db.DB
	logger *slog.Logger
}

// Ensure SQLiteRepo implements the public interfaces.
var _ repository.IdentityRepo = (*SQLiteRepo)(nil)
var _ repository.ThemeRepo = (*SQLiteRepo)(nil)
var _ repository.PreferencesRepo = (*SQLiteRepo)(nil)

func New(conn *db.DB, logger *slog.Logger) *SQLiteRepo {
	if logger == nil {
		logger = slog.Default()
	}
	return &SQLiteRepo{conn: conn, logger: logger}
}

func now() int64 {
	return time.Now().UTC().Unix()
}
