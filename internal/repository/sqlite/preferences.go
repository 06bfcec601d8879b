package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/garnizeh/simplymeet/pkg/models"
)

// Preference keys.
const (
	KeySelectedEmployee = "simplymeet.selected_employee"
	KeyTheme            = "simplymeet.theme"
)

func (r *SQLiteRepo) getPreference(ctx context.Context, key string) (string, bool, error) {
	var v string
	err := r.conn.QueryRow(ctx, `SELECT value FROM preferences WHERE key = ?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("read preference %s: %w", key, err)
	}
	return v, true, nil
}

func (r *SQLiteRepo) setPreference(ctx context.Context, key, value string) error {
	_, err := r.conn.Exec(ctx, `INSERT INTO preferences (key, value, updated) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated = excluded.updated`, key, value, now())
	if err != nil {
		return fmt.Errorf("write preference %s: %w", key, err)
	}
	return nil
}

func (r *SQLiteRepo) deletePreference(ctx context.Context, key string) error {
	_, err := r.conn.Exec(ctx, `DELETE FROM preferences WHERE key = ?`, key)
	return err
}

// SelectedEmployee returns the persisted identity, or nil when none is
// stored. A corrupt value is discarded and reported as no identity.
func (r *SQLiteRepo) SelectedEmployee(ctx context.Context) (*models.Employee, error) {
	v, ok, err := r.getPreference(ctx, KeySelectedEmployee)
	if err != nil || !ok {
		return nil, err
	}

	var e models.Employee
	if err := json.Unmarshal([]byte(v), &e); err != nil {
		r.logger.Warn("discarding unreadable selected employee", "err", err)
		if delErr := r.deletePreference(ctx, KeySelectedEmployee); delErr != nil {
			return nil, delErr
		}
		return nil, nil
	}
	return &e, nil
}

func (r *SQLiteRepo) SaveSelectedEmployee(ctx context.Context, e *models.Employee) error {
	if e == nil {
		return fmt.Errorf("employee is nil")
	}
	b, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return r.setPreference(ctx, KeySelectedEmployee, string(b))
}

func (r *SQLiteRepo) ClearSelectedEmployee(ctx context.Context) error {
	return r.deletePreference(ctx, KeySelectedEmployee)
}

// Theme returns the stored theme, defaulting to system.
func (r *SQLiteRepo) Theme(ctx context.Context) (models.Theme, error) {
	v, ok, err := r.getPreference(ctx, KeyTheme)
	if err != nil {
		return "", err
	}
	t := models.Theme(v)
	if !ok || !t.Valid() {
		return models.ThemeSystem, nil
	}
	return t, nil
}

func (r *SQLiteRepo) SetTheme(ctx context.Context, t models.Theme) error {
	if !t.Valid() {
		return fmt.Errorf("invalid theme %q", t)
	}
	return r.setPreference(ctx, KeyTheme, string(t))
}
