package jobs

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/garnizeh/simplymeet/internal/db"
)

const jobColumns = `id, key, type, payload, status, attempts, max_attempts, priority, scheduled_at, next_try_at, last_error, created, updated`

type Repository struct {
	db  *db.DB
	now func() time.Time
}

func NewRepository(d *db.DB) *Repository { return &Repository{db: d, now: time.Now} }

// Enqueue inserts a job into the jobs table and returns the new ID. A zero
// ScheduledAt means "as soon as possible".
func (r *Repository) Enqueue(ctx context.Context, j *Job) (int64, error) {
	if j.MaxAttempts == 0 {
		j.MaxAttempts = 5
	}
	if j.ScheduledAt.IsZero() {
		j.ScheduledAt = r.now()
	}
	var key any
	if j.Key != "" {
		key = j.Key
	}
	now := r.now().UTC().Unix()
	q := `INSERT INTO jobs(key, type, payload, status, attempts, max_attempts, priority, scheduled_at, created, updated) VALUES(?,?,?,?,?,?,?,?,?,?)`
	res, err := r.db.Exec(ctx, q, key, j.Type, string(j.Payload), StatusQueued, j.Attempts, j.MaxAttempts, j.Priority, j.ScheduledAt.UTC().Unix(), now, now)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return 0, fmt.Errorf("enqueue %q: %w", j.Key, ErrDuplicateKey)
		}
		return 0, fmt.Errorf("enqueue failed: %w", err)
	}
	j.Status = StatusQueued
	return res.LastInsertId()
}

// FetchNext claims the next due job, marking it running, and returns it. It
// returns nil when nothing is due.
func (r *Repository) FetchNext(ctx context.Context) (*Job, error) {
	now := r.now().UTC().Unix()
	q := `UPDATE jobs SET status = 'running', updated = ?
		WHERE id = (
			SELECT id FROM jobs
			WHERE (status = 'queued' OR status = 'retry')
			  AND (next_try_at IS NULL OR next_try_at <= ?)
			  AND scheduled_at <= ?
			ORDER BY priority ASC, scheduled_at ASC, id ASC
			LIMIT 1)
		RETURNING ` + jobColumns
	j, err := scanJob(r.db.QueryRow(ctx, q, now, now, now))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetch next job: %w", err)
	}
	return j, nil
}

// Get returns the job with the given key.
func (r *Repository) Get(ctx context.Context, key string) (*Job, error) {
	j, err := scanJob(r.db.QueryRow(ctx, `SELECT `+jobColumns+` FROM jobs WHERE key = ?`, key))
	if err != nil {
		return nil, err
	}
	return j, nil
}

// ListPending returns queued and retrying jobs of type typ ordered by
// schedule.
func (r *Repository) ListPending(ctx context.Context, typ string) ([]*Job, error) {
	rows, err := r.db.QueryRows(ctx, `SELECT `+jobColumns+` FROM jobs WHERE type = ? AND status IN ('queued','retry') ORDER BY scheduled_at ASC, id ASC`, typ)
	if err != nil {
		return nil, fmt.Errorf("list pending jobs: %w", err)
	}
	defer rows.Close()

	var out []*Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

// Cancel marks a pending job as canceled. It reports whether a pending job
// with that key existed.
func (r *Repository) Cancel(ctx context.Context, key string) (bool, error) {
	res, err := r.db.Exec(ctx, `UPDATE jobs SET status = ?, updated = ? WHERE key = ? AND status IN ('queued','retry')`, StatusCanceled, r.now().UTC().Unix(), key)
	if err != nil {
		return false, fmt.Errorf("cancel job %q: %w", key, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// UpdateJob updates attempts, status, next_try_at, last_error
func (r *Repository) UpdateJob(ctx context.Context, j *Job) error {
	var nextTry any
	if j.NextTryAt != nil {
		nextTry = j.NextTryAt.UTC().Unix()
	}
	q := `UPDATE jobs SET status = ?, attempts = ?, next_try_at = ?, last_error = ?, updated = ? WHERE id = ?`
	_, err := r.db.Exec(ctx, q, j.Status, j.Attempts, nextTry, j.LastError, r.now().UTC().Unix(), j.ID)
	return err
}

// MoveToDeadLetter moves a job to dead_letter_jobs and deletes the original
func (r *Repository) MoveToDeadLetter(ctx context.Context, j *Job) error {
	tx, err := r.db.GetConn().BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	var key any
	if j.Key != "" {
		key = j.Key
	}
	insert := `INSERT INTO dead_letter_jobs(job_id, key, type, payload, attempts, last_error, failed_at) VALUES(?,?,?,?,?,?,?)`
	if _, err := tx.ExecContext(ctx, insert, j.ID, key, j.Type, string(j.Payload), j.Attempts, j.LastError, r.now().UTC().Unix()); err != nil {
		_ = tx.Rollback()
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM jobs WHERE id = ?`, j.ID); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// DeadLetterCount returns the number of dead-lettered jobs of type typ.
func (r *Repository) DeadLetterCount(ctx context.Context, typ string) (int, error) {
	var n int
	err := r.db.QueryRow(ctx, `SELECT COUNT(1) FROM dead_letter_jobs WHERE type = ?`, typ).Scan(&n)
	return n, err
}

// PurgeFinished deletes done and canceled jobs last updated before cutoff.
func (r *Repository) PurgeFinished(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.Exec(ctx, `DELETE FROM jobs WHERE status IN ('done','canceled') AND updated < ?`, cutoff.UTC().Unix())
	if err != nil {
		return 0, fmt.Errorf("purge jobs: %w", err)
	}
	return res.RowsAffected()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanJob(s scanner) (*Job, error) {
	var (
		j           Job
		key         sql.NullString
		payload     sql.NullString
		scheduledAt int64
		nextTry     sql.NullInt64
		lastError   sql.NullString
		created     int64
		updated     int64
	)
	if err := s.Scan(&j.ID, &key, &j.Type, &payload, &j.Status, &j.Attempts, &j.MaxAttempts, &j.Priority, &scheduledAt, &nextTry, &lastError, &created, &updated); err != nil {
		return nil, err
	}
	j.Key = key.String
	if payload.Valid {
		j.Payload = json.RawMessage(payload.String)
	}
	j.ScheduledAt = time.Unix(scheduledAt, 0)
	if nextTry.Valid {
		t := time.Unix(nextTry.Int64, 0)
		j.NextTryAt = &t
	}
	j.LastError = lastError.String
	j.Created = time.Unix(created, 0)
	j.Updated = time.Unix(updated, 0)
	return &j, nil
}
