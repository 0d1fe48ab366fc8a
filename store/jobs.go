package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/maastricht-university/session-analysis/orchestrator"
)

const (
	StatusQueued  = "queued"
	StatusRunning = "running"
	StatusDone    = "done"
	StatusFailed  = "failed"
)

// Job is the stored view of one analysis job.
type Job struct {
	ID           string          `json:"id"`
	Source       string          `json:"source"`
	Target       string          `json:"target"`
	Stage        string          `json:"stage"`
	Status       string          `json:"status"`
	FailedStage  string          `json:"failed_stage,omitempty"`
	Error        string          `json:"error,omitempty"`
	OverallScore *float64        `json:"overall_score,omitempty"`
	Result       json.RawMessage `json:"result,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// Jobs is the job table. It implements orchestrator.Recorder.
type Jobs struct {
	db  *DB
	now func() time.Time
}

var _ orchestrator.Recorder = (*Jobs)(nil)

func NewJobs(db *DB) *Jobs {
	return &Jobs{db: db, now: time.Now}
}

func (r *Jobs) stamp() int64 { return r.now().UnixMilli() }

// Create records a queued job. Creating an existing job is a no-op.
func (r *Jobs) Create(ctx context.Context, job *orchestrator.MediaJob) error {
	now := r.stamp()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO jobs (id, source, target, stage, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING`,
		job.ID, job.Source.String(), job.Target, string(orchestrator.StageQueued), StatusQueued, now, now)
	if err != nil {
		return fmt.Errorf("create job %s: %w", job.ID, err)
	}
	return nil
}

// Started marks job running, creating it when it was never queued.
func (r *Jobs) Started(ctx context.Context, job *orchestrator.MediaJob) error {
	now := r.stamp()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO jobs (id, source, target, stage, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET status = excluded.status, updated_at = excluded.updated_at`,
		job.ID, job.Source.String(), job.Target, string(job.Stage), StatusRunning, now, now)
	if err != nil {
		return fmt.Errorf("start job %s: %w", job.ID, err)
	}
	return nil
}

func (r *Jobs) StageChanged(ctx context.Context, id string, stage orchestrator.Stage) error {
	return r.update(ctx, id, `UPDATE jobs SET stage = ?, updated_at = ? WHERE id = ?`,
		string(stage), r.stamp(), id)
}

func (r *Jobs) Completed(ctx context.Context, id string, res *orchestrator.Result) error {
	b, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("encode result %s: %w", id, err)
	}
	return r.update(ctx, id, `
		UPDATE jobs SET stage = ?, status = ?, overall_score = ?, result = ?, error = '', updated_at = ?
		WHERE id = ?`,
		string(orchestrator.StageDone), StatusDone, res.SessionAnalysis.OverallScore, string(b), r.stamp(), id)
}

func (r *Jobs) Failed(ctx context.Context, id string, stage orchestrator.Stage, cause error) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	return r.update(ctx, id, `
		UPDATE jobs SET stage = ?, status = ?, failed_stage = ?, error = ?, updated_at = ?
		WHERE id = ?`,
		string(orchestrator.StageFailed), StatusFailed, string(stage), msg, r.stamp(), id)
}

func (r *Jobs) update(ctx context.Context, id, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update job %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("update job %s: %w", id, sql.ErrNoRows)
	}
	return nil
}

const selectJob = `SELECT id, source, target, stage, status, failed_stage, error, overall_score, result, created_at, updated_at FROM jobs`

// Get returns the job with id, or nil when there is none.
func (r *Jobs) Get(ctx context.Context, id string) (*Job, error) {
	row := r.db.QueryRowContext(ctx, selectJob+` WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return job, nil
}

// List returns the most recent jobs first, without their results.
func (r *Jobs) List(ctx context.Context, limit int) ([]Job, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, selectJob+` ORDER BY created_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	jobs := []Job{}
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		job.Result = nil
		jobs = append(jobs, *job)
	}
	return jobs, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanJob(s scanner) (*Job, error) {
	var (
		j                Job
		score            sql.NullFloat64
		result           sql.NullString
		created, updated int64
	)
	if err := s.Scan(&j.ID, &j.Source, &j.Target, &j.Stage, &j.Status, &j.FailedStage, &j.Error,
		&score, &result, &created, &updated); err != nil {
		return nil, err
	}
	if score.Valid {
		v := score.Float64
		j.OverallScore = &v
	}
	if result.Valid && result.String != "" {
		j.Result = json.RawMessage(result.String)
	}
	j.CreatedAt = time.UnixMilli(created).UTC()
	j.UpdatedAt = time.UnixMilli(updated).UTC()
	return &j, nil
}
