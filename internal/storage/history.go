package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/spherical/ghostview/internal/domain"
)

// HistoryEntry is one persisted job result.
type HistoryEntry struct {
	ID           uuid.UUID        `json:"id"`
	JobID        string           `json:"job_id"`
	Task         domain.Task      `json:"task"`
	Status       domain.Status    `json:"status"`
	ErrorType    domain.ErrorType `json:"error_type,omitempty"`
	ErrorMessage string           `json:"error_message,omitempty"`
	ReturnCode   int              `json:"return_code"`
	InputFile    string           `json:"input_file"`
	OutputFile   string           `json:"output_file,omitempty"`
	NumPages     int              `json:"num_pages,omitempty"`
	Duration     time.Duration    `json:"duration"`
	FinishedAt   time.Time        `json:"finished_at"`
}

// HistoryRepository handles job history rows. It implements domain.Recorder.
type HistoryRepository struct {
	db DB
}

// NewHistoryRepository creates a new history repository.
func NewHistoryRepository(db DB) *HistoryRepository {
	return &HistoryRepository{db: db}
}

// Record stores a finished job.
func (r *HistoryRepository) Record(ctx context.Context, result domain.Result) error {
	entry := HistoryEntry{
		ID:         uuid.New(),
		JobID:      result.JobID,
		Task:       result.Task,
		Status:     result.Status,
		ErrorType:  result.ErrorType,
		ReturnCode: result.ReturnCode,
		InputFile:  result.InputFile,
		OutputFile: result.OutputFile,
		NumPages:   result.NumPages,
		Duration:   result.Duration,
		FinishedAt: result.FinishedAt,
	}
	if result.Err != nil {
		entry.ErrorMessage = result.Err.Error()
	}
	if entry.FinishedAt.IsZero() {
		entry.FinishedAt = time.Now()
	}
	return r.Create(ctx, &entry)
}

// Create inserts entry.
func (r *HistoryRepository) Create(ctx context.Context, entry *HistoryEntry) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}

	query := `
		INSERT INTO job_history (id, job_id, task, status, error_type, error_message,
			return_code, input_file, output_file, num_pages, duration_ms, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err := r.db.ExecContext(ctx, query,
		entry.ID.String(), entry.JobID, string(entry.Task), string(entry.Status),
		string(entry.ErrorType), entry.ErrorMessage, entry.ReturnCode,
		entry.InputFile, entry.OutputFile, entry.NumPages,
		ms(entry.Duration), entry.FinishedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert job history: %w", err)
	}
	return nil
}

// GetByJobID retrieves the entry recorded for a job.
func (r *HistoryRepository) GetByJobID(ctx context.Context, jobID string) (*HistoryEntry, error) {
	query := `
		SELECT id, job_id, task, status, error_type, error_message,
			return_code, input_file, output_file, num_pages, duration_ms, finished_at
		FROM job_history WHERE job_id = $1
	`
	entry, err := scanEntry(r.db.QueryRowContext(ctx, query, jobID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return entry, err
}

// List returns the most recent entries, newest first.
func (r *HistoryRepository) List(ctx context.Context, limit int) ([]HistoryEntry, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, job_id, task, status, error_type, error_message,
			return_code, input_file, output_file, num_pages, duration_ms, finished_at
		FROM job_history
		ORDER BY finished_at DESC
		LIMIT $1
	`
	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list job history: %w", err)
	}
	defer rows.Close()

	var entries []HistoryEntry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *entry)
	}
	return entries, rows.Err()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanEntry(s scanner) (*HistoryEntry, error) {
	var (
		entry      HistoryEntry
		id         string
		task       string
		status     string
		errorType  string
		durationMs int64
	)
	err := s.Scan(
		&id, &entry.JobID, &task, &status, &errorType, &entry.ErrorMessage,
		&entry.ReturnCode, &entry.InputFile, &entry.OutputFile, &entry.NumPages,
		&durationMs, &entry.FinishedAt,
	)
	if err != nil {
		return nil, err
	}

	entry.ID, err = uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("parse history id %q: %w", id, err)
	}
	entry.Task = domain.Task(task)
	entry.Status = domain.Status(status)
	entry.ErrorType = domain.ErrorType(errorType)
	entry.Duration = time.Duration(durationMs) * time.Millisecond
	return &entry, nil
}
