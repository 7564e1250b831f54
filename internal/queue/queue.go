package queue

import (
	"context"
	"errors"
	"time"
)

// Job status constants
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
	StatusCancelled  = "cancelled"
)

var (
	// ErrNoJobs is returned when no jobs are available
	ErrNoJobs = errors.New("no jobs available")
	// ErrJobNotFound is returned when a job is not found
	ErrJobNotFound = errors.New("job not found")
)

// DocumentJob represents one document discovered in a hotfolder, queued
// for the pipeline engine to run to completion.
type DocumentJob struct {
	ID          string            `json:"id"`
	HotfolderID string            `json:"hotfolder_id"`
	PDFPath     string            `json:"pdf_path"`
	XMLPath     string            `json:"xml_path,omitempty"`
	Status      string            `json:"status"`
	Priority    int               `json:"priority"`
	CreatedAt   time.Time         `json:"created_at"`
	StartedAt   *time.Time        `json:"started_at,omitempty"`
	CompletedAt *time.Time        `json:"completed_at,omitempty"`
	Duration    time.Duration     `json:"duration,omitempty"`
	Error       string            `json:"error,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// Queue interface for document job queue operations
type Queue interface {
	// Enqueue adds a job to the queue
	Enqueue(ctx context.Context, job *DocumentJob) error

	// Dequeue retrieves and removes the next job from the queue
	Dequeue(ctx context.Context) (*DocumentJob, error)

	// GetJob retrieves a job by ID without removing it
	GetJob(ctx context.Context, id string) (*DocumentJob, error)

	// UpdateJob updates an existing job
	UpdateJob(job *DocumentJob) error

	// CancelJob cancels a pending job
	CancelJob(ctx context.Context, id string) error

	// ListJobs lists all jobs with optional filtering
	ListJobs(ctx context.Context, status string, limit int) ([]*DocumentJob, error)

	// Size returns the number of pending jobs
	Size() (int, error)

	// Clear removes all jobs from the queue
	Clear() error
}