/**
 * PostgreSQL client for the extraction worker.
 *
 * Persists job lifecycle state and finished extraction results. The worker
 * upserts the job row so it still works if the enqueuing API never created
 * one.
 */

package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/lipiscan/extract-worker/internal/processor"
)

// Job lifecycle states as stored in extraction_jobs.status.
const (
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// PostgresClient handles database operations.
type PostgresClient struct {
	db *sql.DB
}

// JobUpdate represents a job status update.
type JobUpdate struct {
	JobID            string
	Status           string
	Confidence       float64
	ProcessingTimeMs int64
	ErrorCode        string
	ErrorMessage     string
	LanguageUsed     string
	TotalPages       int
}

// NewPostgresClient creates a new PostgreSQL client.
func NewPostgresClient(databaseURL string) (*PostgresClient, error) {
	if databaseURL == "" {
		return nil, fmt.Errorf("database URL is required")
	}

	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(2 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresClient{db: db}, nil
}

// UpdateJobStatus upserts the job row with the given lifecycle state.
// Confidence is stored with one decimal; zero means "not yet known" and
// never overwrites a previously stored value.
func (p *PostgresClient) UpdateJobStatus(ctx context.Context, update *JobUpdate) error {
	if update.JobID == "" {
		return fmt.Errorf("job ID is required")
	}
	if update.Status == "" {
		return fmt.Errorf("status is required")
	}

	query := `
		INSERT INTO extraction_jobs (
			id, status, confidence, processing_time_ms,
			error_code, error_message, language_used, total_pages,
			created_at, updated_at
		) VALUES (
			$1::uuid, $2, NULLIF($3::NUMERIC(4,1), 0), NULLIF($4, 0),
			NULLIF($5, ''), NULLIF($6, ''), NULLIF($7, ''), NULLIF($8, 0),
			NOW(), NOW()
		)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			confidence = COALESCE(EXCLUDED.confidence, extraction_jobs.confidence),
			processing_time_ms = COALESCE(EXCLUDED.processing_time_ms, extraction_jobs.processing_time_ms),
			error_code = NULLIF(EXCLUDED.error_code, ''),
			error_message = NULLIF(EXCLUDED.error_message, ''),
			language_used = COALESCE(EXCLUDED.language_used, extraction_jobs.language_used),
			total_pages = COALESCE(EXCLUDED.total_pages, extraction_jobs.total_pages),
			updated_at = NOW()
		RETURNING id
	`

	var returnedID string
	err := p.db.QueryRowContext(
		ctx,
		query,
		update.JobID,
		update.Status,
		update.Confidence,
		update.ProcessingTimeMs,
		update.ErrorCode,
		update.ErrorMessage,
		update.LanguageUsed,
		update.TotalPages,
	).Scan(&returnedID)

	if err != nil {
		return fmt.Errorf("failed to update job status (job=%s, status=%s): %w",
			update.JobID, update.Status, err)
	}

	return nil
}

// SaveResult stores the finished extraction result as JSONB alongside the
// job. Replaces any previous result for the same job.
func (p *PostgresClient) SaveResult(ctx context.Context, jobID string, result *processor.DocumentResult) error {
	if jobID == "" {
		return fmt.Errorf("job ID is required")
	}

	resultJSON, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}

	query := `
		INSERT INTO extraction_results (job_id, result, created_at)
		VALUES ($1::uuid, $2::jsonb, NOW())
		ON CONFLICT (job_id) DO UPDATE SET
			result = EXCLUDED.result,
			created_at = NOW()
	`

	if _, err := p.db.ExecContext(ctx, query, jobID, resultJSON); err != nil {
		return fmt.Errorf("failed to save result for job %s: %w", jobID, err)
	}

	return nil
}

// GetResult retrieves the stored extraction result for a job.
func (p *PostgresClient) GetResult(ctx context.Context, jobID string) (*processor.DocumentResult, error) {
	if jobID == "" {
		return nil, fmt.Errorf("job ID is required")
	}

	var resultJSON []byte
	err := p.db.QueryRowContext(ctx,
		`SELECT result FROM extraction_results WHERE job_id = $1::uuid`,
		jobID,
	).Scan(&resultJSON)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("result not found for job: %s", jobID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get result: %w", err)
	}

	var result processor.DocumentResult
	if err := json.Unmarshal(resultJSON, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal result: %w", err)
	}
	return &result, nil
}

// Ping checks database connectivity.
func (p *PostgresClient) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

// Close closes the database connection.
func (p *PostgresClient) Close() error {
	if p.db != nil {
		return p.db.Close()
	}
	return nil
}
