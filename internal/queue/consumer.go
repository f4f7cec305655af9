/**
 * Queue consumer for the extraction worker.
 *
 * Consumes extraction jobs from Redis via Asynq, drives the document
 * processor, and records the job lifecycle. Jobs that fail for reasons a
 * retry cannot fix (unsupported file type, unopenable document) are not
 * retried.
 */

package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/lipiscan/extract-worker/internal/apperrors"
	"github.com/lipiscan/extract-worker/internal/logging"
	"github.com/lipiscan/extract-worker/internal/processor"
	"github.com/lipiscan/extract-worker/internal/storage"
)

// TaskTypeExtract is the Asynq task type for document extraction jobs.
const TaskTypeExtract = "document:extract"

// DocumentProcessor runs a whole extraction job.
type DocumentProcessor interface {
	Process(ctx context.Context, job *processor.Job) (*processor.DocumentResult, error)
}

// JobStore records job lifecycle state and finished results.
type JobStore interface {
	UpdateJobStatus(ctx context.Context, update *storage.JobUpdate) error
	SaveResult(ctx context.Context, jobID string, result *processor.DocumentResult) error
}

// ResultCache caches finished results for status polling.
type ResultCache interface {
	CacheResult(ctx context.Context, jobID string, result *processor.DocumentResult) error
}

// Consumer handles job consumption from the Redis queue.
type Consumer struct {
	client *asynq.Client
	server *asynq.Server
	mux    *asynq.ServeMux
	log    *logging.Logger

	processor DocumentProcessor
	store     JobStore
	cache     ResultCache
	timeout   time.Duration
}

// ConsumerConfig holds consumer configuration.
type ConsumerConfig struct {
	RedisURL          string
	QueueName         string
	Concurrency       int
	ProcessingTimeout time.Duration
	Processor         DocumentProcessor
	Store             JobStore
	Cache             ResultCache // optional
}

// NewConsumer creates a new queue consumer.
func NewConsumer(cfg *ConsumerConfig) (*Consumer, error) {
	if cfg.RedisURL == "" {
		return nil, fmt.Errorf("RedisURL is required")
	}
	if cfg.QueueName == "" {
		return nil, fmt.Errorf("QueueName is required")
	}
	if cfg.Processor == nil {
		return nil, fmt.Errorf("Processor is required")
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("Store is required")
	}

	redisOpt, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	log := logging.NewLogger("queue")

	client := asynq.NewClient(redisOpt)
	server := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: cfg.Concurrency,
			Queues: map[string]int{
				cfg.QueueName: 10,
				"default":     1,
			},
			RetryDelayFunc: func(n int, err error, task *asynq.Task) time.Duration {
				// Exponential backoff capped at one minute.
				delay := time.Duration(5*(1<<uint(n))) * time.Second
				if delay > 60*time.Second {
					delay = 60 * time.Second
				}
				return delay
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				log.Error("task failed", "type", task.Type(), "error", err)
			}),
		},
	)

	consumer := &Consumer{
		client:    client,
		server:    server,
		mux:       asynq.NewServeMux(),
		log:       log,
		processor: cfg.Processor,
		store:     cfg.Store,
		cache:     cfg.Cache,
		timeout:   cfg.ProcessingTimeout,
	}
	consumer.mux.HandleFunc(TaskTypeExtract, consumer.handleExtract)

	return consumer, nil
}

// Enqueue submits an extraction job to the queue.
func (c *Consumer) Enqueue(ctx context.Context, queueName string, job *processor.Job) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}

	task := asynq.NewTask(TaskTypeExtract, payload)
	if _, err := c.client.EnqueueContext(ctx, task, asynq.Queue(queueName)); err != nil {
		return fmt.Errorf("failed to enqueue job %s: %w", job.JobID, err)
	}
	return nil
}

// Start runs the consumer. Blocks until Shutdown is called.
func (c *Consumer) Start() error {
	c.log.Info("consumer starting", "timeout", c.timeout)
	return c.server.Run(c.mux)
}

// Shutdown stops the consumer gracefully, waiting for in-flight jobs.
func (c *Consumer) Shutdown() {
	c.log.Info("consumer stopping")
	c.server.Shutdown()
	if err := c.client.Close(); err != nil {
		c.log.Error("failed to close queue client", "error", err)
	}
}

// handleExtract is the task handler for a single extraction job.
func (c *Consumer) handleExtract(ctx context.Context, task *asynq.Task) error {
	start := time.Now()

	var job processor.Job
	if err := json.Unmarshal(task.Payload(), &job); err != nil {
		return fmt.Errorf("failed to unmarshal job payload: %v: %w", err, asynq.SkipRetry)
	}
	if job.JobID == "" {
		return fmt.Errorf("job payload has no job ID: %w", asynq.SkipRetry)
	}

	c.log.Info("job received", "job", job.JobID, "files", len(job.Files))

	if err := c.store.UpdateJobStatus(ctx, &storage.JobUpdate{
		JobID:  job.JobID,
		Status: storage.StatusProcessing,
	}); err != nil {
		c.log.Error("failed to mark job processing", "job", job.JobID, "error", err)
	}

	processCtx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		processCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	result, err := c.processor.Process(processCtx, &job)
	duration := time.Since(start)

	if err != nil {
		c.markFailed(ctx, job.JobID, duration, err)
		if isPermanent(err) {
			return fmt.Errorf("extraction failed permanently: %v: %w", err, asynq.SkipRetry)
		}
		return fmt.Errorf("extraction failed: %w", err)
	}

	if err := c.store.SaveResult(ctx, job.JobID, result); err != nil {
		c.log.Error("failed to save result", "job", job.JobID, "error", err)
		return fmt.Errorf("failed to save result: %w", err)
	}

	if c.cache != nil {
		if err := c.cache.CacheResult(ctx, job.JobID, result); err != nil {
			// Cache is best-effort; the database copy is authoritative.
			c.log.Error("failed to cache result", "job", job.JobID, "error", err)
		}
	}

	if err := c.store.UpdateJobStatus(ctx, &storage.JobUpdate{
		JobID:            job.JobID,
		Status:           storage.StatusCompleted,
		Confidence:       result.ConfidenceScore,
		ProcessingTimeMs: duration.Milliseconds(),
		LanguageUsed:     result.LanguageUsedForOCR,
		TotalPages:       result.TotalPages,
	}); err != nil {
		c.log.Error("failed to mark job completed", "job", job.JobID, "error", err)
	}

	c.log.Info("job completed", "job", job.JobID, "duration", duration,
		"pages", result.TotalPages, "confidence", result.ConfidenceScore)
	return nil
}

func (c *Consumer) markFailed(ctx context.Context, jobID string, duration time.Duration, cause error) {
	update := &storage.JobUpdate{
		JobID:            jobID,
		Status:           storage.StatusFailed,
		ProcessingTimeMs: duration.Milliseconds(),
		ErrorMessage:     cause.Error(),
	}

	var procErr *apperrors.ProcessingError
	if errors.As(cause, &procErr) {
		update.ErrorCode = string(procErr.Code)
	}

	if err := c.store.UpdateJobStatus(ctx, update); err != nil {
		c.log.Error("failed to mark job failed", "job", jobID, "error", err)
	}
	c.log.Error("job failed", "job", jobID, "duration", duration, "error", cause)
}

// isPermanent reports whether retrying the job could possibly succeed.
// Bad input stays bad; only infrastructure errors are worth a retry.
func isPermanent(err error) bool {
	return apperrors.IsCode(err, apperrors.ErrorUnsupportedFileType) ||
		apperrors.IsCode(err, apperrors.ErrorDocumentExtract)
}
