package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"lingua-backend/internal/logger"
	"lingua-backend/internal/models"
	"lingua-backend/internal/services"
)

const (
	defaultMaxRetries = 3
	popTimeout        = 5 * time.Second
	lockTTL           = 10 * time.Minute
)

func QueueName(jobType string) string {
	return "queue:" + jobType
}

type jobStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Job, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) error
	UpdateError(ctx context.Context, id uuid.UUID, errMsg string, retryCount int) error
}

type lessonGenerator interface {
	Generate(ctx context.Context, job *models.Job) (*models.Lesson, error)
}

// Pool pulls jobs from Redis lists. A SETNX lock per job keeps two workers
// from running the same job if it was queued twice.
type Pool struct {
	redis       *redis.Client
	jobs        jobStore
	lessons     lessonGenerator
	pub         services.Publisher
	log         *logger.Logger
	workerCount int

	// requeue puts a failed job back after delay.
	requeue func(job *models.Job, delay time.Duration)
}

func NewPool(redisClient *redis.Client, jobs jobStore, lessons lessonGenerator, pub services.Publisher, log *logger.Logger, workerCount int) *Pool {
	if workerCount < 1 {
		workerCount = 1
	}
	p := &Pool{
		redis:       redisClient,
		jobs:        jobs,
		lessons:     lessons,
		pub:         pub,
		log:         log.With("component", "worker"),
		workerCount: workerCount,
	}
	p.requeue = p.pushLater
	return p
}

// Enqueue pushes a stored job onto its queue.
func (p *Pool) Enqueue(ctx context.Context, job *models.Job) error {
	raw, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return p.redis.LPush(ctx, QueueName(job.Type), raw).Err()
}

// Run blocks until ctx is cancelled and every worker has finished its
// current job.
func (p *Pool) Run(ctx context.Context) error {
	queues := []string{QueueName(models.JobTypeLessonGeneration)}

	var wg sync.WaitGroup
	for i := 0; i < p.workerCount; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			p.worker(ctx, id, queues)
		}(i)
	}
	p.log.Info("workers started", "count", p.workerCount)

	wg.Wait()
	p.log.Info("workers stopped")
	return nil
}

func (p *Pool) worker(ctx context.Context, id int, queues []string) {
	for {
		if ctx.Err() != nil {
			return
		}

		result, err := p.redis.BLPop(ctx, popTimeout, queues...).Result()
		if err != nil {
			if !errors.Is(err, redis.Nil) && ctx.Err() == nil {
				p.log.Warn("queue pop failed", "worker", id, "error", err)
				time.Sleep(time.Second)
			}
			continue
		}
		if len(result) < 2 {
			continue
		}

		var job models.Job
		if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
			p.log.Error("failed to parse job", "worker", id, "error", err)
			continue
		}

		lockKey := fmt.Sprintf("job_lock:%s", job.ID.String())
		locked, err := p.redis.SetNX(ctx, lockKey, "1", lockTTL).Result()
		if err != nil || !locked {
			continue
		}

		// Jobs run to completion even during shutdown.
		p.execute(context.WithoutCancel(ctx), &job)
		p.redis.Del(context.WithoutCancel(ctx), lockKey)
	}
}

func (p *Pool) execute(ctx context.Context, job *models.Job) {
	if current, err := p.jobs.GetByID(ctx, job.ID); err == nil && current.Status == "failed" {
		p.log.Info("skipping cancelled job", "job_id", job.ID)
		return
	}
	if job.MaxRetries <= 0 {
		job.MaxRetries = defaultMaxRetries
	}

	log := p.log.With("job_id", job.ID, "type", job.Type)
	log.Info("processing job")
	if err := p.jobs.UpdateStatus(ctx, job.ID, "processing"); err != nil {
		log.Warn("failed to mark job processing", "error", err)
	}
	p.publish(ctx, job.UserID, models.WSMessage{
		Type:    services.EventStatusUpdate,
		Payload: models.StatusUpdate{JobID: job.ID, Step: 1, StepName: "Preparing"},
	})

	var (
		resultID   uuid.UUID
		resultType string
		processErr error
	)
	switch job.Type {
	case models.JobTypeLessonGeneration:
		var lesson *models.Lesson
		lesson, processErr = p.lessons.Generate(ctx, job)
		if processErr == nil {
			resultID, resultType = lesson.ID, "lesson"
		}
	default:
		processErr = fmt.Errorf("unknown job type: %s", job.Type)
	}

	if processErr != nil {
		p.handleFailure(ctx, job, processErr)
		return
	}
	p.handleSuccess(ctx, job, resultID, resultType)
}

func (p *Pool) handleSuccess(ctx context.Context, job *models.Job, resultID uuid.UUID, resultType string) {
	if err := p.jobs.UpdateStatus(ctx, job.ID, "completed"); err != nil {
		p.log.Warn("failed to mark job completed", "job_id", job.ID, "error", err)
	}
	p.publish(ctx, job.UserID, models.WSMessage{
		Type:    services.EventJobCompleted,
		Payload: models.CompletedEvent{JobID: job.ID, ResultID: resultID, ResultType: resultType},
	})
	p.log.Info("job completed", "job_id", job.ID)
}

func (p *Pool) handleFailure(ctx context.Context, job *models.Job, err error) {
	job.RetryCount++
	errMsg := err.Error()

	if job.RetryCount < job.MaxRetries {
		p.log.Warn("job failed, retrying", "job_id", job.ID, "attempt", job.RetryCount, "error", errMsg)
		p.jobs.UpdateStatus(ctx, job.ID, "pending")
		p.jobs.UpdateError(ctx, job.ID, errMsg, job.RetryCount)

		backoff := time.Duration(1<<uint(job.RetryCount)) * time.Second
		p.requeue(job, backoff)
		return
	}

	p.log.Error("job failed permanently", "job_id", job.ID, "error", errMsg)
	p.jobs.UpdateStatus(ctx, job.ID, "failed")
	p.jobs.UpdateError(ctx, job.ID, errMsg, job.RetryCount)
	p.publish(ctx, job.UserID, models.WSMessage{
		Type: services.EventJobError,
		Payload: models.ErrorEvent{
			JobID:        job.ID,
			ErrorCode:    "JOB_FAILED",
			ErrorMessage: errMsg,
		},
	})
}

func (p *Pool) pushLater(job *models.Job, delay time.Duration) {
	jobBytes, _ := json.Marshal(job)
	time.AfterFunc(delay, func() {
		if err := p.redis.LPush(context.Background(), QueueName(job.Type), jobBytes).Err(); err != nil {
			p.log.Error("failed to requeue job", "job_id", job.ID, "error", err)
		}
	})
}

func (p *Pool) publish(ctx context.Context, userID uuid.UUID, msg models.WSMessage) {
	if err := p.pub.Publish(ctx, services.UserChannel(userID), msg); err != nil {
		p.log.Debug("job update not published", "user_id", userID, "error", err)
	}
}
