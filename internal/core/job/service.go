package job

import (
	"context"
	"encoding/json"
	"fmt"

	rds "mlscraper/internal/platform/redis"
)

type JobService struct{ redis *rds.Service }

func NewJobService(redis *rds.Service) *JobService { return &JobService{redis: redis} }

func (s *JobService) GetJobStatus(ctx context.Context, jobID string) (*Job, error) {
	var j Job
	if err := s.redis.CacheGet(ctx, key(jobID), &j); err != nil {
		return nil, fmt.Errorf("job not found: %s", jobID)
	}
	return &j, nil
}

func (s *JobService) store(ctx context.Context, j Job) error {
	if err := s.redis.CacheSet(ctx, key(j.JobID), j, ttl(j.Status)); err != nil {
		return err
	}
	// Update event for status pollers and SSE listeners.
	_ = s.redis.Client().Publish(ctx, key(j.JobID), "updated").Err()
	return nil
}

func (s *JobService) InitPending(ctx context.Context, jobID string, jobType Type, request interface{}) error {
	raw, err := json.Marshal(request)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	return s.store(ctx, Job{JobID: jobID, Type: jobType, Status: StatusPending, Request: raw})
}

func (s *JobService) SetProcessing(ctx context.Context, jobID string, jobType Type) error {
	j, err := s.GetJobStatus(ctx, jobID)
	if err != nil {
		j = &Job{JobID: jobID, Type: jobType}
	}
	j.Status = StatusProcessing
	return s.store(ctx, *j)
}

// Complete records the finished result under the job id. succeeded
// selects the terminal status.
func (s *JobService) Complete(ctx context.Context, jobID string, jobType Type, succeeded bool, result interface{}) error {
	raw, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	j, gerr := s.GetJobStatus(ctx, jobID)
	if gerr != nil {
		j = &Job{JobID: jobID, Type: jobType}
	}
	j.Status = StatusCompleted
	if !succeeded {
		j.Status = StatusFailed
	}
	j.Result = raw
	return s.store(ctx, *j)
}

func key(id string) string { return "job:" + id }

func ttl(s Status) int {
	if s == StatusCompleted || s == StatusFailed {
		return 3600
	}
	return 600
}
