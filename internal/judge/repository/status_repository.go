package repository

import (
	"context"
	"time"

	"tutorjudge/internal/common/cache"
	"tutorjudge/internal/judge/model"
	appErr "tutorjudge/pkg/errors"
)

const statusKeyPrefix = "judge:status:"

// DefaultStatusTTL bounds how long a finished submission stays readable.
const DefaultStatusTTL = 30 * time.Minute

// StatusRepository handles submission status persistence.
type StatusRepository struct {
	cache cache.BasicOps
	TTL   time.Duration
}

// NewStatusRepository creates a new repository.
func NewStatusRepository(cacheClient cache.BasicOps, ttl time.Duration) *StatusRepository {
	if ttl <= 0 {
		ttl = DefaultStatusTTL
	}
	return &StatusRepository{cache: cacheClient, TTL: ttl}
}

// Get returns status by submission id.
func (r *StatusRepository) Get(ctx context.Context, submissionID string) (model.SubmissionStatus, error) {
	if submissionID == "" {
		return model.SubmissionStatus{}, appErr.ValidationError("submission_id", "required")
	}
	if r.cache == nil {
		return model.SubmissionStatus{}, appErr.New(appErr.CacheError).WithMessage("cache client is not initialized")
	}
	var status model.SubmissionStatus
	found, err := cache.GetJSON(ctx, r.cache, statusKeyPrefix+submissionID, &status)
	if err != nil {
		return model.SubmissionStatus{}, appErr.Wrapf(err, appErr.CacheError, "load status failed")
	}
	if !found {
		return model.SubmissionStatus{}, appErr.New(appErr.SubmissionNotFound)
	}
	return status, nil
}

// Save persists status.
func (r *StatusRepository) Save(ctx context.Context, status model.SubmissionStatus) error {
	if status.SubmissionID == "" {
		return appErr.ValidationError("submission_id", "required")
	}
	if r.cache == nil {
		return appErr.New(appErr.CacheError).WithMessage("cache client is not initialized")
	}
	if err := cache.SetJSON(ctx, r.cache, statusKeyPrefix+status.SubmissionID, status, r.TTL); err != nil {
		return appErr.Wrapf(err, appErr.CacheError, "store status failed")
	}
	return nil
}
