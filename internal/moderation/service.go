package moderation

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/foundly/foundly/internal/item"
)

// JobPublisher hands a job to the queue for the worker to pick up.
type JobPublisher interface {
	PublishJob(ctx context.Context, jobID, itemID string) error
}

type Service struct {
	db       *gorm.DB
	itemSvc  *item.Service
	provider Provider
	logger   *logrus.Logger
}

func NewService(db *gorm.DB, itemSvc *item.Service, provider Provider, logger *logrus.Logger) *Service {
	if logger == nil {
		logger = logrus.New()
	}
	return &Service{db: db, itemSvc: itemSvc, provider: provider, logger: logger}
}

func newJobID() (string, error) {
	id, err := ulid.New(ulid.Timestamp(time.Now()), rand.Reader)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// EnqueueCheck records a moderation job for the item's photo and hands it
// to the publisher. A second enqueue for the same item resolves to the
// already-recorded job (unique index on item_id), so retried item
// submissions never fan out into duplicate checks.
func (s *Service) EnqueueCheck(ctx context.Context, pub JobPublisher, itemID, imageURL string) (*Job, error) {
	id, err := newJobID()
	if err != nil {
		return nil, err
	}

	job := &Job{
		ID:       id,
		ItemID:   itemID,
		ImageURL: imageURL,
		Status:   JobQueued,
	}
	if err := s.db.WithContext(ctx).Create(job).Error; err != nil {
		var existing Job
		getErr := s.db.WithContext(ctx).Where("item_id = ?", itemID).First(&existing).Error
		if getErr == nil {
			return &existing, nil
		}
		if errors.Is(getErr, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("create job: %w", err)
		}
		return nil, getErr
	}

	if err := pub.PublishJob(ctx, job.ID, itemID); err != nil {
		// the row stays queued; the caller decides how to degrade
		return nil, fmt.Errorf("publish job: %w", err)
	}
	return job, nil
}

func (s *Service) GetJob(ctx context.Context, jobID string) (*Job, error) {
	var j Job
	if err := s.db.WithContext(ctx).First(&j, "id = ?", jobID).Error; err != nil {
		return nil, err
	}
	return &j, nil
}

func (s *Service) markRunning(ctx context.Context, jobID string) error {
	return s.db.WithContext(ctx).Model(&Job{}).
		Where("id = ? AND status = ?", jobID, JobQueued).
		Update("status", JobRunning).Error
}

func (s *Service) markSucceeded(ctx context.Context, jobID string, safe bool) error {
	return s.db.WithContext(ctx).Model(&Job{}).
		Where("id = ?", jobID).
		Updates(map[string]any{
			"status": JobSucceeded,
			"safe":   safe,
			"error":  nil,
		}).Error
}

func (s *Service) markFailed(ctx context.Context, jobID, errMsg string) error {
	return s.db.WithContext(ctx).Model(&Job{}).
		Where("id = ?", jobID).
		Updates(map[string]any{
			"status": JobFailed,
			"error":  errMsg,
		}).Error
}

// HandleJob runs one moderation job end to end: classify the photo, apply
// the verdict to the item, record the outcome on the job row.
func (s *Service) HandleJob(ctx context.Context, jobID string) error {
	_ = s.markRunning(ctx, jobID)

	job, err := s.GetJob(ctx, jobID)
	if err != nil {
		return err
	}

	verdict, err := s.provider.Classify(ctx, job.ImageURL)
	if err != nil {
		_ = s.markFailed(ctx, jobID, err.Error())
		return err
	}

	safe := verdict.Safe()
	if err := s.itemSvc.SetModerationVerdict(ctx, job.ItemID, safe); err != nil {
		_ = s.markFailed(ctx, jobID, err.Error())
		return err
	}

	if err := s.markSucceeded(ctx, jobID, safe); err != nil {
		return err
	}

	s.logger.WithFields(logrus.Fields{
		"job_id":  jobID,
		"item_id": job.ItemID,
		"safe":    safe,
	}).Info("moderation verdict applied")

	return nil
}
