package item

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

var (
	ErrNotFound      = errors.New("item not found")
	ErrNotOwner      = errors.New("user does not own this item")
	ErrInvalidKind   = errors.New("kind must be lost or found")
	ErrMissingFields = errors.New("name and description are required")
)

type Service struct {
	repo   *Repo
	logger *logrus.Logger
}

func NewService(repo *Repo, logger *logrus.Logger) *Service {
	if logger == nil {
		logger = logrus.New()
	}
	return &Service{repo: repo, logger: logger}
}

type ReportInput struct {
	Name        string
	Description string
	Category    string
	Kind        Kind
	Location    string
	Lat         *float64
	Lng         *float64
	Reward      float64
	ImageURL    string
}

// Report records a lost or found item. Items with a photo start pending
// and stay hidden from browse until the moderation worker clears them.
func (s *Service) Report(ctx context.Context, userID uint64, in ReportInput) (*Item, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Description = strings.TrimSpace(in.Description)
	if in.Name == "" || in.Description == "" {
		return nil, ErrMissingFields
	}
	if in.Kind != KindLost && in.Kind != KindFound {
		return nil, ErrInvalidKind
	}

	id, err := NewItemID()
	if err != nil {
		return nil, err
	}

	status := StatusApproved
	if in.ImageURL != "" {
		status = StatusPending
	}

	it := &Item{
		ID:          id,
		UserID:      userID,
		Name:        in.Name,
		Description: in.Description,
		Category:    in.Category,
		Kind:        in.Kind,
		Location:    in.Location,
		Lat:         in.Lat,
		Lng:         in.Lng,
		Reward:      in.Reward,
		ImageURL:    in.ImageURL,
		Status:      status,
	}
	if err := s.repo.Create(ctx, it); err != nil {
		return nil, fmt.Errorf("create item: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"item_id": it.ID,
		"kind":    it.Kind,
		"status":  it.Status,
	}).Info("item reported")

	return it, nil
}

func (s *Service) Get(ctx context.Context, id string) (*Item, error) {
	it, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("lookup item: %w", err)
	}
	return it, nil
}

func (s *Service) Browse(ctx context.Context, f Filter) ([]Item, error) {
	return s.repo.List(ctx, f)
}

// allowed PATCH fields; everything else on the row is server-owned
var updatableFields = map[string]struct{}{
	"name": {}, "description": {}, "category": {},
	"location": {}, "lat": {}, "lng": {}, "reward": {},
}

func (s *Service) Update(ctx context.Context, userID uint64, id string, updates map[string]any) (*Item, error) {
	it, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if it.UserID != userID {
		return nil, ErrNotOwner
	}

	filtered := make(map[string]any, len(updates))
	for k, v := range updates {
		if _, ok := updatableFields[k]; ok {
			filtered[k] = v
		}
	}
	if len(filtered) == 0 {
		return it, nil
	}

	if err := s.repo.Update(ctx, id, filtered); err != nil {
		return nil, fmt.Errorf("update item: %w", err)
	}
	return s.Get(ctx, id)
}

func (s *Service) Delete(ctx context.Context, userID uint64, id string) error {
	it, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if it.UserID != userID {
		return ErrNotOwner
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete item: %w", err)
	}
	return nil
}

// SetModerationVerdict applies the worker's verdict. Rejected items lose
// their image reference so the unsafe photo is never served again.
func (s *Service) SetModerationVerdict(ctx context.Context, id string, safe bool) error {
	updates := map[string]any{"status": StatusApproved}
	if !safe {
		updates["status"] = StatusRejected
		updates["image_url"] = ""
	}
	if err := s.repo.Update(ctx, id, updates); err != nil {
		return fmt.Errorf("apply moderation verdict: %w", err)
	}
	return nil
}
