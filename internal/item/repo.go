package item

import (
	"context"

	"gorm.io/gorm"
)

type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

func (r *Repo) Create(ctx context.Context, it *Item) error {
	return r.db.WithContext(ctx).Create(it).Error
}

func (r *Repo) GetByID(ctx context.Context, id string) (*Item, error) {
	var it Item
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&it).Error; err != nil {
		return nil, err
	}
	return &it, nil
}

// Filter narrows the browse listing. ViewerID widens visibility to the
// caller's own unapproved items.
type Filter struct {
	Kind     Kind
	Category string
	Query    string
	ViewerID uint64
	Limit    int
	Offset   int
}

func (r *Repo) List(ctx context.Context, f Filter) ([]Item, error) {
	q := r.db.WithContext(ctx).Model(&Item{})

	if f.ViewerID > 0 {
		q = q.Where("status = ? OR user_id = ?", StatusApproved, f.ViewerID)
	} else {
		q = q.Where("status = ?", StatusApproved)
	}
	if f.Kind != "" {
		q = q.Where("kind = ?", f.Kind)
	}
	if f.Category != "" {
		q = q.Where("category = ?", f.Category)
	}
	if f.Query != "" {
		like := "%" + f.Query + "%"
		q = q.Where("name LIKE ? OR description LIKE ? OR location LIKE ?", like, like, like)
	}

	limit := f.Limit
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	var items []Item
	if err := q.Order("created_at DESC").Limit(limit).Offset(f.Offset).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *Repo) Update(ctx context.Context, id string, updates map[string]any) error {
	return r.db.WithContext(ctx).Model(&Item{}).Where("id = ?", id).Updates(updates).Error
}

func (r *Repo) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&Item{}).Error
}
