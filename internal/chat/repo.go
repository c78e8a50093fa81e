package chat

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

func (r *Repo) GetChatByID(ctx context.Context, chatID string) (*Chat, error) {
	var c Chat
	if err := r.db.WithContext(ctx).
		Where("id = ?", chatID).
		First(&c).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

// GetChatByPairAndItem looks up the one chat for a normalized participant
// pair scoped to an item.
func (r *Repo) GetChatByPairAndItem(ctx context.Context, userLow, userHigh uint64, itemID string) (*Chat, error) {
	var c Chat
	if err := r.db.WithContext(ctx).
		Where("user_low = ? AND user_high = ? AND item_id = ?", userLow, userHigh, itemID).
		First(&c).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

// CreateChatOrGetExisting inserts the chat; if another caller won the race
// on the (pair, item) unique index, the existing row is returned instead.
func (r *Repo) CreateChatOrGetExisting(ctx context.Context, c *Chat) (*Chat, bool, error) {
	err := r.db.WithContext(ctx).Create(c).Error
	if err == nil {
		return c, true, nil
	}

	existing, getErr := r.GetChatByPairAndItem(ctx, c.UserLow, c.UserHigh, c.ItemID)
	if getErr == nil {
		return existing, false, nil
	}
	if errors.Is(getErr, gorm.ErrRecordNotFound) {
		// insert failed for a reason other than the unique index
		return nil, false, err
	}
	return nil, false, getErr
}

func (r *Repo) ListUserChats(ctx context.Context, userID uint64) ([]Chat, error) {
	var chats []Chat
	if err := r.db.WithContext(ctx).
		Where("user_low = ? OR user_high = ?", userID, userID).
		Find(&chats).Error; err != nil {
		return nil, err
	}
	return chats, nil
}

func (r *Repo) InsertMessage(ctx context.Context, m *Message) error {
	return r.db.WithContext(ctx).Create(m).Error
}

// ListMessages returns the full chat history, oldest first. Ties on
// created_at fall back to insert order via the autoincrement id.
func (r *Repo) ListMessages(ctx context.Context, chatID string) ([]Message, error) {
	var msgs []Message
	if err := r.db.WithContext(ctx).
		Where("chat_id = ?", chatID).
		Order("created_at ASC, id ASC").
		Find(&msgs).Error; err != nil {
		return nil, err
	}
	return msgs, nil
}

// ListMessagesBefore pages backwards from beforeID (0 means newest),
// returning messages in DESC id order for the paginated list endpoint.
func (r *Repo) ListMessagesBefore(ctx context.Context, chatID string, limit int, beforeID uint64) ([]Message, error) {
	q := r.db.WithContext(ctx).
		Where("chat_id = ?", chatID).
		Order("id DESC").
		Limit(limit)

	if beforeID > 0 {
		q = q.Where("id < ?", beforeID)
	}

	var msgs []Message
	if err := q.Find(&msgs).Error; err != nil {
		return nil, err
	}
	return msgs, nil
}

// UpdateLastMessage refreshes the chat's denormalized preview fields.
func (r *Repo) UpdateLastMessage(ctx context.Context, chatID, text string, at time.Time) error {
	return r.db.WithContext(ctx).Model(&Chat{}).
		Where("id = ?", chatID).
		Updates(map[string]any{
			"last_message_text": text,
			"last_message_at":   at,
		}).Error
}
