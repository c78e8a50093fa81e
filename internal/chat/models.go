package chat

import "time"

// Chat is one conversation between exactly two users about one item.
// The participant pair is stored normalized (UserLow < UserHigh) so that
// (A,B) and (B,A) land on the same row; the composite unique index makes
// create idempotent per (pair, item).
type Chat struct {
	ID        string `gorm:"primaryKey;size:26" json:"chat_id"` // ULID
	UserLow   uint64 `gorm:"not null;index:uniq_chat_pair_item,unique,priority:1" json:"user_low"`
	UserHigh  uint64 `gorm:"not null;index:uniq_chat_pair_item,unique,priority:2" json:"user_high"`
	ItemID    string `gorm:"size:26;not null;index:uniq_chat_pair_item,unique,priority:3" json:"item_id"`
	CreatedAt time.Time `json:"created_at"`

	// Denormalized preview for chat lists; best-effort, see Service.Send.
	LastMessageText string     `gorm:"type:varchar(512)" json:"last_message_text"`
	LastMessageAt   *time.Time `json:"last_message_at"`
}

func (Chat) TableName() string { return "chats" }

// HasParticipant reports whether uid is one of the two sides of the chat.
func (c *Chat) HasParticipant(uid uint64) bool {
	return uid == c.UserLow || uid == c.UserHigh
}

type Message struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement" json:"-"`
	MessageID string    `gorm:"type:varchar(36);uniqueIndex;not null" json:"message_id"`
	ChatID    string    `gorm:"size:26;not null;index:idx_msg_chat_created,priority:1" json:"chat_id"`
	SenderID  uint64    `gorm:"not null" json:"sender_id"`
	Text      string    `gorm:"type:text;not null" json:"text"`
	CreatedAt time.Time `gorm:"index:idx_msg_chat_created,priority:2" json:"created_at"`
}

func (Message) TableName() string { return "chat_messages" }

// normalizePair orders two user ids so the smaller is always first.
func normalizePair(a, b uint64) (low, high uint64) {
	if a < b {
		return a, b
	}
	return b, a
}
