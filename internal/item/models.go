package item

import (
	"crypto/rand"
	"time"

	"github.com/oklog/ulid/v2"
)

type Kind string

const (
	KindLost  Kind = "lost"
	KindFound Kind = "found"
)

type Status string

const (
	// StatusPending means the photo is awaiting the moderation verdict;
	// the item is visible only to its reporter until then.
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

type Item struct {
	ID          string `gorm:"primaryKey;size:26" json:"item_id"` // ULID
	UserID      uint64 `gorm:"index;not null" json:"user_id"`
	Name        string `gorm:"type:varchar(128);not null" json:"name"`
	Description string `gorm:"type:text;not null" json:"description"`
	Category    string `gorm:"type:varchar(64);index" json:"category"`
	Kind        Kind   `gorm:"type:varchar(8);index;not null" json:"kind"`

	Location string   `gorm:"type:varchar(255)" json:"location"`
	Lat      *float64 `json:"lat,omitempty"`
	Lng      *float64 `json:"lng,omitempty"`

	Reward   float64 `json:"reward"`
	ImageURL string  `gorm:"type:varchar(512)" json:"image_url"`

	Status    Status    `gorm:"type:varchar(16);index;not null" json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Item) TableName() string { return "items" }

func NewItemID() (string, error) {
	id, err := ulid.New(ulid.Timestamp(time.Now()), rand.Reader)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}
