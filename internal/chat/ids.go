package chat

import (
	"crypto/rand"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// NewChatID returns a fresh ULID. Lexicographic order tracks creation time,
// which keeps chat ids friendly to index locality.
func NewChatID() (string, error) {
	id, err := ulid.New(ulid.Timestamp(time.Now()), rand.Reader)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

func NewMessageID() string {
	return uuid.New().String()
}
