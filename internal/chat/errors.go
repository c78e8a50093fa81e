package chat

import "errors"

var (
	// ErrSelfChat rejects opening a conversation with oneself.
	ErrSelfChat = errors.New("cannot open a chat with yourself")

	// ErrEmptyMessage rejects blank (all-whitespace) message bodies.
	ErrEmptyMessage = errors.New("message text is empty")

	ErrChatNotFound = errors.New("chat not found")

	// ErrNotParticipant rejects sends and reads by users outside the pair.
	ErrNotParticipant = errors.New("user is not a participant in this chat")
)
