package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Service owns conversation identity and message exchange: one chat per
// (participant pair, item), participant-only sends, live observation.
type Service struct {
	repo   *Repo
	hub    *Hub
	logger *logrus.Logger
}

func NewService(repo *Repo, hub *Hub, logger *logrus.Logger) *Service {
	if logger == nil {
		logger = logrus.New()
	}
	return &Service{repo: repo, hub: hub, logger: logger}
}

// ResolveOrCreate returns the one chat between two users about an item,
// creating it on first contact. The pair is normalized before lookup, so
// participant order never matters. Lost races on the unique (pair, item)
// index resolve to the winner's row.
func (s *Service) ResolveOrCreate(ctx context.Context, userA, userB uint64, itemID string) (*Chat, error) {
	if userA == userB {
		return nil, ErrSelfChat
	}

	low, high := normalizePair(userA, userB)

	existing, err := s.repo.GetChatByPairAndItem(ctx, low, high, itemID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("lookup chat: %w", err)
	}

	id, err := NewChatID()
	if err != nil {
		return nil, err
	}

	c, created, err := s.repo.CreateChatOrGetExisting(ctx, &Chat{
		ID:       id,
		UserLow:  low,
		UserHigh: high,
		ItemID:   itemID,
	})
	if err != nil {
		return nil, fmt.Errorf("create chat: %w", err)
	}

	if created {
		s.logger.WithFields(logrus.Fields{
			"chat_id": c.ID,
			"item_id": itemID,
		}).Info("chat created")
		s.hub.NotifyUser(low)
		s.hub.NotifyUser(high)
	}
	return c, nil
}

// GetChatForUser loads a chat and enforces that userID is a participant.
func (s *Service) GetChatForUser(ctx context.Context, chatID string, userID uint64) (*Chat, error) {
	c, err := s.repo.GetChatByID(ctx, chatID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrChatNotFound
		}
		return nil, fmt.Errorf("lookup chat: %w", err)
	}
	if !c.HasParticipant(userID) {
		return nil, ErrNotParticipant
	}
	return c, nil
}

func (s *Service) ListUserChats(ctx context.Context, userID uint64) ([]Chat, error) {
	return s.repo.ListUserChats(ctx, userID)
}

// Send appends a message to the chat. The sender id always comes from the
// authenticated session, never from the request body. The message insert
// is the send; the denormalized last-message preview on the chat row is
// best-effort and a failure there is logged, not surfaced.
func (s *Service) Send(ctx context.Context, chatID string, senderID uint64, text string) (*Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyMessage
	}

	c, err := s.repo.GetChatByID(ctx, chatID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrChatNotFound
		}
		return nil, fmt.Errorf("lookup chat: %w", err)
	}
	if !c.HasParticipant(senderID) {
		return nil, ErrNotParticipant
	}

	m := &Message{
		MessageID: NewMessageID(),
		ChatID:    chatID,
		SenderID:  senderID,
		Text:      text,
	}
	if err := s.repo.InsertMessage(ctx, m); err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}

	if err := s.repo.UpdateLastMessage(ctx, chatID, text, m.CreatedAt); err != nil {
		s.logger.WithError(err).WithField("chat_id", chatID).
			Warn("last-message preview update failed")
	}

	s.hub.NotifyChat(chatID)
	s.hub.NotifyUser(c.UserLow)
	s.hub.NotifyUser(c.UserHigh)

	return m, nil
}

// ListMessages pages backwards through a chat's history for the REST
// surface (newest first; beforeID=0 starts at the tail).
func (s *Service) ListMessages(ctx context.Context, chatID string, userID uint64, limit int, beforeID uint64) ([]Message, error) {
	if _, err := s.GetChatForUser(ctx, chatID, userID); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	return s.repo.ListMessagesBefore(ctx, chatID, limit, beforeID)
}
