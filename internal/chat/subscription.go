package chat

import (
	"context"
	"fmt"
	"sync"
)

// MessageSubscription is a live query over one chat's messages. The full
// oldest-first history is delivered on C immediately, then again after
// every change, until Cancel. A store failure closes C after emitting a
// terminal error on Err.
type MessageSubscription struct {
	C   <-chan []Message
	Err <-chan error

	done   chan struct{}
	once   sync.Once
	detach func()
}

// Cancel stops delivery. Safe to call any number of times, including
// after the subscription has already terminated on its own.
func (s *MessageSubscription) Cancel() {
	s.once.Do(func() {
		close(s.done)
		s.detach()
	})
}

// ObserveMessages opens a live subscription on a chat's message history.
// userID must be a participant. The subscription also ends when ctx is
// cancelled; Cancel remains safe to call afterwards.
func (s *Service) ObserveMessages(ctx context.Context, chatID string, userID uint64) (*MessageSubscription, error) {
	if _, err := s.GetChatForUser(ctx, chatID, userID); err != nil {
		return nil, err
	}

	w := newWaiter()
	s.hub.attachChat(chatID, w)

	out := make(chan []Message)
	errc := make(chan error, 1)
	sub := &MessageSubscription{
		C:      out,
		Err:    errc,
		done:   make(chan struct{}),
		detach: func() { s.hub.detachChat(chatID, w) },
	}

	go func() {
		defer close(out)
		defer sub.Cancel()
		for {
			msgs, err := s.repo.ListMessages(ctx, chatID)
			if err != nil {
				errc <- fmt.Errorf("observe messages: %w", err)
				return
			}
			select {
			case out <- msgs:
			case <-sub.done:
				return
			case <-ctx.Done():
				return
			}
			select {
			case <-w.notify:
			case <-sub.done:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	return sub, nil
}

// ChatSubscription is a live query over the set of chats a user belongs
// to, re-delivered whenever a chat is created for them or any of their
// chats receives a message.
type ChatSubscription struct {
	C   <-chan []Chat
	Err <-chan error

	done   chan struct{}
	once   sync.Once
	detach func()
}

func (s *ChatSubscription) Cancel() {
	s.once.Do(func() {
		close(s.done)
		s.detach()
	})
}

// ObserveUserChats opens a live subscription on a user's chat list.
func (s *Service) ObserveUserChats(ctx context.Context, userID uint64) *ChatSubscription {
	w := newWaiter()
	s.hub.attachUser(userID, w)

	out := make(chan []Chat)
	errc := make(chan error, 1)
	sub := &ChatSubscription{
		C:      out,
		Err:    errc,
		done:   make(chan struct{}),
		detach: func() { s.hub.detachUser(userID, w) },
	}

	go func() {
		defer close(out)
		defer sub.Cancel()
		for {
			chats, err := s.repo.ListUserChats(ctx, userID)
			if err != nil {
				errc <- fmt.Errorf("observe chats: %w", err)
				return
			}
			select {
			case out <- chats:
			case <-sub.done:
				return
			case <-ctx.Done():
				return
			}
			select {
			case <-w.notify:
			case <-sub.done:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	return sub
}
