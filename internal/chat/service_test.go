package chat

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(gormsqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("db handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(&Chat{}, &Message{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func newTestService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()
	db := openTestDB(t)
	return NewService(NewRepo(db), NewHub(), nil), db
}

func TestResolveOrCreate_Idempotent(t *testing.T) {
	svc, _ := newTestService(t)

	c1, err := svc.ResolveOrCreate(context.Background(), 1, 2, "ITEM1")
	if err != nil {
		t.Fatalf("first resolve: %v", err)
	}
	c2, err := svc.ResolveOrCreate(context.Background(), 1, 2, "ITEM1")
	if err != nil {
		t.Fatalf("second resolve: %v", err)
	}
	if c1.ID != c2.ID {
		t.Fatalf("expected same chat, got %q and %q", c1.ID, c2.ID)
	}
}

func TestResolveOrCreate_ParticipantOrderDoesNotMatter(t *testing.T) {
	svc, _ := newTestService(t)

	c1, err := svc.ResolveOrCreate(context.Background(), 7, 3, "ITEM1")
	if err != nil {
		t.Fatalf("resolve (7,3): %v", err)
	}
	c2, err := svc.ResolveOrCreate(context.Background(), 3, 7, "ITEM1")
	if err != nil {
		t.Fatalf("resolve (3,7): %v", err)
	}
	if c1.ID != c2.ID {
		t.Fatalf("expected same chat for reversed pair, got %q and %q", c1.ID, c2.ID)
	}
	if c1.UserLow != 3 || c1.UserHigh != 7 {
		t.Fatalf("expected normalized pair (3,7), got (%d,%d)", c1.UserLow, c1.UserHigh)
	}
}

func TestResolveOrCreate_DistinctItemsDistinctChats(t *testing.T) {
	svc, _ := newTestService(t)

	c1, err := svc.ResolveOrCreate(context.Background(), 1, 2, "ITEM1")
	if err != nil {
		t.Fatalf("resolve item1: %v", err)
	}
	c2, err := svc.ResolveOrCreate(context.Background(), 1, 2, "ITEM2")
	if err != nil {
		t.Fatalf("resolve item2: %v", err)
	}
	if c1.ID == c2.ID {
		t.Fatalf("expected different chats per item, got %q twice", c1.ID)
	}
}

func TestResolveOrCreate_SelfChatRejected(t *testing.T) {
	svc, db := newTestService(t)

	_, err := svc.ResolveOrCreate(context.Background(), 5, 5, "ITEM1")
	if !errors.Is(err, ErrSelfChat) {
		t.Fatalf("expected ErrSelfChat, got %v", err)
	}

	var cnt int64
	if err := db.Model(&Chat{}).Count(&cnt).Error; err != nil {
		t.Fatalf("count chats: %v", err)
	}
	if cnt != 0 {
		t.Fatalf("expected no chat rows, got %d", cnt)
	}
}

func TestResolveOrCreate_ConcurrentCallsConverge(t *testing.T) {
	svc, db := newTestService(t)

	const callers = 8
	ids := make([]string, callers)
	var wg sync.WaitGroup
	wg.Add(callers)
	for i := 0; i < callers; i++ {
		go func(n int) {
			defer wg.Done()
			// alternate the argument order across callers
			a, b := uint64(10), uint64(20)
			if n%2 == 1 {
				a, b = b, a
			}
			c, err := svc.ResolveOrCreate(context.Background(), a, b, "ITEM1")
			if err != nil {
				t.Errorf("caller %d: %v", n, err)
				return
			}
			ids[n] = c.ID
		}(i)
	}
	wg.Wait()

	for i := 1; i < callers; i++ {
		if ids[i] != ids[0] {
			t.Fatalf("caller %d got chat %q, caller 0 got %q", i, ids[i], ids[0])
		}
	}

	var cnt int64
	if err := db.Model(&Chat{}).Count(&cnt).Error; err != nil {
		t.Fatalf("count chats: %v", err)
	}
	if cnt != 1 {
		t.Fatalf("expected exactly 1 chat row, got %d", cnt)
	}
}

func TestSend_EmptyMessageRejected(t *testing.T) {
	svc, db := newTestService(t)

	c, err := svc.ResolveOrCreate(context.Background(), 1, 2, "ITEM1")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}

	for _, text := range []string{"", "   ", "\n\t "} {
		if _, err := svc.Send(context.Background(), c.ID, 1, text); !errors.Is(err, ErrEmptyMessage) {
			t.Fatalf("text %q: expected ErrEmptyMessage, got %v", text, err)
		}
	}

	var cnt int64
	if err := db.Model(&Message{}).Count(&cnt).Error; err != nil {
		t.Fatalf("count messages: %v", err)
	}
	if cnt != 0 {
		t.Fatalf("expected no message rows, got %d", cnt)
	}
}

func TestSend_NonParticipantRejected(t *testing.T) {
	svc, _ := newTestService(t)

	c, err := svc.ResolveOrCreate(context.Background(), 1, 2, "ITEM1")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}

	if _, err := svc.Send(context.Background(), c.ID, 3, "hi"); !errors.Is(err, ErrNotParticipant) {
		t.Fatalf("expected ErrNotParticipant, got %v", err)
	}
}

func TestSend_UnknownChatRejected(t *testing.T) {
	svc, _ := newTestService(t)

	if _, err := svc.Send(context.Background(), "01BADCHATID0000000000000000", 1, "hi"); !errors.Is(err, ErrChatNotFound) {
		t.Fatalf("expected ErrChatNotFound, got %v", err)
	}
}

func TestSend_UpdatesLastMessagePreview(t *testing.T) {
	svc, _ := newTestService(t)

	c, err := svc.ResolveOrCreate(context.Background(), 1, 2, "ITEM1")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if c.LastMessageText != "" || c.LastMessageAt != nil {
		t.Fatalf("expected empty preview on a fresh chat")
	}

	msg, err := svc.Send(context.Background(), c.ID, 2, "  hello  ")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if msg.Text != "hello" {
		t.Fatalf("expected trimmed text, got %q", msg.Text)
	}

	got, err := svc.GetChatForUser(context.Background(), c.ID, 1)
	if err != nil {
		t.Fatalf("get chat: %v", err)
	}
	if got.LastMessageText != "hello" {
		t.Fatalf("expected preview %q, got %q", "hello", got.LastMessageText)
	}
	if got.LastMessageAt == nil {
		t.Fatalf("expected preview timestamp to be set")
	}
}

func TestSend_PreviewFailureDoesNotFailSend(t *testing.T) {
	svc, db := newTestService(t)

	c, err := svc.ResolveOrCreate(context.Background(), 1, 2, "ITEM1")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}

	// break the preview write; the message insert must still be the send
	if err := db.Migrator().DropColumn(&Chat{}, "last_message_text"); err != nil {
		t.Fatalf("drop column: %v", err)
	}

	msg, err := svc.Send(context.Background(), c.ID, 1, "still delivered")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if msg.ID == 0 {
		t.Fatalf("expected persisted message")
	}

	msgs, err := svc.repo.ListMessages(context.Background(), c.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(msgs) != 1 || msgs[0].Text != "still delivered" {
		t.Fatalf("expected the message to be stored, got %+v", msgs)
	}
}

func TestListMessages_OrderedByCreationTime(t *testing.T) {
	svc, db := newTestService(t)
	repo := NewRepo(db)

	c, err := svc.ResolveOrCreate(context.Background(), 1, 2, "ITEM1")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}

	// insert with shuffled timestamps, mimicking clock skew between
	// concurrent senders
	base := time.Now().Add(-time.Hour).Truncate(time.Second)
	for _, off := range []int{3, 1, 2, 0} {
		if err := repo.InsertMessage(context.Background(), &Message{
			MessageID: NewMessageID(),
			ChatID:    c.ID,
			SenderID:  1,
			Text:      "m",
			CreatedAt: base.Add(time.Duration(off) * time.Second),
		}); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}

	msgs, err := repo.ListMessages(context.Background(), c.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(msgs) != 4 {
		t.Fatalf("expected 4 messages, got %d", len(msgs))
	}
	for i := 1; i < len(msgs); i++ {
		if msgs[i].CreatedAt.Before(msgs[i-1].CreatedAt) {
			t.Fatalf("messages out of order at %d: %v before %v", i, msgs[i].CreatedAt, msgs[i-1].CreatedAt)
		}
	}
}

func TestGetChatForUser_EnforcesParticipant(t *testing.T) {
	svc, _ := newTestService(t)

	c, err := svc.ResolveOrCreate(context.Background(), 1, 2, "ITEM1")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}

	if _, err := svc.GetChatForUser(context.Background(), c.ID, 9); !errors.Is(err, ErrNotParticipant) {
		t.Fatalf("expected ErrNotParticipant, got %v", err)
	}
	if _, err := svc.GetChatForUser(context.Background(), "01BADCHATID0000000000000000", 1); !errors.Is(err, ErrChatNotFound) {
		t.Fatalf("expected ErrChatNotFound, got %v", err)
	}
}

func TestListUserChats(t *testing.T) {
	svc, _ := newTestService(t)

	if _, err := svc.ResolveOrCreate(context.Background(), 1, 2, "ITEM1"); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if _, err := svc.ResolveOrCreate(context.Background(), 1, 3, "ITEM2"); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if _, err := svc.ResolveOrCreate(context.Background(), 2, 3, "ITEM3"); err != nil {
		t.Fatalf("resolve: %v", err)
	}

	chats, err := svc.ListUserChats(context.Background(), 1)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(chats) != 2 {
		t.Fatalf("expected 2 chats for user 1, got %d", len(chats))
	}
}
