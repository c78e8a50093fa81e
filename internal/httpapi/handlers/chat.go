package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/foundly/foundly/internal/chat"
	"github.com/foundly/foundly/internal/common"
	"github.com/foundly/foundly/internal/item"
	"github.com/foundly/foundly/internal/models"
)

type startChatReq struct {
	OtherUserID uint64 `json:"other_user_id" binding:"required"`
	ItemID      string `json:"item_id" binding:"required"`
}

// StartChat resolves or creates the one conversation between the caller
// and another user about an item.
func (h *Handler) StartChat(c *gin.Context) {
	uid, okk := userIDFromContext(c)
	if !okk {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	var req startChatReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}

	if _, err := h.ItemSvc.Get(c.Request.Context(), req.ItemID); err != nil {
		if errors.Is(err, item.ErrNotFound) {
			common.Fail(c, http.StatusNotFound, 40410, "item not found")
			return
		}
		common.Fail(c, http.StatusInternalServerError, 50020, "failed to start chat")
		return
	}

	// no chats against ghost users
	var cnt int64
	if err := h.DB.Model(&models.User{}).Where("id = ?", req.OtherUserID).Count(&cnt).Error; err != nil {
		common.Fail(c, http.StatusInternalServerError, 50020, "failed to start chat")
		return
	}
	if cnt == 0 {
		common.Fail(c, http.StatusNotFound, 40401, "user not found")
		return
	}

	ch, err := h.ChatSvc.ResolveOrCreate(c.Request.Context(), uid, req.OtherUserID, req.ItemID)
	if err != nil {
		if errors.Is(err, chat.ErrSelfChat) {
			common.Fail(c, http.StatusBadRequest, 10040, "cannot open a chat with yourself")
			return
		}
		common.Fail(c, http.StatusInternalServerError, 50020, "failed to start chat")
		return
	}

	common.OK(c, ch)
}

func (h *Handler) ListChats(c *gin.Context) {
	uid, okk := userIDFromContext(c)
	if !okk {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	chats, err := h.ChatSvc.ListUserChats(c.Request.Context(), uid)
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 50021, "failed to list chats")
		return
	}

	common.OK(c, gin.H{"chats": chats})
}

type sendMessageReq struct {
	Text string `json:"text" binding:"required"`
}

func (h *Handler) SendChatMessage(c *gin.Context) {
	uid, okk := userIDFromContext(c)
	if !okk {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	var req sendMessageReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}

	msg, err := h.ChatSvc.Send(c.Request.Context(), c.Param("chat_id"), uid, req.Text)
	if err != nil {
		switch {
		case errors.Is(err, chat.ErrEmptyMessage):
			common.Fail(c, http.StatusBadRequest, 10041, "message text is empty")
		case errors.Is(err, chat.ErrChatNotFound):
			common.Fail(c, http.StatusNotFound, 40420, "chat not found")
		case errors.Is(err, chat.ErrNotParticipant):
			common.Fail(c, http.StatusForbidden, 40320, "not a participant in this chat")
		default:
			common.Fail(c, http.StatusInternalServerError, 50022, "failed to send message")
		}
		return
	}

	common.OK(c, msg)
}

func (h *Handler) ListChatMessages(c *gin.Context) {
	uid, okk := userIDFromContext(c)
	if !okk {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	limit, _ := strconv.Atoi(c.Query("limit"))
	var beforeID uint64
	if v := c.Query("before_id"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			beforeID = n
		}
	}

	msgs, err := h.ChatSvc.ListMessages(c.Request.Context(), c.Param("chat_id"), uid, limit, beforeID)
	if err != nil {
		switch {
		case errors.Is(err, chat.ErrChatNotFound):
			common.Fail(c, http.StatusNotFound, 40420, "chat not found")
		case errors.Is(err, chat.ErrNotParticipant):
			common.Fail(c, http.StatusForbidden, 40320, "not a participant in this chat")
		default:
			common.Fail(c, http.StatusInternalServerError, 50023, "failed to list messages")
		}
		return
	}

	var nextBeforeID uint64
	if len(msgs) > 0 {
		nextBeforeID = msgs[len(msgs)-1].ID
	}

	common.OK(c, gin.H{
		"messages":       msgs,
		"next_before_id": nextBeforeID,
	})
}

// StreamChatMessages streams the chat's full oldest-first history as an
// SSE snapshot event, re-sent on every new message, until the client
// disconnects.
func (h *Handler) StreamChatMessages(c *gin.Context) {
	uid, okk := userIDFromContext(c)
	if !okk {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	sub, err := h.ChatSvc.ObserveMessages(c.Request.Context(), c.Param("chat_id"), uid)
	if err != nil {
		switch {
		case errors.Is(err, chat.ErrChatNotFound):
			common.Fail(c, http.StatusNotFound, 40420, "chat not found")
		case errors.Is(err, chat.ErrNotParticipant):
			common.Fail(c, http.StatusForbidden, 40320, "not a participant in this chat")
		default:
			common.Fail(c, http.StatusInternalServerError, 50024, "failed to subscribe")
		}
		return
	}
	defer sub.Cancel()

	w, okk := newSSEWriter(c)
	if !okk {
		return
	}

	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case msgs, open := <-sub.C:
			if !open {
				select {
				case err := <-sub.Err:
					w.WriteJSON("error", gin.H{"message": err.Error()})
				default:
				}
				return
			}
			w.WriteJSON("snapshot", gin.H{"messages": msgs})
		case <-ticker.C:
			w.Ping()
		case <-c.Request.Context().Done():
			return
		}
	}
}

// StreamUserChats streams the caller's chat list the same way.
func (h *Handler) StreamUserChats(c *gin.Context) {
	uid, okk := userIDFromContext(c)
	if !okk {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	sub := h.ChatSvc.ObserveUserChats(c.Request.Context(), uid)
	defer sub.Cancel()

	w, okk := newSSEWriter(c)
	if !okk {
		return
	}

	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case chats, open := <-sub.C:
			if !open {
				select {
				case err := <-sub.Err:
					w.WriteJSON("error", gin.H{"message": err.Error()})
				default:
				}
				return
			}
			w.WriteJSON("snapshot", gin.H{"chats": chats})
		case <-ticker.C:
			w.Ping()
		case <-c.Request.Context().Done():
			return
		}
	}
}
