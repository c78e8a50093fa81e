package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/foundly/foundly/internal/chat"
	"github.com/foundly/foundly/internal/common"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = (wsPongWait * 9) / 10
)

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// auth happens via the JWT middleware before the upgrade
	CheckOrigin: func(r *http.Request) bool { return true },
}

type wsSnapshot struct {
	Type     string         `json:"type"`
	Messages []chat.Message `json:"messages"`
}

// ChatWebSocket upgrades the connection and pushes the chat's full
// oldest-first message snapshot on every change, the same contract as
// the SSE stream.
func (h *Handler) ChatWebSocket(c *gin.Context) {
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

	conn, err := wsUpgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		sub.Cancel()
		return
	}
	defer conn.Close()
	defer sub.Cancel()

	// reader: we never expect frames, but the read pump services pongs
	// and detects the peer going away
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(wsPongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case msgs, open := <-sub.C:
			if !open {
				_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
				_ = conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "subscription ended"))
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteJSON(wsSnapshot{Type: "snapshot", Messages: msgs}); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-closed:
			return
		case <-c.Request.Context().Done():
			return
		}
	}
}
