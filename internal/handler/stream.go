package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/ashmitsharp/tradebook/internal/models"
)

const (
	writeWait = 10 * time.Second
	readWait  = 60 * time.Second
)

// StreamEvent is one message on the query progress socket.
type StreamEvent struct {
	Type    string      `json:"type"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

const (
	eventAccount = "account"
	eventResult  = "result"
	eventError   = "error"
)

// StreamQuery runs one query and reports each finished account over a websocket
// @Summary Query trades with live progress
// @Description Upgrades to a websocket. The client sends one QueryRequest; the server emits an "account" event per finished account, then a single "result" or "error" event, and closes.
// @Tags trades
// @Router /trades/query/ws [get]
func (h *TradeHandler) StreamQuery(c *gin.Context) {
	sess := h.sessions.Lookup(c)
	if sess == nil || len(sess.Accounts()) == 0 {
		respondError(c, http.StatusBadRequest, "no_accounts", "Add at least one account before querying")
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("Websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	send := func(ev StreamEvent) {
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(ev); err != nil {
			h.logger.Debug("Websocket write failed", zap.String("type", ev.Type), zap.Error(err))
		}
	}

	conn.SetReadDeadline(time.Now().Add(readWait))
	var req QueryRequest
	if err := conn.ReadJSON(&req); err != nil {
		send(StreamEvent{Type: eventError, Message: "Invalid query message"})
		return
	}

	result, err := h.run(c.Request.Context(), sess, req, func(res models.AccountQueryResult) {
		send(StreamEvent{Type: eventAccount, Data: res})
	})
	if err != nil {
		msg := "Trade query failed"
		if isValidationError(err) {
			msg = err.Error()
		}
		send(StreamEvent{Type: eventError, Message: msg})
		return
	}

	send(StreamEvent{Type: eventResult, Message: result.Message, Data: result})
	conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
}
