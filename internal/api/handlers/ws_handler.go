package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/yoockh/voiceinterview/internal/models"
	"github.com/yoockh/voiceinterview/internal/sessionstore"
	"github.com/yoockh/voiceinterview/internal/utils"
	"github.com/yoockh/voiceinterview/internal/workers"
)

// WSHandler streams a call's status updates to the browser that started it.
type WSHandler struct {
	store    sessionstore.Store
	redis    *redis.Client
	upgrader websocket.Upgrader
}

func NewWSHandler(store sessionstore.Store, rdb *redis.Client, allowedOrigins []string) *WSHandler {
	h := &WSHandler{store: store, redis: rdb}
	h.upgrader = websocket.Upgrader{CheckOrigin: originChecker(allowedOrigins)}
	return h
}

func originChecker(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		set[o] = struct{}{}
	}
	return func(r *http.Request) bool {
		_, ok := set[r.Header.Get("Origin")]
		return ok
	}
}

type wsConn struct {
	c  *websocket.Conn
	mu sync.Mutex
}

func (w *wsConn) writeText(b []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	_ = w.c.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return w.c.WriteMessage(websocket.TextMessage, b)
}

func (w *wsConn) ping() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.c.WriteControl(websocket.PingMessage, nil, time.Now().Add(10*time.Second))
}

func (h *WSHandler) CallStatusWS(c *gin.Context) {
	const op = "WSHandler.CallStatusWS"

	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	callID := c.Param("call_id")
	sess, err := h.store.Get(c.Request.Context(), callID)
	if err != nil {
		writeError(c, err)
		return
	}
	// only the caller who started the call may watch it
	if sess.UserID != userID {
		writeError(c, utils.E(utils.CodeForbidden, op, "forbidden", nil))
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// upgrade already wrote response in most cases
		return
	}
	defer conn.Close()

	wc := &wsConn{c: conn}
	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	pubsub := h.redis.Subscribe(ctx, workers.StatusChannel(callID))
	defer pubsub.Close()
	// wait for the subscription before taking the snapshot, so no update
	// can fall between the two
	if _, err := pubsub.Receive(ctx); err != nil {
		return
	}

	// current state first so late subscribers are not blind
	if cur, err := h.store.Get(ctx, callID); err == nil {
		sess = cur
	}
	if b, err := jsonStatus(sess); err == nil {
		_ = wc.writeText(b)
	}

	// reader: only drains control frames and notices the close
	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		conn.SetPongHandler(func(string) error {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			return nil
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	msgs := pubsub.Channel()

	for {
		select {
		case <-readDone:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := wc.ping(); err != nil {
				return
			}
		case m, ok := <-msgs:
			if !ok {
				return
			}
			// forward as-is (payload is a JSON StatusUpdate)
			if err := wc.writeText([]byte(m.Payload)); err != nil {
				return
			}
		}
	}
}

func jsonStatus(s *models.Session) ([]byte, error) {
	return json.Marshal(models.StatusUpdate{
		Type:                 "status",
		CallID:               s.CallID,
		Stage:                s.Stage,
		Event:                "snapshot",
		CurrentQuestionIndex: s.CurrentQuestionIndex,
		TotalQuestions:       len(s.Questions),
		Timestamp:            time.Now().UnixMilli(),
	})
}
