package services

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/cppla/moodbloom/utils"
)

const (
	chatWriteWait  = 10 * time.Second
	chatPongWait   = 60 * time.Second
	chatPingPeriod = chatPongWait * 9 / 10
	chatSendBuffer = 16
)

// ChatHub fans out new community messages to websocket subscribers of a group.
type ChatHub struct {
	mu       sync.RWMutex
	groups   map[uint]map[*chatSubscriber]struct{}
	upgrader websocket.Upgrader
}

type chatSubscriber struct {
	conn *websocket.Conn
	send chan []byte
	once sync.Once
}

func (s *chatSubscriber) close() {
	s.once.Do(func() { close(s.send) })
}

// NewChatHub creates an empty hub. checkOrigin may be nil to accept any origin.
func NewChatHub(checkOrigin func(r *http.Request) bool) *ChatHub {
	if checkOrigin == nil {
		checkOrigin = func(*http.Request) bool { return true }
	}
	return &ChatHub{
		groups: make(map[uint]map[*chatSubscriber]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin,
		},
	}
}

// Serve upgrades the request and streams messages of groupID until the client goes away.
func (h *ChatHub) Serve(w http.ResponseWriter, r *http.Request, groupID uint) error {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}

	sub := &chatSubscriber{conn: conn, send: make(chan []byte, chatSendBuffer)}
	h.add(groupID, sub)

	go h.writeLoop(sub)
	h.readLoop(groupID, sub)
	return nil
}

// Broadcast sends v as JSON to every subscriber of groupID. Subscribers whose
// buffer is full are dropped.
func (h *ChatHub) Broadcast(groupID uint, v any) {
	payload, err := json.Marshal(v)
	if err != nil {
		utils.Logger.Error("chat broadcast marshal failed", zap.Uint("group_id", groupID), zap.Error(err))
		return
	}

	h.mu.RLock()
	var slow []*chatSubscriber
	for sub := range h.groups[groupID] {
		select {
		case sub.send <- payload:
		default:
			slow = append(slow, sub)
		}
	}
	h.mu.RUnlock()

	for _, sub := range slow {
		h.remove(groupID, sub)
	}
}

// Subscribers returns the number of live connections on groupID.
func (h *ChatHub) Subscribers(groupID uint) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.groups[groupID])
}

func (h *ChatHub) add(groupID uint, sub *chatSubscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.groups[groupID] == nil {
		h.groups[groupID] = make(map[*chatSubscriber]struct{})
	}
	h.groups[groupID][sub] = struct{}{}
}

func (h *ChatHub) remove(groupID uint, sub *chatSubscriber) {
	h.mu.Lock()
	if subs, ok := h.groups[groupID]; ok {
		delete(subs, sub)
		if len(subs) == 0 {
			delete(h.groups, groupID)
		}
	}
	h.mu.Unlock()
	sub.close()
}

// readLoop only services control frames; clients publish through the REST route.
func (h *ChatHub) readLoop(groupID uint, sub *chatSubscriber) {
	defer h.remove(groupID, sub)

	sub.conn.SetReadLimit(512)
	_ = sub.conn.SetReadDeadline(time.Now().Add(chatPongWait))
	sub.conn.SetPongHandler(func(string) error {
		return sub.conn.SetReadDeadline(time.Now().Add(chatPongWait))
	})
	for {
		if _, _, err := sub.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *ChatHub) writeLoop(sub *chatSubscriber) {
	ticker := time.NewTicker(chatPingPeriod)
	defer func() {
		ticker.Stop()
		sub.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-sub.send:
			_ = sub.conn.SetWriteDeadline(time.Now().Add(chatWriteWait))
			if !ok {
				_ = sub.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := sub.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = sub.conn.SetWriteDeadline(time.Now().Add(chatWriteWait))
			if err := sub.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
