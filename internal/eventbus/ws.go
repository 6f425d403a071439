package eventbus

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// ServeWs upgrades an HTTP request to the push channel, registers a new
// Subscriber, and runs its read/write pumps until the connection closes.
// Grounded structurally on the teacher's Hub.ServeWs/Client split in
// internal/ws/hub.go.
func (h *Hub) ServeWs(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	sub := NewSubscriber(uuid.NewString())
	h.Register(sub)

	go h.writePump(sub, conn)
	h.readPump(sub, conn)
}

func (h *Hub) writePump(sub *Subscriber, conn *websocket.Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case msg, ok := <-sub.send:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *Hub) readPump(sub *Subscriber, conn *websocket.Conn) {
	defer func() {
		h.Unregister(sub)
		conn.Close()
	}()

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		h.handleInbound(sub, data)
	}
}

func (h *Hub) handleInbound(sub *Subscriber, data []byte) {
	var in Inbound
	if err := json.Unmarshal(data, &in); err != nil {
		sub.send <- encodeOrNil(ErrorEvent("malformed message", "validation"))
		return
	}

	switch in.Type {
	case InboundSubscribe, InboundUnsubscribe:
		h.Apply(sub, in.Type, in.ServerID)
	case InboundPing:
		sub.send <- encodeOrNil(PongEvent())
	default:
		sub.send <- encodeOrNil(ErrorEvent("unknown message type", "validation"))
	}
}

func encodeOrNil(msg Outbound) []byte {
	data, err := json.Marshal(msg)
	if err != nil {
		return nil
	}
	return data
}
