package dashboard

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/HarshModi2005/realityspiral/pkg/logger"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// handleWS upgrades the connection and forwards every run event as a text
// frame. Client frames are read only to notice pongs and close.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.ErrorCF("dashboard", "Upgrade failed", map[string]any{"error": err.Error()})
		return
	}

	ch := s.hub.subscribe()
	done := make(chan struct{})
	go func() {
		defer close(done)
		readPump(conn)
	}()

	logger.DebugCF("dashboard", "Websocket client connected", map[string]any{
		"remote":  r.RemoteAddr,
		"clients": s.hub.ClientCount(),
	})
	writePump(conn, ch, done)

	s.hub.unsubscribe(ch)
	_ = conn.Close()
	<-done
}

func readPump(conn *websocket.Conn) {
	conn.SetReadLimit(4096)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func writePump(conn *websocket.Conn, ch <-chan []byte, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case data, ok := <-ch:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
