package http

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"ai-speech-dictation-service/internal/observability/logging"
	"ai-speech-dictation-service/internal/service/display"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // the page may be served from another port in local dev
	},
}

// WatchHandler streams display updates from hub to each websocket viewer
// until either side closes.
func WatchHandler(hub *display.Hub) http.HandlerFunc {
	log := logging.WithComponent("http-watch")
	return func(w http.ResponseWriter, r *http.Request) {
		watch(hub, &log, w, r)
	}
}

func watch(hub *display.Hub, log *zerolog.Logger, w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	sub := hub.Subscribe()
	defer sub.Cancel()
	log.Debug().Str("remote", r.RemoteAddr).Msg("Viewer connected")

	// Reads only detect the viewer going away and keep pongs flowing.
	closed := make(chan struct{})
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case u, ok := <-sub.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Dropped as too slow, or the hub closed.
				conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
				return
			}
			if err := conn.WriteJSON(u); err != nil {
				log.Debug().Err(err).Msg("WebSocket write failed")
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-closed:
			log.Debug().Str("remote", r.RemoteAddr).Msg("Viewer disconnected")
			return
		case <-r.Context().Done():
			return
		}
	}
}
