package transport

import (
	"net/http"

	"github.com/aqaranewbiz/mysql-server/internal/logger"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
}

// websocketHandler answers every frame on the socket it arrived on, one at a
// time and in order.
func websocketHandler(d Dispatcher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Warn("WebSocket upgrade failed", map[string]interface{}{"error": err.Error()})
			return
		}
		defer conn.Close()
		conn.SetReadLimit(maxFrameSize)

		ctx := r.Context()
		for {
			msgType, message, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					logger.Warn("WebSocket closed unexpectedly", map[string]interface{}{"error": err.Error()})
				}
				return
			}
			if msgType != websocket.TextMessage && msgType != websocket.BinaryMessage {
				continue
			}

			if err := conn.WriteMessage(websocket.TextMessage, d.Handle(ctx, message)); err != nil {
				logger.Warn("WebSocket write failed", map[string]interface{}{"error": err.Error()})
				return
			}
		}
	}
}
