package handler

import (
	"net/http"
	"strings"

	"github.com/boddenberg/finance-assistant-bfa-go/internal/realtime"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// ============================================================
// Websocket: eventos ao vivo para o dashboard
// ============================================================

// newUpgrader aceita só as origens listadas; lista vazia aceita qualquer origem.
func newUpgrader(allowedOrigins []string) websocket.Upgrader {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[strings.TrimRight(o, "/")] = true
	}
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowed) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			return origin == "" || allowed[origin]
		},
	}
}

// GET /v1/ws
func websocketHandler(hub *realtime.Hub, allowedOrigins []string, logger *zap.Logger) http.HandlerFunc {
	upgrader := newUpgrader(allowedOrigins)
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			// o Upgrader já respondeu com o status de erro
			logger.Warn("websocket upgrade failed", zap.String("origin", r.Header.Get("Origin")), zap.Error(err))
			return
		}

		client := realtime.NewClient(conn, hub, logger)
		hub.Register(client)
		logger.Info("websocket client connected", zap.String("client_id", client.ID()), zap.Int("clients", hub.ClientCount()))

		go client.WritePump()
		go client.ReadPump()
	}
}
