package web

import (
	"net/http"
	"time"

	"github.com/Shiv7/trading-dashboard-sub004/internal/domain"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// handlePositionsStream pushes every open position's snapshot on connect and then
// on each push interval until the client disconnects.
func (s *Server) handlePositionsStream(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("Websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	// Reads only detect the client going away.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	if err := s.pushSnapshots(conn); err != nil {
		return
	}

	ticker := time.NewTicker(s.pushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-gone:
			return
		case <-ticker.C:
			if err := s.pushSnapshots(conn); err != nil {
				return
			}
		}
	}
}

func (s *Server) pushSnapshots(conn *websocket.Conn) error {
	positions := s.coordinator.Snapshots()
	if positions == nil {
		positions = []domain.PositionSnapshot{}
	}
	conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	if err := conn.WriteJSON(positions); err != nil {
		s.logger.Debug("Websocket write failed", zap.Error(err))
		return err
	}
	return nil
}
