package api

import (
	"net/http"
	"time"

	"realtopia/internal/game"

	"github.com/gorilla/websocket"
)

const (
	streamWriteWait  = 10 * time.Second
	streamPongWait   = 60 * time.Second
	streamPingPeriod = (streamPongWait * 9) / 10
)

// handleStream upgrades to a websocket and pushes game updates, starting
// with a full snapshot.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("stream upgrade failed", "err", err)
		return
	}
	updates, cancel := s.game.Subscribe()
	defer cancel()

	done := make(chan struct{})
	go s.readPump(conn, done)
	s.writePump(conn, updates, done)
}

func (s *Server) snapshot() []game.Update {
	st := s.game.State()
	return []game.Update{
		{Kind: game.UpdateState, State: &st},
		{Kind: game.UpdateProperties, Properties: s.game.Properties(game.FilterAll)},
		{Kind: game.UpdateEvents, Events: s.game.ActiveEvents()},
		{Kind: game.UpdateAchievements, Achievements: s.game.Achievements(false)},
	}
}

func (s *Server) writePump(conn *websocket.Conn, updates <-chan game.Update, done <-chan struct{}) {
	ticker := time.NewTicker(streamPingPeriod)
	defer func() {
		ticker.Stop()
		_ = conn.Close()
	}()

	for _, u := range s.snapshot() {
		if err := writeUpdate(conn, u); err != nil {
			return
		}
	}
	for {
		select {
		case <-done:
			return
		case u, ok := <-updates:
			if !ok {
				_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
				_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := writeUpdate(conn, u); err != nil {
				s.log.Debug("stream write failed", "err", err)
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func writeUpdate(conn *websocket.Conn, u game.Update) error {
	_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
	return conn.WriteJSON(u)
}

// readPump drains client frames so pongs and close frames are processed.
func (s *Server) readPump(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)

	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(streamPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(streamPongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
