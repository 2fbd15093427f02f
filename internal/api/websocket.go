package api

import (
	"github.com/fathima-sithara/teamchat/internal/apperr"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// upgrade authenticates the caller before the websocket handshake.
// Expected ws URL: /ws?token=<jwt>, or the session cookie.
func (s *Server) upgrade(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}
	uid := s.identify(c)
	if uid == "" {
		return apperr.ErrUnauthorized
	}
	c.Locals(localUserID, uid)
	return c.Next()
}

func (s *Server) wsHandler() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		uid, _ := conn.Locals(localUserID).(string)
		s.hub.Serve(conn, uid)
	})
}
