package handler

import (
	"github.com/Mussapinga011/PartQuip-sub000/internal/realtime"

	"github.com/coder/websocket"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// Realtime upgrades GET /v1/realtime to a websocket and streams change
// events until the client leaves.
func Realtime(hub *realtime.Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		conn, err := websocket.Accept(c.Writer, c.Request, &websocket.AcceptOptions{
			OriginPatterns: []string{"*"},
		})
		if err != nil {
			log.Warn().Err(err).Msg("realtime: upgrade failed")
			return
		}
		hub.Serve(c.Request.Context(), conn)
	}
}
