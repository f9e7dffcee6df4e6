package stream

import (
	"context"

	"github.com/pianoholic0120/wp1141-sub002/internal/apperr"
	"github.com/pianoholic0120/wp1141-sub002/internal/auth"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// ViewFunc reports whether callerID may see postID.
type ViewFunc func(ctx context.Context, postID, callerID string) (bool, error)

const channelLocal = "stream_channel"

func RegisterRoutes(r fiber.Router, hub *Hub, authMiddleware, optionalAuth fiber.Handler, canView ViewFunc) {
	r.Get("/ws/feed", upgradeOnly, func(c *fiber.Ctx) error {
		c.Locals(channelLocal, FeedChannel)
		return c.Next()
	}, serve(hub))

	r.Get("/ws/me", upgradeOnly, authMiddleware, func(c *fiber.Ctx) error {
		c.Locals(channelLocal, UserChannel(auth.CallerID(c)))
		return c.Next()
	}, serve(hub))

	r.Get("/ws/posts/:id", upgradeOnly, optionalAuth, func(c *fiber.Ctx) error {
		postID := c.Params("id")
		ok, err := canView(c.UserContext(), postID, auth.CallerID(c))
		if err != nil {
			return apperr.Upstream("visibility", err)
		}
		if !ok {
			return apperr.Forbidden("post not accessible")
		}
		c.Locals(channelLocal, PostChannel(postID))
		return c.Next()
	}, serve(hub))
}

func upgradeOnly(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}
	return c.Next()
}

func serve(hub *Hub) fiber.Handler {
	return websocket.New(func(c *websocket.Conn) {
		channel, _ := c.Locals(channelLocal).(string)
		client := hub.Register(channel)

		done := make(chan struct{})
		go func() {
			defer close(done)
			for msg := range client.Send {
				if err := c.WriteMessage(websocket.TextMessage, msg); err != nil {
					return
				}
			}
		}()

		for {
			if _, _, err := c.ReadMessage(); err != nil {
				break
			}
		}
		hub.Unregister(client)
		<-done
	})
}
