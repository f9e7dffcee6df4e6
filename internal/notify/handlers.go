package notify

import (
	"github.com/pianoholic0120/wp1141-sub002/internal/auth"

	"github.com/gofiber/fiber/v2"
)

const (
	defaultLimit = 50
	maxLimit     = 100
)

func RegisterRoutes(r fiber.Router, d *Dispatcher, authMiddleware fiber.Handler) {
	r.Get("/", authMiddleware, func(c *fiber.Ctx) error {
		limit := c.QueryInt("limit", defaultLimit)
		if limit <= 0 {
			limit = defaultLimit
		}
		if limit > maxLimit {
			limit = maxLimit
		}
		offset := c.QueryInt("offset", 0)
		if offset < 0 {
			offset = 0
		}
		list, err := d.List(c.UserContext(), auth.CallerID(c), limit, offset)
		if err != nil {
			return err
		}
		return c.JSON(list)
	})

	r.Get("/unread-count", authMiddleware, func(c *fiber.Ctx) error {
		n, err := d.UnreadCount(c.UserContext(), auth.CallerID(c))
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{"count": n})
	})

	r.Put("/read-all", authMiddleware, func(c *fiber.Ctx) error {
		if _, err := d.MarkAllRead(c.UserContext(), auth.CallerID(c)); err != nil {
			return err
		}
		return c.JSON(fiber.Map{"success": true})
	})

	r.Put("/:id/read", authMiddleware, func(c *fiber.Ctx) error {
		n, err := d.MarkRead(c.UserContext(), c.Params("id"), auth.CallerID(c))
		if err != nil {
			return err
		}
		return c.JSON(n)
	})
}
