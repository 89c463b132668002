package handlers

import "github.com/gofiber/fiber/v2"

// CronAccrueEarnings is the externally scheduled entry point; the route is
// guarded by middleware.CronKey.
func (h *Handler) CronAccrueEarnings(c *fiber.Ctx) error {
	return h.runAccrual(c)
}
