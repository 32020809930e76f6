package syncer

import (
	"time"

	"github.com/gofiber/fiber/v2"
)

type runRequest struct {
	DeviceIDs []string  `json:"device_ids"`
	From      time.Time `json:"from"`
	To        time.Time `json:"to"`
}

// RegisterRoutes exposes a manual trigger next to the scheduled runs.
func RegisterRoutes(r fiber.Router, runner *Runner, authMiddleware fiber.Handler) {
	r.Post("/run", authMiddleware, func(c *fiber.Ctx) error {
		var req runRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if req.To.IsZero() {
			req.To = time.Now()
		}
		if req.From.IsZero() {
			req.From = req.To.AddDate(0, 0, -1)
		}
		if !req.To.After(req.From) {
			return fiber.NewError(fiber.StatusBadRequest, "to must be after from")
		}

		result := runner.Run(c.Context(), req.DeviceIDs, req.From, req.To)
		return c.JSON(result)
	})
}
