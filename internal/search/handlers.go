package search

import (
	"time"

	"github.com/gofiber/fiber/v2"
)

func RegisterRoutes(r fiber.Router, svc *Service, authMiddleware fiber.Handler) {
	r.Get("/trips", authMiddleware, func(c *fiber.Ctx) error {
		deviceID := c.Query("device_id")
		if deviceID == "" {
			return fiber.NewError(fiber.StatusBadRequest, "device_id required")
		}

		to := time.Now()
		from := to.AddDate(0, -1, 0)
		if v := c.Query("from"); v != "" {
			parsed, err := time.Parse(time.RFC3339, v)
			if err != nil {
				return fiber.NewError(fiber.StatusBadRequest, err.Error())
			}
			from = parsed
		}
		if v := c.Query("to"); v != "" {
			parsed, err := time.Parse(time.RFC3339, v)
			if err != nil {
				return fiber.NewError(fiber.StatusBadRequest, err.Error())
			}
			to = parsed
		}

		matches, err := svc.Search(c.Context(), deviceID, c.Query("q"), from, to)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.JSON(matches)
	})
}
