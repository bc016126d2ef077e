package geocode

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
)

// RegisterRoutes sets up geocoding endpoints on the given router group.
func RegisterRoutes(r fiber.Router, client *Client) {
	r.Get("/search", func(c *fiber.Ctx) error {
		query := c.Query("q")
		if query == "" {
			return fiber.NewError(fiber.StatusBadRequest, "missing query parameter q")
		}

		places, err := client.Search(c.Context(), query)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return fiber.NewError(fiber.StatusNotFound, "location not found")
			}
			return fiber.NewError(fiber.StatusBadGateway, "geocoding service unavailable")
		}
		return c.JSON(fiber.Map{"places": places})
	})

	r.Get("/reverse", func(c *fiber.Ctx) error {
		lat, err := strconv.ParseFloat(c.Query("lat"), 64)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid lat")
		}
		lon, err := strconv.ParseFloat(c.Query("lon"), 64)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid lon")
		}

		place, err := client.Reverse(c.Context(), lat, lon)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return fiber.NewError(fiber.StatusNotFound, "no address at coordinate")
			}
			return fiber.NewError(fiber.StatusBadGateway, "geocoding service unavailable")
		}
		return c.JSON(place)
	})
}
