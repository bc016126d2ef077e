package route

import (
	"context"
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
)

// PrefillFunc fills unset preference fields from the runner's stored profile
// before validation. A nil func leaves the request untouched.
type PrefillFunc func(ctx context.Context, userID string, prefs Preferences) Preferences

// RegisterRoutes sets up route generation endpoints. All endpoints require
// the auth middleware to have placed user_id in locals.
func RegisterRoutes(r fiber.Router, orchestrator *Orchestrator, store BatchStore, authMiddleware fiber.Handler, prefill PrefillFunc) {
	r.Post("/generate", authMiddleware, func(c *fiber.Ctx) error {
		userID, ok := c.Locals("user_id").(string)
		if !ok || userID == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "missing user context")
		}

		var prefs Preferences
		if err := c.BodyParser(&prefs); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
		if prefill != nil {
			prefs = prefill(c.Context(), userID, prefs)
		}

		batch, err := orchestrator.Generate(c.Context(), userID, prefs)
		if err != nil {
			var validationErr *ValidationError
			if errors.As(err, &validationErr) {
				return fiber.NewError(fiber.StatusBadRequest, validationErr.Error())
			}
			if errors.Is(err, ErrNoCandidates) {
				return fiber.NewError(fiber.StatusUnprocessableEntity, "no routable candidates for these preferences")
			}
			return fiber.NewError(fiber.StatusInternalServerError, "route generation failed")
		}
		return c.Status(fiber.StatusCreated).JSON(batch)
	})

	r.Get("/:id", authMiddleware, func(c *fiber.Ctx) error {
		batch, err := store.GetBatch(c.Context(), c.Params("id"))
		if err != nil {
			if errors.Is(err, ErrBatchNotFound) {
				return fiber.NewError(fiber.StatusNotFound, "batch not found")
			}
			return fiber.NewError(fiber.StatusInternalServerError, "failed to load batch")
		}
		return c.JSON(batch)
	})

	r.Post("/:id/enhance", authMiddleware, func(c *fiber.Ctx) error {
		var body struct {
			CandidateID string `json:"candidate_id"`
		}
		if err := c.BodyParser(&body); err != nil || body.CandidateID == "" {
			return fiber.NewError(fiber.StatusBadRequest, "candidate_id is required")
		}

		candidate, err := orchestrator.Enhance(c.Context(), c.Params("id"), body.CandidateID)
		if err != nil {
			if errors.Is(err, ErrBatchNotFound) {
				return fiber.NewError(fiber.StatusNotFound, "batch not found")
			}
			return fiber.NewError(fiber.StatusBadGateway, "enhancement failed")
		}
		return c.JSON(candidate)
	})

	r.Get("/", authMiddleware, func(c *fiber.Ctx) error {
		userID, ok := c.Locals("user_id").(string)
		if !ok || userID == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "missing user context")
		}

		limit, _ := strconv.Atoi(c.Query("limit", "20"))
		batches, err := store.ListBatches(c.Context(), userID, limit)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "failed to list batches")
		}
		return c.JSON(fiber.Map{"batches": batches})
	})
}
