package controllers

import (
	"academyhub/database"
	"academyhub/middleware"
	"academyhub/repository"
	"academyhub/services"
	"academyhub/storage"
	"academyhub/utils"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

// respondError renders err as {"error": ...} with the status its class maps to.
func respondError(c *fiber.Ctx, op string, err error) error {
	var fe *fiber.Error
	switch {
	case errors.As(err, &fe):
		return c.Status(fe.Code).JSON(fiber.Map{"error": fe.Message})
	case errors.Is(err, repository.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Record not found"})
	case errors.Is(err, repository.ErrNoFields):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "No updatable fields in request"})
	case errors.Is(err, services.ErrValidation), errors.Is(err, services.ErrNotParent):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": cleanMessage(err)})
	case errors.Is(err, storage.ErrFileTooLarge), errors.Is(err, storage.ErrFileTypeRejected):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, services.ErrScheduleConflict):
		body := fiber.Map{"error": err.Error()}
		var ce *services.ConflictError
		if errors.As(err, &ce) {
			body["conflict"] = ce.With
		}
		return c.Status(fiber.StatusConflict).JSON(body)
	case errors.Is(err, services.ErrHasDependents), errors.Is(err, services.ErrDuplicate):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": cleanMessage(err)})
	}

	status := database.HTTPStatus(err)
	if status == fiber.StatusInternalServerError {
		database.LogError(op, err)
		return c.Status(status).JSON(fiber.Map{"error": "Failed to " + op})
	}
	logrus.WithFields(database.ErrorFields(err)).WithField("op", op).Warn("request rejected by database")
	return c.Status(status).JSON(fiber.Map{"error": database.PublicMessage(err)})
}

// cleanMessage drops the sentinel prefix from wrapped service errors.
func cleanMessage(err error) string {
	msg := err.Error()
	for _, prefix := range []string{
		services.ErrValidation.Error() + ": ",
		services.ErrHasDependents.Error() + ": ",
		services.ErrDuplicate.Error() + ": ",
	} {
		msg = strings.TrimPrefix(msg, prefix)
	}
	return msg
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": msg})
}

// parseBody decodes and validates a request DTO. It writes the 400 itself and
// returns false when the caller should stop.
func parseBody(c *fiber.Ctx, dst interface{}) (bool, error) {
	if err := c.BodyParser(dst); err != nil {
		return false, badRequest(c, "Invalid request body")
	}
	if details := utils.ValidateStruct(dst); details != nil {
		return false, c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   "Validation failed",
			"details": details,
		})
	}
	return true, nil
}

// listOptions builds repository options from page/limit/sort/search and the
// given query parameters used as equality filters.
func listOptions(c *fiber.Ctx, filters ...string) (repository.ListOptions, utils.PageParams) {
	p := utils.ParsePage(c, utils.DefaultPageOpts)
	opts := repository.ListOptions{
		Filters: map[string]interface{}{},
		Search:  c.Query("search"),
		Sort:    p.Sort,
		Page:    p.Page,
		Limit:   p.Limit,
		All:     p.All,
	}
	for _, f := range filters {
		if v := strings.TrimSpace(c.Query(f)); v != "" {
			opts.Filters[f] = v
		}
	}
	return opts, p
}

func listResponse(c *fiber.Ctx, key string, items interface{}, total int64, p utils.PageParams) error {
	return c.JSON(fiber.Map{
		key:          items,
		"pagination": utils.BuildMeta(total, p),
	})
}

// scope resolves the tenant for reads; super admins may be unscoped.
func scope(c *fiber.Ctx) (string, error) {
	return middleware.AcademyScope(c)
}

// userID of the caller, nil when unauthenticated.
func userID(c *fiber.Ctx) *string {
	if claims, err := middleware.GetCurrentClaims(c); err == nil && claims.UserID != "" {
		id := claims.UserID
		return &id
	}
	return nil
}
