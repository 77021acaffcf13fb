package controllers

import (
	"academyhub/database"
	"academyhub/services"
	"time"

	"github.com/gofiber/fiber/v2"
)

type DashboardController struct{}

// GetStats summarizes the caller's academy; an unscoped super admin gets
// totals across all academies.
func (dc *DashboardController) GetStats(c *fiber.Ctx) error {
	sc, err := scope(c)
	if err != nil {
		return respondError(c, "load dashboard", err)
	}
	stats, err := services.NewDashboardService(database.DB).Stats(c.UserContext(), sc, time.Now())
	if err != nil {
		return respondError(c, "load dashboard", err)
	}
	return c.JSON(fiber.Map{"stats": stats})
}
