package controllers

import (
	"academyhub/services"

	"github.com/gofiber/fiber/v2"
)

// HealthController exposes the liveness and dependency report.
type HealthController struct {
	service *services.HealthService
}

func NewHealthController(service *services.HealthService) *HealthController {
	if service == nil {
		service = services.NewHealthService("", "")
	}
	return &HealthController{service: service}
}

// GetHealthStatus answers 503 only when a dependency is critical.
func (hc *HealthController) GetHealthStatus(c *fiber.Ctx) error {
	report := hc.service.Report(c.UserContext())
	return c.Status(services.HTTPStatusForOverall(report.Status)).JSON(report)
}
