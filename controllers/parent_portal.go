package controllers

import (
	"academyhub/database"
	"academyhub/models"
	"academyhub/services"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
)

// ParentPortalController serves /api/parent for users with the parent role.
// Every lookup goes through the caller's own parent profile.
type ParentPortalController struct{}

func (pc *ParentPortalController) profile(c *fiber.Ctx) (*services.ParentService, *models.Parent, error) {
	uid := userID(c)
	if uid == nil {
		return nil, nil, fiber.NewError(fiber.StatusUnauthorized, "User not found")
	}
	svc := services.NewParentService(database.DB)
	parent, err := svc.ForUser(c.UserContext(), *uid)
	if err != nil {
		return nil, nil, err
	}
	return svc, parent, nil
}

func (pc *ParentPortalController) GetProfile(c *fiber.Ctx) error {
	_, parent, err := pc.profile(c)
	if err != nil {
		return respondError(c, "load parent profile", err)
	}
	return c.JSON(fiber.Map{"parent": parent})
}

func (pc *ParentPortalController) GetChildren(c *fiber.Ctx) error {
	svc, parent, err := pc.profile(c)
	if err != nil {
		return respondError(c, "list children", err)
	}
	children, err := svc.Children(c.UserContext(), parent)
	if err != nil {
		return respondError(c, "list children", err)
	}
	return c.JSON(fiber.Map{"children": children})
}

func (pc *ParentPortalController) GetChild(c *fiber.Ctx) error {
	svc, parent, err := pc.profile(c)
	if err != nil {
		return respondError(c, "get child", err)
	}
	child, err := svc.Child(c.UserContext(), parent, c.Params("id"))
	if err != nil {
		return respondError(c, "get child", err)
	}
	return c.JSON(fiber.Map{"child": child})
}

// GetChildAttendance covers the last ?days (default 30, max 365).
func (pc *ParentPortalController) GetChildAttendance(c *fiber.Ctx) error {
	svc, parent, err := pc.profile(c)
	if err != nil {
		return respondError(c, "get child attendance", err)
	}
	days, err := strconv.Atoi(c.Query("days", "30"))
	if err != nil || days < 1 || days > 365 {
		return badRequest(c, "days must be between 1 and 365")
	}
	since := time.Now().UTC().AddDate(0, 0, -days)
	records, err := svc.ChildAttendance(c.UserContext(), parent, c.Params("id"), since)
	if err != nil {
		return respondError(c, "get child attendance", err)
	}
	return c.JSON(fiber.Map{"attendance": records, "days": days})
}

func (pc *ParentPortalController) GetChildPayments(c *fiber.Ctx) error {
	svc, parent, err := pc.profile(c)
	if err != nil {
		return respondError(c, "get child payments", err)
	}
	payments, err := svc.ChildPayments(c.UserContext(), parent, c.Params("id"))
	if err != nil {
		return respondError(c, "get child payments", err)
	}
	return c.JSON(fiber.Map{"payments": payments})
}

func (pc *ParentPortalController) GetChildSchedule(c *fiber.Ctx) error {
	svc, parent, err := pc.profile(c)
	if err != nil {
		return respondError(c, "get child schedule", err)
	}
	schedules, err := svc.ChildSchedule(c.UserContext(), parent, c.Params("id"))
	if err != nil {
		return respondError(c, "get child schedule", err)
	}
	return c.JSON(fiber.Map{"schedules": schedules})
}
