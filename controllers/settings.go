package controllers

import (
	"academyhub/database"
	"academyhub/middleware"
	"academyhub/services"

	"github.com/gofiber/fiber/v2"
)

// SettingsController serves the academy's timetable settings.
type SettingsController struct{}

func (sc *SettingsController) GetTimetableSettings(c *fiber.Ctx) error {
	academyID, err := middleware.RequireAcademy(c)
	if err != nil {
		return respondError(c, "load timetable settings", err)
	}
	settings, err := services.NewTimetableService(database.DB).GetOrCreate(c.UserContext(), academyID)
	if err != nil {
		return respondError(c, "load timetable settings", err)
	}
	return c.JSON(fiber.Map{"settings": settings})
}

// UpdateTimetableSettings changes only the fields present in the body.
func (sc *SettingsController) UpdateTimetableSettings(c *fiber.Ctx) error {
	academyID, err := middleware.RequireAcademy(c)
	if err != nil {
		return respondError(c, "update timetable settings", err)
	}
	var req services.UpdateTimetableInput
	if ok, err := parseBody(c, &req); !ok {
		return err
	}
	settings, err := services.NewTimetableService(database.DB).Update(c.UserContext(), academyID, req)
	if err != nil {
		return respondError(c, "update timetable settings", err)
	}

	middleware.LogActivity(c, "UPDATE", "timetable_settings", settings.ID, req)
	return c.JSON(fiber.Map{
		"message":  "Settings updated successfully",
		"settings": settings,
	})
}
