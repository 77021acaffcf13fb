package controllers

import (
	"academyhub/database"
	"academyhub/middleware"
	"academyhub/models"
	"academyhub/repository"
	"academyhub/services"
	"academyhub/utils"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
)

type ScheduleController struct{}

// scheduleRequest takes classroom_id or a free-typed classroom. Teacher and
// classroom default to the class's own.
type scheduleRequest struct {
	ClassID       string      `json:"class_id" validate:"required,uuid"`
	TeacherID     *string     `json:"teacher_id" validate:"omitempty,uuid"`
	ClassroomID   *string     `json:"classroom_id" validate:"omitempty,uuid"`
	Classroom     string      `json:"classroom" validate:"omitempty,max=100"`
	DayOfWeek     *int        `json:"day_of_week" validate:"required,min=0,max=6"`
	StartTime     string      `json:"start_time" validate:"required,clock"`
	EndTime       string      `json:"end_time" validate:"required,clock"`
	EffectiveFrom *utils.Date `json:"effective_from"`
	EffectiveTo   *utils.Date `json:"effective_to"`
	Notes         string      `json:"notes"`
}

type schedulePatch struct {
	TeacherID     *string     `json:"teacher_id" update:"nullable" validate:"omitempty,uuid"`
	ClassroomID   *string     `json:"classroom_id" update:"nullable" validate:"omitempty,uuid"`
	DayOfWeek     *int        `json:"day_of_week" validate:"omitempty,min=0,max=6"`
	StartTime     *string     `json:"start_time" validate:"omitempty,clock"`
	EndTime       *string     `json:"end_time" validate:"omitempty,clock"`
	EffectiveFrom *utils.Date `json:"effective_from"`
	EffectiveTo   *utils.Date `json:"effective_to"`
	Notes         *string     `json:"notes"`
}

func (r scheduleRequest) toModel(academyID string) models.Schedule {
	return models.Schedule{
		AcademyID:     academyID,
		ClassID:       r.ClassID,
		TeacherID:     r.TeacherID,
		ClassroomID:   r.ClassroomID,
		DayOfWeek:     *r.DayOfWeek,
		StartTime:     r.StartTime,
		EndTime:       r.EndTime,
		EffectiveFrom: r.EffectiveFrom.Ptr(),
		EffectiveTo:   r.EffectiveTo.Ptr(),
		Notes:         r.Notes,
	}
}

func (sc *ScheduleController) GetSchedules(c *fiber.Ctx) error {
	academy, err := scope(c)
	if err != nil {
		return respondError(c, "list schedules", err)
	}
	opts, p := listOptions(c, "class_id", "teacher_id", "classroom_id", "day_of_week")
	items, total, err := repository.Schedules(database.DB).FindAll(c.UserContext(), academy, opts)
	if err != nil {
		return respondError(c, "list schedules", err)
	}
	return listResponse(c, "schedules", items, total, p)
}

func (sc *ScheduleController) GetSchedule(c *fiber.Ctx) error {
	academy, err := scope(c)
	if err != nil {
		return respondError(c, "get schedule", err)
	}
	schedule, err := repository.Schedules(database.DB).FindByID(c.UserContext(), academy, c.Params("id"))
	if err != nil {
		return respondError(c, "get schedule", err)
	}
	return c.JSON(fiber.Map{"schedule": schedule})
}

// CreateSchedule answers 409 with the clashing schedule when the classroom or
// teacher is already booked.
func (sc *ScheduleController) CreateSchedule(c *fiber.Ctx) error {
	academyID, err := middleware.RequireAcademy(c)
	if err != nil {
		return respondError(c, "create schedule", err)
	}
	var req scheduleRequest
	if ok, err := parseBody(c, &req); !ok {
		return err
	}
	schedule := req.toModel(academyID)
	ctx := c.UserContext()
	if err := services.NewScheduleService(database.DB).Create(ctx, &schedule, req.Classroom); err != nil {
		return respondError(c, "create schedule", err)
	}
	created, err := repository.Schedules(database.DB).FindByID(ctx, academyID, schedule.ID)
	if err != nil {
		created = &schedule
	}

	middleware.LogActivity(c, "CREATE", "schedules", schedule.ID, schedule)
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message":  "Schedule created successfully",
		"schedule": created,
	})
}

func (sc *ScheduleController) UpdateSchedule(c *fiber.Ctx) error {
	academy, err := scope(c)
	if err != nil {
		return respondError(c, "update schedule", err)
	}
	var patch schedulePatch
	if ok, err := parseBody(c, &patch); !ok {
		return err
	}
	fields := utils.UpdateMap(&patch)
	schedule, err := services.NewScheduleService(database.DB).Update(c.UserContext(), academy, c.Params("id"), fields)
	if err != nil {
		return respondError(c, "update schedule", err)
	}

	middleware.LogActivity(c, "UPDATE", "schedules", schedule.ID, fields)
	return c.JSON(fiber.Map{
		"message":  "Schedule updated successfully",
		"schedule": schedule,
	})
}

func (sc *ScheduleController) DeleteSchedule(c *fiber.Ctx) error {
	academy, err := scope(c)
	if err != nil {
		return respondError(c, "delete schedule", err)
	}
	id := c.Params("id")
	if err := repository.Schedules(database.DB).Delete(c.UserContext(), academy, id); err != nil {
		return respondError(c, "delete schedule", err)
	}

	middleware.LogActivity(c, "DELETE", "schedules", id, nil)
	return c.JSON(fiber.Map{"message": "Schedule deleted successfully"})
}

// CheckConflict dry-runs a schedule without saving it.
func (sc *ScheduleController) CheckConflict(c *fiber.Ctx) error {
	academyID, err := middleware.RequireAcademy(c)
	if err != nil {
		return respondError(c, "check conflict", err)
	}
	var req struct {
		scheduleRequest
		ExcludeID string `json:"exclude_id" validate:"omitempty,uuid"`
	}
	if ok, err := parseBody(c, &req); !ok {
		return err
	}
	schedule := req.toModel(academyID)
	schedule.ID = req.ExcludeID

	svc := services.NewScheduleService(database.DB)
	ctx := c.UserContext()
	if err := svc.Prepare(ctx, &schedule, ""); err != nil {
		return respondError(c, "check conflict", err)
	}
	err = svc.CheckConflict(ctx, &schedule)
	var ce *services.ConflictError
	switch {
	case err == nil:
		return c.JSON(fiber.Map{"has_conflict": false})
	case errors.As(err, &ce):
		return c.JSON(fiber.Map{
			"has_conflict": true,
			"resource":     ce.Resource,
			"conflict":     ce.With,
		})
	}
	return respondError(c, "check conflict", err)
}

// GetTimetable returns the weekly grid with the academy's timetable settings.
func (sc *ScheduleController) GetTimetable(c *fiber.Ctx) error {
	academyID, err := middleware.RequireAcademy(c)
	if err != nil {
		return respondError(c, "get timetable", err)
	}
	filters := map[string]interface{}{}
	for _, f := range []string{"class_id", "teacher_id", "classroom_id"} {
		if v := c.Query(f); v != "" {
			filters[f] = v
		}
	}
	ctx := c.UserContext()
	days, err := services.NewScheduleService(database.DB).Timetable(ctx, academyID, filters)
	if err != nil {
		return respondError(c, "get timetable", err)
	}
	settings, err := services.NewTimetableService(database.DB).GetOrCreate(ctx, academyID)
	if err != nil {
		return respondError(c, "get timetable", err)
	}
	return c.JSON(fiber.Map{
		"days":     days,
		"settings": settings,
	})
}

// GetSessions lists sessions held on ?date= (default today in academy time).
func (sc *ScheduleController) GetSessions(c *fiber.Ctx) error {
	academyID, err := middleware.RequireAcademy(c)
	if err != nil {
		return respondError(c, "get sessions", err)
	}
	ctx := c.UserContext()
	loc := services.NewPaymentService(database.DB).Location(ctx, academyID)
	day := time.Now().In(loc)
	if v := c.Query("date"); v != "" {
		if day, err = utils.ParseDate(v, loc); err != nil {
			return badRequest(c, err.Error())
		}
	}
	sessions, err := services.NewScheduleService(database.DB).SessionsOn(ctx, academyID, day)
	if err != nil {
		return respondError(c, "get sessions", err)
	}
	return c.JSON(fiber.Map{
		"date":     day.Format("2006-01-02"),
		"sessions": sessions,
	})
}
