package controllers

import (
	"academyhub/database"
	"academyhub/middleware"
	"academyhub/models"
	"academyhub/repository"
	"academyhub/services"
	"academyhub/utils"
	"time"

	"github.com/gofiber/fiber/v2"
)

type AttendanceController struct{}

type attendanceRequest struct {
	StudentID   string     `json:"student_id" validate:"required,uuid"`
	ClassID     string     `json:"class_id" validate:"required,uuid"`
	Date        utils.Date `json:"date" validate:"required"`
	Status      string     `json:"status" validate:"required,oneof=present absent late excused"`
	ScheduleID  *string    `json:"schedule_id" validate:"omitempty,uuid"`
	CheckInTime *time.Time `json:"check_in_time"`
	Notes       string     `json:"notes"`
}

type attendancePatch struct {
	Status      *string    `json:"status" validate:"omitempty,oneof=present absent late excused"`
	CheckInTime *time.Time `json:"check_in_time"`
	Notes       *string    `json:"notes"`
	ScheduleID  *string    `json:"schedule_id" update:"nullable" validate:"omitempty,uuid"`
}

type bulkAttendanceRequest struct {
	ClassID    string               `json:"class_id" validate:"required,uuid"`
	Date       utils.Date           `json:"date" validate:"required"`
	ScheduleID *string              `json:"schedule_id" validate:"omitempty,uuid"`
	Entries    []services.BulkEntry `json:"entries" validate:"required,min=1,max=200,dive"`
}

func (ac *AttendanceController) GetAttendance(c *fiber.Ctx) error {
	sc, err := scope(c)
	if err != nil {
		return respondError(c, "list attendance", err)
	}
	opts, p := listOptions(c, "student_id", "class_id", "status", "schedule_id")
	if v := c.Query("date"); v != "" {
		day, err := utils.ParseDate(v, time.UTC)
		if err != nil {
			return badRequest(c, err.Error())
		}
		opts.Filters["date"] = models.DateOnly(day)
	}
	items, total, err := repository.Attendance(database.DB).FindAll(c.UserContext(), sc, opts)
	if err != nil {
		return respondError(c, "list attendance", err)
	}
	return listResponse(c, "attendance", items, total, p)
}

func (ac *AttendanceController) GetAttendanceRecord(c *fiber.Ctx) error {
	sc, err := scope(c)
	if err != nil {
		return respondError(c, "get attendance", err)
	}
	rec, err := repository.Attendance(database.DB).FindByID(c.UserContext(), sc, c.Params("id"))
	if err != nil {
		return respondError(c, "get attendance", err)
	}
	return c.JSON(fiber.Map{"attendance": rec})
}

// CreateAttendance records one mark. A second mark for the same student, class
// and day is a 409.
func (ac *AttendanceController) CreateAttendance(c *fiber.Ctx) error {
	academyID, err := middleware.RequireAcademy(c)
	if err != nil {
		return respondError(c, "create attendance", err)
	}
	var req attendanceRequest
	if ok, err := parseBody(c, &req); !ok {
		return err
	}
	rec := models.AttendanceRecord{
		AcademyID:   academyID,
		StudentID:   req.StudentID,
		ClassID:     req.ClassID,
		Date:        req.Date.Std(),
		Status:      req.Status,
		ScheduleID:  req.ScheduleID,
		CheckInTime: req.CheckInTime,
		Notes:       req.Notes,
		MarkedBy:    userID(c),
	}
	if err := services.NewAttendanceService(database.DB).Save(c.UserContext(), &rec); err != nil {
		return respondError(c, "create attendance", err)
	}

	middleware.LogActivity(c, "CREATE", "attendance", rec.ID, rec)
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message":    "Attendance recorded successfully",
		"attendance": rec,
	})
}

// BulkMarkAttendance upserts a whole class register for one day.
func (ac *AttendanceController) BulkMarkAttendance(c *fiber.Ctx) error {
	academyID, err := middleware.RequireAcademy(c)
	if err != nil {
		return respondError(c, "bulk attendance", err)
	}
	var req bulkAttendanceRequest
	if ok, err := parseBody(c, &req); !ok {
		return err
	}
	records, err := services.NewAttendanceService(database.DB).BulkMark(
		c.UserContext(), academyID, req.ClassID, req.Date.Std(), req.ScheduleID, userID(c), req.Entries)
	if err != nil {
		return respondError(c, "bulk attendance", err)
	}

	middleware.LogActivity(c, "CREATE", "attendance", req.ClassID, fiber.Map{
		"date":    req.Date.Format("2006-01-02"),
		"entries": len(req.Entries),
	})
	return c.JSON(fiber.Map{
		"message":    "Attendance saved",
		"attendance": records,
		"total":      len(records),
	})
}

func (ac *AttendanceController) UpdateAttendance(c *fiber.Ctx) error {
	sc, err := scope(c)
	if err != nil {
		return respondError(c, "update attendance", err)
	}
	var patch attendancePatch
	if ok, err := parseBody(c, &patch); !ok {
		return err
	}
	fields := utils.UpdateMap(&patch)
	if by := userID(c); by != nil {
		fields["marked_by"] = *by
	}
	rec, err := repository.Attendance(database.DB).Update(c.UserContext(), sc, c.Params("id"), fields)
	if err != nil {
		return respondError(c, "update attendance", err)
	}

	middleware.LogActivity(c, "UPDATE", "attendance", rec.ID, patch)
	return c.JSON(fiber.Map{
		"message":    "Attendance updated successfully",
		"attendance": rec,
	})
}

func (ac *AttendanceController) DeleteAttendance(c *fiber.Ctx) error {
	sc, err := scope(c)
	if err != nil {
		return respondError(c, "delete attendance", err)
	}
	id := c.Params("id")
	if err := repository.Attendance(database.DB).Delete(c.UserContext(), sc, id); err != nil {
		return respondError(c, "delete attendance", err)
	}

	middleware.LogActivity(c, "DELETE", "attendance", id, nil)
	return c.JSON(fiber.Map{"message": "Attendance deleted successfully"})
}

// GetSummary counts statuses for ?student_id or ?class_id over from..to.
func (ac *AttendanceController) GetSummary(c *fiber.Ctx) error {
	academyID, err := middleware.RequireAcademy(c)
	if err != nil {
		return respondError(c, "attendance summary", err)
	}
	studentID, classID := c.Query("student_id"), c.Query("class_id")
	if studentID == "" && classID == "" {
		return badRequest(c, "student_id or class_id is required")
	}
	ctx := c.UserContext()
	from, to, err := dateRange(c, services.NewPaymentService(database.DB).Location(ctx, academyID))
	if err != nil {
		return respondError(c, "attendance summary", err)
	}
	sum, err := services.NewAttendanceService(database.DB).Summary(ctx, academyID, studentID, classID, from, to)
	if err != nil {
		return respondError(c, "attendance summary", err)
	}
	return c.JSON(fiber.Map{"summary": sum})
}
