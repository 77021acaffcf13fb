package controllers

import (
	"academyhub/database"
	"academyhub/middleware"
	"academyhub/models"
	"academyhub/repository"
	"academyhub/utils"

	"github.com/gofiber/fiber/v2"
)

type TeacherController struct{}

type teacherRequest struct {
	UserID         *string `json:"user_id" validate:"omitempty,uuid"`
	FirstName      string  `json:"first_name" validate:"required,max=100"`
	LastName       string  `json:"last_name" validate:"omitempty,max=100"`
	Email          string  `json:"email" validate:"omitempty,email"`
	Phone          string  `json:"phone" validate:"omitempty,max=30"`
	Specialization string  `json:"specialization" validate:"omitempty,max=255"`
	HourlyRate     float64 `json:"hourly_rate" validate:"gte=0"`
	Status         string  `json:"status" validate:"omitempty,oneof=active inactive"`
}

type teacherPatch struct {
	UserID         *string  `json:"user_id" update:"nullable" validate:"omitempty,uuid"`
	FirstName      *string  `json:"first_name" validate:"omitempty,min=1,max=100"`
	LastName       *string  `json:"last_name" validate:"omitempty,max=100"`
	Email          *string  `json:"email" validate:"omitempty,email"`
	Phone          *string  `json:"phone" validate:"omitempty,max=30"`
	Specialization *string  `json:"specialization" validate:"omitempty,max=255"`
	HourlyRate     *float64 `json:"hourly_rate" validate:"omitempty,gte=0"`
	Status         *string  `json:"status" validate:"omitempty,oneof=active inactive"`
}

func (tc *TeacherController) GetTeachers(c *fiber.Ctx) error {
	sc, err := scope(c)
	if err != nil {
		return respondError(c, "list teachers", err)
	}
	opts, p := listOptions(c, "status", "user_id")
	items, total, err := repository.Teachers(database.DB).FindAll(c.UserContext(), sc, opts)
	if err != nil {
		return respondError(c, "list teachers", err)
	}
	return listResponse(c, "teachers", items, total, p)
}

func (tc *TeacherController) GetTeacher(c *fiber.Ctx) error {
	sc, err := scope(c)
	if err != nil {
		return respondError(c, "get teacher", err)
	}
	teacher, err := repository.Teachers(database.DB).FindByID(c.UserContext(), sc, c.Params("id"))
	if err != nil {
		return respondError(c, "get teacher", err)
	}
	return c.JSON(fiber.Map{"teacher": teacher})
}

func (tc *TeacherController) CreateTeacher(c *fiber.Ctx) error {
	academyID, err := middleware.RequireAcademy(c)
	if err != nil {
		return respondError(c, "create teacher", err)
	}
	var req teacherRequest
	if ok, err := parseBody(c, &req); !ok {
		return err
	}
	if req.UserID != nil {
		ok, err := repository.Users(database.DB).Exists(c.UserContext(), academyID, *req.UserID)
		if err != nil {
			return respondError(c, "create teacher", err)
		}
		if !ok {
			return badRequest(c, "User not found in this academy")
		}
	}

	teacher := models.Teacher{
		AcademyID:      academyID,
		UserID:         req.UserID,
		FirstName:      utils.SanitizeString(req.FirstName),
		LastName:       utils.SanitizeString(req.LastName),
		Email:          req.Email,
		Phone:          req.Phone,
		Specialization: req.Specialization,
		HourlyRate:     req.HourlyRate,
		Status:         req.Status,
	}
	if teacher.Status == "" {
		teacher.Status = "active"
	}
	if err := repository.Teachers(database.DB).Save(c.UserContext(), &teacher); err != nil {
		return respondError(c, "create teacher", err)
	}

	middleware.LogActivity(c, "CREATE", "teachers", teacher.ID, teacher)
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "Teacher created successfully",
		"teacher": teacher,
	})
}

func (tc *TeacherController) UpdateTeacher(c *fiber.Ctx) error {
	sc, err := scope(c)
	if err != nil {
		return respondError(c, "update teacher", err)
	}
	var patch teacherPatch
	if ok, err := parseBody(c, &patch); !ok {
		return err
	}
	teacher, err := repository.Teachers(database.DB).Update(c.UserContext(), sc, c.Params("id"), utils.UpdateMap(&patch))
	if err != nil {
		return respondError(c, "update teacher", err)
	}

	middleware.LogActivity(c, "UPDATE", "teachers", teacher.ID, patch)
	return c.JSON(fiber.Map{
		"message": "Teacher updated successfully",
		"teacher": teacher,
	})
}

// DeleteTeacher refuses while classes use the teacher. Schedules are unassigned.
func (tc *TeacherController) DeleteTeacher(c *fiber.Ctx) error {
	sc, err := scope(c)
	if err != nil {
		return respondError(c, "delete teacher", err)
	}
	id := c.Params("id")
	ctx := c.UserContext()
	if _, err := repository.Teachers(database.DB).FindByID(ctx, sc, id); err != nil {
		return respondError(c, "delete teacher", err)
	}
	classes, err := repository.Classes(database.DB).Count(ctx, sc, map[string]interface{}{"teacher_id": id})
	if err != nil {
		return respondError(c, "delete teacher", err)
	}
	if classes > 0 {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "Teacher is assigned to classes; reassign them first",
			"count": classes,
		})
	}
	if err := database.DB.WithContext(ctx).Model(&models.Schedule{}).
		Where("teacher_id = ?", id).Update("teacher_id", nil).Error; err != nil {
		return respondError(c, "delete teacher", err)
	}
	if err := repository.Teachers(database.DB).Delete(ctx, sc, id); err != nil {
		return respondError(c, "delete teacher", err)
	}

	middleware.LogActivity(c, "DELETE", "teachers", id, nil)
	return c.JSON(fiber.Map{"message": "Teacher deleted successfully"})
}
