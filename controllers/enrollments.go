package controllers

import (
	"academyhub/database"
	"academyhub/middleware"
	"academyhub/models"
	"academyhub/repository"
	"academyhub/services"
	"academyhub/utils"

	"github.com/gofiber/fiber/v2"
)

type EnrollmentController struct{}

type enrollmentRequest struct {
	StudentID  string      `json:"student_id" validate:"required,uuid"`
	ClassID    string      `json:"class_id" validate:"required,uuid"`
	EnrolledAt *utils.Date `json:"enrolled_at"`
	Status     string      `json:"status" validate:"omitempty,oneof=active completed dropped"`
}

type enrollmentPatch struct {
	Status     *string     `json:"status" validate:"omitempty,oneof=active completed dropped"`
	EnrolledAt *utils.Date `json:"enrolled_at"`
}

func (ec *EnrollmentController) GetEnrollments(c *fiber.Ctx) error {
	sc, err := scope(c)
	if err != nil {
		return respondError(c, "list enrollments", err)
	}
	opts, p := listOptions(c, "student_id", "class_id", "status")
	items, total, err := repository.Enrollments(database.DB).FindAll(c.UserContext(), sc, opts)
	if err != nil {
		return respondError(c, "list enrollments", err)
	}
	return listResponse(c, "enrollments", items, total, p)
}

func (ec *EnrollmentController) GetEnrollment(c *fiber.Ctx) error {
	sc, err := scope(c)
	if err != nil {
		return respondError(c, "get enrollment", err)
	}
	e, err := repository.Enrollments(database.DB).FindByID(c.UserContext(), sc, c.Params("id"))
	if err != nil {
		return respondError(c, "get enrollment", err)
	}
	return c.JSON(fiber.Map{"enrollment": e})
}

func (ec *EnrollmentController) CreateEnrollment(c *fiber.Ctx) error {
	academyID, err := middleware.RequireAcademy(c)
	if err != nil {
		return respondError(c, "create enrollment", err)
	}
	var req enrollmentRequest
	if ok, err := parseBody(c, &req); !ok {
		return err
	}
	e := models.Enrollment{
		AcademyID: academyID,
		StudentID: req.StudentID,
		ClassID:   req.ClassID,
		Status:    req.Status,
	}
	if t := req.EnrolledAt.Ptr(); t != nil {
		e.EnrolledAt = *t
	}
	if err := services.NewEnrollmentService(database.DB).Enroll(c.UserContext(), &e); err != nil {
		return respondError(c, "create enrollment", err)
	}

	middleware.LogActivity(c, "CREATE", "enrollments", e.ID, e)
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message":    "Student enrolled successfully",
		"enrollment": e,
	})
}

func (ec *EnrollmentController) UpdateEnrollment(c *fiber.Ctx) error {
	sc, err := scope(c)
	if err != nil {
		return respondError(c, "update enrollment", err)
	}
	var patch enrollmentPatch
	if ok, err := parseBody(c, &patch); !ok {
		return err
	}
	e, err := repository.Enrollments(database.DB).Update(c.UserContext(), sc, c.Params("id"), utils.UpdateMap(&patch))
	if err != nil {
		return respondError(c, "update enrollment", err)
	}

	middleware.LogActivity(c, "UPDATE", "enrollments", e.ID, patch)
	return c.JSON(fiber.Map{
		"message":    "Enrollment updated successfully",
		"enrollment": e,
	})
}

func (ec *EnrollmentController) DeleteEnrollment(c *fiber.Ctx) error {
	sc, err := scope(c)
	if err != nil {
		return respondError(c, "delete enrollment", err)
	}
	id := c.Params("id")
	if err := repository.Enrollments(database.DB).Delete(c.UserContext(), sc, id); err != nil {
		return respondError(c, "delete enrollment", err)
	}

	middleware.LogActivity(c, "DELETE", "enrollments", id, nil)
	return c.JSON(fiber.Map{"message": "Enrollment deleted successfully"})
}
