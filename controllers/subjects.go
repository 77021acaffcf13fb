package controllers

import (
	"academyhub/database"
	"academyhub/middleware"
	"academyhub/models"
	"academyhub/repository"
	"academyhub/utils"
	"strings"

	"github.com/gofiber/fiber/v2"
)

type SubjectController struct{}

type subjectRequest struct {
	Name        string `json:"name" validate:"required,max=150"`
	Code        string `json:"code" validate:"omitempty,max=50"`
	Description string `json:"description"`
	Color       string `json:"color" validate:"omitempty,hexcolor"`
}

type subjectPatch struct {
	Name        *string `json:"name" validate:"omitempty,min=1,max=150"`
	Code        *string `json:"code" validate:"omitempty,max=50"`
	Description *string `json:"description"`
	Color       *string `json:"color" validate:"omitempty,hexcolor"`
}

func (sc *SubjectController) GetSubjects(c *fiber.Ctx) error {
	academy, err := scope(c)
	if err != nil {
		return respondError(c, "list subjects", err)
	}
	opts, p := listOptions(c)
	items, total, err := repository.Subjects(database.DB).FindAll(c.UserContext(), academy, opts)
	if err != nil {
		return respondError(c, "list subjects", err)
	}
	return listResponse(c, "subjects", items, total, p)
}

func (sc *SubjectController) GetSubject(c *fiber.Ctx) error {
	academy, err := scope(c)
	if err != nil {
		return respondError(c, "get subject", err)
	}
	subject, err := repository.Subjects(database.DB).FindByID(c.UserContext(), academy, c.Params("id"))
	if err != nil {
		return respondError(c, "get subject", err)
	}
	return c.JSON(fiber.Map{"subject": subject})
}

func (sc *SubjectController) CreateSubject(c *fiber.Ctx) error {
	academyID, err := middleware.RequireAcademy(c)
	if err != nil {
		return respondError(c, "create subject", err)
	}
	var req subjectRequest
	if ok, err := parseBody(c, &req); !ok {
		return err
	}
	subject := models.Subject{
		AcademyID:   academyID,
		Name:        utils.SanitizeString(req.Name),
		Code:        strings.ToUpper(strings.TrimSpace(req.Code)),
		Description: req.Description,
		Color:       req.Color,
	}
	if err := repository.Subjects(database.DB).Save(c.UserContext(), &subject); err != nil {
		return respondError(c, "create subject", err)
	}

	middleware.LogActivity(c, "CREATE", "subjects", subject.ID, subject)
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "Subject created successfully",
		"subject": subject,
	})
}

func (sc *SubjectController) UpdateSubject(c *fiber.Ctx) error {
	academy, err := scope(c)
	if err != nil {
		return respondError(c, "update subject", err)
	}
	var patch subjectPatch
	if ok, err := parseBody(c, &patch); !ok {
		return err
	}
	fields := utils.UpdateMap(&patch)
	if patch.Code != nil {
		fields["code"] = strings.ToUpper(strings.TrimSpace(*patch.Code))
	}
	subject, err := repository.Subjects(database.DB).Update(c.UserContext(), academy, c.Params("id"), fields)
	if err != nil {
		return respondError(c, "update subject", err)
	}

	middleware.LogActivity(c, "UPDATE", "subjects", subject.ID, patch)
	return c.JSON(fiber.Map{
		"message": "Subject updated successfully",
		"subject": subject,
	})
}

// DeleteSubject detaches classes from the subject before removing it.
func (sc *SubjectController) DeleteSubject(c *fiber.Ctx) error {
	academy, err := scope(c)
	if err != nil {
		return respondError(c, "delete subject", err)
	}
	id := c.Params("id")
	ctx := c.UserContext()
	if _, err := repository.Subjects(database.DB).FindByID(ctx, academy, id); err != nil {
		return respondError(c, "delete subject", err)
	}
	if err := database.DB.WithContext(ctx).Model(&models.Class{}).
		Where("subject_id = ?", id).Update("subject_id", nil).Error; err != nil {
		return respondError(c, "delete subject", err)
	}
	if err := repository.Subjects(database.DB).Delete(ctx, academy, id); err != nil {
		return respondError(c, "delete subject", err)
	}

	middleware.LogActivity(c, "DELETE", "subjects", id, nil)
	return c.JSON(fiber.Map{"message": "Subject deleted successfully"})
}
