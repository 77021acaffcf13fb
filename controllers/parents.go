package controllers

import (
	"academyhub/database"
	"academyhub/middleware"
	"academyhub/models"
	"academyhub/repository"
	"academyhub/services"
	"academyhub/utils"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type ParentController struct{}

type parentRequest struct {
	UserID       *string `json:"user_id" validate:"omitempty,uuid"`
	FirstName    string  `json:"first_name" validate:"required,max=100"`
	LastName     string  `json:"last_name" validate:"omitempty,max=100"`
	Email        string  `json:"email" validate:"omitempty,email"`
	Phone        string  `json:"phone" validate:"omitempty,max=30"`
	Relationship string  `json:"relationship" validate:"omitempty,oneof=mother father guardian other"`
	Address      string  `json:"address" validate:"omitempty,max=500"`
}

type parentPatch struct {
	UserID       *string `json:"user_id" update:"nullable" validate:"omitempty,uuid"`
	FirstName    *string `json:"first_name" validate:"omitempty,min=1,max=100"`
	LastName     *string `json:"last_name" validate:"omitempty,max=100"`
	Email        *string `json:"email" validate:"omitempty,email"`
	Phone        *string `json:"phone" validate:"omitempty,max=30"`
	Relationship *string `json:"relationship" validate:"omitempty,oneof=mother father guardian other"`
	Address      *string `json:"address" validate:"omitempty,max=500"`
	LineUserID   *string `json:"line_user_id" validate:"omitempty,max=100"`
}

func (pc *ParentController) GetParents(c *fiber.Ctx) error {
	sc, err := scope(c)
	if err != nil {
		return respondError(c, "list parents", err)
	}
	opts, p := listOptions(c, "user_id", "phone")
	items, total, err := repository.Parents(database.DB).FindAll(c.UserContext(), sc, opts)
	if err != nil {
		return respondError(c, "list parents", err)
	}
	return listResponse(c, "parents", items, total, p)
}

func (pc *ParentController) GetParent(c *fiber.Ctx) error {
	sc, err := scope(c)
	if err != nil {
		return respondError(c, "get parent", err)
	}
	parent, err := repository.Parents(database.DB).FindByID(c.UserContext(), sc, c.Params("id"), "Students")
	if err != nil {
		return respondError(c, "get parent", err)
	}
	return c.JSON(fiber.Map{"parent": parent})
}

func (pc *ParentController) CreateParent(c *fiber.Ctx) error {
	academyID, err := middleware.RequireAcademy(c)
	if err != nil {
		return respondError(c, "create parent", err)
	}
	var req parentRequest
	if ok, err := parseBody(c, &req); !ok {
		return err
	}
	parent := models.Parent{
		AcademyID:    academyID,
		UserID:       req.UserID,
		FirstName:    utils.SanitizeString(req.FirstName),
		LastName:     utils.SanitizeString(req.LastName),
		Email:        req.Email,
		Phone:        req.Phone,
		Relationship: req.Relationship,
		Address:      req.Address,
	}
	if err := services.NewParentService(database.DB).Create(c.UserContext(), &parent); err != nil {
		return respondError(c, "create parent", err)
	}

	middleware.LogActivity(c, "CREATE", "parents", parent.ID, parent)
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "Parent created successfully",
		"parent":  parent,
	})
}

func (pc *ParentController) UpdateParent(c *fiber.Ctx) error {
	sc, err := scope(c)
	if err != nil {
		return respondError(c, "update parent", err)
	}
	var patch parentPatch
	if ok, err := parseBody(c, &patch); !ok {
		return err
	}
	parent, err := services.NewParentService(database.DB).Update(c.UserContext(), sc, c.Params("id"), utils.UpdateMap(&patch))
	if err != nil {
		return respondError(c, "update parent", err)
	}

	middleware.LogActivity(c, "UPDATE", "parents", parent.ID, patch)
	return c.JSON(fiber.Map{
		"message": "Parent updated successfully",
		"parent":  parent,
	})
}

// DeleteParent detaches the parent's students first.
func (pc *ParentController) DeleteParent(c *fiber.Ctx) error {
	sc, err := scope(c)
	if err != nil {
		return respondError(c, "delete parent", err)
	}
	id := c.Params("id")
	ctx := c.UserContext()
	if _, err := repository.Parents(database.DB).FindByID(ctx, sc, id); err != nil {
		return respondError(c, "delete parent", err)
	}
	err = database.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Student{}).Where("parent_id = ?", id).Update("parent_id", nil).Error; err != nil {
			return err
		}
		return repository.Parents(tx).Delete(ctx, sc, id)
	})
	if err != nil {
		return respondError(c, "delete parent", err)
	}

	middleware.LogActivity(c, "DELETE", "parents", id, nil)
	return c.JSON(fiber.Map{"message": "Parent deleted successfully"})
}

// RegenerateLinkCode issues a new LINE link code; the previous one stops working.
func (pc *ParentController) RegenerateLinkCode(c *fiber.Ctx) error {
	sc, err := scope(c)
	if err != nil {
		return respondError(c, "regenerate link code", err)
	}
	parent, err := services.NewParentService(database.DB).RegenerateLinkCode(c.UserContext(), sc, c.Params("id"))
	if err != nil {
		return respondError(c, "regenerate link code", err)
	}

	middleware.LogActivity(c, "UPDATE", "parents", parent.ID, fiber.Map{"link_code": "regenerated"})
	return c.JSON(fiber.Map{
		"message":   "Link code regenerated",
		"link_code": parent.LinkCode,
		"parent":    parent,
	})
}
