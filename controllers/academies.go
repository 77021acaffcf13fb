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

type AcademyController struct{}

type academyRequest struct {
	Name      string `json:"name" validate:"required,max=255"`
	Code      string `json:"code" validate:"required,max=50"`
	Address   string `json:"address" validate:"omitempty,max=500"`
	Phone     string `json:"phone" validate:"omitempty,max=30"`
	Email     string `json:"email" validate:"omitempty,email"`
	OwnerName string `json:"owner_name" validate:"omitempty,max=200"`
	LogoURL   string `json:"logo_url" validate:"omitempty,url"`
	Status    string `json:"status" validate:"omitempty,oneof=active inactive"`
}

type academyPatch struct {
	Name      *string `json:"name" validate:"omitempty,min=1,max=255"`
	Code      *string `json:"code" validate:"omitempty,min=1,max=50"`
	Address   *string `json:"address" validate:"omitempty,max=500"`
	Phone     *string `json:"phone" validate:"omitempty,max=30"`
	Email     *string `json:"email" validate:"omitempty,email"`
	OwnerName *string `json:"owner_name" validate:"omitempty,max=200"`
	LogoURL   *string `json:"logo_url" validate:"omitempty,url"`
	Status    *string `json:"status" validate:"omitempty,oneof=active inactive"`
}

// GetAcademies lists academies. Academy members only see their own.
func (ac *AcademyController) GetAcademies(c *fiber.Ctx) error {
	sc, err := scope(c)
	if err != nil {
		return respondError(c, "list academies", err)
	}
	opts, p := listOptions(c, "status", "code")
	items, total, err := repository.Academies(database.DB).FindAll(c.UserContext(), sc, opts)
	if err != nil {
		return respondError(c, "list academies", err)
	}
	return listResponse(c, "academies", items, total, p)
}

func (ac *AcademyController) GetAcademy(c *fiber.Ctx) error {
	sc, err := scope(c)
	if err != nil {
		return respondError(c, "get academy", err)
	}
	academy, err := repository.Academies(database.DB).FindByID(c.UserContext(), sc, c.Params("id"))
	if err != nil {
		return respondError(c, "get academy", err)
	}
	return c.JSON(fiber.Map{"academy": academy})
}

// CreateAcademy is for platform operators; owners sign up through /auth/register-academy.
func (ac *AcademyController) CreateAcademy(c *fiber.Ctx) error {
	var req academyRequest
	if ok, err := parseBody(c, &req); !ok {
		return err
	}
	academy := models.Academy{
		Name:      utils.SanitizeString(req.Name),
		Code:      req.Code,
		Address:   req.Address,
		Phone:     req.Phone,
		Email:     req.Email,
		OwnerName: req.OwnerName,
		LogoURL:   req.LogoURL,
		Status:    req.Status,
	}
	if err := services.NewAcademyService(database.DB).Create(c.UserContext(), &academy); err != nil {
		return respondError(c, "create academy", err)
	}

	middleware.LogActivity(c, "CREATE", "academies", academy.ID, academy)
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "Academy created successfully",
		"academy": academy,
	})
}

func (ac *AcademyController) UpdateAcademy(c *fiber.Ctx) error {
	sc, err := scope(c)
	if err != nil {
		return respondError(c, "update academy", err)
	}
	id := c.Params("id")
	if sc != "" && sc != id {
		return respondError(c, "update academy", repository.ErrNotFound)
	}

	var patch academyPatch
	if ok, err := parseBody(c, &patch); !ok {
		return err
	}
	claims, _ := middleware.GetCurrentClaims(c)
	if patch.Status != nil && (claims == nil || claims.Role != models.RoleSuperAdmin) {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Only platform admins may change academy status"})
	}

	academy, err := services.NewAcademyService(database.DB).Update(c.UserContext(), id, utils.UpdateMap(&patch))
	if err != nil {
		return respondError(c, "update academy", err)
	}

	middleware.LogActivity(c, "UPDATE", "academies", academy.ID, patch)
	return c.JSON(fiber.Map{
		"message": "Academy updated successfully",
		"academy": academy,
	})
}

func (ac *AcademyController) DeleteAcademy(c *fiber.Ctx) error {
	id := c.Params("id")
	if err := services.NewAcademyService(database.DB).Delete(c.UserContext(), id); err != nil {
		return respondError(c, "delete academy", err)
	}

	middleware.LogActivity(c, "DELETE", "academies", id, nil)
	return c.JSON(fiber.Map{"message": "Academy deleted successfully"})
}
