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

type UserController struct{}

type createUserRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
	Name     string `json:"name" validate:"required,max=200"`
	Phone    string `json:"phone" validate:"omitempty,max=30"`
	Role     string `json:"role" validate:"required,oneof=owner admin teacher parent"`
}

type userPatch struct {
	Name     *string `json:"name" validate:"omitempty,min=1,max=200"`
	Phone    *string `json:"phone" validate:"omitempty,max=30"`
	Role     *string `json:"role" validate:"omitempty,oneof=owner admin teacher parent"`
	Status   *string `json:"status" validate:"omitempty,oneof=active inactive suspended"`
	Password *string `json:"password" validate:"omitempty,min=8"`
}

func toUserDTOs(users []models.User) []utils.UserDTO {
	out := make([]utils.UserDTO, 0, len(users))
	for _, u := range users {
		out = append(out, utils.ToUserDTO(u))
	}
	return out
}

func (uc *UserController) GetUsers(c *fiber.Ctx) error {
	sc, err := scope(c)
	if err != nil {
		return respondError(c, "list users", err)
	}
	opts, p := listOptions(c, "role", "status")
	users, total, err := repository.Users(database.DB).FindAll(c.UserContext(), sc, opts)
	if err != nil {
		return respondError(c, "list users", err)
	}
	return listResponse(c, "users", toUserDTOs(users), total, p)
}

func (uc *UserController) GetUser(c *fiber.Ctx) error {
	sc, err := scope(c)
	if err != nil {
		return respondError(c, "get user", err)
	}
	user, err := repository.Users(database.DB).FindByID(c.UserContext(), sc, c.Params("id"))
	if err != nil {
		return respondError(c, "get user", err)
	}
	return c.JSON(fiber.Map{"user": utils.ToUserDTO(*user)})
}

// CreateUser adds an account to the caller's academy.
func (uc *UserController) CreateUser(c *fiber.Ctx) error {
	academyID, err := middleware.RequireAcademy(c)
	if err != nil {
		return respondError(c, "create user", err)
	}
	var req createUserRequest
	if ok, err := parseBody(c, &req); !ok {
		return err
	}
	claims, _ := middleware.GetCurrentClaims(c)
	if req.Role == models.RoleOwner && claims != nil && claims.Role == models.RoleAdmin {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Admins cannot create owners"})
	}

	hash, err := utils.HashPassword(req.Password)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to hash password"})
	}
	user := models.User{
		AcademyID: &academyID,
		Email:     strings.ToLower(strings.TrimSpace(req.Email)),
		Password:  hash,
		Name:      req.Name,
		Phone:     req.Phone,
		Role:      req.Role,
		Status:    "active",
	}
	if err := repository.Users(database.DB).Save(c.UserContext(), &user); err != nil {
		return respondError(c, "create user", err)
	}

	middleware.LogActivity(c, "CREATE", "users", user.ID, fiber.Map{"email": user.Email, "role": user.Role})
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "User created successfully",
		"user":    utils.ToUserDTO(user),
	})
}

func (uc *UserController) UpdateUser(c *fiber.Ctx) error {
	sc, err := scope(c)
	if err != nil {
		return respondError(c, "update user", err)
	}
	var patch userPatch
	if ok, err := parseBody(c, &patch); !ok {
		return err
	}
	fields := utils.UpdateMap(&patch)
	if patch.Password != nil {
		hash, err := utils.HashPassword(*patch.Password)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to hash password"})
		}
		fields["password"] = hash
	}

	user, err := repository.Users(database.DB).Update(c.UserContext(), sc, c.Params("id"), fields)
	if err != nil {
		return respondError(c, "update user", err)
	}

	delete(fields, "password")
	middleware.LogActivity(c, "UPDATE", "users", user.ID, fields)
	return c.JSON(fiber.Map{
		"message": "User updated successfully",
		"user":    utils.ToUserDTO(*user),
	})
}

// DeleteUser deactivates instead of deleting; rows elsewhere keep pointing at the account.
func (uc *UserController) DeleteUser(c *fiber.Ctx) error {
	sc, err := scope(c)
	if err != nil {
		return respondError(c, "delete user", err)
	}
	id := c.Params("id")
	if current := userID(c); current != nil && *current == id {
		return badRequest(c, "You cannot delete your own account")
	}
	if _, err := repository.Users(database.DB).Update(c.UserContext(), sc, id, map[string]interface{}{"status": "inactive"}); err != nil {
		return respondError(c, "delete user", err)
	}

	middleware.LogActivity(c, "DELETE", "users", id, nil)
	return c.JSON(fiber.Map{"message": "User deactivated successfully"})
}
