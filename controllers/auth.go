package controllers

import (
	"academyhub/database"
	"academyhub/middleware"
	"academyhub/models"
	"academyhub/services"
	"academyhub/utils"
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

type AuthController struct{}

// LoginRequest represents the login request body
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=8,nefield=CurrentPassword"`
}

// Login authenticates a user and returns a JWT token
func (ac *AuthController) Login(c *fiber.Ctx) error {
	var req LoginRequest
	if ok, err := parseBody(c, &req); !ok {
		return err
	}

	var user models.User
	err := database.DB.WithContext(c.UserContext()).
		Where("email = ? AND status = ?", strings.ToLower(strings.TrimSpace(req.Email)), "active").
		First(&user).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			database.LogError("login lookup", err)
		}
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid credentials"})
	}
	if err := utils.CheckPassword(req.Password, user.Password); err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid credentials"})
	}

	token, err := middleware.GenerateToken(&user)
	if err != nil {
		logrus.WithError(err).Error("token generation failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to generate token"})
	}

	now := time.Now().UTC()
	database.DB.WithContext(c.UserContext()).Model(&user).Update("last_login", now)
	user.LastLogin = &now

	middleware.LogActivity(c, "LOGIN", "auth", user.ID, fiber.Map{"email": user.Email, "role": user.Role})
	return c.JSON(fiber.Map{
		"message": "Login successful",
		"token":   token,
		"user":    utils.ToUserDTO(user),
	})
}

// RegisterAcademy signs up a new academy with its owner account.
func (ac *AuthController) RegisterAcademy(c *fiber.Ctx) error {
	var req services.RegisterInput
	if ok, err := parseBody(c, &req); !ok {
		return err
	}

	academy, owner, err := services.NewAcademyService(database.DB).Register(c.UserContext(), req)
	if err != nil {
		return respondError(c, "register academy", err)
	}
	token, err := middleware.GenerateToken(owner)
	if err != nil {
		logrus.WithError(err).Error("token generation failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to generate token"})
	}

	logrus.WithFields(logrus.Fields{"academy_id": academy.ID, "code": academy.Code}).Info("academy registered")
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "Academy registered successfully",
		"academy": academy,
		"user":    utils.ToUserDTO(*owner),
		"token":   token,
	})
}

// Logout revokes the current token until it would have expired.
func (ac *AuthController) Logout(c *fiber.Ctx) error {
	claims, err := middleware.GetCurrentClaims(c)
	if err != nil {
		return respondError(c, "logout", err)
	}

	if rc := database.GetRedisClient(); rc != nil && claims.ID != "" {
		ttl := 24 * time.Hour
		if claims.ExpiresAt != nil {
			ttl = time.Until(claims.ExpiresAt.Time)
		}
		if ttl > 0 {
			if err := rc.Set(c.UserContext(), middleware.BlacklistKey(claims.ID), "1", ttl).Err(); err != nil {
				logrus.WithError(err).Warn("token blacklist write failed")
			}
		}
	}

	middleware.LogActivity(c, "LOGOUT", "auth", claims.UserID, nil)
	return c.JSON(fiber.Map{"message": "Logged out successfully"})
}

func (ac *AuthController) GetProfile(c *fiber.Ctx) error {
	user, err := middleware.GetCurrentUser(c)
	if err != nil {
		return respondError(c, "get profile", err)
	}
	resp := fiber.Map{"user": utils.ToUserDTO(*user)}
	if user.AcademyID != nil {
		var academy models.Academy
		if err := database.DB.WithContext(c.UserContext()).First(&academy, "id = ?", *user.AcademyID).Error; err == nil {
			resp["academy"] = academy
		}
	}
	return c.JSON(resp)
}

func (ac *AuthController) ChangePassword(c *fiber.Ctx) error {
	user, err := middleware.GetCurrentUser(c)
	if err != nil {
		return respondError(c, "change password", err)
	}
	var req ChangePasswordRequest
	if ok, err := parseBody(c, &req); !ok {
		return err
	}
	if err := utils.CheckPassword(req.CurrentPassword, user.Password); err != nil {
		return badRequest(c, "Current password is incorrect")
	}
	hash, err := utils.HashPassword(req.NewPassword)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to hash password"})
	}
	if err := database.DB.WithContext(c.UserContext()).Model(user).Update("password", hash).Error; err != nil {
		return respondError(c, "change password", err)
	}

	middleware.LogActivity(c, "UPDATE", "auth", user.ID, fiber.Map{"field": "password"})
	return c.JSON(fiber.Map{"message": "Password changed successfully"})
}
