package controllers

import (
	"academyhub/database"
	"academyhub/middleware"
	"academyhub/models"
	"academyhub/services/websocket"

	"github.com/gofiber/fiber/v2"
	fiberws "github.com/gofiber/websocket/v2"
	"github.com/sirupsen/logrus"
)

type WebSocketController struct {
	hub *websocket.Hub
}

func NewWebSocketController(hub *websocket.Hub) *WebSocketController {
	return &WebSocketController{hub: hub}
}

// Upgrade authenticates ?token= before the handshake so bad tokens get a
// plain 401 instead of an immediately closed socket.
func (wsc *WebSocketController) Upgrade(c *fiber.Ctx) error {
	if !fiberws.IsWebSocketUpgrade(c) {
		return c.Status(fiber.StatusUpgradeRequired).JSON(fiber.Map{
			"error": "Use the WebSocket endpoint: ws://<host>/ws?token=YOUR_JWT",
		})
	}
	token := c.Query("token")
	if token == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Missing token"})
	}
	claims, err := middleware.ParseToken(token)
	if err != nil || middleware.IsRevoked(c.UserContext(), claims) {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid or expired token"})
	}

	var n int64
	if err := database.DB.WithContext(c.UserContext()).Model(&models.User{}).
		Where("id = ? AND status = ?", claims.UserID, "active").Count(&n).Error; err != nil || n == 0 {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "User not found or inactive"})
	}

	c.Locals("ws_user_id", claims.UserID)
	c.Locals("ws_academy_id", claims.AcademyID)
	return c.Next()
}

// WebSocketHandler joins an authenticated connection to the hub.
func (wsc *WebSocketController) WebSocketHandler() fiber.Handler {
	return fiberws.New(func(c *fiberws.Conn) {
		defer func() {
			if r := recover(); r != nil {
				logrus.WithField("panic", r).Error("websocket handler panic")
			}
		}()
		userID, _ := c.Locals("ws_user_id").(string)
		academyID, _ := c.Locals("ws_academy_id").(string)
		logrus.WithFields(logrus.Fields{"user_id": userID, "academy_id": academyID}).Debug("websocket connected")
		wsc.hub.ServeFiberWS(c, userID, academyID)
	})
}

func (wsc *WebSocketController) GetWebSocketStats(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"connected_clients": wsc.hub.GetClientCount(),
		"status":            "active",
	})
}
