package controllers

import (
	"academyhub/database"
	"academyhub/middleware"
	"academyhub/models"
	"academyhub/repository"
	notifsvc "academyhub/services/notifications"
	"academyhub/utils"
	"time"

	"github.com/gofiber/fiber/v2"
)

type NotificationController struct{}

// currentUserID is the caller's id; notifications are always scoped to it.
func currentUserID(c *fiber.Ctx) (string, error) {
	id := userID(c)
	if id == nil {
		return "", fiber.NewError(fiber.StatusUnauthorized, "User not found")
	}
	return *id, nil
}

// GetNotifications returns notifications for the current user
func (nc *NotificationController) GetNotifications(c *fiber.Ctx) error {
	uid, err := currentUserID(c)
	if err != nil {
		return respondError(c, "list notifications", err)
	}
	opts, p := listOptions(c, "type")
	switch c.Query("read") {
	case "true":
		opts.Filters["read"] = true
	case "false":
		opts.Filters["read"] = false
	}
	items, total, err := repository.Notifications(database.DB).FindAll(c.UserContext(), uid, opts)
	if err != nil {
		return respondError(c, "list notifications", err)
	}
	dtos := make([]utils.NotificationDTO, 0, len(items))
	for _, n := range items {
		dtos = append(dtos, utils.ToNotificationDTO(n))
	}
	return listResponse(c, "notifications", dtos, total, p)
}

func (nc *NotificationController) GetNotification(c *fiber.Ctx) error {
	uid, err := currentUserID(c)
	if err != nil {
		return respondError(c, "get notification", err)
	}
	n, err := repository.Notifications(database.DB).FindByID(c.UserContext(), uid, c.Params("id"))
	if err != nil {
		return respondError(c, "get notification", err)
	}
	return c.JSON(fiber.Map{"notification": utils.ToNotificationDTO(*n)})
}

type createNotificationRequest struct {
	UserIDs  []string       `json:"user_ids" validate:"omitempty,dive,uuid"`
	Roles    []string       `json:"roles" validate:"omitempty,dive,oneof=owner admin teacher parent"`
	Title    string         `json:"title" validate:"required,max=255"`
	Message  string         `json:"message" validate:"required"`
	Type     string         `json:"type" validate:"required,oneof=info warning error success"`
	Channels []string       `json:"channels" validate:"omitempty,dive,oneof=normal popup line"`
	Data     map[string]any `json:"data"`
}

// CreateNotification sends a notification to explicit users or to every
// active user holding one of roles in the caller's academy.
func (nc *NotificationController) CreateNotification(c *fiber.Ctx) error {
	academyID, err := middleware.RequireAcademy(c)
	if err != nil {
		return respondError(c, "create notification", err)
	}
	var req createNotificationRequest
	if ok, err := parseBody(c, &req); !ok {
		return err
	}
	ctx := c.UserContext()

	var targets []string
	switch {
	case len(req.UserIDs) > 0:
		// drop ids outside the academy
		if err := database.DB.WithContext(ctx).Model(&models.User{}).
			Where("academy_id = ? AND id IN ?", academyID, req.UserIDs).
			Pluck("id", &targets).Error; err != nil {
			return respondError(c, "create notification", err)
		}
	case len(req.Roles) > 0:
		if targets, err = notifsvc.UsersByRole(ctx, database.DB, academyID, req.Roles...); err != nil {
			return respondError(c, "create notification", err)
		}
	default:
		return badRequest(c, "Must specify user_ids or roles")
	}
	if len(targets) == 0 {
		return badRequest(c, "No target users found")
	}

	n := notifsvc.New(req.Title, req.Message, req.Type, req.Data, req.Channels...)
	if err := notifsvc.NewService().EnqueueOrCreate(ctx, targets, n); err != nil {
		return respondError(c, "create notification", err)
	}

	middleware.LogActivity(c, "CREATE", "notifications", "", fiber.Map{
		"target_users": len(targets),
		"type":         req.Type,
		"title":        req.Title,
	})
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message":      "Notifications created successfully",
		"target_users": len(targets),
	})
}

func (nc *NotificationController) MarkAsRead(c *fiber.Ctx) error {
	uid, err := currentUserID(c)
	if err != nil {
		return respondError(c, "mark notification as read", err)
	}
	n, err := repository.Notifications(database.DB).Update(c.UserContext(), uid, c.Params("id"), map[string]interface{}{
		"read":    true,
		"read_at": time.Now(),
	})
	if err != nil {
		return respondError(c, "mark notification as read", err)
	}
	return c.JSON(fiber.Map{
		"message":      "Notification marked as read",
		"notification": utils.ToNotificationDTO(*n),
	})
}

func (nc *NotificationController) MarkAllAsRead(c *fiber.Ctx) error {
	uid, err := currentUserID(c)
	if err != nil {
		return respondError(c, "mark notifications as read", err)
	}
	res := database.DB.WithContext(c.UserContext()).Model(&models.Notification{}).
		Where("user_id = ? AND read = ?", uid, false).
		Updates(map[string]interface{}{"read": true, "read_at": time.Now()})
	if res.Error != nil {
		return respondError(c, "mark notifications as read", res.Error)
	}
	return c.JSON(fiber.Map{
		"message": "All notifications marked as read",
		"updated": res.RowsAffected,
	})
}

func (nc *NotificationController) DeleteNotification(c *fiber.Ctx) error {
	uid, err := currentUserID(c)
	if err != nil {
		return respondError(c, "delete notification", err)
	}
	if err := repository.Notifications(database.DB).Delete(c.UserContext(), uid, c.Params("id")); err != nil {
		return respondError(c, "delete notification", err)
	}
	return c.JSON(fiber.Map{"message": "Notification deleted successfully"})
}

func (nc *NotificationController) GetUnreadCount(c *fiber.Ctx) error {
	uid, err := currentUserID(c)
	if err != nil {
		return respondError(c, "count notifications", err)
	}
	count, err := repository.Notifications(database.DB).Count(c.UserContext(), uid, map[string]interface{}{"read": false})
	if err != nil {
		return respondError(c, "count notifications", err)
	}
	return c.JSON(fiber.Map{"unread_count": count})
}
