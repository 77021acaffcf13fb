package utils

import (
	"encoding/json"
	"time"

	"academyhub/models"
)

type Sender struct {
	Type string `json:"type"` // "system" or "user"
	Name string `json:"name,omitempty"`
}

type NotificationDTO struct {
	ID        string          `json:"id"`
	CreatedAt time.Time       `json:"created_at"`
	UserID    string          `json:"user_id"`
	Title     string          `json:"title"`
	Message   string          `json:"message"`
	Type      string          `json:"type"`
	Channels  []string        `json:"channels"`
	Data      json.RawMessage `json:"data,omitempty"`
	Read      bool            `json:"read"`
	ReadAt    *time.Time      `json:"read_at,omitempty"`
	Sender    Sender          `json:"sender"`
}

// ToNotificationDTO maps a models.Notification to the compact DTO.
func ToNotificationDTO(n models.Notification) NotificationDTO {
	var channels []string
	if len(n.Channels) > 0 {
		_ = json.Unmarshal(n.Channels, &channels)
	}
	if len(channels) == 0 {
		channels = []string{"normal"}
	}
	dto := NotificationDTO{
		ID:        n.ID,
		CreatedAt: n.CreatedAt,
		UserID:    n.UserID,
		Title:     n.Title,
		Message:   n.Message,
		Type:      n.Type,
		Channels:  channels,
		Read:      n.Read,
		ReadAt:    n.ReadAt,
		Sender:    Sender{Type: "system", Name: "AcademyHub"},
	}
	if len(n.Data) > 0 {
		dto.Data = json.RawMessage(n.Data)
	}
	return dto
}

// UserDTO is the public view of an account.
type UserDTO struct {
	ID         string     `json:"id"`
	AcademyID  *string    `json:"academy_id"`
	Email      string     `json:"email"`
	Name       string     `json:"name"`
	Phone      string     `json:"phone,omitempty"`
	Role       string     `json:"role"`
	Status     string     `json:"status"`
	LineLinked bool       `json:"line_linked"`
	LastLogin  *time.Time `json:"last_login,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

func ToUserDTO(u models.User) UserDTO {
	return UserDTO{
		ID:         u.ID,
		AcademyID:  u.AcademyID,
		Email:      u.Email,
		Name:       u.Name,
		Phone:      u.Phone,
		Role:       u.Role,
		Status:     u.Status,
		LineLinked: u.LineUserID != "",
		LastLogin:  u.LastLogin,
		CreatedAt:  u.CreatedAt,
	}
}
