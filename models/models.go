package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Roles
const (
	RoleSuperAdmin = "super_admin"
	RoleOwner      = "owner"
	RoleAdmin      = "admin"
	RoleTeacher    = "teacher"
	RoleParent     = "parent"
)

// Base model with common fields. IDs are UUID strings so rows line up with the
// Supabase schema; they are generated here rather than by the database.
type BaseModel struct {
	ID        string    `json:"id" gorm:"primaryKey;size:36"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (b *BaseModel) BeforeCreate(tx *gorm.DB) error {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	return nil
}

// Academy is the tenant. Every other domain row carries its id.
type Academy struct {
	BaseModel
	Name      string `json:"name" gorm:"size:255;not null"`
	Code      string `json:"code" gorm:"size:50;not null;uniqueIndex:idx_academies_code"`
	Address   string `json:"address" gorm:"size:500"`
	Phone     string `json:"phone" gorm:"size:30"`
	Email     string `json:"email" gorm:"size:255"`
	OwnerName string `json:"owner_name" gorm:"size:200"`
	LogoURL   string `json:"logo_url" gorm:"size:500"`
	Status    string `json:"status" gorm:"size:20;not null;default:active"` // active, inactive
}

// User is a login account. Super admins have no academy.
type User struct {
	BaseModel
	AcademyID  *string    `json:"academy_id" gorm:"size:36;index"`
	Email      string     `json:"email" gorm:"size:255;not null;uniqueIndex:idx_users_email"`
	Password   string     `json:"-" gorm:"size:255;not null"`
	Name       string     `json:"name" gorm:"size:200"`
	Phone      string     `json:"phone" gorm:"size:30"`
	Role       string     `json:"role" gorm:"size:20;not null;default:admin"`
	Status     string     `json:"status" gorm:"size:20;not null;default:active"` // active, inactive, suspended
	LineUserID string     `json:"line_user_id" gorm:"size:100"`
	LastLogin  *time.Time `json:"last_login"`

	Academy *Academy `json:"academy,omitempty" gorm:"foreignKey:AcademyID"`
}

// ActivityLog records every mutating API call.
type ActivityLog struct {
	BaseModel
	AcademyID  *string        `json:"academy_id" gorm:"size:36;index"`
	UserID     *string        `json:"user_id" gorm:"size:36;index"`
	Action     string         `json:"action" gorm:"size:100;not null"`
	Resource   string         `json:"resource" gorm:"size:100;not null"`
	ResourceID string         `json:"resource_id" gorm:"size:36"`
	Details    datatypes.JSON `json:"details"`
	IPAddress  string         `json:"ip_address" gorm:"size:45"`
	UserAgent  string         `json:"user_agent" gorm:"size:500"`
}

// Notification model
type Notification struct {
	BaseModel
	UserID   string         `json:"user_id" gorm:"size:36;not null;index"`
	Title    string         `json:"title" gorm:"size:255;not null"`
	Message  string         `json:"message" gorm:"type:text;not null"`
	Type     string         `json:"type" gorm:"size:20;not null;default:info"` // info, warning, error, success
	Channels datatypes.JSON `json:"channels"`
	Data     datatypes.JSON `json:"data"`
	Read     bool           `json:"read" gorm:"default:false"`
	ReadAt   *time.Time     `json:"read_at"`
}

// LogArchive tracks zipped activity logs pushed to S3.
type LogArchive struct {
	BaseModel
	FileName    string    `json:"file_name" gorm:"size:255;not null"`
	S3Key       string    `json:"s3_key" gorm:"size:500;not null"`
	StartDate   time.Time `json:"start_date" gorm:"not null"`
	EndDate     time.Time `json:"end_date" gorm:"not null"`
	RecordCount int       `json:"record_count" gorm:"not null"`
	FileSize    int64     `json:"file_size" gorm:"not null"`
	Status      string    `json:"status" gorm:"size:20;not null;default:pending"` // pending, completed, failed
	Error       string    `json:"error" gorm:"type:text"`
}

// All lists every table the service migrates, in dependency order.
func All() []interface{} {
	return []interface{}{
		&Academy{},
		&User{},
		&Teacher{},
		&Classroom{},
		&Subject{},
		&Class{},
		&Parent{},
		&Student{},
		&Enrollment{},
		&Schedule{},
		&AttendanceRecord{},
		&Payment{},
		&TimetableSettings{},
		&ActivityLog{},
		&Notification{},
		&LogArchive{},
	}
}
