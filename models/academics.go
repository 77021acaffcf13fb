package models

import (
	"time"

	"gorm.io/datatypes"
)

// Teacher model
type Teacher struct {
	BaseModel
	AcademyID      string  `json:"academy_id" gorm:"size:36;not null;index"`
	UserID         *string `json:"user_id" gorm:"size:36;index"`
	FirstName      string  `json:"first_name" gorm:"size:100;not null"`
	LastName       string  `json:"last_name" gorm:"size:100"`
	Email          string  `json:"email" gorm:"size:255"`
	Phone          string  `json:"phone" gorm:"size:30"`
	Specialization string  `json:"specialization" gorm:"size:255"`
	HourlyRate     float64 `json:"hourly_rate"`
	Status         string  `json:"status" gorm:"size:20;not null;default:active"` // active, inactive
}

func (t Teacher) FullName() string {
	if t.LastName == "" {
		return t.FirstName
	}
	return t.FirstName + " " + t.LastName
}

// Classroom is a physical room of an academy.
type Classroom struct {
	BaseModel
	AcademyID string         `json:"academy_id" gorm:"size:36;index"`
	Name      string         `json:"name" gorm:"size:100;not null"`
	Capacity  int            `json:"capacity"`
	Location  string         `json:"location" gorm:"size:255"`
	Features  datatypes.JSON `json:"features"`
	Status    string         `json:"status" gorm:"size:20;not null;default:available"` // available, maintenance, inactive
}

// Subject model
type Subject struct {
	BaseModel
	AcademyID   string `json:"academy_id" gorm:"size:36;not null;index"`
	Name        string `json:"name" gorm:"size:150;not null"`
	Code        string `json:"code" gorm:"size:50"`
	Description string `json:"description" gorm:"type:text"`
	Color       string `json:"color" gorm:"size:20"`
}

// Class is a teaching group: a subject taught by a teacher in a classroom.
type Class struct {
	BaseModel
	AcademyID   string     `json:"academy_id" gorm:"size:36;not null;index"`
	Name        string     `json:"name" gorm:"size:150;not null"`
	SubjectID   *string    `json:"subject_id" gorm:"size:36;index"`
	TeacherID   *string    `json:"teacher_id" gorm:"size:36;index"`
	ClassroomID *string    `json:"classroom_id" gorm:"size:36;index"`
	Level       string     `json:"level" gorm:"size:50"`
	Capacity    int        `json:"capacity"`
	MonthlyFee  float64    `json:"monthly_fee"`
	Status      string     `json:"status" gorm:"size:20;not null;default:active"` // active, inactive, completed
	StartDate   *time.Time `json:"start_date"`
	EndDate     *time.Time `json:"end_date"`

	Subject   *Subject   `json:"subject,omitempty" gorm:"foreignKey:SubjectID"`
	Teacher   *Teacher   `json:"teacher,omitempty" gorm:"foreignKey:TeacherID"`
	Classroom *Classroom `json:"classroom,omitempty" gorm:"foreignKey:ClassroomID"`
}

// Schedule is a weekly recurring slot of a class.
type Schedule struct {
	BaseModel
	AcademyID     string     `json:"academy_id" gorm:"size:36;not null;index"`
	ClassID       string     `json:"class_id" gorm:"size:36;not null;index"`
	TeacherID     *string    `json:"teacher_id" gorm:"size:36;index"`
	ClassroomID   *string    `json:"classroom_id" gorm:"size:36;index"`
	DayOfWeek     int        `json:"day_of_week" gorm:"not null"` // 0 = Sunday
	StartTime     string     `json:"start_time" gorm:"size:5;not null"`
	EndTime       string     `json:"end_time" gorm:"size:5;not null"`
	EffectiveFrom *time.Time `json:"effective_from"`
	EffectiveTo   *time.Time `json:"effective_to"`
	Notes         string     `json:"notes" gorm:"type:text"`

	Class     *Class     `json:"class,omitempty" gorm:"foreignKey:ClassID"`
	Teacher   *Teacher   `json:"teacher,omitempty" gorm:"foreignKey:TeacherID"`
	Classroom *Classroom `json:"classroom,omitempty" gorm:"foreignKey:ClassroomID"`
}

// TimetableSettings holds the per-academy grid used by the timetable view.
type TimetableSettings struct {
	BaseModel
	AcademyID   string         `json:"academy_id" gorm:"size:36;not null;uniqueIndex:idx_timetable_settings_academy"`
	DayStart    string         `json:"day_start" gorm:"size:5;not null;default:'08:00'"`
	DayEnd      string         `json:"day_end" gorm:"size:5;not null;default:'22:00'"`
	SlotMinutes int            `json:"slot_minutes" gorm:"not null;default:60"`
	WorkingDays datatypes.JSON `json:"working_days"`
	BreakTimes  datatypes.JSON `json:"break_times"`
	Timezone    string         `json:"timezone" gorm:"size:64"`
}

// TableName keeps the plural table name Supabase uses.
func (TimetableSettings) TableName() string { return "timetable_settings" }
