package models

import (
	"time"

	"gorm.io/gorm"
)

// Parent is a guardian of one or more students. LinkCode is what the parent
// sends to the academy LINE account to bind their LINE user.
type Parent struct {
	BaseModel
	AcademyID    string  `json:"academy_id" gorm:"size:36;not null;index"`
	UserID       *string `json:"user_id" gorm:"size:36;index"`
	FirstName    string  `json:"first_name" gorm:"size:100;not null"`
	LastName     string  `json:"last_name" gorm:"size:100"`
	Email        string  `json:"email" gorm:"size:255"`
	Phone        string  `json:"phone" gorm:"size:30;index"`
	Relationship string  `json:"relationship" gorm:"size:30"` // mother, father, guardian
	Address      string  `json:"address" gorm:"size:500"`
	LineUserID   string  `json:"line_user_id" gorm:"size:100;index"`
	LinkCode     string  `json:"link_code" gorm:"size:16;uniqueIndex:idx_parents_link_code"`

	Students []Student `json:"students,omitempty" gorm:"foreignKey:ParentID"`
}

// Student model
type Student struct {
	BaseModel
	AcademyID   string     `json:"academy_id" gorm:"size:36;not null;index"`
	ClassID     *string    `json:"class_id" gorm:"size:36;index"`
	ParentID    *string    `json:"parent_id" gorm:"size:36;index"`
	FirstName   string     `json:"first_name" gorm:"size:100;not null"`
	LastName    string     `json:"last_name" gorm:"size:100"`
	DateOfBirth *time.Time `json:"date_of_birth"`
	Gender      string     `json:"gender" gorm:"size:20"`
	Grade       string     `json:"grade" gorm:"size:50"`
	School      string     `json:"school" gorm:"size:200"`
	Phone       string     `json:"phone" gorm:"size:30"`
	Email       string     `json:"email" gorm:"size:255"`
	Status      string     `json:"status" gorm:"size:20;not null;default:active"` // active, inactive, graduated
	PhotoURL    string     `json:"photo_url" gorm:"size:500"`
	Notes       string     `json:"notes" gorm:"type:text"`

	Class  *Class  `json:"class,omitempty" gorm:"foreignKey:ClassID"`
	Parent *Parent `json:"parent,omitempty" gorm:"foreignKey:ParentID"`
}

func (s Student) FullName() string {
	if s.LastName == "" {
		return s.FirstName
	}
	return s.FirstName + " " + s.LastName
}

// Enrollment links a student to a class.
type Enrollment struct {
	BaseModel
	AcademyID  string    `json:"academy_id" gorm:"size:36;not null;index"`
	StudentID  string    `json:"student_id" gorm:"size:36;not null;uniqueIndex:idx_enrollments_student_class"`
	ClassID    string    `json:"class_id" gorm:"size:36;not null;uniqueIndex:idx_enrollments_student_class;index"`
	EnrolledAt time.Time `json:"enrolled_at"`
	Status     string    `json:"status" gorm:"size:20;not null;default:active"` // active, completed, dropped

	Student *Student `json:"student,omitempty" gorm:"foreignKey:StudentID"`
	Class   *Class   `json:"class,omitempty" gorm:"foreignKey:ClassID"`
}

// Payment statuses
const (
	PaymentPending   = "pending"
	PaymentPaid      = "paid"
	PaymentOverdue   = "overdue"
	PaymentRefunded  = "refunded"
	PaymentCancelled = "cancelled"
)

// Payment model. PaymentDate is stored in UTC; daily buckets are computed in
// the academy timezone.
type Payment struct {
	BaseModel
	AcademyID   string     `json:"academy_id" gorm:"size:36;not null;index"`
	StudentID   string     `json:"student_id" gorm:"size:36;not null;index"`
	ClassID     *string    `json:"class_id" gorm:"size:36;index"`
	Amount      float64    `json:"amount" gorm:"not null"`
	PaymentDate time.Time  `json:"payment_date" gorm:"not null;index"`
	DueDate     *time.Time `json:"due_date"`
	Method      string     `json:"method" gorm:"size:20;not null;default:cash"` // cash, card, transfer, other
	Status      string     `json:"status" gorm:"size:20;not null;default:pending"`
	Period      string     `json:"period" gorm:"size:7"` // YYYY-MM the payment covers
	ReceiptURL  string     `json:"receipt_url" gorm:"size:500"`
	Notes       string     `json:"notes" gorm:"type:text"`

	Student *Student `json:"student,omitempty" gorm:"foreignKey:StudentID"`
	Class   *Class   `json:"class,omitempty" gorm:"foreignKey:ClassID"`
}

func (p *Payment) BeforeSave(tx *gorm.DB) error {
	if p.PaymentDate.IsZero() {
		p.PaymentDate = time.Now()
	}
	p.PaymentDate = p.PaymentDate.UTC()
	if p.DueDate != nil {
		d := p.DueDate.UTC()
		p.DueDate = &d
	}
	return nil
}

// Attendance statuses
const (
	AttendancePresent = "present"
	AttendanceAbsent  = "absent"
	AttendanceLate    = "late"
	AttendanceExcused = "excused"
)

// AttendanceRecord is one student's attendance for one class on one day.
type AttendanceRecord struct {
	BaseModel
	AcademyID   string     `json:"academy_id" gorm:"size:36;not null;index"`
	StudentID   string     `json:"student_id" gorm:"size:36;not null;uniqueIndex:idx_attendance_student_class_date"`
	ClassID     string     `json:"class_id" gorm:"size:36;not null;uniqueIndex:idx_attendance_student_class_date;index"`
	Date        time.Time  `json:"date" gorm:"type:date;not null;uniqueIndex:idx_attendance_student_class_date"`
	Status      string     `json:"status" gorm:"size:20;not null"`
	ScheduleID  *string    `json:"schedule_id" gorm:"size:36"`
	CheckInTime *time.Time `json:"check_in_time"`
	Notes       string     `json:"notes" gorm:"type:text"`
	MarkedBy    *string    `json:"marked_by" gorm:"size:36"`

	Student *Student `json:"student,omitempty" gorm:"foreignKey:StudentID"`
}

// TableName matches the Supabase table.
func (AttendanceRecord) TableName() string { return "attendance_records" }

func (a *AttendanceRecord) BeforeSave(tx *gorm.DB) error {
	a.Date = DateOnly(a.Date)
	return nil
}

// DateOnly truncates t to midnight UTC of its calendar day.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
