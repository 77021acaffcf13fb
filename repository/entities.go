package repository

import (
	"academyhub/models"

	"gorm.io/gorm"
)

const academyScope = "academy_id"

func Academies(db *gorm.DB) *Repository[models.Academy] {
	return New[models.Academy](db, Spec{
		ScopeColumn:  "id",
		Filterable:   []string{"status", "code"},
		Searchable:   []string{"name", "code"},
		Sortable:     []string{"name", "code"},
		Updatable:    []string{"name", "code", "address", "phone", "email", "owner_name", "logo_url", "status"},
		DefaultOrder: "name ASC",
	})
}

func Users(db *gorm.DB) *Repository[models.User] {
	return New[models.User](db, Spec{
		ScopeColumn: academyScope,
		Filterable:  []string{"role", "status"},
		Searchable:  []string{"name", "email"},
		Sortable:    []string{"name", "email", "role"},
		Updatable:   []string{"name", "phone", "role", "status", "line_user_id", "password"},
	})
}

func Teachers(db *gorm.DB) *Repository[models.Teacher] {
	return New[models.Teacher](db, Spec{
		ScopeColumn:  academyScope,
		Filterable:   []string{"status", "user_id"},
		Searchable:   []string{"first_name", "last_name", "email", "specialization"},
		Sortable:     []string{"first_name", "last_name"},
		Updatable:    []string{"user_id", "first_name", "last_name", "email", "phone", "specialization", "hourly_rate", "status"},
		DefaultOrder: "first_name ASC",
	})
}

func Classrooms(db *gorm.DB) *Repository[models.Classroom] {
	return New[models.Classroom](db, Spec{
		ScopeColumn:  academyScope,
		Filterable:   []string{"status"},
		Searchable:   []string{"name", "location"},
		Sortable:     []string{"name", "capacity"},
		Updatable:    []string{"name", "capacity", "location", "features", "status"},
		DefaultOrder: "name ASC",
	})
}

func Subjects(db *gorm.DB) *Repository[models.Subject] {
	return New[models.Subject](db, Spec{
		ScopeColumn:  academyScope,
		Searchable:   []string{"name", "code"},
		Sortable:     []string{"name", "code"},
		Updatable:    []string{"name", "code", "description", "color"},
		DefaultOrder: "name ASC",
	})
}

func Classes(db *gorm.DB) *Repository[models.Class] {
	return New[models.Class](db, Spec{
		ScopeColumn:  academyScope,
		Filterable:   []string{"status", "subject_id", "teacher_id", "classroom_id", "level"},
		Searchable:   []string{"name", "level"},
		Sortable:     []string{"name", "level", "monthly_fee"},
		Updatable:    []string{"name", "subject_id", "teacher_id", "classroom_id", "level", "capacity", "monthly_fee", "status", "start_date", "end_date"},
		DefaultOrder: "name ASC",
		Preload:      []string{"Subject", "Teacher", "Classroom"},
	})
}

func Students(db *gorm.DB) *Repository[models.Student] {
	return New[models.Student](db, Spec{
		ScopeColumn:  academyScope,
		Filterable:   []string{"status", "class_id", "parent_id", "grade"},
		Searchable:   []string{"first_name", "last_name", "phone", "email", "school"},
		Sortable:     []string{"first_name", "last_name", "grade"},
		Updatable:    []string{"class_id", "parent_id", "first_name", "last_name", "date_of_birth", "gender", "grade", "school", "phone", "email", "status", "photo_url", "notes"},
		DefaultOrder: "first_name ASC",
	})
}

func Parents(db *gorm.DB) *Repository[models.Parent] {
	return New[models.Parent](db, Spec{
		ScopeColumn:  academyScope,
		Filterable:   []string{"user_id", "phone", "line_user_id"},
		Searchable:   []string{"first_name", "last_name", "phone", "email"},
		Sortable:     []string{"first_name", "last_name"},
		Updatable:    []string{"user_id", "first_name", "last_name", "email", "phone", "relationship", "address", "line_user_id"},
		DefaultOrder: "first_name ASC",
	})
}

func Enrollments(db *gorm.DB) *Repository[models.Enrollment] {
	return New[models.Enrollment](db, Spec{
		ScopeColumn:  academyScope,
		Filterable:   []string{"student_id", "class_id", "status"},
		Sortable:     []string{"enrolled_at"},
		Updatable:    []string{"status", "enrolled_at"},
		DefaultOrder: "enrolled_at DESC",
		Preload:      []string{"Student", "Class"},
	})
}

func Payments(db *gorm.DB) *Repository[models.Payment] {
	return New[models.Payment](db, Spec{
		ScopeColumn:  academyScope,
		Filterable:   []string{"student_id", "class_id", "status", "method", "period"},
		Searchable:   []string{"notes", "period"},
		Sortable:     []string{"payment_date", "amount", "due_date"},
		Updatable:    []string{"class_id", "amount", "payment_date", "due_date", "method", "status", "period", "receipt_url", "notes"},
		DefaultOrder: "payment_date DESC",
		Preload:      []string{"Student"},
	})
}

func Attendance(db *gorm.DB) *Repository[models.AttendanceRecord] {
	return New[models.AttendanceRecord](db, Spec{
		ScopeColumn:  academyScope,
		Filterable:   []string{"student_id", "class_id", "status", "schedule_id", "date"},
		Sortable:     []string{"date"},
		Updatable:    []string{"status", "check_in_time", "notes", "schedule_id", "marked_by"},
		DefaultOrder: "date DESC",
		Preload:      []string{"Student"},
	})
}

func Schedules(db *gorm.DB) *Repository[models.Schedule] {
	return New[models.Schedule](db, Spec{
		ScopeColumn:  academyScope,
		Filterable:   []string{"class_id", "teacher_id", "classroom_id", "day_of_week"},
		Sortable:     []string{"day_of_week", "start_time"},
		Updatable:    []string{"teacher_id", "classroom_id", "day_of_week", "start_time", "end_time", "effective_from", "effective_to", "notes"},
		DefaultOrder: "day_of_week ASC, start_time ASC",
		Preload:      []string{"Class", "Teacher", "Classroom"},
	})
}

func TimetableSettings(db *gorm.DB) *Repository[models.TimetableSettings] {
	return New[models.TimetableSettings](db, Spec{
		ScopeColumn: academyScope,
		Updatable:   []string{"day_start", "day_end", "slot_minutes", "working_days", "break_times", "timezone"},
	})
}

func Notifications(db *gorm.DB) *Repository[models.Notification] {
	return New[models.Notification](db, Spec{
		ScopeColumn: "user_id",
		Filterable:  []string{"read", "type"},
		Updatable:   []string{"read", "read_at"},
	})
}

func ActivityLogs(db *gorm.DB) *Repository[models.ActivityLog] {
	return New[models.ActivityLog](db, Spec{
		ScopeColumn: academyScope,
		Filterable:  []string{"user_id", "action", "resource", "resource_id"},
		Searchable:  []string{"resource", "action"},
	})
}
