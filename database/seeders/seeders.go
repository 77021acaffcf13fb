package seeders

import (
	"academyhub/database"
	"academyhub/models"
	"academyhub/utils"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const demoAcademyCode = "DEMO"

// SeedAll creates a super admin and one demo academy with a small, consistent
// data set. It is safe to run twice.
func SeedAll() error {
	log.Println("Starting database seeding...")

	if err := SeedSuperAdmin(database.DB); err != nil {
		return fmt.Errorf("seed super admin: %w", err)
	}
	if err := SeedDemoAcademy(database.DB); err != nil {
		return fmt.Errorf("seed demo academy: %w", err)
	}

	log.Println("Database seeding completed successfully!")
	return nil
}

func seedPassword() string {
	if p := os.Getenv("SEED_PASSWORD"); p != "" {
		return p
	}
	return "admin123"
}

// SeedSuperAdmin creates the platform operator account.
func SeedSuperAdmin(db *gorm.DB) error {
	var count int64
	db.Model(&models.User{}).Where("role = ?", models.RoleSuperAdmin).Count(&count)
	if count > 0 {
		log.Println("Super admin already seeded, skipping...")
		return nil
	}
	hash, err := utils.HashPassword(seedPassword())
	if err != nil {
		return err
	}
	return db.Create(&models.User{
		Email:    "superadmin@academyhub.local",
		Password: hash,
		Name:     "Platform Admin",
		Role:     models.RoleSuperAdmin,
		Status:   "active",
	}).Error
}

// SeedDemoAcademy creates the DEMO academy and everything hanging off it.
func SeedDemoAcademy(db *gorm.DB) error {
	var count int64
	db.Model(&models.Academy{}).Where("code = ?", demoAcademyCode).Count(&count)
	if count > 0 {
		log.Println("Demo academy already seeded, skipping...")
		return nil
	}
	hash, err := utils.HashPassword(seedPassword())
	if err != nil {
		return err
	}

	return db.Transaction(func(tx *gorm.DB) error {
		academy := models.Academy{
			Name:      "Demo Academy",
			Code:      demoAcademyCode,
			Address:   "123 Learning Road",
			Phone:     "044-123456",
			Email:     "hello@demo.academy",
			OwnerName: "Demo Owner",
			Status:    "active",
		}
		if err := tx.Create(&academy).Error; err != nil {
			return err
		}
		aid := academy.ID

		users := []models.User{
			{AcademyID: &aid, Email: "owner@demo.academy", Password: hash, Name: "Demo Owner", Role: models.RoleOwner, Status: "active"},
			{AcademyID: &aid, Email: "admin@demo.academy", Password: hash, Name: "Front Desk", Role: models.RoleAdmin, Status: "active"},
			{AcademyID: &aid, Email: "teacher@demo.academy", Password: hash, Name: "Somchai Teacher", Role: models.RoleTeacher, Status: "active"},
			{AcademyID: &aid, Email: "parent@demo.academy", Password: hash, Name: "Malee Parent", Role: models.RoleParent, Status: "active"},
		}
		if err := tx.Create(&users).Error; err != nil {
			return err
		}
		teacherUser, parentUser := users[2].ID, users[3].ID

		teachers := []models.Teacher{
			{AcademyID: aid, UserID: &teacherUser, FirstName: "Somchai", LastName: "Teacher", Email: "teacher@demo.academy", Specialization: "English", HourlyRate: 400, Status: "active"},
			{AcademyID: aid, FirstName: "Anna", LastName: "Smith", Specialization: "Mathematics", HourlyRate: 450, Status: "active"},
		}
		if err := tx.Create(&teachers).Error; err != nil {
			return err
		}

		features, _ := json.Marshal([]string{"projector", "whiteboard"})
		classrooms := []models.Classroom{
			{AcademyID: aid, Name: "Room A", Capacity: 12, Location: "1st floor", Features: datatypes.JSON(features), Status: "available"},
			{AcademyID: aid, Name: "Room B", Capacity: 8, Location: "2nd floor", Status: "available"},
		}
		if err := tx.Create(&classrooms).Error; err != nil {
			return err
		}

		subjects := []models.Subject{
			{AcademyID: aid, Name: "English Conversation", Code: "ENG", Color: "#3b82f6"},
			{AcademyID: aid, Name: "Mathematics", Code: "MATH", Color: "#f59e0b"},
		}
		if err := tx.Create(&subjects).Error; err != nil {
			return err
		}

		start := time.Now().UTC().AddDate(0, -1, 0)
		classes := []models.Class{
			{AcademyID: aid, Name: "English A1", SubjectID: &subjects[0].ID, TeacherID: &teachers[0].ID, ClassroomID: &classrooms[0].ID, Level: "A1", Capacity: 12, MonthlyFee: 2500, Status: "active", StartDate: &start},
			{AcademyID: aid, Name: "Math Grade 6", SubjectID: &subjects[1].ID, TeacherID: &teachers[1].ID, ClassroomID: &classrooms[1].ID, Level: "P6", Capacity: 8, MonthlyFee: 3000, Status: "active", StartDate: &start},
		}
		if err := tx.Create(&classes).Error; err != nil {
			return err
		}

		parent := models.Parent{AcademyID: aid, UserID: &parentUser, FirstName: "Malee", LastName: "Parent", Phone: "081-000-0001", Relationship: "mother", LinkCode: "DEMO0001"}
		if err := tx.Create(&parent).Error; err != nil {
			return err
		}

		students := []models.Student{
			{AcademyID: aid, ClassID: &classes[0].ID, ParentID: &parent.ID, FirstName: "Ploy", LastName: "Student", Grade: "P5", Status: "active"},
			{AcademyID: aid, ClassID: &classes[0].ID, FirstName: "Ton", LastName: "Student", Grade: "P6", Status: "active"},
			{AcademyID: aid, ClassID: &classes[1].ID, ParentID: &parent.ID, FirstName: "Mint", LastName: "Student", Grade: "P6", Status: "active"},
		}
		if err := tx.Create(&students).Error; err != nil {
			return err
		}

		enrollments := make([]models.Enrollment, 0, len(students))
		for _, s := range students {
			enrollments = append(enrollments, models.Enrollment{AcademyID: aid, StudentID: s.ID, ClassID: *s.ClassID, EnrolledAt: start, Status: "active"})
		}
		if err := tx.Create(&enrollments).Error; err != nil {
			return err
		}

		schedules := []models.Schedule{
			{AcademyID: aid, ClassID: classes[0].ID, TeacherID: classes[0].TeacherID, ClassroomID: classes[0].ClassroomID, DayOfWeek: 1, StartTime: "16:00", EndTime: "17:30"},
			{AcademyID: aid, ClassID: classes[0].ID, TeacherID: classes[0].TeacherID, ClassroomID: classes[0].ClassroomID, DayOfWeek: 3, StartTime: "16:00", EndTime: "17:30"},
			{AcademyID: aid, ClassID: classes[1].ID, TeacherID: classes[1].TeacherID, ClassroomID: classes[1].ClassroomID, DayOfWeek: 6, StartTime: "09:00", EndTime: "11:00"},
		}
		if err := tx.Create(&schedules).Error; err != nil {
			return err
		}

		period := time.Now().UTC().Format("2006-01")
		due := time.Now().UTC().AddDate(0, 0, 7)
		payments := []models.Payment{
			{AcademyID: aid, StudentID: students[0].ID, ClassID: students[0].ClassID, Amount: 2500, PaymentDate: time.Now().UTC(), Method: "transfer", Status: models.PaymentPaid, Period: period},
			{AcademyID: aid, StudentID: students[1].ID, ClassID: students[1].ClassID, Amount: 2500, PaymentDate: time.Now().UTC(), Method: "cash", Status: models.PaymentPaid, Period: period},
			{AcademyID: aid, StudentID: students[2].ID, ClassID: students[2].ClassID, Amount: 3000, PaymentDate: time.Now().UTC(), DueDate: &due, Method: "cash", Status: models.PaymentPending, Period: period},
		}
		if err := tx.Create(&payments).Error; err != nil {
			return err
		}

		log.Printf("Demo academy seeded (code=%s, users=%d, students=%d)", demoAcademyCode, len(users), len(students))
		return nil
	})
}
