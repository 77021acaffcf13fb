package services

import (
	"academyhub/models"
	"academyhub/repository"
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

type EnrollmentService struct {
	db *gorm.DB
}

func NewEnrollmentService(db *gorm.DB) *EnrollmentService {
	return &EnrollmentService{db: db}
}

// Enroll adds a student to a class, honouring the class capacity. When the
// student has no home class yet, this class becomes it.
func (s *EnrollmentService) Enroll(ctx context.Context, e *models.Enrollment) error {
	student, err := repository.Students(s.db).FindByID(ctx, e.AcademyID, e.StudentID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return validationf("student %s does not belong to this academy", e.StudentID)
		}
		return err
	}
	class, err := repository.Classes(s.db).FindByID(ctx, e.AcademyID, e.ClassID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return validationf("class %s does not belong to this academy", e.ClassID)
		}
		return err
	}
	if class.Status != "active" {
		return validationf("class %s is %s", class.Name, class.Status)
	}

	var existing int64
	if err := s.db.WithContext(ctx).Model(&models.Enrollment{}).
		Where("student_id = ? AND class_id = ?", e.StudentID, e.ClassID).Count(&existing).Error; err != nil {
		return err
	}
	if existing > 0 {
		return ErrDuplicate
	}

	if class.Capacity > 0 {
		var active int64
		if err := s.db.WithContext(ctx).Model(&models.Enrollment{}).
			Where("class_id = ? AND status = ?", e.ClassID, "active").Count(&active).Error; err != nil {
			return err
		}
		if int(active) >= class.Capacity {
			return validationf("class %s is full (%d/%d)", class.Name, active, class.Capacity)
		}
	}

	if e.Status == "" {
		e.Status = "active"
	}
	if e.EnrolledAt.IsZero() {
		e.EnrolledAt = time.Now().UTC()
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := repository.Enrollments(tx).Save(ctx, e); err != nil {
			return err
		}
		if student.ClassID == nil {
			return tx.Model(&models.Student{}).Where("id = ?", student.ID).Update("class_id", e.ClassID).Error
		}
		return nil
	})
}
