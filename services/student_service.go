package services

import (
	"academyhub/config"
	"academyhub/models"
	"academyhub/repository"
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

type StudentService struct {
	db *gorm.DB
	// AutoDeleteEmptyClass removes a class left without students after a delete.
	AutoDeleteEmptyClass bool
}

func NewStudentService(db *gorm.DB) *StudentService {
	auto := true
	if config.AppConfig != nil {
		auto = config.AppConfig.AutoDeleteEmptyClasses
	}
	return &StudentService{db: db, AutoDeleteEmptyClass: auto}
}

// ValidateReferences checks class and parent ids against the student's academy.
func (s *StudentService) ValidateReferences(ctx context.Context, academyID string, classID, parentID *string) error {
	if classID != nil {
		if err := mustExist(ctx, repository.Classes(s.db), academyID, *classID, "class"); err != nil {
			return err
		}
	}
	if parentID != nil {
		if err := mustExist(ctx, repository.Parents(s.db), academyID, *parentID, "parent"); err != nil {
			return err
		}
	}
	return nil
}

func (s *StudentService) Create(ctx context.Context, st *models.Student) error {
	if err := s.ValidateReferences(ctx, st.AcademyID, st.ClassID, st.ParentID); err != nil {
		return err
	}
	if st.Status == "" {
		st.Status = "active"
	}
	return repository.Students(s.db).Save(ctx, st)
}

// DeleteResult reports side effects of a student delete.
type DeleteResult struct {
	ClassDeleted   bool   `json:"class_deleted"`
	DeletedClassID string `json:"deleted_class_id,omitempty"`
}

// Delete removes a student with its enrollments and attendance. Students with
// payment history are kept. Afterwards the student's class is removed if it
// became empty; that step never fails the delete.
func (s *StudentService) Delete(ctx context.Context, academyID, id string) (*DeleteResult, error) {
	st, err := repository.Students(s.db).FindByID(ctx, academyID, id)
	if err != nil {
		return nil, err
	}

	var payments int64
	if err := s.db.WithContext(ctx).Model(&models.Payment{}).Where("student_id = ?", id).Count(&payments).Error; err != nil {
		return nil, err
	}
	if payments > 0 {
		return nil, dependentsf("student has %d payments; set status to inactive instead", payments)
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("student_id = ?", id).Delete(&models.Enrollment{}).Error; err != nil {
			return fmt.Errorf("delete enrollments: %w", err)
		}
		if err := tx.Where("student_id = ?", id).Delete(&models.AttendanceRecord{}).Error; err != nil {
			return fmt.Errorf("delete attendance: %w", err)
		}
		return repository.Students(tx).Delete(ctx, academyID, id)
	})
	if err != nil {
		return nil, err
	}

	result := &DeleteResult{}
	if !s.AutoDeleteEmptyClass || st.ClassID == nil {
		return result, nil
	}

	// Only the class the student was directly assigned to is a candidate.
	classID := *st.ClassID
	deleted, err := NewClassService(s.db).DeleteIfEmpty(ctx, st.AcademyID, classID)
	if err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{"class_id": classID, "student_id": id}).
			Warn("empty class cleanup failed")
		return result, nil
	}
	if deleted {
		result.ClassDeleted = true
		result.DeletedClassID = classID
	}
	return result, nil
}
