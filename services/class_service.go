package services

import (
	"academyhub/models"
	"academyhub/repository"
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

type ClassService struct {
	db *gorm.DB
}

func NewClassService(db *gorm.DB) *ClassService {
	return &ClassService{db: db}
}

// ResolveReferences checks that subject, teacher and classroom ids belong to
// the academy. classroomRef may be a classroom id or name; it is resolved with
// FindOrCreate and written into ClassroomID.
func (s *ClassService) ResolveReferences(ctx context.Context, class *models.Class, classroomRef string) error {
	if class.SubjectID != nil {
		if err := mustExist(ctx, repository.Subjects(s.db), class.AcademyID, *class.SubjectID, "subject"); err != nil {
			return err
		}
	}
	if class.TeacherID != nil {
		if err := mustExist(ctx, repository.Teachers(s.db), class.AcademyID, *class.TeacherID, "teacher"); err != nil {
			return err
		}
	}
	if classroomRef != "" {
		room, _, err := NewClassroomService(s.db).FindOrCreate(ctx, class.AcademyID, classroomRef)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return validationf("classroom %s not found", classroomRef)
			}
			return err
		}
		class.ClassroomID = &room.ID
	} else if class.ClassroomID != nil {
		if err := mustExist(ctx, repository.Classrooms(s.db), class.AcademyID, *class.ClassroomID, "classroom"); err != nil {
			return err
		}
	}
	if class.StartDate != nil && class.EndDate != nil && class.EndDate.Before(*class.StartDate) {
		return validationf("end_date must not be before start_date")
	}
	return nil
}

func mustExist[T any](ctx context.Context, repo *repository.Repository[T], academyID, id, label string) error {
	ok, err := repo.Exists(ctx, academyID, id)
	if err != nil {
		return err
	}
	if !ok {
		return validationf("%s %s does not belong to this academy", label, id)
	}
	return nil
}

// Create resolves references and inserts the class.
func (s *ClassService) Create(ctx context.Context, class *models.Class, classroomRef string) error {
	if err := s.ResolveReferences(ctx, class, classroomRef); err != nil {
		return err
	}
	if class.Status == "" {
		class.Status = "active"
	}
	return repository.Classes(s.db).Save(ctx, class)
}

// Dependents counts rows that pin a class in place.
func (s *ClassService) Dependents(ctx context.Context, classID string) (students, enrollments int64, err error) {
	if err = s.db.WithContext(ctx).Model(&models.Student{}).Where("class_id = ?", classID).Count(&students).Error; err != nil {
		return
	}
	err = s.db.WithContext(ctx).Model(&models.Enrollment{}).
		Where("class_id = ? AND status = ?", classID, "active").Count(&enrollments).Error
	return
}

// Delete removes the class with its schedules and closed enrollments. It is
// refused while students reference the class or active enrollments remain.
func (s *ClassService) Delete(ctx context.Context, academyID, id string) error {
	if _, err := repository.Classes(s.db).FindByID(ctx, academyID, id); err != nil {
		return err
	}
	students, enrollments, err := s.Dependents(ctx, id)
	if err != nil {
		return err
	}
	if students > 0 || enrollments > 0 {
		return dependentsf("class has %d students and %d active enrollments", students, enrollments)
	}
	return s.deleteCascade(ctx, academyID, id)
}

func (s *ClassService) deleteCascade(ctx context.Context, academyID, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("class_id = ?", id).Delete(&models.Schedule{}).Error; err != nil {
			return fmt.Errorf("delete schedules: %w", err)
		}
		if err := tx.Where("class_id = ?", id).Delete(&models.Enrollment{}).Error; err != nil {
			return fmt.Errorf("delete enrollments: %w", err)
		}
		if err := tx.Model(&models.Payment{}).Where("class_id = ?", id).Update("class_id", nil).Error; err != nil {
			return fmt.Errorf("detach payments: %w", err)
		}
		return repository.Classes(tx).Delete(ctx, academyID, id)
	})
}

// DeleteIfEmpty removes the class when no student or enrollment refers to it.
// It reports whether the class was deleted.
func (s *ClassService) DeleteIfEmpty(ctx context.Context, academyID, id string) (bool, error) {
	students, _, err := s.Dependents(ctx, id)
	if err != nil {
		return false, err
	}
	var anyEnrollment int64
	if err := s.db.WithContext(ctx).Model(&models.Enrollment{}).Where("class_id = ?", id).Count(&anyEnrollment).Error; err != nil {
		return false, err
	}
	if students > 0 || anyEnrollment > 0 {
		return false, nil
	}
	if err := s.deleteCascade(ctx, academyID, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	logrus.WithFields(logrus.Fields{"class_id": id, "academy_id": academyID}).Info("empty class removed")
	return true, nil
}

// Roster lists students of a class: direct members plus active enrollments.
func (s *ClassService) Roster(ctx context.Context, academyID, classID string) ([]models.Student, error) {
	if _, err := repository.Classes(s.db).FindByID(ctx, academyID, classID); err != nil {
		return nil, err
	}
	enrolled := s.db.Model(&models.Enrollment{}).Select("student_id").
		Where("class_id = ? AND status = ?", classID, "active")
	var students []models.Student
	err := repository.Students(s.db).Scoped(ctx, academyID).
		Where("class_id = ? OR id IN (?)", classID, enrolled).
		Order("first_name ASC").Find(&students).Error
	return students, err
}
