package services

import (
	"academyhub/models"
	"academyhub/repository"
	"academyhub/utils"
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"gorm.io/gorm"
)

const linkCodeLength = 8

// ErrNotParent is returned when a user has no parent profile.
var ErrNotParent = errors.New("user is not linked to a parent profile")

var spaces = regexp.MustCompile(`\s+`)

// NormalizeLinkCode makes codes typed into a chat comparable.
func NormalizeLinkCode(s string) string {
	return strings.ToUpper(spaces.ReplaceAllString(strings.TrimSpace(s), ""))
}

type ParentService struct {
	db *gorm.DB
}

func NewParentService(db *gorm.DB) *ParentService {
	return &ParentService{db: db}
}

func (s *ParentService) newLinkCode(ctx context.Context) (string, error) {
	for i := 0; i < 5; i++ {
		raw, err := utils.GenerateRandomString(linkCodeLength)
		if err != nil {
			return "", err
		}
		code := strings.ToUpper(raw)
		var n int64
		if err := s.db.WithContext(ctx).Model(&models.Parent{}).Where("link_code = ?", code).Count(&n).Error; err != nil {
			return "", err
		}
		if n == 0 {
			return code, nil
		}
	}
	return "", errors.New("could not generate a unique link code")
}

// Create inserts a parent with a fresh link code.
func (s *ParentService) Create(ctx context.Context, p *models.Parent) error {
	if p.UserID != nil {
		if err := s.checkParentUser(ctx, p.AcademyID, *p.UserID); err != nil {
			return err
		}
	}
	code, err := s.newLinkCode(ctx)
	if err != nil {
		return err
	}
	p.LinkCode = code
	return repository.Parents(s.db).Save(ctx, p)
}

func (s *ParentService) checkParentUser(ctx context.Context, academyID, userID string) error {
	u, err := repository.Users(s.db).FindByID(ctx, academyID, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return validationf("user %s does not belong to this academy", userID)
		}
		return err
	}
	if u.Role != models.RoleParent {
		return validationf("user %s must have the parent role", userID)
	}
	return nil
}

// Update applies fields, checking a new user_id has the parent role.
func (s *ParentService) Update(ctx context.Context, academyID, id string, fields map[string]interface{}) (*models.Parent, error) {
	current, err := repository.Parents(s.db).FindByID(ctx, academyID, id)
	if err != nil {
		return nil, err
	}
	if uid, ok := fields["user_id"].(string); ok {
		if err := s.checkParentUser(ctx, current.AcademyID, uid); err != nil {
			return nil, err
		}
	}
	return repository.Parents(s.db).Update(ctx, academyID, id, fields)
}

// RegenerateLinkCode replaces the code, invalidating the old one.
func (s *ParentService) RegenerateLinkCode(ctx context.Context, academyID, id string) (*models.Parent, error) {
	if _, err := repository.Parents(s.db).FindByID(ctx, academyID, id); err != nil {
		return nil, err
	}
	code, err := s.newLinkCode(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Model(&models.Parent{}).Where("id = ?", id).Update("link_code", code).Error; err != nil {
		return nil, err
	}
	return repository.Parents(s.db).FindByID(ctx, academyID, id)
}

// LinkLine binds a LINE user to the parent owning code. Codes are global, so
// the lookup is not scoped to an academy.
func (s *ParentService) LinkLine(ctx context.Context, code, lineUserID string) (*models.Parent, error) {
	code = NormalizeLinkCode(code)
	if len(code) != linkCodeLength || lineUserID == "" {
		return nil, repository.ErrNotFound
	}
	var p models.Parent
	if err := s.db.WithContext(ctx).Where("link_code = ?", code).First(&p).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Parent{}).Where("id = ?", p.ID).Update("line_user_id", lineUserID).Error; err != nil {
			return err
		}
		if p.UserID != nil {
			return tx.Model(&models.User{}).Where("id = ?", *p.UserID).Update("line_user_id", lineUserID).Error
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("link line: %w", err)
	}
	p.LineUserID = lineUserID
	return &p, nil
}

// ForUser returns the parent profile owned by a parent-role user.
func (s *ParentService) ForUser(ctx context.Context, userID string) (*models.Parent, error) {
	var p models.Parent
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&p).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotParent
		}
		return nil, err
	}
	return &p, nil
}

// Children lists the parent's students with their class.
func (s *ParentService) Children(ctx context.Context, p *models.Parent) ([]models.Student, error) {
	var out []models.Student
	err := s.db.WithContext(ctx).Preload("Class").
		Where("parent_id = ? AND academy_id = ?", p.ID, p.AcademyID).
		Order("first_name ASC").Find(&out).Error
	return out, err
}

// Child returns one of the parent's students or repository.ErrNotFound.
func (s *ParentService) Child(ctx context.Context, p *models.Parent, studentID string) (*models.Student, error) {
	st, err := repository.Students(s.db).FindByID(ctx, p.AcademyID, studentID)
	if err != nil {
		return nil, err
	}
	if st.ParentID == nil || *st.ParentID != p.ID {
		return nil, repository.ErrNotFound
	}
	return st, nil
}

// ChildAttendance lists the child's records from since onwards, newest first.
func (s *ParentService) ChildAttendance(ctx context.Context, p *models.Parent, studentID string, since time.Time) ([]models.AttendanceRecord, error) {
	if _, err := s.Child(ctx, p, studentID); err != nil {
		return nil, err
	}
	var out []models.AttendanceRecord
	err := s.db.WithContext(ctx).
		Where("student_id = ? AND date >= ?", studentID, models.DateOnly(since)).
		Order("date DESC").Find(&out).Error
	return out, err
}

// ChildPayments lists the child's payments, newest first.
func (s *ParentService) ChildPayments(ctx context.Context, p *models.Parent, studentID string) ([]models.Payment, error) {
	if _, err := s.Child(ctx, p, studentID); err != nil {
		return nil, err
	}
	var out []models.Payment
	err := s.db.WithContext(ctx).Preload("Class").
		Where("student_id = ?", studentID).
		Order("payment_date DESC").Find(&out).Error
	return out, err
}

// ChildSchedule returns the weekly schedules of every class the child attends.
func (s *ParentService) ChildSchedule(ctx context.Context, p *models.Parent, studentID string) ([]models.Schedule, error) {
	st, err := s.Child(ctx, p, studentID)
	if err != nil {
		return nil, err
	}
	var classIDs []string
	if err := s.db.WithContext(ctx).Model(&models.Enrollment{}).
		Where("student_id = ? AND status = ?", studentID, "active").
		Pluck("class_id", &classIDs).Error; err != nil {
		return nil, err
	}
	if st.ClassID != nil {
		classIDs = append(classIDs, *st.ClassID)
	}
	classIDs = uniqueStrings(classIDs)
	out := []models.Schedule{}
	if len(classIDs) == 0 {
		return out, nil
	}
	err = s.db.WithContext(ctx).Preload("Class").Preload("Teacher").Preload("Classroom").
		Where("class_id IN ?", classIDs).
		Order("day_of_week ASC, start_time ASC").Find(&out).Error
	return out, err
}
