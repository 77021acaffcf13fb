package services

import (
	"academyhub/database"
	"academyhub/models"
	"academyhub/repository"
	"academyhub/utils"
	"context"
	"fmt"
	"strings"

	"gorm.io/gorm"
)

type AcademyService struct {
	db *gorm.DB
}

func NewAcademyService(db *gorm.DB) *AcademyService {
	return &AcademyService{db: db}
}

// NormalizeCode trims and upper-cases an academy code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// CodeTaken reports whether another academy already uses code.
func (s *AcademyService) CodeTaken(ctx context.Context, code, exceptID string) (bool, error) {
	q := s.db.WithContext(ctx).Model(&models.Academy{}).Where("code = ?", NormalizeCode(code))
	if exceptID != "" {
		q = q.Where("id <> ?", exceptID)
	}
	var n int64
	err := q.Count(&n).Error
	return n > 0, err
}

func (s *AcademyService) Create(ctx context.Context, a *models.Academy) error {
	a.Code = NormalizeCode(a.Code)
	if a.Code == "" {
		return validationf("code is required")
	}
	taken, err := s.CodeTaken(ctx, a.Code, "")
	if err != nil {
		return err
	}
	if taken {
		return fmt.Errorf("%w: academy code %s is already in use", ErrDuplicate, a.Code)
	}
	if a.Status == "" {
		a.Status = "active"
	}
	// the unique index still guards concurrent inserts
	return repository.Academies(s.db).Save(ctx, a)
}

// Update applies fields, normalizing and re-checking the code when it changes.
func (s *AcademyService) Update(ctx context.Context, id string, fields map[string]interface{}) (*models.Academy, error) {
	if raw, ok := fields["code"].(string); ok {
		code := NormalizeCode(raw)
		if code == "" {
			return nil, validationf("code must not be empty")
		}
		taken, err := s.CodeTaken(ctx, code, id)
		if err != nil {
			return nil, err
		}
		if taken {
			return nil, fmt.Errorf("%w: academy code %s is already in use", ErrDuplicate, code)
		}
		fields["code"] = code
	}
	return repository.Academies(s.db).Update(ctx, id, id, fields)
}

// Delete refuses while the academy still has classes or students.
func (s *AcademyService) Delete(ctx context.Context, id string) error {
	if _, err := repository.Academies(s.db).FindByID(ctx, id, id); err != nil {
		return err
	}
	var classes, students int64
	if err := s.db.WithContext(ctx).Model(&models.Class{}).Where("academy_id = ?", id).Count(&classes).Error; err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Model(&models.Student{}).Where("academy_id = ?", id).Count(&students).Error; err != nil {
		return err
	}
	if classes > 0 || students > 0 {
		return dependentsf("academy has %d classes and %d students", classes, students)
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, m := range []interface{}{
			&models.Schedule{}, &models.Classroom{}, &models.Subject{}, &models.Teacher{},
			&models.Parent{}, &models.TimetableSettings{},
		} {
			if err := tx.Where("academy_id = ?", id).Delete(m).Error; err != nil {
				return err
			}
		}
		if err := tx.Model(&models.User{}).Where("academy_id = ?", id).Update("status", "inactive").Error; err != nil {
			return err
		}
		return repository.Academies(tx).Delete(ctx, id, id)
	})
}

// RegisterInput creates an academy together with its owner account.
type RegisterInput struct {
	AcademyName string `json:"academy_name" validate:"required,max=255"`
	AcademyCode string `json:"academy_code" validate:"required,max=50"`
	Phone       string `json:"phone" validate:"omitempty,max=30"`
	Address     string `json:"address" validate:"omitempty,max=500"`
	OwnerName   string `json:"owner_name" validate:"required,max=200"`
	Email       string `json:"email" validate:"required,email"`
	Password    string `json:"password" validate:"required,min=8"`
}

// Register inserts the academy, its owner and default timetable settings in one transaction.
func (s *AcademyService) Register(ctx context.Context, in RegisterInput) (*models.Academy, *models.User, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	var n int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("email = ?", email).Count(&n).Error; err != nil {
		return nil, nil, err
	}
	if n > 0 {
		return nil, nil, fmt.Errorf("%w: email %s is already registered", ErrDuplicate, email)
	}
	hash, err := utils.HashPassword(in.Password)
	if err != nil {
		return nil, nil, err
	}

	academy := &models.Academy{
		Name:      strings.TrimSpace(in.AcademyName),
		Code:      in.AcademyCode,
		Phone:     in.Phone,
		Address:   in.Address,
		Email:     email,
		OwnerName: in.OwnerName,
	}
	var owner *models.User
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := NewAcademyService(tx).Create(ctx, academy); err != nil {
			return err
		}
		owner = &models.User{
			AcademyID: &academy.ID,
			Email:     email,
			Password:  hash,
			Name:      in.OwnerName,
			Phone:     in.Phone,
			Role:      models.RoleOwner,
			Status:    "active",
		}
		if err := repository.Users(tx).Save(ctx, owner); err != nil {
			return err
		}
		settings := defaultTimetable(academy.ID)
		return repository.TimetableSettings(tx).Save(ctx, &settings)
	})
	if err != nil {
		if database.IsUniqueViolation(err) {
			return nil, nil, fmt.Errorf("%w: %s", ErrDuplicate, database.PublicMessage(err))
		}
		return nil, nil, err
	}
	return academy, owner, nil
}
