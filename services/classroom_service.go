package services

import (
	"academyhub/models"
	"academyhub/repository"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// ClassroomService resolves classroom references coming from forms that may
// carry either an id or a free-typed room name.
type ClassroomService struct {
	db *gorm.DB
}

func NewClassroomService(db *gorm.DB) *ClassroomService {
	return &ClassroomService{db: db}
}

// FindOrCreate resolves identifier inside academyID in this order: id in the
// academy, id anywhere (cross-tenant rows are logged and only adopted when they
// have no academy), name in the academy, and finally a new classroom named
// identifier. An unmatched UUID is ErrNotFound rather than a new room.
func (s *ClassroomService) FindOrCreate(ctx context.Context, academyID, identifier string) (*models.Classroom, bool, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return nil, false, validationf("classroom identifier is required")
	}
	if academyID == "" {
		return nil, false, validationf("academy_id is required")
	}

	repo := repository.Classrooms(s.db)
	_, uuidErr := uuid.Parse(identifier)
	isUUID := uuidErr == nil

	if isUUID {
		room, err := repo.FindByID(ctx, academyID, identifier)
		if err == nil {
			return room, false, nil
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return nil, false, err
		}

		room, err = repo.FindByID(ctx, "", identifier)
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return nil, false, err
		}
		if room != nil {
			logrus.WithFields(logrus.Fields{
				"classroom_id":       room.ID,
				"owner_academy_id":   room.AcademyID,
				"request_academy_id": academyID,
			}).Warn("classroom resolved outside the requesting academy")
			if room.AcademyID == "" {
				return room, false, nil
			}
		}
	}

	var byName models.Classroom
	err := repo.Scoped(ctx, academyID).
		Where("LOWER(name) = ?", strings.ToLower(identifier)).
		Order("created_at ASC").
		First(&byName).Error
	if err == nil {
		return &byName, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, fmt.Errorf("classroom name lookup: %w", err)
	}

	if isUUID {
		return nil, false, repository.ErrNotFound
	}

	room := &models.Classroom{AcademyID: academyID, Name: identifier, Status: "available"}
	if err := repo.Save(ctx, room); err != nil {
		return nil, false, err
	}
	logrus.WithFields(logrus.Fields{"classroom_id": room.ID, "academy_id": academyID, "name": identifier}).
		Info("classroom created on demand")
	return room, true, nil
}

// NameTaken reports whether another classroom of the academy uses name.
func (s *ClassroomService) NameTaken(ctx context.Context, academyID, name, exceptID string) (bool, error) {
	q := repository.Classrooms(s.db).Scoped(ctx, academyID).Where("LOWER(name) = ?", strings.ToLower(strings.TrimSpace(name)))
	if exceptID != "" {
		q = q.Where("id <> ?", exceptID)
	}
	var n int64
	if err := q.Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}

// Delete removes a classroom unless classes or schedules still use it.
func (s *ClassroomService) Delete(ctx context.Context, academyID, id string) error {
	repo := repository.Classrooms(s.db)
	if _, err := repo.FindByID(ctx, academyID, id); err != nil {
		return err
	}
	var classes, schedules int64
	if err := s.db.WithContext(ctx).Model(&models.Class{}).Where("classroom_id = ?", id).Count(&classes).Error; err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Model(&models.Schedule{}).Where("classroom_id = ?", id).Count(&schedules).Error; err != nil {
		return err
	}
	if classes > 0 || schedules > 0 {
		return dependentsf("classroom is used by %d classes and %d schedules", classes, schedules)
	}
	return repo.Delete(ctx, academyID, id)
}
