package services

import (
	"academyhub/models"
	"academyhub/repository"
	"academyhub/utils"
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"gorm.io/gorm"
)

type ScheduleService struct {
	db *gorm.DB
}

func NewScheduleService(db *gorm.DB) *ScheduleService {
	return &ScheduleService{db: db}
}

// ConflictError names the schedule that blocks a slot.
type ConflictError struct {
	With     models.Schedule
	Resource string // classroom or teacher
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s is already booked on day %d %s-%s", e.Resource, e.With.DayOfWeek, e.With.StartTime, e.With.EndTime)
}

func (e *ConflictError) Unwrap() error { return ErrScheduleConflict }

// slotsOverlap reports whether [s1,e1) and [s2,e2) intersect. Inputs are HH:MM.
func slotsOverlap(s1, e1, s2, e2 string) bool {
	return s1 < e2 && s2 < e1
}

// rangesOverlap treats nil bounds as open-ended.
func rangesOverlap(from1, to1, from2, to2 *time.Time) bool {
	if to1 != nil && from2 != nil && to1.Before(*from2) {
		return false
	}
	if to2 != nil && from1 != nil && to2.Before(*from1) {
		return false
	}
	return true
}

// Prepare validates a schedule, fills teacher and classroom from its class and
// normalizes times. classroomRef may name a classroom to find or create.
func (s *ScheduleService) Prepare(ctx context.Context, sc *models.Schedule, classroomRef string) error {
	if sc.DayOfWeek < 0 || sc.DayOfWeek > 6 {
		return validationf("day_of_week must be between 0 (Sunday) and 6")
	}
	start, err := utils.ParseClock(sc.StartTime)
	if err != nil {
		return validationf("%v", err)
	}
	end, err := utils.ParseClock(sc.EndTime)
	if err != nil {
		return validationf("%v", err)
	}
	if start >= end {
		return validationf("start_time must be before end_time")
	}
	sc.StartTime = fmt.Sprintf("%02d:%02d", start/60, start%60)
	sc.EndTime = fmt.Sprintf("%02d:%02d", end/60, end%60)
	if sc.EffectiveFrom != nil && sc.EffectiveTo != nil && sc.EffectiveTo.Before(*sc.EffectiveFrom) {
		return validationf("effective_to must not be before effective_from")
	}

	class, err := repository.Classes(s.db).FindByID(ctx, sc.AcademyID, sc.ClassID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return validationf("class %s does not belong to this academy", sc.ClassID)
		}
		return err
	}
	if sc.TeacherID == nil {
		sc.TeacherID = class.TeacherID
	} else if err := mustExist(ctx, repository.Teachers(s.db), sc.AcademyID, *sc.TeacherID, "teacher"); err != nil {
		return err
	}

	switch {
	case classroomRef != "":
		room, _, err := NewClassroomService(s.db).FindOrCreate(ctx, sc.AcademyID, classroomRef)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return validationf("classroom %s not found", classroomRef)
			}
			return err
		}
		sc.ClassroomID = &room.ID
	case sc.ClassroomID == nil:
		sc.ClassroomID = class.ClassroomID
	default:
		if err := mustExist(ctx, repository.Classrooms(s.db), sc.AcademyID, *sc.ClassroomID, "classroom"); err != nil {
			return err
		}
	}
	return nil
}

// CheckConflict looks for another schedule of the academy on the same weekday
// whose time and effective range overlap and that shares the classroom or teacher.
func (s *ScheduleService) CheckConflict(ctx context.Context, sc *models.Schedule) error {
	if sc.ClassroomID == nil && sc.TeacherID == nil {
		return nil
	}
	q := repository.Schedules(s.db).Scoped(ctx, sc.AcademyID).
		Where("day_of_week = ?", sc.DayOfWeek).
		Where("start_time < ? AND end_time > ?", sc.EndTime, sc.StartTime)
	if sc.ID != "" {
		q = q.Where("id <> ?", sc.ID)
	}
	switch {
	case sc.ClassroomID != nil && sc.TeacherID != nil:
		q = q.Where("(classroom_id = ? OR teacher_id = ?)", *sc.ClassroomID, *sc.TeacherID)
	case sc.ClassroomID != nil:
		q = q.Where("classroom_id = ?", *sc.ClassroomID)
	default:
		q = q.Where("teacher_id = ?", *sc.TeacherID)
	}

	var candidates []models.Schedule
	if err := q.Find(&candidates).Error; err != nil {
		return err
	}
	for _, other := range candidates {
		if !slotsOverlap(sc.StartTime, sc.EndTime, other.StartTime, other.EndTime) {
			continue
		}
		if !rangesOverlap(sc.EffectiveFrom, sc.EffectiveTo, other.EffectiveFrom, other.EffectiveTo) {
			continue
		}
		resource := "teacher"
		if sc.ClassroomID != nil && other.ClassroomID != nil && *sc.ClassroomID == *other.ClassroomID {
			resource = "classroom"
		}
		return &ConflictError{With: other, Resource: resource}
	}
	return nil
}

func (s *ScheduleService) Create(ctx context.Context, sc *models.Schedule, classroomRef string) error {
	if err := s.Prepare(ctx, sc, classroomRef); err != nil {
		return err
	}
	if err := s.CheckConflict(ctx, sc); err != nil {
		return err
	}
	return repository.Schedules(s.db).Save(ctx, sc)
}

// Update applies fields to an existing schedule after re-validating the merged row.
func (s *ScheduleService) Update(ctx context.Context, academyID, id string, fields map[string]interface{}) (*models.Schedule, error) {
	repo := repository.Schedules(s.db)
	current, err := repo.FindByID(ctx, academyID, id)
	if err != nil {
		return nil, err
	}
	merged := *current
	merged.Class, merged.Teacher, merged.Classroom = nil, nil, nil
	applyScheduleFields(&merged, fields)

	if err := s.Prepare(ctx, &merged, ""); err != nil {
		return nil, err
	}
	if err := s.CheckConflict(ctx, &merged); err != nil {
		return nil, err
	}
	fields["start_time"] = merged.StartTime
	fields["end_time"] = merged.EndTime
	// store the references the conflict check ran with, including class defaults
	if _, ok := fields["teacher_id"]; ok {
		fields["teacher_id"] = nullable(merged.TeacherID)
	}
	if _, ok := fields["classroom_id"]; ok {
		fields["classroom_id"] = nullable(merged.ClassroomID)
	}
	return repo.Update(ctx, academyID, id, fields)
}

func nullable(p *string) interface{} {
	if p == nil {
		return nil
	}
	return *p
}

func applyScheduleFields(sc *models.Schedule, fields map[string]interface{}) {
	for k, v := range fields {
		switch k {
		case "day_of_week":
			if n, ok := v.(int); ok {
				sc.DayOfWeek = n
			}
		case "start_time":
			if str, ok := v.(string); ok {
				sc.StartTime = str
			}
		case "end_time":
			if str, ok := v.(string); ok {
				sc.EndTime = str
			}
		case "teacher_id":
			sc.TeacherID = optString(v)
		case "classroom_id":
			sc.ClassroomID = optString(v)
		case "effective_from":
			sc.EffectiveFrom = optTime(v)
		case "effective_to":
			sc.EffectiveTo = optTime(v)
		}
	}
}

func optString(v interface{}) *string {
	if str, ok := v.(string); ok && str != "" {
		return &str
	}
	return nil
}

func optTime(v interface{}) *time.Time {
	if t, ok := v.(time.Time); ok {
		return &t
	}
	return nil
}

// TimetableDay is one weekday column of the timetable.
type TimetableDay struct {
	DayOfWeek int               `json:"day_of_week"`
	Schedules []models.Schedule `json:"schedules"`
}

// Timetable returns the academy's weekly grid, optionally filtered.
func (s *ScheduleService) Timetable(ctx context.Context, academyID string, filters map[string]interface{}) ([]TimetableDay, error) {
	items, _, err := repository.Schedules(s.db).FindAll(ctx, academyID, repository.ListOptions{Filters: filters, All: true})
	if err != nil {
		return nil, err
	}
	days := make([]TimetableDay, 7)
	for i := range days {
		days[i] = TimetableDay{DayOfWeek: i, Schedules: []models.Schedule{}}
	}
	for _, sc := range items {
		if sc.DayOfWeek >= 0 && sc.DayOfWeek < 7 {
			days[sc.DayOfWeek].Schedules = append(days[sc.DayOfWeek].Schedules, sc)
		}
	}
	for i := range days {
		sort.SliceStable(days[i].Schedules, func(a, b int) bool {
			return days[i].Schedules[a].StartTime < days[i].Schedules[b].StartTime
		})
	}
	return days, nil
}

// SessionsOn lists schedules in effect on date (weekday and effective range).
// An empty academyID covers all academies.
func (s *ScheduleService) SessionsOn(ctx context.Context, academyID string, date time.Time) ([]models.Schedule, error) {
	day := models.DateOnly(date)
	var out []models.Schedule
	err := repository.Schedules(s.db).Scoped(ctx, academyID).
		Preload("Class").Preload("Teacher").Preload("Classroom").
		Where("day_of_week = ?", int(date.Weekday())).
		Where("(effective_from IS NULL OR effective_from <= ?)", day).
		Where("(effective_to IS NULL OR effective_to >= ?)", day).
		Order("start_time ASC").
		Find(&out).Error
	return out, err
}
