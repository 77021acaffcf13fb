package services

import (
	"academyhub/config"
	"academyhub/models"
	"academyhub/repository"
	"academyhub/utils"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var defaultWorkingDays = []int{1, 2, 3, 4, 5, 6}

// BreakTime is a recurring pause in the timetable grid.
type BreakTime struct {
	Start string `json:"start" validate:"required,clock"`
	End   string `json:"end" validate:"required,clock"`
	Label string `json:"label,omitempty"`
}

// UpdateTimetableInput lists the settings a caller may change.
type UpdateTimetableInput struct {
	DayStart    *string      `json:"day_start" validate:"omitempty,clock"`
	DayEnd      *string      `json:"day_end" validate:"omitempty,clock"`
	SlotMinutes *int         `json:"slot_minutes" validate:"omitempty,min=5,max=240"`
	WorkingDays *[]int       `json:"working_days" validate:"omitempty,dive,min=0,max=6"`
	BreakTimes  *[]BreakTime `json:"break_times" validate:"omitempty,dive"`
	Timezone    *string      `json:"timezone"`
}

// TimetableService manages the per-academy timetable grid.
type TimetableService struct {
	db *gorm.DB
}

func NewTimetableService(db *gorm.DB) *TimetableService {
	return &TimetableService{db: db}
}

func defaultTimetable(academyID string) models.TimetableSettings {
	days, _ := json.Marshal(defaultWorkingDays)
	tz := "UTC"
	if config.AppConfig != nil {
		tz = config.AppConfig.Location().String()
	}
	return models.TimetableSettings{
		AcademyID:   academyID,
		DayStart:    "08:00",
		DayEnd:      "22:00",
		SlotMinutes: 60,
		WorkingDays: datatypes.JSON(days),
		BreakTimes:  datatypes.JSON("[]"),
		Timezone:    tz,
	}
}

// GetOrCreate returns the academy's settings, inserting defaults on first use.
func (s *TimetableService) GetOrCreate(ctx context.Context, academyID string) (*models.TimetableSettings, error) {
	var settings models.TimetableSettings
	err := s.db.WithContext(ctx).Where("academy_id = ?", academyID).First(&settings).Error
	if err == nil {
		return &settings, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	if err := mustExist(ctx, repository.Academies(s.db), academyID, academyID, "academy"); err != nil {
		return nil, err
	}
	settings = defaultTimetable(academyID)
	if err := repository.TimetableSettings(s.db).Save(ctx, &settings); err != nil {
		// lost a race with a concurrent first read
		var existing models.TimetableSettings
		if err2 := s.db.WithContext(ctx).Where("academy_id = ?", academyID).First(&existing).Error; err2 == nil {
			return &existing, nil
		}
		return nil, err
	}
	return &settings, nil
}

// Update validates the merged settings and writes the changed columns.
func (s *TimetableService) Update(ctx context.Context, academyID string, in UpdateTimetableInput) (*models.TimetableSettings, error) {
	current, err := s.GetOrCreate(ctx, academyID)
	if err != nil {
		return nil, err
	}

	changes := map[string]interface{}{}
	dayStart, dayEnd := current.DayStart, current.DayEnd
	if in.DayStart != nil {
		dayStart = *in.DayStart
		changes["day_start"] = dayStart
	}
	if in.DayEnd != nil {
		dayEnd = *in.DayEnd
		changes["day_end"] = dayEnd
	}
	startMin, err := utils.ParseClock(dayStart)
	if err != nil {
		return nil, validationf("day_start: %v", err)
	}
	endMin, err := utils.ParseClock(dayEnd)
	if err != nil {
		return nil, validationf("day_end: %v", err)
	}
	if startMin >= endMin {
		return nil, validationf("day_start must be before day_end")
	}

	if in.SlotMinutes != nil {
		if *in.SlotMinutes < 5 || *in.SlotMinutes > 240 {
			return nil, validationf("slot_minutes must be between 5 and 240")
		}
		changes["slot_minutes"] = *in.SlotMinutes
	}
	if in.WorkingDays != nil {
		days := uniqueInts(*in.WorkingDays)
		for _, d := range days {
			if d < 0 || d > 6 {
				return nil, validationf("working_days entries must be between 0 and 6")
			}
		}
		b, _ := json.Marshal(days)
		changes["working_days"] = datatypes.JSON(b)
	}
	// stored breaks must still fit when only the day bounds change
	var breaks []BreakTime
	if in.BreakTimes != nil {
		breaks = *in.BreakTimes
	} else if len(current.BreakTimes) > 0 {
		if err := json.Unmarshal(current.BreakTimes, &breaks); err != nil {
			return nil, fmt.Errorf("decode stored break_times: %w", err)
		}
	}
	for _, bt := range breaks {
		bs, err1 := utils.ParseClock(bt.Start)
		be, err2 := utils.ParseClock(bt.End)
		if err1 != nil || err2 != nil || bs >= be {
			return nil, validationf("break %s-%s is not a valid range", bt.Start, bt.End)
		}
		if bs < startMin || be > endMin {
			return nil, validationf("break %s-%s lies outside the day", bt.Start, bt.End)
		}
	}
	if in.BreakTimes != nil {
		b, _ := json.Marshal(*in.BreakTimes)
		changes["break_times"] = datatypes.JSON(b)
	}
	if in.Timezone != nil {
		if _, err := time.LoadLocation(*in.Timezone); err != nil {
			return nil, validationf("unknown timezone %q", *in.Timezone)
		}
		changes["timezone"] = *in.Timezone
	}

	if len(changes) == 0 {
		return current, nil
	}
	return repository.TimetableSettings(s.db).Update(ctx, academyID, current.ID, changes)
}

func uniqueInts(in []int) []int {
	seen := map[int]bool{}
	out := make([]int, 0, len(in))
	for _, v := range in {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}
