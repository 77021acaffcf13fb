package services_test

import (
	"context"
	"testing"

	"academyhub/database/dbtest"
	"academyhub/models"
	"academyhub/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScheduleCreateDetectsConflicts(t *testing.T) {
	db := dbtest.New(t)
	ctx := context.Background()
	w := seedWorld(t, db, "KORAT")
	svc := services.NewScheduleService(db)

	monday := models.Schedule{AcademyID: w.Academy.ID, ClassID: w.Class.ID, DayOfWeek: 1, StartTime: "9:00", EndTime: "10:30"}
	require.NoError(t, svc.Create(ctx, &monday, ""))
	assert.Equal(t, "09:00", monday.StartTime, "times are normalized")
	require.NotNil(t, monday.ClassroomID, "classroom comes from the class")
	assert.Equal(t, w.Classroom.ID, *monday.ClassroomID)
	require.NotNil(t, monday.TeacherID)

	t.Run("same room overlaps", func(t *testing.T) {
		clash := models.Schedule{AcademyID: w.Academy.ID, ClassID: w.Class.ID, DayOfWeek: 1, StartTime: "10:00", EndTime: "11:00"}
		err := svc.Create(ctx, &clash, "")
		require.ErrorIs(t, err, services.ErrScheduleConflict)
		var ce *services.ConflictError
		require.ErrorAs(t, err, &ce)
		assert.Equal(t, "classroom", ce.Resource)
		assert.Equal(t, monday.ID, ce.With.ID)
	})

	t.Run("adjacent slot is free", func(t *testing.T) {
		next := models.Schedule{AcademyID: w.Academy.ID, ClassID: w.Class.ID, DayOfWeek: 1, StartTime: "10:30", EndTime: "11:30"}
		assert.NoError(t, svc.Create(ctx, &next, ""))
	})

	t.Run("other day is free", func(t *testing.T) {
		tuesday := models.Schedule{AcademyID: w.Academy.ID, ClassID: w.Class.ID, DayOfWeek: 2, StartTime: "09:00", EndTime: "10:00"}
		assert.NoError(t, svc.Create(ctx, &tuesday, ""))
	})

	t.Run("teacher busy in another room", func(t *testing.T) {
		clash := models.Schedule{AcademyID: w.Academy.ID, ClassID: w.Class.ID, DayOfWeek: 1, StartTime: "09:15", EndTime: "09:45"}
		err := svc.Create(ctx, &clash, "Hall B")
		var ce *services.ConflictError
		require.ErrorAs(t, err, &ce)
		assert.Equal(t, "teacher", ce.Resource)
	})

	t.Run("other academy never conflicts", func(t *testing.T) {
		other := seedWorld(t, db, "OTHER")
		s := models.Schedule{AcademyID: other.Academy.ID, ClassID: other.Class.ID, DayOfWeek: 1, StartTime: "09:00", EndTime: "10:30"}
		assert.NoError(t, svc.Create(ctx, &s, ""))
	})
}

func TestSchedulePrepareValidation(t *testing.T) {
	db := dbtest.New(t)
	ctx := context.Background()
	w := seedWorld(t, db, "KORAT")
	other := seedWorld(t, db, "OTHER")
	svc := services.NewScheduleService(db)

	cases := map[string]models.Schedule{
		"bad day":       {ClassID: w.Class.ID, DayOfWeek: 7, StartTime: "09:00", EndTime: "10:00"},
		"bad clock":     {ClassID: w.Class.ID, DayOfWeek: 1, StartTime: "25:00", EndTime: "26:00"},
		"reversed":      {ClassID: w.Class.ID, DayOfWeek: 1, StartTime: "10:00", EndTime: "09:00"},
		"foreign class": {ClassID: other.Class.ID, DayOfWeek: 1, StartTime: "09:00", EndTime: "10:00"},
		"foreign room":  {ClassID: w.Class.ID, ClassroomID: &other.Classroom.ID, DayOfWeek: 1, StartTime: "09:00", EndTime: "10:00"},
	}
	for name, sc := range cases {
		t.Run(name, func(t *testing.T) {
			sc := sc
			sc.AcademyID = w.Academy.ID
			assert.ErrorIs(t, svc.Prepare(ctx, &sc, ""), services.ErrValidation)
		})
	}
}

func TestScheduleUpdateRechecksConflicts(t *testing.T) {
	db := dbtest.New(t)
	ctx := context.Background()
	w := seedWorld(t, db, "KORAT")
	svc := services.NewScheduleService(db)

	a := models.Schedule{AcademyID: w.Academy.ID, ClassID: w.Class.ID, DayOfWeek: 3, StartTime: "09:00", EndTime: "10:00"}
	b := models.Schedule{AcademyID: w.Academy.ID, ClassID: w.Class.ID, DayOfWeek: 3, StartTime: "11:00", EndTime: "12:00"}
	require.NoError(t, svc.Create(ctx, &a, ""))
	require.NoError(t, svc.Create(ctx, &b, ""))

	_, err := svc.Update(ctx, w.Academy.ID, b.ID, map[string]interface{}{"start_time": "09:30"})
	assert.ErrorIs(t, err, services.ErrScheduleConflict)

	// moving a slot within its own time is not a conflict with itself
	got, err := svc.Update(ctx, w.Academy.ID, a.ID, map[string]interface{}{"end_time": "10:30"})
	require.NoError(t, err)
	assert.Equal(t, "10:30", got.EndTime)
}

func TestScheduleUpdateClearedReferencesFallBackToClass(t *testing.T) {
	db := dbtest.New(t)
	ctx := context.Background()
	w := seedWorld(t, db, "KORAT")
	svc := services.NewScheduleService(db)

	sub := models.Teacher{AcademyID: w.Academy.ID, FirstName: "Kru", LastName: "Nid", Status: "active"}
	require.NoError(t, db.Create(&sub).Error)
	sc := models.Schedule{AcademyID: w.Academy.ID, ClassID: w.Class.ID, TeacherID: &sub.ID, DayOfWeek: 3, StartTime: "09:00", EndTime: "10:00"}
	require.NoError(t, svc.Create(ctx, &sc, ""))

	got, err := svc.Update(ctx, w.Academy.ID, sc.ID, map[string]interface{}{"teacher_id": nil, "classroom_id": nil})
	require.NoError(t, err)
	require.NotNil(t, got.TeacherID)
	assert.Equal(t, w.Teacher.ID, *got.TeacherID)
	require.NotNil(t, got.ClassroomID)
	assert.Equal(t, w.Classroom.ID, *got.ClassroomID)

	var stored models.Schedule
	require.NoError(t, db.Where("id = ?", sc.ID).First(&stored).Error)
	require.NotNil(t, stored.TeacherID)
	assert.Equal(t, w.Teacher.ID, *stored.TeacherID)
}

func TestTimetableGroupsByWeekday(t *testing.T) {
	db := dbtest.New(t)
	ctx := context.Background()
	w := seedWorld(t, db, "KORAT")
	svc := services.NewScheduleService(db)

	for _, s := range []models.Schedule{
		{DayOfWeek: 1, StartTime: "13:00", EndTime: "14:00"},
		{DayOfWeek: 1, StartTime: "08:00", EndTime: "09:00"},
		{DayOfWeek: 5, StartTime: "10:00", EndTime: "11:00"},
	} {
		s.AcademyID, s.ClassID = w.Academy.ID, w.Class.ID
		require.NoError(t, svc.Create(ctx, &s, ""))
	}

	days, err := svc.Timetable(ctx, w.Academy.ID, nil)
	require.NoError(t, err)
	require.Len(t, days, 7)
	require.Len(t, days[1].Schedules, 2)
	assert.Equal(t, "08:00", days[1].Schedules[0].StartTime)
	assert.Equal(t, "13:00", days[1].Schedules[1].StartTime)
	assert.Len(t, days[5].Schedules, 1)
	assert.Empty(t, days[0].Schedules)
}
