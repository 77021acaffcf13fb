package services_test

import (
	"context"
	"testing"

	"academyhub/database/dbtest"
	"academyhub/models"
	"academyhub/repository"
	"academyhub/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassDeleteBlockedWhileStudentsRemain(t *testing.T) {
	db := dbtest.New(t)
	ctx := context.Background()
	w := seedWorld(t, db, "KORAT")
	st := w.student(t, db, "Ploy", true)
	svc := services.NewClassService(db)

	err := svc.Delete(ctx, w.Academy.ID, w.Class.ID)
	require.ErrorIs(t, err, services.ErrHasDependents)

	_, err = repository.Classes(db).FindByID(ctx, w.Academy.ID, w.Class.ID)
	require.NoError(t, err, "blocked delete must leave the class in place")

	require.NoError(t, db.Model(&models.Student{}).Where("id = ?", st.ID).Update("class_id", nil).Error)
	sched := models.Schedule{AcademyID: w.Academy.ID, ClassID: w.Class.ID, DayOfWeek: 1, StartTime: "09:00", EndTime: "10:00"}
	require.NoError(t, db.Omit("Class", "Teacher", "Classroom").Create(&sched).Error)

	require.NoError(t, svc.Delete(ctx, w.Academy.ID, w.Class.ID))
	_, err = repository.Classes(db).FindByID(ctx, w.Academy.ID, w.Class.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)

	var schedules int64
	db.Model(&models.Schedule{}).Where("class_id = ?", w.Class.ID).Count(&schedules)
	assert.Zero(t, schedules, "schedules go with the class")
}

func TestClassDeleteMissing(t *testing.T) {
	db := dbtest.New(t)
	w := seedWorld(t, db, "KORAT")
	other := seedWorld(t, db, "OTHER")

	err := services.NewClassService(db).Delete(context.Background(), w.Academy.ID, other.Class.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestClassCreateResolvesClassroomByName(t *testing.T) {
	db := dbtest.New(t)
	ctx := context.Background()
	w := seedWorld(t, db, "KORAT")

	class := models.Class{AcademyID: w.Academy.ID, Name: "Math P6"}
	require.NoError(t, services.NewClassService(db).Create(ctx, &class, "room 101"))
	require.NotNil(t, class.ClassroomID)
	assert.Equal(t, w.Classroom.ID, *class.ClassroomID)
	assert.Equal(t, "active", class.Status)

	foreign := seedWorld(t, db, "OTHER")
	bad := models.Class{AcademyID: w.Academy.ID, Name: "X", TeacherID: &foreign.Teacher.ID}
	err := services.NewClassService(db).Create(ctx, &bad, "")
	assert.ErrorIs(t, err, services.ErrValidation)
}

func TestRosterIncludesEnrolledStudents(t *testing.T) {
	db := dbtest.New(t)
	ctx := context.Background()
	w := seedWorld(t, db, "KORAT")
	w.student(t, db, "Ploy", true)
	guest := w.student(t, db, "Ton", false)
	w.student(t, db, "Mint", false)

	require.NoError(t, services.NewEnrollmentService(db).Enroll(ctx, &models.Enrollment{
		AcademyID: w.Academy.ID, StudentID: guest.ID, ClassID: w.Class.ID,
	}))

	roster, err := services.NewClassService(db).Roster(ctx, w.Academy.ID, w.Class.ID)
	require.NoError(t, err)
	names := []string{}
	for _, s := range roster {
		names = append(names, s.FirstName)
	}
	assert.Equal(t, []string{"Ploy", "Ton"}, names)
}

func TestEnrollRespectsCapacityAndDuplicates(t *testing.T) {
	db := dbtest.New(t)
	ctx := context.Background()
	w := seedWorld(t, db, "KORAT")
	svc := services.NewEnrollmentService(db)

	a := w.student(t, db, "A", false)
	b := w.student(t, db, "B", false)
	c := w.student(t, db, "C", false)

	require.NoError(t, svc.Enroll(ctx, &models.Enrollment{AcademyID: w.Academy.ID, StudentID: a.ID, ClassID: w.Class.ID}))
	err := svc.Enroll(ctx, &models.Enrollment{AcademyID: w.Academy.ID, StudentID: a.ID, ClassID: w.Class.ID})
	assert.ErrorIs(t, err, services.ErrDuplicate)

	require.NoError(t, svc.Enroll(ctx, &models.Enrollment{AcademyID: w.Academy.ID, StudentID: b.ID, ClassID: w.Class.ID}))
	err = svc.Enroll(ctx, &models.Enrollment{AcademyID: w.Academy.ID, StudentID: c.ID, ClassID: w.Class.ID})
	assert.ErrorIs(t, err, services.ErrValidation, "class capacity is 2")

	got, err := repository.Students(db).FindByID(ctx, w.Academy.ID, a.ID)
	require.NoError(t, err)
	require.NotNil(t, got.ClassID, "first enrollment sets the home class")
	assert.Equal(t, w.Class.ID, *got.ClassID)
}
