package services_test

import (
	"context"
	"testing"
	"time"

	"academyhub/database/dbtest"
	"academyhub/models"
	"academyhub/repository"
	"academyhub/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStudentDeleteRemovesEmptiedClass(t *testing.T) {
	db := dbtest.New(t)
	ctx := context.Background()
	w := seedWorld(t, db, "KORAT")
	first := w.student(t, db, "Ploy", true)
	last := w.student(t, db, "Ton", true)

	svc := services.NewStudentService(db)
	svc.AutoDeleteEmptyClass = true

	res, err := svc.Delete(ctx, w.Academy.ID, first.ID)
	require.NoError(t, err)
	assert.False(t, res.ClassDeleted, "Ton is still in the class")

	res, err = svc.Delete(ctx, w.Academy.ID, last.ID)
	require.NoError(t, err)
	assert.True(t, res.ClassDeleted)
	assert.Equal(t, w.Class.ID, res.DeletedClassID)

	_, err = repository.Classes(db).FindByID(ctx, w.Academy.ID, w.Class.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestStudentDeleteKeepsClassWhenDisabled(t *testing.T) {
	db := dbtest.New(t)
	ctx := context.Background()
	w := seedWorld(t, db, "KORAT")
	st := w.student(t, db, "Ploy", true)

	svc := services.NewStudentService(db)
	svc.AutoDeleteEmptyClass = false

	res, err := svc.Delete(ctx, w.Academy.ID, st.ID)
	require.NoError(t, err)
	assert.False(t, res.ClassDeleted)
	_, err = repository.Classes(db).FindByID(ctx, w.Academy.ID, w.Class.ID)
	assert.NoError(t, err)
}

func TestStudentDeleteCascadesAttendance(t *testing.T) {
	db := dbtest.New(t)
	ctx := context.Background()
	w := seedWorld(t, db, "KORAT")
	st := w.student(t, db, "Ploy", true)
	require.NoError(t, db.Omit("Student").Create(&models.AttendanceRecord{
		AcademyID: w.Academy.ID, StudentID: st.ID, ClassID: w.Class.ID,
		Date: time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC), Status: models.AttendancePresent,
	}).Error)

	_, err := services.NewStudentService(db).Delete(ctx, w.Academy.ID, st.ID)
	require.NoError(t, err)

	var left int64
	db.Model(&models.AttendanceRecord{}).Where("student_id = ?", st.ID).Count(&left)
	assert.Zero(t, left)
}

func TestStudentDeleteBlockedByPayments(t *testing.T) {
	db := dbtest.New(t)
	ctx := context.Background()
	w := seedWorld(t, db, "KORAT")
	st := w.student(t, db, "Ploy", true)
	require.NoError(t, services.NewPaymentService(db).Create(ctx, &models.Payment{
		AcademyID: w.Academy.ID, StudentID: st.ID, Amount: 1500, Method: "cash",
	}))

	_, err := services.NewStudentService(db).Delete(ctx, w.Academy.ID, st.ID)
	assert.ErrorIs(t, err, services.ErrHasDependents)

	_, err = repository.Students(db).FindByID(ctx, w.Academy.ID, st.ID)
	assert.NoError(t, err)
}

func TestStudentCreateChecksReferences(t *testing.T) {
	db := dbtest.New(t)
	ctx := context.Background()
	w := seedWorld(t, db, "KORAT")
	other := seedWorld(t, db, "OTHER")

	st := models.Student{AcademyID: w.Academy.ID, FirstName: "Ploy", ClassID: &other.Class.ID}
	assert.ErrorIs(t, services.NewStudentService(db).Create(ctx, &st), services.ErrValidation)

	st.ClassID = &w.Class.ID
	require.NoError(t, services.NewStudentService(db).Create(ctx, &st))
	assert.Equal(t, "active", st.Status)
}
