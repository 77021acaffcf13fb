package services_test

import (
	"testing"

	"academyhub/models"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// world is a small academy with one class taught in one room.
type world struct {
	Academy   models.Academy
	Teacher   models.Teacher
	Classroom models.Classroom
	Class     models.Class
}

func seedWorld(t *testing.T, db *gorm.DB, code string) *world {
	t.Helper()
	w := &world{}
	w.Academy = models.Academy{Name: "Academy " + code, Code: code, Status: "active"}
	require.NoError(t, db.Create(&w.Academy).Error)

	w.Teacher = models.Teacher{AcademyID: w.Academy.ID, FirstName: "Kru", LastName: "Somchai", Status: "active"}
	require.NoError(t, db.Create(&w.Teacher).Error)

	w.Classroom = models.Classroom{AcademyID: w.Academy.ID, Name: "Room 101", Capacity: 10, Status: "available"}
	require.NoError(t, db.Create(&w.Classroom).Error)

	w.Class = models.Class{
		AcademyID:   w.Academy.ID,
		Name:        "English A1",
		TeacherID:   &w.Teacher.ID,
		ClassroomID: &w.Classroom.ID,
		Capacity:    2,
		Status:      "active",
	}
	require.NoError(t, db.Omit("Subject", "Teacher", "Classroom").Create(&w.Class).Error)
	return w
}

func (w *world) student(t *testing.T, db *gorm.DB, name string, inClass bool) models.Student {
	t.Helper()
	st := models.Student{AcademyID: w.Academy.ID, FirstName: name, Status: "active"}
	if inClass {
		st.ClassID = &w.Class.ID
	}
	require.NoError(t, db.Omit("Class", "Parent").Create(&st).Error)
	return st
}
