package services_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"academyhub/database/dbtest"
	"academyhub/models"
	"academyhub/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const importCSV = "\ufefffirst_name,last_name,class,parent_phone,phone\n" +
	"Ploy,S,english a1,081-000,0891\n" +
	"Ton,K,,,0892\n" +
	",,,,\n" +
	",K,,,\n" +
	"Mint,P,Math B2,,0893\n"

func TestImportStudents(t *testing.T) {
	db := dbtest.New(t)
	ctx := context.Background()
	w := seedWorld(t, db, "KORAT")
	parent := models.Parent{AcademyID: w.Academy.ID, FirstName: "Malee", Phone: "081-000"}
	require.NoError(t, services.NewParentService(db).Create(ctx, &parent))

	rows, err := services.ReadTable("students.CSV", strings.NewReader(importCSV))
	require.NoError(t, err)

	svc := services.NewReportService(db)
	res, err := svc.ImportStudents(ctx, w.Academy.ID, rows)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Created)
	require.Len(t, res.Errors, 2)
	assert.Equal(t, 5, res.Errors[0].Row)
	assert.Equal(t, 6, res.Errors[1].Row)
	assert.Contains(t, res.Errors[1].Message, "Math B2")

	var ploy models.Student
	require.NoError(t, db.Where("first_name = ?", "Ploy").First(&ploy).Error)
	require.NotNil(t, ploy.ClassID)
	assert.Equal(t, w.Class.ID, *ploy.ClassID)
	require.NotNil(t, ploy.ParentID)
	assert.Equal(t, parent.ID, *ploy.ParentID)

	again, err := svc.ImportStudents(ctx, w.Academy.ID, rows)
	require.NoError(t, err)
	assert.Equal(t, 0, again.Created)
	assert.Equal(t, 2, again.Skipped)

	_, err = svc.ImportStudents(ctx, w.Academy.ID, [][]string{{"name"}})
	assert.ErrorIs(t, err, services.ErrValidation)
	_, err = services.ReadTable("students.txt", strings.NewReader(""))
	assert.ErrorIs(t, err, services.ErrValidation)
}

func TestExportStudentsReadsBack(t *testing.T) {
	db := dbtest.New(t)
	ctx := context.Background()
	w := seedWorld(t, db, "KORAT")
	w.student(t, db, "Ton", true)
	w.student(t, db, "Aom", false)
	other := seedWorld(t, db, "OTHER")
	other.student(t, db, "Hidden", false)

	buf, err := services.NewReportService(db).ExportStudents(ctx, w.Academy.ID)
	require.NoError(t, err)

	rows, err := services.ReadTable("students.xlsx", buf)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "first_name", rows[0][0])
	assert.Equal(t, "Aom", rows[1][0])
	assert.Equal(t, "Ton", rows[2][0])
	assert.Equal(t, "English A1", rows[2][2])
}

func TestImportStudentsReportsParentLookupFailure(t *testing.T) {
	db := dbtest.New(t)
	ctx := context.Background()
	w := seedWorld(t, db, "KORAT")

	require.NoError(t, db.Callback().Query().Before("gorm:query").Register("test:parents_down", func(tx *gorm.DB) {
		if tx.Statement.Table == "parents" {
			tx.AddError(errors.New("connection reset"))
		}
	}))

	rows := [][]string{
		{"first_name", "parent_phone"},
		{"Ploy", "081-000"},
		{"Ton", ""},
	}
	res, err := services.NewReportService(db).ImportStudents(ctx, w.Academy.ID, rows)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Created)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, 2, res.Errors[0].Row)
	assert.Contains(t, res.Errors[0].Message, "parent lookup failed")

	var ploy int64
	require.NoError(t, db.Model(&models.Student{}).Where("first_name = ?", "Ploy").Count(&ploy).Error)
	assert.Zero(t, ploy)
}
