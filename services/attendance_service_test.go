package services_test

import (
	"context"
	"testing"
	"time"

	"academyhub/database/dbtest"
	"academyhub/models"
	"academyhub/services"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// failOptionalColumns makes attendance inserts fail the way an old Postgres
// schema does until the optional columns are omitted.
func failOptionalColumns(t *testing.T, db *gorm.DB) *int {
	t.Helper()
	calls := 0
	err := db.Callback().Create().Before("gorm:create").Register("test:undefined_column", func(tx *gorm.DB) {
		if tx.Statement.Table != "attendance_records" {
			return
		}
		calls++
		if len(tx.Statement.Omits) <= 1 {
			tx.AddError(&pgconn.PgError{Code: "42703", Message: `column "check_in_time" does not exist`})
		}
	})
	require.NoError(t, err)
	return &calls
}

func TestAttendanceSaveFallsBackOnUndefinedColumn(t *testing.T) {
	db := dbtest.New(t)
	ctx := context.Background()
	w := seedWorld(t, db, "KORAT")
	st := w.student(t, db, "Ploy", true)
	calls := failOptionalColumns(t, db)

	svc := services.NewAttendanceService(db)
	svc.NotifyParents = false
	rec := models.AttendanceRecord{
		AcademyID: w.Academy.ID,
		StudentID: st.ID,
		ClassID:   w.Class.ID,
		Date:      time.Date(2026, 3, 2, 15, 30, 0, 0, time.UTC),
		Status:    models.AttendancePresent,
		Notes:     "dropped by the fallback",
	}
	require.NoError(t, svc.Save(ctx, &rec))
	assert.Equal(t, 2, *calls, "one failed insert and one retry")

	var stored models.AttendanceRecord
	require.NoError(t, db.Where("id = ?", rec.ID).First(&stored).Error)
	assert.Equal(t, models.AttendancePresent, stored.Status)
	assert.Empty(t, stored.Notes)
	assert.Equal(t, "2026-03-02", stored.Date.Format("2006-01-02"))
}

func TestAttendanceSaveValidates(t *testing.T) {
	db := dbtest.New(t)
	ctx := context.Background()
	w := seedWorld(t, db, "KORAT")
	st := w.student(t, db, "Ploy", true)
	svc := services.NewAttendanceService(db)
	svc.NotifyParents = false

	day := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	cases := map[string]models.AttendanceRecord{
		"bad status":    {AcademyID: w.Academy.ID, StudentID: st.ID, ClassID: w.Class.ID, Date: day, Status: "sleeping"},
		"missing date":  {AcademyID: w.Academy.ID, StudentID: st.ID, ClassID: w.Class.ID, Status: models.AttendanceLate},
		"foreign class": {AcademyID: "someone-else", StudentID: st.ID, ClassID: w.Class.ID, Date: day, Status: models.AttendanceLate},
	}
	for name, rec := range cases {
		t.Run(name, func(t *testing.T) {
			rec := rec
			assert.ErrorIs(t, svc.Save(ctx, &rec), services.ErrValidation)
		})
	}
}

func TestBulkMarkUpsertsAndSummarizes(t *testing.T) {
	db := dbtest.New(t)
	ctx := context.Background()
	w := seedWorld(t, db, "KORAT")
	a := w.student(t, db, "A", true)
	b := w.student(t, db, "B", true)
	svc := services.NewAttendanceService(db)
	svc.NotifyParents = false

	day := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	saved, err := svc.BulkMark(ctx, w.Academy.ID, w.Class.ID, day, nil, nil, []services.BulkEntry{
		{StudentID: a.ID, Status: models.AttendancePresent},
		{StudentID: b.ID, Status: models.AttendanceAbsent},
	})
	require.NoError(t, err)
	require.Len(t, saved, 2)

	// marking again corrects B without adding rows
	_, err = svc.BulkMark(ctx, w.Academy.ID, w.Class.ID, day, nil, nil, []services.BulkEntry{
		{StudentID: b.ID, Status: models.AttendanceLate, Notes: "bus"},
	})
	require.NoError(t, err)

	var rows int64
	db.Model(&models.AttendanceRecord{}).Where("class_id = ?", w.Class.ID).Count(&rows)
	assert.EqualValues(t, 2, rows)

	next := day.AddDate(0, 0, 1)
	_, err = svc.BulkMark(ctx, w.Academy.ID, w.Class.ID, next, nil, nil, []services.BulkEntry{
		{StudentID: a.ID, Status: models.AttendanceAbsent},
		{StudentID: b.ID, Status: models.AttendanceExcused},
	})
	require.NoError(t, err)

	sum, err := svc.Summary(ctx, w.Academy.ID, "", w.Class.ID, day, next)
	require.NoError(t, err)
	assert.Equal(t, 4, sum.Total)
	assert.Equal(t, 1, sum.Counts[models.AttendancePresent])
	assert.Equal(t, 1, sum.Counts[models.AttendanceLate])
	assert.InDelta(t, 0.5, sum.Rate, 1e-9)

	sum, err = svc.Summary(ctx, w.Academy.ID, a.ID, "", day, day)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Total)
	assert.InDelta(t, 1.0, sum.Rate, 1e-9)

	_, err = svc.Summary(ctx, w.Academy.ID, a.ID, "", next, day)
	assert.ErrorIs(t, err, services.ErrValidation)
}

func TestBulkMarkRejectsForeignStudents(t *testing.T) {
	db := dbtest.New(t)
	w := seedWorld(t, db, "KORAT")
	other := seedWorld(t, db, "OTHER")
	stranger := other.student(t, db, "Stranger", true)

	svc := services.NewAttendanceService(db)
	svc.NotifyParents = false
	_, err := svc.BulkMark(context.Background(), w.Academy.ID, w.Class.ID, time.Now(), nil, nil, []services.BulkEntry{
		{StudentID: stranger.ID, Status: models.AttendancePresent},
	})
	assert.ErrorIs(t, err, services.ErrValidation)

	_, err = svc.BulkMark(context.Background(), w.Academy.ID, w.Class.ID, time.Now(), nil, nil, nil)
	assert.ErrorIs(t, err, services.ErrValidation)
}

// rejectRepeatedKeys fails a multi-row upsert that touches the same
// (student, class, date) twice, as Postgres does with SQLSTATE 21000.
func rejectRepeatedKeys(t *testing.T, db *gorm.DB) {
	t.Helper()
	err := db.Callback().Create().Before("gorm:create").Register("test:repeated_keys", func(tx *gorm.DB) {
		rows, ok := tx.Statement.Dest.(*[]models.AttendanceRecord)
		if !ok {
			return
		}
		seen := map[string]bool{}
		for _, r := range *rows {
			key := r.StudentID + "|" + r.ClassID + "|" + r.Date.Format("2006-01-02")
			if seen[key] {
				tx.AddError(&pgconn.PgError{Code: "21000", Message: "ON CONFLICT DO UPDATE command cannot affect row a second time"})
				return
			}
			seen[key] = true
		}
	})
	require.NoError(t, err)
}

func TestBulkMarkRepeatedStudentLastEntryWins(t *testing.T) {
	db := dbtest.New(t)
	ctx := context.Background()
	w := seedWorld(t, db, "KORAT")
	a := w.student(t, db, "A", true)
	b := w.student(t, db, "B", true)
	rejectRepeatedKeys(t, db)

	svc := services.NewAttendanceService(db)
	svc.NotifyParents = false
	day := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	saved, err := svc.BulkMark(ctx, w.Academy.ID, w.Class.ID, day, nil, nil, []services.BulkEntry{
		{StudentID: a.ID, Status: models.AttendancePresent},
		{StudentID: b.ID, Status: models.AttendanceAbsent},
		{StudentID: a.ID, Status: models.AttendanceLate, Notes: "corrected"},
	})
	require.NoError(t, err)
	require.Len(t, saved, 2)

	var stored models.AttendanceRecord
	require.NoError(t, db.Where("student_id = ? AND class_id = ?", a.ID, w.Class.ID).First(&stored).Error)
	assert.Equal(t, models.AttendanceLate, stored.Status)
	assert.Equal(t, "corrected", stored.Notes)
}
