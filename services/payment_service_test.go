package services_test

import (
	"context"
	"errors"
	"testing"
	"time"
	_ "time/tzdata"

	"academyhub/database/dbtest"
	"academyhub/models"
	"academyhub/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestDailyRevenueRangeZeroFillsAndSumsPaid(t *testing.T) {
	db := dbtest.New(t)
	ctx := context.Background()
	w := seedWorld(t, db, "KORAT")
	st := w.student(t, db, "Ploy", true)

	at := func(day, hour int) time.Time { return time.Date(2026, 3, day, hour, 0, 0, 0, time.UTC) }
	payments := []models.Payment{
		{Amount: 1000.10, PaymentDate: at(1, 9), Method: "cash", Status: models.PaymentPaid},
		{Amount: 499.95, PaymentDate: at(1, 18), Method: "transfer", Status: models.PaymentPaid},
		{Amount: 700, PaymentDate: at(3, 12), Method: "cash", Status: models.PaymentPaid},
		{Amount: 999, PaymentDate: at(3, 13), Method: "cash", Status: models.PaymentPending},
		{Amount: 50, PaymentDate: at(5, 8), Method: "cash", Status: models.PaymentPaid},
	}
	for i := range payments {
		payments[i].AcademyID = w.Academy.ID
		payments[i].StudentID = st.ID
		require.NoError(t, services.NewPaymentService(db).Create(ctx, &payments[i]))
	}

	report, err := services.NewPaymentService(db).DailyRevenueRange(ctx, w.Academy.ID, at(1, 0), at(4, 0))
	require.NoError(t, err)
	assert.Equal(t, "2026-03-01", report.From)
	assert.Equal(t, "2026-03-04", report.To)
	assert.Equal(t, "UTC", report.Timezone)
	require.Len(t, report.Days, 4)

	assert.InDelta(t, 1500.05, report.Days[0].Total, 1e-9)
	assert.Equal(t, 2, report.Days[0].Count)
	assert.Zero(t, report.Days[1].Total)
	assert.Zero(t, report.Days[1].Count)
	assert.InDelta(t, 700.0, report.Days[2].Total, 1e-9, "pending payments are not revenue")
	assert.Zero(t, report.Days[3].Total)

	assert.InDelta(t, 2200.05, report.Total, 1e-9)
	assert.Equal(t, 3, report.Count)
	assert.InDelta(t, 1700.10, report.ByMethod["cash"], 1e-9)
	assert.InDelta(t, 499.95, report.ByMethod["transfer"], 1e-9)

	day, err := services.NewPaymentService(db).DailyRevenue(ctx, w.Academy.ID, at(5, 23))
	require.NoError(t, err)
	assert.Equal(t, "2026-03-05", day.Date)
	assert.InDelta(t, 50.0, day.Total, 1e-9)
}

func TestDailyRevenueUsesAcademyTimezone(t *testing.T) {
	db := dbtest.New(t)
	ctx := context.Background()
	w := seedWorld(t, db, "KORAT")
	st := w.student(t, db, "Ploy", true)

	tz := "Asia/Bangkok"
	_, err := services.NewTimetableService(db).Update(ctx, w.Academy.ID, services.UpdateTimetableInput{Timezone: &tz})
	require.NoError(t, err)

	// 20:00 UTC on March 1 is already March 2 in Bangkok
	p := models.Payment{AcademyID: w.Academy.ID, StudentID: st.ID, Amount: 300, Method: "cash", Status: models.PaymentPaid,
		PaymentDate: time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC)}
	require.NoError(t, services.NewPaymentService(db).Create(ctx, &p))

	svc := services.NewPaymentService(db)
	first, err := svc.DailyRevenue(ctx, w.Academy.ID, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Zero(t, first.Total)

	second, err := svc.DailyRevenue(ctx, w.Academy.ID, time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.InDelta(t, 300.0, second.Total, 1e-9)
}

func TestDailyRevenueRangeLimits(t *testing.T) {
	db := dbtest.New(t)
	ctx := context.Background()
	w := seedWorld(t, db, "KORAT")
	svc := services.NewPaymentService(db)

	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	_, err := svc.DailyRevenueRange(ctx, w.Academy.ID, from, from.AddDate(0, 0, -1))
	assert.ErrorIs(t, err, services.ErrValidation)

	_, err = svc.DailyRevenueRange(ctx, w.Academy.ID, from, from.AddDate(1, 1, 0))
	assert.ErrorIs(t, err, services.ErrValidation)

	report, err := svc.DailyRevenueRange(ctx, w.Academy.ID, from, from.AddDate(0, 0, 365))
	require.NoError(t, err)
	assert.Len(t, report.Days, 366)
}

func TestPaymentCreateValidation(t *testing.T) {
	db := dbtest.New(t)
	ctx := context.Background()
	w := seedWorld(t, db, "KORAT")
	st := w.student(t, db, "Ploy", true)
	other := seedWorld(t, db, "OTHER")
	svc := services.NewPaymentService(db)

	assert.ErrorIs(t, svc.Create(ctx, &models.Payment{AcademyID: w.Academy.ID, StudentID: st.ID, Amount: 0}), services.ErrValidation)
	assert.ErrorIs(t, svc.Create(ctx, &models.Payment{AcademyID: other.Academy.ID, StudentID: st.ID, Amount: 10}), services.ErrValidation)
	assert.ErrorIs(t, svc.Create(ctx, &models.Payment{AcademyID: w.Academy.ID, StudentID: st.ID, Amount: 10, ClassID: &other.Class.ID}), services.ErrValidation)

	p := models.Payment{AcademyID: w.Academy.ID, StudentID: st.ID, Amount: 10, Method: "cash",
		PaymentDate: time.Date(2026, 2, 14, 10, 0, 0, 0, time.UTC)}
	require.NoError(t, svc.Create(ctx, &p))
	assert.Equal(t, models.PaymentPending, p.Status)
	assert.Equal(t, "2026-02", p.Period)
}

func TestMarkOverdueAndOutstanding(t *testing.T) {
	db := dbtest.New(t)
	ctx := context.Background()
	w := seedWorld(t, db, "KORAT")
	st := w.student(t, db, "Ploy", true)
	owner := models.User{AcademyID: &w.Academy.ID, Email: "owner@korat.test", Password: "x", Role: models.RoleOwner, Status: "active"}
	require.NoError(t, db.Omit("Academy").Create(&owner).Error)

	now := time.Date(2026, 4, 10, 6, 0, 0, 0, time.UTC)
	due := func(day int) *time.Time { d := time.Date(2026, 4, day, 0, 0, 0, 0, time.UTC); return &d }
	for _, p := range []models.Payment{
		{Amount: 100, DueDate: due(5), Status: models.PaymentPending},
		{Amount: 200, DueDate: due(9), Status: models.PaymentPending},
		{Amount: 300, DueDate: due(10), Status: models.PaymentPending},
		{Amount: 400, Status: models.PaymentPending},
		{Amount: 500, DueDate: due(1), Status: models.PaymentPaid},
	} {
		p.AcademyID, p.StudentID, p.Method, p.PaymentDate = w.Academy.ID, st.ID, "cash", now
		require.NoError(t, db.Omit("Student", "Class").Create(&p).Error)
	}

	svc := services.NewPaymentService(db)
	changed, err := svc.MarkOverdue(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{w.Academy.ID: 2}, changed)

	var overdue int64
	require.NoError(t, db.Model(&models.Payment{}).Where("status = ?", models.PaymentOverdue).Count(&overdue).Error)
	assert.EqualValues(t, 2, overdue)

	var notified int64
	require.NoError(t, db.Model(&models.Notification{}).Where("user_id = ?", owner.ID).Count(&notified).Error)
	assert.EqualValues(t, 1, notified)

	again, err := svc.MarkOverdue(ctx, now)
	require.NoError(t, err)
	assert.Empty(t, again)

	outstanding, err := svc.OutstandingByStudent(ctx, w.Academy.ID)
	require.NoError(t, err)
	assert.InDelta(t, 1000.0, outstanding[st.ID], 1e-9)
}

func TestMarkOverdueUsesAcademyDay(t *testing.T) {
	db := dbtest.New(t)
	ctx := context.Background()
	bangkok := seedWorld(t, db, "KORAT")
	utc := seedWorld(t, db, "LONDON")
	tz := "Asia/Bangkok"
	_, err := services.NewTimetableService(db).Update(ctx, bangkok.Academy.ID, services.UpdateTimetableInput{Timezone: &tz})
	require.NoError(t, err)

	dueApril9 := time.Date(2026, 4, 9, 0, 0, 0, 0, time.UTC)
	for _, w := range []*world{bangkok, utc} {
		st := w.student(t, db, "Ploy", false)
		p := models.Payment{AcademyID: w.Academy.ID, StudentID: st.ID, Amount: 100, Method: "cash",
			Status: models.PaymentPending, PaymentDate: dueApril9, DueDate: &dueApril9}
		require.NoError(t, db.Omit("Student", "Class").Create(&p).Error)
	}

	// 18:00 UTC on April 9 is 01:00 on April 10 in Bangkok
	changed, err := services.NewPaymentService(db).MarkOverdue(ctx, time.Date(2026, 4, 9, 18, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, map[string]int{bangkok.Academy.ID: 1}, changed)

	var status string
	require.NoError(t, db.Model(&models.Payment{}).Where("academy_id = ?", utc.Academy.ID).Pluck("status", &status).Error)
	assert.Equal(t, models.PaymentPending, status)
}

func TestLocationFallsBackWhenLookupFails(t *testing.T) {
	db := dbtest.New(t)
	w := seedWorld(t, db, "KORAT")
	require.NoError(t, db.Callback().Query().Before("gorm:query").Register("test:settings_down", func(tx *gorm.DB) {
		if tx.Statement.Table == "timetable_settings" {
			tx.AddError(errors.New("connection reset"))
		}
	}))
	assert.Equal(t, time.UTC, services.NewPaymentService(db).Location(context.Background(), w.Academy.ID))
}
