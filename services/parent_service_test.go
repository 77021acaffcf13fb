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

func TestNormalizeLinkCode(t *testing.T) {
	assert.Equal(t, "AB12CD34", services.NormalizeLinkCode("  ab12 cd34\n"))
	assert.Equal(t, "", services.NormalizeLinkCode("   "))
}

func TestParentLinkLine(t *testing.T) {
	db := dbtest.New(t)
	ctx := context.Background()
	w := seedWorld(t, db, "KORAT")
	svc := services.NewParentService(db)

	user := models.User{AcademyID: &w.Academy.ID, Email: "mom@example.test", Password: "x", Role: models.RoleParent}
	require.NoError(t, db.Omit("Academy").Create(&user).Error)

	p := models.Parent{AcademyID: w.Academy.ID, FirstName: "Malee", UserID: &user.ID}
	require.NoError(t, svc.Create(ctx, &p))
	require.Len(t, p.LinkCode, 8)

	linked, err := svc.LinkLine(ctx, " "+p.LinkCode[:4]+" "+p.LinkCode[4:]+" ", "U1234")
	require.NoError(t, err)
	assert.Equal(t, p.ID, linked.ID)
	assert.Equal(t, "U1234", linked.LineUserID)

	var stored models.User
	require.NoError(t, db.Where("id = ?", user.ID).First(&stored).Error)
	assert.Equal(t, "U1234", stored.LineUserID)

	_, err = svc.LinkLine(ctx, "ZZZZZZZZ", "U1234")
	assert.ErrorIs(t, err, repository.ErrNotFound)
	_, err = svc.LinkLine(ctx, "short", "U1234")
	assert.ErrorIs(t, err, repository.ErrNotFound)

	old := p.LinkCode
	fresh, err := svc.RegenerateLinkCode(ctx, w.Academy.ID, p.ID)
	require.NoError(t, err)
	assert.NotEqual(t, old, fresh.LinkCode)
	_, err = svc.LinkLine(ctx, old, "U9")
	assert.ErrorIs(t, err, repository.ErrNotFound, "old codes stop working")
}

func TestParentCreateRequiresParentRole(t *testing.T) {
	db := dbtest.New(t)
	ctx := context.Background()
	w := seedWorld(t, db, "KORAT")

	admin := models.User{AcademyID: &w.Academy.ID, Email: "admin@example.test", Password: "x", Role: models.RoleAdmin}
	require.NoError(t, db.Omit("Academy").Create(&admin).Error)

	err := services.NewParentService(db).Create(ctx, &models.Parent{AcademyID: w.Academy.ID, FirstName: "X", UserID: &admin.ID})
	assert.ErrorIs(t, err, services.ErrValidation)
}

func TestParentPortalOnlySeesOwnChildren(t *testing.T) {
	db := dbtest.New(t)
	ctx := context.Background()
	w := seedWorld(t, db, "KORAT")
	svc := services.NewParentService(db)

	user := models.User{AcademyID: &w.Academy.ID, Email: "dad@example.test", Password: "x", Role: models.RoleParent}
	require.NoError(t, db.Omit("Academy").Create(&user).Error)
	p := models.Parent{AcademyID: w.Academy.ID, FirstName: "Dad", UserID: &user.ID}
	require.NoError(t, svc.Create(ctx, &p))

	mine := w.student(t, db, "Mine", true)
	require.NoError(t, db.Model(&models.Student{}).Where("id = ?", mine.ID).Update("parent_id", p.ID).Error)
	theirs := w.student(t, db, "Theirs", true)

	sched := models.Schedule{AcademyID: w.Academy.ID, ClassID: w.Class.ID, DayOfWeek: 2, StartTime: "16:00", EndTime: "17:00"}
	require.NoError(t, services.NewScheduleService(db).Create(ctx, &sched, ""))

	profile, err := svc.ForUser(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, p.ID, profile.ID)

	_, err = svc.ForUser(ctx, w.Teacher.ID)
	assert.ErrorIs(t, err, services.ErrNotParent)

	children, err := svc.Children(ctx, profile)
	require.NoError(t, err)
	require.Len(t, children, 1)
	assert.Equal(t, mine.ID, children[0].ID)
	require.NotNil(t, children[0].Class)

	_, err = svc.Child(ctx, profile, theirs.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)

	schedules, err := svc.ChildSchedule(ctx, profile, mine.ID)
	require.NoError(t, err)
	require.Len(t, schedules, 1)
	assert.Equal(t, sched.ID, schedules[0].ID)

	att := services.NewAttendanceService(db)
	att.NotifyParents = false
	require.NoError(t, att.Save(ctx, &models.AttendanceRecord{
		AcademyID: w.Academy.ID, StudentID: mine.ID, ClassID: w.Class.ID,
		Date: time.Now().UTC(), Status: models.AttendancePresent,
	}))
	records, err := svc.ChildAttendance(ctx, profile, mine.ID, time.Now().AddDate(0, 0, -7))
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestDashboardStats(t *testing.T) {
	db := dbtest.New(t)
	ctx := context.Background()
	w := seedWorld(t, db, "KORAT")
	st := w.student(t, db, "Ploy", true)
	w.student(t, db, "Ton", true)

	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	payments := services.NewPaymentService(db)
	require.NoError(t, payments.Create(ctx, &models.Payment{AcademyID: w.Academy.ID, StudentID: st.ID, Amount: 100, Method: "cash", Status: models.PaymentPaid, PaymentDate: now.Add(-time.Hour)}))
	require.NoError(t, payments.Create(ctx, &models.Payment{AcademyID: w.Academy.ID, StudentID: st.ID, Amount: 250, Method: "cash", Status: models.PaymentPaid, PaymentDate: now.AddDate(0, 0, -5)}))
	require.NoError(t, payments.Create(ctx, &models.Payment{AcademyID: w.Academy.ID, StudentID: st.ID, Amount: 900, Method: "cash", PaymentDate: now}))

	stats, err := services.NewDashboardService(db).Stats(ctx, w.Academy.ID, now)
	require.NoError(t, err)
	assert.EqualValues(t, 2, stats.ActiveStudents)
	assert.EqualValues(t, 1, stats.ActiveClasses)
	assert.EqualValues(t, 1, stats.PendingPayments)
	assert.InDelta(t, 100.0, stats.TodayRevenue, 1e-9)
	assert.InDelta(t, 350.0, stats.MonthRevenue, 1e-9)
	assert.Equal(t, "UTC", stats.Timezone)
}
