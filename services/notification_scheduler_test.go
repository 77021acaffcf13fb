package services_test

import (
	"context"
	"testing"
	"time"

	"academyhub/config"
	"academyhub/database/dbtest"
	"academyhub/models"
	"academyhub/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotificationScheduler(t *testing.T) {
	db := dbtest.New(t)
	ctx := context.Background()
	w := seedWorld(t, db, "KORAT")

	teacherUser := models.User{AcademyID: &w.Academy.ID, Email: "kru@korat.test", Password: "x", Role: models.RoleTeacher, Status: "active"}
	owner := models.User{AcademyID: &w.Academy.ID, Email: "owner@korat.test", Password: "x", Role: models.RoleOwner, Status: "active"}
	require.NoError(t, db.Omit("Academy").Create(&teacherUser).Error)
	require.NoError(t, db.Omit("Academy").Create(&owner).Error)
	require.NoError(t, db.Model(&models.Teacher{}).Where("id = ?", w.Teacher.ID).Update("user_id", teacherUser.ID).Error)

	y, m, d := time.Now().UTC().Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	sched := models.Schedule{AcademyID: w.Academy.ID, ClassID: w.Class.ID, DayOfWeek: int(today.Weekday()), StartTime: "10:00", EndTime: "11:00"}
	require.NoError(t, services.NewScheduleService(db).Create(ctx, &sched, ""))

	ns := services.NewNotificationScheduler(db)
	count := func(userID string) int64 {
		var n int64
		require.NoError(t, db.Model(&models.Notification{}).Where("user_id = ?", userID).Count(&n).Error)
		return n
	}

	t.Run("upcoming session reminds the teacher once", func(t *testing.T) {
		at := today.Add(9*time.Hour + 45*time.Minute)
		assert.Equal(t, 1, ns.CheckUpcomingSessions(ctx, at))
		assert.Equal(t, 0, ns.CheckUpcomingSessions(ctx, at.Add(5*time.Minute)))
		assert.Equal(t, 0, ns.CheckUpcomingSessions(ctx, today.Add(8*time.Hour)), "too early")
	})

	t.Run("daily schedule", func(t *testing.T) {
		before := count(teacherUser.ID)
		assert.Equal(t, 1, ns.SendDailyScheduleReminder(ctx, today.Add(7*time.Hour)))
		assert.Equal(t, before+1, count(teacherUser.ID))
	})

	t.Run("unmarked attendance", func(t *testing.T) {
		assert.Equal(t, 0, ns.CheckUnmarkedAttendance(ctx, today.Add(11*time.Hour+10*time.Minute)), "grace period")
		assert.Equal(t, 2, ns.CheckUnmarkedAttendance(ctx, today.Add(11*time.Hour+45*time.Minute)))
		assert.Equal(t, 0, ns.CheckUnmarkedAttendance(ctx, today.Add(12*time.Hour)), "already warned")
	})

	t.Run("marked attendance is quiet", func(t *testing.T) {
		other := models.Schedule{AcademyID: w.Academy.ID, ClassID: w.Class.ID, DayOfWeek: int(today.Weekday()), StartTime: "13:00", EndTime: "14:00"}
		require.NoError(t, services.NewScheduleService(db).Create(ctx, &other, ""))
		st := w.student(t, db, "Ploy", true)
		require.NoError(t, db.Create(&models.AttendanceRecord{
			AcademyID: w.Academy.ID, StudentID: st.ID, ClassID: w.Class.ID, Date: today, Status: "present",
		}).Error)
		assert.Equal(t, 0, ns.CheckUnmarkedAttendance(ctx, today.Add(15*time.Hour)))
	})

	t.Run("revenue digest goes to owners", func(t *testing.T) {
		before := count(owner.ID)
		assert.Equal(t, 1, ns.SendRevenueDigest(ctx, today.Add(8*time.Hour)))
		assert.Equal(t, before+1, count(owner.ID))
		assert.Equal(t, int64(0), count("nobody"))
	})
}

func TestScheduleManagerRegistersJobs(t *testing.T) {
	db := dbtest.New(t)
	sm := services.NewScheduleManager(db, nil, &config.Config{Timezone: "Asia/Bangkok"})
	require.NoError(t, sm.Register())
	assert.Len(t, sm.Entries(), 7)
}
