package services

import (
	"academyhub/models"
	notifsvc "academyhub/services/notifications"
	"academyhub/utils"
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// reminderLeadMinutes is how long before a session teachers are reminded.
const reminderLeadMinutes = 30

// NotificationScheduler produces the time-driven notifications: upcoming
// sessions, the morning timetable, unmarked attendance and the revenue digest.
type NotificationScheduler struct {
	db    *gorm.DB
	notif *notifsvc.Service
}

func NewNotificationScheduler(db *gorm.DB) *NotificationScheduler {
	return &NotificationScheduler{db: db, notif: notifsvc.NewService()}
}

type academyClock struct {
	id    string
	local time.Time
}

// academies returns every active academy with now in its timezone.
func (ns *NotificationScheduler) academies(ctx context.Context, now time.Time) ([]academyClock, error) {
	var ids []string
	if err := ns.db.WithContext(ctx).Model(&models.Academy{}).
		Where("status = ?", "active").Order("id").Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	out := make([]academyClock, 0, len(ids))
	for _, id := range ids {
		out = append(out, academyClock{id: id, local: now.In(academyLocation(ctx, ns.db, id))})
	}
	return out, nil
}

func minuteOfDay(t time.Time) int { return t.Hour()*60 + t.Minute() }

func teacherUserID(sc models.Schedule) string {
	if sc.Teacher != nil && sc.Teacher.UserID != nil {
		return *sc.Teacher.UserID
	}
	return ""
}

func sessionLabel(sc models.Schedule) string {
	name := "class"
	if sc.Class != nil {
		name = sc.Class.Name
	}
	label := fmt.Sprintf("%s %s-%s", name, sc.StartTime, sc.EndTime)
	if sc.Classroom != nil {
		label += " (" + sc.Classroom.Name + ")"
	}
	return label
}

// alreadySent reports whether the user got a notification tagged with key since since.
func (ns *NotificationScheduler) alreadySent(ctx context.Context, userID, key string, since time.Time) bool {
	text := "CAST(data AS TEXT)"
	if ns.db.Dialector.Name() == "mysql" {
		text = "CAST(data AS CHAR)"
	}
	var n int64
	err := ns.db.WithContext(ctx).Model(&models.Notification{}).
		Where("user_id = ? AND created_at > ? AND "+text+" LIKE ?", userID, since.UTC(), "%"+key+"%").
		Count(&n).Error
	return err == nil && n > 0
}

// CheckUpcomingSessions reminds teachers of sessions starting within the lead time.
func (ns *NotificationScheduler) CheckUpcomingSessions(ctx context.Context, now time.Time) int {
	clocks, err := ns.academies(ctx, now)
	if err != nil {
		logrus.WithError(err).Error("upcoming sessions: academy lookup failed")
		return 0
	}
	sent := 0
	schedules := NewScheduleService(ns.db)
	for _, ac := range clocks {
		sessions, err := schedules.SessionsOn(ctx, ac.id, ac.local)
		if err != nil {
			logrus.WithError(err).WithField("academy_id", ac.id).Error("upcoming sessions lookup failed")
			continue
		}
		nowMin := minuteOfDay(ac.local)
		for _, sc := range sessions {
			start, err := utils.ParseClock(sc.StartTime)
			if err != nil || start <= nowMin || start-nowMin > reminderLeadMinutes {
				continue
			}
			uid := teacherUserID(sc)
			if uid == "" {
				continue
			}
			key := fmt.Sprintf("upcoming:%s:%s", sc.ID, ac.local.Format("2006-01-02"))
			if ns.alreadySent(ctx, uid, key, now.Add(-12*time.Hour)) {
				continue
			}
			n := notifsvc.New("Upcoming class",
				fmt.Sprintf("%s starts in %d minutes", sessionLabel(sc), start-nowMin),
				"info",
				map[string]interface{}{"key": key, "schedule_id": sc.ID, "class_id": sc.ClassID},
				notifsvc.ChannelNormal, notifsvc.ChannelPopup, notifsvc.ChannelLine)
			if err := ns.notif.EnqueueOrCreate(ctx, []string{uid}, n); err != nil {
				logrus.WithError(err).WithField("schedule_id", sc.ID).Warn("upcoming reminder failed")
				continue
			}
			sent++
		}
	}
	return sent
}

// SendDailyScheduleReminder sends each teacher the list of today's sessions.
func (ns *NotificationScheduler) SendDailyScheduleReminder(ctx context.Context, now time.Time) int {
	clocks, err := ns.academies(ctx, now)
	if err != nil {
		logrus.WithError(err).Error("daily reminder: academy lookup failed")
		return 0
	}
	sent := 0
	schedules := NewScheduleService(ns.db)
	for _, ac := range clocks {
		sessions, err := schedules.SessionsOn(ctx, ac.id, ac.local)
		if err != nil {
			logrus.WithError(err).WithField("academy_id", ac.id).Error("daily reminder lookup failed")
			continue
		}
		perTeacher := map[string][]models.Schedule{}
		for _, sc := range sessions {
			if uid := teacherUserID(sc); uid != "" {
				perTeacher[uid] = append(perTeacher[uid], sc)
			}
		}
		for uid, list := range perTeacher {
			var b strings.Builder
			b.WriteString("Today's schedule:")
			for _, sc := range list {
				b.WriteString("\n- ")
				b.WriteString(sessionLabel(sc))
			}
			n := notifsvc.New("Daily schedule", b.String(), "info",
				map[string]interface{}{"action": "open_timetable", "date": ac.local.Format("2006-01-02")},
				notifsvc.ChannelNormal, notifsvc.ChannelLine)
			if err := ns.notif.EnqueueOrCreate(ctx, []string{uid}, n); err != nil {
				logrus.WithError(err).WithField("user_id", uid).Warn("daily reminder failed")
				continue
			}
			sent++
		}
	}
	return sent
}

// CheckUnmarkedAttendance warns teachers and admins about sessions that ended
// over half an hour ago today without any attendance recorded.
func (ns *NotificationScheduler) CheckUnmarkedAttendance(ctx context.Context, now time.Time) int {
	clocks, err := ns.academies(ctx, now)
	if err != nil {
		logrus.WithError(err).Error("unmarked attendance: academy lookup failed")
		return 0
	}
	sent := 0
	schedules := NewScheduleService(ns.db)
	for _, ac := range clocks {
		sessions, err := schedules.SessionsOn(ctx, ac.id, ac.local)
		if err != nil {
			continue
		}
		day := models.DateOnly(ac.local)
		nowMin := minuteOfDay(ac.local)
		admins, _ := notifsvc.UsersByRole(ctx, ns.db, ac.id, models.RoleOwner, models.RoleAdmin)
		for _, sc := range sessions {
			end, err := utils.ParseClock(sc.EndTime)
			if err != nil || nowMin-end < 30 {
				continue
			}
			var marked int64
			if err := ns.db.WithContext(ctx).Model(&models.AttendanceRecord{}).
				Where("class_id = ? AND date = ?", sc.ClassID, day).Count(&marked).Error; err != nil || marked > 0 {
				continue
			}
			recipients := append([]string{}, admins...)
			if uid := teacherUserID(sc); uid != "" {
				recipients = append(recipients, uid)
			}
			key := fmt.Sprintf("unmarked:%s:%s", sc.ID, day.Format("2006-01-02"))
			var pending []string
			for _, uid := range uniqueStrings(recipients) {
				if !ns.alreadySent(ctx, uid, key, now.Add(-24*time.Hour)) {
					pending = append(pending, uid)
				}
			}
			if len(pending) == 0 {
				continue
			}
			n := notifsvc.New("Attendance not marked",
				fmt.Sprintf("No attendance was recorded for %s today", sessionLabel(sc)),
				"warning",
				map[string]interface{}{"key": key, "schedule_id": sc.ID, "class_id": sc.ClassID},
				notifsvc.ChannelNormal)
			if err := ns.notif.EnqueueOrCreate(ctx, pending, n); err == nil {
				sent += len(pending)
			}
		}
	}
	return sent
}

// SendRevenueDigest sends owners yesterday's paid total.
func (ns *NotificationScheduler) SendRevenueDigest(ctx context.Context, now time.Time) int {
	clocks, err := ns.academies(ctx, now)
	if err != nil {
		logrus.WithError(err).Error("revenue digest: academy lookup failed")
		return 0
	}
	payments := NewPaymentService(ns.db)
	sent := 0
	for _, ac := range clocks {
		yesterday := ac.local.AddDate(0, 0, -1)
		rev, err := payments.DailyRevenue(ctx, ac.id, yesterday)
		if err != nil {
			logrus.WithError(err).WithField("academy_id", ac.id).Warn("revenue digest failed")
			continue
		}
		owners, err := notifsvc.UsersByRole(ctx, ns.db, ac.id, models.RoleOwner)
		if err != nil || len(owners) == 0 {
			continue
		}
		methods := make([]string, 0, len(rev.ByMethod))
		for m, v := range rev.ByMethod {
			methods = append(methods, fmt.Sprintf("%s %.2f", m, v))
		}
		sort.Strings(methods)
		msg := fmt.Sprintf("%s: %.2f from %d payment(s)", rev.Date, rev.Total, rev.Count)
		if len(methods) > 0 {
			msg += " (" + strings.Join(methods, ", ") + ")"
		}
		n := notifsvc.New("Daily revenue", msg, "info",
			map[string]interface{}{"action": "open_revenue", "date": rev.Date},
			notifsvc.ChannelNormal, notifsvc.ChannelLine)
		if err := ns.notif.EnqueueOrCreate(ctx, owners, n); err == nil {
			sent += len(owners)
		}
	}
	return sent
}
