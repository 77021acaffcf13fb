package services

import (
	"academyhub/config"
	"context"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const jobTimeout = 5 * time.Minute

// ScheduleManager owns the cron scheduler that runs background jobs.
type ScheduleManager struct {
	cron          *cron.Cron
	db            *gorm.DB
	notifications *NotificationScheduler
	payments      *PaymentService
	logs          *LogArchiveService
}

func NewScheduleManager(db *gorm.DB, rc *redis.Client, cfg *config.Config) *ScheduleManager {
	logger := cron.PrintfLogger(logrus.StandardLogger())
	return &ScheduleManager{
		cron: cron.New(
			cron.WithLocation(cfg.Location()),
			cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
		),
		db:            db,
		notifications: NewNotificationScheduler(db),
		payments:      NewPaymentService(db),
		logs:          NewLogArchiveService(db, rc, cfg),
	}
}

// job wraps fn with a timeout context and a log line.
func job(name string, fn func(ctx context.Context, now time.Time)) func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
		defer cancel()
		start := time.Now()
		fn(ctx, start)
		logrus.WithFields(logrus.Fields{"job": name, "duration": time.Since(start).String()}).Debug("cron job finished")
	}
}

// Register adds every job without starting the scheduler.
func (sm *ScheduleManager) Register() error {
	jobs := []struct {
		spec string
		name string
		fn   func(ctx context.Context, now time.Time)
	}{
		{"*/5 * * * *", "upcoming-sessions", func(ctx context.Context, now time.Time) {
			sm.notifications.CheckUpcomingSessions(ctx, now)
		}},
		{"0 7 * * *", "daily-schedule", func(ctx context.Context, now time.Time) {
			sm.notifications.SendDailyScheduleReminder(ctx, now)
		}},
		{"*/30 * * * *", "unmarked-attendance", func(ctx context.Context, now time.Time) {
			sm.notifications.CheckUnmarkedAttendance(ctx, now)
		}},
		{"0 8 * * *", "revenue-digest", func(ctx context.Context, now time.Time) {
			sm.notifications.SendRevenueDigest(ctx, now)
		}},
		{"10 0 * * *", "mark-overdue", func(ctx context.Context, now time.Time) {
			changed, err := sm.payments.MarkOverdue(ctx, now)
			if err != nil {
				logrus.WithError(err).Error("mark overdue failed")
				return
			}
			if len(changed) > 0 {
				logrus.WithField("academies", changed).Info("payments marked overdue")
			}
		}},
		{"@hourly", "flush-logs", func(ctx context.Context, now time.Time) {
			if _, err := sm.logs.FlushCachedLogs(ctx, time.Hour); err != nil {
				logrus.WithError(err).Debug("log flush skipped")
			}
		}},
		{"30 3 * * *", "archive-logs", func(ctx context.Context, now time.Time) {
			if _, err := sm.logs.ArchiveOldLogs(ctx, 30); err != nil {
				logrus.WithError(err).Warn("log archive failed")
			}
		}},
	}
	for _, j := range jobs {
		if _, err := sm.cron.AddFunc(j.spec, job(j.name, j.fn)); err != nil {
			return err
		}
	}
	return nil
}

// Start registers the jobs and runs the scheduler in the background.
func (sm *ScheduleManager) Start() error {
	if err := sm.Register(); err != nil {
		return err
	}
	sm.cron.Start()
	logrus.WithField("jobs", len(sm.cron.Entries())).Info("cron scheduler started")
	return nil
}

// Stop waits for running jobs to finish.
func (sm *ScheduleManager) Stop() {
	<-sm.cron.Stop().Done()
}

// Entries exposes the registered jobs.
func (sm *ScheduleManager) Entries() []cron.Entry { return sm.cron.Entries() }
