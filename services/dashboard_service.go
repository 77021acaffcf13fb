package services

import (
	"academyhub/models"
	"context"
	"time"

	"gorm.io/gorm"
)

// DashboardStats is the landing page summary of one academy.
type DashboardStats struct {
	ActiveStudents  int64   `json:"active_students"`
	ActiveClasses   int64   `json:"active_classes"`
	Teachers        int64   `json:"teachers"`
	Classrooms      int64   `json:"classrooms"`
	TodayRevenue    float64 `json:"today_revenue"`
	MonthRevenue    float64 `json:"month_revenue"`
	TodayAttendance float64 `json:"today_attendance_rate"`
	TodayMarked     int     `json:"today_attendance_marked"`
	OverduePayments int64   `json:"overdue_payments"`
	PendingPayments int64   `json:"pending_payments"`
	TodaySessions   int     `json:"today_sessions"`
	Timezone        string  `json:"timezone"`
	GeneratedAt     string  `json:"generated_at"`
}

type DashboardService struct {
	db *gorm.DB
}

func NewDashboardService(db *gorm.DB) *DashboardService {
	return &DashboardService{db: db}
}

func (s *DashboardService) count(ctx context.Context, model interface{}, academyID string, where string, args ...interface{}) (int64, error) {
	var n int64
	q := s.db.WithContext(ctx).Model(model)
	if academyID != "" {
		q = q.Where("academy_id = ?", academyID)
	}
	if where != "" {
		q = q.Where(where, args...)
	}
	err := q.Count(&n).Error
	return n, err
}

// Stats computes the dashboard for academyID at now. An empty academyID
// aggregates every academy.
func (s *DashboardService) Stats(ctx context.Context, academyID string, now time.Time) (*DashboardStats, error) {
	payments := NewPaymentService(s.db)
	loc := payments.Location(ctx, academyID)
	local := now.In(loc)

	st := &DashboardStats{Timezone: loc.String(), GeneratedAt: now.UTC().Format(time.RFC3339)}
	var err error
	if st.ActiveStudents, err = s.count(ctx, &models.Student{}, academyID, "status = ?", "active"); err != nil {
		return nil, err
	}
	if st.ActiveClasses, err = s.count(ctx, &models.Class{}, academyID, "status = ?", "active"); err != nil {
		return nil, err
	}
	if st.Teachers, err = s.count(ctx, &models.Teacher{}, academyID, "status = ?", "active"); err != nil {
		return nil, err
	}
	if st.Classrooms, err = s.count(ctx, &models.Classroom{}, academyID, ""); err != nil {
		return nil, err
	}
	if st.OverduePayments, err = s.count(ctx, &models.Payment{}, academyID, "status = ?", models.PaymentOverdue); err != nil {
		return nil, err
	}
	if st.PendingPayments, err = s.count(ctx, &models.Payment{}, academyID, "status = ?", models.PaymentPending); err != nil {
		return nil, err
	}

	first := time.Date(local.Year(), local.Month(), 1, 0, 0, 0, 0, loc)
	month, err := payments.DailyRevenueRange(ctx, academyID, first, local)
	if err != nil {
		return nil, err
	}
	st.MonthRevenue = month.Total
	st.TodayRevenue = month.Days[len(month.Days)-1].Total

	today := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.UTC)
	att, err := NewAttendanceService(s.db).Summary(ctx, academyID, "", "", today, today)
	if err != nil {
		return nil, err
	}
	st.TodayAttendance = att.Rate
	st.TodayMarked = att.Total

	sessions, err := NewScheduleService(s.db).SessionsOn(ctx, academyID, today)
	if err != nil {
		return nil, err
	}
	st.TodaySessions = len(sessions)
	return st, nil
}
