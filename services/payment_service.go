package services

import (
	"academyhub/config"
	"academyhub/models"
	"academyhub/repository"
	notifsvc "academyhub/services/notifications"
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const maxRevenueRangeDays = 366

// DailyRevenue is the paid total of one academy-local calendar day.
type DailyRevenue struct {
	Date     string             `json:"date"`
	Total    float64            `json:"total"`
	Count    int                `json:"count"`
	ByMethod map[string]float64 `json:"by_method"`
}

// RevenueReport covers an inclusive date range.
type RevenueReport struct {
	From     string             `json:"from"`
	To       string             `json:"to"`
	Timezone string             `json:"timezone"`
	Days     []DailyRevenue     `json:"days"`
	Total    float64            `json:"total"`
	Count    int                `json:"count"`
	ByMethod map[string]float64 `json:"by_method"`
}

type PaymentService struct {
	db *gorm.DB
}

func NewPaymentService(db *gorm.DB) *PaymentService {
	return &PaymentService{db: db}
}

// Location returns the academy's timezone: its timetable setting, then the
// application default.
func (s *PaymentService) Location(ctx context.Context, academyID string) *time.Location {
	return academyLocation(ctx, s.db, academyID)
}

func academyLocation(ctx context.Context, db *gorm.DB, academyID string) *time.Location {
	if academyID != "" {
		var tz string
		if err := db.WithContext(ctx).Model(&models.TimetableSettings{}).
			Where("academy_id = ?", academyID).Limit(1).Pluck("timezone", &tz).Error; err != nil {
			logrus.WithError(err).WithField("academy_id", academyID).Warn("timezone lookup failed, using default")
		}
		if tz != "" {
			if loc, err := time.LoadLocation(tz); err == nil {
				return loc
			}
		}
	}
	return config.AppConfig.Location()
}

// Create validates and inserts a payment.
func (s *PaymentService) Create(ctx context.Context, p *models.Payment) error {
	if p.Amount <= 0 {
		return validationf("amount must be greater than zero")
	}
	ok, err := repository.Students(s.db).Exists(ctx, p.AcademyID, p.StudentID)
	if err != nil {
		return err
	}
	if !ok {
		return validationf("student %s does not belong to this academy", p.StudentID)
	}
	if p.ClassID != nil {
		ok, err := repository.Classes(s.db).Exists(ctx, p.AcademyID, *p.ClassID)
		if err != nil {
			return err
		}
		if !ok {
			return validationf("class %s does not belong to this academy", *p.ClassID)
		}
	}
	if p.Status == "" {
		p.Status = models.PaymentPending
	}
	if p.Period == "" {
		date := p.PaymentDate
		if date.IsZero() {
			date = time.Now()
		}
		p.Period = date.In(s.Location(ctx, p.AcademyID)).Format("2006-01")
	}
	return repository.Payments(s.db).Save(ctx, p)
}

// DailyRevenue sums paid payments of one day.
func (s *PaymentService) DailyRevenue(ctx context.Context, academyID string, day time.Time) (DailyRevenue, error) {
	report, err := s.DailyRevenueRange(ctx, academyID, day, day)
	if err != nil {
		return DailyRevenue{}, err
	}
	return report.Days[0], nil
}

// DailyRevenueRange returns one zero-filled entry per day in [from, to].
// Only the calendar dates of from and to matter; they are read in the academy timezone.
func (s *PaymentService) DailyRevenueRange(ctx context.Context, academyID string, from, to time.Time) (*RevenueReport, error) {
	loc := s.Location(ctx, academyID)
	start := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, loc)
	end := time.Date(to.Year(), to.Month(), to.Day(), 0, 0, 0, 0, loc).AddDate(0, 0, 1)
	if !end.After(start) {
		return nil, validationf("from must not be after to")
	}
	days := int(math.Round(end.Sub(start).Hours() / 24))
	if days > maxRevenueRangeDays {
		return nil, validationf("range exceeds %d days", maxRevenueRangeDays)
	}

	var payments []models.Payment
	q := repository.Payments(s.db).Scoped(ctx, academyID).
		Select("id", "amount", "payment_date", "method").
		Where("status = ?", models.PaymentPaid).
		Where("payment_date >= ? AND payment_date < ?", start.UTC(), end.UTC())
	if err := q.Find(&payments).Error; err != nil {
		return nil, fmt.Errorf("load payments: %w", err)
	}

	return aggregateRevenue(payments, start, days, loc), nil
}

// aggregateRevenue buckets payments per local day. Sums are kept in cents.
func aggregateRevenue(payments []models.Payment, start time.Time, days int, loc *time.Location) *RevenueReport {
	type bucket struct {
		cents    int64
		count    int
		byMethod map[string]int64
	}
	buckets := make(map[string]*bucket, days)
	keys := make([]string, 0, days)
	for i := 0; i < days; i++ {
		k := start.AddDate(0, 0, i).Format("2006-01-02")
		keys = append(keys, k)
		buckets[k] = &bucket{byMethod: map[string]int64{}}
	}

	totalByMethod := map[string]int64{}
	var totalCents int64
	var totalCount int
	for _, p := range payments {
		k := p.PaymentDate.In(loc).Format("2006-01-02")
		b, ok := buckets[k]
		if !ok {
			continue
		}
		c := toCents(p.Amount)
		b.cents += c
		b.count++
		b.byMethod[p.Method] += c
		totalByMethod[p.Method] += c
		totalCents += c
		totalCount++
	}

	report := &RevenueReport{
		From:     keys[0],
		To:       keys[len(keys)-1],
		Timezone: loc.String(),
		Days:     make([]DailyRevenue, 0, days),
		Total:    fromCents(totalCents),
		Count:    totalCount,
		ByMethod: centsMap(totalByMethod),
	}
	for _, k := range keys {
		b := buckets[k]
		report.Days = append(report.Days, DailyRevenue{
			Date:     k,
			Total:    fromCents(b.cents),
			Count:    b.count,
			ByMethod: centsMap(b.byMethod),
		})
	}
	return report
}

func toCents(v float64) int64   { return int64(math.Round(v * 100)) }
func fromCents(c int64) float64 { return float64(c) / 100 }

func centsMap(in map[string]int64) map[string]float64 {
	out := make(map[string]float64, len(in))
	for k, v := range in {
		out[k] = fromCents(v)
	}
	return out
}

// MonthlyRevenue covers a whole calendar month.
func (s *PaymentService) MonthlyRevenue(ctx context.Context, academyID string, year int, month time.Month) (*RevenueReport, error) {
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	last := first.AddDate(0, 1, -1)
	return s.DailyRevenueRange(ctx, academyID, first, last)
}

// OutstandingByStudent sums pending and overdue amounts per student.
func (s *PaymentService) OutstandingByStudent(ctx context.Context, academyID string) (map[string]float64, error) {
	var rows []models.Payment
	err := repository.Payments(s.db).Scoped(ctx, academyID).
		Select("student_id", "amount").
		Where("status IN ?", []string{models.PaymentPending, models.PaymentOverdue}).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	cents := map[string]int64{}
	for _, r := range rows {
		cents[r.StudentID] += toCents(r.Amount)
	}
	return centsMap(cents), nil
}

// MarkOverdue flips pending payments whose due date is before today in the
// academy's timezone to overdue and notifies each academy's owners and admins.
// It returns the number of payments changed per academy.
func (s *PaymentService) MarkOverdue(ctx context.Context, now time.Time) (map[string]int, error) {
	// no timezone is more than a day ahead of UTC
	horizon := models.DateOnly(now.UTC()).AddDate(0, 0, 2)

	var due []models.Payment
	if err := s.db.WithContext(ctx).Select("id", "academy_id", "due_date").
		Where("status = ? AND due_date IS NOT NULL AND due_date < ?", models.PaymentPending, horizon).
		Find(&due).Error; err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(due))
	perAcademy := map[string]int{}
	today := map[string]time.Time{}
	for _, p := range due {
		local, ok := today[p.AcademyID]
		if !ok {
			local = models.DateOnly(now.In(academyLocation(ctx, s.db, p.AcademyID)))
			today[p.AcademyID] = local
		}
		if !models.DateOnly(p.DueDate.UTC()).Before(local) {
			continue
		}
		ids = append(ids, p.ID)
		perAcademy[p.AcademyID]++
	}
	if len(ids) == 0 {
		return map[string]int{}, nil
	}
	if err := s.db.WithContext(ctx).Model(&models.Payment{}).
		Where("id IN ? AND status = ?", ids, models.PaymentPending).
		Update("status", models.PaymentOverdue).Error; err != nil {
		return nil, err
	}

	academies := make([]string, 0, len(perAcademy))
	for a := range perAcademy {
		academies = append(academies, a)
	}
	sort.Strings(academies)

	svc := notifsvc.NewService()
	for _, academyID := range academies {
		recipients, err := notifsvc.UsersByRole(ctx, s.db, academyID, models.RoleOwner, models.RoleAdmin)
		if err != nil || len(recipients) == 0 {
			continue
		}
		n := notifsvc.New(
			"Overdue payments",
			fmt.Sprintf("%d payment(s) passed their due date and are now overdue.", perAcademy[academyID]),
			"warning",
			map[string]interface{}{"action": "open_payments", "status": models.PaymentOverdue},
			notifsvc.ChannelNormal, notifsvc.ChannelPopup,
		)
		if err := svc.EnqueueOrCreate(ctx, recipients, n); err != nil {
			logrus.WithError(err).WithField("academy_id", academyID).Warn("overdue notification failed")
		}
	}
	return perAcademy, nil
}
