package services

import (
	"academyhub/database"
	"academyhub/models"
	"academyhub/repository"
	notifsvc "academyhub/services/notifications"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Columns added after the first attendance schema. Older databases lack them.
var optionalAttendanceColumns = []string{"check_in_time", "notes", "marked_by", "schedule_id"}

var attendanceStatuses = map[string]bool{
	models.AttendancePresent: true,
	models.AttendanceAbsent:  true,
	models.AttendanceLate:    true,
	models.AttendanceExcused: true,
}

type AttendanceService struct {
	db *gorm.DB
	// Notify parents on absent and late marks.
	NotifyParents bool
}

func NewAttendanceService(db *gorm.DB) *AttendanceService {
	return &AttendanceService{db: db, NotifyParents: true}
}

func (s *AttendanceService) validate(ctx context.Context, rec *models.AttendanceRecord) error {
	if !attendanceStatuses[rec.Status] {
		return validationf("status must be one of present, absent, late, excused")
	}
	if rec.Date.IsZero() {
		return validationf("date is required")
	}
	if err := mustExist(ctx, repository.Students(s.db), rec.AcademyID, rec.StudentID, "student"); err != nil {
		return err
	}
	if err := mustExist(ctx, repository.Classes(s.db), rec.AcademyID, rec.ClassID, "class"); err != nil {
		return err
	}
	if rec.ScheduleID != nil {
		if err := mustExist(ctx, repository.Schedules(s.db), rec.AcademyID, *rec.ScheduleID, "schedule"); err != nil {
			return err
		}
	}
	return nil
}

// Save inserts a record. When the database reports an unknown column the insert
// is retried once without the optional columns.
func (s *AttendanceService) Save(ctx context.Context, rec *models.AttendanceRecord) error {
	if err := s.validate(ctx, rec); err != nil {
		return err
	}
	if err := s.insert(ctx, rec); err != nil {
		return err
	}
	s.notifyParent(ctx, *rec)
	return nil
}

func (s *AttendanceService) insert(ctx context.Context, rec *models.AttendanceRecord) error {
	err := repository.Attendance(s.db).Save(ctx, rec)
	if err == nil || !database.IsUndefinedColumn(err) {
		return err
	}

	fields := database.ErrorFields(err)
	fields["omitted"] = optionalAttendanceColumns
	logrus.WithFields(fields).Warn("attendance_records is missing optional columns, retrying without them")

	omit := append([]string{clause.Associations}, optionalAttendanceColumns...)
	if err := s.db.WithContext(ctx).Omit(omit...).Create(rec).Error; err != nil {
		return fmt.Errorf("save without optional columns: %w", err)
	}
	return nil
}

// BulkEntry is one student's mark in a bulk request.
type BulkEntry struct {
	StudentID   string     `json:"student_id" validate:"required,uuid"`
	Status      string     `json:"status" validate:"required,oneof=present absent late excused"`
	CheckInTime *time.Time `json:"check_in_time"`
	Notes       string     `json:"notes"`
}

// BulkMark upserts one record per entry for class and date.
func (s *AttendanceService) BulkMark(ctx context.Context, academyID, classID string, date time.Time, scheduleID, markedBy *string, entries []BulkEntry) ([]models.AttendanceRecord, error) {
	if len(entries) == 0 {
		return nil, validationf("entries must not be empty")
	}
	if err := mustExist(ctx, repository.Classes(s.db), academyID, classID, "class"); err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		if !attendanceStatuses[e.Status] {
			return nil, validationf("student %s: invalid status %q", e.StudentID, e.Status)
		}
		ids = append(ids, e.StudentID)
	}
	var known int64
	if err := repository.Students(s.db).Scoped(ctx, academyID).Where("id IN ?", ids).Count(&known).Error; err != nil {
		return nil, err
	}
	if int(known) != len(uniqueStrings(ids)) {
		return nil, validationf("some students do not belong to this academy")
	}

	day := models.DateOnly(date)
	// one row per student; a later entry for the same student replaces the earlier one
	records := make([]models.AttendanceRecord, 0, len(entries))
	pos := make(map[string]int, len(entries))
	for _, e := range entries {
		rec := models.AttendanceRecord{
			AcademyID:   academyID,
			StudentID:   e.StudentID,
			ClassID:     classID,
			Date:        day,
			Status:      e.Status,
			ScheduleID:  scheduleID,
			CheckInTime: e.CheckInTime,
			Notes:       e.Notes,
			MarkedBy:    markedBy,
		}
		if i, ok := pos[e.StudentID]; ok {
			records[i] = rec
			continue
		}
		pos[e.StudentID] = len(records)
		records = append(records, rec)
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Omit(clause.Associations).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "student_id"}, {Name: "class_id"}, {Name: "date"}},
			DoUpdates: clause.AssignmentColumns([]string{"status", "check_in_time", "notes", "marked_by", "schedule_id", "updated_at"}),
		}).Create(&records).Error
	})
	if err != nil {
		return nil, fmt.Errorf("bulk mark: %w", err)
	}

	// re-read so ids reflect rows that already existed
	var saved []models.AttendanceRecord
	if err := repository.Attendance(s.db).Scoped(ctx, academyID).
		Where("class_id = ? AND date = ? AND student_id IN ?", classID, day, ids).
		Order("student_id").Find(&saved).Error; err != nil {
		return nil, err
	}
	for _, r := range saved {
		s.notifyParent(ctx, r)
	}
	return saved, nil
}

func uniqueStrings(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, v := range in {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}

// Summary holds status counts over a period.
type Summary struct {
	Total   int            `json:"total"`
	Counts  map[string]int `json:"counts"`
	Rate    float64        `json:"rate"` // (present+late)/total, 0..1
	From    string         `json:"from"`
	To      string         `json:"to"`
	Student string         `json:"student_id,omitempty"`
	Class   string         `json:"class_id,omitempty"`
}

// Summary counts records for a student or a class between from and to inclusive.
func (s *AttendanceService) Summary(ctx context.Context, academyID, studentID, classID string, from, to time.Time) (*Summary, error) {
	from, to = models.DateOnly(from), models.DateOnly(to)
	if to.Before(from) {
		return nil, validationf("from must not be after to")
	}
	q := repository.Attendance(s.db).Scoped(ctx, academyID).
		Where("date >= ? AND date <= ?", from, to)
	if studentID != "" {
		q = q.Where("student_id = ?", studentID)
	}
	if classID != "" {
		q = q.Where("class_id = ?", classID)
	}

	type row struct {
		Status string
		N      int
	}
	var rows []row
	if err := q.Select("status, COUNT(*) AS n").Group("status").Scan(&rows).Error; err != nil {
		return nil, err
	}

	sum := &Summary{
		Counts:  map[string]int{models.AttendancePresent: 0, models.AttendanceAbsent: 0, models.AttendanceLate: 0, models.AttendanceExcused: 0},
		From:    from.Format("2006-01-02"),
		To:      to.Format("2006-01-02"),
		Student: studentID,
		Class:   classID,
	}
	for _, r := range rows {
		sum.Counts[r.Status] += r.N
		sum.Total += r.N
	}
	sum.Rate = attendanceRate(sum.Counts[models.AttendancePresent], sum.Counts[models.AttendanceLate], sum.Total)
	return sum, nil
}

func attendanceRate(present, late, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(present+late) / float64(total)
}

// notifyParent tells the student's parent about an absent or late mark.
// Failures are logged.
func (s *AttendanceService) notifyParent(ctx context.Context, rec models.AttendanceRecord) {
	if !s.NotifyParents || (rec.Status != models.AttendanceAbsent && rec.Status != models.AttendanceLate) {
		return
	}
	var st models.Student
	err := s.db.WithContext(ctx).Preload("Parent").Preload("Class").
		Where("id = ?", rec.StudentID).First(&st).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			logrus.WithError(err).WithField("student_id", rec.StudentID).Warn("attendance notify: student lookup failed")
		}
		return
	}
	if st.Parent == nil {
		return
	}

	className := ""
	if st.Class != nil {
		className = st.Class.Name
	}
	title := fmt.Sprintf("%s marked %s", st.FullName(), rec.Status)
	msg := fmt.Sprintf("%s was marked %s on %s", st.FullName(), rec.Status, rec.Date.Format("2006-01-02"))
	if className != "" {
		msg += " in " + className
	}

	svc := notifsvc.NewService()
	if st.Parent.UserID != nil {
		n := notifsvc.New(title, msg, "warning",
			map[string]interface{}{"action": "open_attendance", "student_id": st.ID, "date": rec.Date.Format("2006-01-02")},
			notifsvc.ChannelNormal, notifsvc.ChannelPopup)
		if err := svc.EnqueueOrCreate(ctx, []string{*st.Parent.UserID}, n); err != nil {
			logrus.WithError(err).WithField("parent_id", st.Parent.ID).Warn("attendance notify failed")
		}
	}
	if st.Parent.LineUserID != "" {
		if err := svc.PushLineDirect(st.Parent.LineUserID, msg); err != nil {
			logrus.WithError(err).WithField("parent_id", st.Parent.ID).Debug("attendance line push skipped")
		}
	}
}
