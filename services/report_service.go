package services

import (
	"academyhub/models"
	"academyhub/repository"
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"
)

const (
	sheetPayments = "Payments"
	sheetRevenue  = "Daily revenue"
	sheetStudents = "Students"
)

// StudentImportColumns is the header expected by ImportStudents.
var StudentImportColumns = []string{"first_name", "last_name", "class", "parent_phone", "grade", "phone", "email"}

type ReportService struct {
	db *gorm.DB
}

func NewReportService(db *gorm.DB) *ReportService {
	return &ReportService{db: db}
}

func writeRow(f *excelize.File, sheet string, row int, values []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	return f.SetSheetRow(sheet, cell, &values)
}

func boldHeader(f *excelize.File, sheet string, cols int) {
	style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return
	}
	last, _ := excelize.CoordinatesToCellName(cols, 1)
	_ = f.SetCellStyle(sheet, "A1", last, style)
}

// ExportPayments writes payments of [from, to] plus the daily revenue of that range.
func (s *ReportService) ExportPayments(ctx context.Context, academyID string, from, to time.Time) (*bytes.Buffer, error) {
	payments := NewPaymentService(s.db)
	report, err := payments.DailyRevenueRange(ctx, academyID, from, to)
	if err != nil {
		return nil, err
	}
	loc := payments.Location(ctx, academyID)
	start, _ := time.ParseInLocation("2006-01-02", report.From, loc)
	end, _ := time.ParseInLocation("2006-01-02", report.To, loc)

	var rows []models.Payment
	if err := repository.Payments(s.db).Scoped(ctx, academyID).
		Preload("Student").Preload("Class").
		Where("payment_date >= ? AND payment_date < ?", start.UTC(), end.AddDate(0, 0, 1).UTC()).
		Order("payment_date ASC").Find(&rows).Error; err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetName("Sheet1", sheetPayments); err != nil {
		return nil, err
	}
	header := []interface{}{"Date", "Student", "Class", "Amount", "Method", "Status", "Period", "Due date", "Notes"}
	if err := writeRow(f, sheetPayments, 1, header); err != nil {
		return nil, err
	}
	boldHeader(f, sheetPayments, len(header))
	for i, p := range rows {
		student, class, due := "", "", ""
		if p.Student != nil {
			student = p.Student.FullName()
		}
		if p.Class != nil {
			class = p.Class.Name
		}
		if p.DueDate != nil {
			due = p.DueDate.In(loc).Format("2006-01-02")
		}
		values := []interface{}{
			p.PaymentDate.In(loc).Format("2006-01-02 15:04"), student, class,
			p.Amount, p.Method, p.Status, p.Period, due, p.Notes,
		}
		if err := writeRow(f, sheetPayments, i+2, values); err != nil {
			return nil, err
		}
	}

	if _, err := f.NewSheet(sheetRevenue); err != nil {
		return nil, err
	}
	if err := writeRow(f, sheetRevenue, 1, []interface{}{"Date", "Payments", "Total"}); err != nil {
		return nil, err
	}
	boldHeader(f, sheetRevenue, 3)
	for i, d := range report.Days {
		if err := writeRow(f, sheetRevenue, i+2, []interface{}{d.Date, d.Count, d.Total}); err != nil {
			return nil, err
		}
	}
	if err := writeRow(f, sheetRevenue, len(report.Days)+2, []interface{}{"Total", report.Count, report.Total}); err != nil {
		return nil, err
	}

	return f.WriteToBuffer()
}

// ExportStudents writes every student of the academy.
func (s *ReportService) ExportStudents(ctx context.Context, academyID string) (*bytes.Buffer, error) {
	var rows []models.Student
	if err := repository.Students(s.db).Scoped(ctx, academyID).
		Preload("Class").Preload("Parent").
		Order("first_name ASC, last_name ASC").Find(&rows).Error; err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetName("Sheet1", sheetStudents); err != nil {
		return nil, err
	}
	header := []interface{}{"first_name", "last_name", "class", "parent_phone", "grade", "phone", "email", "status", "school"}
	if err := writeRow(f, sheetStudents, 1, header); err != nil {
		return nil, err
	}
	boldHeader(f, sheetStudents, len(header))
	for i, st := range rows {
		class, parentPhone := "", ""
		if st.Class != nil {
			class = st.Class.Name
		}
		if st.Parent != nil {
			parentPhone = st.Parent.Phone
		}
		values := []interface{}{st.FirstName, st.LastName, class, parentPhone, st.Grade, st.Phone, st.Email, st.Status, st.School}
		if err := writeRow(f, sheetStudents, i+2, values); err != nil {
			return nil, err
		}
	}
	return f.WriteToBuffer()
}

// RowError reports why one import row was rejected. Row is 1-based and counts the header.
type RowError struct {
	Row     int    `json:"row"`
	Message string `json:"message"`
}

type ImportResult struct {
	Created int        `json:"created"`
	Skipped int        `json:"skipped"`
	Errors  []RowError `json:"errors"`
}

// ReadTable reads a csv or xlsx upload into rows, choosing by file extension.
func ReadTable(filename string, r io.Reader) ([][]string, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv":
		cr := csv.NewReader(r)
		cr.TrimLeadingSpace = true
		cr.FieldsPerRecord = -1
		return cr.ReadAll()
	case ".xlsx":
		f, err := excelize.OpenReader(r)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		sheet := f.GetSheetName(0)
		if sheet == "" {
			sheet = "Sheet1"
		}
		return f.GetRows(sheet)
	}
	return nil, validationf("unsupported file type %q, use .csv or .xlsx", filepath.Ext(filename))
}

func headerIndexes(header []string) map[string]int {
	m := map[string]int{}
	for i, h := range header {
		m[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))] = i
	}
	return m
}

// ImportStudents creates students from rows. Classes are matched by name and
// parents by phone inside the academy; rows already present (same name and
// phone) are skipped.
func (s *ReportService) ImportStudents(ctx context.Context, academyID string, rows [][]string) (*ImportResult, error) {
	if len(rows) == 0 {
		return nil, validationf("file is empty")
	}
	idx := headerIndexes(rows[0])
	if _, ok := idx["first_name"]; !ok {
		return nil, validationf("missing first_name column; expected %s", strings.Join(StudentImportColumns, ","))
	}
	get := func(row []string, col string) string {
		i, ok := idx[col]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	var classes []models.Class
	if err := repository.Classes(s.db).Scoped(ctx, academyID).Select("id", "name").Find(&classes).Error; err != nil {
		return nil, err
	}
	classByName := make(map[string]string, len(classes))
	for _, c := range classes {
		classByName[strings.ToLower(strings.TrimSpace(c.Name))] = c.ID
	}

	result := &ImportResult{Errors: []RowError{}}
	students := NewStudentService(s.db)
	for i, row := range rows[1:] {
		line := i + 2
		first := get(row, "first_name")
		if first == "" {
			if strings.TrimSpace(strings.Join(row, "")) == "" {
				continue
			}
			result.Errors = append(result.Errors, RowError{Row: line, Message: "first_name is required"})
			continue
		}
		st := &models.Student{
			AcademyID: academyID,
			FirstName: first,
			LastName:  get(row, "last_name"),
			Grade:     get(row, "grade"),
			Phone:     get(row, "phone"),
			Email:     get(row, "email"),
			Status:    "active",
		}

		if name := get(row, "class"); name != "" {
			id, ok := classByName[strings.ToLower(name)]
			if !ok {
				result.Errors = append(result.Errors, RowError{Row: line, Message: fmt.Sprintf("class %q not found", name)})
				continue
			}
			st.ClassID = &id
		}
		if phone := get(row, "parent_phone"); phone != "" {
			var parentID string
			if err := s.db.WithContext(ctx).Model(&models.Parent{}).
				Where("academy_id = ? AND phone = ?", academyID, phone).Limit(1).Pluck("id", &parentID).Error; err != nil {
				result.Errors = append(result.Errors, RowError{Row: line, Message: fmt.Sprintf("parent lookup failed: %v", err)})
				continue
			}
			if parentID != "" {
				st.ParentID = &parentID
			}
		}

		var dup int64
		if err := s.db.WithContext(ctx).Model(&models.Student{}).
			Where("academy_id = ? AND first_name = ? AND last_name = ? AND phone = ?", academyID, st.FirstName, st.LastName, st.Phone).
			Count(&dup).Error; err != nil {
			return nil, err
		}
		if dup > 0 {
			result.Skipped++
			continue
		}

		if err := students.Create(ctx, st); err != nil {
			result.Errors = append(result.Errors, RowError{Row: line, Message: err.Error()})
			continue
		}
		result.Created++
	}
	logrus.WithFields(logrus.Fields{
		"academy_id": academyID, "created": result.Created, "skipped": result.Skipped, "errors": len(result.Errors),
	}).Info("student import finished")
	return result, nil
}
