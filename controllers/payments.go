package controllers

import (
	"academyhub/database"
	"academyhub/middleware"
	"academyhub/models"
	"academyhub/repository"
	"academyhub/services"
	"academyhub/storage"
	"academyhub/utils"
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

// PaymentController serves /api/payments and /api/revenue. Files is nil when
// S3 is not configured.
type PaymentController struct {
	Files storage.FileStore
}

type paymentRequest struct {
	StudentID   string      `json:"student_id" validate:"required,uuid"`
	ClassID     *string     `json:"class_id" validate:"omitempty,uuid"`
	Amount      float64     `json:"amount" validate:"required,gt=0"`
	PaymentDate *utils.Date `json:"payment_date"`
	DueDate     *utils.Date `json:"due_date"`
	Method      string      `json:"method" validate:"omitempty,oneof=cash card transfer other"`
	Status      string      `json:"status" validate:"omitempty,oneof=pending paid overdue refunded cancelled"`
	Period      string      `json:"period" validate:"omitempty,datetime=2006-01"`
	Notes       string      `json:"notes"`
}

type paymentPatch struct {
	ClassID     *string     `json:"class_id" update:"nullable" validate:"omitempty,uuid"`
	Amount      *float64    `json:"amount" validate:"omitempty,gt=0"`
	PaymentDate *utils.Date `json:"payment_date"`
	DueDate     *utils.Date `json:"due_date"`
	Method      *string     `json:"method" validate:"omitempty,oneof=cash card transfer other"`
	Status      *string     `json:"status" validate:"omitempty,oneof=pending paid overdue refunded cancelled"`
	Period      *string     `json:"period" validate:"omitempty,datetime=2006-01"`
	Notes       *string     `json:"notes"`
}

func (pc *PaymentController) GetPayments(c *fiber.Ctx) error {
	sc, err := scope(c)
	if err != nil {
		return respondError(c, "list payments", err)
	}
	opts, p := listOptions(c, "student_id", "class_id", "status", "method", "period")
	items, total, err := repository.Payments(database.DB).FindAll(c.UserContext(), sc, opts)
	if err != nil {
		return respondError(c, "list payments", err)
	}
	return listResponse(c, "payments", items, total, p)
}

func (pc *PaymentController) GetPayment(c *fiber.Ctx) error {
	sc, err := scope(c)
	if err != nil {
		return respondError(c, "get payment", err)
	}
	payment, err := repository.Payments(database.DB).FindByID(c.UserContext(), sc, c.Params("id"), "Class")
	if err != nil {
		return respondError(c, "get payment", err)
	}
	return c.JSON(fiber.Map{"payment": payment})
}

func (pc *PaymentController) CreatePayment(c *fiber.Ctx) error {
	academyID, err := middleware.RequireAcademy(c)
	if err != nil {
		return respondError(c, "create payment", err)
	}
	var req paymentRequest
	if ok, err := parseBody(c, &req); !ok {
		return err
	}
	payment := models.Payment{
		AcademyID: academyID,
		StudentID: req.StudentID,
		ClassID:   req.ClassID,
		Amount:    req.Amount,
		DueDate:   req.DueDate.Ptr(),
		Method:    req.Method,
		Status:    req.Status,
		Period:    req.Period,
		Notes:     req.Notes,
	}
	if t := req.PaymentDate.Ptr(); t != nil {
		payment.PaymentDate = *t
	}
	if payment.Method == "" {
		payment.Method = "cash"
	}
	if err := services.NewPaymentService(database.DB).Create(c.UserContext(), &payment); err != nil {
		return respondError(c, "create payment", err)
	}

	middleware.LogActivity(c, "CREATE", "payments", payment.ID, payment)
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "Payment recorded successfully",
		"payment": payment,
	})
}

func (pc *PaymentController) UpdatePayment(c *fiber.Ctx) error {
	sc, err := scope(c)
	if err != nil {
		return respondError(c, "update payment", err)
	}
	var patch paymentPatch
	if ok, err := parseBody(c, &patch); !ok {
		return err
	}
	id := c.Params("id")
	ctx := c.UserContext()
	repo := repository.Payments(database.DB)
	current, err := repo.FindByID(ctx, sc, id)
	if err != nil {
		return respondError(c, "update payment", err)
	}
	fields := utils.UpdateMap(&patch)
	if classID := mergeRef(nil, fields, "class_id"); classID != nil {
		ok, err := repository.Classes(database.DB).Exists(ctx, current.AcademyID, *classID)
		if err != nil {
			return respondError(c, "update payment", err)
		}
		if !ok {
			return badRequest(c, "Class not found in this academy")
		}
	}
	if v, ok := fields["payment_date"]; ok && v == nil {
		return badRequest(c, "payment_date cannot be cleared")
	}

	payment, err := repo.Update(ctx, sc, id, fields)
	if err != nil {
		return respondError(c, "update payment", err)
	}

	middleware.LogActivity(c, "UPDATE", "payments", payment.ID, fields)
	return c.JSON(fiber.Map{
		"message": "Payment updated successfully",
		"payment": payment,
	})
}

func (pc *PaymentController) DeletePayment(c *fiber.Ctx) error {
	sc, err := scope(c)
	if err != nil {
		return respondError(c, "delete payment", err)
	}
	id := c.Params("id")
	if err := repository.Payments(database.DB).Delete(c.UserContext(), sc, id); err != nil {
		return respondError(c, "delete payment", err)
	}

	middleware.LogActivity(c, "DELETE", "payments", id, nil)
	return c.JSON(fiber.Map{"message": "Payment deleted successfully"})
}

// UploadReceipt stores the multipart "receipt" file against the payment.
func (pc *PaymentController) UploadReceipt(c *fiber.Ctx) error {
	sc, err := scope(c)
	if err != nil {
		return respondError(c, "upload receipt", err)
	}
	if pc.Files == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "File storage is not configured"})
	}
	ctx := c.UserContext()
	repo := repository.Payments(database.DB)
	payment, err := repo.FindByID(ctx, sc, c.Params("id"))
	if err != nil {
		return respondError(c, "upload receipt", err)
	}
	file, err := c.FormFile("receipt")
	if err != nil {
		return badRequest(c, "No receipt file provided")
	}

	url, err := pc.Files.Upload(ctx, file, "receipts", payment.AcademyID)
	if err != nil {
		return respondError(c, "upload receipt", err)
	}
	old := payment.ReceiptURL
	payment, err = repo.Update(ctx, sc, payment.ID, map[string]interface{}{"receipt_url": url})
	if err != nil {
		return respondError(c, "upload receipt", err)
	}
	if old != "" {
		go func() {
			if err := pc.Files.Delete(context.Background(), old); err != nil {
				logrus.WithError(err).WithField("url", old).Warn("old receipt delete failed")
			}
		}()
	}

	middleware.LogActivity(c, "UPDATE", "payments", payment.ID, fiber.Map{"receipt_url": url})
	return c.JSON(fiber.Map{
		"message":     "Receipt uploaded successfully",
		"receipt_url": url,
		"payment":     payment,
	})
}

// dateRange reads from/to (YYYY-MM-DD) in loc, defaulting to the last 30 days.
func dateRange(c *fiber.Ctx, loc *time.Location) (time.Time, time.Time, error) {
	now := time.Now().In(loc)
	from, to := now.AddDate(0, 0, -29), now
	if v := c.Query("from"); v != "" {
		t, err := utils.ParseDate(v, loc)
		if err != nil {
			return from, to, fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		from = t
	}
	if v := c.Query("to"); v != "" {
		t, err := utils.ParseDate(v, loc)
		if err != nil {
			return from, to, fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		to = t
	}
	return from, to, nil
}

func (pc *PaymentController) ExportPayments(c *fiber.Ctx) error {
	academyID, err := middleware.RequireAcademy(c)
	if err != nil {
		return respondError(c, "export payments", err)
	}
	ctx := c.UserContext()
	loc := services.NewPaymentService(database.DB).Location(ctx, academyID)
	from, to, err := dateRange(c, loc)
	if err != nil {
		return respondError(c, "export payments", err)
	}
	buf, err := services.NewReportService(database.DB).ExportPayments(ctx, academyID, from, to)
	if err != nil {
		return respondError(c, "export payments", err)
	}
	c.Attachment(fmt.Sprintf("payments-%s-%s.xlsx", from.Format("20060102"), to.Format("20060102")))
	c.Set(fiber.HeaderContentType, xlsxContentType)
	return c.Send(buf.Bytes())
}

// GetDailyRevenue answers the paid total of ?date= (default today, academy time).
func (pc *PaymentController) GetDailyRevenue(c *fiber.Ctx) error {
	academyID, err := middleware.RequireAcademy(c)
	if err != nil {
		return respondError(c, "daily revenue", err)
	}
	ctx := c.UserContext()
	svc := services.NewPaymentService(database.DB)
	loc := svc.Location(ctx, academyID)
	day := time.Now().In(loc)
	if v := c.Query("date"); v != "" {
		if day, err = utils.ParseDate(v, loc); err != nil {
			return badRequest(c, err.Error())
		}
	}
	rev, err := svc.DailyRevenue(ctx, academyID, day)
	if err != nil {
		return respondError(c, "daily revenue", err)
	}
	return c.JSON(fiber.Map{
		"revenue":  rev,
		"timezone": loc.String(),
	})
}

// GetRevenueRange answers one entry per day between from and to, or for a
// whole month when year and month are given.
func (pc *PaymentController) GetRevenueRange(c *fiber.Ctx) error {
	academyID, err := middleware.RequireAcademy(c)
	if err != nil {
		return respondError(c, "revenue range", err)
	}
	ctx := c.UserContext()
	svc := services.NewPaymentService(database.DB)

	if y, m := c.Query("year"), c.Query("month"); y != "" && m != "" {
		year, yerr := strconv.Atoi(y)
		month, merr := strconv.Atoi(m)
		if yerr != nil || merr != nil || month < 1 || month > 12 {
			return badRequest(c, "year and month must be numbers, month 1-12")
		}
		report, err := svc.MonthlyRevenue(ctx, academyID, year, time.Month(month))
		if err != nil {
			return respondError(c, "revenue range", err)
		}
		return c.JSON(fiber.Map{"report": report})
	}

	from, to, err := dateRange(c, svc.Location(ctx, academyID))
	if err != nil {
		return respondError(c, "revenue range", err)
	}
	report, err := svc.DailyRevenueRange(ctx, academyID, from, to)
	if err != nil {
		return respondError(c, "revenue range", err)
	}
	return c.JSON(fiber.Map{"report": report})
}

// GetOutstanding sums unpaid amounts per student.
func (pc *PaymentController) GetOutstanding(c *fiber.Ctx) error {
	academyID, err := middleware.RequireAcademy(c)
	if err != nil {
		return respondError(c, "outstanding payments", err)
	}
	balances, err := services.NewPaymentService(database.DB).OutstandingByStudent(c.UserContext(), academyID)
	if err != nil {
		return respondError(c, "outstanding payments", err)
	}
	return c.JSON(fiber.Map{"outstanding": balances})
}
