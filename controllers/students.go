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
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// StudentController serves /api/students. Files is nil when S3 is not configured.
type StudentController struct {
	Files storage.FileStore
}

type studentRequest struct {
	ClassID     *string     `json:"class_id" validate:"omitempty,uuid"`
	ParentID    *string     `json:"parent_id" validate:"omitempty,uuid"`
	FirstName   string      `json:"first_name" validate:"required,max=100"`
	LastName    string      `json:"last_name" validate:"omitempty,max=100"`
	DateOfBirth *utils.Date `json:"date_of_birth"`
	Gender      string      `json:"gender" validate:"omitempty,oneof=male female other"`
	Grade       string      `json:"grade" validate:"omitempty,max=50"`
	School      string      `json:"school" validate:"omitempty,max=200"`
	Phone       string      `json:"phone" validate:"omitempty,max=30"`
	Email       string      `json:"email" validate:"omitempty,email"`
	Status      string      `json:"status" validate:"omitempty,oneof=active inactive graduated"`
	Notes       string      `json:"notes"`
}

type studentPatch struct {
	ClassID     *string     `json:"class_id" update:"nullable" validate:"omitempty,uuid"`
	ParentID    *string     `json:"parent_id" update:"nullable" validate:"omitempty,uuid"`
	FirstName   *string     `json:"first_name" validate:"omitempty,min=1,max=100"`
	LastName    *string     `json:"last_name" validate:"omitempty,max=100"`
	DateOfBirth *utils.Date `json:"date_of_birth"`
	Gender      *string     `json:"gender" validate:"omitempty,oneof=male female other"`
	Grade       *string     `json:"grade" validate:"omitempty,max=50"`
	School      *string     `json:"school" validate:"omitempty,max=200"`
	Phone       *string     `json:"phone" validate:"omitempty,max=30"`
	Email       *string     `json:"email" validate:"omitempty,email"`
	Status      *string     `json:"status" validate:"omitempty,oneof=active inactive graduated"`
	Notes       *string     `json:"notes"`
}

func (sc *StudentController) GetStudents(c *fiber.Ctx) error {
	academy, err := scope(c)
	if err != nil {
		return respondError(c, "list students", err)
	}
	opts, p := listOptions(c, "status", "class_id", "parent_id", "grade")
	opts.Preload = []string{"Class"}
	items, total, err := repository.Students(database.DB).FindAll(c.UserContext(), academy, opts)
	if err != nil {
		return respondError(c, "list students", err)
	}
	return listResponse(c, "students", items, total, p)
}

func (sc *StudentController) GetStudent(c *fiber.Ctx) error {
	academy, err := scope(c)
	if err != nil {
		return respondError(c, "get student", err)
	}
	student, err := repository.Students(database.DB).FindByID(c.UserContext(), academy, c.Params("id"), "Class", "Parent")
	if err != nil {
		return respondError(c, "get student", err)
	}
	return c.JSON(fiber.Map{"student": student})
}

func (sc *StudentController) CreateStudent(c *fiber.Ctx) error {
	academyID, err := middleware.RequireAcademy(c)
	if err != nil {
		return respondError(c, "create student", err)
	}
	var req studentRequest
	if ok, err := parseBody(c, &req); !ok {
		return err
	}

	student := models.Student{
		AcademyID:   academyID,
		ClassID:     req.ClassID,
		ParentID:    req.ParentID,
		FirstName:   utils.SanitizeString(req.FirstName),
		LastName:    utils.SanitizeString(req.LastName),
		DateOfBirth: req.DateOfBirth.Ptr(),
		Gender:      req.Gender,
		Grade:       req.Grade,
		School:      req.School,
		Phone:       req.Phone,
		Email:       req.Email,
		Status:      req.Status,
		Notes:       req.Notes,
	}
	if err := services.NewStudentService(database.DB).Create(c.UserContext(), &student); err != nil {
		return respondError(c, "create student", err)
	}

	middleware.LogActivity(c, "CREATE", "students", student.ID, student)
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "Student created successfully",
		"student": student,
	})
}

func (sc *StudentController) UpdateStudent(c *fiber.Ctx) error {
	academy, err := scope(c)
	if err != nil {
		return respondError(c, "update student", err)
	}
	var patch studentPatch
	if ok, err := parseBody(c, &patch); !ok {
		return err
	}
	id := c.Params("id")
	ctx := c.UserContext()
	repo := repository.Students(database.DB)
	current, err := repo.FindByID(ctx, academy, id)
	if err != nil {
		return respondError(c, "update student", err)
	}

	fields := utils.UpdateMap(&patch)
	classID := mergeRef(nil, fields, "class_id")
	parentID := mergeRef(nil, fields, "parent_id")
	if err := services.NewStudentService(database.DB).ValidateReferences(ctx, current.AcademyID, classID, parentID); err != nil {
		return respondError(c, "update student", err)
	}

	student, err := repo.Update(ctx, academy, id, fields)
	if err != nil {
		return respondError(c, "update student", err)
	}

	middleware.LogActivity(c, "UPDATE", "students", student.ID, fields)
	return c.JSON(fiber.Map{
		"message": "Student updated successfully",
		"student": student,
	})
}

// DeleteStudent removes the student and reports whether their class was
// removed because it became empty.
func (sc *StudentController) DeleteStudent(c *fiber.Ctx) error {
	academy, err := scope(c)
	if err != nil {
		return respondError(c, "delete student", err)
	}
	id := c.Params("id")
	result, err := services.NewStudentService(database.DB).Delete(c.UserContext(), academy, id)
	if err != nil {
		return respondError(c, "delete student", err)
	}

	middleware.LogActivity(c, "DELETE", "students", id, result)
	return c.JSON(fiber.Map{
		"message":          "Student deleted successfully",
		"class_deleted":    result.ClassDeleted,
		"deleted_class_id": result.DeletedClassID,
	})
}

// UploadPhoto stores the multipart "photo" file and saves its URL.
func (sc *StudentController) UploadPhoto(c *fiber.Ctx) error {
	academy, err := scope(c)
	if err != nil {
		return respondError(c, "upload photo", err)
	}
	if sc.Files == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "File storage is not configured"})
	}
	ctx := c.UserContext()
	repo := repository.Students(database.DB)
	student, err := repo.FindByID(ctx, academy, c.Params("id"))
	if err != nil {
		return respondError(c, "upload photo", err)
	}
	file, err := c.FormFile("photo")
	if err != nil {
		return badRequest(c, "No photo file provided")
	}

	url, err := sc.Files.Upload(ctx, file, "students", student.AcademyID)
	if err != nil {
		return respondError(c, "upload photo", err)
	}
	old := student.PhotoURL
	student, err = repo.Update(ctx, academy, student.ID, map[string]interface{}{"photo_url": url})
	if err != nil {
		return respondError(c, "upload photo", err)
	}
	if old != "" {
		go func() {
			if err := sc.Files.Delete(context.Background(), old); err != nil {
				logrus.WithError(err).WithField("url", old).Warn("old photo delete failed")
			}
		}()
	}

	middleware.LogActivity(c, "UPDATE", "students", student.ID, fiber.Map{"photo_url": url})
	return c.JSON(fiber.Map{
		"message":   "Photo uploaded successfully",
		"photo_url": url,
		"student":   student,
	})
}

// ImportStudents reads a csv or xlsx "file" and creates students row by row.
func (sc *StudentController) ImportStudents(c *fiber.Ctx) error {
	academyID, err := middleware.RequireAcademy(c)
	if err != nil {
		return respondError(c, "import students", err)
	}
	file, err := c.FormFile("file")
	if err != nil {
		return badRequest(c, "No file provided")
	}
	src, err := file.Open()
	if err != nil {
		return badRequest(c, "Could not read file")
	}
	defer src.Close()

	rows, err := services.ReadTable(file.Filename, src)
	if err != nil {
		return respondError(c, "import students", err)
	}
	result, err := services.NewReportService(database.DB).ImportStudents(c.UserContext(), academyID, rows)
	if err != nil {
		return respondError(c, "import students", err)
	}

	middleware.LogActivity(c, "IMPORT", "students", "", fiber.Map{
		"file":    file.Filename,
		"created": result.Created,
		"skipped": result.Skipped,
		"errors":  len(result.Errors),
	})
	return c.JSON(fiber.Map{
		"message": fmt.Sprintf("Imported %d students", result.Created),
		"result":  result,
	})
}

func (sc *StudentController) ExportStudents(c *fiber.Ctx) error {
	academyID, err := middleware.RequireAcademy(c)
	if err != nil {
		return respondError(c, "export students", err)
	}
	buf, err := services.NewReportService(database.DB).ExportStudents(c.UserContext(), academyID)
	if err != nil {
		return respondError(c, "export students", err)
	}
	c.Attachment(fmt.Sprintf("students-%s.xlsx", time.Now().Format("20060102")))
	c.Set(fiber.HeaderContentType, xlsxContentType)
	return c.Send(buf.Bytes())
}
