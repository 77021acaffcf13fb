package controllers

import (
	"academyhub/database"
	"academyhub/middleware"
	"academyhub/models"
	"academyhub/repository"
	"academyhub/services"
	"academyhub/utils"

	"github.com/gofiber/fiber/v2"
)

type ClassController struct{}

// classRequest accepts classroom_id or a free-typed classroom (id or name).
type classRequest struct {
	Name        string      `json:"name" validate:"required,max=150"`
	SubjectID   *string     `json:"subject_id" validate:"omitempty,uuid"`
	TeacherID   *string     `json:"teacher_id" validate:"omitempty,uuid"`
	ClassroomID *string     `json:"classroom_id" validate:"omitempty,uuid"`
	Classroom   string      `json:"classroom" validate:"omitempty,max=100"`
	Level       string      `json:"level" validate:"omitempty,max=50"`
	Capacity    int         `json:"capacity" validate:"gte=0"`
	MonthlyFee  float64     `json:"monthly_fee" validate:"gte=0"`
	Status      string      `json:"status" validate:"omitempty,oneof=active inactive completed"`
	StartDate   *utils.Date `json:"start_date"`
	EndDate     *utils.Date `json:"end_date"`
}

type classPatch struct {
	Name        *string     `json:"name" validate:"omitempty,min=1,max=150"`
	SubjectID   *string     `json:"subject_id" update:"nullable" validate:"omitempty,uuid"`
	TeacherID   *string     `json:"teacher_id" update:"nullable" validate:"omitempty,uuid"`
	ClassroomID *string     `json:"classroom_id" update:"nullable" validate:"omitempty,uuid"`
	Level       *string     `json:"level" validate:"omitempty,max=50"`
	Capacity    *int        `json:"capacity" validate:"omitempty,gte=0"`
	MonthlyFee  *float64    `json:"monthly_fee" validate:"omitempty,gte=0"`
	Status      *string     `json:"status" validate:"omitempty,oneof=active inactive completed"`
	StartDate   *utils.Date `json:"start_date"`
	EndDate     *utils.Date `json:"end_date"`
}

func (cc *ClassController) GetClasses(c *fiber.Ctx) error {
	sc, err := scope(c)
	if err != nil {
		return respondError(c, "list classes", err)
	}
	opts, p := listOptions(c, "status", "subject_id", "teacher_id", "classroom_id", "level")
	items, total, err := repository.Classes(database.DB).FindAll(c.UserContext(), sc, opts)
	if err != nil {
		return respondError(c, "list classes", err)
	}
	return listResponse(c, "classes", items, total, p)
}

func (cc *ClassController) GetClass(c *fiber.Ctx) error {
	sc, err := scope(c)
	if err != nil {
		return respondError(c, "get class", err)
	}
	class, err := repository.Classes(database.DB).FindByID(c.UserContext(), sc, c.Params("id"))
	if err != nil {
		return respondError(c, "get class", err)
	}
	return c.JSON(fiber.Map{"class": class})
}

func (cc *ClassController) CreateClass(c *fiber.Ctx) error {
	academyID, err := middleware.RequireAcademy(c)
	if err != nil {
		return respondError(c, "create class", err)
	}
	var req classRequest
	if ok, err := parseBody(c, &req); !ok {
		return err
	}

	class := models.Class{
		AcademyID:   academyID,
		Name:        utils.SanitizeString(req.Name),
		SubjectID:   req.SubjectID,
		TeacherID:   req.TeacherID,
		ClassroomID: req.ClassroomID,
		Level:       req.Level,
		Capacity:    req.Capacity,
		MonthlyFee:  req.MonthlyFee,
		Status:      req.Status,
		StartDate:   req.StartDate.Ptr(),
		EndDate:     req.EndDate.Ptr(),
	}
	ctx := c.UserContext()
	if err := services.NewClassService(database.DB).Create(ctx, &class, req.Classroom); err != nil {
		return respondError(c, "create class", err)
	}
	created, err := repository.Classes(database.DB).FindByID(ctx, academyID, class.ID)
	if err != nil {
		created = &class
	}

	middleware.LogActivity(c, "CREATE", "classes", class.ID, class)
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "Class created successfully",
		"class":   created,
	})
}

func (cc *ClassController) UpdateClass(c *fiber.Ctx) error {
	sc, err := scope(c)
	if err != nil {
		return respondError(c, "update class", err)
	}
	var patch classPatch
	if ok, err := parseBody(c, &patch); !ok {
		return err
	}
	var ref struct {
		Classroom *string `json:"classroom"`
	}
	_ = c.BodyParser(&ref)

	id := c.Params("id")
	ctx := c.UserContext()
	repo := repository.Classes(database.DB)
	current, err := repo.FindByID(ctx, sc, id)
	if err != nil {
		return respondError(c, "update class", err)
	}

	// validate the merged row the same way a create would
	fields := utils.UpdateMap(&patch)
	merged := *current
	merged.SubjectID = mergeRef(merged.SubjectID, fields, "subject_id")
	merged.TeacherID = mergeRef(merged.TeacherID, fields, "teacher_id")
	merged.ClassroomID = mergeRef(merged.ClassroomID, fields, "classroom_id")
	if patch.StartDate != nil {
		merged.StartDate = patch.StartDate.Ptr()
	}
	if patch.EndDate != nil {
		merged.EndDate = patch.EndDate.Ptr()
	}
	classroomRef := ""
	if ref.Classroom != nil {
		classroomRef = *ref.Classroom
	}
	if err := services.NewClassService(database.DB).ResolveReferences(ctx, &merged, classroomRef); err != nil {
		return respondError(c, "update class", err)
	}
	if classroomRef != "" {
		fields["classroom_id"] = merged.ClassroomID
	}

	class, err := repo.Update(ctx, sc, id, fields)
	if err != nil {
		return respondError(c, "update class", err)
	}

	middleware.LogActivity(c, "UPDATE", "classes", class.ID, fields)
	return c.JSON(fiber.Map{
		"message": "Class updated successfully",
		"class":   class,
	})
}

// mergeRef applies a nullable reference column from an update map.
func mergeRef(current *string, fields map[string]interface{}, col string) *string {
	v, ok := fields[col]
	if !ok {
		return current
	}
	s, ok := v.(string)
	if !ok {
		return nil
	}
	return &s
}

// DeleteClass answers 409 while students still reference the class.
func (cc *ClassController) DeleteClass(c *fiber.Ctx) error {
	sc, err := scope(c)
	if err != nil {
		return respondError(c, "delete class", err)
	}
	id := c.Params("id")
	if err := services.NewClassService(database.DB).Delete(c.UserContext(), sc, id); err != nil {
		return respondError(c, "delete class", err)
	}

	middleware.LogActivity(c, "DELETE", "classes", id, nil)
	return c.JSON(fiber.Map{"message": "Class deleted successfully"})
}

// GetRoster lists the students of a class.
func (cc *ClassController) GetRoster(c *fiber.Ctx) error {
	sc, err := scope(c)
	if err != nil {
		return respondError(c, "get roster", err)
	}
	students, err := services.NewClassService(database.DB).Roster(c.UserContext(), sc, c.Params("id"))
	if err != nil {
		return respondError(c, "get roster", err)
	}
	return c.JSON(fiber.Map{
		"students": students,
		"total":    len(students),
	})
}
