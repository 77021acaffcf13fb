package controllers

import (
	"academyhub/database"
	"academyhub/middleware"
	"academyhub/models"
	"academyhub/repository"
	"academyhub/services"
	"academyhub/utils"
	"encoding/json"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"gorm.io/datatypes"
)

type ClassroomController struct{}

type classroomRequest struct {
	Name     string   `json:"name" validate:"required,max=100"`
	Capacity int      `json:"capacity" validate:"gte=0"`
	Location string   `json:"location" validate:"omitempty,max=255"`
	Features []string `json:"features"`
	Status   string   `json:"status" validate:"omitempty,oneof=available maintenance inactive"`
}

type classroomPatch struct {
	Name     *string   `json:"name" validate:"omitempty,min=1,max=100"`
	Capacity *int      `json:"capacity" validate:"omitempty,gte=0"`
	Location *string   `json:"location" validate:"omitempty,max=255"`
	Features *[]string `json:"features"`
	Status   *string   `json:"status" validate:"omitempty,oneof=available maintenance inactive"`
}

type findOrCreateRequest struct {
	Identifier string `json:"identifier" validate:"required,max=100"`
}

func featuresJSON(features []string) datatypes.JSON {
	if features == nil {
		features = []string{}
	}
	b, _ := json.Marshal(features)
	return datatypes.JSON(b)
}

func (rc *ClassroomController) GetClassrooms(c *fiber.Ctx) error {
	sc, err := scope(c)
	if err != nil {
		return respondError(c, "list classrooms", err)
	}
	opts, p := listOptions(c, "status")
	items, total, err := repository.Classrooms(database.DB).FindAll(c.UserContext(), sc, opts)
	if err != nil {
		return respondError(c, "list classrooms", err)
	}
	return listResponse(c, "classrooms", items, total, p)
}

func (rc *ClassroomController) GetClassroom(c *fiber.Ctx) error {
	sc, err := scope(c)
	if err != nil {
		return respondError(c, "get classroom", err)
	}
	room, err := repository.Classrooms(database.DB).FindByID(c.UserContext(), sc, c.Params("id"))
	if err != nil {
		return respondError(c, "get classroom", err)
	}
	return c.JSON(fiber.Map{"classroom": room})
}

func (rc *ClassroomController) CreateClassroom(c *fiber.Ctx) error {
	academyID, err := middleware.RequireAcademy(c)
	if err != nil {
		return respondError(c, "create classroom", err)
	}
	var req classroomRequest
	if ok, err := parseBody(c, &req); !ok {
		return err
	}

	svc := services.NewClassroomService(database.DB)
	name := utils.SanitizeString(req.Name)
	taken, err := svc.NameTaken(c.UserContext(), academyID, name, "")
	if err != nil {
		return respondError(c, "create classroom", err)
	}
	if taken {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": fmt.Sprintf("Classroom %q already exists", name),
		})
	}

	room := models.Classroom{
		AcademyID: academyID,
		Name:      name,
		Capacity:  req.Capacity,
		Location:  req.Location,
		Features:  featuresJSON(req.Features),
		Status:    req.Status,
	}
	if room.Status == "" {
		room.Status = "available"
	}
	if err := repository.Classrooms(database.DB).Save(c.UserContext(), &room); err != nil {
		return respondError(c, "create classroom", err)
	}

	middleware.LogActivity(c, "CREATE", "classrooms", room.ID, room)
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message":   "Classroom created successfully",
		"classroom": room,
	})
}

// FindOrCreateClassroom resolves a classroom id or name, creating the room if needed.
func (rc *ClassroomController) FindOrCreateClassroom(c *fiber.Ctx) error {
	academyID, err := middleware.RequireAcademy(c)
	if err != nil {
		return respondError(c, "find or create classroom", err)
	}
	var req findOrCreateRequest
	if ok, err := parseBody(c, &req); !ok {
		return err
	}

	room, created, err := services.NewClassroomService(database.DB).FindOrCreate(c.UserContext(), academyID, req.Identifier)
	if err != nil {
		return respondError(c, "find or create classroom", err)
	}
	status := fiber.StatusOK
	if created {
		status = fiber.StatusCreated
		middleware.LogActivity(c, "CREATE", "classrooms", room.ID, room)
	}
	return c.Status(status).JSON(fiber.Map{
		"classroom": room,
		"created":   created,
	})
}

func (rc *ClassroomController) UpdateClassroom(c *fiber.Ctx) error {
	sc, err := scope(c)
	if err != nil {
		return respondError(c, "update classroom", err)
	}
	var patch classroomPatch
	if ok, err := parseBody(c, &patch); !ok {
		return err
	}
	id := c.Params("id")
	ctx := c.UserContext()
	repo := repository.Classrooms(database.DB)
	current, err := repo.FindByID(ctx, sc, id)
	if err != nil {
		return respondError(c, "update classroom", err)
	}

	fields := utils.UpdateMap(&patch)
	if patch.Features != nil {
		fields["features"] = featuresJSON(*patch.Features)
	}
	if patch.Name != nil {
		name := utils.SanitizeString(*patch.Name)
		taken, err := services.NewClassroomService(database.DB).NameTaken(ctx, current.AcademyID, name, id)
		if err != nil {
			return respondError(c, "update classroom", err)
		}
		if taken {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"error": fmt.Sprintf("Classroom %q already exists", name),
			})
		}
		fields["name"] = name
	}

	room, err := repo.Update(ctx, sc, id, fields)
	if err != nil {
		return respondError(c, "update classroom", err)
	}

	middleware.LogActivity(c, "UPDATE", "classrooms", room.ID, patch)
	return c.JSON(fiber.Map{
		"message":   "Classroom updated successfully",
		"classroom": room,
	})
}

func (rc *ClassroomController) DeleteClassroom(c *fiber.Ctx) error {
	sc, err := scope(c)
	if err != nil {
		return respondError(c, "delete classroom", err)
	}
	id := c.Params("id")
	if err := services.NewClassroomService(database.DB).Delete(c.UserContext(), sc, id); err != nil {
		return respondError(c, "delete classroom", err)
	}

	middleware.LogActivity(c, "DELETE", "classrooms", id, nil)
	return c.JSON(fiber.Map{"message": "Classroom deleted successfully"})
}
