package controllers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http/httptest"
	"testing"

	"academyhub/models"
	"academyhub/repository"
	"academyhub/services"
	"academyhub/storage"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func render(t *testing.T, err error) (int, map[string]interface{}) {
	t.Helper()
	app := fiber.New()
	app.Get("/", func(c *fiber.Ctx) error { return respondError(c, "load thing", err) })
	resp, terr := app.Test(httptest.NewRequest("GET", "/", nil))
	require.NoError(t, terr)
	raw, _ := io.ReadAll(resp.Body)
	body := map[string]interface{}{}
	require.NoError(t, json.Unmarshal(raw, &body), string(raw))
	return resp.StatusCode, body
}

func TestRespondError(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		msg    string
	}{
		{"not found", fmt.Errorf("load: %w", repository.ErrNotFound), 404, "Record not found"},
		{"no fields", repository.ErrNoFields, 400, "No updatable fields in request"},
		{"validation", fmt.Errorf("%w: name is required", services.ErrValidation), 400, "name is required"},
		{"dependents", fmt.Errorf("%w: class still has 3 students", services.ErrHasDependents), 409, "class still has 3 students"},
		{"duplicate", fmt.Errorf("%w: academy code KORAT is taken", services.ErrDuplicate), 409, "academy code KORAT is taken"},
		{"file", fmt.Errorf("%w: .exe", storage.ErrFileTypeRejected), 400, "file type not allowed: .exe"},
		{"fiber", fiber.NewError(fiber.StatusForbidden, "nope"), 403, "nope"},
		{"unique", &pgconn.PgError{Code: "23505"}, 409, "Duplicate record"},
		{"fk", &pgconn.PgError{Code: "23503"}, 400, "Referenced record does not exist or is still in use"},
		{"unknown", errors.New("connection reset"), 500, "Failed to load thing"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, body := render(t, tc.err)
			assert.Equal(t, tc.status, status)
			assert.Equal(t, tc.msg, body["error"])
		})
	}
}

func TestRespondErrorIncludesConflict(t *testing.T) {
	with := models.Schedule{DayOfWeek: 1, StartTime: "09:00", EndTime: "10:00"}
	with.ID = "sched-1"
	status, body := render(t, &services.ConflictError{With: with, Resource: "teacher"})
	assert.Equal(t, 409, status)
	require.Contains(t, body, "conflict")
	assert.Equal(t, "sched-1", body["conflict"].(map[string]interface{})["id"])
}
