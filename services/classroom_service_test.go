package services_test

import (
	"context"
	"testing"

	"academyhub/database/dbtest"
	"academyhub/models"
	"academyhub/repository"
	"academyhub/services"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindOrCreateClassroom(t *testing.T) {
	db := dbtest.New(t)
	ctx := context.Background()
	w := seedWorld(t, db, "KORAT")
	svc := services.NewClassroomService(db)

	t.Run("by id", func(t *testing.T) {
		room, created, err := svc.FindOrCreate(ctx, w.Academy.ID, w.Classroom.ID)
		require.NoError(t, err)
		assert.False(t, created)
		assert.Equal(t, w.Classroom.ID, room.ID)
	})

	t.Run("by name ignores case and spaces", func(t *testing.T) {
		room, created, err := svc.FindOrCreate(ctx, w.Academy.ID, "  room 101 ")
		require.NoError(t, err)
		assert.False(t, created)
		assert.Equal(t, w.Classroom.ID, room.ID)
	})

	t.Run("unknown name creates", func(t *testing.T) {
		room, created, err := svc.FindOrCreate(ctx, w.Academy.ID, "Lab 2")
		require.NoError(t, err)
		assert.True(t, created)
		assert.Equal(t, "Lab 2", room.Name)
		assert.Equal(t, "available", room.Status)
		assert.Equal(t, w.Academy.ID, room.AcademyID)

		again, created, err := svc.FindOrCreate(ctx, w.Academy.ID, "LAB 2")
		require.NoError(t, err)
		assert.False(t, created, "second lookup must reuse the new room")
		assert.Equal(t, room.ID, again.ID)
	})

	t.Run("unknown uuid is not found", func(t *testing.T) {
		_, _, err := svc.FindOrCreate(ctx, w.Academy.ID, uuid.NewString())
		assert.ErrorIs(t, err, repository.ErrNotFound)
	})

	t.Run("empty identifier", func(t *testing.T) {
		_, _, err := svc.FindOrCreate(ctx, w.Academy.ID, "   ")
		assert.ErrorIs(t, err, services.ErrValidation)
		_, _, err = svc.FindOrCreate(ctx, "", "Room 101")
		assert.ErrorIs(t, err, services.ErrValidation)
	})

	t.Run("other tenant's room is never adopted", func(t *testing.T) {
		other := seedWorld(t, db, "OTHER")
		_, _, err := svc.FindOrCreate(ctx, w.Academy.ID, other.Classroom.ID)
		assert.ErrorIs(t, err, repository.ErrNotFound)
	})

	t.Run("orphan room is adopted", func(t *testing.T) {
		orphan := models.Classroom{Name: "Legacy Hall", Status: "available"}
		require.NoError(t, db.Create(&orphan).Error)
		room, created, err := svc.FindOrCreate(ctx, w.Academy.ID, orphan.ID)
		require.NoError(t, err)
		assert.False(t, created)
		assert.Equal(t, orphan.ID, room.ID)
	})
}

func TestClassroomDeleteBlockedByClass(t *testing.T) {
	db := dbtest.New(t)
	ctx := context.Background()
	w := seedWorld(t, db, "KORAT")
	svc := services.NewClassroomService(db)

	err := svc.Delete(ctx, w.Academy.ID, w.Classroom.ID)
	assert.ErrorIs(t, err, services.ErrHasDependents)

	spare := models.Classroom{AcademyID: w.Academy.ID, Name: "Spare", Status: "available"}
	require.NoError(t, db.Create(&spare).Error)
	require.NoError(t, svc.Delete(ctx, w.Academy.ID, spare.ID))

	taken, err := svc.NameTaken(ctx, w.Academy.ID, "room 101", "")
	require.NoError(t, err)
	assert.True(t, taken)
	taken, err = svc.NameTaken(ctx, w.Academy.ID, "room 101", w.Classroom.ID)
	require.NoError(t, err)
	assert.False(t, taken)
}
