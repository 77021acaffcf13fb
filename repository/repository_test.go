package repository_test

import (
	"context"
	"testing"

	"academyhub/database/dbtest"
	"academyhub/models"
	"academyhub/repository"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRepositoryCRUD(t *testing.T) {
	db := dbtest.New(t)
	ctx := context.Background()
	repo := repository.Classrooms(db)

	room := &models.Classroom{AcademyID: "acad-a", Name: "Room 101", Capacity: 12}
	require.NoError(t, repo.Save(ctx, room))
	require.NotEmpty(t, room.ID)
	_, err := uuid.Parse(room.ID)
	require.NoError(t, err)

	got, err := repo.FindByID(ctx, "acad-a", room.ID)
	require.NoError(t, err)
	assert.Equal(t, "Room 101", got.Name)
	assert.Equal(t, "available", got.Status)

	_, err = repo.FindByID(ctx, "acad-b", room.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound, "other tenants must not see the row")

	_, err = repo.FindByID(ctx, "acad-a", "not-a-uuid")
	assert.ErrorIs(t, err, repository.ErrNotFound)

	updated, err := repo.Update(ctx, "acad-a", room.ID, map[string]interface{}{
		"capacity":   20,
		"academy_id": "acad-b", // not updatable, ignored
	})
	require.NoError(t, err)
	assert.Equal(t, 20, updated.Capacity)
	assert.Equal(t, "acad-a", updated.AcademyID)

	_, err = repo.Update(ctx, "acad-a", room.ID, map[string]interface{}{"academy_id": "x"})
	assert.ErrorIs(t, err, repository.ErrNoFields)

	assert.ErrorIs(t, repo.Delete(ctx, "acad-b", room.ID), repository.ErrNotFound)
	require.NoError(t, repo.Delete(ctx, "acad-a", room.ID))
	assert.ErrorIs(t, repo.Delete(ctx, "acad-a", room.ID), repository.ErrNotFound)
}

func TestFindAllFiltersSearchAndPaging(t *testing.T) {
	db := dbtest.New(t)
	ctx := context.Background()
	repo := repository.Students(db)

	names := []string{"Alice", "Bob", "Carol", "Dave", "Eve"}
	for i, n := range names {
		status := "active"
		if i%2 == 1 {
			status = "inactive"
		}
		require.NoError(t, repo.Save(ctx, &models.Student{AcademyID: "acad", FirstName: n, Status: status}))
	}
	require.NoError(t, repo.Save(ctx, &models.Student{AcademyID: "other", FirstName: "Mallory"}))

	all, total, err := repo.FindAll(ctx, "acad", repository.ListOptions{})
	require.NoError(t, err)
	assert.EqualValues(t, 5, total)
	assert.Len(t, all, 5)
	assert.Equal(t, "Alice", all[0].FirstName)

	active, total, err := repo.FindAll(ctx, "acad", repository.ListOptions{
		Filters: map[string]interface{}{"status": "active", "bogus_column": 1},
	})
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	assert.Len(t, active, 3)

	found, _, err := repo.FindAll(ctx, "acad", repository.ListOptions{Search: "CAR"})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "Carol", found[0].FirstName)

	page, total, err := repo.FindAll(ctx, "acad", repository.ListOptions{Page: 2, Limit: 2, Sort: "-first_name"})
	require.NoError(t, err)
	assert.EqualValues(t, 5, total)
	require.Len(t, page, 2)
	assert.Equal(t, "Carol", page[0].FirstName)
	assert.Equal(t, "Bob", page[1].FirstName)

	everyone, total, err := repo.FindAll(ctx, "", repository.ListOptions{})
	require.NoError(t, err)
	assert.EqualValues(t, 6, total)
	assert.Len(t, everyone, 6)
}

func TestAcademyCodeIsUnique(t *testing.T) {
	db := dbtest.New(t)
	ctx := context.Background()
	repo := repository.Academies(db)

	require.NoError(t, repo.Save(ctx, &models.Academy{Name: "One", Code: "ONE"}))
	err := repo.Save(ctx, &models.Academy{Name: "Other", Code: "ONE"})
	require.Error(t, err)
}
