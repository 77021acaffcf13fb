package database

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		kind   ErrorKind
		status int
	}{
		{"pg unique", &pgconn.PgError{Code: "23505"}, KindUniqueViolation, http.StatusConflict},
		{"pg fk", &pgconn.PgError{Code: "23503"}, KindForeignKeyViolation, http.StatusBadRequest},
		{"pg exclusion", &pgconn.PgError{Code: "23P01"}, KindExclusionViolation, http.StatusConflict},
		{"pg undefined column", &pgconn.PgError{Code: "42703"}, KindUndefinedColumn, http.StatusInternalServerError},
		{"pg bad uuid", &pgconn.PgError{Code: "22P02"}, KindInvalidInput, http.StatusBadRequest},
		{"wrapped pg", fmt.Errorf("save: %w", &pgconn.PgError{Code: "23505"}), KindUniqueViolation, http.StatusConflict},
		{"mysql duplicate", &mysql.MySQLError{Number: 1062}, KindUniqueViolation, http.StatusConflict},
		{"mysql unknown column", &mysql.MySQLError{Number: 1054}, KindUndefinedColumn, http.StatusInternalServerError},
		{"gorm duplicated", gorm.ErrDuplicatedKey, KindUniqueViolation, http.StatusConflict},
		{"sqlite unique", errors.New("UNIQUE constraint failed: academies.code"), KindUniqueViolation, http.StatusConflict},
		{"not found", gorm.ErrRecordNotFound, KindUnknown, http.StatusNotFound},
		{"other", errors.New("boom"), KindUnknown, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.kind, Classify(tc.err))
			assert.Equal(t, tc.status, HTTPStatus(tc.err))
		})
	}
}

func TestErrorFieldsCarriesPostgresDiagnostics(t *testing.T) {
	err := fmt.Errorf("insert: %w", &pgconn.PgError{
		Code:    "42703",
		Message: `column "check_in_time" does not exist`,
		Detail:  "detail text",
		Hint:    "Perhaps you meant to reference another column.",
	})
	f := ErrorFields(err)
	assert.Equal(t, "42703", f["code"])
	assert.Equal(t, `column "check_in_time" does not exist`, f["message"])
	assert.Equal(t, "detail text", f["details"])
	assert.Equal(t, "Perhaps you meant to reference another column.", f["hint"])
	assert.True(t, IsUndefinedColumn(err))
}

func TestServerConfigKeepsPostgresErrors(t *testing.T) {
	cfg := GormConfig(logger.Discard)
	cfg.DisableAutomaticPing = true
	db, err := gorm.Open(postgres.New(postgres.Config{
		DSN: "host=127.0.0.1 port=1 user=academyhub dbname=academyhub sslmode=disable",
	}), cfg)
	require.NoError(t, err)

	cases := []struct {
		code   string
		kind   ErrorKind
		status int
	}{
		{"42703", KindUndefinedColumn, http.StatusInternalServerError},
		{"23514", KindCheckViolation, http.StatusBadRequest},
		{"23505", KindUniqueViolation, http.StatusConflict},
		{"23503", KindForeignKeyViolation, http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.code, func(t *testing.T) {
			tx := db.Session(&gorm.Session{NewDB: true})
			tx.AddError(&pgconn.PgError{Code: tc.code, Message: "m", Detail: "d", Hint: "h"})
			assert.Equal(t, tc.kind, Classify(tx.Error))
			assert.Equal(t, tc.status, HTTPStatus(tx.Error))
			f := ErrorFields(tx.Error)
			assert.Equal(t, tc.code, f["code"])
			assert.Equal(t, "d", f["details"])
			assert.Equal(t, "h", f["hint"])
		})
	}
}

func TestClassifyTranslatedErrors(t *testing.T) {
	for code, kind := range map[string]ErrorKind{
		"42703": KindUndefinedColumn,
		"23514": KindCheckViolation,
		"23505": KindUniqueViolation,
		"23503": KindForeignKeyViolation,
	} {
		translated := postgres.Dialector{}.Translate(&pgconn.PgError{Code: code})
		assert.Equal(t, kind, Classify(translated), code)
	}
}
