package database

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// ErrorKind classifies driver errors independently of the SQL dialect.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindUniqueViolation
	KindForeignKeyViolation
	KindNotNullViolation
	KindCheckViolation
	KindExclusionViolation
	KindUndefinedColumn
	KindInvalidInput
)

// Postgres SQLSTATE codes
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	pgNotNullViolation    = "23502"
	pgCheckViolation      = "23514"
	pgExclusionViolation  = "23P01"
	pgUndefinedColumn     = "42703"
	pgInvalidText         = "22P02"
)

// MySQL error numbers
const (
	myDuplicateEntry    = 1062
	myRowIsReferenced   = 1451
	myNoReferencedRow   = 1452
	myBadNull           = 1048
	myUnknownColumn     = 1054
	myCheckConstraint   = 3819
	myTruncatedWrongVal = 1292
)

// Classify maps an error returned by GORM to an ErrorKind.
func Classify(err error) ErrorKind {
	if err == nil {
		return KindUnknown
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			return KindUniqueViolation
		case pgForeignKeyViolation:
			return KindForeignKeyViolation
		case pgNotNullViolation:
			return KindNotNullViolation
		case pgCheckViolation:
			return KindCheckViolation
		case pgExclusionViolation:
			return KindExclusionViolation
		case pgUndefinedColumn:
			return KindUndefinedColumn
		case pgInvalidText:
			return KindInvalidInput
		}
		return KindUnknown
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		switch myErr.Number {
		case myDuplicateEntry:
			return KindUniqueViolation
		case myRowIsReferenced, myNoReferencedRow:
			return KindForeignKeyViolation
		case myBadNull:
			return KindNotNullViolation
		case myCheckConstraint:
			return KindCheckViolation
		case myUnknownColumn:
			return KindUndefinedColumn
		case myTruncatedWrongVal:
			return KindInvalidInput
		}
		return KindUnknown
	}

	switch {
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return KindUniqueViolation
	case errors.Is(err, gorm.ErrForeignKeyViolated):
		return KindForeignKeyViolation
	case errors.Is(err, gorm.ErrCheckConstraintViolated):
		return KindCheckViolation
	case errors.Is(err, gorm.ErrInvalidField):
		return KindUndefinedColumn
	}

	// sqlite (tests, local tooling) only exposes messages
	msg := err.Error()
	switch {
	case strings.Contains(msg, "UNIQUE constraint failed"):
		return KindUniqueViolation
	case strings.Contains(msg, "FOREIGN KEY constraint failed"):
		return KindForeignKeyViolation
	case strings.Contains(msg, "NOT NULL constraint failed"):
		return KindNotNullViolation
	case strings.Contains(msg, "no such column"), strings.Contains(msg, "has no column named"):
		return KindUndefinedColumn
	}
	return KindUnknown
}

func IsUniqueViolation(err error) bool { return Classify(err) == KindUniqueViolation }

func IsForeignKeyViolation(err error) bool { return Classify(err) == KindForeignKeyViolation }

func IsUndefinedColumn(err error) bool { return Classify(err) == KindUndefinedColumn }

// HTTPStatus maps a database error to the status the API answers with.
func HTTPStatus(err error) int {
	switch Classify(err) {
	case KindUniqueViolation, KindExclusionViolation:
		return http.StatusConflict
	case KindForeignKeyViolation, KindNotNullViolation, KindCheckViolation, KindInvalidInput:
		return http.StatusBadRequest
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

// PublicMessage is the client-facing text for a classified error.
func PublicMessage(err error) string {
	switch Classify(err) {
	case KindUniqueViolation:
		return "Duplicate record"
	case KindExclusionViolation:
		return "Time range overlaps an existing record"
	case KindForeignKeyViolation:
		return "Referenced record does not exist or is still in use"
	case KindNotNullViolation:
		return "A required field is missing"
	case KindCheckViolation, KindInvalidInput:
		return "Invalid field value"
	}
	return "Database error"
}

// ErrorFields extracts driver diagnostics for structured logging.
func ErrorFields(err error) logrus.Fields {
	fields := logrus.Fields{"error": err}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		fields["code"] = pgErr.Code
		fields["message"] = pgErr.Message
		fields["details"] = pgErr.Detail
		fields["hint"] = pgErr.Hint
		if pgErr.TableName != "" {
			fields["table"] = pgErr.TableName
		}
		if pgErr.ConstraintName != "" {
			fields["constraint"] = pgErr.ConstraintName
		}
		return fields
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		fields["code"] = myErr.Number
		fields["message"] = myErr.Message
	}
	return fields
}

// LogError logs a database error with its driver diagnostics.
func LogError(op string, err error) {
	logrus.WithFields(ErrorFields(err)).WithField("op", op).Error("database error")
}
