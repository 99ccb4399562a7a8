// Package apperr defines the error kinds services return and the HTTP
// status each maps to.
package apperr

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/labstack/echo/v4"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidTransition = errors.New("invalid transition")
	ErrConflict          = errors.New("conflict")
	ErrValidation        = errors.New("validation failed")
	ErrForbidden         = errors.New("forbidden")
	ErrRepository        = errors.New("repository failure")
)

// Validation wraps a caller-facing message in ErrValidation.
func Validation(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func NotFound(what string, id interface{}) error {
	return fmt.Errorf("%s %v: %w", what, id, ErrNotFound)
}

func InvalidTransition(kind, from, to string) error {
	return fmt.Errorf("%s %s -> %s: %w", kind, from, to, ErrInvalidTransition)
}

// uniqueViolation is the Postgres SQLSTATE for a unique constraint clash.
const uniqueViolation = "23505"

// FromDB classifies a driver error. pgx.ErrNoRows becomes ErrNotFound, a
// unique violation becomes ErrConflict, anything else is wrapped with
// ErrRepository.
func FromDB(err error, what string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("%s: %w: %s", what, ErrConflict, pgErr.ConstraintName)
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrRepository) || errors.Is(err, ErrConflict) {
		return err
	}
	return fmt.Errorf("%s: %w: %v", what, ErrRepository, err)
}

func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidTransition), errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// ToHTTP converts a service error into an echo.HTTPError. Repository
// failures are reported without driver detail.
func ToHTTP(err error) error {
	status := HTTPStatus(err)
	if status == http.StatusInternalServerError {
		return echo.NewHTTPError(status, "internal error").SetInternal(err)
	}
	return echo.NewHTTPError(status, err.Error())
}
