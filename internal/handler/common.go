package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/sahityolsav/stage-tracker/internal/repository"
)

// contextString reads a string the JWT middleware stored in the request
// context, returning "" when the key is absent.
func contextString(c echo.Context, key string) string {
	if v, ok := c.Get(key).(string); ok {
		return v
	}
	return ""
}

// repoError maps repository sentinel errors onto HTTP responses. Anything
// unrecognized becomes a 500 with the supplied message so internal details
// never leak to clients.
func repoError(c echo.Context, err error, msg string) error {
	switch {
	case errors.Is(err, repository.ErrPlacementNotFound),
		errors.Is(err, repository.ErrStageNotFound),
		errors.Is(err, repository.ErrUnitNotFound),
		errors.Is(err, repository.ErrSectorNotFound),
		errors.Is(err, repository.ErrCategoryNotFound),
		errors.Is(err, repository.ErrCompetitionNotFound),
		errors.Is(err, repository.ErrAttendanceNotFound),
		errors.Is(err, repository.ErrUserNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": err.Error()})
	case errors.Is(err, repository.ErrConflict),
		errors.Is(err, repository.ErrScheduleConflict),
		errors.Is(err, repository.ErrStatusConflict),
		errors.Is(err, repository.ErrEmailExists):
		return c.JSON(http.StatusConflict, echo.Map{"error": err.Error()})
	case errors.Is(err, repository.ErrForbidden):
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	default:
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": msg})
	}
}
