package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/sahityolsav/stage-tracker/internal/repository"
)

// AttendanceHandler implements presence updates on the attendance ledger.
type AttendanceHandler struct {
	Attendance *repository.AttendanceRepo
}

func NewAttendanceHandler(at *repository.AttendanceRepo) *AttendanceHandler {
	return &AttendanceHandler{Attendance: at}
}

type presenceReq struct {
	FirstPresent  *bool `json:"participant_1_present"`
	SecondPresent *bool `json:"participant_2_present"`
}

// SetPresence partially updates one attendance row. Omitted flags are left
// unchanged. Unit accounts may only touch their own rows.
func (h *AttendanceHandler) SetPresence(c echo.Context) error {
	var req presenceReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.FirstPresent == nil && req.SecondPresent == nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "at least one presence flag required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	id := c.Param("id")
	existing, err := h.Attendance.Get(ctx, id)
	if err != nil {
		return repoError(c, err, "load attendance failed")
	}
	if contextString(c, "role") == repository.RoleUnit &&
		existing.Unit.ID != contextString(c, "unit_id") {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "attendance belongs to another unit"})
	}

	d, err := h.Attendance.SetPresence(ctx, id, req.FirstPresent, req.SecondPresent)
	if err != nil {
		return repoError(c, err, "update attendance failed")
	}
	return c.JSON(http.StatusOK, d)
}
