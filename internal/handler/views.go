package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/sahityolsav/stage-tracker/internal/repository"
)

// ViewHandler serves the read-only schedule projections consumed by the
// stage and unit frontends.
type ViewHandler struct {
	Placements *repository.PlacementRepo
	Stages     *repository.StageRepo
}

func NewViewHandler(pl *repository.PlacementRepo, st *repository.StageRepo) *ViewHandler {
	return &ViewHandler{Placements: pl, Stages: st}
}

// StageDaySchedule lists a stage's placements for one date ordered by start
// time. Used by stage operators to run their day.
func (h *ViewHandler) StageDaySchedule(c echo.Context) error {
	date := c.QueryParam("date")
	if !repository.ValidDate(date) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "date query must be YYYY-MM-DD"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	st, err := h.Stages.GetByID(ctx, c.Param("stage_id"))
	if err != nil {
		return repoError(c, err, "load stage failed")
	}
	list, err := h.Placements.ListByStageDate(ctx, st.ID, date)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load schedule failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"scheduled_competitions": list})
}

// UnitStageViews summarizes every stage of the unit's sector for one date:
// the ongoing and reporting placements with the unit's own presence flags.
func (h *ViewHandler) UnitStageViews(c echo.Context) error {
	date := c.QueryParam("date")
	if !repository.ValidDate(date) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "date query must be YYYY-MM-DD"})
	}
	unitID := contextString(c, "unit_id")
	if unitID == "" {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "unit account required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	views, err := h.Placements.StageViews(ctx, contextString(c, "sector_id"), unitID, date)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load stage views failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"stages": views})
}

// UnitStageSchedule lists every placement of one stage with the unit's
// presence flags, ordered so the placements demanding attention come first.
func (h *ViewHandler) UnitStageSchedule(c echo.Context) error {
	unitID := contextString(c, "unit_id")
	if unitID == "" {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "unit account required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	st, err := h.Stages.GetByID(ctx, c.Param("stage_id"))
	if err != nil {
		return repoError(c, err, "load stage failed")
	}
	if st.SectorID != contextString(c, "sector_id") {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "stage belongs to another sector"})
	}
	list, err := h.Placements.UnitStageSchedule(ctx, st.ID, st.SectorID, unitID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load schedule failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"stage": echo.Map{"id": st.ID, "name": st.Name}, "scheduled_competitions": list})
}
