package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/sahityolsav/stage-tracker/internal/queue"
	"github.com/sahityolsav/stage-tracker/internal/repository"
	queue_publisher "github.com/sahityolsav/stage-tracker/internal/service"
)

// ScheduleHandler implements placement lifecycle endpoints: create, detail,
// time changes, status transitions and delete.
type ScheduleHandler struct {
	Placements   *repository.PlacementRepo
	Attendance   *repository.AttendanceRepo
	Stages       *repository.StageRepo
	Competitions *repository.CompetitionRepo
}

func NewScheduleHandler(pl *repository.PlacementRepo, at *repository.AttendanceRepo,
	st *repository.StageRepo, comp *repository.CompetitionRepo) *ScheduleHandler {
	return &ScheduleHandler{Placements: pl, Attendance: at, Stages: st, Competitions: comp}
}

type scheduleReq struct {
	CompetitionID string `json:"competition_id"`
	Date          string `json:"date"`           // "2006-01-02"
	ReportingTime string `json:"reporting_time"` // RFC3339
	StartTime     string `json:"start_time"`
	EndTime       string `json:"end_time"`
}

type timesReq struct {
	ReportingTime string `json:"reporting_time"`
	StartTime     string `json:"start_time"`
	EndTime       string `json:"end_time"`
}

type statusReq struct {
	Status string `json:"status"`
}

// parseInstant turns an RFC3339 client timestamp into the DB format.
func parseInstant(s string) (string, bool) {
	t, err := time.Parse(time.RFC3339, strings.TrimSpace(s))
	if err != nil {
		return "", false
	}
	return repository.FormatInstant(t), true
}

// Create schedules a competition on a stage: validates input, rejects
// duplicates and overlapping windows, and materializes the attendance rows,
// all inside the repository transaction.
func (h *ScheduleHandler) Create(c echo.Context) error {
	var req scheduleReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.CompetitionID == "" || req.Date == "" ||
		req.ReportingTime == "" || req.StartTime == "" || req.EndTime == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "competition_id/date/reporting_time/start_time/end_time required"})
	}
	if !repository.ValidDate(req.Date) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "date must be YYYY-MM-DD"})
	}
	reporting, ok := parseInstant(req.ReportingTime)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "reporting_time must be RFC3339"})
	}
	start, ok := parseInstant(req.StartTime)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "start_time must be RFC3339"})
	}
	end, ok := parseInstant(req.EndTime)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "end_time must be RFC3339"})
	}
	if start >= end {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "start_time must be before end_time"})
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
	comp, err := h.Competitions.GetByID(ctx, req.CompetitionID)
	if err != nil {
		return repoError(c, err, "load competition failed")
	}

	p := repository.Placement{
		CompetitionID: comp.ID,
		StageID:       st.ID,
		SectorID:      st.SectorID,
		Date:          req.Date,
		ReportingTime: reporting,
		StartTime:     start,
		EndTime:       end,
	}
	if err := h.Placements.Schedule(ctx, &p); err != nil {
		return repoError(c, err, "schedule failed")
	}

	_ = queue_publisher.PublishScheduleChanged(ctx, queue.ScheduleChangedEvent{
		Action:          queue.ActionCreated,
		PlacementID:     p.ID,
		SectorID:        st.SectorID,
		StageID:         st.ID,
		StageName:       st.Name,
		CompetitionID:   comp.ID,
		CompetitionName: comp.Name,
		Status:          p.Status,
		Date:            p.Date,
		StartTime:       p.StartTime,
		EndTime:         p.EndTime,
		ChangedAt:       time.Now().UTC().Format(time.RFC3339),
	})
	return c.JSON(http.StatusCreated, echo.Map{"id": p.ID, "status": p.Status})
}

// Detail returns a placement with its participant attendance list. A
// placement whose attendance was purged (or predates a unit import) gets its
// rows backfilled here before the read.
func (h *ScheduleHandler) Detail(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	id := c.Param("id")
	if err := h.Attendance.EnsurePopulated(ctx, id); err != nil {
		return repoError(c, err, "populate attendance failed")
	}
	info, err := h.Placements.GetDetail(ctx, id)
	if err != nil {
		return repoError(c, err, "load placement failed")
	}
	participants, err := h.Attendance.ListByPlacement(ctx, id)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load attendance failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"scheduled_competition_details": echo.Map{
			"id":             info.ID,
			"competition":    info.Competition,
			"sector":         info.Sector,
			"date":           info.Date,
			"reporting_time": info.ReportingTime,
			"start_time":     info.StartTime,
			"end_time":       info.EndTime,
			"status":         info.Status,
			"participants":   participants,
		},
	})
}

// UpdateTimes replaces the three instants of a placement after re-checking
// for overlaps.
func (h *ScheduleHandler) UpdateTimes(c echo.Context) error {
	var req timesReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.ReportingTime == "" || req.StartTime == "" || req.EndTime == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "reporting_time/start_time/end_time required"})
	}
	reporting, ok := parseInstant(req.ReportingTime)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "reporting_time must be RFC3339"})
	}
	start, ok := parseInstant(req.StartTime)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "start_time must be RFC3339"})
	}
	end, ok := parseInstant(req.EndTime)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "end_time must be RFC3339"})
	}
	if start >= end {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "start_time must be before end_time"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	id := c.Param("id")
	if err := h.Placements.UpdateTimes(ctx, id, reporting, start, end); err != nil {
		return repoError(c, err, "update times failed")
	}
	info, err := h.Placements.GetDetail(ctx, id)
	if err != nil {
		return repoError(c, err, "load placement failed")
	}
	h.publishFor(ctx, queue.ActionTimes, info)
	return c.JSON(http.StatusOK, info)
}

// UpdateStatus moves a placement through the status lifecycle. Entering
// ongoing or reporting is rejected with a 409 when a sibling on the same
// stage and date already holds that status.
func (h *ScheduleHandler) UpdateStatus(c echo.Context) error {
	var req statusReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	status := strings.TrimSpace(req.Status)
	if !repository.ValidStatus(status) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "status must be one of not_started, reporting, ongoing, finished"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	id := c.Param("id")
	if err := h.Placements.TransitionStatus(ctx, id, status); err != nil {
		return repoError(c, err, "update status failed")
	}
	if info, err := h.Placements.GetDetail(ctx, id); err == nil {
		h.publishFor(ctx, queue.ActionStatus, info)
	}
	return c.JSON(http.StatusOK, echo.Map{"id": id, "status": status})
}

// Delete removes a placement and its attendance rows.
func (h *ScheduleHandler) Delete(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	id := c.Param("id")
	info, err := h.Placements.GetDetail(ctx, id)
	if err != nil {
		return repoError(c, err, "load placement failed")
	}
	if err := h.Placements.Delete(ctx, id); err != nil {
		return repoError(c, err, "delete failed")
	}
	h.publishFor(ctx, queue.ActionDeleted, info)
	return c.NoContent(http.StatusNoContent)
}

// publishFor emits a schedule.changed event for a placement projection.
// Publishing is best effort and never fails the request.
func (h *ScheduleHandler) publishFor(ctx context.Context, action string, info *repository.PlacementInfo) {
	_ = queue_publisher.PublishScheduleChanged(ctx, queue.ScheduleChangedEvent{
		Action:          action,
		PlacementID:     info.ID,
		SectorID:        info.Sector.ID,
		SectorName:      info.Sector.Name,
		CompetitionID:   info.Competition.ID,
		CompetitionName: info.Competition.Name,
		Status:          info.Status,
		Date:            info.Date,
		StartTime:       info.StartTime,
		EndTime:         info.EndTime,
		ChangedAt:       time.Now().UTC().Format(time.RFC3339),
	})
}
