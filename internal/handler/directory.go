package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/sahityolsav/stage-tracker/internal/repository"
)

// DirectoryHandler serves read-only listings of the reference data every
// role browses: stages and units of the caller's sector, categories and the
// competitions inside them.
type DirectoryHandler struct {
	Stages       *repository.StageRepo
	Units        *repository.UnitRepo
	Competitions *repository.CompetitionRepo
}

func NewDirectoryHandler(st *repository.StageRepo, un *repository.UnitRepo,
	comp *repository.CompetitionRepo) *DirectoryHandler {
	return &DirectoryHandler{Stages: st, Units: un, Competitions: comp}
}

// ListStages returns the stages of the caller's sector with operator emails.
func (h *DirectoryHandler) ListStages(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	stages, err := h.Stages.ListBySector(ctx, contextString(c, "sector_id"))
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "list stages failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"stages": stages})
}

// ListUnits returns the units of the caller's sector with account emails.
func (h *DirectoryHandler) ListUnits(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	units, err := h.Units.ListBySector(ctx, contextString(c, "sector_id"))
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "list units failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"units": units})
}

// ListCategories returns all competition categories.
func (h *DirectoryHandler) ListCategories(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	cats, err := h.Competitions.ListCategories(ctx)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "list categories failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"categories": cats})
}

// ListCompetitions returns the competitions of one category.
func (h *DirectoryHandler) ListCompetitions(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	comps, err := h.Competitions.ListByCategory(ctx, c.Param("id"))
	if err != nil {
		return repoError(c, err, "list competitions failed")
	}
	return c.JSON(http.StatusOK, echo.Map{"competitions": comps})
}

// UnscheduledCompetitions returns the competitions of a category that have
// not been placed in the caller's sector yet. Backs the scheduling picker.
func (h *DirectoryHandler) UnscheduledCompetitions(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	comps, err := h.Competitions.UnscheduledByCategory(ctx, c.Param("id"), contextString(c, "sector_id"))
	if err != nil {
		return repoError(c, err, "list competitions failed")
	}
	return c.JSON(http.StatusOK, echo.Map{"competitions": comps})
}
