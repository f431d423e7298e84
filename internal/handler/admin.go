package handler

import (
	"context"
	"database/sql"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/sahityolsav/stage-tracker/internal/config"
	"github.com/sahityolsav/stage-tracker/internal/queue"
	"github.com/sahityolsav/stage-tracker/internal/repository"
	queue_publisher "github.com/sahityolsav/stage-tracker/internal/service"
)

// AdminHandler implements the sector-admin endpoints: account management for
// stages and units, the dashboard, and the sector reset.
type AdminHandler struct {
	Cfg          config.Config
	DB           *sql.DB
	Users        *repository.UserRepo
	Stages       *repository.StageRepo
	Units        *repository.UnitRepo
	Sectors      *repository.SectorRepo
	Competitions *repository.CompetitionRepo
	Placements   *repository.PlacementRepo
}

func NewAdminHandler(cfg config.Config, db *sql.DB, u *repository.UserRepo,
	st *repository.StageRepo, un *repository.UnitRepo, sec *repository.SectorRepo,
	comp *repository.CompetitionRepo, pl *repository.PlacementRepo) *AdminHandler {
	return &AdminHandler{Cfg: cfg, DB: db, Users: u, Stages: st, Units: un,
		Sectors: sec, Competitions: comp, Placements: pl}
}

type accountReq struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type accountResp struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// CreateStage creates a stage and its operator account in one transaction.
func (h *AdminHandler) CreateStage(c echo.Context) error {
	return h.createAccount(c, repository.RoleStage)
}

// CreateUnit creates a unit and its login account in one transaction.
func (h *AdminHandler) CreateUnit(c echo.Context) error {
	return h.createAccount(c, repository.RoleUnit)
}

func (h *AdminHandler) createAccount(c echo.Context, role string) error {
	var req accountReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Name == "" || req.Email == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "name/email/password required"})
	}
	sectorID := contextString(c, "sector_id")

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if _, err := h.Sectors.GetByID(ctx, sectorID); err != nil {
		return repoError(c, err, "load sector failed")
	}

	tx, err := h.DB.BeginTx(ctx, nil)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "begin tx failed"})
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var userID string
	userID, err = h.Users.CreateTx(ctx, tx, req.Email, req.Password, role, h.Cfg.BcryptCost)
	if err != nil {
		return repoError(c, err, "create account failed")
	}

	var id string
	switch role {
	case repository.RoleStage:
		s := repository.Stage{Name: req.Name, SectorID: sectorID, UserID: userID}
		if err = h.Stages.CreateTx(ctx, tx, &s); err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create stage failed"})
		}
		id = s.ID
	case repository.RoleUnit:
		u := repository.Unit{Name: req.Name, SectorID: sectorID, UserID: userID}
		if err = h.Units.CreateTx(ctx, tx, &u); err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create unit failed"})
		}
		id = u.ID
	}
	if err = tx.Commit(); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "commit failed"})
	}
	return c.JSON(http.StatusCreated, accountResp{ID: id, Name: req.Name, Email: req.Email})
}

// EditStage updates a stage's name and/or its account email/password.
// Empty fields are left unchanged.
func (h *AdminHandler) EditStage(c echo.Context) error {
	var req accountReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	st, err := h.Stages.GetByID(ctx, c.Param("id"))
	if err != nil {
		return repoError(c, err, "load stage failed")
	}
	if st.SectorID != contextString(c, "sector_id") {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "stage belongs to another sector"})
	}
	err = h.editAccount(ctx, st.UserID, req, func(tx *sql.Tx) error {
		if strings.TrimSpace(req.Name) == "" {
			return nil
		}
		return h.Stages.RenameTx(ctx, tx, st.ID, strings.TrimSpace(req.Name))
	})
	if err != nil {
		return repoError(c, err, "update stage failed")
	}
	return c.JSON(http.StatusOK, echo.Map{"id": st.ID})
}

// EditUnit updates a unit's name and/or its account email/password.
func (h *AdminHandler) EditUnit(c echo.Context) error {
	var req accountReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	un, err := h.Units.GetByID(ctx, c.Param("id"))
	if err != nil {
		return repoError(c, err, "load unit failed")
	}
	if un.SectorID != contextString(c, "sector_id") {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "unit belongs to another sector"})
	}
	err = h.editAccount(ctx, un.UserID, req, func(tx *sql.Tx) error {
		if strings.TrimSpace(req.Name) == "" {
			return nil
		}
		return h.Units.RenameTx(ctx, tx, un.ID, strings.TrimSpace(req.Name))
	})
	if err != nil {
		return repoError(c, err, "update unit failed")
	}
	return c.JSON(http.StatusOK, echo.Map{"id": un.ID})
}

// editAccount runs the shared account-update transaction: user email and
// password via UserRepo, then the directory rename supplied by the caller.
func (h *AdminHandler) editAccount(ctx context.Context, userID string, req accountReq, rename func(*sql.Tx) error) (err error) {
	tx, err := h.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		} else {
			err = tx.Commit()
		}
	}()
	if err = h.Users.UpdateTx(ctx, tx, userID,
		strings.ToLower(strings.TrimSpace(req.Email)), req.Password, h.Cfg.BcryptCost); err != nil {
		return err
	}
	err = rename(tx)
	return err
}

// Dashboard returns the sector's scheduling counters.
func (h *AdminHandler) Dashboard(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	d, err := h.Competitions.Dashboard(ctx, contextString(c, "sector_id"))
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load dashboard failed"})
	}
	return c.JSON(http.StatusOK, d)
}

// ResetSector wipes every placement and attendance row of the admin's own
// sector. Admins cannot reset other sectors.
func (h *AdminHandler) ResetSector(c echo.Context) error {
	sectorID := c.Param("id")
	if sectorID != contextString(c, "sector_id") {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "cannot reset another sector"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	sec, err := h.Sectors.GetByID(ctx, sectorID)
	if err != nil {
		return repoError(c, err, "load sector failed")
	}
	if err := h.Placements.ResetSector(ctx, sectorID); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "reset failed"})
	}

	_ = queue_publisher.PublishScheduleChanged(ctx, queue.ScheduleChangedEvent{
		Action:     queue.ActionReset,
		SectorID:   sec.ID,
		SectorName: sec.Name,
		ChangedAt:  time.Now().UTC().Format(time.RFC3339),
	})
	return c.NoContent(http.StatusNoContent)
}
