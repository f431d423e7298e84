package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/sahityolsav/stage-tracker/internal/config"
	"github.com/sahityolsav/stage-tracker/internal/repository"
	"github.com/sahityolsav/stage-tracker/internal/utils"
)

// AuthHandler bundles dependencies for auth endpoints. The directory repos
// are needed because tokens carry sector/stage/unit claims resolved from the
// account's role at login time.
type AuthHandler struct {
	Cfg     config.Config
	Users   *repository.UserRepo
	Tokens  *repository.TokenRepo
	Sectors *repository.SectorRepo
	Stages  *repository.StageRepo
	Units   *repository.UnitRepo
}

func NewAuthHandler(cfg config.Config, u *repository.UserRepo, t *repository.TokenRepo,
	sec *repository.SectorRepo, st *repository.StageRepo, un *repository.UnitRepo) *AuthHandler {
	return &AuthHandler{Cfg: cfg, Users: u, Tokens: t, Sectors: sec, Stages: st, Units: un}
}

// ----- DTOs -----

type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}
type refreshReq struct {
	RefreshToken string `json:"refresh_token"`
}

type tokenPart struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
}
type userPart struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Role     string `json:"role"`
	SectorID string `json:"sector_id"`
	Stage    string `json:"stage,omitempty"`
	Unit     string `json:"unit,omitempty"`
}
type authResp struct {
	User    userPart  `json:"user"`
	Access  tokenPart `json:"access"`
	Refresh tokenPart `json:"refresh"`
}

// identityFor resolves the role-specific claims of a user: the sector every
// account belongs to, plus the stage or unit the account operates.
func (h *AuthHandler) identityFor(ctx context.Context, u repository.User) (utils.IdentityClaims, error) {
	id := utils.IdentityClaims{UserID: u.ID, Email: u.Email, Role: u.Role}
	switch u.Role {
	case repository.RoleAdmin:
		s, err := h.Sectors.GetByUser(ctx, u.ID)
		if err != nil {
			return id, err
		}
		id.SectorID = s.ID
	case repository.RoleStage:
		st, err := h.Stages.GetByUser(ctx, u.ID)
		if err != nil {
			return id, err
		}
		id.SectorID = st.SectorID
		id.StageID = st.ID
		id.StageName = st.Name
	case repository.RoleUnit:
		un, err := h.Units.GetByUser(ctx, u.ID)
		if err != nil {
			return id, err
		}
		id.SectorID = un.SectorID
		id.UnitID = un.ID
		id.UnitName = un.Name
	}
	return id, nil
}

// issuePair signs an access token for the identity and stores a fresh
// refresh token, returning the full auth response body.
func (h *AuthHandler) issuePair(ctx context.Context, id utils.IdentityClaims) (*authResp, error) {
	access, err := utils.NewAccessToken(h.Cfg.JWTSecret, id, h.Cfg.AccessTTLMin)
	if err != nil {
		return nil, err
	}
	refresh, err := utils.NewRefreshToken(h.Cfg.RefreshTTLDays)
	if err != nil {
		return nil, err
	}
	if err := h.Tokens.StoreRefresh(ctx, id.UserID, utils.HashRefreshRaw(refresh.Raw), refresh.Exp); err != nil {
		return nil, err
	}
	return &authResp{
		User: userPart{
			ID: id.UserID, Email: id.Email, Role: id.Role,
			SectorID: id.SectorID, Stage: id.StageName, Unit: id.UnitName,
		},
		Access:  tokenPart{Token: access.Token, Expires: access.Exp},
		Refresh: tokenPart{Token: refresh.Raw, Expires: refresh.Exp}, // raw back to client
	}, nil
}

// Login: verify credentials and return a token pair carrying the account's
// sector/stage/unit claims.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email/password required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	u, err := h.Users.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	if !utils.VerifyPassword(u.PasswordHash, req.Password) {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	}

	id, err := h.identityFor(ctx, u)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "resolve identity failed"})
	}
	resp, err := h.issuePair(ctx, id)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "issue tokens failed"})
	}
	return c.JSON(http.StatusOK, resp)
}

// Refresh: validate by hash, revoke old, issue a new pair.
func (h *AuthHandler) Refresh(c echo.Context) error {
	var req refreshReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.RefreshToken) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "refresh_token required"})
	}
	hash := utils.HashRefreshRaw(strings.TrimSpace(req.RefreshToken))

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	userID, err := h.Tokens.ValidateRefresh(ctx, hash)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid refresh"})
	}
	_ = h.Tokens.RevokeByHash(ctx, hash)

	u, err := h.Users.GetByID(ctx, userID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load user failed"})
	}
	id, err := h.identityFor(ctx, u)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "resolve identity failed"})
	}
	resp, err := h.issuePair(ctx, id)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "issue tokens failed"})
	}
	return c.JSON(http.StatusOK, resp)
}

// Logout: revoke the supplied refresh token. A 204 is returned even when the
// token was already revoked so logout is idempotent.
func (h *AuthHandler) Logout(c echo.Context) error {
	var req refreshReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.RefreshToken) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "refresh_token required"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := h.Tokens.RevokeByHash(ctx, utils.HashRefreshRaw(strings.TrimSpace(req.RefreshToken))); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "revoke failed"})
	}
	return c.NoContent(http.StatusNoContent)
}

// Me: return the authenticated account's identity (protected).
func (h *AuthHandler) Me(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	u, err := h.Users.GetByID(ctx, contextString(c, "user_id"))
	if err != nil {
		return repoError(c, err, "load user failed")
	}
	id, err := h.identityFor(ctx, u)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "resolve identity failed"})
	}
	return c.JSON(http.StatusOK, userPart{
		ID: id.UserID, Email: id.Email, Role: id.Role,
		SectorID: id.SectorID, Stage: id.StageName, Unit: id.UnitName,
	})
}
