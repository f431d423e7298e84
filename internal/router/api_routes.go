package router // router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"

	"github.com/sahityolsav/stage-tracker/internal/handler"
	"github.com/sahityolsav/stage-tracker/internal/middleware"
)

// APIHandlers bundles the handlers wired onto the protected /v1 surface.
type APIHandlers struct {
	Auth       *handler.AuthHandler
	Admin      *handler.AdminHandler
	Directory  *handler.DirectoryHandler
	Schedule   *handler.ScheduleHandler
	Attendance *handler.AttendanceHandler
	Views      *handler.ViewHandler
}

// RegisterAPI registers all authenticated endpoints under /v1. Every route
// requires a valid access token; role middleware narrows the admin-only and
// unit-only surfaces. cacheMW, when non-nil, is applied to the read-heavy
// schedule views.
func RegisterAPI(e *echo.Echo, h APIHandlers, jwtSecret string, cacheMW echo.MiddlewareFunc) {
	if cacheMW == nil {
		cacheMW = func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}

	g := e.Group(
		"/v1",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(
			"admin",
			"stage",
			"unit",
		),
	)

	g.GET("/me", h.Auth.Me)

	// ---- Directory (all roles) ----
	g.GET("/stages", h.Directory.ListStages)
	g.GET("/units", h.Directory.ListUnits)
	g.GET("/categories", h.Directory.ListCategories)
	g.GET("/categories/:id/competitions", h.Directory.ListCompetitions)

	// ---- Schedule reads ----
	g.GET("/schedule/:id", h.Schedule.Detail)
	g.GET("/stages/:stage_id/schedule", h.Views.StageDaySchedule, cacheMW)

	// ---- Unit projections ----
	g.GET("/units/stages", h.Views.UnitStageViews, middleware.RequireRole("unit"), cacheMW)
	g.GET("/units/stages/:stage_id/schedule", h.Views.UnitStageSchedule, middleware.RequireRole("unit"))

	// ---- Attendance (stage accounts mark presence at the venue, units can
	// only touch their own rows; the handler enforces the ownership) ----
	g.PATCH("/attendance/:id", h.Attendance.SetPresence)

	// ---- Status lifecycle (stage operators and admins) ----
	g.PATCH("/schedule/:id/status", h.Schedule.UpdateStatus, middleware.RequireRole("admin", "stage"))

	// ---- Admin-only surface ----
	adm := e.Group(
		"/v1/admin",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole("admin"),
	)
	adm.POST("/stages", h.Admin.CreateStage)
	adm.PATCH("/stages/:id", h.Admin.EditStage)
	adm.POST("/units", h.Admin.CreateUnit)
	adm.PATCH("/units/:id", h.Admin.EditUnit)
	adm.GET("/dashboard", h.Admin.Dashboard)
	adm.GET("/categories/:id/unscheduled", h.Directory.UnscheduledCompetitions)
	adm.POST("/stages/:stage_id/schedule", h.Schedule.Create)
	adm.PATCH("/schedule/:id/times", h.Schedule.UpdateTimes)
	adm.DELETE("/schedule/:id", h.Schedule.Delete)
	adm.POST("/sectors/:id/reset", h.Admin.ResetSector)
}
