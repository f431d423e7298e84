package handler

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	_ "modernc.org/sqlite"

	"github.com/sahityolsav/stage-tracker/internal/database"
	"github.com/sahityolsav/stage-tracker/internal/repository"
)

// newTestEnv builds an in-memory database with one sector, one stage, two
// units and two competitions, plus the handlers under test.
func newTestEnv(t *testing.T) (*sql.DB, *ScheduleHandler, *AttendanceHandler) {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	// The in-memory database is scoped to a single connection.
	db.SetMaxOpenConns(1)
	if err := database.InitSchema(db); err != nil {
		t.Fatalf("init schema: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	stmts := []string{
		`INSERT INTO users (id, email, password_hash, role, created_at) VALUES
			('u-admin', 'admin@x', 'h', 'admin', '2025-01-01 00:00:00'),
			('u-s', 's@x', 'h', 'stage', '2025-01-01 00:00:00'),
			('u-1', 'u1@x', 'h', 'unit', '2025-01-01 00:00:00'),
			('u-2', 'u2@x', 'h', 'unit', '2025-01-01 00:00:00')`,
		`INSERT INTO sectors (id, name, user_id) VALUES ('sec-1', 'North', 'u-admin')`,
		`INSERT INTO stages (id, name, sector_id, user_id) VALUES ('stage-1', 'Main', 'sec-1', 'u-s')`,
		`INSERT INTO units (id, name, sector_id, user_id) VALUES
			('unit-1', 'Alpha', 'sec-1', 'u-1'),
			('unit-2', 'Beta', 'sec-1', 'u-2')`,
		`INSERT INTO categories (id, name) VALUES ('cat-1', 'Music')`,
		`INSERT INTO competitions (id, name, category_id) VALUES
			('comp-1', 'Solo Song', 'cat-1'),
			('comp-2', 'Group Song', 'cat-1')`,
	}
	for _, q := range stmts {
		if _, err := db.Exec(q); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	placements := repository.NewPlacementRepo(db)
	attendance := repository.NewAttendanceRepo(db)
	stages := repository.NewStageRepo(db)
	comps := repository.NewCompetitionRepo(db)

	return db, NewScheduleHandler(placements, attendance, stages, comps),
		NewAttendanceHandler(attendance)
}

// adminContext builds an Echo context carrying admin claims, the way the
// JWT middleware would.
func adminContext(t *testing.T, method, target, body string) (echo.Context, *httptest.ResponseRecorder) {
	t.Helper()
	e := echo.New()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.Set("user_id", "u-admin")
	c.Set("role", "admin")
	c.Set("sector_id", "sec-1")
	return c, rec
}

func createBody(comp string, startH, endH int) string {
	return fmt.Sprintf(`{"competition_id":%q,"date":"2025-01-10",
		"reporting_time":"2025-01-10T%02d:30:00Z",
		"start_time":"2025-01-10T%02d:00:00Z",
		"end_time":"2025-01-10T%02d:00:00Z"}`, comp, startH-1, startH, endH)
}

func TestScheduleCreateAndConflicts(t *testing.T) {
	_, sched, _ := newTestEnv(t)

	c, rec := adminContext(t, http.MethodPost, "/v1/admin/stages/stage-1/schedule", createBody("comp-1", 10, 11))
	c.SetParamNames("stage_id")
	c.SetParamValues("stage-1")
	if err := sched.Create(c); err != nil {
		t.Fatalf("create: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var created struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if created.ID == "" || created.Status != "not_started" {
		t.Fatalf("unexpected create response: %+v", created)
	}

	// Overlapping window -> 409.
	c, rec = adminContext(t, http.MethodPost, "/v1/admin/stages/stage-1/schedule", createBody("comp-2", 10, 12))
	c.SetParamNames("stage_id")
	c.SetParamValues("stage-1")
	if err := sched.Create(c); err != nil {
		t.Fatalf("create conflict: %v", err)
	}
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 for overlap, got %d: %s", rec.Code, rec.Body.String())
	}

	// Same competition again -> 409.
	c, rec = adminContext(t, http.MethodPost, "/v1/admin/stages/stage-1/schedule", createBody("comp-1", 14, 15))
	c.SetParamNames("stage_id")
	c.SetParamValues("stage-1")
	if err := sched.Create(c); err != nil {
		t.Fatalf("create duplicate: %v", err)
	}
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 for duplicate, got %d: %s", rec.Code, rec.Body.String())
	}

	// Unknown stage -> 404.
	c, rec = adminContext(t, http.MethodPost, "/v1/admin/stages/missing/schedule", createBody("comp-2", 14, 15))
	c.SetParamNames("stage_id")
	c.SetParamValues("missing")
	if err := sched.Create(c); err != nil {
		t.Fatalf("create missing stage: %v", err)
	}
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown stage, got %d", rec.Code)
	}
}

func TestScheduleCreateValidation(t *testing.T) {
	_, sched, _ := newTestEnv(t)

	cases := []struct {
		name string
		body string
	}{
		{"missing fields", `{"competition_id":"comp-1"}`},
		{"bad date", strings.Replace(createBody("comp-1", 10, 11), "2025-01-10", "10/01/2025", 1)},
		{"start after end", createBody("comp-1", 11, 10)},
		{"non-rfc3339 time", `{"competition_id":"comp-1","date":"2025-01-10",
			"reporting_time":"09:30","start_time":"10:00","end_time":"11:00"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c, rec := adminContext(t, http.MethodPost, "/v1/admin/stages/stage-1/schedule", tc.body)
			c.SetParamNames("stage_id")
			c.SetParamValues("stage-1")
			if err := sched.Create(c); err != nil {
				t.Fatalf("create: %v", err)
			}
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
			}
		})
	}
}

func TestScheduleDetailBackfillsParticipants(t *testing.T) {
	db, sched, _ := newTestEnv(t)

	c, rec := adminContext(t, http.MethodPost, "/v1/admin/stages/stage-1/schedule", createBody("comp-1", 10, 11))
	c.SetParamNames("stage_id")
	c.SetParamValues("stage-1")
	if err := sched.Create(c); err != nil || rec.Code != http.StatusCreated {
		t.Fatalf("create: %v (%d)", err, rec.Code)
	}
	var created struct {
		ID string `json:"id"`
	}
	_ = json.Unmarshal(rec.Body.Bytes(), &created)

	// Simulate a purge so the detail read has to re-materialize.
	if _, err := db.Exec(`DELETE FROM attendance WHERE placement_id = ?`, created.ID); err != nil {
		t.Fatalf("purge: %v", err)
	}

	c, rec = adminContext(t, http.MethodGet, "/v1/schedule/"+created.ID, "")
	c.SetParamNames("id")
	c.SetParamValues(created.ID)
	if err := sched.Detail(c); err != nil {
		t.Fatalf("detail: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Details struct {
			Status       string            `json:"status"`
			Participants []json.RawMessage `json:"participants"`
		} `json:"scheduled_competition_details"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Details.Status != "not_started" {
		t.Fatalf("unexpected status %q", resp.Details.Status)
	}
	if len(resp.Details.Participants) != 2 {
		t.Fatalf("expected 2 backfilled participants, got %d", len(resp.Details.Participants))
	}
}

func TestUpdateStatusMapping(t *testing.T) {
	_, sched, _ := newTestEnv(t)

	// Invalid status -> 400 without touching the database.
	c, rec := adminContext(t, http.MethodPatch, "/v1/schedule/x/status", `{"status":"paused"}`)
	c.SetParamNames("id")
	c.SetParamValues("x")
	if err := sched.UpdateStatus(c); err != nil {
		t.Fatalf("update status: %v", err)
	}
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid status, got %d", rec.Code)
	}

	// Unknown placement -> 404.
	c, rec = adminContext(t, http.MethodPatch, "/v1/schedule/missing/status", `{"status":"ongoing"}`)
	c.SetParamNames("id")
	c.SetParamValues("missing")
	if err := sched.UpdateStatus(c); err != nil {
		t.Fatalf("update status: %v", err)
	}
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown placement, got %d", rec.Code)
	}
}

func TestSetPresenceHandler(t *testing.T) {
	db, sched, att := newTestEnv(t)

	c, rec := adminContext(t, http.MethodPost, "/v1/admin/stages/stage-1/schedule", createBody("comp-1", 10, 11))
	c.SetParamNames("stage_id")
	c.SetParamValues("stage-1")
	if err := sched.Create(c); err != nil || rec.Code != http.StatusCreated {
		t.Fatalf("create: %v (%d)", err, rec.Code)
	}

	var attID string
	if err := db.QueryRow(`SELECT id FROM attendance WHERE unit_id = 'unit-1'`).Scan(&attID); err != nil {
		t.Fatalf("find attendance: %v", err)
	}

	// No flags -> 400.
	c, rec = adminContext(t, http.MethodPatch, "/v1/attendance/"+attID, `{}`)
	c.SetParamNames("id")
	c.SetParamValues(attID)
	if err := att.SetPresence(c); err != nil {
		t.Fatalf("set presence: %v", err)
	}
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty patch, got %d", rec.Code)
	}

	// A unit account cannot touch another unit's row.
	c, rec = adminContext(t, http.MethodPatch, "/v1/attendance/"+attID, `{"participant_1_present":true}`)
	c.Set("role", "unit")
	c.Set("unit_id", "unit-2")
	c.SetParamNames("id")
	c.SetParamValues(attID)
	if err := att.SetPresence(c); err != nil {
		t.Fatalf("set presence: %v", err)
	}
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for foreign row, got %d", rec.Code)
	}

	// The owning unit can.
	c, rec = adminContext(t, http.MethodPatch, "/v1/attendance/"+attID, `{"participant_1_present":true}`)
	c.Set("role", "unit")
	c.Set("unit_id", "unit-1")
	c.SetParamNames("id")
	c.SetParamValues(attID)
	if err := att.SetPresence(c); err != nil {
		t.Fatalf("set presence: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var d struct {
		FirstPresent  bool `json:"participant_1_present"`
		SecondPresent bool `json:"participant_2_present"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &d); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !d.FirstPresent || d.SecondPresent {
		t.Fatalf("unexpected flags: %+v", d)
	}
}
