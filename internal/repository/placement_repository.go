// Package repository contains data access logic for the scheduling core. This
// file defines the Placement model and repository. A Placement assigns one
// competition to one stage, on one date, within a time window, for a sector.
// All invariant-bearing mutations (scheduling, time changes, status
// transitions, deletes, sector resets) run inside a single transaction so no
// caller can observe a placement without its attendance rows or two siblings
// holding the same singleton status.
// NOTE: Time strings are stored in DB format "2006-01-02 15:04:05" (UTC),
// dates as "2006-01-02".
package repository

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"
)

const (
	dbTimeLayout = "2006-01-02 15:04:05"
	dbDateLayout = "2006-01-02"
)

// Placement status values. Transitions between them are driven by explicit
// requests; the repository only enforces the per-stage-per-date singleton
// rules for ongoing and reporting.
const (
	StatusNotStarted = "not_started"
	StatusReporting  = "reporting"
	StatusOngoing    = "ongoing"
	StatusFinished   = "finished"
)

// ValidStatus reports whether s is one of the four placement statuses.
func ValidStatus(s string) bool {
	switch s {
	case StatusNotStarted, StatusReporting, StatusOngoing, StatusFinished:
		return true
	}
	return false
}

// nowStamp returns the current UTC instant in DB timestamp format.
func nowStamp() string {
	return time.Now().UTC().Format(dbTimeLayout)
}

// FormatInstant renders t in the DB timestamp format, in UTC. Handlers use
// it to convert parsed client input before it reaches the queries.
func FormatInstant(t time.Time) string {
	return t.UTC().Format(dbTimeLayout)
}

// ValidDate reports whether s is a well-formed "2006-01-02" date.
func ValidDate(s string) bool {
	_, err := time.Parse(dbDateLayout, s)
	return err == nil
}

// Placement mirrors the placements table.
type Placement struct {
	ID            string
	CompetitionID string
	StageID       string
	SectorID      string
	Date          string // "2006-01-02"
	ReportingTime string // "2006-01-02 15:04:05" UTC
	StartTime     string
	EndTime       string
	Status        string
}

// ErrPlacementNotFound indicates that a placement was not located in the DB.
var ErrPlacementNotFound = errors.New("placement not found")

// Overlaps reports whether the half-open windows [aStart,aEnd) and
// [bStart,bEnd) intersect. Timestamps use the fixed DB format, whose
// lexicographic order matches chronological order, so string comparison is
// sufficient. Touching boundaries (aEnd == bStart) are not an overlap.
func Overlaps(aStart, aEnd, bStart, bEnd string) bool {
	return aStart < bEnd && aEnd > bStart
}

// PlacementRepo manages persistence for placements and is the single choke
// point for every mutation that touches the scheduling invariants.
type PlacementRepo struct {
	db *sql.DB
}

// NewPlacementRepo constructs a PlacementRepo with the given DB handle.
func NewPlacementRepo(db *sql.DB) *PlacementRepo {
	return &PlacementRepo{db: db}
}

// DB exposes the underlying sql.DB for callers that need to compose
// transactions spanning multiple repositories.
func (r *PlacementRepo) DB() *sql.DB { return r.db }

type rowQuerier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// lockStageTx takes an exclusive lock on the stage row so concurrent
// mutations of one stage's schedule serialize. It must run before any read
// in the transaction: under MySQL's repeatable-read isolation the snapshot
// for the checks that follow is only established after the lock is granted,
// which closes the race between two transactions that each pre-check against
// a stale view. The self-assignment write is a no-op under SQLite's
// single-writer model.
func lockStageTx(ctx context.Context, tx *sql.Tx, stageID string) error {
	_, err := tx.ExecContext(ctx, `UPDATE stages SET name = name WHERE id = ?`, stageID)
	return err
}

// findConflicting loads every placement sharing (stage, date), except
// excludeID, and returns the first whose window overlaps [start, end).
// Every mutation path that can move a time window goes through here.
func findConflicting(ctx context.Context, q rowQuerier, stageID, date, excludeID, start, end string) (*Placement, error) {
	const sel = `SELECT id, competition_id, stage_id, sector_id, event_date, reporting_time, start_time, end_time, status
	             FROM placements
	             WHERE stage_id = ? AND event_date = ? AND id <> ?`
	rows, err := q.QueryContext(ctx, sel, stageID, date, excludeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var p Placement
		if err := rows.Scan(&p.ID, &p.CompetitionID, &p.StageID, &p.SectorID, &p.Date,
			&p.ReportingTime, &p.StartTime, &p.EndTime, &p.Status); err != nil {
			return nil, err
		}
		if Overlaps(start, end, p.StartTime, p.EndTime) {
			return &p, nil
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return nil, nil
}

// Schedule validates and inserts a new placement, then materializes one
// attendance row per unit currently in the sector, all in one transaction.
// It returns ErrConflict when the competition is already placed in the
// sector and ErrScheduleConflict when the window overlaps an existing
// placement on the same stage and date. On success the generated ID and the
// not_started status are populated on p.
func (r *PlacementRepo) Schedule(ctx context.Context, p *Placement) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
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

	if err = lockStageTx(ctx, tx, p.StageID); err != nil {
		return err
	}

	// A competition may be scheduled at most once per sector.
	var dup int
	err = tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM placements WHERE competition_id = ? AND sector_id = ?`,
		p.CompetitionID, p.SectorID).Scan(&dup)
	if err != nil {
		return err
	}
	if dup > 0 {
		err = ErrConflict
		return err
	}

	var clash *Placement
	clash, err = findConflicting(ctx, tx, p.StageID, p.Date, "", p.StartTime, p.EndTime)
	if err != nil {
		return err
	}
	if clash != nil {
		err = ErrScheduleConflict
		return err
	}

	p.ID = uuid.NewString()
	p.Status = StatusNotStarted
	_, err = tx.ExecContext(ctx,
		`INSERT INTO placements (id, competition_id, stage_id, sector_id, event_date, reporting_time, start_time, end_time, status)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.CompetitionID, p.StageID, p.SectorID, p.Date,
		p.ReportingTime, p.StartTime, p.EndTime, p.Status)
	if err != nil {
		if isUniqueViolation(err) {
			// (competition, sector) unique index caught a concurrent insert.
			err = ErrConflict
		}
		return err
	}

	var unitIDs []string
	unitIDs, err = sectorUnitIDs(ctx, tx, p.SectorID)
	if err != nil {
		return err
	}
	err = insertAttendanceTx(ctx, tx, p.ID, unitIDs)
	return err
}

// sectorUnitIDs returns the ids of all units currently in the sector.
func sectorUnitIDs(ctx context.Context, q rowQuerier, sectorID string) ([]string, error) {
	rows, err := q.QueryContext(ctx, `SELECT id FROM units WHERE sector_id = ?`, sectorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// GetByID retrieves a placement by its ID. It returns ErrPlacementNotFound
// if there is no matching row.
func (r *PlacementRepo) GetByID(ctx context.Context, id string) (*Placement, error) {
	const q = `SELECT id, competition_id, stage_id, sector_id, event_date, reporting_time, start_time, end_time, status
	           FROM placements WHERE id = ?`
	var p Placement
	err := r.db.QueryRowContext(ctx, q, id).Scan(&p.ID, &p.CompetitionID, &p.StageID, &p.SectorID,
		&p.Date, &p.ReportingTime, &p.StartTime, &p.EndTime, &p.Status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPlacementNotFound
		}
		return nil, err
	}
	return &p, nil
}

// UpdateTimes replaces the reporting/start/end instants of a placement after
// re-running the overlap check (excluding the placement itself) under the
// stage lock. Returns ErrScheduleConflict on overlap. The stage is resolved
// before the transaction opens so the lock can be the transaction's first
// statement; a placement never changes stage, so the pre-read cannot go
// stale.
func (r *PlacementRepo) UpdateTimes(ctx context.Context, id, reportingTime, startTime, endTime string) (err error) {
	var stageID string
	err = r.db.QueryRowContext(ctx,
		`SELECT stage_id FROM placements WHERE id = ?`, id).Scan(&stageID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = ErrPlacementNotFound
		}
		return err
	}

	tx, err := r.db.BeginTx(ctx, nil)
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

	if err = lockStageTx(ctx, tx, stageID); err != nil {
		return err
	}

	var date string
	err = tx.QueryRowContext(ctx,
		`SELECT event_date FROM placements WHERE id = ?`, id).Scan(&date)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = ErrPlacementNotFound
		}
		return err
	}

	var clash *Placement
	clash, err = findConflicting(ctx, tx, stageID, date, id, startTime, endTime)
	if err != nil {
		return err
	}
	if clash != nil {
		err = ErrScheduleConflict
		return err
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE placements SET reporting_time = ?, start_time = ?, end_time = ? WHERE id = ?`,
		reportingTime, startTime, endTime, id)
	return err
}

// TransitionStatus moves a placement to the requested status. Entering
// ongoing or reporting requires that no sibling on the same stage and date
// already holds that status (ErrStatusConflict otherwise). Entering
// not_started deletes the placement's attendance rows so presence can be
// retaken; they are re-materialized lazily on the next detail read. The
// sibling check and the write run under the stage lock, so two concurrent
// requests cannot both observe an empty slot: the loser blocks on the lock
// and then sees the winner's committed status.
func (r *PlacementRepo) TransitionStatus(ctx context.Context, id, status string) (err error) {
	var stageID string
	err = r.db.QueryRowContext(ctx,
		`SELECT stage_id FROM placements WHERE id = ?`, id).Scan(&stageID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = ErrPlacementNotFound
		}
		return err
	}

	tx, err := r.db.BeginTx(ctx, nil)
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

	if err = lockStageTx(ctx, tx, stageID); err != nil {
		return err
	}

	var date string
	err = tx.QueryRowContext(ctx,
		`SELECT event_date FROM placements WHERE id = ?`, id).Scan(&date)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = ErrPlacementNotFound
		}
		return err
	}

	if status == StatusOngoing || status == StatusReporting {
		var taken int
		err = tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM placements WHERE stage_id = ? AND event_date = ? AND status = ? AND id <> ?`,
			stageID, date, status, id).Scan(&taken)
		if err != nil {
			return err
		}
		if taken > 0 {
			err = ErrStatusConflict
			return err
		}
	}

	if status == StatusNotStarted {
		if _, err = tx.ExecContext(ctx,
			`DELETE FROM attendance WHERE placement_id = ?`, id); err != nil {
			return err
		}
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE placements SET status = ? WHERE id = ?`, status, id)
	return err
}

// Delete removes a placement and all of its attendance rows as one atomic
// unit. It returns ErrPlacementNotFound when the placement does not exist.
func (r *PlacementRepo) Delete(ctx context.Context, id string) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
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

	var one int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM placements WHERE id = ?`, id).Scan(&one)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = ErrPlacementNotFound
		}
		return err
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM attendance WHERE placement_id = ?`, id); err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `DELETE FROM placements WHERE id = ?`, id)
	return err
}

// ResetSector atomically deletes every attendance row belonging to any
// placement in the sector and then the placements themselves.
func (r *PlacementRepo) ResetSector(ctx context.Context, sectorID string) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
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

	if _, err = tx.ExecContext(ctx,
		`DELETE FROM attendance WHERE placement_id IN (SELECT id FROM placements WHERE sector_id = ?)`,
		sectorID); err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `DELETE FROM placements WHERE sector_id = ?`, sectorID)
	return err
}

// PlacementInfo is the read-side projection of a placement with the names of
// its competition, category and sector resolved for presentation.
type PlacementInfo struct {
	ID            string         `json:"id"`
	Competition   CompetitionRef `json:"competition"`
	Sector        SectorRef      `json:"sector"`
	Date          string         `json:"date"`
	ReportingTime string         `json:"reporting_time"`
	StartTime     string         `json:"start_time"`
	EndTime       string         `json:"end_time"`
	Status        string         `json:"status"`
}

const placementInfoSelect = `SELECT p.id, c.id, c.name, cat.id, cat.name, s.id, s.name,
       p.event_date, p.reporting_time, p.start_time, p.end_time, p.status
FROM placements p
JOIN competitions c ON c.id = p.competition_id
JOIN categories cat ON cat.id = c.category_id
JOIN sectors s ON s.id = p.sector_id`

func scanPlacementInfo(rows *sql.Rows) (PlacementInfo, error) {
	var pi PlacementInfo
	err := rows.Scan(&pi.ID, &pi.Competition.ID, &pi.Competition.Name,
		&pi.Competition.Category.ID, &pi.Competition.Category.Name,
		&pi.Sector.ID, &pi.Sector.Name,
		&pi.Date, &pi.ReportingTime, &pi.StartTime, &pi.EndTime, &pi.Status)
	return pi, err
}

// GetDetail returns the resolved projection of a single placement.
func (r *PlacementRepo) GetDetail(ctx context.Context, id string) (*PlacementInfo, error) {
	rows, err := r.db.QueryContext(ctx, placementInfoSelect+` WHERE p.id = ?`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, ErrPlacementNotFound
	}
	pi, err := scanPlacementInfo(rows)
	if err != nil {
		return nil, err
	}
	return &pi, nil
}

// ListByStageDate returns all placements of a stage on a date ordered by
// start time. When none exist it returns an empty slice and nil error.
func (r *PlacementRepo) ListByStageDate(ctx context.Context, stageID, date string) ([]PlacementInfo, error) {
	rows, err := r.db.QueryContext(ctx,
		placementInfoSelect+` WHERE p.stage_id = ? AND p.event_date = ? ORDER BY p.start_time ASC`,
		stageID, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	result := []PlacementInfo{}
	for rows.Next() {
		pi, err := scanPlacementInfo(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, pi)
	}
	return result, rows.Err()
}

// StageSlot is one ongoing or reporting placement on a stage, annotated with
// the viewing unit's own presence flags (false when no attendance row
// exists for that unit yet).
type StageSlot struct {
	ID            string      `json:"id"`
	Name          string      `json:"name"`
	Category      CategoryRef `json:"category"`
	Status        string      `json:"status"`
	ReportingTime string      `json:"reporting_time"`
	StartTime     string      `json:"start_time"`
	EndTime       string      `json:"end_time"`
	FirstPresent  bool        `json:"is_your_first_candidate_present"`
	SecondPresent bool        `json:"is_your_second_candidate_present"`
}

// StageView summarizes what is happening on one stage for a unit on a date:
// at most one ongoing and one reporting slot (the singleton invariants keep
// it that way) plus headline times taken from the ongoing slot when present,
// otherwise from the reporting slot.
type StageView struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	Ongoing       *StageSlot `json:"ongoing_competition"`
	Reporting     *StageSlot `json:"reporting_competition"`
	ReportingTime *string    `json:"reporting_time"`
	Date          *string    `json:"date"`
	StartTime     *string    `json:"start_time"`
	EndTime       *string    `json:"end_time"`
}

// StageViews builds the per-stage summary for every stage of the sector on
// the given date from the unit's perspective.
func (r *PlacementRepo) StageViews(ctx context.Context, sectorID, unitID, date string) ([]StageView, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name FROM stages WHERE sector_id = ? ORDER BY name ASC`, sectorID)
	if err != nil {
		return nil, err
	}
	views := []StageView{}
	index := map[string]int{}
	for rows.Next() {
		var id, name string
		if err := rows.Scan(&id, &name); err != nil {
			rows.Close()
			return nil, err
		}
		index[id] = len(views)
		views = append(views, StageView{ID: id, Name: name})
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	const q = `SELECT p.stage_id, p.id, c.name, cat.id, cat.name, p.status,
	       p.event_date, p.reporting_time, p.start_time, p.end_time,
	       a.participant_1_present, a.participant_2_present
	FROM placements p
	JOIN competitions c ON c.id = p.competition_id
	JOIN categories cat ON cat.id = c.category_id
	LEFT JOIN attendance a ON a.placement_id = p.id AND a.unit_id = ?
	WHERE p.sector_id = ? AND p.event_date = ? AND p.status IN (?, ?)`
	slots, err := r.db.QueryContext(ctx, q, unitID, sectorID, date, StatusOngoing, StatusReporting)
	if err != nil {
		return nil, err
	}
	defer slots.Close()
	for slots.Next() {
		var (
			stageID, pdate string
			slot           StageSlot
			p1, p2         sql.NullBool
		)
		if err := slots.Scan(&stageID, &slot.ID, &slot.Name, &slot.Category.ID, &slot.Category.Name,
			&slot.Status, &pdate, &slot.ReportingTime, &slot.StartTime, &slot.EndTime, &p1, &p2); err != nil {
			return nil, err
		}
		slot.FirstPresent = p1.Valid && p1.Bool
		slot.SecondPresent = p2.Valid && p2.Bool
		i, ok := index[stageID]
		if !ok {
			continue
		}
		v := &views[i]
		switch slot.Status {
		case StatusOngoing:
			if v.Ongoing == nil {
				s := slot
				v.Ongoing = &s
			}
		case StatusReporting:
			if v.Reporting == nil {
				s := slot
				v.Reporting = &s
			}
		}
		// Headline times: the ongoing slot wins, a reporting slot only
		// fills the gap.
		if slot.Status == StatusOngoing || v.ReportingTime == nil {
			rt, d, st, et := slot.ReportingTime, pdate, slot.StartTime, slot.EndTime
			v.ReportingTime, v.Date, v.StartTime, v.EndTime = &rt, &d, &st, &et
		}
	}
	return views, slots.Err()
}

// UnitPlacement is one placement of a stage as seen by a unit, carrying the
// unit's own presence flags.
type UnitPlacement struct {
	ID            string      `json:"id"`
	Name          string      `json:"name"`
	Category      CategoryRef `json:"category"`
	FirstPresent  bool        `json:"participant1_present_status"`
	SecondPresent bool        `json:"participant2_present_status"`
	ReportingTime string      `json:"reporting_time"`
	Date          string      `json:"date"`
	StartTime     string      `json:"start_time"`
	EndTime       string      `json:"end_time"`
	Status        string      `json:"status"`
}

// statusPriority orders placements for the unit schedule: what needs the
// unit's attention first comes first.
var statusPriority = map[string]int{
	StatusReporting:  1,
	StatusOngoing:    2,
	StatusNotStarted: 3,
	StatusFinished:   4,
}

// UnitStageSchedule lists every placement of a stage within a sector with the
// unit's presence flags, sorted by status priority and then reporting time.
func (r *PlacementRepo) UnitStageSchedule(ctx context.Context, stageID, sectorID, unitID string) ([]UnitPlacement, error) {
	const q = `SELECT p.id, c.name, cat.id, cat.name, p.event_date,
	       p.reporting_time, p.start_time, p.end_time, p.status,
	       a.participant_1_present, a.participant_2_present
	FROM placements p
	JOIN competitions c ON c.id = p.competition_id
	JOIN categories cat ON cat.id = c.category_id
	LEFT JOIN attendance a ON a.placement_id = p.id AND a.unit_id = ?
	WHERE p.stage_id = ? AND p.sector_id = ?`
	rows, err := r.db.QueryContext(ctx, q, unitID, stageID, sectorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	result := []UnitPlacement{}
	for rows.Next() {
		var (
			up     UnitPlacement
			p1, p2 sql.NullBool
		)
		if err := rows.Scan(&up.ID, &up.Name, &up.Category.ID, &up.Category.Name, &up.Date,
			&up.ReportingTime, &up.StartTime, &up.EndTime, &up.Status, &p1, &p2); err != nil {
			return nil, err
		}
		up.FirstPresent = p1.Valid && p1.Bool
		up.SecondPresent = p2.Valid && p2.Bool
		result = append(result, up)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	sort.SliceStable(result, func(i, j int) bool {
		pi, pj := statusPriority[result[i].Status], statusPriority[result[j].Status]
		if pi != pj {
			return pi < pj
		}
		return result[i].ReportingTime < result[j].ReportingTime
	})
	return result, nil
}
