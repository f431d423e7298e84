package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
)

// Attendance mirrors the attendance table: one row per (placement, unit)
// pair recording whether each of the unit's two participants showed up.
type Attendance struct {
	ID            string
	PlacementID   string
	UnitID        string
	FirstPresent  bool
	SecondPresent bool
	CreatedAt     string
	UpdatedAt     string
}

// ErrAttendanceNotFound indicates that an attendance row was not located.
var ErrAttendanceNotFound = errors.New("attendance record not found")

// AttendanceDetail is the read-side projection of an attendance row with the
// unit resolved.
type AttendanceDetail struct {
	ID            string  `json:"id"`
	Unit          UnitRef `json:"unit"`
	FirstPresent  bool    `json:"participant_1_present"`
	SecondPresent bool    `json:"participant_2_present"`
	CreatedAt     string  `json:"created_at"`
	UpdatedAt     string  `json:"updated_at"`
}

// AttendanceRepo manages the per-unit presence ledger of placements.
type AttendanceRepo struct {
	db *sql.DB
}

// NewAttendanceRepo constructs an AttendanceRepo with the given DB handle.
func NewAttendanceRepo(db *sql.DB) *AttendanceRepo {
	return &AttendanceRepo{db: db}
}

// insertAttendanceTx bulk-inserts one empty attendance row per unit for the
// placement, inside the caller's transaction. It is the only write path that
// materializes attendance, shared by Schedule and EnsurePopulated. Passing
// an empty slice has no effect and returns nil.
func insertAttendanceTx(ctx context.Context, tx *sql.Tx, placementID string, unitIDs []string) error {
	if len(unitIDs) == 0 {
		return nil
	}
	now := nowStamp()
	query := `INSERT INTO attendance (id, placement_id, unit_id, participant_1_present, participant_2_present, created_at, updated_at) VALUES `
	args := make([]any, 0, len(unitIDs)*7)
	for i, unitID := range unitIDs {
		if i > 0 {
			query += ","
		}
		query += "(?, ?, ?, 0, 0, ?, ?)"
		args = append(args, uuid.NewString(), placementID, unitID, now, now)
	}
	_, err := tx.ExecContext(ctx, query, args...)
	return err
}

// EnsurePopulated backfills the attendance rows of a placement that has none
// yet: one row per unit currently in its sector, both flags false. It is
// idempotent; a placement that already has rows is left untouched, even when
// units were added to the sector since the rows were created. Returns
// ErrPlacementNotFound for an unknown placement.
func (r *AttendanceRepo) EnsurePopulated(ctx context.Context, placementID string) (err error) {
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

	var existing int
	err = tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM attendance WHERE placement_id = ?`, placementID).Scan(&existing)
	if err != nil {
		return err
	}
	if existing > 0 {
		return nil
	}

	var sectorID string
	err = tx.QueryRowContext(ctx,
		`SELECT sector_id FROM placements WHERE id = ?`, placementID).Scan(&sectorID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = ErrPlacementNotFound
		}
		return err
	}

	var unitIDs []string
	unitIDs, err = sectorUnitIDs(ctx, tx, sectorID)
	if err != nil {
		return err
	}
	err = insertAttendanceTx(ctx, tx, placementID, unitIDs)
	return err
}

// ListByPlacement returns the attendance rows of a placement with unit names
// resolved, ordered by unit name. When none exist it returns an empty slice
// and nil error.
func (r *AttendanceRepo) ListByPlacement(ctx context.Context, placementID string) ([]AttendanceDetail, error) {
	const q = `SELECT a.id, u.id, u.name, a.participant_1_present, a.participant_2_present, a.created_at, a.updated_at
	FROM attendance a
	JOIN units u ON u.id = a.unit_id
	WHERE a.placement_id = ?
	ORDER BY u.name ASC`
	rows, err := r.db.QueryContext(ctx, q, placementID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	result := []AttendanceDetail{}
	for rows.Next() {
		var d AttendanceDetail
		if err := rows.Scan(&d.ID, &d.Unit.ID, &d.Unit.Name,
			&d.FirstPresent, &d.SecondPresent, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, err
		}
		result = append(result, d)
	}
	return result, rows.Err()
}

// Get returns one attendance row with its unit resolved, or
// ErrAttendanceNotFound.
func (r *AttendanceRepo) Get(ctx context.Context, id string) (*AttendanceDetail, error) {
	const sel = `SELECT a.id, u.id, u.name, a.participant_1_present, a.participant_2_present, a.created_at, a.updated_at
	FROM attendance a
	JOIN units u ON u.id = a.unit_id
	WHERE a.id = ?`
	var d AttendanceDetail
	err := r.db.QueryRowContext(ctx, sel, id).Scan(&d.ID, &d.Unit.ID, &d.Unit.Name,
		&d.FirstPresent, &d.SecondPresent, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAttendanceNotFound
		}
		return nil, err
	}
	return &d, nil
}

// SetPresence partially updates an attendance row: each flag changes only
// when the caller supplied it. The updated_at stamp always moves. Returns
// the fresh projection, or ErrAttendanceNotFound for an unknown id.
func (r *AttendanceRepo) SetPresence(ctx context.Context, id string, first, second *bool) (*AttendanceDetail, error) {
	var one int
	err := r.db.QueryRowContext(ctx, `SELECT 1 FROM attendance WHERE id = ?`, id).Scan(&one)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAttendanceNotFound
		}
		return nil, err
	}

	set := "updated_at = ?"
	args := []any{nowStamp()}
	if first != nil {
		set += ", participant_1_present = ?"
		args = append(args, boolToInt(*first))
	}
	if second != nil {
		set += ", participant_2_present = ?"
		args = append(args, boolToInt(*second))
	}
	args = append(args, id)
	if _, err := r.db.ExecContext(ctx, `UPDATE attendance SET `+set+` WHERE id = ?`, args...); err != nil {
		return nil, err
	}

	const sel = `SELECT a.id, u.id, u.name, a.participant_1_present, a.participant_2_present, a.created_at, a.updated_at
	FROM attendance a
	JOIN units u ON u.id = a.unit_id
	WHERE a.id = ?`
	var d AttendanceDetail
	err = r.db.QueryRowContext(ctx, sel, id).Scan(&d.ID, &d.Unit.ID, &d.Unit.Name,
		&d.FirstPresent, &d.SecondPresent, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAttendanceNotFound
		}
		return nil, err
	}
	return &d, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
