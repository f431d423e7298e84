package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
)

// Unit is a participating team within a sector, tracked for attendance.
// Each unit logs in through its own user account.
type Unit struct {
	ID       string
	Name     string
	SectorID string
	UserID   string
}

// ErrUnitNotFound indicates that a unit was not located in the DB.
var ErrUnitNotFound = errors.New("unit not found")

// UnitRef is the embedded unit reference used in read projections.
type UnitRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// UnitAccount pairs a unit with the login email of its account, for admin
// listings.
type UnitAccount struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// UnitRepo manages persistence for units.
type UnitRepo struct {
	db *sql.DB
}

// NewUnitRepo constructs a UnitRepo with the given DB handle.
func NewUnitRepo(db *sql.DB) *UnitRepo {
	return &UnitRepo{db: db}
}

// CreateTx inserts a unit row inside the caller's transaction, which also
// creates the unit's user account. The generated ID is populated on u.
func (r *UnitRepo) CreateTx(ctx context.Context, tx *sql.Tx, u *Unit) error {
	u.ID = uuid.NewString()
	_, err := tx.ExecContext(ctx,
		`INSERT INTO units (id, name, sector_id, user_id) VALUES (?, ?, ?, ?)`,
		u.ID, u.Name, u.SectorID, u.UserID)
	return err
}

// GetByID retrieves a unit by its ID. It returns ErrUnitNotFound if there is
// no matching row.
func (r *UnitRepo) GetByID(ctx context.Context, id string) (*Unit, error) {
	var u Unit
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, sector_id, user_id FROM units WHERE id = ?`, id).
		Scan(&u.ID, &u.Name, &u.SectorID, &u.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUnitNotFound
		}
		return nil, err
	}
	return &u, nil
}

// GetByUser retrieves the unit owned by the given user account.
func (r *UnitRepo) GetByUser(ctx context.Context, userID string) (*Unit, error) {
	var u Unit
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, sector_id, user_id FROM units WHERE user_id = ?`, userID).
		Scan(&u.ID, &u.Name, &u.SectorID, &u.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUnitNotFound
		}
		return nil, err
	}
	return &u, nil
}

// ListBySector returns all units of a sector with their account emails,
// ordered by name.
func (r *UnitRepo) ListBySector(ctx context.Context, sectorID string) ([]UnitAccount, error) {
	const q = `SELECT un.id, un.name, u.email
	           FROM units un
	           JOIN users u ON u.id = un.user_id
	           WHERE un.sector_id = ?
	           ORDER BY un.name ASC`
	rows, err := r.db.QueryContext(ctx, q, sectorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	result := []UnitAccount{}
	for rows.Next() {
		var a UnitAccount
		if err := rows.Scan(&a.ID, &a.Name, &a.Email); err != nil {
			return nil, err
		}
		result = append(result, a)
	}
	return result, rows.Err()
}

// RenameTx updates the unit name inside the caller's transaction.
func (r *UnitRepo) RenameTx(ctx context.Context, tx *sql.Tx, id, name string) error {
	_, err := tx.ExecContext(ctx, `UPDATE units SET name = ? WHERE id = ?`, name, id)
	return err
}
