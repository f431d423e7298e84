package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
)

// Stage is a venue inside a sector where competitions run sequentially.
// Each stage is operated through its own user account.
type Stage struct {
	ID       string
	Name     string
	SectorID string
	UserID   string
}

// ErrStageNotFound indicates that a stage was not located in the DB.
var ErrStageNotFound = errors.New("stage not found")

// StageAccount pairs a stage with the login email of its operator account,
// for admin listings.
type StageAccount struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// StageRepo manages persistence for stages.
type StageRepo struct {
	db *sql.DB
}

// NewStageRepo constructs a StageRepo with the given DB handle.
func NewStageRepo(db *sql.DB) *StageRepo {
	return &StageRepo{db: db}
}

// CreateTx inserts a stage row inside the caller's transaction, which also
// creates the operator user. The generated ID is populated on s.
func (r *StageRepo) CreateTx(ctx context.Context, tx *sql.Tx, s *Stage) error {
	s.ID = uuid.NewString()
	_, err := tx.ExecContext(ctx,
		`INSERT INTO stages (id, name, sector_id, user_id) VALUES (?, ?, ?, ?)`,
		s.ID, s.Name, s.SectorID, s.UserID)
	return err
}

// GetByID retrieves a stage by its ID. It returns ErrStageNotFound if there
// is no matching row.
func (r *StageRepo) GetByID(ctx context.Context, id string) (*Stage, error) {
	var s Stage
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, sector_id, user_id FROM stages WHERE id = ?`, id).
		Scan(&s.ID, &s.Name, &s.SectorID, &s.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrStageNotFound
		}
		return nil, err
	}
	return &s, nil
}

// GetByUser retrieves the stage operated by the given user account.
func (r *StageRepo) GetByUser(ctx context.Context, userID string) (*Stage, error) {
	var s Stage
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, sector_id, user_id FROM stages WHERE user_id = ?`, userID).
		Scan(&s.ID, &s.Name, &s.SectorID, &s.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrStageNotFound
		}
		return nil, err
	}
	return &s, nil
}

// ListBySector returns all stages of a sector with their operator emails,
// ordered by name.
func (r *StageRepo) ListBySector(ctx context.Context, sectorID string) ([]StageAccount, error) {
	const q = `SELECT s.id, s.name, u.email
	           FROM stages s
	           JOIN users u ON u.id = s.user_id
	           WHERE s.sector_id = ?
	           ORDER BY s.name ASC`
	rows, err := r.db.QueryContext(ctx, q, sectorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	result := []StageAccount{}
	for rows.Next() {
		var a StageAccount
		if err := rows.Scan(&a.ID, &a.Name, &a.Email); err != nil {
			return nil, err
		}
		result = append(result, a)
	}
	return result, rows.Err()
}

// RenameTx updates the stage name inside the caller's transaction.
func (r *StageRepo) RenameTx(ctx context.Context, tx *sql.Tx, id, name string) error {
	_, err := tx.ExecContext(ctx, `UPDATE stages SET name = ? WHERE id = ?`, name, id)
	return err
}
