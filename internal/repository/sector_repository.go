package repository

import (
	"context"
	"database/sql"
	"errors"
)

// Sector is the top-level tenant: it owns stages, units and placements and
// is administered by exactly one admin user.
type Sector struct {
	ID     string
	Name   string
	UserID string
}

// ErrSectorNotFound indicates that a sector was not located in the DB.
var ErrSectorNotFound = errors.New("sector not found")

// SectorRef is the embedded sector reference used in read projections.
type SectorRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// SectorRepo manages persistence for sectors. Sectors are reference data to
// the scheduling core: created out of band, only read here.
type SectorRepo struct {
	db *sql.DB
}

// NewSectorRepo constructs a SectorRepo with the given DB handle.
func NewSectorRepo(db *sql.DB) *SectorRepo {
	return &SectorRepo{db: db}
}

// GetByID retrieves a sector by its ID. It returns ErrSectorNotFound if
// there is no matching row.
func (r *SectorRepo) GetByID(ctx context.Context, id string) (*Sector, error) {
	var s Sector
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, user_id FROM sectors WHERE id = ?`, id).
		Scan(&s.ID, &s.Name, &s.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSectorNotFound
		}
		return nil, err
	}
	return &s, nil
}

// GetByUser retrieves the sector administered by the given user. Used when
// issuing tokens to attach the admin's sector claim.
func (r *SectorRepo) GetByUser(ctx context.Context, userID string) (*Sector, error) {
	var s Sector
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, user_id FROM sectors WHERE user_id = ?`, userID).
		Scan(&s.ID, &s.Name, &s.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSectorNotFound
		}
		return nil, err
	}
	return &s, nil
}
