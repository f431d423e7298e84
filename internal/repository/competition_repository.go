// Package repository: competitions and categories are festival-wide
// reference data maintained out of band. The queries here back the
// dashboard and the "what is left to schedule" views, which is why most of
// them are phrased relative to a sector's placements.
package repository

import (
	"context"
	"database/sql"
	"errors"
)

// Category groups competitions.
type Category struct {
	ID   string
	Name string
}

// Competition is one event that can be scheduled at most once per sector.
type Competition struct {
	ID         string
	Name       string
	CategoryID string
}

// ErrCategoryNotFound indicates that a category was not located in the DB.
var ErrCategoryNotFound = errors.New("category not found")

// ErrCompetitionNotFound indicates that a competition was not located.
var ErrCompetitionNotFound = errors.New("competition not found")

// CategoryRef is the embedded category reference used in read projections.
type CategoryRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// CompetitionRef is the embedded competition reference used in projections.
type CompetitionRef struct {
	ID       string      `json:"id"`
	Name     string      `json:"name"`
	Category CategoryRef `json:"category"`
}

// CategoryRemaining counts how many competitions of a category are still
// unscheduled in a sector.
type CategoryRemaining struct {
	CategoryID   string `json:"category_id"`
	CategoryName string `json:"category_name"`
	Remaining    int    `json:"remaining_competitions"`
}

// DashboardData aggregates the admin dashboard counters for one sector.
type DashboardData struct {
	TotalRemaining int                 `json:"total_remaining_competitions"`
	ByCategory     []CategoryRemaining `json:"competitions_by_category"`
	TotalStages    int                 `json:"total_stages"`
	TotalUnits     int                 `json:"total_units"`
}

// CompetitionRepo manages read access to competitions and categories.
type CompetitionRepo struct {
	db *sql.DB
}

// NewCompetitionRepo constructs a CompetitionRepo with the given DB handle.
func NewCompetitionRepo(db *sql.DB) *CompetitionRepo {
	return &CompetitionRepo{db: db}
}

// GetByID retrieves a competition by its ID.
func (r *CompetitionRepo) GetByID(ctx context.Context, id string) (*Competition, error) {
	var c Competition
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, category_id FROM competitions WHERE id = ?`, id).
		Scan(&c.ID, &c.Name, &c.CategoryID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCompetitionNotFound
		}
		return nil, err
	}
	return &c, nil
}

// ListCategories returns all categories ordered by name.
func (r *CompetitionRepo) ListCategories(ctx context.Context) ([]CategoryRef, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name FROM categories ORDER BY name ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	result := []CategoryRef{}
	for rows.Next() {
		var c CategoryRef
		if err := rows.Scan(&c.ID, &c.Name); err != nil {
			return nil, err
		}
		result = append(result, c)
	}
	return result, rows.Err()
}

// CompetitionListItem is a flat competition entry for category listings.
type CompetitionListItem struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ListByCategory returns the competitions of a category ordered by name.
// ErrCategoryNotFound is returned for an unknown category.
func (r *CompetitionRepo) ListByCategory(ctx context.Context, categoryID string) ([]CompetitionListItem, error) {
	var one int
	err := r.db.QueryRowContext(ctx, `SELECT 1 FROM categories WHERE id = ?`, categoryID).Scan(&one)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCategoryNotFound
		}
		return nil, err
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name FROM competitions WHERE category_id = ? ORDER BY name ASC`, categoryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	result := []CompetitionListItem{}
	for rows.Next() {
		var c CompetitionListItem
		if err := rows.Scan(&c.ID, &c.Name); err != nil {
			return nil, err
		}
		result = append(result, c)
	}
	return result, rows.Err()
}

// UnscheduledByCategory returns the competitions of a category that have no
// placement in the given sector yet.
func (r *CompetitionRepo) UnscheduledByCategory(ctx context.Context, categoryID, sectorID string) ([]CompetitionRef, error) {
	const q = `SELECT c.id, c.name, cat.id, cat.name
	FROM competitions c
	JOIN categories cat ON cat.id = c.category_id
	WHERE c.category_id = ?
	  AND c.id NOT IN (SELECT competition_id FROM placements WHERE sector_id = ?)
	ORDER BY c.name ASC`
	rows, err := r.db.QueryContext(ctx, q, categoryID, sectorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	result := []CompetitionRef{}
	for rows.Next() {
		var c CompetitionRef
		if err := rows.Scan(&c.ID, &c.Name, &c.Category.ID, &c.Category.Name); err != nil {
			return nil, err
		}
		result = append(result, c)
	}
	return result, rows.Err()
}

// Dashboard computes the admin counters for a sector: how many competitions
// remain unscheduled in total and per category, plus stage and unit counts.
func (r *CompetitionRepo) Dashboard(ctx context.Context, sectorID string) (*DashboardData, error) {
	var d DashboardData

	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM competitions
		 WHERE id NOT IN (SELECT competition_id FROM placements WHERE sector_id = ?)`,
		sectorID).Scan(&d.TotalRemaining)
	if err != nil {
		return nil, err
	}

	const perCat = `SELECT cat.id, cat.name, COUNT(c.id)
	FROM categories cat
	LEFT JOIN competitions c ON c.category_id = cat.id
	  AND c.id NOT IN (SELECT competition_id FROM placements WHERE sector_id = ?)
	GROUP BY cat.id, cat.name
	ORDER BY cat.name ASC`
	rows, err := r.db.QueryContext(ctx, perCat, sectorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	d.ByCategory = []CategoryRemaining{}
	for rows.Next() {
		var c CategoryRemaining
		if err := rows.Scan(&c.CategoryID, &c.CategoryName, &c.Remaining); err != nil {
			return nil, err
		}
		d.ByCategory = append(d.ByCategory, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM stages WHERE sector_id = ?`, sectorID).Scan(&d.TotalStages); err != nil {
		return nil, err
	}
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM units WHERE sector_id = ?`, sectorID).Scan(&d.TotalUnits); err != nil {
		return nil, err
	}
	return &d, nil
}
