package repository

import (
	"context"
	"errors"
	"testing"
)

func TestUnscheduledByCategory(t *testing.T) {
	db := openTestDB(t)
	f := seed(t, db)
	placements := NewPlacementRepo(db)
	comps := NewCompetitionRepo(db)
	ctx := context.Background()

	schedule(t, placements, "comp-1", f.stageA, 10, 11)

	left, err := comps.UnscheduledByCategory(ctx, "cat-1", f.sector)
	if err != nil {
		t.Fatalf("unscheduled: %v", err)
	}
	if len(left) != 1 || left[0].ID != "comp-2" {
		t.Fatalf("expected only comp-2 unscheduled in cat-1, got %+v", left)
	}

	// Untouched category keeps everything.
	left, err = comps.UnscheduledByCategory(ctx, "cat-2", f.sector)
	if err != nil {
		t.Fatalf("unscheduled cat-2: %v", err)
	}
	if len(left) != 2 {
		t.Fatalf("expected 2 unscheduled in cat-2, got %d", len(left))
	}
}

func TestDashboard(t *testing.T) {
	db := openTestDB(t)
	f := seed(t, db)
	placements := NewPlacementRepo(db)
	comps := NewCompetitionRepo(db)
	ctx := context.Background()

	schedule(t, placements, "comp-1", f.stageA, 10, 11)
	schedule(t, placements, "comp-3", f.stageB, 10, 11)

	d, err := comps.Dashboard(ctx, f.sector)
	if err != nil {
		t.Fatalf("dashboard: %v", err)
	}
	if d.TotalRemaining != 2 {
		t.Fatalf("expected 2 remaining, got %d", d.TotalRemaining)
	}
	if d.TotalStages != 2 || d.TotalUnits != 3 {
		t.Fatalf("wrong directory counts: %+v", d)
	}
	byName := map[string]int{}
	for _, c := range d.ByCategory {
		byName[c.CategoryName] = c.Remaining
	}
	if byName["Music"] != 1 || byName["Drama"] != 1 {
		t.Fatalf("per-category remaining wrong: %+v", d.ByCategory)
	}
}

func TestListByCategory(t *testing.T) {
	db := openTestDB(t)
	seed(t, db)
	comps := NewCompetitionRepo(db)
	ctx := context.Background()

	list, err := comps.ListByCategory(ctx, "cat-1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 competitions, got %d", len(list))
	}
	// Ordered by name: "Group Song" before "Solo Song".
	if list[0].Name != "Group Song" {
		t.Fatalf("unexpected order: %q first", list[0].Name)
	}

	if _, err := comps.ListByCategory(ctx, "missing"); !errors.Is(err, ErrCategoryNotFound) {
		t.Fatalf("expected ErrCategoryNotFound, got %v", err)
	}
}
