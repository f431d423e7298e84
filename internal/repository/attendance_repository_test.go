package repository

import (
	"context"
	"errors"
	"testing"
)

func TestEnsurePopulatedIdempotent(t *testing.T) {
	db := openTestDB(t)
	f := seed(t, db)
	repo := NewPlacementRepo(db)
	att := NewAttendanceRepo(db)
	ctx := context.Background()

	p := schedule(t, repo, f.competitions[0], f.stageA, 10, 11)

	for i := 0; i < 2; i++ {
		if err := att.EnsurePopulated(ctx, p.ID); err != nil {
			t.Fatalf("EnsurePopulated run %d: %v", i, err)
		}
	}
	if got := countRows(t, db, `SELECT COUNT(*) FROM attendance WHERE placement_id = ?`, p.ID); got != len(f.units) {
		t.Fatalf("expected %d rows after repeated backfill, got %d", len(f.units), got)
	}

	// A placement that already has rows is left alone even when a unit was
	// added to the sector afterwards.
	if _, err := db.Exec(`INSERT INTO users (id, email, password_hash, role, created_at)
		VALUES ('u-4', 'u4@x', 'h', 'unit', '2025-01-01 00:00:00')`); err != nil {
		t.Fatalf("insert user: %v", err)
	}
	if _, err := db.Exec(`INSERT INTO units (id, name, sector_id, user_id)
		VALUES ('unit-4', 'Delta', 'sec-1', 'u-4')`); err != nil {
		t.Fatalf("insert unit: %v", err)
	}
	if err := att.EnsurePopulated(ctx, p.ID); err != nil {
		t.Fatalf("EnsurePopulated after unit add: %v", err)
	}
	if got := countRows(t, db, `SELECT COUNT(*) FROM attendance WHERE placement_id = ?`, p.ID); got != len(f.units) {
		t.Fatalf("backfill is not a reconciliation; expected %d rows, got %d", len(f.units), got)
	}

	if err := att.EnsurePopulated(ctx, "missing"); !errors.Is(err, ErrPlacementNotFound) {
		t.Fatalf("expected ErrPlacementNotFound, got %v", err)
	}
}

func TestSetPresencePartialUpdate(t *testing.T) {
	db := openTestDB(t)
	f := seed(t, db)
	repo := NewPlacementRepo(db)
	att := NewAttendanceRepo(db)
	ctx := context.Background()

	p := schedule(t, repo, f.competitions[0], f.stageA, 10, 11)

	var id string
	if err := db.QueryRow(`SELECT id FROM attendance WHERE placement_id = ? AND unit_id = 'unit-1'`,
		p.ID).Scan(&id); err != nil {
		t.Fatalf("find attendance: %v", err)
	}

	yes := true
	d, err := att.SetPresence(ctx, id, &yes, nil)
	if err != nil {
		t.Fatalf("set first: %v", err)
	}
	if !d.FirstPresent || d.SecondPresent {
		t.Fatalf("after first-only update: %+v", d)
	}
	if d.Unit.Name != "Alpha" {
		t.Fatalf("unit not resolved: %+v", d.Unit)
	}

	no := false
	d, err = att.SetPresence(ctx, id, &no, &yes)
	if err != nil {
		t.Fatalf("set both: %v", err)
	}
	if d.FirstPresent || !d.SecondPresent {
		t.Fatalf("after both update: %+v", d)
	}

	if _, err := att.SetPresence(ctx, "missing", &yes, nil); !errors.Is(err, ErrAttendanceNotFound) {
		t.Fatalf("expected ErrAttendanceNotFound, got %v", err)
	}
}

func TestListByPlacementOrdersByUnitName(t *testing.T) {
	db := openTestDB(t)
	f := seed(t, db)
	repo := NewPlacementRepo(db)
	att := NewAttendanceRepo(db)
	ctx := context.Background()

	p := schedule(t, repo, f.competitions[0], f.stageA, 10, 11)

	list, err := att.ListByPlacement(ctx, p.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != len(f.units) {
		t.Fatalf("expected %d rows, got %d", len(f.units), len(list))
	}
	want := []string{"Alpha", "Beta", "Gamma"}
	for i, w := range want {
		if list[i].Unit.Name != w {
			t.Fatalf("position %d: got %q, want %q", i, list[i].Unit.Name, w)
		}
	}
}

func TestAttendanceGet(t *testing.T) {
	db := openTestDB(t)
	f := seed(t, db)
	repo := NewPlacementRepo(db)
	att := NewAttendanceRepo(db)
	ctx := context.Background()

	p := schedule(t, repo, f.competitions[0], f.stageA, 10, 11)

	var id string
	if err := db.QueryRow(`SELECT id FROM attendance WHERE placement_id = ? AND unit_id = 'unit-2'`,
		p.ID).Scan(&id); err != nil {
		t.Fatalf("find attendance: %v", err)
	}
	d, err := att.Get(ctx, id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if d.Unit.ID != "unit-2" || d.FirstPresent || d.SecondPresent {
		t.Fatalf("unexpected detail: %+v", d)
	}
	if _, err := att.Get(ctx, "missing"); !errors.Is(err, ErrAttendanceNotFound) {
		t.Fatalf("expected ErrAttendanceNotFound, got %v", err)
	}
}
