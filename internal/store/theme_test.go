// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"weechatorg/internal/models"
	"weechatorg/internal/submission"
)

// uniqueName returns a theme name that will not collide with other test
// runs sharing the database.
func uniqueName(prefix string) string {
	return prefix + "_" + uuid.NewString()[:8] + ".theme"
}

func newTestTheme(name string) *models.Theme {
	now := time.Now().UTC().Truncate(time.Second)
	return &models.Theme{
		Name:        name,
		Version:     "4.5.1",
		Description: "a test theme",
		Author:      "tester",
		Mail:        "tester@example.com",
		Added:       now,
		Updated:     now,
	}
}

func TestThemeStoreCreateAndFind(t *testing.T) {
	db := testDB(t)
	s := NewThemeStore(db)
	ctx := context.Background()

	name := uniqueName("create")
	t.Cleanup(func() { cleanThemes(t, db, name) })

	created, err := s.Create(ctx, newTestTheme(name))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if created.ID == 0 {
		t.Fatal("expected generated ID")
	}
	if created.Visible {
		t.Error("new theme should be pending")
	}

	byID, err := s.FindByID(ctx, created.ID)
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if byID == nil || byID.Name != name {
		t.Fatalf("FindByID returned %+v", byID)
	}

	byName, err := s.FindByName(ctx, name)
	if err != nil {
		t.Fatalf("FindByName: %v", err)
	}
	if byName == nil || byName.ID != created.ID {
		t.Fatalf("FindByName returned %+v", byName)
	}
}

func TestThemeStoreCreateDuplicateName(t *testing.T) {
	db := testDB(t)
	s := NewThemeStore(db)
	ctx := context.Background()

	name := uniqueName("dup")
	t.Cleanup(func() { cleanThemes(t, db, name) })

	if _, err := s.Create(ctx, newTestTheme(name)); err != nil {
		t.Fatalf("first Create: %v", err)
	}
	if _, err := s.Create(ctx, newTestTheme(name)); !errors.Is(err, submission.ErrDuplicateName) {
		t.Fatalf("second Create error = %v, want ErrDuplicateName", err)
	}
}

func TestThemeStoreCreateConcurrentSameName(t *testing.T) {
	db := testDB(t)
	s := NewThemeStore(db)
	ctx := context.Background()

	name := uniqueName("race")
	t.Cleanup(func() { cleanThemes(t, db, name) })

	const writers = 8
	errs := make([]error, writers)
	var wg sync.WaitGroup
	for i := range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = s.Create(ctx, newTestTheme(name))
		}()
	}
	wg.Wait()

	created := 0
	for _, err := range errs {
		switch {
		case err == nil:
			created++
		case !errors.Is(err, submission.ErrDuplicateName):
			t.Errorf("unexpected error: %v", err)
		}
	}
	if created != 1 {
		t.Errorf("%d concurrent creates succeeded, want 1", created)
	}

	var rows int
	if err := db.QueryRow(`SELECT COUNT(*) FROM themes WHERE name = $1`, name).Scan(&rows); err != nil {
		t.Fatal(err)
	}
	if rows != 1 {
		t.Errorf("%d rows named %s, want 1", rows, name)
	}
}

func TestThemeStoreDelete(t *testing.T) {
	db := testDB(t)
	s := NewThemeStore(db)
	ctx := context.Background()

	name := uniqueName("delete")
	t.Cleanup(func() { cleanThemes(t, db, name) })

	hookCalls := 0
	created, err := s.Create(ctx, newTestTheme(name))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	s.OnSave(func(context.Context) error {
		hookCalls++
		return nil
	})

	if err := s.Delete(ctx, created.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	got, err := s.FindByID(ctx, created.ID)
	if err != nil || got != nil {
		t.Errorf("FindByID after Delete = %v, %v; want nil, nil", got, err)
	}
	if hookCalls != 0 {
		t.Errorf("Delete ran %d save hooks, want 0", hookCalls)
	}

	// The name is free again.
	if _, err := s.Create(ctx, newTestTheme(name)); err != nil {
		t.Errorf("Create after Delete: %v", err)
	}
}

func TestThemeStoreFindMissing(t *testing.T) {
	db := testDB(t)
	s := NewThemeStore(db)
	ctx := context.Background()

	got, err := s.FindByID(ctx, -1)
	if err != nil || got != nil {
		t.Errorf("FindByID(-1) = %v, %v; want nil, nil", got, err)
	}
	got, err = s.FindByName(ctx, uniqueName("missing"))
	if err != nil || got != nil {
		t.Errorf("FindByName(missing) = %v, %v; want nil, nil", got, err)
	}
}

func TestThemeStoreUpdatedBeforeAddedRejected(t *testing.T) {
	db := testDB(t)
	s := NewThemeStore(db)

	name := uniqueName("badtime")
	t.Cleanup(func() { cleanThemes(t, db, name) })

	th := newTestTheme(name)
	th.Updated = th.Added.Add(-time.Hour)
	if _, err := s.Create(context.Background(), th); err == nil {
		t.Fatal("expected check constraint violation")
	}
}

func TestThemeStoreUpdate(t *testing.T) {
	db := testDB(t)
	s := NewThemeStore(db)
	ctx := context.Background()

	name := uniqueName("update")
	t.Cleanup(func() { cleanThemes(t, db, name) })

	created, err := s.Create(ctx, newTestTheme(name))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	created.Version = "4.6.0"
	created.Author = "someone else"
	created.Updated = created.Added.Add(time.Minute)
	if err := s.Update(ctx, created); err != nil {
		t.Fatalf("Update: %v", err)
	}

	got, _ := s.FindByID(ctx, created.ID)
	if got.Version != "4.6.0" || got.Author != "someone else" {
		t.Errorf("Update did not persist: %+v", got)
	}
	if got.Name != name {
		t.Errorf("Update changed the name to %q", got.Name)
	}

	missing := newTestTheme(name)
	missing.ID = -1
	if err := s.Update(ctx, missing); err == nil {
		t.Error("expected error updating missing theme")
	}
}

func TestThemeStoreVisibleListings(t *testing.T) {
	db := testDB(t)
	s := NewThemeStore(db)
	ctx := context.Background()

	// Created in this order so insertion order differs from name order.
	zeta := uniqueName("zeta")
	alpha := uniqueName("alpha")
	pending := uniqueName("pending")
	t.Cleanup(func() { cleanThemes(t, db, zeta, alpha, pending) })

	var ids []int64
	for _, name := range []string{zeta, alpha, pending} {
		created, err := s.Create(ctx, newTestTheme(name))
		if err != nil {
			t.Fatalf("Create %s: %v", name, err)
		}
		ids = append(ids, created.ID)
	}
	if err := s.SetVisible(ctx, ids[0], true, "ok"); err != nil {
		t.Fatalf("SetVisible: %v", err)
	}
	if err := s.SetVisible(ctx, ids[1], true, "ok"); err != nil {
		t.Fatalf("SetVisible: %v", err)
	}

	byID, err := s.ListVisibleByID(ctx)
	if err != nil {
		t.Fatalf("ListVisibleByID: %v", err)
	}
	if got := positions(byID, zeta, alpha, pending); got[pending] != -1 || got[zeta] > got[alpha] {
		t.Errorf("ListVisibleByID order wrong: %v", got)
	}

	byName, err := s.ListVisibleByName(ctx)
	if err != nil {
		t.Fatalf("ListVisibleByName: %v", err)
	}
	if got := positions(byName, zeta, alpha, pending); got[pending] != -1 || got[alpha] > got[zeta] {
		t.Errorf("ListVisibleByName order wrong: %v", got)
	}

	choices, err := s.Choices(ctx)
	if err != nil {
		t.Fatalf("Choices: %v", err)
	}
	found := false
	for _, c := range choices {
		if c.ID == ids[1] {
			found = true
			if c.Label != alpha+" (4.5.1)" {
				t.Errorf("choice label = %q", c.Label)
			}
		}
		if c.ID == ids[2] {
			t.Error("pending theme offered as update choice")
		}
	}
	if !found {
		t.Error("visible theme missing from choices")
	}
}

func positions(themes []models.Theme, names ...string) map[string]int {
	pos := make(map[string]int, len(names))
	for _, n := range names {
		pos[n] = -1
	}
	for i, th := range themes {
		if _, ok := pos[th.Name]; ok {
			pos[th.Name] = i
		}
	}
	return pos
}

func TestThemeStoreSaveHooks(t *testing.T) {
	db := testDB(t)
	s := NewThemeStore(db)
	ctx := context.Background()

	var calls int
	s.OnSave(func(context.Context) error {
		calls++
		return nil
	})

	name := uniqueName("hook")
	t.Cleanup(func() { cleanThemes(t, db, name) })

	created, err := s.Create(ctx, newTestTheme(name))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if calls != 1 {
		t.Fatalf("hook calls after Create = %d, want 1", calls)
	}

	if err := s.SetVisible(ctx, created.ID, true, ""); err != nil {
		t.Fatalf("SetVisible: %v", err)
	}
	created.Updated = created.Added
	if err := s.Update(ctx, created); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if calls != 3 {
		t.Errorf("hook calls = %d, want 3", calls)
	}

	// A failed save does not run hooks.
	if err := s.SetVisible(ctx, -1, true, ""); err == nil {
		t.Fatal("expected error for missing theme")
	}
	if calls != 3 {
		t.Errorf("hook ran for failed save: calls = %d", calls)
	}

	// Hook errors surface to the caller; the row stays committed.
	boom := errors.New("export failed")
	s.OnSave(func(context.Context) error { return boom })
	if err := s.SetVisible(ctx, created.ID, false, ""); !errors.Is(err, boom) || !errors.Is(err, ErrSaveHook) {
		t.Errorf("SetVisible error = %v, want %v", err, boom)
	}
	got, _ := s.FindByID(ctx, created.ID)
	if got.Visible {
		t.Error("visibility change was not committed")
	}
}
