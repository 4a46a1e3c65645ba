package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"coffeeshop/internal/core"
	"coffeeshop/internal/storage"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	st, err := Open(filepath.Join(t.TempDir(), "drinks.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func latte() core.Drink {
	return core.Drink{Title: "Latte", Recipe: core.Recipe{{Name: "milk", Color: "white", Parts: 1}}}
}

func TestCreateAndList(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	created, err := st.CreateDrink(ctx, latte())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.ID == 0 {
		t.Fatal("expected assigned id")
	}

	drinks, err := st.ListDrinks(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(drinks) != 1 || drinks[0].Title != "Latte" || drinks[0].Recipe[0].Name != "milk" {
		t.Fatalf("unexpected drinks: %#v", drinks)
	}
}

func TestListEmptyIsNotNil(t *testing.T) {
	st := openTestStore(t)
	drinks, err := st.ListDrinks(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if drinks == nil || len(drinks) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", drinks)
	}
}

func TestCreateDuplicateTitle(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	if _, err := st.CreateDrink(ctx, latte()); err != nil {
		t.Fatalf("create: %v", err)
	}
	_, err := st.CreateDrink(ctx, latte())
	if !errors.Is(err, core.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestUpdateDrink(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	created, _ := st.CreateDrink(ctx, latte())

	updated, err := st.UpdateDrink(ctx, created.ID, func(d *core.Drink) error {
		d.Title = "Flat White"
		return nil
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.ID != created.ID || updated.Title != "Flat White" || len(updated.Recipe) != 1 {
		t.Fatalf("unexpected update result: %#v", updated)
	}

	got, err := st.GetDrink(ctx, created.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Title != "Flat White" {
		t.Fatalf("title not persisted: %q", got.Title)
	}
}

func TestUpdateMissingDrink(t *testing.T) {
	st := openTestStore(t)
	called := false
	_, err := st.UpdateDrink(context.Background(), 42, func(d *core.Drink) error {
		called = true
		return nil
	})
	if !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if called {
		t.Fatal("apply must not run for missing drink")
	}
}

func TestUpdateApplyErrorRollsBack(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	created, _ := st.CreateDrink(ctx, latte())

	_, err := st.UpdateDrink(ctx, created.ID, func(d *core.Drink) error {
		d.Title = "Mocha"
		return core.ErrInvalid
	})
	if !errors.Is(err, core.ErrInvalid) {
		t.Fatalf("expected ErrInvalid, got %v", err)
	}
	got, _ := st.GetDrink(ctx, created.ID)
	if got.Title != "Latte" {
		t.Fatalf("expected unchanged title, got %q", got.Title)
	}
}

func TestUpdateToDuplicateTitle(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	_, _ = st.CreateDrink(ctx, latte())
	mocha, _ := st.CreateDrink(ctx, core.Drink{Title: "Mocha", Recipe: core.Recipe{{Name: "chocolate", Color: "brown", Parts: 1}}})

	_, err := st.UpdateDrink(ctx, mocha.ID, func(d *core.Drink) error {
		d.Title = "Latte"
		return nil
	})
	if !errors.Is(err, core.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestDeleteDrink(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	created, _ := st.CreateDrink(ctx, latte())

	if err := st.DeleteDrink(ctx, created.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := st.GetDrink(ctx, created.ID); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
	if err := st.DeleteDrink(ctx, created.ID); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestResetSeedsWater(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	_, _ = st.CreateDrink(ctx, latte())

	if err := st.Reset(ctx); err != nil {
		t.Fatalf("reset: %v", err)
	}
	drinks, err := st.ListDrinks(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(drinks) != 1 || drinks[0].Title != "water" || drinks[0].Recipe[0].Color != "blue" {
		t.Fatalf("unexpected drinks after reset: %#v", drinks)
	}
}

func TestAuditSaveQueryPrune(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	old := time.Now().UTC().Add(-48 * time.Hour)

	if err := st.SaveAudit(ctx, storage.AuditEvent{Subject: "u1", Action: "drinks:create", Source: "web", Status: "ok", TS: old}); err != nil {
		t.Fatalf("save old: %v", err)
	}
	if err := st.SaveAudit(ctx, storage.AuditEvent{Subject: "u2", Action: "drinks:delete", Source: "web", Status: "denied"}); err != nil {
		t.Fatalf("save new: %v", err)
	}

	events, err := st.QueryAudit(ctx, storage.AuditQuery{Subject: "u2"})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(events) != 1 || events[0].Action != "drinks:delete" {
		t.Fatalf("unexpected events: %#v", events)
	}

	n, err := st.PruneAudit(ctx, time.Now().UTC().Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if n != 1 {
		t.Fatalf("pruned %d events, want 1", n)
	}
	events, _ = st.QueryAudit(ctx, storage.AuditQuery{})
	if len(events) != 1 || events[0].Subject != "u2" {
		t.Fatalf("unexpected events after prune: %#v", events)
	}
}

func TestPing(t *testing.T) {
	st := openTestStore(t)
	if err := st.Ping(context.Background()); err != nil {
		t.Fatalf("ping: %v", err)
	}
}
