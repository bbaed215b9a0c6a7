package fieldstore

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestSetMarksTouched(t *testing.T) {
	store := New([]string{"email", "phone"}, map[string]any{"phone": "+966"})

	if store.Touched("email") {
		t.Fatalf("email should start untouched")
	}
	if err := store.Set("email", "a@example.com"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if !store.Touched("email") {
		t.Fatalf("email should be touched")
	}
	if got, _ := store.Get("phone"); got != "+966" {
		t.Fatalf("default not applied: %v", got)
	}
	if diff := cmp.Diff([]string{"email"}, store.TouchedFields()); diff != "" {
		t.Fatalf("touched mismatch (-want +got):\n%s", diff)
	}
}

func TestSetRejectsUndeclared(t *testing.T) {
	store := New([]string{"email"}, nil)
	err := store.Set("agency_number", "123")
	if !errors.Is(err, ErrUndeclaredField) {
		t.Fatalf("expected ErrUndeclaredField, got %v", err)
	}
	if _, ok := store.Get("agency_number"); ok {
		t.Fatalf("undeclared value must not be stored")
	}
}

func TestResetRestoresDefaults(t *testing.T) {
	store := New([]string{"purpose", "title"}, map[string]any{"purpose": "sale", "ghost": "x"})
	_ = store.Set("purpose", "auction")
	_ = store.Set("title", "Farm")
	store.Reset()

	want := map[string]any{"purpose": "sale"}
	if diff := cmp.Diff(want, store.Snapshot().Map()); diff != "" {
		t.Fatalf("values mismatch (-want +got):\n%s", diff)
	}
	if len(store.TouchedFields()) != 0 {
		t.Fatalf("touched state not cleared")
	}
}

func TestSnapshotIsImmutable(t *testing.T) {
	store := New([]string{"tags"}, nil)
	tags := []any{"corner", "road"}
	_ = store.Set("tags", tags)
	tags[0] = "mutated"

	snap := store.Snapshot()
	_ = store.Set("tags", []any{"later"})

	got, _ := snap.Get("tags")
	if diff := cmp.Diff([]any{"corner", "road"}, got); diff != "" {
		t.Fatalf("snapshot changed (-want +got):\n%s", diff)
	}
	m := snap.Map()
	m["tags"] = nil
	if again, _ := snap.Get("tags"); again == nil {
		t.Fatalf("Map must return a copy")
	}
}

func TestRedeclareKeepsOrphansUntilPruned(t *testing.T) {
	store := New([]string{"account_type", "agency_number", "email"}, nil)
	_ = store.Set("account_type", "legal-agent")
	_ = store.Set("agency_number", "A-17")
	_ = store.Set("email", "x@example.com")

	store.Redeclare([]string{"account_type", "email", "national_id"}, map[string]any{"national_id": ""})

	if diff := cmp.Diff([]string{"agency_number"}, store.Orphans()); diff != "" {
		t.Fatalf("orphans mismatch (-want +got):\n%s", diff)
	}
	if v, ok := store.Get("agency_number"); !ok || v != "A-17" {
		t.Fatalf("orphan value dropped before prune")
	}
	if err := store.Set("agency_number", "B"); !errors.Is(err, ErrUndeclaredField) {
		t.Fatalf("orphan must not be writable, got %v", err)
	}

	removed := store.Prune(store.Orphans()...)
	if diff := cmp.Diff([]string{"agency_number"}, removed); diff != "" {
		t.Fatalf("pruned mismatch (-want +got):\n%s", diff)
	}
	want := map[string]any{"account_type": "legal-agent", "email": "x@example.com", "national_id": ""}
	if diff := cmp.Diff(want, store.Snapshot().Map()); diff != "" {
		t.Fatalf("values mismatch (-want +got):\n%s", diff)
	}
}

func TestUpdateIsAtomic(t *testing.T) {
	store := New([]string{"count"}, map[string]any{"count": 0})
	for i := 0; i < 5; i++ {
		err := store.Update("count", func(current any, _ bool) any {
			return current.(int) + 1
		})
		if err != nil {
			t.Fatalf("Update: %v", err)
		}
	}
	if got, _ := store.Get("count"); got != 5 {
		t.Fatalf("count = %v", got)
	}
}
