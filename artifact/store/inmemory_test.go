package store

import (
	"context"
	"errors"
	"testing"

	"github.com/launchforge/launchforge/errs"
)

func TestInMemoryGetMissing(t *testing.T) {
	s := NewInMemoryStore()
	_, err := s.Get(context.Background(), "p1", "website")
	if !errors.Is(err, errs.ErrNotFound) {
		t.Errorf("Get missing = %v, want ErrNotFound", err)
	}
}

func TestInMemoryPutVersionsAndUndo(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()

	rec, err := s.Put(ctx, "p1", "website", "<html>v1</html>")
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if rec.Version != 1 || rec.PreviousData != "" {
		t.Errorf("first Put = version %d previous %q, want 1 and empty", rec.Version, rec.PreviousData)
	}

	rec, err = s.Put(ctx, "p1", "website", "<html>v2</html>")
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if rec.Version != 2 || rec.PreviousData != "<html>v1</html>" {
		t.Errorf("second Put = version %d previous %q", rec.Version, rec.PreviousData)
	}

	rec, err = s.Undo(ctx, "p1", "website")
	if err != nil {
		t.Fatalf("Undo: %v", err)
	}
	if rec.Data != "<html>v1</html>" {
		t.Errorf("Undo restored %q, want v1", rec.Data)
	}
	if rec.PreviousData != "" {
		t.Error("undo slot must be cleared: only one level of undo is retained")
	}

	// A second Undo has nothing to restore.
	if _, err := s.Undo(ctx, "p1", "website"); !errors.Is(err, errs.ErrNotFound) {
		t.Errorf("second Undo = %v, want ErrNotFound", err)
	}
}

func TestInMemoryUndoMissing(t *testing.T) {
	s := NewInMemoryStore()
	if _, err := s.Undo(context.Background(), "p1", "website"); !errors.Is(err, errs.ErrNotFound) {
		t.Errorf("Undo missing = %v, want ErrNotFound", err)
	}
}

func TestInMemoryGetReturnsCopy(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()
	if _, err := s.Put(ctx, "p1", "website", "original"); err != nil {
		t.Fatalf("Put: %v", err)
	}

	rec, err := s.Get(ctx, "p1", "website")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	rec.Data = "mutated"

	again, err := s.Get(ctx, "p1", "website")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if again.Data != "original" {
		t.Error("store leaked internal record to caller")
	}
}
