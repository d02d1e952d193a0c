package inmemory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/opendata-tw/roadwatch/internal/pager"
	"github.com/opendata-tw/roadwatch/models"
)

func TestStoreRoundTrip(t *testing.T) {
	t.Parallel()
	store := NewStore()
	ctx := context.Background()

	state := pager.New("user-1", models.Query{County: "新北市"}, []models.Record{{ID: "a", Name: "a"}}, 10, 5*time.Minute)
	if err := store.Save(ctx, state); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := store.Get(ctx, state.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.OwnerID != "user-1" || len(got.Records) != 1 {
		t.Fatalf("got %+v", got)
	}

	if err := store.Delete(ctx, state.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := store.Get(ctx, state.ID); !errors.Is(err, pager.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound after delete, got %v", err)
	}
}

func TestStoreUnknownID(t *testing.T) {
	t.Parallel()
	store := NewStore()
	if _, err := store.Get(context.Background(), "nope"); !errors.Is(err, pager.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestStorePrunesLongExpired(t *testing.T) {
	t.Parallel()
	store := NewStore()
	ctx := context.Background()

	old := pager.New("user-1", models.Query{}, nil, 10, time.Minute)
	old.CreatedAt = time.Now().Add(-10 * time.Minute)
	if err := store.Save(ctx, old); err != nil {
		t.Fatalf("Save: %v", err)
	}

	// A later save triggers the prune pass.
	fresh := pager.New("user-2", models.Query{}, nil, 10, time.Minute)
	if err := store.Save(ctx, fresh); err != nil {
		t.Fatalf("Save: %v", err)
	}

	if _, err := store.Get(ctx, old.ID); !errors.Is(err, pager.ErrSessionNotFound) {
		t.Fatalf("expected long-expired session pruned, got %v", err)
	}
	if _, err := store.Get(ctx, fresh.ID); err != nil {
		t.Fatalf("fresh session lost: %v", err)
	}
}
