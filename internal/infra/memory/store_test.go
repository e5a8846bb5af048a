package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/PandaDev0069/tuiz-backend-sub000/internal/domain"
)

func TestPlayerDataLifecycle(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	store.AddPlayer(domain.Player{ID: "p1", DeviceID: "dev-1", Nickname: "Alice", Role: domain.RolePlayer})
	store.AddPlayer(domain.Player{ID: "p2", DeviceID: "dev-2", Nickname: "Bob", Role: domain.RolePlayer})

	if _, ok, err := store.Get(ctx, "game-1", "p1"); ok || err != nil {
		t.Fatalf("expected no row yet, ok=%v err=%v", ok, err)
	}

	if err := store.Create(ctx, domain.GamePlayerData{GameID: "game-1", PlayerID: "p1"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := store.Create(ctx, domain.GamePlayerData{GameID: "game-1", PlayerID: "p2"}); err != nil {
		t.Fatalf("create: %v", err)
	}

	data := domain.GamePlayerData{GameID: "game-1", PlayerID: "p1", Score: 42}
	if err := store.Update(ctx, data); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, ok, err := store.Get(ctx, "game-1", "p1")
	if err != nil || !ok || got.Score != 42 {
		t.Fatalf("expected updated row, got %+v ok=%v err=%v", got, ok, err)
	}

	// Listing keeps creation order and resolves profiles.
	peers, err := store.ListByGame(ctx, "game-1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(peers) != 2 || peers[0].Player.Nickname != "Alice" || peers[1].Player.Nickname != "Bob" {
		t.Fatalf("unexpected listing: %+v", peers)
	}

	if err := store.Update(ctx, domain.GamePlayerData{GameID: "game-1", PlayerID: "ghost"}); !errors.Is(err, domain.ErrPlayerNotFound) {
		t.Fatalf("expected not-found on unknown row, got %v", err)
	}
}

func TestPlaySettingsDefaultOff(t *testing.T) {
	store := NewStore()
	settings, err := store.GetPlaySettings(context.Background(), "quiz-x")
	if err != nil {
		t.Fatalf("settings: %v", err)
	}
	if settings.TimeBonus || settings.StreakBonus {
		t.Fatalf("expected bonuses off by default, got %+v", settings)
	}
}

func TestConnectionStoreSupersede(t *testing.T) {
	ctx := context.Background()
	store := NewConnectionStore()

	prev, err := store.Activate(ctx, "dev-1", "s1")
	if err != nil || prev != "" {
		t.Fatalf("first activation: prev=%q err=%v", prev, err)
	}
	prev, err = store.Activate(ctx, "dev-1", "s2")
	if err != nil || prev != "s1" {
		t.Fatalf("expected s1 superseded, got prev=%q err=%v", prev, err)
	}

	// A stale deactivation must not clear the newer record.
	if err := store.Deactivate(ctx, "dev-1", "s1"); err != nil {
		t.Fatalf("deactivate stale: %v", err)
	}
	prev, _ = store.Activate(ctx, "dev-1", "s3")
	if prev != "s2" {
		t.Fatalf("expected s2 still active before s3, got %q", prev)
	}
}
