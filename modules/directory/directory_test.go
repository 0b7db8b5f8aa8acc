package directory

import (
	"context"
	"sync"
	"testing"

	"github.com/hodanmillion/TapIn2025-sub000/domain/chat"
)

func TestResolveOrCreate_CoordinateKey(t *testing.T) {
	ctx := context.Background()
	dir := New(NewMemoryStore())

	key := chat.Coordinate{Lat: 40.7589, Lon: -73.9851}
	info, err := dir.ResolveOrCreate(ctx, key)
	if err != nil {
		t.Fatalf("ResolveOrCreate() error: %v", err)
	}

	if info.Room.ID != "40.7589_-73.9851" {
		t.Errorf("room ID = %q, want %q", info.Room.ID, "40.7589_-73.9851")
	}
	if !info.IsNew {
		t.Error("first resolve should report IsNew = true")
	}
	if info.Room.CreatedAt.IsZero() {
		t.Error("room CreatedAt should be set")
	}

	again, err := dir.ResolveOrCreate(ctx, key)
	if err != nil {
		t.Fatalf("ResolveOrCreate() second call error: %v", err)
	}
	if again.IsNew {
		t.Error("second resolve should report IsNew = false")
	}
	if again.Room.ID != info.Room.ID {
		t.Errorf("second resolve room ID = %q, want %q", again.Room.ID, info.Room.ID)
	}
}

func TestResolveOrCreate_HexKey(t *testing.T) {
	ctx := context.Background()
	dir := New(NewMemoryStore())

	info, err := dir.ResolveOrCreate(ctx, chat.HexCell{ID: "882a100d25fffff", Resolution: 8})
	if err != nil {
		t.Fatalf("ResolveOrCreate() error: %v", err)
	}
	if info.Room.ID != "882a100d25fffff" {
		t.Errorf("room ID = %q, want hex cell id", info.Room.ID)
	}
}

func TestResolveOrCreate_ConcurrentFirstJoiners(t *testing.T) {
	ctx := context.Background()
	dir := New(NewMemoryStore())
	key := chat.Coordinate{Lat: 51.5074, Lon: -0.1278}

	const racers = 32
	var wg sync.WaitGroup
	results := make([]RoomInfo, racers)
	errs := make([]error, racers)

	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = dir.ResolveOrCreate(ctx, key)
		}(i)
	}
	wg.Wait()

	creators := 0
	for i := 0; i < racers; i++ {
		if errs[i] != nil {
			t.Fatalf("racer %d error: %v", i, errs[i])
		}
		if results[i].Room.ID != results[0].Room.ID {
			t.Errorf("racer %d got room %q, want %q", i, results[i].Room.ID, results[0].Room.ID)
		}
		if results[i].IsNew {
			creators++
		}
	}
	if creators != 1 {
		t.Errorf("expected exactly one creator, got %d", creators)
	}
}

func TestJoinLeaveCounter(t *testing.T) {
	ctx := context.Background()
	dir := New(NewMemoryStore())

	info, err := dir.ResolveOrCreate(ctx, chat.Coordinate{Lat: 1, Lon: 2})
	if err != nil {
		t.Fatalf("ResolveOrCreate() error: %v", err)
	}
	roomID := info.Room.ID

	count, err := dir.Join(ctx, roomID)
	if err != nil {
		t.Fatalf("Join() error: %v", err)
	}
	if count != 1 {
		t.Errorf("Join() count = %d, want 1", count)
	}

	count, err = dir.Join(ctx, roomID)
	if err != nil {
		t.Fatalf("Join() error: %v", err)
	}
	if count != 2 {
		t.Errorf("second Join() count = %d, want 2", count)
	}

	count, err = dir.Leave(ctx, roomID)
	if err != nil {
		t.Fatalf("Leave() error: %v", err)
	}
	if count != 1 {
		t.Errorf("Leave() count = %d, want 1", count)
	}
}

func TestLeaveFloorsAtZero(t *testing.T) {
	ctx := context.Background()
	dir := New(NewMemoryStore())

	// Leave without a preceding join must be a no-op at zero.
	count, err := dir.Leave(ctx, "40.0_-70.0")
	if err != nil {
		t.Fatalf("Leave() error: %v", err)
	}
	if count != 0 {
		t.Errorf("Leave() on empty room count = %d, want 0", count)
	}
}

func TestDescribe(t *testing.T) {
	ctx := context.Background()
	dir := New(NewMemoryStore())

	info, err := dir.ResolveOrCreate(ctx, chat.Coordinate{Lat: 40.7589, Lon: -73.9851})
	if err != nil {
		t.Fatalf("ResolveOrCreate() error: %v", err)
	}
	if _, err := dir.Join(ctx, info.Room.ID); err != nil {
		t.Fatalf("Join() error: %v", err)
	}

	status, err := dir.Describe(ctx, info.Room.ID)
	if err != nil {
		t.Fatalf("Describe() error: %v", err)
	}
	if status.UserCount != 1 {
		t.Errorf("Describe() user count = %d, want 1", status.UserCount)
	}
	if status.RoomID != info.Room.ID {
		t.Errorf("Describe() room ID = %q, want %q", status.RoomID, info.Room.ID)
	}

	if _, err := dir.Describe(ctx, "0.0_0.0"); err != ErrRoomNotFound {
		t.Errorf("Describe(unknown) error = %v, want %v", err, ErrRoomNotFound)
	}
}
