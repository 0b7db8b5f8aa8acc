// Package directory maps location keys to rooms and tracks per-room member
// counters. The backing store is shared by every engine instance, so
// find-or-create must be atomic at the store, not behind a process lock.
package directory

import (
	"context"
	"errors"
	"time"

	"github.com/hodanmillion/TapIn2025-sub000/domain/chat"
)

// ErrRoomNotFound is returned when a room id has no record.
var ErrRoomNotFound = errors.New("room not found")

// Store is the backing-store contract. Implementations must be safe for
// concurrent callers from unrelated connections and processes.
type Store interface {
	// UpsertIfAbsent atomically inserts the record under key if no record
	// exists yet, returning the stored record and whether this call created
	// it. Racing creators converge on one record; the loser's insert is
	// discarded.
	UpsertIfAbsent(ctx context.Context, key string, record chat.Room) (chat.Room, bool, error)
	// AdjustUserCount applies delta to the room's member counter, flooring
	// at zero, and returns the new value.
	AdjustUserCount(ctx context.Context, roomID string, delta int64) (int64, error)
	// Get returns the room record stored under key.
	Get(ctx context.Context, key string) (chat.Room, error)
}

// RoomInfo is the result of a resolve-or-create call. IsNew is true only
// for the single caller that performed the creation.
type RoomInfo struct {
	Room  chat.Room
	IsNew bool
}

// RoomStatus describes a room for the joined response and the REST surface.
type RoomStatus struct {
	RoomID    string    `json:"room_id"`
	UserCount int64     `json:"user_count"`
	CreatedAt time.Time `json:"created_at"`
}

// Directory resolves location keys to rooms.
type Directory struct {
	store Store
}

// New creates a Directory over the given store.
func New(store Store) *Directory {
	return &Directory{store: store}
}

// ResolveOrCreate returns the room for a location key, creating it if this
// is the first join ever seen for that key.
func (d *Directory) ResolveOrCreate(ctx context.Context, key chat.LocationKey) (RoomInfo, error) {
	record := chat.Room{
		ID:          key.RoomID(),
		LocationKey: key.String(),
		CreatedAt:   time.Now().UTC(),
	}
	room, created, err := d.store.UpsertIfAbsent(ctx, key.String(), record)
	if err != nil {
		return RoomInfo{}, err
	}
	return RoomInfo{Room: room, IsNew: created}, nil
}

// Join increments the room's member counter and returns the new count.
func (d *Directory) Join(ctx context.Context, roomID string) (int64, error) {
	return d.store.AdjustUserCount(ctx, roomID, 1)
}

// Leave decrements the room's member counter. A leave without a matching
// join is a no-op at zero, so partial teardown cannot drive the counter
// negative.
func (d *Directory) Leave(ctx context.Context, roomID string) (int64, error) {
	return d.store.AdjustUserCount(ctx, roomID, -1)
}

// Describe reports the current state of a room.
func (d *Directory) Describe(ctx context.Context, roomID string) (RoomStatus, error) {
	key, err := chat.ParseLocationKey(roomID)
	if err != nil {
		return RoomStatus{}, ErrRoomNotFound
	}
	room, err := d.store.Get(ctx, key.String())
	if err != nil {
		return RoomStatus{}, err
	}
	count, err := d.store.AdjustUserCount(ctx, roomID, 0)
	if err != nil {
		return RoomStatus{}, err
	}
	return RoomStatus{RoomID: room.ID, UserCount: count, CreatedAt: room.CreatedAt}, nil
}
