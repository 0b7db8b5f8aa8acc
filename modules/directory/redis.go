package directory

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/hodanmillion/TapIn2025-sub000/domain/chat"
)

const (
	recordKeyPrefix  = "rooms:key:"
	counterKeyPrefix = "rooms:count:"
)

// adjustScript applies a delta to a counter and floors the result at zero.
// Running it server-side keeps decrement-with-floor atomic across engine
// instances.
var adjustScript = redis.NewScript(`
local c = redis.call('INCRBY', KEYS[1], ARGV[1])
if c < 0 then
  redis.call('SET', KEYS[1], '0')
  c = 0
end
return c
`)

// RedisStore implements Store against a shared Redis instance.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a RedisStore over an existing client.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// UpsertIfAbsent uses SETNX of the serialized record: exactly one of any
// number of racing creators wins, and everyone else reads the winner's
// record back.
func (s *RedisStore) UpsertIfAbsent(ctx context.Context, key string, record chat.Room) (chat.Room, bool, error) {
	data, err := json.Marshal(record)
	if err != nil {
		return chat.Room{}, false, fmt.Errorf("marshal room record: %w", err)
	}

	created, err := s.client.SetNX(ctx, recordKeyPrefix+key, data, 0).Result()
	if err != nil {
		return chat.Room{}, false, fmt.Errorf("room upsert: %w", err)
	}
	if created {
		return record, true, nil
	}

	existing, err := s.Get(ctx, key)
	if err != nil {
		return chat.Room{}, false, err
	}
	return existing, false, nil
}

// AdjustUserCount applies delta with a zero floor.
func (s *RedisStore) AdjustUserCount(ctx context.Context, roomID string, delta int64) (int64, error) {
	count, err := adjustScript.Run(ctx, s.client, []string{counterKeyPrefix + roomID}, delta).Int64()
	if err != nil {
		return 0, fmt.Errorf("adjust user count: %w", err)
	}
	return count, nil
}

// Get returns the room record stored under key.
func (s *RedisStore) Get(ctx context.Context, key string) (chat.Room, error) {
	data, err := s.client.Get(ctx, recordKeyPrefix+key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return chat.Room{}, ErrRoomNotFound
		}
		return chat.Room{}, fmt.Errorf("room get: %w", err)
	}

	var room chat.Room
	if err := json.Unmarshal(data, &room); err != nil {
		return chat.Room{}, fmt.Errorf("unmarshal room record: %w", err)
	}
	return room, nil
}
