package gateway

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"maba-auth/internal/domain"

	"github.com/redis/go-redis/v9"
)

// profileKeyPrefix namespaces profile documents in Redis.
const profileKeyPrefix = "users:"

// RedisProfileStore implements domain.ProfileStore over Redis hashes.
// One hash per user, keyed by identity ID.
type RedisProfileStore struct {
	client redis.UniversalClient
}

// NewRedisProfileStore creates a profile store backed by the given client.
func NewRedisProfileStore(client redis.UniversalClient) *RedisProfileStore {
	return &RedisProfileStore{client: client}
}

func profileKey(id string) string { return profileKeyPrefix + id }

// Get returns the profile for id, or nil when the document is absent.
func (s *RedisProfileStore) Get(ctx context.Context, id string) (domain.Profile, error) {
	fields, err := s.client.HGetAll(ctx, profileKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: hgetall: %w", domain.ErrProfileStore, err)
	}
	if len(fields) == 0 {
		return nil, nil
	}
	return domain.Profile(fields), nil
}

// Ensure creates the profile document with default fields merged with the
// caller's overrides. Existing documents are never touched, so fields written
// earlier survive later sign-ins.
func (s *RedisProfileStore) Ensure(ctx context.Context, id string, fields domain.Profile) error {
	key := profileKey(id)

	exists, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("%w: exists: %w", domain.ErrProfileStore, err)
	}
	if exists > 0 {
		return nil
	}

	doc := domain.Profile{
		domain.ProfileFieldDisplayName:      "",
		domain.ProfileFieldEmail:            "",
		domain.ProfileFieldRole:             domain.RoleStudent,
		domain.ProfileFieldModulesCompleted: "0",
		domain.ProfileFieldCurrentModule:    "1",
		domain.ProfileFieldCreatedAt:        time.Now().UTC().Format(time.RFC3339),
	}
	for k, v := range fields {
		doc[k] = v
	}

	values := make(map[string]string, len(doc))
	for k, v := range doc {
		values[k] = v
	}
	if err := s.client.HSet(ctx, key, values).Err(); err != nil {
		return fmt.Errorf("%w: hset: %w", domain.ErrProfileStore, err)
	}
	return nil
}

// AddModuleProgress increments the completed-module counter and advances the
// current module pointer. Returns the new completed count.
func (s *RedisProfileStore) AddModuleProgress(ctx context.Context, id string, completed int) (int, error) {
	key := profileKey(id)

	exists, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: exists: %w", domain.ErrProfileStore, err)
	}
	if exists == 0 {
		return 0, domain.ErrProfileNotFound
	}

	total, err := s.client.HIncrBy(ctx, key, domain.ProfileFieldModulesCompleted, int64(completed)).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: hincrby: %w", domain.ErrProfileStore, err)
	}
	if err := s.client.HSet(ctx, key, domain.ProfileFieldCurrentModule, strconv.FormatInt(total+1, 10)).Err(); err != nil {
		return 0, fmt.Errorf("%w: hset: %w", domain.ErrProfileStore, err)
	}
	return int(total), nil
}
