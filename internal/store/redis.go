package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"finsync/internal/model"

	"github.com/redis/go-redis/v9"
)

const credentialKeyPrefix = "finsync:credential:"

// RedisCredentialStore keeps one JSON credential record per user under
// finsync:credential:<user id>. It implements gmail.CredentialStore.
type RedisCredentialStore struct {
	rdb *redis.Client
}

// RedisOptions selects the Redis server.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
}

func NewRedisCredentialStore(opts RedisOptions) *RedisCredentialStore {
	return &RedisCredentialStore{rdb: redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})}
}

// Ping checks connectivity.
func (s *RedisCredentialStore) Ping(ctx context.Context) error {
	if err := s.rdb.Ping(ctx).Err(); err != nil {
		return unavailable("ping redis", err)
	}
	return nil
}

func (s *RedisCredentialStore) Close() error { return s.rdb.Close() }

type credentialRecord struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	TokenType    string    `json:"token_type,omitempty"`
	Expiry       time.Time `json:"expiry,omitzero"`
	Scopes       []string  `json:"scopes,omitempty"`
}

func (s *RedisCredentialStore) PutCredential(ctx context.Context, userID string, c model.Credential) error {
	b, err := json.Marshal(credentialRecord(c))
	if err != nil {
		return fmt.Errorf("encode credential: %w", err)
	}
	if err := s.rdb.Set(ctx, credentialKeyPrefix+userID, b, 0).Err(); err != nil {
		return unavailable("put credential", err)
	}
	return nil
}

func (s *RedisCredentialStore) GetCredential(ctx context.Context, userID string) (model.Credential, error) {
	b, err := s.rdb.Get(ctx, credentialKeyPrefix+userID).Bytes()
	if errors.Is(err, redis.Nil) {
		return model.Credential{}, model.ErrCredentialNotFound
	}
	if err != nil {
		return model.Credential{}, unavailable("get credential", err)
	}
	var rec credentialRecord
	if err := json.Unmarshal(b, &rec); err != nil {
		return model.Credential{}, fmt.Errorf("decode credential for %s: %w", userID, err)
	}
	return model.Credential(rec), nil
}

func (s *RedisCredentialStore) DeleteCredential(ctx context.Context, userID string) error {
	if err := s.rdb.Del(ctx, credentialKeyPrefix+userID).Err(); err != nil {
		return unavailable("delete credential", err)
	}
	return nil
}
