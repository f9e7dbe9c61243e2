package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/harentsoaR/renalcare-api/internal/models"
)

// expiredRetention keeps an entry in Redis past its expiry so that a late
// verify reports "expired" rather than "not found".
const expiredRetention = time.Hour

// RedisOTPStore shares codes between several API instances.
type RedisOTPStore struct {
	client redis.UniversalClient
	prefix string
	opts   otpOptions
}

func NewRedisOTPStore(client redis.UniversalClient, opts ...OTPOption) *RedisOTPStore {
	return &RedisOTPStore{client: client, prefix: "otp:register:", opts: buildOTPOptions(opts)}
}

func (s *RedisOTPStore) key(identity string) string {
	return s.prefix + identity
}

func (s *RedisOTPStore) Issue(ctx context.Context, identity, role string) (string, error) {
	entry, err := s.opts.newEntry(role)
	if err != nil {
		return "", err
	}
	raw, err := json.Marshal(entry)
	if err != nil {
		return "", err
	}
	if err := s.client.Set(ctx, s.key(identity), raw, s.opts.ttl+expiredRetention).Err(); err != nil {
		return "", fmt.Errorf("store otp: %w", err)
	}
	return entry.Code, nil
}

func (s *RedisOTPStore) Verify(ctx context.Context, identity, code string) (string, error) {
	raw, err := s.client.Get(ctx, s.key(identity)).Bytes()
	if errors.Is(err, redis.Nil) {
		return "", models.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("load otp: %w", err)
	}

	var entry otpEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return "", fmt.Errorf("decode otp: %w", err)
	}
	if err := entry.check(s.opts.now(), code); err != nil {
		if errors.Is(err, models.ErrExpired) {
			if _, derr := s.evict(ctx, identity, raw); derr != nil {
				return "", errors.Join(err, derr)
			}
		}
		return "", err
	}
	return entry.Role, nil
}

// evictScript deletes the key only while it still holds the value that was read.
const evictScript = `
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("del", KEYS[1])
	else
		return 0
	end
`

// evict removes the entry read as raw unless a newer Issue replaced it.
func (s *RedisOTPStore) evict(ctx context.Context, identity string, raw []byte) (bool, error) {
	n, err := s.client.Eval(ctx, evictScript, []string{s.key(identity)}, raw).Int()
	if err != nil {
		return false, fmt.Errorf("evict otp: %w", err)
	}
	return n == 1, nil
}

func (s *RedisOTPStore) Clear(ctx context.Context, identity string) error {
	return s.client.Del(ctx, s.key(identity)).Err()
}
