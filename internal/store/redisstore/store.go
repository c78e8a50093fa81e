package redisstore

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	captchaTTL   = 10 * time.Minute
	resetCodeTTL = 15 * time.Minute
)

type Store struct {
	rdb *redis.Client
}

func New(addr, password string, db int) *Store {
	return &Store{
		rdb: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
			DB:       db,
		}),
	}
}

func (s *Store) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

func (s *Store) Close() error { return s.rdb.Close() }

// Signup captchas, keyed by email. Overwriting an unexpired code is fine:
// the most recently mailed code is the valid one.

func (s *Store) SetCaptcha(ctx context.Context, email, code string) error {
	return s.rdb.Set(ctx, "captcha:"+email, code, captchaTTL).Err()
}

func (s *Store) GetCaptcha(ctx context.Context, email string) (string, error) {
	return s.rdb.Get(ctx, "captcha:"+email).Result()
}

func (s *Store) DeleteCaptcha(ctx context.Context, email string) error {
	return s.rdb.Del(ctx, "captcha:"+email).Err()
}

// Password-reset codes, same shape with a longer TTL.

func (s *Store) SetResetCode(ctx context.Context, email, code string) error {
	return s.rdb.Set(ctx, "pwreset:"+email, code, resetCodeTTL).Err()
}

func (s *Store) GetResetCode(ctx context.Context, email string) (string, error) {
	return s.rdb.Get(ctx, "pwreset:"+email).Result()
}

func (s *Store) DeleteResetCode(ctx context.Context, email string) error {
	return s.rdb.Del(ctx, "pwreset:"+email).Err()
}
