package lock

import (
	"context"
	"fmt"
	"sync"
	"time"

	apperr "github.com/realestateinvestorceo/FirstPulse1.2/internal/errors"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// releaseScript deletes the key only while it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// extendScript pushes the expiry out only while the key still holds our token.
var extendScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// RedisOptions tunes a RedisLocker.
type RedisOptions struct {
	Prefix string
	// TTL bounds how long a crashed holder keeps the lock. A live holder
	// renews it every TTL/3 until unlock.
	TTL time.Duration
	// Retry is the poll interval while the lock is held elsewhere.
	Retry time.Duration
	// Wait caps total acquisition time. Zero waits for ctx only.
	Wait time.Duration
}

// RedisLocker is a Locker shared by every engine process using the same Redis.
type RedisLocker struct {
	client redis.UniversalClient
	opts   RedisOptions
	log    *zap.Logger
}

// NewRedisLocker returns a locker backed by client.
func NewRedisLocker(client redis.UniversalClient, opts RedisOptions, log *zap.Logger) *RedisLocker {
	if opts.Prefix == "" {
		opts.Prefix = "firstpulse:lock:"
	}
	if opts.TTL <= 0 {
		opts.TTL = 30 * time.Second
	}
	if opts.Retry <= 0 {
		opts.Retry = 50 * time.Millisecond
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &RedisLocker{client: client, opts: opts, log: log}
}

// Lock polls SET NX until it wins, ctx ends or the wait budget runs out.
func (r *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	if r.opts.Wait > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.opts.Wait)
		defer cancel()
	}

	name := r.opts.Prefix + key
	token := uuid.NewString()
	ticker := time.NewTicker(r.opts.Retry)
	defer ticker.Stop()

	for {
		ok, err := r.client.SetNX(ctx, name, token, r.opts.TTL).Result()
		if err != nil && ctx.Err() == nil {
			return nil, apperr.Wrap(err, apperr.CodeUnavailable, "acquire lock %q", key)
		}
		if ok {
			break
		}
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return nil, apperr.Wrap(ctx.Err(), apperr.CodeUnavailable, "account %q is busy", key)
		}
	}

	done := make(chan struct{})
	renewed := make(chan struct{})
	go r.renew(name, key, token, done, renewed)

	var once sync.Once
	return func() {
		once.Do(func() {
			close(done)
			<-renewed
			rctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			if err := releaseScript.Run(rctx, r.client, []string{name}, token).Err(); err != nil {
				r.log.Warn("lock release failed", zap.String("key", key), zap.Error(err))
			}
		})
	}, nil
}

// renew keeps the lease alive until done is closed or the lease is lost.
func (r *RedisLocker) renew(name, key, token string, done <-chan struct{}, exited chan<- struct{}) {
	defer close(exited)
	ticker := time.NewTicker(r.opts.TTL / 3)
	defer ticker.Stop()
	ttl := r.opts.TTL.Milliseconds()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
		}
		ctx, cancel := context.WithTimeout(context.Background(), r.opts.TTL/3)
		n, err := extendScript.Run(ctx, r.client, []string{name}, token, ttl).Int()
		cancel()
		switch {
		case err != nil:
			r.log.Warn("lock renewal failed", zap.String("key", key), zap.Error(err))
		case n == 0:
			r.log.Error("lock lease lost", zap.String("key", key))
			return
		}
	}
}

// NewRedisClient builds a client with the pool settings used across services.
func NewRedisClient(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})
}

// Ping checks the Redis connection.
func Ping(ctx context.Context, client redis.UniversalClient) error {
	if err := client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}
