package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// ErrCampaignBusy is returned when another worker holds the campaign lock.
var ErrCampaignBusy = errors.New("campaign delivery already in progress")

// Only the owner token may delete the key.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Extends the TTL only while the caller still owns the key.
var extendScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// CampaignLocker serialises deliveries of the same campaign across workers.
type CampaignLocker interface {
	Acquire(ctx context.Context, campaignID int) (release func(), err error)
}

// RedisLocker takes a SET NX lock per campaign with a TTL so a crashed
// worker cannot hold it forever. While held, the TTL is extended every
// RenewInterval, so a run longer than TTL keeps the lock.
type RedisLocker struct {
	Client        redis.UniversalClient
	TTL           time.Duration
	RenewInterval time.Duration
	Logger        *zap.Logger
}

func NewRedisLocker(client redis.UniversalClient, ttl time.Duration) *RedisLocker {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &RedisLocker{Client: client, TTL: ttl, RenewInterval: ttl / 3, Logger: zap.NewNop()}
}

func Key(campaignID int) string {
	return fmt.Sprintf("delivery:lock:%d", campaignID)
}

func (l *RedisLocker) Acquire(ctx context.Context, campaignID int) (func(), error) {
	key := Key(campaignID)
	token := uuid.NewString()

	ok, err := l.Client.SetNX(ctx, key, token, l.TTL).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire lock %s: %w", key, err)
	}
	if !ok {
		return nil, ErrCampaignBusy
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	go l.keepAlive(key, token, stop, done)

	var once sync.Once
	release := func() {
		once.Do(func() {
			close(stop)
			<-done
			// the job context may already be done
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = releaseScript.Run(ctx, l.Client, []string{key}, token).Err()
		})
	}
	return release, nil
}

// keepAlive extends the key until stop is closed or ownership is lost.
func (l *RedisLocker) keepAlive(key, token string, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	interval := l.RenewInterval
	if interval <= 0 || interval >= l.TTL {
		interval = l.TTL / 3
	}
	if interval <= 0 {
		interval = time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log := l.Logger
	if log == nil {
		log = zap.NewNop()
	}

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), interval)
			n, err := extendScript.Run(ctx, l.Client, []string{key}, token, l.TTL.Milliseconds()).Int()
			cancel()
			switch {
			case err != nil:
				// transient; the next tick tries again while the TTL lasts
				log.Warn("extend campaign lock", zap.String("key", key), zap.Error(err))
			case n == 0:
				log.Error("campaign lock lost", zap.String("key", key))
				return
			}
		}
	}
}

// NoopLocker is used when no Redis is configured.
type NoopLocker struct{}

func (NoopLocker) Acquire(context.Context, int) (func(), error) {
	return func() {}, nil
}

var (
	_ CampaignLocker = (*RedisLocker)(nil)
	_ CampaignLocker = NoopLocker{}
)
