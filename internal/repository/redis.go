package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jack/golang-campaign-redirect-service/internal/cache"
	"github.com/jack/golang-campaign-redirect-service/internal/config"
	"github.com/redis/go-redis/v9"
)

const (
	pendingClicksPrefix  = "clicks:pending:"
	inflightClicksPrefix = "clicks:inflight:"
)

// In-flight batches are stored as "<token>:<clicks>" under the URL id.

// readScript returns pending plus in-flight clicks of one URL. When ARGV[2] is given
// it is added to the pending count first.
var readScript = redis.NewScript(`
local total
if ARGV[2] then
	total = redis.call('HINCRBY', KEYS[1], ARGV[1], ARGV[2])
else
	total = tonumber(redis.call('HGET', KEYS[1], ARGV[1]) or '0')
end
local v = redis.call('HGET', KEYS[2], ARGV[1])
if v then
	total = total + tonumber(string.match(v, ':(%d+)$'))
end
return total
`)

// beginScript returns the uncommitted batch of a URL, or moves the pending count into
// a new batch with token ARGV[2].
var beginScript = redis.NewScript(`
local v = redis.call('HGET', KEYS[2], ARGV[1])
if v then
	return v
end
local n = tonumber(redis.call('HGET', KEYS[1], ARGV[1]) or '0')
if n <= 0 then
	return false
end
redis.call('HDEL', KEYS[1], ARGV[1])
v = ARGV[2] .. ':' .. n
redis.call('HSET', KEYS[2], ARGV[1], v)
return v
`)

// commitScript drops the in-flight batch only if it still carries token ARGV[2].
var commitScript = redis.NewScript(`
local v = redis.call('HGET', KEYS[1], ARGV[1])
if v and string.sub(v, 1, string.len(ARGV[2]) + 1) == ARGV[2] .. ':' then
	redis.call('HDEL', KEYS[1], ARGV[1])
	return 1
end
return 0
`)

type RedisRepository struct {
	client      *redis.Client
	pendingKey  string
	inflightKey string
}

var _ cache.PendingClicks = (*RedisRepository)(nil)

func NewRedisRepository(cfg *config.RedisConfig, instanceID string) (*RedisRepository, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return NewRedisRepositoryFromClient(client, instanceID), nil
}

// NewRedisRepositoryFromClient wraps an existing client. Pending clicks are kept per
// instance so two replicas never flush the same counter.
func NewRedisRepositoryFromClient(client *redis.Client, instanceID string) *RedisRepository {
	return &RedisRepository{
		client:      client,
		pendingKey:  pendingClicksPrefix + instanceID,
		inflightKey: inflightClicksPrefix + instanceID,
	}
}

func (r *RedisRepository) Close() error {
	return r.client.Close()
}

func (r *RedisRepository) Client() *redis.Client {
	return r.client
}

func (r *RedisRepository) keys() []string {
	return []string{r.pendingKey, r.inflightKey}
}

// Add increments the uncommitted click count of a URL and returns the new total
func (r *RedisRepository) Add(ctx context.Context, urlID int64, n int64) (int64, error) {
	total, err := readScript.Run(ctx, r.client, r.keys(), strconv.FormatInt(urlID, 10), n).Int64()
	if err != nil {
		return 0, fmt.Errorf("failed to add pending clicks: %w", err)
	}
	return total, nil
}

func (r *RedisRepository) Get(ctx context.Context, urlID int64) (int64, error) {
	total, err := readScript.Run(ctx, r.client, r.keys(), strconv.FormatInt(urlID, 10)).Int64()
	if err != nil {
		return 0, fmt.Errorf("failed to get pending clicks: %w", err)
	}
	return total, nil
}

// Snapshot returns every URL with pending or in-flight clicks
func (r *RedisRepository) Snapshot(ctx context.Context) (map[int64]int64, error) {
	var pending, inflight *redis.MapStringStringCmd
	_, err := r.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		pending = pipe.HGetAll(ctx, r.pendingKey)
		inflight = pipe.HGetAll(ctx, r.inflightKey)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read pending clicks: %w", err)
	}

	out := make(map[int64]int64, len(pending.Val()))
	for field, value := range pending.Val() {
		id, err := strconv.ParseInt(field, 10, 64)
		if err != nil {
			continue
		}
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil || n <= 0 {
			continue
		}
		out[id] = n
	}
	for field, value := range inflight.Val() {
		id, err := strconv.ParseInt(field, 10, 64)
		if err != nil {
			continue
		}
		b, err := parseBatch(id, value)
		if err != nil {
			continue
		}
		out[id] += b.Clicks
	}
	return out, nil
}

// Begin hands out the in-flight batch of a URL, creating one from the pending count
// when none is left over from an earlier flush.
func (r *RedisRepository) Begin(ctx context.Context, urlID int64, token string) (cache.FlushBatch, error) {
	v, err := beginScript.Run(ctx, r.client, r.keys(), strconv.FormatInt(urlID, 10), token).Text()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return cache.FlushBatch{URLID: urlID}, nil
		}
		return cache.FlushBatch{}, fmt.Errorf("failed to begin click flush: %w", err)
	}
	return parseBatch(urlID, v)
}

// Commit removes a flushed batch once the store has acknowledged it
func (r *RedisRepository) Commit(ctx context.Context, batch cache.FlushBatch) error {
	if err := commitScript.Run(ctx, r.client, []string{r.inflightKey}, strconv.FormatInt(batch.URLID, 10), batch.Token).Err(); err != nil {
		return fmt.Errorf("failed to commit pending clicks: %w", err)
	}
	return nil
}

// Discard drops the pending and in-flight clicks of a URL that no longer exists
func (r *RedisRepository) Discard(ctx context.Context, urlID int64) error {
	field := strconv.FormatInt(urlID, 10)
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HDel(ctx, r.pendingKey, field)
		pipe.HDel(ctx, r.inflightKey, field)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to discard pending clicks: %w", err)
	}
	return nil
}

func parseBatch(urlID int64, v string) (cache.FlushBatch, error) {
	i := strings.LastIndexByte(v, ':')
	if i <= 0 {
		return cache.FlushBatch{}, fmt.Errorf("malformed in-flight batch %q", v)
	}
	n, err := strconv.ParseInt(v[i+1:], 10, 64)
	if err != nil {
		return cache.FlushBatch{}, fmt.Errorf("malformed in-flight batch %q: %w", v, err)
	}
	return cache.FlushBatch{URLID: urlID, Token: v[:i], Clicks: n}, nil
}

func (r *RedisRepository) Health(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
