package guard

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

var _ Counter = (*RedisCounter)(nil)

// INCR and PEXPIRE run in one script so a window can never be left
// without a TTL.
var incrWindow = redis.NewScript(`
local n = redis.call('INCR', KEYS[1])
if n == 1 or redis.call('PTTL', KEYS[1]) < 0 then
	redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
return n
`)

// RedisCounter shares windows between every web node.
type RedisCounter struct {
	client redis.Scripter
	prefix string
}

func NewRedisCounter(client redis.Scripter, prefix string) *RedisCounter {
	if prefix == "" {
		prefix = "ffb:"
	}
	return &RedisCounter{client: client, prefix: prefix}
}

func (c *RedisCounter) Increment(ctx context.Context, key string, window time.Duration) (int64, error) {
	return incrWindow.Run(ctx, c.client, []string{c.prefix + key}, window.Milliseconds()).Int64()
}
