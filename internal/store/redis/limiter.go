// Copyright 2026 The EHSAdmin Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package redis holds the Redis-backed rate limit store shared by every
// server instance.
package redis

import (
	"context"
	"fmt"
	"math"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// tokenBucket refills fractional tokens, so low rates still progress.
//
// KEYS[1] bucket key; ARGV[1] burst; ARGV[2] tokens per second;
// ARGV[3] now in ms; ARGV[4] key ttl in ms. Returns 1 when allowed.
var tokenBucket = goredis.NewScript(`
local key = KEYS[1]
local burst = tonumber(ARGV[1])
local rate = tonumber(ARGV[2])
local now = tonumber(ARGV[3])
local ttl = tonumber(ARGV[4])
local bucket = redis.call('HMGET', key, 'tokens', 'last')
local tokens = tonumber(bucket[1]) or burst
local last = tonumber(bucket[2]) or now
local elapsed = math.max(0, now - last) / 1000
tokens = math.min(burst, tokens + elapsed * rate)
local allowed = 0
if tokens >= 1 then
  tokens = tokens - 1
  allowed = 1
end
redis.call('HSET', key, 'tokens', tostring(tokens), 'last', now)
redis.call('PEXPIRE', key, ttl)
return allowed
`)

// Limiter is a distributed token bucket.
type Limiter struct {
	client goredis.Scripter
	prefix string
	rps    float64
	burst  int
	now    func() time.Time
}

// NewLimiter creates a limiter over client. Keys are stored under prefix.
func NewLimiter(client goredis.Scripter, prefix string, rps float64, burst int) *Limiter {
	return &Limiter{client: client, prefix: prefix, rps: rps, burst: burst, now: time.Now}
}

// Connect parses a redis:// URL and pings the server.
func Connect(ctx context.Context, url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	client := goredis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return client, nil
}

// Allow takes one token from key's bucket.
func (l *Limiter) Allow(ctx context.Context, key string) (bool, error) {
	// a drained bucket refills within burst/rps seconds; keep it a little longer
	ttl := int64(math.Ceil(float64(l.burst)/l.rps*1000)) + 1000
	res, err := tokenBucket.Run(ctx, l.client,
		[]string{l.prefix + ":" + key},
		l.burst, l.rps, l.now().UnixMilli(), ttl,
	).Int64()
	if err != nil {
		return false, fmt.Errorf("rate limit script failed: %w", err)
	}
	return res == 1, nil
}
