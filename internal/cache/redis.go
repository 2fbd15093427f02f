package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

type Client struct {
	rdb    *redis.Client
	prefix string
}

func NewClient(rdb *redis.Client, prefix string) *Client {
	return &Client{rdb: rdb, prefix: prefix}
}

func (c *Client) key(parts ...string) string {
	k := c.prefix
	for _, p := range parts {
		k += ":" + p
	}
	return k
}

func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

func (c *Client) Close() error {
	return c.rdb.Close()
}

// -----------------------------
// Rate limiting
// -----------------------------

const luaRateLimit = `
local current = redis.call("incr", KEYS[1])
if current == 1 then
  redis.call("pexpire", KEYS[1], ARGV[1])
end
return current
`

var rateScript = redis.NewScript(luaRateLimit)

// Allow counts one hit against bucket and reports whether it is still
// within limit for the current window.
func (c *Client) Allow(ctx context.Context, bucket string, limit int, window time.Duration) (bool, error) {
	n, err := rateScript.Run(ctx, c.rdb, []string{c.key("rate", bucket)}, window.Milliseconds()).Int()
	if err != nil {
		return false, err
	}
	return n <= limit, nil
}

// -----------------------------
// Presence per workspace
// -----------------------------

// MarkOnline counts one more live connection of userID in workspaceID.
func (c *Client) MarkOnline(ctx context.Context, workspaceID, userID string) error {
	key := c.key("presence", workspaceID)
	pipe := c.rdb.TxPipeline()
	pipe.HIncrBy(ctx, key, userID, 1)
	pipe.Expire(ctx, key, 24*time.Hour)
	_, err := pipe.Exec(ctx)
	return err
}

// MarkOffline drops one connection and forgets the user at zero.
func (c *Client) MarkOffline(ctx context.Context, workspaceID, userID string) error {
	key := c.key("presence", workspaceID)
	n, err := c.rdb.HIncrBy(ctx, key, userID, -1).Result()
	if err != nil {
		return err
	}
	if n <= 0 {
		return c.rdb.HDel(ctx, key, userID).Err()
	}
	return nil
}

func (c *Client) OnlineUsers(ctx context.Context, workspaceID string) ([]string, error) {
	vals, err := c.rdb.HGetAll(ctx, c.key("presence", workspaceID)).Result()
	if err != nil {
		return nil, fmt.Errorf("online users: %w", err)
	}
	out := make([]string, 0, len(vals))
	for uid, raw := range vals {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			out = append(out, uid)
		}
	}
	return out, nil
}

// -----------------------------
// Single-use tokens
// -----------------------------

func (c *Client) StoreRefreshToken(ctx context.Context, userID, tokenID string, ttl time.Duration) error {
	return c.rdb.Set(ctx, c.key("refresh", tokenID), userID, ttl).Err()
}

// ConsumeRefreshToken deletes the token and reports whether it existed for
// userID. A second call for the same token returns false.
func (c *Client) ConsumeRefreshToken(ctx context.Context, userID, tokenID string) (bool, error) {
	owner, err := c.rdb.GetDel(ctx, c.key("refresh", tokenID)).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return owner == userID, nil
}

func (c *Client) RevokeRefreshToken(ctx context.Context, tokenID string) error {
	return c.rdb.Del(ctx, c.key("refresh", tokenID)).Err()
}

func (c *Client) StoreOAuthState(ctx context.Context, state, provider string, ttl time.Duration) error {
	return c.rdb.Set(ctx, c.key("oauth_state", state), provider, ttl).Err()
}

// ConsumeOAuthState returns the provider the state was issued for, or ""
// when it is unknown or already used.
func (c *Client) ConsumeOAuthState(ctx context.Context, state string) (string, error) {
	provider, err := c.rdb.GetDel(ctx, c.key("oauth_state", state)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return provider, err
}
