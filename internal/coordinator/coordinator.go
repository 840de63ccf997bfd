// Package coordinator wraps the shared queue/KV store the worker fleet
// leases requests from. It is treated as an opaque client: sorted-set
// pop-minimum, list push/pop, key expiration, and pipelined batched writes
// with no transactional semantics (spec §4.1).
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gomodule/redigo/redis"

	"github.com/fleetscan/worker/internal/model"
)

const (
	tasksKey        = "tasks"
	dataKeyPrefix   = "data:"
	eventKeyPrefix  = "event:"
	dialTimeout     = 5 * time.Second
	idleConnTimeout = 5 * time.Minute
)

// Client is a pooled Redis client exposing exactly the operations the core
// needs, grounded on the connection-pooled redigo usage in
// luci-luci-go/server/quotabeta/quota.go.
type Client struct {
	pool *redis.Pool
}

// New builds a Client against addr, selecting db on each new connection.
func New(addr string, db int) *Client {
	pool := &redis.Pool{
		MaxIdle:     8,
		MaxActive:   32,
		IdleTimeout: idleConnTimeout,
		Dial: func() (redis.Conn, error) {
			return redis.Dial("tcp", addr,
				redis.DialConnectTimeout(dialTimeout),
				redis.DialDatabase(db),
			)
		},
		TestOnBorrow: func(c redis.Conn, t time.Time) error {
			if time.Since(t) < time.Minute {
				return nil
			}
			_, err := c.Do("PING")
			return err
		},
	}
	return &Client{pool: pool}
}

func (c *Client) Close() error {
	return c.pool.Close()
}

// Ping fails fast at startup if the coordinator is unreachable
// (ErrCoordinatorUnavailable, spec §7 — fatal, process exits).
func (c *Client) Ping(ctx context.Context) error {
	conn, err := c.pool.GetContext(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", model.ErrCoordinatorUnavailable, err)
	}
	defer func() { _ = conn.Close() }()

	if ctx.Err() != nil {
		return ctx.Err()
	}
	if _, err := conn.Do("PING"); err != nil {
		return fmt.Errorf("%w: %w", model.ErrCoordinatorUnavailable, err)
	}
	return nil
}

// PopTask atomically pops the lowest-scored (earliest-expiring) member of
// the tasks sorted set. ok is false when the queue is empty.
func (c *Client) PopTask(ctx context.Context) (rootID string, expireAt time.Time, ok bool, err error) {
	conn, err := c.pool.GetContext(ctx)
	if err != nil {
		return "", time.Time{}, false, fmt.Errorf("%w: %w", model.ErrCoordinatorFault, err)
	}
	defer func() { _ = conn.Close() }()

	if ctx.Err() != nil {
		return "", time.Time{}, false, ctx.Err()
	}
	reply, err := redis.Values(conn.Do("ZPOPMIN", tasksKey, 1))
	if err != nil {
		return "", time.Time{}, false, fmt.Errorf("%w: %w", model.ErrCoordinatorFault, err)
	}
	if len(reply) == 0 {
		return "", time.Time{}, false, nil
	}

	var member string
	var score float64
	if _, err := redis.Scan(reply, &member, &score); err != nil {
		return "", time.Time{}, false, fmt.Errorf("%w: scanning ZPOPMIN reply: %w", model.ErrCoordinatorFault, err)
	}
	return member, time.Unix(int64(score), 0), true, nil
}

// DrainBytes repeatedly left-pops data:{pointer} and concatenates the
// chunks until the list is empty. Invariant: the producer writes every
// chunk before enqueueing the request, so an empty LPOP always means
// end-of-stream, never a race.
func (c *Client) DrainBytes(ctx context.Context, pointer string) ([]byte, error) {
	conn, err := c.pool.GetContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", model.ErrCoordinatorFault, err)
	}
	defer func() { _ = conn.Close() }()

	key := dataKeyPrefix + pointer
	var out []byte
	for {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		chunk, err := redis.Bytes(conn.Do("LPOP", key))
		if errors.Is(err, redis.ErrNil) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %w", model.ErrCoordinatorFault, err)
		}
		out = append(out, chunk...)
	}
	return out, nil
}

// Emit right-pushes record to event:{root_id} and stamps the key's
// expiration, issued as one pipelined batch. No cross-key atomicity is
// required or attempted (spec §4.1).
func (c *Client) Emit(ctx context.Context, rootID string, record []byte, expireAt time.Time) error {
	conn, err := c.pool.GetContext(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", model.ErrCoordinatorFault, err)
	}
	defer func() { _ = conn.Close() }()

	if ctx.Err() != nil {
		return ctx.Err()
	}
	key := eventKeyPrefix + rootID
	if err := conn.Send("RPUSH", key, record); err != nil {
		return fmt.Errorf("%w: %w", model.ErrCoordinatorFault, err)
	}
	if err := conn.Send("EXPIREAT", key, expireAt.Unix()); err != nil {
		return fmt.Errorf("%w: %w", model.ErrCoordinatorFault, err)
	}
	if err := conn.Flush(); err != nil {
		return fmt.Errorf("%w: %w", model.ErrCoordinatorFault, err)
	}
	if _, err := conn.Receive(); err != nil { // RPUSH reply
		return fmt.Errorf("%w: %w", model.ErrCoordinatorFault, err)
	}
	if _, err := conn.Receive(); err != nil { // EXPIREAT reply
		return fmt.Errorf("%w: %w", model.ErrCoordinatorFault, err)
	}
	return nil
}

// PushBytes right-pushes one chunk to data:{pointer}, used by scanner
// plugins that extract child files and need to hand their bytes back to
// the coordinator under a fresh pointer.
func (c *Client) PushBytes(ctx context.Context, pointer string, chunk []byte) error {
	conn, err := c.pool.GetContext(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", model.ErrCoordinatorFault, err)
	}
	defer func() { _ = conn.Close() }()

	if ctx.Err() != nil {
		return ctx.Err()
	}
	if _, err := conn.Do("RPUSH", dataKeyPrefix+pointer, chunk); err != nil {
		return fmt.Errorf("%w: %w", model.ErrCoordinatorFault, err)
	}
	return nil
}
