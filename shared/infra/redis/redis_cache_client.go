package redis

import (
	"context"
	"time"

	redigo "github.com/gomodule/redigo/redis"
	"go.uber.org/zap"

	"github.com/nastyazhadan/perp-trader/shared/config"
)

type Client struct {
	pool              *redigo.Pool
	logger            Logger
	connectionTimeout time.Duration
}

type Logger interface {
	Info(ctx context.Context, message string, fields ...zap.Field)
	Error(ctx context.Context, message string, fields ...zap.Field)
}

type redisFn func(ctx context.Context, conn redigo.Conn) error

func NewPool(cfg config.RedisConfig) *redigo.Pool {
	return &redigo.Pool{
		MaxIdle:     cfg.MaxIdle,
		IdleTimeout: cfg.IdleTimeout,
		DialContext: func(ctx context.Context) (redigo.Conn, error) {
			return redigo.DialContext(ctx, "tcp", cfg.Address(),
				redigo.DialConnectTimeout(cfg.ConnectionTimeout))
		},
		TestOnBorrow: func(conn redigo.Conn, lastUsed time.Time) error {
			if time.Since(lastUsed) < time.Minute {
				return nil
			}
			_, err := conn.Do("PING")
			return err
		},
	}
}

func NewClient(pool *redigo.Pool, logger Logger, connectionTimeout time.Duration) *Client {
	return &Client{
		pool:              pool,
		logger:            logger,
		connectionTimeout: connectionTimeout,
	}
}

func (c *Client) withConn(ctx context.Context, fn redisFn) error {
	connection, err := c.getConn(ctx)
	if err != nil {
		return err
	}

	defer func() {
		if cErr := connection.Close(); cErr != nil {
			c.logger.Error(ctx, "failed to close client connection",
				zap.Error(cErr),
			)
		}
	}()

	return fn(ctx, connection)
}

func (c *Client) getConn(ctx context.Context) (redigo.Conn, error) {
	connCtx, cancel := context.WithTimeout(ctx, c.connectionTimeout)
	defer cancel()

	connection, err := c.pool.GetContext(connCtx)
	if err != nil {
		c.logger.Error(ctx, "failed to get client connection",
			zap.Error(err),
		)
		return nil, err
	}

	return connection, nil
}

// Incr increments key and returns the new value. A missing key starts at 1.
func (c *Client) Incr(ctx context.Context, key string) (int64, error) {
	var count int64
	err := c.withConn(ctx, func(ctx context.Context, conn redigo.Conn) error {
		value, err := redigo.Int64(redigo.DoContext(conn, ctx, "INCR", key))
		if err != nil {
			return err
		}

		count = value
		return nil
	})

	return count, err
}

func (c *Client) Expire(ctx context.Context, key string, expiration time.Duration) error {
	return c.withConn(ctx, func(ctx context.Context, conn redigo.Conn) error {
		_, err := redigo.DoContext(conn, ctx, "PEXPIRE", key, expiration.Milliseconds())
		return err
	})
}

func (c *Client) Ping(ctx context.Context) error {
	return c.withConn(ctx, func(ctx context.Context, conn redigo.Conn) error {
		_, err := redigo.DoContext(conn, ctx, "PING")
		return err
	})
}

func (c *Client) Close() error {
	return c.pool.Close()
}
