package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
)

// Client owns the process-wide connection pool shared by the store, the
// breach monitor and the summary cache
type Client struct {
	rdb    *redis.Client
	logger *logrus.Logger
}

type ConnectionConfig struct {
	URL string
	// ClientName is set with CLIENT SETNAME on every pooled connection so
	// CLIENT LIST shows which pod holds it
	ClientName     string
	ConnectTimeout time.Duration

	MaxRetries   int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	PoolSize     int
	MinIdleConns int
	PoolTimeout  time.Duration
	IdleTimeout  time.Duration
}

// DefaultConnectionConfig returns pool settings for one service pod.
// Blocking stream reads get their own deadline from go-redis, so ReadTimeout
// only bounds ordinary commands.
func DefaultConnectionConfig(url, podID string) ConnectionConfig {
	return ConnectionConfig{
		URL:            url,
		ClientName:     "sla-" + podID,
		ConnectTimeout: 5 * time.Second,
		MaxRetries:     3,
		DialTimeout:    5 * time.Second,
		ReadTimeout:    3 * time.Second,
		WriteTimeout:   3 * time.Second,
		PoolSize:       10,
		MinIdleConns:   2,
		PoolTimeout:    4 * time.Second,
		IdleTimeout:    5 * time.Minute,
	}
}

// options starts from the URL, which supplies address, database and credentials
func (c ConnectionConfig) options() (*redis.Options, error) {
	opt, err := redis.ParseURL(c.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	opt.MaxRetries = c.MaxRetries
	opt.DialTimeout = c.DialTimeout
	opt.ReadTimeout = c.ReadTimeout
	opt.WriteTimeout = c.WriteTimeout
	opt.PoolSize = c.PoolSize
	opt.MinIdleConns = c.MinIdleConns
	opt.PoolTimeout = c.PoolTimeout
	opt.IdleTimeout = c.IdleTimeout

	if name := c.ClientName; name != "" {
		opt.OnConnect = func(ctx context.Context, cn *redis.Conn) error {
			return cn.ClientSetName(ctx, name).Err()
		}
	}

	return opt, nil
}

// NewClient connects and pings within ConnectTimeout
func NewClient(ctx context.Context, config ConnectionConfig, logger *logrus.Logger) (*Client, error) {
	opt, err := config.options()
	if err != nil {
		return nil, err
	}

	client := &Client{
		rdb:    redis.NewClient(opt),
		logger: logger,
	}

	if config.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, config.ConnectTimeout)
		defer cancel()
	}

	if err := client.Ping(ctx); err != nil {
		client.rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.WithFields(logrus.Fields{
		"addr":        opt.Addr,
		"db":          opt.DB,
		"client_name": config.ClientName,
	}).Info("Connected to Redis")
	return client, nil
}

func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Close logs final pool usage and releases all connections
func (c *Client) Close() error {
	stats := c.rdb.PoolStats()
	c.logger.WithFields(logrus.Fields{
		"hits":        stats.Hits,
		"misses":      stats.Misses,
		"timeouts":    stats.Timeouts,
		"total_conns": stats.TotalConns,
	}).Info("Closing Redis connection pool")

	return c.rdb.Close()
}

func (c *Client) GetRedisClient() *redis.Client {
	return c.rdb
}
