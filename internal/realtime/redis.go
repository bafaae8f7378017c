package realtime

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Publisher pushes notification payloads to Redis pub/sub channels
type Publisher struct {
	client redis.UniversalClient
}

// Options configures the Redis connection
type Options struct {
	Addr        string
	Password    string
	DialTimeout time.Duration
}

// NewPublisher connects to Redis. It returns nil when no address is configured.
func NewPublisher(opts Options) *Publisher {
	if opts.Addr == "" {
		return nil
	}
	if opts.DialTimeout <= 0 {
		opts.DialTimeout = 2 * time.Second
	}
	return &Publisher{client: redis.NewClient(&redis.Options{
		Addr:        opts.Addr,
		Password:    opts.Password,
		DB:          0,
		DialTimeout: opts.DialTimeout,
		MaxRetries:  1,
	})}
}

// NewPublisherWithClient wraps an existing client
func NewPublisherWithClient(client redis.UniversalClient) *Publisher {
	return &Publisher{client: client}
}

// Ping checks the connection
func (p *Publisher) Ping(ctx context.Context) error {
	if err := p.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to ping redis: %w", err)
	}
	return nil
}

// Publish sends payload to every subscriber of channel
func (p *Publisher) Publish(ctx context.Context, channel string, payload []byte) error {
	if err := p.client.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", channel, err)
	}
	return nil
}

// Close releases the connection pool
func (p *Publisher) Close() error {
	return p.client.Close()
}
