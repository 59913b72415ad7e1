package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hylla/kanfile/internal/app"
)

// DefaultChannel is the pub/sub channel used when none is configured.
const DefaultChannel = "kanfile:ops"

// Redis publishes notifications as JSON messages on one pub/sub channel.
type Redis struct {
	client  *redis.Client
	channel string
	owned   bool
}

// NewRedis connects to the server named by a redis:// URL.
func NewRedis(url, channel string) (*Redis, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return nil, errors.New("redis url is required")
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	r := NewRedisWithClient(redis.NewClient(opts), channel)
	r.owned = true
	return r, nil
}

// NewRedisWithClient wraps an existing client. Close leaves the client open.
func NewRedisWithClient(client *redis.Client, channel string) *Redis {
	channel = strings.TrimSpace(channel)
	if channel == "" {
		channel = DefaultChannel
	}
	return &Redis{client: client, channel: channel}
}

// Channel returns the pub/sub channel name.
func (r *Redis) Channel() string {
	return r.channel
}

// Notify publishes n.
func (r *Redis) Notify(ctx context.Context, n app.Notification) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}
	if err := r.client.Publish(ctx, r.channel, payload).Err(); err != nil {
		return fmt.Errorf("publish notification: %w", err)
	}
	return nil
}

// Subscribe delivers every notification on the channel to handle until ctx is
// done. Malformed messages are reported through onError and skipped. A closed
// subscription is re-established after a short pause.
func (r *Redis) Subscribe(ctx context.Context, handle func(app.Notification), onError func(error)) error {
	if onError == nil {
		onError = func(error) {}
	}
	for {
		sub := r.client.Subscribe(ctx, r.channel)
		if _, err := sub.Receive(ctx); err != nil {
			_ = sub.Close()
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("subscribe %s: %w", r.channel, err)
		}
		ch := sub.Channel()
	receive:
		for {
			select {
			case <-ctx.Done():
				_ = sub.Close()
				return nil
			case msg, ok := <-ch:
				if !ok {
					break receive
				}
				var n app.Notification
				if err := json.Unmarshal([]byte(msg.Payload), &n); err != nil {
					onError(fmt.Errorf("decode notification: %w", err))
					continue
				}
				handle(n)
			}
		}
		_ = sub.Close()
		if ctx.Err() != nil {
			return nil
		}
		onError(errors.New("pubsub channel closed, reconnecting"))
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(time.Second):
		}
	}
}

// Close closes the client when this notifier created it.
func (r *Redis) Close() error {
	if r == nil || !r.owned {
		return nil
	}
	return r.client.Close()
}
