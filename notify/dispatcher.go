// Package notify consumes workflow events and delivers the resulting
// notifications over Redis pub/sub, at most once per transition.
package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/warp/outpass-engine/workflow"
)

// Dispatcher delivers a rendered notification. Push delivery to devices is
// done by whoever subscribes to the channels.
type Dispatcher interface {
	NotifyUser(ctx context.Context, userID, title, body string) error
	NotifyRole(ctx context.Context, role workflow.Role, title, body string) error
}

// Message is the payload published on a channel.
type Message struct {
	Title  string    `json:"title"`
	Body   string    `json:"body"`
	SentAt time.Time `json:"sentAt"`
}

// RedisDispatcher publishes notifications into Redis channels.
type RedisDispatcher struct {
	rdb *redis.Client
}

// NewRedisDispatcher accepts a nil client, in which case every call is a
// no-op.
func NewRedisDispatcher(rdb *redis.Client) *RedisDispatcher {
	return &RedisDispatcher{rdb: rdb}
}

// NotifyUser sends a notification to a user's channel.
func (d *RedisDispatcher) NotifyUser(ctx context.Context, userID, title, body string) error {
	return d.publish(ctx, UserChannel(userID), title, body)
}

// NotifyRole sends a notification to everyone holding role.
func (d *RedisDispatcher) NotifyRole(ctx context.Context, role workflow.Role, title, body string) error {
	return d.publish(ctx, RoleChannel(role), title, body)
}

func (d *RedisDispatcher) publish(ctx context.Context, channel, title, body string) error {
	if d.rdb == nil {
		return nil
	}
	payload, err := json.Marshal(Message{Title: title, Body: body, SentAt: time.Now().UTC()})
	if err != nil {
		return err
	}
	return d.rdb.Publish(ctx, channel, payload).Err()
}

// Subscribe listens on every notification channel and calls onMessage for
// each message until ctx is canceled.
func (d *RedisDispatcher) Subscribe(ctx context.Context, onMessage func(channel string, msg Message)) error {
	if d.rdb == nil {
		return nil
	}
	sub := d.rdb.PSubscribe(ctx, "outpass:user:*", "outpass:role:*")
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return err
	}
	ch := sub.Channel()

	go func() {
		defer sub.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-ch:
				if !ok {
					return
				}
				var msg Message
				if err := json.Unmarshal([]byte(m.Payload), &msg); err != nil {
					continue
				}
				onMessage(m.Channel, msg)
			}
		}
	}()

	return nil
}

// UserChannel derives the channel name for a user.
func UserChannel(userID string) string {
	return "outpass:user:" + userID
}

// RoleChannel derives the channel name for a role.
func RoleChannel(role workflow.Role) string {
	return "outpass:role:" + string(role)
}
