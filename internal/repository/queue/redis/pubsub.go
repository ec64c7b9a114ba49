package redis

import (
	"context"
	"encoding/json"
	"fmt"
)

// Publish sends a JSON-encoded message to a channel. By convention the
// channel is a track id and the subscribers are progress bridges.
func (r repo) Publish(ctx context.Context, channel string, message any) error {
	messageJSON, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	if err := r.rc.Publish(ctx, channel, messageJSON).Err(); err != nil {
		return fmt.Errorf("failed to publish message: %w", err)
	}

	return nil
}

// Subscribe spawns a listener goroutine that invokes callback for every
// message on the channel until ctx is cancelled. The callback must not
// block; blocking work is handed off by the caller.
func (r repo) Subscribe(ctx context.Context, channel string, callback func(payload []byte)) {
	pubsub := r.rc.Subscribe(ctx, channel)

	go func() {
		defer pubsub.Close()

		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}

				callback([]byte(msg.Payload))
			}
		}
	}()
}
