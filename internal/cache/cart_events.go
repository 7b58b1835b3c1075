package cache

import (
	"context"

	"github.com/redis/go-redis/v9"
)

const (
	CartUpdated = "updated"
	CartCleared = "cleared"
)

func cartChannel(userID string) string { return "cart:" + userID }

// CartEvents fans cart changes out to every open websocket of the user over Redis pub/sub.
type CartEvents struct {
	rdb *redis.Client
}

func NewCartEvents(rdb *redis.Client) *CartEvents {
	return &CartEvents{rdb: rdb}
}

func (e *CartEvents) Publish(ctx context.Context, userID, change string) error {
	return e.rdb.Publish(ctx, cartChannel(userID), change).Err()
}

type CartSubscription struct {
	ps *redis.PubSub
	C  <-chan string
}

// Subscribe returns once the subscription is confirmed by the server.
func (e *CartEvents) Subscribe(ctx context.Context, userID string) (*CartSubscription, error) {
	ps := e.rdb.Subscribe(ctx, cartChannel(userID))
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, err
	}

	out := make(chan string)
	go func() {
		defer close(out)
		for msg := range ps.Channel() {
			select {
			case out <- msg.Payload:
			case <-ctx.Done():
				return
			}
		}
	}()
	return &CartSubscription{ps: ps, C: out}, nil
}

func (s *CartSubscription) Close() error {
	return s.ps.Close()
}
