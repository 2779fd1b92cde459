package redis

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/redis/go-redis/v9"
	"mathquiz-leaderboard/internal/domain"
)

const updatesChannel = "scores:updated"

// Notifier fans leaderboard updates out through Redis pub/sub so viewers
// connected to any instance hear about scores saved on another.
type Notifier struct {
	client *redis.Client
}

func NewNotifier(client *redis.Client) *Notifier {
	return &Notifier{client: client}
}

func (n *Notifier) Publish(ctx context.Context, cfg domain.Configuration) error {
	payload, err := json.Marshal(cfg)
	if err != nil {
		return err
	}
	return n.client.Publish(ctx, updatesChannel, payload).Err()
}

// Subscribe confirms the subscription with Redis before returning, so no
// update published afterwards is missed.
func (n *Notifier) Subscribe(ctx context.Context) (<-chan domain.Configuration, func(), error) {
	pubsub := n.client.Subscribe(ctx, updatesChannel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, nil, err
	}

	out := make(chan domain.Configuration, 8)
	done := make(chan struct{})
	go func() {
		defer close(out)
		messages := pubsub.Channel()
		for {
			select {
			case msg, ok := <-messages:
				if !ok {
					return
				}
				var cfg domain.Configuration
				if err := json.Unmarshal([]byte(msg.Payload), &cfg); err != nil {
					continue
				}
				select {
				case out <- cfg:
				default:
					// slow reader: replace the oldest pending update
					select {
					case <-out:
					default:
					}
					out <- cfg
				}
			case <-done:
				return
			}
		}
	}()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			close(done)
			_ = pubsub.Close()
		})
	}
	return out, cancel, nil
}
