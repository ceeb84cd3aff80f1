package marketdata

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/Rahiq007/COMPSCI-520-Final-Project-sub001/models"
	"github.com/redis/go-redis/v9"
)

// RelayChannelPrefix prefixes the per-symbol pub/sub channel names.
const RelayChannelPrefix = "quotes."

// Relay publishes accepted quotes to Redis pub/sub so sibling
// processes can consume the feed without polling upstream themselves.
// Publish failures are logged and otherwise ignored; the relay is a
// best-effort side channel, never part of the distribution path.
type Relay struct {
	client *redis.Client
}

// NewRelay connects a relay to the given Redis instance.
func NewRelay(addr, password string) *Relay {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
	})
	return &Relay{client: client}
}

// Publish sends a quote as JSON on the channel quotes.<SYMBOL>.
func (r *Relay) Publish(quote models.Quote) {
	payload, err := json.Marshal(quote)
	if err != nil {
		log.Printf("Relay marshal error for %s: %v", quote.Symbol, err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := r.client.Publish(ctx, RelayChannelPrefix+quote.Symbol, payload).Err(); err != nil {
		log.Printf("Relay publish error for %s: %v", quote.Symbol, err)
	}
}

// Ping verifies the Redis connection.
func (r *Relay) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close releases the underlying Redis client.
func (r *Relay) Close() error {
	return r.client.Close()
}
