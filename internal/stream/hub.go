package stream

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	redisPrefix = "feed:"

	subscribeBackoffMin = 200 * time.Millisecond
	subscribeBackoffMax = 10 * time.Second
)

// Hub is the fan-out transport. Without redis it delivers to subscribers in
// this process; with redis every replica publishes to redis and delivers what
// its pattern subscription receives, so each subscriber sees a frame once.
type Hub struct {
	redis   *redis.Client
	clients map[string]map[*Client]struct{}
	mu      sync.RWMutex

	// subscribed is false until the pattern subscription is confirmed;
	// Publish also delivers locally while it is false.
	subscribed atomic.Bool
	backoffMin time.Duration
	readyOnce  sync.Once
	ready      chan struct{}
	cancel     context.CancelFunc
}

type Client struct {
	Channel string
	Send    chan []byte
}

func NewHub(redisClient *redis.Client) *Hub {
	return newHub(redisClient, subscribeBackoffMin)
}

func newHub(redisClient *redis.Client, backoffMin time.Duration) *Hub {
	h := &Hub{
		redis:      redisClient,
		clients:    map[string]map[*Client]struct{}{},
		backoffMin: backoffMin,
		ready:      make(chan struct{}),
	}

	if redisClient == nil {
		h.markReady()
		h.cancel = func() {}
		return h
	}

	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	go h.subscribeRedis(ctx)
	return h
}

// Ready is closed once the hub can receive frames from other replicas, or
// when the hub is closed before that happens.
func (h *Hub) Ready() <-chan struct{} {
	return h.ready
}

func (h *Hub) markReady() {
	h.readyOnce.Do(func() { close(h.ready) })
}

func (h *Hub) Close() {
	h.cancel()
}

func (h *Hub) Register(channel string) *Client {
	client := &Client{
		Channel: channel,
		Send:    make(chan []byte, 64),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[channel] == nil {
		h.clients[channel] = map[*Client]struct{}{}
	}
	h.clients[channel][client] = struct{}{}
	return client
}

func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if channelClients, ok := h.clients[client.Channel]; ok {
		if _, registered := channelClients[client]; !registered {
			return
		}
		delete(channelClients, client)
		if len(channelClients) == 0 {
			delete(h.clients, client.Channel)
		}
		close(client.Send)
	}
}

// Subscribers returns how many local clients listen on channel.
func (h *Hub) Subscribers(channel string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[channel])
}

// Publish is best effort: no retry, and a slow subscriber drops frames rather
// than blocking the publisher. Until the redis subscription is up, frames are
// delivered locally as well as sent to redis. If redis rejects the frame it
// is still delivered locally and the error is returned for the caller to log.
func (h *Hub) Publish(ctx context.Context, channel, event string, payload any) error {
	msg, err := json.Marshal(Envelope{Channel: channel, Event: event, Data: payload})
	if err != nil {
		return err
	}

	if h.redis == nil {
		h.deliver(channel, msg)
		return nil
	}

	if !h.subscribed.Load() {
		h.deliver(channel, msg)
		return h.redis.Publish(ctx, redisChannel(channel), msg).Err()
	}
	if err := h.redis.Publish(ctx, redisChannel(channel), msg).Err(); err != nil {
		h.deliver(channel, msg)
		return err
	}
	return nil
}

func (h *Hub) deliver(channel string, msg []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients[channel] {
		select {
		case client.Send <- msg:
		default:
		}
	}
}

// subscribeRedis retries the pattern subscription with capped exponential
// backoff until it succeeds or ctx ends. Once established, go-redis
// re-subscribes on its own after connection loss.
func (h *Hub) subscribeRedis(ctx context.Context) {
	defer h.markReady()

	pubsub := h.subscribeWithRetry(ctx)
	if pubsub == nil {
		return
	}
	defer pubsub.Close()
	defer h.subscribed.Store(false)

	h.subscribed.Store(true)
	h.markReady()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			channel, ok := channelFromRedis(msg.Channel)
			if !ok {
				continue
			}
			h.deliver(channel, []byte(msg.Payload))
		}
	}
}

func (h *Hub) subscribeWithRetry(ctx context.Context) *redis.PubSub {
	backoff := h.backoffMin
	for attempt := 1; ; attempt++ {
		pubsub := h.redis.PSubscribe(ctx, redisPrefix+"*")
		_, err := pubsub.Receive(ctx)
		if err == nil {
			if attempt > 1 {
				slog.Info("redis subscription established", "attempts", attempt)
			}
			return pubsub
		}
		_ = pubsub.Close()
		slog.Warn("redis subscribe failed, retrying", "attempt", attempt, "backoff", backoff, "err", err)

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > subscribeBackoffMax {
			backoff = subscribeBackoffMax
		}
	}
}

func redisChannel(channel string) string {
	return redisPrefix + channel
}

func channelFromRedis(ch string) (string, bool) {
	if !strings.HasPrefix(ch, redisPrefix) || len(ch) == len(redisPrefix) {
		return "", false
	}
	return ch[len(redisPrefix):], true
}
