package services

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/havenstay/leaseflow-backend/internal/platform/logger"
)

const (
	EventLeaseRequested    = "LeaseRequested"
	EventOtpIssued         = "OtpIssued"
	EventContractSigned    = "ContractSigned"
	EventContractActivated = "ContractActivated"
	EventBillCreated       = "BillCreated"
)

type Event struct {
	Type       string                 `json:"type"`
	OccurredAt time.Time              `json:"occurred_at"`
	Payload    map[string]interface{} `json:"payload,omitempty"`
}

// Notifier hands domain events to the external notification service.
// Delivery is best-effort: callers log a failed publish and move on; a
// state transition never blocks on its announcement.
type Notifier interface {
	Publish(ctx context.Context, ev Event) error
}

type redisNotifier struct {
	log     *logger.Logger
	rdb     *goredis.Client
	channel string
}

func NewRedisNotifier(log *logger.Logger, rdb *goredis.Client) Notifier {
	ch := strings.TrimSpace(os.Getenv("EVENTS_CHANNEL"))
	if ch == "" {
		ch = "leaseflow.events"
	}
	return &redisNotifier{
		log:     log.With("service", "RedisNotifier"),
		rdb:     rdb,
		channel: ch,
	}
}

func (n *redisNotifier) Publish(ctx context.Context, ev Event) error {
	if n == nil || n.rdb == nil {
		return fmt.Errorf("redis notifier not initialized")
	}
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now().UTC()
	}
	raw, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return n.rdb.Publish(ctx, n.channel, raw).Err()
}

// NewRedisClient dials Redis from REDIS_ADDR; a missing address is not an
// error, the caller falls back to in-process alternatives.
func NewRedisClient(log *logger.Logger) (*goredis.Client, error) {
	addr := strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	if addr == "" {
		return nil, nil
	}
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	log.Info("Connected to Redis", "addr", addr)
	return rdb, nil
}

type noopNotifier struct{}

// NewNoopNotifier drops events. Used by tests and Redis-less deployments.
func NewNoopNotifier() Notifier { return noopNotifier{} }

func (noopNotifier) Publish(ctx context.Context, ev Event) error { return nil }
