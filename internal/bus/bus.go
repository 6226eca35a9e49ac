// Package bus is the event channel between services: one shared exchange
// (a broker topic prefix), dot-separated routing keys, at-least-once delivery
// to every process that subscribes.
package bus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/segmentio/kafka-go"

	"social/internal/events"
)

// ErrExhausted is returned by Connect once the bounded retry loop runs out
// of attempts. The owning process cannot serve its purpose without the bus
// and should treat this as fatal.
var ErrExhausted = errors.New("bus: broker connection attempts exhausted")

var (
	eventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bus_events_published_total",
		Help: "The total number of events published to the exchange",
	}, []string{"routing_key"})
	eventsConsumed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bus_events_consumed_total",
		Help: "The total number of events handled and acknowledged",
	}, []string{"routing_key"})
	handlerFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bus_handler_failures_total",
		Help: "The total number of event handler failures",
	}, []string{"routing_key"})
)

type Config struct {
	Brokers []string
	// Exchange is the topic prefix shared by every routing key.
	Exchange   string
	Service    string
	MaxRetries int
	RetryDelay time.Duration
}

// Handler processes one delivered event. Returning nil acknowledges the
// message; returning an error triggers bounded in-place retries with backoff,
// after which the message is dropped with an explicit log and committed so
// the subscription keeps moving.
type Handler func(ctx context.Context, ev events.Envelope) error

// handlerRetries bounds the redelivery attempts for one message before it is
// deliberately dropped.
const handlerRetries = 5

type Bus struct {
	cfg Config
	log *slog.Logger

	// groupID is unique per process so every subscribing process gets its
	// own full copy of the stream (the exclusive-queue semantics of the
	// reference design).
	groupID string

	// retryBackoff is the base of the exponential handler retry backoff.
	retryBackoff time.Duration

	mu      sync.Mutex
	writers map[string]*kafka.Writer
	readers []*kafka.Reader
}

// Connect dials the broker with a bounded retry loop (MaxRetries attempts,
// fixed RetryDelay between them) and returns a ready Bus. There is no
// automatic reconnect after a post-startup connection loss; callers resume by
// calling Connect again.
func Connect(ctx context.Context, cfg Config, log *slog.Logger) (*Bus, error) {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 5
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 5 * time.Second
	}

	dial := func(ctx context.Context) error {
		conn, err := kafka.DialContext(ctx, "tcp", cfg.Brokers[0])
		if err != nil {
			return err
		}
		return conn.Close()
	}

	if err := connectWithRetry(ctx, cfg.MaxRetries, cfg.RetryDelay, log, dial); err != nil {
		return nil, err
	}

	log.Info("connected to broker", "brokers", cfg.Brokers, "exchange", cfg.Exchange)

	return &Bus{
		cfg:          cfg,
		log:          log,
		groupID:      fmt.Sprintf("%s-%s", cfg.Service, uuid.NewString()),
		retryBackoff: 1 * time.Second,
		writers:      make(map[string]*kafka.Writer),
	}, nil
}

// connectWithRetry runs dial up to attempts times with a fixed delay between
// failures. The result is typed: nil means connected, ErrExhausted means the
// loop ran out of attempts.
func connectWithRetry(ctx context.Context, attempts int, delay time.Duration, log *slog.Logger, dial func(ctx context.Context) error) error {
	var lastErr error
	for i := 0; i < attempts; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
		if lastErr = dial(ctx); lastErr == nil {
			return nil
		}
		log.Error("broker connection failed", "error", lastErr, "retries_left", attempts-i-1)
	}
	return fmt.Errorf("%w: %v", ErrExhausted, lastErr)
}

func (b *Bus) topic(routingKey string) string {
	return b.cfg.Exchange + "." + routingKey
}

func (b *Bus) writer(routingKey string) *kafka.Writer {
	b.mu.Lock()
	defer b.mu.Unlock()

	if w, ok := b.writers[routingKey]; ok {
		return w
	}
	w := &kafka.Writer{
		Addr:                   kafka.TCP(b.cfg.Brokers...),
		Topic:                  b.topic(routingKey),
		Balancer:               &kafka.Hash{},
		MaxAttempts:            5,
		ReadTimeout:            10 * time.Second,
		WriteTimeout:           10 * time.Second,
		Async:                  false,
		AllowAutoTopicCreation: true,
	}
	b.writers[routingKey] = w
	return w
}

// Publish serializes payload into the envelope for routingKey and sends it
// to the exchange. Fire-and-forget from the caller's perspective: a broker
// write is awaited, delivery to subscribers is not.
func (b *Bus) Publish(ctx context.Context, routingKey string, payload any) error {
	env, err := events.NewEnvelope(routingKey, b.cfg.Service, payload)
	if err != nil {
		return err
	}
	value, err := env.Encode()
	if err != nil {
		return err
	}

	err = b.writer(routingKey).WriteMessages(ctx, kafka.Message{
		Key:   []byte(env.ID),
		Value: value,
	})
	if err != nil {
		return fmt.Errorf("publish %s: %w", routingKey, err)
	}

	eventsPublished.WithLabelValues(routingKey).Inc()
	b.log.Info("event published", "routing_key", routingKey, "event_id", env.ID)
	return nil
}

// Subscribe binds a process-scoped queue to routingKey and runs handler for
// each delivered message in a dedicated goroutine, retrying failures with
// backoff before moving on. Each routing key gets its own queue, so a slow
// handler for one key cannot starve another. The goroutine exits when ctx is
// cancelled.
func (b *Bus) Subscribe(ctx context.Context, routingKey string, handler Handler) {
	dialer := &kafka.Dialer{
		Timeout:   10 * time.Second,
		DualStack: false,
	}
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     b.cfg.Brokers,
		Topic:       b.topic(routingKey),
		GroupID:     b.groupID,
		MinBytes:    1,
		MaxBytes:    10e6,
		MaxWait:     1 * time.Second,
		Dialer:      dialer,
		StartOffset: kafka.LastOffset,
	})

	b.mu.Lock()
	b.readers = append(b.readers, r)
	b.mu.Unlock()

	b.log.Info("subscribed to event", "routing_key", routingKey, "group_id", b.groupID)

	go b.consume(ctx, r, routingKey, handler)
}

func (b *Bus) consume(ctx context.Context, r *kafka.Reader, routingKey string, handler Handler) {
	for {
		msg, err := r.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			b.log.Error("failed to fetch message", "routing_key", routingKey, "error", err)
			time.Sleep(1 * time.Second)
			continue
		}

		if b.handleWithRetry(ctx, routingKey, msg.Value, handler) {
			b.commit(ctx, r, routingKey, msg)
		}
	}
}

// handleWithRetry runs handler for one message with bounded exponential
// backoff and reports whether to commit. Committing any later message would
// advance the group offset past this one, so the loop never reads past an
// unacked message: either the handler eventually succeeds, or the message is
// dropped with an explicit log and committed. False only when ctx was
// cancelled mid-retry, leaving the message for the next subscription.
func (b *Bus) handleWithRetry(ctx context.Context, routingKey string, value []byte, handler Handler) bool {
	env, err := events.Decode(value)
	if err != nil {
		// Not our envelope (or corrupt). Acknowledge and move on.
		b.log.Error("failed to decode event envelope", "routing_key", routingKey, "error", err)
		return true
	}

	var lastErr error
	for attempt := 0; attempt <= handlerRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(1<<attempt) * b.retryBackoff
			b.log.Info("retrying event handler", "routing_key", routingKey, "event_id", env.ID,
				"attempt", attempt, "max", handlerRetries, "backoff", backoff)
			select {
			case <-ctx.Done():
				return false
			case <-time.After(backoff):
			}
		}

		if lastErr = handler(ctx, env); lastErr == nil {
			eventsConsumed.WithLabelValues(routingKey).Inc()
			return true
		}
		handlerFailures.WithLabelValues(routingKey).Inc()
		b.log.Error("event handler failed", "routing_key", routingKey, "event_id", env.ID, "error", lastErr)
	}

	b.log.Error("dropping event after retries", "routing_key", routingKey, "event_id", env.ID,
		"retries", handlerRetries, "error", lastErr)
	return true
}

func (b *Bus) commit(ctx context.Context, r *kafka.Reader, routingKey string, msg kafka.Message) {
	if err := r.CommitMessages(ctx, msg); err != nil {
		b.log.Error("failed to commit message", "routing_key", routingKey, "error", err)
	}
}

func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	var errs []error
	for _, w := range b.writers {
		if err := w.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	for _, r := range b.readers {
		if err := r.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
