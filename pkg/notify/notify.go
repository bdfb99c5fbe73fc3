// Package notify delivers workflow notifications to users. The bus-backed
// notifier publishes deliveries onto the notification topic with bounded
// retries; downstream consumers (mailers, chat bridges) subscribe there.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/benbjohnson/clock"
	"github.com/cenkalti/backoff/v4"

	"github.com/stageflow/stageflow/pkg/events"
	"github.com/stageflow/stageflow/pkg/protocol"
)

// Delivery is the wire form of one notification fan-out: the recipients plus
// the notification itself.
type Delivery struct {
	UserIDs      []string              `json:"user_ids"`
	Notification protocol.Notification `json:"notification"`
}

// RetryPolicy bounds how long a failed publish is retried before the
// notification is dropped.
type RetryPolicy struct {
	InitialInterval time.Duration
	MaxInterval     time.Duration
	MaxElapsedTime  time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		InitialInterval: 100 * time.Millisecond,
		MaxInterval:     2 * time.Second,
		MaxElapsedTime:  10 * time.Second,
	}
}

// BusNotifier publishes deliveries onto the notification topic.
type BusNotifier struct {
	logger    *slog.Logger
	publisher message.Publisher
	clock     clock.Clock
	policy    RetryPolicy
}

func NewBusNotifier(logger *slog.Logger, publisher message.Publisher, clk clock.Clock, policy RetryPolicy) *BusNotifier {
	if clk == nil {
		clk = clock.New()
	}

	if policy == (RetryPolicy{}) {
		policy = DefaultRetryPolicy()
	}

	return &BusNotifier{
		logger:    logger.With("module", "notify"),
		publisher: publisher,
		clock:     clk,
		policy:    policy,
	}
}

func (n *BusNotifier) Notify(ctx context.Context, userIDs []string, notification protocol.Notification) error {
	if len(userIDs) == 0 {
		return nil
	}

	payload, err := json.Marshal(Delivery{UserIDs: userIDs, Notification: notification})
	if err != nil {
		return fmt.Errorf("failed to encode notification: %w", err)
	}

	policy := backoff.ExponentialBackOff{
		InitialInterval:     n.policy.InitialInterval,
		MaxInterval:         n.policy.MaxInterval,
		MaxElapsedTime:      n.policy.MaxElapsedTime,
		Multiplier:          backoff.DefaultMultiplier,
		RandomizationFactor: backoff.DefaultRandomizationFactor,
		Stop:                backoff.Stop,
		Clock:               n.clock,
	}
	policy.Reset()

	attempts := 0

	err = backoff.Retry(func() error {
		attempts++

		// A fresh message per attempt: watermill messages must not be
		// republished after a failed publish.
		msg := message.NewMessage("msg-"+watermill.NewULID(), payload)
		msg.Metadata.Set(events.EventMetadataKey, notification.ContentUID)
		msg.Metadata.Set(events.EventTypeMetadataKey, "notification."+string(notification.Type))

		return n.publisher.Publish(events.NotificationTopic, msg)
	}, backoff.WithContext(&policy, ctx))
	if err != nil {
		n.logger.ErrorContext(ctx, "Failed to publish notification",
			"content_uid", notification.ContentUID,
			"type", notification.Type,
			"recipients", len(userIDs),
			"attempts", attempts,
			"error", err)

		return fmt.Errorf("failed to publish notification after %d attempts: %w", attempts, err)
	}

	n.logger.DebugContext(ctx, "Published notification",
		"content_uid", notification.ContentUID,
		"type", notification.Type,
		"recipients", len(userIDs),
		"attempts", attempts)

	return nil
}

// LogNotifier writes deliveries to the structured log. It backs deployments
// that have no notification channel configured.
type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.With("module", "notify")}
}

func (n *LogNotifier) Notify(ctx context.Context, userIDs []string, notification protocol.Notification) error {
	n.logger.InfoContext(ctx, "Notification",
		"type", notification.Type,
		"content_uid", notification.ContentUID,
		"to_state", notification.ToState,
		"actor_id", notification.ActorID,
		"recipients", userIDs)

	return nil
}
