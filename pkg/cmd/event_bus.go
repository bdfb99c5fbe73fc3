package cmd

import (
	"fmt"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/stageflow/stageflow/pkg/channels/gochannel"
	"github.com/stageflow/stageflow/pkg/channels/kafka"
	"github.com/stageflow/stageflow/pkg/eventbus"
)

// Messaging bundles the process-wide watermill endpoints: the typed event bus
// for workflow events, plus the raw publisher the notifier writes its
// delivery topic through. Both sides share one channel so a process never
// splits its traffic across brokers.
type Messaging struct {
	Bus       eventbus.EventBus
	Publisher message.Publisher
}

// NewMessaging creates the messaging stack for the given provider. The
// gochannel provider is in-process and needs no broker; kafka reads
// KAFKA_BROKERS from the environment.
func NewMessaging(provider string, logger *slog.Logger) (*Messaging, error) {
	wmLogger := watermill.NewSlogLogger(logger)

	var (
		pub message.Publisher
		sub message.Subscriber
		err error
	)

	switch provider {
	case "gochannel":
		pub, sub, err = gochannel.CreateChannel(wmLogger)
	case "kafka":
		pub, sub, err = kafka.CreateChannel(wmLogger, "stageflow")
	default:
		return nil, fmt.Errorf("unsupported event bus provider: %s", provider)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to create %s pub/sub: %w", provider, err)
	}

	return &Messaging{
		Bus:       eventbus.NewWatermillEventBus(pub, sub),
		Publisher: pub,
	}, nil
}

// Close shuts the bus down, which closes both underlying endpoints.
func (m *Messaging) Close() error {
	return m.Bus.Close()
}
