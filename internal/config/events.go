package config

import (
	"log/slog"
	"strings"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/SAP-F-2025/quiz-service/internal/events"
)

const (
	PublisherKafka     = "kafka"
	PublisherGoChannel = "gochannel"
	PublisherMock      = "mock"
)

// EventConfig holds configuration for event publishing
type EventConfig struct {
	Enabled       bool
	Publisher     string // kafka, gochannel or mock
	KafkaBrokers  string
	Topic         string
	ConsumerGroup string
}

// GetKafkaBrokers returns Kafka brokers as a slice
func (c *EventConfig) GetKafkaBrokers() []string {
	brokers := strings.Split(c.KafkaBrokers, ",")
	for i := range brokers {
		brokers[i] = strings.TrimSpace(brokers[i])
	}
	return brokers
}

// CreateEventTransport creates the event publisher and, when the transport can deliver
// events back to this process, the subscriber the performance worker reads from.
// The subscriber is nil for the mock publisher.
func (c *EventConfig) CreateEventTransport(logger *slog.Logger) (events.EventPublisher, message.Subscriber, error) {
	if !c.Enabled {
		logger.Info("Event publishing disabled, using mock publisher")
		return events.NewMockEventPublisher(logger), nil, nil
	}

	switch c.Publisher {
	case PublisherKafka:
		logger.Info("Creating Kafka event publisher",
			"brokers", c.KafkaBrokers,
			"topic", c.Topic,
			"consumer_group", c.ConsumerGroup)

		publisher, err := events.NewKafkaEventPublisher(events.PublisherConfig{
			KafkaBrokers: c.GetKafkaBrokers(),
			TopicName:    c.Topic,
			Logger:       logger,
		})
		if err != nil {
			return nil, nil, err
		}
		subscriber, err := events.NewKafkaSubscriber(events.SubscriberConfig{
			KafkaBrokers:  c.GetKafkaBrokers(),
			ConsumerGroup: c.ConsumerGroup,
			Logger:        logger,
		})
		if err != nil {
			_ = publisher.Close()
			return nil, nil, err
		}
		return publisher, subscriber, nil
	case PublisherGoChannel:
		logger.Info("Using in-process event bus", "topic", c.Topic)
		pubSub := events.NewInProcessPubSub(logger)
		return events.NewWatermillEventPublisher(pubSub, c.Topic, logger), pubSub, nil
	case PublisherMock:
		logger.Info("Using mock event publisher")
		return events.NewMockEventPublisher(logger), nil, nil
	default:
		logger.Warn("Unknown event publisher type, falling back to mock", "publisher", c.Publisher)
		return events.NewMockEventPublisher(logger), nil, nil
	}
}
