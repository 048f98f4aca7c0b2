// Package kafka provides a Kafka-backed channel for execution lifecycle events.
package kafka

import (
	"os"
	"strings"

	"github.com/IBM/sarama"
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-kafka/v3/pkg/kafka"
)

const defaultBroker = "localhost:9092"

// CreateChannel builds the publisher and subscriber pair for lifecycle
// events. Brokers come from KAFKA_BROKERS (comma separated), defaulting
// to a single local broker. The consumer group is "flowbot.<service>"
// unless KAFKA_CONSUMER_GROUP overrides it; every consumer of the same
// service shares the group so events are processed once.
func CreateChannel(logger watermill.LoggerAdapter, serviceName string) (*kafka.Publisher, *kafka.Subscriber, error) {
	brokers := brokerList()

	group := os.Getenv("KAFKA_CONSUMER_GROUP")
	if group == "" {
		group = "flowbot." + serviceName
	}

	subscriberConfig := kafka.DefaultSaramaSubscriberConfig()
	subscriberConfig.ClientID = "flowbot-" + serviceName
	subscriberConfig.Consumer.Offsets.Initial = sarama.OffsetOldest

	subscriber, err := kafka.NewSubscriber(
		kafka.SubscriberConfig{
			Brokers:               brokers,
			Unmarshaler:           kafka.DefaultMarshaler{},
			OverwriteSaramaConfig: subscriberConfig,
			ConsumerGroup:         group,
			OTELEnabled:           true,
		},
		logger,
	)
	if err != nil {
		return nil, nil, err
	}

	publisherConfig := sarama.NewConfig()
	publisherConfig.ClientID = "flowbot-" + serviceName
	publisherConfig.Producer.Return.Successes = true
	publisherConfig.Producer.RequiredAcks = sarama.WaitForAll

	publisher, err := kafka.NewPublisher(
		kafka.PublisherConfig{
			Brokers:               brokers,
			Marshaler:             kafka.DefaultMarshaler{},
			OverwriteSaramaConfig: publisherConfig,
			OTELEnabled:           true,
		},
		logger,
	)
	if err != nil {
		subscriber.Close()

		return nil, nil, err
	}

	return publisher, subscriber, nil
}

func brokerList() []string {
	raw := os.Getenv("KAFKA_BROKERS")
	if strings.TrimSpace(raw) == "" {
		return []string{defaultBroker}
	}

	var brokers []string

	for _, broker := range strings.Split(raw, ",") {
		if broker = strings.TrimSpace(broker); broker != "" {
			brokers = append(brokers, broker)
		}
	}

	return brokers
}
