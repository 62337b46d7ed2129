package output

import (
	"fmt"
	"log/slog"

	"github.com/chrisdamba/trafikcam/internal/models"
	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
)

type ConfluentProducer struct {
	producer *kafka.Producer
	logger   *slog.Logger
}

// ConfluentConfigMap is the producer configuration used for managed
// clusters such as Confluent Cloud.
func ConfluentConfigMap(cfg models.KafkaConfig) kafka.ConfigMap {
	return kafka.ConfigMap{
		"bootstrap.servers":       cfg.BrokerList,
		"security.protocol":       cfg.SecurityProtocol,
		"sasl.mechanisms":         cfg.SaslMechanism,
		"sasl.username":           cfg.SaslUsername,
		"sasl.password":           cfg.SaslPassword,
		"session.timeout.ms":      cfg.SessionTimeoutMs,
		"linger.ms":               10,
		"batch.num.messages":      100,
		"compression.type":        "snappy",
		"message.timeout.ms":      300000,
		"enable.idempotence":      true,
		"acks":                    "all",
		"retry.backoff.ms":        100,
		"socket.keepalive.enable": true,
	}
}

func NewConfluentProducer(configMap kafka.ConfigMap, logger *slog.Logger) (*ConfluentProducer, error) {
	producer, err := kafka.NewProducer(&configMap)
	if err != nil {
		return nil, fmt.Errorf("failed to create Confluent Kafka producer: %w", err)
	}

	// delivery reports
	go func() {
		for e := range producer.Events() {
			switch ev := e.(type) {
			case *kafka.Message:
				if ev.TopicPartition.Error != nil {
					logger.Error("kafka_delivery_failed", "partition", ev.TopicPartition.String(), "err", ev.TopicPartition.Error)
				} else {
					logger.Debug("kafka_message_delivered", "partition", ev.TopicPartition.String())
				}
			}
		}
	}()

	logger.Info("kafka_producer_ready", "client", "confluent")
	return &ConfluentProducer{producer: producer, logger: logger}, nil
}

func (c *ConfluentProducer) WriteMessage(topic string, msg []byte) error {
	if c.producer == nil {
		return fmt.Errorf("confluent kafka producer is not initialized")
	}

	err := c.producer.Produce(&kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &topic, Partition: kafka.PartitionAny},
		Value:          msg,
	}, nil)
	if err != nil {
		return fmt.Errorf("failed to produce message to topic %s: %w", topic, err)
	}

	c.producer.Flush(1000)
	return nil
}

func (c *ConfluentProducer) Close() error {
	if c.producer != nil {
		c.producer.Flush(5000)
		c.producer.Close()
	}
	return nil
}
