package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"abipanel/internal/retry"

	"github.com/IBM/sarama"
	"github.com/sirupsen/logrus"
)

// EventType 事件类型
type EventType string

const (
	EventAddressSet      EventType = "contract_address_set"
	EventABILoaded       EventType = "abi_loaded"
	EventSettingsChanged EventType = "settings_changed"
)

// Event 状态变更事件
type Event struct {
	Type      EventType         `json:"type"`
	Timestamp time.Time         `json:"timestamp"`
	Fields    map[string]string `json:"fields,omitempty"`
}

// NewEvent 创建事件
func NewEvent(eventType EventType, fields map[string]string) Event {
	return Event{
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Fields:    fields,
	}
}

// Publisher 事件发布接口
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// NopPublisher 不发布任何事件
type NopPublisher struct{}

// Publish 丢弃事件
func (NopPublisher) Publish(context.Context, Event) error { return nil }

// Close 无操作
func (NopPublisher) Close() error { return nil }

// KafkaPublisher Kafka事件发布器
type KafkaPublisher struct {
	logger   *logrus.Logger
	topic    string
	producer sarama.SyncProducer
}

// NewKafkaPublisher 创建Kafka事件发布器
func NewKafkaPublisher(brokers []string, topic string, logger *logrus.Logger) (*KafkaPublisher, error) {
	logger.Infof("初始化Kafka事件发布器，brokers: %v, topic: %s", brokers, topic)

	// 配置Kafka生产者
	config := sarama.NewConfig()
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 5
	config.Producer.Return.Successes = true
	config.Producer.Timeout = 5 * time.Second
	config.Version = sarama.V2_8_0_0

	var producer sarama.SyncProducer
	err := retry.Do(context.Background(), retry.ConnectPolicy, logger, "连接Kafka", func(context.Context) error {
		var err error
		producer, err = sarama.NewSyncProducer(brokers, config)
		if errors.Is(err, sarama.ErrOutOfBrokers) {
			return err
		}
		return retry.Permanent(err)
	})
	if err != nil {
		return nil, fmt.Errorf("创建Kafka生产者失败: %w", err)
	}

	return NewKafkaPublisherWithProducer(producer, topic, logger), nil
}

// NewKafkaPublisherWithProducer 使用已有生产者创建发布器
func NewKafkaPublisherWithProducer(producer sarama.SyncProducer, topic string, logger *logrus.Logger) *KafkaPublisher {
	return &KafkaPublisher{
		logger:   logger,
		topic:    topic,
		producer: producer,
	}
}

// Publish 同步发送事件，事件类型作为消息键
func (k *KafkaPublisher) Publish(ctx context.Context, event Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("序列化事件失败: %w", err)
	}

	msg := &sarama.ProducerMessage{
		Topic: k.topic,
		Key:   sarama.StringEncoder(event.Type),
		Value: sarama.ByteEncoder(data),
	}

	partition, offset, err := k.producer.SendMessage(msg)
	if err != nil {
		return fmt.Errorf("发送事件到Kafka失败: %w", err)
	}

	k.logger.Debugf("事件已发送到Kafka topic '%s' (partition: %d, offset: %d): %s",
		k.topic, partition, offset, event.Type)
	return nil
}

// Close 关闭生产者
func (k *KafkaPublisher) Close() error {
	if k.producer != nil {
		return k.producer.Close()
	}
	return nil
}
