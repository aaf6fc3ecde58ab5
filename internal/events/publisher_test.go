package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKafkaPublisher_Publish(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	producer.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		var event Event
		if err := json.Unmarshal(val, &event); err != nil {
			return err
		}
		if event.Type != EventABILoaded {
			return errors.New("unexpected event type")
		}
		if event.Fields["label"] != "https://x/abi.json" {
			return errors.New("unexpected label")
		}
		return nil
	})

	publisher := NewKafkaPublisherWithProducer(producer, "abipanel_events", logrus.New())
	err := publisher.Publish(context.Background(), NewEvent(EventABILoaded, map[string]string{
		"label": "https://x/abi.json",
	}))

	require.NoError(t, err)
	require.NoError(t, publisher.Close())
}

func TestKafkaPublisher_PublishFailure(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	producer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	publisher := NewKafkaPublisherWithProducer(producer, "abipanel_events", logrus.New())
	err := publisher.Publish(context.Background(), NewEvent(EventAddressSet, nil))

	assert.ErrorIs(t, err, sarama.ErrOutOfBrokers)
	require.NoError(t, publisher.Close())
}

func TestKafkaPublisher_CanceledContext(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	publisher := NewKafkaPublisherWithProducer(producer, "abipanel_events", logrus.New())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, publisher.Publish(ctx, NewEvent(EventSettingsChanged, nil)), context.Canceled)
	require.NoError(t, publisher.Close())
}

func TestNopPublisher(t *testing.T) {
	var p Publisher = NopPublisher{}
	assert.NoError(t, p.Publish(context.Background(), NewEvent(EventAddressSet, nil)))
	assert.NoError(t, p.Close())
}
