package events

import (
	"context"
	"encoding/json"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/rs/zerolog/log"
)

const GrowthTopic = "growth"

// WatermillSink publishes events to a watermill Publisher as JSON messages.
type WatermillSink struct {
	publisher message.Publisher
	topic     string
}

func NewWatermillSink(publisher message.Publisher, topic string) *WatermillSink {
	return &WatermillSink{
		publisher: publisher,
		topic:     topic,
	}
}

func (w *WatermillSink) PublishEvent(event GrowthEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal growth event")
		return err
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	if err := w.publisher.Publish(w.topic, msg); err != nil {
		log.Error().Err(err).Str("topic", w.topic).Msg("Failed to publish growth event")
		return err
	}

	log.Trace().Str("topic", w.topic).Str("event_type", string(event.Type)).Msg("Published growth event")
	return nil
}

var _ EventSink = (*WatermillSink)(nil)

// NewGoChannel returns an in-process pub/sub that delivers messages in
// publishing order.
func NewGoChannel(verbose bool) *gochannel.GoChannel {
	var logger watermill.LoggerAdapter = watermill.NopLogger{}
	if verbose {
		logger = NewWatermillLogger(log.Logger)
	}
	return gochannel.NewGoChannel(gochannel.Config{
		BlockPublishUntilSubscriberAck: true,
	}, logger)
}

// Consume subscribes to topic and calls handler for every growth event until
// ctx is cancelled or the subscriber is closed. Undecodable messages are
// acked and skipped.
func Consume(ctx context.Context, subscriber message.Subscriber, topic string, handler func(GrowthEvent)) error {
	messages, err := subscriber.Subscribe(ctx, topic)
	if err != nil {
		return err
	}
	for msg := range messages {
		e, err := ParseGrowthEvent(msg.Payload)
		if err != nil {
			log.Warn().Err(err).Str("message_id", msg.UUID).Msg("Skipping growth message")
			msg.Ack()
			continue
		}
		handler(e)
		msg.Ack()
	}
	return nil
}
