package service

import (
	"context"
	"encoding/json"
	"time"

	"kb-chat-be/internal/dto"
	"kb-chat-be/internal/pkg/logger"
	"kb-chat-be/pkg/events"
	pktNats "kb-chat-be/pkg/nats"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

type IConsumerService interface {
	Consume(ctx context.Context) error
}

// consumerService drains the internal completed-message topic and forwards
// each exchange to the NATS event bus. Forwarding is auxiliary: a failure is
// logged and the message acked so the bus never backs up.
type consumerService struct {
	pubSub         *gochannel.GoChannel
	topicName      string
	eventPublisher *pktNats.Publisher
	logger         logger.ILogger
}

func NewConsumerService(
	pubSub *gochannel.GoChannel,
	topicName string,
	eventPublisher *pktNats.Publisher,
	log logger.ILogger,
) IConsumerService {
	return &consumerService{
		pubSub:         pubSub,
		topicName:      topicName,
		eventPublisher: eventPublisher,
		logger:         log,
	}
}

func (cs *consumerService) Consume(ctx context.Context) error {
	messages, err := cs.pubSub.Subscribe(ctx, cs.topicName)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			cs.processMessage(ctx, msg)
		}
	}()

	return nil
}

func (cs *consumerService) processMessage(ctx context.Context, msg *message.Message) {
	// Always ack: invalid or unforwardable messages must not loop forever.
	defer msg.Ack()

	var payload dto.PublishChatCompletedMessage
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		cs.logger.Warn("consumer", "failed to unmarshal completed-message payload", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}

	if cs.eventPublisher == nil {
		return
	}

	evt := events.BaseEvent{
		Type: events.ChatMessageCompleted,
		Data: map[string]interface{}{
			"chat_session_id": payload.ChatSessionId,
			"message_id":      payload.MessageId,
			"user_id":         payload.UserId,
			"organization_id": payload.OrganizationId,
			"source_count":    payload.SourceCount,
		},
		OccurredAt: time.Now(),
	}
	if err := cs.eventPublisher.Publish(ctx, evt); err != nil {
		cs.logger.Warn("consumer", "failed to forward completed-message event", map[string]interface{}{
			"message_id": payload.MessageId.String(),
			"error":      err.Error(),
		})
	}
}
