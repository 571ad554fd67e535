package service

import (
	"context"
	"time"

	"bchat-be/internal/pkg/logger"
	"bchat-be/internal/pkg/mailer"
	"bchat-be/pkg/events"

	"github.com/ThreeDotsLabs/watermill/message"
)

type IConsumerService interface {
	Consume(ctx context.Context) error
}

// EventMirror forwards events outside the process. pkg/nats.Publisher satisfies it.
type EventMirror interface {
	Publish(ctx context.Context, event events.Event) error
}

type consumerService struct {
	subscriber   message.Subscriber
	topicName    string
	emailService mailer.IEmailService
	mirror       EventMirror
	logger       logger.ILogger
}

func NewConsumerService(
	subscriber message.Subscriber,
	topicName string,
	emailService mailer.IEmailService,
	mirror EventMirror,
	log logger.ILogger,
) IConsumerService {
	return &consumerService{
		subscriber:   subscriber,
		topicName:    topicName,
		emailService: emailService,
		mirror:       mirror,
		logger:       log,
	}
}

func (cs *consumerService) Consume(ctx context.Context) error {
	messages, err := cs.subscriber.Subscribe(ctx, cs.topicName)
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

// processMessage always acks. Mail and mirror failures are logged, not retried.
func (cs *consumerService) processMessage(ctx context.Context, msg *message.Message) {
	defer msg.Ack()

	evt, err := events.Decode(msg.Payload)
	if err != nil {
		cs.logger.Error("CONSUMER", "Failed to decode event", map[string]interface{}{
			"message_id": msg.UUID,
			"error":      err.Error(),
		})
		return
	}

	switch evt.EventType() {
	case events.UserRegistered:
		cs.sendOTP(evt)
	case events.RoomCreated:
		cs.sendRoomDetails(evt)
	}

	if cs.mirror != nil {
		if err := cs.mirror.Publish(ctx, evt); err != nil {
			cs.logger.Warn("CONSUMER", "Failed to mirror event", map[string]interface{}{
				"event": evt.EventType(),
				"error": err.Error(),
			})
		}
	}
}

func (cs *consumerService) sendOTP(evt events.BaseEvent) {
	email, otp := evt.String("email"), evt.String("otp")
	if email == "" || otp == "" {
		cs.logger.Warn("CONSUMER", "Registration event without email or otp", nil)
		return
	}
	if err := cs.emailService.SendOTP(email, otp); err != nil {
		cs.logger.Error("CONSUMER", "Failed to send OTP email", map[string]interface{}{
			"email": email,
			"error": err.Error(),
		})
	}
}

func (cs *consumerService) sendRoomDetails(evt events.BaseEvent) {
	email := evt.String("email")
	if email == "" {
		return
	}

	details := mailer.RoomDetails{
		RoomName: evt.String("room_name"),
		RoomCode: evt.String("room_code"),
		Secret:   evt.String("secret"),
	}
	if raw := evt.String("expires_at"); raw != "" {
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			details.ExpiresAt = &t
		}
	}

	if err := cs.emailService.SendRoomDetails(email, details); err != nil {
		cs.logger.Error("CONSUMER", "Failed to send room details email", map[string]interface{}{
			"room_code": details.RoomCode,
			"error":     err.Error(),
		})
	}
}
