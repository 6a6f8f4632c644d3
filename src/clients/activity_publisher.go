package clients

import (
	"encoding/json"
	"fmt"
	"time"
	"tutorhub-portal-svc/src/internal/config"
	"tutorhub-portal-svc/src/internal/models"

	"github.com/sirupsen/logrus"
	"github.com/streadway/amqp"
)

// ActivityPublisher reports portal activity to the rest of the platform
type ActivityPublisher interface {
	Publish(message models.ActivityMessage) error
}

type amqpPublisher struct {
	channel *amqp.Channel
	cfg     *config.RabbitMQConfig
}

// NewActivityPublisher publishes to the configured exchange over channel
func NewActivityPublisher(cfg *config.RabbitMQConfig, channel *amqp.Channel) ActivityPublisher {
	return &amqpPublisher{
		channel: channel,
		cfg:     cfg,
	}
}

func (p *amqpPublisher) Publish(message models.ActivityMessage) error {
	if message.Timestamp.IsZero() {
		message.Timestamp = time.Now()
	}

	body, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal activity message: %w", err)
	}

	err = p.channel.Publish(
		p.cfg.Exchange,
		p.cfg.RoutingKey,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType: "application/json",
			Body:        body,
			Timestamp:   message.Timestamp,
		},
	)

	if err != nil {
		logrus.WithError(err).Error("Failed to publish activity message")
		return fmt.Errorf("failed to publish activity message: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"client_id":   message.ClientID,
		"user_id":     message.UserID,
		"service":     message.ServiceName,
		"action":      message.Action,
		"exchange":    p.cfg.Exchange,
		"routing_key": p.cfg.RoutingKey,
	}).Debug("Activity message published")

	return nil
}

type noopPublisher struct{}

// NewNoopPublisher is used when RabbitMQ is disabled
func NewNoopPublisher() ActivityPublisher {
	return noopPublisher{}
}

func (noopPublisher) Publish(message models.ActivityMessage) error {
	logrus.WithFields(logrus.Fields{
		"user_id": message.UserID,
		"action":  message.Action,
	}).Debug("Activity publishing disabled, dropping message")
	return nil
}
