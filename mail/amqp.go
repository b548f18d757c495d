package mail

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// MessageTypeConfirmation tags confirmation envelopes on the queue.
const MessageTypeConfirmation = "signin.confirmation"

// Envelope is the JSON body published for each confirmation message.
type Envelope struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Payload   Payload   `json:"payload"`
}

// Payload is the mailer-facing part of an Envelope.
type Payload struct {
	To               string `json:"to"`
	Name             string `json:"name,omitempty"`
	Provider         string `json:"provider"`
	Code             string `json:"code"`
	ExpiresInSeconds int64  `json:"expires_in_seconds"`
}

// NewEnvelope wraps msg into a fresh Envelope.
func NewEnvelope(msg Confirmation, now time.Time) Envelope {
	return Envelope{
		ID:        uuid.NewString(),
		Type:      MessageTypeConfirmation,
		Timestamp: now.UTC(),
		Payload: Payload{
			To:               msg.To,
			Name:             msg.Name,
			Provider:         msg.Provider,
			Code:             msg.Code,
			ExpiresInSeconds: int64(msg.ExpiresIn / time.Second),
		},
	}
}

// AMQPConfig configures an AMQPSender.
type AMQPConfig struct {
	URL   string
	Queue string
}

// AMQPSender publishes confirmation envelopes to a durable RabbitMQ queue.
// The channel is reopened on the next send after the broker closes it.
type AMQPSender struct {
	queue  string
	logger *slog.Logger

	mu      sync.Mutex
	conn    *amqp.Connection
	channel *amqp.Channel
	closed  bool
}

// DialAMQP connects to the broker and declares the queue.
func DialAMQP(cfg AMQPConfig, logger *slog.Logger) (*AMQPSender, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("mail: amqp url is required")
	}
	if cfg.Queue == "" {
		cfg.Queue = "gosocialauth.mail"
	}
	if logger == nil {
		logger = slog.Default()
	}

	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("dial amqp: %w", err)
	}
	s := &AMQPSender{queue: cfg.Queue, logger: logger, conn: conn}
	if _, err := s.openChannel(); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return s, nil
}

func (s *AMQPSender) openChannel() (*amqp.Channel, error) {
	ch, err := s.conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if _, err := ch.QueueDeclare(s.queue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("declare queue %s: %w", s.queue, err)
	}
	s.channel = ch
	return ch, nil
}

func (s *AMQPSender) currentChannel() (*amqp.Channel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrSenderClosed
	}
	if s.channel != nil && !s.channel.IsClosed() {
		return s.channel, nil
	}
	if s.conn.IsClosed() {
		return nil, fmt.Errorf("amqp connection closed")
	}
	return s.openChannel()
}

// SendConfirmation implements Sender.
func (s *AMQPSender) SendConfirmation(ctx context.Context, msg Confirmation) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	env := NewEnvelope(msg, time.Now())
	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}

	ch, err := s.currentChannel()
	if err != nil {
		return err
	}
	err = ch.PublishWithContext(ctx, "", s.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    env.ID,
		Timestamp:    env.Timestamp,
		Type:         env.Type,
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("publish to %s: %w", s.queue, err)
	}

	s.logger.Debug("confirmation queued", "queue", s.queue, "message_id", env.ID, "provider", msg.Provider)
	return nil
}

// Close closes the channel and the connection.
func (s *AMQPSender) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if s.channel != nil {
		_ = s.channel.Close()
	}
	return s.conn.Close()
}
