package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

const emailQueue = "email_queue"

// AMQPConfig names the broker and routing used to reach the mailer service.
type AMQPConfig struct {
	URL        string
	Exchange   string
	RoutingKey string
	Timeout    time.Duration
}

type publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// EmailTask is the JSON document the mailer consumes from email_queue.
type EmailTask struct {
	To       string            `json:"to"`
	Subject  string            `json:"subject"`
	Body     string            `json:"body"`
	Template string            `json:"template"`
	Data     map[string]string `json:"data"`
	Type     string            `json:"type"`
}

// AMQPEmailSender publishes EmailTasks to a durable direct exchange. A failed
// publish drops the channel; the next Send redials.
type AMQPEmailSender struct {
	cfg    AMQPConfig
	logger zerolog.Logger

	mu      sync.Mutex
	conn    *amqp.Connection
	channel publisher
	dial    func(cfg AMQPConfig) (*amqp.Connection, publisher, error)
}

// NewAMQPEmailSender connects and declares the exchange, queue and binding.
func NewAMQPEmailSender(cfg AMQPConfig, logger zerolog.Logger) (*AMQPEmailSender, error) {
	if cfg.Exchange == "" {
		cfg.Exchange = "mailer"
	}
	if cfg.RoutingKey == "" {
		cfg.RoutingKey = "email"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	s := &AMQPEmailSender{cfg: cfg, logger: logger, dial: dialAMQP}
	if err := s.connect(); err != nil {
		return nil, err
	}
	return s, nil
}

func dialAMQP(cfg AMQPConfig) (*amqp.Connection, publisher, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("open channel: %w", err)
	}

	if err := ch.ExchangeDeclare(cfg.Exchange, "direct", true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("declare exchange %s: %w", cfg.Exchange, err)
	}
	if _, err := ch.QueueDeclare(emailQueue, true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("declare queue: %w", err)
	}
	if err := ch.QueueBind(emailQueue, cfg.RoutingKey, cfg.Exchange, false, nil); err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("bind queue: %w", err)
	}
	return conn, ch, nil
}

// connect must be called with mu held or before the sender is shared.
func (s *AMQPEmailSender) connect() error {
	conn, ch, err := s.dial(s.cfg)
	if err != nil {
		return err
	}
	s.conn, s.channel = conn, ch
	return nil
}

func (s *AMQPEmailSender) reset() {
	if s.channel != nil {
		_ = s.channel.Close()
	}
	if s.conn != nil {
		_ = s.conn.Close()
	}
	s.conn, s.channel = nil, nil
}

func (s *AMQPEmailSender) Send(ctx context.Context, msg Message) error {
	payload, err := json.Marshal(EmailTask{
		To:       msg.To,
		Subject:  msg.Subject,
		Body:     msg.Body,
		Template: msg.Template,
		Data:     msg.Data,
		Type:     msg.Template,
	})
	if err != nil {
		return fmt.Errorf("marshal email task: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.channel == nil {
		if err := s.connect(); err != nil {
			return err
		}
	}

	err = s.channel.PublishWithContext(ctx, s.cfg.Exchange, s.cfg.RoutingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		Body:         payload,
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
	})
	if err != nil {
		s.logger.Warn().Err(err).Msg("rabbitmq publish failed, dropping channel")
		s.reset()
		return fmt.Errorf("publish email task: %w", err)
	}

	s.logger.Debug().Str("template", msg.Template).Msg("email task published")
	return nil
}

func (s *AMQPEmailSender) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reset()
	return nil
}
