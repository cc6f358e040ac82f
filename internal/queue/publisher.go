package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/tutorhub/tutorhub/internal/mailer"
)

// Publisher implements mailer.Mailer by publishing every mail as a persistent
// message on the email.outbound queue. A mutex guards the channel; amqp
// channels are not safe for concurrent publishes.
type Publisher struct {
	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
	url  string
}

// NewPublisher dials the broker and declares the durable queue. The returned
// Publisher re-dials lazily if the connection drops between publishes.
func NewPublisher(url string) (*Publisher, error) {
	p := &Publisher{url: url}
	if err := p.connect(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Publisher) connect() error {
	conn, err := amqp.Dial(p.url)
	if err != nil {
		return fmt.Errorf("email-publisher: dial broker: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("email-publisher: open channel: %w", err)
	}
	if _, err := ch.QueueDeclare(emailQueueName, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return fmt.Errorf("email-publisher: declare queue: %w", err)
	}
	p.conn, p.ch = conn, ch
	return nil
}

// Send publishes the mail. One reconnect attempt is made on a closed
// connection before giving up.
func (p *Publisher) Send(ctx context.Context, m mailer.Mail) error {
	ev := EmailOutboundEvent{
		To:         m.To,
		Subject:    m.Subject,
		HTMLBody:   m.HTMLBody,
		EnqueuedAt: time.Now().UTC().Format(time.RFC3339),
	}
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("email-publisher: marshal: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	pub := func() error {
		return p.ch.PublishWithContext(ctx, "", emailQueueName, false, false, amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
		})
	}
	if err := pub(); err != nil {
		if rerr := p.connect(); rerr != nil {
			return rerr
		}
		return pub()
	}
	return nil
}

// Close releases the channel and connection.
func (p *Publisher) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		_ = p.conn.Close()
	}
}
