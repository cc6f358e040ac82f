package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/tutorhub/tutorhub/internal/mailer"
)

// StartEmailConsumer connects to the broker, declares the email.outbound
// queue and delivers each message through the given mailer. It runs a
// reconnect loop with exponential backoff and returns only when ctx is
// cancelled. A mail that fails to deliver is logged and rejected without
// requeue; there is no retry path back into the primary flow.
func StartEmailConsumer(ctx context.Context, url string, deliver mailer.Mailer) {
	backoff := time.Second
	for {
		if ctx.Err() != nil {
			return
		}
		conn, err := amqp.Dial(url)
		if err != nil {
			log.Printf("email-consumer: dial broker: %v; retrying in %s", err, backoff)
			if !sleepCtx(ctx, backoff) {
				return
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		if err := consumeLoop(ctx, conn, deliver); err != nil {
			log.Printf("email-consumer: consume loop ended: %v; reconnecting", err)
		}
		_ = conn.Close()
		if !sleepCtx(ctx, 2*time.Second) {
			return
		}
	}
}

func consumeLoop(ctx context.Context, conn *amqp.Connection, deliver mailer.Mailer) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(20, 0, false); err != nil {
		log.Printf("email-consumer: set QoS failed: %v", err)
	}

	if _, err := ch.QueueDeclare(emailQueueName, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}

	msgs, err := ch.Consume(emailQueueName, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			if err := handleDelivery(ctx, d.Body, deliver); err != nil {
				log.Printf("email-consumer: deliver failed: %v", err)
				_ = d.Nack(false, false) // reject, no requeue: avoid tight redelivery loops
				continue
			}
			_ = d.Ack(false)
		}
	}
}

func handleDelivery(ctx context.Context, body []byte, deliver mailer.Mailer) error {
	var ev EmailOutboundEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	return deliver.Send(ctx, mailer.Mail{To: ev.To, Subject: ev.Subject, HTMLBody: ev.HTMLBody})
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
