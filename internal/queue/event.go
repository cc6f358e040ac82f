// Package queue carries outbound email through RabbitMQ: handlers publish to
// the email.outbound queue and a background consumer delivers over SMTP.
package queue

// EmailOutboundEvent is the payload published for every outbound mail. It is
// self-contained so the consumer never touches the primary database.
type EmailOutboundEvent struct {
	To         string `json:"to"`
	Subject    string `json:"subject"`
	HTMLBody   string `json:"html_body"`
	EnqueuedAt string `json:"enqueued_at"`
}

const emailQueueName = "email.outbound"
