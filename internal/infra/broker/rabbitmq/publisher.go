package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Publisher sends outbox events to a durable queue named after the topic.
type Publisher struct {
	url string

	mu       sync.Mutex
	conn     *amqp.Connection
	ch       *amqp.Channel
	declared map[string]bool
}

func NewPublisher(url string) (*Publisher, error) {
	if url == "" {
		return nil, errors.New("rabbitmq: url is required")
	}
	p := &Publisher{url: url, declared: map[string]bool{}}
	if err := p.connect(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Publisher) connect() error {
	conn, err := amqp.Dial(p.url)
	if err != nil {
		return fmt.Errorf("rabbitmq: dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("rabbitmq: channel: %w", err)
	}
	p.conn, p.ch = conn, ch
	p.declared = map[string]bool{}
	return nil
}

// Publish reconnects once when the channel was closed by the broker.
func (p *Publisher) Publish(ctx context.Context, topic string, key string, payload []byte, headers map[string]string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch == nil || p.ch.IsClosed() {
		p.closeLocked()
		if err := p.connect(); err != nil {
			return err
		}
	}
	if !p.declared[topic] {
		if _, err := p.ch.QueueDeclare(topic, true, false, false, false, nil); err != nil {
			return fmt.Errorf("rabbitmq: declare %s: %w", topic, err)
		}
		p.declared[topic] = true
	}
	return p.ch.PublishWithContext(ctx, "", topic, false, false, Publishing(key, payload, headers))
}

func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closeLocked()
}

func (p *Publisher) closeLocked() error {
	var errs []error
	if p.ch != nil {
		if err := p.ch.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
			errs = append(errs, err)
		}
		p.ch = nil
	}
	if p.conn != nil {
		if err := p.conn.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
			errs = append(errs, err)
		}
		p.conn = nil
	}
	return errors.Join(errs...)
}

// Publishing builds a persistent message; the booking id travels as the
// correlation id so consumers can group events per booking.
func Publishing(key string, payload []byte, headers map[string]string) amqp.Publishing {
	table := amqp.Table{}
	contentType := "application/json"
	for k, v := range headers {
		if k == "content-type" {
			contentType = v
			continue
		}
		table[k] = v
	}
	return amqp.Publishing{
		ContentType:   contentType,
		DeliveryMode:  amqp.Persistent,
		Timestamp:     time.Now().UTC(),
		CorrelationId: key,
		Headers:       table,
		Body:          payload,
	}
}
