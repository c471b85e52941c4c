package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	log "github.com/sirupsen/logrus"

	"github.com/dragon-zzuni/smart-assistant/internal/domain"
)

const (
	// DefaultExchange is the topic exchange todo lists are published to
	DefaultExchange = "assistant"
	// RoutingKeyTodoBuilt is used for every published todo list
	RoutingKeyTodoBuilt = "assistant.todo.built"

	publishTimeout = 5 * time.Second
)

// todoMessage is the JSON body of a published todo list
type todoMessage struct {
	RunID       string          `json:"run_id"`
	GeneratedAt time.Time       `json:"generated_at"`
	Todo        domain.TodoList `json:"todo"`
}

// Publisher publishes todo lists to a RabbitMQ topic exchange. It dials per
// delivery since runs are minutes apart.
type Publisher struct {
	url      string
	exchange string
}

// NewPublisher creates a new Publisher
func NewPublisher(url, exchange string) *Publisher {
	if exchange == "" {
		exchange = DefaultExchange
	}
	return &Publisher{url: url, exchange: exchange}
}

// Name identifies the sink in logs
func (p *Publisher) Name() string {
	return "amqp:" + p.exchange
}

// Deliver declares the exchange and publishes the todo list
func (p *Publisher) Deliver(ctx context.Context, d Delivery) error {
	conn, err := amqp.Dial(p.url)
	if err != nil {
		return fmt.Errorf("%w: failed to connect to RabbitMQ: %v", ErrDeliveryFailed, err)
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("%w: failed to open channel: %v", ErrDeliveryFailed, err)
	}
	defer ch.Close()

	err = ch.ExchangeDeclare(
		p.exchange,
		"topic", // type
		true,    // durable
		false,   // auto-deleted
		false,   // internal
		false,   // no-wait
		nil,     // arguments
	)
	if err != nil {
		return fmt.Errorf("%w: failed to declare exchange '%s': %v", ErrDeliveryFailed, p.exchange, err)
	}

	msg, err := buildPublishing(d)
	if err != nil {
		return err
	}

	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, publishTimeout)
		defer cancel()
	}

	err = ch.PublishWithContext(
		ctx,
		p.exchange,
		RoutingKeyTodoBuilt,
		false, // mandatory
		false, // immediate
		msg,
	)
	if err != nil {
		return fmt.Errorf("%w: failed to publish to exchange '%s': %v", ErrDeliveryFailed, p.exchange, err)
	}

	log.WithFields(log.Fields{
		"exchange":   p.exchange,
		"routingKey": RoutingKeyTodoBuilt,
		"run_id":     d.RunID,
		"items":      d.Todo.TotalItems,
	}).Info("[Notify] Todo list published")
	return nil
}

// buildPublishing wraps the todo list in a persistent JSON message
func buildPublishing(d Delivery) (amqp.Publishing, error) {
	body, err := json.Marshal(todoMessage{
		RunID:       d.RunID,
		GeneratedAt: d.GeneratedAt,
		Todo:        d.Todo,
	})
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("%w: failed to marshal todo list: %v", ErrDeliveryFailed, err)
	}

	return amqp.Publishing{
		ContentType:  "application/json",
		MessageId:    d.RunID,
		Body:         body,
		DeliveryMode: amqp.Persistent,
		Timestamp:    d.GeneratedAt,
	}, nil
}
