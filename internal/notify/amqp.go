package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	amqp "github.com/rabbitmq/amqp091-go"
)

func declare(ch *amqp.Channel, queue string) error {
	_, err := ch.QueueDeclare(
		queue, // name of the queue
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	)
	return err
}

// Publisher publishes events as JSON to a durable queue.
type Publisher struct {
	conn  *amqp.Connection
	queue string
}

func NewPublisher(conn *amqp.Connection, queue string) (*Publisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, err
	}
	defer ch.Close()
	if err := declare(ch, queue); err != nil {
		return nil, fmt.Errorf("declare %s: %w", queue, err)
	}
	return &Publisher{conn: conn, queue: queue}, nil
}

func (p *Publisher) Dispatch(ctx context.Context, e Event) error {
	body, err := json.Marshal(e)
	if err != nil {
		return err
	}
	ch, err := p.conn.Channel()
	if err != nil {
		return err
	}
	defer ch.Close()

	return ch.PublishWithContext(ctx,
		"",      // exchange
		p.queue, // routing key (queue name)
		false,   // mandatory
		false,   // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    e.OrderID,
			Body:         body,
		},
	)
}

// Consume registers handler on queue. Deliveries are handled sequentially
// until ctx is done or the channel closes.
func Consume(ctx context.Context, conn *amqp.Connection, queue string, h *Handler) error {
	ch, err := conn.Channel()
	if err != nil {
		return err
	}
	if err := declare(ch, queue); err != nil {
		ch.Close()
		return err
	}
	msgs, err := ch.Consume(
		queue, // queue
		"",    // consumer
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,   // args
	)
	if err != nil {
		ch.Close()
		return err
	}

	go func() {
		defer ch.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case d, ok := <-msgs:
				if !ok {
					log.Printf("[notify] delivery channel closed")
					return
				}
				h.Handle(ctx, d)
			}
		}
	}()
	return nil
}

// NewDispatcher dials url and returns a Publisher on queue. An empty url
// yields a LogDispatcher. The returned func closes the connection.
func NewDispatcher(url, queue string) (Dispatcher, func(), error) {
	if url == "" {
		log.Printf("[notify] AMQP_URL not set, logging notifications only")
		return LogDispatcher{}, func() {}, nil
	}
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, nil, fmt.Errorf("amqp dial: %w", err)
	}
	p, err := NewPublisher(conn, queue)
	if err != nil {
		conn.Close()
		return nil, nil, err
	}
	log.Printf("[notify] publishing to queue %s", queue)
	return p, func() { _ = conn.Close() }, nil
}
