package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"quiz-room-service/internal/domain"
)

// DefaultResultsQueue receives one message per completed quiz.
const DefaultResultsQueue = "quiz.results"

type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// ResultPublisher publishes final leaderboards to a durable RabbitMQ queue.
type ResultPublisher struct {
	conn   *amqp.Connection
	amqpCh *amqp.Channel
	ch     channel
	queue  string
	now    func() time.Time

	mu sync.Mutex
}

// Dial connects to url and declares queue.
func Dial(url, queue string) (*ResultPublisher, error) {
	if queue == "" {
		queue = DefaultResultsQueue
	}
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}
	_, err = ch.QueueDeclare(
		queue,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare queue: %w", err)
	}
	return &ResultPublisher{conn: conn, amqpCh: ch, ch: ch, queue: queue, now: time.Now}, nil
}

func (p *ResultPublisher) PublishResult(ctx context.Context, result domain.QuizResult) error {
	body, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ch.PublishWithContext(
		ctx,
		"",      // default exchange
		p.queue, // routing key
		false,   // mandatory
		false,   // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    result.RoomID,
			Timestamp:    p.now(),
			Body:         body,
		},
	)
}

func (p *ResultPublisher) Close() error {
	if p.amqpCh != nil {
		p.amqpCh.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}
