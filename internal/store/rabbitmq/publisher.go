package rabbitmq

import (
	"context"
	"encoding/json"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// JobMessage is the wire payload for one safe-search job. The worker
// decodes the same struct, so the two binaries cannot drift apart.
type JobMessage struct {
	JobID      string    `json:"job_id"`
	ItemID     string    `json:"item_id"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// Publisher hands moderation jobs to the queue. The main queue
// dead-letters to <queue>.dlq; <queue>.retry TTLs messages back onto
// the main queue.
type Publisher struct {
	conn  *amqp.Connection
	ch    *amqp.Channel
	queue string
}

func NewPublisher(url, queue string) (*Publisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	if err := declareTopology(ch, queue); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}
	return &Publisher{conn: conn, ch: ch, queue: queue}, nil
}

// MainQueueArgs returns the declare arguments of the main queue so
// consumers can redeclare it without a precondition mismatch.
func MainQueueArgs(queue string) amqp.Table {
	return amqp.Table{
		"x-dead-letter-exchange":    "",
		"x-dead-letter-routing-key": queue + ".dlq",
	}
}

func declareTopology(ch *amqp.Channel, queue string) error {
	if _, err := ch.QueueDeclare(queue+".dlq", true, false, false, false, nil); err != nil {
		return err
	}
	if _, err := ch.QueueDeclare(queue+".retry", true, false, false, false, amqp.Table{
		"x-dead-letter-exchange":    "",
		"x-dead-letter-routing-key": queue,
	}); err != nil {
		return err
	}
	_, err := ch.QueueDeclare(queue, true, false, false, false, MainQueueArgs(queue))
	return err
}

func (p *Publisher) Close() error {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}

// PublishJob enqueues one safe-search job for the worker.
func (p *Publisher) PublishJob(ctx context.Context, jobID, itemID string) error {
	body, err := json.Marshal(JobMessage{
		JobID:      jobID,
		ItemID:     itemID,
		EnqueuedAt: time.Now(),
	})
	if err != nil {
		return err
	}

	cctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	return p.ch.PublishWithContext(cctx,
		"",      // default exchange
		p.queue, // routing key = queue
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    jobID,
			Timestamp:    time.Now(),
			Body:         body,
		},
	)
}
