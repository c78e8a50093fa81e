package main

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"

	"github.com/foundly/foundly/internal/config"
	"github.com/foundly/foundly/internal/db"
	"github.com/foundly/foundly/internal/item"
	"github.com/foundly/foundly/internal/moderation"
	"github.com/foundly/foundly/internal/store/rabbitmq"
)

func workerConcurrency() int {
	v := os.Getenv("WORKER_CONCURRENCY")
	if v == "" {
		return 2
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 2
	}
	if n > 50 {
		return 50
	}
	return n
}

func main() {
	cfg := config.Load()

	logger := logrus.New()
	if cfg.LogFormat == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}

	gdb := db.Connect(cfg.DBDSN)

	itemSvc := item.NewService(item.NewRepo(gdb), logger)
	provider := moderation.NewVisionProvider(cfg.VisionBaseURL, cfg.VisionAPIKey)
	modSvc := moderation.NewService(gdb, itemSvc, provider, logger)

	conn, err := amqp.Dial(cfg.RabbitURL)
	if err != nil {
		logger.Fatalf("rabbit dial: %v", err)
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		logger.Fatalf("rabbit channel: %v", err)
	}
	defer ch.Close()

	// args must match the publisher's declaration of the same queue
	_, err = ch.QueueDeclare(cfg.ModerationQueue, true, false, false, false,
		rabbitmq.MainQueueArgs(cfg.ModerationQueue))
	if err != nil {
		logger.Fatalf("queue declare: %v", err)
	}

	concurrency := workerConcurrency()

	if err := ch.Qos(concurrency, 0, false); err != nil {
		logger.Fatalf("qos: %v", err)
	}

	msgs, err := ch.Consume(cfg.ModerationQueue, "", false, false, false, false, nil)
	if err != nil {
		logger.Fatalf("consume: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Infof("worker started, queue=%s concurrency=%d", cfg.ModerationQueue, concurrency)

	jobs := make(chan amqp.Delivery, concurrency*2)

	var wg sync.WaitGroup
	wg.Add(concurrency)
	for i := 0; i < concurrency; i++ {
		go func(workerID int) {
			defer wg.Done()
			for d := range jobs {
				var m rabbitmq.JobMessage
				if err := json.Unmarshal(d.Body, &m); err != nil || m.JobID == "" {
					logger.WithField("worker", workerID).Warnf("bad message: %v", err)
					_ = d.Nack(false, false)
					continue
				}

				start := time.Now()
				if err := modSvc.HandleJob(ctx, m.JobID); err != nil {
					logger.WithFields(logrus.Fields{
						"worker":  workerID,
						"job_id":  m.JobID,
						"item_id": m.ItemID,
						"cost":    time.Since(start).String(),
					}).Warnf("job failed: %v", err)
					_ = d.Nack(false, false)
					continue
				}

				if err := d.Ack(false); err != nil {
					logger.WithFields(logrus.Fields{
						"worker": workerID,
						"job_id": m.JobID,
					}).Warnf("ack failed: %v", err)
				}
			}
		}(i)
	}

	// dispatcher
	for {
		select {
		case <-ctx.Done():
			logger.Info("worker shutting down")
			close(jobs)
			wg.Wait()
			return

		case d, ok := <-msgs:
			if !ok {
				logger.Warn("delivery channel closed")
				time.Sleep(1 * time.Second)
				continue
			}
			jobs <- d
		}
	}
}
