package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// NATSConfig describes the JetStream stream and durable consumer backing a
// NATSQueue.
type NATSConfig struct {
	URL        string
	Stream     string
	Subject    string
	Consumer   string
	AckWait    time.Duration
	MaxDeliver int
}

// NATSQueue is a durable queue on a JetStream work-queue stream. Delivery
// is at least once; a message not acked within AckWait is redelivered up to
// MaxDeliver times.
type NATSQueue struct {
	nc       *nats.Conn
	js       jetstream.JetStream
	consumer jetstream.Consumer
	cfg      NATSConfig
	log      *slog.Logger
}

// NewNATSQueue connects and creates the stream and consumer if missing.
func NewNATSQueue(ctx context.Context, cfg NATSConfig, log *slog.Logger) (*NATSQueue, error) {
	if cfg.AckWait <= 0 {
		cfg.AckWait = 10 * time.Minute
	}
	if cfg.MaxDeliver <= 0 {
		cfg.MaxDeliver = 3
	}

	nc, err := nats.Connect(cfg.URL, nats.Name("docclass"))
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("get jetstream: %w", err)
	}

	stream, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      cfg.Stream,
		Subjects:  []string{cfg.Subject},
		Retention: jetstream.WorkQueuePolicy,
		Storage:   jetstream.FileStorage,
	})
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create stream %s: %w", cfg.Stream, err)
	}

	consumer, err := stream.CreateOrUpdateConsumer(ctx, jetstream.ConsumerConfig{
		Durable:       cfg.Consumer,
		FilterSubject: cfg.Subject,
		AckPolicy:     jetstream.AckExplicitPolicy,
		AckWait:       cfg.AckWait,
		MaxDeliver:    cfg.MaxDeliver,
	})
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create consumer: %w", err)
	}

	log.Info("nats queue ready", "stream", cfg.Stream, "subject", cfg.Subject, "consumer", cfg.Consumer)
	return &NATSQueue{nc: nc, js: js, consumer: consumer, cfg: cfg, log: log}, nil
}

func (q *NATSQueue) Enqueue(ctx context.Context, req Request) error {
	data, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	if _, err := q.js.Publish(ctx, q.cfg.Subject, data, jetstream.WithMsgID(req.JobID)); err != nil {
		return fmt.Errorf("publish job %s: %w", req.JobID, err)
	}
	return nil
}

func (q *NATSQueue) Consume(ctx context.Context, h Handler) error {
	failures := 0
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if q.nc.IsClosed() {
			return nil
		}

		msgs, err := q.consumer.Fetch(1, jetstream.FetchMaxWait(5*time.Second))
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			failures++
			q.log.Debug("fetch failed", "error", err, "failures", failures)
			select {
			case <-time.After(fetchBackoff(failures)):
			case <-ctx.Done():
				return ctx.Err()
			}
			continue
		}
		failures = 0
		for msg := range msgs.Messages() {
			q.handle(ctx, msg, h)
		}
		if msgs.Error() != nil && ctx.Err() == nil {
			q.log.Debug("fetch error", "error", msgs.Error())
		}
	}
}

// fetchBackoff doubles from 100ms per consecutive fetch failure, capped at 5s.
func fetchBackoff(failures int) time.Duration {
	d := 100 * time.Millisecond
	for i := 1; i < failures && d < 5*time.Second; i++ {
		d *= 2
	}
	return min(d, 5*time.Second)
}

func (q *NATSQueue) handle(ctx context.Context, msg jetstream.Msg, h Handler) {
	if ctx.Err() != nil {
		if err := msg.Nak(); err != nil {
			q.log.Warn("nak during shutdown failed", "error", err)
		}
		return
	}

	var req Request
	if err := json.Unmarshal(msg.Data(), &req); err != nil {
		q.log.Error("malformed job request", "error", err)
		if err := msg.Term(); err != nil {
			q.log.Warn("term failed", "error", err)
		}
		return
	}

	h(ctx, req)
	if err := msg.Ack(); err != nil {
		q.log.Warn("ack failed", "job_id", req.JobID, "error", err)
	}
}

// Depth reports messages not yet delivered to the consumer.
func (q *NATSQueue) Depth() int {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	info, err := q.consumer.Info(ctx)
	if err != nil {
		return 0
	}
	return int(info.NumPending)
}

func (q *NATSQueue) Close() error {
	if err := q.nc.Drain(); err != nil {
		q.nc.Close()
		return fmt.Errorf("drain nats: %w", err)
	}
	return nil
}
