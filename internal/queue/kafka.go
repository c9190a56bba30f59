package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"btc-scenario-lab/internal/domain"
)

// KafkaConfig configures a KafkaQueue.
type KafkaConfig struct {
	Brokers  []string
	Topic    string
	GroupID  string
	ClientID string

	// MaxFetchElapsed bounds retries of a failing fetch. Zero retries until ctx is done.
	MaxFetchElapsed time.Duration
}

// KafkaQueue is a Queue on a Kafka topic. Messages are keyed by simulation id.
// Workers share one reader, so Ack commits a partition only up to its lowest
// offset still in flight.
type KafkaQueue struct {
	writer  *kafka.Writer
	reader  *kafka.Reader
	cfg     KafkaConfig
	logger  *zap.Logger
	offsets *commitTracker
}

// NewKafkaQueue creates a KafkaQueue.
func NewKafkaQueue(cfg KafkaConfig, logger *zap.Logger) (*KafkaQueue, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka queue: no brokers configured")
	}
	if cfg.Topic == "" {
		return nil, errors.New("kafka queue: topic is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		BatchSize:    1,
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
		Transport: &kafka.Transport{
			ClientID: cfg.ClientID,
		},
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Brokers,
		Topic:    cfg.Topic,
		GroupID:  cfg.GroupID,
		MinBytes: 1,
		MaxBytes: 1 << 20,
		MaxWait:  500 * time.Millisecond,
	})

	return &KafkaQueue{
		writer:  writer,
		reader:  reader,
		cfg:     cfg,
		logger:  logger,
		offsets: newCommitTracker(),
	}, nil
}

// Compile-time interface check.
var _ Queue = (*KafkaQueue)(nil)

// Enqueue publishes a JSON-encoded run request.
func (q *KafkaQueue) Enqueue(ctx context.Context, req domain.RunRequest) error {
	value, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal run request: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(req.SimulationID),
		Value: value,
		Time:  time.Now(),
	}
	if err := q.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish run request: %w", err)
	}
	return nil
}

// Dequeue fetches the next decodable run request.
// Undecodable messages are committed and skipped.
func (q *KafkaQueue) Dequeue(ctx context.Context) (*Message, error) {
	for {
		raw, err := q.fetch(ctx)
		if err != nil {
			return nil, err
		}
		q.offsets.track(raw)

		var req domain.RunRequest
		if err := json.Unmarshal(raw.Value, &req); err != nil || req.SimulationID == "" {
			q.logger.Warn("skipping malformed run request",
				zap.Int("partition", raw.Partition),
				zap.Int64("offset", raw.Offset),
				zap.Error(err))
			if err := q.commit(ctx, raw); err != nil {
				return nil, fmt.Errorf("commit malformed message: %w", err)
			}
			continue
		}

		return &Message{Request: req, handle: raw}, nil
	}
}

func (q *KafkaQueue) fetch(ctx context.Context) (kafka.Message, error) {
	var raw kafka.Message

	policy := backoff.NewExponentialBackOff()
	policy.MaxElapsedTime = q.cfg.MaxFetchElapsed

	op := func() error {
		msg, err := q.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			if errors.Is(err, io.EOF) {
				return backoff.Permanent(ErrClosed)
			}
			return err
		}
		raw = msg
		return nil
	}

	notify := func(err error, wait time.Duration) {
		q.logger.Warn("kafka fetch failed, retrying",
			zap.String("topic", q.cfg.Topic),
			zap.Duration("wait", wait),
			zap.Error(err))
	}

	if err := backoff.RetryNotify(op, backoff.WithContext(policy, ctx), notify); err != nil {
		return kafka.Message{}, err
	}
	return raw, nil
}

// Ack marks the message done and commits its partition up to the lowest
// offset still in flight.
func (q *KafkaQueue) Ack(ctx context.Context, msg *Message) error {
	raw, ok := msg.handle.(kafka.Message)
	if !ok {
		return errors.New("kafka queue: message not fetched from kafka")
	}
	if err := q.commit(ctx, raw); err != nil {
		return fmt.Errorf("commit run request: %w", err)
	}
	return nil
}

func (q *KafkaQueue) commit(ctx context.Context, raw kafka.Message) error {
	upTo, ok := q.offsets.complete(raw)
	if !ok {
		return nil
	}
	return q.reader.CommitMessages(ctx, upTo)
}

// Close closes the writer and reader.
func (q *KafkaQueue) Close() error {
	return errors.Join(q.writer.Close(), q.reader.Close())
}

// commitTracker orders commits per partition. Offsets are fetched in
// ascending order per partition and may complete in any order.
type commitTracker struct {
	mu         sync.Mutex
	partitions map[int]*partitionOffsets
}

type partitionOffsets struct {
	inFlight []int64
	done     map[int64]kafka.Message
}

func newCommitTracker() *commitTracker {
	return &commitTracker{partitions: make(map[int]*partitionOffsets)}
}

func (t *commitTracker) partition(p int) *partitionOffsets {
	po, ok := t.partitions[p]
	if !ok {
		po = &partitionOffsets{done: make(map[int64]kafka.Message)}
		t.partitions[p] = po
	}
	return po
}

// track registers a fetched message as in flight.
func (t *commitTracker) track(msg kafka.Message) {
	t.mu.Lock()
	defer t.mu.Unlock()
	po := t.partition(msg.Partition)
	po.inFlight = append(po.inFlight, msg.Offset)
}

// complete marks msg done and returns the highest message whose offset and
// every earlier tracked offset on the partition are done. ok is false when
// an earlier offset is still in flight.
func (t *commitTracker) complete(msg kafka.Message) (upTo kafka.Message, ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	po := t.partition(msg.Partition)
	po.done[msg.Offset] = msg
	for len(po.inFlight) > 0 {
		head, finished := po.done[po.inFlight[0]]
		if !finished {
			break
		}
		delete(po.done, po.inFlight[0])
		po.inFlight = po.inFlight[1:]
		upTo, ok = head, true
	}
	return upTo, ok
}
