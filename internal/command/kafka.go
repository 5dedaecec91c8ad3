package command

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"firestige.xyz/pktlive/internal/config"
	"firestige.xyz/pktlive/internal/log"
)

// KafkaCommand is the wire format for commands received via Kafka.
//
// Example JSON:
//
//	{
//	  "version":    "v1",
//	  "target":     "node-01",
//	  "command":    "start_sniff",
//	  "timestamp":  "2024-01-15T10:30:00Z",
//	  "request_id": "req-abc-123"
//	}
type KafkaCommand struct {
	Version   string          `json:"version"`    // Protocol version ("v1")
	Target    string          `json:"target"`     // Node name or "*" for broadcast
	Command   string          `json:"command"`    // start_sniff, stop_sniff, capture_status, ...
	Timestamp time.Time       `json:"timestamp"`  // When the command was issued
	RequestID string          `json:"request_id"` // Unique request ID for tracing
	Payload   json.RawMessage `json:"payload"`    // Unused by current commands
}

// messageReader is the subset of *kafka.Reader the consumer uses.
type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaCommandConsumer consumes commands from Kafka and dispatches to handler.
type KafkaCommandConsumer struct {
	ccConfig config.CommandChannelConfig
	target   string // local node name for target matching
	reader   messageReader
	handler  *CommandHandler
	ttl      time.Duration // command TTL for stale-command rejection
	now      func() time.Time
}

// NewKafkaCommandConsumer creates a new Kafka command consumer.
func NewKafkaCommandConsumer(ccConfig config.CommandChannelConfig, target string, handler *CommandHandler) (*KafkaCommandConsumer, error) {
	kc := ccConfig.Kafka
	if len(kc.Brokers) == 0 {
		return nil, fmt.Errorf("brokers is required")
	}
	if kc.Topic == "" {
		return nil, fmt.Errorf("topic is required")
	}
	if kc.GroupID == "" {
		return nil, fmt.Errorf("group_id is required")
	}

	ttl := ccConfig.CommandTTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}

	var startOffset int64
	switch kc.AutoOffsetReset {
	case "earliest":
		startOffset = kafka.FirstOffset
	case "", "latest":
		startOffset = kafka.LastOffset
	default:
		return nil, fmt.Errorf("invalid auto_offset_reset %q (must be earliest/latest)", kc.AutoOffsetReset)
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        kc.Brokers,
		Topic:          kc.Topic,
		GroupID:        kc.GroupID,
		StartOffset:    startOffset,
		MinBytes:       1,
		MaxBytes:       10 << 20,
		CommitInterval: time.Second,
		MaxWait:        1 * time.Second,
	})

	return newKafkaCommandConsumer(ccConfig, target, reader, handler, ttl), nil
}

func newKafkaCommandConsumer(cc config.CommandChannelConfig, target string, reader messageReader, handler *CommandHandler, ttl time.Duration) *KafkaCommandConsumer {
	return &KafkaCommandConsumer{
		ccConfig: cc,
		target:   target,
		reader:   reader,
		handler:  handler,
		ttl:      ttl,
		now:      time.Now,
	}
}

// Start starts consuming commands from Kafka.
// Blocks until context is cancelled or an unrecoverable error occurs.
func (c *KafkaCommandConsumer) Start(ctx context.Context) error {
	logger := log.Component("kafka")
	logger.Infof("kafka command consumer started: brokers=%v topic=%s group=%s target=%s ttl=%s",
		c.ccConfig.Kafka.Brokers, c.ccConfig.Kafka.Topic, c.ccConfig.Kafka.GroupID, c.target, c.ttl)

	for {
		select {
		case <-ctx.Done():
			logger.Infof("kafka command consumer stopped: %v", ctx.Err())
			return ctx.Err()
		default:
		}

		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if err == context.Canceled || err == context.DeadlineExceeded {
				return err
			}
			logger.Errorf("failed to fetch kafka message: %v", err)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(5 * time.Second):
				continue
			}
		}

		if err := c.processMessage(ctx, msg); err != nil {
			logger.Errorf("failed to process command at %s/%d/%d: %v", msg.Topic, msg.Partition, msg.Offset, err)
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			logger.Errorf("failed to commit message: %v", err)
		}
	}
}

// processMessage applies target filtering and the TTL, then dispatches.
func (c *KafkaCommandConsumer) processMessage(ctx context.Context, msg kafka.Message) error {
	logger := log.Component("kafka")

	var kCmd KafkaCommand
	if err := json.Unmarshal(msg.Value, &kCmd); err != nil {
		return fmt.Errorf("failed to parse kafka command: %w", err)
	}

	if kCmd.Target != "*" && kCmd.Target != "" && kCmd.Target != c.target {
		logger.Debugf("skipping command %s for target %s", kCmd.RequestID, kCmd.Target)
		return nil
	}

	if !kCmd.Timestamp.IsZero() {
		if age := c.now().Sub(kCmd.Timestamp); age > c.ttl {
			logger.Warnf("skipping stale command %s (%s, age %s > ttl %s)", kCmd.RequestID, kCmd.Command, age, c.ttl)
			return nil
		}
	}

	logger.Infof("received kafka command %s (id=%s, target=%s, version=%s)",
		kCmd.Command, kCmd.RequestID, kCmd.Target, kCmd.Version)

	response := c.handler.Handle(ctx, Command{
		Method:  kCmd.Command,
		Params:  kCmd.Payload,
		ID:      kCmd.RequestID,
		Channel: "kafka",
	})
	if response.Error != nil {
		return fmt.Errorf("command %s failed: %s", kCmd.Command, response.Error.Message)
	}
	return nil
}

// Stop closes the Kafka reader. Safe to call more than once.
func (c *KafkaCommandConsumer) Stop() error {
	if c.reader == nil {
		return nil
	}
	reader := c.reader
	c.reader = nil
	log.Component("kafka").Info("closing kafka command consumer")
	if err := reader.Close(); err != nil {
		return fmt.Errorf("failed to close kafka reader: %w", err)
	}
	return nil
}
