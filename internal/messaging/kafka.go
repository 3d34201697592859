package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"

	"github.com/temcen/retouch/internal/config"
	"github.com/temcen/retouch/pkg/models"
)

type EventKind string

const (
	EventEnhancementFeedback EventKind = "enhancement_feedback"
	EventCustomFeedback      EventKind = "custom_profile_feedback"
)

// FeedbackEvent carries exactly one of Enhancement or Custom.
type FeedbackEvent struct {
	EventID     uuid.UUID                     `json:"event_id"`
	Kind        EventKind                     `json:"kind"`
	UserID      string                        `json:"user_id"`
	Enhancement *models.EnhancementFeedback   `json:"enhancement,omitempty"`
	Custom      *models.CustomProfileFeedback `json:"custom,omitempty"`
	Timestamp   time.Time                     `json:"timestamp"`
	RetryCount  int                           `json:"retry_count"`
}

func NewEnhancementEvent(fb models.EnhancementFeedback) FeedbackEvent {
	return FeedbackEvent{
		EventID:     uuid.New(),
		Kind:        EventEnhancementFeedback,
		UserID:      fb.UserID,
		Enhancement: &fb,
		Timestamp:   time.Now().UTC(),
	}
}

func NewCustomEvent(fb models.CustomProfileFeedback) FeedbackEvent {
	return FeedbackEvent{
		EventID:   uuid.New(),
		Kind:      EventCustomFeedback,
		UserID:    fb.UserID,
		Custom:    &fb,
		Timestamp: time.Now().UTC(),
	}
}

// Validate checks the event envelope, not the feedback values.
func (e FeedbackEvent) Validate() error {
	if e.EventID == uuid.Nil {
		return errors.New("event id is required")
	}
	if e.UserID == "" {
		return errors.New("user id is required")
	}
	switch e.Kind {
	case EventEnhancementFeedback:
		if e.Enhancement == nil || e.Custom != nil {
			return errors.New("enhancement event must carry only enhancement feedback")
		}
	case EventCustomFeedback:
		if e.Custom == nil || e.Enhancement != nil {
			return errors.New("custom event must carry only custom profile feedback")
		}
	default:
		return fmt.Errorf("unknown event kind %q", e.Kind)
	}
	return nil
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Stats() kafka.ReaderStats
	Close() error
}

// FeedbackBus consumes raw feedback from the ingest topic with retry and a
// dead letter topic, and publishes applied feedback to a separate topic.
// Messages are keyed by user so one user's events stay on one partition.
type FeedbackBus struct {
	writer     messageWriter
	reader     messageReader
	dlqWriter  messageWriter
	topic      string
	maxRetries int
	baseDelay  time.Duration
	logger     *logrus.Logger
}

func NewFeedbackBus(cfg *config.KafkaConfig, logger *logrus.Logger) *FeedbackBus {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topics.Applied,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		Async:        false,
		BatchTimeout: 10 * time.Millisecond,
		BatchSize:    100,
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        cfg.Brokers,
		Topic:          cfg.Topics.Feedback,
		GroupID:        cfg.ConsumerGroup,
		MinBytes:       1,
		MaxBytes:       10e6, // 10MB
		CommitInterval: 0,
		StartOffset:    kafka.LastOffset,
	})

	dlqWriter := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topics.FeedbackDLQ,
		RequiredAcks: kafka.RequireOne,
		Async:        false,
	}

	return newFeedbackBus(writer, reader, dlqWriter, cfg.Topics.Feedback, cfg.MaxRetries, cfg.RetryDelay, logger)
}

func newFeedbackBus(writer messageWriter, reader messageReader, dlq messageWriter, topic string, maxRetries int, baseDelay time.Duration, logger *logrus.Logger) *FeedbackBus {
	return &FeedbackBus{
		writer:     writer,
		reader:     reader,
		dlqWriter:  dlq,
		topic:      topic,
		maxRetries: maxRetries,
		baseDelay:  baseDelay,
		logger:     logger,
	}
}

func encodeEvent(event FeedbackEvent) (kafka.Message, error) {
	value, err := json.Marshal(event)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("failed to marshal event: %w", err)
	}
	return kafka.Message{
		Key:   []byte(event.UserID),
		Value: value,
		Headers: []kafka.Header{
			{Key: "event_id", Value: []byte(event.EventID.String())},
			{Key: "kind", Value: []byte(event.Kind)},
			{Key: "timestamp", Value: []byte(event.Timestamp.Format(time.RFC3339))},
		},
	}, nil
}

func (b *FeedbackBus) Publish(ctx context.Context, event FeedbackEvent) error {
	if err := event.Validate(); err != nil {
		return fmt.Errorf("invalid feedback event: %w", err)
	}

	message, err := encodeEvent(event)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := b.writer.WriteMessages(ctx, message); err != nil {
		b.logger.WithError(err).WithField("event_id", event.EventID).Error("Failed to publish feedback event")
		return fmt.Errorf("failed to write message to Kafka: %w", err)
	}

	b.logger.WithFields(logrus.Fields{
		"event_id": event.EventID,
		"kind":     event.Kind,
		"user_id":  event.UserID,
	}).Debug("Feedback event published")

	return nil
}

// Consume blocks until ctx is done. Each message is handled with retries,
// parked on the dead letter topic if it still fails, then committed.
func (b *FeedbackBus) Consume(ctx context.Context, handler func(context.Context, FeedbackEvent) error) error {
	for {
		message, err := b.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, io.EOF) {
				return nil
			}
			b.logger.WithError(err).Error("Failed to read message from Kafka")
			continue
		}

		b.handleMessage(ctx, message, handler)

		if err := b.reader.CommitMessages(ctx, message); err != nil && ctx.Err() == nil {
			b.logger.WithError(err).WithField("offset", message.Offset).Error("Failed to commit message")
		}
	}
}

func (b *FeedbackBus) handleMessage(ctx context.Context, message kafka.Message, handler func(context.Context, FeedbackEvent) error) {
	var event FeedbackEvent
	if err := json.Unmarshal(message.Value, &event); err != nil {
		b.logger.WithError(err).Error("Failed to unmarshal feedback event")
		b.parkRaw(ctx, message, err)
		return
	}
	if err := event.Validate(); err != nil {
		b.logger.WithError(err).WithField("event_id", event.EventID).Error("Rejected feedback event")
		b.park(ctx, event, err)
		return
	}

	if err := b.processWithRetry(ctx, &event, handler); err != nil {
		if ctx.Err() != nil {
			return
		}
		b.logger.WithError(err).WithField("event_id", event.EventID).Error("Failed to process event after retries")
		b.park(ctx, event, err)
	}
}

// permanentError marks handler failures that retrying cannot fix.
type permanentError struct{ err error }

func (e permanentError) Error() string { return e.err.Error() }
func (e permanentError) Unwrap() error { return e.err }

// Permanent wraps err so the consumer skips retries.
func Permanent(err error) error {
	return permanentError{err: err}
}

func (b *FeedbackBus) processWithRetry(ctx context.Context, event *FeedbackEvent, handler func(context.Context, FeedbackEvent) error) error {
	for attempt := 0; attempt <= b.maxRetries; attempt++ {
		if attempt > 0 {
			// Exponential backoff
			delay := b.baseDelay * time.Duration(1<<uint(attempt-1))
			b.logger.WithFields(logrus.Fields{
				"event_id": event.EventID,
				"attempt":  attempt,
				"delay":    delay,
			}).Info("Retrying event processing")

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		event.RetryCount = attempt
		err := handler(ctx, *event)
		if err == nil {
			return nil
		}

		var permanent permanentError
		if errors.As(err, &permanent) {
			return err
		}

		b.logger.WithError(err).WithFields(logrus.Fields{
			"event_id": event.EventID,
			"attempt":  attempt,
		}).Warn("Event processing failed")
	}

	return fmt.Errorf("max retries exceeded for event %s", event.EventID)
}

func (b *FeedbackBus) park(ctx context.Context, event FeedbackEvent, cause error) {
	dlq := map[string]interface{}{
		"original_event": event,
		"error":          cause.Error(),
		"dlq_timestamp":  time.Now().UTC(),
	}
	value, err := json.Marshal(dlq)
	if err != nil {
		b.logger.WithError(err).Error("Failed to marshal DLQ message")
		return
	}
	b.writeDLQ(ctx, []byte(event.UserID), value, cause, event.EventID.String())
}

func (b *FeedbackBus) parkRaw(ctx context.Context, message kafka.Message, cause error) {
	b.writeDLQ(ctx, message.Key, message.Value, cause, "")
}

func (b *FeedbackBus) writeDLQ(ctx context.Context, key, value []byte, cause error, eventID string) {
	message := kafka.Message{
		Key:   key,
		Value: value,
		Headers: []kafka.Header{
			{Key: "event_id", Value: []byte(eventID)},
			{Key: "original_topic", Value: []byte(b.topic)},
			{Key: "error", Value: []byte(cause.Error())},
		},
	}
	if err := b.dlqWriter.WriteMessages(ctx, message); err != nil {
		b.logger.WithError(err).WithField("event_id", eventID).Error("Failed to send message to DLQ")
		return
	}
	b.logger.WithFields(logrus.Fields{
		"event_id": eventID,
		"error":    cause.Error(),
	}).Warn("Message sent to DLQ")
}

func (b *FeedbackBus) Close() error {
	var errs []error

	if err := b.writer.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close producer: %w", err))
	}
	if err := b.reader.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close consumer: %w", err))
	}
	if err := b.dlqWriter.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close DLQ writer: %w", err))
	}

	return errors.Join(errs...)
}

// Stats returns consumer counters for monitoring.
func (b *FeedbackBus) Stats() map[string]interface{} {
	stats := b.reader.Stats()
	return map[string]interface{}{
		"consumer_lag":    stats.Lag,
		"consumer_offset": stats.Offset,
		"messages_read":   stats.Messages,
		"bytes_read":      stats.Bytes,
		"rebalances":      stats.Rebalances,
		"timeouts":        stats.Timeouts,
		"errors":          stats.Errors,
	}
}
