package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"windfleet-triage/internal/config"
	"windfleet-triage/internal/models"
	"windfleet-triage/internal/redisx"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// Ingestor runs the triage pipeline for one inbound fault report.
// Implemented by service.TriageService.
type Ingestor interface {
	IngestAlarm(ctx context.Context, report *models.AlarmReport) (*models.Recommendation, error)
}

// AlarmConsumer reads fault reports from the alarm intake stream and feeds
// them into the triage pipeline. Messages are acknowledged only after the
// pipeline commits; a failed message stays in the group's pending list for
// an operator to inspect or reclaim.
type AlarmConsumer struct {
	client   *redis.Client
	ingestor Ingestor
	logger   *zap.Logger

	stream    string
	group     string
	consumer  string
	batchSize int64
}

// NewAlarmConsumer creates an alarm stream consumer.
func NewAlarmConsumer(client *redis.Client, ingestor Ingestor, cfg *config.Config, logger *zap.Logger) *AlarmConsumer {
	return &AlarmConsumer{
		client:    client,
		ingestor:  ingestor,
		logger:    logger,
		stream:    cfg.Triage.Stream.Name,
		group:     cfg.Triage.Stream.Group,
		consumer:  cfg.Triage.Stream.Consumer,
		batchSize: cfg.Triage.Stream.BatchSize,
	}
}

// Start runs the consume loop until the context is cancelled. Transient
// read errors back off exponentially from 1s to 30s.
func (c *AlarmConsumer) Start(ctx context.Context) error {
	if err := redisx.CreateConsumerGroup(ctx, c.client, c.stream, c.group); err != nil {
		return fmt.Errorf("failed to create consumer group: %w", err)
	}

	c.logger.Info("alarm consumer started",
		zap.String("stream", c.stream),
		zap.String("group", c.group),
		zap.String("consumer", c.consumer))

	backoff := time.Second
	for {
		select {
		case <-ctx.Done():
			c.logger.Info("alarm consumer stopping")
			return ctx.Err()
		default:
		}

		if err := c.consumeBatch(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.logger.Error("failed to read alarm stream",
				zap.Error(err),
				zap.Duration("backoff", backoff))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
			if backoff > 30*time.Second {
				backoff = 30 * time.Second
			}
			continue
		}

		backoff = time.Second
	}
}

func (c *AlarmConsumer) consumeBatch(ctx context.Context) error {
	messages, err := redisx.ReadFromStream(ctx, c.client, c.stream, c.group, c.consumer, c.batchSize)
	if err != nil {
		return err
	}

	for _, msg := range messages {
		if err := c.handleMessage(ctx, msg); err != nil {
			// Left unacked; the entry stays pending for the group.
			c.logger.Error("failed to process fault report",
				zap.String("message_id", msg.ID),
				zap.Error(err))
			continue
		}

		if err := redisx.AckMessage(ctx, c.client, c.stream, c.group, msg.ID); err != nil {
			c.logger.Error("failed to ack message",
				zap.String("message_id", msg.ID),
				zap.Error(err))
		}
	}

	return nil
}

func (c *AlarmConsumer) handleMessage(ctx context.Context, msg redisx.StreamMessage) error {
	raw, ok := msg.Values["data"].(string)
	if !ok {
		return fmt.Errorf("message missing data field")
	}

	var report models.AlarmReport
	if err := json.Unmarshal([]byte(raw), &report); err != nil {
		return fmt.Errorf("failed to parse fault report: %w", err)
	}

	rec, err := c.ingestor.IngestAlarm(ctx, &report)
	if err != nil {
		return err
	}

	c.logger.Info("fault report triaged",
		zap.String("turbine_id", report.TurbineID),
		zap.String("alarm_code", report.AlarmCode),
		zap.String("recommendation_id", rec.RecommendationID),
		zap.String("priority", string(rec.Priority)))

	return nil
}
