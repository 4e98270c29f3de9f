package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"windfleet-triage/internal/config"
	"windfleet-triage/internal/models"
	"windfleet-triage/internal/redisx"
)

// fakeIngestor records reports and can be forced to fail.
type fakeIngestor struct {
	reports  []*models.AlarmReport
	err      error
	onIngest func()
}

func (f *fakeIngestor) IngestAlarm(ctx context.Context, report *models.AlarmReport) (*models.Recommendation, error) {
	if f.onIngest != nil {
		f.onIngest()
	}
	if f.err != nil {
		return nil, f.err
	}
	f.reports = append(f.reports, report)
	return &models.Recommendation{
		RecommendationID: uuid.New().String(),
		AlarmID:          uuid.New().String(),
		Priority:         models.PriorityMedium,
	}, nil
}

func setupConsumer(t *testing.T, ingestor Ingestor) (*miniredis.Miniredis, *redis.Client, *AlarmConsumer, *config.Config) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	cfg, err := config.Load()
	require.NoError(t, err)
	cfg.Triage.Stream.Name = "test:alarms"
	cfg.Triage.Stream.Group = "test-group"
	cfg.Triage.Stream.Consumer = "test-consumer"
	cfg.Triage.Stream.BatchSize = 10

	c := NewAlarmConsumer(client, ingestor, cfg, zap.NewNop())
	return mr, client, c, cfg
}

func publishReport(t *testing.T, client *redis.Client, stream string, report *models.AlarmReport) {
	_, err := redisx.PublishJSONToStream(context.Background(), client, stream, report)
	require.NoError(t, err)
}

func TestConsumeBatch_ProcessesAndAcks(t *testing.T) {
	ingestor := &fakeIngestor{}
	_, client, c, cfg := setupConsumer(t, ingestor)
	ctx := context.Background()

	require.NoError(t, redisx.CreateConsumerGroup(ctx, client, cfg.Triage.Stream.Name, cfg.Triage.Stream.Group))

	temp := 82.5
	publishReport(t, client, cfg.Triage.Stream.Name, &models.AlarmReport{
		TurbineID:    uuid.New().String(),
		AlarmCode:    "GEARBOX_TEMP_HIGH",
		Description:  "Gearbox temperature high",
		TemperatureC: &temp,
	})

	require.NoError(t, c.consumeBatch(ctx))

	require.Len(t, ingestor.reports, 1)
	assert.Equal(t, "GEARBOX_TEMP_HIGH", ingestor.reports[0].AlarmCode)
	require.NotNil(t, ingestor.reports[0].TemperatureC)
	assert.Equal(t, 82.5, *ingestor.reports[0].TemperatureC)

	// Acked: nothing pending for the group.
	pending, err := client.XPending(ctx, cfg.Triage.Stream.Name, cfg.Triage.Stream.Group).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(0), pending.Count)
}

func TestConsumeBatch_IngestFailureLeavesMessagePending(t *testing.T) {
	ingestor := &fakeIngestor{err: errors.New("turbine not found")}
	_, client, c, cfg := setupConsumer(t, ingestor)
	ctx := context.Background()

	require.NoError(t, redisx.CreateConsumerGroup(ctx, client, cfg.Triage.Stream.Name, cfg.Triage.Stream.Group))

	publishReport(t, client, cfg.Triage.Stream.Name, &models.AlarmReport{
		TurbineID: uuid.New().String(),
		AlarmCode: "YAW_ERROR",
	})

	require.NoError(t, c.consumeBatch(ctx))

	pending, err := client.XPending(ctx, cfg.Triage.Stream.Name, cfg.Triage.Stream.Group).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), pending.Count)
}

func TestStart_ReturnsAfterCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Cancellation lands while a message is being processed; the loop must
	// notice it and hand control back instead of reading again.
	ingestor := &fakeIngestor{onIngest: cancel}
	_, client, c, cfg := setupConsumer(t, ingestor)

	publishReport(t, client, cfg.Triage.Stream.Name, &models.AlarmReport{
		TurbineID: uuid.New().String(),
		AlarmCode: "YAW_ERROR",
	})

	done := make(chan error, 1)
	go func() { done <- c.Start(ctx) }()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(3 * time.Second):
		t.Fatal("consumer did not stop after cancellation")
	}
}

func TestHandleMessage_MalformedPayload(t *testing.T) {
	ingestor := &fakeIngestor{}
	_, _, c, _ := setupConsumer(t, ingestor)

	err := c.handleMessage(context.Background(), redisx.StreamMessage{
		ID:     "1-0",
		Values: map[string]interface{}{"data": "{not json"},
	})

	assert.Error(t, err)
	assert.Empty(t, ingestor.reports)
}

func TestHandleMessage_MissingDataField(t *testing.T) {
	ingestor := &fakeIngestor{}
	_, _, c, _ := setupConsumer(t, ingestor)

	err := c.handleMessage(context.Background(), redisx.StreamMessage{
		ID:     "1-0",
		Values: map[string]interface{}{"other": "x"},
	})

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "missing data field")
}

func TestHandleMessage_ParsesFullReport(t *testing.T) {
	ingestor := &fakeIngestor{}
	_, _, c, _ := setupConsumer(t, ingestor)

	occurredAt := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	resettable := false
	report := &models.AlarmReport{
		TurbineID:   uuid.New().String(),
		AlarmCode:   "EM_83",
		Description: "Critical system fault",
		OccurredAt:  &occurredAt,
		Resettable:  &resettable,
	}
	data, err := json.Marshal(report)
	require.NoError(t, err)

	err = c.handleMessage(context.Background(), redisx.StreamMessage{
		ID:     "1-0",
		Values: map[string]interface{}{"data": string(data)},
	})

	require.NoError(t, err)
	require.Len(t, ingestor.reports, 1)
	got := ingestor.reports[0]
	assert.Equal(t, "EM_83", got.AlarmCode)
	require.NotNil(t, got.OccurredAt)
	assert.True(t, occurredAt.Equal(*got.OccurredAt))
	require.NotNil(t, got.Resettable)
	assert.False(t, *got.Resettable)
}
