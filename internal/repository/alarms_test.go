package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"windfleet-triage/internal/models"
)

func setupMockAlarmsDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock, *AlarmRepository) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	logger := zap.NewNop()
	repo := NewAlarmRepository(db, logger)

	return db, mock, repo
}

func alarmRows(alarmID, turbineID string, occurredAt time.Time) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows([]string{
		"alarm_id", "turbine_id", "alarm_code", "description", "severity",
		"status", "occurred_at", "acknowledged_at", "resolved_at",
		"resettable", "temperature_c", "note", "metadata",
		"created_at", "updated_at",
	}).AddRow(
		alarmID, turbineID, "GEARBOX_TEMP_HIGH", "Gearbox temperature high", "high",
		"active", occurredAt, nil, nil,
		true, 82.5, nil, `{}`,
		now, now,
	)
}

// ============================================
// CRUD
// ============================================

func TestGetAlarm_Success(t *testing.T) {
	db, mock, repo := setupMockAlarmsDB(t)
	defer db.Close()

	ctx := context.Background()
	alarmID := uuid.New().String()
	turbineID := uuid.New().String()
	occurredAt := time.Now()

	mock.ExpectQuery(`SELECT`).
		WithArgs(alarmID).
		WillReturnRows(alarmRows(alarmID, turbineID, occurredAt))

	alarm, err := repo.GetAlarm(ctx, alarmID)

	require.NoError(t, err)
	assert.Equal(t, alarmID, alarm.AlarmID)
	assert.Equal(t, turbineID, alarm.TurbineID)
	assert.Equal(t, "GEARBOX_TEMP_HIGH", alarm.AlarmCode)
	assert.Equal(t, models.SeverityHigh, alarm.Severity)
	assert.Equal(t, models.AlarmStatusActive, alarm.Status)
	assert.True(t, alarm.Resettable)
	require.NotNil(t, alarm.TemperatureC)
	assert.Equal(t, 82.5, *alarm.TemperatureC)
	assert.Nil(t, alarm.AcknowledgedAt)
	assert.Equal(t, `{}`, alarm.Metadata)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetAlarm_NotFound(t *testing.T) {
	db, mock, repo := setupMockAlarmsDB(t)
	defer db.Close()

	ctx := context.Background()
	alarmID := uuid.New().String()

	mock.ExpectQuery(`SELECT`).
		WithArgs(alarmID).
		WillReturnError(sql.ErrNoRows)

	alarm, err := repo.GetAlarm(ctx, alarmID)

	assert.Error(t, err)
	assert.Nil(t, alarm)
	assert.Contains(t, err.Error(), "not found")

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetAlarm_EmptyID(t *testing.T) {
	db, mock, repo := setupMockAlarmsDB(t)
	defer db.Close()

	alarm, err := repo.GetAlarm(context.Background(), "")

	assert.Error(t, err)
	assert.Nil(t, alarm)
	assert.Contains(t, err.Error(), "alarm_id is required")

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateAlarm_Success(t *testing.T) {
	db, mock, repo := setupMockAlarmsDB(t)
	defer db.Close()

	ctx := context.Background()
	now := time.Now()
	alarm := &models.Alarm{
		AlarmID:     uuid.New().String(),
		TurbineID:   uuid.New().String(),
		AlarmCode:   "YAW_ERROR",
		Description: "Yaw misalignment",
		Severity:    models.SeverityMedium,
		Status:      models.AlarmStatusActive,
		OccurredAt:  now,
		Resettable:  true,
		Metadata:    "{}",
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	mock.ExpectExec(`INSERT INTO alarms`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.CreateAlarm(ctx, alarm)

	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateAlarm_MissingTurbineID(t *testing.T) {
	db, mock, repo := setupMockAlarmsDB(t)
	defer db.Close()

	err := repo.CreateAlarm(context.Background(), &models.Alarm{
		AlarmID: uuid.New().String(),
	})

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "turbine_id is required")

	require.NoError(t, mock.ExpectationsWereMet())
}

// ============================================
// Lifecycle transitions
// ============================================

func TestAcknowledgeAlarm_Success(t *testing.T) {
	db, mock, repo := setupMockAlarmsDB(t)
	defer db.Close()

	ctx := context.Background()
	alarmID := uuid.New().String()
	at := time.Now()

	mock.ExpectExec(`UPDATE alarms`).
		WithArgs(models.AlarmStatusAcknowledged, at, alarmID, models.AlarmStatusActive).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.AcknowledgeAlarm(ctx, alarmID, at)

	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAcknowledgeAlarm_NotActive(t *testing.T) {
	db, mock, repo := setupMockAlarmsDB(t)
	defer db.Close()

	ctx := context.Background()
	alarmID := uuid.New().String()
	at := time.Now()

	mock.ExpectExec(`UPDATE alarms`).
		WithArgs(models.AlarmStatusAcknowledged, at, alarmID, models.AlarmStatusActive).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.AcknowledgeAlarm(ctx, alarmID, at)

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "not found or not active")

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestResolveAlarm_Success(t *testing.T) {
	db, mock, repo := setupMockAlarmsDB(t)
	defer db.Close()

	ctx := context.Background()
	alarmID := uuid.New().String()
	at := time.Now()

	mock.ExpectExec(`UPDATE alarms`).
		WithArgs(models.AlarmStatusResolved, at, alarmID,
			models.AlarmStatusActive, models.AlarmStatusAcknowledged).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.ResolveAlarm(ctx, alarmID, at)

	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestResolveAlarm_AlreadyResolved(t *testing.T) {
	db, mock, repo := setupMockAlarmsDB(t)
	defer db.Close()

	ctx := context.Background()
	alarmID := uuid.New().String()
	at := time.Now()

	mock.ExpectExec(`UPDATE alarms`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.ResolveAlarm(ctx, alarmID, at)

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "already resolved")

	require.NoError(t, mock.ExpectationsWereMet())
}

// ============================================
// Temporal correlation
// ============================================

func TestHasPriorOccurrence_Found(t *testing.T) {
	db, mock, repo := setupMockAlarmsDB(t)
	defer db.Close()

	ctx := context.Background()
	turbineID := uuid.New().String()
	alarmID := uuid.New().String()
	until := time.Now()
	from := until.Add(-10 * time.Minute)

	mock.ExpectQuery(`SELECT COUNT`).
		WithArgs(turbineID, "EM_83", from, until, alarmID).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	found, err := repo.HasPriorOccurrence(ctx, turbineID, "EM_83", alarmID, from, until)

	require.NoError(t, err)
	assert.True(t, found)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestHasPriorOccurrence_None(t *testing.T) {
	db, mock, repo := setupMockAlarmsDB(t)
	defer db.Close()

	ctx := context.Background()
	turbineID := uuid.New().String()
	until := time.Now()

	mock.ExpectQuery(`SELECT COUNT`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	found, err := repo.HasPriorOccurrence(ctx, turbineID, "EM_83", uuid.New().String(),
		until.Add(-10*time.Minute), until)

	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCountOccurrences_Success(t *testing.T) {
	db, mock, repo := setupMockAlarmsDB(t)
	defer db.Close()

	ctx := context.Background()
	turbineID := uuid.New().String()
	since := time.Now().Add(-24 * time.Hour)

	mock.ExpectQuery(`SELECT COUNT`).
		WithArgs(turbineID, "YAW_ERROR", since).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(4))

	count, err := repo.CountOccurrences(ctx, turbineID, "YAW_ERROR", since)

	require.NoError(t, err)
	assert.Equal(t, 4, count)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCountOccurrences_MissingCode(t *testing.T) {
	db, mock, repo := setupMockAlarmsDB(t)
	defer db.Close()

	_, err := repo.CountOccurrences(context.Background(), uuid.New().String(), "", time.Now())

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "alarm_code is required")

	require.NoError(t, mock.ExpectationsWereMet())
}

// ============================================
// List queries
// ============================================

func TestListAlarms_WithFilters(t *testing.T) {
	db, mock, repo := setupMockAlarmsDB(t)
	defer db.Close()

	ctx := context.Background()
	turbineID := uuid.New().String()
	alarmID := uuid.New().String()
	status := models.AlarmStatusActive

	mock.ExpectQuery(`SELECT COUNT`).
		WithArgs(turbineID, status).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	mock.ExpectQuery(`SELECT`).
		WithArgs(turbineID, status, 50, 0).
		WillReturnRows(alarmRows(alarmID, turbineID, time.Now()))

	alarms, total, err := repo.ListAlarms(ctx, AlarmFilters{
		TurbineID: &turbineID,
		Status:    &status,
	}, 50, 0)

	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, alarms, 1)
	assert.Equal(t, alarmID, alarms[0].AlarmID)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListAlarms_DefaultLimit(t *testing.T) {
	db, mock, repo := setupMockAlarmsDB(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT COUNT`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	mock.ExpectQuery(`SELECT`).
		WithArgs(100, 0).
		WillReturnRows(sqlmock.NewRows([]string{"alarm_id"}))

	alarms, total, err := repo.ListAlarms(context.Background(), AlarmFilters{}, 0, -5)

	require.NoError(t, err)
	assert.Equal(t, 0, total)
	assert.Empty(t, alarms)

	require.NoError(t, mock.ExpectationsWereMet())
}
