package export

import (
	"testing"
	"time"

	"budgetsync/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestWriteReport(t *testing.T) {
	dir := t.TempDir()
	reporter := NewReporter(dir, zerolog.Nop())

	now := time.Date(2026, 7, 4, 10, 30, 0, 0, time.UTC)
	actions := []models.Action{
		{
			ID:         "a-1",
			Type:       models.ActionCreate,
			Entity:     "expense",
			EntityID:   "e-7",
			Priority:   models.PriorityHigh,
			MaxRetries: 3,
			Timestamp:  now.Add(-time.Hour),
		},
		{
			ID:           "a-2",
			Type:         models.ActionUpdate,
			Entity:       "budget",
			Priority:     models.PriorityLow,
			RetryCount:   3,
			MaxRetries:   3,
			Dependencies: []string{"a-1"},
			Timestamp:    now.Add(-30 * time.Minute),
		},
	}
	lastSync := now.Add(-2 * time.Hour)
	status := models.SyncStatus{
		IsOnline:       true,
		LastSyncAt:     &lastSync,
		PendingActions: 1,
		FailedActions:  1,
		TotalActions:   2,
	}

	path, err := reporter.WriteReport(actions, status, now)
	require.NoError(t, err)
	require.FileExists(t, path)

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Actions")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "ID", rows[0][0])
	assert.Equal(t, "a-1", rows[1][0])
	assert.Equal(t, "pending", rows[1][7])
	assert.Equal(t, "failed", rows[2][7])
	assert.Equal(t, "a-1", rows[2][8])

	got, err := f.GetCellValue("Status", "B7")
	require.NoError(t, err)
	assert.Equal(t, "2", got)
}

func TestWriteReportEmptyQueue(t *testing.T) {
	reporter := NewReporter(t.TempDir(), zerolog.Nop())

	path, err := reporter.WriteReport(nil, models.SyncStatus{}, time.Now())
	require.NoError(t, err)

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Actions")
	require.NoError(t, err)
	require.Len(t, rows, 1)

	lastSync, err := f.GetCellValue("Status", "B4")
	require.NoError(t, err)
	assert.Equal(t, "never", lastSync)
}
