// Package export renders the sync engine's state into an Excel workbook for
// support handoffs: one sheet with the queued actions, one with the status
// summary.
package export

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"budgetsync/internal/models"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"
)

const (
	actionsSheet = "Actions"
	statusSheet  = "Status"
)

// Reporter writes queue reports into a directory.
type Reporter struct {
	dir    string
	logger zerolog.Logger
}

func NewReporter(dir string, logger zerolog.Logger) *Reporter {
	return &Reporter{dir: dir, logger: logger}
}

// WriteReport saves an .xlsx snapshot of the queue and status, returning the
// file path.
func (r *Reporter) WriteReport(actions []models.Action, status models.SyncStatus, now time.Time) (string, error) {
	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return "", fmt.Errorf("create export directory: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(actionsSheet)
	if err != nil {
		return "", fmt.Errorf("create sheet: %w", err)
	}
	f.SetActiveSheet(index)

	if err := r.writeActions(f, actions); err != nil {
		return "", err
	}
	if err := r.writeStatus(f, status, now); err != nil {
		return "", err
	}

	_ = f.DeleteSheet("Sheet1")

	fileName := fmt.Sprintf("queue_report_%s.xlsx", now.Format("2006-01-02_15-04-05"))
	filePath := filepath.Join(r.dir, fileName)
	if err := f.SaveAs(filePath); err != nil {
		return "", fmt.Errorf("save report: %w", err)
	}

	r.logger.Info().Str("file_path", filePath).Int("actions", len(actions)).Msg("queue report created")
	return filePath, nil
}

func (r *Reporter) writeActions(f *excelize.File, actions []models.Action) error {
	headers := []string{
		"ID", "Type", "Entity", "Entity ID", "Priority",
		"Retries", "Max Retries", "State", "Dependencies", "Queued At",
	}
	headerStyle, err := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
		Font: &excelize.Font{Bold: true},
	})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}
	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(actionsSheet, cell, header)
		_ = f.SetCellStyle(actionsSheet, cell, cell, headerStyle)
	}

	failedStyle, err := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#FFC7CE"}, Pattern: 1},
	})
	if err != nil {
		return fmt.Errorf("create failed style: %w", err)
	}

	for i, a := range actions {
		row := i + 2
		state := "pending"
		if a.Failed() {
			state = "failed"
		}
		var deps string
		for j, dep := range a.Dependencies {
			if j > 0 {
				deps += ", "
			}
			deps += dep
		}

		_ = f.SetCellValue(actionsSheet, fmt.Sprintf("A%d", row), a.ID)
		_ = f.SetCellValue(actionsSheet, fmt.Sprintf("B%d", row), a.Type)
		_ = f.SetCellValue(actionsSheet, fmt.Sprintf("C%d", row), a.Entity)
		_ = f.SetCellValue(actionsSheet, fmt.Sprintf("D%d", row), a.EntityID)
		_ = f.SetCellValue(actionsSheet, fmt.Sprintf("E%d", row), a.Priority)
		_ = f.SetCellValue(actionsSheet, fmt.Sprintf("F%d", row), a.RetryCount)
		_ = f.SetCellValue(actionsSheet, fmt.Sprintf("G%d", row), a.MaxRetries)
		_ = f.SetCellValue(actionsSheet, fmt.Sprintf("H%d", row), state)
		_ = f.SetCellValue(actionsSheet, fmt.Sprintf("I%d", row), deps)
		_ = f.SetCellValue(actionsSheet, fmt.Sprintf("J%d", row), a.Timestamp.Format("02.01.2006 15:04:05"))

		if a.Failed() {
			_ = f.SetCellStyle(actionsSheet, fmt.Sprintf("A%d", row), fmt.Sprintf("J%d", row), failedStyle)
		}
	}

	_ = f.SetColWidth(actionsSheet, "A", "A", 38)
	_ = f.SetColWidth(actionsSheet, "B", "E", 12)
	_ = f.SetColWidth(actionsSheet, "F", "H", 10)
	_ = f.SetColWidth(actionsSheet, "I", "I", 40)
	_ = f.SetColWidth(actionsSheet, "J", "J", 20)
	return nil
}

func (r *Reporter) writeStatus(f *excelize.File, status models.SyncStatus, now time.Time) error {
	if _, err := f.NewSheet(statusSheet); err != nil {
		return fmt.Errorf("create sheet: %w", err)
	}

	lastSync := "never"
	if status.LastSyncAt != nil {
		lastSync = status.LastSyncAt.Format("02.01.2006 15:04:05")
	}
	rows := [][2]any{
		{"Generated At", now.Format("02.01.2006 15:04:05")},
		{"Online", status.IsOnline},
		{"Syncing", status.IsSyncing},
		{"Last Sync", lastSync},
		{"Pending Actions", status.PendingActions},
		{"Failed Actions", status.FailedActions},
		{"Total Actions", status.TotalActions},
	}
	for i, row := range rows {
		_ = f.SetCellValue(statusSheet, fmt.Sprintf("A%d", i+1), row[0])
		_ = f.SetCellValue(statusSheet, fmt.Sprintf("B%d", i+1), row[1])
	}

	_ = f.SetColWidth(statusSheet, "A", "A", 20)
	_ = f.SetColWidth(statusSheet, "B", "B", 25)
	return nil
}
