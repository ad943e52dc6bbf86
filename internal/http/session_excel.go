package httpapi

import (
	"bytes"
	"fmt"
	"time"

	"github.com/CodingHusk3y/heartwake/internal/models"

	"github.com/xuri/excelize/v2"
)

// SessionExportHeader 会话历史导出表头
var SessionExportHeader = []string{
	"Session ID",
	"Alarm ID",
	"Target",
	"Window (min)",
	"Wake At",
	"Early",
	"Minutes Early",
	"Stage",
	"Rating",
}

const sessionSheet = "Sessions"

// GenerateSessionExport 生成会话历史 Excel 文件
func GenerateSessionExport(sessions []models.StoredSession) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(sessionSheet)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	f.DeleteSheet("Sheet1")
	f.SetActiveSheet(index)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"#E6F3FF"},
			Pattern: 1,
		},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	for col, header := range SessionExportHeader {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return nil, fmt.Errorf("failed to convert coordinates: %w", err)
		}
		if err := f.SetCellValue(sessionSheet, cell, header); err != nil {
			return nil, fmt.Errorf("failed to set header cell %s: %w", cell, err)
		}
		if err := f.SetCellStyle(sessionSheet, cell, cell, headerStyle); err != nil {
			return nil, fmt.Errorf("failed to set header style: %w", err)
		}
	}
	if err := f.SetColWidth(sessionSheet, "A", "B", 38); err != nil {
		return nil, fmt.Errorf("failed to set column width: %w", err)
	}
	if err := f.SetColWidth(sessionSheet, "C", "E", 20); err != nil {
		return nil, fmt.Errorf("failed to set column width: %w", err)
	}

	for i, s := range sessions {
		row := i + 2 // 第1行是表头
		values := []interface{}{
			s.SessionID,
			s.AlarmID,
			formatTime(s.Target),
			s.WindowMinutes,
			formatTime(s.WakeAt),
			yesNo(s.Early),
			s.MinutesEarly,
			s.Stage.String(),
			"",
		}
		if s.Rating != nil {
			values[8] = *s.Rating
		}
		cell, err := excelize.CoordinatesToCellName(1, row)
		if err != nil {
			return nil, fmt.Errorf("failed to convert coordinates: %w", err)
		}
		if err := f.SetSheetRow(sessionSheet, cell, &values); err != nil {
			return nil, fmt.Errorf("failed to write row %d: %w", row, err)
		}
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("failed to write excel file: %w", err)
	}
	return buf.Bytes(), nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02 15:04")
}

func yesNo(v bool) string {
	if v {
		return "Yes"
	}
	return "No"
}
