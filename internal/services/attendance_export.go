package services

import (
	"context"
	"fmt"
	"time"

	"github.com/smartpresence/attendance-service/internal/models"
	"github.com/xuri/excelize/v2"
)

const (
	exportSheet  = "Attendance"
	summarySheet = "Summary"
)

var exportHeader = []interface{}{
	"Session date", "Subject code", "Subject", "Student code", "Student", "Email",
	"Status", "Method", "Check-in time", "Distance (m)", "Face distance", "Note",
}

// Export writes the records matching params, up to exportLimit rows, into an XLSX workbook
func (s *attendanceService) Export(ctx context.Context, actor Actor, params *models.ListAttendanceParams) ([]byte, error) {
	scoped := *params
	scoped.Page = 0
	scoped.Size = maxPageSize

	filters, err := s.scopedFilters(actor, &scoped)
	if err != nil {
		return nil, err
	}
	if filters.SortBy == "" {
		filters.SortBy = "session_date"
		filters.SortOrder = "asc"
	}

	var records []*models.AttendanceRecord
	for len(records) < exportLimit {
		page, total, err := s.repo.Attendance().List(ctx, filters)
		if err != nil {
			return nil, fmt.Errorf("failed to load attendance: %w", err)
		}
		records = append(records, page...)
		if len(page) < filters.Limit || int64(len(records)) >= total {
			break
		}
		filters.Offset += filters.Limit
	}
	if len(records) > exportLimit {
		records = records[:exportLimit]
	}

	data, err := s.writeWorkbook(records)
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "Attendance exported", "actor_id", actor.ID, "rows", len(records))
	return data, nil
}

func (s *attendanceService) writeWorkbook(records []*models.AttendanceRecord) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", exportSheet); err != nil {
		return nil, fmt.Errorf("failed to name sheet: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, fmt.Errorf("failed to create style: %w", err)
	}

	if err := f.SetSheetRow(exportSheet, "A1", &exportHeader); err != nil {
		return nil, fmt.Errorf("failed to write header: %w", err)
	}
	lastCol, _ := excelize.ColumnNumberToName(len(exportHeader))
	if err := f.SetCellStyle(exportSheet, "A1", lastCol+"1", bold); err != nil {
		return nil, fmt.Errorf("failed to style header: %w", err)
	}

	var counts models.StatusCounts
	for i, r := range records {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		row := exportRow(r, s.loc)
		if err := f.SetSheetRow(exportSheet, cell, &row); err != nil {
			return nil, fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
		countStatus(&counts, r.Status)
	}

	if err := f.SetColWidth(exportSheet, "A", lastCol, 16); err != nil {
		return nil, fmt.Errorf("failed to size columns: %w", err)
	}
	if err := f.SetPanes(exportSheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"}); err != nil {
		return nil, fmt.Errorf("failed to freeze header: %w", err)
	}

	if err := writeSummarySheet(f, counts, bold); err != nil {
		return nil, err
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func writeSummarySheet(f *excelize.File, counts models.StatusCounts, style int) error {
	if _, err := f.NewSheet(summarySheet); err != nil {
		return fmt.Errorf("failed to add summary sheet: %w", err)
	}

	rows := [][]interface{}{
		{"Status", "Records"},
		{string(models.StatusPresent), counts.Present},
		{string(models.StatusLate), counts.Late},
		{string(models.StatusAbsent), counts.Absent},
		{string(models.StatusExcused), counts.Excused},
		{"total", counts.Total()},
		{"attendance rate (%)", counts.Rate()},
	}
	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(summarySheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write summary: %w", err)
		}
	}
	return f.SetCellStyle(summarySheet, "A1", "B1", style)
}

func exportRow(r *models.AttendanceRecord, loc *time.Location) []interface{} {
	checkIn := ""
	if r.CheckInAt != nil {
		checkIn = r.CheckInAt.In(loc).Format("2006-01-02 15:04")
	}
	studentCode := ""
	if r.Student.StudentCode != nil {
		studentCode = *r.Student.StudentCode
	}
	note := ""
	if r.Note != nil {
		note = *r.Note
	}

	return []interface{}{
		r.SessionDate,
		r.Subject.Code,
		r.Subject.Name,
		studentCode,
		r.Student.FullName,
		r.Student.Email,
		string(r.Status),
		string(r.Method),
		checkIn,
		optionalFloat(r.DistanceMeters),
		optionalFloat(r.FaceDistance),
		note,
	}
}

func optionalFloat(v *float64) interface{} {
	if v == nil {
		return ""
	}
	return *v
}

func countStatus(counts *models.StatusCounts, status models.AttendanceStatus) {
	switch status {
	case models.StatusPresent:
		counts.Present++
	case models.StatusLate:
		counts.Late++
	case models.StatusAbsent:
		counts.Absent++
	case models.StatusExcused:
		counts.Excused++
	}
}
