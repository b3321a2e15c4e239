// Package report renders the submitted-task list and the snapshot journal as
// an Excel workbook.
package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"nodeconsole/model"
	"nodeconsole/store"
)

const (
	TasksSheet   = "Submitted Tasks"
	HistorySheet = "Snapshot History"
)

var (
	taskHeader    = []any{"Task ID", "Description", "Status", "Image", "Command", "CPU", "RAM", "Trust Required", "Trust Level", "Overlap", "Created", "Last Change", "Updated"}
	historyHeader = []any{"ID", "Seq", "Kind", "Node ID", "Recorded", "Payload"}
)

// WriteWorkbook writes an XLSX workbook with one sheet per data set.
func WriteWorkbook(w io.Writer, tasks []model.Task, journal []*store.SnapshotEntry) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", TasksSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if _, err := f.NewSheet(HistorySheet); err != nil {
		return fmt.Errorf("add sheet: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("header style: %w", err)
	}

	rows := make([][]any, 0, len(tasks))
	for _, t := range tasks {
		rows = append(rows, []any{
			t.ID,
			t.Description,
			model.TaskStatusLabel(t.Status),
			t.ContainerSpec.Image,
			t.ContainerSpec.Command,
			t.ResourceRequirements.CPU,
			t.ResourceRequirements.RAM,
			optFloat(t.TrustIndexRequired),
			trustLevel(t.TrustIndexRequired),
			optInt(t.OverlapCount),
			t.CreatedAt,
			strings.TrimSuffix(model.UpdatedLabel(t.Status), ":"),
			t.UpdatedAt,
		})
	}
	if err := writeSheet(f, TasksSheet, bold, taskHeader, rows); err != nil {
		return err
	}

	rows = rows[:0]
	for _, e := range journal {
		rows = append(rows, []any{
			e.ID,
			e.Seq,
			e.Kind,
			e.NodeID,
			e.CreatedAt.Format(time.DateTime),
			string(e.Payload),
		})
	}
	if err := writeSheet(f, HistorySheet, bold, historyHeader, rows); err != nil {
		return err
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeSheet(f *excelize.File, sheet string, headerStyle int, header []any, rows [][]any) error {
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("%s header: %w", sheet, err)
	}
	last, err := excelize.CoordinatesToCellName(len(header), 1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, "A1", last, headerStyle); err != nil {
		return fmt.Errorf("%s header style: %w", sheet, err)
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("%s row %d: %w", sheet, i+2, err)
		}
	}
	lastCol, _, err := excelize.SplitCellName(last)
	if err != nil {
		return err
	}
	return f.SetColWidth(sheet, "A", lastCol, 18)
}

func optFloat(v *float64) any {
	if v == nil {
		return ""
	}
	return *v
}

func trustLevel(v *float64) string {
	if v == nil {
		return ""
	}
	return model.TrustLevel(*v)
}

func optInt(v *int) any {
	if v == nil {
		return ""
	}
	return *v
}
