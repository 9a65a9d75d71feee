package listview

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/jwalitptl/hms/internal/model"
)

// Column is one exported column.
type Column[T any] struct {
	Header string
	Width  float64
	Value  func(T) string
}

var LabColumns = []Column[model.LabRecord]{
	{Header: "Patient Name", Width: 24, Value: func(r model.LabRecord) string { return r.PatientName }},
	{Header: "Patient ID", Width: 14, Value: func(r model.LabRecord) string { return r.PatientUniqueID }},
	{Header: "Test Name", Width: 22, Value: func(r model.LabRecord) string { return r.TestName }},
	{Header: "Category", Width: 16, Value: func(r model.LabRecord) string { return r.Category }},
	{Header: "Doctor", Width: 20, Value: func(r model.LabRecord) string { return r.DoctorName }},
	{Header: "Diagnosis", Width: 28, Value: func(r model.LabRecord) string { return r.Diagnosis }},
	{Header: "Priority", Width: 12, Value: func(r model.LabRecord) string { return string(r.Priority) }},
	{Header: "Status", Width: 12, Value: func(r model.LabRecord) string { return string(r.Status) }},
	{Header: "Performed By", Width: 20, Value: func(r model.LabRecord) string { return r.PerformedBy }},
	{Header: "Performed Date", Width: 14, Value: func(r model.LabRecord) string { return r.PerformedDate }},
	{Header: "Report Date", Width: 14, Value: func(r model.LabRecord) string { return r.ReportDate }},
}

var XrayColumns = []Column[model.XrayRecord]{
	{Header: "Patient Name", Width: 24, Value: func(r model.XrayRecord) string { return r.PatientName }},
	{Header: "Patient ID", Width: 16, Value: func(r model.XrayRecord) string { return r.PatientUniqueID }},
	{Header: "Age", Width: 6, Value: func(r model.XrayRecord) string { return strconv.Itoa(r.Age) }},
	{Header: "Gender", Width: 10, Value: func(r model.XrayRecord) string { return r.Gender }},
	{Header: "Test Name", Width: 22, Value: func(r model.XrayRecord) string { return r.TestName }},
	{Header: "Category", Width: 16, Value: func(r model.XrayRecord) string { return r.Category }},
	{Header: "Doctor", Width: 20, Value: func(r model.XrayRecord) string { return r.DoctorName }},
	{Header: "Diagnosis", Width: 28, Value: func(r model.XrayRecord) string { return r.Diagnosis }},
	{Header: "Priority", Width: 12, Value: func(r model.XrayRecord) string { return string(r.Priority) }},
	{Header: "Status", Width: 12, Value: func(r model.XrayRecord) string { return string(r.Status) }},
	{Header: "Performed By", Width: 20, Value: func(r model.XrayRecord) string { return r.PerformedBy }},
	{Header: "Performed Date", Width: 14, Value: func(r model.XrayRecord) string { return r.PerformedDate }},
	{Header: "Images", Width: 8, Value: func(r model.XrayRecord) string { return strconv.Itoa(len(r.Images)) }},
}

var UserColumns = []Column[model.User]{
	{Header: "Name", Width: 24, Value: func(u model.User) string { return u.Name }},
	{Header: "Email", Width: 28, Value: func(u model.User) string { return u.Email }},
	{Header: "Role", Width: 12, Value: func(u model.User) string { return string(u.Role) }},
	{Header: "Patient ID", Width: 14, Value: func(u model.User) string { return u.UniqueID }},
	{Header: "Status", Width: 12, Value: func(u model.User) string { return u.StatusLabel() }},
	{Header: "Created", Width: 14, Value: func(u model.User) string { return model.ISODate(u.CreatedAt) }},
}

// WriteCSV writes a header row and one row per record. Every field is
// double-quoted.
func WriteCSV[T any](w io.Writer, cols []Column[T], rows []T) error {
	bw := bufio.NewWriter(w)

	fields := make([]string, len(cols))
	for i, col := range cols {
		fields[i] = col.Header
	}
	writeCSVRow(bw, fields)

	for _, row := range rows {
		for i, col := range cols {
			fields[i] = col.Value(row)
		}
		writeCSVRow(bw, fields)
	}

	if err := bw.Flush(); err != nil {
		return fmt.Errorf("failed to write csv: %w", err)
	}
	return nil
}

func writeCSVRow(w *bufio.Writer, fields []string) {
	for i, f := range fields {
		if i > 0 {
			w.WriteByte(',')
		}
		w.WriteByte('"')
		w.WriteString(strings.ReplaceAll(f, `"`, `""`))
		w.WriteByte('"')
	}
	w.WriteString("\r\n")
}

// WriteXLSX writes the same table as a spreadsheet with a frozen, styled
// header row.
func WriteXLSX[T any](w io.Writer, sheet string, cols []Column[T], rows []T) error {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(sheet)
	if err != nil {
		return fmt.Errorf("failed to create sheet: %w", err)
	}
	if sheet != "Sheet1" {
		if err := f.DeleteSheet("Sheet1"); err != nil {
			return fmt.Errorf("failed to delete default sheet: %w", err)
		}
	}
	f.SetActiveSheet(index)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"#E6F3FF"},
			Pattern: 1,
		},
		Border: []excelize.Border{
			{Type: "left", Color: "000000", Style: 1},
			{Type: "top", Color: "000000", Style: 1},
			{Type: "bottom", Color: "000000", Style: 1},
			{Type: "right", Color: "000000", Style: 1},
		},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	for i, col := range cols {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, col.Header); err != nil {
			return fmt.Errorf("failed to write header: %w", err)
		}
		if err := f.SetCellStyle(sheet, cell, cell, headerStyle); err != nil {
			return fmt.Errorf("failed to style header: %w", err)
		}
		if col.Width > 0 {
			name, err := excelize.ColumnNumberToName(i + 1)
			if err != nil {
				return err
			}
			if err := f.SetColWidth(sheet, name, name, col.Width); err != nil {
				return fmt.Errorf("failed to set column width: %w", err)
			}
		}
	}

	for r, row := range rows {
		for i, col := range cols {
			cell, err := excelize.CoordinatesToCellName(i+1, r+2)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(sheet, cell, col.Value(row)); err != nil {
				return fmt.Errorf("failed to write row %d: %w", r+1, err)
			}
		}
	}

	if err := f.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return fmt.Errorf("failed to freeze panes: %w", err)
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write xlsx: %w", err)
	}
	return nil
}

// ExportCSV writes the filtered records.
func (c *Controller[T]) ExportCSV(w io.Writer, cols []Column[T]) error {
	return WriteCSV(w, cols, c.Filtered())
}

// ExportXLSX writes the filtered records as a spreadsheet.
func (c *Controller[T]) ExportXLSX(w io.Writer, sheet string, cols []Column[T]) error {
	return WriteXLSX(w, sheet, cols, c.Filtered())
}
