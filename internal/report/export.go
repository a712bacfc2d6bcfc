package report

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"

	"github.com/tinytelemetry/ponwatch/internal/table"
	"github.com/xuri/excelize/v2"
)

// PivotSheet is the worksheet name used for pivot workbooks.
const PivotSheet = "Pivot"

// WritePivotCSV writes the flattened pivot with its header row.
func WritePivotCSV(w io.Writer, p *Pivot) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(p.Columns()); err != nil {
		return err
	}
	if err := cw.WriteAll(p.Records()); err != nil {
		return fmt.Errorf("writing pivot csv: %w", err)
	}
	return nil
}

// WriteTableCSV writes t in column order. Null cells are written empty.
func WriteTableCSV(w io.Writer, t *table.Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Columns); err != nil {
		return err
	}
	rec := make([]string, len(t.Columns))
	for _, r := range t.Rows {
		for i, c := range t.Columns {
			rec[i] = r.Value(c)
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("writing detail csv: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// PivotWorkbook renders p as a single-sheet workbook with a bold, frozen
// header row. Count cells are numeric. The caller closes the file.
func PivotWorkbook(p *Pivot) (*excelize.File, error) {
	f := excelize.NewFile()

	if _, err := f.NewSheet(PivotSheet); err != nil {
		f.Close()
		return nil, fmt.Errorf("creating sheet: %w", err)
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		f.Close()
		return nil, fmt.Errorf("removing default sheet: %w", err)
	}
	index, err := f.GetSheetIndex(PivotSheet)
	if err != nil {
		f.Close()
		return nil, err
	}
	f.SetActiveSheet(index)

	header := p.Columns()
	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E6F3FF"}, Pattern: 1},
	})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("creating header style: %w", err)
	}

	headerRow := make([]interface{}, len(header))
	for i, h := range header {
		headerRow[i] = h
	}
	if err := f.SetSheetRow(PivotSheet, "A1", &headerRow); err != nil {
		f.Close()
		return nil, fmt.Errorf("writing header: %w", err)
	}
	last, err := excelize.CoordinatesToCellName(len(header), 1)
	if err != nil {
		f.Close()
		return nil, err
	}
	if err := f.SetCellStyle(PivotSheet, "A1", last, headerStyle); err != nil {
		f.Close()
		return nil, fmt.Errorf("styling header: %w", err)
	}

	for i, r := range p.Rows {
		row := make([]interface{}, 0, len(header))
		for _, v := range r.Index {
			row = append(row, v)
		}
		for _, l := range p.LabelColumns {
			row = append(row, r.Labels[l])
		}
		for _, c := range r.Counts {
			row = append(row, c)
		}
		row = append(row, r.Total)

		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			f.Close()
			return nil, err
		}
		if err := f.SetSheetRow(PivotSheet, cell, &row); err != nil {
			f.Close()
			return nil, fmt.Errorf("writing row %d: %w", i+2, err)
		}
	}

	if err := f.SetPanes(PivotSheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		f.Close()
		return nil, fmt.Errorf("freezing header: %w", err)
	}
	return f, nil
}

// WritePivotXLSX writes p as an .xlsx workbook to w.
func WritePivotXLSX(w io.Writer, p *Pivot) error {
	f, err := PivotWorkbook(p)
	if err != nil {
		return err
	}
	defer f.Close()

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		return fmt.Errorf("encoding workbook: %w", err)
	}
	_, err = buf.WriteTo(w)
	return err
}
