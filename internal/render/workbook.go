package render

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

const sheetName = "Flips"

// Workbook writes rows to an XLSX file, replacing it on every render.
type Workbook struct {
	Path string
}

// Render overwrites w.Path with a workbook of rows.
func (w *Workbook) Render(rows []Row) error {
	f, err := buildWorkbook(rows)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := f.SaveAs(w.Path); err != nil {
		return fmt.Errorf("save %s: %w", w.Path, err)
	}
	return nil
}

// WriteWorkbook streams a workbook of rows to out.
func WriteWorkbook(out io.Writer, rows []Row) error {
	f, err := buildWorkbook(rows)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Write(out)
}

func buildWorkbook(rows []Row) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := fillWorkbook(f, rows); err != nil {
		f.Close()
		return nil, fmt.Errorf("build workbook: %w", err)
	}
	return f, nil
}

func fillWorkbook(f *excelize.File, rows []Row) error {
	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return err
	}
	header := make([]interface{}, len(Headers))
	for i, h := range Headers {
		header[i] = h
	}
	if err := setRow(f, 1, header); err != nil {
		return err
	}
	if bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}}); err == nil {
		f.SetRowStyle(sheetName, 1, 1, bold)
	}
	f.SetColWidth(sheetName, "A", "A", 32)

	for i, r := range rows {
		row := i + 2
		values := []interface{}{
			r.Name, r.BuyLimit, r.Low, r.High, r.Margin,
			r.LowVolume, r.HighVolume, r.Quantity, r.Limit, r.Profit,
		}
		if err := setRow(f, row, values); err != nil {
			return err
		}
		nameCell, err := excelize.CoordinatesToCellName(1, row)
		if err != nil {
			return err
		}
		if err := f.SetCellHyperLink(sheetName, nameCell, r.Link, "External"); err != nil {
			return fmt.Errorf("link %s: %w", nameCell, err)
		}
	}
	return nil
}

// setRow writes values left to right starting at column A.
func setRow(f *excelize.File, row int, values []interface{}) error {
	for j, v := range values {
		cell, err := excelize.CoordinatesToCellName(j+1, row)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheetName, cell, v); err != nil {
			return fmt.Errorf("cell %s: %w", cell, err)
		}
	}
	return nil
}
