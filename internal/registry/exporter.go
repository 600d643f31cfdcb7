package registry

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/xuri/excelize/v2"
)

const timestampFormat = "2006-01-02T15:04:05Z07:00"

// formatCell renders a value for CSV output. Nil and zero times become "".
func formatCell(val any) string {
	switch v := val.(type) {
	case nil:
		return ""
	case string:
		return v
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	case time.Time:
		if v.IsZero() {
			return ""
		}
		return v.UTC().Format(timestampFormat)
	case *time.Time:
		if v == nil || v.IsZero() {
			return ""
		}
		return v.UTC().Format(timestampFormat)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// WriteCSV writes t as CSV with a header row.
func WriteCSV(w io.Writer, t Table) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(t.Columns); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	record := make([]string, len(t.Columns))
	for _, row := range t.Rows {
		for i := range record {
			record[i] = ""
			if i < len(row) {
				record[i] = formatCell(row[i])
			}
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}
	writer.Flush()
	return writer.Error()
}

// workbook writes tables to sheets of one excelize file.
type workbook struct {
	file        *excelize.File
	headerStyle int
	dateStyle   int
	numberStyle int
}

func newWorkbook() (*workbook, error) {
	f := excelize.NewFile()
	header, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11, Color: "FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"1F6F78"}},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}
	date, err := f.NewStyle(&excelize.Style{NumFmt: 22}) // m/d/yy h:mm
	if err != nil {
		return nil, fmt.Errorf("failed to create date style: %w", err)
	}
	numFmt := "#,##0.00"
	number, err := f.NewStyle(&excelize.Style{CustomNumFmt: &numFmt})
	if err != nil {
		return nil, fmt.Errorf("failed to create number style: %w", err)
	}
	return &workbook{file: f, headerStyle: header, dateStyle: date, numberStyle: number}, nil
}

func (b *workbook) addSheet(t Table, first bool) error {
	sheet := t.Name
	if first {
		if err := b.file.SetSheetName("Sheet1", sheet); err != nil {
			return err
		}
	} else if _, err := b.file.NewSheet(sheet); err != nil {
		return fmt.Errorf("failed to create sheet: %w", err)
	}

	widths := make([]float64, len(t.Columns))
	for i, col := range t.Columns {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := b.file.SetCellValue(sheet, cell, col); err != nil {
			return err
		}
		widths[i] = float64(len(col)) * 1.2
	}
	last, _ := excelize.CoordinatesToCellName(len(t.Columns), 1)
	if err := b.file.SetCellStyle(sheet, "A1", last, b.headerStyle); err != nil {
		return err
	}

	for r, row := range t.Rows {
		for c := range t.Columns {
			if c >= len(row) {
				break
			}
			cell, _ := excelize.CoordinatesToCellName(c+1, r+2)
			if err := b.setCell(sheet, cell, row[c]); err != nil {
				return fmt.Errorf("failed to set cell value: %w", err)
			}
			if w := float64(len(formatCell(row[c]))) * 1.2; w > widths[c] {
				widths[c] = w
			}
		}
	}

	for i, w := range widths {
		col, _ := excelize.ColumnNumberToName(i + 1)
		if err := b.file.SetColWidth(sheet, col, col, min(max(w, 10), 50)); err != nil {
			return err
		}
	}
	if err := b.file.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return err
	}
	if len(t.Rows) > 0 {
		return b.file.AutoFilter(sheet, "A1:"+last, nil)
	}
	return nil
}

func (b *workbook) setCell(sheet, cell string, val any) error {
	switch v := val.(type) {
	case nil:
		return nil
	case time.Time:
		if v.IsZero() {
			return nil
		}
		if err := b.file.SetCellValue(sheet, cell, v.UTC()); err != nil {
			return err
		}
		return b.file.SetCellStyle(sheet, cell, cell, b.dateStyle)
	case *time.Time:
		if v == nil {
			return nil
		}
		return b.setCell(sheet, cell, *v)
	case float64:
		if err := b.file.SetCellValue(sheet, cell, v); err != nil {
			return err
		}
		return b.file.SetCellStyle(sheet, cell, cell, b.numberStyle)
	default:
		return b.file.SetCellValue(sheet, cell, v)
	}
}

// WriteXLSX writes each table to its own sheet, in order.
func WriteXLSX(w io.Writer, tables ...Table) error {
	b, err := newWorkbook()
	if err != nil {
		return err
	}
	defer b.file.Close()

	for i, t := range tables {
		if err := b.addSheet(t, i == 0); err != nil {
			return err
		}
	}
	_, err = b.file.WriteTo(w)
	return err
}
