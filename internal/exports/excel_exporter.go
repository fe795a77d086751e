package exports

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"
)

// ExcelExporter exports rows to an Excel workbook
type ExcelExporter struct {
	file    *excelize.File
	options ExcelOptions

	dataStyle   int
	dateStyle   int
	numberStyle int
}

// ExcelOptions configures Excel export behavior
type ExcelOptions struct {
	SheetName     string
	IncludeHeader bool
	FreezeHeader  bool
	AutoFilter    bool
	NumberFormat  string
	HeaderStyle   *ExcelStyleConfig
	DataStyle     *ExcelStyleConfig
	AutoWidth     bool
}

// ExcelStyleConfig defines style for cells
type ExcelStyleConfig struct {
	FontBold  bool
	FontSize  int
	FontColor string
	FillColor string
	Alignment string // left, center, right
	Border    bool
	WrapText  bool
}

// DefaultExcelOptions returns default Excel export options
func DefaultExcelOptions() ExcelOptions {
	return ExcelOptions{
		SheetName:     "Sources",
		IncludeHeader: true,
		FreezeHeader:  true,
		AutoFilter:    true,
		NumberFormat:  "#,##0.00",
		AutoWidth:     true,
		HeaderStyle: &ExcelStyleConfig{
			FontBold:  true,
			FontSize:  11,
			FillColor: "2E7D32",
			FontColor: "FFFFFF",
			Alignment: "center",
			Border:    true,
		},
		DataStyle: &ExcelStyleConfig{
			FontSize:  11,
			Alignment: "left",
			Border:    true,
		},
	}
}

// NewExcelExporter creates a new Excel exporter
func NewExcelExporter(options ExcelOptions) (*ExcelExporter, error) {
	file := excelize.NewFile()
	if err := file.SetSheetName("Sheet1", options.SheetName); err != nil {
		return nil, fmt.Errorf("failed to rename sheet: %w", err)
	}

	e := &ExcelExporter{file: file, options: options}
	if options.DataStyle != nil {
		style, err := e.createStyle(options.DataStyle, 0, "")
		if err != nil {
			return nil, fmt.Errorf("failed to create data style: %w", err)
		}
		e.dataStyle = style
	}

	// Date and number cells keep the data style's borders and font.
	var err error
	if e.dateStyle, err = e.createStyle(options.DataStyle, 22, ""); err != nil {
		return nil, fmt.Errorf("failed to create date style: %w", err)
	}
	if e.numberStyle, err = e.createStyle(options.DataStyle, 0, options.NumberFormat); err != nil {
		return nil, fmt.Errorf("failed to create number style: %w", err)
	}
	return e, nil
}

// WriteHeader writes the header row with styling
func (e *ExcelExporter) WriteHeader(labels []string) error {
	if !e.options.IncludeHeader {
		return nil
	}
	sheet := e.options.SheetName

	headerStyleID := 0
	if e.options.HeaderStyle != nil {
		style, err := e.createStyle(e.options.HeaderStyle, 0, "")
		if err != nil {
			return fmt.Errorf("failed to create header style: %w", err)
		}
		headerStyleID = style
	}

	for i, label := range labels {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := e.file.SetCellValue(sheet, cell, label); err != nil {
			return err
		}
		if headerStyleID > 0 {
			if err := e.file.SetCellStyle(sheet, cell, cell, headerStyleID); err != nil {
				return err
			}
		}
	}

	if e.options.FreezeHeader {
		return e.file.SetPanes(sheet, &excelize.Panes{
			Freeze:      true,
			YSplit:      1,
			TopLeftCell: "A2",
			ActivePane:  "bottomLeft",
		})
	}
	return nil
}

// WriteRows writes data rows below the header
func (e *ExcelExporter) WriteRows(rows []map[string]interface{}, columns []string) error {
	sheet := e.options.SheetName
	startRow := 1
	if e.options.IncludeHeader {
		startRow = 2
	}

	columnWidths := make(map[int]float64)
	for rowIdx, row := range rows {
		for colIdx, col := range columns {
			cell, _ := excelize.CoordinatesToCellName(colIdx+1, startRow+rowIdx)
			val := row[col]
			if err := e.setCellValue(sheet, cell, val); err != nil {
				return fmt.Errorf("failed to set cell value: %w", err)
			}
			if e.options.AutoWidth {
				if width := estimateCellWidth(val); width > columnWidths[colIdx] {
					columnWidths[colIdx] = width
				}
			}
		}
	}

	if e.options.AutoFilter && e.options.IncludeHeader && len(rows) > 0 {
		lastCol, _ := excelize.CoordinatesToCellName(len(columns), 1)
		if err := e.file.AutoFilter(sheet, "A1:"+lastCol, nil); err != nil {
			return fmt.Errorf("failed to set auto filter: %w", err)
		}
	}

	if e.options.AutoWidth {
		for colIdx, width := range columnWidths {
			name, _ := excelize.ColumnNumberToName(colIdx + 1)
			width = min(max(width, 10), 50)
			if err := e.file.SetColWidth(sheet, name, name, width); err != nil {
				return err
			}
		}
	}
	return nil
}

// AddSummarySheet writes label/value pairs to a new sheet.
func (e *ExcelExporter) AddSummarySheet(name string, items []SummaryItem) error {
	if _, err := e.file.NewSheet(name); err != nil {
		return fmt.Errorf("failed to create sheet: %w", err)
	}
	for i, item := range items {
		label, _ := excelize.CoordinatesToCellName(1, i+1)
		value, _ := excelize.CoordinatesToCellName(2, i+1)
		if err := e.file.SetCellValue(name, label, item.Label); err != nil {
			return err
		}
		if err := e.setCellValue(name, value, item.Value); err != nil {
			return err
		}
	}
	return e.file.SetColWidth(name, "A", "A", 24)
}

// WriteTo writes the workbook to a writer
func (e *ExcelExporter) WriteTo(w io.Writer) error {
	return e.file.Write(w)
}

// Close closes the workbook
func (e *ExcelExporter) Close() error {
	return e.file.Close()
}

func (e *ExcelExporter) createStyle(config *ExcelStyleConfig, numFmt int, customFmt string) (int, error) {
	style := &excelize.Style{NumFmt: numFmt}
	if customFmt != "" {
		style.CustomNumFmt = &customFmt
	}
	if config == nil {
		return e.file.NewStyle(style)
	}

	style.Font = &excelize.Font{
		Bold:  config.FontBold,
		Size:  float64(config.FontSize),
		Color: config.FontColor,
	}
	if config.FillColor != "" {
		style.Fill = excelize.Fill{
			Type:    "pattern",
			Pattern: 1,
			Color:   []string{config.FillColor},
		}
	}
	if config.Alignment != "" || config.WrapText {
		style.Alignment = &excelize.Alignment{
			Horizontal: config.Alignment,
			WrapText:   config.WrapText,
		}
	}
	if config.Border {
		style.Border = []excelize.Border{
			{Type: "left", Color: "000000", Style: 1},
			{Type: "right", Color: "000000", Style: 1},
			{Type: "top", Color: "000000", Style: 1},
			{Type: "bottom", Color: "000000", Style: 1},
		}
	}
	return e.file.NewStyle(style)
}

func (e *ExcelExporter) setCellValue(sheet, cell string, val interface{}) error {
	style := e.dataStyle
	switch v := val.(type) {
	case nil:
		val = ""
	case time.Time:
		if v.IsZero() {
			val = ""
		} else {
			val = v.UTC()
			style = e.dateStyle
		}
	case float64:
		style = e.numberStyle
	}

	if err := e.file.SetCellValue(sheet, cell, val); err != nil {
		return err
	}
	if style > 0 {
		return e.file.SetCellStyle(sheet, cell, cell, style)
	}
	return nil
}

func estimateCellWidth(val interface{}) float64 {
	if val == nil {
		return 0
	}
	return float64(len(fmt.Sprintf("%v", val))) * 1.2
}

// WriteExcel renders report as an XLSX workbook with a summary sheet.
func WriteExcel(w io.Writer, report Report) error {
	exporter, err := NewExcelExporter(DefaultExcelOptions())
	if err != nil {
		return err
	}
	defer exporter.Close()

	if err := exporter.WriteHeader(ColumnLabels); err != nil {
		return err
	}
	if err := exporter.WriteRows(report.Rows, Columns); err != nil {
		return err
	}
	if err := exporter.AddSummarySheet("Summary", report.Summary.Items()); err != nil {
		return err
	}
	return exporter.WriteTo(w)
}
