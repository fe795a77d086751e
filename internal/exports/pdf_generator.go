package exports

import (
	"bytes"
	"fmt"
	"io"
	"time"

	"github.com/jung-kurt/gofpdf"
)

// PDFGenerator generates traceability PDF reports
type PDFGenerator struct {
	pdf       *gofpdf.Fpdf
	options   PDFOptions
	translate func(string) string
}

// PDFOptions configures PDF generation
type PDFOptions struct {
	PageSize       string // A4, Letter, Legal
	Orientation    string // portrait, landscape
	Title          string
	Subtitle       string
	DateFormat     string
	IncludeHeader  bool
	IncludePageNum bool
	HeaderColor    PDFColor
	AlternateRows  bool
	AlternateColor PDFColor
	FontFamily     string
	FontSize       float64
	HeaderFontSize float64
	TitleFontSize  float64
	Margins        PDFMargins
}

// PDFColor represents an RGB color
type PDFColor struct {
	R, G, B int
}

// PDFMargins represents page margins
type PDFMargins struct {
	Left, Right, Top, Bottom float64
}

// DefaultPDFOptions returns default PDF options
func DefaultPDFOptions() PDFOptions {
	return PDFOptions{
		PageSize:       "A4",
		Orientation:    "landscape",
		Title:          "Traceability Report",
		DateFormat:     "2006-01-02",
		IncludeHeader:  true,
		IncludePageNum: true,
		HeaderColor:    PDFColor{R: 46, G: 125, B: 50},
		AlternateRows:  true,
		AlternateColor: PDFColor{R: 242, G: 242, B: 242},
		FontFamily:     "Arial",
		FontSize:       8,
		HeaderFontSize: 8,
		TitleFontSize:  16,
		Margins:        PDFMargins{Left: 10, Right: 10, Top: 15, Bottom: 15},
	}
}

// NewPDFGenerator creates a new PDF generator
func NewPDFGenerator(options PDFOptions) *PDFGenerator {
	orientation := "P"
	if options.Orientation == "landscape" {
		orientation = "L"
	}

	pdf := gofpdf.New(orientation, "mm", options.PageSize, "")
	pdf.SetMargins(options.Margins.Left, options.Margins.Top, options.Margins.Right)
	pdf.SetAutoPageBreak(true, options.Margins.Bottom)

	g := &PDFGenerator{
		pdf:       pdf,
		options:   options,
		translate: pdf.UnicodeTranslatorFromDescriptor(""),
	}
	g.setFooter()
	return g
}

// Generate renders a title block, the summary and the row table.
func (g *PDFGenerator) Generate(columns, labels []string, rows []map[string]interface{}, summary []SummaryItem, generatedAt time.Time) error {
	g.pdf.AddPage()

	g.pdf.SetFont(g.options.FontFamily, "B", g.options.TitleFontSize)
	g.pdf.SetTextColor(0, 0, 0)
	g.pdf.CellFormat(0, 10, g.translate(g.options.Title), "", 1, "C", false, 0, "")

	if g.options.Subtitle != "" {
		g.pdf.SetFont(g.options.FontFamily, "", g.options.FontSize+4)
		g.pdf.SetTextColor(100, 100, 100)
		g.pdf.CellFormat(0, 8, g.translate(g.options.Subtitle), "", 1, "C", false, 0, "")
	}

	g.pdf.SetFont(g.options.FontFamily, "", g.options.FontSize)
	g.pdf.SetTextColor(128, 128, 128)
	g.pdf.CellFormat(0, 6, "Generated: "+generatedAt.UTC().Format(g.options.DateFormat+" 15:04 MST"), "", 1, "R", false, 0, "")

	if len(summary) > 0 {
		g.addSummarySection("Summary", summary)
	}
	g.pdf.Ln(6)

	widths := g.calculateColumnWidths(labels, rows, columns)
	if g.options.IncludeHeader {
		g.addTableHeader(labels, widths)
	}
	g.addTableData(columns, labels, rows, widths)

	return g.pdf.Error()
}

func (g *PDFGenerator) addSummarySection(title string, items []SummaryItem) {
	g.pdf.Ln(4)
	g.pdf.SetFont(g.options.FontFamily, "B", g.options.FontSize+2)
	g.pdf.SetTextColor(0, 0, 0)
	g.pdf.CellFormat(0, 8, title, "", 1, "L", false, 0, "")

	for _, item := range items {
		g.pdf.SetFont(g.options.FontFamily, "B", g.options.FontSize)
		g.pdf.CellFormat(50, 5, item.Label+":", "", 0, "L", false, 0, "")
		g.pdf.SetFont(g.options.FontFamily, "", g.options.FontSize)
		g.pdf.CellFormat(0, 5, g.translate(g.formatValue(item.Value)), "", 1, "L", false, 0, "")
	}
}

func (g *PDFGenerator) calculateColumnWidths(labels []string, rows []map[string]interface{}, columns []string) []float64 {
	pageWidth, _ := g.pdf.GetPageSize()
	available := pageWidth - g.options.Margins.Left - g.options.Margins.Right

	widths := make([]float64, len(columns))
	g.pdf.SetFont(g.options.FontFamily, "B", g.options.HeaderFontSize)
	for i, label := range labels {
		widths[i] = g.pdf.GetStringWidth(label) + 4
	}

	// Sample the first rows only.
	g.pdf.SetFont(g.options.FontFamily, "", g.options.FontSize)
	for _, row := range rows[:min(len(rows), 100)] {
		for i, col := range columns {
			if w := g.pdf.GetStringWidth(g.formatValue(row[col])) + 4; w > widths[i] {
				widths[i] = w
			}
		}
	}

	total := 0.0
	for _, w := range widths {
		total += w
	}
	if total > available {
		scale := available / total
		for i := range widths {
			widths[i] *= scale
		}
	}
	return widths
}

func (g *PDFGenerator) addTableHeader(labels []string, widths []float64) {
	g.pdf.SetFont(g.options.FontFamily, "B", g.options.HeaderFontSize)
	g.pdf.SetFillColor(g.options.HeaderColor.R, g.options.HeaderColor.G, g.options.HeaderColor.B)
	g.pdf.SetTextColor(255, 255, 255)

	for i, label := range labels {
		g.pdf.CellFormat(widths[i], 7, label, "1", 0, "C", true, 0, "")
	}
	g.pdf.Ln(-1)
}

func (g *PDFGenerator) addTableData(columns, labels []string, rows []map[string]interface{}, widths []float64) {
	g.pdf.SetFont(g.options.FontFamily, "", g.options.FontSize)
	g.pdf.SetTextColor(0, 0, 0)
	_, pageHeight := g.pdf.GetPageSize()

	for i, row := range rows {
		if g.pdf.GetY()+6 > pageHeight-g.options.Margins.Bottom {
			g.pdf.AddPage()
			if g.options.IncludeHeader {
				g.addTableHeader(labels, widths)
				g.pdf.SetFont(g.options.FontFamily, "", g.options.FontSize)
				g.pdf.SetTextColor(0, 0, 0)
			}
		}

		if g.options.AlternateRows && i%2 == 1 {
			g.pdf.SetFillColor(g.options.AlternateColor.R, g.options.AlternateColor.G, g.options.AlternateColor.B)
		} else {
			g.pdf.SetFillColor(255, 255, 255)
		}

		for j, col := range columns {
			val := truncate(g.formatValue(row[col]), int(widths[j]/1.6))
			g.pdf.CellFormat(widths[j], 6, g.translate(val), "1", 0, "L", true, 0, "")
		}
		g.pdf.Ln(-1)
	}
}

func (g *PDFGenerator) formatValue(val interface{}) string {
	switch v := val.(type) {
	case nil:
		return ""
	case time.Time:
		if v.IsZero() {
			return ""
		}
		return v.Format(g.options.DateFormat)
	case float64:
		return fmt.Sprintf("%.2f", v)
	case bool:
		if v {
			return "Yes"
		}
		return "No"
	default:
		return fmt.Sprintf("%v", v)
	}
}

func (g *PDFGenerator) setFooter() {
	g.pdf.SetFooterFunc(func() {
		if !g.options.IncludePageNum {
			return
		}
		g.pdf.SetY(-12)
		g.pdf.SetFont(g.options.FontFamily, "", 7)
		g.pdf.SetTextColor(128, 128, 128)
		g.pdf.CellFormat(0, 8, fmt.Sprintf("Page %d", g.pdf.PageNo()), "", 0, "C", false, 0, "")
	})
}

// WriteTo writes the PDF to a writer
func (g *PDFGenerator) WriteTo(w io.Writer) error {
	return g.pdf.Output(w)
}

// OutputToBytes returns the PDF as bytes
func (g *PDFGenerator) OutputToBytes() ([]byte, error) {
	var buf bytes.Buffer
	if err := g.pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func truncate(s string, maxChars int) string {
	runes := []rune(s)
	if maxChars < 4 || len(runes) <= maxChars {
		return s
	}
	return string(runes[:maxChars-3]) + "..."
}

// WritePDF renders report as a landscape PDF table.
func WritePDF(w io.Writer, report Report) error {
	opts := DefaultPDFOptions()
	opts.Subtitle = "Batch " + report.Batch.Code
	if report.Batch.Commodity != "" {
		opts.Subtitle += " (" + report.Batch.Commodity + ")"
	}

	g := NewPDFGenerator(opts)
	if err := g.Generate(Columns, ColumnLabels, report.Rows, report.Summary.Items(), report.GeneratedAt); err != nil {
		return fmt.Errorf("failed to generate pdf: %w", err)
	}
	return g.WriteTo(w)
}
