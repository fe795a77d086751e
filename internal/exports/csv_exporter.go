package exports

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

// CSVExporter exports rows to CSV format
type CSVExporter struct {
	writer        *csv.Writer
	options       CSVOptions
	headerWritten bool
}

// CSVOptions configures CSV export behavior
type CSVOptions struct {
	Delimiter       rune
	UseCRLF         bool
	IncludeHeader   bool
	DateFormat      string
	TimestampFormat string
	NumberFormat    string // e.g. "%.2f"
	NullValue       string
	BoolTrueValue   string
	BoolFalseValue  string
}

// DefaultCSVOptions returns default CSV export options
func DefaultCSVOptions() CSVOptions {
	return CSVOptions{
		Delimiter:       ',',
		IncludeHeader:   true,
		DateFormat:      "2006-01-02",
		TimestampFormat: time.RFC3339,
		BoolTrueValue:   "true",
		BoolFalseValue:  "false",
	}
}

// NewCSVExporter creates a new CSV exporter
func NewCSVExporter(w io.Writer, options CSVOptions) *CSVExporter {
	writer := csv.NewWriter(w)
	if options.Delimiter != 0 {
		writer.Comma = options.Delimiter
	}
	writer.UseCRLF = options.UseCRLF

	return &CSVExporter{
		writer:  writer,
		options: options,
	}
}

// WriteHeader writes the CSV header row
func (e *CSVExporter) WriteHeader(columns []string) error {
	if !e.options.IncludeHeader {
		return nil
	}

	if err := e.writer.Write(columns); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	e.headerWritten = true
	return nil
}

// WriteMapRows writes rows from a slice of maps. The header is written
// first unless it already was.
func (e *CSVExporter) WriteMapRows(rows []map[string]interface{}, columns []string) error {
	if !e.headerWritten && e.options.IncludeHeader {
		if err := e.WriteHeader(columns); err != nil {
			return err
		}
	}

	for _, row := range rows {
		record := make([]string, len(columns))
		for i, col := range columns {
			val, ok := row[col]
			if !ok {
				record[i] = e.options.NullValue
			} else {
				record[i] = e.formatValue(val)
			}
		}

		if err := e.writer.Write(record); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}
	return nil
}

// Flush writes any buffered data to the underlying writer
func (e *CSVExporter) Flush() error {
	e.writer.Flush()
	return e.writer.Error()
}

func (e *CSVExporter) formatValue(val interface{}) string {
	if val == nil {
		return e.options.NullValue
	}

	switch v := val.(type) {
	case string:
		return v
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		if e.options.NumberFormat != "" {
			return fmt.Sprintf(e.options.NumberFormat, v)
		}
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		if v {
			return e.options.BoolTrueValue
		}
		return e.options.BoolFalseValue
	case time.Time:
		if v.IsZero() {
			return e.options.NullValue
		}
		// Midnight values are dates.
		if v.Hour() != 0 || v.Minute() != 0 || v.Second() != 0 {
			return v.Format(e.options.TimestampFormat)
		}
		return v.Format(e.options.DateFormat)
	case []byte:
		return string(v)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// ParseCSVOptions builds CSV options from request values. delimiter is one of
// comma, semicolon, tab or pipe; lineEnding is lf or crlf; decimals fixes
// the number of fraction digits for numbers. Empty values keep the defaults.
func ParseCSVOptions(delimiter, lineEnding, decimals string) (CSVOptions, error) {
	opts := DefaultCSVOptions()

	switch strings.ToLower(strings.TrimSpace(delimiter)) {
	case "", "comma":
	case "semicolon":
		opts.Delimiter = ';'
	case "tab":
		opts.Delimiter = '\t'
	case "pipe":
		opts.Delimiter = '|'
	default:
		return CSVOptions{}, fmt.Errorf("%w: csv delimiter %q", ErrUnsupportedFormat, delimiter)
	}

	switch strings.ToLower(strings.TrimSpace(lineEnding)) {
	case "", "lf":
	case "crlf":
		opts.UseCRLF = true
	default:
		return CSVOptions{}, fmt.Errorf("%w: csv line ending %q", ErrUnsupportedFormat, lineEnding)
	}

	if decimals = strings.TrimSpace(decimals); decimals != "" {
		n, err := strconv.Atoi(decimals)
		if err != nil || n < 0 || n > 10 {
			return CSVOptions{}, fmt.Errorf("%w: csv decimals %q", ErrUnsupportedFormat, decimals)
		}
		opts.NumberFormat = fmt.Sprintf("%%.%df", n)
	}
	return opts, nil
}

// WriteCSV renders report as CSV.
func WriteCSV(w io.Writer, report Report, options CSVOptions) error {
	exporter := NewCSVExporter(w, options)
	if err := exporter.WriteMapRows(report.Rows, Columns); err != nil {
		return err
	}
	return exporter.Flush()
}
