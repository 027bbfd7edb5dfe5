package core

// templates.go generates the downloadable import template. The header row is
// the human labels of TargetSchema, so a filled-in template auto-maps back to
// every target field. The body is fixed sample data.

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

// TemplateFormat selects the template file type.
type TemplateFormat string

const (
	TemplateCSV  TemplateFormat = "csv"
	TemplateXLSX TemplateFormat = "xlsx"
)

const templateSheet = "Articles"

// templateSamples are in TargetSchema order.
var templateSamples = [][]string{
	{"Glassware Set", "Set of 6 wine glasses", "450.00", "7013", "18", "box", "1", "Yes", "Yes", "Wrap in bubble wrap"},
	{"Cotton T-Shirt", "Plain white, size M", "199", "6109", "5", "piece", "10", "No", "No", ""},
	{"Steel Pipe 2m", "Galvanized, 40mm", "1200.50", "7306", "18", "piece", "5", "No", "Yes", "Long item, load last"},
}

// TemplateHeaders returns the header row of the import template.
func TemplateHeaders() []string {
	headers := make([]string, len(TargetSchema))
	for i, f := range TargetSchema {
		headers[i] = f.Label
	}
	return headers
}

// TemplateFileName returns the download file name for format.
func TemplateFileName(format TemplateFormat) string {
	return "article_import_template." + string(format)
}

// WriteTemplate writes the import template in the requested format.
func WriteTemplate(w io.Writer, format TemplateFormat) error {
	switch format {
	case TemplateCSV, "":
		return writeTemplateCSV(w)
	case TemplateXLSX:
		return writeTemplateXLSX(w)
	default:
		return fmt.Errorf("unsupported file format %q", format)
	}
}

func writeTemplateCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(TemplateHeaders()); err != nil {
		return fmt.Errorf("write template header: %w", err)
	}
	if err := cw.WriteAll(templateSamples); err != nil {
		return fmt.Errorf("write template rows: %w", err)
	}
	return nil
}

func writeTemplateXLSX(w io.Writer) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), templateSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	rows := append([][]string{TemplateHeaders()}, templateSamples...)
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		values := make([]any, len(row))
		for j, v := range row {
			values[j] = v
		}
		if err := f.SetSheetRow(templateSheet, cell, &values); err != nil {
			return fmt.Errorf("write template row %d: %w", i+1, err)
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}
