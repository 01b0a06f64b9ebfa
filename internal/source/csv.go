package source

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
)

// csvBatchSize is the number of data rows per table section.
const csvBatchSize = 20

// CSVConverter renders CSV as GFM tables, one section per batch of rows.
type CSVConverter struct{}

func (c *CSVConverter) Convert(r io.Reader, filename string) (string, error) {
	reader := csv.NewReader(r)
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return "", fmt.Errorf("parse csv: %w", err)
	}

	var b strings.Builder
	writeHeading(&b, 1, titleFromFilename(filename))
	if len(records) == 0 {
		return b.String(), nil
	}

	headers := records[0]
	dataRows := records[1:]
	if len(dataRows) <= csvBatchSize {
		writeTable(&b, headers, dataRows)
		return b.String(), nil
	}

	for i := 0; i < len(dataRows); i += csvBatchSize {
		end := min(i+csvBatchSize, len(dataRows))
		// Row numbers are 1-indexed and skip the header.
		writeHeading(&b, 2, fmt.Sprintf("Rows %d-%d", i+2, end+1))
		writeTable(&b, headers, dataRows[i:end])
	}
	return b.String(), nil
}

func writeTable(b *strings.Builder, headers []string, rows [][]string) {
	if b.Len() > 0 {
		b.WriteString("\n")
	}
	writeRow(b, headers, len(headers))
	b.WriteString("|")
	for range headers {
		b.WriteString(" --- |")
	}
	b.WriteString("\n")
	for _, row := range rows {
		writeRow(b, row, len(headers))
	}
}

// writeRow pads or truncates row to width cells.
func writeRow(b *strings.Builder, row []string, width int) {
	b.WriteString("|")
	for i := range width {
		cell := ""
		if i < len(row) {
			cell = row[i]
		}
		cell = strings.ReplaceAll(strings.Join(strings.Fields(cell), " "), "|", `\|`)
		b.WriteString(" " + cell + " |")
	}
	b.WriteString("\n")
}
