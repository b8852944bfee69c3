package extract

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

// xlsxBackend handles spreadsheet documents (lab data tables show up as
// xlsx in some site files). Each sheet becomes a pipe-delimited block
// headed by the sheet name.
type xlsxBackend struct{}

func (b *xlsxBackend) Name() string { return "xlsx" }

func (b *xlsxBackend) Supports(contentType, url string, data []byte) bool {
	lowerURL := strings.ToLower(url)
	if strings.HasSuffix(lowerURL, ".xlsx") || strings.HasSuffix(lowerURL, ".xls") {
		return true
	}
	ct := strings.ToLower(contentType)
	if strings.Contains(ct, "spreadsheet") || strings.Contains(ct, "excel") {
		// xlsx is a zip container.
		return bytes.HasPrefix(data, []byte("PK"))
	}
	return false
}

func (b *xlsxBackend) Extract(ctx context.Context, data []byte) (string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("opening spreadsheet: %w", err)
	}
	defer f.Close()

	var out strings.Builder
	for _, sheet := range f.GetSheetList() {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}

		rows, err := f.GetRows(sheet)
		if err != nil || len(rows) == 0 {
			continue
		}

		out.WriteString(sheet + "\n")
		for _, row := range rows {
			out.WriteString("| " + strings.Join(row, " | ") + " |\n")
		}
		out.WriteString("\n")
	}

	return strings.TrimSpace(out.String()), nil
}
