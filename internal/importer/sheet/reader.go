// Package sheet parses uploaded opportunity workbooks and produces the
// downloadable template.
package sheet

import (
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"pipeline-crm/internal/common/errors"
	"pipeline-crm/internal/models"
)

// SheetName is the workbook sheet an upload must contain.
const SheetName = "Opportunities"

// Read parses an uploaded workbook into raw records, one per data row.
//
// It fails with a distinct error for each format problem: no "Opportunities"
// sheet, fewer than two rows (header + at least one data row), or missing
// required header columns. On success every record has a value (possibly
// empty string) for every header column.
func Read(r io.Reader) ([]models.RawRecord, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, errors.NewFileUnreadableError(err)
	}
	defer f.Close()

	idx, err := f.GetSheetIndex(SheetName)
	if err != nil || idx < 0 {
		return nil, errors.NewFileMissingSheetError(SheetName)
	}

	rows, err := f.GetRows(SheetName)
	if err != nil {
		return nil, errors.NewFileUnreadableError(err)
	}

	if len(rows) < 2 {
		return nil, errors.NewFileInsufficientRowsError(len(rows))
	}

	header := rows[0]
	columnIndex := make(map[string]int, len(header))
	for i, cell := range header {
		name := strings.TrimSpace(cell)
		if name == "" {
			continue
		}
		columnIndex[strings.ToLower(name)] = i
	}

	var missing []string
	for _, col := range models.RequiredColumns {
		if _, ok := columnIndex[strings.ToLower(col)]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, errors.NewFileMissingColumnsError(missing)
	}

	columns := []string{
		models.ColumnClientName,
		models.ColumnPhoneNumber,
		models.ColumnEmail,
		models.ColumnSource,
		models.ColumnNotes,
		models.ColumnPreferredLanguage,
		models.ColumnPreferredDialect,
	}

	records := make([]models.RawRecord, 0, len(rows)-1)
	for _, row := range rows[1:] {
		if isEmptyRow(row) {
			continue
		}

		rec := models.RawRecord{}
		for _, col := range columns {
			idx, ok := columnIndex[strings.ToLower(col)]
			if !ok || idx >= len(row) {
				rec[col] = ""
				continue
			}
			rec[col] = row[idx]
		}
		records = append(records, rec)
	}

	if len(records) == 0 {
		return nil, errors.NewFileInsufficientRowsError(len(rows))
	}

	return records, nil
}

func isEmptyRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
