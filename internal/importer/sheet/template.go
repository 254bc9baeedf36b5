package sheet

import (
	"io"

	"github.com/xuri/excelize/v2"

	"pipeline-crm/internal/models"
)

// TemplateFilename is the download name offered for the template workbook.
const TemplateFilename = "opportunities_import_template.xlsx"

var templateHeader = []interface{}{
	models.ColumnClientName,
	models.ColumnPhoneNumber,
	models.ColumnEmail,
	models.ColumnSource,
	models.ColumnNotes,
	models.ColumnPreferredLanguage,
	models.ColumnPreferredDialect,
}

var templateExamples = [][]interface{}{
	{"Amina Hassan", "+201090190379", "amina@example.com", "Facebook", "Asked about pricing", "Arabic", "Egyptian"},
	{"Omar Ali", "+971501234567", "", "Referral", "", "Arabic", "Gulf"},
}

// WriteTemplate writes the downloadable import template, with example rows,
// to w.
func WriteTemplate(w io.Writer) error {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(SheetName)
	if err != nil {
		return err
	}
	f.SetActiveSheet(index)

	// excelize creates a default "Sheet1"; drop it so the workbook only
	// carries the sheet the reader requires.
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return err
	}

	if err := f.SetSheetRow(SheetName, "A1", &templateHeader); err != nil {
		return err
	}

	for i, row := range templateExamples {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		r := row
		if err := f.SetSheetRow(SheetName, cell, &r); err != nil {
			return err
		}
	}

	return f.Write(w)
}
