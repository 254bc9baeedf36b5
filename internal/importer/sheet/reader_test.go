package sheet

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"pipeline-crm/internal/common/errors"
	"pipeline-crm/internal/models"
)

// ==========================
// Workbook Helpers
// ==========================

func buildWorkbook(t *testing.T, sheetName string, rows [][]interface{}) *bytes.Reader {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()

	if sheetName != "Sheet1" {
		_, err := f.NewSheet(sheetName)
		require.NoError(t, err)
		require.NoError(t, f.DeleteSheet("Sheet1"))
	}

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		r := row
		require.NoError(t, f.SetSheetRow(sheetName, cell, &r))
	}

	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))
	return bytes.NewReader(buf.Bytes())
}

func fullHeader() []interface{} {
	return []interface{}{
		models.ColumnClientName,
		models.ColumnPhoneNumber,
		models.ColumnEmail,
		models.ColumnSource,
		models.ColumnNotes,
		models.ColumnPreferredLanguage,
		models.ColumnPreferredDialect,
	}
}

// ==========================
// Reader Tests
// ==========================

func TestRead_Success(t *testing.T) {
	r := buildWorkbook(t, SheetName, [][]interface{}{
		fullHeader(),
		{"Amina Hassan", "+201090190379", "amina@example.com", "Facebook", "note", "Arabic", "Egyptian"},
		{"Omar Ali", "+971501234567"},
	})

	records, err := Read(r)
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, "Amina Hassan", records[0][models.ColumnClientName])
	assert.Equal(t, "+201090190379", records[0][models.ColumnPhoneNumber])

	// absent cells default to empty string, never missing keys
	assert.Equal(t, "", records[1][models.ColumnEmail])
	assert.Equal(t, "", records[1][models.ColumnPreferredDialect])
	for _, col := range []string{models.ColumnSource, models.ColumnNotes, models.ColumnPreferredLanguage} {
		_, ok := records[1][col]
		assert.True(t, ok, "column %q must be present", col)
	}
}

func TestRead_MissingSheet(t *testing.T) {
	r := buildWorkbook(t, "Leads", [][]interface{}{
		fullHeader(),
		{"Amina Hassan", "+201090190379"},
	})

	_, err := Read(r)
	require.Error(t, err)

	stdErr, ok := err.(*errors.StandardError)
	require.True(t, ok)
	assert.Equal(t, errors.ErrCodeFileMissingSheet, stdErr.Code)
	assert.Contains(t, stdErr.UserMessage(), "Opportunities")
}

func TestRead_HeaderOnly(t *testing.T) {
	r := buildWorkbook(t, SheetName, [][]interface{}{fullHeader()})

	_, err := Read(r)
	require.Error(t, err)

	stdErr, ok := err.(*errors.StandardError)
	require.True(t, ok)
	assert.Equal(t, errors.ErrCodeFileInsufficient, stdErr.Code)
}

func TestRead_MissingColumn(t *testing.T) {
	// header without "Preferred Dialect"
	r := buildWorkbook(t, SheetName, [][]interface{}{
		{models.ColumnClientName, models.ColumnPhoneNumber, models.ColumnEmail, models.ColumnPreferredLanguage},
		{"Amina Hassan", "+201090190379", "", "Arabic"},
	})

	_, err := Read(r)
	require.Error(t, err)

	stdErr, ok := err.(*errors.StandardError)
	require.True(t, ok)
	assert.Equal(t, errors.ErrCodeFileMissingColumns, stdErr.Code)

	missing := stdErr.Metadata["missingColumns"].([]string)
	assert.Equal(t, []string{models.ColumnPreferredDialect}, missing)
}

func TestRead_NotASpreadsheet(t *testing.T) {
	_, err := Read(bytes.NewReader([]byte("client,phone\nAmina,123\n")))
	require.Error(t, err)

	stdErr, ok := err.(*errors.StandardError)
	require.True(t, ok)
	assert.Equal(t, errors.ErrCodeFileUnreadable, stdErr.Code)
}

func TestRead_SkipsBlankRows(t *testing.T) {
	r := buildWorkbook(t, SheetName, [][]interface{}{
		fullHeader(),
		{"Amina Hassan", "+201090190379", "", "", "", "Arabic", "Egyptian"},
		{"", "", "", "", "", "", ""},
		{"Omar Ali", "+971501234567", "", "", "", "Arabic", "Gulf"},
	})

	records, err := Read(r)
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

// ==========================
// Template Tests
// ==========================

func TestWriteTemplate_RoundTrips(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteTemplate(&buf))

	records, err := Read(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	assert.Len(t, records, 2)
	assert.Equal(t, "Amina Hassan", records[0][models.ColumnClientName])
}
