// Package validate turns raw spreadsheet rows into typed, validated records.
//
// Validation is a pure, total function: malformed input never panics or
// returns an error, it produces a record carrying the full error list. All
// rules are evaluated; failures are collected, not short-circuited, so one
// record can carry several error messages at once.
package validate

import (
	"regexp"
	"strings"

	"pipeline-crm/internal/models"
)

var (
	// Phone is matched after stripping spaces, dashes and parentheses.
	phonePattern = regexp.MustCompile(`^[+]?[0-9]{7,15}$`)
	emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

	phoneStripper = strings.NewReplacer(" ", "", "-", "", "(", "", ")", "")
)

// Record validates one raw row. Every string field is trimmed before
// validation and before storage. The returned record satisfies
// IsValid == (len(Errors) == 0).
func Record(row models.RawRecord) models.ValidatedRecord {
	rec := models.ValidatedRecord{
		ClientName:        strings.TrimSpace(row[models.ColumnClientName]),
		Phone:             strings.TrimSpace(row[models.ColumnPhoneNumber]),
		Email:             strings.TrimSpace(row[models.ColumnEmail]),
		Source:            strings.TrimSpace(row[models.ColumnSource]),
		Notes:             strings.TrimSpace(row[models.ColumnNotes]),
		PreferredLanguage: strings.TrimSpace(row[models.ColumnPreferredLanguage]),
		PreferredDialect:  strings.TrimSpace(row[models.ColumnPreferredDialect]),
		Errors:            []string{},
	}

	if rec.ClientName == "" {
		rec.Errors = append(rec.Errors, "Client Name is required")
	}

	if rec.Phone == "" {
		rec.Errors = append(rec.Errors, "Phone Number is required")
	} else if !phonePattern.MatchString(NormalizePhone(rec.Phone)) {
		rec.Errors = append(rec.Errors, "Phone Number must be 7-15 digits, optionally prefixed with +")
	}

	if rec.Email != "" && !emailPattern.MatchString(rec.Email) {
		rec.Errors = append(rec.Errors, "Email address is not valid")
	}

	if rec.PreferredLanguage == "" {
		rec.Errors = append(rec.Errors, "Preferred Language is required")
	}

	if rec.PreferredDialect == "" {
		rec.Errors = append(rec.Errors, "Preferred Dialect is required")
	}

	rec.IsValid = len(rec.Errors) == 0
	return rec
}

// Records validates every row in input order.
func Records(rows []models.RawRecord) []models.ValidatedRecord {
	out := make([]models.ValidatedRecord, 0, len(rows))
	for _, row := range rows {
		out = append(out, Record(row))
	}
	return out
}

// NormalizePhone strips spaces, dashes and parentheses from a phone string.
func NormalizePhone(phone string) string {
	return phoneStripper.Replace(phone)
}

// Partition splits validated records into valid and invalid slices,
// preserving input order.
func Partition(records []models.ValidatedRecord) (valid, invalid []models.ValidatedRecord) {
	for _, rec := range records {
		if rec.IsValid {
			valid = append(valid, rec)
		} else {
			invalid = append(invalid, rec)
		}
	}
	return valid, invalid
}
