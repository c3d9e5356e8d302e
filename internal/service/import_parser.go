package service

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/scc-edu/registry-sync/internal/models"
	appErrors "github.com/scc-edu/registry-sync/pkg/errors"
)

// Canonical column names recognised by the import pipeline.
const (
	columnStudentID = "studentId"
	columnFirstName = "firstName"
	columnLastName  = "lastName"
	columnEmail     = "email"
	columnSex       = "sex"
	columnCourse    = "course"
	columnYear      = "year"
	columnSection   = "section"
)

// ReadCSV decodes a delimited text file into raw rows.
func ReadCSV(r io.Reader) ([][]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrMalformedInput.Code, appErrors.ErrMalformedInput.Status, "parse csv")
	}
	return rows, nil
}

// ReadXLSX decodes the first sheet of a spreadsheet into raw rows.
func ReadXLSX(r io.Reader) ([][]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrMalformedInput.Code, appErrors.ErrMalformedInput.Status, "open spreadsheet")
	}
	defer f.Close() //nolint:errcheck

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, appErrors.Clone(appErrors.ErrMalformedInput, "spreadsheet has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrMalformedInput.Code, appErrors.ErrMalformedInput.Status, "read sheet rows")
	}
	return rows, nil
}

// ParseTable maps raw rows into import rows. The first row is the header;
// header text maps to canonical fields by fuzzy, case-insensitive keyword
// match, and unmatched columns are ignored. The only fatal condition is an
// input with fewer than two rows.
func ParseTable(raw [][]string) ([]models.ImportRow, error) {
	if len(raw) < 2 {
		return nil, appErrors.Clone(appErrors.ErrMalformedInput, "import needs a header row and at least one data row")
	}

	columns := make(map[int]string)
	for i, header := range raw[0] {
		if field := matchHeader(header); field != "" {
			columns[i] = field
		}
	}

	rows := make([]models.ImportRow, 0, len(raw)-1)
	for i, cells := range raw[1:] {
		if emptyRow(cells) {
			continue
		}
		row := models.ImportRow{Line: i + 2}
		for col, cell := range cells {
			field, ok := columns[col]
			if !ok {
				continue
			}
			value := strings.TrimSpace(cell)
			switch field {
			case columnStudentID:
				row.StudentID = value
			case columnFirstName:
				row.FirstName = value
			case columnLastName:
				row.LastName = value
			case columnEmail:
				row.Email = value
			case columnSex:
				row.Sex = value
			case columnCourse:
				row.Course = value
			case columnYear:
				row.Year = value
			case columnSection:
				row.Section = value
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// matchHeader resolves arbitrary header text to a canonical field name.
// Any header containing both "student" and "id" maps to the business key,
// "first"+"name" to the first name, and so on.
func matchHeader(header string) string {
	n := normalizeHeader(header)
	switch {
	case strings.Contains(n, "student") && strings.Contains(n, "id"):
		return columnStudentID
	case strings.Contains(n, "first") && strings.Contains(n, "name"):
		return columnFirstName
	case strings.Contains(n, "last") && strings.Contains(n, "name"),
		strings.Contains(n, "surname"):
		return columnLastName
	case strings.Contains(n, "mail"):
		return columnEmail
	case strings.Contains(n, "sex"), strings.Contains(n, "gender"):
		return columnSex
	case strings.Contains(n, "course"), strings.Contains(n, "program"):
		return columnCourse
	case strings.Contains(n, "year"), strings.Contains(n, "level"):
		return columnYear
	case strings.Contains(n, "section"):
		return columnSection
	default:
		return ""
	}
}

func normalizeHeader(header string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(header) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func emptyRow(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// SuggestFileReader picks a reader by file name extension.
func SuggestFileReader(filename string) (func(io.Reader) ([][]string, error), error) {
	switch {
	case strings.HasSuffix(strings.ToLower(filename), ".csv"),
		strings.HasSuffix(strings.ToLower(filename), ".txt"):
		return ReadCSV, nil
	case strings.HasSuffix(strings.ToLower(filename), ".xlsx"):
		return ReadXLSX, nil
	default:
		return nil, appErrors.Clone(appErrors.ErrMalformedInput, fmt.Sprintf("unsupported import file type: %s", filename))
	}
}
