package service

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/scc-edu/registry-sync/pkg/errors"
)

func TestParseTableFuzzyHeaderMatch(t *testing.T) {
	raw := [][]string{
		{"Student ID No.", "FIRST NAME", "Last_Name", "E-mail Address", "Gender", "Program", "Year Level", "Section"},
		{"SCC-22-00000001", "Juan", "Dela Cruz", "juan@example.com", "M", "BSIT", "2", "A"},
	}

	rows, err := ParseTable(raw)
	require.NoError(t, err)
	require.Len(t, rows, 1)

	row := rows[0]
	assert.Equal(t, 2, row.Line)
	assert.Equal(t, "SCC-22-00000001", row.StudentID)
	assert.Equal(t, "Juan", row.FirstName)
	assert.Equal(t, "Dela Cruz", row.LastName)
	assert.Equal(t, "juan@example.com", row.Email)
	assert.Equal(t, "M", row.Sex)
	assert.Equal(t, "BSIT", row.Course)
	assert.Equal(t, "2", row.Year)
	assert.Equal(t, "A", row.Section)
}

func TestParseTableSurnameHeader(t *testing.T) {
	raw := [][]string{
		{"student id", "given name", "Surname"},
		{"SCC-22-00000001", "Juan", "Dela Cruz"},
	}

	rows, err := ParseTable(raw)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	// "given name" matches no canonical field and is ignored.
	assert.Empty(t, rows[0].FirstName)
	assert.Equal(t, "Dela Cruz", rows[0].LastName)
}

func TestParseTableIgnoresUnknownColumnsAndBlankRows(t *testing.T) {
	raw := [][]string{
		{"Student ID", "First Name", "Last Name", "Remarks"},
		{"SCC-22-00000001", "Juan", "Dela Cruz", "transferee"},
		{"", "  ", "", ""},
		{"SCC-22-00000002", "Maria", "Santos", ""},
	}

	rows, err := ParseTable(raw)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, 2, rows[0].Line)
	// Line numbers track the source file, including the skipped blank row.
	assert.Equal(t, 4, rows[1].Line)
}

func TestParseTableTooShortIsFatal(t *testing.T) {
	_, err := ParseTable([][]string{{"Student ID", "First Name"}})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrMalformedInput.Code, appErrors.FromError(err).Code)

	_, err = ParseTable(nil)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrMalformedInput.Code, appErrors.FromError(err).Code)
}

func TestParseTableRaggedRows(t *testing.T) {
	raw := [][]string{
		{"Student ID", "First Name", "Last Name", "Email"},
		{"SCC-22-00000001", "Juan"},
	}

	rows, err := ParseTable(raw)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Juan", rows[0].FirstName)
	assert.Empty(t, rows[0].LastName)
}

func TestReadCSV(t *testing.T) {
	input := "Student ID,First Name,Last Name\nSCC-22-00000001, Juan ,Dela Cruz\n"
	raw, err := ReadCSV(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, raw, 2)

	rows, err := ParseTable(raw)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Juan", rows[0].FirstName)
}

func TestSuggestFileReader(t *testing.T) {
	for _, name := range []string{"roster.csv", "ROSTER.CSV", "notes.txt", "roster.xlsx"} {
		reader, err := SuggestFileReader(name)
		require.NoError(t, err, name)
		require.NotNil(t, reader, name)
	}

	_, err := SuggestFileReader("roster.pdf")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrMalformedInput.Code, appErrors.FromError(err).Code)
}

func TestMatchHeaderVariants(t *testing.T) {
	cases := map[string]string{
		"student_id":     columnStudentID,
		"StudentID":      columnStudentID,
		"ID Number":      "",
		"firstname":      columnFirstName,
		"Email":          columnEmail,
		"e-mail":         columnEmail,
		"Sex":            columnSex,
		"gender":         columnSex,
		"Course/Program": columnCourse,
		"Yr. Level":      columnYear,
	}
	for header, want := range cases {
		assert.Equal(t, want, matchHeader(header), header)
	}
}
