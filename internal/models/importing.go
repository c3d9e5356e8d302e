package models

// ImportOutcome classifies the result of a single import row.
type ImportOutcome string

const (
	ImportAccepted         ImportOutcome = "accepted"
	ImportSkippedDuplicate ImportOutcome = "skipped-duplicate"
	ImportFailed           ImportOutcome = "failed"
)

// ImportRow is one parsed candidate roster entry from a bulk import file.
type ImportRow struct {
	Line      int    `json:"line"`
	StudentID string `json:"studentId" validate:"required"`
	FirstName string `json:"firstName" validate:"required"`
	LastName  string `json:"lastName" validate:"required"`
	Email     string `json:"email,omitempty" validate:"omitempty,email"`
	Sex       string `json:"sex,omitempty"`
	Course    string `json:"course,omitempty"`
	Year      string `json:"year,omitempty"`
	Section   string `json:"section,omitempty"`
}

// ImportRowResult records the per-row outcome for the report.
type ImportRowResult struct {
	Line      int           `json:"line"`
	StudentID string        `json:"studentId,omitempty"`
	Outcome   ImportOutcome `json:"outcome"`
	Reason    string        `json:"reason,omitempty"`
}

// ImportReport is the per-run accounting of a bulk import. No individual
// row failure aborts the batch.
type ImportReport struct {
	Accepted         int               `json:"accepted"`
	SkippedDuplicate int               `json:"skippedDuplicate"`
	Failed           int               `json:"failed"`
	Rows             []ImportRowResult `json:"rows"`
}
