package models

import (
	"regexp"
	"time"
)

// StudentIDPattern is the business-key format: a three-letter school prefix,
// a two-digit year and an eight-digit serial, e.g. SCC-22-00000001.
var StudentIDPattern = regexp.MustCompile(`^[A-Za-z]{3}-\d{2}-\d{8}$`)

// ValidStudentID reports whether raw matches the business-key format.
// Rows failing the pattern are rejected, never coerced.
func ValidStudentID(raw string) bool {
	return StudentIDPattern.MatchString(raw)
}

// RosterEntry is a student record created directly by staff, before any
// authenticated account has claimed it.
type RosterEntry struct {
	InternalID   string    `db:"internal_id" json:"internalId"`
	StudentID    string    `db:"student_id" json:"studentId"`
	FirstName    string    `db:"first_name" json:"firstName"`
	LastName     string    `db:"last_name" json:"lastName"`
	Email        string    `db:"email" json:"email,omitempty"`
	Sex          string    `db:"sex" json:"sex,omitempty"`
	Course       string    `db:"course" json:"course,omitempty"`
	Year         string    `db:"year" json:"year,omitempty"`
	Section      string    `db:"section" json:"section,omitempty"`
	IsRegistered bool      `db:"is_registered" json:"isRegistered"`
	CreatedAt    time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time `db:"updated_at" json:"updatedAt"`
}
