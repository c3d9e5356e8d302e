package models

import "time"

// Role identifies the kind of authenticated account.
type Role string

const (
	RoleStudent Role = "student"
	RoleTeacher Role = "teacher"
	RoleAdmin   Role = "admin"
)

// Account is an authenticated identity. StudentID is set only for accounts
// of role student, and may claim a RosterEntry sharing the same business key.
type Account struct {
	AccountID string    `db:"account_id" json:"accountId"`
	Role      Role      `db:"role" json:"role"`
	StudentID string    `db:"student_id" json:"studentId,omitempty"`
	Email     string    `db:"email" json:"email"`
	FirstName string    `db:"first_name" json:"firstName"`
	LastName  string    `db:"last_name" json:"lastName"`
	Sex       string    `db:"sex" json:"sex,omitempty"`
	Course    string    `db:"course" json:"course,omitempty"`
	Year      string    `db:"year" json:"year,omitempty"`
	Section   string    `db:"section" json:"section,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// RegisteredView is the denormalized projection of a student account, keyed
// by business key for lookup without joining against accounts. It is never
// independently authored.
type RegisteredView struct {
	StudentID string    `db:"student_id" json:"studentId"`
	AccountID string    `db:"account_id" json:"accountId"`
	Email     string    `db:"email" json:"email"`
	FirstName string    `db:"first_name" json:"firstName"`
	LastName  string    `db:"last_name" json:"lastName"`
	Sex       string    `db:"sex" json:"sex,omitempty"`
	Course    string    `db:"course" json:"course,omitempty"`
	Year      string    `db:"year" json:"year,omitempty"`
	Section   string    `db:"section" json:"section,omitempty"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}
