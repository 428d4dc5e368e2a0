package models

// Period is one class session in a school's daily schedule. Position is the
// natural ordering used when listing period-scoped entries.
type Period struct {
	ID       int64  `json:"id" db:"id"`
	SchoolID int64  `json:"schoolId" db:"school_id"`
	Name     string `json:"name" db:"name"`
	Position int    `json:"position" db:"position"`
	StartsAt string `json:"startsAt" db:"starts_at"` // HH:MM
	EndsAt   string `json:"endsAt" db:"ends_at"`     // HH:MM
}
