package models

// Student defines the student model based on the 'students' table. SchoolID
// and ClassID are copied onto every attendance entry for scoped queries.
type Student struct {
	ID       int64  `json:"id" db:"id"`
	SchoolID int64  `json:"schoolId" db:"school_id"`
	ClassID  int64  `json:"classId" db:"class_id"`
	Code     string `json:"code" db:"code"` // school-issued student number
	Name     string `json:"name" db:"name"`
	Active   bool   `json:"active" db:"active"`
}
