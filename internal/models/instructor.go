package models

// InstructorProfile is the academic-store profile owned by an instructor account.
type InstructorProfile struct {
	UserID     int64  `db:"user_id" json:"user_id"`
	Name       string `db:"name" json:"name"`
	Department string `db:"department" json:"department"`
}
