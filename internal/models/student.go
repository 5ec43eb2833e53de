package models

// StudentProfile is the academic-store profile owned by a student account.
type StudentProfile struct {
	UserID  int64  `db:"user_id" json:"user_id"`
	RollNo  string `db:"roll_no" json:"roll_no"`
	Program string `db:"program" json:"program"`
	Year    int    `db:"year" json:"year"`
}
