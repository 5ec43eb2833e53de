package models

import "time"

// EnrollmentStatus represents the lifecycle of an enrollment.
type EnrollmentStatus string

// A dropped enrollment is deleted rather than kept with a status.
const EnrollmentStatusEnrolled EnrollmentStatus = "ENROLLED"

// Enrollment ties a student to a section. FinalGrade is set by the grading workflow.
type Enrollment struct {
	ID         int64            `db:"id" json:"id"`
	StudentID  int64            `db:"student_id" json:"student_id"`
	SectionID  int64            `db:"section_id" json:"section_id"`
	Status     EnrollmentStatus `db:"status" json:"status"`
	FinalGrade *string          `db:"final_grade" json:"final_grade,omitempty"`
	CreatedAt  time.Time        `db:"created_at" json:"created_at"`
}

// RegistrationRow is a student's enrollment with section and course details.
type RegistrationRow struct {
	EnrollmentID   int64   `db:"enrollment_id" json:"enrollment_id"`
	SectionID      int64   `db:"section_id" json:"section_id"`
	CourseCode     string  `db:"course_code" json:"course_code"`
	CourseTitle    string  `db:"course_title" json:"course_title"`
	Credits        int     `db:"credits" json:"credits"`
	DayTime        string  `db:"day_time" json:"day_time"`
	Room           string  `db:"room" json:"room"`
	InstructorName *string `db:"instructor_name" json:"instructor_name,omitempty"`
	Semester       string  `db:"semester" json:"semester"`
	Year           int     `db:"year" json:"year"`
	FinalGrade     *string `db:"final_grade" json:"final_grade,omitempty"`
}

// RosterRow is an enrollment in a section with the student's roll number.
type RosterRow struct {
	EnrollmentID int64   `db:"enrollment_id" json:"enrollment_id"`
	StudentID    int64   `db:"student_id" json:"student_id"`
	RollNo       string  `db:"roll_no" json:"roll_no"`
	FinalGrade   *string `db:"final_grade" json:"final_grade,omitempty"`
}

// TimetableEntry is one weekly meeting of a registered section.
type TimetableEntry struct {
	CourseCode string `json:"course_code"`
	DayTime    string `json:"day_time"`
	Room       string `json:"room"`
}

// TranscriptEntry is one finished or in-progress course on a transcript.
type TranscriptEntry struct {
	CourseCode  string  `json:"course_code"`
	CourseTitle string  `json:"course_title"`
	Credits     int     `json:"credits"`
	Semester    string  `json:"semester"`
	Year        int     `json:"year"`
	FinalGrade  *string `json:"final_grade,omitempty"`
}

// Transcript aggregates a student's entries.
type Transcript struct {
	StudentID      int64             `json:"student_id"`
	RollNo         string            `json:"roll_no"`
	Program        string            `json:"program"`
	Entries        []TranscriptEntry `json:"entries"`
	CreditsEarned  int               `json:"credits_earned"`
	CreditsPending int               `json:"credits_pending"`
}
