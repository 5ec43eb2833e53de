package models

// Reserved component names required to finalize a grade.
const (
	ComponentQuiz    = "Quiz"
	ComponentMidterm = "Midterm"
	ComponentEndSem  = "EndSem"
)

// ReservedComponents lists the components summed into the final grade.
var ReservedComponents = []string{ComponentQuiz, ComponentMidterm, ComponentEndSem}

// Letter grades written onto an enrollment.
const (
	LetterAPlus      = "A+"
	LetterA          = "A"
	LetterB          = "B"
	LetterC          = "C"
	LetterD          = "D"
	LetterF          = "F"
	LetterIncomplete = "I"
)

// Grade is a single component score for an enrollment. Score is nil when not yet entered.
type Grade struct {
	ID           int64    `db:"id" json:"id"`
	EnrollmentID int64    `db:"enrollment_id" json:"enrollment_id"`
	Component    string   `db:"component" json:"component"`
	Score        *float64 `db:"score" json:"score,omitempty"`
}

// ScoreEntry is the payload for entering or clearing one component score.
type ScoreEntry struct {
	EnrollmentID int64    `json:"enrollment_id" validate:"required,gt=0"`
	Component    string   `json:"component" validate:"required,max=64"`
	Score        *float64 `json:"score"`
}

// GradeBoundaries are the A+, A, B, C and D cut-offs in strictly descending order.
type GradeBoundaries []float64

// GradebookRow is one enrollment's component scores within a section.
type GradebookRow struct {
	EnrollmentID int64               `json:"enrollment_id"`
	StudentID    int64               `json:"student_id"`
	RollNo       string              `json:"roll_no"`
	Scores       map[string]*float64 `json:"scores"`
	FinalGrade   *string             `json:"final_grade,omitempty"`
}

// ComponentAverage summarises one component across a section.
type ComponentAverage struct {
	Component string  `json:"component"`
	Average   float64 `json:"average"`
	Count     int     `json:"count"`
}

// SectionStatistics holds per-component averages for a section.
type SectionStatistics struct {
	SectionID  int64              `json:"section_id"`
	Enrolled   int                `json:"enrolled"`
	Components []ComponentAverage `json:"components"`
}

// RowFailure explains why a single enrollment could not be finalized.
type RowFailure struct {
	EnrollmentID int64  `json:"enrollment_id"`
	Reason       string `json:"reason"`
}

// FinalGradeSummary is the aggregate outcome of a final grade batch.
type FinalGradeSummary struct {
	SectionID       int64        `json:"section_id"`
	SuccessCount    int          `json:"success_count"`
	IncompleteCount int          `json:"incomplete_count"`
	FailCount       int          `json:"fail_count"`
	Failures        []RowFailure `json:"failures,omitempty"`
}

// StudentGrade is a component score as shown to the student.
type StudentGrade struct {
	EnrollmentID int64    `db:"enrollment_id" json:"enrollment_id"`
	CourseCode   string   `db:"course_code" json:"course_code"`
	Component    string   `db:"component" json:"component,omitempty"`
	Score        *float64 `db:"score" json:"score,omitempty"`
	FinalGrade   *string  `db:"final_grade" json:"final_grade,omitempty"`
}
