package dto

// AssignInstructorRequest names the instructor account to put on a section.
type AssignInstructorRequest struct {
	InstructorID int64 `json:"instructor_id" binding:"required,gt=0"`
}
