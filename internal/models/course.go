package models

// Course is a catalog entry. Credits range from 1 to 4.
type Course struct {
	ID      int64  `db:"id" json:"id"`
	Code    string `db:"code" json:"code"`
	Title   string `db:"title" json:"title"`
	Credits int    `db:"credits" json:"credits"`
}

// Section is a scheduled offering of a course in one term.
type Section struct {
	ID           int64  `db:"id" json:"id"`
	CourseID     int64  `db:"course_id" json:"course_id"`
	InstructorID *int64 `db:"instructor_id" json:"instructor_id,omitempty"`
	DayTime      string `db:"day_time" json:"day_time"`
	Room         string `db:"room" json:"room"`
	Capacity     int    `db:"capacity" json:"capacity"`
	Semester     string `db:"semester" json:"semester"`
	Year         int    `db:"year" json:"year"`
}

// TaughtBy reports whether accountID is the assigned instructor.
func (s *Section) TaughtBy(accountID int64) bool {
	return s != nil && s.InstructorID != nil && *s.InstructorID == accountID
}

// CatalogRow is a section joined with its course, instructor and current load.
type CatalogRow struct {
	SectionID      int64   `db:"section_id" json:"section_id"`
	CourseID       int64   `db:"course_id" json:"course_id"`
	CourseCode     string  `db:"course_code" json:"course_code"`
	CourseTitle    string  `db:"course_title" json:"course_title"`
	Credits        int     `db:"credits" json:"credits"`
	InstructorID   *int64  `db:"instructor_id" json:"instructor_id,omitempty"`
	InstructorName *string `db:"instructor_name" json:"instructor_name,omitempty"`
	DayTime        string  `db:"day_time" json:"day_time"`
	Room           string  `db:"room" json:"room"`
	Capacity       int     `db:"capacity" json:"capacity"`
	Enrolled       int     `db:"enrolled" json:"enrolled"`
	Semester       string  `db:"semester" json:"semester"`
	Year           int     `db:"year" json:"year"`
}

// SeatsLeft returns the remaining capacity, never negative.
func (r CatalogRow) SeatsLeft() int {
	if r.Enrolled >= r.Capacity {
		return 0
	}
	return r.Capacity - r.Enrolled
}

// CreateCourseRequest payload for adding a catalog course.
type CreateCourseRequest struct {
	Code    string `json:"code" validate:"required,max=32"`
	Title   string `json:"title" validate:"required,max=255"`
	Credits int    `json:"credits" validate:"min=1,max=4"`
}

// UpdateCourseRequest payload for changing a course's title and credits.
type UpdateCourseRequest struct {
	Title   string `json:"title" validate:"required,max=255"`
	Credits int    `json:"credits" validate:"min=1,max=4"`
}

// SectionRequest payload for creating or updating a section. CourseID and InstructorID
// are only read on create.
type SectionRequest struct {
	CourseID     int64  `json:"course_id" validate:"omitempty,gt=0"`
	InstructorID *int64 `json:"instructor_id,omitempty" validate:"omitempty,gt=0"`
	DayTime      string `json:"day_time" validate:"max=64"`
	Room         string `json:"room" validate:"max=64"`
	Capacity     int    `json:"capacity" validate:"gt=0"`
	Semester     string `json:"semester" validate:"required,max=32"`
	Year         int    `json:"year" validate:"required"`
}
