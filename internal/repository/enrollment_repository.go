package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/univ-erp-api/internal/models"
)

const enrollmentColumns = `id, student_id, section_id, status, final_grade, created_at`

// EnrollmentRepository handles persistence for section enrollments.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

// FindByID returns an enrollment.
func (r *EnrollmentRepository) FindByID(ctx context.Context, id int64) (*models.Enrollment, error) {
	const query = `SELECT ` + enrollmentColumns + ` FROM enrollments WHERE id = $1`
	var enrollment models.Enrollment
	if err := r.db.GetContext(ctx, &enrollment, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find enrollment: %w", err)
	}
	return &enrollment, nil
}

const existsQuery = `SELECT EXISTS(SELECT 1 FROM enrollments WHERE student_id = $1 AND section_id = $2)`

// Exists reports whether the student is enrolled in the section.
func (r *EnrollmentRepository) Exists(ctx context.Context, studentID, sectionID int64) (bool, error) {
	var exists bool
	if err := r.db.GetContext(ctx, &exists, existsQuery, studentID, sectionID); err != nil {
		return false, fmt.Errorf("check enrollment: %w", err)
	}
	return exists, nil
}

const courseTermQuery = `SELECT EXISTS(
    SELECT 1 FROM enrollments e
    JOIN sections s ON s.id = e.section_id
    WHERE e.student_id = $1 AND s.course_id = $2 AND s.semester = $3 AND s.year = $4)`

// ExistsInCourseTerm reports whether the student already holds any section of the course in the term.
func (r *EnrollmentRepository) ExistsInCourseTerm(ctx context.Context, studentID, courseID int64, semester string, year int) (bool, error) {
	var exists bool
	if err := r.db.GetContext(ctx, &exists, courseTermQuery, studentID, courseID, semester, year); err != nil {
		return false, fmt.Errorf("check course term enrollment: %w", err)
	}
	return exists, nil
}

// CreateIfAvailable inserts an enrollment only while the section has a free seat and the
// student holds neither this section nor another section of the same course in its term.
// The section row lock serialises competing registrations for the section and the
// per-student advisory lock serialises one student's registrations across sections.
func (r *EnrollmentRepository) CreateIfAvailable(ctx context.Context, studentID, sectionID int64) (enrollment *models.Enrollment, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin enrollment transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, studentID); err != nil {
		return nil, fmt.Errorf("lock student registrations: %w", err)
	}
	section, err := lockSection(ctx, tx, sectionID)
	if err != nil {
		return nil, err
	}

	var exists bool
	if err = tx.GetContext(ctx, &exists, existsQuery, studentID, sectionID); err != nil {
		return nil, fmt.Errorf("check enrollment: %w", err)
	}
	if exists {
		err = ErrDuplicate
		return nil, err
	}
	if err = tx.GetContext(ctx, &exists, courseTermQuery, studentID, section.CourseID, section.Semester, section.Year); err != nil {
		return nil, fmt.Errorf("check course term enrollment: %w", err)
	}
	if exists {
		err = ErrCourseTermConflict
		return nil, err
	}
	var enrolled int
	if err = tx.GetContext(ctx, &enrolled, countEnrollmentsQuery, sectionID); err != nil {
		return nil, fmt.Errorf("count section enrollments: %w", err)
	}
	if enrolled >= section.Capacity {
		err = ErrSectionFull
		return nil, err
	}

	const insertQuery = `INSERT INTO enrollments (student_id, section_id, status) VALUES ($1, $2, $3)
RETURNING ` + enrollmentColumns
	var created models.Enrollment
	if err = tx.GetContext(ctx, &created, insertQuery, studentID, sectionID, models.EnrollmentStatusEnrolled); err != nil {
		if isUniqueViolation(err) {
			err = ErrDuplicate
			return nil, err
		}
		return nil, fmt.Errorf("insert enrollment: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit enrollment: %w", err)
	}
	return &created, nil
}

// ListByStudent returns a student's registrations with course and section details.
func (r *EnrollmentRepository) ListByStudent(ctx context.Context, studentID int64) ([]models.RegistrationRow, error) {
	const query = `SELECT e.id AS enrollment_id, s.id AS section_id, c.code AS course_code, c.title AS course_title, c.credits,
       s.day_time, s.room, i.name AS instructor_name, s.semester, s.year, e.final_grade
FROM enrollments e
JOIN sections s ON s.id = e.section_id
JOIN courses c ON c.id = s.course_id
LEFT JOIN instructors i ON i.user_id = s.instructor_id
WHERE e.student_id = $1
ORDER BY s.year DESC, s.semester ASC, c.code ASC`
	var rows []models.RegistrationRow
	if err := r.db.SelectContext(ctx, &rows, query, studentID); err != nil {
		return nil, fmt.Errorf("list registrations: %w", err)
	}
	return rows, nil
}

// ListBySection returns the roster of a section.
func (r *EnrollmentRepository) ListBySection(ctx context.Context, sectionID int64) ([]models.RosterRow, error) {
	const query = `SELECT e.id AS enrollment_id, e.student_id, st.roll_no, e.final_grade
FROM enrollments e
JOIN students st ON st.user_id = e.student_id
WHERE e.section_id = $1
ORDER BY st.roll_no ASC`
	var rows []models.RosterRow
	if err := r.db.SelectContext(ctx, &rows, query, sectionID); err != nil {
		return nil, fmt.Errorf("list section roster: %w", err)
	}
	return rows, nil
}

// DeleteByID removes an enrollment. A missing row yields sql.ErrNoRows.
func (r *EnrollmentRepository) DeleteByID(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM enrollments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete enrollment: %w", err)
	}
	return expectAffected(res)
}

// SetFinalGrade writes the letter grade onto the enrollment.
func (r *EnrollmentRepository) SetFinalGrade(ctx context.Context, id int64, letter string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE enrollments SET final_grade = $2 WHERE id = $1`, id, letter)
	if err != nil {
		return fmt.Errorf("set final grade: %w", err)
	}
	return expectAffected(res)
}
