package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/univ-erp-api/internal/models"
)

// GradeRepository stores component scores per enrollment.
type GradeRepository struct {
	db *sqlx.DB
}

// NewGradeRepository constructs the repository.
func NewGradeRepository(db *sqlx.DB) *GradeRepository {
	return &GradeRepository{db: db}
}

// ListByEnrollment returns every component recorded for an enrollment.
func (r *GradeRepository) ListByEnrollment(ctx context.Context, enrollmentID int64) ([]models.Grade, error) {
	const query = `SELECT id, enrollment_id, component, score FROM grades WHERE enrollment_id = $1 ORDER BY component ASC`
	var grades []models.Grade
	if err := r.db.SelectContext(ctx, &grades, query, enrollmentID); err != nil {
		return nil, fmt.Errorf("list grades: %w", err)
	}
	return grades, nil
}

// ListBySection returns every component recorded for any enrollment in a section.
func (r *GradeRepository) ListBySection(ctx context.Context, sectionID int64) ([]models.Grade, error) {
	const query = `SELECT g.id, g.enrollment_id, g.component, g.score
FROM grades g
JOIN enrollments e ON e.id = g.enrollment_id
WHERE e.section_id = $1
ORDER BY g.enrollment_id ASC, g.component ASC`
	var grades []models.Grade
	if err := r.db.SelectContext(ctx, &grades, query, sectionID); err != nil {
		return nil, fmt.Errorf("list section grades: %w", err)
	}
	return grades, nil
}

// ListByStudent returns a student's component scores across all enrollments. An enrollment
// with a final grade but no component rows is returned once with an empty component.
func (r *GradeRepository) ListByStudent(ctx context.Context, studentID int64) ([]models.StudentGrade, error) {
	const query = `SELECT e.id AS enrollment_id, c.code AS course_code, COALESCE(g.component, '') AS component, g.score, e.final_grade
FROM enrollments e
JOIN sections s ON s.id = e.section_id
JOIN courses c ON c.id = s.course_id
LEFT JOIN grades g ON g.enrollment_id = e.id
WHERE e.student_id = $1 AND (g.id IS NOT NULL OR e.final_grade IS NOT NULL)
ORDER BY c.code ASC, g.component ASC NULLS FIRST`
	var grades []models.StudentGrade
	if err := r.db.SelectContext(ctx, &grades, query, studentID); err != nil {
		return nil, fmt.Errorf("list student grades: %w", err)
	}
	return grades, nil
}

// FindByEnrollmentAndComponent fetches one component score.
func (r *GradeRepository) FindByEnrollmentAndComponent(ctx context.Context, enrollmentID int64, component string) (*models.Grade, error) {
	const query = `SELECT id, enrollment_id, component, score FROM grades WHERE enrollment_id = $1 AND component = $2`
	var grade models.Grade
	if err := r.db.GetContext(ctx, &grade, query, enrollmentID, component); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find grade: %w", err)
	}
	return &grade, nil
}

// UpsertScore writes a component score in one statement so concurrent writers never
// produce duplicate rows. Last write wins.
func (r *GradeRepository) UpsertScore(ctx context.Context, enrollmentID int64, component string, score *float64) (*models.Grade, error) {
	const query = `INSERT INTO grades (enrollment_id, component, score) VALUES ($1, $2, $3)
ON CONFLICT (enrollment_id, component) DO UPDATE SET score = EXCLUDED.score
RETURNING id, enrollment_id, component, score`
	var grade models.Grade
	if err := r.db.GetContext(ctx, &grade, query, enrollmentID, component, score); err != nil {
		return nil, fmt.Errorf("upsert grade: %w", err)
	}
	return &grade, nil
}

// DeleteByEnrollment removes every component of an enrollment and reports how many rows went.
func (r *GradeRepository) DeleteByEnrollment(ctx context.Context, enrollmentID int64) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM grades WHERE enrollment_id = $1`, enrollmentID)
	if err != nil {
		return 0, fmt.Errorf("delete grades: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}
