package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/univ-erp-api/internal/models"
)

const sectionColumns = `id, course_id, instructor_id, day_time, room, capacity, semester, year`

// SectionRepository manages course sections.
type SectionRepository struct {
	db *sqlx.DB
}

// NewSectionRepository constructs the repository.
func NewSectionRepository(db *sqlx.DB) *SectionRepository {
	return &SectionRepository{db: db}
}

// FindByID fetches a section.
func (r *SectionRepository) FindByID(ctx context.Context, id int64) (*models.Section, error) {
	const query = `SELECT ` + sectionColumns + ` FROM sections WHERE id = $1`
	var section models.Section
	if err := r.db.GetContext(ctx, &section, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find section: %w", err)
	}
	return &section, nil
}

// ListByCourse returns the sections of a course, newest term first.
func (r *SectionRepository) ListByCourse(ctx context.Context, courseID int64) ([]models.Section, error) {
	const query = `SELECT ` + sectionColumns + ` FROM sections WHERE course_id = $1 ORDER BY year DESC, semester ASC, id ASC`
	var sections []models.Section
	if err := r.db.SelectContext(ctx, &sections, query, courseID); err != nil {
		return nil, fmt.Errorf("list sections by course: %w", err)
	}
	return sections, nil
}

// ListByInstructorAndTerm returns the sections an instructor teaches in a term.
func (r *SectionRepository) ListByInstructorAndTerm(ctx context.Context, instructorID int64, semester string, year int) ([]models.CatalogRow, error) {
	query := catalogQuery + ` WHERE s.instructor_id = $1 AND s.semester = $2 AND s.year = $3` + catalogGroupOrder
	var rows []models.CatalogRow
	if err := r.db.SelectContext(ctx, &rows, query, instructorID, semester, year); err != nil {
		return nil, fmt.Errorf("list sections by instructor: %w", err)
	}
	return rows, nil
}

const catalogQuery = `SELECT s.id AS section_id, c.id AS course_id, c.code AS course_code, c.title AS course_title, c.credits,
       s.instructor_id, i.name AS instructor_name, s.day_time, s.room, s.capacity,
       COUNT(e.id) AS enrolled, s.semester, s.year
FROM sections s
JOIN courses c ON c.id = s.course_id
LEFT JOIN instructors i ON i.user_id = s.instructor_id
LEFT JOIN enrollments e ON e.section_id = s.id`

const catalogGroupOrder = `
GROUP BY s.id, c.id, i.name
ORDER BY c.code ASC, s.id ASC`

// Catalog lists the sections offered in a term with their current enrollment.
func (r *SectionRepository) Catalog(ctx context.Context, semester string, year int) ([]models.CatalogRow, error) {
	query := catalogQuery + ` WHERE s.semester = $1 AND s.year = $2` + catalogGroupOrder
	var rows []models.CatalogRow
	if err := r.db.SelectContext(ctx, &rows, query, semester, year); err != nil {
		return nil, fmt.Errorf("catalog: %w", err)
	}
	return rows, nil
}

// Create inserts a section and fills its id.
func (r *SectionRepository) Create(ctx context.Context, section *models.Section) error {
	const query = `INSERT INTO sections (course_id, instructor_id, day_time, room, capacity, semester, year)
VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`
	err := r.db.QueryRowxContext(ctx, query,
		section.CourseID, section.InstructorID, section.DayTime, section.Room,
		section.Capacity, section.Semester, section.Year,
	).Scan(&section.ID)
	if err != nil {
		return fmt.Errorf("create section: %w", err)
	}
	return nil
}

// Update rewrites the schedulable attributes of a section. It refuses to shrink
// capacity below the current enrollment count, checked under a row lock.
func (r *SectionRepository) Update(ctx context.Context, section *models.Section) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin section update: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = lockSection(ctx, tx, section.ID); err != nil {
		return err
	}
	var enrolled int
	if err = tx.GetContext(ctx, &enrolled, countEnrollmentsQuery, section.ID); err != nil {
		return fmt.Errorf("count section enrollments: %w", err)
	}
	if section.Capacity < enrolled {
		err = ErrSectionFull
		return err
	}

	const query = `UPDATE sections SET day_time = $2, room = $3, capacity = $4, semester = $5, year = $6 WHERE id = $1`
	if _, err = tx.ExecContext(ctx, query, section.ID, section.DayTime, section.Room, section.Capacity, section.Semester, section.Year); err != nil {
		return fmt.Errorf("update section: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit section update: %w", err)
	}
	return nil
}

// UpdateInstructor assigns or clears (nil) the instructor of a section.
func (r *SectionRepository) UpdateInstructor(ctx context.Context, sectionID int64, instructorID *int64) error {
	const query = `UPDATE sections SET instructor_id = $2 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, sectionID, instructorID)
	if err != nil {
		return fmt.Errorf("update section instructor: %w", err)
	}
	return expectAffected(res)
}

const countEnrollmentsQuery = `SELECT COUNT(*) FROM enrollments WHERE section_id = $1`

// CountEnrollments returns the number of enrollments in a section.
func (r *SectionRepository) CountEnrollments(ctx context.Context, sectionID int64) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, countEnrollmentsQuery, sectionID); err != nil {
		return 0, fmt.Errorf("count section enrollments: %w", err)
	}
	return count, nil
}

// Delete removes a section that has no enrollments. It yields ErrHasEnrollments otherwise.
func (r *SectionRepository) Delete(ctx context.Context, sectionID int64) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin section delete: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = lockSection(ctx, tx, sectionID); err != nil {
		return err
	}
	var enrolled int
	if err = tx.GetContext(ctx, &enrolled, countEnrollmentsQuery, sectionID); err != nil {
		return fmt.Errorf("count section enrollments: %w", err)
	}
	if enrolled > 0 {
		err = ErrHasEnrollments
		return err
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM sections WHERE id = $1`, sectionID); err != nil {
		return fmt.Errorf("delete section: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit section delete: %w", err)
	}
	return nil
}

// lockSection takes a row lock on the section for the rest of the transaction.
func lockSection(ctx context.Context, tx *sqlx.Tx, sectionID int64) (*models.Section, error) {
	const query = `SELECT ` + sectionColumns + ` FROM sections WHERE id = $1 FOR UPDATE`
	var section models.Section
	if err := tx.GetContext(ctx, &section, query, sectionID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("lock section: %w", err)
	}
	return &section, nil
}
