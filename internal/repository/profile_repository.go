package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/univ-erp-api/internal/models"
)

// ProfileRepository stores student and instructor profiles in the academic store.
type ProfileRepository struct {
	db *sqlx.DB
}

// NewProfileRepository constructs the repository.
func NewProfileRepository(db *sqlx.DB) *ProfileRepository {
	return &ProfileRepository{db: db}
}

// CreateStudent inserts a student profile. A taken roll number yields ErrDuplicate.
func (r *ProfileRepository) CreateStudent(ctx context.Context, profile *models.StudentProfile) error {
	const query = `INSERT INTO students (user_id, roll_no, program, year) VALUES ($1, $2, $3, $4)`
	if _, err := r.db.ExecContext(ctx, query, profile.UserID, profile.RollNo, profile.Program, profile.Year); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("create student profile: %w", err)
	}
	return nil
}

// CreateInstructor inserts an instructor profile.
func (r *ProfileRepository) CreateInstructor(ctx context.Context, profile *models.InstructorProfile) error {
	const query = `INSERT INTO instructors (user_id, name, department) VALUES ($1, $2, $3)`
	if _, err := r.db.ExecContext(ctx, query, profile.UserID, profile.Name, profile.Department); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("create instructor profile: %w", err)
	}
	return nil
}

// FindStudentByUserID fetches a student profile.
func (r *ProfileRepository) FindStudentByUserID(ctx context.Context, userID int64) (*models.StudentProfile, error) {
	const query = `SELECT user_id, roll_no, program, year FROM students WHERE user_id = $1`
	var profile models.StudentProfile
	if err := r.db.GetContext(ctx, &profile, query, userID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find student profile: %w", err)
	}
	return &profile, nil
}

// FindInstructorByUserID fetches an instructor profile.
func (r *ProfileRepository) FindInstructorByUserID(ctx context.Context, userID int64) (*models.InstructorProfile, error) {
	const query = `SELECT user_id, name, department FROM instructors WHERE user_id = $1`
	var profile models.InstructorProfile
	if err := r.db.GetContext(ctx, &profile, query, userID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find instructor profile: %w", err)
	}
	return &profile, nil
}

// ListInstructors returns every instructor ordered by name.
func (r *ProfileRepository) ListInstructors(ctx context.Context) ([]models.InstructorProfile, error) {
	const query = `SELECT user_id, name, department FROM instructors ORDER BY name ASC`
	var profiles []models.InstructorProfile
	if err := r.db.SelectContext(ctx, &profiles, query); err != nil {
		return nil, fmt.Errorf("list instructors: %w", err)
	}
	return profiles, nil
}
