package repository

import (
	"errors"

	"github.com/lib/pq"
)

// Sentinel errors surfaced by the academic and credential stores. Callers map them to
// policy failures.
var (
	ErrDuplicate          = errors.New("duplicate key")
	ErrSectionFull        = errors.New("section full")
	ErrCourseTermConflict = errors.New("course already taken in term")
	ErrHasEnrollments     = errors.New("section has enrollments")
)

const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}
