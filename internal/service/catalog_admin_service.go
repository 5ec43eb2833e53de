package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/univ-erp-api/internal/models"
	"github.com/noah-isme/univ-erp-api/internal/repository"
	"github.com/noah-isme/univ-erp-api/pkg/config"
	appErrors "github.com/noah-isme/univ-erp-api/pkg/errors"
)

type courseStore interface {
	List(ctx context.Context) ([]models.Course, error)
	FindByID(ctx context.Context, id int64) (*models.Course, error)
	Create(ctx context.Context, course *models.Course) error
	Update(ctx context.Context, course *models.Course) error
}

type sectionStore interface {
	FindByID(ctx context.Context, id int64) (*models.Section, error)
	ListByCourse(ctx context.Context, courseID int64) ([]models.Section, error)
	Create(ctx context.Context, section *models.Section) error
	Update(ctx context.Context, section *models.Section) error
	UpdateInstructor(ctx context.Context, sectionID int64, instructorID *int64) error
	Delete(ctx context.Context, sectionID int64) error
}

type instructorDirectory interface {
	FindInstructorByUserID(ctx context.Context, userID int64) (*models.InstructorProfile, error)
	ListInstructors(ctx context.Context) ([]models.InstructorProfile, error)
}

// CatalogAdminService lets administrators maintain courses and sections.
type CatalogAdminService struct {
	courses     courseStore
	sections    sectionStore
	instructors instructorDirectory
	gate        writeGate
	academic    config.AcademicConfig
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewCatalogAdminService constructs the service.
func NewCatalogAdminService(courses courseStore, sections sectionStore, instructors instructorDirectory, gate writeGate, academic config.AcademicConfig, validate *validator.Validate, logger *zap.Logger) *CatalogAdminService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CatalogAdminService{
		courses:     courses,
		sections:    sections,
		instructors: instructors,
		gate:        gate,
		academic:    academic,
		validator:   validate,
		logger:      logger,
	}
}

// ListCourses returns every course ordered by code.
func (s *CatalogAdminService) ListCourses(ctx context.Context, actor models.Actor) ([]models.Course, error) {
	if err := requireRole(actor, models.RoleAdmin); err != nil {
		return nil, err
	}
	courses, err := s.courses.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list courses")
	}
	return courses, nil
}

// CreateCourse adds a course. Codes are unique.
func (s *CatalogAdminService) CreateCourse(ctx context.Context, actor models.Actor, req models.CreateCourseRequest) (*models.Course, error) {
	if err := s.requireAdminWritable(ctx, actor); err != nil {
		return nil, err
	}
	req.Code = strings.TrimSpace(req.Code)
	req.Title = strings.TrimSpace(req.Title)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid course payload")
	}

	course := &models.Course{Code: req.Code, Title: req.Title, Credits: req.Credits}
	if err := s.courses.Create(ctx, course); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, appErrors.Clone(appErrors.ErrDuplicateCourse, "course code "+req.Code+" already exists")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create course")
	}
	s.logger.Info("course created", zap.Int64("course_id", course.ID), zap.String("code", course.Code))
	return course, nil
}

// UpdateCourse changes a course's title and credits.
func (s *CatalogAdminService) UpdateCourse(ctx context.Context, actor models.Actor, id int64, req models.UpdateCourseRequest) (*models.Course, error) {
	if err := s.requireAdminWritable(ctx, actor); err != nil {
		return nil, err
	}
	req.Title = strings.TrimSpace(req.Title)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid course payload")
	}

	course, err := s.courses.FindByID(ctx, id)
	if err != nil {
		return nil, notFoundOrInternal(err, "course")
	}
	course.Title = req.Title
	course.Credits = req.Credits
	if err := s.courses.Update(ctx, course); err != nil {
		return nil, notFoundOrInternal(err, "course")
	}
	return course, nil
}

// ListSectionsByCourse returns all sections of a course across terms.
func (s *CatalogAdminService) ListSectionsByCourse(ctx context.Context, actor models.Actor, courseID int64) ([]models.Section, error) {
	if err := requireRole(actor, models.RoleAdmin); err != nil {
		return nil, err
	}
	if _, err := s.courses.FindByID(ctx, courseID); err != nil {
		return nil, notFoundOrInternal(err, "course")
	}
	sections, err := s.sections.ListByCourse(ctx, courseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list sections")
	}
	return sections, nil
}

// CreateSection schedules a new section of an existing course.
func (s *CatalogAdminService) CreateSection(ctx context.Context, actor models.Actor, req models.SectionRequest) (*models.Section, error) {
	if err := s.requireAdminWritable(ctx, actor); err != nil {
		return nil, err
	}
	if err := s.validateSection(&req); err != nil {
		return nil, err
	}
	if req.CourseID <= 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "course_id is required")
	}
	if _, err := s.courses.FindByID(ctx, req.CourseID); err != nil {
		return nil, notFoundOrInternal(err, "course")
	}
	if req.InstructorID != nil {
		if err := s.requireInstructor(ctx, *req.InstructorID); err != nil {
			return nil, err
		}
	}

	section := &models.Section{
		CourseID:     req.CourseID,
		InstructorID: req.InstructorID,
		DayTime:      req.DayTime,
		Room:         req.Room,
		Capacity:     req.Capacity,
		Semester:     req.Semester,
		Year:         req.Year,
	}
	if err := s.sections.Create(ctx, section); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create section")
	}
	s.logger.Info("section created", zap.Int64("section_id", section.ID), zap.Int64("course_id", section.CourseID))
	return section, nil
}

// UpdateSection changes schedule, room, capacity and term. Capacity may not drop below the
// current enrollment count.
func (s *CatalogAdminService) UpdateSection(ctx context.Context, actor models.Actor, id int64, req models.SectionRequest) (*models.Section, error) {
	if err := s.requireAdminWritable(ctx, actor); err != nil {
		return nil, err
	}
	if err := s.validateSection(&req); err != nil {
		return nil, err
	}
	section, err := s.sections.FindByID(ctx, id)
	if err != nil {
		return nil, notFoundOrInternal(err, "section")
	}

	section.DayTime = req.DayTime
	section.Room = req.Room
	section.Capacity = req.Capacity
	section.Semester = req.Semester
	section.Year = req.Year
	if err := s.sections.Update(ctx, section); err != nil {
		if errors.Is(err, repository.ErrSectionFull) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "capacity is below the current enrollment count")
		}
		return nil, notFoundOrInternal(err, "section")
	}
	return section, nil
}

// AssignInstructor sets the instructor of a section.
func (s *CatalogAdminService) AssignInstructor(ctx context.Context, actor models.Actor, sectionID, instructorID int64) (*models.Section, error) {
	if err := s.requireAdminWritable(ctx, actor); err != nil {
		return nil, err
	}
	if err := s.requireInstructor(ctx, instructorID); err != nil {
		return nil, err
	}
	return s.setInstructor(ctx, sectionID, &instructorID)
}

// UnassignInstructor clears the instructor of a section.
func (s *CatalogAdminService) UnassignInstructor(ctx context.Context, actor models.Actor, sectionID int64) (*models.Section, error) {
	if err := s.requireAdminWritable(ctx, actor); err != nil {
		return nil, err
	}
	return s.setInstructor(ctx, sectionID, nil)
}

func (s *CatalogAdminService) setInstructor(ctx context.Context, sectionID int64, instructorID *int64) (*models.Section, error) {
	if err := s.sections.UpdateInstructor(ctx, sectionID, instructorID); err != nil {
		return nil, notFoundOrInternal(err, "section")
	}
	section, err := s.sections.FindByID(ctx, sectionID)
	if err != nil {
		return nil, notFoundOrInternal(err, "section")
	}
	s.logger.Info("section instructor changed", zap.Int64("section_id", sectionID), zap.Any("instructor_id", instructorID))
	return section, nil
}

// DeleteSection removes a section without enrollments.
func (s *CatalogAdminService) DeleteSection(ctx context.Context, actor models.Actor, sectionID int64) error {
	if err := s.requireAdminWritable(ctx, actor); err != nil {
		return err
	}
	if err := s.sections.Delete(ctx, sectionID); err != nil {
		if errors.Is(err, repository.ErrHasEnrollments) {
			return appErrors.ErrSectionHasEnrollment
		}
		return notFoundOrInternal(err, "section")
	}
	s.logger.Info("section deleted", zap.Int64("section_id", sectionID))
	return nil
}

// ListInstructors returns every instructor profile.
func (s *CatalogAdminService) ListInstructors(ctx context.Context, actor models.Actor) ([]models.InstructorProfile, error) {
	if err := requireRole(actor, models.RoleAdmin); err != nil {
		return nil, err
	}
	instructors, err := s.instructors.ListInstructors(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list instructors")
	}
	return instructors, nil
}

func (s *CatalogAdminService) requireAdminWritable(ctx context.Context, actor models.Actor) error {
	if err := requireRole(actor, models.RoleAdmin); err != nil {
		return err
	}
	_, err := s.gate.RequireWritable(ctx)
	return err
}

func (s *CatalogAdminService) validateSection(req *models.SectionRequest) error {
	req.DayTime = strings.TrimSpace(req.DayTime)
	req.Room = strings.TrimSpace(req.Room)
	req.Semester = strings.TrimSpace(req.Semester)
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid section payload")
	}
	if req.Year < s.academic.MinSectionYear || req.Year > s.academic.MaxSectionYear {
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("year must be between %d and %d", s.academic.MinSectionYear, s.academic.MaxSectionYear))
	}
	return nil
}

func (s *CatalogAdminService) requireInstructor(ctx context.Context, userID int64) error {
	if _, err := s.instructors.FindInstructorByUserID(ctx, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrValidation, "instructor not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load instructor")
	}
	return nil
}

func notFoundOrInternal(err error, what string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrNotFound, what+" not found")
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to process "+what)
}
