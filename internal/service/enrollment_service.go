package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/univ-erp-api/internal/models"
	"github.com/noah-isme/univ-erp-api/internal/repository"
	appErrors "github.com/noah-isme/univ-erp-api/pkg/errors"
	"github.com/noah-isme/univ-erp-api/pkg/logger"
)

type enrollmentStore interface {
	FindByID(ctx context.Context, id int64) (*models.Enrollment, error)
	Exists(ctx context.Context, studentID, sectionID int64) (bool, error)
	ExistsInCourseTerm(ctx context.Context, studentID, courseID int64, semester string, year int) (bool, error)
	CreateIfAvailable(ctx context.Context, studentID, sectionID int64) (*models.Enrollment, error)
	DeleteByID(ctx context.Context, id int64) error
}

type sectionCounter interface {
	FindByID(ctx context.Context, id int64) (*models.Section, error)
	CountEnrollments(ctx context.Context, sectionID int64) (int, error)
}

type gradeDeleter interface {
	DeleteByEnrollment(ctx context.Context, enrollmentID int64) (int64, error)
}

// RepairScheduler retries work that a workflow could not finish inline.
type RepairScheduler interface {
	ScheduleEnrollmentDelete(enrollmentID int64) error
}

// EnrollmentService implements student registration and drop.
type EnrollmentService struct {
	enrollments enrollmentStore
	sections    sectionCounter
	grades      gradeDeleter
	gate        writeGate
	repairs     RepairScheduler
	metrics     *MetricsService
	logger      *zap.Logger
	now         func() time.Time
}

// NewEnrollmentService constructs the service. repairs may be nil, in which case a
// half-finished drop is only reported.
func NewEnrollmentService(enrollments enrollmentStore, sections sectionCounter, grades gradeDeleter, gate writeGate, repairs RepairScheduler, metrics *MetricsService, logger *zap.Logger) *EnrollmentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EnrollmentService{
		enrollments: enrollments,
		sections:    sections,
		grades:      grades,
		gate:        gate,
		repairs:     repairs,
		metrics:     metrics,
		logger:      logger,
		now:         time.Now,
	}
}

// Register enrolls the calling student into a section. Checks run in a fixed order and
// the first failing one is reported; no write happens on any failure.
func (s *EnrollmentService) Register(ctx context.Context, actor models.Actor, sectionID int64) (*models.Enrollment, error) {
	enrollment, err := s.register(ctx, actor, sectionID)
	s.record(WorkflowRegister, err)
	if err != nil {
		return nil, err
	}
	s.logger.Info("student registered",
		zap.Int64("student_id", actor.AccountID),
		zap.Int64("section_id", sectionID),
		zap.Int64("enrollment_id", enrollment.ID),
	)
	return enrollment, nil
}

func (s *EnrollmentService) register(ctx context.Context, actor models.Actor, sectionID int64) (*models.Enrollment, error) {
	if err := requireRole(actor, models.RoleStudent); err != nil {
		return nil, err
	}
	settings, err := s.gate.RequireWritable(ctx)
	if err != nil {
		return nil, err
	}
	if err := checkDeadline(settings.RegistrationDeadline, s.now(), "registration"); err != nil {
		return nil, err
	}

	studentID := actor.AccountID
	exists, err := s.enrollments.Exists(ctx, studentID, sectionID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check enrollment")
	}
	if exists {
		return nil, appErrors.ErrDuplicateEnrollment
	}

	section, err := s.sections.FindByID(ctx, sectionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "section not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load section")
	}

	taken, err := s.enrollments.ExistsInCourseTerm(ctx, studentID, section.CourseID, section.Semester, section.Year)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check course enrollment")
	}
	if taken {
		return nil, appErrors.ErrCourseTermConflict
	}

	enrolled, err := s.sections.CountEnrollments(ctx, sectionID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count enrollments")
	}
	if enrolled >= section.Capacity {
		return nil, appErrors.ErrSectionFull
	}

	// The checks above are repeated atomically by the insert itself.
	enrollment, err := s.enrollments.CreateIfAvailable(ctx, studentID, sectionID)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrDuplicate):
			return nil, appErrors.ErrDuplicateEnrollment
		case errors.Is(err, repository.ErrCourseTermConflict):
			return nil, appErrors.ErrCourseTermConflict
		case errors.Is(err, repository.ErrSectionFull):
			return nil, appErrors.ErrSectionFull
		case errors.Is(err, sql.ErrNoRows):
			return nil, appErrors.Clone(appErrors.ErrNotFound, "section not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to register")
	}
	return enrollment, nil
}

// Drop removes one of the calling student's enrollments together with its grades.
func (s *EnrollmentService) Drop(ctx context.Context, actor models.Actor, enrollmentID int64) error {
	err := s.drop(ctx, actor, enrollmentID)
	if !errors.Is(err, appErrors.ErrInconsistentState) {
		s.record(WorkflowDrop, err)
	}
	if err == nil {
		s.logger.Info("enrollment dropped", zap.Int64("student_id", actor.AccountID), zap.Int64("enrollment_id", enrollmentID))
	}
	return err
}

func (s *EnrollmentService) drop(ctx context.Context, actor models.Actor, enrollmentID int64) error {
	if err := requireRole(actor, models.RoleStudent); err != nil {
		return err
	}
	settings, err := s.gate.RequireWritable(ctx)
	if err != nil {
		return err
	}
	if err := checkDeadline(settings.DropDeadline, s.now(), "drop"); err != nil {
		return err
	}

	// Missing and foreign enrollments look the same to the caller.
	enrollment, err := s.enrollments.FindByID(ctx, enrollmentID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	if enrollment == nil || enrollment.StudentID != actor.AccountID {
		return appErrors.Clone(appErrors.ErrForbidden, "enrollment not found for this student")
	}

	if _, err := s.grades.DeleteByEnrollment(ctx, enrollmentID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete grades")
	}

	if err := s.enrollments.DeleteByID(ctx, enrollmentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		return s.halfDropped(ctx, enrollmentID, err)
	}
	return nil
}

// halfDropped handles grades deleted but enrollment still present: the delete is handed to
// the repair queue and the caller gets a generic fault.
func (s *EnrollmentService) halfDropped(ctx context.Context, enrollmentID int64, cause error) error {
	log := logger.WithContext(ctx, s.logger)
	fields := []zap.Field{zap.Int64("enrollment_id", enrollmentID), zap.Error(cause)}
	if s.repairs == nil {
		log.Error("drop left enrollment without grades; no repair queue", fields...)
	} else if err := s.repairs.ScheduleEnrollmentDelete(enrollmentID); err != nil {
		log.Error("drop left enrollment without grades; repair not scheduled", append(fields, zap.NamedError("schedule_error", err))...)
	} else {
		log.Error("drop left enrollment without grades; repair scheduled", fields...)
	}
	s.metrics.RecordInconsistency(WorkflowDrop)
	return appErrors.Wrap(fmt.Errorf("enrollment %d: %w", enrollmentID, cause), appErrors.ErrInconsistentState.Code, appErrors.ErrInconsistentState.Status, appErrors.ErrInconsistentState.Message)
}

func (s *EnrollmentService) record(workflow string, err error) {
	switch {
	case err == nil:
		s.metrics.RecordWorkflow(workflow, OutcomeSuccess)
	case appErrors.IsFault(err):
		s.metrics.RecordWorkflow(workflow, OutcomeFault)
	default:
		s.metrics.RecordWorkflow(workflow, OutcomeRefused)
	}
}
