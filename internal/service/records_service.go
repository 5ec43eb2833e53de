package service

import (
	"context"
	"database/sql"
	"errors"

	"go.uber.org/zap"

	"github.com/noah-isme/univ-erp-api/internal/models"
	appErrors "github.com/noah-isme/univ-erp-api/pkg/errors"
)

type catalogReader interface {
	Catalog(ctx context.Context, semester string, year int) ([]models.CatalogRow, error)
	ListByInstructorAndTerm(ctx context.Context, instructorID int64, semester string, year int) ([]models.CatalogRow, error)
}

type registrationReader interface {
	ListByStudent(ctx context.Context, studentID int64) ([]models.RegistrationRow, error)
}

type studentGradeReader interface {
	ListByStudent(ctx context.Context, studentID int64) ([]models.StudentGrade, error)
}

type studentDirectory interface {
	FindStudentByUserID(ctx context.Context, userID int64) (*models.StudentProfile, error)
}

// RecordsService serves the read-only student and instructor views.
type RecordsService struct {
	sections      catalogReader
	registrations registrationReader
	grades        studentGradeReader
	students      studentDirectory
	settings      settingsSnapshotter
	logger        *zap.Logger
}

// NewRecordsService constructs the service.
func NewRecordsService(sections catalogReader, registrations registrationReader, grades studentGradeReader, students studentDirectory, settings settingsSnapshotter, logger *zap.Logger) *RecordsService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RecordsService{
		sections:      sections,
		registrations: registrations,
		grades:        grades,
		students:      students,
		settings:      settings,
		logger:        logger,
	}
}

// Catalog lists the sections offered in a term. An empty semester or zero year falls back
// to the configured current term.
func (s *RecordsService) Catalog(ctx context.Context, semester string, year int) ([]models.CatalogRow, error) {
	if semester == "" || year == 0 {
		snapshot, err := s.settings.Snapshot(ctx)
		if err != nil {
			return nil, err
		}
		if semester == "" {
			semester = snapshot.CurrentSemester
		}
		if year == 0 {
			year = snapshot.CurrentYear
		}
	}
	if semester == "" || year == 0 {
		return []models.CatalogRow{}, nil
	}
	rows, err := s.sections.Catalog(ctx, semester, year)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load catalog")
	}
	return rows, nil
}

// Registrations lists the calling student's enrollments.
func (s *RecordsService) Registrations(ctx context.Context, actor models.Actor) ([]models.RegistrationRow, error) {
	if err := requireRole(actor, models.RoleStudent); err != nil {
		return nil, err
	}
	rows, err := s.registrations.ListByStudent(ctx, actor.AccountID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load registrations")
	}
	return rows, nil
}

// MyGrades lists the calling student's component scores.
func (s *RecordsService) MyGrades(ctx context.Context, actor models.Actor) ([]models.StudentGrade, error) {
	if err := requireRole(actor, models.RoleStudent); err != nil {
		return nil, err
	}
	grades, err := s.grades.ListByStudent(ctx, actor.AccountID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load grades")
	}
	return grades, nil
}

// Timetable lists the weekly meetings of the student's sections in the current term.
// Without a configured term every registration is listed.
func (s *RecordsService) Timetable(ctx context.Context, actor models.Actor) ([]models.TimetableEntry, error) {
	rows, err := s.Registrations(ctx, actor)
	if err != nil {
		return nil, err
	}
	snapshot, err := s.settings.Snapshot(ctx)
	if err != nil {
		return nil, err
	}

	entries := make([]models.TimetableEntry, 0, len(rows))
	for _, row := range rows {
		if snapshot.CurrentSemester != "" && (row.Semester != snapshot.CurrentSemester || row.Year != snapshot.CurrentYear) {
			continue
		}
		entries = append(entries, models.TimetableEntry{CourseCode: row.CourseCode, DayTime: row.DayTime, Room: row.Room})
	}
	return entries, nil
}

// Transcript summarises every course the student has registered for.
func (s *RecordsService) Transcript(ctx context.Context, actor models.Actor) (*models.Transcript, error) {
	if err := requireRole(actor, models.RoleStudent); err != nil {
		return nil, err
	}
	profile, err := s.students.FindStudentByUserID(ctx, actor.AccountID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.logger.Error("student account has no profile", zap.Int64("account_id", actor.AccountID))
			return nil, appErrors.ErrInconsistentState
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student profile")
	}
	rows, err := s.registrations.ListByStudent(ctx, actor.AccountID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load registrations")
	}

	transcript := &models.Transcript{
		StudentID: profile.UserID,
		RollNo:    profile.RollNo,
		Program:   profile.Program,
		Entries:   make([]models.TranscriptEntry, 0, len(rows)),
	}
	for _, row := range rows {
		transcript.Entries = append(transcript.Entries, models.TranscriptEntry{
			CourseCode:  row.CourseCode,
			CourseTitle: row.CourseTitle,
			Credits:     row.Credits,
			Semester:    row.Semester,
			Year:        row.Year,
			FinalGrade:  row.FinalGrade,
		})
		switch {
		case row.FinalGrade == nil || *row.FinalGrade == models.LetterIncomplete:
			transcript.CreditsPending += row.Credits
		case *row.FinalGrade != models.LetterF:
			transcript.CreditsEarned += row.Credits
		}
	}
	return transcript, nil
}

// InstructorSections lists the sections the calling instructor teaches in the current term.
func (s *RecordsService) InstructorSections(ctx context.Context, actor models.Actor) ([]models.CatalogRow, error) {
	if err := requireRole(actor, models.RoleInstructor); err != nil {
		return nil, err
	}
	snapshot, err := s.settings.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	if snapshot.CurrentSemester == "" || snapshot.CurrentYear == 0 {
		return []models.CatalogRow{}, nil
	}
	rows, err := s.sections.ListByInstructorAndTerm(ctx, actor.AccountID, snapshot.CurrentSemester, snapshot.CurrentYear)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load sections")
	}
	return rows, nil
}
