package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/univ-erp-api/internal/models"
	appErrors "github.com/noah-isme/univ-erp-api/pkg/errors"
)

const boundaryCount = 5

type gradingEnrollmentStore interface {
	FindByID(ctx context.Context, id int64) (*models.Enrollment, error)
	ListBySection(ctx context.Context, sectionID int64) ([]models.RosterRow, error)
	SetFinalGrade(ctx context.Context, id int64, letter string) error
}

type gradeStore interface {
	ListBySection(ctx context.Context, sectionID int64) ([]models.Grade, error)
	UpsertScore(ctx context.Context, enrollmentID int64, component string, score *float64) (*models.Grade, error)
}

type gradingGate interface {
	RequireWritable(ctx context.Context) (models.Settings, error)
	CanInstructorGrade(ctx context.Context, actor models.Actor, sectionID int64) (bool, error)
}

// GradingService manages component scores and final letter grades.
type GradingService struct {
	enrollments gradingEnrollmentStore
	grades      gradeStore
	sections    sectionFinder
	gate        gradingGate
	validator   *validator.Validate
	metrics     *MetricsService
	logger      *zap.Logger
}

// NewGradingService constructs a grading service.
func NewGradingService(enrollments gradingEnrollmentStore, grades gradeStore, sections sectionFinder, gate gradingGate, validate *validator.Validate, metrics *MetricsService, logger *zap.Logger) *GradingService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GradingService{
		enrollments: enrollments,
		grades:      grades,
		sections:    sections,
		gate:        gate,
		validator:   validate,
		metrics:     metrics,
		logger:      logger,
	}
}

// EnterScore records or clears one component score. Repeated calls for the same component
// overwrite the previous score.
func (s *GradingService) EnterScore(ctx context.Context, actor models.Actor, entry models.ScoreEntry) (*models.Grade, error) {
	grade, err := s.enterScore(ctx, actor, entry)
	s.recordOutcome(WorkflowEnterScore, err)
	return grade, err
}

func (s *GradingService) enterScore(ctx context.Context, actor models.Actor, entry models.ScoreEntry) (*models.Grade, error) {
	if _, err := s.gate.RequireWritable(ctx); err != nil {
		return nil, err
	}
	entry.Component = strings.TrimSpace(entry.Component)
	if err := s.validator.Struct(entry); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid score payload")
	}

	enrollment, err := s.enrollments.FindByID(ctx, entry.EnrollmentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}

	allowed, err := s.gate.CanInstructorGrade(ctx, actor, enrollment.SectionID)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "not the instructor of this section")
	}

	if entry.Score != nil && !validScore(*entry.Score) {
		return nil, appErrors.ErrInvalidScore
	}

	grade, err := s.grades.UpsertScore(ctx, entry.EnrollmentID, entry.Component, entry.Score)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save score")
	}
	return grade, nil
}

// ComputeFinalGrades assigns a letter grade to every enrollment of the section. Rows are
// written independently; when any row fails the summary is returned together with
// PARTIAL_FAILURE and the successful rows stay written.
func (s *GradingService) ComputeFinalGrades(ctx context.Context, actor models.Actor, sectionID int64, boundaries models.GradeBoundaries) (*models.FinalGradeSummary, error) {
	if _, err := s.gate.RequireWritable(ctx); err != nil {
		s.recordOutcome(WorkflowFinalGrades, err)
		return nil, err
	}
	if err := s.authorize(ctx, actor, sectionID, false); err != nil {
		s.recordOutcome(WorkflowFinalGrades, err)
		return nil, err
	}
	if err := ValidateBoundaries(boundaries); err != nil {
		s.recordOutcome(WorkflowFinalGrades, err)
		return nil, err
	}

	roster, err := s.enrollments.ListBySection(ctx, sectionID)
	if err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollments")
		s.recordOutcome(WorkflowFinalGrades, err)
		return nil, err
	}
	scores, err := s.scoresBySection(ctx, sectionID)
	if err != nil {
		s.recordOutcome(WorkflowFinalGrades, err)
		return nil, err
	}

	summary := &models.FinalGradeSummary{SectionID: sectionID}
	for _, row := range roster {
		s.finalizeRow(ctx, summary, row.EnrollmentID, scores[row.EnrollmentID], boundaries)
	}

	s.metrics.RecordFinalGradeBatch(*summary)
	log := s.logger.With(
		zap.Int64("section_id", sectionID),
		zap.Int("success", summary.SuccessCount),
		zap.Int("incomplete", summary.IncompleteCount),
		zap.Int("failed", summary.FailCount),
	)
	if summary.FailCount > 0 {
		log.Warn("final grades partially computed")
		s.metrics.RecordWorkflow(WorkflowFinalGrades, OutcomeRefused)
		return summary, appErrors.Clone(appErrors.ErrPartialFailure, fmt.Sprintf("%d of %d rows could not be finalized", summary.FailCount, len(roster)))
	}
	log.Info("final grades computed")
	s.metrics.RecordWorkflow(WorkflowFinalGrades, OutcomeSuccess)
	return summary, nil
}

func (s *GradingService) finalizeRow(ctx context.Context, summary *models.FinalGradeSummary, enrollmentID int64, scores map[string]*float64, boundaries models.GradeBoundaries) {
	fail := func(reason string) {
		summary.FailCount++
		summary.Failures = append(summary.Failures, models.RowFailure{EnrollmentID: enrollmentID, Reason: reason})
	}

	total, complete := sumReserved(scores)
	if !complete {
		if err := s.enrollments.SetFinalGrade(ctx, enrollmentID, models.LetterIncomplete); err != nil {
			s.logger.Error("failed to write incomplete grade", zap.Int64("enrollment_id", enrollmentID), zap.Error(err))
			fail("failed to save grade")
			return
		}
		summary.IncompleteCount++
		return
	}
	if total > 100 {
		fail(fmt.Sprintf("total %.2f exceeds 100", total))
		return
	}
	if total < 0 {
		total = 0
	}

	if err := s.enrollments.SetFinalGrade(ctx, enrollmentID, LetterGrade(total, boundaries)); err != nil {
		s.logger.Error("failed to write final grade", zap.Int64("enrollment_id", enrollmentID), zap.Error(err))
		fail("failed to save grade")
		return
	}
	summary.SuccessCount++
}

// Gradebook lists every enrollment of the section with its component scores.
func (s *GradingService) Gradebook(ctx context.Context, actor models.Actor, sectionID int64) ([]models.GradebookRow, error) {
	if err := s.authorize(ctx, actor, sectionID, true); err != nil {
		return nil, err
	}
	roster, err := s.enrollments.ListBySection(ctx, sectionID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollments")
	}
	scores, err := s.scoresBySection(ctx, sectionID)
	if err != nil {
		return nil, err
	}

	rows := make([]models.GradebookRow, 0, len(roster))
	for _, r := range roster {
		row := models.GradebookRow{
			EnrollmentID: r.EnrollmentID,
			StudentID:    r.StudentID,
			RollNo:       r.RollNo,
			Scores:       map[string]*float64{},
			FinalGrade:   r.FinalGrade,
		}
		for _, component := range models.ReservedComponents {
			row.Scores[component] = nil
		}
		for component, score := range scores[r.EnrollmentID] {
			row.Scores[component] = score
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// SectionStatistics averages each component over the scores entered so far.
func (s *GradingService) SectionStatistics(ctx context.Context, actor models.Actor, sectionID int64) (*models.SectionStatistics, error) {
	rows, err := s.Gradebook(ctx, actor, sectionID)
	if err != nil {
		return nil, err
	}

	sums := map[string]float64{}
	counts := map[string]int{}
	for _, row := range rows {
		for component, score := range row.Scores {
			if _, ok := counts[component]; !ok {
				counts[component] = 0
			}
			if score != nil {
				sums[component] += *score
				counts[component]++
			}
		}
	}

	stats := &models.SectionStatistics{SectionID: sectionID, Enrolled: len(rows), Components: []models.ComponentAverage{}}
	for component, count := range counts {
		avg := 0.0
		if count > 0 {
			avg = math.Round(sums[component]/float64(count)*100) / 100
		}
		stats.Components = append(stats.Components, models.ComponentAverage{Component: component, Average: avg, Count: count})
	}
	sort.Slice(stats.Components, func(i, j int) bool {
		return componentRank(stats.Components[i].Component, stats.Components[j].Component)
	})
	return stats, nil
}

// authorize lets the assigned instructor through. Admins may additionally read.
func (s *GradingService) authorize(ctx context.Context, actor models.Actor, sectionID int64, read bool) error {
	if read && actor.Is(models.RoleAdmin) {
		if _, err := s.sections.FindByID(ctx, sectionID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Clone(appErrors.ErrNotFound, "section not found")
			}
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load section")
		}
		return nil
	}
	allowed, err := s.gate.CanInstructorGrade(ctx, actor, sectionID)
	if err != nil {
		return err
	}
	if !allowed {
		return appErrors.Clone(appErrors.ErrForbidden, "not the instructor of this section")
	}
	return nil
}

func (s *GradingService) scoresBySection(ctx context.Context, sectionID int64) (map[int64]map[string]*float64, error) {
	grades, err := s.grades.ListBySection(ctx, sectionID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load grades")
	}
	out := make(map[int64]map[string]*float64)
	for _, g := range grades {
		if out[g.EnrollmentID] == nil {
			out[g.EnrollmentID] = map[string]*float64{}
		}
		out[g.EnrollmentID][g.Component] = g.Score
	}
	return out, nil
}

func (s *GradingService) recordOutcome(workflow string, err error) {
	switch {
	case err == nil:
		s.metrics.RecordWorkflow(workflow, OutcomeSuccess)
	case appErrors.IsFault(err):
		s.metrics.RecordWorkflow(workflow, OutcomeFault)
	default:
		s.metrics.RecordWorkflow(workflow, OutcomeRefused)
	}
}

// ValidateBoundaries requires exactly five cut-offs within [0,100] in strictly descending order.
func ValidateBoundaries(b models.GradeBoundaries) error {
	if len(b) != boundaryCount {
		return appErrors.ErrInvalidBoundaries
	}
	for i, v := range b {
		if !validScore(v) {
			return appErrors.ErrInvalidBoundaries
		}
		if i > 0 && v >= b[i-1] {
			return appErrors.ErrInvalidBoundaries
		}
	}
	return nil
}

// LetterGrade maps a total onto the letter scale. boundaries must already be validated.
func LetterGrade(total float64, b models.GradeBoundaries) string {
	switch {
	case total >= b[0]:
		return models.LetterAPlus
	case total >= b[1]:
		return models.LetterA
	case total >= b[2]:
		return models.LetterB
	case total >= b[3]:
		return models.LetterC
	case total >= b[4]:
		return models.LetterD
	default:
		return models.LetterF
	}
}

func sumReserved(scores map[string]*float64) (float64, bool) {
	var total float64
	for _, component := range models.ReservedComponents {
		score, ok := scores[component]
		if !ok || score == nil {
			return 0, false
		}
		total += *score
	}
	return total, true
}

// validScore rejects NaN as well as out-of-range values.
func validScore(v float64) bool {
	return v >= 0 && v <= 100
}

// componentRank orders reserved components first, then the rest alphabetically.
func componentRank(a, b string) bool {
	ra, rb := reservedIndex(a), reservedIndex(b)
	if ra != rb {
		return ra < rb
	}
	return a < b
}

func reservedIndex(component string) int {
	for i, c := range models.ReservedComponents {
		if c == component {
			return i
		}
	}
	return len(models.ReservedComponents)
}
