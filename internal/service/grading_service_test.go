package service

import (
	"context"
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/univ-erp-api/internal/models"
	appErrors "github.com/noah-isme/univ-erp-api/pkg/errors"
)

var standardBoundaries = models.GradeBoundaries{90, 80, 70, 60, 50}

type gradingFixture struct {
	store    *fakeAcademic
	settings *fakeSettings
	svc      *GradingService
}

func newGradingFixture() *gradingFixture {
	store := newFakeAcademic()
	owner := instructorActor.AccountID
	store.addCourse(1, "CS101", 4)
	store.addSection(11, 1, &owner, 30, "Fall", 2025)
	store.addSection(12, 1, nil, 30, "Fall", 2025)
	store.addEnrollment(1, 100, 11)
	store.addEnrollment(2, 101, 12)

	settings := openSettings()
	sections := fakeSectionRepo{store}
	svc := NewGradingService(fakeEnrollmentRepo{store}, fakeGradeRepo{store}, sections, NewAccessGate(settings, sections), nil, NewMetricsService(), nil)
	return &gradingFixture{store: store, settings: settings, svc: svc}
}

func TestEnterScoreUpsertsLastWriteWins(t *testing.T) {
	f := newGradingFixture()
	ctx := context.Background()

	_, err := f.svc.EnterScore(ctx, instructorActor, models.ScoreEntry{EnrollmentID: 1, Component: "Quiz", Score: scorePtr(12)})
	require.NoError(t, err)
	grade, err := f.svc.EnterScore(ctx, instructorActor, models.ScoreEntry{EnrollmentID: 1, Component: " Quiz ", Score: scorePtr(18.5)})
	require.NoError(t, err)

	assert.Equal(t, 18.5, *grade.Score)
	assert.Len(t, f.store.grades[1], 1)
	assert.Equal(t, 18.5, *f.store.grades[1]["Quiz"])
}

func TestEnterScoreClearsWithNil(t *testing.T) {
	f := newGradingFixture()
	f.store.setScores(1, map[string]*float64{"Quiz": scorePtr(10)})

	_, err := f.svc.EnterScore(context.Background(), instructorActor, models.ScoreEntry{EnrollmentID: 1, Component: "Quiz"})
	require.NoError(t, err)
	assert.Nil(t, f.store.grades[1]["Quiz"])
}

func TestEnterScoreFailures(t *testing.T) {
	cases := []struct {
		name  string
		actor models.Actor
		entry models.ScoreEntry
		setup func(f *gradingFixture)
		want  error
	}{
		{
			name: "maintenance", actor: instructorActor,
			entry: models.ScoreEntry{EnrollmentID: 1, Component: "Quiz", Score: scorePtr(1)},
			setup: func(f *gradingFixture) { f.settings.snapshot.MaintenanceOn = true },
			want:  appErrors.ErrMaintenance,
		},
		{name: "missing enrollment", actor: instructorActor, entry: models.ScoreEntry{EnrollmentID: 404, Component: "Quiz", Score: scorePtr(1)}, want: appErrors.ErrNotFound},
		{name: "other instructor's section", actor: instructorActor, entry: models.ScoreEntry{EnrollmentID: 2, Component: "Quiz", Score: scorePtr(1)}, want: appErrors.ErrForbidden},
		{name: "student caller", actor: studentActor, entry: models.ScoreEntry{EnrollmentID: 1, Component: "Quiz", Score: scorePtr(1)}, want: appErrors.ErrForbidden},
		{name: "above range", actor: instructorActor, entry: models.ScoreEntry{EnrollmentID: 1, Component: "Quiz", Score: scorePtr(100.01)}, want: appErrors.ErrInvalidScore},
		{name: "negative", actor: instructorActor, entry: models.ScoreEntry{EnrollmentID: 1, Component: "Quiz", Score: scorePtr(-1)}, want: appErrors.ErrInvalidScore},
		{name: "NaN", actor: instructorActor, entry: models.ScoreEntry{EnrollmentID: 1, Component: "Quiz", Score: scorePtr(math.NaN())}, want: appErrors.ErrInvalidScore},
		{name: "blank component", actor: instructorActor, entry: models.ScoreEntry{EnrollmentID: 1, Component: "  ", Score: scorePtr(1)}, want: appErrors.ErrValidation},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newGradingFixture()
			if tc.setup != nil {
				tc.setup(f)
			}
			_, err := f.svc.EnterScore(context.Background(), tc.actor, tc.entry)
			assert.ErrorIs(t, err, tc.want)
			assert.Zero(t, f.store.upserts)
		})
	}
}

func TestEnterScoreConcurrentSameComponentKeepsOneRow(t *testing.T) {
	f := newGradingFixture()
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(v float64) {
			defer wg.Done()
			_, err := f.svc.EnterScore(context.Background(), instructorActor, models.ScoreEntry{EnrollmentID: 1, Component: "Midterm", Score: scorePtr(v)})
			assert.NoError(t, err)
		}(float64(i))
	}
	wg.Wait()
	assert.Len(t, f.store.grades[1], 1)
}

func TestComputeFinalGradesMixedBatch(t *testing.T) {
	f := newGradingFixture()
	for id := int64(3); id <= 6; id++ {
		f.store.addEnrollment(id, 100+id, 11)
	}
	f.store.setScores(1, map[string]*float64{"Quiz": scorePtr(20), "Midterm": scorePtr(30), "EndSem": scorePtr(42)})
	f.store.setScores(3, map[string]*float64{"Quiz": scorePtr(20), "Midterm": nil, "EndSem": scorePtr(40)})
	f.store.setScores(4, map[string]*float64{"Quiz": scorePtr(50), "Midterm": scorePtr(40), "EndSem": scorePtr(30)})
	f.store.setScores(5, map[string]*float64{"Quiz": scorePtr(10), "Midterm": scorePtr(10), "EndSem": scorePtr(5), "Bonus": scorePtr(99)})

	summary, err := f.svc.ComputeFinalGrades(context.Background(), instructorActor, 11, standardBoundaries)
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrPartialFailure)
	require.NotNil(t, summary)

	assert.Equal(t, 2, summary.SuccessCount)
	assert.Equal(t, 2, summary.IncompleteCount)
	assert.Equal(t, 1, summary.FailCount)
	require.Len(t, summary.Failures, 1)
	assert.Equal(t, int64(4), summary.Failures[0].EnrollmentID)

	assert.Equal(t, models.LetterAPlus, *f.store.enrollments[1].FinalGrade)
	assert.Equal(t, models.LetterIncomplete, *f.store.enrollments[3].FinalGrade)
	assert.Nil(t, f.store.enrollments[4].FinalGrade)
	assert.Equal(t, models.LetterF, *f.store.enrollments[5].FinalGrade)
	assert.Equal(t, models.LetterIncomplete, *f.store.enrollments[6].FinalGrade)
}

func TestComputeFinalGradesAllSucceed(t *testing.T) {
	f := newGradingFixture()
	f.store.setScores(1, map[string]*float64{"Quiz": scorePtr(25), "Midterm": scorePtr(25), "EndSem": scorePtr(25)})

	summary, err := f.svc.ComputeFinalGrades(context.Background(), instructorActor, 11, standardBoundaries)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.SuccessCount)
	assert.Equal(t, models.LetterB, *f.store.enrollments[1].FinalGrade)
}

func TestComputeFinalGradesWriteFailureCountsAsFail(t *testing.T) {
	f := newGradingFixture()
	f.store.addEnrollment(3, 103, 11)
	f.store.setScores(1, map[string]*float64{"Quiz": scorePtr(25), "Midterm": scorePtr(25), "EndSem": scorePtr(25)})
	f.store.setFinalErr[1] = errStoreDown
	f.store.setFinalErr[3] = errStoreDown

	summary, err := f.svc.ComputeFinalGrades(context.Background(), instructorActor, 11, standardBoundaries)
	assert.ErrorIs(t, err, appErrors.ErrPartialFailure)
	assert.Equal(t, 2, summary.FailCount)
	assert.Zero(t, summary.IncompleteCount)
	assert.Zero(t, summary.SuccessCount)
}

func TestComputeFinalGradesPreconditions(t *testing.T) {
	cases := []struct {
		name       string
		actor      models.Actor
		section    int64
		boundaries models.GradeBoundaries
		setup      func(f *gradingFixture)
		want       error
	}{
		{name: "maintenance", actor: instructorActor, section: 11, boundaries: standardBoundaries, setup: func(f *gradingFixture) { f.settings.snapshot.MaintenanceOn = true }, want: appErrors.ErrMaintenance},
		{name: "not assigned", actor: instructorActor, section: 12, boundaries: standardBoundaries, want: appErrors.ErrForbidden},
		{name: "too few", actor: instructorActor, section: 11, boundaries: models.GradeBoundaries{90, 80, 70, 60}, want: appErrors.ErrInvalidBoundaries},
		{name: "not descending", actor: instructorActor, section: 11, boundaries: models.GradeBoundaries{90, 80, 80, 60, 50}, want: appErrors.ErrInvalidBoundaries},
		{name: "out of range", actor: instructorActor, section: 11, boundaries: models.GradeBoundaries{101, 80, 70, 60, 50}, want: appErrors.ErrInvalidBoundaries},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newGradingFixture()
			f.store.setScores(1, map[string]*float64{"Quiz": scorePtr(25), "Midterm": scorePtr(25), "EndSem": scorePtr(25)})
			if tc.setup != nil {
				tc.setup(f)
			}
			summary, err := f.svc.ComputeFinalGrades(context.Background(), tc.actor, tc.section, tc.boundaries)
			assert.ErrorIs(t, err, tc.want)
			assert.Nil(t, summary)
			assert.Nil(t, f.store.enrollments[1].FinalGrade, "no row is touched when a precondition fails")
		})
	}
}

func TestLetterGradeBoundaries(t *testing.T) {
	assert.Equal(t, models.LetterAPlus, LetterGrade(90, standardBoundaries))
	assert.Equal(t, models.LetterA, LetterGrade(89.99, standardBoundaries))
	assert.Equal(t, models.LetterC, LetterGrade(60, standardBoundaries))
	assert.Equal(t, models.LetterD, LetterGrade(50, standardBoundaries))
	assert.Equal(t, models.LetterF, LetterGrade(0, standardBoundaries))
}

func TestGradebookAndStatistics(t *testing.T) {
	f := newGradingFixture()
	f.store.addEnrollment(3, 103, 11)
	f.store.students[100] = &models.StudentProfile{UserID: 100, RollNo: "R100"}
	f.store.setScores(1, map[string]*float64{"Quiz": scorePtr(10), "Midterm": scorePtr(20), "Lab": scorePtr(5)})
	f.store.setScores(3, map[string]*float64{"Quiz": scorePtr(20)})

	rows, err := f.svc.Gradebook(context.Background(), instructorActor, 11)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "R100", rows[0].RollNo)
	assert.Contains(t, rows[1].Scores, models.ComponentEndSem)
	assert.Nil(t, rows[1].Scores[models.ComponentEndSem])

	stats, err := f.svc.SectionStatistics(context.Background(), adminActor, 11)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Enrolled)
	require.Len(t, stats.Components, 4)
	assert.Equal(t, models.ComponentAverage{Component: "Quiz", Average: 15, Count: 2}, stats.Components[0])
	assert.Equal(t, models.ComponentAverage{Component: "Midterm", Average: 20, Count: 1}, stats.Components[1])
	assert.Equal(t, models.ComponentAverage{Component: "EndSem", Average: 0, Count: 0}, stats.Components[2])
	assert.Equal(t, "Lab", stats.Components[3].Component)

	_, err = f.svc.Gradebook(context.Background(), studentActor, 11)
	assert.ErrorIs(t, err, appErrors.ErrForbidden)
	_, err = f.svc.Gradebook(context.Background(), adminActor, 404)
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}
