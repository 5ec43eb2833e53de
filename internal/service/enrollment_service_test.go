package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/univ-erp-api/internal/models"
	appErrors "github.com/noah-isme/univ-erp-api/pkg/errors"
)

type enrollmentFixture struct {
	store    *fakeAcademic
	settings *fakeSettings
	repairs  *recordingScheduler
	svc      *EnrollmentService
}

func newEnrollmentFixture() *enrollmentFixture {
	store := newFakeAcademic()
	store.addCourse(1, "CS101", 4)
	store.addCourse(2, "MA201", 3)
	store.addSection(11, 1, nil, 2, "Fall", 2025)
	store.addSection(12, 1, nil, 2, "Fall", 2025)
	store.addSection(13, 1, nil, 2, "Spring", 2026)
	store.addSection(21, 2, nil, 1, "Fall", 2025)

	settings := openSettings()
	repairs := &recordingScheduler{}
	sections := fakeSectionRepo{store}
	svc := NewEnrollmentService(fakeEnrollmentRepo{store}, sections, fakeGradeRepo{store}, NewAccessGate(settings, sections), repairs, NewMetricsService(), nil)
	svc.now = fixedClock
	return &enrollmentFixture{store: store, settings: settings, repairs: repairs, svc: svc}
}

func TestRegisterSucceeds(t *testing.T) {
	f := newEnrollmentFixture()

	enrollment, err := f.svc.Register(context.Background(), studentActor, 11)
	require.NoError(t, err)
	assert.Equal(t, studentActor.AccountID, enrollment.StudentID)
	assert.Equal(t, int64(11), enrollment.SectionID)
	assert.Equal(t, models.EnrollmentStatusEnrolled, enrollment.Status)
	assert.Len(t, f.store.enrollments, 1)
}

func TestRegisterOrderedFailures(t *testing.T) {
	cases := []struct {
		name    string
		actor   models.Actor
		section int64
		setup   func(f *enrollmentFixture)
		want    error
	}{
		{name: "not a student", actor: instructorActor, section: 11, want: appErrors.ErrForbidden},
		{
			name: "maintenance wins over deadline", actor: studentActor, section: 11,
			setup: func(f *enrollmentFixture) {
				f.settings.snapshot.MaintenanceOn = true
				f.settings.snapshot.RegistrationDeadline = nil
			},
			want: appErrors.ErrMaintenance,
		},
		{
			name: "deadline not set", actor: studentActor, section: 11,
			setup: func(f *enrollmentFixture) { f.settings.snapshot.RegistrationDeadline = nil },
			want:  appErrors.ErrDeadlineNotSet,
		},
		{
			name: "deadline passed", actor: studentActor, section: 11,
			setup: func(f *enrollmentFixture) { f.settings.snapshot.RegistrationDeadline = datePtr(2025, time.August, 19) },
			want:  appErrors.ErrDeadlinePassed,
		},
		{
			name: "duplicate", actor: studentActor, section: 11,
			setup: func(f *enrollmentFixture) { f.store.addEnrollment(1, studentActor.AccountID, 11) },
			want:  appErrors.ErrDuplicateEnrollment,
		},
		{name: "missing section", actor: studentActor, section: 404, want: appErrors.ErrNotFound},
		{
			name: "same course same term", actor: studentActor, section: 12,
			setup: func(f *enrollmentFixture) { f.store.addEnrollment(1, studentActor.AccountID, 11) },
			want:  appErrors.ErrCourseTermConflict,
		},
		{
			name: "section full", actor: studentActor, section: 21,
			setup: func(f *enrollmentFixture) { f.store.addEnrollment(1, 999, 21) },
			want:  appErrors.ErrSectionFull,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newEnrollmentFixture()
			if tc.setup != nil {
				tc.setup(f)
			}
			before := len(f.store.enrollments)

			_, err := f.svc.Register(context.Background(), tc.actor, tc.section)
			require.Error(t, err)
			assert.ErrorIs(t, err, tc.want)
			assert.False(t, appErrors.IsFault(err))
			assert.Len(t, f.store.enrollments, before, "a refused registration writes nothing")
		})
	}
}

func TestRegisterDeadlineDayIsInclusive(t *testing.T) {
	f := newEnrollmentFixture()
	f.settings.snapshot.RegistrationDeadline = datePtr(2025, time.August, 20)

	_, err := f.svc.Register(context.Background(), studentActor, 11)
	require.NoError(t, err)
}

func TestRegisterSameCourseOtherTermAllowed(t *testing.T) {
	f := newEnrollmentFixture()
	f.store.addEnrollment(1, studentActor.AccountID, 11)

	_, err := f.svc.Register(context.Background(), studentActor, 13)
	require.NoError(t, err)
}

func TestRegisterConcurrentNeverExceedsCapacity(t *testing.T) {
	f := newEnrollmentFixture()
	const students = 20

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		success int
		full    int
	)
	for i := 0; i < students; i++ {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			actor := models.Actor{AccountID: id, Username: fmt.Sprintf("s%d", id), Role: models.RoleStudent}
			_, err := f.svc.Register(context.Background(), actor, 11)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				success++
			case assert.ErrorIs(t, err, appErrors.ErrSectionFull):
				full++
			}
		}(int64(2000 + i))
	}
	wg.Wait()

	assert.Equal(t, 2, success)
	assert.Equal(t, students-2, full)
	count, err := fakeSectionRepo{f.store}.CountEnrollments(context.Background(), 11)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestRegisterConcurrentDuplicateCreatesOne(t *testing.T) {
	f := newEnrollmentFixture()
	f.store.sections[11].Capacity = 50

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.svc.Register(context.Background(), studentActor, 11)
		}(i)
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		// A racing duplicate may also be caught by the same-course check.
		assert.True(t, errors.Is(err, appErrors.ErrDuplicateEnrollment) || errors.Is(err, appErrors.ErrCourseTermConflict), err.Error())
	}
	assert.Equal(t, 1, ok)
	assert.Len(t, f.store.enrollments, 1)
}

func TestDropRemovesEnrollmentAndGrades(t *testing.T) {
	f := newEnrollmentFixture()
	f.store.addEnrollment(1, studentActor.AccountID, 11)
	f.store.setScores(1, map[string]*float64{models.ComponentQuiz: scorePtr(10)})

	require.NoError(t, f.svc.Drop(context.Background(), studentActor, 1))
	assert.Empty(t, f.store.enrollments)
	assert.Empty(t, f.store.grades)
}

func TestDropHidesForeignAndMissingEnrollments(t *testing.T) {
	f := newEnrollmentFixture()
	f.store.addEnrollment(1, 999, 11)

	foreign := f.svc.Drop(context.Background(), studentActor, 1)
	missing := f.svc.Drop(context.Background(), studentActor, 404)

	require.Error(t, foreign)
	require.Error(t, missing)
	assert.ErrorIs(t, foreign, appErrors.ErrForbidden)
	assert.Equal(t, foreign.Error(), missing.Error())
	assert.Len(t, f.store.enrollments, 1)
}

func TestDropPolicyFailures(t *testing.T) {
	f := newEnrollmentFixture()
	f.store.addEnrollment(1, studentActor.AccountID, 11)

	f.settings.snapshot.DropDeadline = datePtr(2025, time.August, 1)
	assert.ErrorIs(t, f.svc.Drop(context.Background(), studentActor, 1), appErrors.ErrDeadlinePassed)

	f.settings.snapshot.DropDeadline = nil
	assert.ErrorIs(t, f.svc.Drop(context.Background(), studentActor, 1), appErrors.ErrDeadlineNotSet)

	f.settings.snapshot.MaintenanceOn = true
	assert.ErrorIs(t, f.svc.Drop(context.Background(), studentActor, 1), appErrors.ErrMaintenance)
	assert.Len(t, f.store.enrollments, 1)
}

func TestDropGradeDeleteFailureLeavesStateUnchanged(t *testing.T) {
	f := newEnrollmentFixture()
	f.store.addEnrollment(1, studentActor.AccountID, 11)
	f.store.setScores(1, map[string]*float64{models.ComponentQuiz: scorePtr(10)})
	f.store.deleteGradesErr = errStoreDown

	err := f.svc.Drop(context.Background(), studentActor, 1)
	require.Error(t, err)
	assert.True(t, appErrors.IsFault(err))
	assert.Len(t, f.store.enrollments, 1)
	assert.Len(t, f.store.grades, 1)
	assert.Empty(t, f.repairs.scheduled)
}

func TestDropEnrollmentDeleteFailureSchedulesRepair(t *testing.T) {
	f := newEnrollmentFixture()
	f.store.addEnrollment(1, studentActor.AccountID, 11)
	f.store.setScores(1, map[string]*float64{models.ComponentQuiz: scorePtr(10)})
	f.store.deleteEnrollmentErr = errStoreDown

	err := f.svc.Drop(context.Background(), studentActor, 1)
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrInconsistentState)
	assert.True(t, appErrors.IsFault(err))
	assert.Equal(t, "unexpected error", appErrors.FromError(err).Message)
	assert.Equal(t, []int64{1}, f.repairs.scheduled)
	assert.Empty(t, f.store.grades)
	assert.Equal(t, uint64(1), f.svc.metrics.Snapshot().Inconsistencies)
}
