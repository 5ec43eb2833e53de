package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/univ-erp-api/pkg/errors"
)

func TestAccessGateMaintenance(t *testing.T) {
	settings := openSettings()
	gate := NewAccessGate(settings, fakeSectionRepo{newFakeAcademic()})

	on, err := gate.IsMaintenanceOn(context.Background())
	require.NoError(t, err)
	assert.False(t, on)
	_, err = gate.RequireWritable(context.Background())
	require.NoError(t, err)

	settings.snapshot.MaintenanceOn = true
	on, err = gate.IsMaintenanceOn(context.Background())
	require.NoError(t, err)
	assert.True(t, on)
	_, err = gate.RequireWritable(context.Background())
	assert.ErrorIs(t, err, appErrors.ErrMaintenance)
}

func TestCanInstructorGrade(t *testing.T) {
	store := newFakeAcademic()
	owner := instructorActor.AccountID
	store.addSection(1, 1, &owner, 10, "Fall", 2025)
	store.addSection(2, 1, nil, 10, "Fall", 2025)
	gate := NewAccessGate(openSettings(), fakeSectionRepo{store})
	ctx := context.Background()

	ok, err := gate.CanInstructorGrade(ctx, instructorActor, 1)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = gate.CanInstructorGrade(ctx, instructorActor, 2)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = gate.CanInstructorGrade(ctx, instructorActor, 99)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = gate.CanInstructorGrade(ctx, adminActor, 1)
	require.NoError(t, err)
	assert.False(t, ok)

	store.sectionErr = errStoreDown
	ok, err = gate.CanInstructorGrade(ctx, instructorActor, 1)
	require.Error(t, err)
	assert.False(t, ok)
	assert.True(t, appErrors.IsFault(err))
}

func TestCheckDeadlineComparesCalendarDates(t *testing.T) {
	loc := time.FixedZone("UTC+7", 7*3600)
	deadline := time.Date(2025, time.August, 31, 0, 0, 0, 0, loc)

	assert.NoError(t, checkDeadline(&deadline, time.Date(2025, time.August, 31, 16, 59, 0, 0, time.UTC), "registration"))
	assert.ErrorIs(t, checkDeadline(&deadline, time.Date(2025, time.August, 31, 17, 0, 0, 0, time.UTC), "registration"), appErrors.ErrDeadlinePassed)
	assert.ErrorIs(t, checkDeadline(nil, time.Now(), "drop"), appErrors.ErrDeadlineNotSet)
}
