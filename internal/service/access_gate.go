package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/noah-isme/univ-erp-api/internal/models"
	appErrors "github.com/noah-isme/univ-erp-api/pkg/errors"
)

type settingsSnapshotter interface {
	Snapshot(ctx context.Context) (models.Settings, error)
}

type sectionFinder interface {
	FindByID(ctx context.Context, id int64) (*models.Section, error)
}

// AccessGate answers the two cross-cutting questions every workflow asks: is the system
// writable, and may this instructor grade this section.
type AccessGate struct {
	settings settingsSnapshotter
	sections sectionFinder
}

// NewAccessGate constructs the gate.
func NewAccessGate(settings settingsSnapshotter, sections sectionFinder) *AccessGate {
	return &AccessGate{settings: settings, sections: sections}
}

// IsMaintenanceOn reports the maintenance flag.
func (g *AccessGate) IsMaintenanceOn(ctx context.Context) (bool, error) {
	snapshot, err := g.settings.Snapshot(ctx)
	if err != nil {
		return false, err
	}
	return snapshot.MaintenanceOn, nil
}

// RequireWritable returns the settings snapshot, or MAINTENANCE_MODE when writes are blocked.
func (g *AccessGate) RequireWritable(ctx context.Context) (models.Settings, error) {
	snapshot, err := g.settings.Snapshot(ctx)
	if err != nil {
		return models.Settings{}, err
	}
	if snapshot.MaintenanceOn {
		return snapshot, appErrors.ErrMaintenance
	}
	return snapshot, nil
}

// CanInstructorGrade reports whether actor is the instructor assigned to the section.
// A missing section is simply not gradeable; store failures are returned as errors.
func (g *AccessGate) CanInstructorGrade(ctx context.Context, actor models.Actor, sectionID int64) (bool, error) {
	if !actor.Is(models.RoleInstructor) {
		return false, nil
	}
	section, err := g.sections.FindByID(ctx, sectionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load section")
	}
	return section.TaughtBy(actor.AccountID), nil
}

func requireRole(actor models.Actor, roles ...models.UserRole) error {
	for _, role := range roles {
		if actor.Is(role) {
			return nil
		}
	}
	return appErrors.ErrForbidden
}

// checkDeadline enforces "deadline configured and today is on or before it", comparing
// calendar dates in the deadline's location.
func checkDeadline(deadline *time.Time, now time.Time, what string) error {
	if deadline == nil {
		return appErrors.Clone(appErrors.ErrDeadlineNotSet, what+" deadline has not been configured")
	}
	local := now.In(deadline.Location())
	today := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, deadline.Location())
	last := time.Date(deadline.Year(), deadline.Month(), deadline.Day(), 0, 0, 0, 0, deadline.Location())
	if today.After(last) {
		return appErrors.Clone(appErrors.ErrDeadlinePassed, what+" deadline has passed")
	}
	return nil
}
