package service

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/univ-erp-api/internal/models"
	appErrors "github.com/noah-isme/univ-erp-api/pkg/errors"
)

const settingsCacheKey = "settings:snapshot"

type settingsRepository interface {
	ListByKeys(ctx context.Context, keys []string) ([]models.Setting, error)
	Upsert(ctx context.Context, key, value string) error
}

// SettingsService loads and updates the administrative settings. Snapshots are cached
// for a short TTL and overwritten on every write. When the cache cannot be corrected after
// a write, reads go straight to the store until the stale entry has expired.
type SettingsService struct {
	repo     settingsRepository
	cache    *CacheService
	cacheTTL time.Duration
	location *time.Location
	logger   *zap.Logger
	now      func() time.Time

	mu          sync.Mutex
	generation  uint64
	bypassUntil time.Time
}

// NewSettingsService constructs the service. Deadlines are interpreted as calendar dates in loc.
func NewSettingsService(repo settingsRepository, cache *CacheService, cacheTTL time.Duration, loc *time.Location, logger *zap.Logger) *SettingsService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &SettingsService{repo: repo, cache: cache, cacheTTL: cacheTTL, location: loc, logger: logger, now: time.Now}
}

// Snapshot returns the current settings.
func (s *SettingsService) Snapshot(ctx context.Context) (models.Settings, error) {
	s.mu.Lock()
	generation := s.generation
	bypass := s.now().Before(s.bypassUntil)
	s.mu.Unlock()

	var snapshot models.Settings
	if !bypass {
		if hit, _ := s.cache.Get(ctx, settingsCacheKey, &snapshot); hit {
			return s.relocate(snapshot), nil
		}
	}

	snapshot, err := s.load(ctx)
	if err != nil {
		return models.Settings{}, err
	}
	if bypass {
		return snapshot, nil
	}

	// A write that landed while we were loading owns the cache entry.
	s.mu.Lock()
	if s.generation == generation {
		_ = s.cache.Set(ctx, settingsCacheKey, snapshot, s.cacheTTL)
	}
	s.mu.Unlock()
	return snapshot, nil
}

func (s *SettingsService) load(ctx context.Context) (models.Settings, error) {
	rows, err := s.repo.ListByKeys(ctx, models.SettingKeys)
	if err != nil {
		return models.Settings{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load settings")
	}
	return s.parse(rows), nil
}

// SetMaintenance toggles maintenance mode. It is the one write allowed while maintenance is on.
func (s *SettingsService) SetMaintenance(ctx context.Context, actor models.Actor, on bool) (models.Settings, error) {
	if err := requireRole(actor, models.RoleAdmin); err != nil {
		return models.Settings{}, err
	}
	if err := s.write(ctx, models.SettingMaintenanceOn, strconv.FormatBool(on)); err != nil {
		return models.Settings{}, err
	}
	s.logger.Info("maintenance toggled", zap.Bool("maintenance_on", on), zap.Int64("actor_id", actor.AccountID))
	return s.Snapshot(ctx)
}

// SetRegistrationDeadline stores the last day registration is open (YYYY-MM-DD).
func (s *SettingsService) SetRegistrationDeadline(ctx context.Context, actor models.Actor, date string) (models.Settings, error) {
	return s.setDeadline(ctx, actor, models.SettingRegistrationDeadline, date)
}

// SetDropDeadline stores the last day drops are accepted (YYYY-MM-DD).
func (s *SettingsService) SetDropDeadline(ctx context.Context, actor models.Actor, date string) (models.Settings, error) {
	return s.setDeadline(ctx, actor, models.SettingDropDeadline, date)
}

// SetCurrentTerm stores the semester and year used by term-scoped views.
func (s *SettingsService) SetCurrentTerm(ctx context.Context, actor models.Actor, semester string, year int) (models.Settings, error) {
	if err := s.requireAdminWritable(ctx, actor); err != nil {
		return models.Settings{}, err
	}
	semester = strings.TrimSpace(semester)
	if semester == "" || year <= 0 {
		return models.Settings{}, appErrors.Clone(appErrors.ErrValidation, "semester and year are required")
	}
	if err := s.write(ctx, models.SettingCurrentSemester, semester); err != nil {
		return models.Settings{}, err
	}
	if err := s.write(ctx, models.SettingCurrentYear, strconv.Itoa(year)); err != nil {
		return models.Settings{}, err
	}
	return s.Snapshot(ctx)
}

func (s *SettingsService) setDeadline(ctx context.Context, actor models.Actor, key, date string) (models.Settings, error) {
	if err := s.requireAdminWritable(ctx, actor); err != nil {
		return models.Settings{}, err
	}
	parsed, err := time.ParseInLocation(models.DateLayout, strings.TrimSpace(date), s.location)
	if err != nil {
		return models.Settings{}, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "date must be formatted as YYYY-MM-DD")
	}
	if err := s.write(ctx, key, parsed.Format(models.DateLayout)); err != nil {
		return models.Settings{}, err
	}
	s.logger.Info("deadline updated", zap.String("key", key), zap.String("date", parsed.Format(models.DateLayout)), zap.Int64("actor_id", actor.AccountID))
	return s.Snapshot(ctx)
}

func (s *SettingsService) requireAdminWritable(ctx context.Context, actor models.Actor) error {
	if err := requireRole(actor, models.RoleAdmin); err != nil {
		return err
	}
	current, err := s.Snapshot(ctx)
	if err != nil {
		return err
	}
	if current.MaintenanceOn {
		return appErrors.ErrMaintenance
	}
	return nil
}

func (s *SettingsService) write(ctx context.Context, key, value string) error {
	if err := s.repo.Upsert(ctx, key, value); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update setting")
	}
	s.refreshCache(ctx, key)
	return nil
}

// refreshCache replaces the cached snapshot with the stored one after a write. If neither
// an overwrite nor a delete succeeds, the cache is bypassed for one TTL.
func (s *SettingsService) refreshCache(ctx context.Context, key string) {
	if !s.cache.Enabled() {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generation++

	fresh, err := s.load(ctx)
	if err == nil {
		if err = s.cache.Set(ctx, settingsCacheKey, fresh, s.cacheTTL); err == nil {
			return
		}
	}
	if delErr := s.cache.Invalidate(ctx, settingsCacheKey); delErr == nil {
		return
	}
	s.bypassUntil = s.now().Add(s.staleWindow())
	s.logger.Error("settings cache could not be corrected, reading from store",
		zap.String("key", key), zap.Time("bypass_until", s.bypassUntil), zap.Error(err))
}

func (s *SettingsService) staleWindow() time.Duration {
	if s.cacheTTL > 0 {
		return s.cacheTTL
	}
	return time.Minute
}

func (s *SettingsService) parse(rows []models.Setting) models.Settings {
	var snapshot models.Settings
	for _, row := range rows {
		value := strings.TrimSpace(row.Value)
		switch row.Key {
		case models.SettingMaintenanceOn:
			snapshot.MaintenanceOn = strings.EqualFold(value, "true")
		case models.SettingCurrentSemester:
			snapshot.CurrentSemester = value
		case models.SettingCurrentYear:
			year, err := strconv.Atoi(value)
			if err != nil {
				s.logger.Error("malformed setting", zap.String("key", row.Key), zap.String("value", row.Value))
				continue
			}
			snapshot.CurrentYear = year
		case models.SettingRegistrationDeadline:
			snapshot.RegistrationDeadline = s.parseDate(row)
		case models.SettingDropDeadline:
			snapshot.DropDeadline = s.parseDate(row)
		}
	}
	return snapshot
}

// parseDate treats a blank or malformed date as "not configured".
func (s *SettingsService) parseDate(row models.Setting) *time.Time {
	value := strings.TrimSpace(row.Value)
	if value == "" {
		return nil
	}
	parsed, err := time.ParseInLocation(models.DateLayout, value, s.location)
	if err != nil {
		s.logger.Error("malformed setting", zap.String("key", row.Key), zap.String("value", row.Value))
		return nil
	}
	return &parsed
}

// relocate restores the configured location on deadlines decoded from the cache.
func (s *SettingsService) relocate(snapshot models.Settings) models.Settings {
	for _, d := range []**time.Time{&snapshot.RegistrationDeadline, &snapshot.DropDeadline} {
		if *d == nil {
			continue
		}
		t := **d
		local := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, s.location)
		*d = &local
	}
	return snapshot
}
