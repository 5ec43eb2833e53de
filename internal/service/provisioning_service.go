package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/univ-erp-api/internal/models"
	"github.com/noah-isme/univ-erp-api/internal/repository"
	appErrors "github.com/noah-isme/univ-erp-api/pkg/errors"
	"github.com/noah-isme/univ-erp-api/pkg/logger"
	"github.com/noah-isme/univ-erp-api/pkg/password"
)

const compensationTimeout = 10 * time.Second

type credentialWriter interface {
	Create(ctx context.Context, username, passwordHash string, role models.UserRole) (int64, error)
	DeleteByID(ctx context.Context, id int64) error
}

type profileWriter interface {
	CreateStudent(ctx context.Context, profile *models.StudentProfile) error
	CreateInstructor(ctx context.Context, profile *models.InstructorProfile) error
}

// PasswordHasher hashes and verifies passwords.
type PasswordHasher interface {
	Hash(plain string) (string, error)
	Verify(hash, plain string) (bool, error)
}

type writeGate interface {
	RequireWritable(ctx context.Context) (models.Settings, error)
}

// ProvisioningService creates an account in the credential store and its profile in the
// academic store. The two stores do not share a transaction, so a failed profile insert
// is compensated by deleting the credential. If that also fails the run ends INCONSISTENT.
type ProvisioningService struct {
	credentials credentialWriter
	profiles    profileWriter
	gate        writeGate
	hasher      PasswordHasher
	validator   *validator.Validate
	metrics     *MetricsService
	logger      *zap.Logger
	newSagaID   func() string
}

// NewProvisioningService constructs the service.
func NewProvisioningService(credentials credentialWriter, profiles profileWriter, gate writeGate, hasher PasswordHasher, validate *validator.Validate, metrics *MetricsService, logger *zap.Logger) *ProvisioningService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProvisioningService{
		credentials: credentials,
		profiles:    profiles,
		gate:        gate,
		hasher:      hasher,
		validator:   validate,
		metrics:     metrics,
		logger:      logger,
		newSagaID:   uuid.NewString,
	}
}

// CreateAccount provisions a new user. Only administrators may call it.
func (s *ProvisioningService) CreateAccount(ctx context.Context, actor models.Actor, req models.CreateAccountRequest) (*models.ProvisioningResult, error) {
	if err := requireRole(actor, models.RoleAdmin); err != nil {
		return nil, err
	}
	if _, err := s.gate.RequireWritable(ctx); err != nil {
		return nil, err
	}
	req.Username = strings.TrimSpace(req.Username)
	req.RollNo = strings.TrimSpace(req.RollNo)
	req.Name = strings.TrimSpace(req.Name)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid account payload")
	}
	if strings.TrimSpace(req.Password) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "password must not be blank")
	}
	if password.TooLong(req.Password) {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("password must be at most %d bytes", password.MaxBytes))
	}

	result := &models.ProvisioningResult{SagaID: s.newSagaID(), Username: req.Username, Role: req.Role, State: models.SagaPending}
	log := logger.WithContext(ctx, s.logger).With(zap.String("saga_id", result.SagaID), zap.String("username", req.Username), zap.String("role", string(req.Role)))

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		s.metrics.RecordWorkflow(WorkflowProvisioning, OutcomeFault)
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}

	accountID, err := s.credentials.Create(ctx, req.Username, hash, req.Role)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			s.metrics.RecordWorkflow(WorkflowProvisioning, OutcomeRefused)
			return nil, appErrors.Clone(appErrors.ErrDuplicateUsername, "username "+req.Username+" already exists")
		}
		s.metrics.RecordWorkflow(WorkflowProvisioning, OutcomeFault)
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create credential")
	}
	result.AccountID = accountID
	result.State = models.SagaCredentialCreated
	log = log.With(zap.Int64("account_id", accountID))
	log.Debug("credential created")

	if profileErr := s.createProfile(ctx, accountID, req); profileErr != nil {
		return nil, s.compensate(ctx, log, result, profileErr)
	}

	result.State = models.SagaProfileCreated
	s.metrics.RecordWorkflow(WorkflowProvisioning, OutcomeSuccess)
	log.Info("account provisioned")
	return result, nil
}

func (s *ProvisioningService) createProfile(ctx context.Context, accountID int64, req models.CreateAccountRequest) error {
	switch req.Role {
	case models.RoleStudent:
		return s.profiles.CreateStudent(ctx, &models.StudentProfile{UserID: accountID, RollNo: req.RollNo, Program: req.Program, Year: req.Year})
	case models.RoleInstructor:
		return s.profiles.CreateInstructor(ctx, &models.InstructorProfile{UserID: accountID, Name: req.Name, Department: req.Department})
	default:
		return nil
	}
}

// compensate deletes the credential after a profile failure. The delete runs detached from
// the caller's cancellation so an aborted request does not strand the credential.
func (s *ProvisioningService) compensate(ctx context.Context, log *zap.Logger, result *models.ProvisioningResult, profileErr error) error {
	reason := s.profileFailure(profileErr)

	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), compensationTimeout)
	defer cancel()
	if err := s.credentials.DeleteByID(cctx, result.AccountID); err != nil {
		result.State = models.SagaInconsistent
		log.Error("provisioning left credential without profile",
			zap.String("state", string(result.State)),
			zap.NamedError("profile_error", profileErr),
			zap.NamedError("compensation_error", err),
		)
		s.metrics.RecordInconsistency(WorkflowProvisioning)
		return appErrors.Wrap(errors.Join(profileErr, err), appErrors.ErrInconsistentState.Code, appErrors.ErrInconsistentState.Status, appErrors.ErrInconsistentState.Message)
	}

	result.State = models.SagaRolledBack
	log.Warn("provisioning rolled back", zap.String("state", string(result.State)), zap.Error(profileErr))
	if reason.IsFault() {
		s.metrics.RecordWorkflow(WorkflowProvisioning, OutcomeFault)
	} else {
		s.metrics.RecordWorkflow(WorkflowProvisioning, OutcomeRefused)
	}
	return reason
}

func (s *ProvisioningService) profileFailure(err error) *appErrors.Error {
	if errors.Is(err, repository.ErrDuplicate) {
		return appErrors.Clone(appErrors.ErrConflict, "profile already exists or roll number is taken")
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create profile")
}
