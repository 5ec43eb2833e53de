package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/noah-isme/univ-erp-api/internal/models"
	appErrors "github.com/noah-isme/univ-erp-api/pkg/errors"
	"github.com/noah-isme/univ-erp-api/pkg/password"
)

type authCredentialRepository interface {
	FindByUsername(ctx context.Context, username string) (*models.Account, error)
	FindByID(ctx context.Context, id int64) (*models.Account, error)
	UpdatePasswordHash(ctx context.Context, id int64, passwordHash string) error
	UpdateLastLogin(ctx context.Context, id int64, ts time.Time) error
}

type profileDirectory interface {
	FindStudentByUserID(ctx context.Context, userID int64) (*models.StudentProfile, error)
	FindInstructorByUserID(ctx context.Context, userID int64) (*models.InstructorProfile, error)
}

// AuthConfig defines configuration for authentication flows.
type AuthConfig struct {
	AccessTokenSecret string
	AccessTokenExpiry time.Duration
	Issuer            string
	MinPasswordLength int
}

// AuthService provides authentication use cases.
type AuthService struct {
	credentials authCredentialRepository
	profiles    profileDirectory
	hasher      PasswordHasher
	validator   *validator.Validate
	logger      *zap.Logger
	config      AuthConfig
	now         func() time.Time
}

// NewAuthService constructs an AuthService instance.
func NewAuthService(credentials authCredentialRepository, profiles profileDirectory, hasher PasswordHasher, validate *validator.Validate, logger *zap.Logger, config AuthConfig) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if config.MinPasswordLength <= 0 {
		config.MinPasswordLength = 6
	}
	return &AuthService{
		credentials: credentials,
		profiles:    profiles,
		hasher:      hasher,
		validator:   validate,
		logger:      logger,
		config:      config,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Login authenticates a user and returns an access token. Students and instructors must
// also have a profile in the academic store.
func (s *AuthService) Login(ctx context.Context, req models.LoginRequest) (*models.LoginResponse, error) {
	req.Username = strings.TrimSpace(req.Username)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid login payload")
	}

	account, err := s.credentials.FindByUsername(ctx, req.Username)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrInvalidCredentials
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch account")
	}

	ok, err := s.hasher.Verify(account.PasswordHash, req.Password)
	if err != nil {
		s.logger.Warn("stored password hash is unreadable", zap.Int64("account_id", account.ID), zap.Error(err))
	}
	if !ok {
		return nil, appErrors.ErrInvalidCredentials
	}

	displayName, err := s.displayName(ctx, account)
	if err != nil {
		return nil, err
	}

	issuedAt := s.now()
	if err := s.credentials.UpdateLastLogin(ctx, account.ID, issuedAt); err != nil {
		s.logger.Warn("failed to update last login", zap.Int64("account_id", account.ID), zap.Error(err))
	}

	token, err := s.generateAccessToken(account, issuedAt)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create access token")
	}

	return &models.LoginResponse{
		AccessToken: token,
		ExpiresIn:   int64(s.config.AccessTokenExpiry.Seconds()),
		IssuedAt:    issuedAt,
		User: models.AccountInfo{
			ID:          account.ID,
			Username:    account.Username,
			Role:        account.Role,
			DisplayName: displayName,
		},
	}, nil
}

// displayName loads the profile matching the account's role. A missing profile for a
// student or instructor is an integrity fault.
func (s *AuthService) displayName(ctx context.Context, account *models.Account) (string, error) {
	var (
		name string
		err  error
	)
	switch account.Role {
	case models.RoleStudent:
		var profile *models.StudentProfile
		if profile, err = s.profiles.FindStudentByUserID(ctx, account.ID); err == nil {
			name = profile.RollNo
		}
	case models.RoleInstructor:
		var profile *models.InstructorProfile
		if profile, err = s.profiles.FindInstructorByUserID(ctx, account.ID); err == nil {
			name = profile.Name
		}
	default:
		return account.Username, nil
	}

	if err == nil {
		return name, nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		s.logger.Error("account has no profile", zap.Int64("account_id", account.ID), zap.String("role", string(account.Role)))
		return "", appErrors.ErrInconsistentState
	}
	return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load profile")
}

// ChangePassword replaces the caller's password after verifying the old one.
func (s *AuthService) ChangePassword(ctx context.Context, actor models.Actor, req models.ChangePasswordRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid change password payload")
	}
	if len(req.NewPassword) < s.config.MinPasswordLength {
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("new password must be at least %d characters", s.config.MinPasswordLength))
	}
	if password.TooLong(req.NewPassword) {
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("new password must be at most %d bytes", password.MaxBytes))
	}
	if req.NewPassword == req.OldPassword {
		return appErrors.Clone(appErrors.ErrValidation, "new password must differ from the old one")
	}

	account, err := s.credentials.FindByID(ctx, actor.AccountID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "account not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load account")
	}

	ok, err := s.hasher.Verify(account.PasswordHash, req.OldPassword)
	if err != nil || !ok {
		return appErrors.Clone(appErrors.ErrForbidden, "old password does not match")
	}

	newHash, err := s.hasher.Hash(req.NewPassword)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}
	if err := s.credentials.UpdatePasswordHash(ctx, account.ID, newHash); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update password")
	}

	s.logger.Info("password changed", zap.Int64("account_id", account.ID))
	return nil
}

// ValidateToken parses and validates an access token returning the claims.
func (s *AuthService) ValidateToken(tokenString string) (*models.JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &models.JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.config.AccessTokenSecret), nil
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid token")
	}

	claims, ok := token.Claims.(*models.JWTClaims)
	if !ok || !token.Valid || !claims.Role.Valid() {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token claims")
	}

	return claims, nil
}

func (s *AuthService) generateAccessToken(account *models.Account, issuedAt time.Time) (string, error) {
	claims := &models.JWTClaims{
		AccountID: account.ID,
		Username:  account.Username,
		Role:      account.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.config.Issuer,
			Subject:   fmt.Sprintf("%d", account.ID),
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(s.config.AccessTokenExpiry)),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			NotBefore: jwt.NewNumericDate(issuedAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.config.AccessTokenSecret))
}
