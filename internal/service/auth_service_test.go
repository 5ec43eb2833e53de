package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/univ-erp-api/internal/models"
	appErrors "github.com/noah-isme/univ-erp-api/pkg/errors"
)

func newAuthFixture() (*AuthService, *fakeCredentials, *fakeAcademic) {
	credentials := newFakeCredentials()
	store := newFakeAcademic()
	credentials.add(1, "admin", "hashed:admin123", models.RoleAdmin)
	credentials.add(10, "inst1", "hashed:inst123", models.RoleInstructor)
	credentials.add(100, "stu1", "hashed:stu123", models.RoleStudent)
	store.instructors[10] = &models.InstructorProfile{UserID: 10, Name: "Dr. Rao"}
	store.students[100] = &models.StudentProfile{UserID: 100, RollNo: "2025CS001"}

	svc := NewAuthService(credentials, fakeProfileRepo{store}, plainHasher{}, nil, nil, AuthConfig{
		AccessTokenSecret: "test-secret",
		AccessTokenExpiry: time.Hour,
		Issuer:            "univ-erp",
	})
	return svc, credentials, store
}

func TestLoginIssuesValidToken(t *testing.T) {
	svc, credentials, _ := newAuthFixture()

	resp, err := svc.Login(context.Background(), models.LoginRequest{Username: "inst1", Password: "inst123"})
	require.NoError(t, err)
	assert.Equal(t, "Dr. Rao", resp.User.DisplayName)
	assert.Equal(t, int64(3600), resp.ExpiresIn)
	assert.Contains(t, credentials.lastLogin, int64(10))

	claims, err := svc.ValidateToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, models.Actor{AccountID: 10, Username: "inst1", Role: models.RoleInstructor}, claims.Actor())
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	svc, _, _ := newAuthFixture()

	_, err := svc.Login(context.Background(), models.LoginRequest{Username: "stu1", Password: "wrong"})
	assert.ErrorIs(t, err, appErrors.ErrInvalidCredentials)

	_, err = svc.Login(context.Background(), models.LoginRequest{Username: "ghost", Password: "stu123"})
	assert.ErrorIs(t, err, appErrors.ErrInvalidCredentials)

	_, err = svc.Login(context.Background(), models.LoginRequest{Username: "", Password: "x"})
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestLoginWithoutProfileIsFault(t *testing.T) {
	svc, credentials, store := newAuthFixture()
	delete(store.students, 100)

	_, err := svc.Login(context.Background(), models.LoginRequest{Username: "stu1", Password: "stu123"})
	assert.ErrorIs(t, err, appErrors.ErrInconsistentState)
	assert.NotContains(t, credentials.lastLogin, int64(100))
}

func TestChangePassword(t *testing.T) {
	svc, credentials, _ := newAuthFixture()
	ctx := context.Background()

	err := svc.ChangePassword(ctx, studentActor, models.ChangePasswordRequest{OldPassword: "stu123", NewPassword: "short"})
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	err = svc.ChangePassword(ctx, studentActor, models.ChangePasswordRequest{OldPassword: "stu123", NewPassword: "stu123"})
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	err = svc.ChangePassword(ctx, studentActor, models.ChangePasswordRequest{OldPassword: "nope", NewPassword: "longer-one"})
	assert.ErrorIs(t, err, appErrors.ErrForbidden)

	require.NoError(t, svc.ChangePassword(ctx, studentActor, models.ChangePasswordRequest{OldPassword: "stu123", NewPassword: "longer-one"}))
	assert.Equal(t, "hashed:longer-one", credentials.accounts[100].PasswordHash)
}

func TestValidateTokenRejectsForeignSignature(t *testing.T) {
	svc, _, _ := newAuthFixture()
	resp, err := svc.Login(context.Background(), models.LoginRequest{Username: "admin", Password: "admin123"})
	require.NoError(t, err)

	other := NewAuthService(nil, nil, plainHasher{}, nil, nil, AuthConfig{AccessTokenSecret: "other", AccessTokenExpiry: time.Hour})
	_, err = other.ValidateToken(resp.AccessToken)
	assert.ErrorIs(t, err, appErrors.ErrUnauthorized)
}

func TestChangePasswordRejectsPasswordBcryptCannotHash(t *testing.T) {
	svc, credentials, _ := newAuthFixture()
	before := credentials.accounts[100].PasswordHash

	err := svc.ChangePassword(context.Background(), studentActor, models.ChangePasswordRequest{OldPassword: "stu123", NewPassword: strings.Repeat("密", 30)})
	assert.ErrorIs(t, err, appErrors.ErrValidation)
	assert.False(t, appErrors.IsFault(err))

	err = svc.ChangePassword(context.Background(), studentActor, models.ChangePasswordRequest{OldPassword: "stu123", NewPassword: strings.Repeat("x", 73)})
	assert.ErrorIs(t, err, appErrors.ErrValidation)
	assert.Equal(t, before, credentials.accounts[100].PasswordHash)
}
