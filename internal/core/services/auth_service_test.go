package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"edhub/internal/adapters/persistence/repositories"
	"edhub/internal/config"
	"edhub/internal/core/domain"
)

func newAuthService(db *gorm.DB) *AuthService {
	cfg := &config.Config{
		AppMode: "dev",
		JWT: config.JWTConfig{
			Secret:      "test_jwt_secret",
			ExpiryHours: 24,
		},
	}
	return NewAuthService(repositories.NewUserRepository(db), cfg)
}

func signUpInput(email string) *SignUpInput {
	return &SignUpInput{
		Name:        "Sara Ali",
		Email:       email,
		PhoneNumber: "01022334455",
		Password:    "secret123",
		Level:       "grade-11",
		Government:  "Giza",
		DeviceInfo:  "laptop",
	}
}

func TestSignUp_OpensFirstSession(t *testing.T) {
	db := newTestDB(t)
	svc := newAuthService(db)
	ctx := context.Background()

	resp, err := svc.SignUp(ctx, signUpInput("sara@test.com"))
	require.NoError(t, err)
	require.NotEmpty(t, resp.Token)
	assert.Equal(t, string(domain.RoleUser), resp.User.Role)
	assert.False(t, resp.HadPriorSession)

	user, err := svc.Authenticate(ctx, resp.Token)
	require.NoError(t, err)
	assert.Equal(t, resp.User.ID, user.ID)
	assert.NotEmpty(t, user.SessionTokenHash)
}

func TestSignUp_DuplicateRejected(t *testing.T) {
	db := newTestDB(t)
	svc := newAuthService(db)
	ctx := context.Background()

	_, err := svc.SignUp(ctx, signUpInput("dup@test.com"))
	require.NoError(t, err)

	_, err = svc.SignUp(ctx, signUpInput("dup@test.com"))
	assert.ErrorIs(t, err, domain.ErrUserAlreadyExists)
}

func TestSignIn_SecondSignInInvalidatesFirstSession(t *testing.T) {
	db := newTestDB(t)
	svc := newAuthService(db)
	ctx := context.Background()

	signUp, err := svc.SignUp(ctx, signUpInput("single@test.com"))
	require.NoError(t, err)
	firstToken := signUp.Token

	second, err := svc.SignIn(ctx, &SignInInput{
		Email:      "single@test.com",
		Password:   "secret123",
		DeviceInfo: "phone",
	})
	require.NoError(t, err)
	assert.True(t, second.HadPriorSession)

	// The credential from the first device no longer validates.
	_, err = svc.Authenticate(ctx, firstToken)
	assert.ErrorIs(t, err, domain.ErrSessionInvalid)

	// The newest one does.
	_, err = svc.Authenticate(ctx, second.Token)
	assert.NoError(t, err)
}

func TestSignIn_WrongPassword(t *testing.T) {
	db := newTestDB(t)
	svc := newAuthService(db)
	ctx := context.Background()

	_, err := svc.SignUp(ctx, signUpInput("wrong@test.com"))
	require.NoError(t, err)

	_, err = svc.SignIn(ctx, &SignInInput{Email: "wrong@test.com", Password: "nope"})
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)

	_, err = svc.SignIn(ctx, &SignInInput{Email: "nobody@test.com", Password: "secret123"})
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
}

func TestSignIn_BannedAccountRejectedWithReason(t *testing.T) {
	db := newTestDB(t)
	svc := newAuthService(db)
	ctx := context.Background()

	resp, err := svc.SignUp(ctx, signUpInput("troub@test.com"))
	require.NoError(t, err)

	require.NoError(t, db.Table("users").Where("id = ?", resp.User.ID).Updates(map[string]interface{}{
		"is_banned":  true,
		"ban_reason": "sharing accounts",
	}).Error)

	_, err = svc.SignIn(ctx, &SignInInput{Email: "troub@test.com", Password: "secret123"})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrUserBanned)

	var banned *domain.BannedError
	require.True(t, errors.As(err, &banned))
	assert.Equal(t, "sharing accounts", banned.Reason)

	// Credentials issued before the ban stop working too.
	_, err = svc.Authenticate(ctx, resp.Token)
	assert.ErrorIs(t, err, domain.ErrUserBanned)
}

func TestSignOut_InvalidatesOutstandingCredential(t *testing.T) {
	db := newTestDB(t)
	svc := newAuthService(db)
	ctx := context.Background()

	resp, err := svc.SignUp(ctx, signUpInput("bye@test.com"))
	require.NoError(t, err)

	require.NoError(t, svc.SignOut(ctx, resp.User.ID))

	_, err = svc.Authenticate(ctx, resp.Token)
	assert.ErrorIs(t, err, domain.ErrSessionInvalid)
}

func TestAuthenticate_GarbageToken(t *testing.T) {
	db := newTestDB(t)
	svc := newAuthService(db)

	_, err := svc.Authenticate(context.Background(), "not.a.jwt")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}
