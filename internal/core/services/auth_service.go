package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"edhub/internal/adapters/persistence/models"
	"edhub/internal/adapters/persistence/repositories"
	"edhub/internal/config"
	"edhub/internal/core/domain"
	"edhub/internal/pkg/jwt"
	"edhub/internal/pkg/password"
)

// AuthService handles sign-up, sign-in and session validation. The account
// holds at most one valid session: every successful sign-in overwrites the
// stored session token, invalidating previously issued credentials.
type AuthService struct {
	userRepo repositories.UserRepository
	cfg      *config.Config
}

// NewAuthService creates a new auth service
func NewAuthService(userRepo repositories.UserRepository, cfg *config.Config) *AuthService {
	return &AuthService{
		userRepo: userRepo,
		cfg:      cfg,
	}
}

// SignUpInput represents registration input
type SignUpInput struct {
	Name              string `json:"name" validate:"required,min=2,max=100"`
	Email             string `json:"email" validate:"required,email"`
	PhoneNumber       string `json:"phone_number" validate:"required,min=10,max=15,numeric"`
	ParentPhoneNumber string `json:"parent_phone_number" validate:"omitempty,min=10,max=15,numeric"`
	Password          string `json:"password" validate:"required,min=6"`
	Level             string `json:"level" validate:"required"`
	Government        string `json:"government" validate:"required"`
	DeviceInfo        string `json:"device_info"`
}

// SignInInput represents login input
type SignInInput struct {
	Email      string `json:"email" validate:"required,email"`
	Password   string `json:"password" validate:"required"`
	DeviceInfo string `json:"device_info"`
}

// AuthResponse represents authentication response
type AuthResponse struct {
	User            *models.UserResponse `json:"user"`
	Token           string               `json:"token"`
	HadPriorSession bool                 `json:"had_prior_session"`
}

// SignUp registers a new student account and opens its first session
func (s *AuthService) SignUp(ctx context.Context, input *SignUpInput) (*AuthResponse, error) {
	exists, err := s.userRepo.ExistsByEmailOrPhone(ctx, input.Email, input.PhoneNumber)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, domain.ErrUserAlreadyExists
	}

	hashed, err := password.Hash(input.Password)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		Name:              input.Name,
		Email:             input.Email,
		PhoneNumber:       input.PhoneNumber,
		ParentPhoneNumber: input.ParentPhoneNumber,
		Password:          hashed,
		Level:             input.Level,
		Government:        input.Government,
		Role:              string(domain.RoleUser),
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, domain.ErrUserAlreadyExists
		}
		return nil, err
	}

	token, _, err := s.openSession(ctx, user, input.DeviceInfo)
	if err != nil {
		return nil, err
	}

	return &AuthResponse{User: user.ToResponse(), Token: token}, nil
}

// SignIn authenticates credentials and issues a fresh session credential.
// A banned account is rejected before any token is issued, carrying the
// stored ban reason. HadPriorSession tells the UI a previous device was
// just logged out.
func (s *AuthService) SignIn(ctx context.Context, input *SignInInput) (*AuthResponse, error) {
	user, err := s.userRepo.GetByEmail(ctx, input.Email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrInvalidCredentials
		}
		return nil, err
	}

	if !password.Verify(input.Password, user.Password) {
		return nil, domain.ErrInvalidCredentials
	}

	if user.IsBanned {
		return nil, &domain.BannedError{Reason: user.BanReason}
	}

	hadPrior := user.SessionTokenHash != ""

	token, _, err := s.openSession(ctx, user, input.DeviceInfo)
	if err != nil {
		return nil, err
	}

	return &AuthResponse{
		User:            user.ToResponse(),
		Token:           token,
		HadPriorSession: hadPrior,
	}, nil
}

// openSession generates a random session token, stores its hash on the user
// row in a single UPDATE (the overwrite is the invalidation of any prior
// session) and returns the signed credential.
func (s *AuthService) openSession(ctx context.Context, user *models.User, deviceInfo string) (string, string, error) {
	sessionToken := uuid.NewString()
	now := time.Now()

	err := s.userRepo.UpdateFields(ctx, user.ID, map[string]interface{}{
		"session_token_hash": password.HashToken(sessionToken),
		"session_device":     deviceInfo,
		"session_created_at": now,
		"last_active":        now,
	})
	if err != nil {
		return "", "", err
	}

	signed, err := jwt.GenerateToken(user.ID, user.Role, sessionToken, s.cfg.JWT.Secret, s.cfg.JWT.ExpiryHours)
	if err != nil {
		return "", "", err
	}

	return signed, sessionToken, nil
}

// Authenticate validates a signed credential against the stored session.
// A credential whose embedded session token no longer matches the stored
// one was superseded by a newer sign-in and is rejected.
func (s *AuthService) Authenticate(ctx context.Context, signedToken string) (*models.User, error) {
	claims, err := jwt.ValidateToken(signedToken, s.cfg.JWT.Secret)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, domain.ErrTokenExpired
		}
		return nil, domain.ErrUnauthorized
	}

	user, err := s.userRepo.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrUnauthorized
		}
		return nil, err
	}

	if user.SessionTokenHash == "" || user.SessionTokenHash != password.HashToken(claims.SessionToken) {
		return nil, domain.ErrSessionInvalid
	}

	if user.IsBanned {
		return nil, &domain.BannedError{Reason: user.BanReason}
	}

	// Best effort, losing an update here is harmless
	now := time.Now()
	_ = s.userRepo.UpdateFields(ctx, user.ID, map[string]interface{}{"last_active": now})
	user.LastActive = &now

	return user, nil
}

// SignOut clears the stored session, permanently invalidating every
// outstanding credential for the account
func (s *AuthService) SignOut(ctx context.Context, userID uint) error {
	return s.userRepo.UpdateFields(ctx, userID, map[string]interface{}{
		"session_token_hash": "",
		"session_device":     "",
		"session_created_at": nil,
	})
}
