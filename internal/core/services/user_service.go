package services

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"edhub/internal/adapters/persistence/models"
	"edhub/internal/adapters/persistence/repositories"
	"edhub/internal/core/domain"
)

// UserService handles user management business logic
type UserService struct {
	userRepo       repositories.UserRepository
	enrollmentRepo repositories.EnrollmentRepository
}

// NewUserService creates a new user service
func NewUserService(userRepo repositories.UserRepository, enrollmentRepo repositories.EnrollmentRepository) *UserService {
	return &UserService{
		userRepo:       userRepo,
		enrollmentRepo: enrollmentRepo,
	}
}

// UpdateProfileInput for profile updates
type UpdateProfileInput struct {
	Name              *string `json:"name" validate:"omitempty,min=2,max=100"`
	ParentPhoneNumber *string `json:"parent_phone_number" validate:"omitempty,min=10,max=15,numeric"`
	Level             *string `json:"level"`
	Government        *string `json:"government"`
}

// GetByID returns a single user
func (s *UserService) GetByID(ctx context.Context, id uint) (*models.User, error) {
	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

// UpdateProfile updates the caller's own profile fields
func (s *UserService) UpdateProfile(ctx context.Context, id uint, input *UpdateProfileInput) (*models.User, error) {
	fields := map[string]interface{}{}
	if input.Name != nil {
		fields["name"] = *input.Name
	}
	if input.ParentPhoneNumber != nil {
		fields["parent_phone_number"] = *input.ParentPhoneNumber
	}
	if input.Level != nil {
		fields["level"] = *input.Level
	}
	if input.Government != nil {
		fields["government"] = *input.Government
	}

	if len(fields) > 0 {
		if err := s.userRepo.UpdateFields(ctx, id, fields); err != nil {
			return nil, err
		}
	}

	return s.GetByID(ctx, id)
}

// List lists users for the admin view
func (s *UserService) List(ctx context.Context, search string, offset, limit int) ([]*models.User, int64, error) {
	return s.userRepo.List(ctx, search, offset, limit)
}

// Ban marks a user banned with a reason and kills the active session, so
// the ban takes effect on the next request rather than the next sign-in
func (s *UserService) Ban(ctx context.Context, id uint, reason string) error {
	if _, err := s.GetByID(ctx, id); err != nil {
		return err
	}
	return s.userRepo.UpdateFields(ctx, id, map[string]interface{}{
		"is_banned":          true,
		"ban_reason":         reason,
		"session_token_hash": "",
		"session_device":     "",
		"session_created_at": nil,
	})
}

// Unban lifts a ban
func (s *UserService) Unban(ctx context.Context, id uint) error {
	if _, err := s.GetByID(ctx, id); err != nil {
		return err
	}
	return s.userRepo.UpdateFields(ctx, id, map[string]interface{}{
		"is_banned":  false,
		"ban_reason": "",
	})
}

// Delete removes an account and cascades to its enrollments. This is the
// only path that deletes enrollment rows.
func (s *UserService) Delete(ctx context.Context, id uint) error {
	if _, err := s.GetByID(ctx, id); err != nil {
		return err
	}
	if err := s.enrollmentRepo.DeleteByStudent(ctx, id); err != nil {
		return err
	}
	return s.userRepo.Delete(ctx, id)
}
