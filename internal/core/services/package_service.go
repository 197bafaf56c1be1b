package services

import (
	"context"
	"errors"
	"math"

	"gorm.io/gorm"

	"edhub/internal/adapters/persistence/models"
	"edhub/internal/adapters/persistence/repositories"
	"edhub/internal/core/domain"
)

// PackageService handles course bundles. Bundle pricing is a snapshot:
// originalPrice and discountPercentage are recomputed on create and on
// price/membership updates, never when a member course's own price later
// changes.
type PackageService struct {
	packageRepo repositories.PackageRepository
	courseRepo  repositories.CourseRepository
}

// NewPackageService creates a new package service
func NewPackageService(packageRepo repositories.PackageRepository, courseRepo repositories.CourseRepository) *PackageService {
	return &PackageService{
		packageRepo: packageRepo,
		courseRepo:  courseRepo,
	}
}

// PackageInput for creating/updating packages
type PackageInput struct {
	Name        string  `json:"name" validate:"required,min=2,max=150"`
	Description string  `json:"description" validate:"required"`
	ImageURL    string  `json:"image_url"`
	Price       float64 `json:"price" validate:"required,gt=0"`
	Level       string  `json:"level" validate:"required"`
	CourseIDs   []uint  `json:"course_ids" validate:"required,min=2"`
	Publish     bool    `json:"publish"`
}

// Create builds a package from its member courses, snapshotting the
// summed original price and derived discount
func (s *PackageService) Create(ctx context.Context, input *PackageInput) (*models.Package, error) {
	courses, err := s.loadCourses(ctx, input.CourseIDs)
	if err != nil {
		return nil, err
	}

	pkg := &models.Package{
		Name:        input.Name,
		Description: input.Description,
		ImageURL:    input.ImageURL,
		Price:       input.Price,
		Level:       input.Level,
		IsDraft:     !input.Publish,
	}
	pkg.PublishStatus = string(domain.PublishDraft)
	if input.Publish {
		pkg.PublishStatus = string(domain.PublishPublished)
	}
	applyPriceSnapshot(pkg, courses)

	if err := s.packageRepo.Create(ctx, pkg, courses); err != nil {
		return nil, err
	}
	return pkg, nil
}

// loadCourses fetches and validates the member course set
func (s *PackageService) loadCourses(ctx context.Context, courseIDs []uint) ([]models.Course, error) {
	if len(courseIDs) < 2 {
		return nil, domain.ErrPackageTooFewCourses
	}

	courses := make([]models.Course, 0, len(courseIDs))
	for _, id := range courseIDs {
		course, err := s.courseRepo.GetByID(ctx, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, domain.ErrCourseNotFound
			}
			return nil, err
		}
		courses = append(courses, *course)
	}
	return courses, nil
}

// applyPriceSnapshot recomputes originalPrice and discountPercentage from
// the current member course prices
func applyPriceSnapshot(pkg *models.Package, courses []models.Course) {
	var original float64
	for _, c := range courses {
		original += c.Price
	}
	pkg.OriginalPrice = original
	if original > 0 {
		pkg.DiscountPercentage = int(math.Round((original - pkg.Price) / original * 100))
	} else {
		pkg.DiscountPercentage = 0
	}
}

// Get returns a package with its member courses
func (s *PackageService) Get(ctx context.Context, id uint) (*models.Package, error) {
	pkg, err := s.packageRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrPackageNotFound
		}
		return nil, err
	}
	return pkg, nil
}

// Update updates a package, re-snapshotting pricing because either the
// bundle price or the membership changed
func (s *PackageService) Update(ctx context.Context, id uint, input *PackageInput) (*models.Package, error) {
	pkg, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	courses, err := s.loadCourses(ctx, input.CourseIDs)
	if err != nil {
		return nil, err
	}

	pkg.Name = input.Name
	pkg.Description = input.Description
	pkg.ImageURL = input.ImageURL
	pkg.Price = input.Price
	pkg.Level = input.Level
	pkg.IsDraft = !input.Publish
	pkg.PublishStatus = string(domain.PublishDraft)
	if input.Publish {
		pkg.PublishStatus = string(domain.PublishPublished)
	}
	applyPriceSnapshot(pkg, courses)

	if err := s.packageRepo.Update(ctx, pkg); err != nil {
		return nil, err
	}
	if err := s.packageRepo.ReplaceCourses(ctx, pkg, courses); err != nil {
		return nil, err
	}

	pkg.Courses = courses
	return pkg, nil
}

// Delete soft deletes a package
func (s *PackageService) Delete(ctx context.Context, id uint) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	return s.packageRepo.Delete(ctx, id)
}

// List lists packages; students only see published ones
func (s *PackageService) List(ctx context.Context, publishedOnly bool, offset, limit int) ([]*models.Package, int64, error) {
	return s.packageRepo.List(ctx, publishedOnly, offset, limit)
}
