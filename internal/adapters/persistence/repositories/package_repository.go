package repositories

import (
	"context"

	"gorm.io/gorm"

	"edhub/internal/adapters/persistence/models"
	"edhub/internal/core/domain"
)

// packageRepository implements PackageRepository interface
type packageRepository struct {
	db *gorm.DB
}

// NewPackageRepository creates a new package repository
func NewPackageRepository(db *gorm.DB) PackageRepository {
	return &packageRepository{db: db}
}

// Create creates a package with its course membership
func (r *packageRepository) Create(ctx context.Context, pkg *models.Package, courses []models.Course) error {
	pkg.Courses = courses
	return r.db.WithContext(ctx).Create(pkg).Error
}

// GetByID gets a package with its member courses
func (r *packageRepository) GetByID(ctx context.Context, id uint) (*models.Package, error) {
	var pkg models.Package
	err := r.db.WithContext(ctx).Preload("Courses").Where("id = ?", id).First(&pkg).Error
	if err != nil {
		return nil, err
	}
	return &pkg, nil
}

// Update updates package columns (not membership)
func (r *packageRepository) Update(ctx context.Context, pkg *models.Package) error {
	return r.db.WithContext(ctx).Omit("Courses").Save(pkg).Error
}

// ReplaceCourses replaces the package's course membership
func (r *packageRepository) ReplaceCourses(ctx context.Context, pkg *models.Package, courses []models.Course) error {
	return r.db.WithContext(ctx).Model(pkg).Association("Courses").Replace(courses)
}

// Delete soft deletes a package
func (r *packageRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Delete(&models.Package{}, id).Error
}

// List lists packages with optional published-only filter and pagination
func (r *packageRepository) List(ctx context.Context, publishedOnly bool, offset, limit int) ([]*models.Package, int64, error) {
	var packages []*models.Package
	var total int64

	query := r.db.WithContext(ctx).Model(&models.Package{})
	if publishedOnly {
		query = query.Where("publish_status = ?", string(domain.PublishPublished))
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if err := query.Preload("Courses").Order("created_at DESC").Offset(offset).Limit(limit).Find(&packages).Error; err != nil {
		return nil, 0, err
	}

	return packages, total, nil
}

// GetCourseIDs returns the IDs of the package's member courses
func (r *packageRepository) GetCourseIDs(ctx context.Context, packageID uint) ([]uint, error) {
	var ids []uint
	err := r.db.WithContext(ctx).Table("package_courses").
		Where("package_id = ?", packageID).
		Pluck("course_id", &ids).Error
	return ids, err
}
