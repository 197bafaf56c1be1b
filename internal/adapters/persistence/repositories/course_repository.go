package repositories

import (
	"context"
	"time"

	"gorm.io/gorm"

	"edhub/internal/adapters/persistence/models"
	"edhub/internal/core/domain"
)

// courseRepository implements CourseRepository interface
type courseRepository struct {
	db *gorm.DB
}

// NewCourseRepository creates a new course repository
func NewCourseRepository(db *gorm.DB) CourseRepository {
	return &courseRepository{db: db}
}

// Create creates a new course
func (r *courseRepository) Create(ctx context.Context, course *models.Course) error {
	return r.db.WithContext(ctx).Create(course).Error
}

// GetByID gets a course by ID
func (r *courseRepository) GetByID(ctx context.Context, id uint) (*models.Course, error) {
	var course models.Course
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&course).Error
	if err != nil {
		return nil, err
	}
	return &course, nil
}

// GetByIDWithContent gets a course with ordered chapters, lessons and exams
func (r *courseRepository) GetByIDWithContent(ctx context.Context, id uint) (*models.Course, error) {
	var course models.Course
	err := r.db.WithContext(ctx).
		Preload("Chapters", func(db *gorm.DB) *gorm.DB {
			return db.Order("chapters.position ASC")
		}).
		Preload("Chapters.Lessons", func(db *gorm.DB) *gorm.DB {
			return db.Order("lessons.position ASC")
		}).
		Preload("Exams").
		Where("id = ?", id).
		First(&course).Error
	if err != nil {
		return nil, err
	}
	return &course, nil
}

// Update updates a course
func (r *courseRepository) Update(ctx context.Context, course *models.Course) error {
	return r.db.WithContext(ctx).Save(course).Error
}

// UpdateFields updates only the given columns
func (r *courseRepository) UpdateFields(ctx context.Context, id uint, fields map[string]interface{}) error {
	return r.db.WithContext(ctx).Model(&models.Course{}).Where("id = ?", id).Updates(fields).Error
}

// Delete soft deletes a course
func (r *courseRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Delete(&models.Course{}, id).Error
}

// List lists courses with optional published-only filter, search and pagination
func (r *courseRepository) List(ctx context.Context, publishedOnly bool, search string, offset, limit int) ([]*models.Course, int64, error) {
	var courses []*models.Course
	var total int64

	query := r.db.WithContext(ctx).Model(&models.Course{})
	if publishedOnly {
		query = query.Where("publish_status = ?", string(domain.PublishPublished))
	}
	if search != "" {
		like := "%" + search + "%"
		query = query.Where("name LIKE ? OR description LIKE ?", like, like)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if err := query.Order("created_at DESC").Offset(offset).Limit(limit).Find(&courses).Error; err != nil {
		return nil, 0, err
	}

	return courses, total, nil
}

// PublishDue flips every scheduled course whose publish date has passed to
// published. A single UPDATE makes the flip happen exactly once even when
// several read paths trigger the resolver concurrently.
func (r *courseRepository) PublishDue(ctx context.Context, now time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Model(&models.Course{}).
		Where("is_scheduled = ? AND publish_status = ? AND scheduled_publish_date <= ?",
			true, string(domain.PublishScheduled), now).
		Updates(map[string]interface{}{
			"is_draft":       false,
			"is_scheduled":   false,
			"publish_status": string(domain.PublishPublished),
		})
	return result.RowsAffected, result.Error
}
