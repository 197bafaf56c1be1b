package repositories

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"edhub/internal/adapters/persistence/models"
	"edhub/internal/core/domain"
)

// enrollmentRepository implements EnrollmentRepository interface
type enrollmentRepository struct {
	db *gorm.DB
}

// NewEnrollmentRepository creates a new enrollment repository
func NewEnrollmentRepository(db *gorm.DB) EnrollmentRepository {
	return &enrollmentRepository{db: db}
}

// Create inserts a new enrollment. Uniqueness on (student, course) and
// (student, package) is enforced by the composite unique indexes, so two
// concurrent inserts yield exactly one success and one duplicate error.
func (r *enrollmentRepository) Create(ctx context.Context, enrollment *models.Enrollment) error {
	err := r.db.WithContext(ctx).Create(enrollment).Error
	if err != nil && errors.Is(err, gorm.ErrDuplicatedKey) {
		return domain.ErrDuplicateEnrollment
	}
	return err
}

// GetByID gets an enrollment by ID
func (r *enrollmentRepository) GetByID(ctx context.Context, id uint) (*models.Enrollment, error) {
	var enrollment models.Enrollment
	err := r.db.WithContext(ctx).Preload("Course").Preload("Package").Where("id = ?", id).First(&enrollment).Error
	if err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// GetByStudentAndCourse gets a direct enrollment regardless of status
func (r *enrollmentRepository) GetByStudentAndCourse(ctx context.Context, studentID, courseID uint) (*models.Enrollment, error) {
	var enrollment models.Enrollment
	err := r.db.WithContext(ctx).
		Where("student_id = ? AND course_id = ?", studentID, courseID).
		First(&enrollment).Error
	if err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// GetByStudentAndPackage gets a package enrollment regardless of status
func (r *enrollmentRepository) GetByStudentAndPackage(ctx context.Context, studentID, packageID uint) (*models.Enrollment, error) {
	var enrollment models.Enrollment
	err := r.db.WithContext(ctx).
		Where("student_id = ? AND package_id = ?", studentID, packageID).
		First(&enrollment).Error
	if err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// GetPaidDirect gets a paid direct enrollment for (student, course)
func (r *enrollmentRepository) GetPaidDirect(ctx context.Context, studentID, courseID uint) (*models.Enrollment, error) {
	var enrollment models.Enrollment
	err := r.db.WithContext(ctx).
		Where("student_id = ? AND course_id = ? AND payment_status = ?",
			studentID, courseID, string(domain.PaymentPaid)).
		First(&enrollment).Error
	if err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// ListPaidPackageEnrollments lists the student's paid package enrollments
// with package courses preloaded
func (r *enrollmentRepository) ListPaidPackageEnrollments(ctx context.Context, studentID uint) ([]*models.Enrollment, error) {
	var enrollments []*models.Enrollment
	err := r.db.WithContext(ctx).
		Preload("Package.Courses").
		Where("student_id = ? AND is_package = ? AND payment_status = ?",
			studentID, true, string(domain.PaymentPaid)).
		Find(&enrollments).Error
	return enrollments, err
}

// ListPaidDirectEnrollments lists the student's paid direct enrollments
// with courses preloaded
func (r *enrollmentRepository) ListPaidDirectEnrollments(ctx context.Context, studentID uint) ([]*models.Enrollment, error) {
	var enrollments []*models.Enrollment
	err := r.db.WithContext(ctx).
		Preload("Course").
		Where("student_id = ? AND is_package = ? AND payment_status = ?",
			studentID, false, string(domain.PaymentPaid)).
		Find(&enrollments).Error
	return enrollments, err
}

// UpdateStatus updates only the payment status column. The price snapshot
// and every other column are untouched by design.
func (r *enrollmentRepository) UpdateStatus(ctx context.Context, id uint, status string) error {
	return r.db.WithContext(ctx).Model(&models.Enrollment{}).
		Where("id = ?", id).
		Update("payment_status", status).Error
}

// List lists enrollments for the admin view with filters and pagination
func (r *enrollmentRepository) List(ctx context.Context, filter EnrollmentFilter) ([]*models.Enrollment, int64, error) {
	var enrollments []*models.Enrollment
	var total int64

	query := r.db.WithContext(ctx).Model(&models.Enrollment{})
	if filter.StudentID != 0 {
		query = query.Where("student_id = ?", filter.StudentID)
	}
	if filter.CourseID != 0 {
		query = query.Where("course_id = ?", filter.CourseID)
	}
	if filter.PackageID != 0 {
		query = query.Where("package_id = ?", filter.PackageID)
	}
	if filter.Status != "" {
		query = query.Where("payment_status = ?", filter.Status)
	}
	if filter.Search != "" {
		like := "%" + filter.Search + "%"
		query = query.Where("phone_number LIKE ?", like)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	order := "enrolled_at"
	switch filter.SortBy {
	case "price":
		order = "price"
	case "status":
		order = "payment_status"
	}
	if filter.SortDesc {
		order += " DESC"
	} else {
		order += " ASC"
	}

	err := query.Preload("Course").Preload("Package").
		Order(order).Offset(filter.Offset).Limit(filter.Limit).
		Find(&enrollments).Error
	if err != nil {
		return nil, 0, err
	}

	return enrollments, total, nil
}

// DeleteByStudent removes all of a student's enrollments (account deletion cascade)
func (r *enrollmentRepository) DeleteByStudent(ctx context.Context, studentID uint) error {
	return r.db.WithContext(ctx).Where("student_id = ?", studentID).Delete(&models.Enrollment{}).Error
}
