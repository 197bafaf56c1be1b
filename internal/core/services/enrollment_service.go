package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"edhub/internal/adapters/persistence/models"
	"edhub/internal/adapters/persistence/repositories"
	"edhub/internal/core/domain"
)

// EnrollmentService is the single source of truth for "does student X have
// access to course Y". It creates enrollments for direct course purchases
// and package purchases, enforces no-duplicate-enrollment through the
// store's unique indexes, and owns every payment-status transition.
type EnrollmentService struct {
	enrollmentRepo repositories.EnrollmentRepository
	userRepo       repositories.UserRepository
	courseRepo     repositories.CourseRepository
	packageRepo    repositories.PackageRepository
}

// NewEnrollmentService creates a new enrollment service
func NewEnrollmentService(
	enrollmentRepo repositories.EnrollmentRepository,
	userRepo repositories.UserRepository,
	courseRepo repositories.CourseRepository,
	packageRepo repositories.PackageRepository,
) *EnrollmentService {
	return &EnrollmentService{
		enrollmentRepo: enrollmentRepo,
		userRepo:       userRepo,
		courseRepo:     courseRepo,
		packageRepo:    packageRepo,
	}
}

// DirectEnrollmentInput for enrolling into a single course
type DirectEnrollmentInput struct {
	StudentID      uint
	CourseID       uint     `json:"course_id" validate:"required"`
	PhoneNumber    string   `json:"phone_number" validate:"required,min=10,max=15,numeric"`
	RequestedPrice *float64 `json:"price" validate:"omitempty,gte=0"`
}

// PackageEnrollmentInput for enrolling into a package
type PackageEnrollmentInput struct {
	StudentID   uint
	PackageID   uint   `json:"package_id" validate:"required"`
	PhoneNumber string `json:"phone_number" validate:"required,min=10,max=15,numeric"`
}

// UserEnrollmentView is one row of the unified listing. Package-derived
// course access has no enrollment row of its own, so those entries carry a
// synthetic stable ID instead.
type UserEnrollmentView struct {
	ID            string         `json:"id"`
	EnrollmentID  uint           `json:"enrollment_id"`
	Course        *models.Course `json:"course"`
	Price         float64        `json:"price"`
	PaymentStatus string         `json:"payment_status"`
	EnrolledAt    time.Time      `json:"enrolled_at"`
	FromPackage   bool           `json:"from_package"`
	PackageID     uint           `json:"package_id,omitempty"`
	PackageName   string         `json:"package_name,omitempty"`
}

// CreateDirectEnrollment enrolls a student into a course. A free course is
// activated immediately at price 0 no matter what price the client sent;
// a paid course starts pending at the requested price (admin flows may
// grant a discount) or the catalog price. Duplicates are rejected
// unconditionally regardless of the existing row's status: recovery from a
// failed payment goes through the status-update path, never a second
// insert.
func (s *EnrollmentService) CreateDirectEnrollment(ctx context.Context, input *DirectEnrollmentInput) (*models.Enrollment, error) {
	student, err := s.getStudent(ctx, input.StudentID)
	if err != nil {
		return nil, err
	}

	course, err := s.courseRepo.GetByID(ctx, input.CourseID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrCourseNotFound
		}
		return nil, err
	}

	price := course.Price
	status := domain.PaymentPending
	if course.IsFree {
		price = 0
		status = domain.PaymentPaid
	} else if input.RequestedPrice != nil {
		price = *input.RequestedPrice
	}

	phone := input.PhoneNumber
	if phone == "" {
		phone = student.PhoneNumber
	}

	courseID := course.ID
	enrollment := &models.Enrollment{
		StudentID:     student.ID,
		CourseID:      &courseID,
		Price:         price,
		PaymentStatus: string(status),
		PhoneNumber:   phone,
	}

	if err := s.enrollmentRepo.Create(ctx, enrollment); err != nil {
		return nil, err
	}
	return enrollment, nil
}

// CreatePackageEnrollment enrolls a student into a package at the bundle
// price. Packages are never free, so the enrollment always starts pending.
func (s *EnrollmentService) CreatePackageEnrollment(ctx context.Context, input *PackageEnrollmentInput) (*models.Enrollment, error) {
	student, err := s.getStudent(ctx, input.StudentID)
	if err != nil {
		return nil, err
	}

	pkg, err := s.packageRepo.GetByID(ctx, input.PackageID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrPackageNotFound
		}
		return nil, err
	}

	phone := input.PhoneNumber
	if phone == "" {
		phone = student.PhoneNumber
	}

	packageID := pkg.ID
	enrollment := &models.Enrollment{
		StudentID:     student.ID,
		PackageID:     &packageID,
		IsPackage:     true,
		Price:         pkg.Price,
		PaymentStatus: string(domain.PaymentPending),
		PhoneNumber:   phone,
	}

	if err := s.enrollmentRepo.Create(ctx, enrollment); err != nil {
		return nil, err
	}
	return enrollment, nil
}

func (s *EnrollmentService) getStudent(ctx context.Context, studentID uint) (*models.User, error) {
	student, err := s.userRepo.GetByID(ctx, studentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrUserNotFound
		}
		return nil, err
	}
	if student.IsBanned {
		return nil, &domain.BannedError{Reason: student.BanReason}
	}
	return student, nil
}

// ResolveCourseAccess answers whether the student may consume the course.
// A paid direct enrollment wins the Via report; failing that, membership
// of any paid package containing the course grants access. Content-serving
// paths must consult this predicate before exposing lesson URLs.
func (s *EnrollmentService) ResolveCourseAccess(ctx context.Context, studentID, courseID uint) (domain.CourseAccess, error) {
	_, err := s.enrollmentRepo.GetPaidDirect(ctx, studentID, courseID)
	if err == nil {
		return domain.CourseAccess{Granted: true, Via: domain.AccessDirect}, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.CourseAccess{Via: domain.AccessNone}, err
	}

	packageEnrollments, err := s.enrollmentRepo.ListPaidPackageEnrollments(ctx, studentID)
	if err != nil {
		return domain.CourseAccess{Via: domain.AccessNone}, err
	}

	for _, enrollment := range packageEnrollments {
		if enrollment.Package == nil {
			continue
		}
		for _, course := range enrollment.Package.Courses {
			if course.ID == courseID {
				return domain.CourseAccess{Granted: true, Via: domain.AccessPackage}, nil
			}
		}
	}

	return domain.CourseAccess{Via: domain.AccessNone}, nil
}

// UpdatePaymentStatus applies one payment-status transition. Legal moves
// are pending→paid|failed and paid→refunded|partially_refunded; resetting
// any state back to pending is an admin override. The price snapshot and
// every other column survive the update untouched. Repeating the current
// status is a no-op so gateway reconciliation stays idempotent.
func (s *EnrollmentService) UpdatePaymentStatus(ctx context.Context, enrollmentID uint, newStatus domain.PaymentStatus, actorRole domain.Role) (*models.Enrollment, error) {
	if !domain.ValidPaymentStatus(newStatus) {
		return nil, domain.ErrInvalidStatus
	}

	enrollment, err := s.enrollmentRepo.GetByID(ctx, enrollmentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrEnrollmentNotFound
		}
		return nil, err
	}

	current := domain.PaymentStatus(enrollment.PaymentStatus)
	if current == newStatus {
		return enrollment, nil
	}

	if newStatus == domain.PaymentPending {
		if actorRole != domain.RoleAdmin {
			return nil, domain.ErrInvalidStatus
		}
	} else if !domain.CanTransition(current, newStatus) {
		// Admins may correct a stuck enrollment (e.g. reactivate after a
		// failed payment attempt); everyone else follows the state machine.
		if actorRole != domain.RoleAdmin {
			return nil, domain.ErrInvalidStatus
		}
	}

	if err := s.enrollmentRepo.UpdateStatus(ctx, enrollmentID, string(newStatus)); err != nil {
		return nil, err
	}

	enrollment.PaymentStatus = string(newStatus)
	return enrollment, nil
}

// ActivateForPayment idempotently turns a confirmed gateway payment into a
// paid enrollment: an existing row is flipped to paid, a missing row is
// created already paid (the invoice flow may precede enrollment creation).
// Safe to call repeatedly for the same payment.
func (s *EnrollmentService) ActivateForPayment(ctx context.Context, payment *models.Payment) (*models.Enrollment, error) {
	var enrollment *models.Enrollment
	var err error

	switch {
	case payment.PackageID != nil:
		enrollment, err = s.enrollmentRepo.GetByStudentAndPackage(ctx, payment.UserID, *payment.PackageID)
	case payment.CourseID != nil:
		enrollment, err = s.enrollmentRepo.GetByStudentAndCourse(ctx, payment.UserID, *payment.CourseID)
	default:
		return nil, domain.ErrEnrollmentNotFound
	}

	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		enrollment = &models.Enrollment{
			StudentID:     payment.UserID,
			CourseID:      payment.CourseID,
			PackageID:     payment.PackageID,
			IsPackage:     payment.PackageID != nil,
			Price:         payment.Amount,
			PaymentStatus: string(domain.PaymentPaid),
			PhoneNumber:   payment.CustomerMobile,
		}
		if createErr := s.enrollmentRepo.Create(ctx, enrollment); createErr != nil {
			// Lost a race against a concurrent activation; re-read the winner.
			if errors.Is(createErr, domain.ErrDuplicateEnrollment) {
				return s.ActivateForPayment(ctx, payment)
			}
			return nil, createErr
		}
		return enrollment, nil
	}

	if enrollment.IsPaid() {
		return enrollment, nil
	}

	if err := s.enrollmentRepo.UpdateStatus(ctx, enrollment.ID, string(domain.PaymentPaid)); err != nil {
		return nil, err
	}
	enrollment.PaymentStatus = string(domain.PaymentPaid)
	return enrollment, nil
}

// MarkFailedForPayment moves the linked pending enrollment to failed when
// the gateway reports a definitive failure. Missing or already-terminal
// enrollments are left alone.
func (s *EnrollmentService) MarkFailedForPayment(ctx context.Context, payment *models.Payment) error {
	var enrollment *models.Enrollment
	var err error

	switch {
	case payment.PackageID != nil:
		enrollment, err = s.enrollmentRepo.GetByStudentAndPackage(ctx, payment.UserID, *payment.PackageID)
	case payment.CourseID != nil:
		enrollment, err = s.enrollmentRepo.GetByStudentAndCourse(ctx, payment.UserID, *payment.CourseID)
	default:
		return nil
	}
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return err
	}

	if enrollment.PaymentStatus != string(domain.PaymentPending) {
		return nil
	}
	return s.enrollmentRepo.UpdateStatus(ctx, enrollment.ID, string(domain.PaymentFailed))
}

// MirrorRefundForPayment mirrors a fully refunded payment into the linked
// enrollment, revoking access
func (s *EnrollmentService) MirrorRefundForPayment(ctx context.Context, payment *models.Payment) error {
	var enrollment *models.Enrollment
	var err error

	switch {
	case payment.PackageID != nil:
		enrollment, err = s.enrollmentRepo.GetByStudentAndPackage(ctx, payment.UserID, *payment.PackageID)
	case payment.CourseID != nil:
		enrollment, err = s.enrollmentRepo.GetByStudentAndCourse(ctx, payment.UserID, *payment.CourseID)
	default:
		return nil
	}
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return err
	}

	return s.enrollmentRepo.UpdateStatus(ctx, enrollment.ID, string(domain.PaymentRefunded))
}

// GetByID returns one enrollment
func (s *EnrollmentService) GetByID(ctx context.Context, id uint) (*models.Enrollment, error) {
	enrollment, err := s.enrollmentRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrEnrollmentNotFound
		}
		return nil, err
	}
	return enrollment, nil
}

// GetDirectEnrollment returns the paid direct enrollment for a course, or
// ErrEnrollmentNotFound — the check-enrollment read path
func (s *EnrollmentService) GetDirectEnrollment(ctx context.Context, studentID, courseID uint) (*models.Enrollment, error) {
	enrollment, err := s.enrollmentRepo.GetPaidDirect(ctx, studentID, courseID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrEnrollmentNotFound
		}
		return nil, err
	}
	return enrollment, nil
}

// HasPackageAccess reports whether the student holds a paid enrollment on
// the package
func (s *EnrollmentService) HasPackageAccess(ctx context.Context, studentID, packageID uint) (bool, error) {
	enrollment, err := s.enrollmentRepo.GetByStudentAndPackage(ctx, studentID, packageID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, err
	}
	return enrollment.IsPaid(), nil
}

// List lists enrollments for the admin view
func (s *EnrollmentService) List(ctx context.Context, filter repositories.EnrollmentFilter) ([]*models.Enrollment, int64, error) {
	return s.enrollmentRepo.List(ctx, filter)
}

// ListUserEnrollments merges paid direct enrollments with courses unlocked
// through paid packages into one listing. Package-derived entries have no
// row of their own, so each gets a stable pseudo-identifier composed from
// the package enrollment and the course.
func (s *EnrollmentService) ListUserEnrollments(ctx context.Context, studentID uint) ([]*UserEnrollmentView, error) {
	direct, err := s.enrollmentRepo.ListPaidDirectEnrollments(ctx, studentID)
	if err != nil {
		return nil, err
	}

	views := make([]*UserEnrollmentView, 0, len(direct))
	for _, enrollment := range direct {
		views = append(views, &UserEnrollmentView{
			ID:            fmt.Sprintf("enr_%d", enrollment.ID),
			EnrollmentID:  enrollment.ID,
			Course:        enrollment.Course,
			Price:         enrollment.Price,
			PaymentStatus: enrollment.PaymentStatus,
			EnrolledAt:    enrollment.EnrolledAt,
		})
	}

	packageEnrollments, err := s.enrollmentRepo.ListPaidPackageEnrollments(ctx, studentID)
	if err != nil {
		return nil, err
	}

	for _, enrollment := range packageEnrollments {
		if enrollment.Package == nil {
			continue
		}
		for i := range enrollment.Package.Courses {
			course := enrollment.Package.Courses[i]
			views = append(views, &UserEnrollmentView{
				ID:            fmt.Sprintf("pkg_%d_course_%d", enrollment.ID, course.ID),
				EnrollmentID:  enrollment.ID,
				Course:        &course,
				Price:         enrollment.Price,
				PaymentStatus: string(domain.PaymentPaid),
				EnrolledAt:    enrollment.EnrolledAt,
				FromPackage:   true,
				PackageID:     enrollment.Package.ID,
				PackageName:   enrollment.Package.Name,
			})
		}
	}

	return views, nil
}
