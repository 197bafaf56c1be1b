package repositories

import (
	"context"
	"time"

	"edhub/internal/adapters/persistence/models"
)

// UserRepository defines user repository interface
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id uint) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	Update(ctx context.Context, user *models.User) error
	UpdateFields(ctx context.Context, id uint, fields map[string]interface{}) error
	Delete(ctx context.Context, id uint) error
	List(ctx context.Context, search string, offset, limit int) ([]*models.User, int64, error)
	ExistsByEmailOrPhone(ctx context.Context, email, phone string) (bool, error)
}

// CourseRepository defines course repository interface
type CourseRepository interface {
	Create(ctx context.Context, course *models.Course) error
	GetByID(ctx context.Context, id uint) (*models.Course, error)
	GetByIDWithContent(ctx context.Context, id uint) (*models.Course, error)
	Update(ctx context.Context, course *models.Course) error
	UpdateFields(ctx context.Context, id uint, fields map[string]interface{}) error
	Delete(ctx context.Context, id uint) error
	List(ctx context.Context, publishedOnly bool, search string, offset, limit int) ([]*models.Course, int64, error)
	PublishDue(ctx context.Context, now time.Time) (int64, error)
}

// ChapterRepository defines chapter/lesson repository interface
type ChapterRepository interface {
	CreateChapter(ctx context.Context, chapter *models.Chapter) error
	GetChapter(ctx context.Context, id uint) (*models.Chapter, error)
	UpdateChapter(ctx context.Context, chapter *models.Chapter) error
	DeleteChapter(ctx context.Context, id uint) error
	CreateLesson(ctx context.Context, lesson *models.Lesson) error
	GetLesson(ctx context.Context, id uint) (*models.Lesson, error)
	GetLessonCourseID(ctx context.Context, lessonID uint) (uint, error)
	UpdateLesson(ctx context.Context, lesson *models.Lesson) error
	DeleteLesson(ctx context.Context, id uint) error
}

// PackageRepository defines package repository interface
type PackageRepository interface {
	Create(ctx context.Context, pkg *models.Package, courses []models.Course) error
	GetByID(ctx context.Context, id uint) (*models.Package, error)
	Update(ctx context.Context, pkg *models.Package) error
	ReplaceCourses(ctx context.Context, pkg *models.Package, courses []models.Course) error
	Delete(ctx context.Context, id uint) error
	List(ctx context.Context, publishedOnly bool, offset, limit int) ([]*models.Package, int64, error)
	GetCourseIDs(ctx context.Context, packageID uint) ([]uint, error)
}

// EnrollmentRepository defines enrollment repository interface.
// Create must rely on the store's unique indexes for duplicate detection
// and return domain.ErrDuplicateEnrollment on conflict.
type EnrollmentRepository interface {
	Create(ctx context.Context, enrollment *models.Enrollment) error
	GetByID(ctx context.Context, id uint) (*models.Enrollment, error)
	GetByStudentAndCourse(ctx context.Context, studentID, courseID uint) (*models.Enrollment, error)
	GetByStudentAndPackage(ctx context.Context, studentID, packageID uint) (*models.Enrollment, error)
	GetPaidDirect(ctx context.Context, studentID, courseID uint) (*models.Enrollment, error)
	ListPaidPackageEnrollments(ctx context.Context, studentID uint) ([]*models.Enrollment, error)
	ListPaidDirectEnrollments(ctx context.Context, studentID uint) ([]*models.Enrollment, error)
	UpdateStatus(ctx context.Context, id uint, status string) error
	List(ctx context.Context, filter EnrollmentFilter) ([]*models.Enrollment, int64, error)
	DeleteByStudent(ctx context.Context, studentID uint) error
}

// EnrollmentFilter narrows admin enrollment listings.
type EnrollmentFilter struct {
	StudentID uint
	CourseID  uint
	PackageID uint
	Status    string
	Search    string
	SortBy    string
	SortDesc  bool
	Offset    int
	Limit     int
}

// PaymentRepository defines payment repository interface
type PaymentRepository interface {
	Create(ctx context.Context, payment *models.Payment) error
	GetByID(ctx context.Context, id uint) (*models.Payment, error)
	GetByMerchantRefNum(ctx context.Context, merchantRefNum string) (*models.Payment, error)
	UpdateFields(ctx context.Context, id uint, fields map[string]interface{}) error
	List(ctx context.Context, filter PaymentFilter) ([]*models.Payment, int64, error)
}

// PaymentFilter narrows payment listings.
type PaymentFilter struct {
	UserID   uint
	CourseID uint
	Status   string
	Search   string
	SortBy   string
	SortDesc bool
	Offset   int
	Limit    int
}

// WatchHistoryRepository defines watch history repository interface
type WatchHistoryRepository interface {
	RecordWatch(ctx context.Context, studentID, lessonID uint, at time.Time) error
	ListByStudent(ctx context.Context, studentID uint) ([]*models.WatchHistory, error)
}
