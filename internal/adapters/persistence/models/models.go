package models

import (
	"time"

	"gorm.io/gorm"

	"edhub/internal/core/domain"
)

// ============================================================
// Users & sessions
// ============================================================

// User represents users table. The session_* columns implement the
// single-active-session policy: at most one valid token per account,
// a new sign-in overwrites the previous one.
type User struct {
	ID                uint           `gorm:"primaryKey" json:"id"`
	Name              string         `gorm:"size:100;not null" json:"name"`
	Email             string         `gorm:"uniqueIndex;size:100;not null" json:"email"`
	PhoneNumber       string         `gorm:"uniqueIndex;size:20;not null" json:"phone_number"`
	ParentPhoneNumber string         `gorm:"size:20" json:"parent_phone_number,omitempty"`
	Password          string         `gorm:"size:255;not null" json:"-"`
	Level             string         `gorm:"size:50" json:"level"`
	Government        string         `gorm:"size:50" json:"government"`
	Role              string         `gorm:"size:20;default:'user'" json:"role"`
	IsBanned          bool           `gorm:"default:false" json:"is_banned"`
	BanReason         string         `gorm:"size:255" json:"ban_reason,omitempty"`
	LastActive        *time.Time     `json:"last_active"`
	SessionTokenHash  string         `gorm:"size:64;index" json:"-"`
	SessionDevice     string         `gorm:"size:255" json:"-"`
	SessionCreatedAt  *time.Time     `json:"-"`
	CreatedAt         time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt         gorm.DeletedAt `gorm:"index" json:"-"`
}

func (User) TableName() string {
	return "users"
}

// UserResponse DTO
type UserResponse struct {
	ID          uint      `json:"id"`
	Name        string    `json:"name"`
	Email       string    `json:"email"`
	PhoneNumber string    `json:"phone_number"`
	Level       string    `json:"level,omitempty"`
	Government  string    `json:"government,omitempty"`
	Role        string    `json:"role"`
	IsBanned    bool      `json:"is_banned"`
	BanReason   string    `json:"ban_reason,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

func (u *User) ToResponse() *UserResponse {
	return &UserResponse{
		ID:          u.ID,
		Name:        u.Name,
		Email:       u.Email,
		PhoneNumber: u.PhoneNumber,
		Level:       u.Level,
		Government:  u.Government,
		Role:        u.Role,
		IsBanned:    u.IsBanned,
		BanReason:   u.BanReason,
		CreatedAt:   u.CreatedAt,
	}
}

// ============================================================
// Catalog: courses, chapters, lessons, packages
// ============================================================

// Course represents courses table. Price is required unless IsFree.
type Course struct {
	ID                   uint           `gorm:"primaryKey" json:"id"`
	Name                 string         `gorm:"size:150;not null" json:"name"`
	Description          string         `gorm:"type:text" json:"description"`
	ImageURL             string         `gorm:"size:500" json:"image_url"`
	Price                float64        `gorm:"type:decimal(10,2);default:0" json:"price"`
	IsFree               bool           `gorm:"default:false" json:"is_free"`
	Level                string         `gorm:"size:50" json:"level"`
	IsDraft              bool           `json:"is_draft"`
	IsScheduled          bool           `gorm:"default:false" json:"is_scheduled"`
	ScheduledPublishDate *time.Time     `json:"scheduled_publish_date"`
	PublishStatus        string         `gorm:"size:20;default:'draft';index" json:"publish_status"`
	CreatedAt            time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt            time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt            gorm.DeletedAt `gorm:"index" json:"-"`

	Chapters []Chapter `gorm:"foreignKey:CourseID" json:"chapters,omitempty"`
	Exams    []Exam    `gorm:"foreignKey:CourseID" json:"exams,omitempty"`
}

func (Course) TableName() string {
	return "courses"
}

// IsPublished reports whether the course is visible to students.
func (c *Course) IsPublished() bool {
	return c.PublishStatus == string(domain.PublishPublished)
}

// Chapter represents chapters table (ordered within a course).
type Chapter struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	CourseID    uint           `gorm:"index;not null" json:"course_id"`
	Title       string         `gorm:"size:150;not null" json:"title"`
	Description string         `gorm:"type:text" json:"description"`
	Position    int            `gorm:"default:0" json:"position"`
	CreatedAt   time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`

	Lessons []Lesson `gorm:"foreignKey:ChapterID" json:"lessons,omitempty"`
}

func (Chapter) TableName() string {
	return "chapters"
}

// Lesson represents lessons table. VideoURL/FileURL must only be serialized
// when the student has access to the course or the lesson itself is free.
type Lesson struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	ChapterID uint           `gorm:"index;not null" json:"chapter_id"`
	Title     string         `gorm:"size:150;not null" json:"title"`
	VideoURL  string         `gorm:"size:500" json:"video_url,omitempty"`
	FileURL   string         `gorm:"size:500" json:"file_url,omitempty"`
	IsFree    bool           `gorm:"default:false" json:"is_free"`
	Position  int            `gorm:"default:0" json:"position"`
	CreatedAt time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (Lesson) TableName() string {
	return "lessons"
}

// Exam represents exams table (referenced from course detail views).
type Exam struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	CourseID  uint           `gorm:"index;not null" json:"course_id"`
	Title     string         `gorm:"size:150;not null" json:"title"`
	CreatedAt time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (Exam) TableName() string {
	return "exams"
}

// Package represents packages table. OriginalPrice and DiscountPercentage
// are snapshots recomputed on create and on price/membership updates only.
type Package struct {
	ID                 uint           `gorm:"primaryKey" json:"id"`
	Name               string         `gorm:"size:150;not null" json:"name"`
	Description        string         `gorm:"type:text" json:"description"`
	ImageURL           string         `gorm:"size:500" json:"image_url"`
	Price              float64        `gorm:"type:decimal(10,2);not null" json:"price"`
	OriginalPrice      float64        `gorm:"type:decimal(10,2);not null" json:"original_price"`
	DiscountPercentage int            `gorm:"default:0" json:"discount_percentage"`
	Level              string         `gorm:"size:50" json:"level"`
	IsDraft            bool           `json:"is_draft"`
	PublishStatus      string         `gorm:"size:20;default:'draft';index" json:"publish_status"`
	CreatedAt          time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt          gorm.DeletedAt `gorm:"index" json:"-"`

	Courses []Course `gorm:"many2many:package_courses" json:"courses,omitempty"`
}

func (Package) TableName() string {
	return "packages"
}

// ============================================================
// Enrollments & watch history
// ============================================================

// Enrollment grants (or is pending to grant) a student access to exactly
// one course or one package. The composite unique indexes close the
// duplicate-enrollment race at the store level.
type Enrollment struct {
	ID            uint           `gorm:"primaryKey" json:"id"`
	StudentID     uint           `gorm:"not null;index;uniqueIndex:idx_student_course;uniqueIndex:idx_student_package" json:"student_id"`
	CourseID      *uint          `gorm:"uniqueIndex:idx_student_course" json:"course_id,omitempty"`
	PackageID     *uint          `gorm:"uniqueIndex:idx_student_package" json:"package_id,omitempty"`
	IsPackage     bool           `gorm:"default:false" json:"is_package"`
	Price         float64        `gorm:"type:decimal(10,2);not null" json:"price"`
	PaymentStatus string         `gorm:"size:20;default:'pending';index" json:"payment_status"`
	PhoneNumber   string         `gorm:"size:20;not null" json:"phone_number"`
	EnrolledAt    time.Time      `gorm:"autoCreateTime" json:"enrolled_at"`
	UpdatedAt     time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt     gorm.DeletedAt `gorm:"index" json:"-"`

	Course  *Course  `gorm:"foreignKey:CourseID" json:"course,omitempty"`
	Package *Package `gorm:"foreignKey:PackageID" json:"package,omitempty"`
}

func (Enrollment) TableName() string {
	return "enrollments"
}

// Target returns the enrollment target as a tagged union.
func (e *Enrollment) Target() domain.EnrollmentTarget {
	if e.IsPackage && e.PackageID != nil {
		return domain.TargetPackage(*e.PackageID)
	}
	if e.CourseID != nil {
		return domain.TargetCourse(*e.CourseID)
	}
	return domain.EnrollmentTarget{}
}

// IsPaid reports whether the enrollment currently grants access.
func (e *Enrollment) IsPaid() bool {
	return e.PaymentStatus == string(domain.PaymentPaid)
}

// WatchHistory counts lesson views per student. Analytics input only,
// never consulted for access decisions.
type WatchHistory struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	StudentID     uint      `gorm:"not null;uniqueIndex:idx_student_lesson" json:"student_id"`
	LessonID      uint      `gorm:"not null;uniqueIndex:idx_student_lesson" json:"lesson_id"`
	WatchCount    int       `gorm:"default:0" json:"watch_count"`
	LastWatchedAt time.Time `json:"last_watched_at"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (WatchHistory) TableName() string {
	return "watch_histories"
}

// AutoMigrate creates or updates all tables.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&User{},
		&Course{},
		&Chapter{},
		&Lesson{},
		&Exam{},
		&Package{},
		&Enrollment{},
		&Payment{},
		&WatchHistory{},
	)
}
