package services

import (
	"context"
	"time"

	"gorm.io/gorm"
)

// DashboardService handles dashboard aggregations
type DashboardService struct {
	db *gorm.DB
}

// NewDashboardService creates a new dashboard service
func NewDashboardService(db *gorm.DB) *DashboardService {
	return &DashboardService{db: db}
}

// ============================================================
// Admin Dashboard
// ============================================================

// AdminDashboardData represents admin dashboard data
type AdminDashboardData struct {
	// User Statistics
	TotalStudents  int64 `json:"total_students"`
	BannedStudents int64 `json:"banned_students"`
	NewThisMonth   int64 `json:"new_this_month"`

	// Catalog Statistics
	TotalCourses     int64 `json:"total_courses"`
	PublishedCourses int64 `json:"published_courses"`
	ScheduledCourses int64 `json:"scheduled_courses"`
	TotalPackages    int64 `json:"total_packages"`

	// Enrollment Statistics
	TotalEnrollments    int64 `json:"total_enrollments"`
	PaidEnrollments     int64 `json:"paid_enrollments"`
	PendingEnrollments  int64 `json:"pending_enrollments"`
	FailedEnrollments   int64 `json:"failed_enrollments"`
	RefundedEnrollments int64 `json:"refunded_enrollments"`

	// Revenue Statistics
	TotalRevenue     float64 `json:"total_revenue"`
	RevenueThisMonth float64 `json:"revenue_this_month"`

	// Recent Activity
	RecentEnrollments []EnrollmentSummary `json:"recent_enrollments"`

	// Top Courses
	TopCourses []CourseStats `json:"top_courses"`
}

// EnrollmentSummary represents enrollment summary
type EnrollmentSummary struct {
	ID            uint      `json:"id"`
	StudentName   string    `json:"student_name"`
	ItemName      string    `json:"item_name"`
	IsPackage     bool      `json:"is_package"`
	Price         float64   `json:"price"`
	PaymentStatus string    `json:"payment_status"`
	EnrolledAt    time.Time `json:"enrolled_at"`
}

// CourseStats represents per-course enrollment statistics
type CourseStats struct {
	CourseID   uint    `json:"course_id"`
	CourseName string  `json:"course_name"`
	Enrolled   int64   `json:"enrolled"`
	Revenue    float64 `json:"revenue"`
}

// GetAdminDashboard returns admin dashboard data
func (s *DashboardService) GetAdminDashboard(ctx context.Context) (*AdminDashboardData, error) {
	data := &AdminDashboardData{}

	startOfMonth := time.Now().AddDate(0, 0, -time.Now().Day()+1).Truncate(24 * time.Hour)

	// User counts
	s.db.WithContext(ctx).Table("users").Where("role = ? AND deleted_at IS NULL", "user").Count(&data.TotalStudents)
	s.db.WithContext(ctx).Table("users").Where("role = ? AND is_banned = ? AND deleted_at IS NULL", "user", true).Count(&data.BannedStudents)
	s.db.WithContext(ctx).Table("users").Where("role = ? AND created_at >= ? AND deleted_at IS NULL", "user", startOfMonth).Count(&data.NewThisMonth)

	// Catalog counts
	s.db.WithContext(ctx).Table("courses").Where("deleted_at IS NULL").Count(&data.TotalCourses)
	s.db.WithContext(ctx).Table("courses").Where("publish_status = ? AND deleted_at IS NULL", "published").Count(&data.PublishedCourses)
	s.db.WithContext(ctx).Table("courses").Where("publish_status = ? AND deleted_at IS NULL", "scheduled").Count(&data.ScheduledCourses)
	s.db.WithContext(ctx).Table("packages").Where("deleted_at IS NULL").Count(&data.TotalPackages)

	// Enrollment counts by status
	s.db.WithContext(ctx).Table("enrollments").Where("deleted_at IS NULL").Count(&data.TotalEnrollments)
	s.db.WithContext(ctx).Table("enrollments").Where("payment_status = ? AND deleted_at IS NULL", "paid").Count(&data.PaidEnrollments)
	s.db.WithContext(ctx).Table("enrollments").Where("payment_status = ? AND deleted_at IS NULL", "pending").Count(&data.PendingEnrollments)
	s.db.WithContext(ctx).Table("enrollments").Where("payment_status = ? AND deleted_at IS NULL", "failed").Count(&data.FailedEnrollments)
	s.db.WithContext(ctx).Table("enrollments").
		Where("payment_status IN ? AND deleted_at IS NULL", []string{"refunded", "partially_refunded"}).
		Count(&data.RefundedEnrollments)

	// Revenue from paid enrollments
	s.db.WithContext(ctx).Table("enrollments").
		Where("payment_status = ? AND deleted_at IS NULL", "paid").
		Select("COALESCE(SUM(price), 0)").
		Scan(&data.TotalRevenue)

	s.db.WithContext(ctx).Table("enrollments").
		Where("payment_status = ? AND enrolled_at >= ? AND deleted_at IS NULL", "paid", startOfMonth).
		Select("COALESCE(SUM(price), 0)").
		Scan(&data.RevenueThisMonth)

	// Recent enrollments
	var recentEnrollments []struct {
		ID            uint
		StudentName   string
		CourseName    string
		PackageName   string
		IsPackage     bool
		Price         float64
		PaymentStatus string
		EnrolledAt    time.Time
	}
	s.db.WithContext(ctx).Table("enrollments").
		Select("enrollments.id, users.name as student_name, COALESCE(courses.name, '') as course_name, COALESCE(packages.name, '') as package_name, enrollments.is_package, enrollments.price, enrollments.payment_status, enrollments.enrolled_at").
		Joins("LEFT JOIN users ON enrollments.student_id = users.id").
		Joins("LEFT JOIN courses ON enrollments.course_id = courses.id").
		Joins("LEFT JOIN packages ON enrollments.package_id = packages.id").
		Where("enrollments.deleted_at IS NULL").
		Order("enrollments.enrolled_at DESC").
		Limit(10).
		Scan(&recentEnrollments)

	data.RecentEnrollments = make([]EnrollmentSummary, len(recentEnrollments))
	for i, e := range recentEnrollments {
		itemName := e.CourseName
		if e.IsPackage {
			itemName = e.PackageName
		}
		data.RecentEnrollments[i] = EnrollmentSummary{
			ID:            e.ID,
			StudentName:   e.StudentName,
			ItemName:      itemName,
			IsPackage:     e.IsPackage,
			Price:         e.Price,
			PaymentStatus: e.PaymentStatus,
			EnrolledAt:    e.EnrolledAt,
		}
	}

	// Top courses by paid enrollments
	var topCourses []struct {
		CourseID   uint
		CourseName string
		Enrolled   int64
		Revenue    float64
	}
	s.db.WithContext(ctx).Table("enrollments").
		Select(`
			enrollments.course_id,
			courses.name as course_name,
			COUNT(*) as enrolled,
			COALESCE(SUM(enrollments.price), 0) as revenue
		`).
		Joins("JOIN courses ON enrollments.course_id = courses.id").
		Where("enrollments.payment_status = ? AND enrollments.course_id IS NOT NULL AND enrollments.deleted_at IS NULL", "paid").
		Group("enrollments.course_id, courses.name").
		Order("enrolled DESC").
		Limit(5).
		Scan(&topCourses)

	data.TopCourses = make([]CourseStats, len(topCourses))
	for i, c := range topCourses {
		data.TopCourses[i] = CourseStats{
			CourseID:   c.CourseID,
			CourseName: c.CourseName,
			Enrolled:   c.Enrolled,
			Revenue:    c.Revenue,
		}
	}

	return data, nil
}

// ============================================================
// Student Dashboard
// ============================================================

// StudentDashboardData represents student dashboard data
type StudentDashboardData struct {
	EnrolledCourses int64   `json:"enrolled_courses"`
	OwnedPackages   int64   `json:"owned_packages"`
	PendingPayments int64   `json:"pending_payments"`
	TotalSpent      float64 `json:"total_spent"`

	RecentlyWatched []WatchedLessonInfo `json:"recently_watched"`
}

// WatchedLessonInfo represents one recently watched lesson
type WatchedLessonInfo struct {
	LessonID   uint      `json:"lesson_id"`
	LessonName string    `json:"lesson_name"`
	CourseID   uint      `json:"course_id"`
	CourseName string    `json:"course_name"`
	WatchedAt  time.Time `json:"watched_at"`
	WatchCount int       `json:"watch_count"`
}

// GetStudentDashboard returns student dashboard data
func (s *DashboardService) GetStudentDashboard(ctx context.Context, studentID uint) (*StudentDashboardData, error) {
	data := &StudentDashboardData{}

	s.db.WithContext(ctx).Table("enrollments").
		Where("student_id = ? AND payment_status = ? AND course_id IS NOT NULL AND deleted_at IS NULL", studentID, "paid").
		Count(&data.EnrolledCourses)

	s.db.WithContext(ctx).Table("enrollments").
		Where("student_id = ? AND payment_status = ? AND package_id IS NOT NULL AND deleted_at IS NULL", studentID, "paid").
		Count(&data.OwnedPackages)

	s.db.WithContext(ctx).Table("enrollments").
		Where("student_id = ? AND payment_status = ? AND deleted_at IS NULL", studentID, "pending").
		Count(&data.PendingPayments)

	s.db.WithContext(ctx).Table("enrollments").
		Where("student_id = ? AND payment_status = ? AND deleted_at IS NULL", studentID, "paid").
		Select("COALESCE(SUM(price), 0)").
		Scan(&data.TotalSpent)

	// Recently watched lessons
	var watched []struct {
		LessonID   uint
		LessonName string
		CourseID   uint
		CourseName string
		WatchedAt  time.Time
		WatchCount int
	}
	s.db.WithContext(ctx).Table("watch_histories").
		Select(`
			watch_histories.lesson_id,
			lessons.title as lesson_name,
			chapters.course_id,
			courses.name as course_name,
			watch_histories.last_watched_at as watched_at,
			watch_histories.watch_count
		`).
		Joins("JOIN lessons ON watch_histories.lesson_id = lessons.id").
		Joins("JOIN chapters ON lessons.chapter_id = chapters.id").
		Joins("JOIN courses ON chapters.course_id = courses.id").
		Where("watch_histories.student_id = ?", studentID).
		Order("watch_histories.last_watched_at DESC").
		Limit(10).
		Scan(&watched)

	data.RecentlyWatched = make([]WatchedLessonInfo, len(watched))
	for i, w := range watched {
		data.RecentlyWatched[i] = WatchedLessonInfo{
			LessonID:   w.LessonID,
			LessonName: w.LessonName,
			CourseID:   w.CourseID,
			CourseName: w.CourseName,
			WatchedAt:  w.WatchedAt,
			WatchCount: w.WatchCount,
		}
	}

	return data, nil
}
