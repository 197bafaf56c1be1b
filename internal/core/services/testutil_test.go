package services

import (
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"edhub/internal/adapters/persistence/models"
	"edhub/internal/adapters/persistence/repositories"
	"edhub/internal/core/domain"
)

// newTestDB opens an isolated in-memory database per test. The shared-cache
// DSN keeps every pooled connection on the same database.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	require.NoError(t, models.AutoMigrate(db))
	return db
}

func newEnrollmentService(db *gorm.DB) *EnrollmentService {
	return NewEnrollmentService(
		repositories.NewEnrollmentRepository(db),
		repositories.NewUserRepository(db),
		repositories.NewCourseRepository(db),
		repositories.NewPackageRepository(db),
	)
}

var phoneSeq uint32

func seedStudent(t *testing.T, db *gorm.DB, email string) *models.User {
	t.Helper()

	user := &models.User{
		Name:        "Test Student",
		Email:       email,
		PhoneNumber: fmt.Sprintf("0100%07d", atomic.AddUint32(&phoneSeq, 1)),
		Password:    "hashed",
		Level:       "grade-12",
		Government:  "Cairo",
		Role:        string(domain.RoleUser),
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

func seedCourse(t *testing.T, db *gorm.DB, name string, price float64) *models.Course {
	t.Helper()

	course := &models.Course{
		Name:          name,
		Description:   "a course",
		Price:         price,
		Level:         "grade-12",
		IsDraft:       false,
		PublishStatus: string(domain.PublishPublished),
	}
	require.NoError(t, db.Create(course).Error)
	return course
}

func seedFreeCourse(t *testing.T, db *gorm.DB, name string) *models.Course {
	t.Helper()

	course := &models.Course{
		Name:          name,
		Description:   "a free course",
		IsFree:        true,
		Level:         "grade-12",
		IsDraft:       false,
		PublishStatus: string(domain.PublishPublished),
	}
	require.NoError(t, db.Create(course).Error)
	return course
}

func seedPackage(t *testing.T, db *gorm.DB, name string, price float64, courses ...*models.Course) *models.Package {
	t.Helper()

	pkg := &models.Package{
		Name:          name,
		Description:   "a bundle",
		Price:         price,
		OriginalPrice: price,
		Level:         "grade-12",
		IsDraft:       false,
		PublishStatus: string(domain.PublishPublished),
	}
	require.NoError(t, db.Create(pkg).Error)
	for _, c := range courses {
		require.NoError(t, db.Model(pkg).Association("Courses").Append(c))
	}
	return pkg
}
