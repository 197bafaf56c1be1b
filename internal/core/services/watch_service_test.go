package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"edhub/internal/adapters/persistence/models"
	"edhub/internal/adapters/persistence/repositories"
	"edhub/internal/core/domain"
)

func newWatchTestStack(t *testing.T, db *gorm.DB) (*WatchService, *EnrollmentService, *CatalogService) {
	t.Helper()

	enrollmentSvc := newEnrollmentService(db)
	watchSvc := NewWatchService(
		repositories.NewWatchHistoryRepository(db),
		repositories.NewChapterRepository(db),
		enrollmentSvc,
	)
	return watchSvc, enrollmentSvc, newCatalogService(db)
}

func seedLesson(t *testing.T, db *gorm.DB, catalogSvc *CatalogService, course *models.Course, title string, free bool) *models.Lesson {
	t.Helper()

	chapter, err := catalogSvc.AddChapter(context.Background(), course.ID, &ChapterInput{Title: title + " chapter"})
	require.NoError(t, err)
	lesson, err := catalogSvc.AddLesson(context.Background(), chapter.ID, &LessonInput{
		Title: title, VideoURL: "https://cdn.test/" + title + ".mp4", IsFree: free,
	})
	require.NoError(t, err)
	return lesson
}

func TestRecordWatch_FreeLessonNeedsNoAccess(t *testing.T) {
	db := newTestDB(t)
	watchSvc, _, catalogSvc := newWatchTestStack(t, db)
	ctx := context.Background()

	student := seedStudent(t, db, "viewer@test.com")
	course := seedCourse(t, db, "Watchable", 100)
	lesson := seedLesson(t, db, catalogSvc, course, "preview", true)

	require.NoError(t, watchSvc.RecordWatch(ctx, student.ID, lesson.ID))
	require.NoError(t, watchSvc.RecordWatch(ctx, student.ID, lesson.ID))

	history, err := watchSvc.ListByStudent(ctx, student.ID)
	require.NoError(t, err)
	require.Len(t, history, 1, "repeat views collapse into one row")
	assert.Equal(t, 2, history[0].WatchCount)
	assert.Equal(t, lesson.ID, history[0].LessonID)
}

func TestRecordWatch_LockedLessonGatedOnAccess(t *testing.T) {
	db := newTestDB(t)
	watchSvc, enrollmentSvc, catalogSvc := newWatchTestStack(t, db)
	ctx := context.Background()

	student := seedStudent(t, db, "gated@test.com")
	course := seedCourse(t, db, "Locked Course", 200)
	lesson := seedLesson(t, db, catalogSvc, course, "locked", false)

	err := watchSvc.RecordWatch(ctx, student.ID, lesson.ID)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	enrollment, err := enrollmentSvc.CreateDirectEnrollment(ctx, &DirectEnrollmentInput{
		StudentID: student.ID, CourseID: course.ID, PhoneNumber: "01001234567",
	})
	require.NoError(t, err)

	// Pending does not unlock.
	err = watchSvc.RecordWatch(ctx, student.ID, lesson.ID)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	_, err = enrollmentSvc.UpdatePaymentStatus(ctx, enrollment.ID, domain.PaymentPaid, domain.RoleAdmin)
	require.NoError(t, err)

	require.NoError(t, watchSvc.RecordWatch(ctx, student.ID, lesson.ID))

	history, err := watchSvc.ListByStudent(ctx, student.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, 1, history[0].WatchCount)
}

func TestRecordWatch_UnknownLesson(t *testing.T) {
	db := newTestDB(t)
	watchSvc, _, _ := newWatchTestStack(t, db)

	student := seedStudent(t, db, "nolesson@test.com")
	err := watchSvc.RecordWatch(context.Background(), student.ID, 9999)
	assert.ErrorIs(t, err, domain.ErrLessonNotFound)
}
