package services

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"edhub/internal/adapters/persistence/models"
	"edhub/internal/adapters/persistence/repositories"
	"edhub/internal/core/domain"
)

// WatchService records lesson watch events. Recording is gated on course
// access, except for free-preview lessons.
type WatchService struct {
	watchRepo     repositories.WatchHistoryRepository
	chapterRepo   repositories.ChapterRepository
	enrollmentSvc *EnrollmentService
}

// NewWatchService creates a new watch service
func NewWatchService(
	watchRepo repositories.WatchHistoryRepository,
	chapterRepo repositories.ChapterRepository,
	enrollmentSvc *EnrollmentService,
) *WatchService {
	return &WatchService{
		watchRepo:     watchRepo,
		chapterRepo:   chapterRepo,
		enrollmentSvc: enrollmentSvc,
	}
}

// RecordWatch upserts one watch event for the student and lesson,
// bumping the watch counter on repeats
func (s *WatchService) RecordWatch(ctx context.Context, studentID, lessonID uint) error {
	lesson, err := s.chapterRepo.GetLesson(ctx, lessonID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.ErrLessonNotFound
		}
		return err
	}

	if !lesson.IsFree {
		courseID, err := s.chapterRepo.GetLessonCourseID(ctx, lessonID)
		if err != nil {
			return err
		}
		access, err := s.enrollmentSvc.ResolveCourseAccess(ctx, studentID, courseID)
		if err != nil {
			return err
		}
		if !access.Granted {
			return domain.ErrForbidden
		}
	}

	return s.watchRepo.RecordWatch(ctx, studentID, lessonID, time.Now())
}

// ListByStudent returns the student's watch history, most recent first
func (s *WatchService) ListByStudent(ctx context.Context, studentID uint) ([]*models.WatchHistory, error) {
	return s.watchRepo.ListByStudent(ctx, studentID)
}
