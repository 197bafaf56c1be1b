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

// CatalogService handles courses, chapters and lessons. It is read-mostly
// reference data for the enrollment engine; writes are admin-only.
type CatalogService struct {
	courseRepo  repositories.CourseRepository
	chapterRepo repositories.ChapterRepository
}

// NewCatalogService creates a new catalog service
func NewCatalogService(courseRepo repositories.CourseRepository, chapterRepo repositories.ChapterRepository) *CatalogService {
	return &CatalogService{
		courseRepo:  courseRepo,
		chapterRepo: chapterRepo,
	}
}

// CourseInput for creating/updating courses
type CourseInput struct {
	Name                 string     `json:"name" validate:"required,min=2,max=150"`
	Description          string     `json:"description" validate:"required"`
	ImageURL             string     `json:"image_url"`
	Price                float64    `json:"price" validate:"omitempty,gte=0"`
	IsFree               bool       `json:"is_free"`
	Level                string     `json:"level" validate:"required"`
	Publish              bool       `json:"publish"`
	ScheduledPublishDate *time.Time `json:"scheduled_publish_date"`
}

// ChapterInput for creating/updating chapters
type ChapterInput struct {
	Title       string `json:"title" validate:"required,min=2,max=150"`
	Description string `json:"description"`
	Position    int    `json:"position" validate:"gte=0"`
}

// LessonInput for creating/updating lessons
type LessonInput struct {
	Title    string `json:"title" validate:"required,min=2,max=150"`
	VideoURL string `json:"video_url"`
	FileURL  string `json:"file_url"`
	IsFree   bool   `json:"is_free"`
	Position int    `json:"position" validate:"gte=0"`
}

// CreateCourse creates a course. A paid course must carry a price; a
// scheduled publish date in the future puts the course in the scheduled
// state until the publication resolver flips it.
func (s *CatalogService) CreateCourse(ctx context.Context, input *CourseInput) (*models.Course, error) {
	if !input.IsFree && input.Price <= 0 {
		return nil, domain.ErrPriceRequired
	}

	course := &models.Course{
		Name:        input.Name,
		Description: input.Description,
		ImageURL:    input.ImageURL,
		Price:       input.Price,
		IsFree:      input.IsFree,
		Level:       input.Level,
	}
	if course.IsFree {
		course.Price = 0
	}

	applyPublishState(course, input.Publish, input.ScheduledPublishDate)

	if err := s.courseRepo.Create(ctx, course); err != nil {
		return nil, err
	}
	return course, nil
}

// applyPublishState derives the publish columns from the admin's intent
func applyPublishState(course *models.Course, publish bool, scheduledAt *time.Time) {
	switch {
	case scheduledAt != nil && scheduledAt.After(time.Now()):
		course.IsDraft = true
		course.IsScheduled = true
		course.ScheduledPublishDate = scheduledAt
		course.PublishStatus = string(domain.PublishScheduled)
	case publish || (scheduledAt != nil && !scheduledAt.After(time.Now())):
		course.IsDraft = false
		course.IsScheduled = false
		course.ScheduledPublishDate = nil
		course.PublishStatus = string(domain.PublishPublished)
	default:
		course.IsDraft = true
		course.IsScheduled = false
		course.ScheduledPublishDate = nil
		course.PublishStatus = string(domain.PublishDraft)
	}
}

// GetCourse returns a bare course row
func (s *CatalogService) GetCourse(ctx context.Context, id uint) (*models.Course, error) {
	course, err := s.courseRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrCourseNotFound
		}
		return nil, err
	}
	return course, nil
}

// GetCourseContent returns a course with chapters and lessons. When the
// caller has no access, video/file URLs are stripped from every lesson
// that is not itself free: the access predicate is the only thing that
// unlocks content fields.
func (s *CatalogService) GetCourseContent(ctx context.Context, id uint, hasAccess bool) (*models.Course, error) {
	course, err := s.courseRepo.GetByIDWithContent(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrCourseNotFound
		}
		return nil, err
	}

	if !hasAccess {
		for ci := range course.Chapters {
			for li := range course.Chapters[ci].Lessons {
				if !course.Chapters[ci].Lessons[li].IsFree {
					course.Chapters[ci].Lessons[li].VideoURL = ""
					course.Chapters[ci].Lessons[li].FileURL = ""
				}
			}
		}
	}

	return course, nil
}

// UpdateCourse updates a course, re-deriving the publish state
func (s *CatalogService) UpdateCourse(ctx context.Context, id uint, input *CourseInput) (*models.Course, error) {
	course, err := s.GetCourse(ctx, id)
	if err != nil {
		return nil, err
	}

	if !input.IsFree && input.Price <= 0 {
		return nil, domain.ErrPriceRequired
	}

	course.Name = input.Name
	course.Description = input.Description
	course.ImageURL = input.ImageURL
	course.Price = input.Price
	course.IsFree = input.IsFree
	course.Level = input.Level
	if course.IsFree {
		course.Price = 0
	}

	// A published course stays published unless explicitly rescheduled
	if !(course.IsPublished() && input.ScheduledPublishDate == nil && !input.Publish) {
		applyPublishState(course, input.Publish, input.ScheduledPublishDate)
	}

	if err := s.courseRepo.Update(ctx, course); err != nil {
		return nil, err
	}
	return course, nil
}

// DeleteCourse soft deletes a course
func (s *CatalogService) DeleteCourse(ctx context.Context, id uint) error {
	if _, err := s.GetCourse(ctx, id); err != nil {
		return err
	}
	return s.courseRepo.Delete(ctx, id)
}

// ListCourses lists courses; students only see published ones
func (s *CatalogService) ListCourses(ctx context.Context, publishedOnly bool, search string, offset, limit int) ([]*models.Course, int64, error) {
	return s.courseRepo.List(ctx, publishedOnly, search, offset, limit)
}

// AddChapter appends a chapter to a course
func (s *CatalogService) AddChapter(ctx context.Context, courseID uint, input *ChapterInput) (*models.Chapter, error) {
	if _, err := s.GetCourse(ctx, courseID); err != nil {
		return nil, err
	}

	chapter := &models.Chapter{
		CourseID:    courseID,
		Title:       input.Title,
		Description: input.Description,
		Position:    input.Position,
	}
	if err := s.chapterRepo.CreateChapter(ctx, chapter); err != nil {
		return nil, err
	}
	return chapter, nil
}

// UpdateChapter updates a chapter
func (s *CatalogService) UpdateChapter(ctx context.Context, chapterID uint, input *ChapterInput) (*models.Chapter, error) {
	chapter, err := s.chapterRepo.GetChapter(ctx, chapterID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrChapterNotFound
		}
		return nil, err
	}

	chapter.Title = input.Title
	chapter.Description = input.Description
	chapter.Position = input.Position

	if err := s.chapterRepo.UpdateChapter(ctx, chapter); err != nil {
		return nil, err
	}
	return chapter, nil
}

// DeleteChapter deletes a chapter and its lessons
func (s *CatalogService) DeleteChapter(ctx context.Context, chapterID uint) error {
	if _, err := s.chapterRepo.GetChapter(ctx, chapterID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.ErrChapterNotFound
		}
		return err
	}
	return s.chapterRepo.DeleteChapter(ctx, chapterID)
}

// AddLesson appends a lesson to a chapter
func (s *CatalogService) AddLesson(ctx context.Context, chapterID uint, input *LessonInput) (*models.Lesson, error) {
	if _, err := s.chapterRepo.GetChapter(ctx, chapterID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrChapterNotFound
		}
		return nil, err
	}

	lesson := &models.Lesson{
		ChapterID: chapterID,
		Title:     input.Title,
		VideoURL:  input.VideoURL,
		FileURL:   input.FileURL,
		IsFree:    input.IsFree,
		Position:  input.Position,
	}
	if err := s.chapterRepo.CreateLesson(ctx, lesson); err != nil {
		return nil, err
	}
	return lesson, nil
}

// UpdateLesson updates a lesson
func (s *CatalogService) UpdateLesson(ctx context.Context, lessonID uint, input *LessonInput) (*models.Lesson, error) {
	lesson, err := s.chapterRepo.GetLesson(ctx, lessonID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrLessonNotFound
		}
		return nil, err
	}

	lesson.Title = input.Title
	lesson.VideoURL = input.VideoURL
	lesson.FileURL = input.FileURL
	lesson.IsFree = input.IsFree
	lesson.Position = input.Position

	if err := s.chapterRepo.UpdateLesson(ctx, lesson); err != nil {
		return nil, err
	}
	return lesson, nil
}

// DeleteLesson deletes a lesson
func (s *CatalogService) DeleteLesson(ctx context.Context, lessonID uint) error {
	if _, err := s.chapterRepo.GetLesson(ctx, lessonID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.ErrLessonNotFound
		}
		return err
	}
	return s.chapterRepo.DeleteLesson(ctx, lessonID)
}

// GetLessonCourseID resolves which course a lesson belongs to, used by the
// watch-history gate
func (s *CatalogService) GetLessonCourseID(ctx context.Context, lessonID uint) (uint, error) {
	courseID, err := s.chapterRepo.GetLessonCourseID(ctx, lessonID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, domain.ErrLessonNotFound
		}
		return 0, err
	}
	return courseID, nil
}
