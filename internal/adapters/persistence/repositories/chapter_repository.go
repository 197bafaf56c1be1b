package repositories

import (
	"context"

	"gorm.io/gorm"

	"edhub/internal/adapters/persistence/models"
)

// chapterRepository implements ChapterRepository interface
type chapterRepository struct {
	db *gorm.DB
}

// NewChapterRepository creates a new chapter repository
func NewChapterRepository(db *gorm.DB) ChapterRepository {
	return &chapterRepository{db: db}
}

// CreateChapter creates a new chapter
func (r *chapterRepository) CreateChapter(ctx context.Context, chapter *models.Chapter) error {
	return r.db.WithContext(ctx).Create(chapter).Error
}

// GetChapter gets a chapter with its ordered lessons
func (r *chapterRepository) GetChapter(ctx context.Context, id uint) (*models.Chapter, error) {
	var chapter models.Chapter
	err := r.db.WithContext(ctx).
		Preload("Lessons", func(db *gorm.DB) *gorm.DB {
			return db.Order("lessons.position ASC")
		}).
		Where("id = ?", id).
		First(&chapter).Error
	if err != nil {
		return nil, err
	}
	return &chapter, nil
}

// UpdateChapter updates a chapter
func (r *chapterRepository) UpdateChapter(ctx context.Context, chapter *models.Chapter) error {
	return r.db.WithContext(ctx).Save(chapter).Error
}

// DeleteChapter soft deletes a chapter and its lessons
func (r *chapterRepository) DeleteChapter(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("chapter_id = ?", id).Delete(&models.Lesson{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Chapter{}, id).Error
	})
}

// CreateLesson creates a new lesson
func (r *chapterRepository) CreateLesson(ctx context.Context, lesson *models.Lesson) error {
	return r.db.WithContext(ctx).Create(lesson).Error
}

// GetLesson gets a lesson by ID
func (r *chapterRepository) GetLesson(ctx context.Context, id uint) (*models.Lesson, error) {
	var lesson models.Lesson
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&lesson).Error
	if err != nil {
		return nil, err
	}
	return &lesson, nil
}

// GetLessonCourseID resolves the course a lesson belongs to
func (r *chapterRepository) GetLessonCourseID(ctx context.Context, lessonID uint) (uint, error) {
	var courseID uint
	err := r.db.WithContext(ctx).Model(&models.Lesson{}).
		Select("chapters.course_id").
		Joins("JOIN chapters ON chapters.id = lessons.chapter_id").
		Where("lessons.id = ?", lessonID).
		Scan(&courseID).Error
	if err != nil {
		return 0, err
	}
	if courseID == 0 {
		return 0, gorm.ErrRecordNotFound
	}
	return courseID, nil
}

// UpdateLesson updates a lesson
func (r *chapterRepository) UpdateLesson(ctx context.Context, lesson *models.Lesson) error {
	return r.db.WithContext(ctx).Save(lesson).Error
}

// DeleteLesson soft deletes a lesson
func (r *chapterRepository) DeleteLesson(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Delete(&models.Lesson{}, id).Error
}
